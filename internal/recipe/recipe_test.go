package recipe

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFormatQuantity(t *testing.T) {
	tests := []struct {
		in   float64
		want string
	}{
		{0, ""},
		{1, "1"},
		{2.0, "2"},
		{0.5, "0.5"},
		{1.25, "1.25"},
		{2.10, "2.1"},
		{12, "12"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, FormatQuantity(tt.in), "quantity %v", tt.in)
	}
}

func TestMeasurePrefersVerbatimText(t *testing.T) {
	ing := Ingredient{ProductName: "flour", QuantityText: "2 heaped cups", Quantity: 2, Unit: "cup"}
	assert.Equal(t, "2 heaped cups", ing.Measure())
}

func TestMeasureSynthesizedFromQuantityAndUnit(t *testing.T) {
	tests := []struct {
		ing  Ingredient
		want string
	}{
		{Ingredient{Quantity: 2, Unit: "tbsp"}, "2 tbsp"},
		{Ingredient{Quantity: 0.5, Unit: "cup"}, "0.5 cup"},
		{Ingredient{Quantity: 3}, "3"},
		{Ingredient{Unit: "pinch"}, "pinch"},
		{Ingredient{}, ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.ing.Measure())
	}
}

func TestJoinInstructions(t *testing.T) {
	assert.Equal(t,
		"Boil the noodles.\n\nToss with sauce.",
		JoinInstructions([]string{"Boil the noodles.", " Toss with sauce. ", ""}))
	assert.Equal(t, "", JoinInstructions(nil))
}
