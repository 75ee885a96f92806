// Package recipe holds the canonical recipe shape produced by the AI
// resolver and consumed by the planner and the automation host.
package recipe

import (
	"strconv"
	"strings"
)

// Recipe is a normalized recipe. Ingredient order mirrors the source
// recipe's published order and must never be re-sorted.
type Recipe struct {
	ID           string       `json:"id"`
	Title        string       `json:"title"`
	Description  string       `json:"description,omitempty"`
	Tags         []string     `json:"tags"`
	RecipeURL    string       `json:"recipeUrl,omitempty"`
	ImageURL     string       `json:"imageUrl,omitempty"`
	Instructions string       `json:"instructions"`
	Servings     int          `json:"servings,omitempty"`
	Ingredients  []Ingredient `json:"ingredients"`
}

type Ingredient struct {
	ProductName  string  `json:"productName"`
	QuantityText string  `json:"quantityText,omitempty"`
	Quantity     float64 `json:"quantity,omitempty"`
	Unit         string  `json:"unit,omitempty"`
	Notes        string  `json:"notes,omitempty"`
	ProductURL   string  `json:"productUrl,omitempty"`
}

// Measure returns the human-readable amount for an ingredient: the verbatim
// quantity text when the source recipe provided one, otherwise a string
// synthesized from the numeric quantity and unit.
func (i Ingredient) Measure() string {
	if text := strings.TrimSpace(i.QuantityText); text != "" {
		return text
	}
	qty := FormatQuantity(i.Quantity)
	if qty == "" {
		return strings.TrimSpace(i.Unit)
	}
	return strings.TrimSpace(qty + " " + i.Unit)
}

// FormatQuantity renders a numeric quantity without decimals when it is a
// whole number, otherwise to two decimal places with trailing zeros trimmed.
func FormatQuantity(q float64) string {
	if q == 0 {
		return ""
	}
	s := strconv.FormatFloat(q, 'f', 2, 64)
	s = strings.TrimRight(s, "0")
	s = strings.TrimRight(s, ".")
	return s
}

// JoinInstructions flattens an instruction-step array into one text block
// with blank lines between steps.
func JoinInstructions(steps []string) string {
	trimmed := make([]string, 0, len(steps))
	for _, step := range steps {
		step = strings.TrimSpace(step)
		if step != "" {
			trimmed = append(trimmed, step)
		}
	}
	return strings.Join(trimmed, "\n\n")
}
