package ai

import (
	"fmt"
	"strings"

	"github.com/grocerly/cartbridge/internal/retailer"
)

// systemInstructions are sent, in order, ahead of every recipe search. They
// pin down the three contracts the rest of the pipeline depends on: verbatim
// ingredient wording, source ordering, and JSON-only output.
var systemInstructions = []string{
	"You are a recipe search assistant for Australian grocery retailers. " +
		"You find published recipes from the retailer's own recipe site and " +
		"return them as structured data.",

	"Ingredient fidelity is mandatory: copy each ingredient's product name " +
		"and quantity wording VERBATIM from the source recipe. Do not reword, " +
		"abbreviate, or merge ingredients.",

	"Ingredient ordering is mandatory: the ingredients array must mirror the " +
		"exact order the source recipe publishes them in.",

	"Respond with strict JSON only. No prose, no markdown fences, no text " +
		"outside the JSON object. The object has a single top-level key " +
		`"recipes" holding an array of zero to three recipes.`,
}

// fewShotQuery and fewShotResponse are one static worked example anchoring
// the output shape.
const fewShotQuery = `Find recipes for: "easy chicken stir fry" on www.woolworths.com.au/shop/recipes`

const fewShotResponse = `{"recipes":[{"title":"Easy Chicken Stir-Fry","description":"A quick midweek stir-fry.","tags":["dinner","chicken","quick"],"recipeUrl":"https://www.woolworths.com.au/shop/recipes/easy-chicken-stir-fry","imageUrl":"https://assets.woolworths.com.au/images/recipes/easy-chicken-stir-fry.jpg","servings":4,"instructions":["Heat oil in a wok over high heat.","Stir-fry chicken in batches until golden.","Add vegetables and sauce, toss for 2 minutes and serve."],"ingredients":[{"productName":"chicken breast fillets","quantityText":"500g","quantity":500,"unit":"g"},{"productName":"broccoli, cut into florets","quantityText":"1 head","quantity":1,"unit":"head"},{"productName":"soy sauce","quantityText":"2 tbsp","quantity":2,"unit":"tbsp"}]}]}`

func buildMessages(query string, target retailer.Target) []Message {
	msgs := make([]Message, 0, len(systemInstructions)+3)
	for _, inst := range systemInstructions {
		msgs = append(msgs, Message{Role: "system", Content: inst})
	}
	msgs = append(msgs,
		Message{Role: "user", Content: fewShotQuery},
		Message{Role: "assistant", Content: fewShotResponse},
		Message{Role: "user", Content: fmt.Sprintf(
			"Find recipes for: %q on %s", query,
			strings.Join(target.Profile().RecipeDomains, " or "))},
	)
	return msgs
}

// recipeSchema is the strict response schema for the primary attempt. It
// requires title, instructions and ingredients on every recipe.
func recipeSchema() *SchemaSpec {
	ingredient := map[string]any{
		"type": "object",
		"properties": map[string]any{
			"productName":  map[string]any{"type": "string"},
			"quantityText": map[string]any{"type": "string"},
			"quantity":     map[string]any{"type": "number"},
			"unit":         map[string]any{"type": "string"},
			"notes":        map[string]any{"type": "string"},
			"productUrl":   map[string]any{"type": "string"},
		},
		"required":             []string{"productName"},
		"additionalProperties": false,
	}
	rec := map[string]any{
		"type": "object",
		"properties": map[string]any{
			"title":       map[string]any{"type": "string"},
			"description": map[string]any{"type": "string"},
			"tags":        map[string]any{"type": "array", "items": map[string]any{"type": "string"}},
			"recipeUrl":   map[string]any{"type": "string"},
			"imageUrl":    map[string]any{"type": "string"},
			"servings":    map[string]any{"type": "integer"},
			"instructions": map[string]any{
				"type": "array", "minItems": 1,
				"items": map[string]any{"type": "string"},
			},
			"ingredients": map[string]any{
				"type": "array", "minItems": 1,
				"items": ingredient,
			},
		},
		"required":             []string{"title", "instructions", "ingredients"},
		"additionalProperties": false,
	}
	return &SchemaSpec{
		Name:   "recipe_search_results",
		Strict: true,
		Schema: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"recipes": map[string]any{"type": "array", "items": rec},
			},
			"required":             []string{"recipes"},
			"additionalProperties": false,
		},
	}
}
