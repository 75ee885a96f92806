// Package ai resolves free-text meal queries into structured recipes via a
// schema-constrained chat completion, with a relaxed-JSON fallback attempt.
package ai

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/grocerly/cartbridge/internal/recipe"
	"github.com/grocerly/cartbridge/internal/retailer"
)

const (
	maxRecipes = 3

	finishReasonStop = "stop"
)

// attempt describes one tier of the sequential request strategy.
type attempt struct {
	name   string
	format *ResponseFormat
}

// attempts are consumed in order; the first attempt whose reply parses into
// at least one recipe wins.
var attempts = []attempt{
	{name: "schema", format: &ResponseFormat{Type: "json_schema", JSONSchema: recipeSchema()}},
	{name: "relaxed", format: &ResponseFormat{Type: "json_object"}},
}

// Resolver turns a meal query into up to three normalized recipes for one
// retailer.
type Resolver struct {
	client ChatClient
	logger zerolog.Logger
	newID  func() string
}

type ResolverOption func(*Resolver)

func WithResolverLogger(logger zerolog.Logger) ResolverOption {
	return func(r *Resolver) { r.logger = logger }
}

func NewResolver(client ChatClient, opts ...ResolverOption) *Resolver {
	r := &Resolver{
		client: client,
		logger: zerolog.Nop(),
		newID:  uuid.NewString,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// SearchRecipes runs the two-tier request sequence for one query. Attempts
// run strictly one after another: a failed call, a truncated reply short of
// the last attempt, or an unparseable body each advance to the next tier. On
// the last attempt a non-"stop" finish reason is still parsed, salvaging
// partial output. Exhausting every attempt yields an empty slice, never an
// error, so the caller can apply its own fallback.
func (r *Resolver) SearchRecipes(ctx context.Context, query string, target retailer.Target) ([]recipe.Recipe, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	messages := buildMessages(query, target)

	for i, att := range attempts {
		last := i == len(attempts)-1
		resp, err := r.client.Complete(ctx, ChatRequest{
			Messages:       messages,
			ResponseFormat: att.format,
			Temperature:    0.2,
		})
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			r.logger.Warn().Str("attempt", att.name).Err(err).Msg("recipe search attempt failed")
			continue
		}
		if resp.FinishReason != finishReasonStop && !last {
			r.logger.Warn().
				Str("attempt", att.name).
				Str("finish_reason", resp.FinishReason).
				Msg("incomplete completion, falling back")
			continue
		}

		recipes := r.parseRecipes(resp.Content)
		if len(recipes) == 0 {
			r.logger.Info().Str("attempt", att.name).Msg("no recipes parsed")
			continue
		}
		r.logger.Info().
			Str("attempt", att.name).
			Str("query", query).
			Int("recipes", len(recipes)).
			Msg("recipe search resolved")
		return recipes, nil
	}
	return []recipe.Recipe{}, nil
}

type rawIngredient struct {
	ProductName  string  `json:"productName"`
	QuantityText string  `json:"quantityText"`
	Quantity     float64 `json:"quantity"`
	Unit         string  `json:"unit"`
	Notes        string  `json:"notes"`
	ProductURL   string  `json:"productUrl"`
}

type rawRecipe struct {
	Title        string          `json:"title"`
	Description  string          `json:"description"`
	Tags         []string        `json:"tags"`
	RecipeURL    string          `json:"recipeUrl"`
	ImageURL     string          `json:"imageUrl"`
	Servings     int             `json:"servings"`
	Instructions []string        `json:"instructions"`
	Ingredients  []rawIngredient `json:"ingredients"`
}

type recipeEnvelope struct {
	Recipes []rawRecipe `json:"recipes"`
}

// parseRecipes decodes a model reply. Any malformation counts as zero
// results for the attempt rather than an error.
func (r *Resolver) parseRecipes(content string) []recipe.Recipe {
	var env recipeEnvelope
	if err := json.Unmarshal([]byte(strings.TrimSpace(content)), &env); err != nil {
		r.logger.Warn().Err(err).Str("preview", truncate(content, 200)).Msg("recipe reply parse failed")
		return nil
	}
	out := make([]recipe.Recipe, 0, maxRecipes)
	for _, raw := range env.Recipes {
		if len(out) == maxRecipes {
			break
		}
		norm, ok := r.normalize(raw)
		if !ok {
			continue
		}
		out = append(out, norm)
	}
	return out
}

// normalize converts a raw model recipe into the canonical shape: uuid id,
// instruction steps joined with blank lines, and a measure string per
// ingredient. Source ingredient order is preserved exactly.
func (r *Resolver) normalize(raw rawRecipe) (recipe.Recipe, bool) {
	title := strings.TrimSpace(raw.Title)
	if title == "" || len(raw.Instructions) == 0 || len(raw.Ingredients) == 0 {
		return recipe.Recipe{}, false
	}
	ingredients := make([]recipe.Ingredient, 0, len(raw.Ingredients))
	for _, ri := range raw.Ingredients {
		name := strings.TrimSpace(ri.ProductName)
		if name == "" {
			continue
		}
		ing := recipe.Ingredient{
			ProductName:  name,
			QuantityText: strings.TrimSpace(ri.QuantityText),
			Quantity:     ri.Quantity,
			Unit:         strings.TrimSpace(ri.Unit),
			Notes:        strings.TrimSpace(ri.Notes),
			ProductURL:   strings.TrimSpace(ri.ProductURL),
		}
		ing.QuantityText = ing.Measure()
		ingredients = append(ingredients, ing)
	}
	if len(ingredients) == 0 {
		return recipe.Recipe{}, false
	}
	tags := raw.Tags
	if tags == nil {
		tags = []string{}
	}
	return recipe.Recipe{
		ID:           r.newID(),
		Title:        title,
		Description:  strings.TrimSpace(raw.Description),
		Tags:         tags,
		RecipeURL:    strings.TrimSpace(raw.RecipeURL),
		ImageURL:     strings.TrimSpace(raw.ImageURL),
		Instructions: recipe.JoinInstructions(raw.Instructions),
		Servings:     raw.Servings,
		Ingredients:  ingredients,
	}, true
}
