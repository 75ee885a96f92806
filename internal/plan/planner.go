// Package plan turns named grocery items into resolved product URLs via the
// render + resolve pipeline.
package plan

import (
	"context"
	"strings"

	"github.com/rs/zerolog"

	"github.com/grocerly/cartbridge/internal/render"
	"github.com/grocerly/cartbridge/internal/resolve"
	"github.com/grocerly/cartbridge/internal/retailer"
)

// Item is one requested grocery line.
type Item struct {
	Name     string `json:"name"`
	Quantity int    `json:"quantity,omitempty"`
}

// PlanItem is one resolved product plus requested quantity, the unit of
// output of the fetch/resolve stage.
type PlanItem struct {
	ProductURL string `json:"productUrl"`
	Quantity   int    `json:"quantity"`
}

// Renderer is the slice of the render client the planner needs.
type Renderer interface {
	FetchAll(ctx context.Context, targets []string) []render.Result
}

type Planner struct {
	renderer Renderer
	logger   zerolog.Logger
}

func NewPlanner(renderer Renderer) *Planner {
	return &Planner{renderer: renderer, logger: zerolog.Nop()}
}

func NewPlannerWithLogger(renderer Renderer, logger zerolog.Logger) *Planner {
	return &Planner{renderer: renderer, logger: logger}
}

// Build resolves each item against the retailer's search page. Items whose
// page fails to render or yields no product link are dropped; one bad item
// never aborts the batch. Output order follows input order.
func (p *Planner) Build(ctx context.Context, target retailer.Target, items []Item) []PlanItem {
	urls := make([]string, len(items))
	for i, item := range items {
		urls[i] = target.SearchURL(strings.TrimSpace(item.Name))
	}

	results := p.renderer.FetchAll(ctx, urls)

	out := make([]PlanItem, 0, len(items))
	for i, res := range results {
		item := items[i]
		if res.Err != nil {
			p.logger.Warn().Str("item", item.Name).Err(res.Err).Msg("render failed, dropping item")
			continue
		}
		productURL, ok := resolve.ProductURL(target, res.URL, res.HTML)
		if !ok {
			p.logger.Info().Str("item", item.Name).Msg("no product link found, dropping item")
			continue
		}
		qty := item.Quantity
		if qty <= 0 {
			qty = 1
		}
		out = append(out, PlanItem{ProductURL: productURL, Quantity: qty})
	}
	return out
}
