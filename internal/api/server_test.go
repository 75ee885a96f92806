package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/grocerly/cartbridge/internal/plan"
	"github.com/grocerly/cartbridge/internal/recipe"
	"github.com/grocerly/cartbridge/internal/retailer"
)

type stubPlanner struct {
	gotTarget retailer.Target
	gotItems  []plan.Item
	result    []plan.PlanItem
}

func (s *stubPlanner) Build(_ context.Context, target retailer.Target, items []plan.Item) []plan.PlanItem {
	s.gotTarget = target
	s.gotItems = items
	return s.result
}

func doAddPlan(t *testing.T, srv *Server, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/add-plan", strings.NewReader(body))
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)
	return rec
}

func TestAddPlanHappyPath(t *testing.T) {
	planner := &stubPlanner{result: []plan.PlanItem{
		{ProductURL: "https://www.coles.com.au/product/123", Quantity: 2},
	}}
	srv := NewServer(planner, nil, true, zerolog.Nop())

	rec := doAddPlan(t, srv, `{"retailer":"coles","items":[{"name":"milk","quantity":2}]}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp addPlanResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "coles", resp.Retailer)
	require.Len(t, resp.Items, 1)
	assert.Equal(t, "https://www.coles.com.au/product/123", resp.Items[0].ProductURL)
	assert.Equal(t, 2, resp.Items[0].Quantity)

	assert.Equal(t, retailer.Coles, planner.gotTarget)
	require.Len(t, planner.gotItems, 1)
	assert.Equal(t, "milk", planner.gotItems[0].Name)
}

func TestAddPlanRejectsBadRequests(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"invalid json", `{not json`},
		{"unknown retailer", `{"retailer":"aldi","items":[{"name":"milk"}]}`},
		{"empty items", `{"retailer":"coles","items":[]}`},
		{"missing item name", `{"retailer":"coles","items":[{"quantity":2}]}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := NewServer(&stubPlanner{}, nil, true, zerolog.Nop())
			rec := doAddPlan(t, srv, tt.body)
			assert.Equal(t, http.StatusBadRequest, rec.Code)

			var resp errorResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
			assert.NotEmpty(t, resp.Error)
		})
	}
}

func TestAddPlanUnconfiguredServer(t *testing.T) {
	srv := NewServer(&stubPlanner{}, nil, false, zerolog.Nop())
	rec := doAddPlan(t, srv, `{"retailer":"coles","items":[{"name":"milk"}]}`)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

type stubSearcher struct {
	recipes []recipe.Recipe
	err     error
}

func (s *stubSearcher) SearchRecipes(_ context.Context, _ string, _ retailer.Target) ([]recipe.Recipe, error) {
	return s.recipes, s.err
}

func TestSearchRecipes(t *testing.T) {
	searcher := &stubSearcher{recipes: []recipe.Recipe{{
		ID:           "r1",
		Title:        "Pad Thai",
		Tags:         []string{},
		Instructions: "Cook it.",
		Ingredients:  []recipe.Ingredient{{ProductName: "noodles", QuantityText: "200g"}},
	}}}
	srv := NewServer(&stubPlanner{}, searcher, true, zerolog.Nop())

	req := httptest.NewRequest(http.MethodPost, "/search-recipes",
		strings.NewReader(`{"retailer":"woolworths","query":"pad thai"}`))
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp searchRecipesResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "woolworths", resp.Retailer)
	require.Len(t, resp.Recipes, 1)
	assert.Equal(t, "Pad Thai", resp.Recipes[0].Title)
}

func TestSearchRecipesRejectsEmptyQuery(t *testing.T) {
	srv := NewServer(&stubPlanner{}, &stubSearcher{}, true, zerolog.Nop())
	req := httptest.NewRequest(http.MethodPost, "/search-recipes",
		strings.NewReader(`{"retailer":"coles","query":"  "}`))
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHealthz(t *testing.T) {
	srv := NewServer(&stubPlanner{}, nil, true, zerolog.Nop())
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}
