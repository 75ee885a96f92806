// Package api exposes the collaborator-facing batch endpoint.
package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/grocerly/cartbridge/internal/plan"
	"github.com/grocerly/cartbridge/internal/recipe"
	"github.com/grocerly/cartbridge/internal/retailer"
)

// PlanBuilder is the planner surface the handlers drive.
type PlanBuilder interface {
	Build(ctx context.Context, target retailer.Target, items []plan.Item) []plan.PlanItem
}

// RecipeSearcher resolves a free-text meal query into recipes. Nil disables
// the search route.
type RecipeSearcher interface {
	SearchRecipes(ctx context.Context, query string, target retailer.Target) ([]recipe.Recipe, error)
}

type Server struct {
	planner    PlanBuilder
	searcher   RecipeSearcher
	configured bool // false when the upstream rendering token is absent
	logger     zerolog.Logger
}

func NewServer(planner PlanBuilder, searcher RecipeSearcher, configured bool, logger zerolog.Logger) *Server {
	return &Server{planner: planner, searcher: searcher, configured: configured, logger: logger}
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(s.requestLogger)
	r.Get("/healthz", s.handleHealth)
	r.Post("/add-plan", s.handleAddPlan)
	r.Post("/search-recipes", s.handleSearchRecipes)
	return r
}

type addPlanRequest struct {
	Retailer string      `json:"retailer"`
	Items    []plan.Item `json:"items"`
}

type addPlanResponse struct {
	Retailer string          `json:"retailer"`
	Items    []plan.PlanItem `json:"items"`
}

func (s *Server) handleAddPlan(w http.ResponseWriter, r *http.Request) {
	if !s.configured {
		writeError(w, http.StatusInternalServerError, "rendering service token not configured")
		return
	}

	var req addPlanRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	target, err := retailer.Parse(req.Retailer)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if len(req.Items) == 0 {
		writeError(w, http.StatusBadRequest, "items must not be empty")
		return
	}
	for _, item := range req.Items {
		if strings.TrimSpace(item.Name) == "" {
			writeError(w, http.StatusBadRequest, "every item needs a name")
			return
		}
	}

	items := s.planner.Build(r.Context(), target, req.Items)
	writeJSON(w, http.StatusOK, addPlanResponse{Retailer: string(target), Items: items})
}

type searchRecipesRequest struct {
	Retailer string `json:"retailer"`
	Query    string `json:"query"`
}

type searchRecipesResponse struct {
	Retailer string          `json:"retailer"`
	Recipes  []recipe.Recipe `json:"recipes"`
}

func (s *Server) handleSearchRecipes(w http.ResponseWriter, r *http.Request) {
	if s.searcher == nil {
		writeError(w, http.StatusInternalServerError, "recipe search not configured")
		return
	}
	var req searchRecipesRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	target, err := retailer.Parse(req.Retailer)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	query := strings.TrimSpace(req.Query)
	if query == "" {
		writeError(w, http.StatusBadRequest, "query must not be empty")
		return
	}

	recipes, err := s.searcher.SearchRecipes(r.Context(), query, target)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "recipe search failed")
		return
	}
	writeJSON(w, http.StatusOK, searchRecipesResponse{Retailer: string(target), Recipes: recipes})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.logger.Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Dur("took", time.Since(start)).
			Msg("request")
	})
}

type errorResponse struct {
	Error string `json:"error"`
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
