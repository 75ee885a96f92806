package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/grocerly/cartbridge/internal/ai"
	"github.com/grocerly/cartbridge/internal/api"
	"github.com/grocerly/cartbridge/internal/config"
	"github.com/grocerly/cartbridge/internal/plan"
	"github.com/grocerly/cartbridge/internal/render"
)

const shutdownGrace = 10 * time.Second

func main() {
	_ = godotenv.Load()
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	cfg := config.Load()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	renderer := render.NewClient(cfg.RenderBaseURL, cfg.RenderToken,
		render.WithMaxAttempts(cfg.FetchMaxAttempts),
		render.WithWorkers(cfg.FetchWorkers),
		render.WithLogger(log.With().Str("comp", "render").Logger()),
	)
	planner := plan.NewPlannerWithLogger(renderer, log.With().Str("comp", "plan").Logger())

	var searcher api.RecipeSearcher
	if cfg.OpenAIAPIKey != "" {
		chat, err := ai.NewOpenAIClientWithLogger(cfg.OpenAIAPIKey, cfg.OpenAIModel,
			log.With().Str("comp", "ai").Logger())
		if err != nil {
			log.Fatal().Err(err).Msg("chat client init")
		}
		searcher = ai.NewResolver(chat, ai.WithResolverLogger(log.With().Str("comp", "ai").Logger()))
	} else {
		log.Warn().Msg("OPENAI_API_KEY not set, recipe search disabled")
	}

	srv := api.NewServer(planner, searcher, cfg.RenderToken != "", log.With().Str("comp", "api").Logger())
	httpSrv := &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      srv.Router(),
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}

	go func() {
		log.Info().Str("addr", cfg.HTTPAddr).Msg("cartbridge listening")
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("http server")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer cancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("shutdown")
	}
}
