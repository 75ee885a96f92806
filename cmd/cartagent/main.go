// cartagent opens a retailer recipe page in a real browser and lets the
// autopilot controller drive the shop-recipe / add-to-cart sequence on it.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/playwright-community/playwright-go"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/grocerly/cartbridge/internal/autopilot"
	"github.com/grocerly/cartbridge/internal/config"
	"github.com/grocerly/cartbridge/internal/retailer"
)

type cliOptions struct {
	url        string
	retailer   string
	recipeName string
}

func main() {
	_ = godotenv.Load()
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	opts := parseFlags()
	if opts.url == "" || opts.recipeName == "" {
		log.Fatal().Msg("both -url and -recipe are required")
	}
	target, err := retailer.Parse(opts.retailer)
	if err != nil {
		log.Fatal().Err(err).Msg("retailer")
	}

	cfg := config.Load()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	launcher, err := autopilot.NewLauncher(cfg.Headless)
	if err != nil {
		log.Fatal().Err(err).Msg("browser init")
	}
	defer launcher.Close()

	var ctrl *autopilot.Controller
	driver, err := launcher.NewPage(func(url string) bool {
		return ctrl != nil && ctrl.AllowNavigation(url)
	})
	if err != nil {
		log.Fatal().Err(err).Msg("new page")
	}
	defer driver.Close()

	ctrl = autopilot.NewController(target, opts.recipeName, driver,
		autopilot.WithLogger(log.With().Str("comp", "autopilot").Logger()),
		autopilot.WithSignalFunc(func(sig autopilot.Signal) {
			evt := log.Info().Stringer("state", sig.State)
			if sig.Message != "" {
				evt = evt.Str("status", sig.Message)
			}
			evt.Msg("automation")
		}),
	)
	defer ctrl.Teardown()

	driver.Page().OnLoad(func(playwright.Page) {
		ctrl.OnPageLoaded(driver.Page().URL())
	})

	if err := driver.Navigate(ctx, opts.url); err != nil {
		log.Fatal().Err(err).Msg("navigate")
	}

	log.Info().Str("url", opts.url).Msg("page open, automation armed; Ctrl-C to quit")
	<-ctx.Done()
}

func parseFlags() cliOptions {
	url := flag.String("url", "", "Recipe page URL to open")
	ret := flag.String("retailer", "woolworths", "Retailer: woolworths or coles")
	name := flag.String("recipe", "", "Recipe name, used for the search fallback")
	flag.Parse()
	return cliOptions{
		url:        strings.TrimSpace(*url),
		retailer:   strings.TrimSpace(*ret),
		recipeName: strings.TrimSpace(*name),
	}
}
