// Package autopilot drives "shop recipe" / "add to cart" automation on a
// live retailer recipe page. The controller is a per-page-view state machine
// fed by page-load events; all DOM access goes through the PageDriver
// abstraction so the transition logic is testable without a browser.
package autopilot

import (
	"context"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/grocerly/cartbridge/internal/retailer"
)

const (
	defaultPollInterval    = 650 * time.Millisecond
	defaultMaxPollAttempts = 12
	defaultSettleDelay     = 1800 * time.Millisecond
)

var shopPhrases = []string{"shop recipe", "shop this recipe", "shop ingredients"}

var addPhrases = []string{"add to cart", "add all to cart", "add to trolley", "add all to trolley"}

// errorPhrases are the dead-page text signatures the probe scans for.
var errorPhrases = []string{
	"page not found",
	"page can't be found",
	"can't be reached",
	"can’t be reached",
	"something went wrong",
}

const (
	statusManualMode = "Automatic cart-add is only available for Woolworths recipes. Browse the page and add items manually."
	statusShopFail   = "Couldn't find the shop recipe button. Scroll down and try again."
	statusAddFail    = "Couldn't find the add to cart button. Scroll down and try again."
)

// Clickable is one actionable control found in the page: a button, an
// element with ARIA role "button", or an anchor, in DOM traversal order.
type Clickable struct {
	ID   int
	Text string
}

// PageDriver is the narrow surface the controller needs from a live page.
type PageDriver interface {
	VisibleText(ctx context.Context) (string, error)
	Clickables(ctx context.Context) ([]Clickable, error)
	Click(ctx context.Context, id int) error
	Navigate(ctx context.Context, url string) error
}

// Controller owns the automation state for one embedded page view. Create
// one per view and call Teardown when the view closes.
type Controller struct {
	target     retailer.Target
	recipeName string
	driver     PageDriver
	logger     zerolog.Logger
	onSignal   func(Signal)

	pollInterval    time.Duration
	maxPollAttempts int
	settleDelay     time.Duration

	mu         sync.Mutex
	state      State
	status     string
	generation int
	loadCancel context.CancelFunc

	// One-shot guards. The shop/add guards reset per page load; the
	// fallback guard spans the controller lifetime so the redirect's own
	// landing page can never trigger a second redirect.
	shopTriggered     bool
	addScheduled      bool
	fallbackAttempted bool
}

type ControllerOption func(*Controller)

func WithLogger(logger zerolog.Logger) ControllerOption {
	return func(c *Controller) { c.logger = logger }
}

// WithSignalFunc registers a callback invoked on every state transition.
func WithSignalFunc(fn func(Signal)) ControllerOption {
	return func(c *Controller) { c.onSignal = fn }
}

// WithTiming overrides the poll/settle cadence. Used by tests.
func WithTiming(poll, settle time.Duration, maxAttempts int) ControllerOption {
	return func(c *Controller) {
		if poll > 0 {
			c.pollInterval = poll
		}
		if settle > 0 {
			c.settleDelay = settle
		}
		if maxAttempts > 0 {
			c.maxPollAttempts = maxAttempts
		}
	}
}

func NewController(target retailer.Target, recipeName string, driver PageDriver, opts ...ControllerOption) *Controller {
	c := &Controller{
		target:          target,
		recipeName:      recipeName,
		driver:          driver,
		logger:          zerolog.Nop(),
		pollInterval:    defaultPollInterval,
		maxPollAttempts: defaultMaxPollAttempts,
		settleDelay:     defaultSettleDelay,
		state:           StateIdle,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// State returns the current automation state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// StatusMessage is the operator-readable outcome of the last sequence.
func (c *Controller) StatusMessage() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.status
}

// AllowNavigation filters outbound navigation requests: only http/https to
// the retailer's own hosts (exact or subdomain) may proceed.
func (c *Controller) AllowNavigation(rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return false
	}
	return c.target.AllowsHost(u.Hostname())
}

// OnPageLoaded must be called on every page-load completion with the loaded
// URL. It invalidates all pending polls and timers from the previous load,
// probes for a dead page, and, when the URL is one of the retailer's recipe
// pages, starts the shop sequence once per load.
func (c *Controller) OnPageLoaded(pageURL string) {
	c.mu.Lock()
	if c.loadCancel != nil {
		c.loadCancel()
	}
	ctx, cancel := context.WithCancel(context.Background())
	c.loadCancel = cancel
	c.generation++
	gen := c.generation
	c.shopTriggered = false
	c.addScheduled = false
	c.state = StateIdle
	c.mu.Unlock()

	go c.runLoad(ctx, gen, pageURL)
}

// Teardown invalidates every pending poll and timer. The controller must
// never act on a page after its view is gone.
func (c *Controller) Teardown() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.loadCancel != nil {
		c.loadCancel()
		c.loadCancel = nil
	}
	c.generation++
}

func (c *Controller) runLoad(ctx context.Context, gen int, pageURL string) {
	if c.probeDeadPage(ctx, gen) {
		return
	}

	if c.target != retailer.Woolworths {
		c.setStatus(gen, StateIdle, statusManualMode)
		return
	}

	u, err := url.Parse(pageURL)
	if err != nil || !c.target.IsRecipePath(u.Path) {
		return
	}

	c.mu.Lock()
	if c.shopTriggered || gen != c.generation {
		c.mu.Unlock()
		return
	}
	c.shopTriggered = true
	c.mu.Unlock()

	c.runShopSequence(ctx, gen)
}

// probeDeadPage scans visible text for the error-page signatures and, on a
// hit, fires the one-shot fallback redirect to the retailer search page.
func (c *Controller) probeDeadPage(ctx context.Context, gen int) bool {
	text, err := c.driver.VisibleText(ctx)
	if err != nil {
		c.logger.Debug().Err(err).Msg("visible text probe failed")
		return false
	}
	if !containsAny(strings.ToLower(text), errorPhrases) {
		return false
	}

	c.mu.Lock()
	if gen != c.generation || c.fallbackAttempted {
		c.mu.Unlock()
		return true
	}
	c.fallbackAttempted = true
	c.mu.Unlock()

	c.setStatus(gen, StatePageError, "")
	fallback := c.target.SearchURL(c.recipeName)
	c.logger.Info().Str("url", fallback).Msg("dead page detected, redirecting to retailer search")
	if err := c.driver.Navigate(ctx, fallback); err != nil {
		c.logger.Warn().Err(err).Msg("fallback redirect failed")
		return true
	}
	c.setStatus(gen, StateFallbackRedirected, "")
	return true
}

func (c *Controller) runShopSequence(ctx context.Context, gen int) {
	c.setStatus(gen, StateShopLookup, "")
	found := c.pollAndClick(ctx, gen, shopPhrases)
	if ctx.Err() != nil {
		return
	}
	if !found {
		c.setStatus(gen, StateShopFail, statusShopFail)
		return
	}
	c.setStatus(gen, StateShopSuccess, "")
	c.scheduleAdd(ctx, gen)
}

// scheduleAdd arms the add-to-cart sequence after the settle delay. Runs at
// most once per page load.
func (c *Controller) scheduleAdd(ctx context.Context, gen int) {
	c.mu.Lock()
	if c.addScheduled || gen != c.generation {
		c.mu.Unlock()
		return
	}
	c.addScheduled = true
	c.mu.Unlock()

	c.setStatus(gen, StateAddScheduled, "")
	select {
	case <-ctx.Done():
		return
	case <-time.After(c.settleDelay):
	}

	c.setStatus(gen, StateAddLookup, "")
	found := c.pollAndClick(ctx, gen, addPhrases)
	if ctx.Err() != nil {
		return
	}
	if !found {
		c.setStatus(gen, StateAddFail, statusAddFail)
		return
	}
	c.setStatus(gen, StateAddSuccess, "")
}

// pollAndClick is the shared polling algorithm for both sequences: scan the
// page's clickable elements for any of the target phrases every poll
// interval, click the first match in DOM order, give up at the attempt
// ceiling.
func (c *Controller) pollAndClick(ctx context.Context, gen int, phrases []string) bool {
	for attempt := 1; attempt <= c.maxPollAttempts; attempt++ {
		if c.stale(gen) {
			return false
		}
		clickables, err := c.driver.Clickables(ctx)
		if err != nil {
			c.logger.Debug().Err(err).Int("attempt", attempt).Msg("clickable scan failed")
		}
		for _, el := range clickables {
			if containsAny(strings.ToLower(el.Text), phrases) {
				if err := c.driver.Click(ctx, el.ID); err != nil {
					c.logger.Warn().Err(err).Str("text", el.Text).Msg("click failed")
					break
				}
				c.logger.Info().Str("text", el.Text).Int("attempt", attempt).Msg("clicked control")
				return true
			}
		}
		select {
		case <-ctx.Done():
			return false
		case <-time.After(c.pollInterval):
		}
	}
	return false
}

func (c *Controller) stale(gen int) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return gen != c.generation
}

func (c *Controller) setStatus(gen int, state State, status string) {
	c.mu.Lock()
	if gen != c.generation {
		c.mu.Unlock()
		return
	}
	c.state = state
	if status != "" {
		c.status = status
	}
	onSignal := c.onSignal
	c.mu.Unlock()

	c.logger.Debug().Stringer("state", state).Str("status", status).Msg("transition")
	if onSignal != nil {
		onSignal(Signal{State: state, Message: status})
	}
}

func containsAny(haystack string, phrases []string) bool {
	for _, p := range phrases {
		if strings.Contains(haystack, p) {
			return true
		}
	}
	return false
}
