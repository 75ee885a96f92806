package render

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

const (
	defaultMaxAttempts = 3
	defaultWorkers     = 1
	defaultTimeoutSecs = 90

	retryBaseDelay = 1 * time.Second
	retryMaxJitter = 500 * time.Millisecond

	maxErrorBodyLen = 500
)

// StatusError is a non-2xx reply from the rendering endpoint. The body is
// kept for logging only.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	body := e.Body
	if len(body) > maxErrorBodyLen {
		body = body[:maxErrorBodyLen] + "..."
	}
	return fmt.Sprintf("render %d: %s", e.Code, body)
}

// Retryable reports whether the status class is worth another attempt:
// 429 and 5xx only. Everything else is terminal.
func (e *StatusError) Retryable() bool {
	return e.Code == http.StatusTooManyRequests || e.Code >= 500
}

// Result is one element of a batch fetch, joined back by input index.
type Result struct {
	URL  string
	HTML string
	Err  error
}

// Client fetches fully rendered HTML through a remote headless-browser
// endpoint. Idempotent per URL; safe for concurrent use.
type Client struct {
	baseURL     string
	token       string
	maxAttempts int
	workers     int
	http        *http.Client
	logger      zerolog.Logger

	// backoff and sleep are swapped out in tests.
	backoffBase time.Duration
	sleep       func(ctx context.Context, d time.Duration) error
}

type Option func(*Client)

func WithMaxAttempts(n int) Option {
	return func(c *Client) {
		if n > 0 {
			c.maxAttempts = n
		}
	}
}

func WithWorkers(n int) Option {
	return func(c *Client) {
		if n > 0 {
			c.workers = n
		}
	}
}

func WithLogger(logger zerolog.Logger) Option {
	return func(c *Client) { c.logger = logger }
}

func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.http = h }
}

func NewClient(baseURL, token string, opts ...Option) *Client {
	c := &Client{
		baseURL:     strings.TrimRight(baseURL, "/"),
		token:       token,
		maxAttempts: defaultMaxAttempts,
		workers:     defaultWorkers,
		http: &http.Client{
			Timeout: defaultTimeoutSecs * time.Second,
		},
		logger:      zerolog.Nop(),
		backoffBase: retryBaseDelay,
		sleep:       sleepCtx,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type renderPayload struct {
	URL string `json:"url"`
}

// Fetch performs a single rendering round trip and returns the page HTML.
func (c *Client) Fetch(ctx context.Context, target string) (string, error) {
	body, err := json.Marshal(renderPayload{URL: target})
	if err != nil {
		return "", fmt.Errorf("marshal payload: %w", err)
	}
	endpoint := c.baseURL + "/content?token=" + c.token
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("http request: %w", err)
	}
	data, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	if err != nil {
		return "", fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", &StatusError{Code: resp.StatusCode, Body: string(data)}
	}
	return string(data), nil
}

// FetchWithRetry wraps Fetch with exponential backoff. The base delay doubles
// per attempt (1s, 2s, 4s, ...) with up to 500ms of random jitter. Terminal
// statuses abort immediately without consuming remaining attempts.
func (c *Client) FetchWithRetry(ctx context.Context, target string) (string, error) {
	var lastErr error
	for attempt := 1; attempt <= c.maxAttempts; attempt++ {
		if attempt > 1 {
			delay := c.backoffBase<<uint(attempt-2) + time.Duration(rand.Int63n(int64(retryMaxJitter)))
			c.logger.Info().
				Str("url", target).
				Int("attempt", attempt).
				Dur("delay", delay).
				Msg("retrying render fetch")
			if err := c.sleep(ctx, delay); err != nil {
				return "", err
			}
		}
		html, err := c.Fetch(ctx, target)
		if err == nil {
			return html, nil
		}
		lastErr = err
		if se, ok := err.(*StatusError); ok && !se.Retryable() {
			c.logger.Warn().Str("url", target).Int("status", se.Code).Msg("terminal render status")
			return "", err
		}
		c.logger.Warn().Str("url", target).Err(err).Int("attempt", attempt).Msg("render fetch failed")
	}
	return "", fmt.Errorf("max attempts exceeded: %w", lastErr)
}

// FetchAll renders a batch of URLs under a bounded worker pool. Results come
// back in input order regardless of completion order, with per-item errors
// carried inline so one bad URL never sinks the batch.
func (c *Client) FetchAll(ctx context.Context, targets []string) []Result {
	results := make([]Result, len(targets))
	jobs := make(chan int)

	var wg sync.WaitGroup
	for w := 0; w < c.workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				html, err := c.FetchWithRetry(ctx, targets[i])
				results[i] = Result{URL: targets[i], HTML: html, Err: err}
			}
		}()
	}

	for i := range targets {
		select {
		case jobs <- i:
		case <-ctx.Done():
			// Remaining items surface the cancellation.
			for j := i; j < len(targets); j++ {
				if results[j] == (Result{}) {
					results[j] = Result{URL: targets[j], Err: ctx.Err()}
				}
			}
			close(jobs)
			wg.Wait()
			return results
		}
	}
	close(jobs)
	wg.Wait()
	return results
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(d):
		return nil
	}
}
