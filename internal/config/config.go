package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config is the full startup surface for both hosts. The core packages
// never read the environment themselves; everything flows in from here.
type Config struct {
	HTTPAddr     string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration

	RenderBaseURL    string
	RenderToken      string
	FetchMaxAttempts int
	FetchWorkers     int

	OpenAIAPIKey string
	OpenAIModel  string

	Headless bool
}

func Load() Config {
	return Config{
		HTTPAddr:         envOrDefault("CARTBRIDGE_HTTP_ADDR", ":8080"),
		ReadTimeout:      durationOrDefault("CARTBRIDGE_READ_TIMEOUT", 15*time.Second),
		WriteTimeout:     durationOrDefault("CARTBRIDGE_WRITE_TIMEOUT", 120*time.Second),
		IdleTimeout:      durationOrDefault("CARTBRIDGE_IDLE_TIMEOUT", 60*time.Second),
		RenderBaseURL:    envOrDefault("RENDER_BASE_URL", "https://html.api.radar.cloud"),
		RenderToken:      strings.TrimSpace(os.Getenv("RENDER_TOKEN")),
		FetchMaxAttempts: intOrDefault("FETCH_MAX_ATTEMPTS", 3),
		FetchWorkers:     intOrDefault("FETCH_WORKERS", 1),
		OpenAIAPIKey:     strings.TrimSpace(os.Getenv("OPENAI_API_KEY")),
		OpenAIModel:      envOrDefault("OPENAI_MODEL", "gpt-4o-mini"),
		Headless:         boolOrDefault("CARTAGENT_HEADLESS", false),
	}
}

func envOrDefault(name, def string) string {
	val := strings.TrimSpace(os.Getenv(name))
	if val == "" {
		return def
	}
	return val
}

func intOrDefault(name string, def int) int {
	val := strings.TrimSpace(os.Getenv(name))
	if val == "" {
		return def
	}
	n, err := strconv.Atoi(val)
	if err != nil || n <= 0 {
		return def
	}
	return n
}

func durationOrDefault(name string, def time.Duration) time.Duration {
	val := strings.TrimSpace(os.Getenv(name))
	if val == "" {
		return def
	}
	d, err := time.ParseDuration(val)
	if err != nil || d <= 0 {
		return def
	}
	return d
}

func boolOrDefault(name string, def bool) bool {
	val := strings.ToLower(strings.TrimSpace(os.Getenv(name)))
	switch val {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	default:
		return def
	}
}
