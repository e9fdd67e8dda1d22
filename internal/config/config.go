// Package config loads application configuration from environment variables.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds the application configuration loaded from environment variables.
type Config struct {
	GitHubToken string

	PollInterval      time.Duration
	SyncConcurrency   int
	RequestsPerMinute int
	Burst             int
	APITimeout        time.Duration

	ConfidenceThreshold float64
	BountyKeywords      []string
	CriticalEvents      []string

	ListenAddr string
	DBPath     string

	EmailAPIURL   string
	EmailAPIKey   string
	EmailFrom     string
	EmailFromName string

	TelegramBotToken string
	TelegramAPIURL   string
}

// HasEmailCredentials returns true when the email provider is fully
// configured. Used by the composition root to decide between the real
// provider and the mock at startup.
func (c *Config) HasEmailCredentials() bool {
	return c.EmailAPIKey != "" && c.EmailFrom != ""
}

// Load reads configuration from environment variables and returns a validated
// Config. BOUNTYWATCH_GITHUB_TOKEN is optional; without it the GitHub client
// runs unauthenticated against the much lower anonymous rate limit.
// Optional variables with defaults: BOUNTYWATCH_POLL_INTERVAL (5m),
// BOUNTYWATCH_SYNC_CONCURRENCY (4), BOUNTYWATCH_REQUESTS_PER_MINUTE (30),
// BOUNTYWATCH_BURST (5), BOUNTYWATCH_API_TIMEOUT (30s),
// BOUNTYWATCH_CONFIDENCE_THRESHOLD (0.5), BOUNTYWATCH_LISTEN_ADDR
// (127.0.0.1:8080), BOUNTYWATCH_DB_PATH (bountywatch.db).
func Load() (*Config, error) {
	cfg := &Config{
		GitHubToken:         os.Getenv("BOUNTYWATCH_GITHUB_TOKEN"),
		PollInterval:        5 * time.Minute,
		SyncConcurrency:     4,
		RequestsPerMinute:   30,
		Burst:               5,
		APITimeout:          30 * time.Second,
		ConfidenceThreshold: 0.5,
		ListenAddr:          "127.0.0.1:8080",
		DBPath:              "bountywatch.db",
		EmailAPIURL:         os.Getenv("BOUNTYWATCH_EMAIL_API_URL"),
		EmailAPIKey:         os.Getenv("BOUNTYWATCH_EMAIL_API_KEY"),
		EmailFrom:           os.Getenv("BOUNTYWATCH_EMAIL_FROM"),
		EmailFromName:       os.Getenv("BOUNTYWATCH_EMAIL_FROM_NAME"),
		TelegramBotToken:    os.Getenv("BOUNTYWATCH_TELEGRAM_BOT_TOKEN"),
		TelegramAPIURL:      os.Getenv("BOUNTYWATCH_TELEGRAM_API_URL"),
	}

	var err error
	if cfg.PollInterval, err = durationEnv("BOUNTYWATCH_POLL_INTERVAL", cfg.PollInterval); err != nil {
		return nil, err
	}
	if cfg.APITimeout, err = durationEnv("BOUNTYWATCH_API_TIMEOUT", cfg.APITimeout); err != nil {
		return nil, err
	}
	if cfg.SyncConcurrency, err = intEnv("BOUNTYWATCH_SYNC_CONCURRENCY", cfg.SyncConcurrency); err != nil {
		return nil, err
	}
	if cfg.RequestsPerMinute, err = intEnv("BOUNTYWATCH_REQUESTS_PER_MINUTE", cfg.RequestsPerMinute); err != nil {
		return nil, err
	}
	if cfg.Burst, err = intEnv("BOUNTYWATCH_BURST", cfg.Burst); err != nil {
		return nil, err
	}
	if cfg.ConfidenceThreshold, err = floatEnv("BOUNTYWATCH_CONFIDENCE_THRESHOLD", cfg.ConfidenceThreshold); err != nil {
		return nil, err
	}

	if cfg.SyncConcurrency < 1 {
		return nil, fmt.Errorf("BOUNTYWATCH_SYNC_CONCURRENCY must be at least 1, got %d", cfg.SyncConcurrency)
	}
	if cfg.RequestsPerMinute < 1 {
		return nil, fmt.Errorf("BOUNTYWATCH_REQUESTS_PER_MINUTE must be at least 1, got %d", cfg.RequestsPerMinute)
	}
	if cfg.ConfidenceThreshold < 0 || cfg.ConfidenceThreshold > 1 {
		return nil, fmt.Errorf("BOUNTYWATCH_CONFIDENCE_THRESHOLD must be between 0 and 1, got %g", cfg.ConfidenceThreshold)
	}

	if v, ok := os.LookupEnv("BOUNTYWATCH_LISTEN_ADDR"); ok {
		cfg.ListenAddr = v
	}
	if v, ok := os.LookupEnv("BOUNTYWATCH_DB_PATH"); ok {
		cfg.DBPath = v
	}

	cfg.BountyKeywords = listEnv("BOUNTYWATCH_BOUNTY_KEYWORDS")
	cfg.CriticalEvents = listEnv("BOUNTYWATCH_CRITICAL_EVENTS")

	return cfg, nil
}

func durationEnv(key string, fallback time.Duration) (time.Duration, error) {
	v, ok := os.LookupEnv(key)
	if !ok {
		return fallback, nil
	}
	parsed, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s has invalid duration %q: %w", key, v, err)
	}
	return parsed, nil
}

func intEnv(key string, fallback int) (int, error) {
	v, ok := os.LookupEnv(key)
	if !ok {
		return fallback, nil
	}
	parsed, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s has invalid integer %q: %w", key, v, err)
	}
	return parsed, nil
}

func floatEnv(key string, fallback float64) (float64, error) {
	v, ok := os.LookupEnv(key)
	if !ok {
		return fallback, nil
	}
	parsed, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("%s has invalid number %q: %w", key, v, err)
	}
	return parsed, nil
}

// listEnv parses a comma-separated env var, trimming whitespace and dropping
// empty entries. Returns an empty slice when the var is unset.
func listEnv(key string) []string {
	out := []string{}
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return out
	}
	for _, item := range strings.Split(v, ",") {
		item = strings.TrimSpace(item)
		if item != "" {
			out = append(out, item)
		}
	}
	return out
}
