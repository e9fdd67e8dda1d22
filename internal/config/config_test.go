package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// allConfigKeys lists every BOUNTYWATCH_ env var that Load() reads.
var allConfigKeys = []string{
	"BOUNTYWATCH_GITHUB_TOKEN",
	"BOUNTYWATCH_POLL_INTERVAL",
	"BOUNTYWATCH_SYNC_CONCURRENCY",
	"BOUNTYWATCH_REQUESTS_PER_MINUTE",
	"BOUNTYWATCH_BURST",
	"BOUNTYWATCH_API_TIMEOUT",
	"BOUNTYWATCH_CONFIDENCE_THRESHOLD",
	"BOUNTYWATCH_BOUNTY_KEYWORDS",
	"BOUNTYWATCH_CRITICAL_EVENTS",
	"BOUNTYWATCH_LISTEN_ADDR",
	"BOUNTYWATCH_DB_PATH",
	"BOUNTYWATCH_EMAIL_API_URL",
	"BOUNTYWATCH_EMAIL_API_KEY",
	"BOUNTYWATCH_EMAIL_FROM",
	"BOUNTYWATCH_EMAIL_FROM_NAME",
	"BOUNTYWATCH_TELEGRAM_BOT_TOKEN",
	"BOUNTYWATCH_TELEGRAM_API_URL",
}

// isolateConfigEnv saves and unsets all BOUNTYWATCH_ env vars so tests don't
// inherit values from the host environment (e.g. a running dev server).
// t.Cleanup restores original values after the test.
func isolateConfigEnv(t *testing.T) {
	t.Helper()
	for _, key := range allConfigKeys {
		if orig, ok := os.LookupEnv(key); ok {
			t.Cleanup(func() { os.Setenv(key, orig) })
		} else {
			t.Cleanup(func() { os.Unsetenv(key) })
		}
		os.Unsetenv(key)
	}
}

func TestLoad_Success(t *testing.T) {
	isolateConfigEnv(t)
	t.Setenv("BOUNTYWATCH_GITHUB_TOKEN", "ghp_test123")
	t.Setenv("BOUNTYWATCH_POLL_INTERVAL", "10m")
	t.Setenv("BOUNTYWATCH_SYNC_CONCURRENCY", "8")
	t.Setenv("BOUNTYWATCH_REQUESTS_PER_MINUTE", "60")
	t.Setenv("BOUNTYWATCH_CONFIDENCE_THRESHOLD", "0.75")
	t.Setenv("BOUNTYWATCH_LISTEN_ADDR", "0.0.0.0:9090")
	t.Setenv("BOUNTYWATCH_DB_PATH", "/tmp/test.db")

	cfg, err := Load()

	require.NoError(t, err)
	assert.Equal(t, "ghp_test123", cfg.GitHubToken)
	assert.Equal(t, 10*time.Minute, cfg.PollInterval)
	assert.Equal(t, 8, cfg.SyncConcurrency)
	assert.Equal(t, 60, cfg.RequestsPerMinute)
	assert.Equal(t, 0.75, cfg.ConfidenceThreshold)
	assert.Equal(t, "0.0.0.0:9090", cfg.ListenAddr)
	assert.Equal(t, "/tmp/test.db", cfg.DBPath)
}

func TestLoad_Defaults(t *testing.T) {
	isolateConfigEnv(t)

	cfg, err := Load()

	require.NoError(t, err)
	assert.Equal(t, "", cfg.GitHubToken)
	assert.Equal(t, 5*time.Minute, cfg.PollInterval)
	assert.Equal(t, 4, cfg.SyncConcurrency)
	assert.Equal(t, 30, cfg.RequestsPerMinute)
	assert.Equal(t, 5, cfg.Burst)
	assert.Equal(t, 30*time.Second, cfg.APITimeout)
	assert.Equal(t, 0.5, cfg.ConfidenceThreshold)
	assert.Equal(t, "127.0.0.1:8080", cfg.ListenAddr)
	assert.Equal(t, "bountywatch.db", cfg.DBPath)
	assert.Equal(t, []string{}, cfg.BountyKeywords)
	assert.Equal(t, []string{}, cfg.CriticalEvents)
}

func TestLoad_InvalidPollInterval(t *testing.T) {
	isolateConfigEnv(t)
	t.Setenv("BOUNTYWATCH_POLL_INTERVAL", "not-a-duration")

	cfg, err := Load()

	assert.Nil(t, cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "BOUNTYWATCH_POLL_INTERVAL")
}

func TestLoad_InvalidConcurrency(t *testing.T) {
	isolateConfigEnv(t)
	t.Setenv("BOUNTYWATCH_SYNC_CONCURRENCY", "0")

	cfg, err := Load()

	assert.Nil(t, cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "BOUNTYWATCH_SYNC_CONCURRENCY")
}

func TestLoad_ThresholdOutOfRange(t *testing.T) {
	isolateConfigEnv(t)
	t.Setenv("BOUNTYWATCH_CONFIDENCE_THRESHOLD", "1.5")

	cfg, err := Load()

	assert.Nil(t, cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "BOUNTYWATCH_CONFIDENCE_THRESHOLD")
}

func TestLoad_Lists(t *testing.T) {
	isolateConfigEnv(t)
	t.Setenv("BOUNTYWATCH_BOUNTY_KEYWORDS", "bounty, reward ,prize")
	t.Setenv("BOUNTYWATCH_CRITICAL_EVENTS", "bounty_detected,bounty_status_changed")

	cfg, err := Load()

	require.NoError(t, err)
	assert.Equal(t, []string{"bounty", "reward", "prize"}, cfg.BountyKeywords)
	assert.Equal(t, []string{"bounty_detected", "bounty_status_changed"}, cfg.CriticalEvents)
}

func TestHasEmailCredentials(t *testing.T) {
	cfg := &Config{}
	assert.False(t, cfg.HasEmailCredentials())

	cfg.EmailAPIKey = "xkeysib-test"
	assert.False(t, cfg.HasEmailCredentials())

	cfg.EmailFrom = "bounties@example.com"
	assert.True(t, cfg.HasEmailCredentials())
}
