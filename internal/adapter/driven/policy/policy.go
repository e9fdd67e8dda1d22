// Package policy centralizes the retry/backoff configuration applied at the
// two retrying boundaries: the external API client and the notification
// channel adapters. Call sites share these option sets instead of tuning
// retries locally.
package policy

import (
	"context"
	"log/slog"
	"time"

	"github.com/codeGROOVE-dev/retry"
)

// API client backoff: exponential, base 1s, factor 2, up to 5 retries after
// the initial attempt, with random jitter up to ±20% of the base delay.
const (
	apiAttempts  = 6
	apiBaseDelay = time.Second
	apiJitter    = 200 * time.Millisecond
)

// Channel adapter backoff: linear 2s, 4s, 6s, up to 3 retries after the
// initial attempt.
const (
	channelAttempts = 4
	channelStep     = 2 * time.Second
)

// APIBackoff returns the retry options for external issue source calls.
func APIBackoff(ctx context.Context) []retry.Option {
	return []retry.Option{
		retry.Attempts(apiAttempts),
		retry.Delay(apiBaseDelay),
		retry.DelayType(retry.CombineDelay(retry.BackOffDelay, retry.RandomDelay)),
		retry.MaxJitter(apiJitter),
		retry.Context(ctx),
		retry.LastErrorOnly(true),
		retry.OnRetry(func(n uint, err error) {
			slog.Warn("api call retrying", "attempt", n+1, "error", err)
		}),
	}
}

// ChannelBackoff returns the retry options for notification channel sends.
func ChannelBackoff(ctx context.Context) []retry.Option {
	return []retry.Option{
		retry.Attempts(channelAttempts),
		retry.DelayType(func(n uint, _ error, _ *retry.Config) time.Duration {
			return time.Duration(n+1) * channelStep
		}),
		retry.Context(ctx),
		retry.LastErrorOnly(true),
	}
}
