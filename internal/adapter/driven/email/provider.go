// Package email delivers notifications over email via a pluggable provider.
package email

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/codeGROOVE-dev/retry"

	"github.com/ericfisherdev/bountywatch/internal/adapter/driven/policy"
	"github.com/ericfisherdev/bountywatch/internal/domain/model"
	"github.com/ericfisherdev/bountywatch/internal/domain/port/driven"
)

// Provider defines the interface for email sending implementations.
type Provider interface {
	// Send sends an email with the given parameters.
	Send(ctx context.Context, to, subject, htmlBody string) error
}

// Compile-time interface satisfaction check.
var _ driven.ChannelAdapter = (*Adapter)(nil)

// Adapter delivers notifications over email using a pluggable provider.
// Retries happen here so providers stay single-shot.
type Adapter struct {
	provider Provider
	logger   *slog.Logger
}

// NewAdapter creates an email channel adapter backed by the given provider.
func NewAdapter(provider Provider, logger *slog.Logger) *Adapter {
	return &Adapter{provider: provider, logger: logger}
}

// Channel identifies this adapter's transport.
func (a *Adapter) Channel() model.Channel {
	return model.ChannelEmail
}

// Send renders the notification and delivers it to the user's address.
// Returns ErrDeliveryFailed once retries are exhausted.
func (a *Adapter) Send(ctx context.Context, pref model.NotificationPreference, n model.Notification) error {
	if pref.EmailAddress == "" {
		return fmt.Errorf("user %s has no email address: %w", pref.UserID, driven.ErrDeliveryFailed)
	}

	body := RenderBody(n)

	err := retry.Do(
		func() error {
			sendCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
			defer cancel()
			return a.provider.Send(sendCtx, pref.EmailAddress, n.Title, body)
		},
		policy.ChannelBackoff(ctx)...,
	)
	if err != nil {
		a.logger.Warn("email delivery exhausted retries",
			"user", pref.UserID,
			"event", n.EventID,
			"error", err)
		return fmt.Errorf("send email to %s: %v: %w", pref.EmailAddress, err, driven.ErrDeliveryFailed)
	}

	a.logger.Info("email delivered", "user", pref.UserID, "event", n.EventID)
	return nil
}
