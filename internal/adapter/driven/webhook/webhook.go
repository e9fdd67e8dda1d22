// Package webhook delivers notifications as JSON POSTs to a user-supplied URL.
package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/codeGROOVE-dev/retry"

	"github.com/ericfisherdev/bountywatch/internal/adapter/driven/policy"
	"github.com/ericfisherdev/bountywatch/internal/domain/model"
	"github.com/ericfisherdev/bountywatch/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.ChannelAdapter = (*Adapter)(nil)

// Adapter POSTs notification payloads to the URL in the user's preferences.
// Receivers must tolerate duplicate event ids.
type Adapter struct {
	client *http.Client
	logger *slog.Logger
}

// NewAdapter creates a webhook channel adapter.
func NewAdapter(logger *slog.Logger) *Adapter {
	return &Adapter{
		client: &http.Client{Timeout: 30 * time.Second},
		logger: logger,
	}
}

// Channel identifies this adapter's transport.
func (a *Adapter) Channel() model.Channel {
	return model.ChannelWebhook
}

// payload is the wire format posted to webhook receivers.
type payload struct {
	EventID     string    `json:"event_id"`
	Kind        string    `json:"kind"`
	Title       string    `json:"title"`
	Message     string    `json:"message"`
	IssueURL    string    `json:"issue_url,omitempty"`
	BountyID    int64     `json:"bounty_id,omitempty"`
	AmountCents int64     `json:"amount_cents,omitempty"`
	Currency    string    `json:"currency,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// Send posts the notification to the user's webhook URL. Any 2xx response
// counts as delivered. Returns ErrDeliveryFailed once retries are exhausted.
func (a *Adapter) Send(ctx context.Context, pref model.NotificationPreference, n model.Notification) error {
	if pref.WebhookURL == "" {
		return fmt.Errorf("user %s has no webhook url: %w", pref.UserID, driven.ErrDeliveryFailed)
	}

	body, err := json.Marshal(payload{
		EventID:     n.EventID,
		Kind:        string(n.Kind),
		Title:       n.Title,
		Message:     n.Message,
		IssueURL:    n.IssueURL,
		BountyID:    n.BountyID,
		AmountCents: n.AmountCents,
		Currency:    n.Currency,
		CreatedAt:   n.CreatedAt,
	})
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}

	err = retry.Do(
		func() error { return a.post(ctx, pref.WebhookURL, body) },
		policy.ChannelBackoff(ctx)...,
	)
	if err != nil {
		a.logger.Warn("webhook delivery exhausted retries",
			"user", pref.UserID,
			"event", n.EventID,
			"error", err)
		return fmt.Errorf("post webhook for %s: %v: %w", pref.UserID, err, driven.ErrDeliveryFailed)
	}

	a.logger.Info("webhook delivered", "user", pref.UserID, "event", n.EventID)
	return nil
}

func (a *Adapter) post(ctx context.Context, url string, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return retry.Unrecoverable(fmt.Errorf("create request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.client.Do(req)
	if err != nil {
		return fmt.Errorf("post webhook: %w", err)
	}
	defer func() {
		if closeErr := resp.Body.Close(); closeErr != nil {
			a.logger.Warn("failed to close response body", "error", closeErr)
		}
	}()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("webhook returned HTTP %d", resp.StatusCode)
	}

	return nil
}
