package email

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"
)

// BrevoProvider sends emails via the Brevo transactional email API.
type BrevoProvider struct {
	apiURL   string
	apiKey   string
	fromAddr string
	fromName string
	client   *http.Client
	logger   *slog.Logger
}

// NewBrevoProvider creates a new Brevo email provider. apiURL overrides the
// default endpoint; pass "" for production.
func NewBrevoProvider(apiURL, apiKey, fromAddr, fromName string, logger *slog.Logger) *BrevoProvider {
	if apiURL == "" {
		apiURL = "https://api.brevo.com/v3/smtp/email"
	}
	return &BrevoProvider{
		apiURL:   apiURL,
		apiKey:   apiKey,
		fromAddr: fromAddr,
		fromName: fromName,
		client:   &http.Client{Timeout: 30 * time.Second},
		logger:   logger,
	}
}

type brevoSendRequest struct {
	Sender  brevoContact   `json:"sender"`
	To      []brevoContact `json:"to"`
	Subject string         `json:"subject"`
	HTML    string         `json:"htmlContent"`
}

type brevoContact struct {
	Email string `json:"email"`
	Name  string `json:"name,omitempty"`
}

// Send delivers one email. No retries here; the channel adapter owns the
// backoff policy.
func (b *BrevoProvider) Send(ctx context.Context, to, subject, htmlBody string) error {
	reqBody := brevoSendRequest{
		Sender:  brevoContact{Email: b.fromAddr, Name: b.fromName},
		To:      []brevoContact{{Email: to}},
		Subject: subject,
		HTML:    htmlBody,
	}

	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, b.apiURL, bytes.NewReader(jsonData))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("api-key", b.apiKey)

	start := time.Now()
	resp, err := b.client.Do(req)
	if err != nil {
		return fmt.Errorf("send email: %w", err)
	}
	defer func() {
		if closeErr := resp.Body.Close(); closeErr != nil {
			b.logger.Warn("failed to close response body", "error", closeErr)
		}
	}()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("brevo API returned HTTP %d", resp.StatusCode)
	}

	b.logger.Debug("email sent via brevo",
		"to", to,
		"duration_ms", time.Since(start).Milliseconds())

	return nil
}
