// Package telegram delivers notifications through the Telegram Bot API.
package telegram

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

// Adapter sends notifications as Telegram messages via a bot. The chat id
// comes from the user's preferences.
type Adapter struct {
	apiURL   string
	botToken string
	client   *http.Client
	logger   *slog.Logger
}

// NewAdapter creates a Telegram channel adapter. apiURL overrides the Bot API
// base; pass "" for production.
func NewAdapter(apiURL, botToken string, logger *slog.Logger) *Adapter {
	if apiURL == "" {
		apiURL = "https://api.telegram.org"
	}
	return &Adapter{
		apiURL:   apiURL,
		botToken: botToken,
		client:   &http.Client{Timeout: 30 * time.Second},
		logger:   logger,
	}
}

// Channel identifies this adapter's transport.
func (a *Adapter) Channel() model.Channel {
	return model.ChannelTelegram
}

type sendMessageRequest struct {
	ChatID    string `json:"chat_id"`
	Text      string `json:"text"`
	ParseMode string `json:"parse_mode,omitempty"`
}

// Send posts the notification to the user's chat. Returns ErrDeliveryFailed
// once retries are exhausted.
func (a *Adapter) Send(ctx context.Context, pref model.NotificationPreference, n model.Notification) error {
	if pref.TelegramChatID == "" {
		return fmt.Errorf("user %s has no telegram chat id: %w", pref.UserID, driven.ErrDeliveryFailed)
	}

	text := fmt.Sprintf("*%s*\n\n%s", n.Title, n.Message)
	if n.IssueURL != "" {
		text += "\n\n" + n.IssueURL
	}

	err := retry.Do(
		func() error { return a.sendMessage(ctx, pref.TelegramChatID, text) },
		policy.ChannelBackoff(ctx)...,
	)
	if err != nil {
		a.logger.Warn("telegram delivery exhausted retries",
			"user", pref.UserID,
			"event", n.EventID,
			"error", err)
		return fmt.Errorf("send telegram message to chat %s: %v: %w", pref.TelegramChatID, err, driven.ErrDeliveryFailed)
	}

	a.logger.Info("telegram message delivered", "user", pref.UserID, "event", n.EventID)
	return nil
}

func (a *Adapter) sendMessage(ctx context.Context, chatID, text string) error {
	body, err := json.Marshal(sendMessageRequest{
		ChatID:    chatID,
		Text:      text,
		ParseMode: "Markdown",
	})
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	url := fmt.Sprintf("%s/bot%s/sendMessage", a.apiURL, a.botToken)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.client.Do(req)
	if err != nil {
		return fmt.Errorf("send message: %w", err)
	}
	defer func() {
		if closeErr := resp.Body.Close(); closeErr != nil {
			a.logger.Warn("failed to close response body", "error", closeErr)
		}
	}()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		// A malformed chat id or revoked token will never succeed.
		if resp.StatusCode >= 400 && resp.StatusCode < 500 && resp.StatusCode != http.StatusTooManyRequests {
			return retry.Unrecoverable(fmt.Errorf("telegram API returned HTTP %d", resp.StatusCode))
		}
		return fmt.Errorf("telegram API returned HTTP %d", resp.StatusCode)
	}

	return nil
}
