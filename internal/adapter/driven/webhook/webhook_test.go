package webhook

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ericfisherdev/bountywatch/internal/domain/model"
	"github.com/ericfisherdev/bountywatch/internal/domain/port/driven"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestAdapter_Send(t *testing.T) {
	var got payload
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusAccepted)
	}))
	defer server.Close()

	adapter := NewAdapter(discardLogger())
	pref := model.NotificationPreference{UserID: "alice", WebhookEnabled: true, WebhookURL: server.URL}

	n := model.Notification{
		EventID:     "ev-1",
		Kind:        model.EventBountyStatusChanged,
		Title:       "Bounty completed: Fix flaky parser",
		Message:     "Bounty on octocat/hello-world#1 moved from in_progress to completed",
		BountyID:    7,
		AmountCents: 25000,
		Currency:    "USD",
		CreatedAt:   time.Now().UTC(),
	}

	require.NoError(t, adapter.Send(context.Background(), pref, n))

	assert.Equal(t, "ev-1", got.EventID)
	assert.Equal(t, "bounty_status_changed", got.Kind)
	assert.Equal(t, int64(7), got.BountyID)
	assert.Equal(t, int64(25000), got.AmountCents)
}

func TestAdapter_Send_NoURL(t *testing.T) {
	adapter := NewAdapter(discardLogger())
	pref := model.NotificationPreference{UserID: "alice", WebhookEnabled: true}

	err := adapter.Send(context.Background(), pref, model.Notification{EventID: "ev-1"})
	assert.ErrorIs(t, err, driven.ErrDeliveryFailed)
}

func TestAdapter_Send_RetriesServerError(t *testing.T) {
	var calls int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls++
		if calls == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	adapter := NewAdapter(discardLogger())
	pref := model.NotificationPreference{UserID: "alice", WebhookURL: server.URL}

	require.NoError(t, adapter.Send(context.Background(), pref, model.Notification{EventID: "ev-1"}))
	assert.Equal(t, 2, calls)
}
