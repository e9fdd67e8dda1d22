package email

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ericfisherdev/bountywatch/internal/domain/model"
	"github.com/ericfisherdev/bountywatch/internal/domain/port/driven"
)

type fakeProvider struct {
	failures int
	calls    int
	lastTo   string
	lastSubj string
	lastBody string
}

func (f *fakeProvider) Send(_ context.Context, to, subject, htmlBody string) error {
	f.calls++
	f.lastTo = to
	f.lastSubj = subject
	f.lastBody = htmlBody
	if f.calls <= f.failures {
		return errors.New("temporary failure")
	}
	return nil
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func makeNotification() model.Notification {
	return model.Notification{
		EventID:     "ev-1",
		Kind:        model.EventBountyDetected,
		Title:       "New $250.00 bounty: Fix flaky parser",
		Message:     "A $250.00 bounty was detected on octocat/hello-world#1: Fix flaky parser",
		IssueURL:    "https://github.com/octocat/hello-world/issues/1",
		BountyID:    7,
		AmountCents: 25000,
		Currency:    "USD",
		CreatedAt:   time.Now().UTC(),
	}
}

func TestAdapter_Send(t *testing.T) {
	provider := &fakeProvider{}
	adapter := NewAdapter(provider, discardLogger())

	pref := model.NotificationPreference{UserID: "alice", EmailEnabled: true, EmailAddress: "alice@example.com"}

	err := adapter.Send(context.Background(), pref, makeNotification())
	require.NoError(t, err)

	assert.Equal(t, 1, provider.calls)
	assert.Equal(t, "alice@example.com", provider.lastTo)
	assert.Equal(t, "New $250.00 bounty: Fix flaky parser", provider.lastSubj)
	assert.Contains(t, provider.lastBody, "View the issue")
}

func TestAdapter_Send_RetriesTransientFailure(t *testing.T) {
	provider := &fakeProvider{failures: 1}
	adapter := NewAdapter(provider, discardLogger())

	pref := model.NotificationPreference{UserID: "alice", EmailAddress: "alice@example.com"}

	err := adapter.Send(context.Background(), pref, makeNotification())
	require.NoError(t, err)
	assert.Equal(t, 2, provider.calls)
}

func TestAdapter_Send_NoAddress(t *testing.T) {
	provider := &fakeProvider{}
	adapter := NewAdapter(provider, discardLogger())

	pref := model.NotificationPreference{UserID: "alice", EmailEnabled: true}

	err := adapter.Send(context.Background(), pref, makeNotification())
	assert.ErrorIs(t, err, driven.ErrDeliveryFailed)
	assert.Zero(t, provider.calls)
}

func TestRenderBody_SanitizesMarkup(t *testing.T) {
	n := makeNotification()
	n.Message = "Fix **this** <script>alert(1)</script>"

	body := RenderBody(n)

	assert.Contains(t, body, "<strong>this</strong>")
	assert.NotContains(t, body, "<script>")
	assert.Contains(t, body, `href="https://github.com/octocat/hello-world/issues/1"`)
}
