package sqlite

import (
	"context"
	"testing"
	"time"

	"github.com/ericfisherdev/bountywatch/internal/domain/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDeliveryRepo_AppendAndList(t *testing.T) {
	db := setupTestDB(t)
	repo := NewDeliveryRepo(db)
	ctx := context.Background()

	attemptedAt := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	require.NoError(t, repo.Append(ctx, model.DeliveryAttempt{
		EventID:     "ev-1",
		UserID:      "alice",
		Channel:     model.ChannelEmail,
		Outcome:     model.DeliveryFailed,
		Detail:      "smtp timeout",
		RetryCount:  3,
		AttemptedAt: attemptedAt,
	}))
	require.NoError(t, repo.Append(ctx, model.DeliveryAttempt{
		EventID:     "ev-1",
		UserID:      "alice",
		Channel:     model.ChannelInApp,
		Outcome:     model.DeliveryDelivered,
		AttemptedAt: attemptedAt,
	}))
	require.NoError(t, repo.Append(ctx, model.DeliveryAttempt{
		EventID:     "ev-2",
		UserID:      "bob",
		Channel:     model.ChannelTelegram,
		Outcome:     model.DeliverySkippedQuietHours,
		AttemptedAt: attemptedAt,
	}))

	attempts, err := repo.ListByEvent(ctx, "ev-1")
	require.NoError(t, err)
	require.Len(t, attempts, 2)

	assert.Equal(t, model.ChannelEmail, attempts[0].Channel)
	assert.Equal(t, model.DeliveryFailed, attempts[0].Outcome)
	assert.Equal(t, "smtp timeout", attempts[0].Detail)
	assert.Equal(t, 3, attempts[0].RetryCount)
	assert.True(t, attempts[0].AttemptedAt.Equal(attemptedAt))

	assert.Equal(t, model.ChannelInApp, attempts[1].Channel)
	assert.Equal(t, model.DeliveryDelivered, attempts[1].Outcome)
}

func TestDeliveryRepo_ListByEvent_Empty(t *testing.T) {
	db := setupTestDB(t)
	repo := NewDeliveryRepo(db)

	attempts, err := repo.ListByEvent(context.Background(), "nope")
	require.NoError(t, err)
	assert.Empty(t, attempts)
}
