package sqlite

import (
	"context"
	"testing"
	"time"

	"github.com/ericfisherdev/bountywatch/internal/domain/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func makePreference(userID string) model.NotificationPreference {
	return model.NotificationPreference{
		UserID:          userID,
		InAppEnabled:    true,
		EmailEnabled:    true,
		EmailAddress:    userID + "@example.com",
		IncludeKeywords: []string{"parser"},
		ExcludeKeywords: []string{"wontfix"},
		QuietStart:      "22:00",
		QuietEnd:        "07:00",
		Timezone:        "Europe/Berlin",
		WatchedRepos:    []string{"octocat/hello-world"},
		UpdatedAt:       time.Date(2026, 3, 10, 8, 0, 0, 0, time.UTC),
	}
}

func TestPreferenceRepo_UpsertAndGet(t *testing.T) {
	db := setupTestDB(t)
	repo := NewPreferenceRepo(db)
	ctx := context.Background()

	require.NoError(t, repo.Upsert(ctx, makePreference("alice")))

	got, err := repo.Get(ctx, "alice")
	require.NoError(t, err)
	require.NotNil(t, got)

	assert.True(t, got.InAppEnabled)
	assert.True(t, got.EmailEnabled)
	assert.False(t, got.TelegramEnabled)
	assert.Equal(t, "alice@example.com", got.EmailAddress)
	assert.Equal(t, []string{"parser"}, got.IncludeKeywords)
	assert.Equal(t, []string{"wontfix"}, got.ExcludeKeywords)
	assert.Equal(t, "22:00", got.QuietStart)
	assert.Equal(t, "Europe/Berlin", got.Timezone)
	assert.Equal(t, []string{"octocat/hello-world"}, got.WatchedRepos)
	assert.False(t, got.GlobalSubscriber)
}

func TestPreferenceRepo_Upsert_Replaces(t *testing.T) {
	db := setupTestDB(t)
	repo := NewPreferenceRepo(db)
	ctx := context.Background()

	require.NoError(t, repo.Upsert(ctx, makePreference("alice")))

	pref := makePreference("alice")
	pref.EmailEnabled = false
	pref.TelegramEnabled = true
	pref.TelegramChatID = "12345"
	pref.WatchedRepos = nil
	pref.GlobalSubscriber = true
	require.NoError(t, repo.Upsert(ctx, pref))

	got, err := repo.Get(ctx, "alice")
	require.NoError(t, err)
	require.NotNil(t, got)

	assert.False(t, got.EmailEnabled)
	assert.True(t, got.TelegramEnabled)
	assert.Equal(t, "12345", got.TelegramChatID)
	assert.Empty(t, got.WatchedRepos)
	assert.True(t, got.GlobalSubscriber)
}

func TestPreferenceRepo_Get_NotFound(t *testing.T) {
	db := setupTestDB(t)
	repo := NewPreferenceRepo(db)

	got, err := repo.Get(context.Background(), "nobody")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestPreferenceRepo_ListAll(t *testing.T) {
	db := setupTestDB(t)
	repo := NewPreferenceRepo(db)
	ctx := context.Background()

	require.NoError(t, repo.Upsert(ctx, makePreference("carol")))
	require.NoError(t, repo.Upsert(ctx, makePreference("alice")))
	require.NoError(t, repo.Upsert(ctx, makePreference("bob")))

	all, err := repo.ListAll(ctx)
	require.NoError(t, err)
	require.Len(t, all, 3)

	// Ordered by user_id
	assert.Equal(t, "alice", all[0].UserID)
	assert.Equal(t, "bob", all[1].UserID)
	assert.Equal(t, "carol", all[2].UserID)
}
