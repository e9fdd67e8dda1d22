package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/ericfisherdev/bountywatch/internal/domain/model"
	"github.com/ericfisherdev/bountywatch/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.PreferenceStore = (*PreferenceRepo)(nil)

// PreferenceRepo is the SQLite implementation of the PreferenceStore port
// interface.
type PreferenceRepo struct {
	db *DB
}

// NewPreferenceRepo creates a new PreferenceRepo backed by the given DB.
func NewPreferenceRepo(db *DB) *PreferenceRepo {
	return &PreferenceRepo{db: db}
}

// Upsert inserts or fully replaces a user's notification preferences.
func (r *PreferenceRepo) Upsert(ctx context.Context, pref model.NotificationPreference) error {
	const query = `
		INSERT INTO notification_preferences (
			user_id, inapp_enabled, email_enabled, telegram_enabled, webhook_enabled,
			email_address, telegram_chat_id, webhook_url,
			include_keywords, exclude_keywords, quiet_start, quiet_end, timezone,
			watched_repos, global_subscriber, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(user_id) DO UPDATE SET
			inapp_enabled = excluded.inapp_enabled,
			email_enabled = excluded.email_enabled,
			telegram_enabled = excluded.telegram_enabled,
			webhook_enabled = excluded.webhook_enabled,
			email_address = excluded.email_address,
			telegram_chat_id = excluded.telegram_chat_id,
			webhook_url = excluded.webhook_url,
			include_keywords = excluded.include_keywords,
			exclude_keywords = excluded.exclude_keywords,
			quiet_start = excluded.quiet_start,
			quiet_end = excluded.quiet_end,
			timezone = excluded.timezone,
			watched_repos = excluded.watched_repos,
			global_subscriber = excluded.global_subscriber,
			updated_at = excluded.updated_at
	`

	include, err := marshalStrings(pref.IncludeKeywords)
	if err != nil {
		return fmt.Errorf("marshal include keywords: %w", err)
	}
	exclude, err := marshalStrings(pref.ExcludeKeywords)
	if err != nil {
		return fmt.Errorf("marshal exclude keywords: %w", err)
	}
	watched, err := marshalStrings(pref.WatchedRepos)
	if err != nil {
		return fmt.Errorf("marshal watched repos: %w", err)
	}

	updatedAt := pref.UpdatedAt
	if updatedAt.IsZero() {
		updatedAt = time.Now().UTC()
	}

	_, err = r.db.Writer.ExecContext(ctx, query,
		pref.UserID, pref.InAppEnabled, pref.EmailEnabled, pref.TelegramEnabled, pref.WebhookEnabled,
		pref.EmailAddress, pref.TelegramChatID, pref.WebhookURL,
		include, exclude, pref.QuietStart, pref.QuietEnd, pref.Timezone,
		watched, pref.GlobalSubscriber, formatTime(updatedAt),
	)
	if err != nil {
		return fmt.Errorf("upsert preferences for %s: %w", pref.UserID, err)
	}

	return nil
}

// Get retrieves a user's preferences. Returns nil, nil if the user has none.
func (r *PreferenceRepo) Get(ctx context.Context, userID string) (*model.NotificationPreference, error) {
	query := `SELECT ` + preferenceColumns + ` FROM notification_preferences WHERE user_id = ?`

	pref, err := scanPreference(r.db.Reader.QueryRowContext(ctx, query, userID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get preferences for %s: %w", userID, err)
	}

	return pref, nil
}

// ListAll returns every user's preferences ordered by user id.
func (r *PreferenceRepo) ListAll(ctx context.Context) ([]model.NotificationPreference, error) {
	query := `SELECT ` + preferenceColumns + ` FROM notification_preferences ORDER BY user_id`

	rows, err := r.db.Reader.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list preferences: %w", err)
	}
	defer rows.Close()

	var prefs []model.NotificationPreference
	for rows.Next() {
		pref, err := scanPreference(rows)
		if err != nil {
			return nil, fmt.Errorf("scan preference: %w", err)
		}
		prefs = append(prefs, *pref)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate preferences: %w", err)
	}

	return prefs, nil
}

const preferenceColumns = `
	user_id, inapp_enabled, email_enabled, telegram_enabled, webhook_enabled,
	email_address, telegram_chat_id, webhook_url,
	include_keywords, exclude_keywords, quiet_start, quiet_end, timezone,
	watched_repos, global_subscriber, updated_at
`

func scanPreference(s scanner) (*model.NotificationPreference, error) {
	var pref model.NotificationPreference
	var include, exclude, watched, updatedAt string

	err := s.Scan(&pref.UserID, &pref.InAppEnabled, &pref.EmailEnabled, &pref.TelegramEnabled,
		&pref.WebhookEnabled, &pref.EmailAddress, &pref.TelegramChatID, &pref.WebhookURL,
		&include, &exclude, &pref.QuietStart, &pref.QuietEnd, &pref.Timezone,
		&watched, &pref.GlobalSubscriber, &updatedAt)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal([]byte(include), &pref.IncludeKeywords); err != nil {
		return nil, fmt.Errorf("unmarshal include keywords: %w", err)
	}
	if err := json.Unmarshal([]byte(exclude), &pref.ExcludeKeywords); err != nil {
		return nil, fmt.Errorf("unmarshal exclude keywords: %w", err)
	}
	if err := json.Unmarshal([]byte(watched), &pref.WatchedRepos); err != nil {
		return nil, fmt.Errorf("unmarshal watched repos: %w", err)
	}

	if pref.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, fmt.Errorf("parse updated_at: %w", err)
	}

	return &pref, nil
}

func marshalStrings(values []string) (string, error) {
	if values == nil {
		values = []string{}
	}
	data, err := json.Marshal(values)
	if err != nil {
		return "", err
	}
	return string(data), nil
}
