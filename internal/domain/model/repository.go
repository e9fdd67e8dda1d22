package model

import "time"

// Repository is a GitHub repository tracked for bounty-bearing issues.
// Cursor is the newest issue updated_at timestamp seen during a fully
// reconciled sync; it advances only after a complete page is processed.
type Repository struct {
	ID           int64
	FullName     string
	Owner        string
	Name         string
	Cursor       time.Time
	SyncInterval time.Duration
	LastSyncedAt time.Time
	AddedAt      time.Time
}

// DueForSync reports whether the repository's sync interval has elapsed
// since the last completed sync. A zero LastSyncedAt means never synced.
func (r Repository) DueForSync(now time.Time) bool {
	if r.LastSyncedAt.IsZero() {
		return true
	}
	interval := r.SyncInterval
	if interval <= 0 {
		return true
	}
	return now.Sub(r.LastSyncedAt) >= interval
}
