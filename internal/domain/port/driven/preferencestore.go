package driven

import (
	"context"

	"github.com/ericfisherdev/bountywatch/internal/domain/model"
)

// PreferenceStore defines the driven port for notification preferences.
// Preferences are owned by the user-facing surface; the dispatcher only
// reads them. Get returns nil, nil for unknown users.
type PreferenceStore interface {
	Upsert(ctx context.Context, pref model.NotificationPreference) error
	Get(ctx context.Context, userID string) (*model.NotificationPreference, error)
	ListAll(ctx context.Context) ([]model.NotificationPreference, error)
}
