package driven

import (
	"context"
	"errors"

	"github.com/ericfisherdev/bountywatch/internal/domain/model"
)

// Sentinel errors returned by ChannelAdapter implementations.
var (
	// ErrDeliveryFailed indicates a channel adapter exhausted its retries.
	// Other channels for the same event are unaffected.
	ErrDeliveryFailed = errors.New("delivery failed")
)

// ChannelAdapter defines the driven port for one notification transport.
// Send delivers the notification to the user over this channel, retrying
// transient failures internally; delivery is at-least-once, so receivers
// must tolerate duplicates.
type ChannelAdapter interface {
	Channel() model.Channel
	Send(ctx context.Context, pref model.NotificationPreference, n model.Notification) error
}
