package driven

import (
	"context"

	"github.com/ericfisherdev/bountywatch/internal/domain/model"
)

// DeliveryLog defines the driven port for the append-only delivery audit
// trail. Records are never updated or deleted.
type DeliveryLog interface {
	Append(ctx context.Context, attempt model.DeliveryAttempt) error
	ListByEvent(ctx context.Context, eventID string) ([]model.DeliveryAttempt, error)
}
