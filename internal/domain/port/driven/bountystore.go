package driven

import (
	"context"
	"errors"

	"github.com/ericfisherdev/bountywatch/internal/domain/model"
)

// Sentinel errors returned by BountyStore implementations.
var (
	// ErrBountyNotFound indicates the requested bounty does not exist.
	ErrBountyNotFound = errors.New("bounty not found")
)

// BountyStore defines the driven port for bounty persistence. Save is atomic
// per bounty: status, fields, and payment records commit in one transaction.
// GetByIssueID returns nil, nil when the issue has no bounty.
type BountyStore interface {
	Create(ctx context.Context, bounty model.Bounty) (id int64, err error)
	Save(ctx context.Context, bounty model.Bounty) error
	GetByID(ctx context.Context, id int64) (*model.Bounty, error)
	GetByIssueID(ctx context.Context, issueID int64) (*model.Bounty, error)
	ListByStatus(ctx context.Context, status model.BountyStatus) ([]model.Bounty, error)
}
