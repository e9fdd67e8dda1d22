package driven

import (
	"context"
	"errors"
	"time"

	"github.com/ericfisherdev/bountywatch/internal/domain/model"
)

// Sentinel errors returned by RepoStore implementations.
var (
	// ErrRepoNotFound indicates the requested repository does not exist.
	ErrRepoNotFound = errors.New("repository not found")

	// ErrRepoAlreadyExists indicates a repository with the same name is
	// already tracked.
	ErrRepoAlreadyExists = errors.New("repository already exists")
)

// RepoStore defines the driven port for tracked-repository persistence.
// Add returns ErrRepoAlreadyExists if the repository is already tracked.
// Remove returns ErrRepoNotFound if the repository does not exist.
// SaveCursor persists the sync cursor and last-synced timestamp; it is the
// commit point of a repository sync.
type RepoStore interface {
	Add(ctx context.Context, repo model.Repository) error
	Remove(ctx context.Context, fullName string) error
	GetByFullName(ctx context.Context, fullName string) (*model.Repository, error)
	ListAll(ctx context.Context) ([]model.Repository, error)
	SaveCursor(ctx context.Context, fullName string, cursor, syncedAt time.Time) error
}
