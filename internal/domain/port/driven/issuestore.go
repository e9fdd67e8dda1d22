package driven

import (
	"context"

	"github.com/ericfisherdev/bountywatch/internal/domain/model"
)

// IssueStore defines the driven port for issue persistence. Upsert keys on
// the immutable GitHub id and overwrites title, body, labels, and state.
// Both getters return nil, nil when the issue is unknown.
type IssueStore interface {
	Upsert(ctx context.Context, issue model.Issue) (id int64, err error)
	GetByID(ctx context.Context, id int64) (*model.Issue, error)
	GetByGitHubID(ctx context.Context, githubID int64) (*model.Issue, error)
	ListByRepository(ctx context.Context, repoFullName string) ([]model.Issue, error)
}
