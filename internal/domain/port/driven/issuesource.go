package driven

import (
	"context"
	"errors"
	"time"

	"github.com/ericfisherdev/bountywatch/internal/domain/model"
)

// Sentinel errors returned by IssueSource implementations.
var (
	// ErrSourceUnavailable indicates the external issue source could not be
	// reached after exhausting retries. The caller skips the sync cycle and
	// leaves the cursor unchanged.
	ErrSourceUnavailable = errors.New("issue source unavailable")
)

// IssuePage is one page of issues fetched from the external source.
// NextCursor is the cursor to persist once the page is fully reconciled;
// HasMore signals that another page should be fetched with NextCursor.
type IssuePage struct {
	Issues     []model.Issue
	NextCursor time.Time
	HasMore    bool
}

// IssueSource defines the driven port for the external issue API. FetchIssues
// returns issues updated at or after the cursor for the given repository,
// oldest first. Implementations enforce the request budget internally;
// callers over budget block until it replenishes or ctx is canceled.
type IssueSource interface {
	FetchIssues(ctx context.Context, repoFullName string, cursor time.Time) (IssuePage, error)

	// SearchBountyIssues discovers bounty-bearing issues across GitHub via
	// the search API, independent of tracked repositories.
	SearchBountyIssues(ctx context.Context, query string, maxPages int) ([]model.Issue, error)
}
