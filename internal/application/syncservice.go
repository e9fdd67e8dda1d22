package application

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/ericfisherdev/bountywatch/internal/domain/model"
	"github.com/ericfisherdev/bountywatch/internal/domain/port/driven"
	"github.com/ericfisherdev/bountywatch/internal/extract"
)

// refreshRequest represents a manual sync trigger for one repository.
type refreshRequest struct {
	repoFullName string
	done         chan error
}

// SyncService orchestrates periodic issue ingestion: it fetches updated
// issues per tracked repository, persists them, runs bounty extraction, and
// emits domain events for everything newly discovered.
type SyncService struct {
	source      driven.IssueSource
	repoStore   driven.RepoStore
	issueStore  driven.IssueStore
	bountyStore driven.BountyStore
	extractor   *extract.Extractor
	events      EventSink
	interval    time.Duration
	concurrency int
	refreshCh   chan refreshRequest

	// repoLocks prevents a scheduled cycle and a manual refresh from syncing
	// the same repository concurrently.
	repoLocks *keyedMutex
}

// NewSyncService creates a new SyncService with all required dependencies.
func NewSyncService(
	source driven.IssueSource,
	repoStore driven.RepoStore,
	issueStore driven.IssueStore,
	bountyStore driven.BountyStore,
	extractor *extract.Extractor,
	events EventSink,
	interval time.Duration,
	concurrency int,
) *SyncService {
	if concurrency < 1 {
		concurrency = 1
	}
	return &SyncService{
		source:      source,
		repoStore:   repoStore,
		issueStore:  issueStore,
		bountyStore: bountyStore,
		extractor:   extractor,
		events:      events,
		interval:    interval,
		concurrency: concurrency,
		refreshCh:   make(chan refreshRequest),
		repoLocks:   newKeyedMutex(),
	}
}

// Start begins the sync loop. It runs an immediate cycle, then syncs on the
// configured interval, and serves manual refresh requests in between. Start
// blocks until the context is canceled.
func (s *SyncService) Start(ctx context.Context) {
	if err := s.syncAll(ctx); err != nil {
		slog.Error("initial sync failed", "error", err)
	}

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("sync service stopped")
			return
		case <-ticker.C:
			if err := s.syncAll(ctx); err != nil {
				slog.Error("sync cycle failed", "error", err)
			}
		case req := <-s.refreshCh:
			req.done <- s.SyncRepo(ctx, req.repoFullName)
		}
	}
}

// RefreshRepo triggers a manual sync for a specific repository, bypassing the
// schedule. It blocks until the sync completes or the context is canceled.
func (s *SyncService) RefreshRepo(ctx context.Context, repoFullName string) error {
	done := make(chan error, 1)
	req := refreshRequest{repoFullName: repoFullName, done: done}

	select {
	case s.refreshCh <- req:
	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// syncAll runs one cycle over every tracked repository that is due, with
// bounded concurrency. A repository failure does not abort the cycle.
func (s *SyncService) syncAll(ctx context.Context) error {
	start := time.Now()

	repos, err := s.repoStore.ListAll(ctx)
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)

	var synced int
	for _, repo := range repos {
		if !repo.DueForSync(now) {
			continue
		}
		synced++

		g.Go(func() error {
			if err := s.SyncRepo(gctx, repo.FullName); err != nil {
				slog.Error("repo sync failed", "repo", repo.FullName, "error", err)
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return err
	}

	slog.Info("sync cycle complete",
		"repos", len(repos),
		"synced", synced,
		"duration", time.Since(start).Round(time.Millisecond),
	)

	return nil
}

// SyncRepo ingests all pending pages for a single repository. The cursor
// advances only after each page fully reconciles; a cursor-save failure
// aborts so the page is re-processed next run. Re-processing is idempotent
// and emits no duplicate events.
func (s *SyncService) SyncRepo(ctx context.Context, repoFullName string) error {
	if !s.repoLocks.TryLock(repoFullName) {
		slog.Info("repo sync already running, skipping", "repo", repoFullName)
		return nil
	}
	defer s.repoLocks.Unlock(repoFullName)

	repo, err := s.repoStore.GetByFullName(ctx, repoFullName)
	if err != nil {
		return err
	}
	if repo == nil {
		return driven.ErrRepoNotFound
	}

	cursor := repo.Cursor
	var pages, fetched, skipped int

	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		page, err := s.source.FetchIssues(ctx, repoFullName, cursor)
		if err != nil {
			if errors.Is(err, driven.ErrSourceUnavailable) {
				slog.Warn("issue source unavailable, cursor unchanged", "repo", repoFullName)
			}
			return err
		}

		pages++
		fetched += len(page.Issues)

		for _, issue := range page.Issues {
			changed, err := s.reconcileIssue(ctx, issue)
			if err != nil {
				slog.Error("issue reconcile failed",
					"repo", repoFullName, "issue", issue.Number, "error", err)
				continue
			}
			if !changed {
				skipped++
			}
		}

		if page.NextCursor.After(cursor) {
			cursor = page.NextCursor
		}
		if err := s.repoStore.SaveCursor(ctx, repoFullName, cursor, time.Now().UTC()); err != nil {
			return err
		}

		if !page.HasMore {
			break
		}
	}

	slog.Info("repo synced",
		"repo", repoFullName,
		"pages", pages,
		"fetched", fetched,
		"skipped_unchanged", skipped,
	)

	return nil
}

// DiscoverBounties searches the issue source for bounty-bearing issues across
// GitHub and reconciles the hits that belong to tracked repositories, through
// the same path as a scheduled sync. Returns the number of issues reconciled.
func (s *SyncService) DiscoverBounties(ctx context.Context, query string, maxPages int) (int, error) {
	if maxPages < 1 {
		maxPages = 1
	}

	issues, err := s.source.SearchBountyIssues(ctx, query, maxPages)
	if err != nil {
		return 0, err
	}

	repos, err := s.repoStore.ListAll(ctx)
	if err != nil {
		return 0, err
	}
	tracked := make(map[string]bool, len(repos))
	for _, r := range repos {
		tracked[strings.ToLower(r.FullName)] = true
	}

	var reconciled int
	for _, issue := range issues {
		if !tracked[strings.ToLower(issue.RepoFullName)] {
			continue
		}
		if _, err := s.reconcileIssue(ctx, issue); err != nil {
			slog.Error("discovered issue reconcile failed",
				"repo", issue.RepoFullName, "issue", issue.Number, "error", err)
			continue
		}
		reconciled++
	}

	slog.Info("bounty discovery complete",
		"found", len(issues),
		"reconciled", reconciled,
	)

	return reconciled, nil
}

// reconcileIssue persists one fetched issue and reconciles its bounty state.
// Returns false when the issue was unchanged and nothing was done.
func (s *SyncService) reconcileIssue(ctx context.Context, issue model.Issue) (bool, error) {
	stored, err := s.issueStore.GetByGitHubID(ctx, issue.GitHubID)
	if err != nil {
		return false, err
	}
	if stored != nil && stored.UpdatedAt.Equal(issue.UpdatedAt) {
		return false, nil
	}

	issueID, err := s.issueStore.Upsert(ctx, issue)
	if err != nil {
		return false, err
	}
	issue.ID = issueID

	if stored == nil {
		s.events.Publish(model.DomainEvent{
			ID:           uuid.NewString(),
			Kind:         model.EventIssueDiscovered,
			RepoFullName: issue.RepoFullName,
			IssueID:      issueID,
			IssueNumber:  issue.Number,
			IssueTitle:   issue.Title,
			IssueURL:     issue.URL,
			OccurredAt:   time.Now().UTC(),
		})
	}

	return true, s.reconcileBounty(ctx, issue)
}

// reconcileBounty runs extraction on the issue text and creates or corrects
// its bounty. Detecting the same amount again is a no-op.
func (s *SyncService) reconcileBounty(ctx context.Context, issue model.Issue) error {
	candidates, err := s.extractor.Extract(issue.Title, issue.Body)
	if err != nil {
		return err
	}
	if len(candidates) == 0 {
		return nil
	}
	top := candidates[0]

	bounty, err := s.bountyStore.GetByIssueID(ctx, issue.ID)
	if err != nil {
		return err
	}

	if bounty == nil {
		b := model.Bounty{
			IssueID:      issue.ID,
			RepoFullName: issue.RepoFullName,
			AmountCents:  top.AmountCents,
			Currency:     top.Currency,
			Status:       model.BountyStatusOpen,
			Platform:     extract.DetectPlatform(issue.Title + "\n" + issue.Body),
			Confidence:   top.Confidence,
		}
		id, err := s.bountyStore.Create(ctx, b)
		if err != nil {
			return err
		}

		s.events.Publish(model.DomainEvent{
			ID:           uuid.NewString(),
			Kind:         model.EventBountyDetected,
			RepoFullName: issue.RepoFullName,
			IssueID:      issue.ID,
			IssueNumber:  issue.Number,
			IssueTitle:   issue.Title,
			IssueURL:     issue.URL,
			BountyID:     id,
			AmountCents:  top.AmountCents,
			Currency:     top.Currency,
			OccurredAt:   time.Now().UTC(),
		})
		return nil
	}

	oldAmount := bounty.AmountCents
	changed, err := bounty.CorrectAmount(top.AmountCents, top.Currency)
	if err != nil {
		// Amount is locked once the bounty leaves open; not a sync failure.
		slog.Debug("bounty amount locked", "bounty", bounty.ID, "status", bounty.Status)
		return nil
	}
	if !changed {
		return nil
	}

	bounty.Confidence = top.Confidence
	if err := s.bountyStore.Save(ctx, *bounty); err != nil {
		return err
	}

	s.events.Publish(model.DomainEvent{
		ID:             uuid.NewString(),
		Kind:           model.EventBountyAmountCorrected,
		RepoFullName:   issue.RepoFullName,
		IssueID:        issue.ID,
		IssueNumber:    issue.Number,
		IssueTitle:     issue.Title,
		IssueURL:       issue.URL,
		BountyID:       bounty.ID,
		AmountCents:    top.AmountCents,
		OldAmountCents: oldAmount,
		Currency:       top.Currency,
		OccurredAt:     time.Now().UTC(),
	})

	return nil
}
