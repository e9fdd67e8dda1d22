package application

import (
	"context"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/ericfisherdev/bountywatch/internal/domain/model"
	"github.com/ericfisherdev/bountywatch/internal/domain/port/driven"
)

// BountyService is the single mutation point for bounty lifecycle state.
// Every transition is serialized per bounty id, driven through the state
// machine, persisted, and announced with exactly one status-changed event.
type BountyService struct {
	bountyStore driven.BountyStore
	issueStore  driven.IssueStore
	events      EventSink
	locks       *keyedMutex
}

// NewBountyService creates a new BountyService.
func NewBountyService(bountyStore driven.BountyStore, issueStore driven.IssueStore, events EventSink) *BountyService {
	return &BountyService{
		bountyStore: bountyStore,
		issueStore:  issueStore,
		events:      events,
		locks:       newKeyedMutex(),
	}
}

// Claim assigns the bounty to a claimant. Re-claiming by the same claimant is
// a no-op; a different claimant is rejected.
func (s *BountyService) Claim(ctx context.Context, bountyID int64, claimantID string) error {
	return s.transition(ctx, bountyID, model.TransitionEvent{
		Kind:    model.TransitionClaim,
		ActorID: claimantID,
	})
}

// StartWork moves a claimed bounty to in_progress.
func (s *BountyService) StartWork(ctx context.Context, bountyID int64, actorID string) error {
	return s.transition(ctx, bountyID, model.TransitionEvent{
		Kind:    model.TransitionStartWork,
		ActorID: actorID,
	})
}

// Complete finishes an in_progress bounty.
func (s *BountyService) Complete(ctx context.Context, bountyID int64, actorID string) error {
	return s.transition(ctx, bountyID, model.TransitionEvent{
		Kind:    model.TransitionComplete,
		ActorID: actorID,
	})
}

// Cancel cancels an open or disputed bounty. Claimed and in_progress
// bounties must go through a dispute first.
func (s *BountyService) Cancel(ctx context.Context, bountyID int64, actorID, reason string) error {
	return s.transition(ctx, bountyID, model.TransitionEvent{
		Kind:    model.TransitionCancel,
		ActorID: actorID,
		Reason:  reason,
	})
}

// Dispute flags a claimed or in_progress bounty as contested.
func (s *BountyService) Dispute(ctx context.Context, bountyID int64, actorID, reason string) error {
	return s.transition(ctx, bountyID, model.TransitionEvent{
		Kind:    model.TransitionDispute,
		ActorID: actorID,
		Reason:  reason,
	})
}

// ResolveDispute settles a disputed bounty back to in_progress or to
// cancelled.
func (s *BountyService) ResolveDispute(ctx context.Context, bountyID int64, actorID string, resolution model.BountyStatus) error {
	return s.transition(ctx, bountyID, model.TransitionEvent{
		Kind:       model.TransitionResolveDispute,
		ActorID:    actorID,
		Resolution: resolution,
	})
}

// RecordPayment appends a payout to an in_progress or completed bounty.
func (s *BountyService) RecordPayment(ctx context.Context, bountyID int64, payment model.PaymentRecord) error {
	key := lockKey(bountyID)
	s.locks.Lock(key)
	defer s.locks.Unlock(key)

	bounty, err := s.bountyStore.GetByID(ctx, bountyID)
	if err != nil {
		return err
	}

	if err := bounty.AppendPayment(payment); err != nil {
		return err
	}

	return s.bountyStore.Save(ctx, *bounty)
}

// transition loads the bounty, applies the event under the per-bounty lock,
// persists, and emits the status-changed event only if the transition was
// accepted and committed.
func (s *BountyService) transition(ctx context.Context, bountyID int64, ev model.TransitionEvent) error {
	key := lockKey(bountyID)
	s.locks.Lock(key)
	defer s.locks.Unlock(key)

	bounty, err := s.bountyStore.GetByID(ctx, bountyID)
	if err != nil {
		return err
	}

	change, err := bounty.Apply(ev)
	if err != nil {
		return err
	}
	if change == nil {
		// Idempotent replay: nothing persisted, nothing emitted.
		return nil
	}

	if err := s.bountyStore.Save(ctx, *bounty); err != nil {
		return err
	}

	event := model.DomainEvent{
		ID:           uuid.NewString(),
		Kind:         model.EventBountyStatusChanged,
		RepoFullName: bounty.RepoFullName,
		IssueID:      bounty.IssueID,
		BountyID:     bounty.ID,
		AmountCents:  bounty.AmountCents,
		Currency:     bounty.Currency,
		OldStatus:    change.Old,
		NewStatus:    change.New,
		ClaimantID:   bounty.ClaimantID,
		OccurredAt:   time.Now().UTC(),
	}

	// Issue detail enriches the notification text; a lookup failure only
	// degrades the message.
	if issue, err := s.issueStore.GetByID(ctx, bounty.IssueID); err == nil && issue != nil {
		event.IssueNumber = issue.Number
		event.IssueTitle = issue.Title
		event.IssueURL = issue.URL
	}

	s.events.Publish(event)
	return nil
}

func lockKey(bountyID int64) string {
	return strconv.FormatInt(bountyID, 10)
}
