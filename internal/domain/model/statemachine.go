package model

import (
	"errors"
	"fmt"
	"time"
)

// Domain rule errors surfaced by the bounty state machine.
var (
	// ErrRejectedTransition indicates the requested status transition is not
	// legal from the bounty's current state.
	ErrRejectedTransition = errors.New("rejected transition")

	// ErrInvalidPaymentState indicates a payment append was attempted while
	// the bounty is not in a payable status.
	ErrInvalidPaymentState = errors.New("invalid payment state")
)

// TransitionKind identifies a requested bounty lifecycle transition.
type TransitionKind string

const (
	TransitionClaim          TransitionKind = "claim"
	TransitionStartWork      TransitionKind = "start_work"
	TransitionComplete       TransitionKind = "complete"
	TransitionCancel         TransitionKind = "cancel"
	TransitionDispute        TransitionKind = "dispute"
	TransitionResolveDispute TransitionKind = "resolve_dispute"
)

// TransitionEvent is a request to move a bounty through its lifecycle.
// ActorID is the claimant for claim events and the acting user otherwise.
// Resolution is only read for resolve_dispute and must be in_progress or
// cancelled.
type TransitionEvent struct {
	Kind       TransitionKind
	ActorID    string
	Resolution BountyStatus
	Reason     string
	At         time.Time
}

// StatusChange describes one accepted transition. Exactly one StatusChange is
// produced per accepted transition; replaying an already-applied event yields
// nil with no error.
type StatusChange struct {
	Old BountyStatus
	New BountyStatus
}

// Apply drives the bounty through the state machine:
//
//	open -> claimed -> in_progress -> completed
//	open -> cancelled
//	claimed | in_progress -> disputed -> in_progress | cancelled
//
// It mutates the bounty in place and returns the resulting StatusChange.
// A nil StatusChange with nil error means the event was an idempotent replay
// (already applied); callers must not emit a domain event for it. Rejected
// transitions return ErrRejectedTransition wrapped with the reason and leave
// the bounty unchanged.
func (b *Bounty) Apply(ev TransitionEvent) (*StatusChange, error) {
	at := ev.At
	if at.IsZero() {
		at = time.Now().UTC()
	}

	switch ev.Kind {
	case TransitionClaim:
		return b.applyClaim(ev, at)
	case TransitionStartWork:
		return b.applyStartWork(ev, at)
	case TransitionComplete:
		return b.applyComplete(at)
	case TransitionCancel:
		return b.applyCancel()
	case TransitionDispute:
		return b.applyDispute()
	case TransitionResolveDispute:
		return b.applyResolveDispute(ev)
	default:
		return nil, fmt.Errorf("unknown transition %q: %w", ev.Kind, ErrRejectedTransition)
	}
}

func (b *Bounty) applyClaim(ev TransitionEvent, at time.Time) (*StatusChange, error) {
	switch b.Status {
	case BountyStatusOpen:
		if ev.ActorID == "" {
			return nil, fmt.Errorf("claim requires a claimant: %w", ErrRejectedTransition)
		}
		b.ClaimantID = ev.ActorID
		b.ClaimedAt = &at
		return b.move(BountyStatusClaimed), nil
	case BountyStatusClaimed:
		if ev.ActorID == b.ClaimantID {
			return nil, nil // Same claimant re-claiming is a no-op.
		}
		return nil, fmt.Errorf("bounty already claimed by %s: %w", b.ClaimantID, ErrRejectedTransition)
	default:
		return nil, fmt.Errorf("cannot claim from %s: %w", b.Status, ErrRejectedTransition)
	}
}

func (b *Bounty) applyStartWork(ev TransitionEvent, at time.Time) (*StatusChange, error) {
	switch b.Status {
	case BountyStatusClaimed:
		b.StartedAt = &at
		return b.move(BountyStatusInProgress), nil
	case BountyStatusInProgress:
		if ev.ActorID == b.ClaimantID {
			return nil, nil
		}
		return nil, fmt.Errorf("work already started by %s: %w", b.ClaimantID, ErrRejectedTransition)
	default:
		return nil, fmt.Errorf("cannot start work from %s: %w", b.Status, ErrRejectedTransition)
	}
}

func (b *Bounty) applyComplete(at time.Time) (*StatusChange, error) {
	switch b.Status {
	case BountyStatusInProgress:
		if b.ClaimantID == "" {
			return nil, fmt.Errorf("cannot complete without a claimant: %w", ErrRejectedTransition)
		}
		b.CompletedAt = &at
		return b.move(BountyStatusCompleted), nil
	case BountyStatusCompleted:
		return nil, nil
	default:
		return nil, fmt.Errorf("cannot complete from %s: %w", b.Status, ErrRejectedTransition)
	}
}

func (b *Bounty) applyCancel() (*StatusChange, error) {
	switch b.Status {
	case BountyStatusOpen, BountyStatusDisputed:
		return b.move(BountyStatusCancelled), nil
	case BountyStatusCancelled:
		return nil, nil
	case BountyStatusCompleted:
		return nil, fmt.Errorf("cannot cancel a completed bounty: %w", ErrRejectedTransition)
	default:
		return nil, fmt.Errorf("cannot cancel from %s, dispute first: %w", b.Status, ErrRejectedTransition)
	}
}

func (b *Bounty) applyDispute() (*StatusChange, error) {
	switch b.Status {
	case BountyStatusClaimed, BountyStatusInProgress:
		return b.move(BountyStatusDisputed), nil
	case BountyStatusDisputed:
		return nil, nil
	default:
		return nil, fmt.Errorf("cannot dispute from %s: %w", b.Status, ErrRejectedTransition)
	}
}

func (b *Bounty) applyResolveDispute(ev TransitionEvent) (*StatusChange, error) {
	if b.Status != BountyStatusDisputed {
		return nil, fmt.Errorf("cannot resolve dispute from %s: %w", b.Status, ErrRejectedTransition)
	}
	switch ev.Resolution {
	case BountyStatusInProgress, BountyStatusCancelled:
		return b.move(ev.Resolution), nil
	default:
		return nil, fmt.Errorf("dispute must resolve to in_progress or cancelled, got %q: %w", ev.Resolution, ErrRejectedTransition)
	}
}

func (b *Bounty) move(to BountyStatus) *StatusChange {
	change := &StatusChange{Old: b.Status, New: to}
	b.Status = to
	return change
}

// CorrectAmount replaces the bounty amount after re-extraction. Corrections
// are only legal while the bounty is open; the same amount and currency is an
// idempotent no-op returning false.
func (b *Bounty) CorrectAmount(amountCents int64, currency string) (bool, error) {
	if b.Status != BountyStatusOpen {
		return false, fmt.Errorf("amount locked in status %s: %w", b.Status, ErrRejectedTransition)
	}
	if b.AmountCents == amountCents && b.Currency == currency {
		return false, nil
	}
	b.AmountCents = amountCents
	b.Currency = currency
	return true, nil
}

// AppendPayment records a payout against the bounty. Payments are only legal
// while the bounty is in_progress or completed; records are append-only.
func (b *Bounty) AppendPayment(p PaymentRecord) error {
	if b.Status != BountyStatusInProgress && b.Status != BountyStatusCompleted {
		return fmt.Errorf("payment in status %s: %w", b.Status, ErrInvalidPaymentState)
	}
	if p.RecordedAt.IsZero() {
		p.RecordedAt = time.Now().UTC()
	}
	if p.Currency == "" {
		p.Currency = b.Currency
	}
	b.Payments = append(b.Payments, p)
	return nil
}
