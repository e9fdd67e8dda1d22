package model

import (
	"fmt"
	"time"
)

// EventKind identifies a domain event. The set is closed; the dispatcher
// switches exhaustively over it.
type EventKind string

const (
	EventIssueDiscovered       EventKind = "issue_discovered"
	EventBountyDetected        EventKind = "bounty_detected"
	EventBountyStatusChanged   EventKind = "bounty_status_changed"
	EventBountyAmountCorrected EventKind = "bounty_amount_corrected"
)

// DomainEvent is an immutable record of one committed state change, emitted
// at most once per logical change. Fields beyond ID/Kind/OccurredAt are
// populated per kind: amount fields for detection and correction, status
// fields for status changes.
type DomainEvent struct {
	ID           string
	Kind         EventKind
	RepoFullName string
	IssueID      int64
	IssueNumber  int
	IssueTitle   string
	IssueURL     string
	BountyID     int64

	AmountCents    int64
	OldAmountCents int64
	Currency       string

	OldStatus  BountyStatus
	NewStatus  BountyStatus
	ClaimantID string

	OccurredAt time.Time
}

// Title returns a short human-readable subject line for the event.
func (e DomainEvent) Title() string {
	switch e.Kind {
	case EventIssueDiscovered:
		return fmt.Sprintf("New issue in %s: %s", e.RepoFullName, e.IssueTitle)
	case EventBountyDetected:
		return fmt.Sprintf("New %s bounty: %s", formatAmount(e.AmountCents, e.Currency), e.IssueTitle)
	case EventBountyStatusChanged:
		return fmt.Sprintf("Bounty %s: %s", e.NewStatus, e.IssueTitle)
	case EventBountyAmountCorrected:
		return fmt.Sprintf("Bounty amount updated: %s", e.IssueTitle)
	default:
		return e.IssueTitle
	}
}

// Message returns the notification body for the event. Channels render this
// as plain text or markdown as appropriate.
func (e DomainEvent) Message() string {
	switch e.Kind {
	case EventIssueDiscovered:
		return fmt.Sprintf("%s#%d was discovered: %s", e.RepoFullName, e.IssueNumber, e.IssueTitle)
	case EventBountyDetected:
		return fmt.Sprintf("A %s bounty was detected on %s#%d: %s",
			formatAmount(e.AmountCents, e.Currency), e.RepoFullName, e.IssueNumber, e.IssueTitle)
	case EventBountyStatusChanged:
		msg := fmt.Sprintf("Bounty on %s#%d moved from %s to %s",
			e.RepoFullName, e.IssueNumber, e.OldStatus, e.NewStatus)
		if e.ClaimantID != "" {
			msg += fmt.Sprintf(" (claimant %s)", e.ClaimantID)
		}
		return msg
	case EventBountyAmountCorrected:
		return fmt.Sprintf("Bounty on %s#%d corrected from %s to %s",
			e.RepoFullName, e.IssueNumber,
			formatAmount(e.OldAmountCents, e.Currency), formatAmount(e.AmountCents, e.Currency))
	default:
		return e.IssueTitle
	}
}

// IsCompletion reports whether the event announces a bounty reaching
// completed. Completion events bypass quiet hours by default.
func (e DomainEvent) IsCompletion() bool {
	return e.Kind == EventBountyStatusChanged && e.NewStatus == BountyStatusCompleted
}

func formatAmount(cents int64, currency string) string {
	symbol := map[string]string{"USD": "$", "EUR": "€", "GBP": "£"}[currency]
	if symbol == "" {
		return fmt.Sprintf("%d.%02d %s", cents/100, cents%100, currency)
	}
	return fmt.Sprintf("%s%d.%02d", symbol, cents/100, cents%100)
}
