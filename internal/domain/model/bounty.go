package model

import "time"

// Bounty is a monetary reward attached to resolving a tracked issue.
// Amounts are integer cents. Status is mutated only through Apply; payment
// records are append-only via AppendPayment.
type Bounty struct {
	ID           int64
	IssueID      int64
	RepoFullName string
	AmountCents  int64
	Currency     string
	Status       BountyStatus
	ClaimantID   string
	Platform     string // Hosting bounty platform (gitcoin, algora, ...), "" if custom.
	Criteria     string // Acceptance criteria, free text.
	Deadline     *time.Time
	Confidence   float64 // Extraction confidence at detection time.

	ClaimedAt   *time.Time
	StartedAt   *time.Time
	CompletedAt *time.Time

	Payments []PaymentRecord

	CreatedAt time.Time
	UpdatedAt time.Time
}

// PaymentRecord is one payout recorded against a bounty.
type PaymentRecord struct {
	ID          int64
	BountyID    int64
	AmountCents int64
	Currency    string
	Reference   string // External payment reference (transaction id, invoice, ...).
	RecordedAt  time.Time
}

// TotalPaidCents sums all recorded payments.
func (b *Bounty) TotalPaidCents() int64 {
	var total int64
	for _, p := range b.Payments {
		total += p.AmountCents
	}
	return total
}

// IsHighValue reports whether the bounty is worth $200 or more.
func (b *Bounty) IsHighValue() bool {
	return b.AmountCents >= 20000
}

// DaysUntilDeadline returns the whole days remaining before the deadline,
// or -1 when no deadline is set.
func (b *Bounty) DaysUntilDeadline(now time.Time) int {
	if b.Deadline == nil {
		return -1
	}
	return int(b.Deadline.Sub(now).Hours() / 24)
}
