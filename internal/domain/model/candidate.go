package model

// BountyCandidate is an unconfirmed bounty amount extracted from issue text.
// Candidates are ephemeral: the extractor produces them and reconciliation
// consumes them immediately; they are never persisted.
type BountyCandidate struct {
	AmountCents int64
	Currency    string
	Confidence  float64
	Span        string // The text fragment that produced the match.
}
