package model

// IssueState represents the upstream state of a tracked issue.
type IssueState string

const (
	IssueStateOpen   IssueState = "open"
	IssueStateClosed IssueState = "closed"
)

// BountyStatus represents the lifecycle state of a bounty.
type BountyStatus string

const (
	BountyStatusOpen       BountyStatus = "open"
	BountyStatusClaimed    BountyStatus = "claimed"
	BountyStatusInProgress BountyStatus = "in_progress"
	BountyStatusCompleted  BountyStatus = "completed"
	BountyStatusCancelled  BountyStatus = "cancelled"
	BountyStatusDisputed   BountyStatus = "disputed"
)

// IsTerminal reports whether no further transitions are possible from the status.
func (s BountyStatus) IsTerminal() bool {
	return s == BountyStatusCompleted || s == BountyStatusCancelled
}

// Channel identifies a notification delivery transport.
type Channel string

const (
	ChannelInApp    Channel = "inapp"
	ChannelEmail    Channel = "email"
	ChannelTelegram Channel = "telegram"
	ChannelWebhook  Channel = "webhook"
)

// DeliveryOutcome records what happened to a single delivery attempt.
type DeliveryOutcome string

const (
	DeliveryDelivered         DeliveryOutcome = "delivered"
	DeliveryFailed            DeliveryOutcome = "failed"
	DeliverySkippedPreference DeliveryOutcome = "skipped_preference"
	DeliverySkippedQuietHours DeliveryOutcome = "skipped_quiet_hours"
	DeliverySkippedKeyword    DeliveryOutcome = "skipped_keyword"
)
