package model

import (
	"fmt"
	"strings"
	"time"
)

// Notification is the channel-agnostic payload handed to channel adapters.
type Notification struct {
	EventID     string
	Kind        EventKind
	Title       string
	Message     string
	IssueURL    string
	BountyID    int64
	AmountCents int64
	Currency    string
	CreatedAt   time.Time
}

// NotificationFromEvent renders a domain event into its notification payload.
func NotificationFromEvent(e DomainEvent) Notification {
	return Notification{
		EventID:     e.ID,
		Kind:        e.Kind,
		Title:       e.Title(),
		Message:     e.Message(),
		IssueURL:    e.IssueURL,
		BountyID:    e.BountyID,
		AmountCents: e.AmountCents,
		Currency:    e.Currency,
		CreatedAt:   e.OccurredAt,
	}
}

// NotificationPreference holds one user's delivery rules. It is owned by the
// user-facing surface and read-only to the dispatcher.
type NotificationPreference struct {
	UserID string

	InAppEnabled    bool
	EmailEnabled    bool
	TelegramEnabled bool
	WebhookEnabled  bool

	EmailAddress   string
	TelegramChatID string
	WebhookURL     string

	// IncludeKeywords, when non-empty, restricts delivery to events whose
	// text matches at least one entry. ExcludeKeywords always suppresses.
	IncludeKeywords []string
	ExcludeKeywords []string

	// Quiet hours window in the user's timezone, "HH:MM" 24h clock. The
	// window may wrap midnight (22:00-07:00). Empty start or end disables it.
	QuietStart string
	QuietEnd   string
	Timezone   string

	WatchedRepos     []string
	GlobalSubscriber bool

	UpdatedAt time.Time
}

// ChannelEnabled reports whether the given channel is switched on.
func (p NotificationPreference) ChannelEnabled(ch Channel) bool {
	switch ch {
	case ChannelInApp:
		return p.InAppEnabled
	case ChannelEmail:
		return p.EmailEnabled
	case ChannelTelegram:
		return p.TelegramEnabled
	case ChannelWebhook:
		return p.WebhookEnabled
	default:
		return false
	}
}

// Watches reports whether the user watches the given repository or subscribes
// globally.
func (p NotificationPreference) Watches(repoFullName string) bool {
	if p.GlobalSubscriber {
		return true
	}
	for _, r := range p.WatchedRepos {
		if strings.EqualFold(r, repoFullName) {
			return true
		}
	}
	return false
}

// InQuietHours reports whether now falls inside the user's quiet-hours window,
// computed in the user's timezone. An unset window or unknown timezone never
// suppresses.
func (p NotificationPreference) InQuietHours(now time.Time) (bool, error) {
	if p.QuietStart == "" || p.QuietEnd == "" {
		return false, nil
	}

	loc := time.UTC
	if p.Timezone != "" {
		parsed, err := time.LoadLocation(p.Timezone)
		if err != nil {
			return false, fmt.Errorf("load timezone %q: %w", p.Timezone, err)
		}
		loc = parsed
	}

	start, err := parseClock(p.QuietStart)
	if err != nil {
		return false, err
	}
	end, err := parseClock(p.QuietEnd)
	if err != nil {
		return false, err
	}

	local := now.In(loc)
	minute := local.Hour()*60 + local.Minute()

	if start == end {
		return false, nil
	}
	if start < end {
		return minute >= start && minute < end, nil
	}
	// Window wraps midnight.
	return minute >= start || minute < end, nil
}

// KeywordVerdict classifies event text against the include/exclude lists.
// Matching is case-insensitive substring. Exclusion wins over inclusion.
func (p NotificationPreference) KeywordVerdict(text string) (suppressed bool) {
	lower := strings.ToLower(text)
	for _, kw := range p.ExcludeKeywords {
		if kw != "" && strings.Contains(lower, strings.ToLower(kw)) {
			return true
		}
	}
	if len(p.IncludeKeywords) == 0 {
		return false
	}
	for _, kw := range p.IncludeKeywords {
		if kw != "" && strings.Contains(lower, strings.ToLower(kw)) {
			return false
		}
	}
	return true
}

func parseClock(s string) (int, error) {
	t, err := time.Parse("15:04", s)
	if err != nil {
		return 0, fmt.Errorf("parse clock %q: %w", s, err)
	}
	return t.Hour()*60 + t.Minute(), nil
}

// DeliveryAttempt is one append-only audit record of a notification delivery.
type DeliveryAttempt struct {
	ID          int64
	EventID     string
	UserID      string
	Channel     Channel
	Outcome     DeliveryOutcome
	Detail      string // Failure reason or skip cause, empty on success.
	RetryCount  int
	AttemptedAt time.Time
}
