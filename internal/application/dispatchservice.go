package application

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/ericfisherdev/bountywatch/internal/domain/model"
	"github.com/ericfisherdev/bountywatch/internal/domain/port/driven"
)

// eventBuffer bounds the dispatcher's inbox. Producers block once it fills,
// which backpressures the sync loop instead of losing events.
const eventBuffer = 256

// channelRetries is recorded on failed delivery attempts; it mirrors the
// channel backoff policy's retry count.
const channelRetries = 3

// DispatchStatus is a point-in-time snapshot of dispatcher counters for the
// ops surface.
type DispatchStatus struct {
	EventsDispatched uint64 `json:"events_dispatched"`
	Delivered        uint64 `json:"delivered"`
	Failed           uint64 `json:"failed"`
	Skipped          uint64 `json:"skipped"`
}

// DispatchService consumes the ordered domain event stream and fans each
// event out to interested users over their enabled channels. Events are
// processed one at a time so users observe changes in commit order; channels
// within one event run concurrently.
type DispatchService struct {
	prefStore   driven.PreferenceStore
	deliveryLog driven.DeliveryLog
	channels    map[model.Channel]driven.ChannelAdapter

	// criticalKinds bypass quiet hours. Keyed by event kind; status changes
	// are additionally filtered to completion unless configured otherwise.
	criticalKinds map[model.EventKind]bool

	events chan model.DomainEvent

	mu     sync.Mutex
	status DispatchStatus

	now func() time.Time // Injectable for tests.
}

// NewDispatchService creates a dispatcher over the given channel adapters.
// criticalKinds may be nil, which defaults to bounty completions only.
func NewDispatchService(
	prefStore driven.PreferenceStore,
	deliveryLog driven.DeliveryLog,
	adapters []driven.ChannelAdapter,
	criticalKinds []model.EventKind,
) *DispatchService {
	channels := make(map[model.Channel]driven.ChannelAdapter, len(adapters))
	for _, a := range adapters {
		channels[a.Channel()] = a
	}

	critical := make(map[model.EventKind]bool, len(criticalKinds))
	for _, k := range criticalKinds {
		critical[k] = true
	}

	return &DispatchService{
		prefStore:     prefStore,
		deliveryLog:   deliveryLog,
		channels:      channels,
		criticalKinds: critical,
		events:        make(chan model.DomainEvent, eventBuffer),
		now:           func() time.Time { return time.Now().UTC() },
	}
}

// Publish enqueues a committed domain event for dispatch. Blocks when the
// buffer is full.
func (s *DispatchService) Publish(ev model.DomainEvent) {
	s.events <- ev
}

// Run consumes the event stream until the context is canceled. Events are
// handled strictly in arrival order.
func (s *DispatchService) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			slog.Info("dispatch service stopped")
			return
		case ev := <-s.events:
			s.dispatch(ctx, ev)
		}
	}
}

// Status returns a snapshot of the dispatcher counters.
func (s *DispatchService) Status() DispatchStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

// dispatch resolves the interested user set for one event and delivers to
// each user's enabled channels. Channel failures are isolated; every outcome
// is appended to the delivery log.
func (s *DispatchService) dispatch(ctx context.Context, ev model.DomainEvent) {
	prefs, err := s.prefStore.ListAll(ctx)
	if err != nil {
		slog.Error("list preferences failed, event dropped", "event", ev.ID, "error", err)
		return
	}

	n := model.NotificationFromEvent(ev)

	for _, pref := range prefs {
		if !s.interested(pref, ev) {
			continue
		}
		s.dispatchToUser(ctx, pref, ev, n)
	}

	s.mu.Lock()
	s.status.EventsDispatched++
	s.mu.Unlock()
}

// interested reports whether the user should hear about the event: watchers
// of the repo, global subscribers, and the bounty's claimant.
func (s *DispatchService) interested(pref model.NotificationPreference, ev model.DomainEvent) bool {
	if pref.Watches(ev.RepoFullName) {
		return true
	}
	return ev.ClaimantID != "" && pref.UserID == ev.ClaimantID
}

func (s *DispatchService) dispatchToUser(ctx context.Context, pref model.NotificationPreference, ev model.DomainEvent, n model.Notification) {
	now := s.now()

	quiet, err := pref.InQuietHours(now)
	if err != nil {
		slog.Warn("quiet hours evaluation failed, not suppressing",
			"user", pref.UserID, "error", err)
		quiet = false
	}
	if quiet && !s.critical(ev) {
		s.recordSkips(ctx, pref, n, model.DeliverySkippedQuietHours, "quiet hours")
		return
	}

	if pref.KeywordVerdict(n.Title + " " + n.Message) {
		s.recordSkips(ctx, pref, n, model.DeliverySkippedKeyword, "keyword filter")
		return
	}

	var wg sync.WaitGroup
	for ch, adapter := range s.channels {
		if !pref.ChannelEnabled(ch) {
			s.record(ctx, pref, n, ch, model.DeliverySkippedPreference, "channel disabled", 0)
			continue
		}

		wg.Add(1)
		go func() {
			defer wg.Done()
			s.deliver(ctx, adapter, pref, n)
		}()
	}
	wg.Wait()
}

// critical kinds bypass quiet hours. With no configuration only bounty
// completions qualify.
func (s *DispatchService) critical(ev model.DomainEvent) bool {
	if len(s.criticalKinds) == 0 {
		return ev.IsCompletion()
	}
	if !s.criticalKinds[ev.Kind] {
		return false
	}
	if ev.Kind == model.EventBountyStatusChanged {
		return ev.IsCompletion()
	}
	return true
}

func (s *DispatchService) deliver(ctx context.Context, adapter driven.ChannelAdapter, pref model.NotificationPreference, n model.Notification) {
	err := adapter.Send(ctx, pref, n)
	if err != nil {
		detail := err.Error()
		if !errors.Is(err, driven.ErrDeliveryFailed) {
			slog.Error("channel send failed without delivery error",
				"channel", adapter.Channel(), "user", pref.UserID, "error", err)
		}
		s.record(ctx, pref, n, adapter.Channel(), model.DeliveryFailed, detail, channelRetries)
		return
	}

	s.record(ctx, pref, n, adapter.Channel(), model.DeliveryDelivered, "", 0)
}

// recordSkips logs one skip attempt per enabled channel so the audit trail
// explains why nothing went out.
func (s *DispatchService) recordSkips(ctx context.Context, pref model.NotificationPreference, n model.Notification, outcome model.DeliveryOutcome, detail string) {
	for ch := range s.channels {
		if !pref.ChannelEnabled(ch) {
			continue
		}
		s.record(ctx, pref, n, ch, outcome, detail, 0)
	}
}

func (s *DispatchService) record(ctx context.Context, pref model.NotificationPreference, n model.Notification, ch model.Channel, outcome model.DeliveryOutcome, detail string, retries int) {
	attempt := model.DeliveryAttempt{
		EventID:     n.EventID,
		UserID:      pref.UserID,
		Channel:     ch,
		Outcome:     outcome,
		Detail:      detail,
		RetryCount:  retries,
		AttemptedAt: s.now(),
	}
	if err := s.deliveryLog.Append(ctx, attempt); err != nil {
		slog.Error("delivery log append failed",
			"event", n.EventID, "user", pref.UserID, "channel", ch, "error", err)
	}

	s.mu.Lock()
	switch outcome {
	case model.DeliveryDelivered:
		s.status.Delivered++
	case model.DeliveryFailed:
		s.status.Failed++
	default:
		s.status.Skipped++
	}
	s.mu.Unlock()
}
