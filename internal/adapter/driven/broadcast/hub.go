// Package broadcast fans live notifications out to connected in-app clients.
// The hub does not own any transport; callers register whatever satisfies
// Conn (a websocket wrapper, an SSE writer, a test double).
package broadcast

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/ericfisherdev/bountywatch/internal/domain/model"
	"github.com/ericfisherdev/bountywatch/internal/domain/port/driven"
)

// Conn is one live connection to a user. WriteMessage must be safe to call
// from the client's single writer goroutine; Close unblocks any pending write.
type Conn interface {
	WriteMessage(data []byte) error
	Close() error
}

const (
	// defaultQueueSize bounds each client's pending message queue. On
	// overflow the oldest message is dropped so a slow reader never blocks
	// the hub.
	defaultQueueSize = 16

	// dedupeSize bounds the (event, user) ids remembered for duplicate
	// suppression.
	dedupeSize = 256
)

// Compile-time interface satisfaction check.
var _ driven.ChannelAdapter = (*Hub)(nil)

// Hub tracks connected clients per user and broadcasts payloads to them.
// It doubles as the in-app channel adapter: delivery is considered done once
// the payload is queued to every live client.
type Hub struct {
	mu      sync.Mutex
	clients map[string]map[*Client]struct{}

	queueSize int
	logger    *slog.Logger

	// seen is a fixed-size ring of (eventID, userID) keys; the dispatcher's
	// at-least-once contract means the same event can arrive twice.
	seen     map[string]struct{}
	seenFIFO []string

	dropped uint64
}

// NewHub creates an empty hub with the default per-client queue size.
func NewHub(logger *slog.Logger) *Hub {
	return &Hub{
		clients:   make(map[string]map[*Client]struct{}),
		queueSize: defaultQueueSize,
		logger:    logger,
		seen:      make(map[string]struct{}),
	}
}

// Client is one registered connection with its pending message queue.
type Client struct {
	hub    *Hub
	userID string
	conn   Conn
	queue  chan []byte
	once   sync.Once
	done   chan struct{}
}

// Register attaches a connection for the user and starts its writer. The
// returned client must be unregistered when the connection goes away.
func (h *Hub) Register(userID string, conn Conn) *Client {
	c := &Client{
		hub:    h,
		userID: userID,
		conn:   conn,
		queue:  make(chan []byte, h.queueSize),
		done:   make(chan struct{}),
	}

	h.mu.Lock()
	set, ok := h.clients[userID]
	if !ok {
		set = make(map[*Client]struct{})
		h.clients[userID] = set
	}
	set[c] = struct{}{}
	h.mu.Unlock()

	go c.writeLoop()

	h.logger.Debug("client registered", "user", userID)
	return c
}

// Unregister detaches the client and closes its connection. Safe to call more
// than once; later calls are no-ops.
func (h *Hub) Unregister(c *Client) {
	c.once.Do(func() {
		h.mu.Lock()
		if set, ok := h.clients[c.userID]; ok {
			delete(set, c)
			if len(set) == 0 {
				delete(h.clients, c.userID)
			}
		}
		h.mu.Unlock()

		close(c.done)
		_ = c.conn.Close()

		h.logger.Debug("client unregistered", "user", c.userID)
	})
}

// Broadcast queues the payload to every live client of the user. Absent users
// are a silent no-op. A full client queue drops its oldest message.
func (h *Hub) Broadcast(userID string, payload []byte) {
	h.mu.Lock()
	set := h.clients[userID]
	targets := make([]*Client, 0, len(set))
	for c := range set {
		targets = append(targets, c)
	}
	h.mu.Unlock()

	for _, c := range targets {
		c.enqueue(payload)
	}
}

// Stats reports connected client count and cumulative dropped messages for
// the ops surface.
func (h *Hub) Stats() (clients int, dropped uint64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, set := range h.clients {
		clients += len(set)
	}
	return clients, h.dropped
}

// Channel identifies this adapter's transport.
func (h *Hub) Channel() model.Channel {
	return model.ChannelInApp
}

// wirePayload is the JSON frame pushed to live clients.
type wirePayload struct {
	EventID     string    `json:"event_id"`
	Kind        string    `json:"kind"`
	Title       string    `json:"title"`
	Message     string    `json:"message"`
	IssueURL    string    `json:"issue_url,omitempty"`
	BountyID    int64     `json:"bounty_id,omitempty"`
	AmountCents int64     `json:"amount_cents,omitempty"`
	Currency    string    `json:"currency,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// Send implements the in-app channel: the notification is queued to all of
// the user's live clients. Duplicate (event, user) pairs are dropped, keeping
// redelivered events from reappearing on screen.
func (h *Hub) Send(_ context.Context, pref model.NotificationPreference, n model.Notification) error {
	if h.alreadySeen(n.EventID, pref.UserID) {
		return nil
	}

	data, err := json.Marshal(wirePayload{
		EventID:     n.EventID,
		Kind:        string(n.Kind),
		Title:       n.Title,
		Message:     n.Message,
		IssueURL:    n.IssueURL,
		BountyID:    n.BountyID,
		AmountCents: n.AmountCents,
		Currency:    n.Currency,
		CreatedAt:   n.CreatedAt,
	})
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}

	h.Broadcast(pref.UserID, data)
	return nil
}

func (h *Hub) alreadySeen(eventID, userID string) bool {
	key := eventID + "|" + userID

	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.seen[key]; ok {
		return true
	}
	h.seen[key] = struct{}{}
	h.seenFIFO = append(h.seenFIFO, key)
	if len(h.seenFIFO) > dedupeSize {
		oldest := h.seenFIFO[0]
		h.seenFIFO = h.seenFIFO[1:]
		delete(h.seen, oldest)
	}
	return false
}

func (c *Client) enqueue(payload []byte) {
	for {
		select {
		case c.queue <- payload:
			return
		case <-c.done:
			return
		default:
		}
		// Queue full: drop the oldest and try again.
		select {
		case <-c.queue:
			c.hub.mu.Lock()
			c.hub.dropped++
			c.hub.mu.Unlock()
		default:
		}
	}
}

func (c *Client) writeLoop() {
	for {
		select {
		case payload := <-c.queue:
			if err := c.conn.WriteMessage(payload); err != nil {
				c.hub.logger.Debug("client write failed", "user", c.userID, "error", err)
				c.hub.Unregister(c)
				return
			}
		case <-c.done:
			return
		}
	}
}
