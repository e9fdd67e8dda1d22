package sqlite

import (
	"context"
	"fmt"

	"github.com/ericfisherdev/bountywatch/internal/domain/model"
	"github.com/ericfisherdev/bountywatch/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.DeliveryLog = (*DeliveryRepo)(nil)

// DeliveryRepo is the SQLite implementation of the DeliveryLog port interface.
// The log is append-only; rows are never updated or deleted.
type DeliveryRepo struct {
	db *DB
}

// NewDeliveryRepo creates a new DeliveryRepo backed by the given DB.
func NewDeliveryRepo(db *DB) *DeliveryRepo {
	return &DeliveryRepo{db: db}
}

// Append records one delivery attempt.
func (r *DeliveryRepo) Append(ctx context.Context, attempt model.DeliveryAttempt) error {
	const query = `
		INSERT INTO delivery_attempts (event_id, user_id, channel, outcome, detail, retry_count, attempted_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`

	_, err := r.db.Writer.ExecContext(ctx, query,
		attempt.EventID, attempt.UserID, string(attempt.Channel), string(attempt.Outcome),
		attempt.Detail, attempt.RetryCount, formatTime(attempt.AttemptedAt),
	)
	if err != nil {
		return fmt.Errorf("append delivery attempt for event %s: %w", attempt.EventID, err)
	}

	return nil
}

// ListByEvent returns all delivery attempts for an event in insertion order.
func (r *DeliveryRepo) ListByEvent(ctx context.Context, eventID string) ([]model.DeliveryAttempt, error) {
	const query = `
		SELECT id, event_id, user_id, channel, outcome, detail, retry_count, attempted_at
		FROM delivery_attempts WHERE event_id = ? ORDER BY id
	`

	rows, err := r.db.Reader.QueryContext(ctx, query, eventID)
	if err != nil {
		return nil, fmt.Errorf("list delivery attempts for %s: %w", eventID, err)
	}
	defer rows.Close()

	var attempts []model.DeliveryAttempt
	for rows.Next() {
		var a model.DeliveryAttempt
		var channel, outcome, attemptedAt string
		if err := rows.Scan(&a.ID, &a.EventID, &a.UserID, &channel, &outcome, &a.Detail, &a.RetryCount, &attemptedAt); err != nil {
			return nil, fmt.Errorf("scan delivery attempt: %w", err)
		}
		a.Channel = model.Channel(channel)
		a.Outcome = model.DeliveryOutcome(outcome)
		if a.AttemptedAt, err = parseTime(attemptedAt); err != nil {
			return nil, fmt.Errorf("parse attempted_at: %w", err)
		}
		attempts = append(attempts, a)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate delivery attempts: %w", err)
	}

	return attempts, nil
}
