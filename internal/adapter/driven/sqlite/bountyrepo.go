package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/ericfisherdev/bountywatch/internal/domain/model"
	"github.com/ericfisherdev/bountywatch/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.BountyStore = (*BountyRepo)(nil)

// BountyRepo is the SQLite implementation of the BountyStore port interface.
// Save writes the bounty row and its payment records in one transaction on
// the single writer connection, making the save atomic per bounty.
type BountyRepo struct {
	db *DB
}

// NewBountyRepo creates a new BountyRepo backed by the given DB.
func NewBountyRepo(db *DB) *BountyRepo {
	return &BountyRepo{db: db}
}

const bountyColumns = `
	id, issue_id, repo_full_name, amount_cents, currency, status, claimant_id,
	platform, criteria, deadline, confidence, claimed_at, started_at, completed_at,
	created_at, updated_at
`

// Create inserts a new bounty and returns its id. Payment records on a fresh
// bounty are ignored; bounties are created open with no payments.
func (r *BountyRepo) Create(ctx context.Context, b model.Bounty) (int64, error) {
	const query = `
		INSERT INTO bounties (
			issue_id, repo_full_name, amount_cents, currency, status, claimant_id,
			platform, criteria, deadline, confidence, claimed_at, started_at, completed_at,
			created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		RETURNING id
	`

	now := time.Now().UTC()
	createdAt := b.CreatedAt
	if createdAt.IsZero() {
		createdAt = now
	}

	var id int64
	err := r.db.Writer.QueryRowContext(ctx, query,
		b.IssueID, b.RepoFullName, b.AmountCents, b.Currency, string(b.Status), b.ClaimantID,
		b.Platform, b.Criteria, nullTime(b.Deadline), b.Confidence,
		nullTime(b.ClaimedAt), nullTime(b.StartedAt), nullTime(b.CompletedAt),
		formatTime(createdAt), formatTime(now),
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("create bounty for issue %d: %w", b.IssueID, err)
	}

	return id, nil
}

// Save updates a bounty and replaces nothing: the bounty row is updated and
// any payment records not yet stored are appended, all in one transaction.
func (r *BountyRepo) Save(ctx context.Context, b model.Bounty) error {
	tx, err := r.db.Writer.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin save bounty %d: %w", b.ID, err)
	}
	defer func() { _ = tx.Rollback() }()

	const update = `
		UPDATE bounties SET
			amount_cents = ?, currency = ?, status = ?, claimant_id = ?,
			platform = ?, criteria = ?, deadline = ?, confidence = ?,
			claimed_at = ?, started_at = ?, completed_at = ?, updated_at = ?
		WHERE id = ?
	`

	result, err := tx.ExecContext(ctx, update,
		b.AmountCents, b.Currency, string(b.Status), b.ClaimantID,
		b.Platform, b.Criteria, nullTime(b.Deadline), b.Confidence,
		nullTime(b.ClaimedAt), nullTime(b.StartedAt), nullTime(b.CompletedAt),
		formatTime(time.Now().UTC()), b.ID,
	)
	if err != nil {
		return fmt.Errorf("save bounty %d: %w", b.ID, err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("check rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("save bounty %d: %w", b.ID, driven.ErrBountyNotFound)
	}

	// Payment records are append-only: insert any with a zero id.
	const insertPayment = `
		INSERT INTO bounty_payments (bounty_id, amount_cents, currency, reference, recorded_at)
		VALUES (?, ?, ?, ?, ?)
	`
	for _, p := range b.Payments {
		if p.ID != 0 {
			continue
		}
		if _, err := tx.ExecContext(ctx, insertPayment,
			b.ID, p.AmountCents, p.Currency, p.Reference, formatTime(p.RecordedAt)); err != nil {
			return fmt.Errorf("append payment for bounty %d: %w", b.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit save bounty %d: %w", b.ID, err)
	}

	return nil
}

// GetByID retrieves a bounty with its payment records. Returns
// ErrBountyNotFound if it does not exist.
func (r *BountyRepo) GetByID(ctx context.Context, id int64) (*model.Bounty, error) {
	query := `SELECT ` + bountyColumns + ` FROM bounties WHERE id = ?`

	b, err := scanBounty(r.db.Reader.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("get bounty %d: %w", id, driven.ErrBountyNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get bounty %d: %w", id, err)
	}

	if err := r.loadPayments(ctx, b); err != nil {
		return nil, err
	}

	return b, nil
}

// GetByIssueID retrieves the bounty attached to an issue. Returns nil, nil
// when the issue has no bounty.
func (r *BountyRepo) GetByIssueID(ctx context.Context, issueID int64) (*model.Bounty, error) {
	query := `SELECT ` + bountyColumns + ` FROM bounties WHERE issue_id = ?`

	b, err := scanBounty(r.db.Reader.QueryRowContext(ctx, query, issueID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get bounty for issue %d: %w", issueID, err)
	}

	if err := r.loadPayments(ctx, b); err != nil {
		return nil, err
	}

	return b, nil
}

// ListByStatus returns all bounties in the given status, payments included,
// ordered by creation.
func (r *BountyRepo) ListByStatus(ctx context.Context, status model.BountyStatus) ([]model.Bounty, error) {
	query := `SELECT ` + bountyColumns + ` FROM bounties WHERE status = ? ORDER BY created_at`

	rows, err := r.db.Reader.QueryContext(ctx, query, string(status))
	if err != nil {
		return nil, fmt.Errorf("list bounties by status %s: %w", status, err)
	}
	defer rows.Close()

	var bounties []model.Bounty
	for rows.Next() {
		b, err := scanBounty(rows)
		if err != nil {
			return nil, fmt.Errorf("scan bounty: %w", err)
		}
		bounties = append(bounties, *b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate bounties: %w", err)
	}

	for i := range bounties {
		if err := r.loadPayments(ctx, &bounties[i]); err != nil {
			return nil, err
		}
	}

	return bounties, nil
}

func (r *BountyRepo) loadPayments(ctx context.Context, b *model.Bounty) error {
	const query = `
		SELECT id, bounty_id, amount_cents, currency, reference, recorded_at
		FROM bounty_payments WHERE bounty_id = ? ORDER BY id
	`

	rows, err := r.db.Reader.QueryContext(ctx, query, b.ID)
	if err != nil {
		return fmt.Errorf("load payments for bounty %d: %w", b.ID, err)
	}
	defer rows.Close()

	for rows.Next() {
		var p model.PaymentRecord
		var recordedAt string
		if err := rows.Scan(&p.ID, &p.BountyID, &p.AmountCents, &p.Currency, &p.Reference, &recordedAt); err != nil {
			return fmt.Errorf("scan payment: %w", err)
		}
		if p.RecordedAt, err = parseTime(recordedAt); err != nil {
			return fmt.Errorf("parse recorded_at: %w", err)
		}
		b.Payments = append(b.Payments, p)
	}

	return rows.Err()
}

func scanBounty(s scanner) (*model.Bounty, error) {
	var b model.Bounty
	var status, createdAt, updatedAt string
	var deadline, claimedAt, startedAt, completedAt sql.NullString

	err := s.Scan(&b.ID, &b.IssueID, &b.RepoFullName, &b.AmountCents, &b.Currency, &status,
		&b.ClaimantID, &b.Platform, &b.Criteria, &deadline, &b.Confidence,
		&claimedAt, &startedAt, &completedAt, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}

	b.Status = model.BountyStatus(status)

	if b.Deadline, err = parseNullTime(deadline); err != nil {
		return nil, fmt.Errorf("parse deadline: %w", err)
	}
	if b.ClaimedAt, err = parseNullTime(claimedAt); err != nil {
		return nil, fmt.Errorf("parse claimed_at: %w", err)
	}
	if b.StartedAt, err = parseNullTime(startedAt); err != nil {
		return nil, fmt.Errorf("parse started_at: %w", err)
	}
	if b.CompletedAt, err = parseNullTime(completedAt); err != nil {
		return nil, fmt.Errorf("parse completed_at: %w", err)
	}
	if b.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, fmt.Errorf("parse created_at: %w", err)
	}
	if b.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, fmt.Errorf("parse updated_at: %w", err)
	}

	return &b, nil
}
