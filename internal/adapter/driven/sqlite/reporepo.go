package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ericfisherdev/bountywatch/internal/domain/model"
	"github.com/ericfisherdev/bountywatch/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.RepoStore = (*RepoRepo)(nil)

// RepoRepo is the SQLite implementation of the RepoStore port interface.
type RepoRepo struct {
	db *DB
}

// NewRepoRepo creates a new RepoRepo backed by the given DB.
func NewRepoRepo(db *DB) *RepoRepo {
	return &RepoRepo{db: db}
}

// Add inserts a new tracked repository. Returns ErrRepoAlreadyExists if a
// repository with the same full_name is already tracked.
func (r *RepoRepo) Add(ctx context.Context, repo model.Repository) error {
	const query = `
		INSERT INTO repositories (full_name, owner, name, cursor, sync_interval_seconds, last_synced_at, added_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`

	addedAt := repo.AddedAt
	if addedAt.IsZero() {
		addedAt = time.Now().UTC()
	}

	interval := int64(repo.SyncInterval / time.Second)
	if interval <= 0 {
		interval = 300
	}

	_, err := r.db.Writer.ExecContext(ctx, query,
		repo.FullName, repo.Owner, repo.Name,
		formatTime(repo.Cursor), interval, formatTime(repo.LastSyncedAt), formatTime(addedAt),
	)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint") {
			return fmt.Errorf("add repository %s: %w", repo.FullName, driven.ErrRepoAlreadyExists)
		}
		return fmt.Errorf("add repository %s: %w", repo.FullName, err)
	}

	return nil
}

// Remove deletes a repository by full name. Returns ErrRepoNotFound if the
// repository does not exist. Issues and bounties are kept; only tracking stops.
func (r *RepoRepo) Remove(ctx context.Context, fullName string) error {
	const query = `DELETE FROM repositories WHERE full_name = ?`

	result, err := r.db.Writer.ExecContext(ctx, query, fullName)
	if err != nil {
		return fmt.Errorf("remove repository %s: %w", fullName, err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("check rows affected: %w", err)
	}

	if rows == 0 {
		return fmt.Errorf("remove repository %s: %w", fullName, driven.ErrRepoNotFound)
	}

	return nil
}

// GetByFullName retrieves a repository by its full name. Returns nil, nil if
// the repository does not exist.
func (r *RepoRepo) GetByFullName(ctx context.Context, fullName string) (*model.Repository, error) {
	const query = `
		SELECT id, full_name, owner, name, cursor, sync_interval_seconds, last_synced_at, added_at
		FROM repositories WHERE full_name = ?
	`

	repo, err := scanRepository(r.db.Reader.QueryRowContext(ctx, query, fullName))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get repository %s: %w", fullName, err)
	}

	return repo, nil
}

// ListAll returns all tracked repositories ordered by full name.
func (r *RepoRepo) ListAll(ctx context.Context) ([]model.Repository, error) {
	const query = `
		SELECT id, full_name, owner, name, cursor, sync_interval_seconds, last_synced_at, added_at
		FROM repositories ORDER BY full_name
	`

	rows, err := r.db.Reader.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list repositories: %w", err)
	}
	defer rows.Close()

	var repos []model.Repository
	for rows.Next() {
		repo, err := scanRepository(rows)
		if err != nil {
			return nil, fmt.Errorf("scan repository: %w", err)
		}
		repos = append(repos, *repo)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate repositories: %w", err)
	}

	return repos, nil
}

// SaveCursor persists the sync cursor and last-synced timestamp. This is the
// commit point of a repository sync; a failure here aborts the sync so the
// page is re-processed on the next run.
func (r *RepoRepo) SaveCursor(ctx context.Context, fullName string, cursor, syncedAt time.Time) error {
	const query = `UPDATE repositories SET cursor = ?, last_synced_at = ? WHERE full_name = ?`

	result, err := r.db.Writer.ExecContext(ctx, query, formatTime(cursor), formatTime(syncedAt), fullName)
	if err != nil {
		return fmt.Errorf("save cursor for %s: %w", fullName, err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("check rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("save cursor for %s: %w", fullName, driven.ErrRepoNotFound)
	}

	return nil
}

func scanRepository(s scanner) (*model.Repository, error) {
	var repo model.Repository
	var cursor, lastSynced, addedAt string
	var intervalSeconds int64

	err := s.Scan(&repo.ID, &repo.FullName, &repo.Owner, &repo.Name, &cursor, &intervalSeconds, &lastSynced, &addedAt)
	if err != nil {
		return nil, err
	}

	repo.SyncInterval = time.Duration(intervalSeconds) * time.Second

	if repo.Cursor, err = parseTime(cursor); err != nil {
		return nil, fmt.Errorf("parse cursor: %w", err)
	}
	if repo.LastSyncedAt, err = parseTime(lastSynced); err != nil {
		return nil, fmt.Errorf("parse last_synced_at: %w", err)
	}
	if repo.AddedAt, err = parseTime(addedAt); err != nil {
		return nil, fmt.Errorf("parse added_at: %w", err)
	}

	return &repo, nil
}
