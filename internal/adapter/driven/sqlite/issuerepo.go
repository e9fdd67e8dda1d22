package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/ericfisherdev/bountywatch/internal/domain/model"
	"github.com/ericfisherdev/bountywatch/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.IssueStore = (*IssueRepo)(nil)

// IssueRepo is the SQLite implementation of the IssueStore port interface.
type IssueRepo struct {
	db *DB
}

// NewIssueRepo creates a new IssueRepo backed by the given DB.
func NewIssueRepo(db *DB) *IssueRepo {
	return &IssueRepo{db: db}
}

// Upsert inserts or updates an issue keyed on its immutable GitHub id. Title,
// body, labels, state, and revision markers are overwritten on conflict. The
// local row id is returned for bounty foreign keys.
func (r *IssueRepo) Upsert(ctx context.Context, issue model.Issue) (int64, error) {
	const query = `
		INSERT INTO issues (github_id, repo_full_name, number, title, body, labels, state, url, updated_at, fetched_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(github_id) DO UPDATE SET
			title = excluded.title,
			body = excluded.body,
			labels = excluded.labels,
			state = excluded.state,
			url = excluded.url,
			updated_at = excluded.updated_at,
			fetched_at = excluded.fetched_at
		RETURNING id
	`

	labels := issue.Labels
	if labels == nil {
		labels = []string{}
	}
	labelsJSON, err := json.Marshal(labels)
	if err != nil {
		return 0, fmt.Errorf("marshal labels: %w", err)
	}

	var id int64
	err = r.db.Writer.QueryRowContext(ctx, query,
		issue.GitHubID, issue.RepoFullName, issue.Number, issue.Title, issue.Body,
		string(labelsJSON), string(issue.State), issue.URL,
		formatTime(issue.UpdatedAt), formatTime(issue.FetchedAt),
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("upsert issue %d: %w", issue.GitHubID, err)
	}

	return id, nil
}

// GetByID retrieves an issue by its local row id. Returns nil, nil if the
// issue is unknown.
func (r *IssueRepo) GetByID(ctx context.Context, id int64) (*model.Issue, error) {
	const query = `
		SELECT id, github_id, repo_full_name, number, title, body, labels, state, url, updated_at, fetched_at
		FROM issues WHERE id = ?
	`

	issue, err := scanIssue(r.db.Reader.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get issue %d: %w", id, err)
	}

	return issue, nil
}

// GetByGitHubID retrieves an issue by its external identifier. Returns
// nil, nil if the issue is unknown.
func (r *IssueRepo) GetByGitHubID(ctx context.Context, githubID int64) (*model.Issue, error) {
	const query = `
		SELECT id, github_id, repo_full_name, number, title, body, labels, state, url, updated_at, fetched_at
		FROM issues WHERE github_id = ?
	`

	issue, err := scanIssue(r.db.Reader.QueryRowContext(ctx, query, githubID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get issue %d: %w", githubID, err)
	}

	return issue, nil
}

// ListByRepository returns all issues for the repository ordered by number.
func (r *IssueRepo) ListByRepository(ctx context.Context, repoFullName string) ([]model.Issue, error) {
	const query = `
		SELECT id, github_id, repo_full_name, number, title, body, labels, state, url, updated_at, fetched_at
		FROM issues WHERE repo_full_name = ? ORDER BY number
	`

	rows, err := r.db.Reader.QueryContext(ctx, query, repoFullName)
	if err != nil {
		return nil, fmt.Errorf("list issues for %s: %w", repoFullName, err)
	}
	defer rows.Close()

	var issues []model.Issue
	for rows.Next() {
		issue, err := scanIssue(rows)
		if err != nil {
			return nil, fmt.Errorf("scan issue: %w", err)
		}
		issues = append(issues, *issue)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate issues: %w", err)
	}

	return issues, nil
}

func scanIssue(s scanner) (*model.Issue, error) {
	var issue model.Issue
	var labelsJSON, state, updatedAt, fetchedAt string

	err := s.Scan(&issue.ID, &issue.GitHubID, &issue.RepoFullName, &issue.Number,
		&issue.Title, &issue.Body, &labelsJSON, &state, &issue.URL, &updatedAt, &fetchedAt)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal([]byte(labelsJSON), &issue.Labels); err != nil {
		return nil, fmt.Errorf("unmarshal labels: %w", err)
	}
	issue.State = model.IssueState(state)

	if issue.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, fmt.Errorf("parse updated_at: %w", err)
	}
	if issue.FetchedAt, err = parseTime(fetchedAt); err != nil {
		return nil, fmt.Errorf("parse fetched_at: %w", err)
	}

	return &issue, nil
}
