package model

import "time"

// Issue is the local snapshot of a GitHub issue on a tracked repository.
// GitHubID is the upstream identifier and stays stable across edits; ID is
// the local row id used for bounty foreign keys.
type Issue struct {
	ID           int64
	GitHubID     int64
	RepoFullName string
	Number       int
	Title        string
	Body         string
	Labels       []string
	State        IssueState
	URL          string
	UpdatedAt    time.Time // Upstream last-modified time, drives the sync cursor.
	FetchedAt    time.Time
}
