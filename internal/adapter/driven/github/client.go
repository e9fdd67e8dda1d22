// Package github implements the IssueSource port using the go-github library.
package github

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/codeGROOVE-dev/retry"
	gh "github.com/google/go-github/v82/github"
	"github.com/gregjones/httpcache"
	"golang.org/x/time/rate"

	"github.com/gofri/go-github-ratelimit/v2/github_ratelimit"

	"github.com/ericfisherdev/bountywatch/internal/adapter/driven/policy"
	"github.com/ericfisherdev/bountywatch/internal/domain/model"
	"github.com/ericfisherdev/bountywatch/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.IssueSource = (*Client)(nil)

const perPage = 100

// Client implements the driven.IssueSource port using the go-github library.
// A token bucket caps the request rate: every API call waits for a token
// before going out, so callers over budget suspend until it replenishes.
type Client struct {
	gh      *gh.Client
	limiter *rate.Limiter
	timeout time.Duration
}

// NewClient creates a GitHub API client with the following transport stack:
//  1. httpcache (ETag-based conditional request caching)
//  2. go-github-ratelimit (secondary rate limit middleware, sleeps on 429)
//  3. go-github (GitHub REST API client with PAT auth)
//
// requestsPerMinute and burst configure the token bucket; timeout bounds each
// HTTP call independently of bucket waits.
func NewClient(token string, requestsPerMinute, burst int, timeout time.Duration) *Client {
	cacheTransport := httpcache.NewMemoryCacheTransport()
	rateLimitClient := github_ratelimit.NewClient(cacheTransport)
	client := gh.NewClient(rateLimitClient).WithAuthToken(token)

	return &Client{
		gh:      client,
		limiter: rate.NewLimiter(rate.Limit(float64(requestsPerMinute)/60.0), burst),
		timeout: timeout,
	}
}

// NewClientWithHTTPClient creates a Client with a custom http.Client and base
// URL. This constructor is intended for testing, allowing injection of an
// httptest server and a permissive budget.
func NewClientWithHTTPClient(httpClient *http.Client, baseURL string, timeout time.Duration) (*Client, error) {
	client := gh.NewClient(httpClient)

	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("parsing base URL: %w", err)
	}
	client.BaseURL = u

	return &Client{
		gh:      client,
		limiter: rate.NewLimiter(rate.Inf, 1),
		timeout: timeout,
	}, nil
}

// FetchIssues retrieves one page of issues updated at or after the cursor,
// oldest first. Pull requests are filtered out (the issues API returns both).
// The returned NextCursor is the newest updated_at seen; HasMore signals that
// another page is pending behind the same cursor window.
func (c *Client) FetchIssues(ctx context.Context, repoFullName string, cursor time.Time) (driven.IssuePage, error) {
	owner, repo, err := splitRepo(repoFullName)
	if err != nil {
		return driven.IssuePage{}, err
	}

	opts := &gh.IssueListByRepoOptions{
		State:     "all",
		Sort:      "updated",
		Direction: "asc",
		ListOptions: gh.ListOptions{
			PerPage: perPage,
		},
	}
	if !cursor.IsZero() {
		opts.Since = cursor
	}

	var (
		issues  []*gh.Issue
		hasMore bool
	)
	err = c.call(ctx, fmt.Sprintf("list issues for %s", repoFullName), func(callCtx context.Context) (*gh.Response, error) {
		var resp *gh.Response
		var err error
		issues, resp, err = c.gh.Issues.ListByRepo(callCtx, owner, repo, opts)
		if resp != nil {
			hasMore = resp.NextPage != 0
			logRateLimit(resp, repoFullName, opts.ListOptions.Page, len(issues))
		}
		return resp, err
	})
	if err != nil {
		return driven.IssuePage{}, err
	}

	page := driven.IssuePage{NextCursor: cursor, HasMore: hasMore}
	for _, is := range issues {
		if is.IsPullRequest() {
			continue
		}
		mapped := mapIssue(is, repoFullName)
		if mapped.UpdatedAt.After(page.NextCursor) {
			page.NextCursor = mapped.UpdatedAt
		}
		page.Issues = append(page.Issues, mapped)
	}

	return page, nil
}

// SearchBountyIssues discovers bounty-bearing issues across GitHub via the
// search API. The query is combined with in:title,body qualifiers; results
// are capped at maxPages pages of 100.
func (c *Client) SearchBountyIssues(ctx context.Context, query string, maxPages int) ([]model.Issue, error) {
	if query == "" {
		query = "bounty OR reward OR prize"
	}
	searchQuery := query + " in:title,body is:issue"

	opts := &gh.SearchOptions{
		Sort:  "updated",
		Order: "desc",
		ListOptions: gh.ListOptions{
			PerPage: perPage,
		},
	}

	var all []model.Issue
	for page := 1; page <= maxPages; page++ {
		opts.Page = page

		var result *gh.IssuesSearchResult
		var nextPage int
		err := c.call(ctx, "search issues", func(callCtx context.Context) (*gh.Response, error) {
			var resp *gh.Response
			var err error
			result, resp, err = c.gh.Search.Issues(callCtx, searchQuery, opts)
			if resp != nil {
				nextPage = resp.NextPage
				logRateLimit(resp, "search/issues", page, 0)
			}
			return resp, err
		})
		if err != nil {
			return nil, err
		}

		for _, is := range result.Issues {
			if is.IsPullRequest() {
				continue
			}
			repoFullName := repoFromURL(is.GetRepositoryURL())
			if repoFullName == "" {
				continue
			}
			all = append(all, mapIssue(is, repoFullName))
		}

		if nextPage == 0 {
			break
		}
	}

	return all, nil
}

// call wraps a single API operation with the token-bucket wait, the per-call
// timeout, and the shared backoff policy. Transient failures (network errors,
// 5xx, rate-limit responses) are retried; other 4xx surface immediately.
// Exhausted retries surface as ErrSourceUnavailable.
func (c *Client) call(ctx context.Context, what string, fn func(ctx context.Context) (*gh.Response, error)) error {
	err := retry.Do(
		func() error {
			if err := c.limiter.Wait(ctx); err != nil {
				return retry.Unrecoverable(err)
			}

			callCtx, cancel := context.WithTimeout(ctx, c.timeout)
			defer cancel()

			resp, err := fn(callCtx)
			if err == nil {
				return nil
			}
			if isPermanent(resp, err) {
				return retry.Unrecoverable(err)
			}
			return err
		},
		policy.APIBackoff(ctx)...,
	)
	if err == nil {
		return nil
	}

	if ctx.Err() != nil {
		return fmt.Errorf("%s: %w", what, ctx.Err())
	}
	if isUnrecoverable(err) {
		return fmt.Errorf("%s: %w", what, err)
	}
	return fmt.Errorf("%s: %v: %w", what, err, driven.ErrSourceUnavailable)
}

// isPermanent classifies an API error. Rate-limit responses and server errors
// are transient; any other 4xx is permanent and not worth retrying.
func isPermanent(resp *gh.Response, err error) bool {
	var rateErr *gh.RateLimitError
	var abuseErr *gh.AbuseRateLimitError
	if errors.As(err, &rateErr) || errors.As(err, &abuseErr) {
		return false
	}

	if resp == nil {
		return false // Network error, transport never got a response.
	}
	code := resp.StatusCode
	if code == http.StatusTooManyRequests {
		return false
	}
	return code >= 400 && code < 500
}

// isUnrecoverable reports whether the retry loop stopped on a permanent error
// rather than exhausting attempts.
func isUnrecoverable(err error) bool {
	return !retry.IsRecoverable(err)
}

// mapIssue converts a go-github Issue to a domain model Issue. It uses
// GetXxx() helper methods exclusively to avoid nil pointer panics.
func mapIssue(is *gh.Issue, repoFullName string) model.Issue {
	state := model.IssueStateOpen
	if is.GetState() == "closed" {
		state = model.IssueStateClosed
	}

	labels := make([]string, 0, len(is.Labels))
	for _, l := range is.Labels {
		labels = append(labels, l.GetName())
	}

	return model.Issue{
		GitHubID:     is.GetID(),
		RepoFullName: repoFullName,
		Number:       is.GetNumber(),
		Title:        is.GetTitle(),
		Body:         is.GetBody(),
		Labels:       labels,
		State:        state,
		URL:          is.GetHTMLURL(),
		UpdatedAt:    is.GetUpdatedAt().Time,
		FetchedAt:    time.Now().UTC(),
	}
}

// logRateLimit logs the GitHub API rate limit status after each call.
func logRateLimit(resp *gh.Response, endpoint string, page, count int) {
	if resp == nil {
		return
	}

	slog.Debug("github api call",
		"endpoint", endpoint,
		"page", page,
		"count", count,
		"rate_remaining", resp.Rate.Remaining,
		"rate_limit", resp.Rate.Limit,
	)

	if resp.Rate.Remaining < 100 {
		slog.Warn("github rate limit low",
			"remaining", resp.Rate.Remaining,
			"reset_in", time.Until(resp.Rate.Reset.Time).Round(time.Second),
		)
	}
}

// repoFromURL extracts "owner/repo" from an API repository URL.
func repoFromURL(apiURL string) string {
	parts := strings.Split(apiURL, "/repos/")
	if len(parts) != 2 || parts[1] == "" {
		return ""
	}
	return parts[1]
}

// splitRepo splits a "owner/repo" string into its two components.
func splitRepo(fullName string) (string, string, error) {
	parts := strings.SplitN(fullName, "/", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("invalid repo name %q: expected owner/repo", fullName)
	}
	return parts[0], parts[1], nil
}
