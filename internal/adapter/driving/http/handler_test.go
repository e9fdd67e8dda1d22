package httphandler

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ericfisherdev/bountywatch/internal/adapter/driven/broadcast"
	"github.com/ericfisherdev/bountywatch/internal/application"
	"github.com/ericfisherdev/bountywatch/internal/domain/model"
	"github.com/ericfisherdev/bountywatch/internal/domain/port/driven"
	"github.com/ericfisherdev/bountywatch/internal/extract"
)

// --- Mock stores ---

type mockRepoStore struct {
	mu    sync.Mutex
	repos []model.Repository
}

func (m *mockRepoStore) Add(_ context.Context, repo model.Repository) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.repos {
		if r.FullName == repo.FullName {
			return driven.ErrRepoAlreadyExists
		}
	}
	m.repos = append(m.repos, repo)
	return nil
}

func (m *mockRepoStore) Remove(_ context.Context, fullName string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, r := range m.repos {
		if r.FullName == fullName {
			m.repos = append(m.repos[:i], m.repos[i+1:]...)
			return nil
		}
	}
	return driven.ErrRepoNotFound
}

func (m *mockRepoStore) GetByFullName(_ context.Context, fullName string) (*model.Repository, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.repos {
		if r.FullName == fullName {
			repo := r
			return &repo, nil
		}
	}
	return nil, nil
}

func (m *mockRepoStore) ListAll(_ context.Context) ([]model.Repository, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]model.Repository(nil), m.repos...), nil
}

func (m *mockRepoStore) SaveCursor(_ context.Context, _ string, _, _ time.Time) error {
	return nil
}

type mockBountyStore struct {
	mu     sync.Mutex
	nextID int64
	byID   map[int64]*model.Bounty
}

func newMockBountyStore() *mockBountyStore {
	return &mockBountyStore{byID: make(map[int64]*model.Bounty)}
}

func (m *mockBountyStore) Create(_ context.Context, b model.Bounty) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	b.ID = m.nextID
	m.byID[b.ID] = &b
	return b.ID, nil
}

func (m *mockBountyStore) Save(_ context.Context, b model.Bounty) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.byID[b.ID]; !ok {
		return driven.ErrBountyNotFound
	}
	cp := b
	m.byID[b.ID] = &cp
	return nil
}

func (m *mockBountyStore) GetByID(_ context.Context, id int64) (*model.Bounty, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.byID[id]
	if !ok {
		return nil, driven.ErrBountyNotFound
	}
	cp := *b
	return &cp, nil
}

func (m *mockBountyStore) GetByIssueID(_ context.Context, issueID int64) (*model.Bounty, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, b := range m.byID {
		if b.IssueID == issueID {
			cp := *b
			return &cp, nil
		}
	}
	return nil, nil
}

func (m *mockBountyStore) ListByStatus(_ context.Context, status model.BountyStatus) ([]model.Bounty, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.Bounty
	for _, b := range m.byID {
		if b.Status == status {
			out = append(out, *b)
		}
	}
	return out, nil
}

type mockIssueStore struct{}

func (m *mockIssueStore) Upsert(_ context.Context, _ model.Issue) (int64, error) { return 1, nil }
func (m *mockIssueStore) GetByID(_ context.Context, _ int64) (*model.Issue, error) {
	return &model.Issue{ID: 1, Number: 1, Title: "Fix flaky parser"}, nil
}

func (m *mockIssueStore) GetByGitHubID(_ context.Context, _ int64) (*model.Issue, error) {
	return nil, nil
}

func (m *mockIssueStore) ListByRepository(_ context.Context, _ string) ([]model.Issue, error) {
	return nil, nil
}

type mockPrefStore struct {
	mu    sync.Mutex
	prefs map[string]model.NotificationPreference
}

func newMockPrefStore() *mockPrefStore {
	return &mockPrefStore{prefs: make(map[string]model.NotificationPreference)}
}

func (m *mockPrefStore) Upsert(_ context.Context, pref model.NotificationPreference) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.prefs[pref.UserID] = pref
	return nil
}

func (m *mockPrefStore) Get(_ context.Context, userID string) (*model.NotificationPreference, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if pref, ok := m.prefs[userID]; ok {
		return &pref, nil
	}
	return nil, nil
}

func (m *mockPrefStore) ListAll(_ context.Context) ([]model.NotificationPreference, error) {
	return nil, nil
}

type mockDeliveryLog struct{}

func (m *mockDeliveryLog) Append(_ context.Context, _ model.DeliveryAttempt) error { return nil }
func (m *mockDeliveryLog) ListByEvent(_ context.Context, _ string) ([]model.DeliveryAttempt, error) {
	return nil, nil
}

type mockIssueSource struct{}

func (m *mockIssueSource) FetchIssues(_ context.Context, _ string, _ time.Time) (driven.IssuePage, error) {
	return driven.IssuePage{}, nil
}

func (m *mockIssueSource) SearchBountyIssues(_ context.Context, _ string, _ int) ([]model.Issue, error) {
	return nil, nil
}

// --- Fixture ---

type fixture struct {
	server      *httptest.Server
	repoStore   *mockRepoStore
	bountyStore *mockBountyStore
	prefStore   *mockPrefStore
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	repoStore := &mockRepoStore{}
	bountyStore := newMockBountyStore()
	prefStore := newMockPrefStore()
	issueStore := &mockIssueStore{}

	hub := broadcast.NewHub(logger)
	dispatchSvc := application.NewDispatchService(prefStore, &mockDeliveryLog{}, nil, nil)
	bountySvc := application.NewBountyService(bountyStore, issueStore, dispatchSvc)
	syncSvc := application.NewSyncService(
		&mockIssueSource{}, repoStore, issueStore, bountyStore,
		extract.New(extract.DefaultThreshold, nil), dispatchSvc, time.Hour, 1,
	)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go syncSvc.Start(ctx)
	go dispatchSvc.Run(ctx)

	h := NewHandler(repoStore, bountyStore, prefStore, syncSvc, bountySvc, dispatchSvc, hub, logger)
	server := httptest.NewServer(NewServeMux(h, logger))
	t.Cleanup(server.Close)

	return &fixture{server: server, repoStore: repoStore, bountyStore: bountyStore, prefStore: prefStore}
}

func (f *fixture) do(t *testing.T, method, path, body string) *http.Response {
	t.Helper()

	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req, err := http.NewRequest(method, f.server.URL+path, reader)
	require.NoError(t, err)

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	defer resp.Body.Close()

	var v T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&v))
	return v
}

func (f *fixture) seedBounty(t *testing.T, status model.BountyStatus, claimant string) int64 {
	t.Helper()

	id, err := f.bountyStore.Create(context.Background(), model.Bounty{
		IssueID:      1,
		RepoFullName: "octocat/hello-world",
		AmountCents:  25000,
		Currency:     "USD",
		Status:       status,
		ClaimantID:   claimant,
	})
	require.NoError(t, err)
	return id
}

// --- Tests ---

func TestHealth(t *testing.T) {
	f := newFixture(t)

	resp := f.do(t, http.MethodGet, "/api/v1/health", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	body := decode[HealthResponse](t, resp)
	assert.Equal(t, "ok", body.Status)
}

func TestStatus(t *testing.T) {
	f := newFixture(t)

	resp := f.do(t, http.MethodGet, "/api/v1/status", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	body := decode[StatusResponse](t, resp)
	assert.Zero(t, body.HubClients)
}

func TestAddRepo(t *testing.T) {
	f := newFixture(t)

	resp := f.do(t, http.MethodPost, "/api/v1/repos", `{"full_name":"octocat/hello-world"}`)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	body := decode[RepoResponse](t, resp)
	assert.Equal(t, "octocat", body.Owner)
	assert.Equal(t, "hello-world", body.Name)
}

func TestAddRepo_Invalid(t *testing.T) {
	f := newFixture(t)

	resp := f.do(t, http.MethodPost, "/api/v1/repos", `{"full_name":"not-a-repo"}`)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestAddRepo_Conflict(t *testing.T) {
	f := newFixture(t)

	resp := f.do(t, http.MethodPost, "/api/v1/repos", `{"full_name":"octocat/hello-world"}`)
	resp.Body.Close()
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	resp = f.do(t, http.MethodPost, "/api/v1/repos", `{"full_name":"octocat/hello-world"}`)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
}

func TestRemoveRepo_NotFound(t *testing.T) {
	f := newFixture(t)

	resp := f.do(t, http.MethodDelete, "/api/v1/repos/ghost/repo", "")
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestTriggerSync_NotFound(t *testing.T) {
	f := newFixture(t)

	resp := f.do(t, http.MethodPost, "/api/v1/sync/ghost/repo", "")
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestTriggerSync(t *testing.T) {
	f := newFixture(t)

	resp := f.do(t, http.MethodPost, "/api/v1/repos", `{"full_name":"octocat/hello-world"}`)
	resp.Body.Close()
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	resp = f.do(t, http.MethodPost, "/api/v1/sync/octocat/hello-world", "")
	defer resp.Body.Close()
	assert.Equal(t, http.StatusAccepted, resp.StatusCode)
}

func TestDiscover(t *testing.T) {
	f := newFixture(t)

	resp := f.do(t, http.MethodPost, "/api/v1/discover?q=bounty", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	body := decode[DiscoverResponse](t, resp)
	assert.Zero(t, body.Reconciled)
}

func TestDiscover_BadPages(t *testing.T) {
	f := newFixture(t)

	resp := f.do(t, http.MethodPost, "/api/v1/discover?pages=zero", "")
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestListBounties(t *testing.T) {
	f := newFixture(t)
	f.seedBounty(t, model.BountyStatusOpen, "")

	resp := f.do(t, http.MethodGet, "/api/v1/bounties", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	body := decode[[]BountyResponse](t, resp)
	require.Len(t, body, 1)
	assert.Equal(t, "open", body[0].Status)
	assert.Equal(t, int64(25000), body[0].AmountCents)
}

func TestGetBounty_NotFound(t *testing.T) {
	f := newFixture(t)

	resp := f.do(t, http.MethodGet, "/api/v1/bounties/404", "")
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestClaimBounty(t *testing.T) {
	f := newFixture(t)
	id := f.seedBounty(t, model.BountyStatusOpen, "")

	resp := f.do(t, http.MethodPost, "/api/v1/bounties/1/claim", `{"actor_id":"alice"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	body := decode[BountyResponse](t, resp)
	assert.Equal(t, "claimed", body.Status)
	assert.Equal(t, "alice", body.ClaimantID)
	assert.Equal(t, id, body.ID)
}

func TestClaimBounty_Conflict(t *testing.T) {
	f := newFixture(t)
	f.seedBounty(t, model.BountyStatusClaimed, "alice")

	resp := f.do(t, http.MethodPost, "/api/v1/bounties/1/claim", `{"actor_id":"bob"}`)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
}

func TestClaimBounty_MissingActor(t *testing.T) {
	f := newFixture(t)
	f.seedBounty(t, model.BountyStatusOpen, "")

	resp := f.do(t, http.MethodPost, "/api/v1/bounties/1/claim", `{}`)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestRecordPayment(t *testing.T) {
	f := newFixture(t)
	f.seedBounty(t, model.BountyStatusInProgress, "alice")

	resp := f.do(t, http.MethodPost, "/api/v1/bounties/1/payments",
		`{"amount_cents":10000,"reference":"tx-001"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	body := decode[BountyResponse](t, resp)
	require.Len(t, body.Payments, 1)
	assert.Equal(t, int64(10000), body.TotalPaid)
	assert.Equal(t, "USD", body.Payments[0].Currency)
}

func TestRecordPayment_WrongState(t *testing.T) {
	f := newFixture(t)
	f.seedBounty(t, model.BountyStatusOpen, "")

	resp := f.do(t, http.MethodPost, "/api/v1/bounties/1/payments", `{"amount_cents":10000}`)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
}

func TestPreferences_RoundTrip(t *testing.T) {
	f := newFixture(t)

	resp := f.do(t, http.MethodGet, "/api/v1/preferences/alice", "")
	resp.Body.Close()
	require.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp = f.do(t, http.MethodPut, "/api/v1/preferences/alice",
		`{"inapp_enabled":true,"email_enabled":true,"email_address":"alice@example.com","watched_repos":["octocat/hello-world"],"quiet_start":"22:00","quiet_end":"07:00","timezone":"Europe/Berlin"}`)
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp = f.do(t, http.MethodGet, "/api/v1/preferences/alice", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	body := decode[PreferenceRequest](t, resp)
	assert.True(t, body.InAppEnabled)
	assert.Equal(t, "alice@example.com", body.EmailAddress)
	assert.Equal(t, []string{"octocat/hello-world"}, body.WatchedRepos)
	assert.Equal(t, "22:00", body.QuietStart)
}
