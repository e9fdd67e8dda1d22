package application

import (
	"context"
	"sync"
	"time"

	"github.com/ericfisherdev/bountywatch/internal/domain/model"
	"github.com/ericfisherdev/bountywatch/internal/domain/port/driven"
)

// --- Mock implementations shared by the service tests ---

type fetchCall struct {
	repo   string
	cursor time.Time
}

type mockIssueSource struct {
	pages   []driven.IssuePage
	err     error
	calls   []fetchCall
	pageIdx int

	searchResults []model.Issue
	searchErr     error
	searchQuery   string
}

func (m *mockIssueSource) FetchIssues(_ context.Context, repo string, cursor time.Time) (driven.IssuePage, error) {
	m.calls = append(m.calls, fetchCall{repo: repo, cursor: cursor})
	if m.err != nil {
		return driven.IssuePage{}, m.err
	}
	if m.pageIdx >= len(m.pages) {
		return driven.IssuePage{}, nil
	}
	page := m.pages[m.pageIdx]
	m.pageIdx++
	return page, nil
}

func (m *mockIssueSource) SearchBountyIssues(_ context.Context, query string, _ int) ([]model.Issue, error) {
	m.searchQuery = query
	if m.searchErr != nil {
		return nil, m.searchErr
	}
	return m.searchResults, nil
}

type cursorSave struct {
	repo   string
	cursor time.Time
}

type mockRepoStore struct {
	repos       []model.Repository
	cursorSaves []cursorSave
	saveErr     error
}

func (m *mockRepoStore) Add(_ context.Context, _ model.Repository) error    { return nil }
func (m *mockRepoStore) Remove(_ context.Context, _ string) error           { return nil }
func (m *mockRepoStore) ListAll(_ context.Context) ([]model.Repository, error) {
	return m.repos, nil
}

func (m *mockRepoStore) GetByFullName(_ context.Context, fullName string) (*model.Repository, error) {
	for _, r := range m.repos {
		if r.FullName == fullName {
			repo := r
			return &repo, nil
		}
	}
	return nil, nil
}

func (m *mockRepoStore) SaveCursor(_ context.Context, fullName string, cursor, _ time.Time) error {
	if m.saveErr != nil {
		return m.saveErr
	}
	m.cursorSaves = append(m.cursorSaves, cursorSave{repo: fullName, cursor: cursor})
	for i := range m.repos {
		if m.repos[i].FullName == fullName {
			m.repos[i].Cursor = cursor
		}
	}
	return nil
}

type mockIssueStore struct {
	nextID int64
	byGH   map[int64]*model.Issue
}

func newMockIssueStore() *mockIssueStore {
	return &mockIssueStore{byGH: make(map[int64]*model.Issue)}
}

func (m *mockIssueStore) Upsert(_ context.Context, issue model.Issue) (int64, error) {
	if stored, ok := m.byGH[issue.GitHubID]; ok {
		issue.ID = stored.ID
	} else {
		m.nextID++
		issue.ID = m.nextID
	}
	m.byGH[issue.GitHubID] = &issue
	return issue.ID, nil
}

func (m *mockIssueStore) GetByID(_ context.Context, id int64) (*model.Issue, error) {
	for _, issue := range m.byGH {
		if issue.ID == id {
			cp := *issue
			return &cp, nil
		}
	}
	return nil, nil
}

func (m *mockIssueStore) GetByGitHubID(_ context.Context, githubID int64) (*model.Issue, error) {
	if issue, ok := m.byGH[githubID]; ok {
		cp := *issue
		return &cp, nil
	}
	return nil, nil
}

func (m *mockIssueStore) ListByRepository(_ context.Context, _ string) ([]model.Issue, error) {
	return nil, nil
}

type mockBountyStore struct {
	nextID int64
	byID   map[int64]*model.Bounty
}

func newMockBountyStore() *mockBountyStore {
	return &mockBountyStore{byID: make(map[int64]*model.Bounty)}
}

func (m *mockBountyStore) Create(_ context.Context, b model.Bounty) (int64, error) {
	m.nextID++
	b.ID = m.nextID
	m.byID[b.ID] = &b
	return b.ID, nil
}

func (m *mockBountyStore) Save(_ context.Context, b model.Bounty) error {
	if _, ok := m.byID[b.ID]; !ok {
		return driven.ErrBountyNotFound
	}
	cp := b
	m.byID[b.ID] = &cp
	return nil
}

func (m *mockBountyStore) GetByID(_ context.Context, id int64) (*model.Bounty, error) {
	b, ok := m.byID[id]
	if !ok {
		return nil, driven.ErrBountyNotFound
	}
	cp := *b
	return &cp, nil
}

func (m *mockBountyStore) GetByIssueID(_ context.Context, issueID int64) (*model.Bounty, error) {
	for _, b := range m.byID {
		if b.IssueID == issueID {
			cp := *b
			return &cp, nil
		}
	}
	return nil, nil
}

func (m *mockBountyStore) ListByStatus(_ context.Context, status model.BountyStatus) ([]model.Bounty, error) {
	var out []model.Bounty
	for _, b := range m.byID {
		if b.Status == status {
			out = append(out, *b)
		}
	}
	return out, nil
}

type mockEventSink struct {
	mu     sync.Mutex
	events []model.DomainEvent
}

func (m *mockEventSink) Publish(ev model.DomainEvent) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, ev)
}

func (m *mockEventSink) all() []model.DomainEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]model.DomainEvent(nil), m.events...)
}

func (m *mockEventSink) kinds() []model.EventKind {
	var out []model.EventKind
	for _, ev := range m.all() {
		out = append(out, ev.Kind)
	}
	return out
}

type mockPrefStore struct {
	prefs []model.NotificationPreference
}

func (m *mockPrefStore) Upsert(_ context.Context, _ model.NotificationPreference) error { return nil }

func (m *mockPrefStore) Get(_ context.Context, userID string) (*model.NotificationPreference, error) {
	for _, p := range m.prefs {
		if p.UserID == userID {
			cp := p
			return &cp, nil
		}
	}
	return nil, nil
}

func (m *mockPrefStore) ListAll(_ context.Context) ([]model.NotificationPreference, error) {
	return m.prefs, nil
}

type mockDeliveryLog struct {
	mu       sync.Mutex
	attempts []model.DeliveryAttempt
}

func (m *mockDeliveryLog) Append(_ context.Context, a model.DeliveryAttempt) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.attempts = append(m.attempts, a)
	return nil
}

func (m *mockDeliveryLog) ListByEvent(_ context.Context, eventID string) ([]model.DeliveryAttempt, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.DeliveryAttempt
	for _, a := range m.attempts {
		if a.EventID == eventID {
			out = append(out, a)
		}
	}
	return out, nil
}

func (m *mockDeliveryLog) outcomes() map[model.Channel]model.DeliveryOutcome {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[model.Channel]model.DeliveryOutcome, len(m.attempts))
	for _, a := range m.attempts {
		out[a.Channel] = a.Outcome
	}
	return out
}

type mockChannelAdapter struct {
	mu      sync.Mutex
	channel model.Channel
	err     error
	sends   []model.Notification
}

func (m *mockChannelAdapter) Channel() model.Channel { return m.channel }

func (m *mockChannelAdapter) Send(_ context.Context, _ model.NotificationPreference, n model.Notification) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.sends = append(m.sends, n)
	return nil
}

func (m *mockChannelAdapter) sent() []model.Notification {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]model.Notification(nil), m.sends...)
}
