package httphandler

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/ericfisherdev/bountywatch/internal/application"
	"github.com/ericfisherdev/bountywatch/internal/domain/model"
)

// writeJSON marshals v to JSON and writes it to the response with the given
// status code. If marshaling fails, a 500 error is written instead.
func writeJSON(w http.ResponseWriter, status int, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":"internal server error"}`))
		return
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write(data)
}

// writeError writes a JSON error response with the given status code and message.
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Error: message})
}

// errorResponse is the standard error response body.
type errorResponse struct {
	Error string `json:"error"`
}

// HealthResponse is the health check response body.
type HealthResponse struct {
	Status string `json:"status"`
	Time   string `json:"time"`
}

// StatusResponse aggregates dispatcher and hub counters for the ops surface.
type StatusResponse struct {
	Dispatcher application.DispatchStatus `json:"dispatcher"`
	HubClients int                        `json:"hub_clients"`
	HubDropped uint64                     `json:"hub_dropped"`
}

// DiscoverResponse reports the outcome of a cross-GitHub bounty discovery run.
type DiscoverResponse struct {
	Reconciled int `json:"reconciled"`
}

// AddRepoRequest is the request body for tracking a new repository.
type AddRepoRequest struct {
	FullName string `json:"full_name"`
}

// RepoResponse is the JSON representation of a tracked repository.
type RepoResponse struct {
	FullName     string `json:"full_name"`
	Owner        string `json:"owner"`
	Name         string `json:"name"`
	Cursor       string `json:"cursor,omitempty"`
	LastSyncedAt string `json:"last_synced_at,omitempty"`
	AddedAt      string `json:"added_at"`
}

func toRepoResponse(repo model.Repository) RepoResponse {
	return RepoResponse{
		FullName:     repo.FullName,
		Owner:        repo.Owner,
		Name:         repo.Name,
		Cursor:       formatTime(repo.Cursor),
		LastSyncedAt: formatTime(repo.LastSyncedAt),
		AddedAt:      formatTime(repo.AddedAt),
	}
}

// BountyResponse is the JSON representation of a bounty.
type BountyResponse struct {
	ID          int64             `json:"id"`
	IssueID     int64             `json:"issue_id"`
	Repository  string            `json:"repository"`
	AmountCents int64             `json:"amount_cents"`
	Currency    string            `json:"currency"`
	Status      string            `json:"status"`
	ClaimantID  string            `json:"claimant_id,omitempty"`
	Platform    string            `json:"platform,omitempty"`
	Confidence  float64           `json:"confidence"`
	Deadline    string            `json:"deadline,omitempty"`
	ClaimedAt   string            `json:"claimed_at,omitempty"`
	CompletedAt string            `json:"completed_at,omitempty"`
	Payments    []PaymentResponse `json:"payments"`
	TotalPaid   int64             `json:"total_paid_cents"`
	CreatedAt   string            `json:"created_at"`
	UpdatedAt   string            `json:"updated_at"`
}

// PaymentResponse is the JSON representation of a payment record.
type PaymentResponse struct {
	AmountCents int64  `json:"amount_cents"`
	Currency    string `json:"currency"`
	Reference   string `json:"reference,omitempty"`
	RecordedAt  string `json:"recorded_at"`
}

func toBountyResponse(b model.Bounty) BountyResponse {
	payments := make([]PaymentResponse, 0, len(b.Payments))
	for _, p := range b.Payments {
		payments = append(payments, PaymentResponse{
			AmountCents: p.AmountCents,
			Currency:    p.Currency,
			Reference:   p.Reference,
			RecordedAt:  formatTime(p.RecordedAt),
		})
	}

	return BountyResponse{
		ID:          b.ID,
		IssueID:     b.IssueID,
		Repository:  b.RepoFullName,
		AmountCents: b.AmountCents,
		Currency:    b.Currency,
		Status:      string(b.Status),
		ClaimantID:  b.ClaimantID,
		Platform:    b.Platform,
		Confidence:  b.Confidence,
		Deadline:    formatOptTime(b.Deadline),
		ClaimedAt:   formatOptTime(b.ClaimedAt),
		CompletedAt: formatOptTime(b.CompletedAt),
		Payments:    payments,
		TotalPaid:   b.TotalPaidCents(),
		CreatedAt:   formatTime(b.CreatedAt),
		UpdatedAt:   formatTime(b.UpdatedAt),
	}
}

// TransitionRequest is the request body for bounty lifecycle endpoints.
type TransitionRequest struct {
	ActorID    string `json:"actor_id"`
	Resolution string `json:"resolution,omitempty"`
	Reason     string `json:"reason,omitempty"`
}

// PaymentRequest is the request body for recording a payout.
type PaymentRequest struct {
	AmountCents int64  `json:"amount_cents"`
	Currency    string `json:"currency,omitempty"`
	Reference   string `json:"reference,omitempty"`
}

// PreferenceRequest is the request body for replacing a user's notification
// preferences. It doubles as the response representation.
type PreferenceRequest struct {
	InAppEnabled    bool     `json:"inapp_enabled"`
	EmailEnabled    bool     `json:"email_enabled"`
	TelegramEnabled bool     `json:"telegram_enabled"`
	WebhookEnabled  bool     `json:"webhook_enabled"`
	EmailAddress    string   `json:"email_address,omitempty"`
	TelegramChatID  string   `json:"telegram_chat_id,omitempty"`
	WebhookURL      string   `json:"webhook_url,omitempty"`
	IncludeKeywords []string `json:"include_keywords,omitempty"`
	ExcludeKeywords []string `json:"exclude_keywords,omitempty"`
	QuietStart      string   `json:"quiet_start,omitempty"`
	QuietEnd        string   `json:"quiet_end,omitempty"`
	Timezone        string   `json:"timezone,omitempty"`
	WatchedRepos    []string `json:"watched_repos,omitempty"`
	GlobalSub       bool     `json:"global_subscriber"`
}

func toPreference(userID string, req PreferenceRequest) model.NotificationPreference {
	return model.NotificationPreference{
		UserID:           userID,
		InAppEnabled:     req.InAppEnabled,
		EmailEnabled:     req.EmailEnabled,
		TelegramEnabled:  req.TelegramEnabled,
		WebhookEnabled:   req.WebhookEnabled,
		EmailAddress:     req.EmailAddress,
		TelegramChatID:   req.TelegramChatID,
		WebhookURL:       req.WebhookURL,
		IncludeKeywords:  req.IncludeKeywords,
		ExcludeKeywords:  req.ExcludeKeywords,
		QuietStart:       req.QuietStart,
		QuietEnd:         req.QuietEnd,
		Timezone:         req.Timezone,
		WatchedRepos:     req.WatchedRepos,
		GlobalSubscriber: req.GlobalSub,
		UpdatedAt:        time.Now().UTC(),
	}
}

func toPreferenceResponse(pref model.NotificationPreference) PreferenceRequest {
	return PreferenceRequest{
		InAppEnabled:    pref.InAppEnabled,
		EmailEnabled:    pref.EmailEnabled,
		TelegramEnabled: pref.TelegramEnabled,
		WebhookEnabled:  pref.WebhookEnabled,
		EmailAddress:    pref.EmailAddress,
		TelegramChatID:  pref.TelegramChatID,
		WebhookURL:      pref.WebhookURL,
		IncludeKeywords: pref.IncludeKeywords,
		ExcludeKeywords: pref.ExcludeKeywords,
		QuietStart:      pref.QuietStart,
		QuietEnd:        pref.QuietEnd,
		Timezone:        pref.Timezone,
		WatchedRepos:    pref.WatchedRepos,
		GlobalSub:       pref.GlobalSubscriber,
	}
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

func formatOptTime(t *time.Time) string {
	if t == nil {
		return ""
	}
	return formatTime(*t)
}
