// Package httphandler is the HTTP driving adapter serving the ops REST API.
package httphandler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/ericfisherdev/bountywatch/internal/adapter/driven/broadcast"
	"github.com/ericfisherdev/bountywatch/internal/application"
	"github.com/ericfisherdev/bountywatch/internal/domain/model"
	"github.com/ericfisherdev/bountywatch/internal/domain/port/driven"
)

// Handler is the HTTP driving adapter that serves the REST API.
type Handler struct {
	repoStore   driven.RepoStore
	bountyStore driven.BountyStore
	prefStore   driven.PreferenceStore
	syncSvc     *application.SyncService
	bountySvc   *application.BountyService
	dispatchSvc *application.DispatchService
	hub         *broadcast.Hub
	logger      *slog.Logger
}

// NewHandler creates a Handler with all required dependencies.
func NewHandler(
	repoStore driven.RepoStore,
	bountyStore driven.BountyStore,
	prefStore driven.PreferenceStore,
	syncSvc *application.SyncService,
	bountySvc *application.BountyService,
	dispatchSvc *application.DispatchService,
	hub *broadcast.Hub,
	logger *slog.Logger,
) *Handler {
	return &Handler{
		repoStore:   repoStore,
		bountyStore: bountyStore,
		prefStore:   prefStore,
		syncSvc:     syncSvc,
		bountySvc:   bountySvc,
		dispatchSvc: dispatchSvc,
		hub:         hub,
		logger:      logger,
	}
}

// NewServeMux creates an http.Handler with all routes registered and wrapped
// with logging and recovery middleware.
func NewServeMux(h *Handler, logger *slog.Logger) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/v1/health", h.Health)
	mux.HandleFunc("GET /api/v1/status", h.Status)

	mux.HandleFunc("GET /api/v1/repos", h.ListRepos)
	mux.HandleFunc("POST /api/v1/repos", h.AddRepo)
	mux.HandleFunc("DELETE /api/v1/repos/{owner}/{repo}", h.RemoveRepo)
	mux.HandleFunc("POST /api/v1/sync/{owner}/{repo}", h.TriggerSync)
	mux.HandleFunc("POST /api/v1/discover", h.Discover)

	mux.HandleFunc("GET /api/v1/bounties", h.ListBounties)
	mux.HandleFunc("GET /api/v1/bounties/{id}", h.GetBounty)
	mux.HandleFunc("POST /api/v1/bounties/{id}/claim", h.transitionHandler(transitionClaim))
	mux.HandleFunc("POST /api/v1/bounties/{id}/start", h.transitionHandler(transitionStart))
	mux.HandleFunc("POST /api/v1/bounties/{id}/complete", h.transitionHandler(transitionComplete))
	mux.HandleFunc("POST /api/v1/bounties/{id}/cancel", h.transitionHandler(transitionCancel))
	mux.HandleFunc("POST /api/v1/bounties/{id}/dispute", h.transitionHandler(transitionDispute))
	mux.HandleFunc("POST /api/v1/bounties/{id}/resolve", h.transitionHandler(transitionResolve))
	mux.HandleFunc("POST /api/v1/bounties/{id}/payments", h.RecordPayment)

	mux.HandleFunc("GET /api/v1/preferences/{user}", h.GetPreference)
	mux.HandleFunc("PUT /api/v1/preferences/{user}", h.PutPreference)

	// Recovery innermost so panics are caught before logging.
	wrapped := recoveryMiddleware(logger, mux)
	wrapped = loggingMiddleware(logger, wrapped)

	return wrapped
}

// Health returns a simple health check response.
func (h *Handler) Health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{
		Status: "ok",
		Time:   time.Now().UTC().Format(time.RFC3339),
	})
}

// Status returns dispatcher and hub counters.
func (h *Handler) Status(w http.ResponseWriter, _ *http.Request) {
	clients, dropped := h.hub.Stats()
	writeJSON(w, http.StatusOK, StatusResponse{
		Dispatcher: h.dispatchSvc.Status(),
		HubClients: clients,
		HubDropped: dropped,
	})
}

// ListRepos returns all tracked repositories.
func (h *Handler) ListRepos(w http.ResponseWriter, r *http.Request) {
	repos, err := h.repoStore.ListAll(r.Context())
	if err != nil {
		h.logger.Error("failed to list repos", "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	resp := make([]RepoResponse, 0, len(repos))
	for _, repo := range repos {
		resp = append(resp, toRepoResponse(repo))
	}

	writeJSON(w, http.StatusOK, resp)
}

// AddRepo adds a repository to the tracked set and triggers an async sync.
func (h *Handler) AddRepo(w http.ResponseWriter, r *http.Request) {
	var req AddRepoRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if !isValidRepoName(req.FullName) {
		writeError(w, http.StatusBadRequest, "invalid repository name: expected owner/repo format")
		return
	}

	parts := strings.SplitN(req.FullName, "/", 2)
	repo := model.Repository{
		FullName: req.FullName,
		Owner:    parts[0],
		Name:     parts[1],
		AddedAt:  time.Now().UTC(),
	}

	if err := h.repoStore.Add(r.Context(), repo); err != nil {
		if errors.Is(err, driven.ErrRepoAlreadyExists) {
			writeError(w, http.StatusConflict, "repository already tracked")
			return
		}
		h.logger.Error("failed to add repo", "repo", req.FullName, "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	// Fire-and-forget async sync with background context since the HTTP
	// request context will be cancelled after the response is sent.
	if h.syncSvc != nil {
		go func() {
			if err := h.syncSvc.RefreshRepo(context.Background(), req.FullName); err != nil {
				h.logger.Error("async repo sync failed", "repo", req.FullName, "error", err)
			}
		}()
	}

	writeJSON(w, http.StatusCreated, toRepoResponse(repo))
}

// RemoveRepo stops tracking a repository. Stored issues and bounties are kept.
func (h *Handler) RemoveRepo(w http.ResponseWriter, r *http.Request) {
	fullName := r.PathValue("owner") + "/" + r.PathValue("repo")

	if err := h.repoStore.Remove(r.Context(), fullName); err != nil {
		if errors.Is(err, driven.ErrRepoNotFound) {
			writeError(w, http.StatusNotFound, "repository not found")
			return
		}
		h.logger.Error("failed to remove repo", "repo", fullName, "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// TriggerSync runs a manual sync for one repository, bypassing the schedule.
func (h *Handler) TriggerSync(w http.ResponseWriter, r *http.Request) {
	fullName := r.PathValue("owner") + "/" + r.PathValue("repo")

	if err := h.syncSvc.RefreshRepo(r.Context(), fullName); err != nil {
		switch {
		case errors.Is(err, driven.ErrRepoNotFound):
			writeError(w, http.StatusNotFound, "repository not found")
		case errors.Is(err, driven.ErrSourceUnavailable):
			writeError(w, http.StatusBadGateway, "issue source unavailable")
		default:
			h.logger.Error("manual sync failed", "repo", fullName, "error", err)
			writeError(w, http.StatusInternalServerError, "internal server error")
		}
		return
	}

	w.WriteHeader(http.StatusAccepted)
}

// Discover searches GitHub for bounty-bearing issues and reconciles the hits
// that belong to tracked repositories.
func (h *Handler) Discover(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("q")

	pages := 1
	if v := r.URL.Query().Get("pages"); v != "" {
		parsed, err := strconv.Atoi(v)
		if err != nil || parsed < 1 {
			writeError(w, http.StatusBadRequest, "pages must be a positive integer")
			return
		}
		pages = parsed
	}

	reconciled, err := h.syncSvc.DiscoverBounties(r.Context(), query, pages)
	if err != nil {
		if errors.Is(err, driven.ErrSourceUnavailable) {
			writeError(w, http.StatusBadGateway, "issue source unavailable")
			return
		}
		h.logger.Error("bounty discovery failed", "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	writeJSON(w, http.StatusOK, DiscoverResponse{Reconciled: reconciled})
}

// ListBounties returns bounties filtered by status (default open).
func (h *Handler) ListBounties(w http.ResponseWriter, r *http.Request) {
	status := model.BountyStatus(r.URL.Query().Get("status"))
	if status == "" {
		status = model.BountyStatusOpen
	}

	bounties, err := h.bountyStore.ListByStatus(r.Context(), status)
	if err != nil {
		h.logger.Error("failed to list bounties", "status", status, "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	resp := make([]BountyResponse, 0, len(bounties))
	for _, b := range bounties {
		resp = append(resp, toBountyResponse(b))
	}

	writeJSON(w, http.StatusOK, resp)
}

// GetBounty returns a single bounty with its payment records.
func (h *Handler) GetBounty(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid bounty id")
		return
	}

	bounty, err := h.bountyStore.GetByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, driven.ErrBountyNotFound) {
			writeError(w, http.StatusNotFound, "bounty not found")
			return
		}
		h.logger.Error("failed to get bounty", "id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	writeJSON(w, http.StatusOK, toBountyResponse(*bounty))
}

type transitionKind int

const (
	transitionClaim transitionKind = iota
	transitionStart
	transitionComplete
	transitionCancel
	transitionDispute
	transitionResolve
)

// transitionHandler builds the handler for one bounty lifecycle endpoint.
// All six share parsing, error mapping, and the response shape.
func (h *Handler) transitionHandler(kind transitionKind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid bounty id")
			return
		}

		var req TransitionRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		if req.ActorID == "" {
			writeError(w, http.StatusBadRequest, "actor_id is required")
			return
		}

		ctx := r.Context()
		switch kind {
		case transitionClaim:
			err = h.bountySvc.Claim(ctx, id, req.ActorID)
		case transitionStart:
			err = h.bountySvc.StartWork(ctx, id, req.ActorID)
		case transitionComplete:
			err = h.bountySvc.Complete(ctx, id, req.ActorID)
		case transitionCancel:
			err = h.bountySvc.Cancel(ctx, id, req.ActorID, req.Reason)
		case transitionDispute:
			err = h.bountySvc.Dispute(ctx, id, req.ActorID, req.Reason)
		case transitionResolve:
			err = h.bountySvc.ResolveDispute(ctx, id, req.ActorID, model.BountyStatus(req.Resolution))
		}

		if err != nil {
			h.writeBountyError(w, id, err)
			return
		}

		bounty, err := h.bountyStore.GetByID(ctx, id)
		if err != nil {
			h.logger.Error("failed to reload bounty", "id", id, "error", err)
			writeError(w, http.StatusInternalServerError, "internal server error")
			return
		}

		writeJSON(w, http.StatusOK, toBountyResponse(*bounty))
	}
}

// RecordPayment appends a payout to a bounty.
func (h *Handler) RecordPayment(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid bounty id")
		return
	}

	var req PaymentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.AmountCents <= 0 {
		writeError(w, http.StatusBadRequest, "amount_cents must be positive")
		return
	}

	err = h.bountySvc.RecordPayment(r.Context(), id, model.PaymentRecord{
		AmountCents: req.AmountCents,
		Currency:    req.Currency,
		Reference:   req.Reference,
		RecordedAt:  time.Now().UTC(),
	})
	if err != nil {
		h.writeBountyError(w, id, err)
		return
	}

	bounty, err := h.bountyStore.GetByID(r.Context(), id)
	if err != nil {
		h.logger.Error("failed to reload bounty", "id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	writeJSON(w, http.StatusOK, toBountyResponse(*bounty))
}

// GetPreference returns a user's notification preferences.
func (h *Handler) GetPreference(w http.ResponseWriter, r *http.Request) {
	userID := r.PathValue("user")

	pref, err := h.prefStore.Get(r.Context(), userID)
	if err != nil {
		h.logger.Error("failed to get preferences", "user", userID, "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	if pref == nil {
		writeError(w, http.StatusNotFound, "preferences not found")
		return
	}

	writeJSON(w, http.StatusOK, toPreferenceResponse(*pref))
}

// PutPreference replaces a user's notification preferences.
func (h *Handler) PutPreference(w http.ResponseWriter, r *http.Request) {
	userID := r.PathValue("user")

	var req PreferenceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := h.prefStore.Upsert(r.Context(), toPreference(userID, req)); err != nil {
		h.logger.Error("failed to save preferences", "user", userID, "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	writeJSON(w, http.StatusOK, req)
}

// writeBountyError maps domain errors to HTTP status codes.
func (h *Handler) writeBountyError(w http.ResponseWriter, id int64, err error) {
	switch {
	case errors.Is(err, driven.ErrBountyNotFound):
		writeError(w, http.StatusNotFound, "bounty not found")
	case errors.Is(err, model.ErrRejectedTransition):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, model.ErrInvalidPaymentState):
		writeError(w, http.StatusConflict, err.Error())
	default:
		h.logger.Error("bounty operation failed", "id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
	}
}

// isValidRepoName validates that name is in owner/repo format where each part
// contains only alphanumeric characters, hyphens, dots, or underscores.
func isValidRepoName(name string) bool {
	parts := strings.SplitN(name, "/", 3)
	if len(parts) != 2 {
		return false
	}

	for _, part := range parts {
		if part == "" {
			return false
		}
		for _, ch := range part {
			if !isValidRepoChar(ch) {
				return false
			}
		}
	}

	return true
}

// isValidRepoChar returns true if the rune is allowed in a repository owner or name.
func isValidRepoChar(ch rune) bool {
	return (ch >= 'a' && ch <= 'z') ||
		(ch >= 'A' && ch <= 'Z') ||
		(ch >= '0' && ch <= '9') ||
		ch == '-' || ch == '.' || ch == '_'
}
