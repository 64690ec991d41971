// Package httphandler is the HTTP driving adapter serving the submission
// webhook and the dispatch history API.
package httphandler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/ericfisherdev/formrelay/internal/application"
	"github.com/ericfisherdev/formrelay/internal/domain/model"
	"github.com/ericfisherdev/formrelay/internal/domain/port/driven"
)

const (
	defaultListLimit = 50
	maxListLimit     = 500
)

// Handler is the HTTP driving adapter that serves the REST API.
type Handler struct {
	relaySvc      *application.RelayService
	webhookSecret string
	logger        *slog.Logger
	now           func() time.Time
}

// NewHandler creates a Handler with all required dependencies. An empty
// webhookSecret disables signature checks on submissions.
func NewHandler(relaySvc *application.RelayService, webhookSecret string, logger *slog.Logger) *Handler {
	return &Handler{
		relaySvc:      relaySvc,
		webhookSecret: webhookSecret,
		logger:        logger,
		now:           time.Now,
	}
}

// RegisterAPIRoutes registers all API routes on the provided mux.
func RegisterAPIRoutes(mux *http.ServeMux, h *Handler) {
	mux.Handle("POST /api/v1/submissions", signatureMiddleware(h.webhookSecret, h.logger, http.HandlerFunc(h.Submit)))
	mux.HandleFunc("GET /api/v1/dispatches", h.ListDispatches)
	mux.HandleFunc("GET /api/v1/dispatches/{id}", h.GetDispatch)
	mux.HandleFunc("GET /api/v1/health", h.Health)
}

// ApplyMiddleware wraps handler with recovery and logging middleware.
func ApplyMiddleware(handler http.Handler, logger *slog.Logger) http.Handler {
	// Recovery innermost so panics are caught before logging.
	wrapped := recoveryMiddleware(logger, handler)
	wrapped = loggingMiddleware(logger, wrapped)
	return wrapped
}

// NewServeMux creates an http.Handler with the API routes registered and
// wrapped with logging and recovery middleware.
func NewServeMux(h *Handler, logger *slog.Logger) http.Handler {
	mux := http.NewServeMux()
	RegisterAPIRoutes(mux, h)
	return ApplyMiddleware(mux, logger)
}

// Submit receives one form response and relays it. Every relay outcome,
// including skipped and failed dispatches, is answered with 200 and the
// dispatch record; the form host has nothing to retry.
func (h *Handler) Submit(w http.ResponseWriter, r *http.Request) {
	var req SubmissionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	resp := req.toFormResponse(h.now())

	dispatch, err := h.relaySvc.HandleSubmission(r.Context(), resp, model.DispatchSourceWebhook)
	if err != nil {
		h.logger.Error("failed to relay submission", "submission_id", resp.ID, "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	writeJSON(w, http.StatusOK, toDispatchResponse(dispatch))
}

// ListDispatches returns recent dispatch records, newest first.
func (h *Handler) ListDispatches(w http.ResponseWriter, r *http.Request) {
	limit := defaultListLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = min(n, maxListLimit)
	}

	dispatches, err := h.relaySvc.Recent(r.Context(), limit)
	if err != nil {
		h.logger.Error("failed to list dispatches", "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	resp := make([]DispatchResponse, 0, len(dispatches))
	for _, d := range dispatches {
		resp = append(resp, toDispatchResponse(d))
	}

	writeJSON(w, http.StatusOK, resp)
}

// GetDispatch returns a single dispatch record by ID.
func (h *Handler) GetDispatch(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid dispatch id")
		return
	}

	d, err := h.relaySvc.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, driven.ErrDispatchNotFound) {
			writeError(w, http.StatusNotFound, "dispatch not found")
			return
		}
		h.logger.Error("failed to get dispatch", "id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	writeJSON(w, http.StatusOK, toDispatchResponse(d))
}

// Health returns the service health status.
func (h *Handler) Health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{
		Status: "ok",
		Time:   h.now().UTC().Format(time.RFC3339),
	})
}
