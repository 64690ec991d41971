// Package web implements the HTML status page driving adapter using templ components.
package web

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/ericfisherdev/formrelay/internal/adapter/driving/web/viewmodel"
	"github.com/ericfisherdev/formrelay/internal/application"
	"github.com/ericfisherdev/formrelay/internal/domain/model"
	"github.com/ericfisherdev/formrelay/internal/domain/port/driven"
)

const dashboardLimit = 100

// Handler is the web GUI driving adapter that serves HTML via templ components.
type Handler struct {
	relaySvc        *application.RelayService
	descriptionHTML string
	logger          *slog.Logger
}

// NewHandler creates a Handler. description is operator-supplied markdown
// shown above the history table; it is rendered once here.
func NewHandler(relaySvc *application.RelayService, description string, logger *slog.Logger) *Handler {
	return &Handler{
		relaySvc:        relaySvc,
		descriptionHTML: RenderDescription(description),
		logger:          logger,
	}
}

// Dashboard renders the main page with the recent dispatch history.
func (h *Handler) Dashboard(w http.ResponseWriter, r *http.Request) {
	dispatches, err := h.relaySvc.Recent(r.Context(), dashboardLimit)
	if err != nil {
		h.logger.Error("failed to load dispatches for dashboard", "error", err)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	target := h.relaySvc.Target()
	vm := viewmodel.DashboardViewModel{
		Target:          target.FullName(),
		Workflow:        target.Workflow,
		Ref:             target.Ref,
		DescriptionHTML: h.descriptionHTML,
		CSRFToken:       csrfToken(w, r),
		Dispatches:      make([]viewmodel.DispatchRowViewModel, 0, len(dispatches)),
	}
	for _, d := range dispatches {
		vm.Dispatches = append(vm.Dispatches, toDispatchRow(d))
		countStatus(&vm.Counts, d.Status)
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	layout := Layout("formrelay", Dashboard(vm))
	if err := layout.Render(r.Context(), w); err != nil {
		h.logger.Error("failed to render dashboard", "error", err)
		http.Error(w, "internal server error", http.StatusInternalServerError)
	}
}

// Redispatch re-sends the markers of a stored dispatch and redirects back
// to the dashboard.
func (h *Handler) Redispatch(w http.ResponseWriter, r *http.Request) {
	if !validateCSRF(r) {
		http.Error(w, "invalid CSRF token", http.StatusForbidden)
		return
	}

	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		http.Error(w, "invalid dispatch id", http.StatusBadRequest)
		return
	}

	d, err := h.relaySvc.Redispatch(r.Context(), id)
	if err != nil {
		if errors.Is(err, driven.ErrDispatchNotFound) {
			http.Error(w, "dispatch not found", http.StatusNotFound)
			return
		}
		if errors.Is(err, application.ErrIncompleteMarkers) {
			http.Error(w, "dispatch has no start and end markers to resend", http.StatusConflict)
			return
		}
		h.logger.Error("redispatch failed", "id", id, "error", err)
		http.Error(w, "redispatch failed", http.StatusInternalServerError)
		return
	}

	h.logger.Info("redispatch requested from dashboard", "id", id, "new_id", d.ID, "status", d.Status)
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func toDispatchRow(d model.Dispatch) viewmodel.DispatchRowViewModel {
	var submittedAt string
	if !d.SubmittedAt.IsZero() {
		submittedAt = d.SubmittedAt.UTC().Format(time.DateTime)
	}
	return viewmodel.DispatchRowViewModel{
		ID:            d.ID,
		SubmissionID:  d.SubmissionID,
		Start:         d.Start,
		End:           d.End,
		Status:        string(d.Status),
		StatusCode:    d.StatusCode,
		Error:         d.Error,
		Source:        string(d.Source),
		CreatedAt:     d.CreatedAt.UTC().Format(time.DateTime),
		SubmittedAt:   submittedAt,
		CanRedispatch: d.Status == model.DispatchStatusFailed && d.Markers().Complete(),
		RedispatchURL: fmt.Sprintf("/dispatches/%d/redispatch", d.ID),
	}
}

func countStatus(c *viewmodel.StatusCounts, status model.DispatchStatus) {
	switch status {
	case model.DispatchStatusDispatched:
		c.Dispatched++
	case model.DispatchStatusFailed:
		c.Failed++
	case model.DispatchStatusSkipped:
		c.Skipped++
	case model.DispatchStatusDuplicate:
		c.Duplicate++
	}
}
