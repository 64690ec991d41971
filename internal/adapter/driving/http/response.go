package httphandler

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/ericfisherdev/formrelay/internal/domain/model"
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

// DispatchResponse is the JSON representation of a dispatch record.
type DispatchResponse struct {
	ID           int64  `json:"id"`
	SubmissionID string `json:"submission_id"`
	Start        string `json:"start"`
	End          string `json:"end"`
	Status       string `json:"status"`
	StatusCode   int    `json:"status_code"`
	Error        string `json:"error,omitempty"`
	Source       string `json:"source"`
	SubmittedAt  string `json:"submitted_at,omitempty"`
	CreatedAt    string `json:"created_at"`
}

// HealthResponse is the JSON representation of the health check endpoint.
type HealthResponse struct {
	Status string `json:"status"`
	Time   string `json:"time"`
}

// toDispatchResponse converts a domain Dispatch to its JSON response representation.
func toDispatchResponse(d model.Dispatch) DispatchResponse {
	var submittedAt string
	if !d.SubmittedAt.IsZero() {
		submittedAt = d.SubmittedAt.UTC().Format(time.RFC3339)
	}
	return DispatchResponse{
		ID:           d.ID,
		SubmissionID: d.SubmissionID,
		Start:        d.Start,
		End:          d.End,
		Status:       string(d.Status),
		StatusCode:   d.StatusCode,
		Error:        d.Error,
		Source:       string(d.Source),
		SubmittedAt:  submittedAt,
		CreatedAt:    d.CreatedAt.UTC().Format(time.RFC3339),
	}
}
