package httphandler

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ericfisherdev/formrelay/internal/domain/model"
)

// SubmissionRequest is the JSON body the form host posts for each response.
type SubmissionRequest struct {
	ResponseID  string           `json:"responseId"`
	SubmittedAt string           `json:"submittedAt"`
	Items       []SubmissionItem `json:"items"`
}

// SubmissionItem is one answered question. Response is a string, or an array
// of strings for multi-select questions.
type SubmissionItem struct {
	Title    string       `json:"title"`
	Response itemResponse `json:"response"`
}

// itemResponse accepts either a JSON string or an array of strings. Arrays
// are joined with ", ".
type itemResponse string

// UnmarshalJSON implements json.Unmarshaler.
func (r *itemResponse) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*r = ""
		return nil
	}

	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*r = itemResponse(s)
		return nil
	}

	var list []string
	if err := json.Unmarshal(data, &list); err != nil {
		return errors.New("response must be a string or an array of strings")
	}
	*r = itemResponse(strings.Join(list, ", "))
	return nil
}

// toFormResponse maps the wire request to the domain type. A missing
// responseId is replaced by a random UUID; an unparsable submittedAt falls
// back to now.
func (req SubmissionRequest) toFormResponse(now time.Time) model.FormResponse {
	id := strings.TrimSpace(req.ResponseID)
	if id == "" {
		id = uuid.NewString()
	}

	submittedAt := now.UTC()
	if req.SubmittedAt != "" {
		if t, err := time.Parse(time.RFC3339, req.SubmittedAt); err == nil {
			submittedAt = t.UTC()
		}
	}

	items := make([]model.FormItem, 0, len(req.Items))
	for _, it := range req.Items {
		items = append(items, model.FormItem{
			Title:    it.Title,
			Response: string(it.Response),
		})
	}

	return model.FormResponse{
		ID:          id,
		SubmittedAt: submittedAt,
		Items:       items,
	}
}
