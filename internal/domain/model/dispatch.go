package model

import "time"

// Dispatch is the recorded outcome of relaying one form submission.
type Dispatch struct {
	ID           int64
	SubmissionID string
	Start        string
	End          string
	Status       DispatchStatus
	StatusCode   int    // HTTP status returned by GitHub; 0 when no call was made or it never completed.
	Error        string // Failure text for StatusFailed; empty otherwise.
	Source       DispatchSource
	SubmittedAt  time.Time // When the form host says the response was submitted; zero if unknown.
	CreatedAt    time.Time
}

// Markers returns the start and end values carried by the record.
func (d Dispatch) Markers() Markers {
	return Markers{Start: d.Start, End: d.End}
}
