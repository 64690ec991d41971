package model

import "time"

// FormItem is a single question/answer pair from a submitted form.
type FormItem struct {
	Title    string
	Response string
}

// FormResponse is one submission received from the form host.
type FormResponse struct {
	ID          string
	SubmittedAt time.Time
	Items       []FormItem
}

// Markers holds the start and end values read from a form response.
type Markers struct {
	Start string
	End   string
}

// Complete reports whether both markers carry a value.
func (m Markers) Complete() bool {
	return m.Start != "" && m.End != ""
}
