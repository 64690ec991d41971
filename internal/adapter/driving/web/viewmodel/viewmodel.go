// Package viewmodel defines presentation-ready structs for templ components.
// View models decouple template rendering from domain model types.
package viewmodel

// DashboardViewModel holds everything the dashboard page renders.
type DashboardViewModel struct {
	Target          string // "owner/repo"
	Workflow        string
	Ref             string
	DescriptionHTML string // Sanitized HTML rendered from operator markdown.
	CSRFToken       string
	Dispatches      []DispatchRowViewModel
	Counts          StatusCounts
}

// DispatchRowViewModel is one row of the dispatch history table.
type DispatchRowViewModel struct {
	ID            int64
	SubmissionID  string
	Start         string
	End           string
	Status        string
	StatusCode    int
	Error         string
	Source        string
	CreatedAt     string
	SubmittedAt   string // Empty when the form host sent no timestamp.
	CanRedispatch bool
	RedispatchURL string
}

// StatusCounts tallies the rows on the page by outcome.
type StatusCounts struct {
	Dispatched int
	Failed     int
	Skipped    int
	Duplicate  int
}
