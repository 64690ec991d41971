package model

// DispatchStatus represents the outcome of a relay attempt.
type DispatchStatus string

const (
	DispatchStatusDispatched DispatchStatus = "dispatched"
	DispatchStatusFailed     DispatchStatus = "failed"
	DispatchStatusSkipped    DispatchStatus = "skipped"   // Markers missing; no call made.
	DispatchStatusDuplicate  DispatchStatus = "duplicate" // Submission already dispatched; no call made.
)

// DispatchSource records what triggered a relay attempt.
type DispatchSource string

const (
	DispatchSourceWebhook    DispatchSource = "webhook"
	DispatchSourceCLI        DispatchSource = "cli"
	DispatchSourceRedispatch DispatchSource = "redispatch"
)
