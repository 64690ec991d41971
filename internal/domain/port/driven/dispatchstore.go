package driven

import (
	"context"
	"errors"

	"github.com/ericfisherdev/formrelay/internal/domain/model"
)

// ErrDispatchNotFound indicates the requested dispatch record does not exist.
var ErrDispatchNotFound = errors.New("dispatch not found")

// DispatchStore defines the driven port for the dispatch ledger.
type DispatchStore interface {
	// Record persists d and returns it with ID and CreatedAt populated.
	Record(ctx context.Context, d model.Dispatch) (model.Dispatch, error)

	// GetByID returns ErrDispatchNotFound when no record has the given ID.
	GetByID(ctx context.Context, id int64) (model.Dispatch, error)

	// FindDispatched returns the earliest successful dispatch for a
	// submission, or nil if the submission was never dispatched.
	FindDispatched(ctx context.Context, submissionID string) (*model.Dispatch, error)

	// ListRecent returns up to limit records, newest first.
	ListRecent(ctx context.Context, limit int) ([]model.Dispatch, error)

	// ClaimSubmission atomically reserves submissionID for a dispatch. It
	// returns false when the ID is already claimed, either by a dispatch in
	// flight or by one that succeeded.
	ClaimSubmission(ctx context.Context, submissionID string) (bool, error)

	// ReleaseSubmission drops the claim on submissionID so a later attempt
	// may dispatch it. Releasing an unclaimed ID is not an error.
	ReleaseSubmission(ctx context.Context, submissionID string) error
}
