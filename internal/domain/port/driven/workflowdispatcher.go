// Package driven defines secondary port interfaces for external adapters.
package driven

import (
	"context"

	"github.com/ericfisherdev/formrelay/internal/domain/model"
)

// WorkflowDispatcher defines the driven port for triggering remote workflows.
type WorkflowDispatcher interface {
	// DispatchWorkflow issues one workflow_dispatch call for target. The
	// returned status code is the HTTP status of the response, and is also
	// populated alongside a non-nil error when the API rejected the call.
	// It is 0 when no response was received.
	DispatchWorkflow(ctx context.Context, target model.DispatchTarget, dispatch model.WorkflowDispatch) (int, error)

	// GetWorkflow looks up the workflow file named by target.
	GetWorkflow(ctx context.Context, target model.DispatchTarget) (*model.Workflow, error)
}
