package workflow

import (
	"context"
	"errors"
)

// ErrWorkflowNotFound reports a workflow id with no backing record.
// Resolution treats this as recoverable: log and continue.
var ErrWorkflowNotFound = errors.New("workflow not found")

// Store persists and retrieves workflow records.
type Store interface {
	// GetWorkflow returns a workflow by id.
	// Returns ErrWorkflowNotFound if no such workflow exists.
	GetWorkflow(ctx context.Context, id string) (*Workflow, error)
	// GetWorkflowsByIDs returns the workflows for the given ids.
	// Missing ids are silently omitted from the result.
	GetWorkflowsByIDs(ctx context.Context, ids []string) ([]Workflow, error)
	// SaveWorkflow creates or updates a workflow record.
	SaveWorkflow(ctx context.Context, w *Workflow) error
}
