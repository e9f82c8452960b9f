// Package memory provides in-memory implementations of the outbound store
// ports. Thread-safe; intended for development and testing.
package memory

import (
	"context"
	"sync"

	"github.com/reviewgate/reviewgate/internal/domain/workflow"
)

// WorkflowStore implements workflow.Store with an in-memory map.
type WorkflowStore struct {
	workflows map[string]*workflow.Workflow
	mu        sync.RWMutex
}

// NewWorkflowStore creates an empty in-memory workflow store.
func NewWorkflowStore() *WorkflowStore {
	return &WorkflowStore{workflows: make(map[string]*workflow.Workflow)}
}

// GetWorkflow returns a workflow by id.
// Returns workflow.ErrWorkflowNotFound if the workflow doesn't exist.
func (s *WorkflowStore) GetWorkflow(ctx context.Context, id string) (*workflow.Workflow, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	w, ok := s.workflows[id]
	if !ok {
		return nil, workflow.ErrWorkflowNotFound
	}
	return copyWorkflow(w), nil
}

// GetWorkflowsByIDs returns the workflows for the given ids, omitting ids
// with no backing record.
func (s *WorkflowStore) GetWorkflowsByIDs(ctx context.Context, ids []string) ([]workflow.Workflow, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []workflow.Workflow
	for _, id := range ids {
		if w, ok := s.workflows[id]; ok {
			result = append(result, *copyWorkflow(w))
		}
	}
	return result, nil
}

// SaveWorkflow creates or updates a workflow record.
func (s *WorkflowStore) SaveWorkflow(ctx context.Context, w *workflow.Workflow) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.workflows[w.ID] = copyWorkflow(w)
	return nil
}

// AddWorkflow adds a workflow (for testing/seeding).
func (s *WorkflowStore) AddWorkflow(w *workflow.Workflow) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.workflows[w.ID] = copyWorkflow(w)
}

// copyWorkflow creates a deep copy of a workflow.
func copyWorkflow(w *workflow.Workflow) *workflow.Workflow {
	out := *w
	out.GroupExclusions.IDs = append([]string(nil), w.GroupExclusions.IDs...)
	out.UserExclusions.IDs = append([]string(nil), w.UserExclusions.IDs...)
	out.Tests = make([]workflow.TestRule, len(w.Tests))
	for i, t := range w.Tests {
		out.Tests[i] = workflow.TestRule{
			TestID: t.TestID,
			Blocks: append([]string(nil), t.Blocks...),
		}
	}
	return &out
}

// Compile-time interface verification.
var _ workflow.Store = (*WorkflowStore)(nil)
