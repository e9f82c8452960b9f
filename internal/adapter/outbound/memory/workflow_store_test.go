package memory

import (
	"context"
	"errors"
	"testing"

	"github.com/reviewgate/reviewgate/internal/domain/workflow"
)

func TestWorkflowStore_GetWorkflow(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := NewWorkflowStore()
	store.AddWorkflow(&workflow.Workflow{ID: "wf", Name: "Strict"})

	got, err := store.GetWorkflow(ctx, "wf")
	if err != nil {
		t.Fatalf("GetWorkflow() error: %v", err)
	}
	if got.Name != "Strict" {
		t.Errorf("Name = %q, want %q", got.Name, "Strict")
	}

	if _, err := store.GetWorkflow(ctx, "missing"); !errors.Is(err, workflow.ErrWorkflowNotFound) {
		t.Errorf("GetWorkflow(missing) error = %v, want ErrWorkflowNotFound", err)
	}
}

func TestWorkflowStore_GetWorkflowsByIDs_OmitsMissing(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := NewWorkflowStore()
	store.AddWorkflow(&workflow.Workflow{ID: "a"})
	store.AddWorkflow(&workflow.Workflow{ID: "c"})

	got, err := store.GetWorkflowsByIDs(ctx, []string{"a", "b", "c"})
	if err != nil {
		t.Fatalf("GetWorkflowsByIDs() error: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("GetWorkflowsByIDs() returned %d workflows, want 2", len(got))
	}
	if got[0].ID != "a" || got[1].ID != "c" {
		t.Errorf("GetWorkflowsByIDs() = [%s %s], want [a c]", got[0].ID, got[1].ID)
	}
}

func TestWorkflowStore_ReturnsCopies(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := NewWorkflowStore()
	store.AddWorkflow(&workflow.Workflow{
		ID:             "wf",
		UserExclusions: workflow.ExclusionValue{IDs: []string{"alice"}},
	})

	first, err := store.GetWorkflow(ctx, "wf")
	if err != nil {
		t.Fatalf("GetWorkflow() error: %v", err)
	}
	first.UserExclusions.IDs[0] = "mallory"

	second, err := store.GetWorkflow(ctx, "wf")
	if err != nil {
		t.Fatalf("GetWorkflow() error: %v", err)
	}
	if second.UserExclusions.IDs[0] != "alice" {
		t.Error("GetWorkflow() shares backing arrays with the stored record")
	}
}

func TestWorkflowStore_SaveWorkflow_Overwrites(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := NewWorkflowStore()
	if err := store.SaveWorkflow(ctx, &workflow.Workflow{ID: "wf", Name: "v1"}); err != nil {
		t.Fatalf("SaveWorkflow() error: %v", err)
	}
	if err := store.SaveWorkflow(ctx, &workflow.Workflow{ID: "wf", Name: "v2"}); err != nil {
		t.Fatalf("SaveWorkflow() error: %v", err)
	}

	got, err := store.GetWorkflow(ctx, "wf")
	if err != nil {
		t.Fatalf("GetWorkflow() error: %v", err)
	}
	if got.Name != "v2" {
		t.Errorf("Name = %q, want the save to overwrite", got.Name)
	}
}
