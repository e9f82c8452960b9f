package service

import (
	"context"
	"errors"
	"testing"

	"github.com/reviewgate/reviewgate/internal/adapter/outbound/memory"
	"github.com/reviewgate/reviewgate/internal/domain/workflow"
)

func TestExclusionEvaluator_Excluded(t *testing.T) {
	t.Parallel()

	groups := memory.NewGroupStore()
	groups.AddMember("release-engineering", "carol")
	eval := NewExclusionEvaluator(groups, testLogger())

	merged := &workflow.Merged{
		UserExclusions:  []string{"build-bot"},
		GroupExclusions: []string{"release-engineering"},
	}

	tests := []struct {
		name string
		user string
		want bool
	}{
		{"direct user match", "build-bot", true},
		{"group member", "carol", true},
		{"unrelated user", "alice", false},
		{"group id is not a user id", "release-engineering", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got, err := eval.Excluded(context.Background(), tt.user, merged)
			if err != nil {
				t.Fatalf("Excluded(%q) error: %v", tt.user, err)
			}
			if got != tt.want {
				t.Errorf("Excluded(%q) = %v, want %v", tt.user, got, tt.want)
			}
		})
	}
}

func TestExclusionEvaluator_NoExclusions(t *testing.T) {
	t.Parallel()

	eval := NewExclusionEvaluator(memory.NewGroupStore(), testLogger())
	got, err := eval.Excluded(context.Background(), "alice", &workflow.Merged{})
	if err != nil {
		t.Fatalf("Excluded() error: %v", err)
	}
	if got {
		t.Error("Excluded() = true with no exclusions configured")
	}
}

// failingGroupChecker injects membership lookup failures.
type failingGroupChecker struct {
	err error
}

func (c *failingGroupChecker) IsMember(ctx context.Context, userID, groupID string) (bool, error) {
	return false, c.err
}

func TestExclusionEvaluator_LookupFailurePropagates(t *testing.T) {
	t.Parallel()

	wantErr := errors.New("directory unreachable")
	eval := NewExclusionEvaluator(&failingGroupChecker{err: wantErr}, testLogger())

	merged := &workflow.Merged{GroupExclusions: []string{"ops"}}
	if _, err := eval.Excluded(context.Background(), "alice", merged); !errors.Is(err, wantErr) {
		t.Errorf("Excluded() error = %v, want %v", err, wantErr)
	}
}

func TestExclusionEvaluator_DirectMatchSkipsGroupLookup(t *testing.T) {
	t.Parallel()

	// A direct user exclusion must short-circuit before any group traffic.
	eval := NewExclusionEvaluator(&failingGroupChecker{err: errors.New("should not be called")}, testLogger())

	merged := &workflow.Merged{
		UserExclusions:  []string{"build-bot"},
		GroupExclusions: []string{"ops"},
	}
	got, err := eval.Excluded(context.Background(), "build-bot", merged)
	if err != nil {
		t.Fatalf("Excluded() error: %v", err)
	}
	if !got {
		t.Error("Excluded() = false for a directly excluded user")
	}
}
