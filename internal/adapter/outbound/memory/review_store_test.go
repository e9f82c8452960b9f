package memory

import (
	"context"
	"errors"
	"testing"

	"github.com/reviewgate/reviewgate/internal/domain/review"
)

func TestReviewStore_CreateFromChange(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := NewReviewStore()

	created, err := store.CreateFromChange(ctx, &review.Change{ID: 10, User: "alice", Description: "storage fixes"})
	if err != nil {
		t.Fatalf("CreateFromChange() error: %v", err)
	}
	if created.State != review.StateNeedsReview {
		t.Errorf("State = %q, want %q", created.State, review.StateNeedsReview)
	}
	if created.Author != "alice" {
		t.Errorf("Author = %q, want %q", created.Author, "alice")
	}
	if !created.HasChange(10) {
		t.Error("created review is not linked to the source change")
	}

	found, err := store.FindByChange(ctx, 10)
	if err != nil {
		t.Fatalf("FindByChange() error: %v", err)
	}
	if found == nil || found.ID != created.ID {
		t.Errorf("FindByChange() = %+v, want the created review", found)
	}
}

func TestReviewStore_CreateFromChange_IDsAdvancePastSeeded(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := NewReviewStore()
	store.AddReview(&review.Review{ID: 40, State: review.StateNeedsReview})

	created, err := store.CreateFromChange(ctx, &review.Change{ID: 10, User: "alice"})
	if err != nil {
		t.Fatalf("CreateFromChange() error: %v", err)
	}
	if created.ID <= 40 {
		t.Errorf("created ID = %d, want it above the seeded id 40", created.ID)
	}
}

func TestReviewStore_FindByChange_None(t *testing.T) {
	t.Parallel()

	store := NewReviewStore()
	found, err := store.FindByChange(context.Background(), 10)
	if err != nil {
		t.Fatalf("FindByChange() error: %v", err)
	}
	if found != nil {
		t.Errorf("FindByChange() = %+v, want nil for an unlinked change", found)
	}
}

func TestReviewStore_LinkChange(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := NewReviewStore()
	store.AddReview(&review.Review{ID: 5, State: review.StateNeedsReview})

	linked, err := store.LinkChange(ctx, 5, 10)
	if err != nil {
		t.Fatalf("LinkChange() error: %v", err)
	}
	if !linked.HasChange(10) {
		t.Error("LinkChange() did not record the link")
	}

	// Linking twice must not duplicate the entry.
	linked, err = store.LinkChange(ctx, 5, 10)
	if err != nil {
		t.Fatalf("LinkChange() second call error: %v", err)
	}
	if len(linked.Changes) != 1 {
		t.Errorf("Changes = %v, want one entry after a repeated link", linked.Changes)
	}

	if _, err := store.LinkChange(ctx, 99, 10); !errors.Is(err, review.ErrReviewNotFound) {
		t.Errorf("LinkChange(missing) error = %v, want ErrReviewNotFound", err)
	}
}

func TestReviewStore_GetChange(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := NewReviewStore()
	store.AddChange(&review.Change{ID: 10, User: "alice"})

	got, err := store.GetChange(ctx, 10)
	if err != nil {
		t.Fatalf("GetChange() error: %v", err)
	}
	if got.User != "alice" {
		t.Errorf("User = %q, want %q", got.User, "alice")
	}

	if _, err := store.GetChange(ctx, 99); !errors.Is(err, review.ErrChangeNotFound) {
		t.Errorf("GetChange(missing) error = %v, want ErrChangeNotFound", err)
	}
}

func TestReviewStore_RunsForReview(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := NewReviewStore()
	store.SetTestRuns(5, []review.TestRun{
		{TestID: "unit", Status: review.TestStatusPass},
		{TestID: "lint", Status: review.TestStatusFail},
	})

	runs, err := store.RunsForReview(ctx, 5)
	if err != nil {
		t.Fatalf("RunsForReview() error: %v", err)
	}
	if len(runs) != 2 {
		t.Fatalf("RunsForReview() returned %d runs, want 2", len(runs))
	}

	runs, err = store.RunsForReview(ctx, 6)
	if err != nil {
		t.Fatalf("RunsForReview() error: %v", err)
	}
	if len(runs) != 0 {
		t.Errorf("RunsForReview() = %v, want none for an unknown review", runs)
	}
}

func TestContentStore_SameContent(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := NewContentStore()
	store.SetChangeDigest(10, "abc")
	store.SetReviewDigest(5, "abc")
	store.SetReviewDigest(6, "def")

	tests := []struct {
		name     string
		changeID int64
		reviewID int64
		want     bool
	}{
		{"matching digests", 10, 5, true},
		{"differing digests", 10, 6, false},
		{"unrecorded review digest treated as same", 10, 7, true},
		{"unrecorded change digest treated as same", 11, 5, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got, err := store.SameContent(ctx, tt.changeID, tt.reviewID)
			if err != nil {
				t.Fatalf("SameContent() error: %v", err)
			}
			if got != tt.want {
				t.Errorf("SameContent(%d, %d) = %v, want %v", tt.changeID, tt.reviewID, got, tt.want)
			}
		})
	}
}

func TestGroupStore_IsMember(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := NewGroupStore()
	store.AddMember("ops", "carol")

	member, err := store.IsMember(ctx, "carol", "ops")
	if err != nil {
		t.Fatalf("IsMember() error: %v", err)
	}
	if !member {
		t.Error("IsMember(carol, ops) = false, want true")
	}

	member, err = store.IsMember(ctx, "alice", "ops")
	if err != nil {
		t.Fatalf("IsMember() error: %v", err)
	}
	if member {
		t.Error("IsMember(alice, ops) = true, want false")
	}

	member, err = store.IsMember(ctx, "carol", "no-such-group")
	if err != nil {
		t.Fatalf("IsMember() error: %v", err)
	}
	if member {
		t.Error("IsMember() = true for an unknown group")
	}
}
