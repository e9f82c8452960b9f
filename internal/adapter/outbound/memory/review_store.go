package memory

import (
	"context"
	"sync"

	"github.com/reviewgate/reviewgate/internal/domain/review"
)

// ReviewStore implements review.Store, review.ChangeStore, and
// review.TestRunStore with in-memory maps.
type ReviewStore struct {
	reviews map[int64]*review.Review
	changes map[int64]*review.Change
	runs    map[int64][]review.TestRun
	nextID  int64
	mu      sync.RWMutex
}

// NewReviewStore creates an empty in-memory review store.
func NewReviewStore() *ReviewStore {
	return &ReviewStore{
		reviews: make(map[int64]*review.Review),
		changes: make(map[int64]*review.Change),
		runs:    make(map[int64][]review.TestRun),
		nextID:  1,
	}
}

// GetReview returns a review by id.
// Returns review.ErrReviewNotFound if the review doesn't exist.
func (s *ReviewStore) GetReview(ctx context.Context, id int64) (*review.Review, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, ok := s.reviews[id]
	if !ok {
		return nil, review.ErrReviewNotFound
	}
	return copyReview(r), nil
}

// FindByChange returns the review linked to the given change, or nil when
// no review is linked.
func (s *ReviewStore) FindByChange(ctx context.Context, changeID int64) (*review.Review, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, r := range s.reviews {
		if r.HasChange(changeID) {
			return copyReview(r), nil
		}
	}
	return nil, nil
}

// CreateFromChange creates a new review seeded from the change and links
// the change to it.
func (s *ReviewStore) CreateFromChange(ctx context.Context, c *review.Change) (*review.Review, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	r := &review.Review{
		ID:          s.nextID,
		State:       review.StateNeedsReview,
		Author:      c.User,
		Description: c.Description,
		Changes:     []int64{c.ID},
	}
	s.nextID++
	s.reviews[r.ID] = r
	return copyReview(r), nil
}

// LinkChange links an existing change to an existing review.
// Returns review.ErrReviewNotFound if the review doesn't exist.
func (s *ReviewStore) LinkChange(ctx context.Context, reviewID, changeID int64) (*review.Review, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.reviews[reviewID]
	if !ok {
		return nil, review.ErrReviewNotFound
	}
	if !r.HasChange(changeID) {
		r.Changes = append(r.Changes, changeID)
	}
	return copyReview(r), nil
}

// AddReview adds a review (for testing/seeding). IDs at or above the
// internal counter advance it so auto-created reviews never collide.
func (s *ReviewStore) AddReview(r *review.Review) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.reviews[r.ID] = copyReview(r)
	if r.ID >= s.nextID {
		s.nextID = r.ID + 1
	}
}

// GetChange returns a change by id.
// Returns review.ErrChangeNotFound if the change doesn't exist.
func (s *ReviewStore) GetChange(ctx context.Context, id int64) (*review.Change, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.changes[id]
	if !ok {
		return nil, review.ErrChangeNotFound
	}
	out := *c
	return &out, nil
}

// AddChange adds a change (for testing/seeding).
func (s *ReviewStore) AddChange(c *review.Change) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := *c
	s.changes[c.ID] = &out
}

// RunsForReview returns the test runs recorded against a review.
func (s *ReviewStore) RunsForReview(ctx context.Context, reviewID int64) ([]review.TestRun, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return append([]review.TestRun(nil), s.runs[reviewID]...), nil
}

// SetTestRuns records the test runs for a review (for testing/seeding).
func (s *ReviewStore) SetTestRuns(reviewID int64, runs []review.TestRun) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.runs[reviewID] = append([]review.TestRun(nil), runs...)
}

func copyReview(r *review.Review) *review.Review {
	out := *r
	out.Changes = append([]int64(nil), r.Changes...)
	out.Commits = append([]int64(nil), r.Commits...)
	return &out
}

// Compile-time interface verification.
var (
	_ review.Store        = (*ReviewStore)(nil)
	_ review.ChangeStore  = (*ReviewStore)(nil)
	_ review.TestRunStore = (*ReviewStore)(nil)
)
