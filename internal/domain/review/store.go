package review

import (
	"context"
	"errors"
)

// Error types for review and change lookups.
var (
	ErrReviewNotFound = errors.New("review not found")
	ErrChangeNotFound = errors.New("change not found")
)

// Store persists and retrieves review records.
type Store interface {
	// GetReview returns a review by id.
	// Returns ErrReviewNotFound if no such review exists.
	GetReview(ctx context.Context, id int64) (*Review, error)
	// FindByChange returns the review linked to the given change, or nil
	// when no review is linked. Absence is not an error.
	FindByChange(ctx context.Context, changeID int64) (*Review, error)
	// CreateFromChange creates a new review seeded from the change and
	// links the change to it.
	CreateFromChange(ctx context.Context, c *Change) (*Review, error)
	// LinkChange links an existing change to an existing review.
	// Returns ErrReviewNotFound if the review does not exist.
	LinkChange(ctx context.Context, reviewID, changeID int64) (*Review, error)
}

// ChangeStore retrieves change records.
type ChangeStore interface {
	// GetChange returns a change by id.
	// Returns ErrChangeNotFound if no such change exists.
	GetChange(ctx context.Context, id int64) (*Change, error)
}

// TestRunStore retrieves recorded automated test runs.
type TestRunStore interface {
	// RunsForReview returns the test runs recorded against a review.
	RunsForReview(ctx context.Context, reviewID int64) ([]TestRun, error)
}
