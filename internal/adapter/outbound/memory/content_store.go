package memory

import (
	"context"
	"sync"

	"github.com/reviewgate/reviewgate/internal/domain/enforce"
)

// ContentStore implements enforce.ContentComparer over recorded content
// digests. The real comparer diffs depot content through the version-control
// connection; this adapter compares digests seeded by tests and fixtures.
type ContentStore struct {
	changeDigests map[int64]string
	reviewDigests map[int64]string
	mu            sync.RWMutex
}

// NewContentStore creates an empty in-memory content store.
func NewContentStore() *ContentStore {
	return &ContentStore{
		changeDigests: make(map[int64]string),
		reviewDigests: make(map[int64]string),
	}
}

// SetChangeDigest records the content digest of a change.
func (s *ContentStore) SetChangeDigest(changeID int64, digest string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.changeDigests[changeID] = digest
}

// SetReviewDigest records the head content digest of a review.
func (s *ContentStore) SetReviewDigest(reviewID int64, digest string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.reviewDigests[reviewID] = digest
}

// SameContent compares the recorded digests of a change and a review head.
// When either digest is unrecorded the contents are treated as identical.
func (s *ContentStore) SameContent(ctx context.Context, changeID, reviewID int64) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	cd, okC := s.changeDigests[changeID]
	rd, okR := s.reviewDigests[reviewID]
	if !okC || !okR {
		return true, nil
	}
	return cd == rd, nil
}

// Compile-time interface verification.
var _ enforce.ContentComparer = (*ContentStore)(nil)
