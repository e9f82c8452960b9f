package sqlite

import (
	"context"
	"fmt"

	"github.com/reviewgate/reviewgate/internal/domain/enforce"
)

// Content digest kinds.
const (
	contentKindChange = "change"
	contentKindReview = "review"
)

// SetChangeDigest records the content digest of a change.
func (s *Store) SetChangeDigest(ctx context.Context, changeID int64, digest string) error {
	return s.setDigest(ctx, contentKindChange, changeID, digest)
}

// SetReviewDigest records the head content digest of a review.
func (s *Store) SetReviewDigest(ctx context.Context, reviewID int64, digest string) error {
	return s.setDigest(ctx, contentKindReview, reviewID, digest)
}

func (s *Store) setDigest(ctx context.Context, kind string, id int64, digest string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO content_digests (kind, id, digest) VALUES (?, ?, ?)
		ON CONFLICT(kind, id) DO UPDATE SET digest = excluded.digest`,
		kind, id, digest)
	if err != nil {
		return fmt.Errorf("save %s digest %d: %w", kind, id, err)
	}
	return nil
}

func (s *Store) digest(ctx context.Context, kind string, id int64) (string, bool, error) {
	var d string
	err := s.db.QueryRowContext(ctx,
		`SELECT digest FROM content_digests WHERE kind = ? AND id = ?`, kind, id).
		Scan(&d)
	if isNoRows(err) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("get %s digest %d: %w", kind, id, err)
	}
	return d, true, nil
}

// SameContent compares the recorded digests of a change and a review head.
// When either digest is unrecorded the contents are treated as identical.
func (s *Store) SameContent(ctx context.Context, changeID, reviewID int64) (bool, error) {
	cd, okC, err := s.digest(ctx, contentKindChange, changeID)
	if err != nil {
		return false, err
	}
	rd, okR, err := s.digest(ctx, contentKindReview, reviewID)
	if err != nil {
		return false, err
	}
	if !okC || !okR {
		return true, nil
	}
	return cd == rd, nil
}

// Compile-time interface verification.
var _ enforce.ContentComparer = (*Store)(nil)
