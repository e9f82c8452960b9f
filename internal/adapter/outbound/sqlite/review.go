package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/reviewgate/reviewgate/internal/domain/enforce"
	"github.com/reviewgate/reviewgate/internal/domain/review"
)

func (s *Store) loadReviewLinks(ctx context.Context, r *review.Review) error {
	for _, link := range []struct {
		table string
		dst   *[]int64
	}{
		{"review_changes", &r.Changes},
		{"review_commits", &r.Commits},
	} {
		rows, err := s.db.QueryContext(ctx,
			`SELECT change_id FROM `+link.table+` WHERE review_id = ? ORDER BY change_id`, r.ID)
		if err != nil {
			return fmt.Errorf("load %s for review %d: %w", link.table, r.ID, err)
		}
		for rows.Next() {
			var id int64
			if err := rows.Scan(&id); err != nil {
				rows.Close()
				return fmt.Errorf("scan %s: %w", link.table, err)
			}
			*link.dst = append(*link.dst, id)
		}
		if err := rows.Err(); err != nil {
			rows.Close()
			return fmt.Errorf("iterate %s: %w", link.table, err)
		}
		rows.Close()
	}
	return nil
}

// GetReview returns a review by id.
// Returns review.ErrReviewNotFound if no such review exists.
func (s *Store) GetReview(ctx context.Context, id int64) (*review.Review, error) {
	var (
		r             review.Review
		pendingCommit int
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT id, state, author, description, pending_commit FROM reviews WHERE id = ?`, id).
		Scan(&r.ID, &r.State, &r.Author, &r.Description, &pendingCommit)
	if isNoRows(err) {
		return nil, review.ErrReviewNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get review %d: %w", id, err)
	}
	r.PendingCommit = pendingCommit != 0
	if err := s.loadReviewLinks(ctx, &r); err != nil {
		return nil, err
	}
	return &r, nil
}

// FindByChange returns the review linked to the given change, or nil when
// no review is linked.
func (s *Store) FindByChange(ctx context.Context, changeID int64) (*review.Review, error) {
	var reviewID int64
	err := s.db.QueryRowContext(ctx,
		`SELECT review_id FROM review_changes WHERE change_id = ? ORDER BY review_id LIMIT 1`, changeID).
		Scan(&reviewID)
	if isNoRows(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find review for change %d: %w", changeID, err)
	}
	return s.GetReview(ctx, reviewID)
}

// CreateFromChange creates a new review seeded from the change and links
// the change to it.
func (s *Store) CreateFromChange(ctx context.Context, c *review.Change) (*review.Review, error) {
	var reviewID int64
	err := s.tx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `
			INSERT INTO reviews (state, author, description, pending_commit)
			VALUES (?, ?, ?, 0)`,
			string(review.StateNeedsReview), c.User, c.Description)
		if err != nil {
			return fmt.Errorf("create review from change %d: %w", c.ID, err)
		}
		reviewID, err = res.LastInsertId()
		if err != nil {
			return fmt.Errorf("new review id: %w", err)
		}
		_, err = tx.ExecContext(ctx, `
			INSERT INTO review_changes (review_id, change_id) VALUES (?, ?)`,
			reviewID, c.ID)
		if err != nil {
			return fmt.Errorf("link change %d to review %d: %w", c.ID, reviewID, err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return s.GetReview(ctx, reviewID)
}

// LinkChange links an existing change to an existing review.
// Returns review.ErrReviewNotFound if the review doesn't exist.
func (s *Store) LinkChange(ctx context.Context, reviewID, changeID int64) (*review.Review, error) {
	if _, err := s.GetReview(ctx, reviewID); err != nil {
		return nil, err
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO review_changes (review_id, change_id) VALUES (?, ?)
		ON CONFLICT(review_id, change_id) DO NOTHING`,
		reviewID, changeID)
	if err != nil {
		return nil, fmt.Errorf("link change %d to review %d: %w", changeID, reviewID, err)
	}
	return s.GetReview(ctx, reviewID)
}

// SaveReview creates or updates a review record with its links (seeding).
func (s *Store) SaveReview(ctx context.Context, r *review.Review) error {
	return s.tx(ctx, func(tx *sql.Tx) error {
		pending := 0
		if r.PendingCommit {
			pending = 1
		}
		_, err := tx.ExecContext(ctx, `
			INSERT INTO reviews (id, state, author, description, pending_commit)
			VALUES (?, ?, ?, ?, ?)
			ON CONFLICT(id) DO UPDATE SET
				state = excluded.state,
				author = excluded.author,
				description = excluded.description,
				pending_commit = excluded.pending_commit`,
			r.ID, string(r.State), r.Author, r.Description, pending)
		if err != nil {
			return fmt.Errorf("save review %d: %w", r.ID, err)
		}
		for _, link := range []struct {
			table string
			ids   []int64
		}{
			{"review_changes", r.Changes},
			{"review_commits", r.Commits},
		} {
			if _, err := tx.ExecContext(ctx,
				`DELETE FROM `+link.table+` WHERE review_id = ?`, r.ID); err != nil {
				return fmt.Errorf("clear %s for review %d: %w", link.table, r.ID, err)
			}
			for _, changeID := range link.ids {
				if _, err := tx.ExecContext(ctx,
					`INSERT INTO `+link.table+` (review_id, change_id) VALUES (?, ?)`,
					r.ID, changeID); err != nil {
					return fmt.Errorf("save %s for review %d: %w", link.table, r.ID, err)
				}
			}
		}
		return nil
	})
}

// GetChange returns a change by id.
// Returns review.ErrChangeNotFound if no such change exists.
func (s *Store) GetChange(ctx context.Context, id int64) (*review.Change, error) {
	var c review.Change
	err := s.db.QueryRowContext(ctx,
		`SELECT id, user, description FROM changes WHERE id = ?`, id).
		Scan(&c.ID, &c.User, &c.Description)
	if isNoRows(err) {
		return nil, fmt.Errorf("%w: change %d", review.ErrChangeNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("get change %d: %w", id, err)
	}
	return &c, nil
}

// SaveChange creates or updates a change record (seeding).
func (s *Store) SaveChange(ctx context.Context, c *review.Change) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO changes (id, user, description) VALUES (?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			user = excluded.user,
			description = excluded.description`,
		c.ID, c.User, c.Description)
	if err != nil {
		return fmt.Errorf("save change %d: %w", c.ID, err)
	}
	return nil
}

// RunsForReview returns the test runs recorded against a review.
func (s *Store) RunsForReview(ctx context.Context, reviewID int64) ([]review.TestRun, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT test_id, status FROM test_runs WHERE review_id = ? ORDER BY test_id`, reviewID)
	if err != nil {
		return nil, fmt.Errorf("test runs for review %d: %w", reviewID, err)
	}
	defer rows.Close()

	var runs []review.TestRun
	for rows.Next() {
		var run review.TestRun
		if err := rows.Scan(&run.TestID, &run.Status); err != nil {
			return nil, fmt.Errorf("scan test run: %w", err)
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate test runs: %w", err)
	}
	return runs, nil
}

// SaveTestRun records a test run against a review (seeding).
func (s *Store) SaveTestRun(ctx context.Context, reviewID int64, run review.TestRun) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO test_runs (review_id, test_id, status) VALUES (?, ?, ?)
		ON CONFLICT(review_id, test_id) DO UPDATE SET status = excluded.status`,
		reviewID, run.TestID, string(run.Status))
	if err != nil {
		return fmt.Errorf("save test run %s for review %d: %w", run.TestID, reviewID, err)
	}
	return nil
}

// AddGroupMember records userID as a member of groupID (seeding).
func (s *Store) AddGroupMember(ctx context.Context, groupID, userID string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO group_members (group_id, user_id) VALUES (?, ?)
		ON CONFLICT(group_id, user_id) DO NOTHING`,
		groupID, userID)
	if err != nil {
		return fmt.Errorf("add member %s to group %s: %w", userID, groupID, err)
	}
	return nil
}

// IsMember reports whether userID belongs to groupID.
func (s *Store) IsMember(ctx context.Context, userID, groupID string) (bool, error) {
	var one int
	err := s.db.QueryRowContext(ctx,
		`SELECT 1 FROM group_members WHERE group_id = ? AND user_id = ?`, groupID, userID).
		Scan(&one)
	if isNoRows(err) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("group membership %s/%s: %w", userID, groupID, err)
	}
	return true, nil
}

// Compile-time interface verification.
var (
	_ review.Store         = (*Store)(nil)
	_ review.ChangeStore   = (*Store)(nil)
	_ review.TestRunStore  = (*Store)(nil)
	_ enforce.GroupChecker = (*Store)(nil)
)
