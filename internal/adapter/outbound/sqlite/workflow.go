package sqlite

import (
	"context"
	"fmt"
	"strings"

	"github.com/reviewgate/reviewgate/internal/domain/workflow"
)

const workflowColumns = `id, name, description,
	with_review, with_review_mode,
	without_review, without_review_mode,
	end_rule_update, end_rule_update_mode,
	auto_approve, auto_approve_mode,
	counted_votes, counted_votes_mode,
	group_exclusions, group_exclusions_mode,
	user_exclusions, user_exclusions_mode,
	tests`

func scanWorkflow(row interface{ Scan(...any) error }) (*workflow.Workflow, error) {
	var (
		w                        workflow.Workflow
		groupIDs, userIDs, tests string
	)
	err := row.Scan(
		&w.ID, &w.Name, &w.Description,
		&w.OnSubmitWithReview.Rule, &w.OnSubmitWithReview.Mode,
		&w.OnSubmitWithoutReview.Rule, &w.OnSubmitWithoutReview.Mode,
		&w.EndRuleUpdate.Rule, &w.EndRuleUpdate.Mode,
		&w.AutoApprove.Rule, &w.AutoApprove.Mode,
		&w.CountedVotes.Rule, &w.CountedVotes.Mode,
		&groupIDs, &w.GroupExclusions.Mode,
		&userIDs, &w.UserExclusions.Mode,
		&tests,
	)
	if err != nil {
		return nil, err
	}
	if err := unmarshalJSON(groupIDs, &w.GroupExclusions.IDs); err != nil {
		return nil, fmt.Errorf("workflow %s group exclusions: %w", w.ID, err)
	}
	if err := unmarshalJSON(userIDs, &w.UserExclusions.IDs); err != nil {
		return nil, fmt.Errorf("workflow %s user exclusions: %w", w.ID, err)
	}
	if err := unmarshalJSON(tests, &w.Tests); err != nil {
		return nil, fmt.Errorf("workflow %s tests: %w", w.ID, err)
	}
	return &w, nil
}

// GetWorkflow returns a workflow by id.
// Returns workflow.ErrWorkflowNotFound if no such workflow exists.
func (s *Store) GetWorkflow(ctx context.Context, id string) (*workflow.Workflow, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+workflowColumns+` FROM workflows WHERE id = ?`, id)
	w, err := scanWorkflow(row)
	if isNoRows(err) {
		return nil, workflow.ErrWorkflowNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get workflow %s: %w", id, err)
	}
	return w, nil
}

// GetWorkflowsByIDs returns the workflows for the given ids, omitting ids
// with no backing record.
func (s *Store) GetWorkflowsByIDs(ctx context.Context, ids []string) ([]workflow.Workflow, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(ids)), ",")
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+workflowColumns+` FROM workflows WHERE id IN (`+placeholders+`)`, args...)
	if err != nil {
		return nil, fmt.Errorf("get workflows: %w", err)
	}
	defer rows.Close()

	var result []workflow.Workflow
	for rows.Next() {
		w, err := scanWorkflow(rows)
		if err != nil {
			return nil, fmt.Errorf("scan workflow: %w", err)
		}
		result = append(result, *w)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate workflows: %w", err)
	}
	return result, nil
}

// SaveWorkflow creates or updates a workflow record.
func (s *Store) SaveWorkflow(ctx context.Context, w *workflow.Workflow) error {
	groupIDs, err := marshalJSON(w.GroupExclusions.IDs)
	if err != nil {
		return fmt.Errorf("workflow %s group exclusions: %w", w.ID, err)
	}
	userIDs, err := marshalJSON(w.UserExclusions.IDs)
	if err != nil {
		return fmt.Errorf("workflow %s user exclusions: %w", w.ID, err)
	}
	tests, err := marshalJSON(w.Tests)
	if err != nil {
		return fmt.Errorf("workflow %s tests: %w", w.ID, err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO workflows (`+workflowColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			description = excluded.description,
			with_review = excluded.with_review,
			with_review_mode = excluded.with_review_mode,
			without_review = excluded.without_review,
			without_review_mode = excluded.without_review_mode,
			end_rule_update = excluded.end_rule_update,
			end_rule_update_mode = excluded.end_rule_update_mode,
			auto_approve = excluded.auto_approve,
			auto_approve_mode = excluded.auto_approve_mode,
			counted_votes = excluded.counted_votes,
			counted_votes_mode = excluded.counted_votes_mode,
			group_exclusions = excluded.group_exclusions,
			group_exclusions_mode = excluded.group_exclusions_mode,
			user_exclusions = excluded.user_exclusions,
			user_exclusions_mode = excluded.user_exclusions_mode,
			tests = excluded.tests`,
		w.ID, w.Name, w.Description,
		string(w.OnSubmitWithReview.Rule), string(w.OnSubmitWithReview.Mode),
		string(w.OnSubmitWithoutReview.Rule), string(w.OnSubmitWithoutReview.Mode),
		string(w.EndRuleUpdate.Rule), string(w.EndRuleUpdate.Mode),
		string(w.AutoApprove.Rule), string(w.AutoApprove.Mode),
		string(w.CountedVotes.Rule), string(w.CountedVotes.Mode),
		groupIDs, string(w.GroupExclusions.Mode),
		userIDs, string(w.UserExclusions.Mode),
		tests,
	)
	if err != nil {
		return fmt.Errorf("save workflow %s: %w", w.ID, err)
	}
	return nil
}

// Compile-time interface verification.
var _ workflow.Store = (*Store)(nil)
