package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/reviewgate/reviewgate/internal/domain/project"
	"github.com/reviewgate/reviewgate/internal/domain/review"
)

// GetProject returns a project with its ordered branches.
// Returns project.ErrProjectNotFound if no such project exists.
func (s *Store) GetProject(ctx context.Context, id string) (*project.Project, error) {
	var p project.Project
	err := s.db.QueryRowContext(ctx,
		`SELECT id, name, workflow_id FROM projects WHERE id = ?`, id).
		Scan(&p.ID, &p.Name, &p.WorkflowID)
	if isNoRows(err) {
		return nil, project.ErrProjectNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get project %s: %w", id, err)
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, workflow_id FROM branches WHERE project_id = ? ORDER BY position`, id)
	if err != nil {
		return nil, fmt.Errorf("get branches for project %s: %w", id, err)
	}
	defer rows.Close()
	for rows.Next() {
		var b project.Branch
		if err := rows.Scan(&b.ID, &b.Name, &b.WorkflowID); err != nil {
			return nil, fmt.Errorf("scan branch: %w", err)
		}
		p.Branches = append(p.Branches, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate branches: %w", err)
	}
	return &p, nil
}

// SaveProject creates or updates a project record and its branches.
func (s *Store) SaveProject(ctx context.Context, p *project.Project) error {
	return s.tx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO projects (id, name, workflow_id) VALUES (?, ?, ?)
			ON CONFLICT(id) DO UPDATE SET
				name = excluded.name,
				workflow_id = excluded.workflow_id`,
			p.ID, p.Name, p.WorkflowID)
		if err != nil {
			return fmt.Errorf("save project %s: %w", p.ID, err)
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM branches WHERE project_id = ?`, p.ID); err != nil {
			return fmt.Errorf("clear branches for project %s: %w", p.ID, err)
		}
		for i, b := range p.Branches {
			_, err := tx.ExecContext(ctx, `
				INSERT INTO branches (project_id, id, name, workflow_id, position)
				VALUES (?, ?, ?, ?, ?)`,
				p.ID, b.ID, b.Name, b.WorkflowID, i)
			if err != nil {
				return fmt.Errorf("save branch %s/%s: %w", p.ID, b.ID, err)
			}
		}
		return nil
	})
}

// SetAffected records the affected projects for a change.
func (s *Store) SetAffected(ctx context.Context, changeID int64, affected project.Affected) error {
	return s.tx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM change_projects WHERE change_id = ?`, changeID); err != nil {
			return fmt.Errorf("clear affected projects for change %d: %w", changeID, err)
		}
		for projectID, branches := range affected {
			for _, branchID := range branches {
				_, err := tx.ExecContext(ctx, `
					INSERT INTO change_projects (change_id, project_id, branch_id)
					VALUES (?, ?, ?)`,
					changeID, projectID, branchID)
				if err != nil {
					return fmt.Errorf("save affected project %s for change %d: %w", projectID, changeID, err)
				}
			}
		}
		return nil
	})
}

// AffectedByChange returns the recorded affected projects for a change.
// Unknown changes affect nothing.
func (s *Store) AffectedByChange(ctx context.Context, c *review.Change) (project.Affected, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT project_id, branch_id FROM change_projects WHERE change_id = ?`, c.ID)
	if err != nil {
		return nil, fmt.Errorf("affected projects for change %d: %w", c.ID, err)
	}
	defer rows.Close()

	affected := project.Affected{}
	for rows.Next() {
		var projectID, branchID string
		if err := rows.Scan(&projectID, &branchID); err != nil {
			return nil, fmt.Errorf("scan affected project: %w", err)
		}
		affected[projectID] = append(affected[projectID], branchID)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate affected projects: %w", err)
	}
	return affected, nil
}

// Compile-time interface verification.
var (
	_ project.Store          = (*Store)(nil)
	_ project.AffectedLookup = (*Store)(nil)
)
