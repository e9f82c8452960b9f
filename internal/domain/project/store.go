package project

import (
	"context"
	"errors"

	"github.com/reviewgate/reviewgate/internal/domain/review"
)

// ErrProjectNotFound reports a project id with no backing record.
// Resolution treats this as recoverable: log and continue.
var ErrProjectNotFound = errors.New("project not found")

// Store persists and retrieves project records.
type Store interface {
	// GetProject returns a project by id.
	// Returns ErrProjectNotFound if no such project exists.
	GetProject(ctx context.Context, id string) (*Project, error)
	// SaveProject creates or updates a project record.
	SaveProject(ctx context.Context, p *Project) error
}

// AffectedLookup computes which projects and branches a change touches.
// Implemented by the version-control integration, not by this core.
type AffectedLookup interface {
	AffectedByChange(ctx context.Context, c *review.Change) (Affected, error)
}
