package memory

import (
	"context"
	"sync"

	"github.com/reviewgate/reviewgate/internal/domain/project"
	"github.com/reviewgate/reviewgate/internal/domain/review"
)

// ProjectStore implements project.Store and project.AffectedLookup with
// in-memory maps.
type ProjectStore struct {
	projects map[string]*project.Project
	affected map[int64]project.Affected
	mu       sync.RWMutex
}

// NewProjectStore creates an empty in-memory project store.
func NewProjectStore() *ProjectStore {
	return &ProjectStore{
		projects: make(map[string]*project.Project),
		affected: make(map[int64]project.Affected),
	}
}

// GetProject returns a project by id.
// Returns project.ErrProjectNotFound if the project doesn't exist.
func (s *ProjectStore) GetProject(ctx context.Context, id string) (*project.Project, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.projects[id]
	if !ok {
		return nil, project.ErrProjectNotFound
	}
	return copyProject(p), nil
}

// SaveProject creates or updates a project record.
func (s *ProjectStore) SaveProject(ctx context.Context, p *project.Project) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.projects[p.ID] = copyProject(p)
	return nil
}

// AddProject adds a project (for testing/seeding).
func (s *ProjectStore) AddProject(p *project.Project) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.projects[p.ID] = copyProject(p)
}

// SetAffected records the affected projects for a change (for
// testing/seeding).
func (s *ProjectStore) SetAffected(changeID int64, affected project.Affected) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.affected[changeID] = copyAffected(affected)
}

// AffectedByChange returns the recorded affected projects for a change.
// Unknown changes affect nothing.
func (s *ProjectStore) AffectedByChange(ctx context.Context, c *review.Change) (project.Affected, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	a, ok := s.affected[c.ID]
	if !ok {
		return project.Affected{}, nil
	}
	return copyAffected(a), nil
}

func copyProject(p *project.Project) *project.Project {
	out := *p
	out.Branches = append([]project.Branch(nil), p.Branches...)
	return &out
}

func copyAffected(a project.Affected) project.Affected {
	out := make(project.Affected, len(a))
	for projectID, branches := range a {
		out[projectID] = append([]string(nil), branches...)
	}
	return out
}

// Compile-time interface verification.
var (
	_ project.Store          = (*ProjectStore)(nil)
	_ project.AffectedLookup = (*ProjectStore)(nil)
)
