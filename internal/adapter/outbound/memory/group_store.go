package memory

import (
	"context"
	"sync"

	"github.com/reviewgate/reviewgate/internal/domain/enforce"
)

// GroupStore implements enforce.GroupChecker with an in-memory membership
// map.
type GroupStore struct {
	members map[string]map[string]struct{} // group id -> user ids
	mu      sync.RWMutex
}

// NewGroupStore creates an empty in-memory group store.
func NewGroupStore() *GroupStore {
	return &GroupStore{members: make(map[string]map[string]struct{})}
}

// AddMember records userID as a member of groupID (for testing/seeding).
func (s *GroupStore) AddMember(groupID, userID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.members[groupID] == nil {
		s.members[groupID] = make(map[string]struct{})
	}
	s.members[groupID][userID] = struct{}{}
}

// IsMember reports whether userID belongs to groupID. Unknown groups have
// no members.
func (s *GroupStore) IsMember(ctx context.Context, userID, groupID string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	_, ok := s.members[groupID][userID]
	return ok, nil
}

// Compile-time interface verification.
var _ enforce.GroupChecker = (*GroupStore)(nil)
