package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/reviewgate/reviewgate/internal/domain/enforce"
	"github.com/reviewgate/reviewgate/internal/domain/workflow"
)

// ExclusionEvaluator tests whether an acting user is opted out of workflow
// enforcement, either by a direct user-id match or by membership in an
// excluded group.
type ExclusionEvaluator struct {
	groups enforce.GroupChecker
	logger *slog.Logger
}

// NewExclusionEvaluator creates an exclusion evaluator over the given group
// membership checker.
func NewExclusionEvaluator(groups enforce.GroupChecker, logger *slog.Logger) *ExclusionEvaluator {
	return &ExclusionEvaluator{groups: groups, logger: logger}
}

// Excluded reports whether userID is exempt from the merged workflow's
// enforcement. Membership lookup failures are infrastructure errors and
// propagate.
func (e *ExclusionEvaluator) Excluded(ctx context.Context, userID string, merged *workflow.Merged) (bool, error) {
	for _, excluded := range merged.UserExclusions {
		if excluded == userID {
			e.logger.Debug("user excluded from enforcement", "user", userID)
			return true, nil
		}
	}
	for _, groupID := range merged.GroupExclusions {
		member, err := e.groups.IsMember(ctx, userID, groupID)
		if err != nil {
			return false, fmt.Errorf("group membership check %s/%s: %w", userID, groupID, err)
		}
		if member {
			e.logger.Debug("user excluded from enforcement via group",
				"user", userID, "group", groupID)
			return true, nil
		}
	}
	return false, nil
}
