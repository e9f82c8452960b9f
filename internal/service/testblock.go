package service

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"github.com/reviewgate/reviewgate/internal/domain/project"
	"github.com/reviewgate/reviewgate/internal/domain/review"
)

// TestBlockService answers whether outstanding automated test runs block a
// requested review state transition. It reuses the resolver's workflow-fetch
// path for the test associations and cross-references the review's recorded
// runs.
type TestBlockService struct {
	resolver *Resolver
	runs     review.TestRunStore
	logger   *slog.Logger
}

// NewTestBlockService creates a test-block query service.
func NewTestBlockService(resolver *Resolver, runs review.TestRunStore, logger *slog.Logger) *TestBlockService {
	return &TestBlockService{resolver: resolver, runs: runs, logger: logger}
}

// BlockingTests returns the ids of tests configured to block targetState on
// the workflows affecting the given projects, restricted to those whose
// recorded run status is anything other than pass. A blocking test with no
// recorded run counts as not passed. The result is sorted and deduplicated.
func (s *TestBlockService) BlockingTests(ctx context.Context, rev *review.Review, affected project.Affected, targetState review.State) ([]string, error) {
	workflows, err := s.resolver.WorkflowsForProjects(ctx, affected, nil)
	if err != nil {
		return nil, err
	}

	configured := make(map[string]struct{})
	for i := range workflows {
		for _, t := range workflows[i].Tests {
			for _, blocked := range t.Blocks {
				if blocked == string(targetState) {
					configured[t.TestID] = struct{}{}
					break
				}
			}
		}
	}
	if len(configured) == 0 {
		return nil, nil
	}

	runs, err := s.runs.RunsForReview(ctx, rev.ID)
	if err != nil {
		return nil, fmt.Errorf("test runs for review %d: %w", rev.ID, err)
	}
	status := make(map[string]review.TestStatus, len(runs))
	for _, run := range runs {
		status[run.TestID] = run.Status
	}

	var blocking []string
	for testID := range configured {
		if status[testID] == review.TestStatusPass {
			continue
		}
		blocking = append(blocking, testID)
	}
	sort.Strings(blocking)

	if len(blocking) > 0 {
		s.logger.Debug("transition blocked by tests",
			"review", rev.ID, "target", targetState, "tests", blocking)
	}
	return blocking, nil
}

// IsBlockedByTests reports whether any configured blocking test has not
// passed for the requested transition.
func (s *TestBlockService) IsBlockedByTests(ctx context.Context, rev *review.Review, affected project.Affected, targetState review.State) (bool, error) {
	blocking, err := s.BlockingTests(ctx, rev, affected, targetState)
	if err != nil {
		return false, err
	}
	return len(blocking) > 0, nil
}
