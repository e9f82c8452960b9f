// Package service contains the application services: workflow resolution,
// enforcement, exclusion evaluation, and the test-block query.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/cespare/xxhash/v2"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/reviewgate/reviewgate/internal/domain/project"
	"github.com/reviewgate/reviewgate/internal/domain/workflow"
)

// mergeCache is a bounded cache of merge results keyed by the affected
// project/branch set. Not safe for concurrent use; resolvers are
// request-scoped like the global workflow they cache.
type mergeCache struct {
	entries map[uint64]*workflow.Merged
	order   []uint64
	maxSize int
}

func newMergeCache(maxSize int) *mergeCache {
	return &mergeCache{
		entries: make(map[uint64]*workflow.Merged, maxSize),
		maxSize: maxSize,
	}
}

func (c *mergeCache) get(key uint64) (*workflow.Merged, bool) {
	m, ok := c.entries[key]
	return m, ok
}

func (c *mergeCache) put(key uint64, m *workflow.Merged) {
	if _, ok := c.entries[key]; ok {
		c.entries[key] = m
		return
	}
	if len(c.entries) >= c.maxSize && len(c.order) > 0 {
		oldest := c.order[0]
		c.order = c.order[1:]
		delete(c.entries, oldest)
	}
	c.entries[key] = m
	c.order = append(c.order, key)
}

// affectedKey hashes the affected set into a stable cache key.
func affectedKey(affected project.Affected) uint64 {
	ids := make([]string, 0, len(affected))
	for projectID := range affected {
		ids = append(ids, projectID)
	}
	sort.Strings(ids)

	h := xxhash.New()
	for _, projectID := range ids {
		_, _ = h.WriteString(projectID)
		_, _ = h.Write([]byte{0})
		branches := append([]string(nil), affected[projectID]...)
		sort.Strings(branches)
		for _, b := range branches {
			_, _ = h.WriteString(b)
			_, _ = h.Write([]byte{1})
		}
		_, _ = h.Write([]byte{0})
	}
	return h.Sum64()
}

// Resolver computes the effective rule set for the projects and branches a
// change touches. A resolver is request-scoped: the global workflow is
// fetched on first use and kept for the instance's lifetime, so a concurrent
// edit of the global record is not observed mid-request.
type Resolver struct {
	workflows workflow.Store
	projects  project.Store
	logger    *slog.Logger
	tracer    trace.Tracer

	globalOnce sync.Once
	global     *workflow.Workflow

	cache *mergeCache
}

// ResolverOption configures a Resolver.
type ResolverOption func(*Resolver)

// WithResolverTracer sets the tracer used for resolution spans.
func WithResolverTracer(t trace.Tracer) ResolverOption {
	return func(r *Resolver) { r.tracer = t }
}

// WithMergeCacheSize bounds the per-instance merge result cache.
func WithMergeCacheSize(size int) ResolverOption {
	return func(r *Resolver) { r.cache = newMergeCache(size) }
}

// NewResolver creates a resolver over the given workflow and project stores.
func NewResolver(workflows workflow.Store, projects project.Store, logger *slog.Logger, opts ...ResolverOption) *Resolver {
	r := &Resolver{
		workflows: workflows,
		projects:  projects,
		logger:    logger,
		tracer:    noop.NewTracerProvider().Tracer("reviewgate"),
		cache:     newMergeCache(64),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// globalWorkflow returns the global workflow, fetching it once per resolver
// instance. A missing global record is recoverable: the built-in defaults
// apply after a logged warning.
func (r *Resolver) globalWorkflow(ctx context.Context) *workflow.Workflow {
	r.globalOnce.Do(func() {
		g, err := r.workflows.GetWorkflow(ctx, workflow.GlobalID)
		if err != nil {
			if !errors.Is(err, workflow.ErrWorkflowNotFound) {
				r.logger.Warn("global workflow fetch failed, using built-in defaults", "error", err)
			} else {
				r.logger.Warn("global workflow not provisioned, using built-in defaults")
			}
			r.global = workflow.DefaultGlobal()
			return
		}
		r.global = g
	})
	return r.global
}

// specificWorkflowIDs walks the affected projects and computes the distinct
// effective workflow ids across their branches; a project listed with no
// branches contributes its project-level workflow. Missing projects are
// skipped with a logged notice; their absence never raises.
func (r *Resolver) specificWorkflowIDs(ctx context.Context, affected project.Affected, preloaded map[string]*project.Project) ([]string, error) {
	projectIDs := make([]string, 0, len(affected))
	for id := range affected {
		projectIDs = append(projectIDs, id)
	}
	sort.Strings(projectIDs)

	seen := make(map[string]struct{})
	var ids []string
	for _, projectID := range projectIDs {
		p := preloaded[projectID]
		if p == nil {
			fetched, err := r.projects.GetProject(ctx, projectID)
			if errors.Is(err, project.ErrProjectNotFound) {
				r.logger.Info("affected project not found, skipping", "project", projectID)
				continue
			}
			if err != nil {
				return nil, fmt.Errorf("fetch project %s: %w", projectID, err)
			}
			p = fetched
		}
		// A project affected with no branch-level entries still carries its
		// project-level workflow.
		candidates := []string{p.WorkflowID}
		if branches := affected[projectID]; len(branches) > 0 {
			candidates = candidates[:0]
			for _, branchID := range branches {
				candidates = append(candidates, p.BranchWorkflowID(branchID))
			}
		}
		for _, wid := range candidates {
			if wid == "" {
				continue
			}
			if wid == workflow.GlobalID {
				// The global workflow is overlaid separately; counting it
				// as a specific source would double-apply it.
				r.logger.Debug("project references the global workflow directly, skipping",
					"project", projectID)
				continue
			}
			if _, ok := seen[wid]; ok {
				continue
			}
			seen[wid] = struct{}{}
			ids = append(ids, wid)
		}
	}
	return ids, nil
}

// specificWorkflows fetches the distinct workflows referenced by the
// affected projects. Ids with no backing record are skipped with a logged
// warning.
func (r *Resolver) specificWorkflows(ctx context.Context, affected project.Affected, preloaded map[string]*project.Project) ([]workflow.Workflow, error) {
	ids, err := r.specificWorkflowIDs(ctx, affected, preloaded)
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return nil, nil
	}
	found, err := r.workflows.GetWorkflowsByIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("fetch workflows: %w", err)
	}
	if len(found) < len(ids) {
		present := make(map[string]struct{}, len(found))
		for i := range found {
			present[found[i].ID] = struct{}{}
		}
		for _, id := range ids {
			if _, ok := present[id]; !ok {
				r.logger.Warn("referenced workflow not found, skipping", "workflow", id)
			}
		}
	}
	return found, nil
}

// ResolveForProjects computes the effective rule set for the given affected
// projects: each branch's workflow is resolved and folded through the merge,
// then the global workflow is overlaid per field mode. When no affected
// branch or project carries a workflow id at all, the result is the global
// workflow's own values with an empty Sources list.
//
// Preloaded projects, when supplied, are used instead of store fetches.
func (r *Resolver) ResolveForProjects(ctx context.Context, affected project.Affected, preloaded map[string]*project.Project) (*workflow.Merged, error) {
	ctx, span := r.tracer.Start(ctx, "resolver.ResolveForProjects")
	defer span.End()

	key := affectedKey(affected)
	if preloaded == nil {
		if m, ok := r.cache.get(key); ok {
			r.logger.Debug("merge cache hit", "projects", len(affected))
			return m.Clone(), nil
		}
	}

	specific, err := r.specificWorkflows(ctx, affected, preloaded)
	if err != nil {
		return nil, err
	}

	acc := workflow.NewAccumulator()
	for i := range specific {
		if err := acc.MergeWorkflow(&specific[i]); err != nil {
			return nil, err
		}
	}
	if err := acc.ApplyGlobal(r.globalWorkflow(ctx)); err != nil {
		return nil, err
	}

	merged := acc.Finalize()
	if preloaded == nil {
		r.cache.put(key, merged.Clone())
	}
	r.logger.Debug("resolved workflow",
		"projects", len(affected),
		"sources", merged.Sources,
		"with_review", merged.OnSubmitWithReview,
		"without_review", merged.OnSubmitWithoutReview,
	)
	return merged, nil
}

// ResolveRule resolves a single scalar rule for the given affected projects
// without materializing the full merged structure. Returns ErrUnknownRule
// for ids outside the closed scalar rule set.
func (r *Resolver) ResolveRule(ctx context.Context, id workflow.RuleID, affected project.Affected, preloaded map[string]*project.Project) (workflow.Rule, error) {
	ctx, span := r.tracer.Start(ctx, "resolver.ResolveRule")
	defer span.End()

	// Validate the rule id up front: an unsupported id is a programmer
	// error and must raise before any store traffic.
	global := r.globalWorkflow(ctx)
	globalValue, err := global.ScalarRule(id)
	if err != nil {
		return "", err
	}

	specific, err := r.specificWorkflows(ctx, affected, preloaded)
	if err != nil {
		return "", err
	}

	acc := workflow.NewAccumulator()
	for i := range specific {
		rv, err := specific[i].ScalarRule(id)
		if err != nil {
			return "", err
		}
		if err := acc.MergeScalar(id, rv.Rule); err != nil {
			return "", err
		}
	}

	_, set := acc.Scalar(id)
	if globalValue.Mode == workflow.ModePolicy || !set {
		if err := acc.MergeScalar(id, globalValue.Rule); err != nil {
			return "", err
		}
	}

	if rule, ok := acc.Scalar(id); ok && rule != "" {
		return rule, nil
	}
	fallback, err := workflow.DefaultGlobal().ScalarRule(id)
	if err != nil {
		return "", err
	}
	return fallback.Rule, nil
}

// WorkflowsForProjects returns the specific workflows for the affected
// projects plus the global workflow. Used by the test-block query, which
// needs per-workflow test associations rather than merged rules.
func (r *Resolver) WorkflowsForProjects(ctx context.Context, affected project.Affected, preloaded map[string]*project.Project) ([]workflow.Workflow, error) {
	specific, err := r.specificWorkflows(ctx, affected, preloaded)
	if err != nil {
		return nil, err
	}
	return append(specific, *r.globalWorkflow(ctx)), nil
}
