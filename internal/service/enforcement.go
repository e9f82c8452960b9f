package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/reviewgate/reviewgate/internal/domain/enforce"
	"github.com/reviewgate/reviewgate/internal/domain/project"
	"github.com/reviewgate/reviewgate/internal/domain/review"
	"github.com/reviewgate/reviewgate/internal/domain/workflow"
)

// Gate identifies which enforcement entry point is being exercised.
type Gate string

const (
	// GateStrict is the commit-time gate: approval plus content identity.
	GateStrict Gate = "strict"
	// GateEnforced is the submit-time gate: approval without content diff.
	GateEnforced Gate = "enforced"
	// GateShelve is the shelve-time gate: end-rule check only.
	GateShelve Gate = "shelve"
)

// CheckRecorder records enforcement outcomes for observability. Implemented
// by the metrics adapter; nil-safe via the noop recorder.
type CheckRecorder interface {
	RecordCheck(gate string, status string, seconds float64)
}

type noopRecorder struct{}

func (noopRecorder) RecordCheck(string, string, float64) {}

// Enforcer drives the submit/shelve decision table against the resolved
// workflow for a change. Callers hold the advisory per-change lock for the
// whole call.
type Enforcer struct {
	resolver   *Resolver
	exclusions *ExclusionEvaluator
	changes    review.ChangeStore
	reviews    review.Store
	affected   project.AffectedLookup
	content    enforce.ContentComparer

	enabled       bool
	raiseDisabled bool
	endStates     []string

	logger   *slog.Logger
	tracer   trace.Tracer
	recorder CheckRecorder
}

// EnforcerOption configures an Enforcer.
type EnforcerOption func(*Enforcer)

// WithEnforcerTracer sets the tracer used for gate spans.
func WithEnforcerTracer(t trace.Tracer) EnforcerOption {
	return func(e *Enforcer) { e.tracer = t }
}

// WithCheckRecorder sets the outcome recorder.
func WithCheckRecorder(r CheckRecorder) EnforcerOption {
	return func(e *Enforcer) { e.recorder = r }
}

// WithRaiseDisabled makes the gates return enforce.ErrDisabled instead of
// swallowing it to StatusOK, for callers that need to distinguish "not
// enforced" from "passed enforcement".
func WithRaiseDisabled() EnforcerOption {
	return func(e *Enforcer) { e.raiseDisabled = true }
}

// WithEndStates overrides the configured end-state token list.
func WithEndStates(states []string) EnforcerOption {
	return func(e *Enforcer) { e.endStates = states }
}

// DefaultEndStates are the review states beyond which a no-revision rule
// refuses further updates.
var DefaultEndStates = []string{
	string(review.StateArchived),
	string(review.StateRejected),
	string(review.StateApproved) + ":" + review.CommitQualifier,
}

// NewEnforcer creates the enforcement engine. enabled reflects the
// administrative workflow feature switch; when false every gate
// short-circuits to StatusOK.
func NewEnforcer(
	resolver *Resolver,
	exclusions *ExclusionEvaluator,
	changes review.ChangeStore,
	reviews review.Store,
	affected project.AffectedLookup,
	content enforce.ContentComparer,
	enabled bool,
	logger *slog.Logger,
	opts ...EnforcerOption,
) *Enforcer {
	e := &Enforcer{
		resolver:   resolver,
		exclusions: exclusions,
		changes:    changes,
		reviews:    reviews,
		affected:   affected,
		content:    content,
		enabled:    enabled,
		endStates:  DefaultEndStates,
		logger:     logger,
		tracer:     noop.NewTracerProvider().Tracer("reviewgate"),
		recorder:   noopRecorder{},
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// CheckStrict is the commit-time gate: like CheckEnforced, plus a content
// identity check between the change and the review head.
func (e *Enforcer) CheckStrict(ctx context.Context, changeID int64, userID string) (enforce.Result, error) {
	return e.check(ctx, GateStrict, changeID, userID)
}

// CheckEnforced is the submit-time gate.
func (e *Enforcer) CheckEnforced(ctx context.Context, changeID int64, userID string) (enforce.Result, error) {
	return e.check(ctx, GateEnforced, changeID, userID)
}

// CheckShelve is the shelve-time gate: only the end-rule check applies.
func (e *Enforcer) CheckShelve(ctx context.Context, changeID int64, userID string) (enforce.Result, error) {
	return e.check(ctx, GateShelve, changeID, userID)
}

func (e *Enforcer) check(ctx context.Context, gate Gate, changeID int64, userID string) (enforce.Result, error) {
	ctx, span := e.tracer.Start(ctx, "enforcer.check."+string(gate))
	defer span.End()

	start := time.Now()
	requestID := uuid.New().String()

	result, err := e.process(ctx, gate, changeID, userID)
	result.RequestID = requestID

	status := string(result.Status)
	if err != nil {
		status = "error"
	}
	e.recorder.RecordCheck(string(gate), status, time.Since(start).Seconds())

	if err != nil {
		e.logger.Error("enforcement check failed",
			"gate", gate, "change", changeID, "user", userID,
			"request_id", requestID, "error", err)
		return result, err
	}
	e.logger.Info("enforcement check complete",
		"gate", gate, "change", changeID, "user", userID,
		"request_id", requestID, "status", result.Status,
		"duration_ms", time.Since(start).Milliseconds())
	return result, nil
}

func (e *Enforcer) process(ctx context.Context, gate Gate, changeID int64, userID string) (enforce.Result, error) {
	// Enforcement is strictly opt-in: the disabled failure is swallowed
	// unless the caller asked for it.
	if !e.enabled {
		if e.raiseDisabled {
			return enforce.Result{}, enforce.ErrDisabled
		}
		return ok(), nil
	}

	change, err := e.changes.GetChange(ctx, changeID)
	if err != nil {
		if errors.Is(err, review.ErrChangeNotFound) {
			return reject(enforce.StatusBadChange, err.Error()), nil
		}
		return enforce.Result{}, fmt.Errorf("fetch change %d: %w", changeID, err)
	}

	affected, err := e.affected.AffectedByChange(ctx, change)
	if err != nil {
		return enforce.Result{}, fmt.Errorf("affected projects for change %d: %w", changeID, err)
	}

	merged, err := e.resolver.ResolveForProjects(ctx, affected, nil)
	if err != nil {
		return enforce.Result{}, err
	}

	// Excluded actors are invisible to enforcement entirely.
	excluded, err := e.exclusions.Excluded(ctx, userID, merged)
	if err != nil {
		return enforce.Result{}, err
	}
	if excluded {
		return ok(), nil
	}

	rev, aboutToLink, err := e.lookupReview(ctx, change)
	if err != nil {
		return enforce.Result{}, err
	}

	if gate == GateShelve {
		return e.processShelve(merged, rev), nil
	}
	return e.processEnforcedOrStrict(ctx, change, merged, rev, aboutToLink, gate == GateStrict)
}

// lookupReview finds the review linked to a change, or failing that the
// review its description references. A referenced review that exists is
// "about to be linked"; one that does not parse or exist is ignored.
func (e *Enforcer) lookupReview(ctx context.Context, change *review.Change) (*review.Review, bool, error) {
	rev, err := e.reviews.FindByChange(ctx, change.ID)
	if err != nil {
		return nil, false, fmt.Errorf("find review for change %d: %w", change.ID, err)
	}
	if rev != nil {
		return rev, false, nil
	}

	refID, ok := change.ReviewReference()
	if !ok {
		return nil, false, nil
	}
	rev, err = e.reviews.GetReview(ctx, refID)
	if errors.Is(err, review.ErrReviewNotFound) {
		e.logger.Debug("change references a review that does not exist",
			"change", change.ID, "review", refID)
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("fetch referenced review %d: %w", refID, err)
	}
	return rev, true, nil
}

// processEnforcedOrStrict runs the submit/commit decision table. An
// about-to-be-linked review counts as "no review present" for rule
// selection, but still participates in the end-rule check before linking.
func (e *Enforcer) processEnforcedOrStrict(ctx context.Context, change *review.Change, merged *workflow.Merged, rev *review.Review, aboutToLink bool, checkContent bool) (enforce.Result, error) {
	if rev != nil && !aboutToLink {
		if e.endRuleBlocked(merged, rev) {
			return noRevision(rev), nil
		}
		switch merged.OnSubmitWithReview {
		case workflow.RuleNoChecking:
			return ok(), nil
		case workflow.RuleApproved:
			return requireApproved(change, rev), nil
		case workflow.RuleStrict:
			if r := requireApproved(change, rev); !r.Allowed() {
				return r, nil
			}
			if !checkContent {
				return ok(), nil
			}
			same, err := e.content.SameContent(ctx, change.ID, rev.ID)
			if err != nil {
				return enforce.Result{}, fmt.Errorf("content compare change %d review %d: %w", change.ID, rev.ID, err)
			}
			if !same {
				return reject(enforce.StatusNotSameContent,
					fmt.Sprintf("the content of change %d differs from the content of review %d", change.ID, rev.ID)), nil
			}
			return ok(), nil
		default:
			return ok(), nil
		}
	}

	switch merged.OnSubmitWithoutReview {
	case workflow.RuleNoChecking:
		return ok(), nil
	case workflow.RuleAutoCreate:
		if change.IsWorkInProgress() {
			return reject(enforce.StatusWorkInProgressChange,
				fmt.Sprintf("change %d is flagged as work in progress, review creation skipped", change.ID)), nil
		}
		if aboutToLink {
			// Linking updates the referenced review, so the end rule
			// applies to it first.
			if e.endRuleBlocked(merged, rev) {
				return noRevision(rev), nil
			}
			linked, err := e.reviews.LinkChange(ctx, rev.ID, change.ID)
			if err != nil {
				return enforce.Result{}, fmt.Errorf("link change %d to review %d: %w", change.ID, rev.ID, err)
			}
			return enforce.Result{
				Status:   enforce.StatusLinkedReview,
				Messages: []string{fmt.Sprintf("linked change %d to review %d", change.ID, linked.ID)},
			}, nil
		}
		created, err := e.reviews.CreateFromChange(ctx, change)
		if err != nil {
			return enforce.Result{}, fmt.Errorf("create review from change %d: %w", change.ID, err)
		}
		return enforce.Result{
			Status:   enforce.StatusCreatedReview,
			Messages: []string{fmt.Sprintf("created review %d for change %d", created.ID, change.ID)},
		}, nil
	case workflow.RuleReject:
		return reject(enforce.StatusNoReview,
			fmt.Sprintf("change %d requires an associated review before it can be submitted", change.ID)), nil
	default:
		return ok(), nil
	}
}

// processShelve runs the shelve gate: shelving never auto-creates or rejects
// a review, only the end rule applies.
func (e *Enforcer) processShelve(merged *workflow.Merged, rev *review.Review) enforce.Result {
	if rev == nil {
		return ok()
	}
	if e.endRuleBlocked(merged, rev) {
		return noRevision(rev)
	}
	return ok()
}

// endRuleBlocked reports whether updating the review is refused under a
// no-revision rule. A review with an approve-and-commit transition in
// flight is never blocked, whatever end-state token its state matches, so
// the UI-driven commit flow cannot deadlock itself. The approved:commit
// token additionally requires commits on record.
func (e *Enforcer) endRuleBlocked(merged *workflow.Merged, rev *review.Review) bool {
	if merged.EndRuleUpdate != workflow.RuleNoRevision {
		return false
	}
	if rev.PendingCommit {
		return false
	}
	for _, token := range e.endStates {
		base, qualifier, _ := strings.Cut(token, ":")
		if review.State(base) != rev.State {
			continue
		}
		if qualifier == review.CommitQualifier && len(rev.Commits) == 0 {
			continue
		}
		return true
	}
	return false
}

func requireApproved(change *review.Change, rev *review.Review) enforce.Result {
	if rev.IsApproved() {
		return ok()
	}
	return reject(enforce.StatusNoApprovedReview,
		fmt.Sprintf("review %d for change %d is in state %q, an approved review is required", rev.ID, change.ID, rev.State))
}

func noRevision(rev *review.Review) enforce.Result {
	return reject(enforce.StatusNoRevision,
		fmt.Sprintf("review %d is in an end state (%s) and can no longer be updated", rev.ID, rev.State))
}

func ok() enforce.Result {
	return enforce.Result{Status: enforce.StatusOK}
}

func reject(status enforce.Status, message string) enforce.Result {
	return enforce.Result{Status: status, Messages: []string{message}}
}
