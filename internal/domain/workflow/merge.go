package workflow

import (
	"errors"
	"fmt"
)

// ErrUnknownRule reports a rule id that no merge site supports. This is a
// programmer error, not user input, and is never swallowed.
var ErrUnknownRule = errors.New("unknown workflow rule")

func unknownRule(id RuleID) error {
	return fmt.Errorf("%w: %q", ErrUnknownRule, id)
}

// Strictness orders per ordinal rule family. Higher rank wins a merge.
// Tokens absent from a family's table are invalid for that family and
// never win a merge.
var (
	withReviewRank = map[Rule]int{
		RuleNoChecking: 0,
		RuleApproved:   1,
		RuleStrict:     2,
	}
	withoutReviewRank = map[Rule]int{
		RuleNoChecking: 0,
		RuleAutoCreate: 1,
		RuleReject:     2,
	}
	endRuleUpdateRank = map[Rule]int{
		RuleNoChecking: 0,
		RuleNoRevision: 1,
	}
	autoApproveRank = map[Rule]int{
		RuleVotes: 0,
		RuleNever: 1,
	}
)

// rankTable returns the strictness order for an ordinal rule id.
func rankTable(id RuleID) (map[Rule]int, error) {
	switch id {
	case OnSubmitWithReview:
		return withReviewRank, nil
	case OnSubmitWithoutReview:
		return withoutReviewRank, nil
	case EndRuleUpdate:
		return endRuleUpdateRank, nil
	case AutoApprove:
		return autoApproveRank, nil
	default:
		return nil, unknownRule(id)
	}
}

// ValidRule reports whether token is a legal value for the given rule id.
func ValidRule(id RuleID, token Rule) bool {
	if id == CountedVotes {
		return token == RuleAnyone || token == RuleMembers
	}
	table, err := rankTable(id)
	if err != nil {
		return false
	}
	_, ok := table[token]
	return ok
}

// Stricter merges two candidate tokens for an ordinal rule id, returning
// whichever is stricter. An empty token is the least strict of all ("unset"),
// so Stricter(id, "", b) == b. Invalid tokens never win.
func Stricter(id RuleID, a, b Rule) (Rule, error) {
	table, err := rankTable(id)
	if err != nil {
		return "", err
	}
	ra, okA := table[a]
	rb, okB := table[b]
	switch {
	case !okA && !okB:
		return "", nil
	case !okA:
		return b, nil
	case !okB:
		return a, nil
	case rb > ra:
		return b, nil
	default:
		return a, nil
	}
}

// MergeCountedVotes merges the binary counted-votes field: members is sticky
// once observed, anyone applies only while nothing stricter has been seen.
func MergeCountedVotes(a, b Rule) Rule {
	if a == RuleMembers || b == RuleMembers {
		return RuleMembers
	}
	if a == RuleAnyone || b == RuleAnyone {
		return RuleAnyone
	}
	return ""
}

// UnionExclusions returns the deduplicated union of two exclusion id sets,
// preserving first-seen order.
func UnionExclusions(a, b []string) []string {
	seen := make(map[string]struct{}, len(a)+len(b))
	out := make([]string, 0, len(a)+len(b))
	for _, list := range [][]string{a, b} {
		for _, id := range list {
			if _, ok := seen[id]; ok {
				continue
			}
			seen[id] = struct{}{}
			out = append(out, id)
		}
	}
	return out
}

// Accumulator is the working state of a merge. Every field starts unset,
// which is distinct from an explicit permissive value, so the global overlay
// can tell "no opinion yet" from "explicitly no-checking". Accumulators are
// created per resolution and discarded after Finalize.
type Accumulator struct {
	scalars map[RuleID]Rule

	groupExclusions []string
	groupsSet       bool
	userExclusions  []string
	usersSet        bool

	tests   []TestRule
	sources []string
}

// NewAccumulator returns an empty accumulator with every field unset.
func NewAccumulator() *Accumulator {
	return &Accumulator{scalars: make(map[RuleID]Rule, len(ScalarRuleIDs))}
}

// Scalar returns the accumulated token for a scalar rule id and whether any
// workflow has set it yet.
func (a *Accumulator) Scalar(id RuleID) (Rule, bool) {
	r, ok := a.scalars[id]
	return r, ok
}

// MergeScalar folds one candidate token into the accumulated value for the
// given scalar rule id.
func (a *Accumulator) MergeScalar(id RuleID, token Rule) error {
	if !ValidRule(id, token) {
		// Bad tokens in stored data are skipped, not fatal; an unknown
		// rule id is a programmer error and raises.
		if _, err := a.validateID(id); err != nil {
			return err
		}
		return nil
	}
	current, ok := a.scalars[id]
	if id == CountedVotes {
		if !ok {
			a.scalars[id] = token
			return nil
		}
		a.scalars[id] = MergeCountedVotes(current, token)
		return nil
	}
	merged, err := Stricter(id, current, token)
	if err != nil {
		return err
	}
	if merged != "" {
		a.scalars[id] = merged
	}
	return nil
}

func (a *Accumulator) validateID(id RuleID) (RuleID, error) {
	switch id {
	case OnSubmitWithReview, OnSubmitWithoutReview, EndRuleUpdate, AutoApprove, CountedVotes:
		return id, nil
	default:
		return "", unknownRule(id)
	}
}

// MergeGroupExclusions unions group ids into the accumulated exclusion set.
func (a *Accumulator) MergeGroupExclusions(ids []string) {
	a.groupExclusions = UnionExclusions(a.groupExclusions, ids)
	a.groupsSet = true
}

// MergeUserExclusions unions user ids into the accumulated exclusion set.
func (a *Accumulator) MergeUserExclusions(ids []string) {
	a.userExclusions = UnionExclusions(a.userExclusions, ids)
	a.usersSet = true
}

// MergeWorkflow folds every field of a specific (non-global) workflow into
// the accumulator and records it as a source.
func (a *Accumulator) MergeWorkflow(w *Workflow) error {
	for _, id := range ScalarRuleIDs {
		rv, err := w.ScalarRule(id)
		if err != nil {
			return err
		}
		if err := a.MergeScalar(id, rv.Rule); err != nil {
			return err
		}
	}
	a.MergeGroupExclusions(w.GroupExclusions.IDs)
	a.MergeUserExclusions(w.UserExclusions.IDs)
	a.tests = append(a.tests, w.Tests...)
	a.sources = append(a.sources, w.ID)
	return nil
}

// ApplyGlobal overlays the global workflow onto the accumulated result.
// Fields in policy mode are merged unconditionally (a strict global policy
// can only tighten an ordinal field; a policy-mode exclusion list replaces
// the accumulated set outright). Fields in default mode apply only where the
// specific fold left the field unset.
func (a *Accumulator) ApplyGlobal(g *Workflow) error {
	for _, id := range ScalarRuleIDs {
		rv, err := g.ScalarRule(id)
		if err != nil {
			return err
		}
		_, set := a.scalars[id]
		if rv.Mode != ModePolicy && set {
			continue
		}
		if err := a.MergeScalar(id, rv.Rule); err != nil {
			return err
		}
	}

	if g.GroupExclusions.Mode == ModePolicy {
		a.groupExclusions = append([]string(nil), g.GroupExclusions.IDs...)
		a.groupsSet = true
	} else if !a.groupsSet {
		a.MergeGroupExclusions(g.GroupExclusions.IDs)
	}

	if g.UserExclusions.Mode == ModePolicy {
		a.userExclusions = append([]string(nil), g.UserExclusions.IDs...)
		a.usersSet = true
	} else if !a.usersSet {
		a.MergeUserExclusions(g.UserExclusions.IDs)
	}

	a.tests = append(a.tests, g.Tests...)
	return nil
}

// Finalize materializes the merged rule set. Fields still unset fall back to
// the built-in permissive defaults so callers never observe empty tokens.
func (a *Accumulator) Finalize() *Merged {
	defaults := DefaultGlobal()
	m := &Merged{
		GroupExclusions: append([]string(nil), a.groupExclusions...),
		UserExclusions:  append([]string(nil), a.userExclusions...),
		Tests:           append([]TestRule(nil), a.tests...),
		Sources:         append([]string(nil), a.sources...),
	}
	m.OnSubmitWithReview = a.finalScalar(OnSubmitWithReview, defaults.OnSubmitWithReview.Rule)
	m.OnSubmitWithoutReview = a.finalScalar(OnSubmitWithoutReview, defaults.OnSubmitWithoutReview.Rule)
	m.EndRuleUpdate = a.finalScalar(EndRuleUpdate, defaults.EndRuleUpdate.Rule)
	m.AutoApprove = a.finalScalar(AutoApprove, defaults.AutoApprove.Rule)
	m.CountedVotes = a.finalScalar(CountedVotes, defaults.CountedVotes.Rule)
	return m
}

func (a *Accumulator) finalScalar(id RuleID, fallback Rule) Rule {
	if r, ok := a.scalars[id]; ok && r != "" {
		return r
	}
	return fallback
}
