// Package workflow contains the rule vocabulary, workflow records, and
// merge semantics for review enforcement policies.
package workflow

// Mode controls how a rule value on the global workflow is applied when
// overlaying project and branch workflows.
type Mode string

const (
	// ModeDefault applies the value only where no more specific workflow
	// expressed an opinion.
	ModeDefault Mode = "default"
	// ModePolicy forces the value in regardless of more specific workflows.
	// Only the global workflow may carry policy mode.
	ModePolicy Mode = "policy"
)

// Rule is a single policy token. Each RuleID admits a fixed subset of tokens.
type Rule string

const (
	// RuleNoChecking disables checking for the field it appears on.
	RuleNoChecking Rule = "no_checking"
	// RuleApproved requires an associated review in the approved state.
	RuleApproved Rule = "approved"
	// RuleStrict requires an approved review whose head content matches
	// the change content.
	RuleStrict Rule = "strict"
	// RuleAutoCreate creates (or links) a review when none exists.
	RuleAutoCreate Rule = "auto_create"
	// RuleReject refuses changes that have no associated review.
	RuleReject Rule = "reject"
	// RuleNoRevision refuses updates to reviews that reached an end state.
	RuleNoRevision Rule = "no_revision"
	// RuleVotes auto-approves a review once its vote threshold is met.
	RuleVotes Rule = "votes"
	// RuleNever disables auto-approval.
	RuleNever Rule = "never"
	// RuleAnyone counts votes from any authenticated user.
	RuleAnyone Rule = "anyone"
	// RuleMembers counts only votes from project members.
	RuleMembers Rule = "members"
)

// RuleID identifies one of the scalar policy fields of a workflow.
type RuleID string

const (
	OnSubmitWithReview    RuleID = "on_submit_with_review"
	OnSubmitWithoutReview RuleID = "on_submit_without_review"
	EndRuleUpdate         RuleID = "end_rule_update"
	AutoApprove           RuleID = "auto_approve"
	CountedVotes          RuleID = "counted_votes"
)

// ScalarRuleIDs lists every scalar rule id, in merge order.
var ScalarRuleIDs = []RuleID{
	OnSubmitWithReview,
	OnSubmitWithoutReview,
	EndRuleUpdate,
	AutoApprove,
	CountedVotes,
}

// RuleValue is one scalar policy field: its token plus the mode describing
// how the global workflow's own value overlays more specific ones.
// Non-global workflows always carry ModeDefault.
type RuleValue struct {
	Rule Rule `yaml:"rule" json:"rule"`
	Mode Mode `yaml:"mode" json:"mode"`
}

// ExclusionValue is a set-valued policy field (user or group ids exempt from
// enforcement). In ModePolicy on the global workflow the set is authoritative
// and replaces, rather than unions with, more specific sets.
type ExclusionValue struct {
	IDs  []string `yaml:"ids" json:"ids"`
	Mode Mode     `yaml:"mode" json:"mode"`
}

// TestRule associates an automated test with the review states it blocks.
type TestRule struct {
	TestID string   `yaml:"id" json:"id"`
	Blocks []string `yaml:"blocks" json:"blocks"`
}

// GlobalID is the reserved identifier of the global workflow.
const GlobalID = "global"

// Workflow is a named bundle of policy rules attachable to a project or
// branch, or acting as the single global default/policy set under GlobalID.
type Workflow struct {
	ID          string
	Name        string
	Description string

	OnSubmitWithReview    RuleValue
	OnSubmitWithoutReview RuleValue
	EndRuleUpdate         RuleValue
	AutoApprove           RuleValue
	CountedVotes          RuleValue
	GroupExclusions       ExclusionValue
	UserExclusions        ExclusionValue

	Tests []TestRule
}

// IsGlobal reports whether this is the global workflow record.
func (w *Workflow) IsGlobal() bool {
	return w.ID == GlobalID
}

// ScalarRule returns the RuleValue for the given scalar rule id.
// Returns ErrUnknownRule for ids that are not scalar fields.
func (w *Workflow) ScalarRule(id RuleID) (RuleValue, error) {
	switch id {
	case OnSubmitWithReview:
		return w.OnSubmitWithReview, nil
	case OnSubmitWithoutReview:
		return w.OnSubmitWithoutReview, nil
	case EndRuleUpdate:
		return w.EndRuleUpdate, nil
	case AutoApprove:
		return w.AutoApprove, nil
	case CountedVotes:
		return w.CountedVotes, nil
	default:
		return RuleValue{}, unknownRule(id)
	}
}

// DefaultGlobal returns the built-in global workflow used when no global
// record has been provisioned: fully permissive checks, auto-approval off,
// votes counted from anyone, no exclusions.
func DefaultGlobal() *Workflow {
	return &Workflow{
		ID:                    GlobalID,
		Name:                  "Global Workflow",
		OnSubmitWithReview:    RuleValue{Rule: RuleNoChecking, Mode: ModeDefault},
		OnSubmitWithoutReview: RuleValue{Rule: RuleNoChecking, Mode: ModeDefault},
		EndRuleUpdate:         RuleValue{Rule: RuleNoChecking, Mode: ModeDefault},
		AutoApprove:           RuleValue{Rule: RuleNever, Mode: ModeDefault},
		CountedVotes:          RuleValue{Rule: RuleAnyone, Mode: ModeDefault},
		GroupExclusions:       ExclusionValue{Mode: ModeDefault},
		UserExclusions:        ExclusionValue{Mode: ModeDefault},
	}
}

// Merged is the effective rule set produced by folding every workflow that
// applies to a change and overlaying the global workflow. Mode annotations
// are an input-only concept and do not appear here.
type Merged struct {
	OnSubmitWithReview    Rule     `yaml:"on_submit_with_review"`
	OnSubmitWithoutReview Rule     `yaml:"on_submit_without_review"`
	EndRuleUpdate         Rule     `yaml:"end_rule_update"`
	AutoApprove           Rule     `yaml:"auto_approve"`
	CountedVotes          Rule     `yaml:"counted_votes"`
	GroupExclusions       []string `yaml:"group_exclusions"`
	UserExclusions        []string `yaml:"user_exclusions"`

	Tests []TestRule `yaml:"tests,omitempty"`

	// Sources lists the ids of the specific (non-global) workflows that were
	// folded in. Empty means no affected project or branch carried a workflow
	// id at all and the values are purely the global workflow's own.
	Sources []string `yaml:"sources,omitempty"`
}

// HasSpecific reports whether any project or branch level workflow
// contributed to the merge, as opposed to the global workflow alone.
func (m *Merged) HasSpecific() bool {
	return len(m.Sources) > 0
}

// Clone returns a deep copy of the merged rule set.
func (m *Merged) Clone() *Merged {
	out := *m
	out.GroupExclusions = append([]string(nil), m.GroupExclusions...)
	out.UserExclusions = append([]string(nil), m.UserExclusions...)
	out.Tests = append([]TestRule(nil), m.Tests...)
	out.Sources = append([]string(nil), m.Sources...)
	return &out
}
