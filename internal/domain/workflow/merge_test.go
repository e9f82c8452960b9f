package workflow

import (
	"errors"
	"reflect"
	"testing"
)

func TestStricter(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		id   RuleID
		a, b Rule
		want Rule
	}{
		{"unset loses to any token", OnSubmitWithReview, "", RuleApproved, RuleApproved},
		{"token beats unset", OnSubmitWithReview, RuleApproved, "", RuleApproved},
		{"both unset stays unset", OnSubmitWithReview, "", "", ""},
		{"strict beats approved", OnSubmitWithReview, RuleApproved, RuleStrict, RuleStrict},
		{"approved beats no_checking", OnSubmitWithReview, RuleNoChecking, RuleApproved, RuleApproved},
		{"order does not matter", OnSubmitWithReview, RuleStrict, RuleNoChecking, RuleStrict},
		{"equal tokens keep value", OnSubmitWithReview, RuleApproved, RuleApproved, RuleApproved},
		{"reject beats auto_create", OnSubmitWithoutReview, RuleAutoCreate, RuleReject, RuleReject},
		{"auto_create beats no_checking", OnSubmitWithoutReview, RuleNoChecking, RuleAutoCreate, RuleAutoCreate},
		{"no_revision beats no_checking", EndRuleUpdate, RuleNoChecking, RuleNoRevision, RuleNoRevision},
		{"never beats votes", AutoApprove, RuleVotes, RuleNever, RuleNever},
		{"invalid token never wins", OnSubmitWithReview, RuleApproved, Rule("bogus"), RuleApproved},
		{"token from another family never wins", OnSubmitWithReview, RuleApproved, RuleReject, RuleApproved},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got, err := Stricter(tt.id, tt.a, tt.b)
			if err != nil {
				t.Fatalf("Stricter(%s, %q, %q) error: %v", tt.id, tt.a, tt.b, err)
			}
			if got != tt.want {
				t.Errorf("Stricter(%s, %q, %q) = %q, want %q", tt.id, tt.a, tt.b, got, tt.want)
			}
		})
	}
}

func TestStricter_UnknownRuleID(t *testing.T) {
	t.Parallel()

	if _, err := Stricter(RuleID("no_such_rule"), RuleApproved, RuleStrict); !errors.Is(err, ErrUnknownRule) {
		t.Errorf("Stricter() with unknown id error = %v, want ErrUnknownRule", err)
	}
	// counted_votes is not ordinal and has no rank table.
	if _, err := Stricter(CountedVotes, RuleAnyone, RuleMembers); !errors.Is(err, ErrUnknownRule) {
		t.Errorf("Stricter(counted_votes) error = %v, want ErrUnknownRule", err)
	}
}

func TestMergeCountedVotes(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		a, b Rule
		want Rule
	}{
		{"members is sticky over anyone", RuleMembers, RuleAnyone, RuleMembers},
		{"members is sticky either side", RuleAnyone, RuleMembers, RuleMembers},
		{"anyone over unset", "", RuleAnyone, RuleAnyone},
		{"both unset", "", "", ""},
		{"members over unset", RuleMembers, "", RuleMembers},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			if got := MergeCountedVotes(tt.a, tt.b); got != tt.want {
				t.Errorf("MergeCountedVotes(%q, %q) = %q, want %q", tt.a, tt.b, got, tt.want)
			}
		})
	}
}

func TestValidRule(t *testing.T) {
	t.Parallel()

	valid := []struct {
		id    RuleID
		token Rule
	}{
		{OnSubmitWithReview, RuleNoChecking},
		{OnSubmitWithReview, RuleApproved},
		{OnSubmitWithReview, RuleStrict},
		{OnSubmitWithoutReview, RuleAutoCreate},
		{OnSubmitWithoutReview, RuleReject},
		{EndRuleUpdate, RuleNoRevision},
		{AutoApprove, RuleVotes},
		{AutoApprove, RuleNever},
		{CountedVotes, RuleAnyone},
		{CountedVotes, RuleMembers},
	}
	for _, tt := range valid {
		if !ValidRule(tt.id, tt.token) {
			t.Errorf("ValidRule(%s, %q) = false, want true", tt.id, tt.token)
		}
	}

	invalid := []struct {
		id    RuleID
		token Rule
	}{
		{OnSubmitWithReview, RuleReject},
		{OnSubmitWithoutReview, RuleStrict},
		{EndRuleUpdate, RuleApproved},
		{AutoApprove, RuleNoChecking},
		{CountedVotes, RuleNever},
		{OnSubmitWithReview, Rule("bogus")},
		{RuleID("no_such_rule"), RuleApproved},
	}
	for _, tt := range invalid {
		if ValidRule(tt.id, tt.token) {
			t.Errorf("ValidRule(%s, %q) = true, want false", tt.id, tt.token)
		}
	}
}

func TestUnionExclusions(t *testing.T) {
	t.Parallel()

	got := UnionExclusions([]string{"a", "b"}, []string{"b", "c", "a", "d"})
	want := []string{"a", "b", "c", "d"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("UnionExclusions() = %v, want %v", got, want)
	}

	if got := UnionExclusions(nil, nil); len(got) != 0 {
		t.Errorf("UnionExclusions(nil, nil) = %v, want empty", got)
	}
}

// specimen builds a minimal non-global workflow for fold tests.
func specimen(id string, withReview, withoutReview Rule) *Workflow {
	return &Workflow{
		ID:                    id,
		OnSubmitWithReview:    RuleValue{Rule: withReview, Mode: ModeDefault},
		OnSubmitWithoutReview: RuleValue{Rule: withoutReview, Mode: ModeDefault},
		EndRuleUpdate:         RuleValue{Rule: RuleNoChecking, Mode: ModeDefault},
		AutoApprove:           RuleValue{Rule: RuleVotes, Mode: ModeDefault},
		CountedVotes:          RuleValue{Rule: RuleAnyone, Mode: ModeDefault},
	}
}

func TestAccumulator_MergeWorkflow_StricterWins(t *testing.T) {
	t.Parallel()

	acc := NewAccumulator()
	if err := acc.MergeWorkflow(specimen("lenient", RuleNoChecking, RuleAutoCreate)); err != nil {
		t.Fatalf("MergeWorkflow() error: %v", err)
	}
	if err := acc.MergeWorkflow(specimen("harsh", RuleStrict, RuleReject)); err != nil {
		t.Fatalf("MergeWorkflow() error: %v", err)
	}

	m := acc.Finalize()
	if m.OnSubmitWithReview != RuleStrict {
		t.Errorf("OnSubmitWithReview = %q, want %q", m.OnSubmitWithReview, RuleStrict)
	}
	if m.OnSubmitWithoutReview != RuleReject {
		t.Errorf("OnSubmitWithoutReview = %q, want %q", m.OnSubmitWithoutReview, RuleReject)
	}
	if !reflect.DeepEqual(m.Sources, []string{"lenient", "harsh"}) {
		t.Errorf("Sources = %v, want [lenient harsh]", m.Sources)
	}
}

func TestAccumulator_MergeWorkflow_OrderIndependent(t *testing.T) {
	t.Parallel()

	a := specimen("a", RuleApproved, RuleAutoCreate)
	a.CountedVotes.Rule = RuleMembers
	b := specimen("b", RuleStrict, RuleNoChecking)

	fold := func(ws ...*Workflow) *Merged {
		acc := NewAccumulator()
		for _, w := range ws {
			if err := acc.MergeWorkflow(w); err != nil {
				t.Fatalf("MergeWorkflow() error: %v", err)
			}
		}
		m := acc.Finalize()
		m.Sources = nil
		return m
	}

	ab := fold(a, b)
	ba := fold(b, a)
	if !reflect.DeepEqual(ab, ba) {
		t.Errorf("fold order changed the result:\n a,b: %+v\n b,a: %+v", ab, ba)
	}
	if ab.CountedVotes != RuleMembers {
		t.Errorf("CountedVotes = %q, want members to stick", ab.CountedVotes)
	}
}

func TestAccumulator_MergeWorkflow_Idempotent(t *testing.T) {
	t.Parallel()

	w := specimen("w", RuleApproved, RuleReject)
	w.UserExclusions.IDs = []string{"alice"}

	acc := NewAccumulator()
	for i := 0; i < 3; i++ {
		if err := acc.MergeWorkflow(w); err != nil {
			t.Fatalf("MergeWorkflow() error: %v", err)
		}
	}
	m := acc.Finalize()
	if m.OnSubmitWithReview != RuleApproved {
		t.Errorf("OnSubmitWithReview = %q, want %q", m.OnSubmitWithReview, RuleApproved)
	}
	if !reflect.DeepEqual(m.UserExclusions, []string{"alice"}) {
		t.Errorf("UserExclusions = %v, want [alice] exactly once", m.UserExclusions)
	}
}

func TestAccumulator_MergeScalar_SkipsBadTokens(t *testing.T) {
	t.Parallel()

	acc := NewAccumulator()
	if err := acc.MergeScalar(OnSubmitWithReview, RuleApproved); err != nil {
		t.Fatalf("MergeScalar() error: %v", err)
	}
	// Corrupt stored data must not weaken or error the merge.
	if err := acc.MergeScalar(OnSubmitWithReview, Rule("corrupt")); err != nil {
		t.Fatalf("MergeScalar() with bad token error: %v", err)
	}
	if r, _ := acc.Scalar(OnSubmitWithReview); r != RuleApproved {
		t.Errorf("Scalar() = %q after bad token, want %q", r, RuleApproved)
	}

	if err := acc.MergeScalar(RuleID("no_such_rule"), RuleApproved); !errors.Is(err, ErrUnknownRule) {
		t.Errorf("MergeScalar() with unknown id error = %v, want ErrUnknownRule", err)
	}
}

func TestAccumulator_ApplyGlobal_DefaultMode(t *testing.T) {
	t.Parallel()

	global := DefaultGlobal()
	global.OnSubmitWithReview = RuleValue{Rule: RuleApproved, Mode: ModeDefault}
	global.UserExclusions = ExclusionValue{IDs: []string{"build-bot"}, Mode: ModeDefault}

	// A specific workflow already set with_review, so the global default
	// must not override it, but unset fields take the global value.
	acc := NewAccumulator()
	if err := acc.MergeWorkflow(specimen("s", RuleNoChecking, "")); err != nil {
		t.Fatalf("MergeWorkflow() error: %v", err)
	}
	if err := acc.ApplyGlobal(global); err != nil {
		t.Fatalf("ApplyGlobal() error: %v", err)
	}

	m := acc.Finalize()
	if m.OnSubmitWithReview != RuleNoChecking {
		t.Errorf("OnSubmitWithReview = %q, want specific no_checking to survive a default-mode global", m.OnSubmitWithReview)
	}
	if m.OnSubmitWithoutReview != RuleNoChecking {
		t.Errorf("OnSubmitWithoutReview = %q, want global default fill-in", m.OnSubmitWithoutReview)
	}
	// The specific fold expressed an (empty) exclusion opinion, so the
	// default-mode global list does not apply.
	if len(m.UserExclusions) != 0 {
		t.Errorf("UserExclusions = %v, want empty", m.UserExclusions)
	}

	// Without any specific workflow the global default exclusions do apply.
	empty := NewAccumulator()
	if err := empty.ApplyGlobal(global); err != nil {
		t.Fatalf("ApplyGlobal() error: %v", err)
	}
	if m := empty.Finalize(); !reflect.DeepEqual(m.UserExclusions, []string{"build-bot"}) {
		t.Errorf("UserExclusions = %v, want global exclusions on an empty fold", m.UserExclusions)
	}
}

func TestAccumulator_ApplyGlobal_PolicyMode(t *testing.T) {
	t.Parallel()

	global := DefaultGlobal()
	global.OnSubmitWithReview = RuleValue{Rule: RuleStrict, Mode: ModePolicy}
	global.UserExclusions = ExclusionValue{IDs: []string{"build-bot"}, Mode: ModePolicy}

	acc := NewAccumulator()
	w := specimen("s", RuleNoChecking, RuleAutoCreate)
	w.UserExclusions.IDs = []string{"alice", "bob"}
	if err := acc.MergeWorkflow(w); err != nil {
		t.Fatalf("MergeWorkflow() error: %v", err)
	}
	if err := acc.ApplyGlobal(global); err != nil {
		t.Fatalf("ApplyGlobal() error: %v", err)
	}

	m := acc.Finalize()
	if m.OnSubmitWithReview != RuleStrict {
		t.Errorf("OnSubmitWithReview = %q, want policy-mode strict to win", m.OnSubmitWithReview)
	}
	// Policy exclusions replace the accumulated set outright.
	if !reflect.DeepEqual(m.UserExclusions, []string{"build-bot"}) {
		t.Errorf("UserExclusions = %v, want policy replacement [build-bot]", m.UserExclusions)
	}
}

func TestAccumulator_ApplyGlobal_PolicyCannotWeaken(t *testing.T) {
	t.Parallel()

	global := DefaultGlobal()
	global.OnSubmitWithReview = RuleValue{Rule: RuleApproved, Mode: ModePolicy}

	acc := NewAccumulator()
	if err := acc.MergeWorkflow(specimen("s", RuleStrict, "")); err != nil {
		t.Fatalf("MergeWorkflow() error: %v", err)
	}
	if err := acc.ApplyGlobal(global); err != nil {
		t.Fatalf("ApplyGlobal() error: %v", err)
	}

	// Policy mode merges through the same strictness order, so a weaker
	// global policy cannot relax a stricter specific value.
	if m := acc.Finalize(); m.OnSubmitWithReview != RuleStrict {
		t.Errorf("OnSubmitWithReview = %q, want strict to survive a weaker policy", m.OnSubmitWithReview)
	}
}

func TestAccumulator_Finalize_Defaults(t *testing.T) {
	t.Parallel()

	m := NewAccumulator().Finalize()
	if m.OnSubmitWithReview != RuleNoChecking {
		t.Errorf("OnSubmitWithReview = %q, want built-in no_checking", m.OnSubmitWithReview)
	}
	if m.OnSubmitWithoutReview != RuleNoChecking {
		t.Errorf("OnSubmitWithoutReview = %q, want built-in no_checking", m.OnSubmitWithoutReview)
	}
	if m.EndRuleUpdate != RuleNoChecking {
		t.Errorf("EndRuleUpdate = %q, want built-in no_checking", m.EndRuleUpdate)
	}
	if m.AutoApprove != RuleNever {
		t.Errorf("AutoApprove = %q, want built-in never", m.AutoApprove)
	}
	if m.CountedVotes != RuleAnyone {
		t.Errorf("CountedVotes = %q, want built-in anyone", m.CountedVotes)
	}
	if m.HasSpecific() {
		t.Error("HasSpecific() = true on an empty fold, want false")
	}
}

func TestMerged_Clone(t *testing.T) {
	t.Parallel()

	m := &Merged{
		OnSubmitWithReview: RuleApproved,
		UserExclusions:     []string{"alice"},
		GroupExclusions:    []string{"ops"},
		Sources:            []string{"w1"},
		Tests:              []TestRule{{TestID: "unit", Blocks: []string{"approved"}}},
	}
	c := m.Clone()
	c.UserExclusions[0] = "mallory"
	c.Sources[0] = "w2"
	if m.UserExclusions[0] != "alice" || m.Sources[0] != "w1" {
		t.Error("Clone() shares backing arrays with the original")
	}
}

func TestWorkflow_ScalarRule(t *testing.T) {
	t.Parallel()

	w := DefaultGlobal()
	for _, id := range ScalarRuleIDs {
		if _, err := w.ScalarRule(id); err != nil {
			t.Errorf("ScalarRule(%s) error: %v", id, err)
		}
	}
	if _, err := w.ScalarRule(RuleID("no_such_rule")); !errors.Is(err, ErrUnknownRule) {
		t.Errorf("ScalarRule() with unknown id error = %v, want ErrUnknownRule", err)
	}
}
