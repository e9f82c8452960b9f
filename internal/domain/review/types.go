// Package review contains review and change records and their lifecycle
// vocabulary.
package review

import (
	"regexp"
	"strconv"
)

// State is a review lifecycle state.
type State string

const (
	StateNeedsReview   State = "needsReview"
	StateNeedsRevision State = "needsRevision"
	StateApproved      State = "approved"
	StateRejected      State = "rejected"
	StateArchived      State = "archived"
)

// CommitQualifier extends an end-state token: "approved:commit" matches an
// approved review only once it has commits recorded.
const CommitQualifier = "commit"

// States lists every review state.
var States = []State{
	StateNeedsReview,
	StateNeedsRevision,
	StateApproved,
	StateRejected,
	StateArchived,
}

// ValidState reports whether s is a known review state.
func ValidState(s State) bool {
	for _, known := range States {
		if s == known {
			return true
		}
	}
	return false
}

// Review is a code review record. The engine reads reviews and, on
// auto-create, writes them; everything else about their lifecycle is owned
// by the review administration surface.
type Review struct {
	ID          int64
	State       State
	Author      string
	Description string

	// Changes are the change ids linked to this review.
	Changes []int64
	// Commits are the change ids committed through this review.
	Commits []int64
	// PendingCommit is set while an approve-and-commit transition is in
	// flight.
	PendingCommit bool
}

// IsApproved reports whether the review is in the approved state.
func (r *Review) IsApproved() bool {
	return r.State == StateApproved
}

// HasChange reports whether changeID is linked to this review.
func (r *Review) HasChange(changeID int64) bool {
	for _, id := range r.Changes {
		if id == changeID {
			return true
		}
	}
	return false
}

// Change is a pending version-control change.
type Change struct {
	ID          int64
	User        string
	Description string
}

var (
	wipPattern    = regexp.MustCompile(`(?i)(^|\s)#wip\b`)
	reviewKeyword = regexp.MustCompile(`(^|\s)#review-(\d+)\b`)
)

// IsWorkInProgress reports whether the change description carries the
// work-in-progress tag, which suppresses review auto-creation.
func (c *Change) IsWorkInProgress() bool {
	return wipPattern.MatchString(c.Description)
}

// ReviewReference extracts an embedded review reference keyword from the
// change description. The referenced review, when it exists, is about to be
// linked to the change.
func (c *Change) ReviewReference() (int64, bool) {
	m := reviewKeyword.FindStringSubmatch(c.Description)
	if m == nil {
		return 0, false
	}
	id, err := strconv.ParseInt(m[2], 10, 64)
	if err != nil {
		return 0, false
	}
	return id, true
}

// TestStatus is the recorded outcome of one automated test run.
type TestStatus string

const (
	TestStatusPass    TestStatus = "pass"
	TestStatusFail    TestStatus = "fail"
	TestStatusRunning TestStatus = "running"
)

// TestRun is one recorded automated test run against a review.
type TestRun struct {
	TestID string
	Status TestStatus
}
