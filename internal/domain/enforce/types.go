// Package enforce contains the enforcement result vocabulary and the
// collaborator ports the enforcement engine depends on.
package enforce

import "errors"

// Status is the outcome token of one enforcement check.
type Status string

const (
	// StatusOK permits the change to proceed.
	StatusOK Status = "ok"
	// StatusBadChange reports a change id that resolved to no change record.
	StatusBadChange Status = "bad_change"
	// StatusNoReview rejects a change with no associated review under a
	// reject rule.
	StatusNoReview Status = "no_review"
	// StatusNoApprovedReview rejects a change whose review is not approved.
	StatusNoApprovedReview Status = "no_approved_review"
	// StatusNotSameContent rejects a change whose content differs from the
	// head content of its review under a strict rule.
	StatusNotSameContent Status = "not_same_content"
	// StatusNoRevision refuses an update to a review that reached an end
	// state under a no-revision rule.
	StatusNoRevision Status = "no_revision"
	// StatusCreatedReview reports that a review was auto-created from the
	// change.
	StatusCreatedReview Status = "created_review"
	// StatusLinkedReview reports that the change was linked to the review
	// its description referenced.
	StatusLinkedReview Status = "linked_review"
	// StatusWorkInProgressChange refuses review auto-creation for a change
	// tagged as work in progress.
	StatusWorkInProgressChange Status = "work_in_progress_change"
)

// Result is the outcome of one enforcement check. Results are produced per
// call and consumed immediately by the submit/shelve trigger point.
type Result struct {
	Status    Status
	Messages  []string
	RequestID string
}

// Allowed reports whether the change may proceed. Auto-created and linked
// reviews allow the change through.
func (r Result) Allowed() bool {
	switch r.Status {
	case StatusOK, StatusCreatedReview, StatusLinkedReview:
		return true
	default:
		return false
	}
}

// ErrDisabled reports that workflow enforcement is administratively
// disabled. The gates swallow it to StatusOK unless the caller opted in to
// distinguishing "not enforced" from "passed enforcement".
var ErrDisabled = errors.New("workflow enforcement is disabled")
