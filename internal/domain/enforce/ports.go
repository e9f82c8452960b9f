package enforce

import "context"

// GroupChecker tests user membership in a group. Implemented by the
// directory or version-control integration.
type GroupChecker interface {
	IsMember(ctx context.Context, userID, groupID string) (bool, error)
}

// ContentComparer compares the content of a pending change against the head
// content of a review. The comparison involves version-control I/O and is
// owned by the connection layer, not this core.
type ContentComparer interface {
	SameContent(ctx context.Context, changeID, reviewID int64) (bool, error)
}

// ChangeLocker is the advisory per-change mutual exclusion primitive.
// Callers hold the lock for the whole enforcement call so two concurrent
// submit/shelve triggers for the same change cannot both auto-create a
// review.
type ChangeLocker interface {
	// Lock acquires the advisory lock for a change and returns its release
	// function.
	Lock(changeID int64) (release func())
}
