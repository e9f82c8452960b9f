// Package lock provides the advisory per-change locks: a file-backed lock
// for processes sharing a repository and an in-process keyed lock for
// embedded, long-lived callers.
package lock

import (
	"sync"

	"github.com/reviewgate/reviewgate/internal/domain/enforce"
)

// entry is one per-change mutex with a refcount so unused entries can be
// reclaimed.
type entry struct {
	mu   sync.Mutex
	refs int
}

// KeyedLock implements enforce.ChangeLocker with per-change mutexes.
// Holders of different change ids never contend; two holders of the same id
// serialize. Entries are removed once the last holder releases. The
// exclusion only spans one process; callers invoked process-per-check use
// FileLock instead.
type KeyedLock struct {
	mu      sync.Mutex
	entries map[int64]*entry
}

// NewKeyedLock creates an empty keyed lock.
func NewKeyedLock() *KeyedLock {
	return &KeyedLock{entries: make(map[int64]*entry)}
}

// Lock acquires the advisory lock for a change and returns its release
// function. The release function must be called exactly once.
func (l *KeyedLock) Lock(changeID int64) (release func()) {
	l.mu.Lock()
	e, ok := l.entries[changeID]
	if !ok {
		e = &entry{}
		l.entries[changeID] = e
	}
	e.refs++
	l.mu.Unlock()

	e.mu.Lock()

	var once sync.Once
	return func() {
		once.Do(func() {
			e.mu.Unlock()
			l.mu.Lock()
			e.refs--
			if e.refs == 0 {
				delete(l.entries, changeID)
			}
			l.mu.Unlock()
		})
	}
}

// Compile-time interface verification.
var _ enforce.ChangeLocker = (*KeyedLock)(nil)
