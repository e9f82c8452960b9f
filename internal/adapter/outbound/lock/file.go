package lock

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/reviewgate/reviewgate/internal/domain/enforce"
)

// FileLock implements enforce.ChangeLocker with one lock file per change
// under dir. File locks are held on the open descriptor, so separate
// processes gating the same change serialize, as do separate FileLock
// values within one process. Lock files are left in place after release;
// unlinking them would race a concurrent acquirer.
type FileLock struct {
	dir    string
	logger *slog.Logger
}

// NewFileLock creates a file-backed change lock rooted at dir. The
// directory must exist and be shared by every process gating the same
// repository, typically the directory holding the database file.
func NewFileLock(dir string, logger *slog.Logger) *FileLock {
	return &FileLock{dir: dir, logger: logger}
}

// Acquire takes the exclusive lock for a change, blocking until it is
// available, and returns its release function.
func (l *FileLock) Acquire(changeID int64) (release func(), err error) {
	path := filepath.Join(l.dir, fmt.Sprintf("reviewgate-change-%d.lock", changeID))
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0o600)
	if err != nil {
		return nil, fmt.Errorf("open lock file: %w", err)
	}
	if err := flockLock(f.Fd()); err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("acquire file lock: %w", err)
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			_ = flockUnlock(f.Fd())
			_ = f.Close()
		})
	}, nil
}

// Lock acquires the advisory lock for a change and returns its release
// function. An unacquirable lock file is logged and the check proceeds
// unserialized; advisory locking must not turn a gate into an outage.
func (l *FileLock) Lock(changeID int64) (release func()) {
	release, err := l.Acquire(changeID)
	if err != nil {
		l.logger.Warn("change lock unavailable, proceeding without it",
			"change", changeID, "dir", l.dir, "error", err)
		return func() {}
	}
	return release
}

// Compile-time interface verification.
var _ enforce.ChangeLocker = (*FileLock)(nil)
