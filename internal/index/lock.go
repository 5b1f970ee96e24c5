package index

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"syscall"

	"github.com/gofrs/flock"

	smerrors "github.com/Aman-CERP/smre/internal/errors"
)

// LockFile is the lock file name inside an index directory.
const LockFile = ".build.lock"

// DirLock serializes builds against loads of one index directory across
// processes. Builds hold it exclusively, loads hold it shared.
type DirLock struct {
	path   string
	flock  *flock.Flock
	locked bool
}

// NewDirLock creates a lock for dir. The lock file is <dir>/.build.lock.
func NewDirLock(dir string) *DirLock {
	path := filepath.Join(dir, LockFile)
	return &DirLock{
		path:  path,
		flock: flock.New(path),
	}
}

// Lock acquires the exclusive lock, creating dir if needed. It blocks.
func (l *DirLock) Lock() error {
	if err := os.MkdirAll(filepath.Dir(l.path), 0o755); err != nil {
		return fmt.Errorf("failed to create index directory: %w", err)
	}
	if err := l.flock.Lock(); err != nil {
		return fmt.Errorf("failed to acquire build lock: %w", err)
	}
	l.locked = true
	return nil
}

// RLock acquires the shared lock. dir must already exist. When the lock
// file cannot be created because dir is read-only, RLock succeeds without
// locking: no build can run in a directory it cannot write.
func (l *DirLock) RLock() error {
	if err := l.flock.RLock(); err != nil {
		if isReadOnly(err) {
			return nil
		}
		return smerrors.New(smerrors.ErrCodeIndexLock, "failed to acquire read lock", err).
			WithDetail("path", l.path).
			WithSuggestion("Check permissions on the index directory")
	}
	l.locked = true
	return nil
}

func isReadOnly(err error) bool {
	return errors.Is(err, fs.ErrPermission) || errors.Is(err, syscall.EROFS)
}

// TryLock attempts the exclusive lock without blocking.
func (l *DirLock) TryLock() (bool, error) {
	if err := os.MkdirAll(filepath.Dir(l.path), 0o755); err != nil {
		return false, fmt.Errorf("failed to create index directory: %w", err)
	}
	ok, err := l.flock.TryLock()
	if err != nil {
		return false, fmt.Errorf("failed to acquire build lock: %w", err)
	}
	l.locked = ok
	return ok, nil
}

// Unlock releases the lock. Calling it on an unlocked DirLock is a no-op.
func (l *DirLock) Unlock() error {
	if !l.locked {
		return nil
	}
	l.locked = false
	if err := l.flock.Unlock(); err != nil {
		return fmt.Errorf("failed to release lock: %w", err)
	}
	return nil
}

// Path returns the lock file path.
func (l *DirLock) Path() string {
	return l.path
}
