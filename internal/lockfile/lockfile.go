// Package lockfile guards the daemon socket with an advisory file lock so
// exactly one daemon serves a database at a time.
package lockfile

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
)

// ErrLockBusy is returned when another process holds the lock.
var ErrLockBusy = errors.New("lock held by another process")

// Lock is an acquired advisory lock. The lock file stays on disk after
// release; only the flock matters.
type Lock struct {
	path string
	file *os.File
}

// Acquire takes an exclusive non-blocking lock at path, creating the file
// and its parent directory as needed. The holder's pid is written into the
// file for diagnostics.
func Acquire(path string) (*Lock, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("creating lock directory: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0o644)
	if err != nil {
		return nil, fmt.Errorf("opening lock file: %w", err)
	}
	if err := flockExclusive(f); err != nil {
		_ = f.Close()
		return nil, err
	}

	_ = f.Truncate(0)
	_, _ = f.WriteAt([]byte(strconv.Itoa(os.Getpid())), 0)
	return &Lock{path: path, file: f}, nil
}

// Release drops the lock. Safe to call on a nil lock.
func (l *Lock) Release() error {
	if l == nil || l.file == nil {
		return nil
	}
	if err := flockUnlock(l.file); err != nil {
		_ = l.file.Close()
		return err
	}
	err := l.file.Close()
	l.file = nil
	return err
}

// Path returns the lock file path.
func (l *Lock) Path() string { return l.path }

// Held reports whether some process currently holds the lock at path. A
// missing file means unheld.
func Held(path string) bool {
	f, err := os.OpenFile(path, os.O_RDWR, 0o644)
	if err != nil {
		return false
	}
	defer f.Close()

	if err := flockExclusive(f); err != nil {
		return errors.Is(err, ErrLockBusy)
	}
	_ = flockUnlock(f)
	return false
}
