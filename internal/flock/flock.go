// Package flock wraps flock(2) advisory locks on a sidecar lock file.
//
// flock locks belong to an open file description, so two Locks on the same
// path conflict even inside one process. That lets goroutines and separate
// processes share one exclusion mechanism, provided each critical section
// uses its own Lock value.
package flock

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"golang.org/x/sys/unix"
)

// Lock is a single acquisition of an advisory lock on path. It is not safe
// for concurrent use; create one per critical section.
type Lock struct {
	path string
	file *os.File
}

// New returns an unlocked Lock for path. The file is created on first use.
func New(path string) *Lock {
	return &Lock{path: path}
}

// Path returns the lock file path.
func (l *Lock) Path() string {
	return l.path
}

// Lock acquires an exclusive lock, blocking until no other holder remains.
func (l *Lock) Lock() error {
	_, err := l.acquire(unix.LOCK_EX)
	return err
}

// RLock acquires a shared lock. Shared holders exclude exclusive holders
// but not each other.
func (l *Lock) RLock() error {
	_, err := l.acquire(unix.LOCK_SH)
	return err
}

// TryLock attempts an exclusive lock without blocking. It reports false if
// another holder has the lock.
func (l *Lock) TryLock() (bool, error) {
	return l.acquire(unix.LOCK_EX | unix.LOCK_NB)
}

func (l *Lock) acquire(how int) (bool, error) {
	if l.file != nil {
		return false, fmt.Errorf("flock %s: already held", l.path)
	}
	if err := os.MkdirAll(filepath.Dir(l.path), 0755); err != nil {
		return false, fmt.Errorf("create lock directory: %w", err)
	}
	f, err := os.OpenFile(l.path, os.O_CREATE|os.O_RDWR, 0644)
	if err != nil {
		return false, fmt.Errorf("open lock file: %w", err)
	}

	for {
		err = unix.Flock(int(f.Fd()), how)
		if !errors.Is(err, unix.EINTR) {
			break
		}
	}
	if err != nil {
		_ = f.Close()
		if how&unix.LOCK_NB != 0 && errors.Is(err, unix.EWOULDBLOCK) {
			return false, nil
		}
		return false, fmt.Errorf("flock: %w", err)
	}

	l.file = f
	return true, nil
}

// Unlock releases the lock and closes the lock file. Unlocking a Lock that
// is not held is a no-op.
func (l *Lock) Unlock() error {
	if l.file == nil {
		return nil
	}

	f := l.file
	l.file = nil
	if err := unix.Flock(int(f.Fd()), unix.LOCK_UN); err != nil {
		_ = f.Close()
		return fmt.Errorf("funlock: %w", err)
	}
	return f.Close()
}
