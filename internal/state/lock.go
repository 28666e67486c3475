package state

import (
	"context"
	"fmt"
	"os"
	"syscall"
	"time"

	"github.com/hemantobora/proxygen/internal/models"
)

// lockRetryInterval is how often a blocked caller re-attempts the flock.
const lockRetryInterval = 50 * time.Millisecond

// FileLock is an exclusive advisory lock over the state directory, shared by
// the record store and the chain store. Locks are process-scoped and released
// on file close or process exit, so a crashed writer never wedges the store.
type FileLock struct {
	path    string
	timeout time.Duration
	f       *os.File
}

// NewFileLock prepares a lock backed by the file at path. The lock file is
// created on first acquisition.
func NewFileLock(path string, timeout time.Duration) *FileLock {
	return &FileLock{path: path, timeout: timeout}
}

// Acquire takes the exclusive lock, retrying until the configured timeout.
// A caller that cannot acquire it in time gets an error matching both
// ErrLocked and models.LockTimeoutError rather than blocking indefinitely.
func (l *FileLock) Acquire(ctx context.Context) error {
	if l.f != nil {
		return fmt.Errorf("lock on %s already held by this handle", l.path)
	}

	f, err := os.OpenFile(l.path, os.O_CREATE|os.O_RDWR, 0o644)
	if err != nil {
		return fmt.Errorf("failed to open lock file: %w", err)
	}

	deadline := time.Now().Add(l.timeout)
	for {
		err := syscall.Flock(int(f.Fd()), syscall.LOCK_EX|syscall.LOCK_NB)
		if err == nil {
			l.f = f
			return nil
		}
		if err != syscall.EWOULDBLOCK {
			f.Close()
			return fmt.Errorf("failed to lock %s: %w", l.path, err)
		}
		if time.Now().After(deadline) {
			f.Close()
			return fmt.Errorf("%w: %w", ErrLocked, &models.LockTimeoutError{Path: l.path, Timeout: l.timeout})
		}
		select {
		case <-ctx.Done():
			f.Close()
			return ctx.Err()
		case <-time.After(lockRetryInterval):
		}
	}
}

// Release drops the lock. Safe to call when the lock is not held.
func (l *FileLock) Release() error {
	if l.f == nil {
		return nil
	}
	defer func() {
		l.f.Close()
		l.f = nil
	}()
	if err := syscall.Flock(int(l.f.Fd()), syscall.LOCK_UN); err != nil {
		return fmt.Errorf("failed to unlock %s: %w", l.path, err)
	}
	return nil
}
