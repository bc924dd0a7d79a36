package txn

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"golang.org/x/sys/unix"
)

// ErrScopeBusy is returned when a lock cannot be acquired within budget.
type ErrScopeBusy struct {
	LockPath string
	Budget   time.Duration
}

func (e *ErrScopeBusy) Error() string {
	return fmt.Sprintf("txn: scope busy: could not acquire %s within %s", e.LockPath, e.Budget)
}

// ScopeLock is the exclusive advisory file lock guarding a scope root
// (spec §5). It serializes transactions against the same scope; scopes
// are independent of each other.
type ScopeLock struct {
	path string
	fd   int
	held bool
}

func NewScopeLock(scopeRoot string) *ScopeLock {
	return &ScopeLock{path: filepath.Join(scopeRoot, "engine", "locks", "scope.lock")}
}

// Acquire blocks, retrying LOCK_EX|LOCK_NB, until it succeeds or budget
// elapses. A budget <= 0 means try once and fail fast.
func (l *ScopeLock) Acquire(budget time.Duration) error {
	if err := os.MkdirAll(filepath.Dir(l.path), 0o755); err != nil {
		return fmt.Errorf("txn: mkdir lock dir: %w", err)
	}
	fd, err := unix.Open(l.path, unix.O_CREAT|unix.O_RDWR, 0o644)
	if err != nil {
		return fmt.Errorf("txn: open lock file: %w", err)
	}

	deadline := time.Now().Add(budget)
	for {
		err := unix.Flock(fd, unix.LOCK_EX|unix.LOCK_NB)
		if err == nil {
			l.fd = fd
			l.held = true
			return nil
		}
		if budget <= 0 || time.Now().After(deadline) {
			unix.Close(fd)
			return &ErrScopeBusy{LockPath: l.path, Budget: budget}
		}
		time.Sleep(25 * time.Millisecond)
	}
}

// Release unlocks and closes the lock file descriptor. It is a no-op if
// the lock is not held, so ReleaseLock can run safely during recovery
// even when a prior process already held and released it.
func (l *ScopeLock) Release() error {
	if !l.held {
		return nil
	}
	err := unix.Flock(l.fd, unix.LOCK_UN)
	closeErr := unix.Close(l.fd)
	l.held = false
	if err != nil {
		return fmt.Errorf("txn: unlock: %w", err)
	}
	if closeErr != nil {
		return fmt.Errorf("txn: close lock fd: %w", closeErr)
	}
	return nil
}
