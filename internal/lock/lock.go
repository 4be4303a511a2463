// Package lock serializes separate switcher invocations against each
// other with an exclusive lock file. The lock lives for one invocation
// and must be released on every exit path.
package lock

import (
	"fmt"
	"os"
	"strings"
	"sync"
	"time"
)

// HeldError indicates another invocation holds the lock
type HeldError struct {
	Path   string
	Holder string // contents of the existing lock file, if readable
}

func (e *HeldError) Error() string {
	if e.Holder != "" {
		return fmt.Sprintf("another switch is already running (%s): %s", e.Path, e.Holder)
	}
	return fmt.Sprintf("another switch is already running (%s)", e.Path)
}

// Lock is an acquired exclusivity lock
type Lock struct {
	path string

	mu       sync.Mutex
	released bool
}

// Acquire takes the lock at path, failing immediately with a HeldError
// when another invocation holds it. The lock file records the holder's
// pid, invocation ID, and start time for diagnostics.
func Acquire(path, invocationID string) (*Lock, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0644)
	if err != nil {
		if os.IsExist(err) {
			holder, _ := os.ReadFile(path)
			return nil, &HeldError{Path: path, Holder: strings.TrimSpace(string(holder))}
		}
		return nil, fmt.Errorf("failed to create lock file: %w", err)
	}

	line := fmt.Sprintf("pid=%d id=%s started=%s\n",
		os.Getpid(), invocationID, time.Now().UTC().Format(time.RFC3339))
	if _, err := f.WriteString(line); err != nil {
		f.Close()
		_ = os.Remove(path)
		return nil, fmt.Errorf("failed to write lock file: %w", err)
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(path)
		return nil, fmt.Errorf("failed to close lock file: %w", err)
	}

	return &Lock{path: path}, nil
}

// Release removes the lock file. Idempotent so callers can both defer it
// and call it explicitly on the happy path.
func (l *Lock) Release() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.released {
		return nil
	}
	l.released = true

	if err := os.Remove(l.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove lock file: %w", err)
	}
	return nil
}

// Path returns the lock file location
func (l *Lock) Path() string {
	return l.path
}
