package errors

import (
	"errors"
	"fmt"
	"sync"
)

// Standard secstore errors. Backends and the engine wrap these, so callers
// should always compare with errors.Is.
var (
	// ErrBadPath marks a malformed path or a leaf/container conflict.
	ErrBadPath = errors.New("secstore: bad path")
	// ErrNotFound marks a missing item or an empty subtree.
	ErrNotFound = errors.New("secstore: not found")
	// ErrNoSpace marks an exhausted backend or an oversized item.
	ErrNoSpace = errors.New("secstore: no space left")
	// ErrOverflow marks a caller buffer that is too small for the stored item.
	ErrOverflow = errors.New("secstore: buffer overflow")
	// ErrUnavailable marks a backend that is temporarily unreachable.
	ErrUnavailable = errors.New("secstore: storage unavailable")
	// ErrFault marks any other, not necessarily retryable, failure.
	ErrFault = errors.New("secstore: fault")

	// ErrNotEmpty is returned by copy and move when the destination already
	// holds data. It is a fault.
	ErrNotEmpty = fmt.Errorf("%w: destination not empty", ErrFault)
	// ErrReadOnly is returned by mutations on a read-only backend.
	ErrReadOnly = fmt.Errorf("%w: read-only", ErrFault)
)

// ErrNoMemory is the legacy name for ErrNoSpace.
var ErrNoMemory = ErrNoSpace

// Errors collects multiple failures into a single joined error.
type Errors struct {
	mu     sync.RWMutex
	errors []error
}

func (e *Errors) Add(err error) {
	if err == nil {
		return
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	e.errors = append(e.errors, err)
}

func (e *Errors) Len() int {
	e.mu.RLock()
	defer e.mu.RUnlock()

	return len(e.errors)
}

func (e *Errors) Errors() error {
	e.mu.RLock()
	defer e.mu.RUnlock()

	if len(e.errors) == 0 {
		return nil
	}

	return errors.Join(e.errors...)
}

// newError wraps the sentinel kind with a formatted context message and an
// optional cause. Both kind and cause stay reachable through errors.Is.
func newError(kind, cause error, format string, args ...any) error {
	text := fmt.Sprintf(format, args...)
	if cause != nil && !errors.Is(cause, kind) {
		return fmt.Errorf("%w: %s: %w", kind, text, cause)
	}
	if cause != nil {
		return fmt.Errorf("%s: %w", text, cause)
	}

	return fmt.Errorf("%w: %s", kind, text)
}
