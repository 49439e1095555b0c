package errors

import (
	"context"
	"errors"
	"fmt"
)

func BackendUnavailable(err error, name string) error {
	return newError(ErrUnavailable, err, "backend '%s' unavailable", name)
}

func BackendFault(err error, name string) error {
	return newError(ErrFault, err, "backend '%s' failed", name)
}

func BackendNoSpace(err error, name string, requested, free int64) error {
	return newError(ErrNoSpace, err, "backend '%s' needs %d bytes but has %d free", name, requested, free)
}

func BackendReadOnly(name, key string) error {
	return newError(ErrReadOnly, nil, "backend '%s' refused to modify '%s'", name, key)
}

func ObjectTooLarge(name string, size, max int64) error {
	return newError(ErrNoSpace, nil, "item of %d bytes exceeds the %d byte limit of backend '%s'", size, max, name)
}

func BufferOverflow(path string, size int64, capacity int) error {
	return newError(ErrOverflow, nil, "item '%s' holds %d bytes, buffer has %d", path, size, capacity)
}

func PartialCopy(err error, dest, src string, copied int) error {
	return fmt.Errorf("%w: copy '%s' to '%s' stopped after %d item(s): %w", ErrFault, src, dest, copied, err)
}

func PartialMove(err error, dest, src string) error {
	return fmt.Errorf("%w: moved '%s' to '%s' but source removal failed: %w", ErrFault, src, dest, err)
}

// Classify maps any error onto the secstore taxonomy. Errors that already
// carry a kind are returned unchanged; context cancellation and deadlines are
// reported as unavailable; everything else is wrapped as a fault.
func Classify(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, ErrBadPath),
		errors.Is(err, ErrNotFound),
		errors.Is(err, ErrNoSpace),
		errors.Is(err, ErrOverflow),
		errors.Is(err, ErrUnavailable),
		errors.Is(err, ErrFault):
		return err
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return fmt.Errorf("%w: %w", ErrUnavailable, err)
	default:
		return fmt.Errorf("%w: %w", ErrFault, err)
	}
}

// Kind returns the sentinel an error belongs to, or nil.
func Kind(err error) error {
	for _, kind := range []error{ErrNotEmpty, ErrReadOnly, ErrBadPath, ErrNotFound, ErrNoSpace, ErrOverflow, ErrUnavailable, ErrFault} {
		if errors.Is(err, kind) {
			return kind
		}
	}

	return nil
}
