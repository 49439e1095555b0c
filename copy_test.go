package secstore_test

import (
	"context"
	"errors"
	"testing"

	"github.com/mwantia/secstore"
	"github.com/mwantia/secstore/backend/memory"
	serrors "github.com/mwantia/secstore/data/errors"
)

// faultyBackend fails PutItem after a number of successful calls and can
// fail DeleteItem on demand.
type faultyBackend struct {
	*memory.MemoryBackend

	putsLeft   int
	failDelete bool
}

func (fb *faultyBackend) PutItem(ctx context.Context, key string, data []byte) error {
	if fb.putsLeft == 0 {
		return serrors.BackendNoSpace(nil, "faulty", int64(len(data)), 0)
	}
	if fb.putsLeft > 0 {
		fb.putsLeft--
	}

	return fb.MemoryBackend.PutItem(ctx, key, data)
}

func (fb *faultyBackend) DeleteItem(ctx context.Context, key string) error {
	if fb.failDelete {
		return serrors.BackendUnavailable(nil, "faulty")
	}

	return fb.MemoryBackend.DeleteItem(ctx, key)
}

func newFaultyEngine(t *testing.T) (*secstore.Engine, *faultyBackend) {
	t.Helper()

	storage := &faultyBackend{MemoryBackend: memory.NewMemoryBackend(), putsLeft: -1}
	engine, err := secstore.New(storage, secstore.WithLogger(testLogger()))
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	ctx := t.Context()
	for _, path := range []string{"/certs/a", "/certs/b", "/certs/c"} {
		if err := engine.Write(ctx, path, make([]byte, 10)); err != nil {
			t.Fatalf("Write(%s) failed: %v", path, err)
		}
	}

	return engine, storage
}

func TestCopy_PartialFailureKeepsCopiedItems(t *testing.T) {
	ctx := t.Context()
	engine, storage := newFaultyEngine(t)

	storage.putsLeft = 2
	err := engine.Copy(ctx, "/backup", "/certs")
	if !errors.Is(err, secstore.ErrFault) || !errors.Is(err, secstore.ErrNoSpace) {
		t.Fatalf("Expected fault wrapping ErrNoSpace, got %v", err)
	}

	// No rollback: copied items stay and are tracked
	size, err := engine.GetSize(ctx, "/backup")
	if err != nil || size != 20 {
		t.Errorf("Expected 20 tracked bytes at destination, got %d, %v", size, err)
	}
	if drifts, _ := engine.Verify(ctx, "/"); len(drifts) != 0 {
		t.Errorf("Tracker must match the copied items, got %+v", drifts)
	}
}

func TestCopy_FailureBeforeFirstItem(t *testing.T) {
	ctx := t.Context()
	engine, storage := newFaultyEngine(t)

	storage.putsLeft = 0
	err := engine.Copy(ctx, "/backup", "/certs")
	if !errors.Is(err, secstore.ErrNoSpace) || errors.Is(err, secstore.ErrFault) {
		t.Fatalf("Expected plain ErrNoSpace, got %v", err)
	}
	if _, err := engine.GetSize(ctx, "/backup"); !errors.Is(err, secstore.ErrNotFound) {
		t.Errorf("Expected nothing at destination, got %v", err)
	}
}

func TestMove_CopyFailureLeavesSource(t *testing.T) {
	ctx := t.Context()
	engine, storage := newFaultyEngine(t)

	storage.putsLeft = 1
	if err := engine.Move(ctx, "/moved", "/certs"); err == nil {
		t.Fatalf("Expected move to fail")
	}

	if size, err := engine.GetSize(ctx, "/certs"); err != nil || size != 30 {
		t.Errorf("Source must stay untouched, got %d, %v", size, err)
	}
}

func TestMove_DeleteFailureKeepsBoth(t *testing.T) {
	ctx := t.Context()
	engine, storage := newFaultyEngine(t)

	storage.failDelete = true
	err := engine.Move(ctx, "/moved", "/certs")
	if !errors.Is(err, secstore.ErrFault) || !errors.Is(err, secstore.ErrUnavailable) {
		t.Fatalf("Expected fault wrapping ErrUnavailable, got %v", err)
	}

	for _, path := range []string{"/moved", "/certs"} {
		if size, err := engine.GetSize(ctx, path); err != nil || size != 30 {
			t.Errorf("Expected data at %s, got %d, %v", path, size, err)
		}
	}
}
