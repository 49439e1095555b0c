package secstore_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/mwantia/secstore"
	"github.com/mwantia/secstore/backend/memory"
)

func TestEngine_InitializationRetries(t *testing.T) {
	ctx := t.Context()
	storage := memory.NewMemoryBackend()
	storage.PutItem(ctx, "/preexisting", make([]byte, 42))

	engine, err := secstore.New(storage, secstore.WithLogger(testLogger()))
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	if engine.State() != secstore.StateUninitialized {
		t.Fatalf("Expected uninitialized, got %s", engine.State())
	}

	storage.SetAvailable(false)
	for range 2 {
		if _, err := engine.GetSize(ctx, "/"); !errors.Is(err, secstore.ErrUnavailable) {
			t.Fatalf("Expected ErrUnavailable, got %v", err)
		}
		if engine.State() != secstore.StateInitializing {
			t.Fatalf("Expected initializing, got %s", engine.State())
		}
	}

	storage.SetAvailable(true)
	size, err := engine.GetSize(ctx, "/")
	if err != nil {
		t.Fatalf("GetSize failed after recovery: %v", err)
	}
	if size != 42 {
		t.Errorf("Expected initial rebuild to pick up existing items, got %d", size)
	}
	if engine.State() != secstore.StateReady {
		t.Errorf("Expected ready, got %s", engine.State())
	}
}

func TestEngine_ReInitFailureMarksStale(t *testing.T) {
	ctx := t.Context()
	storage := memory.NewMemoryBackend()
	engine, err := secstore.New(storage, secstore.WithLogger(testLogger()))
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	engine.Write(ctx, "/certs/dev.pem", make([]byte, 128))

	storage.SetAvailable(false)
	if err := engine.ReInitSecStorage(ctx); !errors.Is(err, secstore.ErrUnavailable) {
		t.Fatalf("Expected ErrUnavailable, got %v", err)
	}
	if engine.State() != secstore.StateStale {
		t.Fatalf("Expected stale, got %s", engine.State())
	}

	// Tracker answers stay available while stale
	if size, err := engine.GetSize(ctx, "/certs"); err != nil || size != 128 {
		t.Errorf("Expected previous records, got %d, %v", size, err)
	}

	storage.SetAvailable(true)
	if err := engine.ReInitSecStorage(ctx); err != nil {
		t.Fatalf("ReInitSecStorage failed: %v", err)
	}
	if engine.State() != secstore.StateReady {
		t.Errorf("Expected ready, got %s", engine.State())
	}
}

func TestEngine_ReInitBeforeFirstUse(t *testing.T) {
	ctx := t.Context()
	storage := memory.NewMemoryBackend()
	storage.PutItem(ctx, "/a", make([]byte, 7))

	engine, err := secstore.New(storage, secstore.WithLogger(testLogger()))
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	if err := engine.ReInitSecStorage(ctx); err != nil {
		t.Fatalf("ReInitSecStorage failed: %v", err)
	}
	if engine.State() != secstore.StateReady {
		t.Errorf("Expected ready, got %s", engine.State())
	}
	if engine.Tracker().Len() != 1 {
		t.Errorf("Expected one tracked record, got %d", engine.Tracker().Len())
	}
}

func TestEngine_ConcurrentOperations(t *testing.T) {
	ctx := t.Context()
	engine, err := secstore.New(memory.NewMemoryBackend(), secstore.WithLogger(testLogger()))
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	var wg sync.WaitGroup
	for i := range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()

			dir := fmt.Sprintf("/worker-%d", i)
			for j := range 20 {
				path := fmt.Sprintf("%s/item-%d", dir, j)
				if err := engine.Write(ctx, path, make([]byte, 10)); err != nil {
					t.Errorf("Write(%s) failed: %v", path, err)
					return
				}
				if _, err := engine.Read(ctx, path, make([]byte, 10)); err != nil {
					t.Errorf("Read(%s) failed: %v", path, err)
					return
				}
			}

			if i%2 == 0 {
				if err := engine.Delete(ctx, dir); err != nil {
					t.Errorf("Delete(%s) failed: %v", dir, err)
				}
			}
		}()
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		for range 5 {
			if err := engine.ReInitSecStorage(ctx); err != nil {
				t.Errorf("ReInitSecStorage failed: %v", err)
			}
		}
	}()

	wg.Wait()

	size, err := engine.GetSize(ctx, "/")
	if err != nil {
		t.Fatalf("GetSize failed: %v", err)
	}
	if size != 4*20*10 {
		t.Errorf("Expected %d bytes, got %d", 4*20*10, size)
	}
	if drifts, _ := engine.Verify(ctx, "/"); len(drifts) != 0 {
		t.Errorf("Expected no drift, got %+v", drifts)
	}
}

func TestEngine_InitializationOutlivesCancelledCaller(t *testing.T) {
	storage := memory.NewMemoryBackend()
	storage.PutItem(t.Context(), "/certs/dev.pem", make([]byte, 64))

	engine, err := secstore.New(storage, secstore.WithLogger(testLogger()))
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	cancelled, cancel := context.WithCancel(t.Context())
	cancel()

	// The cancelled caller may give up, the shared rebuild must not
	if _, err := engine.GetSize(cancelled, "/"); err != nil && !errors.Is(err, secstore.ErrUnavailable) {
		t.Fatalf("Expected nil or ErrUnavailable, got %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for engine.State() != secstore.StateReady {
		if time.Now().After(deadline) {
			t.Fatalf("Expected initialization to complete, state is %s", engine.State())
		}
		time.Sleep(10 * time.Millisecond)
	}

	if size, err := engine.GetSize(t.Context(), "/certs"); err != nil || size != 64 {
		t.Errorf("Expected 64 tracked bytes, got %d, %v", size, err)
	}
}
