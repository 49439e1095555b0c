package watch

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"
)

type recordingNotifier struct {
	mu      sync.Mutex
	sources []string
	called  chan struct{}
}

func newRecordingNotifier() *recordingNotifier {
	return &recordingNotifier{called: make(chan struct{}, 8)}
}

func (n *recordingNotifier) HandleRestore(ctx context.Context, source string) error {
	n.mu.Lock()
	n.sources = append(n.sources, source)
	n.mu.Unlock()

	n.called <- struct{}{}
	return nil
}

func TestFileWatcher_NotifiesOnMarker(t *testing.T) {
	dir := t.TempDir()
	marker := filepath.Join(dir, "restored")
	notifier := newRecordingNotifier()

	fw := NewFileWatcher(marker, notifier, nil)
	fw.Debounce = 20 * time.Millisecond
	fw.RemoveMarker = true

	ctx, cancel := context.WithCancel(t.Context())
	done := make(chan error, 1)
	go func() {
		done <- fw.Run(ctx)
	}()

	// Give the watcher time to register the directory.
	time.Sleep(100 * time.Millisecond)

	if err := os.WriteFile(filepath.Join(dir, "other"), []byte("x"), 0600); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}
	if err := os.WriteFile(marker, []byte("1"), 0600); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}

	select {
	case <-notifier.called:
	case <-time.After(5 * time.Second):
		t.Fatalf("Expected restore notification")
	}

	cancel()
	if err := <-done; err != nil {
		t.Errorf("Run returned error: %v", err)
	}

	notifier.mu.Lock()
	defer notifier.mu.Unlock()
	if len(notifier.sources) != 1 || notifier.sources[0] != "file:"+marker {
		t.Errorf("Unexpected notifications: %v", notifier.sources)
	}

	if _, err := os.Stat(marker); !os.IsNotExist(err) {
		t.Errorf("Expected marker to be removed, got %v", err)
	}
}
