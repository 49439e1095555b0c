package watch

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/mwantia/secstore/log"
)

// DefaultDebounce collapses bursts of marker writes into one restore signal.
const DefaultDebounce = 200 * time.Millisecond

// FileWatcher signals a restore whenever a marker file is created or
// written, for example by the tool that restores the storage medium.
type FileWatcher struct {
	marker   string
	notifier Notifier
	logger   *log.Logger

	Debounce time.Duration
	// RemoveMarker deletes the marker after a successful notification.
	RemoveMarker bool
}

func NewFileWatcher(marker string, notifier Notifier, logger *log.Logger) *FileWatcher {
	if logger == nil {
		logger = log.Discard()
	}

	return &FileWatcher{
		marker:   filepath.Clean(marker),
		notifier: notifier,
		logger:   logger,
		Debounce: DefaultDebounce,
	}
}

// Run watches the marker until ctx is cancelled.
func (fw *FileWatcher) Run(ctx context.Context) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()

	// The marker itself may not exist yet, so watch its directory.
	if err := w.Add(filepath.Dir(fw.marker)); err != nil {
		return err
	}

	fw.logger.Info("Watching restore marker '%s'", fw.marker)

	var timer *time.Timer
	var fire <-chan time.Time

	for {
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			fw.logger.Info("Stopped watching restore marker")
			return nil

		case <-fire:
			fire = nil
			fw.notify(ctx)

		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != fw.marker || !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Write) {
				continue
			}

			fw.logger.Debug("Restore marker event: %s", ev.Op)
			if timer == nil {
				timer = time.NewTimer(fw.Debounce)
			} else {
				timer.Reset(fw.Debounce)
			}
			fire = timer.C

		case watchErr, ok := <-w.Errors:
			if !ok {
				return nil
			}
			fw.logger.Error("Restore marker watch error: %v", watchErr)
		}
	}
}

func (fw *FileWatcher) notify(ctx context.Context) {
	if err := fw.notifier.HandleRestore(ctx, "file:"+fw.marker); err != nil {
		fw.logger.Warn("Restore from marker '%s' failed: %v", fw.marker, err)
		return
	}

	if fw.RemoveMarker {
		if err := os.Remove(fw.marker); err != nil && !os.IsNotExist(err) {
			fw.logger.Warn("Unable to remove restore marker: %v", err)
		}
	}
}
