package secstore

import (
	"context"
	"time"

	"github.com/mwantia/secstore/restore"
)

// ReInitSecStorage rebuilds the metadata tracker from the stored items. On
// failure the previous records stay in place and an initialized engine is
// marked StateStale until a later re-initialization succeeds.
func (e *Engine) ReInitSecStorage(ctx context.Context) (err error) {
	defer e.observe("reinit", time.Now(), &err)

	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.initialized() {
		return e.initLocked(ctx)
	}

	if err := e.tracker.Rebuild(ctx, e.storage); err != nil {
		e.logger.Warn("Re-initialization failed, metadata may be stale: %v", err)
		e.setState(StateStale)
		return err
	}

	e.setState(StateReady)
	e.updateTracked()
	return nil
}

// SetRestoreHandler registers h to be called after every restore.
func (e *Engine) SetRestoreHandler(h restore.Handler) restore.HandlerRef {
	return e.channel.Register(h)
}

// HandleRestore is called once per completed out-of-band restore. It
// re-initializes the engine and then notifies every registered handler,
// whether or not the re-initialization succeeded. The re-initialization
// error is returned.
func (e *Engine) HandleRestore(ctx context.Context, source string) error {
	e.logger.Info("Restore signalled by '%s'", source)

	err := e.ReInitSecStorage(ctx)
	e.metrics.ObserveRestore(err)

	e.channel.Fire(ctx, restore.NewEvent(source))
	return err
}
