package secstore

import (
	"context"
	"errors"
	"time"

	"github.com/mwantia/secstore/data"
	serrors "github.com/mwantia/secstore/data/errors"
	"github.com/mwantia/secstore/meta"
)

// EntryFunc is called once per child name by GetEntries. Returning an error
// stops the enumeration and GetEntries returns that error.
type EntryFunc func(name string) error

// Write stores content at path, replacing any previous item.
func (e *Engine) Write(ctx context.Context, path string, content []byte) (err error) {
	defer e.observe("write", time.Now(), &err)

	path, err = data.ValidatePath(path)
	if err != nil {
		return err
	}
	if err = e.ensureReady(ctx); err != nil {
		return err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	return e.writeLocked(ctx, path, content)
}

// writeLocked checks leaf/container conflicts and stores content.
// Must be called with e.mu held.
func (e *Engine) writeLocked(ctx context.Context, path string, content []byte) error {
	if data.IsRoot(path) {
		return serrors.PathIsContainer(path)
	}

	caps := e.storage.GetCapabilities()
	if !caps.Allows(int64(len(content))) {
		return serrors.ObjectTooLarge(e.storage.Name(), int64(len(content)), caps.MaxObjectSize)
	}

	if err := e.checkLeaf(ctx, path); err != nil {
		return err
	}

	if err := e.storage.PutItem(ctx, path, content); err != nil {
		return serrors.Classify(err)
	}

	e.tracker.OnWrite(ctx, path, content)
	e.updateTracked()
	e.logger.Debug("Wrote %d bytes to '%s'", len(content), path)

	return nil
}

// checkLeaf fails if path has children or is nested below an item.
func (e *Engine) checkLeaf(ctx context.Context, path string) error {
	names, err := e.storage.ListChildren(ctx, path)
	if err != nil {
		return serrors.Classify(err)
	}
	if len(names) > 0 {
		return serrors.PathIsContainer(path)
	}

	return e.checkAncestors(ctx, path)
}

// checkAncestors fails if any ancestor of path is an item.
func (e *Engine) checkAncestors(ctx context.Context, path string) error {
	for _, ancestor := range data.Ancestors(path) {
		_, err := e.storage.StatItem(ctx, ancestor)
		switch {
		case err == nil:
			return serrors.PathBelowItem(path, ancestor)
		case !errors.Is(err, serrors.ErrNotFound):
			return serrors.Classify(err)
		}
	}

	return nil
}

// Read copies the item at path into buf and returns its length. If buf is
// too small, ErrOverflow is returned and buf is left untouched.
func (e *Engine) Read(ctx context.Context, path string, buf []byte) (n int, err error) {
	defer e.observe("read", time.Now(), &err)

	path, err = data.ValidatePath(path)
	if err != nil {
		return 0, err
	}
	if err = e.ensureReady(ctx); err != nil {
		return 0, err
	}

	e.mu.RLock()
	defer e.mu.RUnlock()

	if data.IsRoot(path) {
		return 0, serrors.PathNotFound(nil, path)
	}

	content, err := e.storage.GetItem(ctx, path)
	if err != nil {
		return 0, serrors.Classify(err)
	}

	if len(buf) < len(content) {
		return 0, serrors.BufferOverflow(path, int64(len(content)), len(buf))
	}

	return copy(buf, content), nil
}

// CopyMetaTo exports a JSON snapshot of the tracked records to path.
func (e *Engine) CopyMetaTo(ctx context.Context, path string) (err error) {
	defer e.observe("copy_meta", time.Now(), &err)

	path, err = data.ValidatePath(path)
	if err != nil {
		return err
	}
	if err = e.ensureReady(ctx); err != nil {
		return err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	snapshot := e.tracker.Snapshot()
	if snapshot == nil {
		return serrors.NothingTracked()
	}

	content, err := snapshot.Marshal()
	if err != nil {
		return serrors.Classify(err)
	}

	return e.writeLocked(ctx, path, content)
}

// Delete removes the item at path or the whole subtree below it.
func (e *Engine) Delete(ctx context.Context, path string) (err error) {
	defer e.observe("delete", time.Now(), &err)

	path, err = data.ValidatePath(path)
	if err != nil {
		return err
	}
	if err = e.ensureReady(ctx); err != nil {
		return err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	return e.deleteLocked(ctx, path)
}

func (e *Engine) deleteLocked(ctx context.Context, path string) error {
	if err := e.storage.DeleteItem(ctx, path); err != nil {
		return serrors.Classify(err)
	}

	e.tracker.OnDelete(ctx, path)
	e.updateTracked()
	e.logger.Debug("Deleted '%s'", path)

	return nil
}

// GetSize returns the summed size of all items at and below path as known
// to the metadata tracker.
func (e *Engine) GetSize(ctx context.Context, path string) (size int64, err error) {
	defer e.observe("size", time.Now(), &err)

	path, err = data.ValidatePath(path)
	if err != nil {
		return 0, err
	}
	if err = e.ensureReady(ctx); err != nil {
		return 0, err
	}

	e.mu.RLock()
	defer e.mu.RUnlock()

	size, ok := e.tracker.Size(path)
	if !ok {
		return 0, serrors.PathNotFound(nil, path)
	}

	return size, nil
}

// GetEntries calls visit once for every direct child of path in listing
// order. Missing paths and items have no children.
func (e *Engine) GetEntries(ctx context.Context, path string, visit EntryFunc) (err error) {
	defer e.observe("entries", time.Now(), &err)

	path, err = data.ValidatePath(path)
	if err != nil {
		return err
	}
	if err = e.ensureReady(ctx); err != nil {
		return err
	}

	e.mu.RLock()
	names, err := e.storage.ListChildren(ctx, path)
	e.mu.RUnlock()
	if err != nil {
		return serrors.Classify(err)
	}

	// visit runs unlocked so it may call back into the engine.
	for _, name := range names {
		if err := visit(name); err != nil {
			return err
		}
	}

	return nil
}

// GetTotalSpace returns total and free space of the storage backend.
func (e *Engine) GetTotalSpace(ctx context.Context) (total, free int64, err error) {
	defer e.observe("space", time.Now(), &err)

	if err = e.ensureReady(ctx); err != nil {
		return 0, 0, err
	}

	e.mu.RLock()
	defer e.mu.RUnlock()

	stat, err := e.storage.StatAll(ctx)
	if err != nil {
		return 0, 0, serrors.Classify(err)
	}

	return stat.Total, stat.Free, nil
}

// Verify reports differences between the tracked records at or below path
// and the stored items. Neither side is modified.
func (e *Engine) Verify(ctx context.Context, path string) (drifts []meta.Drift, err error) {
	defer e.observe("verify", time.Now(), &err)

	path, err = data.ValidatePath(path)
	if err != nil {
		return nil, err
	}
	if err = e.ensureReady(ctx); err != nil {
		return nil, err
	}

	e.mu.RLock()
	defer e.mu.RUnlock()

	return e.tracker.Verify(ctx, e.storage, path)
}

func (e *Engine) observe(op string, start time.Time, err *error) {
	e.metrics.ObserveOperation(op, start, *err)
}
