package secstore

import (
	"context"
	"errors"
	"time"

	"github.com/mwantia/secstore/data"
	serrors "github.com/mwantia/secstore/data/errors"
	"github.com/mwantia/secstore/meta"
)

// Copy duplicates every item below src to the same relative position below
// dest. dest must hold neither an item nor children. Copying is best effort:
// items copied before a failure are kept and tracked, and the returned error
// wraps both ErrFault and the cause.
func (e *Engine) Copy(ctx context.Context, dest, src string) (err error) {
	defer e.observe("copy", time.Now(), &err)

	dest, src, err = validatePair(dest, src)
	if err != nil {
		return err
	}
	if err = e.ensureReady(ctx); err != nil {
		return err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	return e.copyLocked(ctx, dest, src)
}

// Move copies src to dest and then deletes src. If the copy fails src is left
// untouched. If only the delete fails, the data exists at both paths.
func (e *Engine) Move(ctx context.Context, dest, src string) (err error) {
	defer e.observe("move", time.Now(), &err)

	dest, src, err = validatePair(dest, src)
	if err != nil {
		return err
	}
	if err = e.ensureReady(ctx); err != nil {
		return err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.copyLocked(ctx, dest, src); err != nil {
		return err
	}

	if err := e.deleteLocked(ctx, src); err != nil {
		e.logger.Warn("Moved '%s' to '%s' but failed to remove the source: %v", src, dest, err)
		return serrors.PartialMove(err, dest, src)
	}

	return nil
}

func validatePair(dest, src string) (string, string, error) {
	dest, err := data.ValidatePath(dest)
	if err != nil {
		return "", "", err
	}

	src, err = data.ValidatePath(src)
	if err != nil {
		return "", "", err
	}

	if data.IsAncestorOf(dest, src) || data.IsAncestorOf(src, dest) {
		return "", "", serrors.PathOverlaps(dest, src)
	}

	return dest, src, nil
}

type copyItem struct {
	path    string
	content []byte
}

// copyLocked must be called with e.mu held.
func (e *Engine) copyLocked(ctx context.Context, dest, src string) error {
	if err := e.checkEmpty(ctx, dest); err != nil {
		return err
	}

	var items []copyItem
	err := meta.Walk(ctx, e.storage, src, func(path string, content []byte) error {
		items = append(items, copyItem{path: path, content: content})
		return nil
	})
	if err != nil {
		return err
	}
	if len(items) == 0 {
		return serrors.PathNotFound(nil, src)
	}

	caps := e.storage.GetCapabilities()
	copied := make([]string, 0, len(items))
	for _, item := range items {
		target := data.Rebase(item.path, src, dest)
		var err error
		if size := int64(len(item.content)); !caps.Allows(size) {
			err = serrors.ObjectTooLarge(e.storage.Name(), size, caps.MaxObjectSize)
		} else {
			err = e.storage.PutItem(ctx, target, item.content)
		}
		if err != nil {
			err = serrors.Classify(err)
			if len(copied) == 0 {
				return err
			}

			e.tracker.OnCopy(ctx, dest, src, copied...)
			e.updateTracked()
			e.logger.Warn("Copy of '%s' to '%s' stopped after %d of %d item(s): %v", src, dest, len(copied), len(items), err)

			return serrors.PartialCopy(err, dest, src, len(copied))
		}

		copied = append(copied, item.path)
	}

	e.tracker.OnCopy(ctx, dest, src, copied...)
	e.updateTracked()
	e.logger.Debug("Copied %d item(s) from '%s' to '%s'", len(copied), src, dest)

	return nil
}

// checkEmpty fails if dest holds an item, has children or is nested below
// an item.
func (e *Engine) checkEmpty(ctx context.Context, dest string) error {
	_, err := e.storage.StatItem(ctx, dest)
	switch {
	case err == nil:
		return serrors.DestinationNotEmpty(dest)
	case !errors.Is(err, serrors.ErrNotFound):
		return serrors.Classify(err)
	}

	names, err := e.storage.ListChildren(ctx, dest)
	if err != nil {
		return serrors.Classify(err)
	}
	if len(names) > 0 {
		return serrors.DestinationNotEmpty(dest)
	}

	return e.checkAncestors(ctx, dest)
}
