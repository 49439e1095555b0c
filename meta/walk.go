package meta

import (
	"context"
	"errors"

	"github.com/mwantia/secstore/backend"
	"github.com/mwantia/secstore/data"
	serrors "github.com/mwantia/secstore/data/errors"
)

// WalkFunc is called once for every item found below the walked path.
type WalkFunc func(path string, content []byte) error

// Walk visits every item at or below path, descending via ListChildren.
// A path that yields ErrNotFound on GetItem is treated as a container.
func Walk(ctx context.Context, storage backend.StorageBackend, path string, fn WalkFunc) error {
	if err := ctx.Err(); err != nil {
		return serrors.Classify(err)
	}

	if !data.IsRoot(path) {
		content, err := storage.GetItem(ctx, path)
		switch {
		case err == nil:
			return fn(path, content)
		case !errors.Is(err, serrors.ErrNotFound):
			return serrors.Classify(err)
		}
	}

	names, err := storage.ListChildren(ctx, path)
	if err != nil {
		return serrors.Classify(err)
	}

	for _, name := range names {
		child, err := data.JoinChild(path, name)
		if err != nil {
			return err
		}

		if err := Walk(ctx, storage, child, fn); err != nil {
			return err
		}
	}

	return nil
}
