package backend

import (
	"context"

	"github.com/mwantia/secstore/data"
)

// StorageBackend is the narrow contract to the non-volatile store. Every key
// is a normalized path. Implementations report failures through the sentinel
// errors in data/errors: ErrNotFound, ErrNoSpace, ErrBadPath, ErrUnavailable
// and ErrFault.
type StorageBackend interface {
	Backend
	// GetItem returns the full content stored at key.
	GetItem(ctx context.Context, key string) ([]byte, error)
	// PutItem replaces the content at key. Either the new content becomes
	// visible as a whole or the previous content remains.
	PutItem(ctx context.Context, key string, data []byte) error
	// DeleteItem removes key and everything nested under it.
	DeleteItem(ctx context.Context, key string) error
	// ListChildren returns the sorted names of the direct children of key.
	// Missing keys and leaves have no children.
	ListChildren(ctx context.Context, key string) ([]string, error)
	// StatItem returns the size of the item at key without reading it.
	StatItem(ctx context.Context, key string) (*data.ItemStat, error)
	// StatAll returns the total and free space of the store.
	StatAll(ctx context.Context) (*data.SpaceStat, error)
}
