package readonly

import (
	"context"

	"github.com/mwantia/secstore/backend"
	"github.com/mwantia/secstore/data"
	"github.com/mwantia/secstore/data/errors"
)

// ReadOnlyBackend wraps any StorageBackend to make it read-only.
// All read operations are passed through to the underlying backend.
// All write operations return ErrReadOnly.
type ReadOnlyBackend struct {
	storage backend.StorageBackend
}

// NewReadOnly creates a new read-only wrapper around the given backend.
func NewReadOnly(storage backend.StorageBackend) *ReadOnlyBackend {
	return &ReadOnlyBackend{
		storage: storage,
	}
}

func (rob *ReadOnlyBackend) Name() string {
	return rob.storage.Name()
}

func (rob *ReadOnlyBackend) Open(ctx context.Context) error {
	return rob.storage.Open(ctx)
}

func (rob *ReadOnlyBackend) Close(ctx context.Context) error {
	return rob.storage.Close(ctx)
}

// GetCapabilities hides the metadata capability, since records cannot be
// written either.
func (rob *ReadOnlyBackend) GetCapabilities() *backend.Capabilities {
	caps := rob.storage.GetCapabilities()

	return &backend.Capabilities{
		Capabilities:  []backend.Capability{backend.CapabilityStorage},
		MaxObjectSize: caps.MaxObjectSize,
	}
}

func (rob *ReadOnlyBackend) GetItem(ctx context.Context, key string) ([]byte, error) {
	return rob.storage.GetItem(ctx, key)
}

func (rob *ReadOnlyBackend) PutItem(ctx context.Context, key string, content []byte) error {
	return errors.BackendReadOnly(rob.Name(), key)
}

func (rob *ReadOnlyBackend) DeleteItem(ctx context.Context, key string) error {
	return errors.BackendReadOnly(rob.Name(), key)
}

func (rob *ReadOnlyBackend) ListChildren(ctx context.Context, key string) ([]string, error) {
	return rob.storage.ListChildren(ctx, key)
}

func (rob *ReadOnlyBackend) StatItem(ctx context.Context, key string) (*data.ItemStat, error) {
	return rob.storage.StatItem(ctx, key)
}

func (rob *ReadOnlyBackend) StatAll(ctx context.Context) (*data.SpaceStat, error) {
	return rob.storage.StatAll(ctx)
}
