package memory

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/mwantia/secstore/backend"
	"github.com/mwantia/secstore/data"
	"github.com/mwantia/secstore/data/errors"
	"github.com/tidwall/btree"
)

// DefaultQuota is the capacity used when none is configured (1 MiB).
const DefaultQuota = 1 << 20

// MemoryBackend keeps items and meta records in ordered in-memory maps.
// It implements both backend.StorageBackend and backend.MetadataBackend and
// can be switched unavailable to simulate a storage medium that went away.
type MemoryBackend struct {
	mu sync.RWMutex

	items *btree.Map[string, []byte]
	metas *btree.Map[string, *backend.MetaRecord]

	quota     int64
	used      int64
	maxObject int64

	unavailable atomic.Bool
}

type MemoryOption func(*MemoryBackend)

// WithQuota limits the total number of stored bytes.
func WithQuota(quota int64) MemoryOption {
	return func(mb *MemoryBackend) {
		mb.quota = quota
	}
}

// WithMaxObjectSize limits the size of a single item.
func WithMaxObjectSize(size int64) MemoryOption {
	return func(mb *MemoryBackend) {
		mb.maxObject = size
	}
}

func NewMemoryBackend(opts ...MemoryOption) *MemoryBackend {
	mb := &MemoryBackend{
		items: btree.NewMap[string, []byte](0),
		metas: btree.NewMap[string, *backend.MetaRecord](0),
		quota: DefaultQuota,
	}

	for _, opt := range opts {
		opt(mb)
	}

	return mb
}

// Name returns the identifier name defined for this backend.
func (*MemoryBackend) Name() string {
	return "memory"
}

// Open is part of the lifecycle behaviour and gets called when opening this backend.
func (mb *MemoryBackend) Open(ctx context.Context) error {
	// No initialization needed - backend is ready to use
	return nil
}

// Close is part of the lifecycle behaviour and gets called when closing this backend.
func (mb *MemoryBackend) Close(ctx context.Context) error {
	mb.mu.Lock()
	defer mb.mu.Unlock()

	mb.items.Clear()
	mb.metas.Clear()
	mb.used = 0

	return nil
}

// GetCapabilities returns a list of capabilities supported by this backend.
func (mb *MemoryBackend) GetCapabilities() *backend.Capabilities {
	return &backend.Capabilities{
		Capabilities: []backend.Capability{
			backend.CapabilityStorage,
			backend.CapabilityMetadata,
		},
		MaxObjectSize: mb.maxObject,
	}
}

// SetAvailable toggles whether the backend answers requests.
func (mb *MemoryBackend) SetAvailable(available bool) {
	mb.unavailable.Store(!available)
}

func (mb *MemoryBackend) checkAvailable() error {
	if mb.unavailable.Load() {
		return errors.BackendUnavailable(nil, mb.Name())
	}

	return nil
}

// scanPrefix visits all keys at or below key in ascending order.
func scanPrefix[V any](tree *btree.Map[string, V], key string, visit func(k string, v V) bool) {
	prefix := data.ChildPrefix(key)
	if !data.IsRoot(key) {
		if v, ok := tree.Get(key); ok {
			if !visit(key, v) {
				return
			}
		}
	}

	tree.Ascend(prefix, func(k string, v V) bool {
		if len(k) < len(prefix) || k[:len(prefix)] != prefix {
			return false
		}

		return visit(k, v)
	})
}
