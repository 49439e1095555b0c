package memory

import (
	"context"
	"slices"

	"github.com/mwantia/secstore/data"
	"github.com/mwantia/secstore/data/errors"
)

func (mb *MemoryBackend) GetItem(ctx context.Context, key string) ([]byte, error) {
	if err := mb.checkAvailable(); err != nil {
		return nil, err
	}

	mb.mu.RLock()
	defer mb.mu.RUnlock()

	content, exists := mb.items.Get(key)
	if !exists {
		return nil, errors.PathNotFound(nil, key)
	}

	return slices.Clone(content), nil
}

func (mb *MemoryBackend) PutItem(ctx context.Context, key string, dat []byte) error {
	if err := mb.checkAvailable(); err != nil {
		return err
	}

	if data.IsRoot(key) {
		return errors.PathIsContainer(key)
	}

	size := int64(len(dat))
	if mb.maxObject > 0 && size > mb.maxObject {
		return errors.ObjectTooLarge(mb.Name(), size, mb.maxObject)
	}

	mb.mu.Lock()
	defer mb.mu.Unlock()

	var previous int64
	if old, exists := mb.items.Get(key); exists {
		previous = int64(len(old))
	}

	// Check capacity before touching the tree, so a failed put leaves no trace
	if mb.used-previous+size > mb.quota {
		return errors.BackendNoSpace(nil, mb.Name(), size, mb.quota-mb.used+previous)
	}

	mb.items.Set(key, slices.Clone(dat))
	mb.used += size - previous

	return nil
}

func (mb *MemoryBackend) DeleteItem(ctx context.Context, key string) error {
	if err := mb.checkAvailable(); err != nil {
		return err
	}

	mb.mu.Lock()
	defer mb.mu.Unlock()

	// Collect first, the tree must not be modified while scanning
	var keysToDelete []string
	scanPrefix(mb.items, key, func(k string, _ []byte) bool {
		keysToDelete = append(keysToDelete, k)
		return true
	})

	if len(keysToDelete) == 0 {
		return errors.PathNotFound(nil, key)
	}

	for _, k := range keysToDelete {
		if old, ok := mb.items.Delete(k); ok {
			mb.used -= int64(len(old))
		}
	}

	return nil
}

func (mb *MemoryBackend) ListChildren(ctx context.Context, key string) ([]string, error) {
	if err := mb.checkAvailable(); err != nil {
		return nil, err
	}

	mb.mu.RLock()
	defer mb.mu.RUnlock()

	var keys []string
	scanPrefix(mb.items, key, func(k string, _ []byte) bool {
		keys = append(keys, k)
		return true
	})

	return data.ChildNames(key, keys), nil
}

func (mb *MemoryBackend) StatItem(ctx context.Context, key string) (*data.ItemStat, error) {
	if err := mb.checkAvailable(); err != nil {
		return nil, err
	}

	mb.mu.RLock()
	defer mb.mu.RUnlock()

	content, exists := mb.items.Get(key)
	if !exists {
		return nil, errors.PathNotFound(nil, key)
	}

	return &data.ItemStat{
		Path: key,
		Size: int64(len(content)),
	}, nil
}

func (mb *MemoryBackend) StatAll(ctx context.Context) (*data.SpaceStat, error) {
	if err := mb.checkAvailable(); err != nil {
		return nil, err
	}

	mb.mu.RLock()
	defer mb.mu.RUnlock()

	return data.NewSpaceStat(mb.quota, mb.used), nil
}
