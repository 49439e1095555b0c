package memory

import (
	"context"

	"github.com/mwantia/secstore/backend"
	"github.com/mwantia/secstore/data/errors"
)

func (mb *MemoryBackend) ReadAllMeta(ctx context.Context) ([]*backend.MetaRecord, error) {
	if err := mb.checkAvailable(); err != nil {
		return nil, err
	}

	mb.mu.RLock()
	defer mb.mu.RUnlock()

	records := make([]*backend.MetaRecord, 0, mb.metas.Len())
	mb.metas.Scan(func(_ string, record *backend.MetaRecord) bool {
		clone := *record
		records = append(records, &clone)
		return true
	})

	return records, nil
}

func (mb *MemoryBackend) ReplaceAllMeta(ctx context.Context, records []*backend.MetaRecord) error {
	if err := mb.checkAvailable(); err != nil {
		return err
	}

	mb.mu.Lock()
	defer mb.mu.Unlock()

	mb.metas.Clear()
	for _, record := range records {
		clone := *record
		mb.metas.Set(record.Path, &clone)
	}

	return nil
}

func (mb *MemoryBackend) PutMeta(ctx context.Context, record *backend.MetaRecord) error {
	if err := mb.checkAvailable(); err != nil {
		return err
	}
	if record == nil || record.Path == "" {
		return errors.InvalidPath(nil, "")
	}

	mb.mu.Lock()
	defer mb.mu.Unlock()

	clone := *record
	mb.metas.Set(record.Path, &clone)

	return nil
}

func (mb *MemoryBackend) DeleteMetaTree(ctx context.Context, path string) error {
	if err := mb.checkAvailable(); err != nil {
		return err
	}

	mb.mu.Lock()
	defer mb.mu.Unlock()

	var keysToDelete []string
	scanPrefix(mb.metas, path, func(k string, _ *backend.MetaRecord) bool {
		keysToDelete = append(keysToDelete, k)
		return true
	})

	for _, k := range keysToDelete {
		mb.metas.Delete(k)
	}

	return nil
}
