package meta

import (
	"context"
	"time"

	"github.com/mwantia/secstore/backend"
	"github.com/mwantia/secstore/data"
	"github.com/tidwall/btree"
)

// Rebuild walks the whole storage tree, recomputes every record from the
// stored content and swaps the result in as a whole. On failure the previous
// records stay in place and the error is returned.
func (t *Tracker) Rebuild(ctx context.Context, storage backend.StorageBackend) error {
	start := time.Now()

	t.mu.RLock()
	previous := t.records.Copy()
	t.mu.RUnlock()

	records := btree.NewMap[string, *Record](0)
	err := Walk(ctx, storage, data.RootPath, func(path string, content []byte) error {
		record := newRecord(path, content)
		if prev, ok := previous.Get(path); ok {
			record.ID = prev.ID
			if prev.Matches(content) {
				record.ModifyTime = prev.ModifyTime
			}
		}

		records.Set(path, record)
		return nil
	})
	if err != nil {
		t.logger.Warn("Rebuild aborted, keeping %d previous record(s): %v", previous.Len(), err)
		return err
	}

	t.mu.Lock()
	t.records = records
	t.mu.Unlock()

	t.logger.Info("Rebuilt %d record(s) in %s", records.Len(), time.Since(start))

	if t.store != nil {
		persisted := make([]*backend.MetaRecord, 0, records.Len())
		records.Scan(func(_ string, r *Record) bool {
			persisted = append(persisted, r.toBackend())
			return true
		})

		if err := t.store.ReplaceAllMeta(ctx, persisted); err != nil {
			t.logger.Warn("Unable to persist rebuilt records: %v", err)
		}
	}

	return nil
}
