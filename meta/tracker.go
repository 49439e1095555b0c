package meta

import (
	"context"
	"sync"

	"github.com/mwantia/secstore/backend"
	"github.com/mwantia/secstore/data"
	"github.com/mwantia/secstore/log"
	"github.com/tidwall/btree"
)

// Tracker mirrors the data tree with one Record per item. Records reflect the
// last operation performed through the engine; Rebuild resolves any drift
// caused by changes made directly on the storage medium.
type Tracker struct {
	mu      sync.RWMutex
	records *btree.Map[string, *Record]

	store  backend.MetadataBackend
	logger *log.Logger
}

type TrackerOption func(*Tracker)

// WithStore persists every change through a metadata backend.
func WithStore(store backend.MetadataBackend) TrackerOption {
	return func(t *Tracker) {
		t.store = store
	}
}

func WithLogger(logger *log.Logger) TrackerOption {
	return func(t *Tracker) {
		t.logger = logger
	}
}

func NewTracker(opts ...TrackerOption) *Tracker {
	t := &Tracker{
		records: btree.NewMap[string, *Record](0),
		logger:  log.Discard(),
	}

	for _, opt := range opts {
		opt(t)
	}

	return t
}

// Load replaces the in-memory records with the persisted ones.
func (t *Tracker) Load(ctx context.Context) error {
	if t.store == nil {
		return nil
	}

	persisted, err := t.store.ReadAllMeta(ctx)
	if err != nil {
		return err
	}

	records := btree.NewMap[string, *Record](0)
	for _, mr := range persisted {
		record, err := recordFromBackend(mr)
		if err != nil {
			t.logger.Warn("Skipping persisted record '%s': %v", mr.Path, err)
			continue
		}
		records.Set(record.Path, record)
	}

	t.mu.Lock()
	t.records = records
	t.mu.Unlock()

	t.logger.Debug("Loaded %d persisted record(s)", records.Len())
	return nil
}

// OnWrite creates or replaces the record for path.
func (t *Tracker) OnWrite(ctx context.Context, path string, content []byte) {
	record := newRecord(path, content)

	t.mu.Lock()
	if prev, ok := t.records.Get(path); ok {
		record.ID = prev.ID
	}
	t.records.Set(path, record)
	t.mu.Unlock()

	t.persist(ctx, record)
}

// OnDelete removes the record for path and every record below it.
func (t *Tracker) OnDelete(ctx context.Context, path string) {
	t.mu.Lock()
	var keys []string
	t.scan(path, func(r *Record) bool {
		keys = append(keys, r.Path)
		return true
	})
	for _, key := range keys {
		t.records.Delete(key)
	}
	t.mu.Unlock()

	if t.store != nil && len(keys) > 0 {
		if err := t.store.DeleteMetaTree(ctx, path); err != nil {
			t.logger.Warn("Unable to delete persisted records below '%s': %v", path, err)
		}
	}
}

// OnCopy duplicates the records of the src subtree below dest. When only is
// not empty, only records for those source paths are duplicated.
func (t *Tracker) OnCopy(ctx context.Context, dest, src string, only ...string) {
	var filter map[string]struct{}
	if len(only) > 0 {
		filter = make(map[string]struct{}, len(only))
		for _, path := range only {
			filter[path] = struct{}{}
		}
	}

	t.mu.Lock()
	var sources []*Record
	t.scan(src, func(r *Record) bool {
		if filter != nil {
			if _, ok := filter[r.Path]; !ok {
				return true
			}
		}
		sources = append(sources, r)
		return true
	})

	copies := make([]*Record, 0, len(sources))
	for _, r := range sources {
		dup := r.clone()
		dup.ID = genRecordID()
		dup.Path = data.Rebase(r.Path, src, dest)
		t.records.Set(dup.Path, dup)
		copies = append(copies, dup)
	}
	t.mu.Unlock()

	for _, record := range copies {
		t.persist(ctx, record)
	}
}

// OnMove is OnCopy followed by OnDelete of src.
func (t *Tracker) OnMove(ctx context.Context, dest, src string) {
	t.OnCopy(ctx, dest, src)
	t.OnDelete(ctx, src)
}

// Size sums the sizes of all records at or below path. The second result
// is false when no record exists there.
func (t *Tracker) Size(path string) (int64, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	var (
		size  int64
		found bool
	)
	t.scan(path, func(r *Record) bool {
		size += r.Size
		found = true
		return true
	})

	return size, found
}

// Lookup returns a copy of the record stored for path.
func (t *Tracker) Lookup(path string) (*Record, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	record, ok := t.records.Get(path)
	if !ok {
		return nil, false
	}

	return record.clone(), true
}

// Records returns copies of all records at or below path in path order.
func (t *Tracker) Records(path string) []*Record {
	t.mu.RLock()
	defer t.mu.RUnlock()

	var records []*Record
	t.scan(path, func(r *Record) bool {
		records = append(records, r.clone())
		return true
	})

	return records
}

func (t *Tracker) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()

	return t.records.Len()
}

// scan visits the record at path and all records below it in key order.
// Must be called with lock held.
func (t *Tracker) scan(path string, visit func(r *Record) bool) {
	if !data.IsRoot(path) {
		if r, ok := t.records.Get(path); ok {
			if !visit(r) {
				return
			}
		}
	}

	prefix := data.ChildPrefix(path)
	t.records.Ascend(prefix, func(key string, r *Record) bool {
		if len(key) < len(prefix) || key[:len(prefix)] != prefix {
			return false
		}

		return visit(r)
	})
}

func (t *Tracker) persist(ctx context.Context, record *Record) {
	if t.store == nil {
		return
	}

	if err := t.store.PutMeta(ctx, record.toBackend()); err != nil {
		t.logger.Warn("Unable to persist record '%s': %v", record.Path, err)
	}
}
