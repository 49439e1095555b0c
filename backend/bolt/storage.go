package bolt

import (
	"bytes"
	"context"
	"slices"

	"github.com/mwantia/secstore/data"
	serrors "github.com/mwantia/secstore/data/errors"
	"go.etcd.io/bbolt"
)

func (bb *BoltBackend) GetItem(ctx context.Context, key string) ([]byte, error) {
	bb.mu.RLock()
	defer bb.mu.RUnlock()

	db, err := bb.database()
	if err != nil {
		return nil, err
	}

	var content []byte
	err = db.View(func(tx *bbolt.Tx) error {
		value, exists := lookup(tx.Bucket(bucketItems), key)
		if !exists {
			return serrors.PathNotFound(nil, key)
		}
		// Values are only valid for the lifetime of the transaction
		content = slices.Clone(value)
		return nil
	})

	return content, bb.mapError(err)
}

func (bb *BoltBackend) PutItem(ctx context.Context, key string, dat []byte) error {
	if data.IsRoot(key) {
		return serrors.PathIsContainer(key)
	}

	size := int64(len(dat))
	if limit := bb.config.MaxObjectSize; limit > 0 && size > limit {
		return serrors.ObjectTooLarge(bb.Name(), size, limit)
	}

	bb.mu.RLock()
	defer bb.mu.RUnlock()

	db, err := bb.database()
	if err != nil {
		return err
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		items := tx.Bucket(bucketItems)
		used := readUsed(tx)

		var previous int64
		if old, exists := lookup(items, key); exists {
			previous = int64(len(old))
		}

		if used-previous+size > bb.config.Quota {
			return serrors.BackendNoSpace(nil, bb.Name(), size, bb.config.Quota-used+previous)
		}

		// bbolt rejects nil values, an empty item is stored as an empty slice
		if dat == nil {
			dat = []byte{}
		}
		if err := items.Put([]byte(key), dat); err != nil {
			return err
		}

		return writeUsed(tx, used-previous+size)
	})

	return bb.mapError(err)
}

func (bb *BoltBackend) DeleteItem(ctx context.Context, key string) error {
	bb.mu.RLock()
	defer bb.mu.RUnlock()

	db, err := bb.database()
	if err != nil {
		return err
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		items := tx.Bucket(bucketItems)

		var keysToDelete [][]byte
		var freed int64
		scanPrefix(items.Cursor(), key, func(k, v []byte) {
			keysToDelete = append(keysToDelete, slices.Clone(k))
			freed += int64(len(v))
		})

		if len(keysToDelete) == 0 {
			return serrors.PathNotFound(nil, key)
		}

		for _, k := range keysToDelete {
			if err := items.Delete(k); err != nil {
				return err
			}
		}

		return writeUsed(tx, readUsed(tx)-freed)
	})

	return bb.mapError(err)
}

func (bb *BoltBackend) ListChildren(ctx context.Context, key string) ([]string, error) {
	bb.mu.RLock()
	defer bb.mu.RUnlock()

	db, err := bb.database()
	if err != nil {
		return nil, err
	}

	var keys []string
	err = db.View(func(tx *bbolt.Tx) error {
		scanPrefix(tx.Bucket(bucketItems).Cursor(), key, func(k, _ []byte) {
			keys = append(keys, string(k))
		})
		return nil
	})
	if err != nil {
		return nil, bb.mapError(err)
	}

	return data.ChildNames(key, keys), nil
}

func (bb *BoltBackend) StatItem(ctx context.Context, key string) (*data.ItemStat, error) {
	bb.mu.RLock()
	defer bb.mu.RUnlock()

	db, err := bb.database()
	if err != nil {
		return nil, err
	}

	var stat *data.ItemStat
	err = db.View(func(tx *bbolt.Tx) error {
		value, exists := lookup(tx.Bucket(bucketItems), key)
		if !exists {
			return serrors.PathNotFound(nil, key)
		}

		stat = &data.ItemStat{
			Path: key,
			Size: int64(len(value)),
		}
		return nil
	})

	return stat, bb.mapError(err)
}

func (bb *BoltBackend) StatAll(ctx context.Context) (*data.SpaceStat, error) {
	bb.mu.RLock()
	defer bb.mu.RUnlock()

	db, err := bb.database()
	if err != nil {
		return nil, err
	}

	var used int64
	err = db.View(func(tx *bbolt.Tx) error {
		used = readUsed(tx)
		return nil
	})
	if err != nil {
		return nil, bb.mapError(err)
	}

	return data.NewSpaceStat(bb.config.Quota, used), nil
}

// lookup distinguishes a missing key from an empty item.
func lookup(b *bbolt.Bucket, key string) ([]byte, bool) {
	k, v := b.Cursor().Seek([]byte(key))
	if k == nil || string(k) != key {
		return nil, false
	}

	return v, true
}

// scanPrefix visits the item at key and every item nested under it.
func scanPrefix(c *bbolt.Cursor, key string, visit func(k, v []byte)) {
	if !data.IsRoot(key) {
		if k, v := c.Seek([]byte(key)); k != nil && string(k) == key {
			visit(k, v)
		}
	}

	prefix := []byte(data.ChildPrefix(key))
	for k, v := c.Seek(prefix); k != nil && bytes.HasPrefix(k, prefix); k, v = c.Next() {
		visit(k, v)
	}
}
