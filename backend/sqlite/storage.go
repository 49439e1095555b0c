package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/mwantia/secstore/backend"
	"github.com/mwantia/secstore/data"
	serrors "github.com/mwantia/secstore/data/errors"
)

func (sb *SQLiteBackend) GetItem(ctx context.Context, key string) ([]byte, error) {
	sb.mu.RLock()
	defer sb.mu.RUnlock()

	var content []byte
	err := sb.db.QueryRowContext(ctx, `SELECT content FROM secstore_items WHERE key = ?`, key).Scan(&content)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, serrors.PathNotFound(nil, key)
	}
	if err != nil {
		return nil, sb.mapError(err)
	}

	if content == nil {
		content = []byte{}
	}

	return content, nil
}

func (sb *SQLiteBackend) PutItem(ctx context.Context, key string, dat []byte) error {
	if data.IsRoot(key) {
		return serrors.PathIsContainer(key)
	}

	size := int64(len(dat))
	if limit := sb.config.MaxObjectSize; limit > 0 && size > limit {
		return serrors.ObjectTooLarge(sb.Name(), size, limit)
	}

	sb.mu.Lock()
	defer sb.mu.Unlock()

	tx, err := sb.db.BeginTx(ctx, nil)
	if err != nil {
		return sb.mapError(err)
	}
	defer tx.Rollback()

	var used, previous int64
	if err := tx.QueryRowContext(ctx, `SELECT COALESCE(SUM(size), 0) FROM secstore_items`).Scan(&used); err != nil {
		return sb.mapError(err)
	}
	err = tx.QueryRowContext(ctx, `SELECT size FROM secstore_items WHERE key = ?`, key).Scan(&previous)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return sb.mapError(err)
	}

	if used-previous+size > sb.config.Quota {
		return serrors.BackendNoSpace(nil, sb.Name(), size, sb.config.Quota-used+previous)
	}

	if dat == nil {
		dat = []byte{}
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO secstore_items (key, content, size, modify_time) VALUES (?, ?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET content = excluded.content, size = excluded.size, modify_time = excluded.modify_time
	`, key, dat, size, time.Now().Unix())
	if err != nil {
		return sb.mapError(err)
	}

	return sb.mapError(tx.Commit())
}

func (sb *SQLiteBackend) DeleteItem(ctx context.Context, key string) error {
	sb.mu.Lock()
	defer sb.mu.Unlock()

	query, args := descendantsWhere(key)
	result, err := sb.db.ExecContext(ctx, `DELETE FROM secstore_items WHERE `+query, args...)
	if err != nil {
		return sb.mapError(err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return sb.mapError(err)
	}
	if affected == 0 {
		return serrors.PathNotFound(nil, key)
	}

	return nil
}

func (sb *SQLiteBackend) ListChildren(ctx context.Context, key string) ([]string, error) {
	sb.mu.RLock()
	defer sb.mu.RUnlock()

	query, args := descendantsWhere(key)
	rows, err := sb.db.QueryContext(ctx, `SELECT key FROM secstore_items WHERE `+query+` ORDER BY key`, args...)
	if err != nil {
		return nil, sb.mapError(err)
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			return nil, sb.mapError(err)
		}
		keys = append(keys, k)
	}
	if err := rows.Err(); err != nil {
		return nil, sb.mapError(err)
	}

	return data.ChildNames(key, keys), nil
}

func (sb *SQLiteBackend) StatItem(ctx context.Context, key string) (*data.ItemStat, error) {
	sb.mu.RLock()
	defer sb.mu.RUnlock()

	var size, modifyTime int64
	err := sb.db.QueryRowContext(ctx, `SELECT size, modify_time FROM secstore_items WHERE key = ?`, key).Scan(&size, &modifyTime)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, serrors.PathNotFound(nil, key)
	}
	if err != nil {
		return nil, sb.mapError(err)
	}

	return &data.ItemStat{
		Path:       key,
		Size:       size,
		ModifyTime: time.Unix(modifyTime, 0),
	}, nil
}

func (sb *SQLiteBackend) StatAll(ctx context.Context) (*data.SpaceStat, error) {
	sb.mu.RLock()
	defer sb.mu.RUnlock()

	var used int64
	if err := sb.db.QueryRowContext(ctx, `SELECT COALESCE(SUM(size), 0) FROM secstore_items`).Scan(&used); err != nil {
		return nil, sb.mapError(err)
	}

	return data.NewSpaceStat(sb.config.Quota, used), nil
}

// descendantsWhere builds the condition matching key and everything below it.
func descendantsWhere(key string) (string, []any) {
	lo, hi := backend.DescendantRange(key)
	if hi == "" {
		return `key >= ?`, []any{lo}
	}

	return `(key = ? OR (key >= ? AND key < ?))`, []any{key, lo, hi}
}
