package sqlite

import (
	"context"

	"github.com/mwantia/secstore/backend"
)

func (sb *SQLiteBackend) ReadAllMeta(ctx context.Context) ([]*backend.MetaRecord, error) {
	sb.mu.RLock()
	defer sb.mu.RUnlock()

	rows, err := sb.db.QueryContext(ctx, `SELECT path, id, size, checksum, modify_time FROM secstore_meta ORDER BY path`)
	if err != nil {
		return nil, sb.mapError(err)
	}
	defer rows.Close()

	records := make([]*backend.MetaRecord, 0)
	for rows.Next() {
		var record backend.MetaRecord
		if err := rows.Scan(&record.Path, &record.ID, &record.Size, &record.Checksum, &record.ModifyTime); err != nil {
			return nil, sb.mapError(err)
		}
		records = append(records, &record)
	}

	return records, sb.mapError(rows.Err())
}

func (sb *SQLiteBackend) ReplaceAllMeta(ctx context.Context, records []*backend.MetaRecord) error {
	sb.mu.Lock()
	defer sb.mu.Unlock()

	tx, err := sb.db.BeginTx(ctx, nil)
	if err != nil {
		return sb.mapError(err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM secstore_meta`); err != nil {
		return sb.mapError(err)
	}

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO secstore_meta (path, id, size, checksum, modify_time) VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return sb.mapError(err)
	}
	defer stmt.Close()

	for _, record := range records {
		if _, err := stmt.ExecContext(ctx, record.Path, record.ID, record.Size, record.Checksum, record.ModifyTime); err != nil {
			return sb.mapError(err)
		}
	}

	return sb.mapError(tx.Commit())
}

func (sb *SQLiteBackend) PutMeta(ctx context.Context, record *backend.MetaRecord) error {
	sb.mu.Lock()
	defer sb.mu.Unlock()

	_, err := sb.db.ExecContext(ctx, `
		INSERT INTO secstore_meta (path, id, size, checksum, modify_time) VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(path) DO UPDATE SET id = excluded.id, size = excluded.size, checksum = excluded.checksum, modify_time = excluded.modify_time
	`, record.Path, record.ID, record.Size, record.Checksum, record.ModifyTime)

	return sb.mapError(err)
}

func (sb *SQLiteBackend) DeleteMetaTree(ctx context.Context, path string) error {
	sb.mu.Lock()
	defer sb.mu.Unlock()

	lo, hi := backend.DescendantRange(path)
	var err error
	if hi == "" {
		_, err = sb.db.ExecContext(ctx, `DELETE FROM secstore_meta`)
	} else {
		_, err = sb.db.ExecContext(ctx, `DELETE FROM secstore_meta WHERE path = ? OR (path >= ? AND path < ?)`, path, lo, hi)
	}

	return sb.mapError(err)
}
