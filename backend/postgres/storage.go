package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/mwantia/secstore/backend"
	"github.com/mwantia/secstore/data"
	serrors "github.com/mwantia/secstore/data/errors"
)

func (pb *PostgresBackend) GetItem(ctx context.Context, key string) ([]byte, error) {
	pb.mu.RLock()
	defer pb.mu.RUnlock()

	pool, err := pb.connection()
	if err != nil {
		return nil, err
	}

	var content []byte
	err = pool.QueryRow(ctx, `SELECT content FROM `+pb.table()+` WHERE key = $1`, key).Scan(&content)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, serrors.PathNotFound(nil, key)
	}
	if err != nil {
		return nil, pb.mapError(err)
	}

	if content == nil {
		content = []byte{}
	}

	return content, nil
}

func (pb *PostgresBackend) PutItem(ctx context.Context, key string, dat []byte) error {
	if data.IsRoot(key) {
		return serrors.PathIsContainer(key)
	}

	size := int64(len(dat))
	if limit := pb.config.MaxObjectSize; limit > 0 && size > limit {
		return serrors.ObjectTooLarge(pb.Name(), size, limit)
	}

	pb.mu.RLock()
	defer pb.mu.RUnlock()

	pool, err := pb.connection()
	if err != nil {
		return err
	}

	err = pgx.BeginTxFunc(ctx, pool, pgx.TxOptions{IsoLevel: pgx.Serializable}, func(tx pgx.Tx) error {
		var used, previous int64
		if err := tx.QueryRow(ctx, `SELECT COALESCE(SUM(size), 0)::BIGINT FROM `+pb.table()).Scan(&used); err != nil {
			return err
		}

		err := tx.QueryRow(ctx, `SELECT size FROM `+pb.table()+` WHERE key = $1`, key).Scan(&previous)
		if err != nil && !errors.Is(err, pgx.ErrNoRows) {
			return err
		}

		if used-previous+size > pb.config.Quota {
			return serrors.BackendNoSpace(nil, pb.Name(), size, pb.config.Quota-used+previous)
		}

		if dat == nil {
			dat = []byte{}
		}

		_, err = tx.Exec(ctx, `
			INSERT INTO `+pb.table()+` (key, content, size, modify_time) VALUES ($1, $2, $3, $4)
			ON CONFLICT (key) DO UPDATE SET content = EXCLUDED.content, size = EXCLUDED.size, modify_time = EXCLUDED.modify_time
		`, key, dat, size, time.Now().Unix())
		return err
	})

	return pb.mapError(err)
}

func (pb *PostgresBackend) DeleteItem(ctx context.Context, key string) error {
	pb.mu.RLock()
	defer pb.mu.RUnlock()

	pool, err := pb.connection()
	if err != nil {
		return err
	}

	query, args := descendantsWhere(key)
	tag, err := pool.Exec(ctx, `DELETE FROM `+pb.table()+` WHERE `+query, args...)
	if err != nil {
		return pb.mapError(err)
	}

	if tag.RowsAffected() == 0 {
		return serrors.PathNotFound(nil, key)
	}

	return nil
}

func (pb *PostgresBackend) ListChildren(ctx context.Context, key string) ([]string, error) {
	pb.mu.RLock()
	defer pb.mu.RUnlock()

	pool, err := pb.connection()
	if err != nil {
		return nil, err
	}

	query, args := descendantsWhere(key)
	rows, err := pool.Query(ctx, `SELECT key FROM `+pb.table()+` WHERE `+query+` ORDER BY key`, args...)
	if err != nil {
		return nil, pb.mapError(err)
	}

	keys, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, pb.mapError(err)
	}

	return data.ChildNames(key, keys), nil
}

func (pb *PostgresBackend) StatItem(ctx context.Context, key string) (*data.ItemStat, error) {
	pb.mu.RLock()
	defer pb.mu.RUnlock()

	pool, err := pb.connection()
	if err != nil {
		return nil, err
	}

	var size, modifyTime int64
	err = pool.QueryRow(ctx, `SELECT size, modify_time FROM `+pb.table()+` WHERE key = $1`, key).Scan(&size, &modifyTime)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, serrors.PathNotFound(nil, key)
	}
	if err != nil {
		return nil, pb.mapError(err)
	}

	return &data.ItemStat{
		Path:       key,
		Size:       size,
		ModifyTime: time.Unix(modifyTime, 0),
	}, nil
}

func (pb *PostgresBackend) StatAll(ctx context.Context) (*data.SpaceStat, error) {
	pb.mu.RLock()
	defer pb.mu.RUnlock()

	pool, err := pb.connection()
	if err != nil {
		return nil, err
	}

	var used int64
	if err := pool.QueryRow(ctx, `SELECT COALESCE(SUM(size), 0)::BIGINT FROM `+pb.table()).Scan(&used); err != nil {
		return nil, pb.mapError(err)
	}

	return data.NewSpaceStat(pb.config.Quota, used), nil
}

// descendantsWhere builds the condition matching key and everything below it.
func descendantsWhere(key string) (string, []any) {
	lo, hi := backend.DescendantRange(key)
	if hi == "" {
		return `key >= $1`, []any{lo}
	}

	return `(key = $1 OR (key >= $2 AND key < $3))`, []any{key, lo, hi}
}
