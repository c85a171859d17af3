package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/cimillas/checkin-pay/internal/storage"
)

// KVStore keeps persisted state in the kv_entries table so that several API
// replicas share one view of every session.
type KVStore struct {
	pool *pgxpool.Pool
}

func NewKVStore(pool *pgxpool.Pool) *KVStore {
	return &KVStore{pool: pool}
}

func (s *KVStore) Get(ctx context.Context, key string) ([]byte, error) {
	const query = `SELECT value FROM kv_entries WHERE key = $1 AND value IS NOT NULL`
	var value []byte
	if err := s.queryRow(ctx, query, key).Scan(&value); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get %s: %w", key, err)
	}
	return value, nil
}

func (s *KVStore) Set(ctx context.Context, key string, value []byte) error {
	const stmt = `
INSERT INTO kv_entries (key, value, updated_at)
VALUES ($1, $2, NOW())
ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, updated_at = NOW()`
	if _, err := s.exec(ctx, stmt, key, value); err != nil {
		return fmt.Errorf("set %s: %w", key, err)
	}
	return nil
}

func (s *KVStore) Delete(ctx context.Context, key string) error {
	if _, err := s.exec(ctx, `DELETE FROM kv_entries WHERE key = $1`, key); err != nil {
		return fmt.Errorf("delete %s: %w", key, err)
	}
	return nil
}

// Update locks the row for the duration of fn. A NULL placeholder row is inserted
// first so that two transactions racing on a key that does not exist yet still
// serialize on the same row lock.
func (s *KVStore) Update(ctx context.Context, key string, fn storage.UpdateFunc) error {
	return inTx(ctx, s.pool, func(txCtx context.Context) error {
		if _, err := s.exec(txCtx, `INSERT INTO kv_entries (key, value) VALUES ($1, NULL) ON CONFLICT (key) DO NOTHING`, key); err != nil {
			return fmt.Errorf("reserve %s: %w", key, err)
		}

		var cur []byte
		if err := s.queryRow(txCtx, `SELECT value FROM kv_entries WHERE key = $1 FOR UPDATE`, key).Scan(&cur); err != nil {
			return fmt.Errorf("lock %s: %w", key, err)
		}

		next, err := fn(cur, cur != nil)
		if err != nil {
			return err
		}
		if next == nil {
			return nil
		}

		if _, err := s.exec(txCtx, `UPDATE kv_entries SET value = $2, updated_at = NOW() WHERE key = $1`, key, next); err != nil {
			return fmt.Errorf("update %s: %w", key, err)
		}
		return nil
	})
}

func (s *KVStore) Scan(ctx context.Context, prefix string, fn func(key string, value []byte) error) error {
	const query = `
SELECT key, value
FROM kv_entries
WHERE key LIKE $1 ESCAPE '\' AND value IS NOT NULL
ORDER BY key`

	rows, err := s.pool.Query(ctx, query, likePrefix(prefix))
	if err != nil {
		return fmt.Errorf("scan %s: %w", prefix, err)
	}

	type kv struct {
		key   string
		value []byte
	}
	var items []kv
	for rows.Next() {
		var it kv
		if err := rows.Scan(&it.key, &it.value); err != nil {
			rows.Close()
			return fmt.Errorf("scan row: %w", err)
		}
		items = append(items, it)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return fmt.Errorf("scan %s: %w", prefix, err)
	}

	for _, it := range items {
		if err := fn(it.key, it.value); err != nil {
			return err
		}
	}
	return nil
}

// likePrefix escapes LIKE wildcards; order IDs contain underscores.
func likePrefix(prefix string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(prefix) + "%"
}

func (s *KVStore) exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	if tx := currentTx(ctx); tx != nil {
		return tx.Exec(ctx, sql, args...)
	}
	return s.pool.Exec(ctx, sql, args...)
}

func (s *KVStore) queryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	if tx := currentTx(ctx); tx != nil {
		return tx.QueryRow(ctx, sql, args...)
	}
	return s.pool.QueryRow(ctx, sql, args...)
}

var _ storage.Store = (*KVStore)(nil)

// Ping reports whether the database is reachable.
func (s *KVStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}
