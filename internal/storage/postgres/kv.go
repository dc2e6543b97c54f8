package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"github.com/abdulmanankatpar6-cloud/saas-ecommerce/internal/storage"
)

// KV implements storage.Backend on a single key-value table.
type KV struct{ db *DB }

var _ storage.Backend = (*KV)(nil)

// NewKV constructs a PostgreSQL-backed key-value store.
func NewKV(db *DB) *KV { return &KV{db: db} }

// Get returns the stored value or nil when the key is absent.
func (kv *KV) Get(ctx context.Context, key string) ([]byte, error) {
	const q = `SELECT value FROM kv_store WHERE key=$1`
	var value []byte
	err := kv.db.Pool.QueryRow(ctx, q, key).Scan(&value)
	switch {
	case err == nil:
		return value, nil
	case errors.Is(err, pgx.ErrNoRows):
		return nil, nil
	default:
		return nil, err
	}
}

// Set upserts the value under key in a single statement.
func (kv *KV) Set(ctx context.Context, key string, value []byte) error {
	const q = `
INSERT INTO kv_store (key, value, updated_at)
VALUES ($1, $2, now())
ON CONFLICT (key)
DO UPDATE SET value=EXCLUDED.value, updated_at=now()`
	_, err := kv.db.Pool.Exec(ctx, q, key, value)
	return err
}

// Delete removes the key; absent keys are not an error.
func (kv *KV) Delete(ctx context.Context, key string) error {
	const q = `DELETE FROM kv_store WHERE key=$1`
	_, err := kv.db.Pool.Exec(ctx, q, key)
	return err
}

// Sizes returns the stored value length per key in one round trip.
func (kv *KV) Sizes(ctx context.Context) (map[string]int, error) {
	const q = `SELECT key, octet_length(value) FROM kv_store`
	rows, err := kv.db.Pool.Query(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[string]int)
	for rows.Next() {
		var key string
		var n int
		if err := rows.Scan(&key, &n); err != nil {
			return nil, err
		}
		out[key] = n
	}
	return out, rows.Err()
}
