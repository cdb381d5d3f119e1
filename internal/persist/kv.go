package persist

import (
	"context"
	"database/sql"
)

// KV is the durable key-value layer. Writes are whole-value
// replacements keyed by fixed names, so no read/write locking is
// needed on top of the database.
type KV struct {
	DB *sql.DB
}

// Get returns the value for a key; ok is false when the key is absent.
func (k KV) Get(ctx context.Context, key string) (string, bool, error) {
	var value string
	err := k.DB.QueryRowContext(ctx, `SELECT value FROM kv WHERE key=?`, key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return value, true, nil
}

// Put upserts a key.
func (k KV) Put(ctx context.Context, key, value string) error {
	_, err := k.DB.ExecContext(ctx, `INSERT INTO kv(key,value) VALUES (?,?)
ON CONFLICT(key) DO UPDATE SET value=excluded.value`, key, value)
	return err
}
