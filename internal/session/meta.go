package session

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// Meta keys for persisted session state.
const (
	metaKeyFilter = "view_filter"
	metaKeyGroup  = "view_group"
)

// MetaRepository persists small key/value session state (the active
// view filter and group mode) across runs.
type MetaRepository interface {
	// Get returns the value for key; ok is false when the key has
	// never been set.
	Get(ctx context.Context, key string) (value string, ok bool, err error)

	// Set stores the value for key, replacing any previous value.
	Set(ctx context.Context, key, value string) error
}

// SQLiteMetaRepository stores session metadata in the session_meta table.
type SQLiteMetaRepository struct {
	db *sql.DB
}

// NewSQLiteMetaRepository creates a repository backed by the given database.
func NewSQLiteMetaRepository(db *sql.DB) *SQLiteMetaRepository {
	return &SQLiteMetaRepository{db: db}
}

// Get implements MetaRepository.
func (r *SQLiteMetaRepository) Get(ctx context.Context, key string) (string, bool, error) {
	var value string
	err := r.db.QueryRowContext(ctx,
		`SELECT value FROM session_meta WHERE key = ?`, key,
	).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("reading session meta %q: %w", key, err)
	}
	return value, true, nil
}

// Set implements MetaRepository.
func (r *SQLiteMetaRepository) Set(ctx context.Context, key, value string) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO session_meta (key, value, updated_at)
		VALUES (?, ?, strftime('%Y-%m-%dT%H:%M:%fZ', 'now'))
		ON CONFLICT(key) DO UPDATE SET
			value = excluded.value,
			updated_at = excluded.updated_at`,
		key, value,
	)
	if err != nil {
		return fmt.Errorf("writing session meta %q: %w", key, err)
	}
	return nil
}
