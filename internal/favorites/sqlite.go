package favorites

import (
	"context"
	"database/sql"
	"fmt"
)

// SQLiteRepository persists the favorites set in the homewatch database.
// It implements Repository.
type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository creates a repository over an opened database.
// The schema is owned by the database package.
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

// Load returns all persisted favorite entity ids, ordered by id.
func (r *SQLiteRepository) Load(ctx context.Context) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, "SELECT entity_id FROM favorites ORDER BY entity_id")
	if err != nil {
		return nil, fmt.Errorf("loading favorites: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scanning favorite: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading favorites: %w", err)
	}
	return ids, nil
}

// Save replaces the persisted set with ids, atomically.
func (r *SQLiteRepository) Save(ctx context.Context, ids []string) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("starting favorites transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // No-op after commit

	if _, err := tx.ExecContext(ctx, "DELETE FROM favorites"); err != nil {
		return fmt.Errorf("clearing favorites: %w", err)
	}

	for _, id := range ids {
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO favorites (entity_id) VALUES (?)", id); err != nil {
			return fmt.Errorf("inserting favorite %q: %w", id, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing favorites: %w", err)
	}
	return nil
}
