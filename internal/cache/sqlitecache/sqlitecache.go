// Package sqlitecache persists item values in the item_cache table of the
// SQLite database.
//
// Values are stored as JSON. Reading decodes them generically; the item's
// caster turns them back into canonical values.
package sqlitecache

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/nerrad567/gray-logic-items/internal/item"
)

// Querier is the subset of *sql.DB the store needs.
type Querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

// Store implements item.Persistence on SQLite.
type Store struct {
	db  Querier
	now func() time.Time
}

var _ item.Persistence = (*Store)(nil)

// New creates a Store. The item_cache table must already exist
// (see the migrations package).
func New(db Querier) *Store {
	return &Store{db: db, now: time.Now}
}

// Read returns the cached value for path and when it was written.
func (s *Store) Read(ctx context.Context, path string) (time.Time, any, error) {
	var (
		raw     sql.NullString
		updated string
	)
	err := s.db.QueryRowContext(ctx,
		"SELECT value, updated_at FROM item_cache WHERE path = ?", path,
	).Scan(&raw, &updated)
	if errors.Is(err, sql.ErrNoRows) {
		return time.Time{}, nil, item.ErrCacheMiss
	}
	if err != nil {
		return time.Time{}, nil, fmt.Errorf("querying item_cache: %w", err)
	}

	modified, err := time.Parse(time.RFC3339Nano, updated)
	if err != nil {
		return time.Time{}, nil, fmt.Errorf("parsing updated_at %q: %w", updated, err)
	}
	if !raw.Valid || raw.String == "" || raw.String == "null" {
		return modified, nil, item.ErrCacheEmpty
	}

	var value any
	if err := json.Unmarshal([]byte(raw.String), &value); err != nil {
		return modified, nil, fmt.Errorf("decoding cached value: %w", err)
	}
	return modified, value, nil
}

// Write stores value for path, replacing any previous record.
func (s *Store) Write(ctx context.Context, path string, value any) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encoding value: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO item_cache (path, value, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(path) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at
	`, path, string(data), s.now().UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("writing item_cache: %w", err)
	}
	return nil
}

// Delete removes the record for path. Deleting a missing record is not an error.
func (s *Store) Delete(ctx context.Context, path string) error {
	if _, err := s.db.ExecContext(ctx, "DELETE FROM item_cache WHERE path = ?", path); err != nil {
		return fmt.Errorf("deleting from item_cache: %w", err)
	}
	return nil
}

// Paths lists every cached item path in sorted order.
func (s *Store) Paths(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT path FROM item_cache ORDER BY path")
	if err != nil {
		return nil, fmt.Errorf("listing item_cache: %w", err)
	}
	defer rows.Close()

	var paths []string
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			return nil, fmt.Errorf("scanning item_cache row: %w", err)
		}
		paths = append(paths, p)
	}
	return paths, rows.Err()
}
