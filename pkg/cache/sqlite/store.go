// Package sqlite persists the response cache mapping in a SQLite table,
// one row per cache key.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/alana-ai/alana/pkg/models"
)

// Store implements cache.Persister on SQLite.
type Store struct {
	db *sql.DB
}

const createCacheTable = `
CREATE TABLE IF NOT EXISTS cache_entries (
	cache_key TEXT PRIMARY KEY,
	answer BLOB NOT NULL,
	created_at DATETIME NOT NULL
);
`

// New opens (or creates) the store at dbPath.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open cache db: %w", err)
	}

	if _, err := db.Exec(createCacheTable); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate cache db: %w", err)
	}

	return &Store{db: db}, nil
}

// Load reads every row into a mapping. Rows that fail to decode are skipped.
func (s *Store) Load(ctx context.Context) (map[string]models.CacheEntry, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT cache_key, answer, created_at FROM cache_entries`)
	if err != nil {
		return nil, fmt.Errorf("%w: cache load: %v", models.ErrPersistence, err)
	}
	defer rows.Close()

	entries := make(map[string]models.CacheEntry)
	for rows.Next() {
		var key string
		var blob []byte
		var createdAt time.Time
		if err := rows.Scan(&key, &blob, &createdAt); err != nil {
			return nil, fmt.Errorf("%w: cache scan: %v", models.ErrPersistence, err)
		}
		var a models.Answer
		if err := json.Unmarshal(blob, &a); err != nil {
			continue
		}
		entries[key] = models.CacheEntry{Answer: a, CreatedAt: createdAt}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: cache rows: %v", models.ErrPersistence, err)
	}
	return entries, nil
}

// Save replaces the table contents with entries in one transaction.
func (s *Store) Save(ctx context.Context, entries map[string]models.CacheEntry) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: cache begin: %v", models.ErrPersistence, err)
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := tx.ExecContext(ctx, `DELETE FROM cache_entries`); err != nil {
		return fmt.Errorf("%w: cache truncate: %v", models.ErrPersistence, err)
	}

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO cache_entries (cache_key, answer, created_at) VALUES (?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("%w: cache prepare: %v", models.ErrPersistence, err)
	}
	defer stmt.Close()

	for key, e := range entries {
		blob, err := json.Marshal(e.Answer)
		if err != nil {
			return fmt.Errorf("%w: encode entry: %v", models.ErrPersistence, err)
		}
		if _, err := stmt.ExecContext(ctx, key, blob, e.CreatedAt.UTC()); err != nil {
			return fmt.Errorf("%w: cache insert: %v", models.ErrPersistence, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: cache commit: %v", models.ErrPersistence, err)
	}
	return nil
}

// Close releases the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}
