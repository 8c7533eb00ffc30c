package tracker

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/alana-ai/alana/pkg/models"
)

// Tracker records and queries token usage of model calls.
type Tracker interface {
	// Record stores a usage record.
	Record(ctx context.Context, rec models.UsageRecord) error
	// Recent returns usage records since a given time, newest first.
	Recent(ctx context.Context, since time.Time, limit int) ([]models.UsageRecord, error)
	// Total returns tokens used across all models since a given time.
	Total(ctx context.Context, since time.Time) (int64, error)
	// TotalByModel returns tokens used by one model since a given time.
	TotalByModel(ctx context.Context, model string, since time.Time) (int64, error)
	// Summary returns usage aggregated per provider and model.
	Summary(ctx context.Context) ([]models.UsageSummary, error)
	// Close releases resources.
	Close() error
}

// SQLiteTracker implements Tracker with a SQLite database.
type SQLiteTracker struct {
	db *sql.DB
}

const createTable = `
CREATE TABLE IF NOT EXISTS usage_records (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	provider TEXT NOT NULL,
	model TEXT NOT NULL,
	cache_key TEXT NOT NULL DEFAULT '',
	prompt_tokens INTEGER NOT NULL,
	completion_tokens INTEGER NOT NULL,
	total_tokens INTEGER NOT NULL,
	created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);
CREATE INDEX IF NOT EXISTS idx_usage_model_time ON usage_records(model, created_at);
CREATE INDEX IF NOT EXISTS idx_usage_time ON usage_records(created_at);
`

// New creates a SQLiteTracker and runs auto-migration.
func New(dbPath string) (*SQLiteTracker, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open tracker db: %w", err)
	}

	if _, err := db.Exec(createTable); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate tracker db: %w", err)
	}

	return &SQLiteTracker{db: db}, nil
}

// Record stores a usage record. A zero CreatedAt is stamped with the current time.
func (t *SQLiteTracker) Record(ctx context.Context, rec models.UsageRecord) error {
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
	_, err := t.db.ExecContext(ctx,
		`INSERT INTO usage_records (provider, model, cache_key, prompt_tokens, completion_tokens, total_tokens, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		rec.Provider, rec.Model, rec.CacheKey, rec.PromptTokens, rec.CompletionTokens, rec.TotalTokens, rec.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("record usage: %w", err)
	}
	return nil
}

// Recent returns usage records since a given time, newest first. limit <= 0 means no limit.
func (t *SQLiteTracker) Recent(ctx context.Context, since time.Time, limit int) ([]models.UsageRecord, error) {
	query := `SELECT id, provider, model, cache_key, prompt_tokens, completion_tokens, total_tokens, created_at
		 FROM usage_records WHERE created_at >= ? ORDER BY created_at DESC, id DESC`
	args := []any{since}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := t.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query usage: %w", err)
	}
	defer rows.Close()

	var records []models.UsageRecord
	for rows.Next() {
		var r models.UsageRecord
		if err := rows.Scan(&r.ID, &r.Provider, &r.Model, &r.CacheKey, &r.PromptTokens, &r.CompletionTokens, &r.TotalTokens, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan usage: %w", err)
		}
		records = append(records, r)
	}
	return records, rows.Err()
}

// Total returns tokens used across all models since a given time.
func (t *SQLiteTracker) Total(ctx context.Context, since time.Time) (int64, error) {
	var total int64
	err := t.db.QueryRowContext(ctx,
		`SELECT COALESCE(SUM(total_tokens), 0) FROM usage_records WHERE created_at >= ?`,
		since,
	).Scan(&total)
	if err != nil {
		return 0, fmt.Errorf("total usage: %w", err)
	}
	return total, nil
}

// TotalByModel returns tokens used by one model since a given time.
func (t *SQLiteTracker) TotalByModel(ctx context.Context, model string, since time.Time) (int64, error) {
	var total int64
	err := t.db.QueryRowContext(ctx,
		`SELECT COALESCE(SUM(total_tokens), 0) FROM usage_records WHERE model = ? AND created_at >= ?`,
		model, since,
	).Scan(&total)
	if err != nil {
		return 0, fmt.Errorf("total usage by model: %w", err)
	}
	return total, nil
}

// Summary returns usage aggregated per provider and model.
func (t *SQLiteTracker) Summary(ctx context.Context) ([]models.UsageSummary, error) {
	rows, err := t.db.QueryContext(ctx,
		`SELECT provider, model, COUNT(*), SUM(prompt_tokens), SUM(completion_tokens), SUM(total_tokens)
		 FROM usage_records GROUP BY provider, model ORDER BY provider, model`,
	)
	if err != nil {
		return nil, fmt.Errorf("summary: %w", err)
	}
	defer rows.Close()

	var summaries []models.UsageSummary
	for rows.Next() {
		var s models.UsageSummary
		if err := rows.Scan(&s.Provider, &s.Model, &s.RequestCount, &s.TotalPrompt, &s.TotalCompletion, &s.TotalTokens); err != nil {
			return nil, fmt.Errorf("scan summary: %w", err)
		}
		summaries = append(summaries, s)
	}
	return summaries, rows.Err()
}

// Close releases the database connection.
func (t *SQLiteTracker) Close() error {
	return t.db.Close()
}
