// Package audit keeps the durable log of answered questions in SQLite.
package audit

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/alana-ai/alana/pkg/models"
)

// Logger writes and queries conversations in a dedicated SQLite database.
type Logger struct {
	db   *sql.DB
	cfg  models.AuditConfig
	done chan struct{}
	wg   sync.WaitGroup
}

// New opens the conversation database and creates the schema.
func New(cfg models.AuditConfig) (*Logger, error) {
	db, err := sql.Open("sqlite", cfg.DBPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open audit db: %w", err)
	}

	if err := migrate(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate audit db: %w", err)
	}

	l := &Logger{
		db:   db,
		cfg:  cfg,
		done: make(chan struct{}),
	}

	if cfg.RetentionDays > 0 {
		l.wg.Add(1)
		go l.retentionLoop()
	}

	return l, nil
}

func migrate(db *sql.DB) error {
	_, err := db.Exec(`CREATE TABLE IF NOT EXISTS conversations (
		id               TEXT PRIMARY KEY,
		question         TEXT NOT NULL,
		answer           TEXT NOT NULL,
		sources          TEXT,
		confidence       TEXT,
		citations        TEXT,
		cross_references TEXT,
		outcome          TEXT NOT NULL,
		cached           INTEGER NOT NULL DEFAULT 0,
		latency_ms       INTEGER,
		created_at       DATETIME NOT NULL DEFAULT (datetime('now'))
	)`)
	if err != nil {
		return err
	}
	_, err = db.Exec(`CREATE INDEX IF NOT EXISTS idx_conv_created ON conversations(created_at)`)
	if err != nil {
		return err
	}
	_, err = db.Exec(`CREATE INDEX IF NOT EXISTS idx_conv_outcome ON conversations(outcome)`)
	return err
}

// Append stores one conversation. A nil Logger accepts and drops everything.
func (l *Logger) Append(ctx context.Context, c models.Conversation) error {
	if l == nil || l.db == nil {
		return nil
	}
	if l.cfg.SkipCached && c.Cached {
		return nil
	}
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now().UTC()
	}

	question, answer := c.Question, c.Answer
	if l.cfg.MaxBodySize > 0 {
		question = truncate(question, l.cfg.MaxBodySize)
		answer = truncate(answer, l.cfg.MaxBodySize)
	}

	sources, _ := json.Marshal(c.Sources)
	citations, _ := json.Marshal(c.Citations)
	crossRefs, _ := json.Marshal(c.CrossReferences)

	_, err := l.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO conversations
		(id, question, answer, sources, confidence, citations, cross_references,
		 outcome, cached, latency_ms, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		c.ID, question, answer, string(sources), string(c.Confidence),
		string(citations), string(crossRefs),
		string(c.Outcome), c.Cached, c.LatencyMs, c.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("%w: append conversation: %v", models.ErrPersistence, err)
	}
	return nil
}

// truncate cuts s to at most n bytes without splitting a rune.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !isRuneStart(s[n]) {
		n--
	}
	return s[:n]
}

func isRuneStart(b byte) bool { return b&0xC0 != 0x80 }

// Query returns conversations matching the given options, newest first.
func (l *Logger) Query(ctx context.Context, opts models.AuditQueryOpts) ([]models.Conversation, error) {
	q := `SELECT id, question, answer, sources, confidence, citations, cross_references,
		outcome, cached, latency_ms, created_at
		FROM conversations WHERE 1=1`
	var args []any

	if opts.ID != "" {
		q += " AND id = ?"
		args = append(args, opts.ID)
	}
	if !opts.Since.IsZero() {
		q += " AND created_at >= ?"
		args = append(args, opts.Since.UTC())
	}
	if opts.Confidence != "" {
		q += " AND confidence = ?"
		args = append(args, string(opts.Confidence))
	}
	if opts.Outcome != "" {
		q += " AND outcome = ?"
		args = append(args, string(opts.Outcome))
	}
	if opts.Contains != "" {
		q += " AND (question LIKE ? OR answer LIKE ?)"
		pattern := "%" + opts.Contains + "%"
		args = append(args, pattern, pattern)
	}

	q += " ORDER BY created_at DESC"

	limit := opts.Limit
	if limit <= 0 {
		limit = 100
	}
	q += " LIMIT ?"
	args = append(args, limit)

	rows, err := l.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("query audit: %w", err)
	}
	defer rows.Close()

	var out []models.Conversation
	for rows.Next() {
		var c models.Conversation
		var sources, confidence, citations, crossRefs sql.NullString
		var outcome string
		var latency sql.NullInt64
		if err := rows.Scan(
			&c.ID, &c.Question, &c.Answer, &sources, &confidence, &citations, &crossRefs,
			&outcome, &c.Cached, &latency, &c.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan audit row: %w", err)
		}
		c.Confidence = models.ParseConfidence(confidence.String)
		c.Outcome = models.Outcome(outcome)
		c.LatencyMs = latency.Int64
		decodeJSON(sources, &c.Sources)
		decodeJSON(citations, &c.Citations)
		decodeJSON(crossRefs, &c.CrossReferences)
		out = append(out, c)
	}
	return out, rows.Err()
}

func decodeJSON(s sql.NullString, v any) {
	if s.Valid && s.String != "" && s.String != "null" {
		_ = json.Unmarshal([]byte(s.String), v)
	}
}

// Stats returns conversation counts grouped by outcome and day.
func (l *Logger) Stats(ctx context.Context) ([]models.AuditStat, error) {
	rows, err := l.db.QueryContext(ctx,
		`SELECT outcome, date(created_at) as day, count(*) as cnt
		 FROM conversations GROUP BY outcome, day ORDER BY day DESC, outcome`)
	if err != nil {
		return nil, fmt.Errorf("audit stats: %w", err)
	}
	defer rows.Close()

	var stats []models.AuditStat
	for rows.Next() {
		var s models.AuditStat
		var day sql.NullString
		if err := rows.Scan(&s.Outcome, &day, &s.Count); err != nil {
			return nil, fmt.Errorf("scan audit stat: %w", err)
		}
		s.Day = day.String
		stats = append(stats, s)
	}
	return stats, rows.Err()
}

// Cleanup deletes conversations older than the configured retention period.
func (l *Logger) Cleanup(ctx context.Context) (int64, error) {
	cutoff := time.Now().UTC().AddDate(0, 0, -l.cfg.RetentionDays)
	res, err := l.db.ExecContext(ctx,
		`DELETE FROM conversations WHERE created_at < ?`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("audit cleanup: %w", err)
	}
	return res.RowsAffected()
}

// Close stops the retention goroutine and closes the database.
func (l *Logger) Close() error {
	if l == nil || l.db == nil {
		return nil
	}
	close(l.done)
	l.wg.Wait()
	return l.db.Close()
}

func (l *Logger) retentionLoop() {
	defer l.wg.Done()
	ticker := time.NewTicker(time.Hour)
	defer ticker.Stop()
	for {
		select {
		case <-l.done:
			return
		case <-ticker.C:
			_, _ = l.Cleanup(context.Background())
		}
	}
}
