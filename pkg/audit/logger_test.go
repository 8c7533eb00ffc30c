package audit

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/alana-ai/alana/pkg/models"
)

func tempCfg(t *testing.T) models.AuditConfig {
	t.Helper()
	return models.AuditConfig{
		Enabled:       true,
		DBPath:        filepath.Join(t.TempDir(), "audit_test.db"),
		RetentionDays: 90,
		MaxBodySize:   1024,
	}
}

func mustNew(t *testing.T, cfg models.AuditConfig) *Logger {
	t.Helper()
	l, err := New(cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { _ = l.Close() })
	return l
}

func sampleConversation() models.Conversation {
	page := 2
	return models.Conversation{
		ID:              "conv-001",
		Question:        "¿Qué dice sobre contratos?",
		Answer:          "Los contratos deben estar firmados por ambas partes.",
		Sources:         []models.Source{{Snippet: "Los contratos deben...", Source: "ley.pdf", Page: &page, Score: 0.3}},
		Confidence:      models.ConfidenceHigh,
		Citations:       []string{"Artículo 15"},
		CrossReferences: []string{"Artículo 3"},
		Outcome:         models.OutcomeAnswered,
		LatencyMs:       150,
		CreatedAt:       time.Now().UTC(),
	}
}

func TestAppendAndQuery(t *testing.T) {
	l := mustNew(t, tempCfg(t))
	ctx := context.Background()

	if err := l.Append(ctx, sampleConversation()); err != nil {
		t.Fatalf("Append: %v", err)
	}

	got, err := l.Query(ctx, models.AuditQueryOpts{ID: "conv-001"})
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("expected 1 conversation, got %d", len(got))
	}
	c := got[0]
	if c.Confidence != models.ConfidenceHigh || c.Outcome != models.OutcomeAnswered {
		t.Errorf("unexpected labels: %+v", c)
	}
	if len(c.Sources) != 1 || c.Sources[0].Source != "ley.pdf" || *c.Sources[0].Page != 2 {
		t.Errorf("sources not preserved: %+v", c.Sources)
	}
	if len(c.Citations) != 1 || c.CrossReferences[0] != "Artículo 3" {
		t.Errorf("citations not preserved: %+v", c)
	}
}

func TestAppendAssignsID(t *testing.T) {
	l := mustNew(t, tempCfg(t))
	ctx := context.Background()

	c := sampleConversation()
	c.ID = ""
	c.CreatedAt = time.Time{}
	if err := l.Append(ctx, c); err != nil {
		t.Fatalf("Append: %v", err)
	}

	got, err := l.Query(ctx, models.AuditQueryOpts{})
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if len(got) != 1 || got[0].ID == "" {
		t.Fatalf("expected generated id, got %+v", got)
	}
}

func TestQueryFilters(t *testing.T) {
	l := mustNew(t, tempCfg(t))
	ctx := context.Background()

	a := sampleConversation()
	b := sampleConversation()
	b.ID = "conv-002"
	b.Question = "¿Cuál es el plazo de apelación?"
	b.Answer = "Lo siento, no encuentro información específica."
	b.Confidence = models.ConfidenceLow
	b.Outcome = models.OutcomeCacheHit
	b.Cached = true
	_ = l.Append(ctx, a)
	_ = l.Append(ctx, b)

	tests := []struct {
		name string
		opts models.AuditQueryOpts
		want string
	}{
		{"confidence", models.AuditQueryOpts{Confidence: models.ConfidenceLow}, "conv-002"},
		{"outcome", models.AuditQueryOpts{Outcome: models.OutcomeAnswered}, "conv-001"},
		{"contains question", models.AuditQueryOpts{Contains: "apelación"}, "conv-002"},
		{"contains answer", models.AuditQueryOpts{Contains: "firmados"}, "conv-001"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := l.Query(ctx, tt.opts)
			if err != nil {
				t.Fatalf("Query: %v", err)
			}
			if len(got) != 1 || got[0].ID != tt.want {
				t.Errorf("expected %s, got %+v", tt.want, got)
			}
		})
	}

	limited, err := l.Query(ctx, models.AuditQueryOpts{Limit: 1})
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if len(limited) != 1 {
		t.Errorf("expected limit 1, got %d", len(limited))
	}
}

func TestSkipCached(t *testing.T) {
	cfg := tempCfg(t)
	cfg.SkipCached = true
	l := mustNew(t, cfg)
	ctx := context.Background()

	c := sampleConversation()
	c.Cached = true
	if err := l.Append(ctx, c); err != nil {
		t.Fatalf("Append: %v", err)
	}

	got, err := l.Query(ctx, models.AuditQueryOpts{})
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("expected cached conversation to be skipped, got %d", len(got))
	}
}

func TestBodyTruncation(t *testing.T) {
	cfg := tempCfg(t)
	cfg.MaxBodySize = 15
	l := mustNew(t, cfg)
	ctx := context.Background()

	c := sampleConversation()
	c.Answer = strings.Repeat("é", 40)
	if err := l.Append(ctx, c); err != nil {
		t.Fatalf("Append: %v", err)
	}

	got, err := l.Query(ctx, models.AuditQueryOpts{ID: "conv-001"})
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if len(got[0].Answer) != 14 {
		t.Errorf("expected answer cut at rune boundary (14 bytes), got %d", len(got[0].Answer))
	}
}

func TestCleanup(t *testing.T) {
	cfg := tempCfg(t)
	cfg.RetentionDays = 0 // everything is old
	l := mustNew(t, cfg)
	ctx := context.Background()

	c := sampleConversation()
	c.CreatedAt = time.Now().UTC().AddDate(0, 0, -1)
	_ = l.Append(ctx, c)

	deleted, err := l.Cleanup(ctx)
	if err != nil {
		t.Fatalf("Cleanup: %v", err)
	}
	if deleted != 1 {
		t.Errorf("expected 1 deleted, got %d", deleted)
	}
}

func TestStats(t *testing.T) {
	l := mustNew(t, tempCfg(t))
	ctx := context.Background()

	_ = l.Append(ctx, sampleConversation())
	c2 := sampleConversation()
	c2.ID = "conv-002"
	_ = l.Append(ctx, c2)

	stats, err := l.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if len(stats) == 0 {
		t.Fatal("expected stats")
	}
	if stats[0].Outcome != string(models.OutcomeAnswered) || stats[0].Count != 2 {
		t.Errorf("unexpected stat: %+v", stats[0])
	}
}

func TestNilLoggerSafe(t *testing.T) {
	var l *Logger
	if err := l.Append(context.Background(), sampleConversation()); err != nil {
		t.Errorf("nil logger should be safe: %v", err)
	}
	if err := l.Close(); err != nil {
		t.Errorf("nil close should be safe: %v", err)
	}
}

func TestNewInvalidPath(t *testing.T) {
	cfg := models.AuditConfig{
		Enabled: true,
		DBPath:  filepath.Join(os.TempDir(), "nonexistent", "deep", "path", "audit.db"),
	}
	_, err := New(cfg)
	if err == nil {
		t.Error("expected error for invalid path")
	}
}
