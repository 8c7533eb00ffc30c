package tracker

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/alana-ai/alana/pkg/models"
)

func newTestTracker(t *testing.T) *SQLiteTracker {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	tr, err := New(dbPath)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = tr.Close() })
	return tr
}

func TestRecordAndRecent(t *testing.T) {
	tr := newTestTracker(t)
	ctx := context.Background()
	now := time.Now().UTC()

	rec := models.UsageRecord{
		Provider:         "openai",
		Model:            "gpt-4o-mini",
		CacheKey:         "abc123",
		PromptTokens:     100,
		CompletionTokens: 50,
		TotalTokens:      150,
		CreatedAt:        now,
	}
	if err := tr.Record(ctx, rec); err != nil {
		t.Fatal(err)
	}

	records, err := tr.Recent(ctx, now.Add(-time.Minute), 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(records) != 1 {
		t.Fatalf("expected 1 record, got %d", len(records))
	}
	if records[0].TotalTokens != 150 || records[0].CacheKey != "abc123" {
		t.Errorf("unexpected record: %+v", records[0])
	}
}

func TestRecordStampsTime(t *testing.T) {
	tr := newTestTracker(t)
	ctx := context.Background()

	if err := tr.Record(ctx, models.UsageRecord{Provider: "openai", Model: "m", TotalTokens: 1}); err != nil {
		t.Fatal(err)
	}
	records, err := tr.Recent(ctx, time.Now().UTC().Add(-time.Minute), 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(records) != 1 || records[0].CreatedAt.IsZero() {
		t.Fatalf("expected stamped record, got %+v", records)
	}
}

func TestRecentLimit(t *testing.T) {
	tr := newTestTracker(t)
	ctx := context.Background()
	now := time.Now().UTC()

	for i := 0; i < 5; i++ {
		_ = tr.Record(ctx, models.UsageRecord{
			Provider: "openai", Model: "gpt-4o-mini", TotalTokens: i + 1,
			CreatedAt: now.Add(time.Duration(i) * time.Second),
		})
	}

	records, err := tr.Recent(ctx, now.Add(-time.Minute), 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(records) != 2 {
		t.Fatalf("expected 2 records, got %d", len(records))
	}
	if records[0].TotalTokens != 5 {
		t.Errorf("expected newest first, got %d", records[0].TotalTokens)
	}
}

func TestTotals(t *testing.T) {
	tr := newTestTracker(t)
	ctx := context.Background()
	now := time.Now().UTC()

	for i := 0; i < 3; i++ {
		_ = tr.Record(ctx, models.UsageRecord{
			Provider: "openai", Model: "gpt-4o-mini",
			PromptTokens: 100, CompletionTokens: 50, TotalTokens: 150,
			CreatedAt: now,
		})
	}
	_ = tr.Record(ctx, models.UsageRecord{
		Provider: "ollama", Model: "llama3", TotalTokens: 40, CreatedAt: now,
	})
	_ = tr.Record(ctx, models.UsageRecord{
		Provider: "openai", Model: "gpt-4o-mini", TotalTokens: 1000, CreatedAt: now.Add(-48 * time.Hour),
	})

	total, err := tr.Total(ctx, now.Add(-time.Hour))
	if err != nil {
		t.Fatal(err)
	}
	if total != 490 {
		t.Errorf("expected 490, got %d", total)
	}

	byModel, err := tr.TotalByModel(ctx, "gpt-4o-mini", now.Add(-time.Hour))
	if err != nil {
		t.Fatal(err)
	}
	if byModel != 450 {
		t.Errorf("expected 450, got %d", byModel)
	}
}

func TestSummary(t *testing.T) {
	tr := newTestTracker(t)
	ctx := context.Background()
	now := time.Now().UTC()

	_ = tr.Record(ctx, models.UsageRecord{Provider: "openai", Model: "gpt-4o-mini", PromptTokens: 10, CompletionTokens: 5, TotalTokens: 15, CreatedAt: now})
	_ = tr.Record(ctx, models.UsageRecord{Provider: "openai", Model: "gpt-4o-mini", PromptTokens: 20, CompletionTokens: 10, TotalTokens: 30, CreatedAt: now})
	_ = tr.Record(ctx, models.UsageRecord{Provider: "ollama", Model: "llama3", PromptTokens: 7, CompletionTokens: 3, TotalTokens: 10, CreatedAt: now})

	summaries, err := tr.Summary(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(summaries) != 2 {
		t.Fatalf("expected 2 summaries, got %d", len(summaries))
	}
	if summaries[0].Provider != "ollama" || summaries[0].TotalTokens != 10 {
		t.Errorf("unexpected first summary: %+v", summaries[0])
	}
	if summaries[1].RequestCount != 2 || summaries[1].TotalTokens != 45 {
		t.Errorf("unexpected second summary: %+v", summaries[1])
	}
}
