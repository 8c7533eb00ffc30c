package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/alana-ai/alana/pkg/models"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(filepath.Join(t.TempDir(), "cache_test.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestLoadEmpty(t *testing.T) {
	s := newTestStore(t)
	entries, err := s.Load(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 0 {
		t.Errorf("expected empty mapping, got %d", len(entries))
	}
}

func TestSaveAndLoad(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	created := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	page := 3

	in := map[string]models.CacheEntry{
		"k1": {
			Answer: models.Answer{
				Text:       "La fotosíntesis convierte luz en energía.",
				Confidence: models.ConfidenceHigh,
				KeyPoints:  []string{"luz", "energía"},
				Sources:    []models.Source{{Snippet: "luz", Source: "bio.pdf", Page: &page, Score: 0.2}},
			},
			CreatedAt: created,
		},
		"k2": {Answer: models.Answer{Text: "otra"}, CreatedAt: created.Add(time.Minute)},
	}
	if err := s.Save(ctx, in); err != nil {
		t.Fatal(err)
	}

	out, err := s.Load(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(out) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(out))
	}
	got := out["k1"]
	if got.Text != in["k1"].Text || got.Confidence != models.ConfidenceHigh {
		t.Errorf("unexpected entry: %+v", got)
	}
	if !got.CreatedAt.Equal(created) {
		t.Errorf("created_at mismatch: %v vs %v", got.CreatedAt, created)
	}
	if len(got.Sources) != 1 || got.Sources[0].Page == nil || *got.Sources[0].Page != 3 {
		t.Errorf("sources not preserved: %+v", got.Sources)
	}
}

func TestSaveReplaces(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	now := time.Now().UTC()

	_ = s.Save(ctx, map[string]models.CacheEntry{"old": {Answer: models.Answer{Text: "a"}, CreatedAt: now}})
	if err := s.Save(ctx, map[string]models.CacheEntry{"new": {Answer: models.Answer{Text: "b"}, CreatedAt: now}}); err != nil {
		t.Fatal(err)
	}

	out, err := s.Load(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := out["old"]; ok {
		t.Error("expected old row to be replaced")
	}
	if _, ok := out["new"]; !ok {
		t.Error("expected new row")
	}
}
