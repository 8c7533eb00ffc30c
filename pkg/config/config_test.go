package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/alana-ai/alana/pkg/models"
)

func TestDefault(t *testing.T) {
	cfg := Default()
	if cfg.Listen != ":5000" {
		t.Errorf("expected :5000, got %s", cfg.Listen)
	}
	if cfg.Cache.MaxSize != 500 {
		t.Errorf("expected max_size 500, got %d", cfg.Cache.MaxSize)
	}
	if cfg.Retrieval.DefaultK != 4 || cfg.Retrieval.ClarifyK != 8 {
		t.Errorf("unexpected retrieval breadth: %+v", cfg.Retrieval)
	}
	if cfg.Retrieval.RelevanceThreshold != 1.0 {
		t.Errorf("expected threshold 1.0, got %v", cfg.Retrieval.RelevanceThreshold)
	}
}

func TestLoad(t *testing.T) {
	t.Setenv("TEST_API_KEY", "sk-test-123")

	content := `
listen: ":9090"
data_dir: "/var/lib/alana"
index:
  root: docs
cache:
  enabled: true
  ttl: 30m
  max_size: 10
llm:
  providers:
    - name: primary
      url: https://api.openai.com/v1
      api_key: ${TEST_API_KEY}
      model: gpt-4o
    - name: backup
      url: http://localhost:11434/v1
      api_key: ollama
      model: llama3
retrieval:
  relevance_threshold: 0.8
budget:
  enabled: true
  policies:
    - max_tokens: 500000
      period: daily
`
	dir := t.TempDir()
	path := filepath.Join(dir, "alana.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}

	if cfg.Listen != ":9090" {
		t.Errorf("expected :9090, got %s", cfg.Listen)
	}
	if len(cfg.LLM.Providers) != 2 {
		t.Fatalf("expected 2 providers, got %d", len(cfg.LLM.Providers))
	}
	if cfg.LLM.Providers[0].APIKey != "sk-test-123" {
		t.Errorf("env var not expanded: got %s", cfg.LLM.Providers[0].APIKey)
	}
	if cfg.Cache.TTL != 30*time.Minute {
		t.Errorf("expected 30m TTL, got %v", cfg.Cache.TTL)
	}
	if cfg.Retrieval.RelevanceThreshold != 0.8 {
		t.Errorf("expected threshold override, got %v", cfg.Retrieval.RelevanceThreshold)
	}
	if cfg.Retrieval.ClarifyK != 8 {
		t.Errorf("expected default clarify_k to survive, got %d", cfg.Retrieval.ClarifyK)
	}
	if cfg.Index.Root != "/var/lib/alana/docs" {
		t.Errorf("expected index root under data_dir, got %s", cfg.Index.Root)
	}
	if cfg.Index.MarkerPath != "/var/lib/alana/docs/.corpus_id" {
		t.Errorf("unexpected marker path %s", cfg.Index.MarkerPath)
	}
	if !cfg.Budget.Enabled || len(cfg.Budget.Policies) != 1 {
		t.Fatalf("expected one budget policy, got %+v", cfg.Budget)
	}
	if cfg.Budget.Policies[0].MaxTokens != 500000 {
		t.Errorf("expected 500000 max tokens, got %d", cfg.Budget.Policies[0].MaxTokens)
	}
}

func TestLoadDotEnv(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, ".env"), []byte("ALANA_DOTENV_KEY=sk-from-dotenv\n"), 0644); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { os.Unsetenv("ALANA_DOTENV_KEY") })

	content := `
llm:
  providers:
    - name: openai
      url: https://api.openai.com/v1
      api_key: ${ALANA_DOTENV_KEY}
      model: gpt-4o-mini
`
	path := filepath.Join(dir, "alana.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.LLM.Providers[0].APIKey != "sk-from-dotenv" {
		t.Errorf("expected key from .env, got %q", cfg.LLM.Providers[0].APIKey)
	}
}

func TestLoadMissing(t *testing.T) {
	_, err := Load("/nonexistent/alana.yaml")
	if err == nil {
		t.Error("expected error for missing file")
	}
}

func TestLoadOrDefaultMissing(t *testing.T) {
	cfg, err := LoadOrDefault(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Cache.Path != "qa_cache.json" {
		t.Errorf("expected default cache path, got %s", cfg.Cache.Path)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"valid", func(c *Config) { c.LLM.Providers[0].APIKey = "sk" }, false},
		{"missing key", func(c *Config) { c.LLM.Providers[0].APIKey = "" }, true},
		{"no providers", func(c *Config) { c.LLM.Providers = nil }, true},
		{"empty index root", func(c *Config) {
			c.LLM.Providers[0].APIKey = "sk"
			c.Index.Root = ""
		}, true},
		{"redis without url", func(c *Config) {
			c.LLM.Providers[0].APIKey = "sk"
			c.Cache.Backend = "redis"
		}, true},
		{"unknown backend", func(c *Config) {
			c.LLM.Providers[0].APIKey = "sk"
			c.Cache.Backend = "memcached"
		}, true},
		{"sqlite backend", func(c *Config) {
			c.LLM.Providers[0].APIKey = "sk"
			c.Cache.Backend = "sqlite"
		}, false},
		{"zero capacity", func(c *Config) {
			c.LLM.Providers[0].APIKey = "sk"
			c.Cache.MaxSize = 0
		}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr {
				if !errors.Is(err, models.ErrConfiguration) {
					t.Errorf("expected ErrConfiguration, got %v", err)
				}
				return
			}
			if err != nil {
				t.Errorf("unexpected error: %v", err)
			}
		})
	}
}
