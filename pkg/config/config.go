package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/alana-ai/alana/pkg/models"
)

// Config holds all Alana configuration.
type Config struct {
	Listen    string             `yaml:"listen"`
	DataDir   string             `yaml:"data_dir"`
	Log       LogConfig          `yaml:"log"`
	Index     IndexConfig        `yaml:"index"`
	Cache     CacheConfig        `yaml:"cache"`
	Retrieval RetrievalConfig    `yaml:"retrieval"`
	LLM       LLMConfig          `yaml:"llm"`
	Audit     models.AuditConfig `yaml:"audit"`
	Budget    BudgetConfig       `yaml:"budget"`
	Ingest    IngestConfig       `yaml:"ingest"`
	Tracker   TrackerConfig      `yaml:"tracker"`
}

// LogConfig controls the zap logger.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // console | json
}

// IndexConfig locates the document index and selects the fingerprint source.
type IndexConfig struct {
	Root string `yaml:"root"`
	// Fingerprint is "scan" (file names + mtimes) or "marker" (corpus id file).
	Fingerprint string `yaml:"fingerprint"`
	MarkerPath  string `yaml:"marker_path"`
}

// CacheConfig controls the response cache.
type CacheConfig struct {
	Enabled bool          `yaml:"enabled"`
	TTL     time.Duration `yaml:"ttl"`
	MaxSize int           `yaml:"max_size"`
	// Backend is "file" (JSON on disk), "sqlite" (rows in the database at
	// Path) or "redis" (one blob under RedisKey).
	Backend  string `yaml:"backend"`
	Path     string `yaml:"path"`
	RedisURL string `yaml:"redis_url"`
	RedisKey string `yaml:"redis_key"`
}

// RetrievalConfig holds the retrieval breadth and scoring knobs.
type RetrievalConfig struct {
	DefaultK           int     `yaml:"default_k"`
	ClarifyK           int     `yaml:"clarify_k"`
	RelevanceThreshold float64 `yaml:"relevance_threshold"`
	FallbackHits       int     `yaml:"fallback_hits"`
	SnippetLength      int     `yaml:"snippet_length"`
	HighConfidence     float64 `yaml:"high_confidence"`
	MediumConfidence   float64 `yaml:"medium_confidence"`
}

// LLMConfig defines the ordered chain of upstream model providers.
type LLMConfig struct {
	Providers     []ProviderConfig `yaml:"providers"`
	Timeout       time.Duration    `yaml:"timeout"`
	MaxAnswerSize int              `yaml:"max_answer_size"` // runes kept from unstructured output
}

// ProviderConfig defines one OpenAI-compatible upstream.
type ProviderConfig struct {
	Name        string   `yaml:"name"`
	URL         string   `yaml:"url"`
	APIKey      string   `yaml:"api_key"`
	Model       string   `yaml:"model"`
	Temperature *float32 `yaml:"temperature"`
}

// BudgetConfig controls token budget enforcement on model calls.
type BudgetConfig struct {
	Enabled  bool                  `yaml:"enabled"`
	Policies []models.BudgetPolicy `yaml:"policies"`
}

// IngestConfig controls document upload validation and chunking.
type IngestConfig struct {
	AllowedExtensions []string `yaml:"allowed_extensions"`
	MaxFileSize       int64    `yaml:"max_file_size"`
	ChunkSize         int      `yaml:"chunk_size"`
	ChunkOverlap      int      `yaml:"chunk_overlap"`
}

// TrackerConfig controls token usage tracking.
type TrackerConfig struct {
	Enabled bool   `yaml:"enabled"`
	DBPath  string `yaml:"db_path"`
}

// Default returns a Config with sensible defaults.
func Default() *Config {
	return &Config{
		Listen:  ":5000",
		DataDir: ".",
		Log: LogConfig{
			Level:  "info",
			Format: "console",
		},
		Index: IndexConfig{
			Root:        "vector_db",
			Fingerprint: "scan",
		},
		Cache: CacheConfig{
			Enabled:  true,
			TTL:      24 * time.Hour,
			MaxSize:  500,
			Backend:  "file",
			Path:     "qa_cache.json",
			RedisKey: "alana:qa_cache",
		},
		Retrieval: RetrievalConfig{
			DefaultK:           4,
			ClarifyK:           8,
			RelevanceThreshold: 1.0,
			FallbackHits:       2,
			SnippetLength:      500,
			HighConfidence:     0.7,
			MediumConfidence:   0.4,
		},
		LLM: LLMConfig{
			Providers: []ProviderConfig{
				{Name: "openai", URL: "https://api.openai.com/v1", APIKey: "${OPENAI_API_KEY}", Model: "gpt-4o-mini"},
			},
			Timeout:       60 * time.Second,
			MaxAnswerSize: 2000,
		},
		Audit: models.AuditConfig{
			Enabled:       true,
			DBPath:        "conversations.db",
			RetentionDays: 90,
			MaxBodySize:   8192,
		},
		Ingest: IngestConfig{
			AllowedExtensions: []string{".pdf", ".txt", ".docx", ".md"},
			MaxFileSize:       16 << 20,
			ChunkSize:         800,
			ChunkOverlap:      100,
		},
		Tracker: TrackerConfig{
			Enabled: true,
			DBPath:  "usage.db",
		},
	}
}

// Load reads a YAML config file and expands environment variables.
// Variables from a .env file next to the config are loaded first;
// values already present in the environment win.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	loadDotEnv(filepath.Join(filepath.Dir(path), ".env"))

	expanded := os.ExpandEnv(string(data))

	cfg := Default()
	if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	cfg.expandProviderKeys()
	cfg.resolvePaths()

	return cfg, nil
}

// LoadOrDefault behaves like Load but returns defaults when the file does not exist.
func LoadOrDefault(path string) (*Config, error) {
	cfg, err := Load(path)
	if errors.Is(err, fs.ErrNotExist) {
		loadDotEnv(".env")
		cfg = Default()
		cfg.expandProviderKeys()
		cfg.resolvePaths()
		return cfg, nil
	}
	return cfg, err
}

// Validate reports missing settings that make the answer service unusable.
func (c *Config) Validate() error {
	if c.Index.Root == "" {
		return fmt.Errorf("%w: index.root is empty", models.ErrConfiguration)
	}
	if len(c.LLM.Providers) == 0 {
		return fmt.Errorf("%w: no llm providers configured", models.ErrConfiguration)
	}
	for _, p := range c.LLM.Providers {
		if p.APIKey == "" {
			return fmt.Errorf("%w: provider %q has no api key", models.ErrConfiguration, p.Name)
		}
		if p.Model == "" {
			return fmt.Errorf("%w: provider %q has no model", models.ErrConfiguration, p.Name)
		}
	}
	if c.Cache.Enabled {
		if c.Cache.MaxSize <= 0 {
			return fmt.Errorf("%w: cache.max_size must be positive", models.ErrConfiguration)
		}
		switch c.Cache.Backend {
		case "", "file", "sqlite":
		case "redis":
			if c.Cache.RedisURL == "" {
				return fmt.Errorf("%w: cache.redis_url is required for the redis backend", models.ErrConfiguration)
			}
		default:
			return fmt.Errorf("%w: unknown cache backend %q", models.ErrConfiguration, c.Cache.Backend)
		}
	}
	return nil
}

func loadDotEnv(path string) {
	if _, err := os.Stat(path); err != nil {
		return
	}
	_ = godotenv.Load(path)
}

// expandProviderKeys expands ${VAR} references kept verbatim in defaults.
func (c *Config) expandProviderKeys() {
	for i := range c.LLM.Providers {
		c.LLM.Providers[i].APIKey = os.ExpandEnv(c.LLM.Providers[i].APIKey)
	}
}

// resolvePaths anchors relative storage paths under DataDir.
func (c *Config) resolvePaths() {
	anchor := func(p string) string {
		if p == "" || filepath.IsAbs(p) || c.DataDir == "" || c.DataDir == "." {
			return p
		}
		return filepath.Join(c.DataDir, p)
	}
	c.Index.Root = anchor(c.Index.Root)
	c.Cache.Path = anchor(c.Cache.Path)
	c.Audit.DBPath = anchor(c.Audit.DBPath)
	c.Tracker.DBPath = anchor(c.Tracker.DBPath)
	if c.Index.MarkerPath == "" {
		c.Index.MarkerPath = filepath.Join(c.Index.Root, ".corpus_id")
	} else {
		c.Index.MarkerPath = anchor(c.Index.MarkerPath)
	}
}
