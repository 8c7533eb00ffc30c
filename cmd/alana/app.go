package main

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/alana-ai/alana/pkg/audit"
	"github.com/alana-ai/alana/pkg/budget"
	"github.com/alana-ai/alana/pkg/cache"
	cachesqlite "github.com/alana-ai/alana/pkg/cache/sqlite"
	"github.com/alana-ai/alana/pkg/config"
	"github.com/alana-ai/alana/pkg/fingerprint"
	"github.com/alana-ai/alana/pkg/index"
	"github.com/alana-ai/alana/pkg/llm"
	"github.com/alana-ai/alana/pkg/logging"
	"github.com/alana-ai/alana/pkg/orchestrator"
	"github.com/alana-ai/alana/pkg/retrieval"
	"github.com/alana-ai/alana/pkg/tracker"
)

// app holds every component of a running answer service.
type app struct {
	cfg         *config.Config
	logger      *zap.Logger
	index       *index.Index
	fingerprint *fingerprint.Generator
	cache       *cache.Cache
	tracker     *tracker.SQLiteTracker
	enforcer    *budget.Enforcer
	audit       *audit.Logger
	orch        *orchestrator.Orchestrator
}

// newApp validates cfg and wires the answer pipeline.
func newApp(cfg *config.Config, logger *zap.Logger) (*app, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	logger = logging.OrNop(logger)
	a := &app{cfg: cfg, logger: logger}
	ok := false
	defer func() {
		if !ok {
			a.Close()
		}
	}()

	idx, err := openIndex(cfg, logger)
	if err != nil {
		return nil, err
	}
	a.index = idx
	a.fingerprint = fingerprint.New(cfg.Index.Root, cfg.Index.MarkerPath, fingerprint.Mode(cfg.Index.Fingerprint))

	if cfg.Cache.Enabled {
		if a.cache, err = openCache(cfg, logger); err != nil {
			return nil, err
		}
	}

	var checker llm.BudgetChecker
	if cfg.Tracker.Enabled || cfg.Budget.Enabled {
		if a.tracker, err = tracker.New(cfg.Tracker.DBPath); err != nil {
			return nil, fmt.Errorf("init tracker: %w", err)
		}
	}
	if cfg.Budget.Enabled {
		a.enforcer = budget.New(cfg.Budget.Policies, a.tracker)
		checker = a.enforcer
	}

	if cfg.Audit.Enabled {
		if a.audit, err = audit.New(cfg.Audit); err != nil {
			return nil, fmt.Errorf("init conversation log: %w", err)
		}
	}

	opts := orchestrator.Options{
		Cache:         a.cache,
		Retriever:     idx,
		Model:         llm.NewChain(cfg.LLM.Providers, cfg.LLM.Timeout, checker, logger),
		Fingerprint:   a.fingerprint,
		Policy:        policy(cfg.Retrieval),
		MaxAnswerSize: cfg.LLM.MaxAnswerSize,
		Logger:        logger,
	}
	if a.audit != nil {
		opts.Log = a.audit
	}
	if a.tracker != nil {
		opts.Usage = a.tracker
	}
	a.orch = orchestrator.New(opts)

	ok = true
	return a, nil
}

// Close drains pending side effects, flushes the cache and releases storage.
func (a *app) Close() {
	if a.orch != nil {
		a.orch.Wait()
	}
	if a.cache != nil {
		if err := a.cache.Close(); err != nil {
			a.logger.Warn("close cache", zap.Error(err))
		}
	}
	if a.audit != nil {
		_ = a.audit.Close()
	}
	if a.tracker != nil {
		_ = a.tracker.Close()
	}
}

func openIndex(cfg *config.Config, logger *zap.Logger) (*index.Index, error) {
	idx, err := index.Open(index.Options{
		Root:              cfg.Index.Root,
		AllowedExtensions: cfg.Ingest.AllowedExtensions,
		MaxFileSize:       cfg.Ingest.MaxFileSize,
		ChunkSize:         cfg.Ingest.ChunkSize,
		ChunkOverlap:      cfg.Ingest.ChunkOverlap,
		Logger:            logger,
	})
	if err != nil {
		return nil, fmt.Errorf("open index: %w", err)
	}
	return idx, nil
}

// openCache builds the response cache over the configured backend.
func openCache(cfg *config.Config, logger *zap.Logger) (*cache.Cache, error) {
	var p cache.Persister
	switch cfg.Cache.Backend {
	case "redis":
		rp, err := cache.DialRedisPersister(cfg.Cache.RedisURL, cfg.Cache.RedisKey)
		if err != nil {
			return nil, fmt.Errorf("init redis cache: %w", err)
		}
		p = rp
	case "sqlite":
		s, err := cachesqlite.New(cfg.Cache.Path)
		if err != nil {
			return nil, fmt.Errorf("init sqlite cache: %w", err)
		}
		p = s
	default:
		p = cache.NewFilePersister(cfg.Cache.Path)
	}
	return cache.New(cache.Options{TTL: cfg.Cache.TTL, MaxSize: cfg.Cache.MaxSize}, p, logger), nil
}

func policy(rc config.RetrievalConfig) retrieval.Policy {
	p := retrieval.DefaultPolicy()
	if rc.DefaultK > 0 {
		p.DefaultK = rc.DefaultK
	}
	if rc.ClarifyK > 0 {
		p.ClarifyK = rc.ClarifyK
	}
	if rc.RelevanceThreshold > 0 {
		p.RelevanceThreshold = rc.RelevanceThreshold
	}
	if rc.FallbackHits > 0 {
		p.FallbackHits = rc.FallbackHits
	}
	if rc.SnippetLength > 0 {
		p.SnippetLength = rc.SnippetLength
	}
	if rc.HighConfidence > 0 {
		p.HighConfidence = rc.HighConfidence
	}
	if rc.MediumConfidence > 0 {
		p.MediumConfidence = rc.MediumConfidence
	}
	return p
}
