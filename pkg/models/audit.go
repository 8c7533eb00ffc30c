package models

import "time"

// Conversation is one question/answer exchange written to the durable log.
type Conversation struct {
	ID              string     `json:"id"`
	Question        string     `json:"question"`
	Answer          string     `json:"answer"`
	Sources         []Source   `json:"sources,omitempty"`
	Confidence      Confidence `json:"confidence"`
	Citations       []string   `json:"citations,omitempty"`
	CrossReferences []string   `json:"cross_references,omitempty"`
	Outcome         Outcome    `json:"outcome"`
	Cached          bool       `json:"cached"`
	LatencyMs       int64      `json:"latency_ms"`
	CreatedAt       time.Time  `json:"created_at"`
}

// AuditConfig controls the conversation log.
type AuditConfig struct {
	Enabled       bool   `yaml:"enabled"`
	DBPath        string `yaml:"db_path"`
	RetentionDays int    `yaml:"retention_days"`
	MaxBodySize   int    `yaml:"max_body_size"` // bytes
	SkipCached    bool   `yaml:"skip_cached"`
}

// AuditQueryOpts specifies filters for querying the conversation log.
type AuditQueryOpts struct {
	ID         string
	Since      time.Time
	Confidence Confidence
	Outcome    Outcome
	Contains   string
	Limit      int
}

// AuditStat holds aggregate conversation counts for an outcome/day combination.
type AuditStat struct {
	Outcome string
	Day     string
	Count   int
}
