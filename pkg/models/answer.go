package models

import (
	"encoding/json"
	"strings"
	"time"
)

// Confidence is the coarse reliability label attached to an answer.
// The zero value means "unknown" and is serialized as null.
type Confidence string

const (
	ConfidenceHigh   Confidence = "alta"
	ConfidenceMedium Confidence = "media"
	ConfidenceLow    Confidence = "baja"
)

// ParseConfidence maps a model-supplied label onto a known Confidence.
// Unknown labels yield the zero value.
func ParseConfidence(s string) Confidence {
	switch Confidence(strings.ToLower(strings.TrimSpace(s))) {
	case ConfidenceHigh:
		return ConfidenceHigh
	case ConfidenceMedium:
		return ConfidenceMedium
	case ConfidenceLow:
		return ConfidenceLow
	}
	return ""
}

// MarshalJSON writes null for an unknown confidence.
func (c Confidence) MarshalJSON() ([]byte, error) {
	if c == "" {
		return []byte("null"), nil
	}
	return json.Marshal(string(c))
}

// UnmarshalJSON accepts null or any string; unknown labels become the zero value.
func (c *Confidence) UnmarshalJSON(data []byte) error {
	var s *string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	if s == nil {
		*c = ""
		return nil
	}
	*c = ParseConfidence(*s)
	return nil
}

// Source is one piece of provenance shown next to an answer.
type Source struct {
	Snippet string  `json:"text_snippet"`
	Source  string  `json:"source"`
	Page    *int    `json:"page"`
	Score   float64 `json:"score"`
}

// Answer is the structured result extracted from a model response.
// It is built once per question and copied into the cache as is.
type Answer struct {
	Text              string     `json:"response"`
	Sources           []Source   `json:"sources"`
	Confidence        Confidence `json:"confidence"`
	KeyPoints         []string   `json:"key_points"`
	SpecificCitations []string   `json:"specific_citations"`
	ExactQuotes       []string   `json:"exact_quotes"`
	MissingInfo       string     `json:"missing_info,omitempty"`
	CrossReferences   []string   `json:"cross_references"`
}

// CacheEntry is a cached Answer stamped with its creation time.
type CacheEntry struct {
	Answer
	CreatedAt time.Time `json:"created_at"`
}

// Outcome names the path the orchestrator took to produce a response.
type Outcome string

const (
	OutcomeEmpty         Outcome = "empty"
	OutcomeTrivial       Outcome = "trivial"
	OutcomeCacheHit      Outcome = "cache_hit"
	OutcomeAnswered      Outcome = "answered"
	OutcomeDirect        Outcome = "direct"
	OutcomeLocalFallback Outcome = "local_fallback"
	OutcomeUnavailable   Outcome = "unavailable"
)

// Response is what a caller of the orchestrator receives.
type Response struct {
	Answer
	Outcome      Outcome   `json:"outcome"`
	Cached       bool      `json:"cached"`
	CacheType    string    `json:"cache_type,omitempty"`
	ResponseTime string    `json:"response_time,omitempty"`
	Timestamp    time.Time `json:"timestamp"`
	Error        string    `json:"error,omitempty"`
}
