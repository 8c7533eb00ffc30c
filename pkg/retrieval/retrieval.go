// Package retrieval turns raw retrieval hits into the context block, source
// list and confidence label used to answer a question.
package retrieval

import (
	"crypto/sha256"
	"math"
	"sort"
	"strings"

	"github.com/alana-ai/alana/pkg/models"
)

// DefaultDelimiter separates passages in the context block.
const DefaultDelimiter = "\n\n---\n\n"

// Policy holds the retrieval knobs. Every threshold is empirical and overridable.
type Policy struct {
	DefaultK           int
	ClarifyK           int
	RelevanceThreshold float64
	FallbackHits       int
	SnippetLength      int
	HighConfidence     float64
	MediumConfidence   float64
	Delimiter          string
}

// DefaultPolicy returns the stock retrieval policy.
func DefaultPolicy() Policy {
	return Policy{
		DefaultK:           4,
		ClarifyK:           8,
		RelevanceThreshold: 1.0,
		FallbackHits:       2,
		SnippetLength:      500,
		HighConfidence:     0.7,
		MediumConfidence:   0.4,
		Delimiter:          DefaultDelimiter,
	}
}

// K is how many hits to request. Clarification requests get a wider net.
func (p Policy) K(isClarify bool) int {
	if isClarify && p.ClarifyK > 0 {
		return p.ClarifyK
	}
	if p.DefaultK > 0 {
		return p.DefaultK
	}
	return 4
}

// Result is the processed view of a set of hits.
type Result struct {
	Context    string
	Sources    []models.Source
	Confidence models.Confidence
	// Used counts the passages that made it into Context.
	Used int
}

// Process filters, deduplicates and scores hits. Input order is preserved
// in both Context and Sources.
func Process(hits []models.RetrievalHit, p Policy) Result {
	if len(hits) == 0 {
		return Result{Confidence: models.ConfidenceLow, Sources: []models.Source{}}
	}
	delim := p.Delimiter
	if delim == "" {
		delim = DefaultDelimiter
	}

	kept := relevant(hits, p)

	seen := make(map[[32]byte]struct{}, len(kept))
	var passages []string
	for _, h := range kept {
		sum := sha256.Sum256([]byte(h.Text))
		if _, dup := seen[sum]; dup {
			continue
		}
		seen[sum] = struct{}{}
		passages = append(passages, h.Text)
	}

	sources := make([]models.Source, 0, len(hits))
	for _, h := range hits {
		sources = append(sources, models.Source{
			Snippet: truncate(h.Text, p.SnippetLength),
			Source:  h.Metadata.Source,
			Page:    h.Metadata.Page,
			Score:   h.Score,
		})
	}

	return Result{
		Context:    strings.Join(passages, delim),
		Sources:    sources,
		Confidence: confidence(hits, p),
		Used:       len(passages),
	}
}

// relevant keeps hits under the threshold; if none qualify it falls back to
// the FallbackHits lowest-scoring hits, in their original order.
func relevant(hits []models.RetrievalHit, p Policy) []models.RetrievalHit {
	var kept []models.RetrievalHit
	for _, h := range hits {
		if h.Score < p.RelevanceThreshold {
			kept = append(kept, h)
		}
	}
	if len(kept) > 0 {
		return kept
	}

	n := p.FallbackHits
	if n <= 0 {
		n = 2
	}
	idx := make([]int, len(hits))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool { return hits[idx[a]].Score < hits[idx[b]].Score })
	if n > len(idx) {
		n = len(idx)
	}
	idx = idx[:n]
	sort.Ints(idx)

	kept = make([]models.RetrievalHit, 0, n)
	for _, i := range idx {
		kept = append(kept, hits[i])
	}
	return kept
}

// confidence maps the best (lowest absolute) distance onto a label.
func confidence(hits []models.RetrievalHit, p Policy) models.Confidence {
	best := math.Inf(1)
	for _, h := range hits {
		best = math.Min(best, math.Abs(h.Score))
	}
	conf := 1 / (1 + best)
	switch {
	case conf > p.HighConfidence:
		return models.ConfidenceHigh
	case conf > p.MediumConfidence:
		return models.ConfidenceMedium
	default:
		return models.ConfidenceLow
	}
}

func truncate(s string, n int) string {
	if n <= 0 {
		return s
	}
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
