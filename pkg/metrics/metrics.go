// Package metrics holds the Prometheus collectors shared across Alana.
package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	QuestionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "alana",
			Name:      "questions_total",
			Help:      "Questions answered, by orchestrator outcome",
		},
		[]string{"outcome"},
	)

	QuestionDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "alana",
			Name:      "question_duration_seconds",
			Help:      "End-to-end question latency",
			Buckets:   []float64{0.005, 0.05, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		},
		[]string{"outcome"},
	)

	CacheLookupsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "alana",
			Name:      "cache_lookups_total",
			Help:      "Response cache hits and misses",
		},
		[]string{"result"}, // "hit" / "miss"
	)

	CacheEvictionsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "alana",
			Name:      "cache_evictions_total",
			Help:      "Entries evicted to respect cache capacity",
		},
	)

	CacheEntries = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "alana",
			Name:      "cache_entries",
			Help:      "Entries currently held by the response cache",
		},
	)

	CachePersistErrorsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "alana",
			Name:      "cache_persist_errors_total",
			Help:      "Failed cache snapshot writes",
		},
	)

	LLMRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "alana",
			Name:      "llm_requests_total",
			Help:      "Language model requests",
		},
		[]string{"provider", "model", "status"},
	)

	LLMRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "alana",
			Name:      "llm_request_duration_seconds",
			Help:      "Language model request duration in seconds",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		},
		[]string{"provider", "model"},
	)

	LLMTokensTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "alana",
			Name:      "llm_tokens_total",
			Help:      "Language model tokens consumed",
		},
		[]string{"provider", "model", "type"},
	)

	RetrievalHits = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "alana",
			Name:      "retrieval_hits",
			Help:      "Passages kept after relevance filtering",
			Buckets:   []float64{0, 1, 2, 4, 8, 16},
		},
	)

	DocumentsIngestedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "alana",
			Name:      "documents_ingested_total",
			Help:      "Uploaded documents, by extension and status",
		},
		[]string{"extension", "status"},
	)
)

func init() {
	prometheus.MustRegister(
		QuestionsTotal, QuestionDuration,
		CacheLookupsTotal, CacheEvictionsTotal, CacheEntries, CachePersistErrorsTotal,
		LLMRequestsTotal, LLMRequestDuration, LLMTokensTotal,
		RetrievalHits, DocumentsIngestedTotal,
	)
}
