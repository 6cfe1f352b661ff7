package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Domain collectors. HTTP traffic is instrumented separately by
// middleware.Metrics; these count what the study assistant itself does.
var (
	// DocumentsIngested counts upload attempts by declared type and outcome
	// (ok, missing_file, unsupported_type, file_too_large, unreadable, storage_error, store_error).
	DocumentsIngested = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "documents_ingested_total",
			Help: "Document uploads by declared type and outcome.",
		},
		[]string{"type", "outcome"},
	)

	// ChatTurns counts chat turns by outcome (ok, invalid, backend_error).
	ChatTurns = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chat_turns_total",
			Help: "Chat turns by outcome.",
		},
		[]string{"outcome"},
	)

	// ChatEscalations counts replies that got the ask-a-teacher suggestion.
	ChatEscalations = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "chat_escalations_total",
			Help: "Assistant replies that suggested escalating to a teacher.",
		},
	)

	// LLMRequestDuration observes each backend attempt by HTTP status
	// ("error" when no response was received).
	LLMRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "llm_request_duration_seconds",
			Help:    "Duration of generative backend requests in seconds.",
			Buckets: []float64{.1, .25, .5, 1, 2, 5, 10, 20, 30, 60},
		},
		[]string{"status"},
	)

	// LLMRetries counts retried backend attempts.
	LLMRetries = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "llm_retries_total",
			Help: "Retried generative backend attempts.",
		},
	)
)

func init() {
	prometheus.MustRegister(DocumentsIngested, ChatTurns, ChatEscalations, LLMRequestDuration, LLMRetries)
}
