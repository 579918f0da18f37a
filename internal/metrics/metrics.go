// Package metrics holds the Prometheus collectors for research sessions,
// provider calls, completion calls, retries, and the result cache.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Session metrics
	SessionsStarted = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "toolscout_sessions_started_total",
			Help: "Total number of research sessions started",
		},
	)

	SessionsFinished = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "toolscout_sessions_finished_total",
			Help: "Total number of research sessions finished, by final stage and failure kind",
		},
		[]string{"stage", "kind"},
	)

	SessionDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "toolscout_session_duration_seconds",
			Help:    "Research session duration in seconds",
			Buckets: []float64{1, 5, 10, 30, 60, 120, 300},
		},
	)

	StageTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "toolscout_stage_transitions_total",
			Help: "Workflow stage transitions",
		},
		[]string{"from", "to"},
	)

	// Provider metrics
	ProviderCalls = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "toolscout_provider_calls_total",
			Help: "Search and scrape calls per provider and outcome",
		},
		[]string{"provider", "op", "outcome"},
	)

	ProviderLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "toolscout_provider_latency_seconds",
			Help:    "Latency of provider calls in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"provider", "op"},
	)

	// Completion service metrics
	LLMCalls = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "toolscout_llm_calls_total",
			Help: "Completion service calls per purpose and outcome",
		},
		[]string{"purpose", "outcome"},
	)

	Retries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "toolscout_retries_total",
			Help: "Retried external calls",
		},
		[]string{"op"},
	)

	// Cache metrics
	CacheLookups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "toolscout_cache_lookups_total",
			Help: "Result cache lookups by result (hit, miss, error)",
		},
		[]string{"op", "result"},
	)
)

// Outcome maps an error to the "outcome" label value.
func Outcome(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
