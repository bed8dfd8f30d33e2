package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Tool metrics
	ToolCalls = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "research_tool_calls_total",
			Help: "Total number of tool invocations",
		},
		[]string{"tool", "outcome"},
	)

	ToolDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "research_tool_duration_seconds",
			Help:    "Tool invocation duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"tool"},
	)

	SearchCacheLookups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "research_search_cache_lookups_total",
			Help: "Search cache lookups by result",
		},
		[]string{"result"},
	)

	// Run metrics
	RunsCompleted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "research_runs_total",
			Help: "Total number of research runs by stop reason",
		},
		[]string{"stop_reason", "complete"},
	)

	RunIterations = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "research_run_iterations",
			Help:    "Iterations used per research run",
			Buckets: []float64{1, 2, 4, 8, 12, 16, 25, 50},
		},
	)

	RunQuality = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "research_quality_score",
			Help:    "Final quality score per research run",
			Buckets: []float64{0.1, 0.2, 0.3, 0.4, 0.5, 0.6, 0.7, 0.8, 0.9, 1},
		},
	)

	ValidationPasses = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "research_validation_passes_total",
			Help: "Content validation passes by outcome",
		},
		[]string{"outcome"},
	)
)

// Outcome maps a success flag to a metric label.
func Outcome(ok bool) string {
	if ok {
		return "success"
	}
	return "failure"
}
