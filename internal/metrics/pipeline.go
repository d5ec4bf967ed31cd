package metrics

import "github.com/prometheus/client_golang/prometheus"

// Batch pipeline and search Prometheus metrics.
var (
	BatchItemsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "docvec",
			Name:      "batch_items_total",
			Help:      "Batch items processed by outcome",
		},
		[]string{"status", "error_kind"},
	)

	BatchDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "docvec",
			Name:      "batch_duration_seconds",
			Help:      "Wall time of a batch embedding run",
			Buckets:   prometheus.ExponentialBuckets(0.5, 2, 12),
		},
	)

	SearchRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "docvec",
			Name:      "search_requests_total",
			Help:      "Vector searches by strategy and outcome",
		},
		[]string{"strategy", "status"},
	)

	SearchDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "docvec",
			Name:      "search_duration_seconds",
			Help:      "Vector search duration in seconds, embedding included",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		},
		[]string{"strategy"},
	)

	SearchResults = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "docvec",
			Name:      "search_results",
			Help:      "Results returned per search",
			Buckets:   []float64{0, 1, 5, 10, 25, 50, 100},
		},
		[]string{"strategy"},
	)
)

var pipelineMetricsRegistered bool

// RegisterPipelineMetrics registers batch and search metrics. Must be called once from main.
func RegisterPipelineMetrics() {
	if pipelineMetricsRegistered {
		return
	}
	prometheus.MustRegister(BatchItemsTotal)
	prometheus.MustRegister(BatchDuration)
	prometheus.MustRegister(SearchRequestsTotal)
	prometheus.MustRegister(SearchDuration)
	prometheus.MustRegister(SearchResults)
	pipelineMetricsRegistered = true
}
