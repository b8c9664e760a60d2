package metrics

import "github.com/prometheus/client_golang/prometheus"

// Retrieval and completion Prometheus metrics.
var (
	RetrievalDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "retrieval_duration_seconds",
			Help:      "Query embedding plus index search duration in seconds",
			Buckets:   []float64{0.0005, 0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		},
		[]string{"status"},
	)

	RetrievalResults = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "retrieval_results",
			Help:      "Number of catalog records returned per retrieval",
			Buckets:   []float64{0, 1, 2, 3, 5, 10, 20, 50},
		},
	)

	RetrievalFailuresTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "retrieval_failures_total",
			Help:      "Failed retrievals by reason",
		},
		[]string{"reason"},
	)

	CatalogRecords = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "catalog_records",
			Help:      "Number of records in the published catalog index",
		},
	)

	CatalogReloadsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "catalog_reloads_total",
			Help:      "Catalog index rebuilds",
		},
		[]string{"status"},
	)

	CompletionStreamsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "completion_streams_total",
			Help:      "Chat completion streams by outcome",
		},
		[]string{"model", "status"},
	)

	CompletionFragmentsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "completion_fragments_total",
			Help:      "Text fragments forwarded to the caller",
		},
		[]string{"model"},
	)
)

var retrievalMetricsRegistered bool

// RegisterRetrievalMetrics registers retrieval, catalog and completion metrics. Must be called once from main.
func RegisterRetrievalMetrics() {
	if retrievalMetricsRegistered {
		return
	}
	prometheus.MustRegister(RetrievalDuration)
	prometheus.MustRegister(RetrievalResults)
	prometheus.MustRegister(RetrievalFailuresTotal)
	prometheus.MustRegister(CatalogRecords)
	prometheus.MustRegister(CatalogReloadsTotal)
	prometheus.MustRegister(CompletionStreamsTotal)
	prometheus.MustRegister(CompletionFragmentsTotal)
	retrievalMetricsRegistered = true
}
