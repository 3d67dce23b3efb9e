package metrics

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	MentionsIngested = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "theorygraph_mentions_ingested_total",
			Help: "Raw mentions processed, by kind and outcome",
		},
		[]string{"kind", "outcome"},
	)

	CanonicalizationTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "theorygraph_canonicalization_total",
			Help: "Name resolutions, by kind and matching method",
		},
		[]string{"kind", "method"},
	)

	AmbiguousMatches = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "theorygraph_ambiguous_matches_total",
			Help: "Resolutions that fell into the indeterminate similarity band",
		},
		[]string{"kind"},
	)

	ConnectionStrength = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "theorygraph_connection_strength",
			Help:    "Computed relationship strength scores",
			Buckets: []float64{0.1, 0.2, 0.3, 0.4, 0.5, 0.6, 0.7, 0.8, 0.9, 1.0},
		},
	)

	ConnectionsCreated = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "theorygraph_connections_created_total",
			Help: "Scored relationships that met the connection threshold",
		},
	)

	ConnectionsSkipped = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "theorygraph_connections_skipped_total",
			Help: "Scored relationships below the connection threshold",
		},
	)

	PapersIngested = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "theorygraph_papers_ingested_total",
			Help: "Papers run through the ingest pipeline",
		},
	)

	IngestDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "theorygraph_ingest_duration_seconds",
			Help:    "Per-paper ingest duration in seconds",
			Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30},
		},
	)

	AggregationDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "theorygraph_aggregation_duration_seconds",
			Help:    "Rollup recomputation duration in seconds",
			Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 30},
		},
	)

	MergesApplied = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "theorygraph_merges_applied_total",
			Help: "Duplicate-entity merges applied, by kind",
		},
		[]string{"kind"},
	)

	MergeConflicts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "theorygraph_merge_conflicts_total",
			Help: "Merges rolled back because the graph changed after planning",
		},
		[]string{"kind"},
	)

	GraphOperations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "theorygraph_graph_operations_total",
			Help: "Graph store operations, by operation and status",
		},
		[]string{"operation", "status"},
	)

	CacheHits = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "theorygraph_cache_hits_total",
			Help: "Total cache hits",
		},
		[]string{"cache_type"},
	)

	CacheMisses = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "theorygraph_cache_misses_total",
			Help: "Total cache misses",
		},
		[]string{"cache_type"},
	)

	EntitiesKnown = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "theorygraph_entities_known",
			Help: "Canonical entities in the graph, by kind",
		},
		[]string{"kind"},
	)
)

func Init() {
	prometheus.MustRegister(MentionsIngested)
	prometheus.MustRegister(CanonicalizationTotal)
	prometheus.MustRegister(AmbiguousMatches)
	prometheus.MustRegister(ConnectionStrength)
	prometheus.MustRegister(ConnectionsCreated)
	prometheus.MustRegister(ConnectionsSkipped)
	prometheus.MustRegister(PapersIngested)
	prometheus.MustRegister(IngestDuration)
	prometheus.MustRegister(AggregationDuration)
	prometheus.MustRegister(MergesApplied)
	prometheus.MustRegister(MergeConflicts)
	prometheus.MustRegister(GraphOperations)
	prometheus.MustRegister(CacheHits)
	prometheus.MustRegister(CacheMisses)
	prometheus.MustRegister(EntitiesKnown)
}

func MetricsHandler() fiber.Handler {
	return adaptor.HTTPHandler(promhttp.Handler())
}
