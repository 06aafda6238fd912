package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Quote pipeline
	QuoteRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "splitrouter_quote_requests_total",
			Help: "Total number of routing requests",
		},
		[]string{"trade_type", "status"},
	)

	QuoteDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "splitrouter_quote_duration_seconds",
			Help:    "End to end routing duration in seconds",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		},
		[]string{"trade_type"},
	)

	CandidatePools = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "splitrouter_candidate_pools",
			Help:    "Pools kept by pool selection per request",
			Buckets: []float64{1, 2, 5, 10, 20, 50, 100},
		},
		[]string{"protocol"},
	)

	RoutesEnumerated = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "splitrouter_routes_enumerated",
			Help:    "Routes produced by route enumeration per request",
			Buckets: []float64{0, 1, 2, 5, 10, 20, 50, 100, 200},
		},
		[]string{"protocol"},
	)

	QuotesDropped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "splitrouter_quotes_dropped_total",
			Help: "Route/bucket quotes dropped from the candidate set",
		},
		[]string{"protocol", "reason"},
	)

	QuotingIncomplete = promauto.NewCounter(prometheus.CounterOpts{
		Name: "splitrouter_quoting_incomplete_total",
		Help: "Requests answered from a partial quote set",
	})

	RouteCacheHits = promauto.NewCounter(prometheus.CounterOpts{
		Name: "splitrouter_route_cache_hits_total",
		Help: "Total number of candidate route cache hits",
	})

	RouteCacheMisses = promauto.NewCounter(prometheus.CounterOpts{
		Name: "splitrouter_route_cache_misses_total",
		Help: "Total number of candidate route cache misses",
	})

	PoolFetchDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "splitrouter_pool_fetch_duration_seconds",
			Help:    "Pool provider fetch duration in seconds",
			Buckets: []float64{0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5},
		},
		[]string{"protocol"},
	)

	// Optimizer
	OptimizerDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "splitrouter_optimizer_duration_seconds",
			Help:    "Split search duration in seconds by split count",
			Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5},
		},
		[]string{"splits"},
	)

	OptimizerCombinations = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "splitrouter_optimizer_combinations",
		Help:    "Complete route combinations scored per search",
		Buckets: []float64{1, 10, 100, 1000, 10000, 100000, 1000000},
	})

	PlanSplits = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "splitrouter_plan_splits",
		Help:    "Number of routes in the chosen plan",
		Buckets: []float64{1, 2, 3, 4, 5, 6, 7},
	})

	PriceImpact = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "splitrouter_price_impact_bps",
			Help:    "Price impact in basis points",
			Buckets: []float64{0, 10, 50, 100, 300, 500, 1000, 5000, 10000},
		},
		[]string{"severity"},
	)

	// Snapshots
	SnapshotSaves = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "splitrouter_snapshot_saves_total",
			Help: "Quote snapshots written to the store",
		},
		[]string{"status"},
	)

	// HTTP metrics
	HTTPRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "splitrouter_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "splitrouter_http_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)
)
