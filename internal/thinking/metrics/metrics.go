package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// GenerationCalls tracks upstream generation calls per endpoint
	GenerationCalls = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mils_generation_calls_total",
			Help: "Total number of upstream generation calls",
		},
		[]string{"endpoint"},
	)

	// GenerationErrors tracks upstream failures per endpoint and kind
	GenerationErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mils_generation_errors_total",
			Help: "Total number of upstream generation errors",
		},
		[]string{"endpoint", "kind"},
	)

	// GenerationLatency tracks upstream call latency
	GenerationLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "mils_generation_latency_seconds",
			Help:    "Upstream generation call latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"endpoint"},
	)

	// BreakerTransitions tracks circuit breaker state changes
	BreakerTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mils_breaker_transitions_total",
			Help: "Total number of circuit breaker state transitions",
		},
		[]string{"endpoint", "state"},
	)

	// BreakerRefusals tracks calls refused without a network attempt
	BreakerRefusals = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mils_breaker_refusals_total",
			Help: "Total number of calls refused by an open breaker",
		},
		[]string{"endpoint"},
	)

	// CacheHits tracks cache hits per backend
	CacheHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mils_cache_hits_total",
			Help: "Total number of cache hits",
		},
		[]string{"backend"},
	)

	// CacheMisses tracks cache misses per backend
	CacheMisses = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mils_cache_misses_total",
			Help: "Total number of cache misses",
		},
		[]string{"backend"},
	)

	// CacheEvictions tracks LRU evictions
	CacheEvictions = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "mils_cache_evictions_total",
			Help: "Total number of cache entries evicted",
		},
	)

	// CacheSharedComputes tracks callers that joined an in-flight computation
	CacheSharedComputes = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "mils_cache_shared_computes_total",
			Help: "Total number of callers served by a deduplicated computation",
		},
	)

	// HedgesLaunched tracks duplicate attempts issued after the hedge delay
	HedgesLaunched = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mils_hedges_launched_total",
			Help: "Total number of hedged duplicate attempts launched",
		},
		[]string{"endpoint"},
	)

	// HedgeWins tracks which attempt won a hedge batch
	HedgeWins = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mils_hedge_wins_total",
			Help: "Total number of hedge batches won, by winner",
		},
		[]string{"endpoint", "winner"},
	)

	// RoundsCompleted tracks thinking rounds per terminal outcome
	RoundsCompleted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mils_rounds_completed_total",
			Help: "Total number of thinking rounds completed",
		},
		[]string{"outcome"},
	)

	// RoundScore tracks selected candidate scores
	RoundScore = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "mils_round_score",
			Help:    "Quality score of each round's selected candidate",
			Buckets: prometheus.LinearBuckets(0, 0.1, 11),
		},
	)
)
