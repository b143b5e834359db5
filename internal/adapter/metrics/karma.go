package metrics

import "github.com/prometheus/client_golang/prometheus"

// KarmaMetrics holds Prometheus metrics for karma computation.
type KarmaMetrics struct {
	Computations        *prometheus.CounterVec
	ComputationDuration prometheus.Histogram
	CacheHits           prometheus.Counter
	CacheMisses         prometheus.Counter
}

// NewKarmaMetrics creates and registers karma metrics on the given registry.
func NewKarmaMetrics(reg prometheus.Registerer) *KarmaMetrics {
	m := &KarmaMetrics{
		Computations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "karma_computations_total",
			Help:      "Total number of karma recomputations, by mode.",
		}, []string{"mode"}),
		ComputationDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "karma_computation_duration_seconds",
			Help:      "Duration of karma recomputations in seconds.",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1.0, 5.0},
		}),
		CacheHits: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "karma_cache_hits_total",
			Help:      "Karma reads served from cache.",
		}),
		CacheMisses: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "karma_cache_misses_total",
			Help:      "Karma reads that required recomputation.",
		}),
	}

	reg.MustRegister(m.Computations, m.ComputationDuration, m.CacheHits, m.CacheMisses)
	return m
}

// Modes for the Computations counter.
const (
	ModeFlat    = "flat"
	ModeDecayed = "decayed"
)
