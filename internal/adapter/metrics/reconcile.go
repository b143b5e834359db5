package metrics

import "github.com/prometheus/client_golang/prometheus"

// ReconcileMetrics holds Prometheus metrics for counter cache reconciliation.
type ReconcileMetrics struct {
	Runs          prometheus.Counter
	DriftDetected prometheus.Counter
	DriftRepaired prometheus.Counter
	RunDuration   prometheus.Histogram
}

// NewReconcileMetrics creates and registers reconciliation metrics on the
// given registry.
func NewReconcileMetrics(reg prometheus.Registerer) *ReconcileMetrics {
	m := &ReconcileMetrics{
		Runs: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reconcile_runs_total",
			Help:      "Total number of reconciliation sweeps.",
		}),
		DriftDetected: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reconcile_drift_detected_total",
			Help:      "Partitions whose cached tally disagreed with the ledger.",
		}),
		DriftRepaired: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reconcile_drift_repaired_total",
			Help:      "Partitions whose cached tally was repaired from the ledger.",
		}),
		RunDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "reconcile_run_duration_seconds",
			Help:      "Duration of reconciliation sweeps in seconds.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1.0, 5.0, 30.0},
		}),
	}

	reg.MustRegister(m.Runs, m.DriftDetected, m.DriftRepaired, m.RunDuration)
	return m
}
