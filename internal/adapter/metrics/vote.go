package metrics

import "github.com/prometheus/client_golang/prometheus"

// VoteMetrics holds Prometheus metrics for the vote ledger.
type VoteMetrics struct {
	VotesProcessed     *prometheus.CounterVec
	ProcessingDuration prometheus.Histogram
	VotesByDirection   *prometheus.CounterVec
}

// NewVoteMetrics creates and registers ledger metrics on the given registry.
func NewVoteMetrics(reg prometheus.Registerer) *VoteMetrics {
	m := &VoteMetrics{
		VotesProcessed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "votes_processed_total",
			Help:      "Total number of ledger mutations, by result.",
		}, []string{"result"}),
		ProcessingDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "votes_processing_duration_seconds",
			Help:      "Duration of ledger mutations in seconds.",
			Buckets:   []float64{0.0005, 0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0},
		}),
		VotesByDirection: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "votes_by_direction_total",
			Help:      "Total number of cast votes, by direction.",
		}, []string{"direction"}),
	}

	reg.MustRegister(m.VotesProcessed, m.ProcessingDuration, m.VotesByDirection)
	return m
}

// Results for the VotesProcessed counter.
const (
	ResultCreated  = "created"
	ResultRecast   = "recast"
	ResultRemoved  = "removed"
	ResultRejected = "rejected"
	ResultError    = "error"
)
