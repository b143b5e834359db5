// Package reconcile repairs drift between the counter cache and the vote
// ledger. The ledger is the source of truth; cached tallies are incrementally
// maintained and can drift after partial failures, so a periodic sweep
// recomputes each partition and overwrites mismatches.
package reconcile

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/peteonrails/vote-fu/internal/adapter/metrics"
	"github.com/peteonrails/vote-fu/internal/domain"
	"github.com/peteonrails/vote-fu/internal/platform/retry"
)

// DefaultInterval is the sweep period when none is configured.
const DefaultInterval = 5 * time.Minute

// LeaderElector gates the sweep so only one instance reconciles at a time.
type LeaderElector interface {
	Acquire(ctx context.Context) (bool, error)
}

// Reconciler periodically checks every counter partition against the ledger
// and repairs mismatches.
type Reconciler struct {
	store    domain.VoteStore
	tallies  domain.TallyStore
	interval time.Duration
	clock    clockwork.Clock
	metrics  *metrics.ReconcileMetrics
	leader   LeaderElector
	stopCh   chan struct{}
}

// NewReconciler creates a reconciliation background job. A non-positive
// interval falls back to DefaultInterval.
func NewReconciler(store domain.VoteStore, tallies domain.TallyStore, interval time.Duration, clock clockwork.Clock) *Reconciler {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Reconciler{
		store:    store,
		tallies:  tallies,
		interval: interval,
		clock:    clock,
		stopCh:   make(chan struct{}),
	}
}

// WithMetrics attaches Prometheus instrumentation.
func (r *Reconciler) WithMetrics(m *metrics.ReconcileMetrics) *Reconciler {
	r.metrics = m
	return r
}

// WithLeader restricts sweeping to the instance holding the leader lease.
// Without an elector every instance sweeps independently.
func (r *Reconciler) WithLeader(leader LeaderElector) *Reconciler {
	r.leader = leader
	return r
}

// Start runs the reconciliation loop until Stop is called.
func (r *Reconciler) Start(ctx context.Context) {
	ticker := r.clock.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.Chan():
			if !r.isLeader(ctx) {
				continue
			}
			if _, err := r.Reconcile(ctx); err != nil {
				slog.Error("Tally reconciliation failed", "error", err)
			}
		case <-r.stopCh:
			slog.Info("Tally reconciler stopped")
			return
		case <-ctx.Done():
			slog.Info("Tally reconciler context cancelled")
			return
		}
	}
}

// Stop gracefully stops the reconciliation loop.
func (r *Reconciler) Stop() {
	close(r.stopCh)
}

func (r *Reconciler) isLeader(ctx context.Context) bool {
	if r.leader == nil {
		return true
	}
	ok, err := r.leader.Acquire(ctx)
	if err != nil {
		slog.Warn("Leader election check failed, skipping sweep", "error", err)
		return false
	}
	if !ok {
		slog.Debug("Not the reconciliation leader, skipping sweep")
	}
	return ok
}

// Reconcile sweeps every partition once and returns how many it repaired.
func (r *Reconciler) Reconcile(ctx context.Context) (repaired int, err error) {
	if r.metrics != nil {
		r.metrics.Runs.Inc()
		start := r.clock.Now()
		defer func() {
			r.metrics.RunDuration.Observe(r.clock.Since(start).Seconds())
		}()
	}

	partitions, err := r.store.ListPartitions(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to list partitions: %w", err)
	}

	for _, p := range partitions {
		cached, err := r.tallies.Get(ctx, p.Voteable, p.Scope)
		if err != nil {
			slog.Warn("Failed to read cached tally during reconciliation",
				"voteable", p.Voteable,
				"scope", p.Scope,
				"error", err)
			continue
		}

		live, err := r.store.Aggregate(ctx, p.Voteable, p.Scope)
		if err != nil {
			slog.Warn("Failed to aggregate ledger during reconciliation",
				"voteable", p.Voteable,
				"scope", p.Scope,
				"error", err)
			continue
		}

		if cached == live {
			continue
		}

		slog.Warn("Tally drift detected during reconciliation",
			"voteable", p.Voteable,
			"scope", p.Scope,
			"cached", cached,
			"live", live)
		if r.metrics != nil {
			r.metrics.DriftDetected.Inc()
		}

		if err := r.repair(ctx, p, live); err != nil {
			slog.Error("Failed to repair tally drift",
				"voteable", p.Voteable,
				"scope", p.Scope,
				"error", err)
			continue
		}

		slog.Info("Tally drift repaired",
			"voteable", p.Voteable,
			"scope", p.Scope,
			"tally", live)
		if r.metrics != nil {
			r.metrics.DriftRepaired.Inc()
		}
		repaired++
	}

	return repaired, nil
}

// repair overwrites the cached tally, retrying transient cache failures.
func (r *Reconciler) repair(ctx context.Context, p domain.Partition, live domain.Tally) error {
	policy := retry.Policy{
		MaxAttempts:    3,
		InitialBackoff: 100 * time.Millisecond,
	}
	classify := func(error) retry.Action { return retry.Retry }

	return retry.DoVoid(ctx, policy, classify, func() error {
		return r.tallies.Set(ctx, p.Voteable, p.Scope, live)
	})
}
