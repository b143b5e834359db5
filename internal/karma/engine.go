package karma

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/peteonrails/vote-fu/internal/adapter/metrics"
	"github.com/peteonrails/vote-fu/internal/domain"
)

// recentWindow is the lookback used for the recent column of a breakdown.
const recentWindow = 30 * 24 * time.Hour

// Engine computes karma for voters from the vote ledger. It is stateless per
// call; the optional cache only short-circuits full recomputation.
type Engine struct {
	store   domain.VoteStore
	cache   domain.KarmaCache
	clock   clockwork.Clock
	sources []domain.KarmaSource
	levels  []domain.KarmaLevel
	metrics *metrics.KarmaMetrics
}

// NewEngine creates a karma engine over the given ledger. Levels may be nil;
// they are sorted by ascending threshold regardless of declaration order.
func NewEngine(store domain.VoteStore, sources []domain.KarmaSource, levels []domain.KarmaLevel, clock clockwork.Clock) *Engine {
	sorted := make([]domain.KarmaLevel, len(levels))
	copy(sorted, levels)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Threshold < sorted[j].Threshold })

	return &Engine{
		store:   store,
		clock:   clock,
		sources: sources,
		levels:  sorted,
	}
}

// WithCache attaches a karma cache. Cached values are returned as-is unless
// the caller forces recomputation.
func (e *Engine) WithCache(cache domain.KarmaCache) *Engine {
	e.cache = cache
	return e
}

// WithMetrics attaches Prometheus instrumentation.
func (e *Engine) WithMetrics(m *metrics.KarmaMetrics) *Engine {
	e.metrics = m
	return e
}

// Karma returns the voter's total karma: the sum over every configured source
// of weighted up- minus downvotes, rounded to the nearest integer after all
// sources are summed. Fractional per-source values under decay survive into
// the sum; only the total is rounded.
func (e *Engine) Karma(ctx context.Context, voter domain.Voter, force bool) (int64, error) {
	owner, err := e.resolve(voter)
	if err != nil {
		return 0, err
	}

	if e.cache != nil && !force {
		cached, ok, err := e.cache.Get(ctx, owner)
		if err == nil && ok {
			e.countCache(true)
			return cached, nil
		}
		e.countCache(false)
	}

	total, err := e.compute(ctx, owner, time.Time{})
	if err != nil {
		return 0, err
	}
	karma := int64(math.Round(total))

	if e.cache != nil {
		if err := e.cache.Set(ctx, owner, karma); err != nil {
			// The computed value is still good; the next uncached read
			// recomputes.
			slog.Warn("karma cache update failed", "owner", owner.String(), "error", err)
		}
	}
	return karma, nil
}

// KarmaFor returns the voter's karma from a single named source, rounded
// independently. An unknown source name yields 0, not an error.
func (e *Engine) KarmaFor(ctx context.Context, voter domain.Voter, sourceName string) (int64, error) {
	owner, err := e.resolve(voter)
	if err != nil {
		return 0, err
	}
	for _, src := range e.sources {
		if src.Name != sourceName {
			continue
		}
		value, err := e.sourceValue(ctx, owner, src, time.Time{})
		if err != nil {
			return 0, err
		}
		return int64(math.Round(value)), nil
	}
	return 0, nil
}

// Breakdown returns per-source karma rows, each with an all-time value and a
// value restricted to the last 30 days.
func (e *Engine) Breakdown(ctx context.Context, voter domain.Voter) ([]domain.SourceKarma, error) {
	owner, err := e.resolve(voter)
	if err != nil {
		return nil, err
	}

	since := e.clock.Now().Add(-recentWindow)
	rows := make([]domain.SourceKarma, 0, len(e.sources))
	for _, src := range e.sources {
		value, err := e.sourceValue(ctx, owner, src, time.Time{})
		if err != nil {
			return nil, err
		}
		recent, err := e.sourceValue(ctx, owner, src, since)
		if err != nil {
			return nil, err
		}
		rows = append(rows, domain.SourceKarma{
			Source:      src.Name,
			Value:       int64(math.Round(value)),
			RecentValue: int64(math.Round(recent)),
		})
	}
	return rows, nil
}

// RecentKarma returns the voter's karma counting only votes cast within the
// last N days, summed across all sources and rounded once.
func (e *Engine) RecentKarma(ctx context.Context, voter domain.Voter, days int) (int64, error) {
	owner, err := e.resolve(voter)
	if err != nil {
		return 0, err
	}
	since := e.clock.Now().Add(-time.Duration(days) * 24 * time.Hour)
	total, err := e.compute(ctx, owner, since)
	if err != nil {
		return 0, err
	}
	return int64(math.Round(total)), nil
}

func (e *Engine) resolve(voter domain.Voter) (domain.Ref, error) {
	if voter == nil || voter.VoterRef().IsZero() {
		return domain.Ref{}, domain.ErrVoterNotFound
	}
	return voter.VoterRef(), nil
}

// compute sums unrounded source values, optionally restricted to votes cast
// at or after since.
func (e *Engine) compute(ctx context.Context, owner domain.Ref, since time.Time) (float64, error) {
	done := e.observe()
	defer done()

	var total float64
	for _, src := range e.sources {
		value, err := e.sourceValue(ctx, owner, src, since)
		if err != nil {
			return 0, err
		}
		total += value
	}
	return total, nil
}

// sourceValue computes one source's unrounded contribution. Flat sources need
// only counts; decayed sources iterate individual votes because each vote's
// weight depends on its age.
func (e *Engine) sourceValue(ctx context.Context, owner domain.Ref, src domain.KarmaSource, since time.Time) (float64, error) {
	filter := domain.SourceFilter{
		VoteableKind: src.VoteableKind,
		Scope:        src.Scope,
		Since:        since,
	}

	if src.Decay == nil {
		e.countMode(metrics.ModeFlat)
		up, down, err := e.store.CountBySource(ctx, owner, filter)
		if err != nil {
			return 0, fmt.Errorf("counting votes for source %q: %w", src.Name, err)
		}
		return float64(up)*src.PositiveWeight - float64(down)*src.NegativeWeight, nil
	}

	e.countMode(metrics.ModeDecayed)
	votes, err := e.store.ListBySource(ctx, owner, filter)
	if err != nil {
		return 0, fmt.Errorf("listing votes for source %q: %w", src.Name, err)
	}

	now := e.clock.Now()
	var value float64
	for _, vote := range votes {
		factor := src.Decay.Factor(now.Sub(vote.CreatedAt))
		switch domain.DirectionOf(vote.Value) {
		case domain.DirectionUp:
			value += src.PositiveWeight * factor
		case domain.DirectionDown:
			value -= src.NegativeWeight * factor
		}
	}
	return value, nil
}

func (e *Engine) observe() func() {
	if e.metrics == nil {
		return func() {}
	}
	start := e.clock.Now()
	return func() {
		e.metrics.ComputationDuration.Observe(e.clock.Since(start).Seconds())
	}
}

func (e *Engine) countMode(mode string) {
	if e.metrics != nil {
		e.metrics.Computations.WithLabelValues(mode).Inc()
	}
}

func (e *Engine) countCache(hit bool) {
	if e.metrics == nil {
		return
	}
	if hit {
		e.metrics.CacheHits.Inc()
	} else {
		e.metrics.CacheMisses.Inc()
	}
}
