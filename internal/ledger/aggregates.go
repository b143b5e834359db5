package ledger

import (
	"context"
	"fmt"
	"time"

	"github.com/peteonrails/vote-fu/internal/domain"
	"github.com/peteonrails/vote-fu/internal/ranking"
)

// Tally returns the aggregate for one (voteable, scope) partition, served
// from the counter cache when enabled and by live aggregation otherwise.
func (s *Service) Tally(ctx context.Context, voteable domain.Voteable, scope string) (domain.Tally, error) {
	ref := voteable.VoteableRef()
	if s.cached() {
		return s.tallies.Get(ctx, ref, scope)
	}
	return s.store.Aggregate(ctx, ref, scope)
}

// VotesFor returns the number of upvotes.
func (s *Service) VotesFor(ctx context.Context, voteable domain.Voteable, scope string) (int64, error) {
	t, err := s.Tally(ctx, voteable, scope)
	return t.Up, err
}

// VotesAgainst returns the number of downvotes.
func (s *Service) VotesAgainst(ctx context.Context, voteable domain.Voteable, scope string) (int64, error) {
	t, err := s.Tally(ctx, voteable, scope)
	return t.Down, err
}

// VotesCount returns the total number of votes, neutral ones included.
func (s *Service) VotesCount(ctx context.Context, voteable domain.Voteable, scope string) (int64, error) {
	t, err := s.Tally(ctx, voteable, scope)
	return t.Count, err
}

// VotesTotal returns the sum of all vote values.
func (s *Service) VotesTotal(ctx context.Context, voteable domain.Voteable, scope string) (int64, error) {
	t, err := s.Tally(ctx, voteable, scope)
	return t.Total, err
}

// Plusminus returns the net signed total across every scope of the
// voteable. It always aggregates from the ledger: the counter cache is
// partitioned by scope and cannot enumerate partitions.
func (s *Service) Plusminus(ctx context.Context, voteable domain.Voteable) (int64, error) {
	t, err := s.store.AggregateAll(ctx, voteable.VoteableRef())
	return t.Plusminus(), err
}

// PercentFor returns the upvote share in percent, one decimal.
func (s *Service) PercentFor(ctx context.Context, voteable domain.Voteable, scope string) (float64, error) {
	t, err := s.Tally(ctx, voteable, scope)
	return t.PercentFor(), err
}

// PercentAgainst returns the downvote share in percent, one decimal.
func (s *Service) PercentAgainst(ctx context.Context, voteable domain.Voteable, scope string) (float64, error) {
	t, err := s.Tally(ctx, voteable, scope)
	return t.PercentAgainst(), err
}

// --- Ranking entry points ---

// WilsonScore ranks the voteable by the Wilson lower bound at the given
// confidence level; confidence 0 uses the configured default.
func (s *Service) WilsonScore(ctx context.Context, voteable domain.Voteable, scope string, confidence float64) (float64, error) {
	if confidence == 0 {
		confidence = s.opts.WilsonConfidence
	}
	t, err := s.Tally(ctx, voteable, scope)
	if err != nil {
		return 0, err
	}
	return ranking.WilsonScore(t.Up, t.Count, confidence), nil
}

// HotScore ranks the voteable by the Reddit Hot algorithm. The voteable
// must expose a creation time.
func (s *Service) HotScore(ctx context.Context, voteable domain.Voteable) (float64, error) {
	createdAt, err := creationTime(voteable)
	if err != nil {
		return 0, err
	}
	plusminus, err := s.Plusminus(ctx, voteable)
	if err != nil {
		return 0, err
	}
	return ranking.HotScore(plusminus, createdAt), nil
}

// HackerNewsScore ranks the voteable by the Hacker News algorithm with the
// configured gravity. The voteable must expose a creation time.
func (s *Service) HackerNewsScore(ctx context.Context, voteable domain.Voteable) (float64, error) {
	createdAt, err := creationTime(voteable)
	if err != nil {
		return 0, err
	}
	plusminus, err := s.Plusminus(ctx, voteable)
	if err != nil {
		return 0, err
	}
	return ranking.HackerNewsScore(plusminus, createdAt, s.clock.Now(), s.opts.HotGravity), nil
}

// Score ranks the voteable with the configured default algorithm.
func (s *Service) Score(ctx context.Context, voteable domain.Voteable, scope string) (float64, error) {
	switch s.opts.DefaultRanking {
	case domain.RankingRedditHot:
		return s.HotScore(ctx, voteable)
	case domain.RankingHackerNews:
		return s.HackerNewsScore(ctx, voteable)
	case domain.RankingWilson, "":
		return s.WilsonScore(ctx, voteable, scope, 0)
	default:
		return 0, fmt.Errorf("unknown ranking algorithm %q", s.opts.DefaultRanking)
	}
}

func creationTime(voteable domain.Voteable) (t time.Time, err error) {
	timed, ok := voteable.(domain.Timestamped)
	if !ok {
		return t, domain.ErrNoCreationTime
	}
	return timed.CreationTime(), nil
}
