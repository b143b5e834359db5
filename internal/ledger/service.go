package ledger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"github.com/peteonrails/vote-fu/internal/adapter/metrics"
	"github.com/peteonrails/vote-fu/internal/domain"
)

// Service is the vote ledger engine.
type Service struct {
	store   domain.VoteStore
	tallies domain.TallyStore
	events  domain.EventPublisher
	opts    domain.Options
	clock   clockwork.Clock
	metrics *metrics.VoteMetrics // nil disables instrumentation
}

// NewService creates a ledger engine. The tally store may be nil when
// Options.CounterCache is disabled; events may be domain.NoopPublisher.
func NewService(store domain.VoteStore, tallies domain.TallyStore, events domain.EventPublisher, opts domain.Options, clock clockwork.Clock) *Service {
	if events == nil {
		events = domain.NoopPublisher{}
	}
	return &Service{
		store:   store,
		tallies: tallies,
		events:  events,
		opts:    opts,
		clock:   clock,
	}
}

// WithMetrics attaches ledger instrumentation.
func (s *Service) WithMetrics(m *metrics.VoteMetrics) *Service {
	s.metrics = m
	return s
}

// Options returns the configuration the engine was constructed with.
func (s *Service) Options() domain.Options {
	return s.opts
}

func (s *Service) cached() bool {
	return s.opts.CounterCache && s.tallies != nil
}

// CastVote records a vote by voter on voteable within scope. With recast
// enabled an existing vote's value is updated in place; otherwise a second
// cast on the same key fails with domain.ErrAlreadyVoted. With duplicates
// enabled every cast inserts a fresh row.
func (s *Service) CastVote(ctx context.Context, voter domain.Voter, voteable domain.Voteable, value int64, scope string) (*domain.Vote, error) {
	done := s.observe()
	defer done()

	voterRef, voteableRef, err := s.resolve(voter, voteable)
	if err != nil {
		s.count(metrics.ResultRejected)
		return nil, err
	}

	if !s.opts.AllowSelfVote && voterRef.Equal(voteableRef) {
		s.count(metrics.ResultRejected)
		return nil, domain.ErrSelfVote
	}

	if s.opts.AllowDuplicateVotes {
		castSeq := s.clock.Now().UnixNano()
		for {
			vote, err := s.insert(ctx, voter, voteable, value, scope, castSeq)
			if !errors.Is(err, domain.ErrAlreadyVoted) {
				return vote, err
			}
			// Same-instant cast collided on the discriminator. Bump past
			// the taken seq; the later cast keeps the higher seq and
			// stays the newest for Find.
			castSeq++
		}
	}

	key := domain.Key{Voter: voterRef, Voteable: voteableRef, Scope: scope}
	existing, err := s.store.Find(ctx, key)
	if err != nil {
		s.count(metrics.ResultError)
		return nil, fmt.Errorf("find existing vote: %w", err)
	}
	if existing != nil {
		return s.recast(ctx, existing, value)
	}

	vote, err := s.insert(ctx, voter, voteable, value, scope, 0)
	if errors.Is(err, domain.ErrAlreadyVoted) && s.opts.AllowRecast {
		// Lost a create race; the surviving row takes the recast.
		existing, ferr := s.store.Find(ctx, key)
		if ferr != nil || existing == nil {
			return nil, err
		}
		return s.recast(ctx, existing, value)
	}
	return vote, err
}

func (s *Service) insert(ctx context.Context, voter domain.Voter, voteable domain.Voteable, value int64, scope string, castSeq int64) (*domain.Vote, error) {
	now := s.clock.Now()
	vote := &domain.Vote{
		ID:        uuid.New(),
		Voter:     voter.VoterRef(),
		Voteable:  voteable.VoteableRef(),
		Value:     value,
		Scope:     scope,
		CastSeq:   castSeq,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if owned, ok := voteable.(domain.Owned); ok {
		vote.Owner = owned.OwnerRef()
	}

	if err := s.store.Create(ctx, vote); err != nil {
		if errors.Is(err, domain.ErrAlreadyVoted) {
			s.count(metrics.ResultRejected)
			return nil, err
		}
		s.count(metrics.ResultError)
		return nil, fmt.Errorf("create vote: %w", err)
	}

	tally := s.applyDelta(ctx, vote.Voteable, vote.Scope, domain.CreateDelta(value))
	s.publish(ctx, domain.VoteCreated, vote, tally)

	s.count(metrics.ResultCreated)
	s.countDirection(vote.Direction())
	return vote, nil
}

func (s *Service) recast(ctx context.Context, existing *domain.Vote, value int64) (*domain.Vote, error) {
	if !s.opts.AllowRecast {
		s.count(metrics.ResultRejected)
		return nil, domain.ErrAlreadyVoted
	}

	oldValue := existing.Value
	now := s.clock.Now()
	if err := s.store.UpdateValue(ctx, existing.ID, value, now); err != nil {
		s.count(metrics.ResultError)
		return nil, fmt.Errorf("recast vote: %w", err)
	}
	existing.Value = value
	existing.UpdatedAt = now

	tally := s.applyDelta(ctx, existing.Voteable, existing.Scope, domain.UpdateDelta(oldValue, value))
	s.publish(ctx, domain.VoteUpdated, existing, tally)

	s.count(metrics.ResultRecast)
	s.countDirection(existing.Direction())
	return existing, nil
}

// RemoveVote deletes the voter's vote on voteable within scope and returns
// it. A missing vote is a no-op, not an error: the result is (nil, nil).
func (s *Service) RemoveVote(ctx context.Context, voter domain.Voter, voteable domain.Voteable, scope string) (*domain.Vote, error) {
	done := s.observe()
	defer done()

	voterRef, voteableRef, err := s.resolve(voter, voteable)
	if err != nil {
		return nil, err
	}

	vote, err := s.store.Find(ctx, domain.Key{Voter: voterRef, Voteable: voteableRef, Scope: scope})
	if err != nil {
		s.count(metrics.ResultError)
		return nil, fmt.Errorf("find vote: %w", err)
	}
	if vote == nil {
		return nil, nil
	}

	if err := s.store.Delete(ctx, vote.ID); err != nil {
		s.count(metrics.ResultError)
		return nil, fmt.Errorf("delete vote: %w", err)
	}

	tally := s.applyDelta(ctx, vote.Voteable, vote.Scope, domain.DeleteDelta(vote.Value))
	s.publish(ctx, domain.VoteRemoved, vote, tally)

	s.count(metrics.ResultRemoved)
	return vote, nil
}

// ToggleVote removes an existing vote, or casts an upvote when none exists.
// The returned vote is nil when the toggle removed one.
func (s *Service) ToggleVote(ctx context.Context, voter domain.Voter, voteable domain.Voteable, scope string) (*domain.Vote, error) {
	voterRef, voteableRef, err := s.resolve(voter, voteable)
	if err != nil {
		return nil, err
	}

	existing, err := s.store.Find(ctx, domain.Key{Voter: voterRef, Voteable: voteableRef, Scope: scope})
	if err != nil {
		return nil, fmt.Errorf("find vote: %w", err)
	}
	if existing != nil {
		if _, err := s.RemoveVote(ctx, voter, voteable, scope); err != nil {
			return nil, err
		}
		return nil, nil
	}
	return s.CastVote(ctx, voter, voteable, 1, scope)
}

// FindVote returns the voter's vote on voteable within scope, or (nil, nil).
func (s *Service) FindVote(ctx context.Context, voter domain.Voter, voteable domain.Voteable, scope string) (*domain.Vote, error) {
	voterRef, voteableRef, err := s.resolve(voter, voteable)
	if err != nil {
		return nil, err
	}
	return s.store.Find(ctx, domain.Key{Voter: voterRef, Voteable: voteableRef, Scope: scope})
}

func (s *Service) resolve(voter domain.Voter, voteable domain.Voteable) (domain.Ref, domain.Ref, error) {
	if voter == nil || voter.VoterRef().IsZero() {
		return domain.Ref{}, domain.Ref{}, domain.ErrVoterNotFound
	}
	if voteable == nil || voteable.VoteableRef().IsZero() {
		return domain.Ref{}, domain.Ref{}, domain.ErrVoteableNotFound
	}
	return voter.VoterRef(), voteable.VoteableRef(), nil
}

// applyDelta keeps the counter cache in step with a ledger mutation and
// returns the tally to include in the event snapshot. Cache failures are
// logged, not fatal: the reconciler repairs drift from the ledger.
func (s *Service) applyDelta(ctx context.Context, voteable domain.Ref, scope string, delta domain.TallyDelta) domain.Tally {
	if s.cached() {
		tally, err := s.tallies.ApplyDelta(ctx, voteable, scope, delta)
		if err == nil {
			return tally
		}
		slog.Warn("counter cache update failed", "voteable", voteable.String(), "scope", scope, "error", err)
	}

	tally, err := s.store.Aggregate(ctx, voteable, scope)
	if err != nil {
		slog.Warn("live aggregation failed", "voteable", voteable.String(), "scope", scope, "error", err)
		return domain.Tally{}
	}
	return tally
}

func (s *Service) publish(ctx context.Context, typ domain.VoteEventType, vote *domain.Vote, tally domain.Tally) {
	event := domain.VoteEvent{Type: typ, Vote: *vote, Tally: tally, At: s.clock.Now()}
	if err := s.events.PublishVoteEvent(ctx, event); err != nil {
		slog.Warn("vote event publish failed", "type", string(typ), "voteable", vote.Voteable.String(), "error", err)
	}
}

// --- instrumentation ---

func (s *Service) observe() func() {
	if s.metrics == nil {
		return func() {}
	}
	start := s.clock.Now()
	return func() {
		s.metrics.ProcessingDuration.Observe(s.clock.Since(start).Seconds())
	}
}

func (s *Service) count(result string) {
	if s.metrics != nil {
		s.metrics.VotesProcessed.WithLabelValues(result).Inc()
	}
}

func (s *Service) countDirection(d domain.Direction) {
	if s.metrics != nil {
		s.metrics.VotesByDirection.WithLabelValues(d.String()).Inc()
	}
}
