package ledger

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/peteonrails/vote-fu/internal/domain"
)

type partitionKey struct {
	Voteable domain.Ref
	Scope    string
}

type memoryKey struct {
	domain.Key
	CastSeq int64
}

// MemoryStore is an in-memory VoteStore plus TallyStore for single-instance
// mode and tests. It enforces the same (voter, voteable, scope, cast_seq)
// uniqueness key as the SQL schema, under one mutex.
type MemoryStore struct {
	mu      sync.Mutex
	votes   map[uuid.UUID]domain.Vote
	byKey   map[memoryKey]uuid.UUID
	tallies map[partitionKey]domain.Tally
}

var (
	_ domain.VoteStore  = (*MemoryStore)(nil)
	_ domain.TallyStore = (*MemoryStore)(nil)
)

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		votes:   make(map[uuid.UUID]domain.Vote),
		byKey:   make(map[memoryKey]uuid.UUID),
		tallies: make(map[partitionKey]domain.Tally),
	}
}

func (s *MemoryStore) Create(_ context.Context, vote *domain.Vote) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := memoryKey{Key: vote.Key(), CastSeq: vote.CastSeq}
	if _, exists := s.byKey[key]; exists {
		return domain.ErrAlreadyVoted
	}
	s.votes[vote.ID] = *vote
	s.byKey[key] = vote.ID
	return nil
}

func (s *MemoryStore) UpdateValue(_ context.Context, id uuid.UUID, value int64, updatedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	vote, ok := s.votes[id]
	if !ok {
		return domain.ErrVoteableNotFound
	}
	vote.Value = value
	vote.UpdatedAt = updatedAt
	s.votes[id] = vote
	return nil
}

func (s *MemoryStore) Delete(_ context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	vote, ok := s.votes[id]
	if !ok {
		return nil
	}
	delete(s.byKey, memoryKey{Key: vote.Key(), CastSeq: vote.CastSeq})
	delete(s.votes, id)
	return nil
}

func (s *MemoryStore) Find(_ context.Context, key domain.Key) (*domain.Vote, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	// Unique mode stores cast_seq 0; with duplicates the newest row wins.
	if id, ok := s.byKey[memoryKey{Key: key}]; ok {
		vote := s.votes[id]
		return &vote, nil
	}

	var newest *domain.Vote
	for id := range s.votes {
		vote := s.votes[id]
		if vote.Key() == key && (newest == nil || vote.CastSeq > newest.CastSeq) {
			newest = &vote
		}
	}
	return newest, nil
}

func (s *MemoryStore) Aggregate(_ context.Context, voteable domain.Ref, scope string) (domain.Tally, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var t domain.Tally
	for _, vote := range s.votes {
		if vote.Voteable == voteable && vote.Scope == scope {
			t = t.Apply(domain.CreateDelta(vote.Value))
		}
	}
	return t, nil
}

func (s *MemoryStore) AggregateAll(_ context.Context, voteable domain.Ref) (domain.Tally, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var t domain.Tally
	for _, vote := range s.votes {
		if vote.Voteable == voteable {
			t = t.Apply(domain.CreateDelta(vote.Value))
		}
	}
	return t, nil
}

func (s *MemoryStore) ListPartitions(_ context.Context) ([]domain.Partition, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	seen := make(map[partitionKey]struct{})
	var partitions []domain.Partition
	for _, vote := range s.votes {
		key := partitionKey{Voteable: vote.Voteable, Scope: vote.Scope}
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		partitions = append(partitions, domain.Partition{Voteable: vote.Voteable, Scope: vote.Scope})
	}
	sort.Slice(partitions, func(i, j int) bool {
		a, b := partitions[i], partitions[j]
		if a.Voteable != b.Voteable {
			return a.Voteable.String() < b.Voteable.String()
		}
		return a.Scope < b.Scope
	})
	return partitions, nil
}

func (s *MemoryStore) CountBySource(_ context.Context, owner domain.Ref, filter domain.SourceFilter) (up, down int64, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, vote := range s.votes {
		if !matchesSource(vote, owner, filter) {
			continue
		}
		switch vote.Direction() {
		case domain.DirectionUp:
			up++
		case domain.DirectionDown:
			down++
		}
	}
	return up, down, nil
}

func (s *MemoryStore) ListBySource(_ context.Context, owner domain.Ref, filter domain.SourceFilter) ([]domain.Vote, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var votes []domain.Vote
	for _, vote := range s.votes {
		if matchesSource(vote, owner, filter) {
			votes = append(votes, vote)
		}
	}
	sort.Slice(votes, func(i, j int) bool { return votes[i].CreatedAt.Before(votes[j].CreatedAt) })
	return votes, nil
}

func matchesSource(vote domain.Vote, owner domain.Ref, filter domain.SourceFilter) bool {
	if vote.Owner != owner || vote.Voteable.Kind != filter.VoteableKind {
		return false
	}
	if filter.Scope != nil && vote.Scope != *filter.Scope {
		return false
	}
	if !filter.Since.IsZero() && vote.CreatedAt.Before(filter.Since) {
		return false
	}
	return true
}

// --- TallyStore ---

func (s *MemoryStore) ApplyDelta(_ context.Context, voteable domain.Ref, scope string, delta domain.TallyDelta) (domain.Tally, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := partitionKey{Voteable: voteable, Scope: scope}
	t := s.tallies[key].Apply(delta)
	s.tallies[key] = t
	return t, nil
}

func (s *MemoryStore) Get(_ context.Context, voteable domain.Ref, scope string) (domain.Tally, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tallies[partitionKey{Voteable: voteable, Scope: scope}], nil
}

func (s *MemoryStore) Set(_ context.Context, voteable domain.Ref, scope string, tally domain.Tally) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tallies[partitionKey{Voteable: voteable, Scope: scope}] = tally
	return nil
}
