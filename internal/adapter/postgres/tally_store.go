package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/peteonrails/vote-fu/internal/domain"
)

// TallyStore implements domain.TallyStore on a counters table. Increments are
// single upsert statements, so concurrent mutations on the same partition
// serialize at the row level without application-side read-modify-write.
type TallyStore struct {
	pool *pgxpool.Pool
}

var _ domain.TallyStore = (*TallyStore)(nil)

func NewTallyStore(pool *pgxpool.Pool) *TallyStore {
	return &TallyStore{pool: pool}
}

func (s *TallyStore) ApplyDelta(ctx context.Context, voteable domain.Ref, scope string, delta domain.TallyDelta) (domain.Tally, error) {
	var tally domain.Tally
	err := s.pool.QueryRow(ctx, `
		INSERT INTO vote_tallies (voteable_kind, voteable_id, scope, up_count, down_count, vote_count, total_value)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (voteable_kind, voteable_id, scope) DO UPDATE SET
			up_count = vote_tallies.up_count + EXCLUDED.up_count,
			down_count = vote_tallies.down_count + EXCLUDED.down_count,
			vote_count = vote_tallies.vote_count + EXCLUDED.vote_count,
			total_value = vote_tallies.total_value + EXCLUDED.total_value
		RETURNING up_count, down_count, vote_count, total_value`,
		voteable.Kind, voteable.ID, scope,
		delta.Up, delta.Down, delta.Count, delta.Total,
	).Scan(&tally.Up, &tally.Down, &tally.Count, &tally.Total)
	if err != nil {
		return domain.Tally{}, fmt.Errorf("failed to apply tally delta: %w", err)
	}
	return tally, nil
}

// Get reads the cached tally. A missing row is a zero tally.
func (s *TallyStore) Get(ctx context.Context, voteable domain.Ref, scope string) (domain.Tally, error) {
	var tally domain.Tally
	err := s.pool.QueryRow(ctx, `
		SELECT up_count, down_count, vote_count, total_value
		FROM vote_tallies
		WHERE voteable_kind = $1 AND voteable_id = $2 AND scope = $3`,
		voteable.Kind, voteable.ID, scope,
	).Scan(&tally.Up, &tally.Down, &tally.Count, &tally.Total)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Tally{}, nil
	}
	if err != nil {
		return domain.Tally{}, fmt.Errorf("failed to get tally: %w", err)
	}
	return tally, nil
}

// Set overwrites the cached tally. Used by reconciliation to repair drift.
func (s *TallyStore) Set(ctx context.Context, voteable domain.Ref, scope string, tally domain.Tally) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO vote_tallies (voteable_kind, voteable_id, scope, up_count, down_count, vote_count, total_value)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (voteable_kind, voteable_id, scope) DO UPDATE SET
			up_count = EXCLUDED.up_count,
			down_count = EXCLUDED.down_count,
			vote_count = EXCLUDED.vote_count,
			total_value = EXCLUDED.total_value`,
		voteable.Kind, voteable.ID, scope,
		tally.Up, tally.Down, tally.Count, tally.Total,
	)
	if err != nil {
		return fmt.Errorf("failed to set tally: %w", err)
	}
	return nil
}
