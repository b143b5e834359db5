package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/peteonrails/vote-fu/internal/domain"
)

// voteColumns must match the Scan order in scanVote.
const voteColumns = `id, voter_kind, voter_id, voteable_kind, voteable_id, owner_kind, owner_id, value, scope, cast_seq, created_at, updated_at`

// uniqueViolation is the SQLSTATE raised when an insert collides with the
// votes identity index.
const uniqueViolation = "23505"

// VoteStore implements domain.VoteStore backed by PostgreSQL.
type VoteStore struct {
	pool *pgxpool.Pool
}

var _ domain.VoteStore = (*VoteStore)(nil)

func NewVoteStore(pool *pgxpool.Pool) *VoteStore {
	return &VoteStore{pool: pool}
}

func (s *VoteStore) Create(ctx context.Context, vote *domain.Vote) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO votes (`+voteColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		vote.ID,
		vote.Voter.Kind, vote.Voter.ID,
		vote.Voteable.Kind, vote.Voteable.ID,
		vote.Owner.Kind, vote.Owner.ID,
		vote.Value, vote.Scope, vote.CastSeq,
		vote.CreatedAt, vote.UpdatedAt,
	)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return domain.ErrAlreadyVoted
	}
	if err != nil {
		return fmt.Errorf("failed to insert vote: %w", err)
	}
	return nil
}

func (s *VoteStore) UpdateValue(ctx context.Context, id uuid.UUID, value int64, updatedAt time.Time) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE votes SET value = $2, updated_at = $3 WHERE id = $1`,
		id, value, updatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to update vote value: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("vote %s not found", id)
	}
	return nil
}

func (s *VoteStore) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM votes WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete vote: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("vote %s not found", id)
	}
	return nil
}

// Find returns the voter's vote on a partition, the newest cast when
// duplicates exist, or (nil, nil) when absent.
func (s *VoteStore) Find(ctx context.Context, key domain.Key) (*domain.Vote, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT `+voteColumns+`
		FROM votes
		WHERE voter_kind = $1 AND voter_id = $2
		  AND voteable_kind = $3 AND voteable_id = $4
		  AND scope = $5
		ORDER BY cast_seq DESC
		LIMIT 1`,
		key.Voter.Kind, key.Voter.ID,
		key.Voteable.Kind, key.Voteable.ID,
		key.Scope,
	)

	vote, err := scanVote(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find vote: %w", err)
	}
	return vote, nil
}

func (s *VoteStore) Aggregate(ctx context.Context, voteable domain.Ref, scope string) (domain.Tally, error) {
	return s.aggregate(ctx, `
		SELECT COUNT(*) FILTER (WHERE value > 0),
		       COUNT(*) FILTER (WHERE value < 0),
		       COUNT(*),
		       COALESCE(SUM(value), 0)
		FROM votes
		WHERE voteable_kind = $1 AND voteable_id = $2 AND scope = $3`,
		voteable.Kind, voteable.ID, scope)
}

func (s *VoteStore) AggregateAll(ctx context.Context, voteable domain.Ref) (domain.Tally, error) {
	return s.aggregate(ctx, `
		SELECT COUNT(*) FILTER (WHERE value > 0),
		       COUNT(*) FILTER (WHERE value < 0),
		       COUNT(*),
		       COALESCE(SUM(value), 0)
		FROM votes
		WHERE voteable_kind = $1 AND voteable_id = $2`,
		voteable.Kind, voteable.ID)
}

func (s *VoteStore) aggregate(ctx context.Context, query string, args ...any) (domain.Tally, error) {
	var tally domain.Tally
	err := s.pool.QueryRow(ctx, query, args...).Scan(&tally.Up, &tally.Down, &tally.Count, &tally.Total)
	if err != nil {
		return domain.Tally{}, fmt.Errorf("failed to aggregate votes: %w", err)
	}
	return tally, nil
}

func (s *VoteStore) ListPartitions(ctx context.Context) ([]domain.Partition, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT DISTINCT voteable_kind, voteable_id, scope
		FROM votes
		ORDER BY voteable_kind, voteable_id, scope`)
	if err != nil {
		return nil, fmt.Errorf("failed to list partitions: %w", err)
	}
	defer rows.Close()

	var partitions []domain.Partition
	for rows.Next() {
		var p domain.Partition
		if err := rows.Scan(&p.Voteable.Kind, &p.Voteable.ID, &p.Scope); err != nil {
			return nil, fmt.Errorf("failed to scan partition: %w", err)
		}
		partitions = append(partitions, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list partitions: %w", err)
	}
	return partitions, nil
}

func (s *VoteStore) CountBySource(ctx context.Context, owner domain.Ref, filter domain.SourceFilter) (up, down int64, err error) {
	query, args := sourceQuery(`
		SELECT COUNT(*) FILTER (WHERE value > 0),
		       COUNT(*) FILTER (WHERE value < 0)
		FROM votes`, owner, filter)

	if err := s.pool.QueryRow(ctx, query, args...).Scan(&up, &down); err != nil {
		return 0, 0, fmt.Errorf("failed to count votes by source: %w", err)
	}
	return up, down, nil
}

func (s *VoteStore) ListBySource(ctx context.Context, owner domain.Ref, filter domain.SourceFilter) ([]domain.Vote, error) {
	query, args := sourceQuery(`SELECT `+voteColumns+` FROM votes`, owner, filter)
	query += ` ORDER BY created_at ASC`

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list votes by source: %w", err)
	}
	defer rows.Close()

	var votes []domain.Vote
	for rows.Next() {
		vote, err := scanVote(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan vote: %w", err)
		}
		votes = append(votes, *vote)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list votes by source: %w", err)
	}
	return votes, nil
}

// sourceQuery appends the karma source predicates shared by CountBySource and
// ListBySource.
func sourceQuery(base string, owner domain.Ref, filter domain.SourceFilter) (string, []any) {
	query := base + `
		WHERE owner_kind = $1 AND owner_id = $2 AND voteable_kind = $3`
	args := []any{owner.Kind, owner.ID, filter.VoteableKind}

	if filter.Scope != nil {
		args = append(args, *filter.Scope)
		query += fmt.Sprintf(" AND scope = $%d", len(args))
	}
	if !filter.Since.IsZero() {
		args = append(args, filter.Since)
		query += fmt.Sprintf(" AND created_at >= $%d", len(args))
	}
	return query, args
}

func scanVote(row pgx.Row) (*domain.Vote, error) {
	var vote domain.Vote
	err := row.Scan(
		&vote.ID,
		&vote.Voter.Kind, &vote.Voter.ID,
		&vote.Voteable.Kind, &vote.Voteable.ID,
		&vote.Owner.Kind, &vote.Owner.ID,
		&vote.Value, &vote.Scope, &vote.CastSeq,
		&vote.CreatedAt, &vote.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &vote, nil
}
