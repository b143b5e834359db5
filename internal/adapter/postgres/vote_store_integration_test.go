package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/peteonrails/vote-fu/internal/domain"
)

func testVote(voter, voteable string, value int64, scope string) *domain.Vote {
	now := time.Now().UTC().Truncate(time.Microsecond)
	return &domain.Vote{
		ID:        uuid.New(),
		Voter:     domain.Ref{Kind: "user", ID: voter},
		Voteable:  domain.Ref{Kind: "post", ID: voteable},
		Owner:     domain.Ref{Kind: "user", ID: "owner-of-" + voteable},
		Value:     value,
		Scope:     scope,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func TestVoteStore_CreateAndFind(t *testing.T) {
	pool := setupTestDB(t)
	store := NewVoteStore(pool)
	ctx := context.Background()

	vote := testVote("alice", "1", 5, "")
	require.NoError(t, store.Create(ctx, vote))

	found, err := store.Find(ctx, domain.Key{Voter: vote.Voter, Voteable: vote.Voteable, Scope: ""})
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, vote.ID, found.ID)
	assert.Equal(t, int64(5), found.Value)
	assert.Equal(t, vote.Owner, found.Owner)
}

func TestVoteStore_FindMissing(t *testing.T) {
	pool := setupTestDB(t)
	store := NewVoteStore(pool)

	found, err := store.Find(context.Background(), domain.Key{
		Voter:    domain.Ref{Kind: "user", ID: "nobody"},
		Voteable: domain.Ref{Kind: "post", ID: "1"},
	})
	require.NoError(t, err)
	assert.Nil(t, found)
}

func TestVoteStore_UniqueConstraint(t *testing.T) {
	pool := setupTestDB(t)
	store := NewVoteStore(pool)
	ctx := context.Background()

	require.NoError(t, store.Create(ctx, testVote("alice", "1", 1, "")))

	err := store.Create(ctx, testVote("alice", "1", -1, ""))
	assert.ErrorIs(t, err, domain.ErrAlreadyVoted)

	// Another scope is a different identity.
	require.NoError(t, store.Create(ctx, testVote("alice", "1", -1, "quality")))

	// Distinct cast sequences bypass the constraint.
	dup := testVote("alice", "1", 1, "")
	dup.CastSeq = time.Now().UnixNano()
	require.NoError(t, store.Create(ctx, dup))
}

func TestVoteStore_UpdateAndDelete(t *testing.T) {
	pool := setupTestDB(t)
	store := NewVoteStore(pool)
	ctx := context.Background()

	vote := testVote("alice", "1", 5, "")
	require.NoError(t, store.Create(ctx, vote))

	require.NoError(t, store.UpdateValue(ctx, vote.ID, -2, time.Now().UTC()))
	found, err := store.Find(ctx, domain.Key{Voter: vote.Voter, Voteable: vote.Voteable, Scope: ""})
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, int64(-2), found.Value)

	require.NoError(t, store.Delete(ctx, vote.ID))
	found, err = store.Find(ctx, domain.Key{Voter: vote.Voter, Voteable: vote.Voteable, Scope: ""})
	require.NoError(t, err)
	assert.Nil(t, found)

	assert.Error(t, store.Delete(ctx, vote.ID))
}

func TestVoteStore_Aggregate(t *testing.T) {
	pool := setupTestDB(t)
	store := NewVoteStore(pool)
	ctx := context.Background()

	require.NoError(t, store.Create(ctx, testVote("a", "1", 5, "")))
	require.NoError(t, store.Create(ctx, testVote("b", "1", -1, "")))
	require.NoError(t, store.Create(ctx, testVote("c", "1", 1, "quality")))
	require.NoError(t, store.Create(ctx, testVote("d", "2", 1, "")))

	voteable := domain.Ref{Kind: "post", ID: "1"}

	tally, err := store.Aggregate(ctx, voteable, "")
	require.NoError(t, err)
	assert.Equal(t, domain.Tally{Up: 1, Down: 1, Count: 2, Total: 4}, tally)

	all, err := store.AggregateAll(ctx, voteable)
	require.NoError(t, err)
	assert.Equal(t, domain.Tally{Up: 2, Down: 1, Count: 3, Total: 5}, all)

	empty, err := store.Aggregate(ctx, domain.Ref{Kind: "post", ID: "none"}, "")
	require.NoError(t, err)
	assert.True(t, empty.IsZero())
}

func TestVoteStore_Source(t *testing.T) {
	pool := setupTestDB(t)
	store := NewVoteStore(pool)
	ctx := context.Background()

	old := testVote("a", "1", 1, "")
	old.CreatedAt = old.CreatedAt.Add(-48 * time.Hour)
	require.NoError(t, store.Create(ctx, old))
	require.NoError(t, store.Create(ctx, testVote("b", "1", -1, "")))
	require.NoError(t, store.Create(ctx, testVote("c", "1", 1, "quality")))

	owner := domain.Ref{Kind: "user", ID: "owner-of-1"}
	filter := domain.SourceFilter{VoteableKind: "post"}

	up, down, err := store.CountBySource(ctx, owner, filter)
	require.NoError(t, err)
	assert.Equal(t, int64(2), up)
	assert.Equal(t, int64(1), down)

	votes, err := store.ListBySource(ctx, owner, filter)
	require.NoError(t, err)
	require.Len(t, votes, 3)
	assert.Equal(t, old.ID, votes[0].ID, "oldest first")

	scope := "quality"
	scoped, err := store.ListBySource(ctx, owner, domain.SourceFilter{VoteableKind: "post", Scope: &scope})
	require.NoError(t, err)
	assert.Len(t, scoped, 1)

	recent, err := store.ListBySource(ctx, owner, domain.SourceFilter{
		VoteableKind: "post",
		Since:        time.Now().Add(-time.Hour),
	})
	require.NoError(t, err)
	assert.Len(t, recent, 2)
}
