package karma

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/peteonrails/vote-fu/internal/domain"
	"github.com/peteonrails/vote-fu/internal/ledger"
)

type author struct{ id string }

func (a author) VoterRef() domain.Ref { return domain.Ref{Kind: "user", ID: a.id} }

type mapCache struct {
	values map[domain.Ref]int64
	sets   int
}

func newMapCache() *mapCache { return &mapCache{values: make(map[domain.Ref]int64)} }

func (c *mapCache) Get(_ context.Context, voter domain.Ref) (int64, bool, error) {
	v, ok := c.values[voter]
	return v, ok, nil
}

func (c *mapCache) Set(_ context.Context, voter domain.Ref, karma int64) error {
	c.values[voter] = karma
	c.sets++
	return nil
}

// seedVote records a vote received on content owned by the given owner.
func seedVote(t *testing.T, store *ledger.MemoryStore, owner domain.Ref, voteableKind string, value int64, scope string, at time.Time) {
	t.Helper()
	err := store.Create(context.Background(), &domain.Vote{
		ID:        uuid.New(),
		Voter:     domain.Ref{Kind: "user", ID: uuid.NewString()},
		Voteable:  domain.Ref{Kind: voteableKind, ID: uuid.NewString()},
		Owner:     owner,
		Value:     value,
		Scope:     scope,
		CreatedAt: at,
		UpdatedAt: at,
	})
	require.NoError(t, err)
}

func postsSource(weights ...float64) domain.KarmaSource {
	src := domain.KarmaSource{Name: "posts", VoteableKind: "post", PositiveWeight: 1.0, NegativeWeight: 1.0}
	if len(weights) == 2 {
		src.PositiveWeight, src.NegativeWeight = weights[0], weights[1]
	}
	return src
}

func TestKarma_NoVotesNoSources(t *testing.T) {
	store := ledger.NewMemoryStore()
	clock := clockwork.NewFakeClock()
	ctx := context.Background()
	bob := author{"bob"}

	unconfigured := NewEngine(store, nil, nil, clock)
	karma, err := unconfigured.Karma(ctx, bob, false)
	require.NoError(t, err)
	assert.Equal(t, int64(0), karma)

	configured := NewEngine(store, []domain.KarmaSource{postsSource()}, nil, clock)
	karma, err = configured.Karma(ctx, bob, false)
	require.NoError(t, err)
	assert.Equal(t, int64(0), karma)
}

func TestKarma_WeightedSource(t *testing.T) {
	store := ledger.NewMemoryStore()
	clock := clockwork.NewFakeClock()
	ctx := context.Background()
	bob := author{"bob"}
	now := clock.Now()

	for i := 0; i < 2; i++ {
		seedVote(t, store, bob.VoterRef(), "post", 1, "", now)
		seedVote(t, store, bob.VoterRef(), "post", -1, "", now)
	}

	engine := NewEngine(store, []domain.KarmaSource{postsSource(1.0, 0.5)}, nil, clock)
	karma, err := engine.Karma(ctx, bob, false)
	require.NoError(t, err)
	assert.Equal(t, int64(1), karma, "2*1.0 - 2*0.5")
}

func TestKarma_RoundsOnceAcrossSources(t *testing.T) {
	store := ledger.NewMemoryStore()
	clock := clockwork.NewFakeClock()
	ctx := context.Background()
	bob := author{"bob"}
	now := clock.Now()

	seedVote(t, store, bob.VoterRef(), "post", 1, "", now)
	seedVote(t, store, bob.VoterRef(), "comment", 1, "", now)

	sources := []domain.KarmaSource{
		{Name: "posts", VoteableKind: "post", PositiveWeight: 0.25, NegativeWeight: 0.25},
		{Name: "comments", VoteableKind: "comment", PositiveWeight: 0.25, NegativeWeight: 0.25},
	}
	engine := NewEngine(store, sources, nil, clock)

	// Each source contributes 0.25; rounding the 0.5 sum gives 1, where
	// per-source rounding would give 0.
	karma, err := engine.Karma(ctx, bob, false)
	require.NoError(t, err)
	assert.Equal(t, int64(1), karma)

	// Single-source reads round independently.
	posts, err := engine.KarmaFor(ctx, bob, "posts")
	require.NoError(t, err)
	assert.Equal(t, int64(0), posts)
}

func TestKarmaFor_UnknownSource(t *testing.T) {
	store := ledger.NewMemoryStore()
	engine := NewEngine(store, []domain.KarmaSource{postsSource()}, nil, clockwork.NewFakeClock())

	karma, err := engine.KarmaFor(context.Background(), author{"bob"}, "no-such-source")
	require.NoError(t, err)
	assert.Equal(t, int64(0), karma)
}

func TestKarma_CacheAndForce(t *testing.T) {
	store := ledger.NewMemoryStore()
	clock := clockwork.NewFakeClock()
	ctx := context.Background()
	bob := author{"bob"}

	seedVote(t, store, bob.VoterRef(), "post", 1, "", clock.Now())

	cache := newMapCache()
	cache.values[bob.VoterRef()] = 99 // stale

	engine := NewEngine(store, []domain.KarmaSource{postsSource()}, nil, clock).WithCache(cache)

	karma, err := engine.Karma(ctx, bob, false)
	require.NoError(t, err)
	assert.Equal(t, int64(99), karma, "cached value returned unmodified")

	karma, err = engine.Karma(ctx, bob, true)
	require.NoError(t, err)
	assert.Equal(t, int64(1), karma)
	assert.Equal(t, int64(1), cache.values[bob.VoterRef()], "recomputation refreshes the cache")
}

type failingCache struct{}

func (failingCache) Get(context.Context, domain.Ref) (int64, bool, error) {
	return 0, false, nil
}

func (failingCache) Set(context.Context, domain.Ref, int64) error {
	return errors.New("connection refused")
}

func TestKarma_CacheWriteFailureDegrades(t *testing.T) {
	store := ledger.NewMemoryStore()
	clock := clockwork.NewFakeClock()
	ctx := context.Background()
	bob := author{"bob"}

	seedVote(t, store, bob.VoterRef(), "post", 1, "", clock.Now())

	levels := []domain.KarmaLevel{{Threshold: 0, Label: "newbie"}}
	engine := NewEngine(store, []domain.KarmaSource{postsSource()}, levels, clock).WithCache(failingCache{})

	karma, err := engine.Karma(ctx, bob, false)
	require.NoError(t, err, "a cache write failure must not fail the read")
	assert.Equal(t, int64(1), karma)

	// Derived reads keep working through the same path.
	label, err := engine.Level(ctx, bob)
	require.NoError(t, err)
	assert.Equal(t, "newbie", label)
}

func TestKarma_ExponentialDecay(t *testing.T) {
	store := ledger.NewMemoryStore()
	clock := clockwork.NewFakeClock()
	ctx := context.Background()
	bob := author{"bob"}
	now := clock.Now()

	seedVote(t, store, bob.VoterRef(), "post", 1, "", now)                          // factor 1
	seedVote(t, store, bob.VoterRef(), "post", 1, "", now.Add(-90*24*time.Hour))   // one half-life, factor 0.5
	seedVote(t, store, bob.VoterRef(), "post", 1, "", now.Add(-3600*24*time.Hour)) // ancient, clamped to floor 0.1

	src := postsSource()
	src.Decay = &domain.DecayConfig{}
	engine := NewEngine(store, []domain.KarmaSource{src}, nil, clock)

	karma, err := engine.Karma(ctx, bob, false)
	require.NoError(t, err)
	assert.Equal(t, int64(2), karma, "1 + 0.5 + 0.1 rounds to 2")
}

func TestRecentKarma_ExcludesOldVotes(t *testing.T) {
	store := ledger.NewMemoryStore()
	clock := clockwork.NewFakeClock()
	ctx := context.Background()
	bob := author{"bob"}
	now := clock.Now()

	seedVote(t, store, bob.VoterRef(), "post", 1, "", now.Add(-time.Hour))
	seedVote(t, store, bob.VoterRef(), "post", 1, "", now.Add(-40*24*time.Hour))

	engine := NewEngine(store, []domain.KarmaSource{postsSource()}, nil, clock)

	karma, err := engine.RecentKarma(ctx, bob, 7)
	require.NoError(t, err)
	assert.Equal(t, int64(1), karma)

	karma, err = engine.RecentKarma(ctx, bob, 60)
	require.NoError(t, err)
	assert.Equal(t, int64(2), karma)
}

func TestBreakdown(t *testing.T) {
	store := ledger.NewMemoryStore()
	clock := clockwork.NewFakeClock()
	ctx := context.Background()
	bob := author{"bob"}
	now := clock.Now()

	seedVote(t, store, bob.VoterRef(), "post", 1, "", now.Add(-time.Hour))
	seedVote(t, store, bob.VoterRef(), "post", 1, "", now.Add(-60*24*time.Hour))
	seedVote(t, store, bob.VoterRef(), "comment", -1, "", now.Add(-time.Hour))

	sources := []domain.KarmaSource{
		postsSource(),
		{Name: "comments", VoteableKind: "comment", PositiveWeight: 1.0, NegativeWeight: 1.0},
	}
	engine := NewEngine(store, sources, nil, clock)

	rows, err := engine.Breakdown(ctx, bob)
	require.NoError(t, err)
	require.Len(t, rows, 2)

	assert.Equal(t, domain.SourceKarma{Source: "posts", Value: 2, RecentValue: 1}, rows[0])
	assert.Equal(t, domain.SourceKarma{Source: "comments", Value: -1, RecentValue: -1}, rows[1])
}

func TestKarma_ScopedSource(t *testing.T) {
	store := ledger.NewMemoryStore()
	clock := clockwork.NewFakeClock()
	ctx := context.Background()
	bob := author{"bob"}
	now := clock.Now()

	seedVote(t, store, bob.VoterRef(), "post", 1, "quality", now)
	seedVote(t, store, bob.VoterRef(), "post", 1, "style", now)

	scope := "quality"
	src := postsSource()
	src.Scope = &scope
	engine := NewEngine(store, []domain.KarmaSource{src}, nil, clock)

	karma, err := engine.Karma(ctx, bob, false)
	require.NoError(t, err)
	assert.Equal(t, int64(1), karma)
}

func TestKarma_UnresolvedVoter(t *testing.T) {
	engine := NewEngine(ledger.NewMemoryStore(), nil, nil, clockwork.NewFakeClock())
	_, err := engine.Karma(context.Background(), author{}, false)
	assert.ErrorIs(t, err, domain.ErrVoterNotFound)
}

func ExampleEngine_Karma() {
	store := ledger.NewMemoryStore()
	clock := clockwork.NewFakeClock()
	bob := author{"bob"}

	_ = store.Create(context.Background(), &domain.Vote{
		ID:       uuid.New(),
		Voter:    domain.Ref{Kind: "user", ID: "alice"},
		Voteable: domain.Ref{Kind: "post", ID: "1"},
		Owner:    bob.VoterRef(),
		Value:    1,
	})

	engine := NewEngine(store, []domain.KarmaSource{
		{Name: "posts", VoteableKind: "post", PositiveWeight: 1.0, NegativeWeight: 1.0},
	}, nil, clock)

	karma, _ := engine.Karma(context.Background(), bob, false)
	fmt.Println(karma)
	// Output: 1
}
