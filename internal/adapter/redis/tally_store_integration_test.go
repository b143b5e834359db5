package redis

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/peteonrails/vote-fu/internal/domain"
)

func TestTallyStore_ApplyDeltaAndGet(t *testing.T) {
	client := setupTestClient(t)
	store := NewTallyStore(client)
	ctx := context.Background()
	voteable := domain.Ref{Kind: "post", ID: "1"}

	// Missing partition reads as zero.
	tally, err := store.Get(ctx, voteable, "")
	require.NoError(t, err)
	assert.True(t, tally.IsZero())

	tally, err = store.ApplyDelta(ctx, voteable, "", domain.CreateDelta(5))
	require.NoError(t, err)
	assert.Equal(t, domain.Tally{Up: 1, Down: 0, Count: 1, Total: 5}, tally)

	tally, err = store.ApplyDelta(ctx, voteable, "", domain.UpdateDelta(5, -2))
	require.NoError(t, err)
	assert.Equal(t, domain.Tally{Up: 0, Down: 1, Count: 1, Total: -2}, tally)

	got, err := store.Get(ctx, voteable, "")
	require.NoError(t, err)
	assert.Equal(t, tally, got)
}

func TestTallyStore_ScopesAreSeparateKeys(t *testing.T) {
	client := setupTestClient(t)
	store := NewTallyStore(client)
	ctx := context.Background()
	voteable := domain.Ref{Kind: "post", ID: "1"}

	_, err := store.ApplyDelta(ctx, voteable, "quality", domain.CreateDelta(1))
	require.NoError(t, err)

	unscoped, err := store.Get(ctx, voteable, "")
	require.NoError(t, err)
	assert.True(t, unscoped.IsZero())

	scoped, err := store.Get(ctx, voteable, "quality")
	require.NoError(t, err)
	assert.Equal(t, int64(1), scoped.Up)
}

func TestTallyStore_ConcurrentDeltas(t *testing.T) {
	client := setupTestClient(t)
	store := NewTallyStore(client)
	ctx := context.Background()
	voteable := domain.Ref{Kind: "post", ID: "1"}

	const workers = 20

	var wg sync.WaitGroup
	errs := make(chan error, workers*2)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := store.ApplyDelta(ctx, voteable, "", domain.CreateDelta(1)); err != nil {
				errs <- err
			}
			if _, err := store.ApplyDelta(ctx, voteable, "", domain.CreateDelta(-1)); err != nil {
				errs <- err
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Fatalf("concurrent delta failed: %v", err)
	}

	tally, err := store.Get(ctx, voteable, "")
	require.NoError(t, err)
	assert.Equal(t, domain.Tally{Up: workers, Down: workers, Count: workers * 2, Total: 0}, tally)
}

func TestTallyStore_SetRepairsDrift(t *testing.T) {
	client := setupTestClient(t)
	store := NewTallyStore(client)
	ctx := context.Background()
	voteable := domain.Ref{Kind: "post", ID: "1"}

	_, err := store.ApplyDelta(ctx, voteable, "", domain.CreateDelta(1))
	require.NoError(t, err)

	want := domain.Tally{Up: 10, Down: 2, Count: 12, Total: 8}
	require.NoError(t, store.Set(ctx, voteable, "", want))

	got, err := store.Get(ctx, voteable, "")
	require.NoError(t, err)
	assert.Equal(t, want, got)

	require.NoError(t, store.Delete(ctx, voteable, ""))
	got, err = store.Get(ctx, voteable, "")
	require.NoError(t, err)
	assert.True(t, got.IsZero())
}

func TestKarmaCache_RoundTrip(t *testing.T) {
	client := setupTestClient(t)
	cache := NewKarmaCache(client, 0)
	ctx := context.Background()
	voter := domain.Ref{Kind: "user", ID: "bob"}

	_, ok, err := cache.Get(ctx, voter)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, cache.Set(ctx, voter, -42))

	karma, ok, err := cache.Get(ctx, voter)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, int64(-42), karma)
}
