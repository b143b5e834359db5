package retry_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/peteonrails/vote-fu/internal/platform/retry"
)

var errCacheWrite = errors.New("tally cache write failed")

var fastPolicy = retry.Policy{
	MaxAttempts:      3,
	InitialBackoff:   1 * time.Millisecond,
	RateLimitBackoff: 5 * time.Millisecond,
}

func alwaysRetry(error) retry.Action { return retry.Retry }
func alwaysStop(error) retry.Action  { return retry.Stop }

func TestDo_FirstAttemptSucceeds(t *testing.T) {
	calls := 0
	_, err := retry.Do(context.Background(), fastPolicy, alwaysRetry, func() (struct{}, error) {
		calls++
		return struct{}{}, nil
	})
	require.NoError(t, err)
	assert.Equal(t, 1, calls)
}

func TestDo_TransientFailuresRecover(t *testing.T) {
	calls := 0
	val, err := retry.Do(context.Background(), fastPolicy, alwaysRetry, func() (int64, error) {
		calls++
		if calls < 3 {
			return 0, errCacheWrite
		}
		return 42, nil
	})
	require.NoError(t, err)
	assert.Equal(t, int64(42), val)
	assert.Equal(t, 3, calls)
}

func TestDo_StopSurfacesPermanentError(t *testing.T) {
	calls := 0
	_, err := retry.Do(context.Background(), fastPolicy, alwaysStop, func() (struct{}, error) {
		calls++
		return struct{}{}, errCacheWrite
	})

	var permErr *retry.PermanentError
	require.ErrorAs(t, err, &permErr)
	assert.ErrorIs(t, err, errCacheWrite)
	assert.Equal(t, 1, calls, "Stop must not retry")
}

func TestDo_ExhaustedAttempts(t *testing.T) {
	calls := 0
	_, err := retry.Do(context.Background(), fastPolicy, alwaysRetry, func() (struct{}, error) {
		calls++
		return struct{}{}, errCacheWrite
	})

	require.Error(t, err)
	assert.ErrorIs(t, err, errCacheWrite)
	assert.Equal(t, fastPolicy.MaxAttempts, calls)
}

func TestDo_AfterUsesRateLimitBackoff(t *testing.T) {
	var observedBackoff time.Duration
	p := retry.Policy{
		MaxAttempts:      2,
		InitialBackoff:   1 * time.Millisecond,
		RateLimitBackoff: 5 * time.Millisecond,
		OnRetry: func(_ int, _ error, backoff time.Duration) {
			observedBackoff = backoff
		},
	}
	throttled := func(error) retry.Action { return retry.After }

	_, _ = retry.Do(context.Background(), p, throttled, func() (struct{}, error) {
		return struct{}{}, errors.New("throttled")
	})

	assert.Equal(t, 5*time.Millisecond, observedBackoff)
}

func TestDo_CancelledDuringBackoff(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	p := retry.Policy{
		MaxAttempts:    3,
		InitialBackoff: 10 * time.Second, // long enough that cancellation wins
	}

	calls := 0
	_, err := retry.Do(ctx, p, alwaysRetry, func() (struct{}, error) {
		calls++
		cancel()
		return struct{}{}, errCacheWrite
	})

	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, calls)
}

func TestDo_OnRetryObservesEachWait(t *testing.T) {
	var attempts []int
	p := fastPolicy
	p.OnRetry = func(attempt int, _ error, _ time.Duration) {
		attempts = append(attempts, attempt)
	}

	_, _ = retry.Do(context.Background(), p, alwaysRetry, func() (struct{}, error) {
		return struct{}{}, errCacheWrite
	})

	// The final attempt exhausts rather than waits, so it is not observed.
	assert.Equal(t, []int{1, 2}, attempts)
}

func TestDoVoid(t *testing.T) {
	calls := 0
	err := retry.DoVoid(context.Background(), fastPolicy, alwaysRetry, func() error {
		calls++
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 1, calls)

	err = retry.DoVoid(context.Background(), fastPolicy, alwaysStop, func() error {
		return errCacheWrite
	})
	var permErr *retry.PermanentError
	require.ErrorAs(t, err, &permErr)
	assert.ErrorIs(t, err, errCacheWrite)
}
