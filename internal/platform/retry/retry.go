// Package retry runs fallible store operations with classified, exponential
// backoff. The reconciler uses it to repair counter drift through transient
// cache failures; callers decide per error whether to give up, back off
// normally, or back off long.
package retry

import (
	"context"
	"fmt"
	"time"
)

// Action is the classification of one failed attempt.
type Action int

const (
	Stop  Action = iota // permanent, surface immediately
	Retry               // transient, normal backoff
	After               // throttled, use the long backoff
)

// Policy bounds the attempts. InitialBackoff doubles after every wait;
// RateLimitBackoff replaces the current backoff when an attempt classifies
// as After.
type Policy struct {
	MaxAttempts      int
	InitialBackoff   time.Duration
	RateLimitBackoff time.Duration
	OnRetry          func(attempt int, err error, backoff time.Duration)
}

// Classify maps an operation error to the action to take.
type Classify func(err error) Action

type Operation[T any] func() (T, error)
type VoidOperation func() error

// Do runs op until it succeeds, classifies as Stop, the attempts are
// exhausted, or ctx is cancelled during a wait.
func Do[T any](ctx context.Context, p Policy, classify Classify, op Operation[T]) (T, error) {
	backoff := p.InitialBackoff

	for attempt := 1; attempt <= p.MaxAttempts; attempt++ {
		val, err := op()
		if err == nil {
			return val, nil
		}

		action := classify(err)
		if action == Stop {
			var zero T
			return zero, &PermanentError{Err: err}
		}

		if attempt == p.MaxAttempts {
			var zero T
			return zero, fmt.Errorf("failed after %d attempts: %w", p.MaxAttempts, err)
		}

		if action == After {
			backoff = p.RateLimitBackoff
		}

		if p.OnRetry != nil {
			p.OnRetry(attempt, err, backoff)
		}

		select {
		case <-time.After(backoff):
			backoff *= 2
		case <-ctx.Done():
			var zero T
			return zero, fmt.Errorf("context cancelled during retry: %w", ctx.Err())
		}
	}

	panic("unreachable: MaxAttempts must be >= 1")
}

// DoVoid is Do for operations without a result, like a tally overwrite.
func DoVoid(ctx context.Context, p Policy, classify Classify, op VoidOperation) error {
	_, err := Do(ctx, p, classify, func() (struct{}, error) { return struct{}{}, op() })
	return err
}

// PermanentError wraps an error the classifier ruled out of retrying.
type PermanentError struct {
	Err error
}

func (e *PermanentError) Error() string { return e.Err.Error() }
func (e *PermanentError) Unwrap() error { return e.Err }
