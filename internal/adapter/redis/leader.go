package redis

import (
	"context"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

const (
	leaderKey        = "reconcile:leader"
	DefaultLeaderTTL = 30 * time.Second
)

// Leader implements single-leader election using Redis SETNX with a TTL.
// Only the leader runs the tally reconciliation sweep; other instances
// take over if the key expires after the leader crashes.
type Leader struct {
	rdb        *goredis.Client
	instanceID string
	ttl        time.Duration
}

// NewLeader creates a leader elector. instanceID must be unique per
// instance (e.g. hostname-PID).
func NewLeader(client *Client, instanceID string, ttl time.Duration) *Leader {
	if ttl <= 0 {
		ttl = DefaultLeaderTTL
	}
	return &Leader{
		rdb:        client.Underlying(),
		instanceID: instanceID,
		ttl:        ttl,
	}
}

// Acquire attempts to take or keep leadership. It returns true when this
// instance holds the lease afterwards. A held lease is renewed atomically
// so a slow sweep cannot steal the lock from a live leader.
func (l *Leader) Acquire(ctx context.Context) (bool, error) {
	ok, err := l.rdb.SetNX(ctx, leaderKey, l.instanceID, l.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("failed to acquire leader lock: %w", err)
	}
	if ok {
		return true, nil
	}

	renewScript := `
	if redis.call("GET", KEYS[1]) == ARGV[1] then
		return redis.call("EXPIRE", KEYS[1], ARGV[2])
	else
		return 0
	end
	`
	result, err := l.rdb.Eval(ctx, renewScript, []string{leaderKey}, l.instanceID, int(l.ttl.Seconds())).Result()
	if err != nil {
		return false, fmt.Errorf("failed to renew leader lease: %w", err)
	}
	return result == int64(1), nil
}

// Release voluntarily gives up leadership. Called during graceful shutdown
// so the next instance does not wait out the TTL.
func (l *Leader) Release(ctx context.Context) error {
	releaseScript := `
	if redis.call("GET", KEYS[1]) == ARGV[1] then
		return redis.call("DEL", KEYS[1])
	else
		return 0
	end
	`
	if err := l.rdb.Eval(ctx, releaseScript, []string{leaderKey}, l.instanceID).Err(); err != nil {
		return fmt.Errorf("failed to release leader lock: %w", err)
	}
	return nil
}
