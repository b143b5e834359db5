package redis

import (
	"context"
	"fmt"
	"strconv"

	goredis "github.com/redis/go-redis/v9"

	"github.com/peteonrails/vote-fu/internal/domain"
)

// applyDeltaScript atomically applies a tally delta to the four counter
// fields of a partition hash and returns the resulting tally. A single script
// keeps concurrent mutations on the same voteable from interleaving
// per-field increments.
// ARGV: [1]=up, [2]=down, [3]=count, [4]=total
var applyDeltaScript = goredis.NewScript(`
local up = redis.call('HINCRBY', KEYS[1], 'up', ARGV[1])
local down = redis.call('HINCRBY', KEYS[1], 'down', ARGV[2])
local count = redis.call('HINCRBY', KEYS[1], 'count', ARGV[3])
local total = redis.call('HINCRBY', KEYS[1], 'total', ARGV[4])
return {up, down, count, total}
`)

// TallyStore implements domain.TallyStore on Redis hashes, one hash per
// (voteable, scope) partition.
type TallyStore struct {
	rdb *goredis.Client
}

var _ domain.TallyStore = (*TallyStore)(nil)

func NewTallyStore(client *Client) *TallyStore {
	return &TallyStore{rdb: client.rdb}
}

// ApplyDelta atomically increments the partition counters and returns the
// resulting tally.
func (s *TallyStore) ApplyDelta(ctx context.Context, voteable domain.Ref, scope string, delta domain.TallyDelta) (domain.Tally, error) {
	key := tallyKey(voteable, scope)
	result, err := applyDeltaScript.Run(ctx, s.rdb, []string{key},
		strconv.FormatInt(delta.Up, 10),
		strconv.FormatInt(delta.Down, 10),
		strconv.FormatInt(delta.Count, 10),
		strconv.FormatInt(delta.Total, 10),
	).Int64Slice()
	if err != nil {
		return domain.Tally{}, fmt.Errorf("apply delta script failed: %w", err)
	}
	if len(result) != 4 {
		return domain.Tally{}, fmt.Errorf("apply delta script returned %d values, want 4", len(result))
	}
	return domain.Tally{Up: result[0], Down: result[1], Count: result[2], Total: result[3]}, nil
}

// Get reads the cached tally for a partition. A missing hash is a zero tally.
func (s *TallyStore) Get(ctx context.Context, voteable domain.Ref, scope string) (domain.Tally, error) {
	vals, err := s.rdb.HMGet(ctx, tallyKey(voteable, scope), "up", "down", "count", "total").Result()
	if err != nil {
		return domain.Tally{}, fmt.Errorf("failed to get tally: %w", err)
	}

	fields := make([]int64, 4)
	for i, v := range vals {
		if v == nil {
			continue
		}
		n, err := strconv.ParseInt(v.(string), 10, 64)
		if err != nil {
			return domain.Tally{}, fmt.Errorf("corrupt tally field %q: %w", v, err)
		}
		fields[i] = n
	}
	return domain.Tally{Up: fields[0], Down: fields[1], Count: fields[2], Total: fields[3]}, nil
}

// Set overwrites the cached tally. Used by reconciliation to repair drift.
func (s *TallyStore) Set(ctx context.Context, voteable domain.Ref, scope string, tally domain.Tally) error {
	err := s.rdb.HSet(ctx, tallyKey(voteable, scope),
		"up", tally.Up,
		"down", tally.Down,
		"count", tally.Count,
		"total", tally.Total,
	).Err()
	if err != nil {
		return fmt.Errorf("failed to set tally: %w", err)
	}
	return nil
}

// Delete removes a partition's counters entirely.
func (s *TallyStore) Delete(ctx context.Context, voteable domain.Ref, scope string) error {
	if err := s.rdb.Del(ctx, tallyKey(voteable, scope)).Err(); err != nil {
		return fmt.Errorf("failed to delete tally: %w", err)
	}
	return nil
}

func tallyKey(voteable domain.Ref, scope string) string {
	return "tally:" + voteable.Kind + ":" + voteable.ID + ":" + scope
}
