package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/peteonrails/vote-fu/internal/domain"
)

// DefaultKarmaTTL bounds staleness of cached karma. Refresh policy beyond
// expiry is the caller's concern.
const DefaultKarmaTTL = 15 * time.Minute

// KarmaCache implements domain.KarmaCache on plain Redis keys.
type KarmaCache struct {
	rdb *goredis.Client
	ttl time.Duration
}

var _ domain.KarmaCache = (*KarmaCache)(nil)

func NewKarmaCache(client *Client, ttl time.Duration) *KarmaCache {
	if ttl <= 0 {
		ttl = DefaultKarmaTTL
	}
	return &KarmaCache{rdb: client.rdb, ttl: ttl}
}

func (c *KarmaCache) Get(ctx context.Context, voter domain.Ref) (int64, bool, error) {
	value, err := c.rdb.Get(ctx, karmaKey(voter)).Int64()
	if errors.Is(err, goredis.Nil) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("failed to get cached karma: %w", err)
	}
	return value, true, nil
}

func (c *KarmaCache) Set(ctx context.Context, voter domain.Ref, karma int64) error {
	if err := c.rdb.Set(ctx, karmaKey(voter), karma, c.ttl).Err(); err != nil {
		return fmt.Errorf("failed to cache karma: %w", err)
	}
	return nil
}

func karmaKey(voter domain.Ref) string {
	return "karma:" + voter.Kind + ":" + voter.ID
}
