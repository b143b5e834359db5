// Package eventpublisher broadcasts vote events over Redis Pub/Sub so other
// instances and external consumers see ledger mutations with their aggregate
// snapshots.
package eventpublisher

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	goredis "github.com/redis/go-redis/v9"

	"github.com/peteonrails/vote-fu/internal/adapter/redis"
	"github.com/peteonrails/vote-fu/internal/domain"
)

// firehoseChannel carries every vote event; per-voteable channels carry only
// that voteable's events.
const firehoseChannel = "votes"

func voteableChannel(voteable domain.Ref) string {
	return "votes:" + voteable.Kind + ":" + voteable.ID
}

// Publisher implements domain.EventPublisher on Redis Pub/Sub.
type Publisher struct {
	rdb *goredis.Client
}

var _ domain.EventPublisher = (*Publisher)(nil)

func New(client *redis.Client) *Publisher {
	return &Publisher{rdb: client.Underlying()}
}

// PublishVoteEvent publishes the event to the firehose channel and the
// voteable's own channel.
func (p *Publisher) PublishVoteEvent(ctx context.Context, event domain.VoteEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal vote event: %w", err)
	}

	if err := p.rdb.Publish(ctx, firehoseChannel, data).Err(); err != nil {
		return fmt.Errorf("publish vote event: %w", err)
	}
	if err := p.rdb.Publish(ctx, voteableChannel(event.Vote.Voteable), data).Err(); err != nil {
		return fmt.Errorf("publish vote event: %w", err)
	}
	return nil
}

// Subscription represents an active Pub/Sub subscription.
type Subscription struct {
	sub    *goredis.PubSub
	Ch     <-chan domain.VoteEvent
	cancel context.CancelFunc
}

// Close unsubscribes and closes the subscription.
func (s *Subscription) Close() {
	s.cancel()
	_ = s.sub.Close()
}

// Subscribe subscribes to vote events for one voteable. A zero ref subscribes
// to the firehose. Call subscription.Close() when done.
func (p *Publisher) Subscribe(ctx context.Context, voteable domain.Ref) *Subscription {
	channel := firehoseChannel
	if !voteable.IsZero() {
		channel = voteableChannel(voteable)
	}
	sub := p.rdb.Subscribe(ctx, channel)

	subCtx, cancel := context.WithCancel(ctx)
	ch := make(chan domain.VoteEvent, 16)

	go func() {
		defer close(ch)
		msgCh := sub.Channel()
		for {
			select {
			case msg, ok := <-msgCh:
				if !ok {
					return
				}
				var event domain.VoteEvent
				if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
					slog.Warn("Failed to unmarshal vote event", "error", err)
					continue
				}
				select {
				case ch <- event:
				default:
					// Drop if receiver is slow
				}
			case <-subCtx.Done():
				return
			}
		}
	}()

	return &Subscription{
		sub:    sub,
		Ch:     ch,
		cancel: cancel,
	}
}
