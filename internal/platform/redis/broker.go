package redis

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/tverdon/offload-api/internal/broker"
	"github.com/tverdon/offload-api/internal/codec"
)

// Broker implements broker.Broker on Redis. Ready messages live on a
// list per queue; delayed messages sit in a sorted set scored by due
// time and are promoted to the list on Consume. Promotion and pop are
// not a single atomic step, which can duplicate a delivery if two
// consumers race — acceptable under the at-least-once contract.
type Broker struct {
	client *goredis.Client
	codec  codec.Codec
}

// NewBroker creates a Redis-backed broker using the given codec for
// message frames.
func NewBroker(client *goredis.Client, c codec.Codec) *Broker {
	return &Broker{client: client, codec: c}
}

// Publish enqueues the message on the named queue.
func (b *Broker) Publish(ctx context.Context, queue string, msg broker.Message) error {
	data, err := b.codec.Marshal(msg)
	if err != nil {
		return fmt.Errorf("redis: encode message: %w", err)
	}
	if err := b.client.RPush(ctx, queueKey(queue), data).Err(); err != nil {
		return fmt.Errorf("redis: publish to %q: %w", queue, err)
	}
	return nil
}

// PublishAfter schedules the message to become visible after delay.
func (b *Broker) PublishAfter(ctx context.Context, queue string, msg broker.Message, delay time.Duration) error {
	if delay <= 0 {
		return b.Publish(ctx, queue, msg)
	}
	data, err := b.codec.Marshal(msg)
	if err != nil {
		return fmt.Errorf("redis: encode message: %w", err)
	}
	due := float64(time.Now().UTC().Add(delay).UnixMilli())
	if err := b.client.ZAdd(ctx, delayedKey(queue), goredis.Z{Score: due, Member: data}).Err(); err != nil {
		return fmt.Errorf("redis: publish delayed to %q: %w", queue, err)
	}
	return nil
}

// Consume promotes any due delayed messages, then pops the first ready
// message from the given queues in order.
func (b *Broker) Consume(ctx context.Context, queues []string) (broker.Message, bool, error) {
	for _, q := range queues {
		if err := b.promoteDue(ctx, q); err != nil {
			return broker.Message{}, false, err
		}

		data, err := b.client.LPop(ctx, queueKey(q)).Bytes()
		if errors.Is(err, goredis.Nil) {
			continue
		}
		if err != nil {
			return broker.Message{}, false, fmt.Errorf("redis: consume from %q: %w", q, err)
		}

		var msg broker.Message
		if err := b.codec.Unmarshal(data, &msg); err != nil {
			return broker.Message{}, false, fmt.Errorf("redis: decode message from %q: %w", q, err)
		}
		return msg, true, nil
	}
	return broker.Message{}, false, nil
}

// promoteDue moves messages whose due time has passed from the delayed
// sorted set onto the ready list.
func (b *Broker) promoteDue(ctx context.Context, queue string) error {
	now := strconv.FormatInt(time.Now().UTC().UnixMilli(), 10)
	due, err := b.client.ZRangeByScore(ctx, delayedKey(queue), &goredis.ZRangeBy{
		Min: "-inf",
		Max: now,
	}).Result()
	if err != nil {
		return fmt.Errorf("redis: promote delayed for %q: %w", queue, err)
	}

	for _, member := range due {
		pipe := b.client.TxPipeline()
		pipe.ZRem(ctx, delayedKey(queue), member)
		pipe.RPush(ctx, queueKey(queue), member)
		if _, err := pipe.Exec(ctx); err != nil {
			return fmt.Errorf("redis: promote delayed for %q: %w", queue, err)
		}
	}
	return nil
}

// Close releases the underlying client connection.
func (b *Broker) Close() error {
	return b.client.Close()
}
