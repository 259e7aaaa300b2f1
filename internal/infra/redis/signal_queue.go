package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"editorial-pipeline/internal/domain/model"
	"editorial-pipeline/internal/domain/ports/adapter"

	"github.com/go-redis/redis/v8"
)

const signalQueueKey = "stage_signals"

var _ adapter.SignalQueue = (*SignalQueue)(nil)

// SignalQueue is a reliable list queue: a received signal is parked on the consumer's
// processing list until acked, so a crashed consumer can hand it back on restart.
type SignalQueue struct {
	cli        *redis.Client
	queue      string
	processing string
}

func NewSignalQueue(c *Client, consumerID string) *SignalQueue {
	return &SignalQueue{
		cli:        c.cli,
		queue:      signalQueueKey,
		processing: signalQueueKey + ":processing:" + consumerID,
	}
}

func (q *SignalQueue) Publish(ctx context.Context, sig model.StageSignal) error {
	b, err := json.Marshal(sig)
	if err != nil {
		return err
	}
	return q.cli.LPush(ctx, q.queue, b).Err()
}

func (q *SignalQueue) Receive(ctx context.Context, wait time.Duration) (*adapter.Delivery, error) {
	raw, err := q.cli.BRPopLPush(ctx, q.queue, q.processing, wait).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var sig model.StageSignal
	if err := json.Unmarshal([]byte(raw), &sig); err != nil {
		// unreadable payloads would be redelivered forever
		_ = q.cli.LRem(ctx, q.processing, 1, raw).Err()
		return nil, fmt.Errorf("decode stage signal: %w", err)
	}
	return &adapter.Delivery{Signal: sig, Raw: raw}, nil
}

func (q *SignalQueue) Ack(ctx context.Context, d *adapter.Delivery) error {
	return q.cli.LRem(ctx, q.processing, 1, d.Raw).Err()
}

// Nack puts the delivery at the back of the queue.
func (q *SignalQueue) Nack(ctx context.Context, d *adapter.Delivery) error {
	_, err := q.cli.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.LRem(ctx, q.processing, 1, d.Raw)
		p.LPush(ctx, q.queue, d.Raw)
		return nil
	})
	return err
}

// Recover moves deliveries left on this consumer's processing list back onto the queue.
func (q *SignalQueue) Recover(ctx context.Context) (int, error) {
	n := 0
	for {
		err := q.cli.RPopLPush(ctx, q.processing, q.queue).Err()
		if errors.Is(err, redis.Nil) {
			return n, nil
		}
		if err != nil {
			return n, err
		}
		n++
	}
}

// Depth reports signals waiting to be received.
func (q *SignalQueue) Depth(ctx context.Context) (int64, error) {
	return q.cli.LLen(ctx, q.queue).Result()
}
