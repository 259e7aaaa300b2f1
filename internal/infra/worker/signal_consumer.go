package worker

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"editorial-pipeline/internal/domain"
	"editorial-pipeline/internal/domain/model"
	"editorial-pipeline/internal/domain/ports/adapter"
	"editorial-pipeline/internal/infra/metrics"
)

// SignalHandler consumes one stage signal. A nil error means the signal may be acked.
type SignalHandler interface {
	HandleSignal(ctx context.Context, sig model.StageSignal) error
}

// recoverer is implemented by queues that park in-flight deliveries per consumer.
type recoverer interface {
	Recover(ctx context.Context) (int, error)
}

type ConsumerOptions struct {
	// ReceiveWait bounds one blocking receive so shutdown is noticed promptly.
	ReceiveWait time.Duration
	// RetryDelay is how long a busy or failed delivery waits before it is nacked.
	RetryDelay time.Duration
}

// SignalConsumer pulls stage signals off the queue and runs them on the pool.
type SignalConsumer struct {
	queue   adapter.SignalQueue
	handler SignalHandler
	pool    *Pool
	opts    ConsumerOptions
	log     zerolog.Logger
}

func NewSignalConsumer(queue adapter.SignalQueue, handler SignalHandler, pool *Pool, opts ConsumerOptions, logger *zerolog.Logger) *SignalConsumer {
	if opts.ReceiveWait <= 0 {
		opts.ReceiveWait = 5 * time.Second
	}
	if opts.RetryDelay <= 0 {
		opts.RetryDelay = 2 * time.Second
	}
	return &SignalConsumer{
		queue:   queue,
		handler: handler,
		pool:    pool,
		opts:    opts,
		log:     logger.With().Str("component", "signal_consumer").Logger(),
	}
}

// Run blocks until ctx is cancelled. Deliveries left in flight at shutdown stay
// parked and are handed back by Recover on the next start.
func (c *SignalConsumer) Run(ctx context.Context) error {
	if r, ok := c.queue.(recoverer); ok {
		n, err := r.Recover(ctx)
		if err != nil {
			c.log.Error().Err(err).Msg("recover parked signals failed")
		} else if n > 0 {
			c.log.Info().Int("count", n).Msg("recovered parked signals")
		}
	}

	c.log.Info().Int("workers", c.pool.Size()).Msg("signal consumer started")
	for {
		if ctx.Err() != nil {
			c.log.Info().Msg("signal consumer stopping")
			return ctx.Err()
		}
		d, err := c.queue.Receive(ctx, c.opts.ReceiveWait)
		if err != nil {
			if ctx.Err() != nil {
				continue
			}
			metrics.IncSignal("error")
			c.log.Error().Err(err).Msg("receive failed")
			sleep(ctx, c.opts.RetryDelay)
			continue
		}
		if d == nil {
			continue
		}
		if err := c.pool.Submit(ctx, func(ctx context.Context) error { return c.handle(ctx, d) }); err != nil {
			// not handed to a worker; leave it parked for Recover
			c.log.Warn().Err(err).Str("job_id", d.Signal.JobID).Msg("could not schedule signal")
		}
	}
}

func (c *SignalConsumer) handle(ctx context.Context, d *adapter.Delivery) error {
	log := c.log.With().Str("job_id", d.Signal.JobID).Int("ordinal", d.Signal.Ordinal).Logger()

	err := c.handler.HandleSignal(ctx, d.Signal)
	switch {
	case err == nil:
		metrics.IncSignal("ack")
		return c.queue.Ack(ctx, d)
	case ctx.Err() != nil:
		metrics.IncSignal("interrupted")
		log.Info().Msg("shutdown while handling signal; left for recovery")
		return nil
	case errors.Is(err, domain.ErrJobBusy):
		metrics.IncSignal("busy")
		log.Debug().Msg("job busy, redelivering later")
	default:
		metrics.IncSignal("error")
		log.Error().Err(err).Msg("signal handling failed, redelivering later")
	}

	if !sleep(ctx, c.opts.RetryDelay) {
		return nil
	}
	metrics.IncSignal("nack")
	return c.queue.Nack(ctx, d)
}

// sleep waits for d and reports false when ctx ended first.
func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
