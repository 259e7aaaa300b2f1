package adapter

import (
	"context"
	"time"

	"editorial-pipeline/internal/domain/model"
)

// Delivery is one received stage signal. It must be acked or nacked.
type Delivery struct {
	Signal model.StageSignal
	Raw    string
}

// SignalQueue is a durable at-least-once queue of stage signals.
type SignalQueue interface {
	Publish(ctx context.Context, sig model.StageSignal) error
	// Receive blocks up to wait for a delivery. It returns (nil, nil) on timeout.
	Receive(ctx context.Context, wait time.Duration) (*Delivery, error)
	Ack(ctx context.Context, d *Delivery) error
	// Nack returns the delivery to the queue for redelivery.
	Nack(ctx context.Context, d *Delivery) error
}

// Locker grants exclusive, expiring ownership of a key.
// TryLock returns domain.ErrJobBusy when the key is held by someone else.
type Locker interface {
	TryLock(ctx context.Context, key string, ttl time.Duration) (token string, err error)
	Unlock(ctx context.Context, key, token string) error
}
