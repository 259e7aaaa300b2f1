package repository

import (
	"context"
	"time"

	"editorial-pipeline/internal/domain/model"
)

// RateLimitStore is an atomic increment-with-TTL counter shared across worker processes.
type RateLimitStore interface {
	// Hit counts one request against key unless the window is already at ceiling.
	// A missing or expired window starts fresh at count 1.
	Hit(ctx context.Context, key string, ceiling int, window time.Duration) (rec model.RateLimitRecord, allowed bool, err error)
}
