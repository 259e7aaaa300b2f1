package redis

import (
	"context"
	"fmt"
	"time"

	"editorial-pipeline/internal/domain/model"
	"editorial-pipeline/internal/domain/ports/repository"

	"github.com/go-redis/redis/v8"
)

var _ repository.RateLimitStore = (*RateLimiter)(nil)

// RateLimiter is a fixed-window counter. Each key expires with its window.
type RateLimiter struct {
	cli *redis.Client
	now func() time.Time
}

func NewRateLimiter(c *Client) *RateLimiter {
	return &RateLimiter{cli: c.cli, now: time.Now}
}

// luaHit denies without counting once the ceiling is reached.
// Returns {allowed, count, pttl_ms}.
var luaHit = redis.NewScript(`
local current = tonumber(redis.call("GET", KEYS[1]) or "0")
local ceiling = tonumber(ARGV[1])
local window = tonumber(ARGV[2])
local allowed = 0
if current < ceiling then
	current = redis.call("INCR", KEYS[1])
	allowed = 1
end
local ttl = redis.call("PTTL", KEYS[1])
if ttl < 0 then
	redis.call("PEXPIRE", KEYS[1], window)
	ttl = window
end
return {allowed, current, ttl}`)

func (r *RateLimiter) Hit(ctx context.Context, key string, ceiling int, window time.Duration) (model.RateLimitRecord, bool, error) {
	res, err := luaHit.Run(ctx, r.cli, []string{key}, ceiling, window.Milliseconds()).Int64Slice()
	if err != nil {
		return model.RateLimitRecord{}, false, fmt.Errorf("rate limit %s: %w", key, err)
	}
	if len(res) != 3 {
		return model.RateLimitRecord{}, false, fmt.Errorf("rate limit %s: unexpected reply %v", key, res)
	}
	rec := model.RateLimitRecord{
		Key:     key,
		Count:   int(res[1]),
		ResetAt: r.now().Add(time.Duration(res[2]) * time.Millisecond),
	}
	return rec, res[0] == 1, nil
}
