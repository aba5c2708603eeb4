package cache

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/aq2208/payment-relay/internal/usecase"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// slidingWindow trims the window, counts it and records the request in one
// step, so concurrent callers cannot all pass the same count check.
//
// KEYS[1] window key
// ARGV[1] now (µs), ARGV[2] window (µs), ARGV[3] limit, ARGV[4] member
var slidingWindow = redis.NewScript(`
local now = tonumber(ARGV[1])
local window = tonumber(ARGV[2])
redis.call('ZREMRANGEBYSCORE', KEYS[1], '-inf', now - window)
if redis.call('ZCARD', KEYS[1]) >= tonumber(ARGV[3]) then
  return 0
end
redis.call('ZADD', KEYS[1], now, ARGV[4])
redis.call('PEXPIRE', KEYS[1], math.ceil(window / 1000) + 60000)
return 1
`)

// RedisRateLimiter is a sliding-window limiter on sorted sets: one member per
// admitted request, scored by its timestamp.
type RedisRateLimiter struct {
	rdb *redis.Client
}

func NewRedisRateLimiter(rdb *redis.Client) *RedisRateLimiter {
	return &RedisRateLimiter{rdb: rdb}
}

func (r *RedisRateLimiter) Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	if limit <= 0 {
		return true, nil
	}
	now := time.Now().UnixMicro()
	member := strconv.FormatInt(now, 10) + ":" + uuid.NewString()

	ok, err := slidingWindow.Run(ctx, r.rdb, []string{rateKey(key, window)},
		now, window.Microseconds(), limit, member).Int()
	if err != nil {
		return false, fmt.Errorf("rate window: %w", err)
	}
	return ok == 1, nil
}

// Reset forgets every window recorded for key.
func (r *RedisRateLimiter) Reset(ctx context.Context, key string) error {
	iter := r.rdb.Scan(ctx, 0, "ratelimit:"+key+":*", 0).Iterator()
	for iter.Next(ctx) {
		if err := r.rdb.Del(ctx, iter.Val()).Err(); err != nil {
			return fmt.Errorf("delete %s: %w", iter.Val(), err)
		}
	}
	return iter.Err()
}

func rateKey(key string, window time.Duration) string {
	return "ratelimit:" + key + ":" + window.String()
}

var _ usecase.RateLimiter = (*RedisRateLimiter)(nil)
