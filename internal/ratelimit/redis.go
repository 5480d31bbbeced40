package ratelimit

import (
	"context"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

// slidingWindowScript performs evict-count-admit as one atomic server
// round trip so concurrent checks cannot race between the count and
// the insert.
//
// KEYS[1] = window sorted set, KEYS[2] = member id counter
// ARGV[1] = now (unix ms), ARGV[2] = window ms, ARGV[3] = max requests
//
// Returns {1, countBeforeAdmit} on admission, {0, oldestScoreMs} on
// denial. Member ids are minted from the INCR counter: a random draw
// could collide and silently under-count concurrent admissions.
var slidingWindowScript = redis.NewScript(`
local now = tonumber(ARGV[1])
local window = tonumber(ARGV[2])
local max = tonumber(ARGV[3])

redis.call('ZREMRANGEBYSCORE', KEYS[1], '-inf', now - window)

local count = redis.call('ZCARD', KEYS[1])
if count < max then
  local seq = redis.call('INCR', KEYS[2])
  redis.call('ZADD', KEYS[1], now, seq .. '-' .. now)
  local ttl = window + 1000
  redis.call('PEXPIRE', KEYS[1], ttl)
  redis.call('PEXPIRE', KEYS[2], ttl)
  return {1, count}
end

local oldest = redis.call('ZRANGE', KEYS[1], 0, 0, 'WITHSCORES')
return {0, tonumber(oldest[2])}
`)

// RedisLimiter enforces sliding windows against a shared Redis so the
// admission bound holds across all service instances.
type RedisLimiter struct {
	client redis.Scripter
	prefix string
}

func NewRedisLimiter(client redis.Scripter) *RedisLimiter {
	return &RedisLimiter{client: client, prefix: "rl:"}
}

func (l *RedisLimiter) Check(ctx context.Context, key string, cfg Config) Result {
	now := time.Now()
	keys := []string{l.prefix + key, l.prefix + key + ":seq"}
	args := []any{now.UnixMilli(), cfg.Window.Milliseconds(), cfg.MaxRequests}

	raw, err := slidingWindowScript.Run(ctx, l.client, keys, args...).Result()
	if err != nil {
		slog.Warn("Rate limit store unavailable, denying", "key", key, "error", err)
		return deny(cfg, now)
	}

	reply, ok := raw.([]any)
	if !ok || len(reply) != 2 {
		slog.Warn("Rate limit script returned unexpected reply, denying", "key", key)
		return deny(cfg, now)
	}
	status, okStatus := reply[0].(int64)
	value, okValue := reply[1].(int64)
	if !okStatus || !okValue {
		slog.Warn("Rate limit script returned unexpected types, denying", "key", key)
		return deny(cfg, now)
	}

	if status == 1 {
		return Result{
			Allowed:   true,
			Limit:     cfg.MaxRequests,
			Remaining: cfg.MaxRequests - int(value) - 1,
			ResetAt:   now.Add(cfg.Window),
		}
	}

	resetAt := time.UnixMilli(value).Add(cfg.Window)
	retryAfter := time.Until(resetAt)
	if retryAfter <= 0 {
		retryAfter = time.Millisecond
	}
	return Result{
		Allowed:    false,
		Limit:      cfg.MaxRequests,
		Remaining:  0,
		ResetAt:    resetAt,
		RetryAfter: retryAfter,
	}
}
