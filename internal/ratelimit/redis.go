package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/redis/go-redis/v9"
)

// slidingWindow runs the whole check server-side so concurrent instances
// can't interleave between the count and the add.
//
// KEYS[1] is a sorted set of hits scored by millisecond timestamp. Hits
// older than the window are trimmed, the survivors counted, and the new hit
// recorded only when there is room. Refused hits are not recorded, so a
// client hammering a spent budget doesn't keep pushing its own reset out.
//
// Returns {allowed (0/1), hits in window, ms until the oldest hit expires}.
var slidingWindow = redis.NewScript(`
local key = KEYS[1]
local window = tonumber(ARGV[1])
local limit = tonumber(ARGV[2])
local member = ARGV[3]

local t = redis.call('TIME')
local now = tonumber(t[1]) * 1000 + math.floor(tonumber(t[2]) / 1000)

redis.call('ZREMRANGEBYSCORE', key, '-inf', now - window)
local used = redis.call('ZCARD', key)
local allowed = 0
if used < limit then
  redis.call('ZADD', key, now, member)
  used = used + 1
  allowed = 1
end

local reset = window
local oldest = redis.call('ZRANGE', key, 0, 0, 'WITHSCORES')
if oldest[2] then
  reset = tonumber(oldest[2]) + window - now
  redis.call('PEXPIRE', key, reset)
end
return {allowed, used, reset}
`)

// RedisLimiter keeps hit logs in Redis so every server instance shares them.
type RedisLimiter struct {
	client *redis.Client
}

// NewRedisLimiter connects to the Redis instance at url
// (redis://[:password@]host:port/db). token, when set, overrides the password
// embedded in the URL, matching hosted Redis offerings that hand out a URL and
// a separate access token.
func NewRedisLimiter(ctx context.Context, url, token string) (*RedisLimiter, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("ratelimit: parsing redis url: %w", err)
	}
	if token != "" {
		opts.Password = token
	}

	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("ratelimit: connecting to redis: %w", err)
	}

	return &RedisLimiter{client: client}, nil
}

// Allow runs the sliding-window script for key. The timestamp comes from the
// Redis server clock, so instances with skewed clocks still agree.
func (l *RedisLimiter) Allow(ctx context.Context, rule Rule, key string) (Result, error) {
	k := storageKey(rule, key)

	vals, err := slidingWindow.Run(ctx, l.client, []string{k},
		rule.Window.Milliseconds(), rule.Limit, ulid.Make().String(),
	).Int64Slice()
	if err != nil {
		return Result{}, fmt.Errorf("ratelimit: sliding window for %s: %w", k, err)
	}
	if len(vals) != 3 {
		return Result{}, fmt.Errorf("ratelimit: sliding window for %s: unexpected reply %v", k, vals)
	}

	return result(rule, vals[0] == 1, vals[1], time.Duration(vals[2])*time.Millisecond), nil
}

// Close releases the Redis connection pool.
func (l *RedisLimiter) Close() error {
	return l.client.Close()
}
