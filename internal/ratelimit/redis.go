package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// checkScript performs the prune/count/admit cycle atomically so concurrent requests
// from the same identity cannot both observe stale capacity.
// Returns {allowed, remaining, oldest score in ms}.
var checkScript = redis.NewScript(`
local key = KEYS[1]
local now = tonumber(ARGV[1])
local window = tonumber(ARGV[2])
local limit = tonumber(ARGV[3])
local member = ARGV[4]

redis.call('ZREMRANGEBYSCORE', key, 0, now - window)
local count = redis.call('ZCARD', key)
if count >= limit then
	local oldest = redis.call('ZRANGE', key, 0, 0, 'WITHSCORES')
	return {0, 0, tonumber(oldest[2])}
end

redis.call('ZADD', key, now, member)
redis.call('PEXPIRE', key, window)
local oldest = redis.call('ZRANGE', key, 0, 0, 'WITHSCORES')
return {1, limit - count - 1, tonumber(oldest[2])}
`)

// RedisLimiter shares the sliding window across process instances via a sorted set
// per identity, scored by request time in milliseconds.
type RedisLimiter struct {
	client *redis.Client
	prefix string
	now    func() time.Time
}

// NewRedisLimiter constructs a limiter backed by the supplied Redis client.
func NewRedisLimiter(client *redis.Client) *RedisLimiter {
	return &RedisLimiter{
		client: client,
		prefix: "essaymark:ratelimit:",
		now:    time.Now,
	}
}

// Check admits or denies the request under the identity's shared window.
func (l *RedisLimiter) Check(ctx context.Context, identity string, tier Tier) (Decision, error) {
	limit := tier.Limit()
	windowDuration := tier.Window()
	now := l.now()

	raw, err := checkScript.Run(ctx, l.client, []string{l.prefix + identity},
		now.UnixMilli(), windowDuration.Milliseconds(), limit, uuid.NewString()).Result()
	if err != nil {
		return Decision{}, fmt.Errorf("rate limit check: %w", err)
	}

	values, ok := raw.([]interface{})
	if !ok || len(values) != 3 {
		return Decision{}, fmt.Errorf("rate limit check: unexpected script reply %v", raw)
	}

	allowed, _ := values[0].(int64)
	remaining, _ := values[1].(int64)
	oldestMs, _ := values[2].(int64)

	return Decision{
		Allowed:   allowed == 1,
		Remaining: int(remaining),
		ResetAt:   time.UnixMilli(oldestMs).Add(windowDuration),
	}, nil
}
