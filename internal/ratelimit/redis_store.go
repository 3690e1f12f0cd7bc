package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// takeScript implements the fixed-window contract atomically: first request
// creates the counter with a TTL, requests at the limit are rejected without
// incrementing, expired keys are reset by redis itself.
var takeScript = redis.NewScript(`
local limit = tonumber(ARGV[1])
local window_ms = tonumber(ARGV[2])
local count = tonumber(redis.call('GET', KEYS[1]) or '0')
if count == 0 then
  redis.call('SET', KEYS[1], 1, 'PX', window_ms)
  return {1, 1, window_ms}
end
local ttl = redis.call('PTTL', KEYS[1])
if ttl < 0 then
  ttl = window_ms
end
if count >= limit then
  return {0, count, ttl}
end
count = redis.call('INCR', KEYS[1])
return {1, count, ttl}
`)

// RedisStore backs the limiter with a shared TTL counter so limits hold
// across instances.
type RedisStore struct {
	client *redis.Client
}

func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

func (s *RedisStore) Take(ctx context.Context, key string, limit int, window time.Duration) (Result, error) {
	raw, err := takeScript.Run(ctx, s.client, []string{key}, limit, window.Milliseconds()).Result()
	if err != nil {
		return Result{}, fmt.Errorf("failed to run rate limit script: %w", err)
	}

	values, ok := raw.([]interface{})
	if !ok || len(values) != 3 {
		return Result{}, fmt.Errorf("unexpected rate limit script reply: %v", raw)
	}

	allowed, _ := values[0].(int64)
	count, _ := values[1].(int64)
	ttlMillis, _ := values[2].(int64)

	remaining := limit - int(count)
	if remaining < 0 {
		remaining = 0
	}

	return Result{
		Allowed:   allowed == 1,
		Limit:     limit,
		Remaining: remaining,
		ResetAt:   time.Now().Add(time.Duration(ttlMillis) * time.Millisecond),
	}, nil
}
