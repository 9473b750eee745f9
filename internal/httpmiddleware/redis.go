package httpmiddleware

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

var tokenBucketScript = redis.NewScript(`
local key = KEYS[1]
local now_ms = tonumber(ARGV[1])
local capacity = tonumber(ARGV[2])
local interval_ms = tonumber(ARGV[3])
local ttl_seconds = tonumber(ARGV[4])

local state = redis.call('HMGET', key, 'tokens', 'last_refill_ms')
local tokens = tonumber(state[1])
local last_refill = tonumber(state[2])
if tokens == nil or last_refill == nil then
	tokens = capacity
	last_refill = now_ms
end

local elapsed = math.max(0, now_ms - last_refill)
local intervals = math.floor(elapsed / interval_ms)
if intervals > 0 then
	tokens = math.min(capacity, tokens + intervals)
	last_refill = last_refill + (intervals * interval_ms)
end

local allowed = 0
local retry_after_ms = 0
if tokens > 0 then
	allowed = 1
	tokens = tokens - 1
else
	retry_after_ms = math.max(0, interval_ms - (now_ms - last_refill))
end

redis.call('HSET', key, 'tokens', tokens, 'last_refill_ms', last_refill)
redis.call('EXPIRE', key, ttl_seconds)
return { allowed, retry_after_ms }
`)

// RedisTokenBucket shares one bucket per key across API instances. Refill and
// spend happen atomically inside a Lua script.
type RedisTokenBucket struct {
	client    *redis.Client
	prefix    string
	capacity  int
	perMinute int
}

func NewRedisTokenBucket(client *redis.Client, capacity, perMinute int) *RedisTokenBucket {
	if capacity <= 0 {
		capacity = perMinute
	}
	if perMinute <= 0 {
		perMinute = 1
	}
	return &RedisTokenBucket{client: client, prefix: "pathak:ratelimit", capacity: capacity, perMinute: perMinute}
}

func (l *RedisTokenBucket) Allow(ctx context.Context, key string) (bool, time.Duration, error) {
	interval := time.Minute / time.Duration(l.perMinute)
	args := []interface{}{
		time.Now().UnixMilli(),
		l.capacity,
		interval.Milliseconds(),
		120,
	}
	vals, err := tokenBucketScript.Run(ctx, l.client, []string{l.prefix + ":" + key}, args...).Slice()
	if err != nil {
		return false, 0, err
	}
	if len(vals) != 2 {
		return false, 0, fmt.Errorf("ratelimit: unexpected script result %v", vals)
	}
	retry := time.Duration(asInt64(vals[1])) * time.Millisecond
	return asInt64(vals[0]) == 1, retry, nil
}

func asInt64(v interface{}) int64 {
	switch t := v.(type) {
	case int64:
		return t
	case int:
		return int64(t)
	case float64:
		return int64(t)
	case string:
		n, _ := strconv.ParseInt(t, 10, 64)
		return n
	}
	return 0
}
