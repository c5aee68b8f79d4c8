package ratelimit

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/redis/go-redis/v9"
)

const defaultPrefix = "mathanim:rl:"

// Decision is the outcome of one Allow call.
type Decision struct {
	Allowed    bool
	Remaining  float64
	RetryAfter time.Duration
}

// Limiter is a token bucket per subject, stored in Redis so that every API
// replica draws from the same budget.
type Limiter struct {
	client   redis.Scripter
	prefix   string
	capacity int
	refill   float64 // tokens per second
	ttl      time.Duration
	now      func() time.Time
}

// New returns a limiter holding at most capacity tokens per subject, refilled
// at refillPerSecond. Idle buckets expire once they would be full again.
func New(client redis.Scripter, capacity int, refillPerSecond float64) *Limiter {
	var ttl time.Duration
	if refillPerSecond > 0 {
		ttl = time.Duration(float64(capacity)/refillPerSecond*float64(time.Second)) + time.Minute
	}
	return &Limiter{
		client:   client,
		prefix:   defaultPrefix,
		capacity: capacity,
		refill:   refillPerSecond,
		ttl:      ttl,
		now:      time.Now,
	}
}

// Key is the Redis key holding subject's bucket.
func (l *Limiter) Key(subject string) string {
	return l.prefix + subject
}

// Allow takes one token from subject's bucket if one is available.
func (l *Limiter) Allow(ctx context.Context, subject string) (Decision, error) {
	now := l.now().UnixMilli()
	res, err := bucketScript.Run(ctx, l.client, []string{l.Key(subject)},
		l.capacity, l.refill, now, l.ttl.Milliseconds()).Int64Slice()
	if err != nil {
		return Decision{}, fmt.Errorf("rate limit %s: %w", subject, err)
	}
	if len(res) < 2 {
		return Decision{}, fmt.Errorf("rate limit %s: unexpected script reply %v", subject, res)
	}

	d := Decision{
		Allowed:   res[0] == 1,
		Remaining: float64(res[1]) / 1000,
	}
	if !d.Allowed && l.refill > 0 {
		secs := (1 - d.Remaining) / l.refill
		d.RetryAfter = time.Duration(math.Ceil(secs)) * time.Second
	}
	return d, nil
}

// Tokens are returned in thousandths: Redis truncates Lua numbers to integers.
var bucketScript = redis.NewScript(`
local key = KEYS[1]
local capacity = tonumber(ARGV[1])
local refill = tonumber(ARGV[2])
local now = tonumber(ARGV[3])
local ttl = tonumber(ARGV[4])

local data = redis.call('HMGET', key, 'tokens', 'last_ms')
local tokens = tonumber(data[1])
local last = tonumber(data[2])
if tokens == nil then tokens = capacity end
if last == nil then last = now end

local delta = math.max(0, now - last)
tokens = math.min(capacity, tokens + delta / 1000 * refill)

local allowed = 0
if tokens >= 1 then
  allowed = 1
  tokens = tokens - 1
end

redis.call('HSET', key, 'tokens', tokens, 'last_ms', now)
if ttl > 0 then redis.call('PEXPIRE', key, ttl) end
return {allowed, math.floor(tokens * 1000)}
`)
