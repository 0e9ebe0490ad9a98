// SPDX-License-Identifier: Apache-2.0

package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// consumeScript implements the sliding-window check-and-increment as one
// atomic Redis operation: prune aged entries, compare the count against
// the ceiling, and either register the call or report how long until the
// oldest counted call ages out. All times are in milliseconds.
var consumeScript = redis.NewScript(`
local key = KEYS[1]
local now = tonumber(ARGV[1])
local window = tonumber(ARGV[2])
local ceiling = tonumber(ARGV[3])
local member = ARGV[4]

redis.call('ZREMRANGEBYSCORE', key, '-inf', now - window)
local count = redis.call('ZCARD', key)

if count >= ceiling then
  local oldest = redis.call('ZRANGE', key, 0, 0, 'WITHSCORES')
  local retry = 1
  if oldest[2] then
    retry = math.ceil((tonumber(oldest[2]) + window - now) / 1000)
    if retry < 1 then retry = 1 end
  end
  return {0, 0, retry}
end

redis.call('ZADD', key, now, member)
redis.call('PEXPIRE', key, window + 1000)
return {1, ceiling - count - 1, 0}
`)

// RedisCounter backs the rolling-window counter with a Redis sorted set
// per key, shared across all service instances.
type RedisCounter struct {
	client *redis.Client
}

func NewRedisCounter(client *redis.Client) *RedisCounter {
	return &RedisCounter{client: client}
}

// Connect builds a Redis-backed counter and verifies connectivity.
func Connect(ctx context.Context, addr, password string, db int) (*RedisCounter, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	return &RedisCounter{client: client}, nil
}

func (c *RedisCounter) Close() error {
	return c.client.Close()
}

func (c *RedisCounter) TryConsume(ctx context.Context, key string, ceiling int, window time.Duration) (Decision, error) {
	if ceiling <= 0 {
		ceiling = 1
	}

	res, err := consumeScript.Run(
		ctx,
		c.client,
		[]string{"ratelimit:" + key},
		time.Now().UnixMilli(),
		window.Milliseconds(),
		ceiling,
		uuid.NewString(),
	).Int64Slice()
	if err != nil {
		return Decision{}, fmt.Errorf("rate counter script: %w", err)
	}
	if len(res) != 3 {
		return Decision{}, fmt.Errorf("rate counter script returned %d values", len(res))
	}

	return Decision{
		Allowed:           res[0] == 1,
		Remaining:         int(res[1]),
		RetryAfterSeconds: int(res[2]),
	}, nil
}
