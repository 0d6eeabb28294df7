package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

// pendingMarker holds a key while the request that reserved it runs.
const pendingMarker = "\x00pending"

// reserveKey returns the stored value, or writes the pending marker and
// returns nil when the key is free.
var reserveKey = goredis.NewScript(`
local cur = redis.call('GET', KEYS[1])
if cur then
  return cur
end
redis.call('SET', KEYS[1], ARGV[1], 'PX', ARGV[2])
return false
`)

// IdempotencyCache implements ports.IdempotencyCache. Keys come from
// domain.BuildIdempotencyKey and are scoped per user and operation. A request
// reserves its key before doing any work, so only one request per key runs
// and every replay returns the result it stored.
type IdempotencyCache struct {
	client *goredis.Client
}

func NewIdempotencyCache(client *goredis.Client) *IdempotencyCache {
	return &IdempotencyCache{client: client}
}

// Reserve claims key for ttl. reserved is true when the caller now holds the
// key. Otherwise cached is the stored result, or nil while the holder is
// still running.
func (c *IdempotencyCache) Reserve(ctx context.Context, key string, ttl time.Duration) (cached []byte, reserved bool, err error) {
	val, err := reserveKey.Run(ctx, c.client, []string{prefixIdempotency + key}, pendingMarker, ttl.Milliseconds()).Text()
	switch {
	case errors.Is(err, goredis.Nil):
		return nil, true, nil
	case err != nil:
		return nil, false, fmt.Errorf("redis idempotency reserve: %w", err)
	case val == pendingMarker:
		return nil, false, nil
	}
	return []byte(val), false, nil
}

// Set stores the result for a reserved key, replacing the pending marker.
func (c *IdempotencyCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := c.client.Set(ctx, prefixIdempotency+key, value, ttl).Err(); err != nil {
		return fmt.Errorf("redis idempotency set: %w", err)
	}
	return nil
}

// Release frees a reserved key so the request can be retried.
func (c *IdempotencyCache) Release(ctx context.Context, key string) error {
	if err := c.client.Del(ctx, prefixIdempotency+key).Err(); err != nil {
		return fmt.Errorf("redis idempotency release: %w", err)
	}
	return nil
}
