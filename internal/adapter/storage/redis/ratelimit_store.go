package redis

import (
	"context"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

// Quota is a number of hits allowed per window.
type Quota struct {
	Limit  int64
	Window time.Duration
}

// Decision is the outcome of one counted hit.
type Decision struct {
	Allowed   bool
	Limit     int64
	Remaining int64
	ResetAt   time.Time
}

// incrWindow bumps a window counter and arms its expiry on the first hit,
// atomically so a crash between the two cannot leave an immortal key.
var incrWindow = goredis.NewScript(`
local n = redis.call('INCR', KEYS[1])
if n == 1 then
  redis.call('PEXPIRE', KEYS[1], ARGV[1])
end
return n
`)

// RateLimitStore counts hits in fixed windows aligned to the window length.
type RateLimitStore struct {
	client *goredis.Client
	now    func() time.Time
}

func NewRateLimitStore(client *goredis.Client) *RateLimitStore {
	return &RateLimitStore{client: client, now: time.Now}
}

// Allow counts one hit for key under q.
func (s *RateLimitStore) Allow(ctx context.Context, key string, q Quota) (Decision, error) {
	window := q.Window.Truncate(time.Second)
	if window < time.Second {
		window = time.Second
	}
	start := s.now().Truncate(window)

	// The extra second keeps the counter alive across clock skew between
	// instances sharing it.
	ttl := window + time.Second
	n, err := incrWindow.Run(ctx, s.client,
		[]string{fmt.Sprintf("%s%s:%d", prefixRateLimit, key, start.Unix())},
		ttl.Milliseconds(),
	).Int64()
	if err != nil {
		return Decision{}, fmt.Errorf("counting hit for %s: %w", key, err)
	}

	return Decision{
		Allowed:   n <= q.Limit,
		Limit:     q.Limit,
		Remaining: max(q.Limit-n, 0),
		ResetAt:   start.Add(window),
	}, nil
}
