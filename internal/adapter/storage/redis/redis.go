// Package redis holds the Redis-backed stores: refresh tokens, payment
// intents, idempotency results and rate limit counters for the sandbox
// server, and the shared credential store for wallet installations.
package redis

import (
	"context"
	"fmt"

	"healthpay-wallet/config"

	goredis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// Key prefixes. Every key written by this package starts with one of them.
const (
	prefixCredentials = "credentials:"
	prefixIdempotency = "idempotency:"
	prefixIntent      = "intent:"
	prefixRateLimit   = "ratelimit:"
	prefixRefresh     = "refresh:"
	prefixRefreshUser = "refresh_user:"
)

const clientName = "healthpay-wallet"

// NewClient connects to Redis and fails fast when it is unreachable.
func NewClient(ctx context.Context, cfg config.RedisConfig, log zerolog.Logger) (*goredis.Client, error) {
	client := goredis.NewClient(&goredis.Options{
		Addr:       cfg.Addr(),
		Password:   cfg.Password,
		DB:         cfg.DB,
		ClientName: clientName,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("pinging redis: %w", err)
	}

	log.Info().Str("addr", cfg.Addr()).Int("db", cfg.DB).Msg("redis connected")
	return client, nil
}

// HealthCheck reports Redis reachability on /health.
type HealthCheck struct {
	client *goredis.Client
}

func NewHealthCheck(client *goredis.Client) *HealthCheck {
	return &HealthCheck{client: client}
}

func (h *HealthCheck) Ping(ctx context.Context) error {
	return h.client.Ping(ctx).Err()
}

func (h *HealthCheck) Name() string { return "redis" }
