package middleware

import (
	"context"
	"math"
	"strconv"
	"time"

	redisStore "healthpay-wallet/internal/adapter/storage/redis"
	"healthpay-wallet/pkg/apperror"
	"healthpay-wallet/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// RateLimitRule is the quota of one route group.
type RateLimitRule = redisStore.Quota

// Limiter counts hits per key.
type Limiter interface {
	Allow(ctx context.Context, key string, q redisStore.Quota) (redisStore.Decision, error)
}

// DefaultRateLimitRules returns the per-group limits of the sandbox API.
func DefaultRateLimitRules() map[string]RateLimitRule {
	return map[string]RateLimitRule{
		"auth_login":    {Limit: 10, Window: time.Minute},
		"auth_register": {Limit: 5, Window: time.Hour},
		"auth_refresh":  {Limit: 30, Window: time.Minute},
		"wallet":        {Limit: 120, Window: time.Minute},
		"wallet_send":   {Limit: 20, Window: time.Minute},
		"qr":            {Limit: 30, Window: time.Minute},
	}
}

// RateLimiter enforces rule on group. When the counter store fails the
// request is let through and the failure logged.
func RateLimiter(store Limiter, group string, rule RateLimitRule, log zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		d, err := store.Allow(c.Request.Context(), extractIdentifier(c)+":"+group, rule)
		if err != nil {
			log.Warn().Err(err).Str("group", group).Msg("rate limiter unavailable, failing open")
			c.Next()
			return
		}

		h := c.Writer.Header()
		h.Set("X-RateLimit-Limit", strconv.FormatInt(d.Limit, 10))
		h.Set("X-RateLimit-Remaining", strconv.FormatInt(d.Remaining, 10))
		h.Set("X-RateLimit-Reset", strconv.FormatInt(d.ResetAt.Unix(), 10))
		if d.Allowed {
			c.Next()
			return
		}

		wait := int64(math.Ceil(time.Until(d.ResetAt).Seconds()))
		h.Set("Retry-After", strconv.FormatInt(max(wait, 1), 10))
		response.Abort(c, apperror.ErrRateLimitExceeded())
	}
}

// extractIdentifier keys authenticated routes by user and public ones by IP.
func extractIdentifier(c *gin.Context) string {
	if id, ok := UserID(c); ok {
		return "user:" + id.String()
	}
	return "ip:" + c.ClientIP()
}
