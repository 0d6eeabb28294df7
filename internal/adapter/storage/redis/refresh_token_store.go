package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
)

// RefreshTokenStore implements ports.RefreshTokenStore. Each token maps to
// its owner; a per-user set tracks live tokens so logout can revoke them all.
type RefreshTokenStore struct {
	client *goredis.Client
}

// NewRefreshTokenStore creates a new Redis-backed refresh token store.
func NewRefreshTokenStore(client *goredis.Client) *RefreshTokenStore {
	return &RefreshTokenStore{client: client}
}

func tokenKey(token string) string { return prefixRefresh + token }

func userTokensKey(userID uuid.UUID) string { return prefixRefreshUser + userID.String() }

// Save stores token for userID with the given lifetime.
func (s *RefreshTokenStore) Save(ctx context.Context, token string, userID uuid.UUID, ttl time.Duration) error {
	_, err := s.client.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
		pipe.Set(ctx, tokenKey(token), userID.String(), ttl)
		pipe.SAdd(ctx, userTokensKey(userID), token)
		pipe.Expire(ctx, userTokensKey(userID), ttl)
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis refresh save: %w", err)
	}
	return nil
}

// Consume removes token and returns its owner. Tokens are single use: a
// second Consume of the same token reports ok=false.
func (s *RefreshTokenStore) Consume(ctx context.Context, token string) (uuid.UUID, bool, error) {
	val, err := s.client.GetDel(ctx, tokenKey(token)).Result()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return uuid.Nil, false, nil
		}
		return uuid.Nil, false, fmt.Errorf("redis refresh consume: %w", err)
	}

	userID, err := uuid.Parse(val)
	if err != nil {
		return uuid.Nil, false, fmt.Errorf("corrupt refresh token owner %q: %w", val, err)
	}

	if err := s.client.SRem(ctx, userTokensKey(userID), token).Err(); err != nil {
		return uuid.Nil, false, fmt.Errorf("redis refresh untrack: %w", err)
	}
	return userID, true, nil
}

// RevokeAll deletes every live refresh token of userID.
func (s *RefreshTokenStore) RevokeAll(ctx context.Context, userID uuid.UUID) error {
	setKey := userTokensKey(userID)
	tokens, err := s.client.SMembers(ctx, setKey).Result()
	if err != nil {
		return fmt.Errorf("redis refresh list: %w", err)
	}

	keys := make([]string, 0, len(tokens)+1)
	for _, t := range tokens {
		keys = append(keys, tokenKey(t))
	}
	keys = append(keys, setKey)

	if err := s.client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("redis refresh revoke: %w", err)
	}
	return nil
}
