package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"healthpay-wallet/internal/core/domain"

	goredis "github.com/redis/go-redis/v9"
)

// PaymentIntentStore implements ports.PaymentIntentStore. Intents are stored
// as JSON and vanish when their TTL runs out.
type PaymentIntentStore struct {
	client *goredis.Client
}

// NewPaymentIntentStore creates a new Redis-backed intent store.
func NewPaymentIntentStore(client *goredis.Client) *PaymentIntentStore {
	return &PaymentIntentStore{client: client}
}

// Save stores intent for ttl.
func (s *PaymentIntentStore) Save(ctx context.Context, intent *domain.PaymentIntent, ttl time.Duration) error {
	data, err := json.Marshal(intent)
	if err != nil {
		return fmt.Errorf("marshal intent: %w", err)
	}
	if err := s.client.Set(ctx, prefixIntent+intent.ID, data, ttl).Err(); err != nil {
		return fmt.Errorf("redis intent save: %w", err)
	}
	return nil
}

// Take removes the intent and returns it, or nil when it is unknown or
// expired. GETDEL makes the claim atomic: of several concurrent callers only
// one receives the intent.
func (s *PaymentIntentStore) Take(ctx context.Context, id string) (*domain.PaymentIntent, error) {
	data, err := s.client.GetDel(ctx, prefixIntent+id).Bytes()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("redis intent take: %w", err)
	}

	var intent domain.PaymentIntent
	if err := json.Unmarshal(data, &intent); err != nil {
		return nil, fmt.Errorf("decode intent %s: %w", id, err)
	}
	return &intent, nil
}
