package redis

import (
	"context"
	"fmt"
	"time"

	"healthpay-wallet/internal/core/domain"
	"healthpay-wallet/internal/core/ports"

	goredis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// CredentialStore implements ports.CredentialStore on a Redis hash, one per
// installation. Every field value is encrypted.
type CredentialStore struct {
	client *goredis.Client
	enc    ports.EncryptionService
	key    string
	ttl    time.Duration
	now    func() time.Time
	log    zerolog.Logger
}

// NewCredentialStore creates a credential store keyed by installationID.
// Saved sessions expire tokenTTL after they are written.
func NewCredentialStore(client *goredis.Client, enc ports.EncryptionService, installationID string, tokenTTL time.Duration, log zerolog.Logger) *CredentialStore {
	return &CredentialStore{
		client: client,
		enc:    enc,
		key:    prefixCredentials + installationID,
		ttl:    tokenTTL,
		now:    time.Now,
		log:    log.With().Str("component", "credential_store").Str("backend", "redis").Logger(),
	}
}

// Get returns the stored session, or nil when none is usable.
func (s *CredentialStore) Get(ctx context.Context) *domain.Session {
	sealed, err := s.client.HGetAll(ctx, s.key).Result()
	if err != nil {
		s.log.Warn().Err(err).Msg("reading credentials failed")
		return nil
	}
	if len(sealed) == 0 {
		return nil
	}

	session, err := ports.OpenSession(s.enc, sealed)
	if err != nil {
		s.log.Warn().Err(err).Msg("stored credentials unusable")
		return nil
	}
	return session
}

// Save replaces the stored session.
func (s *CredentialStore) Save(ctx context.Context, accessToken, refreshToken string) error {
	session := &domain.Session{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		ExpiresAt:    s.now().Add(s.ttl),
	}

	sealed, err := ports.SealSession(s.enc, session)
	if err != nil {
		return err
	}
	values := make(map[string]any, len(sealed))
	for k, v := range sealed {
		values[k] = v
	}

	_, err = s.client.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
		pipe.Del(ctx, s.key)
		pipe.HSet(ctx, s.key, values)
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis credentials save: %w", err)
	}
	return nil
}

// Clear removes the stored session.
func (s *CredentialStore) Clear(ctx context.Context) error {
	if err := s.client.Del(ctx, s.key).Err(); err != nil {
		return fmt.Errorf("redis credentials clear: %w", err)
	}
	return nil
}

// IsExpired reports whether there is no session or it is past its expiry.
func (s *CredentialStore) IsExpired(ctx context.Context) bool {
	session := s.Get(ctx)
	return session == nil || session.Expired(s.now())
}
