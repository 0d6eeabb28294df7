// Package memory holds process-local state that does not survive a restart.
package memory

import (
	"context"
	"sync"
	"time"

	"healthpay-wallet/internal/core/domain"
)

// CredentialStore implements ports.CredentialStore in memory. It backs the
// "memory" credentials backend, useful for one-shot CLI runs and tests.
type CredentialStore struct {
	mu      sync.Mutex
	session *domain.Session
	ttl     time.Duration
	now     func() time.Time
}

// NewCredentialStore creates an empty store whose sessions expire tokenTTL
// after they are saved.
func NewCredentialStore(tokenTTL time.Duration) *CredentialStore {
	return &CredentialStore{ttl: tokenTTL, now: time.Now}
}

// WithClock replaces the time source.
func (s *CredentialStore) WithClock(now func() time.Time) *CredentialStore {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
	return s
}

// Get returns a copy of the stored session, or nil.
func (s *CredentialStore) Get(context.Context) *domain.Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.session == nil {
		return nil
	}
	cp := *s.session
	return &cp
}

// Save replaces the stored session.
func (s *CredentialStore) Save(_ context.Context, accessToken, refreshToken string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.session = &domain.Session{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		ExpiresAt:    s.now().Add(s.ttl),
	}
	return nil
}

// Clear drops the stored session.
func (s *CredentialStore) Clear(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.session = nil
	return nil
}

// IsExpired reports whether there is no session or it is past its expiry.
func (s *CredentialStore) IsExpired(ctx context.Context) bool {
	session := s.Get(ctx)
	s.mu.Lock()
	now := s.now()
	s.mu.Unlock()
	return session == nil || session.Expired(now)
}
