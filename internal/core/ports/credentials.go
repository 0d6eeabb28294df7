package ports

import (
	"context"
	"fmt"

	"healthpay-wallet/internal/core/domain"
)

// CredentialStore persists the client session. Implementations treat any
// read failure as "no session" and never return a session without an
// access token.
type CredentialStore interface {
	Get(ctx context.Context) *domain.Session
	Save(ctx context.Context, accessToken, refreshToken string) error
	Clear(ctx context.Context) error
	IsExpired(ctx context.Context) bool
}

// SealSession encrypts every field of s, each bound to its field name.
func SealSession(enc EncryptionService, s *domain.Session) (map[string]string, error) {
	fields := s.Fields()
	sealed := make(map[string]string, len(fields))
	for name, value := range fields {
		v, err := enc.Seal(name, value)
		if err != nil {
			return nil, fmt.Errorf("sealing %s: %w", name, err)
		}
		sealed[name] = v
	}
	return sealed, nil
}

// OpenSession reverses SealSession. A value moved to another field name does
// not open.
func OpenSession(enc EncryptionService, sealed map[string]string) (*domain.Session, error) {
	fields := make(map[string]string, len(sealed))
	for name, value := range sealed {
		v, err := enc.Open(name, value)
		if err != nil {
			return nil, fmt.Errorf("opening %s: %w", name, err)
		}
		fields[name] = v
	}
	return domain.SessionFromFields(fields)
}
