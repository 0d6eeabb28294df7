// Package file persists the wallet session on the local filesystem.
package file

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"healthpay-wallet/internal/core/domain"
	"healthpay-wallet/internal/core/ports"

	"github.com/rs/zerolog"
)

// CredentialStore implements ports.CredentialStore as a JSON object of
// encrypted values. Writes go to a temp file that is renamed into place.
type CredentialStore struct {
	mu   sync.Mutex
	path string
	enc  ports.EncryptionService
	ttl  time.Duration
	now  func() time.Time
	log  zerolog.Logger
}

// NewCredentialStore creates a store at path. Saved sessions expire tokenTTL
// after they are written.
func NewCredentialStore(path string, enc ports.EncryptionService, tokenTTL time.Duration, log zerolog.Logger) *CredentialStore {
	return &CredentialStore{
		path: path,
		enc:  enc,
		ttl:  tokenTTL,
		now:  time.Now,
		log:  log.With().Str("component", "credential_store").Str("backend", "file").Logger(),
	}
}

// Get returns the stored session, or nil when none is usable.
func (s *CredentialStore) Get(_ context.Context) *domain.Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.load()
}

func (s *CredentialStore) load() *domain.Session {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			s.log.Warn().Err(err).Msg("reading credentials failed")
		}
		return nil
	}

	var sealed map[string]string
	if err := json.Unmarshal(data, &sealed); err != nil {
		s.log.Warn().Err(err).Msg("credentials file is corrupt")
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
func (s *CredentialStore) Save(_ context.Context, accessToken, refreshToken string) error {
	session := &domain.Session{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		ExpiresAt:    s.now().Add(s.ttl),
	}

	sealed, err := ports.SealSession(s.enc, session)
	if err != nil {
		return err
	}
	data, err := json.Marshal(sealed)
	if err != nil {
		return fmt.Errorf("marshal credentials: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return writeFileAtomic(s.path, data, 0o600)
}

// Clear removes the stored session. Clearing when nothing is stored is not
// an error.
func (s *CredentialStore) Clear(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.Remove(s.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("removing credentials: %w", err)
	}
	return nil
}

// IsExpired reports whether there is no session or it is past its expiry.
func (s *CredentialStore) IsExpired(ctx context.Context) bool {
	session := s.Get(ctx)
	return session == nil || session.Expired(s.now())
}

// writeFileAtomic writes data next to path and renames it into place so a
// crash never leaves a half-written file behind.
func writeFileAtomic(path string, data []byte, perm os.FileMode) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("creating %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName) // no-op after a successful rename

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("writing temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("syncing temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing temp file: %w", err)
	}
	if err := os.Chmod(tmpName, perm); err != nil {
		return fmt.Errorf("chmod temp file: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("renaming into place: %w", err)
	}
	return nil
}
