package domain

import (
	"errors"
	"time"
)

// Session is the locally persisted token pair. A session with an empty
// access token is never handed out by a credential store.
type Session struct {
	AccessToken  string
	RefreshToken string
	ExpiresAt    time.Time
}

// Expired reports whether the session is past its expiry at now.
func (s *Session) Expired(now time.Time) bool {
	return !now.Before(s.ExpiresAt)
}

// ExpiresWithin reports whether the session expires within d of now.
func (s *Session) ExpiresWithin(now time.Time, d time.Duration) bool {
	return !now.Add(d).Before(s.ExpiresAt)
}

// AuthResponse is returned by login and refresh.
type AuthResponse struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token,omitempty"`
	TokenType    string    `json:"token_type,omitempty"`
	ExpiresIn    int64     `json:"expires_in"` // seconds
	User         *UserInfo `json:"user,omitempty"`
}

// LoginRequest is the body of auth/login.
type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// RefreshRequest is the body of auth/refresh.
type RefreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

// Field names of a persisted session.
const (
	FieldAccessToken  = "access_token"
	FieldRefreshToken = "refresh_token"
	FieldTokenExpiry  = "token_expiry"
)

// Fields flattens the session into its persisted plaintext form. The expiry
// is written as RFC 3339.
func (s *Session) Fields() map[string]string {
	return map[string]string{
		FieldAccessToken:  s.AccessToken,
		FieldRefreshToken: s.RefreshToken,
		FieldTokenExpiry:  s.ExpiresAt.UTC().Format(time.RFC3339),
	}
}

// SessionFromFields rebuilds a session from its persisted plaintext form.
// A missing access token is an error; a missing or unparseable expiry
// yields an already expired session.
func SessionFromFields(fields map[string]string) (*Session, error) {
	access := fields[FieldAccessToken]
	if access == "" {
		return nil, ErrNoAccessToken
	}
	s := &Session{AccessToken: access, RefreshToken: fields[FieldRefreshToken]}
	if raw, ok := fields[FieldTokenExpiry]; ok {
		if exp, err := time.Parse(time.RFC3339, raw); err == nil {
			s.ExpiresAt = exp
		}
	}
	return s, nil
}

// ErrNoAccessToken is returned when persisted credentials lack an access token.
var ErrNoAccessToken = errors.New("stored credentials have no access token")
