// Package session tracks whether the wallet holder is logged in and drives
// login, logout and proactive token refresh.
package session

import (
	"context"
	"fmt"
	"strings"
	"time"

	"healthpay-wallet/internal/adapter/apiclient"
	"healthpay-wallet/internal/core/domain"
	"healthpay-wallet/internal/core/ports"
	"healthpay-wallet/pkg/observable"

	"github.com/rs/zerolog"
)

// RefreshWindow is how close to expiry a session must be for NeedsRefresh.
const RefreshWindow = 5 * time.Minute

// State is the authentication state of the installation.
type State string

const (
	StateLoggedOut      State = "LOGGED_OUT"
	StateAuthenticating State = "AUTHENTICATING"
	StateLoggedIn       State = "LOGGED_IN"
)

// API is the part of the session client the manager drives.
type API interface {
	Login(ctx context.Context, username, password string) apiclient.Result[domain.AuthResponse]
	Logout(ctx context.Context) apiclient.Result[apiclient.Unit]
	RefreshSession(ctx context.Context) apiclient.Result[domain.AuthResponse]
	OnSessionExpired(fn func())
}

// Manager owns the authentication state machine.
type Manager struct {
	api   API
	store ports.CredentialStore
	state *observable.Slot[State]
	now   func() time.Time
	log   zerolog.Logger
}

// NewManager creates a Manager. The initial state is LoggedIn when a session
// is stored, even an expired one, since it may still be refreshable.
func NewManager(ctx context.Context, api API, store ports.CredentialStore, log zerolog.Logger) *Manager {
	initial := StateLoggedOut
	if store.Get(ctx) != nil {
		initial = StateLoggedIn
	}

	m := &Manager{
		api:   api,
		store: store,
		state: observable.NewSlot(initial),
		now:   time.Now,
		log:   log.With().Str("component", "session").Logger(),
	}
	api.OnSessionExpired(func() {
		m.log.Info().Msg("session expired, logged out")
		m.state.Set(StateLoggedOut)
	})
	return m
}

// State returns the current state.
func (m *Manager) State() State {
	return m.state.Get()
}

// Subscribe streams state changes, starting with the current state.
func (m *Manager) Subscribe() (<-chan State, func()) {
	return m.state.Subscribe()
}

// Login authenticates and persists the returned tokens.
func (m *Manager) Login(ctx context.Context, username, password string) apiclient.Result[domain.AuthResponse] {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return apiclient.Failure[domain.AuthResponse](apiclient.ValidationError("Username and password are required"))
	}

	m.state.Set(StateAuthenticating)

	res := m.api.Login(ctx, username, password)
	if !res.Ok() {
		m.state.Set(StateLoggedOut)
		return res
	}

	auth := res.Value()
	if err := m.store.Save(ctx, auth.AccessToken, auth.RefreshToken); err != nil {
		m.log.Error().Err(err).Msg("saving credentials failed")
		m.state.Set(StateLoggedOut)
		return apiclient.Failure[domain.AuthResponse](&apiclient.Error{
			Kind:    apiclient.KindAuth,
			Message: "Failed to save credentials",
		})
	}

	m.state.Set(StateLoggedIn)
	m.log.Info().Msg("logged in")
	return res
}

// Logout revokes the session server side when one exists, then always
// clears the local credentials. Calling it again is harmless.
func (m *Manager) Logout(ctx context.Context) error {
	if m.store.Get(ctx) != nil {
		if res := m.api.Logout(ctx); !res.Ok() {
			m.log.Warn().Str("error", res.Err().Message).Msg("server logout failed, clearing locally")
		}
	}

	err := m.store.Clear(ctx)
	m.state.Set(StateLoggedOut)
	if err != nil {
		return fmt.Errorf("clearing credentials: %w", err)
	}
	return nil
}

// IsAuthenticated reports whether a non-expired session is stored. It reads
// the store on every call.
func (m *Manager) IsAuthenticated(ctx context.Context) bool {
	s := m.store.Get(ctx)
	return s != nil && !s.Expired(m.now())
}

// RequiresReauthentication reports whether the user must log in again
// before making authenticated calls.
func (m *Manager) RequiresReauthentication(ctx context.Context) bool {
	return !m.IsAuthenticated(ctx)
}

// NeedsRefresh reports whether the stored session expires within
// RefreshWindow but has not expired yet.
func (m *Manager) NeedsRefresh(ctx context.Context) bool {
	s := m.store.Get(ctx)
	if s == nil || s.ExpiresAt.IsZero() {
		return false
	}
	now := m.now()
	return !s.Expired(now) && s.ExpiresWithin(now, RefreshWindow)
}

// RefreshIfNeeded rotates the tokens when NeedsRefresh holds. A failed
// refresh clears the session through the client.
func (m *Manager) RefreshIfNeeded(ctx context.Context) *apiclient.Error {
	if !m.NeedsRefresh(ctx) {
		return nil
	}
	res := m.api.RefreshSession(ctx)
	if !res.Ok() {
		return res.Err()
	}
	m.log.Debug().Msg("session refreshed ahead of expiry")
	return nil
}
