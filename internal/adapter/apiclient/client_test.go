package apiclient

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"healthpay-wallet/internal/core/domain"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// memStore is an in-memory ports.CredentialStore.
type memStore struct {
	mu      sync.Mutex
	session *domain.Session
	saves   int
}

func (m *memStore) Get(context.Context) *domain.Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.session == nil {
		return nil
	}
	s := *m.session
	return &s
}

func (m *memStore) Save(_ context.Context, access, refresh string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.saves++
	m.session = &domain.Session{AccessToken: access, RefreshToken: refresh, ExpiresAt: time.Now().Add(time.Hour)}
	return nil
}

func (m *memStore) Clear(context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.session = nil
	return nil
}

func (m *memStore) IsExpired(ctx context.Context) bool {
	s := m.Get(ctx)
	return s == nil || s.Expired(time.Now())
}

func newTestClient(t *testing.T, handler http.Handler, store *memStore) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	c, err := New(Config{BaseURL: srv.URL + "/api/v1", UserAgent: "wallet-test/1.0"}, store, zerolog.Nop())
	require.NoError(t, err)
	return c
}

func loggedIn(access, refresh string) *memStore {
	return &memStore{session: &domain.Session{AccessToken: access, RefreshToken: refresh, ExpiresAt: time.Now().Add(time.Hour)}}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

const balanceBody = `{"data":{"available":"150.75","pending":"20","currency":"EGP","last_updated":"2026-01-02T03:04:05Z"},"request_id":"r1"}`

func TestGetBalance_DecodesEnvelope(t *testing.T) {
	var gotAuth, gotUA, gotPath string
	store := loggedIn("access-1", "refresh-1")
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotUA = r.Header.Get("User-Agent")
		gotPath = r.URL.Path
		_, _ = w.Write([]byte(balanceBody))
	}), store)

	res := c.GetBalance(context.Background())
	require.True(t, res.Ok(), "unexpected error: %v", res.Err())
	assert.Nil(t, res.Err())
	assert.Equal(t, "150.75", res.Value().Available.String())
	assert.Equal(t, "EGP", res.Value().Currency)

	assert.Equal(t, "Bearer access-1", gotAuth)
	assert.Equal(t, "wallet-test/1.0", gotUA)
	assert.Equal(t, "/api/v1/wallet/balance", gotPath)
}

func TestGetBalance_DecodesBareBody(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"available":"5","pending":"0","currency":"EGP"}`))
	}), loggedIn("a", "r"))

	res := c.GetBalance(context.Background())
	require.True(t, res.Ok())
	assert.Equal(t, "5", res.Value().Available.String())
}

func TestCall_StructuredErrors(t *testing.T) {
	tests := []struct {
		name     string
		status   int
		body     string
		wantKind ErrorKind
		wantMsg  string
		wantCode string
	}{
		{"string code", http.StatusBadRequest, `{"code":"PAY_002","message":"Invalid amount"}`, KindServer, "Invalid amount", "PAY_002"},
		{"numeric code", http.StatusPaymentRequired, `{"code":1001,"message":"Insufficient funds"}`, KindServer, "Insufficient funds", "1001"},
		{"error field", http.StatusForbidden, `{"error":"Invalid PIN"}`, KindServer, "Invalid PIN", ""},
		{"unparseable 4xx", http.StatusNotFound, `<html>not found</html>`, KindServer, MsgRequestFailed, ""},
		{"empty 5xx", http.StatusBadGateway, ``, KindServer, MsgServerError, ""},
		{"unauthenticated call 401", http.StatusUnauthorized, `{"code":"AUTH_001","message":"Invalid username or password"}`, KindAuth, "Invalid username or password", "AUTH_001"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}), &memStore{})

			res := c.Login(context.Background(), "mona", "secret")
			require.False(t, res.Ok())
			assert.Equal(t, tt.wantKind, res.Err().Kind)
			assert.Equal(t, tt.wantMsg, res.Err().Message)
			assert.Equal(t, tt.wantCode, res.Err().Code)
			assert.Equal(t, tt.status, res.Err().Status)
		})
	}
}

func TestCall_TransportError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	c, err := New(Config{BaseURL: url}, loggedIn("a", "r"), zerolog.Nop())
	require.NoError(t, err)

	res := c.GetBalance(context.Background())
	require.False(t, res.Ok())
	assert.Equal(t, KindTransport, res.Err().Kind)
	assert.Equal(t, MsgNetworkError, res.Err().Message)
	assert.Zero(t, res.Err().Status)
}

func TestCall_Timeout(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	t.Cleanup(srv.Close)
	t.Cleanup(func() { close(release) })

	c, err := New(Config{BaseURL: srv.URL, Timeout: 50 * time.Millisecond}, loggedIn("a", "r"), zerolog.Nop())
	require.NoError(t, err)

	res := c.GetBalance(context.Background())
	require.False(t, res.Ok())
	assert.Equal(t, KindTransport, res.Err().Kind)
}

func TestCall_InvalidSuccessBody(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`<html>maintenance</html>`))
	}), loggedIn("a", "r"))

	res := c.GetBalance(context.Background())
	require.False(t, res.Ok())
	assert.Equal(t, KindTransport, res.Err().Kind)
	assert.Equal(t, MsgInvalidResponse, res.Err().Message)
}

// tokenServer serves wallet/balance for the current access token only and
// rotates tokens on auth/refresh.
type tokenServer struct {
	mu           sync.Mutex
	valid        string
	refreshCalls atomic.Int32
	refreshDelay time.Duration
	refreshFails bool
	idemKeys     []string
}

func (s *tokenServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch r.URL.Path {
	case "/api/v1/auth/refresh":
		s.refreshCalls.Add(1)
		time.Sleep(s.refreshDelay)
		if s.refreshFails {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"code": "AUTH_004", "message": "Invalid or expired refresh token"})
			return
		}
		var body domain.RefreshRequest
		_ = json.NewDecoder(r.Body).Decode(&body)
		if body.RefreshToken != "refresh-1" {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"code": "AUTH_004", "message": "bad refresh token"})
			return
		}
		s.mu.Lock()
		s.valid = "access-2"
		s.mu.Unlock()
		writeJSON(w, http.StatusOK, map[string]any{"data": domain.AuthResponse{
			AccessToken: "access-2", RefreshToken: "refresh-2", TokenType: "Bearer", ExpiresIn: 900,
		}})
	default:
		s.mu.Lock()
		valid := s.valid
		s.idemKeys = append(s.idemKeys, r.Header.Get("Idempotency-Key"))
		s.mu.Unlock()
		if r.Header.Get("Authorization") != "Bearer "+valid {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"code": "AUTH_003", "message": "Token expired"})
			return
		}
		if r.URL.Path == "/api/v1/wallet/send" {
			writeJSON(w, http.StatusOK, map[string]any{"data": domain.Transaction{ID: "tx-1", Type: domain.TransactionTypeSent}})
			return
		}
		_, _ = w.Write([]byte(balanceBody))
	}
}

func TestCall_RefreshesOnceAndRetries(t *testing.T) {
	srv := &tokenServer{valid: "access-2"}
	store := loggedIn("access-1", "refresh-1")
	c := newTestClient(t, srv, store)

	res := c.GetBalance(context.Background())
	require.True(t, res.Ok(), "unexpected error: %v", res.Err())
	assert.Equal(t, int32(1), srv.refreshCalls.Load())

	s := store.Get(context.Background())
	require.NotNil(t, s)
	assert.Equal(t, "access-2", s.AccessToken)
	assert.Equal(t, "refresh-2", s.RefreshToken)
}

func TestCall_RefreshFailureClearsSession(t *testing.T) {
	srv := &tokenServer{valid: "access-2", refreshFails: true}
	store := loggedIn("access-1", "refresh-1")
	c := newTestClient(t, srv, store)

	var expired atomic.Int32
	c.OnSessionExpired(func() { expired.Add(1) })

	res := c.GetBalance(context.Background())
	require.False(t, res.Ok())
	assert.Equal(t, KindAuth, res.Err().Kind)
	assert.Equal(t, "AUTH_003", res.Err().Code, "the original 401 is surfaced")
	assert.Nil(t, store.Get(context.Background()))
	assert.True(t, store.IsExpired(context.Background()))
	assert.Equal(t, int32(1), expired.Load())
}

func TestCall_NoRefreshTokenClearsSession(t *testing.T) {
	srv := &tokenServer{valid: "access-2"}
	store := loggedIn("access-1", "")
	c := newTestClient(t, srv, store)

	res := c.GetBalance(context.Background())
	require.False(t, res.Ok())
	assert.Equal(t, KindAuth, res.Err().Kind)
	assert.Zero(t, srv.refreshCalls.Load())
	assert.Nil(t, store.Get(context.Background()))
}

func TestCall_ConcurrentUnauthorizedShareOneRefresh(t *testing.T) {
	srv := &tokenServer{valid: "access-2", refreshDelay: 20 * time.Millisecond}
	store := loggedIn("access-1", "refresh-1")
	c := newTestClient(t, srv, store)

	const n = 8
	var wg sync.WaitGroup
	results := make([]Result[domain.WalletBalance], n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = c.GetBalance(context.Background())
		}(i)
	}
	wg.Wait()

	for i, res := range results {
		assert.True(t, res.Ok(), "call %d failed: %v", i, res.Err())
	}
	assert.Equal(t, int32(1), srv.refreshCalls.Load())
	assert.Equal(t, 1, store.saves)
}

func TestSendPayment_IdempotencyKeySurvivesReplay(t *testing.T) {
	srv := &tokenServer{valid: "access-2"}
	c := newTestClient(t, srv, loggedIn("access-1", "refresh-1"))

	res := c.SendPayment(context.Background(), domain.SendPaymentRequest{
		Amount:         decimal.RequireFromString("10"),
		RecipientPhone: "+201112223334",
	})
	require.True(t, res.Ok(), "unexpected error: %v", res.Err())
	assert.Equal(t, "tx-1", res.Value().ID)

	require.Len(t, srv.idemKeys, 2)
	assert.NotEmpty(t, srv.idemKeys[0])
	assert.Equal(t, srv.idemKeys[0], srv.idemKeys[1])
}

func TestListTransactions_Query(t *testing.T) {
	var gotQuery string
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.RawQuery
		writeJSON(w, http.StatusOK, map[string]any{"data": domain.TransactionPage{Page: 2, HasMore: true}})
	}), loggedIn("a", "r"))

	res := c.ListTransactions(context.Background(), 2, 10)
	require.True(t, res.Ok())
	assert.Equal(t, "limit=10&page=2", gotQuery)
	assert.True(t, res.Value().HasMore)
}

func TestGetTransaction_EscapesID(t *testing.T) {
	var gotPath string
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.EscapedPath()
		writeJSON(w, http.StatusOK, map[string]any{"data": domain.Transaction{ID: "a/b"}})
	}), loggedIn("a", "r"))

	res := c.GetTransaction(context.Background(), "a/b")
	require.True(t, res.Ok())
	assert.Equal(t, "/api/v1/wallet/transactions/a%2Fb", gotPath)
}

func TestLogout_NoContent(t *testing.T) {
	var gotMethod string
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		w.WriteHeader(http.StatusNoContent)
	}), loggedIn("a", "r"))

	res := c.Logout(context.Background())
	assert.True(t, res.Ok())
	assert.Equal(t, http.MethodPost, gotMethod)
}

func TestLogin_DoesNotSendBearer(t *testing.T) {
	var gotAuth string
	var gotBody domain.LoginRequest
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		writeJSON(w, http.StatusOK, map[string]any{"data": domain.AuthResponse{AccessToken: "x", RefreshToken: "y", ExpiresIn: 900}})
	}), loggedIn("old", "old-r"))

	res := c.Login(context.Background(), "mona", "secret")
	require.True(t, res.Ok())
	assert.Empty(t, gotAuth)
	assert.Equal(t, "mona", gotBody.Username)
	assert.Equal(t, "x", res.Value().AccessToken)
}

func TestNew_RejectsBadBaseURL(t *testing.T) {
	_, err := New(Config{BaseURL: "ftp://example.com"}, &memStore{}, zerolog.Nop())
	assert.Error(t, err)
}

func TestResult(t *testing.T) {
	ok := Success(42)
	assert.True(t, ok.Ok())
	assert.Equal(t, 42, ok.Value())
	assert.Nil(t, ok.Err())

	bad := Failure[int](ValidationError("Amount must be greater than zero"))
	assert.False(t, bad.Ok())
	assert.Zero(t, bad.Value())
	assert.Equal(t, KindValidation, bad.Err().Kind)

	empty := Failure[int](nil)
	assert.False(t, empty.Ok(), "a failure is never empty")

	assert.Equal(t, "Insufficient funds (PAY_001)", (&Error{Message: "Insufficient funds", Code: "PAY_001"}).Error())
}

func TestRefreshSession_RotatesStoredTokens(t *testing.T) {
	srv := &tokenServer{valid: "access-1"}
	store := loggedIn("access-1", "refresh-1")
	c := newTestClient(t, srv, store)

	res := c.RefreshSession(context.Background())
	require.True(t, res.Ok(), "unexpected error: %v", res.Err())
	assert.Equal(t, "access-2", store.Get(context.Background()).AccessToken)
	assert.Equal(t, "refresh-2", store.Get(context.Background()).RefreshToken)
}

func TestRefreshSession_WithoutSession(t *testing.T) {
	srv := &tokenServer{}
	c := newTestClient(t, srv, &memStore{})

	res := c.RefreshSession(context.Background())
	require.False(t, res.Ok())
	assert.Equal(t, KindAuth, res.Err().Kind)
	assert.Zero(t, srv.refreshCalls.Load())
}
