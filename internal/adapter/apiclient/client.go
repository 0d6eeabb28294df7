// Package apiclient is the HTTP session client of the HealthPay wallet API.
// Every call returns a Result; transport and protocol failures never escape
// as Go errors.
package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"healthpay-wallet/internal/core/domain"
	"healthpay-wallet/internal/core/ports"

	"github.com/rs/zerolog"
)

const (
	// DefaultTimeout applies to every outbound request.
	DefaultTimeout = 30 * time.Second

	maxBodyBytes = 1 << 20
)

// Config configures a Client.
type Config struct {
	BaseURL   string
	Timeout   time.Duration
	UserAgent string
}

// Option customizes a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying *http.Client. Its Timeout is left
// untouched.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// Client talks to the wallet API on behalf of one installation.
type Client struct {
	baseURL   *url.URL
	http      *http.Client
	userAgent string
	store     ports.CredentialStore
	log       zerolog.Logger

	// refreshMu makes token refresh single-flight.
	refreshMu sync.Mutex

	expiredMu sync.Mutex
	onExpired []func()
}

// New creates a Client. Tokens are read from and written to store.
func New(cfg Config, store ports.CredentialStore, log zerolog.Logger, opts ...Option) (*Client, error) {
	base := cfg.BaseURL
	if !strings.HasSuffix(base, "/") {
		base += "/"
	}
	u, err := url.Parse(base)
	if err != nil {
		return nil, fmt.Errorf("parsing base url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("base url %q must be http or https", cfg.BaseURL)
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	c := &Client{
		baseURL:   u,
		http:      &http.Client{Timeout: timeout},
		userAgent: cfg.UserAgent,
		store:     store,
		log:       log.With().Str("component", "apiclient").Logger(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// OnSessionExpired registers fn to run after a failed token refresh has
// cleared the stored session.
func (c *Client) OnSessionExpired(fn func()) {
	c.expiredMu.Lock()
	defer c.expiredMu.Unlock()
	c.onExpired = append(c.onExpired, fn)
}

type request struct {
	method         string
	path           string
	query          url.Values
	body           any
	auth           bool
	idempotencyKey string
}

type response struct {
	status int
	body   []byte
}

// call runs r with the stored access token. On a 401 it refreshes the token
// once and replays r; if the refresh fails the session is cleared.
func call[T any](ctx context.Context, c *Client, r request) Result[T] {
	var token string
	if r.auth {
		if s := c.store.Get(ctx); s != nil {
			token = s.AccessToken
		}
	}

	resp, err := c.send(ctx, r, token)
	if err != nil {
		return Failure[T](transportError(err))
	}

	if resp.status == http.StatusUnauthorized && r.auth {
		fresh, ok := c.refreshAfterUnauthorized(ctx, token)
		if !ok {
			return Failure[T](decodeError(resp))
		}
		resp, err = c.send(ctx, r, fresh)
		if err != nil {
			return Failure[T](transportError(err))
		}
	}

	if resp.status < 200 || resp.status > 299 {
		return Failure[T](decodeError(resp))
	}
	return decodeSuccess[T](resp)
}

func (c *Client) send(ctx context.Context, r request, token string) (*response, error) {
	// r.path is already escaped; parsing keeps the escaped form as RawPath.
	ref, err := url.Parse(r.path)
	if err != nil {
		return nil, fmt.Errorf("parsing request path: %w", err)
	}
	u := c.baseURL.ResolveReference(ref)
	if len(r.query) > 0 {
		u.RawQuery = r.query.Encode()
	}

	var body io.Reader
	if r.body != nil {
		data, err := json.Marshal(r.body)
		if err != nil {
			return nil, fmt.Errorf("encoding request body: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, r.method, u.String(), body)
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if r.idempotencyKey != "" {
		req.Header.Set("Idempotency-Key", r.idempotencyKey)
	}

	start := time.Now()
	httpResp, err := c.http.Do(req)
	if err != nil {
		c.log.Debug().Err(err).Str("method", r.method).Str("path", r.path).
			Dur("latency", time.Since(start)).Msg("api request failed")
		return nil, err
	}
	defer httpResp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(httpResp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("reading response body: %w", err)
	}

	c.log.Debug().
		Str("method", r.method).
		Str("path", r.path).
		Int("status", httpResp.StatusCode).
		Dur("latency", time.Since(start)).
		Msg("api request")

	return &response{status: httpResp.StatusCode, body: data}, nil
}

// refreshAfterUnauthorized returns an access token to replay with. Refreshes
// are serialized; a caller whose stale token was already replaced by a
// concurrent refresh gets the new token without another refresh call.
func (c *Client) refreshAfterUnauthorized(ctx context.Context, stale string) (string, bool) {
	c.refreshMu.Lock()
	defer c.refreshMu.Unlock()

	s := c.store.Get(ctx)
	if s != nil && s.AccessToken != stale {
		return s.AccessToken, true
	}
	if s == nil || s.RefreshToken == "" {
		c.expireSession(ctx)
		return "", false
	}

	auth, apiErr := c.refreshLocked(ctx, s.RefreshToken)
	if apiErr != nil {
		return "", false
	}
	return auth.AccessToken, true
}

// RefreshSession rotates the stored tokens ahead of expiry. It shares the
// single-flight guard with 401 handling, so it never races a replay.
func (c *Client) RefreshSession(ctx context.Context) Result[domain.AuthResponse] {
	c.refreshMu.Lock()
	defer c.refreshMu.Unlock()

	s := c.store.Get(ctx)
	if s == nil || s.RefreshToken == "" {
		return Failure[domain.AuthResponse](&Error{Kind: KindAuth, Message: "No active session"})
	}

	auth, apiErr := c.refreshLocked(ctx, s.RefreshToken)
	if apiErr != nil {
		return Failure[domain.AuthResponse](apiErr)
	}
	return Success(auth)
}

// refreshLocked calls auth/refresh and persists the new pair. Any failure
// clears the session. refreshMu must be held.
func (c *Client) refreshLocked(ctx context.Context, refreshToken string) (domain.AuthResponse, *Error) {
	res := c.Refresh(ctx, refreshToken)
	if !res.Ok() {
		c.log.Info().Str("kind", string(res.Err().Kind)).Int("status", res.Err().Status).
			Msg("token refresh failed, clearing session")
		c.expireSession(ctx)
		return domain.AuthResponse{}, res.Err()
	}

	auth := res.Value()
	if auth.RefreshToken == "" {
		auth.RefreshToken = refreshToken
	}
	if err := c.store.Save(ctx, auth.AccessToken, auth.RefreshToken); err != nil {
		c.log.Warn().Err(err).Msg("saving refreshed tokens failed")
		c.expireSession(ctx)
		return domain.AuthResponse{}, &Error{Kind: KindAuth, Message: "Failed to save credentials"}
	}
	return auth, nil
}

func (c *Client) expireSession(ctx context.Context) {
	if err := c.store.Clear(ctx); err != nil {
		c.log.Warn().Err(err).Msg("clearing credentials failed")
	}

	c.expiredMu.Lock()
	callbacks := append([]func(){}, c.onExpired...)
	c.expiredMu.Unlock()

	for _, fn := range callbacks {
		fn()
	}
}

func transportError(err error) *Error {
	msg := MsgNetworkError
	if errors.Is(err, context.Canceled) {
		msg = "Request cancelled"
	}
	return &Error{Kind: KindTransport, Message: msg}
}

type errorBody struct {
	Message string          `json:"message"`
	Error   string          `json:"error"`
	Code    json.RawMessage `json:"code"`
}

// decodeError maps a non-2xx response to an Error, falling back to generic
// messages when the body carries none.
func decodeError(resp *response) *Error {
	e := &Error{Kind: KindServer, Status: resp.status}
	if resp.status == http.StatusUnauthorized {
		e.Kind = KindAuth
	}

	var body errorBody
	if len(resp.body) > 0 && json.Unmarshal(resp.body, &body) == nil {
		e.Message = body.Message
		if e.Message == "" {
			e.Message = body.Error
		}
		e.Code = decodeCode(body.Code)
	}

	if e.Message == "" {
		if resp.status >= 500 {
			e.Message = MsgServerError
		} else {
			e.Message = MsgRequestFailed
		}
	}
	return e
}

// decodeCode accepts string or numeric codes.
func decodeCode(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err == nil {
		return n.String()
	}
	return ""
}

type envelope struct {
	Data json.RawMessage `json:"data"`
}

// decodeSuccess reads T from the "data" member of the body, or from the
// whole body when there is no such member.
func decodeSuccess[T any](resp *response) Result[T] {
	var v T
	if len(bytes.TrimSpace(resp.body)) == 0 {
		if resp.status == http.StatusNoContent {
			return Success(v)
		}
		return Failure[T](&Error{Kind: KindTransport, Message: MsgInvalidResponse, Status: resp.status})
	}

	payload := resp.body
	var env envelope
	if json.Unmarshal(resp.body, &env) == nil && len(env.Data) > 0 && string(env.Data) != "null" {
		payload = env.Data
	}

	if err := json.Unmarshal(payload, &v); err != nil {
		return Failure[T](&Error{Kind: KindTransport, Message: MsgInvalidResponse, Status: resp.status})
	}
	return Success(v)
}
