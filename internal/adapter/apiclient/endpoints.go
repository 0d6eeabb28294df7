package apiclient

import (
	"context"
	"net/http"
	"net/url"
	"strconv"

	"healthpay-wallet/internal/core/domain"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Login exchanges credentials for a token pair. It does not persist them.
func (c *Client) Login(ctx context.Context, username, password string) Result[domain.AuthResponse] {
	return call[domain.AuthResponse](ctx, c, request{
		method: http.MethodPost,
		path:   "auth/login",
		body:   domain.LoginRequest{Username: username, Password: password},
	})
}

// Refresh exchanges a refresh token for a new token pair. It does not
// persist them.
func (c *Client) Refresh(ctx context.Context, refreshToken string) Result[domain.AuthResponse] {
	return call[domain.AuthResponse](ctx, c, request{
		method: http.MethodPost,
		path:   "auth/refresh",
		body:   domain.RefreshRequest{RefreshToken: refreshToken},
	})
}

// Logout revokes the session server side.
func (c *Client) Logout(ctx context.Context) Result[Unit] {
	return call[Unit](ctx, c, request{
		method: http.MethodPost,
		path:   "auth/logout",
		auth:   true,
	})
}

// GetBalance fetches the wallet balance.
func (c *Client) GetBalance(ctx context.Context) Result[domain.WalletBalance] {
	return call[domain.WalletBalance](ctx, c, request{
		method: http.MethodGet,
		path:   "wallet/balance",
		auth:   true,
	})
}

// SendPayment transfers money to a phone number. One idempotency key covers
// the call and its replay after a token refresh.
func (c *Client) SendPayment(ctx context.Context, req domain.SendPaymentRequest) Result[domain.Transaction] {
	return call[domain.Transaction](ctx, c, request{
		method:         http.MethodPost,
		path:           "wallet/send",
		body:           req,
		auth:           true,
		idempotencyKey: uuid.NewString(),
	})
}

// RequestPayment creates a shareable payment link.
func (c *Client) RequestPayment(ctx context.Context, req domain.RequestPaymentRequest) Result[domain.PaymentLink] {
	return call[domain.PaymentLink](ctx, c, request{
		method: http.MethodPost,
		path:   "wallet/request",
		body:   req,
		auth:   true,
	})
}

// ListTransactions fetches one page of history, newest first.
func (c *Client) ListTransactions(ctx context.Context, page, limit int) Result[domain.TransactionPage] {
	return call[domain.TransactionPage](ctx, c, request{
		method: http.MethodGet,
		path:   "wallet/transactions",
		query: url.Values{
			"page":  {strconv.Itoa(page)},
			"limit": {strconv.Itoa(limit)},
		},
		auth: true,
	})
}

// GetTransaction fetches a single transaction.
func (c *Client) GetTransaction(ctx context.Context, id string) Result[domain.Transaction] {
	return call[domain.Transaction](ctx, c, request{
		method: http.MethodGet,
		path:   "wallet/transactions/" + url.PathEscape(id),
		auth:   true,
	})
}

// GenerateQR creates a receive QR code. A nil amount lets the payer choose.
func (c *Client) GenerateQR(ctx context.Context, amount *decimal.Decimal, description string) Result[domain.QRCodeResponse] {
	return call[domain.QRCodeResponse](ctx, c, request{
		method: http.MethodPost,
		path:   "qr/generate",
		body:   domain.GenerateQRRequest{Amount: amount, Description: description},
		auth:   true,
	})
}

// ProcessQR pays a scanned QR payload.
func (c *Client) ProcessQR(ctx context.Context, qrData, pin string) Result[domain.Transaction] {
	return call[domain.Transaction](ctx, c, request{
		method:         http.MethodPost,
		path:           "qr/process",
		body:           domain.ProcessQRRequest{QRData: qrData, PIN: pin},
		auth:           true,
		idempotencyKey: uuid.NewString(),
	})
}
