package ports

import (
	"context"
	"time"

	"healthpay-wallet/internal/core/domain"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// HealthChecker is a backing service reported on /health.
type HealthChecker interface {
	Ping(ctx context.Context) error
	Name() string
}

// EncryptionService seals credential fields at rest. The field name is
// authenticated with the value, so a sealed value only opens under the name
// it was sealed with.
type EncryptionService interface {
	Seal(field, plaintext string) (string, error)
	Open(field, sealed string) (string, error)
}

// HashService handles password and PIN hashing (Argon2id).
type HashService interface {
	Hash(password string) (string, error)
	Verify(password string, hash string) (bool, error)
}

// TokenService handles JWT access token operations.
type TokenService interface {
	Generate(userID uuid.UUID) (string, time.Time, error)
	Validate(tokenString string) (*TokenClaims, error)
}

// TokenClaims holds the parsed JWT claims.
type TokenClaims struct {
	UserID    uuid.UUID
	ExpiresAt time.Time
}

// QRRenderer renders a payload as a base64-encoded PNG.
type QRRenderer interface {
	Render(content string) (string, error)
}

// --- Cache Ports (Redis) ---

// RefreshTokenStore keeps opaque refresh tokens and their owners.
type RefreshTokenStore interface {
	Save(ctx context.Context, token string, userID uuid.UUID, ttl time.Duration) error
	// Consume deletes the token and returns its owner; ok is false when the
	// token is unknown or expired.
	Consume(ctx context.Context, token string) (userID uuid.UUID, ok bool, err error)
	RevokeAll(ctx context.Context, userID uuid.UUID) error
}

// PaymentIntentStore keeps pending QR intents and payment links.
type PaymentIntentStore interface {
	Save(ctx context.Context, intent *domain.PaymentIntent, ttl time.Duration) error
	// Take atomically removes and returns the intent; nil when absent.
	Take(ctx context.Context, id string) (*domain.PaymentIntent, error)
}

// IdempotencyCache is the Redis-layer idempotency check. A request reserves
// its key before moving money and stores its result under it afterwards.
type IdempotencyCache interface {
	// Reserve claims key. When reserved is false, cached is the stored
	// result, or nil while another request still holds the key.
	Reserve(ctx context.Context, key string, ttl time.Duration) (cached []byte, reserved bool, err error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Release(ctx context.Context, key string) error
}

// --- Service Ports (Business Logic) ---

// AuthService defines authentication business logic.
type AuthService interface {
	Register(ctx context.Context, req RegisterRequest) (*domain.UserInfo, error)
	Login(ctx context.Context, username, password string) (*domain.AuthResponse, error)
	Refresh(ctx context.Context, refreshToken string) (*domain.AuthResponse, error)
	Logout(ctx context.Context, userID uuid.UUID) error
}

// RegisterRequest holds input for account registration.
type RegisterRequest struct {
	Username string
	Password string
	Phone    string
	FullName string
	PIN      string
}

// WalletService defines the wallet business logic.
type WalletService interface {
	GetBalance(ctx context.Context, userID uuid.UUID) (*domain.WalletBalance, error)
	Send(ctx context.Context, req SendRequest) (*domain.Transaction, error)
	RequestPayment(ctx context.Context, userID uuid.UUID, req domain.RequestPaymentRequest) (*domain.PaymentLink, error)
	ListTransactions(ctx context.Context, userID uuid.UUID, page, limit int) (*domain.TransactionPage, error)
	GetTransaction(ctx context.Context, userID uuid.UUID, id string) (*domain.Transaction, error)
	GenerateQR(ctx context.Context, userID uuid.UUID, req domain.GenerateQRRequest) (*domain.QRCodeResponse, error)
	ProcessQR(ctx context.Context, req ProcessQRRequest) (*domain.Transaction, error)
}

// SendRequest holds validated input for a wallet-to-wallet transfer.
type SendRequest struct {
	UserID         uuid.UUID
	IdempotencyKey string
	Amount         decimal.Decimal
	RecipientPhone string
	Description    string
	PIN            string
}

// ProcessQRRequest holds validated input for paying a QR intent.
type ProcessQRRequest struct {
	UserID         uuid.UUID
	IdempotencyKey string
	QRData         string
	PIN            string
}
