package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// DefaultPaymentDescription is used when a send carries no description.
const DefaultPaymentDescription = "Payment via HealthPay Keyboard"

// PaymentResult is the outcome of a send or QR payment. Exactly one of
// Transaction or ErrorMessage is meaningful, selected by Success.
type PaymentResult struct {
	Success      bool         `json:"success"`
	Transaction  *Transaction `json:"transaction,omitempty"`
	ErrorMessage string       `json:"error_message,omitempty"`
	ErrorCode    string       `json:"error_code,omitempty"`
}

// PaymentSucceeded builds a successful result.
func PaymentSucceeded(tx *Transaction) *PaymentResult {
	return &PaymentResult{Success: true, Transaction: tx}
}

// PaymentFailed builds a failed result.
func PaymentFailed(message, code string) *PaymentResult {
	return &PaymentResult{ErrorMessage: message, ErrorCode: code}
}

// PaymentLink is a shareable request for money.
type PaymentLink struct {
	RequestID   string          `json:"request_id"`
	Link        string          `json:"payment_link"`
	QRCode      string          `json:"qr_code"`
	Amount      decimal.Decimal `json:"amount"`
	Currency    string          `json:"currency"`
	Description string          `json:"description,omitempty"`
	ExpiresAt   time.Time       `json:"expires_at"`
}

// QRCodeResponse is a generated receive QR code.
type QRCodeResponse struct {
	PaymentID string           `json:"payment_id"`
	QRData    string           `json:"qr_data"`
	QRImage   string           `json:"qr_image"` // base64 PNG
	Amount    *decimal.Decimal `json:"amount,omitempty"`
	ExpiresAt time.Time        `json:"expires_at"`
}

// IntentKind distinguishes QR intents from payment links.
type IntentKind string

const (
	IntentKindQR   IntentKind = "QR"
	IntentKindLink IntentKind = "LINK"
)

// PaymentIntent is a pending receive held by the sandbox until paid or
// expired. A nil Amount lets the payer choose.
type PaymentIntent struct {
	ID          string           `json:"id"`
	Kind        IntentKind       `json:"kind"`
	OwnerID     uuid.UUID        `json:"owner_id"`
	Amount      *decimal.Decimal `json:"amount,omitempty"`
	Currency    string           `json:"currency"`
	Description string           `json:"description,omitempty"`
	ExpiresAt   time.Time        `json:"expires_at"`
	CreatedAt   time.Time        `json:"created_at"`
}

// Expired reports whether the intent can no longer be paid.
func (p *PaymentIntent) Expired(now time.Time) bool {
	return !now.Before(p.ExpiresAt)
}

// SendPaymentRequest is the body of wallet/send.
type SendPaymentRequest struct {
	Amount         decimal.Decimal `json:"amount"`
	RecipientPhone string          `json:"recipient_phone"`
	Description    string          `json:"description,omitempty"`
	PIN            string          `json:"pin,omitempty"`
}

// RequestPaymentRequest is the body of wallet/request.
type RequestPaymentRequest struct {
	Amount         decimal.Decimal `json:"amount"`
	Description    string          `json:"description,omitempty"`
	ExpiresInHours int             `json:"expires_in_hours"`
}

// GenerateQRRequest is the body of qr/generate.
type GenerateQRRequest struct {
	Amount      *decimal.Decimal `json:"amount,omitempty"`
	Description string           `json:"description,omitempty"`
}

// ProcessQRRequest is the body of qr/process.
type ProcessQRRequest struct {
	QRData string `json:"qr_data"`
	PIN    string `json:"pin"`
}
