package dto

import "github.com/shopspring/decimal"

// RegisterRequest is the request body for account registration.
type RegisterRequest struct {
	Username string `json:"username" binding:"required,min=3,max=50,safe_id"`
	Password string `json:"password" binding:"required,min=8,max=128" sanitize:"-"`
	Phone    string `json:"phone" binding:"required,phone"`
	FullName string `json:"full_name" binding:"max=100"`
	PIN      string `json:"pin" binding:"required,pin" sanitize:"-"`
}

// LoginRequest is the request body for login. Username may also be a phone
// number.
type LoginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required" sanitize:"-"`
}

// RefreshRequest is the request body for token refresh.
type RefreshRequest struct {
	RefreshToken string `json:"refresh_token" binding:"required" sanitize:"-"`
}

// SendPaymentRequest is the request body for a wallet-to-wallet send.
// Amount positivity is enforced by the wallet service.
type SendPaymentRequest struct {
	Amount         decimal.Decimal `json:"amount"`
	RecipientPhone string          `json:"recipient_phone" binding:"required,phone"`
	Description    string          `json:"description" binding:"max=255"`
	PIN            string          `json:"pin" binding:"omitempty,pin" sanitize:"-"`
}

// RequestPaymentRequest is the request body for a payment link.
type RequestPaymentRequest struct {
	Amount         decimal.Decimal `json:"amount"`
	Description    string          `json:"description" binding:"max=255"`
	ExpiresInHours int             `json:"expires_in_hours" binding:"omitempty,min=1,max=168"`
}

// GenerateQRRequest is the request body for a receive QR code. A missing
// amount lets the payer choose.
type GenerateQRRequest struct {
	Amount      *decimal.Decimal `json:"amount,omitempty"`
	Description string           `json:"description" binding:"max=255"`
}

// ProcessQRRequest is the request body for paying a scanned QR code.
type ProcessQRRequest struct {
	QRData string `json:"qr_data" binding:"required,max=2048" sanitize:"-"`
	PIN    string `json:"pin" binding:"required,pin" sanitize:"-"`
}

// ListTransactionsQuery binds the pagination query of the history endpoint.
type ListTransactionsQuery struct {
	Page  int `form:"page" binding:"omitempty,min=1"`
	Limit int `form:"limit" binding:"omitempty,min=1,max=100"`
}
