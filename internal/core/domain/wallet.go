package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Wallet is the sandbox ledger account of a user. One wallet per user.
type Wallet struct {
	ID        uuid.UUID       `json:"id"`
	UserID    uuid.UUID       `json:"user_id"`
	Currency  string          `json:"currency"`
	Balance   decimal.Decimal `json:"balance"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// WalletBalance is a point-in-time balance snapshot. It is replaced
// wholesale on refresh, never patched.
type WalletBalance struct {
	Available   decimal.Decimal `json:"available"`
	Pending     decimal.Decimal `json:"pending"`
	Currency    string          `json:"currency"`
	LastUpdated time.Time       `json:"last_updated"`
}

// Total returns available plus pending funds.
func (b *WalletBalance) Total() decimal.Decimal {
	return b.Available.Add(b.Pending)
}

// Formatted renders the available balance with two decimals and currency.
func (b *WalletBalance) Formatted() string {
	return b.Available.StringFixed(2) + " " + b.Currency
}
