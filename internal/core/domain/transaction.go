package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// TransactionType represents the kind of money movement.
type TransactionType string

const (
	TransactionTypeSent       TransactionType = "SENT"
	TransactionTypeReceived   TransactionType = "RECEIVED"
	TransactionTypeTopup      TransactionType = "TOPUP"
	TransactionTypeWithdrawal TransactionType = "WITHDRAWAL"
	TransactionTypeRefund     TransactionType = "REFUND"
	TransactionTypeFee        TransactionType = "FEE"
)

// TransactionStatus represents the lifecycle state of a transaction.
type TransactionStatus string

const (
	TransactionStatusPending   TransactionStatus = "PENDING"
	TransactionStatusCompleted TransactionStatus = "COMPLETED"
	TransactionStatusFailed    TransactionStatus = "FAILED"
	TransactionStatusCancelled TransactionStatus = "CANCELLED"
)

// Transaction is an immutable ledger entry as seen by one wallet holder.
// Clients never mutate it; it is created from server responses.
type Transaction struct {
	ID              string            `json:"id"`
	UserID          uuid.UUID         `json:"-"` // owner, sandbox only
	Type            TransactionType   `json:"type"`
	Status          TransactionStatus `json:"status"`
	Amount          decimal.Decimal   `json:"amount"`
	Currency        string            `json:"currency"`
	RecipientPhone  string            `json:"recipient_phone,omitempty"`
	RecipientName   string            `json:"recipient_name,omitempty"`
	SenderPhone     string            `json:"sender_phone,omitempty"`
	SenderName      string            `json:"sender_name,omitempty"`
	Description     string            `json:"description,omitempty"`
	ReferenceNumber string            `json:"reference_number,omitempty"`
	Fee             *decimal.Decimal  `json:"fee,omitempty"`
	Metadata        map[string]string `json:"metadata,omitempty"`
	CreatedAt       time.Time         `json:"created_at"`
	CompletedAt     *time.Time        `json:"completed_at,omitempty"`
}

// IsTerminal returns true if the transaction is in a final state.
func (t *Transaction) IsTerminal() bool {
	return t.Status == TransactionStatusCompleted ||
		t.Status == TransactionStatusFailed ||
		t.Status == TransactionStatusCancelled
}

// IsCredit reports whether the entry increases the holder's balance.
func (t *Transaction) IsCredit() bool {
	switch t.Type {
	case TransactionTypeReceived, TransactionTypeTopup, TransactionTypeRefund:
		return true
	}
	return false
}

// CounterpartyName returns the other side of the transfer, falling back to
// the phone number when no name is known.
func (t *Transaction) CounterpartyName() string {
	if t.IsCredit() {
		if t.SenderName != "" {
			return t.SenderName
		}
		return t.SenderPhone
	}
	if t.RecipientName != "" {
		return t.RecipientName
	}
	return t.RecipientPhone
}

// FormattedAmount renders the signed amount, e.g. "+25.00 EGP".
func (t *Transaction) FormattedAmount() string {
	sign := "-"
	if t.IsCredit() {
		sign = "+"
	}
	return sign + t.Amount.StringFixed(2) + " " + t.Currency
}

// TransactionPage is one page of the transaction history.
type TransactionPage struct {
	Transactions []Transaction `json:"transactions"`
	Total        int           `json:"total"`
	Page         int           `json:"page"`
	HasMore      bool          `json:"has_more"`
}
