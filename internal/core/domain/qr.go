package domain

import (
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// QRType is the intent encoded in a QR payload.
type QRType string

const (
	QRTypePayment QRType = "PAYMENT"
	QRTypeRequest QRType = "REQUEST"
	QRTypeWallet  QRType = "WALLET"
)

const (
	qrScheme      = "healthpay"
	qrParamID     = "paymentId"
	qrParamAmount = "amount"
	qrParamPhone  = "phone"
	qrParamName   = "name"
	qrParamNote   = "note"
	qrParamExpiry = "expires"
)

var (
	ErrQRMalformed        = errors.New("malformed QR payload")
	ErrQRMissingPaymentID = errors.New("QR payload has no payment ID")
	ErrQRExpired          = errors.New("QR code has expired")
	ErrQRNotPayable       = errors.New("QR code is not a payment")
)

var (
	shortCodeRe = regexp.MustCompile(`^HP[A-Z0-9]{12,}$`)

	qrHosts = map[string]bool{
		"portal.healthpay.tech":      true,
		"portal.beta.healthpay.tech": true,
	}

	qrActions = map[string]QRType{
		"pay":     QRTypePayment,
		"request": QRTypeRequest,
		"wallet":  QRTypeWallet,
	}
)

// QRCodeData is a decoded payment intent. Read-only once parsed.
type QRCodeData struct {
	Type           QRType
	PaymentID      string
	Amount         *decimal.Decimal
	RecipientPhone string
	RecipientName  string
	Description    string
	ExpiresAt      *time.Time
}

// IsShortCode reports whether raw is a bare HP... payment code.
func IsShortCode(raw string) bool {
	return shortCodeRe.MatchString(raw)
}

// ParseQRPayload decodes a scanned payload. Accepted forms are
// healthpay://{pay|request|wallet}?..., the equivalent portal https URL and
// bare short codes. Expiry is decoded but not enforced here.
func ParseQRPayload(raw string) (*QRCodeData, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, fmt.Errorf("%w: empty", ErrQRMalformed)
	}
	if IsShortCode(raw) {
		return &QRCodeData{Type: QRTypePayment, PaymentID: raw}, nil
	}

	u, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrQRMalformed, err)
	}

	var action string
	switch {
	case strings.EqualFold(u.Scheme, qrScheme):
		action = u.Host
		if action == "" {
			action = strings.Trim(u.Opaque, "/")
			if i := strings.IndexByte(action, '?'); i >= 0 {
				action = action[:i]
			}
		}
	case u.Scheme == "https" && qrHosts[strings.ToLower(u.Host)]:
		segments := strings.Split(strings.Trim(u.Path, "/"), "/")
		action = segments[len(segments)-1]
	default:
		return nil, fmt.Errorf("%w: unsupported scheme %q", ErrQRMalformed, u.Scheme)
	}

	qrType, ok := qrActions[strings.ToLower(action)]
	if !ok {
		return nil, fmt.Errorf("%w: unknown action %q", ErrQRMalformed, action)
	}

	q := u.Query()
	data := &QRCodeData{
		Type:           qrType,
		PaymentID:      q.Get(qrParamID),
		RecipientPhone: q.Get(qrParamPhone),
		RecipientName:  q.Get(qrParamName),
		Description:    q.Get(qrParamNote),
	}

	if s := q.Get(qrParamAmount); s != "" {
		amount, err := decimal.NewFromString(s)
		if err != nil {
			return nil, fmt.Errorf("%w: amount %q", ErrQRMalformed, s)
		}
		if !amount.IsPositive() {
			return nil, fmt.Errorf("%w: amount must be positive", ErrQRMalformed)
		}
		data.Amount = &amount
	}

	if s := q.Get(qrParamExpiry); s != "" {
		expiresAt, err := time.Parse(time.RFC3339, s)
		if err != nil {
			return nil, fmt.Errorf("%w: expires %q", ErrQRMalformed, s)
		}
		data.ExpiresAt = &expiresAt
	}

	return data, nil
}

// ValidateForPayment checks that the payload can be settled at now.
func (d *QRCodeData) ValidateForPayment(now time.Time) error {
	if d.Type != QRTypePayment && d.Type != QRTypeRequest {
		return ErrQRNotPayable
	}
	if d.PaymentID == "" {
		return ErrQRMissingPaymentID
	}
	if d.ExpiresAt != nil && !now.Before(*d.ExpiresAt) {
		return ErrQRExpired
	}
	return nil
}

// BuildQRPayload encodes data as a healthpay:// URI.
func BuildQRPayload(d QRCodeData) string {
	action := "pay"
	for k, v := range qrActions {
		if v == d.Type {
			action = k
		}
	}

	q := url.Values{}
	if d.PaymentID != "" {
		q.Set(qrParamID, d.PaymentID)
	}
	if d.Amount != nil {
		q.Set(qrParamAmount, d.Amount.String())
	}
	if d.RecipientPhone != "" {
		q.Set(qrParamPhone, d.RecipientPhone)
	}
	if d.RecipientName != "" {
		q.Set(qrParamName, d.RecipientName)
	}
	if d.Description != "" {
		q.Set(qrParamNote, d.Description)
	}
	if d.ExpiresAt != nil {
		q.Set(qrParamExpiry, d.ExpiresAt.UTC().Format(time.RFC3339))
	}

	return qrScheme + "://" + action + "?" + q.Encode()
}
