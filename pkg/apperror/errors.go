// Package apperror defines the coded errors the wallet API returns. Codes are
// stable wire values; the wallet client keys its handling on them.
package apperror

import (
	"errors"
	"fmt"
	"net/http"
)

// Error codes.
const (
	CodeInsufficientFunds = "PAY_001"
	CodeInvalidRequest    = "PAY_002"
	CodeNotFound          = "PAY_004"
	CodeRecipientNotFound = "PAY_005"
	CodeSelfTransfer      = "PAY_006"
	CodeQRExpired         = "PAY_007"
	CodeInvalidQR         = "PAY_008"
	CodeRequestInProgress = "PAY_009"

	CodeInvalidCredentials  = "AUTH_001"
	CodeUsernameExists      = "AUTH_002"
	CodeInvalidToken        = "AUTH_003"
	CodeInvalidRefreshToken = "AUTH_004"
	CodeInvalidPIN          = "AUTH_005"
	CodePhoneExists         = "AUTH_006"

	CodeRateLimited = "RATE_001"

	CodeUnknown  = "SYS_000"
	CodeInternal = "SYS_001"
	CodeCache    = "SYS_002"
)

// AppError is a coded error carrying the HTTP status it maps to.
type AppError struct {
	Code       string `json:"code"`
	Message    string `json:"message"`
	HTTPStatus int    `json:"-"`
	Err        error  `json:"-"` // internal cause, never sent to clients
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// New creates an AppError.
func New(code string, message string, httpStatus int) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: httpStatus,
	}
}

// Wrap creates an AppError around an internal cause.
func Wrap(code string, message string, httpStatus int, err error) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: httpStatus,
		Err:        err,
	}
}

// From finds the AppError in err's chain. Errors without one become an
// opaque SYS_000 wrapping err.
func From(err error) *AppError {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr
	}
	return Wrap(CodeUnknown, "Internal server error", http.StatusInternalServerError, err)
}

// HasCode reports whether err carries an AppError with code.
func HasCode(err error, code string) bool {
	var appErr *AppError
	return errors.As(err, &appErr) && appErr.Code == code
}

// ---- Payments (PAY) ----

func ErrInsufficientFunds() *AppError {
	return New(CodeInsufficientFunds, "Insufficient balance in wallet", http.StatusPaymentRequired)
}

func ErrInvalidAmount() *AppError {
	return New(CodeInvalidRequest, "Invalid amount", http.StatusBadRequest)
}

// Validation reports rejected input. It shares the invalid amount code.
func Validation(message string) *AppError {
	return New(CodeInvalidRequest, message, http.StatusBadRequest)
}

// ErrBodyTooLarge rejects a request body over limit bytes.
func ErrBodyTooLarge(limit int64) *AppError {
	return New(CodeInvalidRequest, fmt.Sprintf("Request body exceeds %d bytes", limit), http.StatusRequestEntityTooLarge)
}

func ErrNotFound(entity string) *AppError {
	return New(CodeNotFound, fmt.Sprintf("%s not found", entity), http.StatusNotFound)
}

func ErrRecipientNotFound() *AppError {
	return New(CodeRecipientNotFound, "Recipient not found", http.StatusNotFound)
}

func ErrSelfTransfer() *AppError {
	return New(CodeSelfTransfer, "Cannot send money to your own wallet", http.StatusBadRequest)
}

func ErrQRExpired() *AppError {
	return New(CodeQRExpired, "QR code has expired", http.StatusGone)
}

func ErrInvalidQR() *AppError {
	return New(CodeInvalidQR, "Invalid QR code", http.StatusBadRequest)
}

// ErrRequestInProgress rejects a replay while the first request with the
// same idempotency key is still running.
func ErrRequestInProgress() *AppError {
	return New(CodeRequestInProgress, "A request with this idempotency key is still being processed", http.StatusConflict)
}

// ---- Authentication (AUTH) ----

func ErrInvalidCredentials() *AppError {
	return New(CodeInvalidCredentials, "Invalid credentials", http.StatusUnauthorized)
}

func ErrUsernameExists() *AppError {
	return New(CodeUsernameExists, "Username already exists", http.StatusConflict)
}

func ErrInvalidToken() *AppError {
	return New(CodeInvalidToken, "Invalid or expired token", http.StatusUnauthorized)
}

func ErrInvalidRefreshToken() *AppError {
	return New(CodeInvalidRefreshToken, "Invalid or expired refresh token", http.StatusUnauthorized)
}

// ErrInvalidPIN is a 403 so that clients never mistake it for an expired
// access token.
func ErrInvalidPIN() *AppError {
	return New(CodeInvalidPIN, "Invalid PIN", http.StatusForbidden)
}

func ErrPhoneExists() *AppError {
	return New(CodePhoneExists, "Phone number already registered", http.StatusConflict)
}

// ---- Rate limiting (RATE) ----

func ErrRateLimitExceeded() *AppError {
	return New(CodeRateLimited, "Rate limit exceeded", http.StatusTooManyRequests)
}

// ---- System (SYS) ----

func ErrDatabaseError(err error) *AppError {
	return Wrap(CodeInternal, "Internal database error", http.StatusInternalServerError, err)
}

func ErrCacheError(err error) *AppError {
	return Wrap(CodeCache, "Cache unavailable", http.StatusServiceUnavailable, err)
}

// InternalError hides err behind a generic SYS_001.
func InternalError(err error) *AppError {
	return Wrap(CodeInternal, "Internal server error", http.StatusInternalServerError, err)
}
