package apiclient

import "fmt"

// ErrorKind classifies a failed call.
type ErrorKind string

const (
	// KindValidation marks input rejected locally before any network call.
	KindValidation ErrorKind = "validation"
	// KindAuth marks a 401 that a token refresh could not resolve.
	KindAuth ErrorKind = "auth"
	// KindServer marks any other non-2xx response.
	KindServer ErrorKind = "server"
	// KindTransport marks timeouts, connection failures and unreadable bodies.
	KindTransport ErrorKind = "transport"
)

// Fallback messages used when the server gives none.
const (
	MsgRequestFailed   = "Request failed"
	MsgServerError     = "Server error occurred"
	MsgNetworkError    = "Network connection error"
	MsgInvalidResponse = "Invalid response from server"
)

// Error is the failure side of a Result.
type Error struct {
	Kind    ErrorKind
	Message string
	Code    string // server error code, numeric codes rendered in decimal
	Status  int    // HTTP status, 0 when no response was received
}

func (e *Error) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("%s (%s)", e.Message, e.Code)
	}
	return e.Message
}

// ValidationError builds a KindValidation error.
func ValidationError(message string) *Error {
	return &Error{Kind: KindValidation, Message: message}
}

// Result carries either a value or an *Error, never both.
type Result[T any] struct {
	value T
	err   *Error
}

// Success wraps a value.
func Success[T any](v T) Result[T] {
	return Result[T]{value: v}
}

// Failure wraps an error. A nil err is replaced by a generic transport error
// so that a Result is never empty on both sides.
func Failure[T any](err *Error) Result[T] {
	if err == nil {
		err = &Error{Kind: KindTransport, Message: MsgNetworkError}
	}
	return Result[T]{err: err}
}

// Ok reports whether the call succeeded.
func (r Result[T]) Ok() bool { return r.err == nil }

// Value returns the success value; it is the zero value on failure.
func (r Result[T]) Value() T { return r.value }

// Err returns the failure, or nil on success.
func (r Result[T]) Err() *Error { return r.err }

// Unit is the value of calls that return nothing.
type Unit struct{}
