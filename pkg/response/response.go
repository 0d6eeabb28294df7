// Package response writes the JSON envelopes of the wallet API. The wallet
// client unwraps "data" on success and reads "code" and "message" on
// failure.
package response

import (
	"net/http"
	"time"

	"healthpay-wallet/pkg/apperror"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// RequestIDKey is the gin context key holding the request ID.
const RequestIDKey = "request_id"

// SuccessResponse is the success envelope.
type SuccessResponse struct {
	Data      interface{} `json:"data"`
	RequestID string      `json:"request_id"`
	Timestamp string      `json:"timestamp"`
}

// ErrorResponse is the error envelope.
type ErrorResponse struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	RequestID string `json:"request_id"`
	Timestamp string `json:"timestamp"`
}

// OK writes data with 200.
func OK(c *gin.Context, data interface{}) {
	success(c, http.StatusOK, data)
}

// Created writes data with 201.
func Created(c *gin.Context, data interface{}) {
	success(c, http.StatusCreated, data)
}

// NoContent writes a null data field with 200; the client expects a body.
func NoContent(c *gin.Context) {
	success(c, http.StatusOK, nil)
}

// Error writes err with the status of its AppError. Anything else is
// reported as an opaque 500.
func Error(c *gin.Context, err error) {
	appErr := apperror.From(err)
	c.JSON(appErr.HTTPStatus, ErrorResponse{
		Code:      appErr.Code,
		Message:   appErr.Message,
		RequestID: requestID(c),
		Timestamp: timestamp(),
	})
}

// Abort writes err like Error and stops the handler chain.
func Abort(c *gin.Context, err error) {
	Error(c, err)
	c.Abort()
}

func success(c *gin.Context, status int, data interface{}) {
	c.JSON(status, SuccessResponse{
		Data:      data,
		RequestID: requestID(c),
		Timestamp: timestamp(),
	})
}

func timestamp() string {
	return time.Now().UTC().Format(time.RFC3339)
}

// requestID prefers the ID set by the request ID middleware.
func requestID(c *gin.Context) string {
	if id := c.GetString(RequestIDKey); id != "" {
		return id
	}
	return uuid.NewString()
}
