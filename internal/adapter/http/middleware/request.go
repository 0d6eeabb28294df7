package middleware

import (
	"fmt"
	"net/http"
	"time"

	"healthpay-wallet/pkg/apperror"
	"healthpay-wallet/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const (
	CtxRequestID    = response.RequestIDKey
	HeaderRequestID = "X-Request-ID"

	maxRequestIDLen = 64
)

// RequestID adopts the caller's X-Request-ID, or mints one, and echoes it
// back. The response envelope reports the same value.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(HeaderRequestID)
		if id == "" || len(id) > maxRequestIDLen {
			id = uuid.NewString()
		}
		c.Set(CtxRequestID, id)
		c.Header(HeaderRequestID, id)
		c.Next()
	}
}

// RequestLogger writes one access log entry per request, at warn for 4xx
// and error for 5xx.
func RequestLogger(log zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		event := log.WithLevel(levelFor(status)).
			Str("request_id", c.GetString(CtxRequestID)).
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Int("status", status).
			Int("bytes", c.Writer.Size()).
			Dur("latency", time.Since(start)).
			Str("client_ip", c.ClientIP())
		if id, ok := UserID(c); ok {
			event = event.Stringer("user_id", id)
		}
		event.Msg("http request")
	}
}

func levelFor(status int) zerolog.Level {
	switch {
	case status >= http.StatusInternalServerError:
		return zerolog.ErrorLevel
	case status >= http.StatusBadRequest:
		return zerolog.WarnLevel
	default:
		return zerolog.InfoLevel
	}
}

// Recovery turns a handler panic into an opaque SYS_001.
func Recovery(log zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			r := recover()
			if r == nil {
				return
			}
			log.Error().Interface("panic", r).Str("path", c.Request.URL.Path).Msg("panic recovered")
			response.Abort(c, apperror.InternalError(fmt.Errorf("panic: %v", r)))
		}()
		c.Next()
	}
}
