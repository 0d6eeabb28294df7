package middleware

import (
	"net/http"

	"healthpay-wallet/pkg/apperror"
	"healthpay-wallet/pkg/response"

	"github.com/gin-gonic/gin"
)

// BodyLimit caps request bodies at limit bytes. Requests that declare a larger
// Content-Length are rejected up front; chunked bodies fail on read with an
// *http.MaxBytesError, which the handlers turn into the same 413.
func BodyLimit(limit int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.ContentLength > limit {
			response.Abort(c, apperror.ErrBodyTooLarge(limit))
			return
		}
		if c.Request.Body != nil {
			c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, limit)
		}
		c.Next()
	}
}
