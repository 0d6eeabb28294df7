package middleware

import (
	"strings"

	"healthpay-wallet/internal/core/ports"
	"healthpay-wallet/pkg/apperror"
	"healthpay-wallet/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// CtxUserID holds the authenticated caller's uuid.UUID.
const CtxUserID = "user_id"

// JWTAuth admits requests carrying a valid bearer access token. Every
// rejection is the same AUTH_003 so clients need one refresh path.
func JWTAuth(tokens ports.TokenService, log zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		raw, ok := strings.CutPrefix(c.GetHeader("Authorization"), "Bearer ")
		if !ok || strings.TrimSpace(raw) == "" {
			response.Abort(c, apperror.ErrInvalidToken())
			return
		}

		claims, err := tokens.Validate(raw)
		if err != nil {
			log.Debug().Err(err).Str("route", c.FullPath()).Msg("access token rejected")
			response.Abort(c, apperror.ErrInvalidToken())
			return
		}

		c.Set(CtxUserID, claims.UserID)
		c.Next()
	}
}

// UserID returns the caller JWTAuth admitted.
func UserID(c *gin.Context) (uuid.UUID, bool) {
	id, ok := c.Value(CtxUserID).(uuid.UUID)
	return id, ok
}
