package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// AuditAction names a money- or session-affecting operation.
type AuditAction string

const (
	AuditRegister  AuditAction = "REGISTER"
	AuditLogin     AuditAction = "LOGIN"
	AuditLogout    AuditAction = "LOGOUT"
	AuditSend      AuditAction = "SEND"
	AuditRequest   AuditAction = "REQUEST_PAYMENT"
	AuditQRCreate  AuditAction = "QR_GENERATE"
	AuditQRPayment AuditAction = "QR_PAYMENT"
)

// AuditLog emits one audit event per successful write on the routes it
// knows about. Reads and failed requests are skipped.
func AuditLog(log zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		status := c.Writer.Status()
		if status < 200 || status >= 300 {
			return
		}
		if c.Request.Method != http.MethodPost {
			return
		}

		action, resource := mapPathToAction(c.FullPath())
		if action == "" {
			return
		}

		event := log.Info().
			Str("audit_action", string(action)).
			Str("resource_type", resource).
			Str("client_ip", c.ClientIP()).
			Int("status", status)
		if id, ok := UserID(c); ok {
			event = event.Str("user_id", id.String())
		}
		event.Msg("audit")
	}
}

func mapPathToAction(route string) (AuditAction, string) {
	switch route {
	case "/api/v1/auth/register":
		return AuditRegister, "user"
	case "/api/v1/auth/login":
		return AuditLogin, "session"
	case "/api/v1/auth/logout":
		return AuditLogout, "session"
	case "/api/v1/wallet/send":
		return AuditSend, "transaction"
	case "/api/v1/wallet/request":
		return AuditRequest, "payment_link"
	case "/api/v1/qr/generate":
		return AuditQRCreate, "payment_intent"
	case "/api/v1/qr/process":
		return AuditQRPayment, "transaction"
	}
	return "", ""
}
