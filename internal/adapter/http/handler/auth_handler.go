package handler

import (
	"healthpay-wallet/internal/adapter/http/dto"
	"healthpay-wallet/internal/core/ports"
	"healthpay-wallet/pkg/response"

	"github.com/gin-gonic/gin"
)

// AuthHandler handles account and session endpoints.
type AuthHandler struct {
	authSvc ports.AuthService
}

// NewAuthHandler creates a new AuthHandler.
func NewAuthHandler(authSvc ports.AuthService) *AuthHandler {
	return &AuthHandler{authSvc: authSvc}
}

// Register handles POST /api/v1/auth/register.
func (h *AuthHandler) Register(c *gin.Context) {
	var req dto.RegisterRequest
	if !bindJSON(c, &req) {
		return
	}

	user, err := h.authSvc.Register(c.Request.Context(), ports.RegisterRequest{
		Username: req.Username,
		Password: req.Password,
		Phone:    req.Phone,
		FullName: req.FullName,
		PIN:      req.PIN,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, user)
}

// Login handles POST /api/v1/auth/login.
func (h *AuthHandler) Login(c *gin.Context) {
	var req dto.LoginRequest
	if !bindJSON(c, &req) {
		return
	}

	auth, err := h.authSvc.Login(c.Request.Context(), req.Username, req.Password)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, auth)
}

// Refresh handles POST /api/v1/auth/refresh. The refresh token is single
// use; the response carries its replacement.
func (h *AuthHandler) Refresh(c *gin.Context) {
	var req dto.RefreshRequest
	if !bindJSON(c, &req) {
		return
	}

	auth, err := h.authSvc.Refresh(c.Request.Context(), req.RefreshToken)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, auth)
}

// Logout handles POST /api/v1/auth/logout. Every refresh token of the caller
// is revoked.
func (h *AuthHandler) Logout(c *gin.Context) {
	userID, ok := callerID(c)
	if !ok {
		return
	}

	if err := h.authSvc.Logout(c.Request.Context(), userID); err != nil {
		response.Error(c, err)
		return
	}

	response.NoContent(c)
}
