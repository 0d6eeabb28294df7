package handler

import (
	"healthpay-wallet/internal/adapter/http/middleware"
	"healthpay-wallet/internal/core/ports"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

const maxBodyBytes = 1 << 20

// RouterDeps holds all dependencies needed to set up routes.
type RouterDeps struct {
	AuthSvc        ports.AuthService
	WalletSvc      ports.WalletService
	TokenSvc       ports.TokenService
	RateLimitStore middleware.Limiter // nil disables rate limiting
	HealthCheckers []ports.HealthChecker
	Mode           string // gin mode; empty means release
	Logger         zerolog.Logger
}

// limits resolves the rate limiter of a route group.
type limits struct {
	store middleware.Limiter
	rules map[string]middleware.RateLimitRule
	log   zerolog.Logger
}

func (l limits) group(name string) gin.HandlerFunc {
	rule, ok := l.rules[name]
	if l.store == nil || !ok {
		return func(c *gin.Context) { c.Next() }
	}
	return middleware.RateLimiter(l.store, name, rule, l.log)
}

// SetupRouter builds the sandbox API engine.
func SetupRouter(deps RouterDeps) *gin.Engine {
	mode := deps.Mode
	if mode == "" {
		mode = gin.ReleaseMode
	}
	gin.SetMode(mode)

	r := gin.New()
	r.Use(
		middleware.Recovery(deps.Logger),
		middleware.RequestID(),
		middleware.RequestLogger(deps.Logger),
		middleware.BodyLimit(maxBodyBytes),
		middleware.AuditLog(deps.Logger),
	)

	r.GET("/health", HealthCheck(deps.HealthCheckers...))
	r.GET("/swagger", SwaggerUI)
	r.GET("/swagger/spec", SwaggerSpec)
	r.GET("/swagger/spec.json", SwaggerSpecJSON)

	rl := limits{store: deps.RateLimitStore, rules: middleware.DefaultRateLimitRules(), log: deps.Logger}
	authed := middleware.JWTAuth(deps.TokenSvc, deps.Logger)
	api := r.Group("/api/v1")

	auth := NewAuthHandler(deps.AuthSvc)
	api.POST("/auth/register", rl.group("auth_register"), auth.Register)
	api.POST("/auth/login", rl.group("auth_login"), auth.Login)
	api.POST("/auth/refresh", rl.group("auth_refresh"), auth.Refresh)
	api.POST("/auth/logout", authed, auth.Logout)

	wallet := NewWalletHandler(deps.WalletSvc)
	w := api.Group("/wallet", authed)
	w.GET("/balance", rl.group("wallet"), wallet.GetBalance)
	w.POST("/send", rl.group("wallet_send"), wallet.Send)
	w.POST("/request", rl.group("wallet"), wallet.RequestPayment)
	w.GET("/transactions", rl.group("wallet"), wallet.ListTransactions)
	w.GET("/transactions/:id", rl.group("wallet"), wallet.GetTransaction)

	qr := api.Group("/qr", authed, rl.group("qr"))
	qr.POST("/generate", wallet.GenerateQR)
	qr.POST("/process", wallet.ProcessQR)

	return r
}
