package handler

import (
	"context"
	"net/http"
	"sync"
	"time"

	"healthpay-wallet/internal/core/ports"

	"github.com/gin-gonic/gin"
	"golang.org/x/sync/errgroup"
)

// healthTimeout bounds each dependency ping.
const healthTimeout = 2 * time.Second

type dependencyStatus struct {
	Status    string `json:"status"`
	LatencyMS int64  `json:"latency_ms"`
	Error     string `json:"error,omitempty"`
}

// HealthCheck handles GET /health. Dependencies are pinged concurrently; any
// failure turns the response into a 503 "degraded".
func HealthCheck(checkers ...ports.HealthChecker) gin.HandlerFunc {
	return func(c *gin.Context) {
		var (
			mu   sync.Mutex
			deps = make(map[string]dependencyStatus, len(checkers))
		)

		g, ctx := errgroup.WithContext(c.Request.Context())
		for _, checker := range checkers {
			g.Go(func() error {
				st := ping(ctx, checker)
				mu.Lock()
				deps[checker.Name()] = st
				mu.Unlock()
				return nil
			})
		}
		_ = g.Wait()

		status, code := "healthy", http.StatusOK
		for _, d := range deps {
			if d.Status != "healthy" {
				status, code = "degraded", http.StatusServiceUnavailable
				break
			}
		}

		c.JSON(code, gin.H{
			"status":       status,
			"dependencies": deps,
		})
	}
}

func ping(ctx context.Context, checker ports.HealthChecker) dependencyStatus {
	ctx, cancel := context.WithTimeout(ctx, healthTimeout)
	defer cancel()

	start := time.Now()
	err := checker.Ping(ctx)
	st := dependencyStatus{Status: "healthy", LatencyMS: time.Since(start).Milliseconds()}
	if err != nil {
		st.Status = "unhealthy"
		st.Error = err.Error()
	}
	return st
}
