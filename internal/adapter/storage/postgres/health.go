package postgres

import (
	"context"
	"errors"
	"fmt"
)

var errSchemaMissing = errors.New("wallet schema not migrated")

// HealthCheck implements ports.HealthChecker for PostgreSQL. Besides
// connectivity it checks that the wallet schema exists.
type HealthCheck struct {
	pool Pool
}

// NewHealthCheck creates a PostgreSQL health checker.
func NewHealthCheck(pool Pool) *HealthCheck {
	return &HealthCheck{pool: pool}
}

// Ping checks PostgreSQL connectivity and schema presence.
func (h *HealthCheck) Ping(ctx context.Context) error {
	var ready bool
	err := h.pool.QueryRow(ctx, `SELECT to_regclass('public.wallets') IS NOT NULL`).Scan(&ready)
	if err != nil {
		return fmt.Errorf("postgres ping: %w", err)
	}
	if !ready {
		return errSchemaMissing
	}
	return nil
}

// Name returns the dependency name.
func (h *HealthCheck) Name() string {
	return "postgresql"
}
