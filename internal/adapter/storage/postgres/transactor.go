package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
)

// transferTxOptions pins READ COMMITTED. Transfers take row locks with
// SELECT ... FOR UPDATE, so a stronger level would only add retries.
var transferTxOptions = pgx.TxOptions{
	IsoLevel:   pgx.ReadCommitted,
	AccessMode: pgx.ReadWrite,
}

// Transactor implements ports.DBTransactor on a Pool.
type Transactor struct {
	pool Pool
}

func NewTransactor(pool Pool) *Transactor {
	return &Transactor{pool: pool}
}

// Begin starts a read-write READ COMMITTED transaction.
func (t *Transactor) Begin(ctx context.Context) (pgx.Tx, error) {
	tx, err := t.pool.BeginTx(ctx, transferTxOptions)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	return tx, nil
}
