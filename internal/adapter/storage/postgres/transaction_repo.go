package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"healthpay-wallet/internal/core/domain"
	"healthpay-wallet/internal/core/ports"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

const transactionColumns = `id::text, user_id, type, status, amount::text, currency,
	recipient_phone, recipient_name, sender_phone, sender_name, description,
	reference_number, fee::text, metadata::text, created_at, completed_at`

// TransactionRepo implements ports.TransactionRepository.
type TransactionRepo struct {
	pool Pool
}

// NewTransactionRepo creates a new TransactionRepo.
func NewTransactionRepo(pool Pool) *TransactionRepo {
	return &TransactionRepo{pool: pool}
}

// Create inserts a ledger entry within a database transaction.
func (r *TransactionRepo) Create(ctx context.Context, tx pgx.Tx, t *domain.Transaction) error {
	query := `INSERT INTO transactions (id, user_id, type, status, amount, currency,
		recipient_phone, recipient_name, sender_phone, sender_name, description,
		reference_number, fee, metadata, created_at, completed_at)
		VALUES ($1, $2, $3, $4, $5::numeric, $6, $7, $8, $9, $10, $11, $12, $13::numeric, $14::jsonb, $15, $16)`

	var fee *string
	if t.Fee != nil {
		s := t.Fee.String()
		fee = &s
	}

	var metadata *string
	if len(t.Metadata) > 0 {
		b, err := json.Marshal(t.Metadata)
		if err != nil {
			return fmt.Errorf("marshal metadata: %w", err)
		}
		s := string(b)
		metadata = &s
	}

	_, err := tx.Exec(ctx, query,
		t.ID, t.UserID, t.Type, t.Status, t.Amount.String(), t.Currency,
		t.RecipientPhone, t.RecipientName, t.SenderPhone, t.SenderName, t.Description,
		t.ReferenceNumber, fee, metadata, t.CreatedAt, t.CompletedAt,
	)
	if err != nil {
		return fmt.Errorf("insert transaction: %w", err)
	}
	return nil
}

// GetByID fetches one of the user's transactions. IDs that are not UUIDs
// cannot exist and yield (nil, nil).
func (r *TransactionRepo) GetByID(ctx context.Context, userID uuid.UUID, id string) (*domain.Transaction, error) {
	txID, err := uuid.Parse(id)
	if err != nil {
		return nil, nil
	}

	query := `SELECT ` + transactionColumns + ` FROM transactions WHERE id = $1 AND user_id = $2`

	t, err := scanTransaction(r.pool.QueryRow(ctx, query, txID, userID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return t, nil
}

// List fetches the user's transactions newest first with the total count.
func (r *TransactionRepo) List(ctx context.Context, params ports.TransactionListParams) ([]domain.Transaction, int, error) {
	var total int
	err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM transactions WHERE user_id = $1`, params.UserID).Scan(&total)
	if err != nil {
		return nil, 0, fmt.Errorf("count transactions: %w", err)
	}

	offset := (params.Page - 1) * params.PageSize
	query := `SELECT ` + transactionColumns + ` FROM transactions WHERE user_id = $1
		ORDER BY created_at DESC, id LIMIT $2 OFFSET $3`

	rows, err := r.pool.Query(ctx, query, params.UserID, params.PageSize, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("list transactions: %w", err)
	}
	defer rows.Close()

	var txns []domain.Transaction
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, 0, err
		}
		txns = append(txns, *t)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate transaction rows: %w", err)
	}
	return txns, total, nil
}

// PendingTotal sums incoming entries that have not settled yet.
func (r *TransactionRepo) PendingTotal(ctx context.Context, userID uuid.UUID) (decimal.Decimal, error) {
	query := `SELECT COALESCE(SUM(amount), 0)::text FROM transactions
		WHERE user_id = $1 AND status = 'PENDING' AND type IN ('RECEIVED', 'TOPUP', 'REFUND')`

	var sum string
	if err := r.pool.QueryRow(ctx, query, userID).Scan(&sum); err != nil {
		return decimal.Zero, fmt.Errorf("pending total: %w", err)
	}
	total, err := decimal.NewFromString(sum)
	if err != nil {
		return decimal.Zero, fmt.Errorf("parse pending total %q: %w", sum, err)
	}
	return total, nil
}

// scanTransaction scans a single row. pgx.ErrNoRows is returned unwrapped
// so callers can map it.
func scanTransaction(row pgx.Row) (*domain.Transaction, error) {
	t := &domain.Transaction{}
	var amount string
	var fee, metadata *string

	err := row.Scan(
		&t.ID, &t.UserID, &t.Type, &t.Status, &amount, &t.Currency,
		&t.RecipientPhone, &t.RecipientName, &t.SenderPhone, &t.SenderName, &t.Description,
		&t.ReferenceNumber, &fee, &metadata, &t.CreatedAt, &t.CompletedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan transaction: %w", err)
	}

	if t.Amount, err = decimal.NewFromString(amount); err != nil {
		return nil, fmt.Errorf("parse amount %q: %w", amount, err)
	}
	if fee != nil {
		f, err := decimal.NewFromString(*fee)
		if err != nil {
			return nil, fmt.Errorf("parse fee %q: %w", *fee, err)
		}
		t.Fee = &f
	}
	if metadata != nil {
		if err := json.Unmarshal([]byte(*metadata), &t.Metadata); err != nil {
			return nil, fmt.Errorf("decode metadata: %w", err)
		}
	}
	return t, nil
}
