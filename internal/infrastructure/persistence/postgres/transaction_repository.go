package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/amankrmj01/bakery-payment-service/internal/application"
	"github.com/amankrmj01/bakery-payment-service/internal/domain"
)

const transactionColumns = `
	id, payment_id, type, status, amount, currency_code,
	gateway_transaction_id, gateway_response, gateway_raw_response,
	failure_reason, failure_code, created_at, processed_at, description, metadata`

type TransactionRepository struct {
	db *pgxpool.Pool
}

func NewTransactionRepository(db *DB) *TransactionRepository {
	return &TransactionRepository{db: db.Pool}
}

var _ application.TransactionRepository = (*TransactionRepository)(nil)

func (r *TransactionRepository) Save(ctx context.Context, tx *domain.PaymentTransaction) error {
	query := `
		INSERT INTO payment_transactions (` + transactionColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
	`

	_, err := r.db.Exec(ctx, query,
		tx.ID, tx.PaymentID, tx.Type, tx.Status, tx.Amount, tx.CurrencyCode,
		tx.GatewayTransactionID, tx.GatewayResponse, tx.GatewayRawResponse,
		tx.FailureReason, tx.FailureCode, tx.CreatedAt, tx.ProcessedAt, tx.Description, tx.Metadata,
	)
	if err != nil {
		return fmt.Errorf("failed to insert transaction: %w", err)
	}
	return nil
}

func (r *TransactionRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.PaymentTransaction, error) {
	query := `SELECT ` + transactionColumns + ` FROM payment_transactions WHERE id = $1`

	tx, err := scanTransaction(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.NewNotFoundError("transaction", id.String())
		}
		return nil, err
	}
	return tx, nil
}

func (r *TransactionRepository) FindByPaymentID(ctx context.Context, paymentID uuid.UUID) ([]*domain.PaymentTransaction, error) {
	return queryTransactionsByPayment(ctx, r.db, paymentID)
}

func (r *TransactionRepository) FindByType(ctx context.Context, txType domain.TransactionType, limit, offset int) ([]*domain.PaymentTransaction, error) {
	query := `SELECT ` + transactionColumns + `
		FROM payment_transactions WHERE type = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3`

	rows, err := r.db.Query(ctx, query, txType, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("query transactions by type: %w", err)
	}
	return collectTransactions(rows)
}

func (r *TransactionRepository) FindByStatus(ctx context.Context, status domain.TransactionStatus, limit, offset int) ([]*domain.PaymentTransaction, error) {
	query := `SELECT ` + transactionColumns + `
		FROM payment_transactions WHERE status = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3`

	rows, err := r.db.Query(ctx, query, status, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("query transactions by status: %w", err)
	}
	return collectTransactions(rows)
}

func (r *TransactionRepository) FindByGatewayTransactionID(ctx context.Context, gatewayTransactionID string) (*domain.PaymentTransaction, error) {
	query := `SELECT ` + transactionColumns + `
		FROM payment_transactions WHERE gateway_transaction_id = $1
		ORDER BY created_at DESC
		LIMIT 1`

	tx, err := scanTransaction(r.db.QueryRow(ctx, query, gatewayTransactionID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.NewNotFoundError("transaction", gatewayTransactionID)
		}
		return nil, err
	}
	return tx, nil
}

func scanTransaction(row pgx.Row) (*domain.PaymentTransaction, error) {
	var t domain.PaymentTransaction
	err := row.Scan(
		&t.ID, &t.PaymentID, &t.Type, &t.Status, &t.Amount, &t.CurrencyCode,
		&t.GatewayTransactionID, &t.GatewayResponse, &t.GatewayRawResponse,
		&t.FailureReason, &t.FailureCode, &t.CreatedAt, &t.ProcessedAt, &t.Description, &t.Metadata,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan transaction: %w", err)
	}
	return &t, nil
}

func collectTransactions(rows pgx.Rows) ([]*domain.PaymentTransaction, error) {
	results, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (*domain.PaymentTransaction, error) {
		return scanTransaction(row)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to collect transactions: %w", err)
	}
	return results, nil
}

func queryTransactionsByPayment(ctx context.Context, db *pgxpool.Pool, paymentID uuid.UUID) ([]*domain.PaymentTransaction, error) {
	query := `SELECT ` + transactionColumns + `
		FROM payment_transactions WHERE payment_id = $1
		ORDER BY created_at ASC`

	rows, err := db.Query(ctx, query, paymentID)
	if err != nil {
		return nil, fmt.Errorf("query transactions by payment: %w", err)
	}
	return collectTransactions(rows)
}
