package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/amankrmj01/bakery-payment-service/internal/application"
	"github.com/amankrmj01/bakery-payment-service/internal/domain"
)

const paymentColumns = `
	id, payment_reference, order_id, user_id, method, gateway, status,
	amount, currency_code, description,
	card_last_four, card_brand, card_type, digital_wallet_provider, bank_name,
	gateway_payment_id, external_transaction_id, gateway_response, gateway_raw_response,
	failure_reason, failure_code, retry_count, last_retry_at,
	created_at, updated_at, authorized_at, captured_at, failed_at, cancelled_at,
	expires_at, settlement_date, gateway_fee, net_amount, metadata, notes, version`

type PaymentRepository struct {
	db *pgxpool.Pool
}

func NewPaymentRepository(db *DB) *PaymentRepository {
	return &PaymentRepository{db: db.Pool}
}

var _ application.PaymentRepository = (*PaymentRepository)(nil)

func (r *PaymentRepository) Save(ctx context.Context, p *domain.Payment) error {
	query := `
		INSERT INTO payments (` + paymentColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10,
		        $11, $12, $13, $14, $15, $16, $17, $18, $19, $20,
		        $21, $22, $23, $24, $25, $26, $27, $28, $29, $30,
		        $31, $32, $33, $34, $35, $36)
	`

	p.Version = 1
	_, err := r.db.Exec(ctx, query,
		p.ID, p.PaymentReference, p.OrderID, p.UserID, p.Method, p.Gateway, p.Status,
		p.Amount, p.CurrencyCode, p.Description,
		p.CardLastFour, p.CardBrand, p.CardType, p.DigitalWalletProvider, p.BankName,
		p.GatewayPaymentID, p.ExternalTransactionID, p.GatewayResponse, p.GatewayRawResponse,
		p.FailureReason, p.FailureCode, p.RetryCount, p.LastRetryAt,
		p.CreatedAt, p.UpdatedAt, p.AuthorizedAt, p.CapturedAt, p.FailedAt, p.CancelledAt,
		p.ExpiresAt, p.SettlementDate, p.GatewayFee, p.NetAmount, p.Metadata, p.Notes, p.Version,
	)
	if err != nil {
		if IsUniqueViolation(err) {
			return domain.NewDuplicatePaymentError(p.OrderID.String())
		}
		return fmt.Errorf("failed to insert payment: %w", err)
	}
	return nil
}

// Update writes the payment back under optimistic locking. When the stored
// version no longer matches, the save is rejected with a CONFLICT error.
func (r *PaymentRepository) Update(ctx context.Context, p *domain.Payment) error {
	query := `
		UPDATE payments
		SET status = $1, gateway_payment_id = $2, external_transaction_id = $3,
		    gateway_response = $4, gateway_raw_response = $5,
		    failure_reason = $6, failure_code = $7, retry_count = $8, last_retry_at = $9,
		    updated_at = $10, authorized_at = $11, captured_at = $12, failed_at = $13,
		    cancelled_at = $14, expires_at = $15, settlement_date = $16,
		    gateway_fee = $17, net_amount = $18, metadata = $19, notes = $20,
		    version = version + 1
		WHERE id = $21 AND version = $22
	`

	result, err := r.db.Exec(ctx, query,
		p.Status, p.GatewayPaymentID, p.ExternalTransactionID,
		p.GatewayResponse, p.GatewayRawResponse,
		p.FailureReason, p.FailureCode, p.RetryCount, p.LastRetryAt,
		p.UpdatedAt, p.AuthorizedAt, p.CapturedAt, p.FailedAt,
		p.CancelledAt, p.ExpiresAt, p.SettlementDate,
		p.GatewayFee, p.NetAmount, p.Metadata, p.Notes,
		p.ID, p.Version,
	)
	if err != nil {
		return fmt.Errorf("failed to update payment: %w", err)
	}

	if result.RowsAffected() == 0 {
		var exists bool
		if err := r.db.QueryRow(ctx,
			`SELECT EXISTS (SELECT 1 FROM payments WHERE id = $1)`, p.ID).Scan(&exists); err != nil {
			return fmt.Errorf("failed to check payment existence: %w", err)
		}
		if exists {
			return domain.NewConflictError("payment")
		}
		return domain.NewNotFoundError("payment", p.ID.String())
	}

	p.Version++
	return nil
}

func (r *PaymentRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.Payment, error) {
	query := `SELECT ` + paymentColumns + ` FROM payments WHERE id = $1`
	payment, err := r.scanOne(ctx, r.db.QueryRow(ctx, query, id), id.String())
	if err != nil {
		return nil, err
	}
	return payment, r.loadChildren(ctx, payment)
}

func (r *PaymentRepository) FindByReference(ctx context.Context, reference string) (*domain.Payment, error) {
	query := `SELECT ` + paymentColumns + ` FROM payments WHERE payment_reference = $1`
	payment, err := r.scanOne(ctx, r.db.QueryRow(ctx, query, reference), reference)
	if err != nil {
		return nil, err
	}
	return payment, r.loadChildren(ctx, payment)
}

func (r *PaymentRepository) FindByOrderID(ctx context.Context, orderID uuid.UUID) (*domain.Payment, error) {
	query := `SELECT ` + paymentColumns + `
		FROM payments WHERE order_id = $1
		ORDER BY created_at DESC
		LIMIT 1`
	payment, err := r.scanOne(ctx, r.db.QueryRow(ctx, query, orderID), orderID.String())
	if err != nil {
		return nil, err
	}
	return payment, r.loadChildren(ctx, payment)
}

func (r *PaymentRepository) FindByUserID(ctx context.Context, userID uuid.UUID, limit, offset int) ([]*domain.Payment, error) {
	query := `SELECT ` + paymentColumns + `
		FROM payments WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3`

	rows, err := r.db.Query(ctx, query, userID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("query payments by user_id: %w", err)
	}
	return collectPayments(rows)
}

func (r *PaymentRepository) FindByStatus(ctx context.Context, status domain.PaymentStatus, limit, offset int) ([]*domain.Payment, error) {
	query := `SELECT ` + paymentColumns + `
		FROM payments WHERE status = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3`

	rows, err := r.db.Query(ctx, query, status, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("query payments by status: %w", err)
	}
	return collectPayments(rows)
}

func (r *PaymentRepository) FindAll(ctx context.Context, limit, offset int) ([]*domain.Payment, error) {
	query := `SELECT ` + paymentColumns + `
		FROM payments
		ORDER BY created_at DESC
		LIMIT $1 OFFSET $2`

	rows, err := r.db.Query(ctx, query, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("query payments: %w", err)
	}
	return collectPayments(rows)
}

// FindExpired returns PENDING payments whose expiry has elapsed.
func (r *PaymentRepository) FindExpired(ctx context.Context, now time.Time, limit int) ([]*domain.Payment, error) {
	query := `SELECT ` + paymentColumns + `
		FROM payments
		WHERE status = 'PENDING'
		  AND expires_at IS NOT NULL
		  AND expires_at < $1
		ORDER BY expires_at ASC
		LIMIT $2`

	rows, err := r.db.Query(ctx, query, now, limit)
	if err != nil {
		return nil, fmt.Errorf("query expired payments: %w", err)
	}
	return collectPayments(rows)
}

func (r *PaymentRepository) SumAmountByUserAndDateRange(ctx context.Context, userID uuid.UUID, statuses []domain.PaymentStatus, from, to time.Time) (decimal.Decimal, error) {
	query := `
		SELECT COALESCE(SUM(amount), 0)
		FROM payments
		WHERE user_id = $1
		  AND status = ANY($2)
		  AND created_at >= $3 AND created_at < $4
	`

	statusStrings := make([]string, len(statuses))
	for i, s := range statuses {
		statusStrings[i] = string(s)
	}

	var sum decimal.Decimal
	if err := r.db.QueryRow(ctx, query, userID, statusStrings, from, to).Scan(&sum); err != nil {
		return decimal.Zero, fmt.Errorf("sum payments by user and date range: %w", err)
	}
	return sum, nil
}

// ExistsByOrderID reports whether the order already carries a payment in
// any status. An order gets exactly one payment; failed ones are retried,
// not recreated.
func (r *PaymentRepository) ExistsByOrderID(ctx context.Context, orderID uuid.UUID) (bool, error) {
	query := `SELECT EXISTS (SELECT 1 FROM payments WHERE order_id = $1)`

	var exists bool
	if err := r.db.QueryRow(ctx, query, orderID).Scan(&exists); err != nil {
		return false, fmt.Errorf("check payment for order: %w", err)
	}
	return exists, nil
}

func (r *PaymentRepository) Statistics(ctx context.Context, from, to time.Time) (*application.PaymentStatistics, error) {
	stats := &application.PaymentStatistics{}

	totalsQuery := `
		SELECT COUNT(*),
		       COALESCE(SUM(amount), 0),
		       COALESCE(SUM(gateway_fee), 0),
		       COALESCE(SUM(net_amount), 0),
		       COALESCE(AVG(amount), 0),
		       COALESCE(SUM(amount) FILTER (WHERE status = 'COMPLETED'), 0)
		FROM payments
		WHERE created_at >= $1 AND created_at < $2
	`
	err := r.db.QueryRow(ctx, totalsQuery, from, to).Scan(
		&stats.TotalCount, &stats.TotalAmount, &stats.TotalFees, &stats.TotalNet,
		&stats.AveragePayment, &stats.CompletedAmount,
	)
	if err != nil {
		return nil, fmt.Errorf("payment statistics totals: %w", err)
	}

	stats.CountByStatus, err = r.groupCounts(ctx, "status", from, to)
	if err != nil {
		return nil, err
	}
	stats.CountByMethod, err = r.groupCounts(ctx, "method", from, to)
	if err != nil {
		return nil, err
	}
	stats.CountByGateway, err = r.groupCounts(ctx, "gateway", from, to)
	if err != nil {
		return nil, err
	}

	amountQuery := `
		SELECT status, COALESCE(SUM(amount), 0)
		FROM payments
		WHERE created_at >= $1 AND created_at < $2
		GROUP BY status
	`
	rows, err := r.db.Query(ctx, amountQuery, from, to)
	if err != nil {
		return nil, fmt.Errorf("payment amounts by status: %w", err)
	}
	stats.AmountByStatus, err = pgx.CollectRows(rows, func(row pgx.CollectableRow) (application.GroupAmount, error) {
		var g application.GroupAmount
		err := row.Scan(&g.Key, &g.Amount)
		return g, err
	})
	if err != nil {
		return nil, fmt.Errorf("scan payment amounts by status: %w", err)
	}

	return stats, nil
}

// groupCounts aggregates counts over a fixed enum column. The column name is
// never user input.
func (r *PaymentRepository) groupCounts(ctx context.Context, column string, from, to time.Time) ([]application.GroupCount, error) {
	query := fmt.Sprintf(`
		SELECT %s, COUNT(*)
		FROM payments
		WHERE created_at >= $1 AND created_at < $2
		GROUP BY %s
	`, column, column)

	rows, err := r.db.Query(ctx, query, from, to)
	if err != nil {
		return nil, fmt.Errorf("payment counts by %s: %w", column, err)
	}
	counts, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (application.GroupCount, error) {
		var g application.GroupCount
		err := row.Scan(&g.Key, &g.Count)
		return g, err
	})
	if err != nil {
		return nil, fmt.Errorf("scan payment counts by %s: %w", column, err)
	}
	return counts, nil
}

func (r *PaymentRepository) loadChildren(ctx context.Context, payment *domain.Payment) error {
	txns, err := queryTransactionsByPayment(ctx, r.db, payment.ID)
	if err != nil {
		return err
	}
	payment.Transactions = txns

	refunds, err := queryRefundsByPayment(ctx, r.db, payment.ID)
	if err != nil {
		return err
	}
	payment.Refunds = refunds
	return nil
}

func (r *PaymentRepository) scanOne(ctx context.Context, row pgx.Row, identifier string) (*domain.Payment, error) {
	payment, err := scanPayment(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.NewNotFoundError("payment", identifier)
		}
		return nil, err
	}
	return payment, nil
}

func scanPayment(row pgx.Row) (*domain.Payment, error) {
	var p domain.Payment
	err := row.Scan(
		&p.ID, &p.PaymentReference, &p.OrderID, &p.UserID, &p.Method, &p.Gateway, &p.Status,
		&p.Amount, &p.CurrencyCode, &p.Description,
		&p.CardLastFour, &p.CardBrand, &p.CardType, &p.DigitalWalletProvider, &p.BankName,
		&p.GatewayPaymentID, &p.ExternalTransactionID, &p.GatewayResponse, &p.GatewayRawResponse,
		&p.FailureReason, &p.FailureCode, &p.RetryCount, &p.LastRetryAt,
		&p.CreatedAt, &p.UpdatedAt, &p.AuthorizedAt, &p.CapturedAt, &p.FailedAt, &p.CancelledAt,
		&p.ExpiresAt, &p.SettlementDate, &p.GatewayFee, &p.NetAmount, &p.Metadata, &p.Notes, &p.Version,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan payment: %w", err)
	}
	return &p, nil
}

func collectPayments(rows pgx.Rows) ([]*domain.Payment, error) {
	results, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (*domain.Payment, error) {
		return scanPayment(row)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to collect payments: %w", err)
	}
	return results, nil
}
