package postgres

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/amankrmj01/bakery-payment-service/internal/application"
	"github.com/amankrmj01/bakery-payment-service/internal/domain"
)

const refundColumns = `
	id, refund_reference, payment_id, status, amount, currency_code, reason,
	gateway_refund_id, gateway_response, gateway_raw_response,
	failure_reason, failure_code, requested_by, approved_by,
	created_at, updated_at, processed_at, completed_at, failed_at,
	notes, metadata, version`

type RefundRepository struct {
	db *pgxpool.Pool
}

func NewRefundRepository(db *DB) *RefundRepository {
	return &RefundRepository{db: db.Pool}
}

var _ application.RefundRepository = (*RefundRepository)(nil)

func (r *RefundRepository) Save(ctx context.Context, refund *domain.Refund) error {
	query := `
		INSERT INTO refunds (` + refundColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11,
		        $12, $13, $14, $15, $16, $17, $18, $19, $20, $21, $22)
	`

	refund.Version = 1
	_, err := r.db.Exec(ctx, query,
		refund.ID, refund.RefundReference, refund.PaymentID, refund.Status,
		refund.Amount, refund.CurrencyCode, refund.Reason,
		refund.GatewayRefundID, refund.GatewayResponse, refund.GatewayRawResponse,
		refund.FailureReason, refund.FailureCode, refund.RequestedBy, refund.ApprovedBy,
		refund.CreatedAt, refund.UpdatedAt, refund.ProcessedAt, refund.CompletedAt, refund.FailedAt,
		refund.Notes, refund.Metadata, refund.Version,
	)
	if err != nil {
		return fmt.Errorf("failed to insert refund: %w", err)
	}
	return nil
}

func (r *RefundRepository) Update(ctx context.Context, refund *domain.Refund) error {
	query := `
		UPDATE refunds
		SET status = $1, gateway_refund_id = $2, gateway_response = $3, gateway_raw_response = $4,
		    failure_reason = $5, failure_code = $6, approved_by = $7,
		    updated_at = $8, processed_at = $9, completed_at = $10, failed_at = $11,
		    notes = $12, metadata = $13,
		    version = version + 1
		WHERE id = $14 AND version = $15
	`

	result, err := r.db.Exec(ctx, query,
		refund.Status, refund.GatewayRefundID, refund.GatewayResponse, refund.GatewayRawResponse,
		refund.FailureReason, refund.FailureCode, refund.ApprovedBy,
		refund.UpdatedAt, refund.ProcessedAt, refund.CompletedAt, refund.FailedAt,
		refund.Notes, refund.Metadata,
		refund.ID, refund.Version,
	)
	if err != nil {
		return fmt.Errorf("failed to update refund: %w", err)
	}

	if result.RowsAffected() == 0 {
		var exists bool
		if err := r.db.QueryRow(ctx,
			`SELECT EXISTS (SELECT 1 FROM refunds WHERE id = $1)`, refund.ID).Scan(&exists); err != nil {
			return fmt.Errorf("failed to check refund existence: %w", err)
		}
		if exists {
			return domain.NewConflictError("refund")
		}
		return domain.NewNotFoundError("refund", refund.ID.String())
	}

	refund.Version++
	return nil
}

func (r *RefundRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.Refund, error) {
	query := `SELECT ` + refundColumns + ` FROM refunds WHERE id = $1`
	return r.scanOne(r.db.QueryRow(ctx, query, id), id.String())
}

func (r *RefundRepository) FindByReference(ctx context.Context, reference string) (*domain.Refund, error) {
	query := `SELECT ` + refundColumns + ` FROM refunds WHERE refund_reference = $1`
	return r.scanOne(r.db.QueryRow(ctx, query, reference), reference)
}

func (r *RefundRepository) FindByPaymentID(ctx context.Context, paymentID uuid.UUID) ([]*domain.Refund, error) {
	return queryRefundsByPayment(ctx, r.db, paymentID)
}

func (r *RefundRepository) FindByStatus(ctx context.Context, status domain.RefundStatus, limit, offset int) ([]*domain.Refund, error) {
	query := `SELECT ` + refundColumns + `
		FROM refunds WHERE status = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3`

	rows, err := r.db.Query(ctx, query, status, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("query refunds by status: %w", err)
	}
	return collectRefunds(rows)
}

// FindWithFilters builds the WHERE clause dynamically from the non-nil
// filter fields.
func (r *RefundRepository) FindWithFilters(ctx context.Context, filter application.RefundFilter) ([]*domain.Refund, error) {
	var conditions []string
	var args []any

	arg := func(v any) string {
		args = append(args, v)
		return "$" + strconv.Itoa(len(args))
	}

	if filter.PaymentID != nil {
		conditions = append(conditions, "payment_id = "+arg(*filter.PaymentID))
	}
	if filter.Status != nil {
		conditions = append(conditions, "status = "+arg(*filter.Status))
	}
	if filter.RequestedBy != nil {
		conditions = append(conditions, "requested_by = "+arg(*filter.RequestedBy))
	}
	if filter.ApprovedBy != nil {
		conditions = append(conditions, "approved_by = "+arg(*filter.ApprovedBy))
	}
	if filter.MinAmount != nil {
		conditions = append(conditions, "amount >= "+arg(*filter.MinAmount))
	}
	if filter.MaxAmount != nil {
		conditions = append(conditions, "amount <= "+arg(*filter.MaxAmount))
	}
	if filter.From != nil {
		conditions = append(conditions, "created_at >= "+arg(*filter.From))
	}
	if filter.To != nil {
		conditions = append(conditions, "created_at < "+arg(*filter.To))
	}
	if filter.Query != nil {
		pattern := "%" + *filter.Query + "%"
		conditions = append(conditions,
			"(reason ILIKE "+arg(pattern)+" OR refund_reference ILIKE "+arg(pattern)+")")
	}

	query := `SELECT ` + refundColumns + ` FROM refunds`
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY created_at DESC LIMIT " + arg(filter.Limit) + " OFFSET " + arg(filter.Offset)

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query refunds with filters: %w", err)
	}
	return collectRefunds(rows)
}

func (r *RefundRepository) SumCompletedByPayment(ctx context.Context, paymentID uuid.UUID) (decimal.Decimal, error) {
	query := `
		SELECT COALESCE(SUM(amount), 0)
		FROM refunds
		WHERE payment_id = $1 AND status = 'COMPLETED'
	`

	var sum decimal.Decimal
	if err := r.db.QueryRow(ctx, query, paymentID).Scan(&sum); err != nil {
		return decimal.Zero, fmt.Errorf("sum completed refunds: %w", err)
	}
	return sum, nil
}

func (r *RefundRepository) Statistics(ctx context.Context, from, to time.Time) (*application.RefundStatistics, error) {
	stats := &application.RefundStatistics{}

	totalsQuery := `
		SELECT COUNT(*),
		       COALESCE(SUM(amount), 0),
		       COUNT(*) FILTER (WHERE status = 'COMPLETED'),
		       COALESCE(SUM(amount) FILTER (WHERE status = 'COMPLETED'), 0)
		FROM refunds
		WHERE created_at >= $1 AND created_at < $2
	`
	err := r.db.QueryRow(ctx, totalsQuery, from, to).Scan(
		&stats.TotalCount, &stats.TotalAmount, &stats.CompletedCount, &stats.CompletedAmount,
	)
	if err != nil {
		return nil, fmt.Errorf("refund statistics totals: %w", err)
	}

	countQuery := `
		SELECT status, COUNT(*)
		FROM refunds
		WHERE created_at >= $1 AND created_at < $2
		GROUP BY status
	`
	rows, err := r.db.Query(ctx, countQuery, from, to)
	if err != nil {
		return nil, fmt.Errorf("refund counts by status: %w", err)
	}
	stats.CountByStatus, err = pgx.CollectRows(rows, func(row pgx.CollectableRow) (application.GroupCount, error) {
		var g application.GroupCount
		err := row.Scan(&g.Key, &g.Count)
		return g, err
	})
	if err != nil {
		return nil, fmt.Errorf("scan refund counts by status: %w", err)
	}

	return stats, nil
}

func (r *RefundRepository) scanOne(row pgx.Row, identifier string) (*domain.Refund, error) {
	refund, err := scanRefund(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.NewNotFoundError("refund", identifier)
		}
		return nil, err
	}
	return refund, nil
}

func scanRefund(row pgx.Row) (*domain.Refund, error) {
	var rf domain.Refund
	err := row.Scan(
		&rf.ID, &rf.RefundReference, &rf.PaymentID, &rf.Status,
		&rf.Amount, &rf.CurrencyCode, &rf.Reason,
		&rf.GatewayRefundID, &rf.GatewayResponse, &rf.GatewayRawResponse,
		&rf.FailureReason, &rf.FailureCode, &rf.RequestedBy, &rf.ApprovedBy,
		&rf.CreatedAt, &rf.UpdatedAt, &rf.ProcessedAt, &rf.CompletedAt, &rf.FailedAt,
		&rf.Notes, &rf.Metadata, &rf.Version,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan refund: %w", err)
	}
	return &rf, nil
}

func collectRefunds(rows pgx.Rows) ([]*domain.Refund, error) {
	results, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (*domain.Refund, error) {
		return scanRefund(row)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to collect refunds: %w", err)
	}
	return results, nil
}

func queryRefundsByPayment(ctx context.Context, db *pgxpool.Pool, paymentID uuid.UUID) ([]*domain.Refund, error) {
	query := `SELECT ` + refundColumns + `
		FROM refunds WHERE payment_id = $1
		ORDER BY created_at ASC`

	rows, err := db.Query(ctx, query, paymentID)
	if err != nil {
		return nil, fmt.Errorf("query refunds by payment: %w", err)
	}
	return collectRefunds(rows)
}
