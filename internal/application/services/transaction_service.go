package services

import (
	"context"
	"log/slog"
	"sort"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/amankrmj01/bakery-payment-service/internal/application"
	"github.com/amankrmj01/bakery-payment-service/internal/domain"
)

// TransactionService exposes read access to the append-only transaction log.
type TransactionService struct {
	txns   application.TransactionRepository
	logger *slog.Logger
}

func NewTransactionService(txns application.TransactionRepository, logger *slog.Logger) *TransactionService {
	return &TransactionService{
		txns:   txns,
		logger: logger.With("component", "transaction-service"),
	}
}

func (s *TransactionService) GetTransaction(ctx context.Context, id uuid.UUID) (*domain.PaymentTransaction, error) {
	tx, err := s.txns.FindByID(ctx, id)
	if err != nil {
		return nil, application.FromDomain(err)
	}
	return tx, nil
}

func (s *TransactionService) ListTransactionsByPayment(ctx context.Context, paymentID uuid.UUID) ([]*domain.PaymentTransaction, error) {
	txs, err := s.txns.FindByPaymentID(ctx, paymentID)
	if err != nil {
		return nil, application.NewInternalError(err)
	}
	return txs, nil
}

func (s *TransactionService) ListTransactionsByType(ctx context.Context, txType domain.TransactionType, limit, offset int) ([]*domain.PaymentTransaction, error) {
	txs, err := s.txns.FindByType(ctx, txType, normalizeLimit(limit), max(offset, 0))
	if err != nil {
		return nil, application.NewInternalError(err)
	}
	return txs, nil
}

func (s *TransactionService) ListTransactionsByStatus(ctx context.Context, status domain.TransactionStatus, limit, offset int) ([]*domain.PaymentTransaction, error) {
	txs, err := s.txns.FindByStatus(ctx, status, normalizeLimit(limit), max(offset, 0))
	if err != nil {
		return nil, application.NewInternalError(err)
	}
	return txs, nil
}

// GetTransactionByGatewayID resolves the gateway's correlation id back to
// the local transaction record.
func (s *TransactionService) GetTransactionByGatewayID(ctx context.Context, gatewayTransactionID string) (*domain.PaymentTransaction, error) {
	tx, err := s.txns.FindByGatewayTransactionID(ctx, gatewayTransactionID)
	if err != nil {
		return nil, application.FromDomain(err)
	}
	return tx, nil
}

// GetTransactionSummary folds a payment's transaction log into counts by
// status and type plus the completed amount total.
func (s *TransactionService) GetTransactionSummary(ctx context.Context, paymentID uuid.UUID) (*application.TransactionSummary, error) {
	txs, err := s.txns.FindByPaymentID(ctx, paymentID)
	if err != nil {
		return nil, application.NewInternalError(err)
	}

	summary := &application.TransactionSummary{
		PaymentID:   paymentID,
		TotalCount:  int64(len(txs)),
		TotalAmount: decimal.Zero,
	}
	byStatus := map[string]int64{}
	byType := map[string]int64{}
	for _, tx := range txs {
		byStatus[string(tx.Status)]++
		byType[string(tx.Type)]++
		if tx.IsCompleted() {
			summary.TotalAmount = summary.TotalAmount.Add(tx.Amount)
		}
	}
	summary.CountByStatus = groupCounts(byStatus)
	summary.CountByType = groupCounts(byType)
	return summary, nil
}

func groupCounts(counts map[string]int64) []application.GroupCount {
	keys := make([]string, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make([]application.GroupCount, 0, len(keys))
	for _, k := range keys {
		out = append(out, application.GroupCount{Key: k, Count: counts[k]})
	}
	return out
}
