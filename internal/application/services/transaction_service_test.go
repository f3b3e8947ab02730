package services_test

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/amankrmj01/bakery-payment-service/internal/application"
	"github.com/amankrmj01/bakery-payment-service/internal/application/services"
	"github.com/amankrmj01/bakery-payment-service/internal/application/services/testhelpers"
	"github.com/amankrmj01/bakery-payment-service/internal/domain"
)

func newTransactionService(txns *testhelpers.MockTransactionRepository) *services.TransactionService {
	return services.NewTransactionService(txns, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func completedTransaction(t *testing.T, payment *domain.Payment, txType domain.TransactionType, amount decimal.Decimal, gatewayID string) *domain.PaymentTransaction {
	t.Helper()
	tx := domain.NewTransaction(payment, txType, amount, "")
	tx.GatewayTransactionID = &gatewayID
	require.NoError(t, tx.Complete())
	return tx
}

func TestGetTransactionByGatewayID(t *testing.T) {
	txns := testhelpers.NewMockTransactionRepository()
	service := newTransactionService(txns)
	payment := testhelpers.NewTestPayment()

	tx := completedTransaction(t, payment, domain.TxTypeSale, payment.Amount, "GW-1700000000000-12345")
	require.NoError(t, txns.Save(context.Background(), tx))

	t.Run("resolves the gateway correlation id", func(t *testing.T) {
		found, err := service.GetTransactionByGatewayID(context.Background(), "GW-1700000000000-12345")
		require.NoError(t, err)
		assert.Equal(t, tx.ID, found.ID)
	})

	t.Run("unknown id is not found", func(t *testing.T) {
		_, err := service.GetTransactionByGatewayID(context.Background(), "GW-0000000000000-00000")
		require.Error(t, err)
		svcErr, ok := application.IsServiceError(err)
		require.True(t, ok)
		assert.Equal(t, domain.ErrCodeNotFound, svcErr.Code)
	})
}

func TestListTransactionsByStatus(t *testing.T) {
	txns := testhelpers.NewMockTransactionRepository()
	service := newTransactionService(txns)
	payment := testhelpers.NewTestPayment()

	completed := completedTransaction(t, payment, domain.TxTypeSale, payment.Amount, "GW-1700000000000-11111")
	pending := domain.NewTransaction(payment, domain.TxTypeRefund, decimal.NewFromInt(10), "")
	require.NoError(t, txns.Save(context.Background(), completed))
	require.NoError(t, txns.Save(context.Background(), pending))

	out, err := service.ListTransactionsByStatus(context.Background(), domain.TxCompleted, 20, 0)
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, completed.ID, out[0].ID)
}

func TestGetTransactionSummary(t *testing.T) {
	txns := testhelpers.NewMockTransactionRepository()
	service := newTransactionService(txns)
	payment := testhelpers.NewTestPayment()

	sale := completedTransaction(t, payment, domain.TxTypeSale, decimal.NewFromInt(100), "GW-1700000000000-22222")
	refund := completedTransaction(t, payment, domain.TxTypeRefund, decimal.NewFromInt(40), "GW-1700000000000-33333")
	failed := domain.NewTransaction(payment, domain.TxTypeSale, decimal.NewFromInt(100), "")
	require.NoError(t, failed.Fail("Card declined", "CARD_DECLINED"))
	for _, tx := range []*domain.PaymentTransaction{sale, refund, failed} {
		require.NoError(t, txns.Save(context.Background(), tx))
	}

	summary, err := service.GetTransactionSummary(context.Background(), payment.ID)
	require.NoError(t, err)

	assert.Equal(t, payment.ID, summary.PaymentID)
	assert.Equal(t, int64(3), summary.TotalCount)
	assert.True(t, summary.TotalAmount.Equal(decimal.NewFromInt(140)),
		"completed amount, got %s", summary.TotalAmount)

	counts := map[string]int64{}
	for _, g := range summary.CountByStatus {
		counts[g.Key] = g.Count
	}
	assert.Equal(t, int64(2), counts["COMPLETED"])
	assert.Equal(t, int64(1), counts["FAILED"])

	types := map[string]int64{}
	for _, g := range summary.CountByType {
		types[g.Key] = g.Count
	}
	assert.Equal(t, int64(2), types["SALE"])
	assert.Equal(t, int64(1), types["REFUND"])
}
