package domain_test

import (
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/amankrmj01/bakery-payment-service/internal/domain"
)

func newRefund(t *testing.T) *domain.Refund {
	t.Helper()
	payment := paymentInStatus(t, domain.StatusCompleted)
	refund, err := domain.NewRefund(payment, decimal.NewFromInt(25), "customer request", uuid.New())
	require.NoError(t, err)
	return refund
}

func TestNewRefund(t *testing.T) {
	t.Run("creates pending refund", func(t *testing.T) {
		payment := paymentInStatus(t, domain.StatusCompleted)
		requestedBy := uuid.New()

		refund, err := domain.NewRefund(payment, decimal.NewFromInt(25), "damaged goods", requestedBy)
		require.NoError(t, err)

		assert.Equal(t, domain.RefundPending, refund.Status)
		assert.Equal(t, payment.ID, refund.PaymentID)
		assert.Equal(t, payment.CurrencyCode, refund.CurrencyCode)
		assert.Equal(t, requestedBy, refund.RequestedBy)
		require.NotNil(t, refund.Reason)
		assert.Equal(t, "damaged goods", *refund.Reason)
	})

	t.Run("rejects non-positive amount", func(t *testing.T) {
		payment := paymentInStatus(t, domain.StatusCompleted)
		_, err := domain.NewRefund(payment, decimal.Zero, "x", uuid.New())
		assert.Error(t, err)
	})

	t.Run("rejects nil requester", func(t *testing.T) {
		payment := paymentInStatus(t, domain.StatusCompleted)
		_, err := domain.NewRefund(payment, decimal.NewFromInt(5), "x", uuid.Nil)
		assert.Error(t, err)
	})
}

func TestRefundLifecycle(t *testing.T) {
	t.Run("approve moves pending to processing", func(t *testing.T) {
		refund := newRefund(t)
		approver := uuid.New()

		require.NoError(t, refund.Approve(approver))
		assert.Equal(t, domain.RefundProcessing, refund.Status)
		require.NotNil(t, refund.ApprovedBy)
		assert.Equal(t, approver, *refund.ApprovedBy)
		assert.NotNil(t, refund.ProcessedAt)
	})

	t.Run("approve rejects non-pending refunds", func(t *testing.T) {
		refund := newRefund(t)
		require.NoError(t, refund.Approve(uuid.New()))
		assert.Error(t, refund.Approve(uuid.New()))
	})

	t.Run("reject terminalizes a pending refund", func(t *testing.T) {
		refund := newRefund(t)
		require.NoError(t, refund.Reject("out of policy", uuid.New()))

		assert.Equal(t, domain.RefundFailed, refund.Status)
		assert.NotNil(t, refund.FailedAt)
		require.NotNil(t, refund.FailureReason)
		assert.Equal(t, "out of policy", *refund.FailureReason)
		assert.True(t, refund.IsTerminal())
	})

	t.Run("complete requires processing", func(t *testing.T) {
		refund := newRefund(t)
		err := refund.Complete()
		require.Error(t, err)
		assert.True(t, domain.IsErrorCode(err, domain.ErrCodeInvalidTransition))

		require.NoError(t, refund.MarkProcessing())
		require.NoError(t, refund.Complete())
		assert.Equal(t, domain.RefundCompleted, refund.Status)
		assert.NotNil(t, refund.CompletedAt)
	})

	t.Run("fail records gateway details", func(t *testing.T) {
		refund := newRefund(t)
		require.NoError(t, refund.MarkProcessing())
		require.NoError(t, refund.Fail("Gateway timeout", "REFUND_FAILED"))

		assert.Equal(t, domain.RefundFailed, refund.Status)
		require.NotNil(t, refund.FailureCode)
		assert.Equal(t, "REFUND_FAILED", *refund.FailureCode)
	})

	t.Run("terminal refunds accept no transitions", func(t *testing.T) {
		refund := newRefund(t)
		require.NoError(t, refund.MarkProcessing())
		require.NoError(t, refund.Complete())

		assert.Error(t, refund.MarkProcessing())
		assert.Error(t, refund.Fail("late", "X"))
	})

	t.Run("mark processing is idempotent on processing", func(t *testing.T) {
		refund := newRefund(t)
		require.NoError(t, refund.MarkProcessing())
		require.NoError(t, refund.MarkProcessing())
		assert.Equal(t, domain.RefundProcessing, refund.Status)
	})
}
