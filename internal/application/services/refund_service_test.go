package services_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/amankrmj01/bakery-payment-service/internal/application"
	"github.com/amankrmj01/bakery-payment-service/internal/application/services"
	"github.com/amankrmj01/bakery-payment-service/internal/application/services/testhelpers"
	"github.com/amankrmj01/bakery-payment-service/internal/domain"
)

type refundFixture struct {
	refunds   *testhelpers.MockRefundRepository
	payments  *testhelpers.MockPaymentRepository
	txns      *testhelpers.MockTransactionRepository
	gateway   *testhelpers.MockGatewayClient
	orders    *testhelpers.MockOrderClient
	scheduler *testhelpers.MockScheduler
	service   *services.RefundService
}

func newRefundFixture() *refundFixture {
	f := &refundFixture{
		refunds:   testhelpers.NewMockRefundRepository(),
		payments:  testhelpers.NewMockPaymentRepository(),
		txns:      testhelpers.NewMockTransactionRepository(),
		gateway:   &testhelpers.MockGatewayClient{},
		orders:    &testhelpers.MockOrderClient{},
		scheduler: &testhelpers.MockScheduler{},
	}
	f.service = services.NewRefundService(
		f.refunds, f.payments, f.txns, f.gateway, f.orders, f.scheduler,
		slog.New(slog.NewTextHandler(io.Discard, nil)),
	)
	return f
}

func (f *refundFixture) completedPayment(t *testing.T) *domain.Payment {
	t.Helper()
	payment := testhelpers.NewCompletedPayment()
	require.NoError(t, f.payments.Save(context.Background(), payment))
	return payment
}

func TestCreateRefund(t *testing.T) {
	ctx := context.Background()

	t.Run("creates a pending refund", func(t *testing.T) {
		f := newRefundFixture()
		payment := f.completedPayment(t)

		refund, err := f.service.CreateRefund(ctx, services.CreateRefundCommand{
			PaymentID:   payment.ID,
			Amount:      decimal.NewFromInt(40),
			Reason:      "stale croissants",
			RequestedBy: payment.UserID,
			Metadata:    `{"channel":"support"}`,
		})
		require.NoError(t, err)

		assert.Equal(t, domain.RefundPending, refund.Status)
		assert.Equal(t, payment.ID, refund.PaymentID)
		require.NotNil(t, refund.Metadata)
		assert.Equal(t, `{"channel":"support"}`, *refund.Metadata)
		assert.Equal(t, []uuid.UUID{refund.ID}, f.scheduler.ScheduledRefunds(),
			"creation schedules settlement")
	})

	t.Run("rejects refunds on non-completed payments", func(t *testing.T) {
		f := newRefundFixture()
		payment := testhelpers.NewTestPayment()
		require.NoError(t, f.payments.Save(ctx, payment))

		_, err := f.service.CreateRefund(ctx, services.CreateRefundCommand{
			PaymentID:   payment.ID,
			Amount:      decimal.NewFromInt(10),
			Reason:      "wrong order",
			RequestedBy: payment.UserID,
		})
		require.Error(t, err)
		svcErr, ok := application.IsServiceError(err)
		require.True(t, ok)
		assert.Equal(t, domain.ErrCodeRefundNotAllowed, svcErr.Code)
	})

	t.Run("rejects amounts above the refundable remainder", func(t *testing.T) {
		f := newRefundFixture()
		payment := f.completedPayment(t)

		completed := testhelpers.NewTestRefund(payment, decimal.NewFromInt(70))
		require.NoError(t, completed.Approve(uuid.New()))
		require.NoError(t, completed.Complete())
		require.NoError(t, f.refunds.Save(ctx, completed))

		_, err := f.service.CreateRefund(ctx, services.CreateRefundCommand{
			PaymentID:   payment.ID,
			Amount:      decimal.NewFromInt(40),
			Reason:      "too much",
			RequestedBy: payment.UserID,
		})
		require.Error(t, err)
		svcErr, _ := application.IsServiceError(err)
		assert.Equal(t, domain.ErrCodeAmountExceedsRefundable, svcErr.Code)
	})

	t.Run("pending refunds do not shrink the refundable remainder", func(t *testing.T) {
		f := newRefundFixture()
		payment := f.completedPayment(t)

		pending := testhelpers.NewTestRefund(payment, decimal.NewFromInt(70))
		require.NoError(t, f.refunds.Save(ctx, pending))

		_, err := f.service.CreateRefund(ctx, services.CreateRefundCommand{
			PaymentID:   payment.ID,
			Amount:      decimal.NewFromInt(100),
			Reason:      "full refund",
			RequestedBy: payment.UserID,
		})
		assert.NoError(t, err)
	})
}

func TestApproveRefund(t *testing.T) {
	ctx := context.Background()

	t.Run("approval schedules gateway settlement", func(t *testing.T) {
		f := newRefundFixture()
		payment := f.completedPayment(t)
		refund := testhelpers.NewTestRefund(payment, decimal.NewFromInt(40))
		require.NoError(t, f.refunds.Save(ctx, refund))

		admin := uuid.New()
		approved, err := f.service.ApproveRefund(ctx, services.ApproveRefundCommand{
			RefundID: refund.ID, ApprovedBy: admin,
		})
		require.NoError(t, err)

		assert.Equal(t, domain.RefundProcessing, approved.Status)
		require.NotNil(t, approved.ApprovedBy)
		assert.Equal(t, admin, *approved.ApprovedBy)
		assert.Equal(t, []uuid.UUID{refund.ID}, f.scheduler.ScheduledRefunds())
	})

	t.Run("approving twice is rejected", func(t *testing.T) {
		f := newRefundFixture()
		payment := f.completedPayment(t)
		refund := testhelpers.NewTestRefund(payment, decimal.NewFromInt(40))
		require.NoError(t, f.refunds.Save(ctx, refund))

		_, err := f.service.ApproveRefund(ctx, services.ApproveRefundCommand{RefundID: refund.ID, ApprovedBy: uuid.New()})
		require.NoError(t, err)

		_, err = f.service.ApproveRefund(ctx, services.ApproveRefundCommand{RefundID: refund.ID, ApprovedBy: uuid.New()})
		require.Error(t, err)
		svcErr, _ := application.IsServiceError(err)
		assert.Equal(t, domain.ErrCodeRefundNotAllowed, svcErr.Code)
	})
}

func TestRejectRefund(t *testing.T) {
	ctx := context.Background()
	f := newRefundFixture()
	payment := f.completedPayment(t)
	refund := testhelpers.NewTestRefund(payment, decimal.NewFromInt(40))
	require.NoError(t, f.refunds.Save(ctx, refund))

	rejected, err := f.service.RejectRefund(ctx, services.RejectRefundCommand{
		RefundID: refund.ID, Reason: "no receipt", RejectedBy: uuid.New(),
	})
	require.NoError(t, err)

	assert.Equal(t, domain.RefundFailed, rejected.Status)
	assert.Empty(t, f.scheduler.ScheduledRefunds())
}

func TestSettleRefund(t *testing.T) {
	ctx := context.Background()

	approvedRefund := func(t *testing.T, f *refundFixture, payment *domain.Payment, amount int64) *domain.Refund {
		t.Helper()
		refund := testhelpers.NewTestRefund(payment, decimal.NewFromInt(amount))
		require.NoError(t, refund.Approve(uuid.New()))
		require.NoError(t, f.refunds.Save(ctx, refund))
		return refund
	}

	t.Run("successful settlement completes the refund", func(t *testing.T) {
		f := newRefundFixture()
		payment := f.completedPayment(t)
		refund := approvedRefund(t, f, payment, 40)

		require.NoError(t, f.service.SettleRefund(ctx, refund.ID))

		settled, err := f.refunds.FindByID(ctx, refund.ID)
		require.NoError(t, err)
		assert.Equal(t, domain.RefundCompleted, settled.Status)
		assert.NotNil(t, settled.CompletedAt)

		txns := f.txns.All()
		require.Len(t, txns, 1)
		assert.Equal(t, domain.TxTypeRefund, txns[0].Type)
		assert.Equal(t, domain.TxCompleted, txns[0].Status)
		assert.True(t, txns[0].Amount.Equal(decimal.NewFromInt(40)))
	})

	t.Run("partial refund leaves payment completed", func(t *testing.T) {
		f := newRefundFixture()
		payment := f.completedPayment(t)
		refund := approvedRefund(t, f, payment, 40)

		require.NoError(t, f.service.SettleRefund(ctx, refund.ID))

		reloaded, _ := f.payments.FindByID(ctx, payment.ID)
		assert.Equal(t, domain.StatusCompleted, reloaded.Status)
	})

	t.Run("full refund flips payment to refunded", func(t *testing.T) {
		f := newRefundFixture()
		payment := f.completedPayment(t)
		refund := approvedRefund(t, f, payment, 100)

		require.NoError(t, f.service.SettleRefund(ctx, refund.ID))

		reloaded, _ := f.payments.FindByID(ctx, payment.ID)
		assert.Equal(t, domain.StatusRefunded, reloaded.Status)
	})

	t.Run("two partial refunds covering the full amount flip the payment", func(t *testing.T) {
		f := newRefundFixture()
		payment := f.completedPayment(t)

		first := approvedRefund(t, f, payment, 60)
		require.NoError(t, f.service.SettleRefund(ctx, first.ID))
		reloaded, _ := f.payments.FindByID(ctx, payment.ID)
		assert.Equal(t, domain.StatusCompleted, reloaded.Status)

		second := approvedRefund(t, f, payment, 40)
		require.NoError(t, f.service.SettleRefund(ctx, second.ID))
		reloaded, _ = f.payments.FindByID(ctx, payment.ID)
		assert.Equal(t, domain.StatusRefunded, reloaded.Status)
	})

	t.Run("declined settlement fails the refund", func(t *testing.T) {
		f := newRefundFixture()
		payment := f.completedPayment(t)
		refund := approvedRefund(t, f, payment, 40)
		f.gateway.ProcessRefundFn = func(ctx context.Context, r *domain.Refund, p *domain.Payment) (*application.GatewayOutcome, error) {
			return &application.GatewayOutcome{
				FailureReason: "Original transaction not found",
				FailureCode:   "REFUND_FAILED",
			}, nil
		}

		require.NoError(t, f.service.SettleRefund(ctx, refund.ID))

		settled, _ := f.refunds.FindByID(ctx, refund.ID)
		assert.Equal(t, domain.RefundFailed, settled.Status)
		require.NotNil(t, settled.FailureReason)
		assert.Equal(t, "Original transaction not found", *settled.FailureReason)

		reloaded, _ := f.payments.FindByID(ctx, payment.ID)
		assert.Equal(t, domain.StatusCompleted, reloaded.Status)
	})

	t.Run("gateway error forces terminal failure", func(t *testing.T) {
		f := newRefundFixture()
		payment := f.completedPayment(t)
		refund := approvedRefund(t, f, payment, 40)
		f.gateway.ProcessRefundFn = func(ctx context.Context, r *domain.Refund, p *domain.Payment) (*application.GatewayOutcome, error) {
			return nil, errors.New("connection reset")
		}

		require.NoError(t, f.service.SettleRefund(ctx, refund.ID))

		settled, _ := f.refunds.FindByID(ctx, refund.ID)
		assert.Equal(t, domain.RefundFailed, settled.Status)
		require.NotNil(t, settled.FailureCode)
		assert.Equal(t, "REFUND_FAILED", *settled.FailureCode)
	})

	t.Run("gateway panic forces terminal failure", func(t *testing.T) {
		f := newRefundFixture()
		payment := f.completedPayment(t)
		refund := approvedRefund(t, f, payment, 40)
		f.gateway.ProcessRefundFn = func(ctx context.Context, r *domain.Refund, p *domain.Payment) (*application.GatewayOutcome, error) {
			panic("simulator bug")
		}

		require.NoError(t, f.service.SettleRefund(ctx, refund.ID))

		settled, _ := f.refunds.FindByID(ctx, refund.ID)
		assert.Equal(t, domain.RefundFailed, settled.Status)
	})

	t.Run("terminal refund is left alone", func(t *testing.T) {
		f := newRefundFixture()
		payment := f.completedPayment(t)
		refund := testhelpers.NewTestRefund(payment, decimal.NewFromInt(40))
		require.NoError(t, refund.Reject("no receipt", uuid.New()))
		require.NoError(t, f.refunds.Save(ctx, refund))

		require.NoError(t, f.service.SettleRefund(ctx, refund.ID))
		assert.Empty(t, f.txns.All())
	})
}

func TestSearchRefunds(t *testing.T) {
	ctx := context.Background()

	t.Run("text query matches reason and reference", func(t *testing.T) {
		f := newRefundFixture()
		payment := f.completedPayment(t)

		stale := testhelpers.NewTestRefund(payment, decimal.NewFromInt(10))
		staleReason := "stale croissants"
		stale.Reason = &staleReason
		other := testhelpers.NewTestRefund(payment, decimal.NewFromInt(20))
		require.NoError(t, f.refunds.Save(ctx, stale))
		require.NoError(t, f.refunds.Save(ctx, other))

		query := "croissant"
		out, err := f.service.SearchRefunds(ctx, application.RefundFilter{Query: &query})
		require.NoError(t, err)
		require.Len(t, out, 1)
		assert.Equal(t, stale.ID, out[0].ID)
	})

	t.Run("lists refunds by requester", func(t *testing.T) {
		f := newRefundFixture()
		payment := f.completedPayment(t)

		mine := testhelpers.NewTestRefund(payment, decimal.NewFromInt(10))
		theirs := testhelpers.NewTestRefund(payment, decimal.NewFromInt(20))
		require.NoError(t, f.refunds.Save(ctx, mine))
		require.NoError(t, f.refunds.Save(ctx, theirs))

		out, err := f.service.ListRefundsByRequester(ctx, mine.RequestedBy, 20, 0)
		require.NoError(t, err)
		require.Len(t, out, 1)
		assert.Equal(t, mine.ID, out[0].ID)
	})

	t.Run("filters refunds by approver", func(t *testing.T) {
		f := newRefundFixture()
		payment := f.completedPayment(t)
		admin := uuid.New()

		approved := testhelpers.NewTestRefund(payment, decimal.NewFromInt(10))
		require.NoError(t, approved.Approve(admin))
		unapproved := testhelpers.NewTestRefund(payment, decimal.NewFromInt(20))
		require.NoError(t, f.refunds.Save(ctx, approved))
		require.NoError(t, f.refunds.Save(ctx, unapproved))

		out, err := f.service.SearchRefunds(ctx, application.RefundFilter{ApprovedBy: &admin})
		require.NoError(t, err)
		require.Len(t, out, 1)
		assert.Equal(t, approved.ID, out[0].ID)
	})
}

func TestSettleRefundSafetyNet(t *testing.T) {
	ctx := context.Background()

	t.Run("collaborator failure terminalizes the refund", func(t *testing.T) {
		f := newRefundFixture()
		payment := f.completedPayment(t)
		refund := testhelpers.NewTestRefund(payment, decimal.NewFromInt(40))
		require.NoError(t, refund.Approve(uuid.New()))
		require.NoError(t, f.refunds.Save(ctx, refund))

		f.payments.FindByIDFn = func(ctx context.Context, id uuid.UUID) (*domain.Payment, error) {
			return nil, errors.New("connection reset")
		}

		require.Error(t, f.service.SettleRefund(ctx, refund.ID))

		settled, err := f.refunds.FindByID(ctx, refund.ID)
		require.NoError(t, err)
		assert.Equal(t, domain.RefundFailed, settled.Status)
		require.NotNil(t, settled.FailureCode)
		assert.Equal(t, "SETTLEMENT_ERROR", *settled.FailureCode)
	})
}
