package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/amankrmj01/bakery-payment-service/internal/application"
	"github.com/amankrmj01/bakery-payment-service/internal/domain"
)

type RefundService struct {
	refunds   application.RefundRepository
	payments  application.PaymentRepository
	txns      application.TransactionRepository
	gateway   application.GatewayClient
	orders    application.OrderClient
	scheduler application.SettlementScheduler
	logger    *slog.Logger
}

func NewRefundService(
	refunds application.RefundRepository,
	payments application.PaymentRepository,
	txns application.TransactionRepository,
	gateway application.GatewayClient,
	orders application.OrderClient,
	scheduler application.SettlementScheduler,
	logger *slog.Logger,
) *RefundService {
	return &RefundService{
		refunds:   refunds,
		payments:  payments,
		txns:      txns,
		gateway:   gateway,
		orders:    orders,
		scheduler: scheduler,
		logger:    logger.With("component", "refund-service"),
	}
}

// CreateRefund opens a PENDING refund against a completed payment and
// schedules it for settlement. The requested amount, together with every
// refund already completed, may not exceed the payment amount.
func (s *RefundService) CreateRefund(ctx context.Context, cmd CreateRefundCommand) (*domain.Refund, error) {
	payment, err := s.payments.FindByID(ctx, cmd.PaymentID)
	if err != nil {
		return nil, application.FromDomain(err)
	}

	if !payment.CanBeRefunded() {
		return nil, application.FromDomain(domain.NewRefundNotAllowedError(
			fmt.Sprintf("payment in status %s cannot be refunded", payment.Status)))
	}

	refunded, err := s.refunds.SumCompletedByPayment(ctx, payment.ID)
	if err != nil {
		return nil, application.NewInternalError(err)
	}
	refundable := payment.Amount.Sub(refunded)
	if cmd.Amount.GreaterThan(refundable) {
		return nil, application.FromDomain(domain.NewAmountExceedsRefundableError(
			cmd.Amount.StringFixed(2), refundable.StringFixed(2)))
	}

	refund, err := domain.NewRefund(payment, cmd.Amount, cmd.Reason, cmd.RequestedBy)
	if err != nil {
		return nil, application.FromDomain(err)
	}
	if cmd.Metadata != "" {
		refund.Metadata = &cmd.Metadata
	}
	if cmd.Notes != "" {
		refund.Notes = &cmd.Notes
	}

	if err := s.refunds.Save(ctx, refund); err != nil {
		return nil, application.NewInternalError(err)
	}

	s.scheduler.ScheduleRefund(refund.ID)

	s.logger.InfoContext(ctx, "refund created and scheduled",
		"refund_id", refund.ID,
		"reference", refund.RefundReference,
		"payment_id", payment.ID,
		"amount", refund.Amount)
	return refund, nil
}

func (s *RefundService) GetRefund(ctx context.Context, id uuid.UUID) (*domain.Refund, error) {
	refund, err := s.refunds.FindByID(ctx, id)
	if err != nil {
		return nil, application.FromDomain(err)
	}
	return refund, nil
}

func (s *RefundService) GetRefundByReference(ctx context.Context, reference string) (*domain.Refund, error) {
	refund, err := s.refunds.FindByReference(ctx, reference)
	if err != nil {
		return nil, application.FromDomain(err)
	}
	return refund, nil
}

func (s *RefundService) ListRefundsByPayment(ctx context.Context, paymentID uuid.UUID) ([]*domain.Refund, error) {
	refunds, err := s.refunds.FindByPaymentID(ctx, paymentID)
	if err != nil {
		return nil, application.NewInternalError(err)
	}
	return refunds, nil
}

func (s *RefundService) ListRefundsByStatus(ctx context.Context, status domain.RefundStatus, limit, offset int) ([]*domain.Refund, error) {
	refunds, err := s.refunds.FindByStatus(ctx, status, normalizeLimit(limit), max(offset, 0))
	if err != nil {
		return nil, application.NewInternalError(err)
	}
	return refunds, nil
}

func (s *RefundService) ListRefundsByRequester(ctx context.Context, userID uuid.UUID, limit, offset int) ([]*domain.Refund, error) {
	return s.SearchRefunds(ctx, application.RefundFilter{
		RequestedBy: &userID,
		Limit:       limit,
		Offset:      offset,
	})
}

func (s *RefundService) ListAllRefunds(ctx context.Context, limit, offset int) ([]*domain.Refund, error) {
	return s.SearchRefunds(ctx, application.RefundFilter{Limit: limit, Offset: offset})
}

func (s *RefundService) SearchRefunds(ctx context.Context, filter application.RefundFilter) ([]*domain.Refund, error) {
	filter.Limit = normalizeLimit(filter.Limit)
	filter.Offset = max(filter.Offset, 0)
	refunds, err := s.refunds.FindWithFilters(ctx, filter)
	if err != nil {
		return nil, application.NewInternalError(err)
	}
	return refunds, nil
}

// ApproveRefund moves a pending refund into PROCESSING and schedules the
// gateway round trip.
func (s *RefundService) ApproveRefund(ctx context.Context, cmd ApproveRefundCommand) (*domain.Refund, error) {
	refund, err := s.refunds.FindByID(ctx, cmd.RefundID)
	if err != nil {
		return nil, application.FromDomain(err)
	}

	if err := refund.Approve(cmd.ApprovedBy); err != nil {
		return nil, application.FromDomain(err)
	}
	if err := s.refunds.Update(ctx, refund); err != nil {
		return nil, application.FromDomain(err)
	}

	s.logger.InfoContext(ctx, "refund approved",
		"refund_id", refund.ID, "approved_by", cmd.ApprovedBy)

	s.scheduler.ScheduleRefund(refund.ID)
	return refund, nil
}

// RejectRefund terminalizes a pending refund without touching the gateway.
func (s *RefundService) RejectRefund(ctx context.Context, cmd RejectRefundCommand) (*domain.Refund, error) {
	refund, err := s.refunds.FindByID(ctx, cmd.RefundID)
	if err != nil {
		return nil, application.FromDomain(err)
	}

	if err := refund.Reject(cmd.Reason, cmd.RejectedBy); err != nil {
		return nil, application.FromDomain(err)
	}
	if err := s.refunds.Update(ctx, refund); err != nil {
		return nil, application.FromDomain(err)
	}

	s.logger.InfoContext(ctx, "refund rejected",
		"refund_id", refund.ID, "reason", cmd.Reason)
	return refund, nil
}

func (s *RefundService) GetRefundStatistics(ctx context.Context, from, to time.Time) (*application.RefundStatistics, error) {
	stats, err := s.refunds.Statistics(ctx, from, to)
	if err != nil {
		return nil, application.NewInternalError(err)
	}
	return stats, nil
}

// SettleRefund runs the gateway round trip for a scheduled refund, records
// the transaction and recomputes the parent payment's refund standing. Any
// error or panic inside the unit terminalizes the refund.
func (s *RefundService) SettleRefund(ctx context.Context, id uuid.UUID) error {
	err := s.settle(ctx, id)
	if err != nil {
		s.failStuckRefund(ctx, id, err)
	}
	return err
}

func (s *RefundService) settle(ctx context.Context, id uuid.UUID) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("refund settlement panic: %v", r)
		}
	}()

	refund, err := s.refunds.FindByID(ctx, id)
	if err != nil {
		return err
	}
	if refund.IsTerminal() {
		s.logger.InfoContext(ctx, "refund no longer settleable",
			"refund_id", refund.ID, "status", refund.Status)
		return nil
	}
	if err := refund.MarkProcessing(); err != nil {
		return err
	}

	payment, err := s.payments.FindByID(ctx, refund.PaymentID)
	if err != nil {
		return err
	}

	outcome, gwErr := s.callGateway(ctx, refund, payment)
	if gwErr != nil {
		s.logger.ErrorContext(ctx, "gateway call failed, failing refund",
			"refund_id", refund.ID, "error", gwErr)
		if err := refund.Fail("Gateway processing error", "REFUND_FAILED"); err != nil {
			return err
		}
		return s.refunds.Update(ctx, refund)
	}

	tx := domain.NewTransaction(payment, domain.TxTypeRefund, refund.Amount, "refund settlement")
	tx.GatewayTransactionID = optional(outcome.TransactionID)
	tx.GatewayResponse = optional(outcome.Response)
	tx.GatewayRawResponse = optional(outcome.RawResponse)

	if outcome.Success {
		refund.GatewayRefundID = optional(outcome.TransactionID)
		refund.GatewayResponse = optional(outcome.Response)
		refund.GatewayRawResponse = optional(outcome.RawResponse)
		if err := refund.Complete(); err != nil {
			return err
		}
		if err := tx.Complete(); err != nil {
			return err
		}
	} else {
		_ = tx.Fail(outcome.FailureReason, outcome.FailureCode)
		if err := refund.Fail(outcome.FailureReason, outcome.FailureCode); err != nil {
			return err
		}
	}

	if err := s.txns.Save(ctx, tx); err != nil {
		s.logger.ErrorContext(ctx, "failed to record refund transaction",
			"refund_id", refund.ID, "error", err)
	}
	if err := s.refunds.Update(ctx, refund); err != nil {
		return err
	}

	s.logger.InfoContext(ctx, "refund settled",
		"refund_id", refund.ID, "status", refund.Status)

	if refund.IsCompleted() {
		if err := s.updatePaymentRefundStatus(ctx, refund.PaymentID); err != nil {
			s.logger.ErrorContext(ctx, "failed to update payment refund standing",
				"payment_id", refund.PaymentID, "error", err)
		}
	}
	return nil
}

// failStuckRefund re-reads and terminalizes a refund whose settlement unit
// errored, so it cannot hang in PENDING or PROCESSING.
func (s *RefundService) failStuckRefund(ctx context.Context, id uuid.UUID, cause error) {
	s.logger.ErrorContext(ctx, "refund settlement unit failed",
		"refund_id", id, "error", cause)

	refund, err := s.refunds.FindByID(ctx, id)
	if err != nil {
		s.logger.ErrorContext(ctx, "could not re-read refund after failed settlement",
			"refund_id", id, "error", err)
		return
	}
	if refund.IsTerminal() {
		return
	}
	if err := refund.Fail("Refund processing error", "SETTLEMENT_ERROR"); err != nil {
		return
	}
	if err := s.refunds.Update(ctx, refund); err != nil {
		s.logger.ErrorContext(ctx, "could not persist forced refund failure",
			"refund_id", id, "error", err)
	}
}

func (s *RefundService) callGateway(ctx context.Context, refund *domain.Refund, payment *domain.Payment) (outcome *application.GatewayOutcome, err error) {
	defer func() {
		if r := recover(); r != nil {
			outcome = nil
			err = application.NewGatewayError(fmt.Errorf("gateway panic: %v", r))
		}
	}()
	outcome, err = s.gateway.ProcessRefund(ctx, refund, payment)
	if err != nil {
		return nil, application.NewGatewayError(err)
	}
	return outcome, nil
}

// updatePaymentRefundStatus recomputes the completed-refund aggregate and
// flips the payment to REFUNDED once it is fully covered. The recompute is
// idempotent and retried on concurrent-modification conflicts.
func (s *RefundService) updatePaymentRefundStatus(ctx context.Context, paymentID uuid.UUID) error {
	const attempts = 3
	var lastErr error

	for i := 0; i < attempts; i++ {
		payment, err := s.payments.FindByID(ctx, paymentID)
		if err != nil {
			return err
		}
		if payment.Status != domain.StatusCompleted {
			return nil
		}

		refunded, err := s.refunds.SumCompletedByPayment(ctx, paymentID)
		if err != nil {
			return err
		}
		if refunded.LessThan(payment.Amount) {
			return nil
		}

		if err := payment.TransitionTo(domain.StatusRefunded, "fully refunded"); err != nil {
			return err
		}
		err = s.payments.Update(ctx, payment)
		if err == nil {
			s.logger.InfoContext(ctx, "payment fully refunded", "payment_id", payment.ID)
			s.notifyOrder(ctx, payment)
			return nil
		}
		if !domain.IsErrorCode(err, domain.ErrCodeConflict) {
			return err
		}
		lastErr = err
	}
	return lastErr
}

func (s *RefundService) notifyOrder(ctx context.Context, payment *domain.Payment) {
	update := application.PaymentStatusUpdate{
		PaymentID:        payment.ID,
		PaymentReference: payment.PaymentReference,
		Status:           payment.Status,
		Amount:           payment.Amount,
	}

	notifyCtx := context.WithoutCancel(ctx)
	go func() {
		notifyCtx, cancel := context.WithTimeout(notifyCtx, 10*time.Second)
		defer cancel()
		if err := s.orders.NotifyPaymentStatus(notifyCtx, payment.OrderID, update); err != nil {
			s.logger.WarnContext(notifyCtx, "order service notification failed",
				"payment_id", payment.ID, "order_id", payment.OrderID, "error", err)
		}
	}()
}
