package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/amankrmj01/bakery-payment-service/internal/application"
	"github.com/amankrmj01/bakery-payment-service/internal/domain"
)

// PaymentLimits bounds what a single payment and a user's daily volume may be.
type PaymentLimits struct {
	MinAmount  decimal.Decimal
	MaxAmount  decimal.Decimal
	DailyLimit decimal.Decimal
}

// DefaultPaymentLimits returns the production bounds.
func DefaultPaymentLimits() PaymentLimits {
	return PaymentLimits{
		MinAmount:  decimal.RequireFromString("0.50"),
		MaxAmount:  decimal.NewFromInt(10000),
		DailyLimit: decimal.NewFromInt(50000),
	}
}

// PaymentExpiry is how long a non-cash payment may sit PENDING before the
// expiration sweep cancels it.
const PaymentExpiry = 15 * time.Minute

// dailyCapStatuses are the statuses counted against a user's daily limit.
var dailyCapStatuses = []domain.PaymentStatus{
	domain.StatusPending, domain.StatusProcessing, domain.StatusCompleted,
}

type PaymentService struct {
	payments  application.PaymentRepository
	txns      application.TransactionRepository
	gateway   application.GatewayClient
	orders    application.OrderClient
	scheduler application.SettlementScheduler
	limits    PaymentLimits
	logger    *slog.Logger
}

func NewPaymentService(
	payments application.PaymentRepository,
	txns application.TransactionRepository,
	gateway application.GatewayClient,
	orders application.OrderClient,
	scheduler application.SettlementScheduler,
	limits PaymentLimits,
	logger *slog.Logger,
) *PaymentService {
	return &PaymentService{
		payments:  payments,
		txns:      txns,
		gateway:   gateway,
		orders:    orders,
		scheduler: scheduler,
		limits:    limits,
		logger:    logger.With("component", "payment-service"),
	}
}

// CreatePayment validates the request against the order and the user's
// limits, persists a PENDING payment and schedules it for settlement.
func (s *PaymentService) CreatePayment(ctx context.Context, cmd CreatePaymentCommand) (*domain.Payment, error) {
	exists, err := s.payments.ExistsByOrderID(ctx, cmd.OrderID)
	if err != nil {
		return nil, application.NewInternalError(err)
	}
	if exists {
		return nil, application.FromDomain(domain.NewDuplicatePaymentError(cmd.OrderID.String()))
	}

	order, err := s.orders.GetOrder(ctx, cmd.OrderID)
	if err != nil {
		if domain.IsErrorCode(err, domain.ErrCodeOrderNotFound) {
			return nil, application.FromDomain(err)
		}
		return nil, application.NewCollaboratorUnavailableError("order service", err)
	}

	if !cmd.Amount.Equal(order.TotalAmount) {
		return nil, application.FromDomain(domain.NewValidationError(fmt.Sprintf(
			"payment amount %s does not match order total %s",
			cmd.Amount.StringFixed(2), order.TotalAmount.StringFixed(2))))
	}
	if cmd.Amount.LessThan(s.limits.MinAmount) {
		return nil, application.FromDomain(domain.NewValidationError(
			"payment amount is below the minimum of " + s.limits.MinAmount.StringFixed(2)))
	}
	if cmd.Amount.GreaterThan(s.limits.MaxAmount) {
		return nil, application.FromDomain(domain.NewValidationError(
			"payment amount exceeds the maximum of " + s.limits.MaxAmount.StringFixed(2)))
	}

	dayStart := startOfDay(time.Now())
	spent, err := s.payments.SumAmountByUserAndDateRange(ctx, cmd.UserID, dailyCapStatuses, dayStart, dayStart.Add(24*time.Hour))
	if err != nil {
		return nil, application.NewInternalError(err)
	}
	if spent.Add(cmd.Amount).GreaterThan(s.limits.DailyLimit) {
		return nil, application.FromDomain(domain.NewValidationError(
			"daily payment limit of " + s.limits.DailyLimit.StringFixed(2) + " exceeded"))
	}

	payment, err := domain.NewPayment(cmd.OrderID, cmd.UserID, cmd.Method, cmd.Gateway, cmd.Amount, cmd.CurrencyCode)
	if err != nil {
		return nil, application.FromDomain(err)
	}
	applyDescriptors(payment, cmd)

	if payment.Method != domain.MethodCash {
		expiresAt := time.Now().Add(PaymentExpiry)
		payment.ExpiresAt = &expiresAt
	}

	if err := s.payments.Save(ctx, payment); err != nil {
		if domain.IsErrorCode(err, domain.ErrCodeDuplicatePayment) {
			return nil, application.FromDomain(err)
		}
		return nil, application.NewInternalError(err)
	}

	s.logger.InfoContext(ctx, "payment created",
		"payment_id", payment.ID,
		"reference", payment.PaymentReference,
		"order_id", payment.OrderID,
		"amount", payment.Amount,
		"method", payment.Method,
		"gateway", payment.Gateway)

	s.scheduler.SchedulePayment(payment.ID)
	return payment, nil
}

func applyDescriptors(p *domain.Payment, cmd CreatePaymentCommand) {
	setOptional(&p.Description, cmd.Description)
	setOptional(&p.CardLastFour, cmd.CardLastFour)
	setOptional(&p.CardBrand, cmd.CardBrand)
	setOptional(&p.CardType, cmd.CardType)
	setOptional(&p.DigitalWalletProvider, cmd.DigitalWalletProvider)
	setOptional(&p.BankName, cmd.BankName)
	setOptional(&p.Metadata, cmd.Metadata)
	setOptional(&p.Notes, cmd.Notes)
}

func setOptional(dst **string, v string) {
	if v != "" {
		*dst = &v
	}
}

func startOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

func (s *PaymentService) GetPayment(ctx context.Context, id uuid.UUID) (*domain.Payment, error) {
	payment, err := s.payments.FindByID(ctx, id)
	if err != nil {
		return nil, application.FromDomain(err)
	}
	return payment, nil
}

func (s *PaymentService) GetPaymentByReference(ctx context.Context, reference string) (*domain.Payment, error) {
	payment, err := s.payments.FindByReference(ctx, reference)
	if err != nil {
		return nil, application.FromDomain(err)
	}
	return payment, nil
}

func (s *PaymentService) GetPaymentByOrderID(ctx context.Context, orderID uuid.UUID) (*domain.Payment, error) {
	payment, err := s.payments.FindByOrderID(ctx, orderID)
	if err != nil {
		return nil, application.FromDomain(err)
	}
	return payment, nil
}

func (s *PaymentService) ListPaymentsByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]*domain.Payment, error) {
	payments, err := s.payments.FindByUserID(ctx, userID, normalizeLimit(limit), max(offset, 0))
	if err != nil {
		return nil, application.NewInternalError(err)
	}
	return payments, nil
}

func (s *PaymentService) ListPaymentsByStatus(ctx context.Context, status domain.PaymentStatus, limit, offset int) ([]*domain.Payment, error) {
	payments, err := s.payments.FindByStatus(ctx, status, normalizeLimit(limit), max(offset, 0))
	if err != nil {
		return nil, application.NewInternalError(err)
	}
	return payments, nil
}

func (s *PaymentService) ListAllPayments(ctx context.Context, limit, offset int) ([]*domain.Payment, error) {
	payments, err := s.payments.FindAll(ctx, normalizeLimit(limit), max(offset, 0))
	if err != nil {
		return nil, application.NewInternalError(err)
	}
	return payments, nil
}

func normalizeLimit(limit int) int {
	if limit <= 0 || limit > 100 {
		return 20
	}
	return limit
}

// UpdatePaymentStatus performs an explicit administrative transition. The
// state machine decides whether the move is legal.
func (s *PaymentService) UpdatePaymentStatus(ctx context.Context, cmd UpdatePaymentStatusCommand) (*domain.Payment, error) {
	payment, err := s.payments.FindByID(ctx, cmd.PaymentID)
	if err != nil {
		return nil, application.FromDomain(err)
	}

	if err := payment.TransitionTo(cmd.Status, cmd.Reason); err != nil {
		return nil, application.FromDomain(err)
	}
	setOptional(&payment.Notes, cmd.Notes)

	if err := s.payments.Update(ctx, payment); err != nil {
		return nil, application.FromDomain(err)
	}

	s.logger.InfoContext(ctx, "payment status updated",
		"payment_id", payment.ID, "status", payment.Status, "reason", cmd.Reason)

	s.notifyOrderAsync(ctx, payment)
	return payment, nil
}

// CancelPayment cancels a payment that has not completed. A completed
// payment must be refunded instead. Cancellation attempts a best-effort
// void when the gateway already authorized funds.
func (s *PaymentService) CancelPayment(ctx context.Context, cmd CancelPaymentCommand) (*domain.Payment, error) {
	payment, err := s.payments.FindByID(ctx, cmd.PaymentID)
	if err != nil {
		return nil, application.FromDomain(err)
	}

	if payment.Status == domain.StatusCompleted {
		return nil, application.FromDomain(&domain.DomainError{
			Code:    domain.ErrCodeInvalidTransition,
			Message: "completed payments cannot be cancelled, request a refund instead",
		})
	}
	if payment.Status == domain.StatusCancelled {
		return nil, application.FromDomain(domain.NewValidationError("payment is already cancelled"))
	}

	if payment.AuthorizedAt != nil {
		s.voidAtGateway(ctx, payment)
	}

	if err := payment.Cancel(cmd.Reason); err != nil {
		return nil, application.FromDomain(err)
	}
	if err := s.payments.Update(ctx, payment); err != nil {
		return nil, application.FromDomain(err)
	}

	s.logger.InfoContext(ctx, "payment cancelled",
		"payment_id", payment.ID, "reason", cmd.Reason)

	s.notifyOrderAsync(ctx, payment)
	return payment, nil
}

// voidAtGateway releases an authorization hold. Failures are logged and
// swallowed: cancellation proceeds regardless.
func (s *PaymentService) voidAtGateway(ctx context.Context, payment *domain.Payment) {
	outcome, err := s.gateway.VoidPayment(ctx, payment)
	if err != nil {
		s.logger.WarnContext(ctx, "void request failed",
			"payment_id", payment.ID, "error", err)
		return
	}

	tx := domain.NewTransaction(payment, domain.TxTypeVoid, payment.Amount, "authorization void")
	if outcome.Success {
		tx.GatewayTransactionID = &outcome.TransactionID
		if err := tx.Complete(); err == nil {
			tx.GatewayResponse = &outcome.Response
		}
	} else {
		_ = tx.Fail(outcome.FailureReason, outcome.FailureCode)
	}
	if err := s.txns.Save(ctx, tx); err != nil {
		s.logger.WarnContext(ctx, "failed to record void transaction",
			"payment_id", payment.ID, "error", err)
	}
}

// RetryPayment puts a failed payment back through settlement, provided the
// retry ceiling has not been hit.
func (s *PaymentService) RetryPayment(ctx context.Context, id uuid.UUID) (*domain.Payment, error) {
	payment, err := s.payments.FindByID(ctx, id)
	if err != nil {
		return nil, application.FromDomain(err)
	}

	if !payment.CanBeRetried() {
		if payment.Status != domain.StatusFailed {
			return nil, application.FromDomain(domain.NewRetryNotAllowedError(
				"only failed payments can be retried"))
		}
		return nil, application.FromDomain(domain.NewRetryNotAllowedError(
			fmt.Sprintf("retry limit of %d reached", domain.MaxRetryCount)))
	}

	payment.IncrementRetryCount()
	payment.ClearFailure()
	if err := payment.MarkProcessing(); err != nil {
		return nil, application.FromDomain(err)
	}
	if err := s.payments.Update(ctx, payment); err != nil {
		return nil, application.FromDomain(err)
	}

	s.logger.InfoContext(ctx, "payment retry accepted",
		"payment_id", payment.ID, "retry_count", payment.RetryCount)

	s.scheduler.SchedulePayment(payment.ID)
	return payment, nil
}

func (s *PaymentService) GetPaymentStatistics(ctx context.Context, from, to time.Time) (*application.PaymentStatistics, error) {
	stats, err := s.payments.Statistics(ctx, from, to)
	if err != nil {
		return nil, application.NewInternalError(err)
	}
	return stats, nil
}

// SettlePayment runs the gateway round trip for a scheduled payment. It is
// invoked by the settlement workers and must tolerate being called for
// payments that already moved on. Any error or panic inside the unit
// terminalizes the payment so nothing stays PROCESSING.
func (s *PaymentService) SettlePayment(ctx context.Context, id uuid.UUID) error {
	err := s.settle(ctx, id)
	if err != nil {
		s.failStuckPayment(ctx, id, err)
	}
	return err
}

func (s *PaymentService) settle(ctx context.Context, id uuid.UUID) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("settlement panic: %v", r)
		}
	}()

	payment, err := s.payments.FindByID(ctx, id)
	if err != nil {
		return err
	}

	switch payment.Status {
	case domain.StatusPending:
		if payment.IsExpired() {
			s.logger.InfoContext(ctx, "skipping settlement of expired payment", "payment_id", payment.ID)
			return nil
		}
		if err := payment.MarkProcessing(); err != nil {
			return err
		}
		if err := s.payments.Update(ctx, payment); err != nil {
			return err
		}
	case domain.StatusProcessing:
		// retry or approval already moved it, proceed with the gateway call
	default:
		s.logger.InfoContext(ctx, "payment no longer settleable",
			"payment_id", payment.ID, "status", payment.Status)
		return nil
	}

	outcome, gwErr := s.callGateway(ctx, payment)
	if gwErr != nil {
		s.logger.ErrorContext(ctx, "gateway call failed, failing payment",
			"payment_id", payment.ID, "error", gwErr)
		if err := payment.Fail("Gateway processing error", "GATEWAY_ERROR"); err != nil {
			return err
		}
		if err := s.payments.Update(ctx, payment); err != nil {
			return err
		}
		s.notifyOrderAsync(ctx, payment)
		return nil
	}

	tx := domain.NewTransaction(payment, domain.TxTypeSale, payment.Amount, "payment settlement")
	tx.GatewayTransactionID = optional(outcome.TransactionID)
	tx.GatewayResponse = optional(outcome.Response)
	tx.GatewayRawResponse = optional(outcome.RawResponse)

	switch {
	case outcome.Success:
		if err := tx.Complete(); err != nil {
			return err
		}
		payment.GatewayPaymentID = optional(outcome.TransactionID)
		payment.GatewayResponse = optional(outcome.Response)
		payment.GatewayRawResponse = optional(outcome.RawResponse)
		if err := payment.Complete(outcome.Fee); err != nil {
			return err
		}
	case outcome.Pending:
		payment.GatewayResponse = optional(outcome.Response)
		payment.AwaitConfirmation()
	default:
		_ = tx.Fail(outcome.FailureReason, outcome.FailureCode)
		if err := payment.Fail(outcome.FailureReason, outcome.FailureCode); err != nil {
			return err
		}
	}

	if err := s.txns.Save(ctx, tx); err != nil {
		s.logger.ErrorContext(ctx, "failed to record settlement transaction",
			"payment_id", payment.ID, "error", err)
	}
	if err := s.payments.Update(ctx, payment); err != nil {
		return err
	}

	s.logger.InfoContext(ctx, "payment settled",
		"payment_id", payment.ID,
		"status", payment.Status,
		"gateway_fee", payment.GatewayFee,
		"net_amount", payment.NetAmount)

	s.notifyOrderAsync(ctx, payment)
	return nil
}

// failStuckPayment is the settlement safety net: when the unit errored past
// the PROCESSING mark, re-read the payment and force it FAILED so it does
// not hang mid-settlement.
func (s *PaymentService) failStuckPayment(ctx context.Context, id uuid.UUID, cause error) {
	s.logger.ErrorContext(ctx, "settlement unit failed",
		"payment_id", id, "error", cause)

	payment, err := s.payments.FindByID(ctx, id)
	if err != nil {
		s.logger.ErrorContext(ctx, "could not re-read payment after failed settlement",
			"payment_id", id, "error", err)
		return
	}
	if payment.Status != domain.StatusProcessing {
		return
	}
	if err := payment.Fail("Settlement processing error", "SETTLEMENT_ERROR"); err != nil {
		return
	}
	if err := s.payments.Update(ctx, payment); err != nil {
		s.logger.ErrorContext(ctx, "could not persist forced payment failure",
			"payment_id", id, "error", err)
		return
	}
	s.notifyOrderAsync(ctx, payment)
}

// callGateway guards the provider call against panics so a misbehaving
// simulator or SDK cannot take a settlement worker down.
func (s *PaymentService) callGateway(ctx context.Context, payment *domain.Payment) (outcome *application.GatewayOutcome, err error) {
	defer func() {
		if r := recover(); r != nil {
			outcome = nil
			err = application.NewGatewayError(fmt.Errorf("gateway panic: %v", r))
		}
	}()
	outcome, err = s.gateway.ProcessPayment(ctx, payment)
	if err != nil {
		return nil, application.NewGatewayError(err)
	}
	return outcome, nil
}

// ExpirePayments cancels PENDING payments whose expiry elapsed. Returns how
// many were swept.
func (s *PaymentService) ExpirePayments(ctx context.Context, batch int) (int, error) {
	expired, err := s.payments.FindExpired(ctx, time.Now(), batch)
	if err != nil {
		return 0, err
	}

	swept := 0
	for _, payment := range expired {
		if err := payment.Cancel("Payment expired"); err != nil {
			s.logger.WarnContext(ctx, "could not expire payment",
				"payment_id", payment.ID, "status", payment.Status, "error", err)
			continue
		}
		if err := s.payments.Update(ctx, payment); err != nil {
			if domain.IsErrorCode(err, domain.ErrCodeConflict) {
				// another actor got there first, leave it alone
				continue
			}
			s.logger.ErrorContext(ctx, "failed to persist expired payment",
				"payment_id", payment.ID, "error", err)
			continue
		}
		swept++
		s.notifyOrderAsync(ctx, payment)
	}
	return swept, nil
}

// notifyOrderAsync pushes the payment status to the order service without
// blocking the caller. Failures are logged, never propagated.
func (s *PaymentService) notifyOrderAsync(ctx context.Context, payment *domain.Payment) {
	update := application.PaymentStatusUpdate{
		PaymentID:        payment.ID,
		PaymentReference: payment.PaymentReference,
		Status:           payment.Status,
		Amount:           payment.Amount,
	}
	if payment.GatewayResponse != nil {
		update.GatewayResponse = *payment.GatewayResponse
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

func optional(v string) *string {
	if v == "" {
		return nil
	}
	return &v
}
