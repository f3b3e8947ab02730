// Package domain encodes the payment, transaction and refund entities and the
// state machines that govern their lifecycles.
package domain

import (
	"slices"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// PaymentMethod is the instrument used to pay for an order.
type PaymentMethod string

const (
	MethodCash          PaymentMethod = "CASH"
	MethodCard          PaymentMethod = "CARD"
	MethodDigitalWallet PaymentMethod = "DIGITAL_WALLET"
	MethodBankTransfer  PaymentMethod = "BANK_TRANSFER"
	MethodCrypto        PaymentMethod = "CRYPTO"
)

// GatewayProvider selects which external processor settles the payment.
type GatewayProvider string

const (
	GatewayStripe GatewayProvider = "STRIPE"
	GatewayPayPal GatewayProvider = "PAYPAL"
	GatewaySquare GatewayProvider = "SQUARE"
	GatewayManual GatewayProvider = "MANUAL"
	GatewayMock   GatewayProvider = "MOCK"
)

// PaymentStatus represents the current state of a payment in its lifecycle.
type PaymentStatus string

const (
	StatusPending    PaymentStatus = "PENDING"
	StatusProcessing PaymentStatus = "PROCESSING"
	StatusCompleted  PaymentStatus = "COMPLETED"
	StatusFailed     PaymentStatus = "FAILED"
	StatusCancelled  PaymentStatus = "CANCELLED"
	StatusRefunded   PaymentStatus = "REFUNDED"
)

// PaymentStatuses lists every payment status, used by validation and tests.
var PaymentStatuses = []PaymentStatus{
	StatusPending, StatusProcessing, StatusCompleted,
	StatusFailed, StatusCancelled, StatusRefunded,
}

// MaxRetryCount caps how often a failed payment may be retried.
const MaxRetryCount = 3

type Payment struct {
	ID               uuid.UUID
	PaymentReference string
	OrderID          uuid.UUID
	UserID           uuid.UUID
	Method           PaymentMethod
	Gateway          GatewayProvider
	Status           PaymentStatus

	Amount       decimal.Decimal
	CurrencyCode string
	Description  *string

	CardLastFour          *string
	CardBrand             *string
	CardType              *string
	DigitalWalletProvider *string
	BankName              *string

	GatewayPaymentID      *string
	ExternalTransactionID *string
	GatewayResponse       *string
	GatewayRawResponse    *string

	FailureReason *string
	FailureCode   *string
	RetryCount    int
	LastRetryAt   *time.Time

	CreatedAt      time.Time
	UpdatedAt      time.Time
	AuthorizedAt   *time.Time
	CapturedAt     *time.Time
	FailedAt       *time.Time
	CancelledAt    *time.Time
	ExpiresAt      *time.Time
	SettlementDate *time.Time

	GatewayFee decimal.Decimal
	NetAmount  decimal.Decimal

	Metadata *string
	Notes    *string

	// Version guards concurrent read-modify-write cycles on save.
	Version int64

	Transactions []*PaymentTransaction
	Refunds      []*Refund
}

// NewPayment creates a payment in PENDING with a freshly generated reference.
// The amount is immutable after creation; net amount starts equal to it and is
// recomputed once the gateway fee is known.
func NewPayment(orderID, userID uuid.UUID, method PaymentMethod, gateway GatewayProvider, amount decimal.Decimal, currencyCode string) (*Payment, error) {
	if orderID == uuid.Nil {
		return nil, NewValidationError("order ID is required")
	}
	if userID == uuid.Nil {
		return nil, NewValidationError("user ID is required")
	}
	if !amount.IsPositive() {
		return nil, NewValidationError("amount must be greater than zero")
	}
	if currencyCode == "" {
		currencyCode = "USD"
	}
	if gateway == "" {
		gateway = GatewayMock
	}

	return &Payment{
		ID:               uuid.New(),
		PaymentReference: NewPaymentReference(),
		OrderID:          orderID,
		UserID:           userID,
		Method:           method,
		Gateway:          gateway,
		Status:           StatusPending,
		Amount:           amount,
		CurrencyCode:     currencyCode,
		GatewayFee:       decimal.Zero,
		NetAmount:        amount,
		CreatedAt:        time.Now(),
		UpdatedAt:        time.Now(),
	}, nil
}

// TransitionTo validates the move against the state-machine table and applies
// the per-status side effects (timestamps, failure bookkeeping).
func (p *Payment) TransitionTo(target PaymentStatus, reason string) error {
	if err := p.CanTransitionTo(target); err != nil {
		return err
	}
	p.Status = target
	p.applyStatusEffects(target, reason)
	return nil
}

// CanTransitionTo reports whether moving to target is legal from the current
// status. The switch is exhaustive over PaymentStatus.
func (p *Payment) CanTransitionTo(target PaymentStatus) error {
	switch p.Status {
	case StatusPending:
		return p.allow(target, StatusProcessing, StatusCancelled, StatusCompleted)
	case StatusProcessing:
		return p.allow(target, StatusCompleted, StatusFailed, StatusCancelled)
	case StatusCompleted:
		return p.allow(target, StatusRefunded)
	case StatusFailed:
		// Retry only.
		return p.allow(target, StatusProcessing)
	case StatusCancelled, StatusRefunded:
		return NewInvalidTransitionError(string(p.Status), string(target))
	}
	return NewInvalidTransitionError(string(p.Status), string(target))
}

func (p *Payment) allow(target PaymentStatus, allowed ...PaymentStatus) error {
	if slices.Contains(allowed, target) {
		return nil
	}
	return NewInvalidTransitionError(string(p.Status), string(target))
}

func (p *Payment) applyStatusEffects(target PaymentStatus, reason string) {
	now := time.Now()
	p.UpdatedAt = now

	switch target {
	case StatusCompleted:
		p.CapturedAt = &now
		if p.AuthorizedAt == nil {
			p.AuthorizedAt = &now
		}
	case StatusFailed:
		p.FailedAt = &now
		if reason != "" {
			p.FailureReason = &reason
		}
	case StatusCancelled:
		p.CancelledAt = &now
		if reason != "" {
			p.FailureReason = &reason
		}
	}
}

// MarkProcessing moves the payment into PROCESSING ahead of a gateway call.
func (p *Payment) MarkProcessing() error {
	return p.TransitionTo(StatusProcessing, "")
}

// Complete records a successful gateway settlement: status, capture timestamps,
// fee and derived net amount.
func (p *Payment) Complete(gatewayFee decimal.Decimal) error {
	if err := p.TransitionTo(StatusCompleted, ""); err != nil {
		return err
	}
	p.GatewayFee = gatewayFee
	p.CalculateNetAmount()
	return nil
}

// Fail terminalizes the payment with the gateway's failure details.
func (p *Payment) Fail(reason, code string) error {
	if err := p.TransitionTo(StatusFailed, reason); err != nil {
		return err
	}
	if code != "" {
		p.FailureCode = &code
	}
	return nil
}

// Cancel transitions the payment to CANCELLED, recording the reason.
func (p *Payment) Cancel(reason string) error {
	return p.TransitionTo(StatusCancelled, reason)
}

// AwaitConfirmation parks the payment back in PENDING after the gateway
// reported the interaction as pending (manual gateways). This deliberately
// bypasses the transition table: PENDING here means awaiting external
// confirmation, not a fresh payment.
func (p *Payment) AwaitConfirmation() {
	p.Status = StatusPending
	p.UpdatedAt = time.Now()
}

// CalculateNetAmount derives netAmount = amount - gatewayFee.
func (p *Payment) CalculateNetAmount() {
	p.NetAmount = p.Amount.Sub(p.GatewayFee)
}

// TotalRefundedAmount sums the COMPLETED refunds loaded on this payment.
func (p *Payment) TotalRefundedAmount() decimal.Decimal {
	total := decimal.Zero
	for _, r := range p.Refunds {
		if r.Status == RefundCompleted {
			total = total.Add(r.Amount)
		}
	}
	return total
}

// RefundableAmount is the amount minus completed refunds; zero unless the
// payment is COMPLETED.
func (p *Payment) RefundableAmount() decimal.Decimal {
	if p.Status != StatusCompleted {
		return decimal.Zero
	}
	return p.Amount.Sub(p.TotalRefundedAmount())
}

func (p *Payment) CanBeRefunded() bool {
	return p.Status == StatusCompleted && p.RefundableAmount().IsPositive()
}

func (p *Payment) CanBeRetried() bool {
	return p.Status == StatusFailed && p.RetryCount < MaxRetryCount
}

// IncrementRetryCount bumps the retry counter and stamps the attempt.
func (p *Payment) IncrementRetryCount() {
	now := time.Now()
	p.RetryCount++
	p.LastRetryAt = &now
}

// ClearFailure resets failure bookkeeping ahead of a retry.
func (p *Payment) ClearFailure() {
	p.FailureReason = nil
	p.FailureCode = nil
}

func (p *Payment) IsExpired() bool {
	return p.ExpiresAt != nil && time.Now().After(*p.ExpiresAt)
}

// IsTerminal reports whether the status has no outgoing transitions.
func (p *Payment) IsTerminal() bool {
	switch p.Status {
	case StatusCancelled, StatusRefunded:
		return true
	default:
		return false
	}
}
