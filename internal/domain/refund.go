package domain

import (
	"slices"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type RefundStatus string

const (
	RefundPending    RefundStatus = "PENDING"
	RefundProcessing RefundStatus = "PROCESSING"
	RefundCompleted  RefundStatus = "COMPLETED"
	RefundFailed     RefundStatus = "FAILED"
)

// RefundStatuses lists every refund status.
var RefundStatuses = []RefundStatus{
	RefundPending, RefundProcessing, RefundCompleted, RefundFailed,
}

// Refund is a request to return part or all of a completed payment. Several
// refunds may exist per payment; their COMPLETED amounts never exceed the
// payment amount.
type Refund struct {
	ID              uuid.UUID
	RefundReference string
	PaymentID       uuid.UUID
	Status          RefundStatus

	Amount       decimal.Decimal
	CurrencyCode string
	Reason       *string

	GatewayRefundID    *string
	GatewayResponse    *string
	GatewayRawResponse *string

	FailureReason *string
	FailureCode   *string

	RequestedBy uuid.UUID
	ApprovedBy  *uuid.UUID

	CreatedAt   time.Time
	UpdatedAt   time.Time
	ProcessedAt *time.Time
	CompletedAt *time.Time
	FailedAt    *time.Time

	Notes    *string
	Metadata *string

	Version int64
}

// NewRefund creates a PENDING refund against the given payment. The caller is
// responsible for checking the payment's refundable balance first.
func NewRefund(payment *Payment, amount decimal.Decimal, reason string, requestedBy uuid.UUID) (*Refund, error) {
	if !amount.IsPositive() {
		return nil, NewValidationError("refund amount must be greater than zero")
	}
	if requestedBy == uuid.Nil {
		return nil, NewValidationError("requested by user ID is required")
	}

	r := &Refund{
		ID:              uuid.New(),
		RefundReference: NewRefundReference(),
		PaymentID:       payment.ID,
		Status:          RefundPending,
		Amount:          amount,
		CurrencyCode:    payment.CurrencyCode,
		RequestedBy:     requestedBy,
		CreatedAt:       time.Now(),
		UpdatedAt:       time.Now(),
	}
	if reason != "" {
		r.Reason = &reason
	}
	return r, nil
}

// CanTransitionTo validates refund status moves. PENDING may go to PROCESSING
// or FAILED, PROCESSING to COMPLETED or FAILED; COMPLETED and FAILED are
// terminal.
func (r *Refund) CanTransitionTo(target RefundStatus) error {
	switch r.Status {
	case RefundPending:
		return r.allow(target, RefundProcessing, RefundFailed)
	case RefundProcessing:
		return r.allow(target, RefundCompleted, RefundFailed)
	case RefundCompleted, RefundFailed:
		return NewInvalidTransitionError(string(r.Status), string(target))
	}
	return NewInvalidTransitionError(string(r.Status), string(target))
}

func (r *Refund) allow(target RefundStatus, allowed ...RefundStatus) error {
	if slices.Contains(allowed, target) {
		return nil
	}
	return NewInvalidTransitionError(string(r.Status), string(target))
}

// Approve moves a PENDING refund into PROCESSING, recording the approver.
func (r *Refund) Approve(approvedBy uuid.UUID) error {
	if r.Status != RefundPending {
		return NewRefundNotAllowedError("only pending refunds can be approved")
	}
	now := time.Now()
	r.Status = RefundProcessing
	r.ApprovedBy = &approvedBy
	r.ProcessedAt = &now
	r.UpdatedAt = now
	return nil
}

// Reject terminalizes a PENDING refund as FAILED without any gateway call.
// The rejecting actor is tracked in the approver field.
func (r *Refund) Reject(reason string, rejectedBy uuid.UUID) error {
	if r.Status != RefundPending {
		return NewRefundNotAllowedError("only pending refunds can be rejected")
	}
	now := time.Now()
	r.Status = RefundFailed
	r.FailedAt = &now
	r.UpdatedAt = now
	if reason != "" {
		r.FailureReason = &reason
	}
	r.ApprovedBy = &rejectedBy
	return nil
}

// Complete records a successful gateway refund.
func (r *Refund) Complete() error {
	if err := r.CanTransitionTo(RefundCompleted); err != nil {
		return err
	}
	now := time.Now()
	r.Status = RefundCompleted
	r.CompletedAt = &now
	r.UpdatedAt = now
	return nil
}

// Fail terminalizes the refund with the gateway's failure details.
func (r *Refund) Fail(reason, code string) error {
	if err := r.CanTransitionTo(RefundFailed); err != nil {
		return err
	}
	now := time.Now()
	r.Status = RefundFailed
	r.FailedAt = &now
	r.UpdatedAt = now
	if reason != "" {
		r.FailureReason = &reason
	}
	if code != "" {
		r.FailureCode = &code
	}
	return nil
}

// MarkProcessing moves the refund into PROCESSING ahead of a gateway call.
// Already-PROCESSING refunds stay put (the approval path got there first).
func (r *Refund) MarkProcessing() error {
	if r.Status == RefundProcessing {
		return nil
	}
	if err := r.CanTransitionTo(RefundProcessing); err != nil {
		return err
	}
	r.Status = RefundProcessing
	r.UpdatedAt = time.Now()
	return nil
}

func (r *Refund) IsCompleted() bool { return r.Status == RefundCompleted }
func (r *Refund) IsFailed() bool    { return r.Status == RefundFailed }
func (r *Refund) IsPending() bool   { return r.Status == RefundPending }

// IsTerminal reports whether the refund can no longer change status.
func (r *Refund) IsTerminal() bool {
	return r.Status == RefundCompleted || r.Status == RefundFailed
}
