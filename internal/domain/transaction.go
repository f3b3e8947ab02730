package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// TransactionType identifies the kind of gateway interaction being recorded.
type TransactionType string

const (
	TxTypeAuthorization TransactionType = "AUTHORIZATION"
	TxTypeCapture       TransactionType = "CAPTURE"
	TxTypeSale          TransactionType = "SALE"
	TxTypeVoid          TransactionType = "VOID"
	TxTypeRefund        TransactionType = "REFUND"
)

type TransactionStatus string

const (
	TxPending    TransactionStatus = "PENDING"
	TxProcessing TransactionStatus = "PROCESSING"
	TxCompleted  TransactionStatus = "COMPLETED"
	TxFailed     TransactionStatus = "FAILED"
	TxCancelled  TransactionStatus = "CANCELLED"
)

// PaymentTransaction is one row of the append-only audit trail: a single
// gateway interaction attempt tied to a payment. Rows are immutable once
// COMPLETED or FAILED.
type PaymentTransaction struct {
	ID        uuid.UUID
	PaymentID uuid.UUID
	Type      TransactionType
	Status    TransactionStatus

	Amount       decimal.Decimal
	CurrencyCode string

	GatewayTransactionID *string
	GatewayResponse      *string
	GatewayRawResponse   *string

	FailureReason *string
	FailureCode   *string

	CreatedAt   time.Time
	ProcessedAt *time.Time

	Description *string
	Metadata    *string
}

// NewTransaction opens a PENDING transaction record for a gateway interaction
// on the given payment.
func NewTransaction(payment *Payment, txType TransactionType, amount decimal.Decimal, description string) *PaymentTransaction {
	tx := &PaymentTransaction{
		ID:           uuid.New(),
		PaymentID:    payment.ID,
		Type:         txType,
		Status:       TxPending,
		Amount:       amount,
		CurrencyCode: payment.CurrencyCode,
		CreatedAt:    time.Now(),
	}
	if description != "" {
		tx.Description = &description
	}
	return tx
}

// Complete marks the transaction COMPLETED and stamps processing time.
func (t *PaymentTransaction) Complete() error {
	if t.IsFinal() {
		return NewInvalidTransitionError(string(t.Status), string(TxCompleted))
	}
	now := time.Now()
	t.Status = TxCompleted
	t.ProcessedAt = &now
	return nil
}

// Fail marks the transaction FAILED with the gateway's failure details.
func (t *PaymentTransaction) Fail(reason, code string) error {
	if t.IsFinal() {
		return NewInvalidTransitionError(string(t.Status), string(TxFailed))
	}
	t.Status = TxFailed
	if reason != "" {
		t.FailureReason = &reason
	}
	if code != "" {
		t.FailureCode = &code
	}
	return nil
}

// IsFinal reports whether the row may no longer be mutated.
func (t *PaymentTransaction) IsFinal() bool {
	return t.Status == TxCompleted || t.Status == TxFailed
}

func (t *PaymentTransaction) IsCompleted() bool { return t.Status == TxCompleted }
func (t *PaymentTransaction) IsFailed() bool    { return t.Status == TxFailed }
