package application

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/amankrmj01/bakery-payment-service/internal/domain"
)

// GatewayOutcome is the normalized result of a gateway call. Pending means
// the provider accepted the request but will confirm asynchronously.
type GatewayOutcome struct {
	Success       bool
	Pending       bool
	TransactionID string
	Response      string
	RawResponse   string
	FailureReason string
	FailureCode   string
	Fee           decimal.Decimal
}

// GatewayClient is the port for the external payment provider.
type GatewayClient interface {
	ProcessPayment(ctx context.Context, payment *domain.Payment) (*GatewayOutcome, error)
	ProcessRefund(ctx context.Context, refund *domain.Refund, payment *domain.Payment) (*GatewayOutcome, error)
	VoidPayment(ctx context.Context, payment *domain.Payment) (*GatewayOutcome, error)
}

// Order is the slice of the order service's order we validate against.
type Order struct {
	ID          uuid.UUID
	TotalAmount decimal.Decimal
	Status      string
}

// PaymentStatusUpdate is pushed to the order service after settlement-affecting
// status changes. Delivery is best effort.
type PaymentStatusUpdate struct {
	PaymentID        uuid.UUID
	PaymentReference string
	Status           domain.PaymentStatus
	Amount           decimal.Decimal
	GatewayResponse  string
}

// OrderClient is the port for the order service collaborator.
type OrderClient interface {
	GetOrder(ctx context.Context, orderID uuid.UUID) (*Order, error)
	NotifyPaymentStatus(ctx context.Context, orderID uuid.UUID, update PaymentStatusUpdate) error
}

// SettlementScheduler hands entities to the async settlement machinery.
// Scheduling is non-blocking; a full queue drops the request and the
// expiration sweep picks the entity up later.
type SettlementScheduler interface {
	SchedulePayment(paymentID uuid.UUID)
	ScheduleRefund(refundID uuid.UUID)
}

// PaymentStatistics aggregates payments over a date range.
type PaymentStatistics struct {
	TotalCount      int64
	TotalAmount     decimal.Decimal
	TotalFees       decimal.Decimal
	TotalNet        decimal.Decimal
	CountByStatus   []GroupCount
	CountByMethod   []GroupCount
	CountByGateway  []GroupCount
	AmountByStatus  []GroupAmount
	AveragePayment  decimal.Decimal
	CompletedAmount decimal.Decimal
}

// RefundStatistics aggregates refunds over a date range.
type RefundStatistics struct {
	TotalCount      int64
	TotalAmount     decimal.Decimal
	CompletedCount  int64
	CompletedAmount decimal.Decimal
	CountByStatus   []GroupCount
}

type GroupCount struct {
	Key   string
	Count int64
}

type GroupAmount struct {
	Key    string
	Amount decimal.Decimal
}

// RefundFilter narrows refund listings. Nil fields are ignored. Query
// matches the refund reason and reference case-insensitively.
type RefundFilter struct {
	PaymentID   *uuid.UUID
	Status      *domain.RefundStatus
	RequestedBy *uuid.UUID
	ApprovedBy  *uuid.UUID
	MinAmount   *decimal.Decimal
	MaxAmount   *decimal.Decimal
	From        *time.Time
	To          *time.Time
	Query       *string
	Limit       int
	Offset      int
}

// TransactionSummary aggregates a payment's transaction log.
type TransactionSummary struct {
	PaymentID     uuid.UUID
	TotalCount    int64
	TotalAmount   decimal.Decimal
	CountByStatus []GroupCount
	CountByType   []GroupCount
}

// PaymentRepository is the port for payment persistence. Save and Update use
// optimistic locking: Update fails with a CONFLICT domain error when the
// stored version no longer matches the entity's.
type PaymentRepository interface {
	Save(ctx context.Context, payment *domain.Payment) error
	Update(ctx context.Context, payment *domain.Payment) error
	FindByID(ctx context.Context, id uuid.UUID) (*domain.Payment, error)
	FindByReference(ctx context.Context, reference string) (*domain.Payment, error)
	FindByOrderID(ctx context.Context, orderID uuid.UUID) (*domain.Payment, error)
	FindByUserID(ctx context.Context, userID uuid.UUID, limit, offset int) ([]*domain.Payment, error)
	FindByStatus(ctx context.Context, status domain.PaymentStatus, limit, offset int) ([]*domain.Payment, error)
	FindAll(ctx context.Context, limit, offset int) ([]*domain.Payment, error)
	FindExpired(ctx context.Context, now time.Time, limit int) ([]*domain.Payment, error)
	SumAmountByUserAndDateRange(ctx context.Context, userID uuid.UUID, statuses []domain.PaymentStatus, from, to time.Time) (decimal.Decimal, error)
	ExistsByOrderID(ctx context.Context, orderID uuid.UUID) (bool, error)
	Statistics(ctx context.Context, from, to time.Time) (*PaymentStatistics, error)
}

// RefundRepository is the port for refund persistence.
type RefundRepository interface {
	Save(ctx context.Context, refund *domain.Refund) error
	Update(ctx context.Context, refund *domain.Refund) error
	FindByID(ctx context.Context, id uuid.UUID) (*domain.Refund, error)
	FindByReference(ctx context.Context, reference string) (*domain.Refund, error)
	FindByPaymentID(ctx context.Context, paymentID uuid.UUID) ([]*domain.Refund, error)
	FindByStatus(ctx context.Context, status domain.RefundStatus, limit, offset int) ([]*domain.Refund, error)
	FindWithFilters(ctx context.Context, filter RefundFilter) ([]*domain.Refund, error)
	SumCompletedByPayment(ctx context.Context, paymentID uuid.UUID) (decimal.Decimal, error)
	Statistics(ctx context.Context, from, to time.Time) (*RefundStatistics, error)
}

// TransactionRepository is the port for the append-only transaction log.
type TransactionRepository interface {
	Save(ctx context.Context, tx *domain.PaymentTransaction) error
	FindByID(ctx context.Context, id uuid.UUID) (*domain.PaymentTransaction, error)
	FindByPaymentID(ctx context.Context, paymentID uuid.UUID) ([]*domain.PaymentTransaction, error)
	FindByType(ctx context.Context, txType domain.TransactionType, limit, offset int) ([]*domain.PaymentTransaction, error)
	FindByStatus(ctx context.Context, status domain.TransactionStatus, limit, offset int) ([]*domain.PaymentTransaction, error)
	FindByGatewayTransactionID(ctx context.Context, gatewayTransactionID string) (*domain.PaymentTransaction, error)
}
