// Package testhelpers provides in-memory fakes for the application ports.
// Every fake falls back to map-backed behavior and can be overridden per
// method through its Fn field.
package testhelpers

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/amankrmj01/bakery-payment-service/internal/application"
	"github.com/amankrmj01/bakery-payment-service/internal/domain"
)

// MockPaymentRepository
type MockPaymentRepository struct {
	mu       sync.RWMutex
	payments map[uuid.UUID]*domain.Payment

	SaveFn                        func(ctx context.Context, payment *domain.Payment) error
	UpdateFn                      func(ctx context.Context, payment *domain.Payment) error
	FindByIDFn                    func(ctx context.Context, id uuid.UUID) (*domain.Payment, error)
	FindExpiredFn                 func(ctx context.Context, now time.Time, limit int) ([]*domain.Payment, error)
	SumAmountByUserAndDateRangeFn func(ctx context.Context, userID uuid.UUID, statuses []domain.PaymentStatus, from, to time.Time) (decimal.Decimal, error)
	ExistsByOrderIDFn             func(ctx context.Context, orderID uuid.UUID) (bool, error)
	StatisticsFn                  func(ctx context.Context, from, to time.Time) (*application.PaymentStatistics, error)
}

func NewMockPaymentRepository() *MockPaymentRepository {
	return &MockPaymentRepository{payments: make(map[uuid.UUID]*domain.Payment)}
}

func (m *MockPaymentRepository) Save(ctx context.Context, payment *domain.Payment) error {
	if m.SaveFn != nil {
		return m.SaveFn(ctx, payment)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	payment.Version = 1
	m.payments[payment.ID] = payment
	return nil
}

func (m *MockPaymentRepository) Update(ctx context.Context, payment *domain.Payment) error {
	if m.UpdateFn != nil {
		return m.UpdateFn(ctx, payment)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.payments[payment.ID]; !ok {
		return domain.NewNotFoundError("payment", payment.ID.String())
	}
	payment.Version++
	m.payments[payment.ID] = payment
	return nil
}

func (m *MockPaymentRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.Payment, error) {
	if m.FindByIDFn != nil {
		return m.FindByIDFn(ctx, id)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	if p, ok := m.payments[id]; ok {
		return p, nil
	}
	return nil, domain.NewNotFoundError("payment", id.String())
}

func (m *MockPaymentRepository) FindByReference(ctx context.Context, reference string) (*domain.Payment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, p := range m.payments {
		if p.PaymentReference == reference {
			return p, nil
		}
	}
	return nil, domain.NewNotFoundError("payment", reference)
}

func (m *MockPaymentRepository) FindByOrderID(ctx context.Context, orderID uuid.UUID) (*domain.Payment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, p := range m.payments {
		if p.OrderID == orderID {
			return p, nil
		}
	}
	return nil, domain.NewNotFoundError("payment", orderID.String())
}

func (m *MockPaymentRepository) FindByUserID(ctx context.Context, userID uuid.UUID, limit, offset int) ([]*domain.Payment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*domain.Payment
	for _, p := range m.payments {
		if p.UserID == userID {
			out = append(out, p)
		}
	}
	return out, nil
}

func (m *MockPaymentRepository) FindByStatus(ctx context.Context, status domain.PaymentStatus, limit, offset int) ([]*domain.Payment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*domain.Payment
	for _, p := range m.payments {
		if p.Status == status {
			out = append(out, p)
		}
	}
	return out, nil
}

func (m *MockPaymentRepository) FindAll(ctx context.Context, limit, offset int) ([]*domain.Payment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*domain.Payment, 0, len(m.payments))
	for _, p := range m.payments {
		out = append(out, p)
	}
	return out, nil
}

func (m *MockPaymentRepository) FindExpired(ctx context.Context, now time.Time, limit int) ([]*domain.Payment, error) {
	if m.FindExpiredFn != nil {
		return m.FindExpiredFn(ctx, now, limit)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*domain.Payment
	for _, p := range m.payments {
		if p.Status == domain.StatusPending && p.ExpiresAt != nil && p.ExpiresAt.Before(now) {
			out = append(out, p)
		}
	}
	return out, nil
}

func (m *MockPaymentRepository) SumAmountByUserAndDateRange(ctx context.Context, userID uuid.UUID, statuses []domain.PaymentStatus, from, to time.Time) (decimal.Decimal, error) {
	if m.SumAmountByUserAndDateRangeFn != nil {
		return m.SumAmountByUserAndDateRangeFn(ctx, userID, statuses, from, to)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	sum := decimal.Zero
	for _, p := range m.payments {
		if p.UserID != userID || p.CreatedAt.Before(from) || !p.CreatedAt.Before(to) {
			continue
		}
		for _, s := range statuses {
			if p.Status == s {
				sum = sum.Add(p.Amount)
				break
			}
		}
	}
	return sum, nil
}

func (m *MockPaymentRepository) ExistsByOrderID(ctx context.Context, orderID uuid.UUID) (bool, error) {
	if m.ExistsByOrderIDFn != nil {
		return m.ExistsByOrderIDFn(ctx, orderID)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, p := range m.payments {
		if p.OrderID == orderID {
			return true, nil
		}
	}
	return false, nil
}

func (m *MockPaymentRepository) Statistics(ctx context.Context, from, to time.Time) (*application.PaymentStatistics, error) {
	if m.StatisticsFn != nil {
		return m.StatisticsFn(ctx, from, to)
	}
	return &application.PaymentStatistics{}, nil
}

// MockRefundRepository
type MockRefundRepository struct {
	mu      sync.RWMutex
	refunds map[uuid.UUID]*domain.Refund

	SaveFn                  func(ctx context.Context, refund *domain.Refund) error
	UpdateFn                func(ctx context.Context, refund *domain.Refund) error
	FindByIDFn              func(ctx context.Context, id uuid.UUID) (*domain.Refund, error)
	SumCompletedByPaymentFn func(ctx context.Context, paymentID uuid.UUID) (decimal.Decimal, error)
	StatisticsFn            func(ctx context.Context, from, to time.Time) (*application.RefundStatistics, error)
}

func NewMockRefundRepository() *MockRefundRepository {
	return &MockRefundRepository{refunds: make(map[uuid.UUID]*domain.Refund)}
}

func (m *MockRefundRepository) Save(ctx context.Context, refund *domain.Refund) error {
	if m.SaveFn != nil {
		return m.SaveFn(ctx, refund)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	refund.Version = 1
	m.refunds[refund.ID] = refund
	return nil
}

func (m *MockRefundRepository) Update(ctx context.Context, refund *domain.Refund) error {
	if m.UpdateFn != nil {
		return m.UpdateFn(ctx, refund)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.refunds[refund.ID]; !ok {
		return domain.NewNotFoundError("refund", refund.ID.String())
	}
	refund.Version++
	m.refunds[refund.ID] = refund
	return nil
}

func (m *MockRefundRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.Refund, error) {
	if m.FindByIDFn != nil {
		return m.FindByIDFn(ctx, id)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	if r, ok := m.refunds[id]; ok {
		return r, nil
	}
	return nil, domain.NewNotFoundError("refund", id.String())
}

func (m *MockRefundRepository) FindByReference(ctx context.Context, reference string) (*domain.Refund, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, r := range m.refunds {
		if r.RefundReference == reference {
			return r, nil
		}
	}
	return nil, domain.NewNotFoundError("refund", reference)
}

func (m *MockRefundRepository) FindByPaymentID(ctx context.Context, paymentID uuid.UUID) ([]*domain.Refund, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*domain.Refund
	for _, r := range m.refunds {
		if r.PaymentID == paymentID {
			out = append(out, r)
		}
	}
	return out, nil
}

func (m *MockRefundRepository) FindByStatus(ctx context.Context, status domain.RefundStatus, limit, offset int) ([]*domain.Refund, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*domain.Refund
	for _, r := range m.refunds {
		if r.Status == status {
			out = append(out, r)
		}
	}
	return out, nil
}

func (m *MockRefundRepository) FindWithFilters(ctx context.Context, filter application.RefundFilter) ([]*domain.Refund, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*domain.Refund
	for _, r := range m.refunds {
		if filter.PaymentID != nil && r.PaymentID != *filter.PaymentID {
			continue
		}
		if filter.Status != nil && r.Status != *filter.Status {
			continue
		}
		if filter.RequestedBy != nil && r.RequestedBy != *filter.RequestedBy {
			continue
		}
		if filter.ApprovedBy != nil && (r.ApprovedBy == nil || *r.ApprovedBy != *filter.ApprovedBy) {
			continue
		}
		if filter.MinAmount != nil && r.Amount.LessThan(*filter.MinAmount) {
			continue
		}
		if filter.MaxAmount != nil && r.Amount.GreaterThan(*filter.MaxAmount) {
			continue
		}
		if filter.Query != nil {
			q := strings.ToLower(*filter.Query)
			reason := ""
			if r.Reason != nil {
				reason = strings.ToLower(*r.Reason)
			}
			if !strings.Contains(reason, q) &&
				!strings.Contains(strings.ToLower(r.RefundReference), q) {
				continue
			}
		}
		out = append(out, r)
	}
	return out, nil
}

func (m *MockRefundRepository) SumCompletedByPayment(ctx context.Context, paymentID uuid.UUID) (decimal.Decimal, error) {
	if m.SumCompletedByPaymentFn != nil {
		return m.SumCompletedByPaymentFn(ctx, paymentID)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	sum := decimal.Zero
	for _, r := range m.refunds {
		if r.PaymentID == paymentID && r.Status == domain.RefundCompleted {
			sum = sum.Add(r.Amount)
		}
	}
	return sum, nil
}

func (m *MockRefundRepository) Statistics(ctx context.Context, from, to time.Time) (*application.RefundStatistics, error) {
	if m.StatisticsFn != nil {
		return m.StatisticsFn(ctx, from, to)
	}
	return &application.RefundStatistics{}, nil
}

// MockTransactionRepository
type MockTransactionRepository struct {
	mu   sync.RWMutex
	txns map[uuid.UUID]*domain.PaymentTransaction

	SaveFn func(ctx context.Context, tx *domain.PaymentTransaction) error
}

func NewMockTransactionRepository() *MockTransactionRepository {
	return &MockTransactionRepository{txns: make(map[uuid.UUID]*domain.PaymentTransaction)}
}

func (m *MockTransactionRepository) Save(ctx context.Context, tx *domain.PaymentTransaction) error {
	if m.SaveFn != nil {
		return m.SaveFn(ctx, tx)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.txns[tx.ID] = tx
	return nil
}

func (m *MockTransactionRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.PaymentTransaction, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if t, ok := m.txns[id]; ok {
		return t, nil
	}
	return nil, domain.NewNotFoundError("transaction", id.String())
}

func (m *MockTransactionRepository) FindByPaymentID(ctx context.Context, paymentID uuid.UUID) ([]*domain.PaymentTransaction, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*domain.PaymentTransaction
	for _, t := range m.txns {
		if t.PaymentID == paymentID {
			out = append(out, t)
		}
	}
	return out, nil
}

func (m *MockTransactionRepository) FindByType(ctx context.Context, txType domain.TransactionType, limit, offset int) ([]*domain.PaymentTransaction, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*domain.PaymentTransaction
	for _, t := range m.txns {
		if t.Type == txType {
			out = append(out, t)
		}
	}
	return out, nil
}

func (m *MockTransactionRepository) FindByStatus(ctx context.Context, status domain.TransactionStatus, limit, offset int) ([]*domain.PaymentTransaction, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*domain.PaymentTransaction
	for _, t := range m.txns {
		if t.Status == status {
			out = append(out, t)
		}
	}
	return out, nil
}

func (m *MockTransactionRepository) FindByGatewayTransactionID(ctx context.Context, gatewayTransactionID string) (*domain.PaymentTransaction, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, t := range m.txns {
		if t.GatewayTransactionID != nil && *t.GatewayTransactionID == gatewayTransactionID {
			return t, nil
		}
	}
	return nil, domain.NewNotFoundError("transaction", gatewayTransactionID)
}

// All recorded transactions, for assertions.
func (m *MockTransactionRepository) All() []*domain.PaymentTransaction {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*domain.PaymentTransaction, 0, len(m.txns))
	for _, t := range m.txns {
		out = append(out, t)
	}
	return out
}

// MockGatewayClient
type MockGatewayClient struct {
	ProcessPaymentFn func(ctx context.Context, payment *domain.Payment) (*application.GatewayOutcome, error)
	ProcessRefundFn  func(ctx context.Context, refund *domain.Refund, payment *domain.Payment) (*application.GatewayOutcome, error)
	VoidPaymentFn    func(ctx context.Context, payment *domain.Payment) (*application.GatewayOutcome, error)
}

func (m *MockGatewayClient) ProcessPayment(ctx context.Context, payment *domain.Payment) (*application.GatewayOutcome, error) {
	if m.ProcessPaymentFn != nil {
		return m.ProcessPaymentFn(ctx, payment)
	}
	return &application.GatewayOutcome{
		Success:       true,
		TransactionID: "GW-TEST-1",
		Response:      "Payment processed successfully",
	}, nil
}

func (m *MockGatewayClient) ProcessRefund(ctx context.Context, refund *domain.Refund, payment *domain.Payment) (*application.GatewayOutcome, error) {
	if m.ProcessRefundFn != nil {
		return m.ProcessRefundFn(ctx, refund, payment)
	}
	return &application.GatewayOutcome{
		Success:       true,
		TransactionID: "GW-TEST-2",
		Response:      "Refund processed successfully",
	}, nil
}

func (m *MockGatewayClient) VoidPayment(ctx context.Context, payment *domain.Payment) (*application.GatewayOutcome, error) {
	if m.VoidPaymentFn != nil {
		return m.VoidPaymentFn(ctx, payment)
	}
	return &application.GatewayOutcome{Success: true, TransactionID: "GW-TEST-3"}, nil
}

// MockOrderClient
type MockOrderClient struct {
	mu            sync.Mutex
	notifications []application.PaymentStatusUpdate

	GetOrderFn            func(ctx context.Context, orderID uuid.UUID) (*application.Order, error)
	NotifyPaymentStatusFn func(ctx context.Context, orderID uuid.UUID, update application.PaymentStatusUpdate) error
}

func (m *MockOrderClient) GetOrder(ctx context.Context, orderID uuid.UUID) (*application.Order, error) {
	if m.GetOrderFn != nil {
		return m.GetOrderFn(ctx, orderID)
	}
	return &application.Order{ID: orderID, TotalAmount: decimal.NewFromInt(100), Status: "CONFIRMED"}, nil
}

func (m *MockOrderClient) NotifyPaymentStatus(ctx context.Context, orderID uuid.UUID, update application.PaymentStatusUpdate) error {
	if m.NotifyPaymentStatusFn != nil {
		return m.NotifyPaymentStatusFn(ctx, orderID, update)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.notifications = append(m.notifications, update)
	return nil
}

func (m *MockOrderClient) Notifications() []application.PaymentStatusUpdate {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]application.PaymentStatusUpdate, len(m.notifications))
	copy(out, m.notifications)
	return out
}

// MockScheduler records scheduled IDs instead of settling anything.
type MockScheduler struct {
	mu       sync.Mutex
	Payments []uuid.UUID
	Refunds  []uuid.UUID
}

func (m *MockScheduler) SchedulePayment(paymentID uuid.UUID) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Payments = append(m.Payments, paymentID)
}

func (m *MockScheduler) ScheduleRefund(refundID uuid.UUID) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Refunds = append(m.Refunds, refundID)
}

func (m *MockScheduler) ScheduledPayments() []uuid.UUID {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]uuid.UUID, len(m.Payments))
	copy(out, m.Payments)
	return out
}

func (m *MockScheduler) ScheduledRefunds() []uuid.UUID {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]uuid.UUID, len(m.Refunds))
	copy(out, m.Refunds)
	return out
}
