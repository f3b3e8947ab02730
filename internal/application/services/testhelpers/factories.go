package testhelpers

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/amankrmj01/bakery-payment-service/internal/domain"
)

// NewTestPayment builds a PENDING card payment of 100.00 USD.
func NewTestPayment() *domain.Payment {
	payment, err := domain.NewPayment(
		uuid.New(), uuid.New(),
		domain.MethodCard, domain.GatewayMock,
		decimal.NewFromInt(100), "USD",
	)
	if err != nil {
		panic(err)
	}
	return payment
}

// NewCompletedPayment builds a payment that already settled with a 3.20 fee.
func NewCompletedPayment() *domain.Payment {
	payment := NewTestPayment()
	if err := payment.MarkProcessing(); err != nil {
		panic(err)
	}
	if err := payment.Complete(decimal.RequireFromString("3.20")); err != nil {
		panic(err)
	}
	return payment
}

// NewExpiredPayment builds a PENDING payment whose expiry already passed.
func NewExpiredPayment() *domain.Payment {
	payment := NewTestPayment()
	expired := time.Now().Add(-time.Minute)
	payment.ExpiresAt = &expired
	return payment
}

// NewTestRefund builds a PENDING refund over the given payment.
func NewTestRefund(payment *domain.Payment, amount decimal.Decimal) *domain.Refund {
	refund, err := domain.NewRefund(payment, amount, "customer request", uuid.New())
	if err != nil {
		panic(err)
	}
	return refund
}
