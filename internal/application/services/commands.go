package services

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/amankrmj01/bakery-payment-service/internal/domain"
)

// CreatePaymentCommand captures everything needed to open a payment for an
// order. Descriptor fields are optional display-only details.
type CreatePaymentCommand struct {
	OrderID      uuid.UUID
	UserID       uuid.UUID
	Method       domain.PaymentMethod
	Gateway      domain.GatewayProvider
	Amount       decimal.Decimal
	CurrencyCode string
	Description  string

	CardLastFour          string
	CardBrand             string
	CardType              string
	DigitalWalletProvider string
	BankName              string

	Metadata string
	Notes    string
}

// UpdatePaymentStatusCommand drives an explicit administrative transition.
type UpdatePaymentStatusCommand struct {
	PaymentID uuid.UUID
	Status    domain.PaymentStatus
	Reason    string
	Notes     string
}

type CancelPaymentCommand struct {
	PaymentID uuid.UUID
	Reason    string
}

type CreateRefundCommand struct {
	PaymentID   uuid.UUID
	Amount      decimal.Decimal
	Reason      string
	RequestedBy uuid.UUID
	Metadata    string
	Notes       string
}

type ApproveRefundCommand struct {
	RefundID   uuid.UUID
	ApprovedBy uuid.UUID
}

type RejectRefundCommand struct {
	RefundID   uuid.UUID
	Reason     string
	RejectedBy uuid.UUID
}
