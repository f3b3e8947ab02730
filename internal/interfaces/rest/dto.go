package rest

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/amankrmj01/bakery-payment-service/internal/application"
	"github.com/amankrmj01/bakery-payment-service/internal/domain"
)

type CreatePaymentRequest struct {
	OrderID      uuid.UUID       `json:"orderId" validate:"required"`
	Method       string          `json:"method" validate:"required,oneof=CASH CARD DIGITAL_WALLET BANK_TRANSFER CRYPTO"`
	Gateway      string          `json:"gateway" validate:"omitempty,oneof=STRIPE PAYPAL SQUARE MANUAL MOCK"`
	Amount       decimal.Decimal `json:"amount" validate:"required"`
	CurrencyCode string          `json:"currencyCode" validate:"omitempty,len=3"`
	Description  string          `json:"description" validate:"omitempty,max=500"`

	CardLastFour          string `json:"cardLastFour" validate:"omitempty,len=4,numeric"`
	CardBrand             string `json:"cardBrand" validate:"omitempty,max=50"`
	CardType              string `json:"cardType" validate:"omitempty,max=50"`
	DigitalWalletProvider string `json:"digitalWalletProvider" validate:"omitempty,max=50"`
	BankName              string `json:"bankName" validate:"omitempty,max=100"`

	Metadata string `json:"metadata" validate:"omitempty,max=2000"`
	Notes    string `json:"notes" validate:"omitempty,max=1000"`
}

type UpdatePaymentStatusRequest struct {
	Status string `json:"status" validate:"required,oneof=PENDING PROCESSING COMPLETED FAILED CANCELLED REFUNDED"`
	Reason string `json:"reason" validate:"omitempty,max=500"`
	Notes  string `json:"notes" validate:"omitempty,max=1000"`
}

type CancelPaymentRequest struct {
	Reason string `json:"reason" validate:"omitempty,max=500"`
}

type CreateRefundRequest struct {
	PaymentID uuid.UUID       `json:"paymentId" validate:"required"`
	Amount    decimal.Decimal `json:"amount" validate:"required"`
	Reason    string          `json:"reason" validate:"required,max=500"`
	Metadata  string          `json:"metadata" validate:"omitempty,max=2000"`
	Notes     string          `json:"notes" validate:"omitempty,max=1000"`
}

type RejectRefundRequest struct {
	Reason string `json:"reason" validate:"required,max=500"`
}

type PaymentResponse struct {
	ID               uuid.UUID       `json:"id"`
	PaymentReference string          `json:"paymentReference"`
	OrderID          uuid.UUID       `json:"orderId"`
	UserID           uuid.UUID       `json:"userId"`
	Method           string          `json:"method"`
	Gateway          string          `json:"gateway"`
	Status           string          `json:"status"`
	Amount           decimal.Decimal `json:"amount"`
	CurrencyCode     string          `json:"currencyCode"`
	Description      *string         `json:"description,omitempty"`

	CardLastFour          *string `json:"cardLastFour,omitempty"`
	CardBrand             *string `json:"cardBrand,omitempty"`
	DigitalWalletProvider *string `json:"digitalWalletProvider,omitempty"`
	BankName              *string `json:"bankName,omitempty"`

	GatewayPaymentID *string `json:"gatewayPaymentId,omitempty"`
	GatewayResponse  *string `json:"gatewayResponse,omitempty"`
	FailureReason    *string `json:"failureReason,omitempty"`
	FailureCode      *string `json:"failureCode,omitempty"`
	RetryCount       int     `json:"retryCount"`

	GatewayFee decimal.Decimal `json:"gatewayFee"`
	NetAmount  decimal.Decimal `json:"netAmount"`

	CreatedAt    time.Time  `json:"createdAt"`
	UpdatedAt    time.Time  `json:"updatedAt"`
	AuthorizedAt *time.Time `json:"authorizedAt,omitempty"`
	CapturedAt   *time.Time `json:"capturedAt,omitempty"`
	FailedAt     *time.Time `json:"failedAt,omitempty"`
	CancelledAt  *time.Time `json:"cancelledAt,omitempty"`
	ExpiresAt    *time.Time `json:"expiresAt,omitempty"`

	RefundedAmount   decimal.Decimal       `json:"refundedAmount"`
	RefundableAmount decimal.Decimal       `json:"refundableAmount"`
	Transactions     []TransactionResponse `json:"transactions,omitempty"`
	Refunds          []RefundResponse      `json:"refunds,omitempty"`
}

type RefundResponse struct {
	ID              uuid.UUID       `json:"id"`
	RefundReference string          `json:"refundReference"`
	PaymentID       uuid.UUID       `json:"paymentId"`
	Status          string          `json:"status"`
	Amount          decimal.Decimal `json:"amount"`
	CurrencyCode    string          `json:"currencyCode"`
	Reason          *string         `json:"reason,omitempty"`
	GatewayRefundID *string         `json:"gatewayRefundId,omitempty"`
	FailureReason   *string         `json:"failureReason,omitempty"`
	FailureCode     *string         `json:"failureCode,omitempty"`
	RequestedBy     uuid.UUID       `json:"requestedBy"`
	ApprovedBy      *uuid.UUID      `json:"approvedBy,omitempty"`
	CreatedAt       time.Time       `json:"createdAt"`
	ProcessedAt     *time.Time      `json:"processedAt,omitempty"`
	CompletedAt     *time.Time      `json:"completedAt,omitempty"`
	FailedAt        *time.Time      `json:"failedAt,omitempty"`
}

type TransactionResponse struct {
	ID                   uuid.UUID       `json:"id"`
	PaymentID            uuid.UUID       `json:"paymentId"`
	Type                 string          `json:"type"`
	Status               string          `json:"status"`
	Amount               decimal.Decimal `json:"amount"`
	CurrencyCode         string          `json:"currencyCode"`
	GatewayTransactionID *string         `json:"gatewayTransactionId,omitempty"`
	FailureReason        *string         `json:"failureReason,omitempty"`
	FailureCode          *string         `json:"failureCode,omitempty"`
	CreatedAt            time.Time       `json:"createdAt"`
	ProcessedAt          *time.Time      `json:"processedAt,omitempty"`
	Description          *string         `json:"description,omitempty"`
}

type TransactionSummaryResponse struct {
	PaymentID     uuid.UUID        `json:"paymentId"`
	TotalCount    int64            `json:"totalCount"`
	TotalAmount   decimal.Decimal  `json:"totalAmount"`
	CountByStatus map[string]int64 `json:"countByStatus"`
	CountByType   map[string]int64 `json:"countByType"`
}

type StatisticsResponse struct {
	From time.Time `json:"from"`
	To   time.Time `json:"to"`
	Data any       `json:"data"`
}

func FromPayment(p *domain.Payment) PaymentResponse {
	resp := PaymentResponse{
		ID:                    p.ID,
		PaymentReference:      p.PaymentReference,
		OrderID:               p.OrderID,
		UserID:                p.UserID,
		Method:                string(p.Method),
		Gateway:               string(p.Gateway),
		Status:                string(p.Status),
		Amount:                p.Amount,
		CurrencyCode:          p.CurrencyCode,
		Description:           p.Description,
		CardLastFour:          p.CardLastFour,
		CardBrand:             p.CardBrand,
		DigitalWalletProvider: p.DigitalWalletProvider,
		BankName:              p.BankName,
		GatewayPaymentID:      p.GatewayPaymentID,
		GatewayResponse:       p.GatewayResponse,
		FailureReason:         p.FailureReason,
		FailureCode:           p.FailureCode,
		RetryCount:            p.RetryCount,
		GatewayFee:            p.GatewayFee,
		NetAmount:             p.NetAmount,
		CreatedAt:             p.CreatedAt,
		UpdatedAt:             p.UpdatedAt,
		AuthorizedAt:          p.AuthorizedAt,
		CapturedAt:            p.CapturedAt,
		FailedAt:              p.FailedAt,
		CancelledAt:           p.CancelledAt,
		ExpiresAt:             p.ExpiresAt,
		RefundedAmount:        p.TotalRefundedAmount(),
		RefundableAmount:      p.RefundableAmount(),
	}

	for _, tx := range p.Transactions {
		resp.Transactions = append(resp.Transactions, FromTransaction(tx))
	}
	for _, rf := range p.Refunds {
		resp.Refunds = append(resp.Refunds, FromRefund(rf))
	}
	return resp
}

func FromPayments(payments []*domain.Payment) []PaymentResponse {
	out := make([]PaymentResponse, 0, len(payments))
	for _, p := range payments {
		out = append(out, FromPayment(p))
	}
	return out
}

func FromRefund(r *domain.Refund) RefundResponse {
	return RefundResponse{
		ID:              r.ID,
		RefundReference: r.RefundReference,
		PaymentID:       r.PaymentID,
		Status:          string(r.Status),
		Amount:          r.Amount,
		CurrencyCode:    r.CurrencyCode,
		Reason:          r.Reason,
		GatewayRefundID: r.GatewayRefundID,
		FailureReason:   r.FailureReason,
		FailureCode:     r.FailureCode,
		RequestedBy:     r.RequestedBy,
		ApprovedBy:      r.ApprovedBy,
		CreatedAt:       r.CreatedAt,
		ProcessedAt:     r.ProcessedAt,
		CompletedAt:     r.CompletedAt,
		FailedAt:        r.FailedAt,
	}
}

func FromRefunds(refunds []*domain.Refund) []RefundResponse {
	out := make([]RefundResponse, 0, len(refunds))
	for _, r := range refunds {
		out = append(out, FromRefund(r))
	}
	return out
}

func FromTransaction(t *domain.PaymentTransaction) TransactionResponse {
	return TransactionResponse{
		ID:                   t.ID,
		PaymentID:            t.PaymentID,
		Type:                 string(t.Type),
		Status:               string(t.Status),
		Amount:               t.Amount,
		CurrencyCode:         t.CurrencyCode,
		GatewayTransactionID: t.GatewayTransactionID,
		FailureReason:        t.FailureReason,
		FailureCode:          t.FailureCode,
		CreatedAt:            t.CreatedAt,
		ProcessedAt:          t.ProcessedAt,
		Description:          t.Description,
	}
}

func FromTransactions(txs []*domain.PaymentTransaction) []TransactionResponse {
	out := make([]TransactionResponse, 0, len(txs))
	for _, t := range txs {
		out = append(out, FromTransaction(t))
	}
	return out
}

func FromTransactionSummary(s *application.TransactionSummary) TransactionSummaryResponse {
	resp := TransactionSummaryResponse{
		PaymentID:     s.PaymentID,
		TotalCount:    s.TotalCount,
		TotalAmount:   s.TotalAmount,
		CountByStatus: make(map[string]int64, len(s.CountByStatus)),
		CountByType:   make(map[string]int64, len(s.CountByType)),
	}
	for _, g := range s.CountByStatus {
		resp.CountByStatus[g.Key] = g.Count
	}
	for _, g := range s.CountByType {
		resp.CountByType[g.Key] = g.Count
	}
	return resp
}

func PaymentStatsResponse(from, to time.Time, stats *application.PaymentStatistics) StatisticsResponse {
	return StatisticsResponse{From: from, To: to, Data: stats}
}

func RefundStatsResponse(from, to time.Time, stats *application.RefundStatistics) StatisticsResponse {
	return StatisticsResponse{From: from, To: to, Data: stats}
}
