// Package gateway provides a deterministic-enough payment provider simulator
// used in place of live Stripe/PayPal/Square integrations.
package gateway

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/amankrmj01/bakery-payment-service/internal/application"
	"github.com/amankrmj01/bakery-payment-service/internal/domain"
)

// SimulatorConfig tunes the simulated provider behavior.
type SimulatorConfig struct {
	PaymentSuccessRate float64
	RefundSuccessRate  float64
	CardFeeRate        decimal.Decimal
	CardFeeFixed       decimal.Decimal
	Seed               int64
}

// DefaultSimulatorConfig mirrors typical card-processing economics: 2.9% plus
// 30 cents per card transaction, 90% of payments and 95% of refunds succeed.
func DefaultSimulatorConfig() SimulatorConfig {
	return SimulatorConfig{
		PaymentSuccessRate: 0.90,
		RefundSuccessRate:  0.95,
		CardFeeRate:        decimal.RequireFromString("0.029"),
		CardFeeFixed:       decimal.RequireFromString("0.30"),
		Seed:               time.Now().UnixNano(),
	}
}

var paymentFailureReasons = []string{
	"Insufficient funds",
	"Card declined",
	"Invalid card number",
	"Expired card",
	"Gateway timeout",
}

var refundFailureReasons = []string{
	"Original transaction not found",
	"Refund already processed",
	"Gateway timeout",
	"Invalid refund amount",
}

// Simulator implements application.GatewayClient against an in-memory random
// model instead of the wire.
type Simulator struct {
	cfg    SimulatorConfig
	logger *slog.Logger

	mu  sync.Mutex
	rng *rand.Rand
}

func NewSimulator(cfg SimulatorConfig, logger *slog.Logger) *Simulator {
	return &Simulator{
		cfg:    cfg,
		logger: logger.With("component", "gateway-simulator"),
		rng:    rand.New(rand.NewSource(cfg.Seed)),
	}
}

var _ application.GatewayClient = (*Simulator)(nil)

// ProcessPayment simulates a charge. The MANUAL gateway always comes back
// pending; every other provider succeeds or declines per the configured rate.
func (s *Simulator) ProcessPayment(ctx context.Context, payment *domain.Payment) (*application.GatewayOutcome, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	txnID := s.newTransactionID()

	if payment.Gateway == domain.GatewayManual {
		s.logger.InfoContext(ctx, "manual gateway, payment left pending",
			"payment_id", payment.ID)
		return &application.GatewayOutcome{
			Pending:       true,
			TransactionID: txnID,
			Response:      "Manual payment awaiting confirmation",
			RawResponse:   s.rawResponse(payment.Gateway, txnID, "pending"),
		}, nil
	}

	if s.roll() < s.cfg.PaymentSuccessRate {
		return &application.GatewayOutcome{
			Success:       true,
			TransactionID: txnID,
			Response:      "Payment processed successfully",
			RawResponse:   s.rawResponse(payment.Gateway, txnID, "succeeded"),
			Fee:           s.FeeFor(payment.Method, payment.Amount),
		}, nil
	}

	reason := s.pick(paymentFailureReasons)
	return &application.GatewayOutcome{
		TransactionID: txnID,
		Response:      reason,
		RawResponse:   s.rawResponse(payment.Gateway, txnID, "failed"),
		FailureReason: reason,
		FailureCode:   "DECLINED",
	}, nil
}

// ProcessRefund simulates returning funds for a prior charge.
func (s *Simulator) ProcessRefund(ctx context.Context, refund *domain.Refund, payment *domain.Payment) (*application.GatewayOutcome, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	txnID := s.newTransactionID()

	if s.roll() < s.cfg.RefundSuccessRate {
		return &application.GatewayOutcome{
			Success:       true,
			TransactionID: txnID,
			Response:      "Refund processed successfully",
			RawResponse:   s.rawResponse(payment.Gateway, txnID, "refunded"),
		}, nil
	}

	reason := s.pick(refundFailureReasons)
	return &application.GatewayOutcome{
		TransactionID: txnID,
		Response:      reason,
		RawResponse:   s.rawResponse(payment.Gateway, txnID, "failed"),
		FailureReason: reason,
		FailureCode:   "REFUND_FAILED",
	}, nil
}

// VoidPayment releases an authorization hold. Voids always succeed in the
// simulator.
func (s *Simulator) VoidPayment(ctx context.Context, payment *domain.Payment) (*application.GatewayOutcome, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	txnID := s.newTransactionID()
	return &application.GatewayOutcome{
		Success:       true,
		TransactionID: txnID,
		Response:      "Authorization voided",
		RawResponse:   s.rawResponse(payment.Gateway, txnID, "voided"),
	}, nil
}

// FeeFor computes the provider fee. Only card payments carry one; everything
// else settles gross.
func (s *Simulator) FeeFor(method domain.PaymentMethod, amount decimal.Decimal) decimal.Decimal {
	if method != domain.MethodCard {
		return decimal.Zero
	}
	return amount.Mul(s.cfg.CardFeeRate).Add(s.cfg.CardFeeFixed).Round(2)
}

func (s *Simulator) newTransactionID() string {
	s.mu.Lock()
	n := 10000 + s.rng.Intn(90000)
	s.mu.Unlock()
	return fmt.Sprintf("GW-%d-%d", time.Now().UnixMilli(), n)
}

func (s *Simulator) roll() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rng.Float64()
}

func (s *Simulator) pick(reasons []string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return reasons[s.rng.Intn(len(reasons))]
}

func (s *Simulator) rawResponse(gw domain.GatewayProvider, txnID, status string) string {
	return fmt.Sprintf(`{"provider":%q,"transaction_id":%q,"status":%q,"timestamp":%q}`,
		gw, txnID, status, time.Now().UTC().Format(time.RFC3339))
}
