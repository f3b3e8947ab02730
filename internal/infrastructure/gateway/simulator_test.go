package gateway_test

import (
	"context"
	"io"
	"log/slog"
	"regexp"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/amankrmj01/bakery-payment-service/internal/domain"
	"github.com/amankrmj01/bakery-payment-service/internal/infrastructure/gateway"
)

func newSimulator(cfg gateway.SimulatorConfig) *gateway.Simulator {
	return gateway.NewSimulator(cfg, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func testPayment(t *testing.T, method domain.PaymentMethod, gw domain.GatewayProvider) *domain.Payment {
	t.Helper()
	payment, err := domain.NewPayment(uuid.New(), uuid.New(), method, gw, decimal.NewFromInt(100), "USD")
	require.NoError(t, err)
	return payment
}

func TestProcessPayment(t *testing.T) {
	ctx := context.Background()
	txnIDPattern := regexp.MustCompile(`^GW-\d{13}-\d{5}$`)

	t.Run("always succeeds at rate 1.0", func(t *testing.T) {
		cfg := gateway.DefaultSimulatorConfig()
		cfg.PaymentSuccessRate = 1.0
		sim := newSimulator(cfg)
		payment := testPayment(t, domain.MethodCard, domain.GatewayStripe)

		for i := 0; i < 20; i++ {
			outcome, err := sim.ProcessPayment(ctx, payment)
			require.NoError(t, err)
			assert.True(t, outcome.Success)
			assert.False(t, outcome.Pending)
			assert.Regexp(t, txnIDPattern, outcome.TransactionID)
			assert.True(t, outcome.Fee.Equal(decimal.RequireFromString("3.20")))
		}
	})

	t.Run("always declines at rate 0.0", func(t *testing.T) {
		cfg := gateway.DefaultSimulatorConfig()
		cfg.PaymentSuccessRate = 0.0
		sim := newSimulator(cfg)
		payment := testPayment(t, domain.MethodCard, domain.GatewayStripe)

		reasons := map[string]bool{
			"Insufficient funds":  true,
			"Card declined":       true,
			"Invalid card number": true,
			"Expired card":        true,
			"Gateway timeout":     true,
		}
		for i := 0; i < 20; i++ {
			outcome, err := sim.ProcessPayment(ctx, payment)
			require.NoError(t, err)
			assert.False(t, outcome.Success)
			assert.Equal(t, "DECLINED", outcome.FailureCode)
			assert.True(t, reasons[outcome.FailureReason], "unexpected reason %q", outcome.FailureReason)
		}
	})

	t.Run("manual gateway always comes back pending", func(t *testing.T) {
		cfg := gateway.DefaultSimulatorConfig()
		cfg.PaymentSuccessRate = 1.0
		sim := newSimulator(cfg)
		payment := testPayment(t, domain.MethodCash, domain.GatewayManual)

		outcome, err := sim.ProcessPayment(ctx, payment)
		require.NoError(t, err)
		assert.False(t, outcome.Success)
		assert.True(t, outcome.Pending)
		assert.Equal(t, "Manual payment awaiting confirmation", outcome.Response)
	})

	t.Run("same seed yields the same outcome sequence", func(t *testing.T) {
		cfg := gateway.DefaultSimulatorConfig()
		cfg.Seed = 42
		a := newSimulator(cfg)
		b := newSimulator(cfg)
		payment := testPayment(t, domain.MethodCard, domain.GatewayStripe)

		for i := 0; i < 50; i++ {
			outA, err := a.ProcessPayment(ctx, payment)
			require.NoError(t, err)
			outB, err := b.ProcessPayment(ctx, payment)
			require.NoError(t, err)
			assert.Equal(t, outA.Success, outB.Success)
			assert.Equal(t, outA.FailureReason, outB.FailureReason)
		}
	})

	t.Run("honors context cancellation", func(t *testing.T) {
		sim := newSimulator(gateway.DefaultSimulatorConfig())
		payment := testPayment(t, domain.MethodCard, domain.GatewayStripe)

		cancelled, cancel := context.WithCancel(ctx)
		cancel()
		_, err := sim.ProcessPayment(cancelled, payment)
		assert.ErrorIs(t, err, context.Canceled)
	})
}

func TestProcessRefund(t *testing.T) {
	ctx := context.Background()

	refundOver := func(t *testing.T, payment *domain.Payment) *domain.Refund {
		t.Helper()
		require.NoError(t, payment.MarkProcessing())
		require.NoError(t, payment.Complete(decimal.Zero))
		refund, err := domain.NewRefund(payment, decimal.NewFromInt(40), "customer request", uuid.New())
		require.NoError(t, err)
		return refund
	}

	t.Run("always succeeds at rate 1.0", func(t *testing.T) {
		cfg := gateway.DefaultSimulatorConfig()
		cfg.RefundSuccessRate = 1.0
		sim := newSimulator(cfg)
		payment := testPayment(t, domain.MethodCard, domain.GatewayStripe)
		refund := refundOver(t, payment)

		outcome, err := sim.ProcessRefund(ctx, refund, payment)
		require.NoError(t, err)
		assert.True(t, outcome.Success)
		assert.Equal(t, "Refund processed successfully", outcome.Response)
	})

	t.Run("always fails at rate 0.0", func(t *testing.T) {
		cfg := gateway.DefaultSimulatorConfig()
		cfg.RefundSuccessRate = 0.0
		sim := newSimulator(cfg)
		payment := testPayment(t, domain.MethodCard, domain.GatewayStripe)
		refund := refundOver(t, payment)

		reasons := map[string]bool{
			"Original transaction not found": true,
			"Refund already processed":       true,
			"Gateway timeout":                true,
			"Invalid refund amount":          true,
		}
		for i := 0; i < 20; i++ {
			outcome, err := sim.ProcessRefund(ctx, refund, payment)
			require.NoError(t, err)
			assert.False(t, outcome.Success)
			assert.Equal(t, "REFUND_FAILED", outcome.FailureCode)
			assert.True(t, reasons[outcome.FailureReason], "unexpected reason %q", outcome.FailureReason)
		}
	})
}

func TestVoidPayment(t *testing.T) {
	sim := newSimulator(gateway.DefaultSimulatorConfig())
	payment := testPayment(t, domain.MethodCard, domain.GatewayStripe)

	outcome, err := sim.VoidPayment(context.Background(), payment)
	require.NoError(t, err)
	assert.True(t, outcome.Success)
	assert.Equal(t, "Authorization voided", outcome.Response)
}

func TestFeeFor(t *testing.T) {
	sim := newSimulator(gateway.DefaultSimulatorConfig())

	t.Run("card fee is rate plus fixed, rounded to cents", func(t *testing.T) {
		fee := sim.FeeFor(domain.MethodCard, decimal.NewFromInt(100))
		assert.True(t, fee.Equal(decimal.RequireFromString("3.20")), "got %s", fee)

		fee = sim.FeeFor(domain.MethodCard, decimal.RequireFromString("19.99"))
		assert.True(t, fee.Equal(decimal.RequireFromString("0.88")), "got %s", fee)
	})

	t.Run("non-card methods carry no fee", func(t *testing.T) {
		for _, method := range []domain.PaymentMethod{
			domain.MethodCash, domain.MethodDigitalWallet, domain.MethodBankTransfer, domain.MethodCrypto,
		} {
			assert.True(t, sim.FeeFor(method, decimal.NewFromInt(100)).IsZero(), string(method))
		}
	})
}
