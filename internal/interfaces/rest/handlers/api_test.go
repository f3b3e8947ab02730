package handlers_test

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/amankrmj01/bakery-payment-service/internal/application"
	"github.com/amankrmj01/bakery-payment-service/internal/application/services"
	"github.com/amankrmj01/bakery-payment-service/internal/application/services/testhelpers"
	"github.com/amankrmj01/bakery-payment-service/internal/domain"
	"github.com/amankrmj01/bakery-payment-service/internal/interfaces/rest/handlers"
	"github.com/amankrmj01/bakery-payment-service/internal/interfaces/rest/middleware"
)

type apiFixture struct {
	payments *testhelpers.MockPaymentRepository
	refunds  *testhelpers.MockRefundRepository
	orders   *testhelpers.MockOrderClient
	router   *echo.Echo
}

func newAPIFixture() *apiFixture {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	f := &apiFixture{
		payments: testhelpers.NewMockPaymentRepository(),
		refunds:  testhelpers.NewMockRefundRepository(),
		orders:   &testhelpers.MockOrderClient{},
	}
	txns := testhelpers.NewMockTransactionRepository()
	gateway := &testhelpers.MockGatewayClient{}
	scheduler := &testhelpers.MockScheduler{}

	paymentService := services.NewPaymentService(
		f.payments, txns, gateway, f.orders, scheduler,
		services.DefaultPaymentLimits(), logger)
	refundService := services.NewRefundService(
		f.refunds, f.payments, txns, gateway, f.orders, scheduler, logger)
	txnService := services.NewTransactionService(txns, logger)

	f.router = handlers.NewRouter(
		handlers.NewPaymentHandler(paymentService, logger),
		handlers.NewRefundHandler(refundService, paymentService, logger),
		handlers.NewTransactionHandler(txnService, paymentService, logger),
		handlers.NewHealthHandler(nil),
		logger,
	)
	return f
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func (f *apiFixture) request(t *testing.T, method, path, body string, userID uuid.UUID, role string) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	if userID != uuid.Nil {
		req.Header.Set(middleware.HeaderUserID, userID.String())
	}
	if role != "" {
		req.Header.Set(middleware.HeaderUserRole, role)
	}
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)

	var env envelope
	if rec.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env), rec.Body.String())
	}
	return rec, env
}

func TestHealthEndpoint(t *testing.T) {
	f := newAPIFixture()
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"ok"`)
}

func TestIdentityMiddleware(t *testing.T) {
	f := newAPIFixture()

	t.Run("missing user header is unauthenticated", func(t *testing.T) {
		rec, env := f.request(t, http.MethodGet, "/api/payments/"+uuid.NewString(), "", uuid.Nil, "")
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		require.NotNil(t, env.Error)
		assert.False(t, env.Success)
	})

	t.Run("admin-only routes reject regular users", func(t *testing.T) {
		rec, _ := f.request(t, http.MethodGet, "/api/payments/status/PENDING", "", uuid.New(), "")
		assert.Equal(t, http.StatusForbidden, rec.Code)
	})
}

func TestCreatePaymentEndpoint(t *testing.T) {
	t.Run("creates a payment for the caller", func(t *testing.T) {
		f := newAPIFixture()
		userID := uuid.New()
		body := `{"orderId":"` + uuid.NewString() + `","method":"CARD","gateway":"MOCK","amount":"100"}`

		rec, env := f.request(t, http.MethodPost, "/api/payments", body, userID, "")
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
		assert.True(t, env.Success)

		var payment struct {
			Status string `json:"status"`
			UserID string `json:"userId"`
		}
		require.NoError(t, json.Unmarshal(env.Data, &payment))
		assert.Equal(t, "PENDING", payment.Status)
		assert.Equal(t, userID.String(), payment.UserID)
	})

	t.Run("rejects an invalid method", func(t *testing.T) {
		f := newAPIFixture()
		body := `{"orderId":"` + uuid.NewString() + `","method":"IOU","amount":"100"}`

		rec, env := f.request(t, http.MethodPost, "/api/payments", body, uuid.New(), "")
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		require.NotNil(t, env.Error)
		assert.Equal(t, "VALIDATION_ERROR", env.Error.Code)
	})

	t.Run("surfaces amount mismatch as a validation error", func(t *testing.T) {
		f := newAPIFixture()
		body := `{"orderId":"` + uuid.NewString() + `","method":"CARD","amount":"55"}`

		rec, env := f.request(t, http.MethodPost, "/api/payments", body, uuid.New(), "")
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		require.NotNil(t, env.Error)
		assert.Equal(t, "VALIDATION_ERROR", env.Error.Code)
	})

	t.Run("maps order service outage to 503", func(t *testing.T) {
		f := newAPIFixture()
		f.orders.GetOrderFn = func(ctx context.Context, orderID uuid.UUID) (*application.Order, error) {
			return nil, context.DeadlineExceeded
		}
		body := `{"orderId":"` + uuid.NewString() + `","method":"CARD","amount":"100"}`

		rec, env := f.request(t, http.MethodPost, "/api/payments", body, uuid.New(), "")
		assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
		require.NotNil(t, env.Error)
		assert.Equal(t, application.ErrCodeCollaboratorUnavailable, env.Error.Code)
	})
}

func TestPaymentOwnership(t *testing.T) {
	ctx := context.Background()

	t.Run("owner can read their payment", func(t *testing.T) {
		f := newAPIFixture()
		payment := testhelpers.NewTestPayment()
		require.NoError(t, f.payments.Save(ctx, payment))

		rec, env := f.request(t, http.MethodGet, "/api/payments/"+payment.ID.String(), "", payment.UserID, "")
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.True(t, env.Success)
	})

	t.Run("stranger is forbidden", func(t *testing.T) {
		f := newAPIFixture()
		payment := testhelpers.NewTestPayment()
		require.NoError(t, f.payments.Save(ctx, payment))

		rec, env := f.request(t, http.MethodGet, "/api/payments/"+payment.ID.String(), "", uuid.New(), "")
		assert.Equal(t, http.StatusForbidden, rec.Code)
		assert.Equal(t, application.ErrCodeForbidden, env.Error.Code)
	})

	t.Run("admin can read any payment", func(t *testing.T) {
		f := newAPIFixture()
		payment := testhelpers.NewTestPayment()
		require.NoError(t, f.payments.Save(ctx, payment))

		rec, _ := f.request(t, http.MethodGet, "/api/payments/"+payment.ID.String(), "", uuid.New(), middleware.RoleAdmin)
		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("unknown payment is 404", func(t *testing.T) {
		f := newAPIFixture()
		rec, env := f.request(t, http.MethodGet, "/api/payments/"+uuid.NewString(), "", uuid.New(), "")
		assert.Equal(t, http.StatusNotFound, rec.Code)
		assert.Equal(t, domain.ErrCodeNotFound, env.Error.Code)
	})
}

func TestRefundEndpoints(t *testing.T) {
	ctx := context.Background()

	t.Run("owner requests a refund on a completed payment", func(t *testing.T) {
		f := newAPIFixture()
		payment := testhelpers.NewCompletedPayment()
		require.NoError(t, f.payments.Save(ctx, payment))

		body := `{"paymentId":"` + payment.ID.String() + `","amount":"40","reason":"stale croissants"}`
		rec, env := f.request(t, http.MethodPost, "/api/refunds", body, payment.UserID, "")
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

		var refund struct {
			Status string `json:"status"`
		}
		require.NoError(t, json.Unmarshal(env.Data, &refund))
		assert.Equal(t, "PENDING", refund.Status)
	})

	t.Run("refund on a pending payment is rejected", func(t *testing.T) {
		f := newAPIFixture()
		payment := testhelpers.NewTestPayment()
		require.NoError(t, f.payments.Save(ctx, payment))

		body := `{"paymentId":"` + payment.ID.String() + `","amount":"40","reason":"wrong order"}`
		rec, env := f.request(t, http.MethodPost, "/api/refunds", body, payment.UserID, "")
		assert.Equal(t, http.StatusConflict, rec.Code)
		assert.Equal(t, domain.ErrCodeRefundNotAllowed, env.Error.Code)
	})

	t.Run("approval is admin only", func(t *testing.T) {
		f := newAPIFixture()
		payment := testhelpers.NewCompletedPayment()
		require.NoError(t, f.payments.Save(ctx, payment))
		refund := testhelpers.NewTestRefund(payment, decimal.NewFromInt(40))
		require.NoError(t, f.refunds.Save(ctx, refund))

		rec, _ := f.request(t, http.MethodPost, "/api/refunds/"+refund.ID.String()+"/approve", "", payment.UserID, "")
		assert.Equal(t, http.StatusForbidden, rec.Code)

		rec, env := f.request(t, http.MethodPost, "/api/refunds/"+refund.ID.String()+"/approve", "", uuid.New(), middleware.RoleAdmin)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		var approved struct {
			Status string `json:"status"`
		}
		require.NoError(t, json.Unmarshal(env.Data, &approved))
		assert.Equal(t, "PROCESSING", approved.Status)
	})

	t.Run("rejection needs a reason", func(t *testing.T) {
		f := newAPIFixture()
		payment := testhelpers.NewCompletedPayment()
		require.NoError(t, f.payments.Save(ctx, payment))
		refund := testhelpers.NewTestRefund(payment, decimal.NewFromInt(40))
		require.NoError(t, f.refunds.Save(ctx, refund))

		rec, _ := f.request(t, http.MethodPost, "/api/refunds/"+refund.ID.String()+"/reject", `{}`, uuid.New(), middleware.RoleAdmin)
		assert.Equal(t, http.StatusBadRequest, rec.Code)

		rec, env := f.request(t, http.MethodPost, "/api/refunds/"+refund.ID.String()+"/reject",
			`{"reason":"no receipt"}`, uuid.New(), middleware.RoleAdmin)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		var rejected struct {
			Status string `json:"status"`
		}
		require.NoError(t, json.Unmarshal(env.Data, &rejected))
		assert.Equal(t, "FAILED", rejected.Status)
	})
}

func TestAdminListingEndpoints(t *testing.T) {
	ctx := context.Background()

	t.Run("admin lists every payment", func(t *testing.T) {
		f := newAPIFixture()
		require.NoError(t, f.payments.Save(ctx, testhelpers.NewTestPayment()))
		require.NoError(t, f.payments.Save(ctx, testhelpers.NewCompletedPayment()))

		rec, env := f.request(t, http.MethodGet, "/api/payments", "", uuid.New(), middleware.RoleAdmin)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		var payments []json.RawMessage
		require.NoError(t, json.Unmarshal(env.Data, &payments))
		assert.Len(t, payments, 2)
	})

	t.Run("list-all is admin only", func(t *testing.T) {
		f := newAPIFixture()
		rec, _ := f.request(t, http.MethodGet, "/api/payments", "", uuid.New(), "")
		assert.Equal(t, http.StatusForbidden, rec.Code)
	})

	t.Run("refund search finds by reason", func(t *testing.T) {
		f := newAPIFixture()
		payment := testhelpers.NewCompletedPayment()
		require.NoError(t, f.payments.Save(ctx, payment))

		refund := testhelpers.NewTestRefund(payment, decimal.NewFromInt(10))
		require.NoError(t, f.refunds.Save(ctx, refund))

		rec, env := f.request(t, http.MethodGet, "/api/refunds/search?q=customer", "", uuid.New(), middleware.RoleAdmin)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		var refunds []json.RawMessage
		require.NoError(t, json.Unmarshal(env.Data, &refunds))
		assert.Len(t, refunds, 1)
	})

	t.Run("requester lists their own refunds", func(t *testing.T) {
		f := newAPIFixture()
		payment := testhelpers.NewCompletedPayment()
		require.NoError(t, f.payments.Save(ctx, payment))

		refund := testhelpers.NewTestRefund(payment, decimal.NewFromInt(10))
		require.NoError(t, f.refunds.Save(ctx, refund))

		rec, _ := f.request(t, http.MethodGet, "/api/refunds/user/"+refund.RequestedBy.String(), "", refund.RequestedBy, "")
		assert.Equal(t, http.StatusOK, rec.Code)

		rec, env := f.request(t, http.MethodGet, "/api/refunds/user/"+refund.RequestedBy.String(), "", uuid.New(), "")
		assert.Equal(t, http.StatusForbidden, rec.Code)
		assert.Equal(t, application.ErrCodeForbidden, env.Error.Code)
	})
}
