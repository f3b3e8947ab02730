package handlers

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/amankrmj01/bakery-payment-service/internal/application"
	"github.com/amankrmj01/bakery-payment-service/internal/application/services"
	"github.com/amankrmj01/bakery-payment-service/internal/domain"
	"github.com/amankrmj01/bakery-payment-service/internal/interfaces/rest"
	"github.com/amankrmj01/bakery-payment-service/internal/interfaces/rest/middleware"
)

type PaymentHandler struct {
	payments *services.PaymentService
	logger   *slog.Logger
}

func NewPaymentHandler(payments *services.PaymentService, logger *slog.Logger) *PaymentHandler {
	return &PaymentHandler{payments: payments, logger: logger}
}

func (h *PaymentHandler) Create(c echo.Context) error {
	var req rest.CreatePaymentRequest
	if err := c.Bind(&req); err != nil {
		return rest.BadRequest(c, "malformed request body")
	}
	if err := c.Validate(&req); err != nil {
		return rest.BadRequest(c, err.Error())
	}

	cmd := services.CreatePaymentCommand{
		OrderID:               req.OrderID,
		UserID:                middleware.UserID(c),
		Method:                domain.PaymentMethod(req.Method),
		Gateway:               domain.GatewayProvider(req.Gateway),
		Amount:                req.Amount,
		CurrencyCode:          req.CurrencyCode,
		Description:           req.Description,
		CardLastFour:          req.CardLastFour,
		CardBrand:             req.CardBrand,
		CardType:              req.CardType,
		DigitalWalletProvider: req.DigitalWalletProvider,
		BankName:              req.BankName,
		Metadata:              req.Metadata,
		Notes:                 req.Notes,
	}

	payment, err := h.payments.CreatePayment(c.Request().Context(), cmd)
	if err != nil {
		return rest.Fail(c, h.logger, err)
	}
	return rest.OK(c, http.StatusCreated, rest.FromPayment(payment))
}

func (h *PaymentHandler) GetByID(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return rest.BadRequest(c, "invalid payment ID")
	}

	payment, err := h.payments.GetPayment(c.Request().Context(), id)
	if err != nil {
		return rest.Fail(c, h.logger, err)
	}
	if !middleware.CanAccess(c, payment.UserID) {
		return rest.Fail(c, h.logger, application.NewForbiddenError("payment belongs to another user"))
	}
	return rest.OK(c, http.StatusOK, rest.FromPayment(payment))
}

func (h *PaymentHandler) GetByReference(c echo.Context) error {
	payment, err := h.payments.GetPaymentByReference(c.Request().Context(), c.Param("reference"))
	if err != nil {
		return rest.Fail(c, h.logger, err)
	}
	if !middleware.CanAccess(c, payment.UserID) {
		return rest.Fail(c, h.logger, application.NewForbiddenError("payment belongs to another user"))
	}
	return rest.OK(c, http.StatusOK, rest.FromPayment(payment))
}

func (h *PaymentHandler) GetByOrder(c echo.Context) error {
	orderID, err := uuid.Parse(c.Param("orderId"))
	if err != nil {
		return rest.BadRequest(c, "invalid order ID")
	}

	payment, err := h.payments.GetPaymentByOrderID(c.Request().Context(), orderID)
	if err != nil {
		return rest.Fail(c, h.logger, err)
	}
	if !middleware.CanAccess(c, payment.UserID) {
		return rest.Fail(c, h.logger, application.NewForbiddenError("payment belongs to another user"))
	}
	return rest.OK(c, http.StatusOK, rest.FromPayment(payment))
}

func (h *PaymentHandler) ListByUser(c echo.Context) error {
	userID, err := uuid.Parse(c.Param("userId"))
	if err != nil {
		return rest.BadRequest(c, "invalid user ID")
	}
	if !middleware.CanAccess(c, userID) {
		return rest.Fail(c, h.logger, application.NewForbiddenError("cannot list another user's payments"))
	}

	limit, offset := pagination(c)
	payments, err := h.payments.ListPaymentsByUser(c.Request().Context(), userID, limit, offset)
	if err != nil {
		return rest.Fail(c, h.logger, err)
	}
	return rest.OK(c, http.StatusOK, rest.FromPayments(payments))
}

func (h *PaymentHandler) ListByStatus(c echo.Context) error {
	status := domain.PaymentStatus(c.Param("status"))
	if !validPaymentStatus(status) {
		return rest.BadRequest(c, "invalid payment status")
	}

	limit, offset := pagination(c)
	payments, err := h.payments.ListPaymentsByStatus(c.Request().Context(), status, limit, offset)
	if err != nil {
		return rest.Fail(c, h.logger, err)
	}
	return rest.OK(c, http.StatusOK, rest.FromPayments(payments))
}

func (h *PaymentHandler) ListAll(c echo.Context) error {
	limit, offset := pagination(c)
	payments, err := h.payments.ListAllPayments(c.Request().Context(), limit, offset)
	if err != nil {
		return rest.Fail(c, h.logger, err)
	}
	return rest.OK(c, http.StatusOK, rest.FromPayments(payments))
}

func (h *PaymentHandler) UpdateStatus(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return rest.BadRequest(c, "invalid payment ID")
	}

	var req rest.UpdatePaymentStatusRequest
	if err := c.Bind(&req); err != nil {
		return rest.BadRequest(c, "malformed request body")
	}
	if err := c.Validate(&req); err != nil {
		return rest.BadRequest(c, err.Error())
	}

	payment, err := h.payments.UpdatePaymentStatus(c.Request().Context(), services.UpdatePaymentStatusCommand{
		PaymentID: id,
		Status:    domain.PaymentStatus(req.Status),
		Reason:    req.Reason,
		Notes:     req.Notes,
	})
	if err != nil {
		return rest.Fail(c, h.logger, err)
	}
	return rest.OK(c, http.StatusOK, rest.FromPayment(payment))
}

func (h *PaymentHandler) Cancel(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return rest.BadRequest(c, "invalid payment ID")
	}

	var req rest.CancelPaymentRequest
	if err := c.Bind(&req); err != nil {
		return rest.BadRequest(c, "malformed request body")
	}

	existing, err := h.payments.GetPayment(c.Request().Context(), id)
	if err != nil {
		return rest.Fail(c, h.logger, err)
	}
	if !middleware.CanAccess(c, existing.UserID) {
		return rest.Fail(c, h.logger, application.NewForbiddenError("payment belongs to another user"))
	}

	payment, err := h.payments.CancelPayment(c.Request().Context(), services.CancelPaymentCommand{
		PaymentID: id,
		Reason:    req.Reason,
	})
	if err != nil {
		return rest.Fail(c, h.logger, err)
	}
	return rest.OK(c, http.StatusOK, rest.FromPayment(payment))
}

func (h *PaymentHandler) Retry(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return rest.BadRequest(c, "invalid payment ID")
	}

	existing, err := h.payments.GetPayment(c.Request().Context(), id)
	if err != nil {
		return rest.Fail(c, h.logger, err)
	}
	if !middleware.CanAccess(c, existing.UserID) {
		return rest.Fail(c, h.logger, application.NewForbiddenError("payment belongs to another user"))
	}

	payment, err := h.payments.RetryPayment(c.Request().Context(), id)
	if err != nil {
		return rest.Fail(c, h.logger, err)
	}
	return rest.OK(c, http.StatusOK, rest.FromPayment(payment))
}

func (h *PaymentHandler) Statistics(c echo.Context) error {
	from, to, err := dateRange(c)
	if err != nil {
		return rest.BadRequest(c, err.Error())
	}

	stats, err := h.payments.GetPaymentStatistics(c.Request().Context(), from, to)
	if err != nil {
		return rest.Fail(c, h.logger, err)
	}
	return rest.OK(c, http.StatusOK, rest.PaymentStatsResponse(from, to, stats))
}

func validPaymentStatus(status domain.PaymentStatus) bool {
	for _, s := range domain.PaymentStatuses {
		if s == status {
			return true
		}
	}
	return false
}

func pagination(c echo.Context) (limit, offset int) {
	limit, _ = strconv.Atoi(c.QueryParam("limit"))
	offset, _ = strconv.Atoi(c.QueryParam("offset"))
	return limit, offset
}

// dateRange parses from/to query params, defaulting to the last 30 days.
func dateRange(c echo.Context) (time.Time, time.Time, error) {
	now := time.Now()
	from := now.AddDate(0, 0, -30)
	to := now

	if raw := c.QueryParam("from"); raw != "" {
		parsed, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return time.Time{}, time.Time{}, errors.New("invalid from date, expected RFC3339")
		}
		from = parsed
	}
	if raw := c.QueryParam("to"); raw != "" {
		parsed, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return time.Time{}, time.Time{}, errors.New("invalid to date, expected RFC3339")
		}
		to = parsed
	}
	return from, to, nil
}
