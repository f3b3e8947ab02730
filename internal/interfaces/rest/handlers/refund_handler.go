package handlers

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"

	"github.com/amankrmj01/bakery-payment-service/internal/application"
	"github.com/amankrmj01/bakery-payment-service/internal/application/services"
	"github.com/amankrmj01/bakery-payment-service/internal/domain"
	"github.com/amankrmj01/bakery-payment-service/internal/interfaces/rest"
	"github.com/amankrmj01/bakery-payment-service/internal/interfaces/rest/middleware"
)

type RefundHandler struct {
	refunds  *services.RefundService
	payments *services.PaymentService
	logger   *slog.Logger
}

func NewRefundHandler(refunds *services.RefundService, payments *services.PaymentService, logger *slog.Logger) *RefundHandler {
	return &RefundHandler{refunds: refunds, payments: payments, logger: logger}
}

func (h *RefundHandler) Create(c echo.Context) error {
	var req rest.CreateRefundRequest
	if err := c.Bind(&req); err != nil {
		return rest.BadRequest(c, "malformed request body")
	}
	if err := c.Validate(&req); err != nil {
		return rest.BadRequest(c, err.Error())
	}

	payment, err := h.payments.GetPayment(c.Request().Context(), req.PaymentID)
	if err != nil {
		return rest.Fail(c, h.logger, err)
	}
	if !middleware.CanAccess(c, payment.UserID) {
		return rest.Fail(c, h.logger, application.NewForbiddenError("payment belongs to another user"))
	}

	refund, err := h.refunds.CreateRefund(c.Request().Context(), services.CreateRefundCommand{
		PaymentID:   req.PaymentID,
		Amount:      req.Amount,
		Reason:      req.Reason,
		RequestedBy: middleware.UserID(c),
		Metadata:    req.Metadata,
		Notes:       req.Notes,
	})
	if err != nil {
		return rest.Fail(c, h.logger, err)
	}
	return rest.OK(c, http.StatusCreated, rest.FromRefund(refund))
}

func (h *RefundHandler) GetByID(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return rest.BadRequest(c, "invalid refund ID")
	}

	refund, err := h.refunds.GetRefund(c.Request().Context(), id)
	if err != nil {
		return rest.Fail(c, h.logger, err)
	}
	if !middleware.CanAccess(c, refund.RequestedBy) {
		return rest.Fail(c, h.logger, application.NewForbiddenError("refund belongs to another user"))
	}
	return rest.OK(c, http.StatusOK, rest.FromRefund(refund))
}

func (h *RefundHandler) GetByReference(c echo.Context) error {
	refund, err := h.refunds.GetRefundByReference(c.Request().Context(), c.Param("reference"))
	if err != nil {
		return rest.Fail(c, h.logger, err)
	}
	if !middleware.CanAccess(c, refund.RequestedBy) {
		return rest.Fail(c, h.logger, application.NewForbiddenError("refund belongs to another user"))
	}
	return rest.OK(c, http.StatusOK, rest.FromRefund(refund))
}

func (h *RefundHandler) ListByPayment(c echo.Context) error {
	paymentID, err := uuid.Parse(c.Param("paymentId"))
	if err != nil {
		return rest.BadRequest(c, "invalid payment ID")
	}

	payment, err := h.payments.GetPayment(c.Request().Context(), paymentID)
	if err != nil {
		return rest.Fail(c, h.logger, err)
	}
	if !middleware.CanAccess(c, payment.UserID) {
		return rest.Fail(c, h.logger, application.NewForbiddenError("payment belongs to another user"))
	}

	refunds, err := h.refunds.ListRefundsByPayment(c.Request().Context(), paymentID)
	if err != nil {
		return rest.Fail(c, h.logger, err)
	}
	return rest.OK(c, http.StatusOK, rest.FromRefunds(refunds))
}

func (h *RefundHandler) ListByStatus(c echo.Context) error {
	status := domain.RefundStatus(c.Param("status"))
	if !validRefundStatus(status) {
		return rest.BadRequest(c, "invalid refund status")
	}

	limit, offset := pagination(c)
	refunds, err := h.refunds.ListRefundsByStatus(c.Request().Context(), status, limit, offset)
	if err != nil {
		return rest.Fail(c, h.logger, err)
	}
	return rest.OK(c, http.StatusOK, rest.FromRefunds(refunds))
}

func (h *RefundHandler) ListAll(c echo.Context) error {
	limit, offset := pagination(c)
	refunds, err := h.refunds.ListAllRefunds(c.Request().Context(), limit, offset)
	if err != nil {
		return rest.Fail(c, h.logger, err)
	}
	return rest.OK(c, http.StatusOK, rest.FromRefunds(refunds))
}

func (h *RefundHandler) ListByRequester(c echo.Context) error {
	userID, err := uuid.Parse(c.Param("userId"))
	if err != nil {
		return rest.BadRequest(c, "invalid user ID")
	}
	if !middleware.CanAccess(c, userID) {
		return rest.Fail(c, h.logger, application.NewForbiddenError("refunds belong to another user"))
	}

	limit, offset := pagination(c)
	refunds, err := h.refunds.ListRefundsByRequester(c.Request().Context(), userID, limit, offset)
	if err != nil {
		return rest.Fail(c, h.logger, err)
	}
	return rest.OK(c, http.StatusOK, rest.FromRefunds(refunds))
}

func (h *RefundHandler) ListPending(c echo.Context) error {
	return h.listFixedStatus(c, domain.RefundPending)
}

func (h *RefundHandler) ListCompleted(c echo.Context) error {
	return h.listFixedStatus(c, domain.RefundCompleted)
}

func (h *RefundHandler) ListFailed(c echo.Context) error {
	return h.listFixedStatus(c, domain.RefundFailed)
}

func (h *RefundHandler) listFixedStatus(c echo.Context, status domain.RefundStatus) error {
	limit, offset := pagination(c)
	refunds, err := h.refunds.ListRefundsByStatus(c.Request().Context(), status, limit, offset)
	if err != nil {
		return rest.Fail(c, h.logger, err)
	}
	return rest.OK(c, http.StatusOK, rest.FromRefunds(refunds))
}

// Search matches the refund reason and reference against a free-text query.
func (h *RefundHandler) Search(c echo.Context) error {
	q := c.QueryParam("q")
	if q == "" {
		return rest.BadRequest(c, "missing query parameter q")
	}

	filter := application.RefundFilter{Query: &q}
	filter.Limit, filter.Offset = pagination(c)

	refunds, err := h.refunds.SearchRefunds(c.Request().Context(), filter)
	if err != nil {
		return rest.Fail(c, h.logger, err)
	}
	return rest.OK(c, http.StatusOK, rest.FromRefunds(refunds))
}

// Filter narrows refunds by any combination of payment, status, requester,
// approver, amount bounds and date range.
func (h *RefundHandler) Filter(c echo.Context) error {
	filter := application.RefundFilter{}

	if raw := c.QueryParam("paymentId"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			return rest.BadRequest(c, "invalid paymentId filter")
		}
		filter.PaymentID = &id
	}
	if raw := c.QueryParam("status"); raw != "" {
		status := domain.RefundStatus(raw)
		if !validRefundStatus(status) {
			return rest.BadRequest(c, "invalid status filter")
		}
		filter.Status = &status
	}
	if raw := c.QueryParam("requestedBy"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			return rest.BadRequest(c, "invalid requestedBy filter")
		}
		filter.RequestedBy = &id
	}
	if raw := c.QueryParam("approvedBy"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			return rest.BadRequest(c, "invalid approvedBy filter")
		}
		filter.ApprovedBy = &id
	}
	if raw := c.QueryParam("minAmount"); raw != "" {
		amount, err := decimal.NewFromString(raw)
		if err != nil {
			return rest.BadRequest(c, "invalid minAmount filter")
		}
		filter.MinAmount = &amount
	}
	if raw := c.QueryParam("maxAmount"); raw != "" {
		amount, err := decimal.NewFromString(raw)
		if err != nil {
			return rest.BadRequest(c, "invalid maxAmount filter")
		}
		filter.MaxAmount = &amount
	}
	if raw := c.QueryParam("from"); raw != "" {
		from, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return rest.BadRequest(c, "invalid from filter, expected RFC3339")
		}
		filter.From = &from
	}
	if raw := c.QueryParam("to"); raw != "" {
		to, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return rest.BadRequest(c, "invalid to filter, expected RFC3339")
		}
		filter.To = &to
	}
	filter.Limit, filter.Offset = pagination(c)

	refunds, err := h.refunds.SearchRefunds(c.Request().Context(), filter)
	if err != nil {
		return rest.Fail(c, h.logger, err)
	}
	return rest.OK(c, http.StatusOK, rest.FromRefunds(refunds))
}

func (h *RefundHandler) Approve(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return rest.BadRequest(c, "invalid refund ID")
	}

	refund, err := h.refunds.ApproveRefund(c.Request().Context(), services.ApproveRefundCommand{
		RefundID:   id,
		ApprovedBy: middleware.UserID(c),
	})
	if err != nil {
		return rest.Fail(c, h.logger, err)
	}
	return rest.OK(c, http.StatusOK, rest.FromRefund(refund))
}

func (h *RefundHandler) Reject(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return rest.BadRequest(c, "invalid refund ID")
	}

	var req rest.RejectRefundRequest
	if err := c.Bind(&req); err != nil {
		return rest.BadRequest(c, "malformed request body")
	}
	if err := c.Validate(&req); err != nil {
		return rest.BadRequest(c, err.Error())
	}

	refund, err := h.refunds.RejectRefund(c.Request().Context(), services.RejectRefundCommand{
		RefundID:   id,
		Reason:     req.Reason,
		RejectedBy: middleware.UserID(c),
	})
	if err != nil {
		return rest.Fail(c, h.logger, err)
	}
	return rest.OK(c, http.StatusOK, rest.FromRefund(refund))
}

func (h *RefundHandler) Statistics(c echo.Context) error {
	from, to, err := dateRange(c)
	if err != nil {
		return rest.BadRequest(c, err.Error())
	}

	stats, err := h.refunds.GetRefundStatistics(c.Request().Context(), from, to)
	if err != nil {
		return rest.Fail(c, h.logger, err)
	}
	return rest.OK(c, http.StatusOK, rest.RefundStatsResponse(from, to, stats))
}

func validRefundStatus(status domain.RefundStatus) bool {
	for _, s := range domain.RefundStatuses {
		if s == status {
			return true
		}
	}
	return false
}
