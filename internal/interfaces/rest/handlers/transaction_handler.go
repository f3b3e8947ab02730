package handlers

import (
	"log/slog"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/amankrmj01/bakery-payment-service/internal/application"
	"github.com/amankrmj01/bakery-payment-service/internal/application/services"
	"github.com/amankrmj01/bakery-payment-service/internal/domain"
	"github.com/amankrmj01/bakery-payment-service/internal/interfaces/rest"
	"github.com/amankrmj01/bakery-payment-service/internal/interfaces/rest/middleware"
)

type TransactionHandler struct {
	txns     *services.TransactionService
	payments *services.PaymentService
	logger   *slog.Logger
}

func NewTransactionHandler(txns *services.TransactionService, payments *services.PaymentService, logger *slog.Logger) *TransactionHandler {
	return &TransactionHandler{txns: txns, payments: payments, logger: logger}
}

func (h *TransactionHandler) GetByID(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return rest.BadRequest(c, "invalid transaction ID")
	}

	tx, err := h.txns.GetTransaction(c.Request().Context(), id)
	if err != nil {
		return rest.Fail(c, h.logger, err)
	}

	payment, err := h.payments.GetPayment(c.Request().Context(), tx.PaymentID)
	if err != nil {
		return rest.Fail(c, h.logger, err)
	}
	if !middleware.CanAccess(c, payment.UserID) {
		return rest.Fail(c, h.logger, application.NewForbiddenError("transaction belongs to another user"))
	}
	return rest.OK(c, http.StatusOK, rest.FromTransaction(tx))
}

func (h *TransactionHandler) ListByPayment(c echo.Context) error {
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

	txs, err := h.txns.ListTransactionsByPayment(c.Request().Context(), paymentID)
	if err != nil {
		return rest.Fail(c, h.logger, err)
	}
	return rest.OK(c, http.StatusOK, rest.FromTransactions(txs))
}

func (h *TransactionHandler) ListByType(c echo.Context) error {
	txType := domain.TransactionType(c.Param("type"))
	if !validTransactionType(txType) {
		return rest.BadRequest(c, "invalid transaction type")
	}

	limit, offset := pagination(c)
	txs, err := h.txns.ListTransactionsByType(c.Request().Context(), txType, limit, offset)
	if err != nil {
		return rest.Fail(c, h.logger, err)
	}
	return rest.OK(c, http.StatusOK, rest.FromTransactions(txs))
}

func (h *TransactionHandler) ListByStatus(c echo.Context) error {
	status := domain.TransactionStatus(c.Param("status"))
	if !validTransactionStatus(status) {
		return rest.BadRequest(c, "invalid transaction status")
	}

	limit, offset := pagination(c)
	txs, err := h.txns.ListTransactionsByStatus(c.Request().Context(), status, limit, offset)
	if err != nil {
		return rest.Fail(c, h.logger, err)
	}
	return rest.OK(c, http.StatusOK, rest.FromTransactions(txs))
}

func (h *TransactionHandler) GetByGatewayID(c echo.Context) error {
	gatewayID := c.Param("gatewayId")
	if gatewayID == "" {
		return rest.BadRequest(c, "missing gateway transaction ID")
	}

	tx, err := h.txns.GetTransactionByGatewayID(c.Request().Context(), gatewayID)
	if err != nil {
		return rest.Fail(c, h.logger, err)
	}
	return rest.OK(c, http.StatusOK, rest.FromTransaction(tx))
}

func (h *TransactionHandler) Summary(c echo.Context) error {
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

	summary, err := h.txns.GetTransactionSummary(c.Request().Context(), paymentID)
	if err != nil {
		return rest.Fail(c, h.logger, err)
	}
	return rest.OK(c, http.StatusOK, rest.FromTransactionSummary(summary))
}

func validTransactionType(t domain.TransactionType) bool {
	switch t {
	case domain.TxTypeAuthorization, domain.TxTypeCapture, domain.TxTypeSale,
		domain.TxTypeVoid, domain.TxTypeRefund:
		return true
	}
	return false
}

func validTransactionStatus(s domain.TransactionStatus) bool {
	switch s {
	case domain.TxPending, domain.TxProcessing, domain.TxCompleted,
		domain.TxFailed, domain.TxCancelled:
		return true
	}
	return false
}
