// Package rest holds the HTTP request/response types, validation and the
// error envelope shared by the handlers.
package rest

import (
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/amankrmj01/bakery-payment-service/internal/application"
)

type ErrorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type ErrorResponse struct {
	Success bool      `json:"success"`
	Error   ErrorBody `json:"error"`
}

type SuccessResponse struct {
	Success bool `json:"success"`
	Data    any  `json:"data"`
}

func OK(c echo.Context, status int, data any) error {
	return c.JSON(status, SuccessResponse{Success: true, Data: data})
}

// Fail translates service errors into the error envelope. Anything that is
// not a ServiceError is treated as internal and its detail kept out of the
// response body.
func Fail(c echo.Context, logger *slog.Logger, err error) error {
	if svcErr, ok := application.IsServiceError(err); ok {
		if svcErr.HTTPStatus >= http.StatusInternalServerError {
			logger.ErrorContext(c.Request().Context(), "request failed",
				"method", c.Request().Method,
				"path", c.Path(),
				"code", svcErr.Code,
				"error", err)
		}
		return c.JSON(svcErr.HTTPStatus, ErrorResponse{
			Success: false,
			Error:   ErrorBody{Code: svcErr.Code, Message: svcErr.Message},
		})
	}

	logger.ErrorContext(c.Request().Context(), "unhandled error",
		"method", c.Request().Method,
		"path", c.Path(),
		"error", err)
	return c.JSON(http.StatusInternalServerError, ErrorResponse{
		Success: false,
		Error:   ErrorBody{Code: application.ErrCodeInternal, Message: "An internal error occurred"},
	})
}

// BadRequest is used for malformed input caught before the service layer.
func BadRequest(c echo.Context, message string) error {
	return c.JSON(http.StatusBadRequest, ErrorResponse{
		Success: false,
		Error:   ErrorBody{Code: "VALIDATION_ERROR", Message: message},
	})
}
