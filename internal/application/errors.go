package application

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/amankrmj01/bakery-payment-service/internal/domain"
)

// APPLICATION-LEVEL ERRORS (Orchestration)

type ServiceError struct {
	Code       string
	Message    string
	HTTPStatus int
	Err        error
}

func (e *ServiceError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *ServiceError) Unwrap() error {
	return e.Err
}

const (
	ErrCodeInternal                = "INTERNAL_ERROR"
	ErrCodeForbidden               = "FORBIDDEN"
	ErrCodeCollaboratorUnavailable = "COLLABORATOR_UNAVAILABLE"
	ErrCodeGateway                 = "GATEWAY_ERROR"
)

func NewInternalError(err error) *ServiceError {
	return &ServiceError{
		Code:       ErrCodeInternal,
		Message:    "An internal error occurred",
		HTTPStatus: http.StatusInternalServerError,
		Err:        err,
	}
}

func NewForbiddenError(message string) *ServiceError {
	return &ServiceError{
		Code:       ErrCodeForbidden,
		Message:    message,
		HTTPStatus: http.StatusForbidden,
	}
}

func NewCollaboratorUnavailableError(collaborator string, err error) *ServiceError {
	return &ServiceError{
		Code:       ErrCodeCollaboratorUnavailable,
		Message:    fmt.Sprintf("%s is unavailable, try again later", collaborator),
		HTTPStatus: http.StatusServiceUnavailable,
		Err:        err,
	}
}

// NewGatewayError wraps a failed or panicking gateway call inside a
// settlement unit. It is never surfaced over HTTP: the settlement path
// terminalizes the entity and logs the wrapped error.
func NewGatewayError(err error) *ServiceError {
	return &ServiceError{
		Code:       ErrCodeGateway,
		Message:    "gateway call failed",
		HTTPStatus: http.StatusBadGateway,
		Err:        err,
	}
}

// domainErrHTTPStatus maps domain error codes onto HTTP statuses.
var domainErrHTTPStatus = map[string]int{
	domain.ErrCodeValidation:              http.StatusBadRequest,
	domain.ErrCodeNotFound:                http.StatusNotFound,
	domain.ErrCodeOrderNotFound:           http.StatusNotFound,
	domain.ErrCodeDuplicatePayment:        http.StatusConflict,
	domain.ErrCodeInvalidTransition:       http.StatusConflict,
	domain.ErrCodeRefundNotAllowed:        http.StatusConflict,
	domain.ErrCodeAmountExceedsRefundable: http.StatusConflict,
	domain.ErrCodeRetryNotAllowed:         http.StatusConflict,
	domain.ErrCodeConflict:                http.StatusConflict,
}

// FromDomain wraps a domain error with its HTTP mapping. Non-domain errors
// become internal errors.
func FromDomain(err error) *ServiceError {
	var de *domain.DomainError
	if errors.As(err, &de) {
		status, ok := domainErrHTTPStatus[de.Code]
		if !ok {
			status = http.StatusInternalServerError
		}
		return &ServiceError{
			Code:       de.Code,
			Message:    de.Message,
			HTTPStatus: status,
			Err:        err,
		}
	}
	return NewInternalError(err)
}

func IsServiceError(err error) (*ServiceError, bool) {
	var svcErr *ServiceError
	ok := errors.As(err, &svcErr)
	return svcErr, ok
}
