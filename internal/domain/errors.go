package domain

import (
	"errors"
	"fmt"
)

// Error codes for domain rule violations.
const (
	ErrCodeValidation              = "VALIDATION_ERROR"
	ErrCodeNotFound                = "NOT_FOUND"
	ErrCodeOrderNotFound           = "ORDER_NOT_FOUND"
	ErrCodeDuplicatePayment        = "DUPLICATE_PAYMENT"
	ErrCodeInvalidTransition       = "INVALID_STATUS_TRANSITION"
	ErrCodeRefundNotAllowed        = "REFUND_NOT_ALLOWED"
	ErrCodeAmountExceedsRefundable = "AMOUNT_EXCEEDS_REFUNDABLE"
	ErrCodeRetryNotAllowed         = "RETRY_NOT_ALLOWED"
	ErrCodeConflict                = "CONFLICT"
)

// DomainError carries a stable machine-readable code alongside a human
// message. The REST layer maps codes to HTTP statuses.
type DomainError struct {
	Code    string
	Message string
	Err     error
}

func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *DomainError) Unwrap() error { return e.Err }

func NewValidationError(message string) *DomainError {
	return &DomainError{Code: ErrCodeValidation, Message: message}
}

func NewNotFoundError(entity, identifier string) *DomainError {
	return &DomainError{
		Code:    ErrCodeNotFound,
		Message: fmt.Sprintf("%s not found: %s", entity, identifier),
	}
}

func NewOrderNotFoundError(orderID string) *DomainError {
	return &DomainError{
		Code:    ErrCodeOrderNotFound,
		Message: fmt.Sprintf("order not found: %s", orderID),
	}
}

func NewDuplicatePaymentError(orderID string) *DomainError {
	return &DomainError{
		Code:    ErrCodeDuplicatePayment,
		Message: fmt.Sprintf("an active payment already exists for order %s", orderID),
	}
}

func NewInvalidTransitionError(from, to string) *DomainError {
	return &DomainError{
		Code:    ErrCodeInvalidTransition,
		Message: fmt.Sprintf("cannot transition payment from %s to %s", from, to),
	}
}

func NewRefundNotAllowedError(reason string) *DomainError {
	return &DomainError{Code: ErrCodeRefundNotAllowed, Message: reason}
}

func NewAmountExceedsRefundableError(requested, refundable string) *DomainError {
	return &DomainError{
		Code:    ErrCodeAmountExceedsRefundable,
		Message: fmt.Sprintf("refund amount %s exceeds refundable balance %s", requested, refundable),
	}
}

func NewRetryNotAllowedError(reason string) *DomainError {
	return &DomainError{Code: ErrCodeRetryNotAllowed, Message: reason}
}

// NewConflictError signals an optimistic-lock failure: the entity changed
// between read and save.
func NewConflictError(entity string) *DomainError {
	return &DomainError{
		Code:    ErrCodeConflict,
		Message: fmt.Sprintf("%s was modified concurrently, retry the operation", entity),
	}
}

// IsErrorCode reports whether err is a DomainError with the given code.
func IsErrorCode(err error, code string) bool {
	var de *DomainError
	if errors.As(err, &de) {
		return de.Code == code
	}
	return false
}

// CodeOf extracts the domain error code, or "" when err is not a DomainError.
func CodeOf(err error) string {
	var de *DomainError
	if errors.As(err, &de) {
		return de.Code
	}
	return ""
}
