package errors

import (
	"fmt"
	"net/http"
)

type ErrorCode string

const (
	InvalidInput        ErrorCode = "invalid_input"
	InvalidAmount       ErrorCode = "invalid_amount"
	ValidationFailed    ErrorCode = "validation_failed"
	TransactionNotFound ErrorCode = "transaction_not_found"
	ProviderError       ErrorCode = "provider_error"
	GatewayUnavailable  ErrorCode = "gateway_unavailable"
	InvalidToken        ErrorCode = "invalid_token"
	InternalError       ErrorCode = "internal_error"
)

type AppError struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
	Details string    `json:"details,omitempty"`
}

func (e *AppError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("%s: %s (%s)", e.Code, e.Message, e.Details)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func NewAppError(code ErrorCode, message string) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
	}
}

func NewAppErrorf(code ErrorCode, format string, args ...interface{}) *AppError {
	return &AppError{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
	}
}

// WithDetails returns a copy so that the shared sentinels below are never mutated.
func (e *AppError) WithDetails(details string) *AppError {
	cp := *e
	cp.Details = details
	return &cp
}

// Is ignores Details, so errors.Is(err, ErrTransactionNotFound) holds for copies made by WithDetails.
func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	if !ok {
		return false
	}
	return e.Code == t.Code && e.Message == t.Message
}

// HTTPStatus maps the error code onto the status the admin API answers with.
func (e *AppError) HTTPStatus() int {
	switch e.Code {
	case InvalidInput, InvalidAmount, ValidationFailed:
		return http.StatusBadRequest
	case TransactionNotFound:
		return http.StatusNotFound
	case InvalidToken:
		return http.StatusForbidden
	case ProviderError:
		return http.StatusBadGateway
	case GatewayUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// Predefined errors for common cases
var (
	ErrTransactionNotFound  = NewAppError(TransactionNotFound, "transaction not found")
	ErrInvalidTransactionID = NewAppError(InvalidInput, "invalid transaction id")
	ErrAdminIDRequired      = NewAppError(InvalidInput, "admin id is required")
	ErrAmountRequired       = NewAppError(InvalidAmount, "amount is required")
	ErrAmountOutOfRange     = NewAppError(InvalidAmount, "amount must be between 10 and 100000")
	ErrInvalidToken         = NewAppError(InvalidToken, "notification token mismatch")
)
