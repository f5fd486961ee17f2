package domain

import "fmt"

// ErrorCode classifies a domain rule violation.
type ErrorCode string

const (
	ErrCodeValidation        ErrorCode = "VALIDATION_FAILED"
	ErrCodeInvalidTransition ErrorCode = "INVALID_TRANSITION"
	ErrCodeCurrencyMismatch  ErrorCode = "CURRENCY_MISMATCH"
)

// Error is a business rule violation. It is always handled synchronously at
// the aggregate boundary and is never persisted or retried.
type Error struct {
	Code    ErrorCode
	Message string
}

// Error returns the business-readable message
func (e *Error) Error() string {
	return e.Message
}

func newValidationError(format string, args ...interface{}) *Error {
	return &Error{Code: ErrCodeValidation, Message: fmt.Sprintf(format, args...)}
}

func newTransitionError(op string, from Status) *Error {
	return &Error{
		Code:    ErrCodeInvalidTransition,
		Message: fmt.Sprintf("cannot %s an order in status %s", op, from),
	}
}
