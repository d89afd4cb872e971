package shared

import "errors"

// Error codes. Every failure that leaves the core carries exactly one of these.
const (
	CodeUnauthenticated      = "UNAUTHENTICATED"
	CodeUnauthorized         = "UNAUTHORIZED"
	CodeValidationFailed     = "VALIDATION_FAILED"
	CodeNotFound             = "NOT_FOUND"
	CodeInsufficientFunds    = "INSUFFICIENT_FUNDS"
	CodeConflict             = "CONFLICT"
	CodeUnsupportedOperation = "UNSUPPORTED_OPERATION"
	CodeUnexpected           = "UNEXPECTED"
)

// DomainError represents a domain-level error
type DomainError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Cause   error  `json:"-"`
}

// Error implements the error interface
func (e *DomainError) Error() string {
	return e.Message
}

// Unwrap returns the underlying cause, if any
func (e *DomainError) Unwrap() error {
	return e.Cause
}

// Is reports whether target is a DomainError with the same code.
// This lets callers write errors.Is(err, shared.ErrNotFound) for any
// not-found error regardless of its message.
func (e *DomainError) Is(target error) bool {
	var t *DomainError
	if !errors.As(target, &t) {
		return false
	}
	return e.Code == t.Code
}

// WithCause returns a copy of the error that wraps cause
func (e *DomainError) WithCause(cause error) *DomainError {
	return &DomainError{Code: e.Code, Message: e.Message, Cause: cause}
}

// NewDomainError creates a new domain error
func NewDomainError(code, message string) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
	}
}

// Common domain errors
var (
	ErrUnauthenticated      = NewDomainError(CodeUnauthenticated, "Authentication required")
	ErrUnauthorized         = NewDomainError(CodeUnauthorized, "Not authorized to perform this action")
	ErrValidationFailed     = NewDomainError(CodeValidationFailed, "Invalid input provided")
	ErrNotFound             = NewDomainError(CodeNotFound, "Resource not found")
	ErrInsufficientFunds    = NewDomainError(CodeInsufficientFunds, "Insufficient funds in cash box")
	ErrConflict             = NewDomainError(CodeConflict, "Operation conflicts with current state")
	ErrUnsupportedOperation = NewDomainError(CodeUnsupportedOperation, "Operation is not supported")
	ErrUnexpected           = NewDomainError(CodeUnexpected, "An unexpected error occurred")
)

// NewValidationError creates a VALIDATION_FAILED error with the given message
func NewValidationError(message string) *DomainError {
	return NewDomainError(CodeValidationFailed, message)
}

// NewNotFoundError creates a NOT_FOUND error with the given message
func NewNotFoundError(message string) *DomainError {
	return NewDomainError(CodeNotFound, message)
}

// NewConflictError creates a CONFLICT error with the given message
func NewConflictError(message string) *DomainError {
	return NewDomainError(CodeConflict, message)
}

// CodeOf returns the domain error code carried by err, or CodeUnexpected
// when err is not a DomainError.
func CodeOf(err error) string {
	var de *DomainError
	if errors.As(err, &de) {
		return de.Code
	}
	return CodeUnexpected
}

// IsDomainError reports whether err (or anything it wraps) is a DomainError
func IsDomainError(err error) bool {
	var de *DomainError
	return errors.As(err, &de)
}
