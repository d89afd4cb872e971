package dto

import (
	"net/http"

	"github.com/erp/treasury/internal/domain/shared"
)

// Error code constants organized by category
// Format: ERR_<CATEGORY>_<DESCRIPTION>

// General error codes
const (
	// ErrCodeInternal is used for unexpected failures
	ErrCodeInternal = "ERR_INTERNAL"
)

// Authentication and authorization error codes
const (
	// ErrCodeUnauthenticated is used when no valid caller identity is present
	ErrCodeUnauthenticated = "ERR_UNAUTHENTICATED"
	// ErrCodeTokenExpired is used when the auth token has expired
	ErrCodeTokenExpired = "ERR_TOKEN_EXPIRED"
	// ErrCodeTokenInvalid is used when the auth token is invalid
	ErrCodeTokenInvalid = "ERR_TOKEN_INVALID"
	// ErrCodeUnauthorized is used when the caller lacks the permission tier
	ErrCodeUnauthorized = "ERR_UNAUTHORIZED"
)

// Input error codes
const (
	// ErrCodeValidation is used when input fails validation
	ErrCodeValidation = "ERR_VALIDATION"
	// ErrCodeBadRequest is used for malformed requests
	ErrCodeBadRequest = "ERR_BAD_REQUEST"
	// ErrCodeInvalidJSON is used when JSON parsing fails
	ErrCodeInvalidJSON = "ERR_INVALID_JSON"
	// ErrCodeRequestTooLarge is used when the body exceeds the configured limit
	ErrCodeRequestTooLarge = "ERR_REQUEST_TOO_LARGE"
)

// Resource and business rule error codes
const (
	// ErrCodeNotFound is used when a resource is not found or not visible
	ErrCodeNotFound = "ERR_NOT_FOUND"
	// ErrCodeConflict is used for duplicates, replays and state conflicts
	ErrCodeConflict = "ERR_CONFLICT"
	// ErrCodeInsufficientFunds is used when a debit exceeds the balance
	ErrCodeInsufficientFunds = "ERR_INSUFFICIENT_FUNDS"
	// ErrCodeUnsupportedOperation is used for operations the ledger forbids
	ErrCodeUnsupportedOperation = "ERR_UNSUPPORTED_OPERATION"
)

// ErrorCodeHTTPStatus maps error codes to HTTP status codes
var ErrorCodeHTTPStatus = map[string]int{
	ErrCodeInternal: http.StatusInternalServerError,

	// Auth errors
	ErrCodeUnauthenticated: http.StatusUnauthorized,
	ErrCodeTokenExpired:    http.StatusUnauthorized,
	ErrCodeTokenInvalid:    http.StatusUnauthorized,
	ErrCodeUnauthorized:    http.StatusForbidden,

	// Input errors -> 400 Bad Request
	ErrCodeValidation:      http.StatusBadRequest,
	ErrCodeBadRequest:      http.StatusBadRequest,
	ErrCodeInvalidJSON:     http.StatusBadRequest,
	ErrCodeRequestTooLarge: http.StatusRequestEntityTooLarge,

	// Resource errors
	ErrCodeNotFound: http.StatusNotFound,
	ErrCodeConflict: http.StatusConflict,

	// Business rule errors -> 422 Unprocessable Entity
	ErrCodeInsufficientFunds:    http.StatusUnprocessableEntity,
	ErrCodeUnsupportedOperation: http.StatusUnprocessableEntity,
}

// GetHTTPStatus returns the HTTP status code for an error code
// Returns 500 Internal Server Error if the error code is not found
func GetHTTPStatus(code string) int {
	if status, ok := ErrorCodeHTTPStatus[code]; ok {
		return status
	}
	return http.StatusInternalServerError
}

// DomainErrorCodeMapping maps domain error codes to API error codes
var DomainErrorCodeMapping = map[string]string{
	shared.CodeUnauthenticated:      ErrCodeUnauthenticated,
	shared.CodeUnauthorized:         ErrCodeUnauthorized,
	shared.CodeValidationFailed:     ErrCodeValidation,
	shared.CodeNotFound:             ErrCodeNotFound,
	shared.CodeInsufficientFunds:    ErrCodeInsufficientFunds,
	shared.CodeConflict:             ErrCodeConflict,
	shared.CodeUnsupportedOperation: ErrCodeUnsupportedOperation,
	shared.CodeUnexpected:           ErrCodeInternal,
}

// NormalizeErrorCode converts a domain error code to the API format.
// Unknown codes become ErrCodeInternal.
func NormalizeErrorCode(code string) string {
	if apiCode, ok := DomainErrorCodeMapping[code]; ok {
		return apiCode
	}
	if _, ok := ErrorCodeHTTPStatus[code]; ok {
		return code
	}
	return ErrCodeInternal
}
