package dto

import "net/http"

// General error codes
const (
	// ErrCodeInternal is used for internal server errors
	ErrCodeInternal = "ERR_INTERNAL"
	// ErrCodeBadRequest is used for malformed requests
	ErrCodeBadRequest = "ERR_BAD_REQUEST"
	// ErrCodeNotFound is used when a resource is not found
	ErrCodeNotFound = "ERR_NOT_FOUND"
)

// ErrorCodeHTTPStatus maps engine error codes to HTTP status codes.
// Domain codes pass through unprefixed so clients see the same code the
// engine uses internally.
var ErrorCodeHTTPStatus = map[string]int{
	ErrCodeInternal:   http.StatusInternalServerError,
	ErrCodeBadRequest: http.StatusBadRequest,
	ErrCodeNotFound:   http.StatusNotFound,

	"NOT_FOUND":       http.StatusNotFound,
	"INVALID_REQUEST": http.StatusBadRequest,

	// Terminal data problems: the request cannot succeed until an
	// operator fixes configuration.
	"PRICE_LIST_CYCLE":    http.StatusUnprocessableEntity,
	"FORMULA_ERROR":       http.StatusUnprocessableEntity,
	"COST_PRICE_REQUIRED": http.StatusUnprocessableEntity,
	"CURRENCY_MISMATCH":   http.StatusUnprocessableEntity,

	// Usage caps: the request is valid, the business said no.
	"LIMIT_EXCEEDED":            http.StatusConflict,
	"CONCURRENT_LIMIT_EXCEEDED": http.StatusConflict,
	"CONCURRENCY_CONFLICT":      http.StatusConflict,

	// Transient dependencies: worth retrying.
	"RATE_UNAVAILABLE":        http.StatusServiceUnavailable,
	"USAGE_STORE_UNAVAILABLE": http.StatusServiceUnavailable,
}

// GetHTTPStatus returns the HTTP status code for an error code.
// Unknown codes map to 500.
func GetHTTPStatus(code string) int {
	if status, ok := ErrorCodeHTTPStatus[code]; ok {
		return status
	}
	return http.StatusInternalServerError
}
