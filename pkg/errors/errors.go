package errors

import (
	"errors"
	"fmt"
)

// ErrorType represents the category of error
type ErrorType string

const (
	// ErrorTypeInternal represents internal server errors
	ErrorTypeInternal ErrorType = "internal"

	// ErrorTypeValidation represents input validation errors
	ErrorTypeValidation ErrorType = "validation"

	// ErrorTypeNotFound represents resource not found errors
	ErrorTypeNotFound ErrorType = "not_found"

	// ErrorTypeDataUnavailable represents an upstream data source that
	// failed or returned nothing for one instrument
	ErrorTypeDataUnavailable ErrorType = "data_unavailable"

	// ErrorTypeInsufficient represents results that cannot be computed
	// from the available inputs
	ErrorTypeInsufficient ErrorType = "insufficient"

	// ErrorTypeTimeout represents timeout errors
	ErrorTypeTimeout ErrorType = "timeout"

	// ErrorTypeExternal represents external service errors
	ErrorTypeExternal ErrorType = "external"
)

// AppError represents an application error with additional context
type AppError struct {
	Type       ErrorType         `json:"type"`
	Code       string            `json:"code"`
	Message    string            `json:"message"`
	Details    map[string]string `json:"details,omitempty"`
	Err        error             `json:"-"`
	Retryable  bool              `json:"retryable"`
	StatusCode int               `json:"-"`
}

// Error implements the error interface
func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Type, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// Unwrap returns the wrapped error
func (e *AppError) Unwrap() error {
	return e.Err
}

// Is implements error comparison
func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	if !ok {
		return false
	}
	return e.Code == t.Code && e.Type == t.Type
}

// WithDetail returns a copy of the error with an added detail
func (e *AppError) WithDetail(key, value string) *AppError {
	clone := *e
	clone.Details = make(map[string]string, len(e.Details)+1)
	for k, v := range e.Details {
		clone.Details[k] = v
	}
	clone.Details[key] = value
	return &clone
}

// Wrap returns a copy of the error wrapping cause
func (e *AppError) Wrap(cause error) *AppError {
	clone := *e
	clone.Err = cause
	return &clone
}

// Common error instances for the performance engine's failure taxonomy.
var (
	// ErrDataUnavailable: the price provider failed or returned an empty
	// series for one instrument. Degrades that instrument, never the basket.
	ErrDataUnavailable = &AppError{
		Type:       ErrorTypeDataUnavailable,
		Code:       "DATA_UNAVAILABLE",
		Message:    "No price data available for instrument",
		StatusCode: 502,
		Retryable:  true,
	}

	// ErrComputeTimeout: a price fetch exceeded its bound. Callers fold it
	// into the same degraded path as DATA_UNAVAILABLE.
	ErrComputeTimeout = &AppError{
		Type:       ErrorTypeTimeout,
		Code:       "COMPUTE_TIMEOUT",
		Message:    "Price fetch exceeded its time bound",
		StatusCode: 504,
		Retryable:  true,
	}

	// ErrInsufficientCashflows: the rate solver needs at least two flows
	// with both a negative and a positive amount.
	ErrInsufficientCashflows = &AppError{
		Type:       ErrorTypeInsufficient,
		Code:       "INSUFFICIENT_CASHFLOWS",
		Message:    "Rate of return requires opposing cashflows",
		StatusCode: 422,
		Retryable:  false,
	}

	// ErrInsufficientWindowCoverage: fewer than two completed rolling
	// windows; the result is tagged insufficient, not a number.
	ErrInsufficientWindowCoverage = &AppError{
		Type:       ErrorTypeInsufficient,
		Code:       "INSUFFICIENT_WINDOW_COVERAGE",
		Message:    "Not enough completed windows for rolling statistics",
		StatusCode: 422,
		Retryable:  false,
	}

	// ErrValidation: basket configuration rejected (weights must sum to 100).
	ErrValidation = &AppError{
		Type:       ErrorTypeValidation,
		Code:       "VALIDATION_ERROR",
		Message:    "Validation failed",
		StatusCode: 400,
		Retryable:  false,
	}

	// ErrBasketNotFound: fatal to that one recompute only.
	ErrBasketNotFound = &AppError{
		Type:       ErrorTypeNotFound,
		Code:       "BASKET_NOT_FOUND",
		Message:    "Basket not found",
		StatusCode: 404,
		Retryable:  false,
	}

	// ErrSnapshotNotFound: no snapshot has been computed yet.
	ErrSnapshotNotFound = &AppError{
		Type:       ErrorTypeNotFound,
		Code:       "SNAPSHOT_NOT_COMPUTED",
		Message:    "Performance snapshot not yet computed",
		StatusCode: 404,
		Retryable:  false,
	}

	// ErrInternalServer represents a generic internal server error
	ErrInternalServer = &AppError{
		Type:       ErrorTypeInternal,
		Code:       "INTERNAL_ERROR",
		Message:    "An internal server error occurred",
		StatusCode: 500,
		Retryable:  false,
	}
)

// New creates a new AppError
func New(errType ErrorType, code, message string) *AppError {
	return &AppError{
		Type:    errType,
		Code:    code,
		Message: message,
	}
}

// IsRetryable reports whether err (or any error it wraps) is retryable
func IsRetryable(err error) bool {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Retryable
	}
	return false
}

// IsDataUnavailable reports whether err degrades a single instrument rather
// than failing the basket: upstream unavailability and fetch timeouts both
// qualify.
func IsDataUnavailable(err error) bool {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Type == ErrorTypeDataUnavailable || appErr.Type == ErrorTypeTimeout
	}
	return false
}
