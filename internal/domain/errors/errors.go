// Package errors defines the failure taxonomy of the fraud pipeline.
// Components return AppError values instead of throwing past their
// boundary; the REST layer maps them onto HTTP statuses. Four kinds
// cover the coordinator boundary: invalid input, missing records,
// locked accounts, and internal faults.
package errors

import (
	"errors"
	"fmt"
)

// ErrorType classifies a failure at the coordinator boundary.
type ErrorType string

const (
	ErrorTypeValidation ErrorType = "validation"
	ErrorTypeNotFound   ErrorType = "not_found"
	ErrorTypeLocked     ErrorType = "locked"
	ErrorTypeInternal   ErrorType = "internal"
)

// AppError is a classified application error. The Code is a stable
// machine-readable identifier; Message is safe to surface to callers.
type AppError struct {
	Type    ErrorType `json:"type"`
	Code    string    `json:"code"`
	Message string    `json:"message"`
	Cause   error     `json:"-"`
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

func (e *AppError) WithCause(cause error) *AppError {
	e.Cause = cause
	return e
}

// StatusCode maps the error kind onto its HTTP status. Internal detail
// never changes the mapping; only the kind does.
func (e *AppError) StatusCode() int {
	switch e.Type {
	case ErrorTypeValidation:
		return 400
	case ErrorTypeNotFound:
		return 404
	case ErrorTypeLocked:
		return 403
	default:
		return 500
	}
}

// NewValidationError rejects bad input before the pipeline runs.
func NewValidationError(code, message string) *AppError {
	return &AppError{
		Type:    ErrorTypeValidation,
		Code:    code,
		Message: message,
	}
}

// NewNotFoundError reports a missing record. The core never fabricates
// a record to satisfy a lookup.
func NewNotFoundError(resource string) *AppError {
	return &AppError{
		Type:    ErrorTypeNotFound,
		Code:    "RESOURCE_NOT_FOUND",
		Message: fmt.Sprintf("%s not found", resource),
	}
}

// NewLockedError refuses an operation on a locked account before any
// scoring runs.
func NewLockedError(message string) *AppError {
	return &AppError{
		Type:    ErrorTypeLocked,
		Code:    "ACCOUNT_LOCKED",
		Message: message,
	}
}

// NewInternalError covers store and pipeline faults. The wrapped cause
// is for logs only and never reaches a response.
func NewInternalError(message string) *AppError {
	return &AppError{
		Type:    ErrorTypeInternal,
		Code:    "INTERNAL_ERROR",
		Message: message,
	}
}

// Predefined errors for the records the store can miss and the one
// business refusal the pipeline short-circuits on.
var (
	ErrUserNotFound        = NewNotFoundError("user")
	ErrTransactionNotFound = NewNotFoundError("transaction")
	ErrAlertNotFound       = NewNotFoundError("fraud alert")
	ErrBehaviorNotFound    = NewNotFoundError("behavior profile")
	ErrAccountLocked       = NewLockedError("Account is locked due to fraud")
)

// IsType checks if an error is of a specific type
func IsType(err error, errorType ErrorType) bool {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Type == errorType
	}
	return false
}

// IsNotFound reports whether err is a not-found error of any resource.
func IsNotFound(err error) bool {
	return IsType(err, ErrorTypeNotFound)
}

// GetStatusCode extracts the HTTP status for an error; anything
// unclassified is an internal fault.
func GetStatusCode(err error) int {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.StatusCode()
	}
	return 500
}
