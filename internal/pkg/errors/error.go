package errors

import (
	"errors"
	"fmt"
)

// AppError represents a structured application error
type AppError struct {
	Code    int    // Business error code
	Message string // Human-readable message
	Err     error  // Underlying error (if any)
	Details string // Additional details
}

// Error implements the error interface
func (e *AppError) Error() string {
	if e.Err != nil {
		if e.Details != "" {
			return fmt.Sprintf("[%d] %s: %s: %v", e.Code, e.Message, e.Details, e.Err)
		}
		return fmt.Sprintf("[%d] %s: %v", e.Code, e.Message, e.Err)
	}
	if e.Details != "" {
		return fmt.Sprintf("[%d] %s: %s", e.Code, e.Message, e.Details)
	}
	return fmt.Sprintf("[%d] %s", e.Code, e.Message)
}

// Unwrap implements error unwrapping for errors.Is and errors.As
func (e *AppError) Unwrap() error {
	return e.Err
}

// New creates a new AppError with the given code
func New(code int, details ...string) *AppError {
	detail := ""
	if len(details) > 0 {
		detail = details[0]
	}
	return &AppError{
		Code:    code,
		Message: GetMessage(code),
		Details: detail,
	}
}

// Wrap wraps an existing error with an error code.
// An error that already carries an AppError keeps its original code.
func Wrap(err error, code int, details ...string) *AppError {
	if err == nil {
		return nil
	}

	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr
	}

	detail := ""
	if len(details) > 0 {
		detail = details[0]
	}

	return &AppError{
		Code:    code,
		Message: GetMessage(code),
		Err:     err,
		Details: detail,
	}
}

// Is checks if err is an AppError with the given code
func Is(err error, code int) bool {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code == code
	}
	return false
}

// ExtractCode extracts the error code from an error
func ExtractCode(err error) int {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return ErrInternalServer
}

// GetDetails extracts error details
func GetDetails(err error) string {
	var appErr *AppError
	if errors.As(err, &appErr) {
		switch {
		case appErr.Details != "" && appErr.Err != nil:
			return fmt.Sprintf("%s: %v", appErr.Details, appErr.Err)
		case appErr.Details != "":
			return appErr.Details
		case appErr.Err != nil:
			return appErr.Err.Error()
		}
		return ""
	}
	if err != nil {
		return err.Error()
	}
	return ""
}

// NewNotFoundError creates a not found error
func NewNotFoundError(resource string) *AppError {
	return New(ErrNotFound, resource)
}

// NewValidationError creates a validation error
func NewValidationError(field, reason string) *AppError {
	return New(ErrInvalidParams, fmt.Sprintf("%s: %s", field, reason))
}

// NewStoreError wraps a persistence failure
func NewStoreError(err error, op string) *AppError {
	return Wrap(err, ErrStoreFailure, op)
}

// NewUnavailableError creates a service unavailable error
func NewUnavailableError(details ...string) *AppError {
	return New(ErrServiceUnavail, details...)
}

// NewUnauthorizedError rejects a request without valid credentials
func NewUnauthorizedError(details string) *AppError {
	return New(ErrUnauthorized, details)
}

// NewRateLimitedError rejects a request over its quota
func NewRateLimitedError(details string) *AppError {
	return New(ErrTooManyRequests, details)
}
