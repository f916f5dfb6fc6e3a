package errors

import (
	"fmt"
	"net/http"
)

// ErrorType classifies an application error
type ErrorType string

const (
	ValidationError  ErrorType = "validation"
	NotFoundError    ErrorType = "not_found"
	TimeoutError     ErrorType = "timeout"
	UnavailableError ErrorType = "unavailable"
	InternalError    ErrorType = "internal"
)

// AppError is the application error carried across layer boundaries
type AppError struct {
	Type       ErrorType
	Code       string
	Message    string
	StatusCode int
	Details    map[string]interface{}
	Err        error
}

// Error implements the error interface
func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the wrapped cause
func (e *AppError) Unwrap() error {
	return e.Err
}

// Wrap attaches a cause to the error
func (e *AppError) Wrap(err error) *AppError {
	e.Err = err
	return e
}

// WithDetail attaches a detail field to the error
func (e *AppError) WithDetail(key string, value interface{}) *AppError {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

// New creates a new AppError of the given type
func New(t ErrorType, code, message string) *AppError {
	return &AppError{
		Type:       t,
		Code:       code,
		Message:    message,
		StatusCode: statusFor(t),
	}
}

func statusFor(t ErrorType) int {
	switch t {
	case ValidationError:
		return http.StatusBadRequest
	case NotFoundError:
		return http.StatusNotFound
	case TimeoutError:
		return http.StatusGatewayTimeout
	case UnavailableError:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// ValidationErrorf creates a validation error
func ValidationErrorf(code, format string, args ...interface{}) *AppError {
	return New(ValidationError, code, fmt.Sprintf(format, args...))
}

// NotFoundErrorf creates a not-found error
func NotFoundErrorf(code, format string, args ...interface{}) *AppError {
	return New(NotFoundError, code, fmt.Sprintf(format, args...))
}

// TimeoutErrorf creates a timeout error
func TimeoutErrorf(code, format string, args ...interface{}) *AppError {
	return New(TimeoutError, code, fmt.Sprintf(format, args...))
}

// UnavailableErrorf creates a service-unavailable error
func UnavailableErrorf(code, format string, args ...interface{}) *AppError {
	return New(UnavailableError, code, fmt.Sprintf(format, args...))
}

// InternalErrorf creates an internal error
func InternalErrorf(code, format string, args ...interface{}) *AppError {
	return New(InternalError, code, fmt.Sprintf(format, args...))
}
