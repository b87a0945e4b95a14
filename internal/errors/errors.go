// Package errors defines the error envelope returned by the HTTP surface.
//
// Domain and backend errors are not translated into this taxonomy at the source: services
// return them unchanged and only the HTTP layer wraps them, keeping the original message.
package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrorCode is a machine-readable error category.
type ErrorCode string

const (
	CodeBadRequest     ErrorCode = "BAD_REQUEST"
	CodeUnauthorized   ErrorCode = "UNAUTHORIZED"
	CodeInvalidToken   ErrorCode = "INVALID_TOKEN"
	CodeForbidden      ErrorCode = "FORBIDDEN"
	CodeNotFound       ErrorCode = "NOT_FOUND"
	CodeConflict       ErrorCode = "CONFLICT"
	CodeRateLimited    ErrorCode = "RATE_LIMIT_EXCEEDED"
	CodeNotImplemented ErrorCode = "NOT_IMPLEMENTED"
	CodeBackend        ErrorCode = "BACKEND_ERROR"
	CodeInternal       ErrorCode = "INTERNAL_ERROR"
)

// ServiceError is an error with an HTTP status attached.
type ServiceError struct {
	Code       ErrorCode              `json:"code"`
	Message    string                 `json:"message"`
	HTTPStatus int                    `json:"-"`
	Details    map[string]interface{} `json:"details,omitempty"`
	Err        error                  `json:"-"`
}

func (e *ServiceError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *ServiceError) Unwrap() error {
	return e.Err
}

// WithDetails attaches a detail entry and returns the same error.
func (e *ServiceError) WithDetails(key string, value interface{}) *ServiceError {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

// New creates a ServiceError.
func New(code ErrorCode, status int, message string, err error) *ServiceError {
	return &ServiceError{Code: code, Message: message, HTTPStatus: status, Err: err}
}

func BadRequest(message string) *ServiceError {
	return New(CodeBadRequest, http.StatusBadRequest, message, nil)
}

func Unauthorized(message string) *ServiceError {
	if message == "" {
		message = "Authentication required"
	}
	return New(CodeUnauthorized, http.StatusUnauthorized, message, nil)
}

func InvalidToken(err error) *ServiceError {
	return New(CodeInvalidToken, http.StatusUnauthorized, "Invalid or expired token", err)
}

func Forbidden(message string) *ServiceError {
	return New(CodeForbidden, http.StatusForbidden, message, nil)
}

func NotFound(message string) *ServiceError {
	return New(CodeNotFound, http.StatusNotFound, message, nil)
}

func Conflict(message string) *ServiceError {
	return New(CodeConflict, http.StatusConflict, message, nil)
}

func NotImplemented(message string) *ServiceError {
	return New(CodeNotImplemented, http.StatusNotImplemented, message, nil)
}

// Backend wraps an error returned by the storage backend, keeping its message verbatim.
func Backend(status int, err error) *ServiceError {
	if status < 400 {
		status = http.StatusBadGateway
	}
	return New(CodeBackend, status, err.Error(), err)
}

func Internal(message string, err error) *ServiceError {
	return New(CodeInternal, http.StatusInternalServerError, message, err)
}

func RateLimitExceeded(limit int, window string) *ServiceError {
	return New(CodeRateLimited, http.StatusTooManyRequests, "Rate limit exceeded", nil).
		WithDetails("limit", limit).
		WithDetails("window", window)
}

// GetServiceError extracts a ServiceError from an error chain.
func GetServiceError(err error) *ServiceError {
	var se *ServiceError
	if errors.As(err, &se) {
		return se
	}
	return nil
}
