// Package utils provides shared helpers for the AstroPulse API.
package utils

import (
	"errors"
	"fmt"

	"github.com/gofiber/fiber/v2"
)

// Error codes returned in the error envelope. Clients branch on the
// code, not on the message.
const (
	CodeAuthRequired  = "AUTH_REQUIRED"
	CodeForbidden     = "FORBIDDEN"
	CodeValidation    = "VALIDATION_ERROR"
	CodeNotFound      = "NOT_FOUND"
	CodeConflict      = "CONFLICT"
	CodeQuotaExceeded = "QUOTA_EXCEEDED"
	CodeBackendError  = "BACKEND_ERROR"
	CodeUnavailable   = "SERVICE_UNAVAILABLE"
	CodeInternal      = "INTERNAL_ERROR"
)

// CustomError is the structured error carried through the app and
// rendered as {"error":{"code","message","details"}}.
type CustomError struct {
	Code    string      `json:"code"`
	Message string      `json:"message"`
	Details interface{} `json:"details,omitempty"`
}

// NewError creates an Error with a taxonomy code, message, and optional details.
func NewError(code string, message string, details ...interface{}) *CustomError {
	e := &CustomError{
		Code:    code,
		Message: message,
	}
	if len(details) > 0 {
		e.Details = details[0]
	}
	return e
}

// Error implements the error interface.
func (e *CustomError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Status maps the taxonomy code to an HTTP status.
func (e *CustomError) Status() int {
	switch e.Code {
	case CodeAuthRequired:
		return fiber.StatusUnauthorized
	case CodeForbidden:
		return fiber.StatusForbidden
	case CodeValidation:
		return fiber.StatusBadRequest
	case CodeNotFound:
		return fiber.StatusNotFound
	case CodeConflict:
		return fiber.StatusConflict
	case CodeQuotaExceeded:
		return fiber.StatusTooManyRequests
	case CodeBackendError, CodeUnavailable:
		return fiber.StatusServiceUnavailable
	default:
		return fiber.StatusInternalServerError
	}
}

// WithCause attaches the underlying error text as details. Returns a
// copy so the shared sentinels below stay clean.
func (e *CustomError) WithCause(err error) *CustomError {
	out := *e
	if err != nil {
		out.Details = err.Error()
	}
	return &out
}

// WithDetails attaches structured details. Returns a copy.
func (e *CustomError) WithDetails(details interface{}) *CustomError {
	out := *e
	out.Details = details
	return &out
}

// Common errors for reuse.
var (
	ErrAuthRequired  = NewError(CodeAuthRequired, "Authentication required")
	ErrForbidden     = NewError(CodeForbidden, "Forbidden")
	ErrBadRequest    = NewError(CodeValidation, "Invalid request")
	ErrNotFound      = NewError(CodeNotFound, "Resource not found")
	ErrQuotaExceeded = NewError(CodeQuotaExceeded, "Generation quota exceeded")
	ErrBackend       = NewError(CodeBackendError, "Upstream service failed")
	ErrUnavailable   = NewError(CodeUnavailable, "Service temporarily unavailable")
	ErrInternal      = NewError(CodeInternal, "Internal server error")
)

// WrapError wraps an existing error with a taxonomy code and message.
func WrapError(err error, code string, message string) *CustomError {
	if err == nil {
		return NewError(code, message)
	}
	return NewError(code, message, err.Error())
}

// StatusOf maps a handler error to the HTTP status HandleError will
// render for it. Middleware that observes the error before the app
// error handler runs uses this instead of the not-yet-written response
// status.
func StatusOf(err error, fallback int) int {
	if err == nil {
		return fallback
	}
	var appErr *CustomError
	if errors.As(err, &appErr) {
		return appErr.Status()
	}
	var ferr *fiber.Error
	if errors.As(err, &ferr) {
		return ferr.Code
	}
	return fiber.StatusInternalServerError
}

// HandleError sends a standardized error response. Internal and
// upstream failures keep their details server-side only.
func HandleError(c *fiber.Ctx, err error) error {
	var appErr *CustomError
	if !errors.As(err, &appErr) {
		appErr = ErrInternal
	}

	status := appErr.Status()
	body := fiber.Map{
		"code":    appErr.Code,
		"message": appErr.Message,
	}
	if appErr.Details != nil && status < 500 && appErr.Code != CodeBackendError && appErr.Code != CodeUnavailable {
		body["details"] = appErr.Details
	}
	return c.Status(status).JSON(fiber.Map{"error": body})
}
