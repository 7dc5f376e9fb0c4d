package models

import (
	"errors"
	"fmt"

	"github.com/gofiber/fiber/v2"
)

// Error codes returned to API clients.
const (
	CodeValidation           = "VALIDATION_ERROR"
	CodeAccessDenied         = "ACCESS_DENIED"
	CodeGeocodingUnavailable = "GEOCODING_UNAVAILABLE"
	CodeStoreFailure         = "STORE_FAILURE"
	CodeNotFound             = "NOT_FOUND"
	CodeInternal             = "INTERNAL_ERROR"
)

// ErrorResponse represents a standardized API error response.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

// AppError represents a custom application error. Message is safe to show to
// callers; Err carries upstream detail for logs only and is never serialized.
type AppError struct {
	Code    string
	Message string
	Err     error
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// Predefined error constructors
func NewValidationError(message string) *AppError {
	return &AppError{
		Code:    CodeValidation,
		Message: message,
	}
}

func NewAccessDeniedError(message string) *AppError {
	return &AppError{
		Code:    CodeAccessDenied,
		Message: message,
	}
}

func NewGeocodingUnavailableError(err error) *AppError {
	return &AppError{
		Code:    CodeGeocodingUnavailable,
		Message: "Could not determine a locality for this location. Please try again.",
		Err:     err,
	}
}

func NewStoreFailureError(err error) *AppError {
	return &AppError{
		Code:    CodeStoreFailure,
		Message: "Something went wrong saving your request. Please try again.",
		Err:     err,
	}
}

func NewNotFoundError(resource string, id interface{}) *AppError {
	return &AppError{
		Code:    CodeNotFound,
		Message: fmt.Sprintf("%s with ID %v not found", resource, id),
	}
}

func NewInternalError(err error) *AppError {
	return &AppError{
		Code:    CodeInternal,
		Message: "Internal server error",
		Err:     err,
	}
}

// StatusForError maps an error to the HTTP status it should be reported with.
func StatusForError(err error) int {
	var appErr *AppError
	if !errors.As(err, &appErr) {
		return fiber.StatusInternalServerError
	}
	switch appErr.Code {
	case CodeValidation:
		return fiber.StatusBadRequest
	case CodeAccessDenied:
		return fiber.StatusForbidden
	case CodeGeocodingUnavailable:
		return fiber.StatusServiceUnavailable
	case CodeNotFound:
		return fiber.StatusNotFound
	default:
		return fiber.StatusInternalServerError
	}
}

// RespondWithError creates a standardized error response. Upstream detail in
// AppError.Err is deliberately not serialized; callers log it instead.
func RespondWithError(c *fiber.Ctx, status int, err error) error {
	var response ErrorResponse

	var appErr *AppError
	if errors.As(err, &appErr) {
		response = ErrorResponse{
			Error: appErr.Message,
			Code:  appErr.Code,
		}
	} else {
		response = ErrorResponse{
			Error: "Internal server error",
			Code:  CodeInternal,
		}
	}

	return c.Status(status).JSON(response)
}
