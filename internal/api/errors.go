package api

import (
	"errors"
	"net/http"

	"github.com/tverdon/offload-api/internal/service"
)

// MapErrorToStatusCode maps service errors to HTTP status codes so
// internal error types never leak to clients.
func MapErrorToStatusCode(err error) int {
	switch {
	case errors.Is(err, service.ErrUnknownOperation),
		errors.Is(err, service.ErrInvalidArgs):
		return http.StatusBadRequest

	case errors.Is(err, service.ErrUnavailable):
		return http.StatusServiceUnavailable

	default:
		return http.StatusInternalServerError
	}
}

// GetSafeErrorMessage returns the sanitized message for an error,
// keeping internal details out of the response body.
func GetSafeErrorMessage(err error) string {
	switch {
	case errors.Is(err, service.ErrUnknownOperation):
		return "Unknown operation"
	case errors.Is(err, service.ErrInvalidArgs):
		return "Arguments must be a JSON array"
	case errors.Is(err, service.ErrUnavailable):
		return "Service temporarily unavailable, try again"
	default:
		return "An unexpected error occurred"
	}
}
