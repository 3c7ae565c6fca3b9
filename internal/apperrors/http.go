package apperrors

import (
	"errors"
	"net/http"
)

// HTTPStatus maps an error to the appropriate HTTP status code.
// Call-level failures are always internal errors, even when their cause is
// a not found error; only a bare NotFound becomes a 404.
func HTTPStatus(err error) int {
	switch {
	case errors.Is(err, ErrProvisioningFailed), errors.Is(err, ErrDeprovisioningFailed):
		return http.StatusInternalServerError
	case errors.Is(err, ErrValidation), errors.Is(err, ErrInvalidRange):
		return http.StatusBadRequest
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}
