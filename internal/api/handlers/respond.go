package handlers

import (
	"errors"
	"net/http"

	"github.com/HairScan-Mara/Scan-Service/internal/models"
)

// StatusFromError maps the service error kinds to HTTP status codes.
// Anything unclassified is treated as a backend failure.
func StatusFromError(err error) int {
	switch {
	case errors.Is(err, models.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, models.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, models.ErrInvalidState):
		return http.StatusConflict
	case errors.Is(err, models.ErrUpstreamAuth):
		return http.StatusUnauthorized
	default:
		return http.StatusInternalServerError
	}
}
