package httpapi

import (
	"errors"
	"net/http"

	"daily_publisher/internal/domain"
)

// MapHTTPStatus maps failures of manual requests to HTTP status codes.
func MapHTTPStatus(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, domain.ErrRunInProgress):
		return http.StatusConflict
	case errors.Is(err, domain.ErrInvalidConfig):
		return http.StatusBadRequest
	case domain.Classified(err):
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}
