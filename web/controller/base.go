// Package controller provides the HTTP handlers of the csc-portal API:
// accounts, booking, payment confirmation, health and the call relay upgrade.
package controller

import (
	"errors"
	"net/http"

	"github.com/mhsanaei/csc-portal/database"
	"github.com/mhsanaei/csc-portal/web/service"
)

// errorStatus maps domain errors onto HTTP status codes and short messages.
func errorStatus(err error) (int, string) {
	switch {
	case errors.Is(err, service.ErrMalformedInput):
		return http.StatusBadRequest, "Invalid request"
	case errors.Is(err, database.ErrDuplicateUsername):
		return http.StatusBadRequest, "Username already exists"
	case errors.Is(err, service.ErrInvalidCredentials):
		return http.StatusUnauthorized, "Invalid credentials"
	case errors.Is(err, database.ErrNotFound):
		return http.StatusNotFound, "Not found"
	case errors.Is(err, database.ErrAlreadyPaid):
		return http.StatusConflict, "Appointment already paid"
	case errors.Is(err, service.ErrPaymentRejected):
		return http.StatusPaymentRequired, "Payment verification failed"
	default:
		return http.StatusInternalServerError, "Internal server error"
	}
}
