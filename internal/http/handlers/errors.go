// Error codes.
//
// This file maps service errors onto HTTP statuses and the stable
// error codes clients branch on.
//
// Status policy: validation 400, missing identity 401, ownership, role and
// purpose checks 403, unknown resources 404, unreachable database 503,
// anything else 500.
package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-realty-backend/internal/services"
)

const (
	ErrCodeBadRequest       = "bad_request"
	ErrCodeUnauthorized     = "unauthorized"
	ErrCodeForbidden        = "forbidden"
	ErrCodeNotFound         = "not_found"
	ErrCodeMethodNotAllowed = "method_not_allowed"
	ErrCodeRateLimited      = "too_many_requests"
	ErrCodeUnavailable      = "service_unavailable"
	ErrCodeInternal         = "internal_error"

	// Domain-specific:
	ErrCodeNotBroker         = "not_broker"
	ErrCodeBrokerNotApproved = "broker_not_approved"
	ErrCodeAdminOnly         = "admin_only"
	ErrCodePurposeMismatch   = "purpose_mismatch"
	ErrCodeInvalidTransition = "invalid_transition"
	ErrCodeNoDealToCancel    = "no_deal_to_cancel"
)

// writeServiceError translates err from a service call into a response.
func writeServiceError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, services.ErrInvalidTransition):
		fail(c, http.StatusBadRequest, ErrCodeInvalidTransition, err.Error())
	case errors.Is(err, services.ErrNoDealToCancel):
		fail(c, http.StatusBadRequest, ErrCodeNoDealToCancel, err.Error())
	case services.IsValidation(err):
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, err.Error())

	case errors.Is(err, services.ErrUnauthenticated):
		fail(c, http.StatusUnauthorized, ErrCodeUnauthorized, err.Error())

	case errors.Is(err, services.ErrNotBroker):
		fail(c, http.StatusForbidden, ErrCodeNotBroker, err.Error())
	case errors.Is(err, services.ErrBrokerNotApproved):
		fail(c, http.StatusForbidden, ErrCodeBrokerNotApproved, err.Error())
	case errors.Is(err, services.ErrAdminOnly):
		fail(c, http.StatusForbidden, ErrCodeAdminOnly, err.Error())
	case errors.Is(err, services.ErrPurposeMismatch):
		fail(c, http.StatusForbidden, ErrCodePurposeMismatch, err.Error())
	case errors.Is(err, services.ErrForbidden):
		fail(c, http.StatusForbidden, ErrCodeForbidden, err.Error())

	case errors.Is(err, services.ErrPropertyNotFound),
		errors.Is(err, services.ErrNotificationNotFound),
		errors.Is(err, services.ErrFavoriteNotFound),
		errors.Is(err, services.ErrDeviceNotFound):
		fail(c, http.StatusNotFound, ErrCodeNotFound, err.Error())

	case services.IsTransient(err):
		_ = c.Error(err)
		fail(c, http.StatusServiceUnavailable, ErrCodeUnavailable, "database unavailable")
	default:
		_ = c.Error(err)
		fail(c, http.StatusInternalServerError, ErrCodeInternal, "internal server error")
	}
}
