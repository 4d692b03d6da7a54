// Package services defines the business logic for property listings, deals,
// favorites, and notifications. This file centralizes service-level error
// values so that they can be consistently returned by service methods and
// checked by callers.
//
// Translation into HTTP status codes is performed at the handler layer;
// IsValidation and IsTransient group the sentinels the way handlers need.
package services

import (
	"context"
	"database/sql/driver"
	"errors"
	"net"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/tbourn/go-realty-backend/internal/deals"
	"github.com/tbourn/go-realty-backend/internal/domain"
	"github.com/tbourn/go-realty-backend/internal/repo"
)

var (
	// ErrPropertyNotFound indicates that the requested property does not exist.
	ErrPropertyNotFound = errors.New("property not found")

	// ErrUnauthenticated is returned when no caller identity is present or
	// the caller is not a known user.
	ErrUnauthenticated = errors.New("authentication required")

	// ErrForbidden is returned when the caller does not own the property or
	// may not perform the requested change.
	ErrForbidden = errors.New("not allowed to modify this property")

	// ErrNotBroker is returned when a non-broker tries to close or cancel a deal.
	ErrNotBroker = errors.New("only the listing broker can close or cancel deals")

	// ErrBrokerNotApproved is returned when a broker awaiting approval tries
	// to list a property.
	ErrBrokerNotApproved = errors.New("broker account is not approved")

	// ErrAdminOnly is returned when a non-admin calls a moderation endpoint.
	ErrAdminOnly = errors.New("admin role required")

	// ErrPurposeMismatch is returned when the deal type is not permitted by
	// the property's purpose (e.g. renting a sale-only listing).
	ErrPurposeMismatch = errors.New("deal type not allowed by the property purpose")

	// ErrInvalidTransition is returned when the current status does not
	// permit the requested status change.
	ErrInvalidTransition = errors.New("status transition not allowed")

	// ErrNoDealToCancel is returned when cancelling a property that is
	// neither sold nor rented.
	ErrNoDealToCancel = errors.New("property has no closed deal to cancel")

	// ErrNoChanges is returned when an update carries no updatable field.
	ErrNoChanges = errors.New("no updatable fields provided")

	// ErrNotificationNotFound is returned when a notification does not exist
	// or belongs to another user.
	ErrNotificationNotFound = errors.New("notification not found")

	// ErrFavoriteNotFound is returned when removing a favorite that was
	// never added.
	ErrFavoriteNotFound = errors.New("favorite not found")

	// ErrDeviceNotFound is returned when unregistering an unknown token.
	ErrDeviceNotFound = errors.New("device token not found")

	// ErrInvalidInput wraps field-level validation failures.
	ErrInvalidInput = errors.New("invalid input")
)

// IsValidation reports whether err is a caller input problem (HTTP 400).
func IsValidation(err error) bool {
	for _, target := range []error{
		ErrInvalidInput, ErrInvalidTransition, ErrNoDealToCancel, ErrNoChanges,
		domain.ErrInvalidStatus, domain.ErrInvalidPurpose, domain.ErrInvalidDealType, domain.ErrInvalidRecurrence,
		deals.ErrInvalidPrice, deals.ErrInvalidRate, deals.ErrInvalidCycles,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// IsTransient reports whether err came from an unreachable or overloaded
// database rather than from the request itself (HTTP 503).
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, driver.ErrBadConn) || errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	var connErr *pgconn.ConnectError
	if errors.As(err, &connErr) {
		return true
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		// 08: connection exception, 53: insufficient resources, 57P0x: shutdown
		return strings.HasPrefix(pgErr.Code, "08") || strings.HasPrefix(pgErr.Code, "53") ||
			strings.HasPrefix(pgErr.Code, "57P0")
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "database is locked") || strings.Contains(msg, "connection refused")
}

// isNotFound treats repo-level not found sentinels as "not found".
func isNotFound(err error) bool {
	return errors.Is(err, repo.ErrNotFound)
}
