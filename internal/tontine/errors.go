// Package tontine holds the core engines: member registry, payout-order
// engine, session state machine and payment reconciliation. Every mutating
// operation runs as one database transaction and fails without partial
// writes.
package tontine

import (
	"errors"
	"fmt"
	"net/http"
)

// Error categories. Specific errors below wrap exactly one category so
// callers can match either level with errors.Is.
var (
	ErrValidation         = errors.New("validation error")
	ErrStateConflict      = errors.New("state conflict")
	ErrResourceConflict   = errors.New("resource conflict")
	ErrNotFound           = errors.New("not found")
	ErrPermissionDenied   = errors.New("permission denied")
	ErrPreconditionFailed = errors.New("precondition failed")
)

var (
	ErrDuplicateMembership   = fmt.Errorf("%w: user already has an active membership", ErrResourceConflict)
	ErrDuplicatePayment      = fmt.Errorf("%w: a pending or validated payment already exists for this session", ErrResourceConflict)
	ErrOrderAlreadyExists    = fmt.Errorf("%w: payout order already generated", ErrResourceConflict)
	ErrSessionsAlreadyExist  = fmt.Errorf("%w: sessions already generated for this group", ErrResourceConflict)
	ErrGroupFull             = fmt.Errorf("%w: group is at maximum capacity", ErrPreconditionFailed)
	ErrInsufficientMembers   = fmt.Errorf("%w: not enough active members", ErrPreconditionFailed)
	ErrSessionNotOpen        = fmt.Errorf("%w: session is not open for payments", ErrPreconditionFailed)
	ErrNotAMember            = fmt.Errorf("%w: user is not an active member of this group", ErrPreconditionFailed)
	ErrInvalidTransition     = fmt.Errorf("%w: transition not allowed from current status", ErrStateConflict)
	ErrOrderLocked           = fmt.Errorf("%w: order is locked once a passage has completed", ErrStateConflict)
	ErrIncompleteCollection  = fmt.Errorf("%w: collected amount is below the expected amount", ErrStateConflict)
	ErrLastManagerConstraint = fmt.Errorf("%w: the sole chair cannot remove themselves", ErrPreconditionFailed)
)

// HTTPStatus maps the taxonomy to response codes for the controller layer.
func HTTPStatus(err error) int {
	switch {
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrPermissionDenied):
		return http.StatusForbidden
	case errors.Is(err, ErrStateConflict), errors.Is(err, ErrResourceConflict):
		return http.StatusConflict
	case errors.Is(err, ErrValidation), errors.Is(err, ErrPreconditionFailed):
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}
