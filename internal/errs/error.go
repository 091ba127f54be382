package errs

import (
	"errors"
	"fmt"
)

// Rejections surfaced by the booking engine. Each carries a stable code
// for API consumers; handlers map them onto HTTP statuses.
var (
	ErrInvalidInterval      = errors.New("start must be before end")
	ErrResourceNotFound     = errors.New("parking resource not found")
	ErrReservationNotFound  = errors.New("reservation not found")
	ErrResourceNotApproved  = errors.New("parking resource is not approved for booking")
	ErrNoCapacityConfigured = errors.New("no capacity configured for vehicle class")
	ErrOverCapacity         = errors.New("no slot available for the requested window")
	ErrCannotExtend         = errors.New("cannot extend: window conflicts with other reservations")
	ErrInvalidTransition    = errors.New("invalid reservation status transition")
	ErrAlreadyExpired       = errors.New("reservation already expired")
	ErrUnauthorized         = errors.New("not allowed to act on this reservation")
)

// Transition wraps ErrInvalidTransition with the human-readable reason,
// e.g. "already checked in" or "cannot cancel this booking".
func Transition(reason string) error {
	return fmt.Errorf("%w: %s", ErrInvalidTransition, reason)
}
