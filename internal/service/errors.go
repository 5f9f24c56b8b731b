package service

import "errors"

// Acceptance failures are expected outcomes of the first-accept race, not
// system faults. Handlers map them to {success:false, reason} responses;
// the winner is never affected.
var (
	ErrValidation      = errors.New("invalid request")
	ErrNotFound        = errors.New("not found")
	ErrAlreadyAssigned = errors.New("already assigned")
	ErrInvalidStatus   = errors.New("invalid incident status")
	ErrExpired         = errors.New("broadcast expired")
)

// FailureReason returns the wire-level reason string for an acceptance
// failure, or "" for errors that are not part of the acceptance taxonomy.
func FailureReason(err error) string {
	switch {
	case errors.Is(err, ErrAlreadyAssigned):
		return "already_assigned"
	case errors.Is(err, ErrInvalidStatus):
		return "invalid_status"
	case errors.Is(err, ErrExpired):
		return "expired"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	default:
		return ""
	}
}
