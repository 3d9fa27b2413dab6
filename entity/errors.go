package entity

import "errors"

var (
	ErrValidation             = errors.New("validation error")
	ErrNotFound               = errors.New("not found")
	ErrSeatUnavailable        = errors.New("seat unavailable")
	ErrInvalidStateTransition = errors.New("invalid state transition")
	ErrInvalidStatus          = errors.New("invalid status")
	ErrConflict               = errors.New("conflict")

	// ErrTransactionFailure marks storage faults. Nothing was committed, so the
	// whole operation may be retried.
	ErrTransactionFailure = errors.New("transaction failure")
)

// IsBusinessError reports whether err is an expected outcome rather than an
// infrastructure fault.
func IsBusinessError(err error) bool {
	return errors.Is(err, ErrValidation) ||
		errors.Is(err, ErrNotFound) ||
		errors.Is(err, ErrSeatUnavailable) ||
		errors.Is(err, ErrInvalidStateTransition) ||
		errors.Is(err, ErrInvalidStatus) ||
		errors.Is(err, ErrConflict)
}
