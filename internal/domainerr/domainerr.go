// Package domainerr defines the error kinds shared by the lifecycle packages.
//
// Packages declare their own sentinel errors and wrap one of these kinds, so a
// caller can match the precise failure (errors.Is(err, appointment.ErrPastDate))
// or only its kind (errors.Is(err, domainerr.ErrValidation)).
package domainerr

import "errors"

var (
	ErrValidation      = errors.New("validation failed")
	ErrState           = errors.New("invalid state")
	ErrConflict        = errors.New("conflict")
	ErrNotFound        = errors.New("not found")
	ErrForbidden       = errors.New("forbidden")
	ErrInvalidCode     = errors.New("invalid code")
	ErrUnauthenticated = errors.New("unauthenticated")
)

// Kind returns the kind wrapped by err, or nil when err carries none.
func Kind(err error) error {
	for _, k := range []error{ErrValidation, ErrState, ErrConflict, ErrNotFound, ErrForbidden, ErrInvalidCode, ErrUnauthenticated} {
		if errors.Is(err, k) {
			return k
		}
	}
	return nil
}
