package errors

import (
	"github.com/gostdlib/base/errors"
)

// The broker's packages import this package instead of the stdlib one, so the plain helpers
// they need are passed through here.

// New returns a sentinel error. Sentinels carry no Type, use E for errors that cross the wire.
func New(text string) error {
	return errors.New(text)
}

// Is reports whether any error in err's chain matches target.
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's chain that matches target. TypeOf and CategoryOf use it to
// find the *Error in a wrapped chain.
func As(err error, target any) bool {
	return errors.As(err, target)
}
