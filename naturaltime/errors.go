package naturaltime

import (
	"errors"
	"fmt"
)

var (
	ErrLongitudeRange = errors.New("longitude must be between -180 and 180")
	ErrLatitudeRange  = errors.New("latitude must be between -90 and 90")
	ErrTimeRange      = errors.New("instant is outside the supported era")
	ErrInvalidDate    = errors.New("natural date was not derived by an engine")
)

// ValidationError reports an input rejected before any computation.
type ValidationError struct {
	Field string
	Value any
	Err   error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error for field '%s' (%v): %v", e.Field, e.Value, e.Err)
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

// EphemerisError reports a failure of the underlying ephemeris. For valid
// inputs it indicates a broken invariant rather than a user error.
type EphemerisError struct {
	Operation string
	Err       error
}

func (e *EphemerisError) Error() string {
	return fmt.Sprintf("ephemeris error during %s: %v", e.Operation, e.Err)
}

func (e *EphemerisError) Unwrap() error {
	return e.Err
}
