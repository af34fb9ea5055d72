package wheel

import "errors"

var (
	// ErrWheelTypeNotFound is returned by Refresh while no component of the
	// recognised wheel type exists. The registry retries on the next period.
	ErrWheelTypeNotFound = errors.New("no wheel component of the recognised type found")

	// ErrMissingCapability is returned when the sample wheel lacks a required capability.
	ErrMissingCapability = errors.New("wheel component is missing a required capability")

	// ErrInvalidCurve is returned for a wheel whose slip thresholds are not
	// finite and strictly positive.
	ErrInvalidCurve = errors.New("friction curve has invalid slip thresholds")

	// ErrStaleHandle marks a descriptor whose wheel was destroyed.
	ErrStaleHandle = errors.New("wheel handle is no longer valid")
)
