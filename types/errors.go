package types

import "errors"

// Error kinds surfaced by the engine. Callers discriminate with errors.Is;
// every failure returned by a package in this module wraps exactly one of
// these sentinels.
var (
	// ErrInvalidArgument covers null, empty or malformed inputs.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrShapeMismatch is returned when two images have incompatible
	// dimensions and resizing was not requested.
	ErrShapeMismatch = errors.New("image shape mismatch")

	// ErrNotFound is returned when a named baseline does not exist.
	ErrNotFound = errors.New("baseline not found")

	// ErrDecode is returned when a file exists but cannot be decoded as an
	// image.
	ErrDecode = errors.New("image decode failed")

	// ErrIO covers disk failures while writing baselines or reports.
	ErrIO = errors.New("i/o failure")
)
