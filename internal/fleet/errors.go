package fleet

import "errors"

// Package errors.
var (
	// ErrDeviceNotFound indicates the requested device is not in the
	// directory.
	ErrDeviceNotFound = errors.New("fleet: device not found")

	// ErrInvalidDevice indicates a directory operation received an
	// incomplete device record.
	ErrInvalidDevice = errors.New("fleet: invalid device")
)
