package control

import "errors"

// Package errors.
var (
	// ErrUnknownDevice indicates the command targets an address not
	// under management.
	ErrUnknownDevice = errors.New("control: unknown device")

	// ErrUnknownAction indicates an unrecognised command action.
	ErrUnknownAction = errors.New("control: unknown action")
)
