package desktop

import "errors"

var (
	// ErrNoDisplay is returned when the configured display index does not exist.
	ErrNoDisplay = errors.New("desktop: display not found")

	// ErrCapture wraps a failed screen grab.
	ErrCapture = errors.New("desktop: capture failed")

	// ErrEmptyKey is returned by KeyPress for an empty key name.
	ErrEmptyKey = errors.New("desktop: empty key")
)
