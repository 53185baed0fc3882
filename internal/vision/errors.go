package vision

import "errors"

// Domain-specific errors for vision operations.
var (
	// ErrSizeMismatch is returned when a template is larger than the frame.
	ErrSizeMismatch = errors.New("vision: template larger than frame")

	// ErrEmptyImage is returned for nil or zero-area frames and templates.
	ErrEmptyImage = errors.New("vision: empty image")

	// ErrUnknownLabel is returned for a label outside the fixed enumeration.
	ErrUnknownLabel = errors.New("vision: unknown label")
)
