package device

import "errors"

// Domain errors for the device package.
var (
	// ErrInvalidIndex is returned when a slot index is negative.
	ErrInvalidIndex = errors.New("device: invalid index")

	// ErrNilHandler is returned when placing a nil handler.
	ErrNilHandler = errors.New("device: nil handler")

	// ErrInvalidSnapshot is returned when a persisted identity snapshot is malformed.
	ErrInvalidSnapshot = errors.New("device: invalid identity snapshot")

	// ErrUnsupportedVersion is returned when a snapshot was written by a newer format.
	ErrUnsupportedVersion = errors.New("device: unsupported snapshot version")
)
