package bridge

import "errors"

// Domain errors for the bridge package.
var (
	// ErrConnectionFailed is returned when the controller could not be reached
	// within the configured number of attempts.
	ErrConnectionFailed = errors.New("bridge: controller connection failed")

	// ErrNotConnected is returned by Refresh before a successful Connect.
	ErrNotConnected = errors.New("bridge: controller not connected")

	// ErrEmptyTree is returned when the controller reports no entities.
	ErrEmptyTree = errors.New("bridge: controller tree is empty")

	// ErrPersistFailed is returned when the identity snapshot could not be saved.
	ErrPersistFailed = errors.New("bridge: persisting identities failed")
)
