package controller

import "errors"

var (
	// ErrNotConnected is returned when the controller transport is down.
	ErrNotConnected = errors.New("controller: not connected")

	// ErrClosed is returned by operations on a closed client.
	ErrClosed = errors.New("controller: client closed")

	// ErrCommandFailed is returned when the controller rejects or fails a command.
	ErrCommandFailed = errors.New("controller: command failed")

	// ErrCommandTimeout is returned when no acknowledgement arrives in time.
	ErrCommandTimeout = errors.New("controller: command timed out")

	// ErrNotAddressable is returned when a node cannot be commanded directly
	// and must be driven through a scene it belongs to.
	ErrNotAddressable = errors.New("controller: entity not directly addressable")

	// ErrInvalidMessage is returned for malformed adapter messages.
	ErrInvalidMessage = errors.New("controller: invalid message")
)
