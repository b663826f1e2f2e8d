package controller

import "context"

// Protocol classifies an entity as a plain actuator or a group.
type Protocol string

const (
	ProtocolNode  Protocol = "node"
	ProtocolGroup Protocol = "group"
)

// Valid reports whether p is a known protocol.
func (p Protocol) Valid() bool {
	return p == ProtocolNode || p == ProtocolGroup
}

// Status is the controller's native status value, 0 to 255 when known.
type Status int

// StatusUnknown is reported when the controller has no value for an entity.
const StatusUnknown Status = -1

// Entity is one addressable object in the controller tree.
//
// Implementations must be safe for concurrent use. Status callbacks may be
// invoked from any goroutine.
type Entity interface {
	Address() string
	Name() string

	// Spoken is the voice alias. Empty means the entity is not exposed;
	// "1" means expose it under its display name.
	Spoken() string

	Dimmable() bool
	Protocol() Protocol
	NodeDefID() string
	Status() Status

	// Groups returns the addresses of the groups this entity belongs to.
	// With responderOnly set, only groups in which the entity is a responder
	// (controlled by the group) are returned.
	Groups(responderOnly bool) []string

	// SubscribeStatus registers fn for status changes. The returned cancel
	// function removes the subscription and may be called more than once.
	SubscribeStatus(fn func(Status)) (cancel func())

	TurnOn(ctx context.Context) error
	TurnOff(ctx context.Context) error
	TurnOnAt(ctx context.Context, level uint8) error
}

// Client is a connected view of the controller tree.
type Client interface {
	// Entities returns every known entity in tree order.
	Entities() []Entity

	// Entity looks up one entity by address.
	Entity(address string) (Entity, bool)

	IsConnected() bool
	Close() error
}

// Logger is the logging dependency of this package.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}
