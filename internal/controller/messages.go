package controller

import (
	"encoding/json"
	"fmt"
	"time"
)

// EntityMessage describes one controller entity.
// Topic: {prefix}/entity/{protocol}/{address}
// QoS: 1, Retained: Yes. An empty retained payload removes the entity.
type EntityMessage struct {
	Address   string   `json:"address"`
	Name      string   `json:"name"`
	Spoken    string   `json:"spoken,omitempty"`
	Dimmable  bool     `json:"dimmable"`
	Protocol  Protocol `json:"protocol"`
	NodeDefID string   `json:"node_def_id,omitempty"`

	// Status is null when the controller does not know the value.
	Status *int `json:"status"`

	// Groups lists scene memberships.
	Groups []GroupRef `json:"groups,omitempty"`

	// Order is the entity's position in a depth-first walk of the controller tree.
	Order int `json:"order"`
}

// GroupRef is one scene membership of a node.
type GroupRef struct {
	Address string `json:"address"`

	// Responder is true when the node is controlled by the group,
	// false when it is a controller of the group.
	Responder bool `json:"responder"`
}

// StateMessage reports a status change.
// Topic: {prefix}/state/{protocol}/{address}
type StateMessage struct {
	Address   string    `json:"address"`
	Status    *int      `json:"status"`
	Timestamp time.Time `json:"timestamp"`
}

// Command names understood by the controller adapter.
const (
	CommandOn  = "on"
	CommandOff = "off"
)

// CommandMessage is sent from the bridge to the controller adapter.
// Topic: {prefix}/command/{protocol}/{address}
type CommandMessage struct {
	// ID correlates the command with its AckMessage.
	ID        string    `json:"id"`
	Timestamp time.Time `json:"timestamp"`
	Address   string    `json:"address"`
	Command   string    `json:"command"`

	// Parameters carries {"level": n} for an on-at-level command.
	Parameters map[string]any `json:"parameters,omitempty"`

	Source string `json:"source"`
}

// AckStatus is the outcome reported by the controller adapter.
type AckStatus string

const (
	AckAccepted       AckStatus = "accepted"
	AckFailed         AckStatus = "failed"
	AckNotAddressable AckStatus = "not_addressable"
)

// AckMessage acknowledges a command.
// Topic: {prefix}/ack/{protocol}/{address}
type AckMessage struct {
	CommandID string    `json:"command_id"`
	Timestamp time.Time `json:"timestamp"`
	Address   string    `json:"address"`
	Status    AckStatus `json:"status"`
	Error     string    `json:"error,omitempty"`
}

// statusFromWire converts a nullable wire status.
func statusFromWire(v *int) Status {
	if v == nil {
		return StatusUnknown
	}
	return Status(*v)
}

// decodeEntity parses and validates an entity descriptor.
func decodeEntity(payload []byte) (EntityMessage, error) {
	var msg EntityMessage
	if err := json.Unmarshal(payload, &msg); err != nil {
		return msg, fmt.Errorf("%w: entity: %w", ErrInvalidMessage, err)
	}
	if msg.Address == "" {
		return msg, fmt.Errorf("%w: entity without address", ErrInvalidMessage)
	}
	if msg.Protocol == "" {
		msg.Protocol = ProtocolNode
	}
	if !msg.Protocol.Valid() {
		return msg, fmt.Errorf("%w: entity %s has protocol %q", ErrInvalidMessage, msg.Address, msg.Protocol)
	}
	return msg, nil
}

// ackError maps an acknowledgement onto this package's errors.
func ackError(ack AckMessage) error {
	switch ack.Status {
	case AckAccepted:
		return nil
	case AckNotAddressable:
		return fmt.Errorf("%w: %s", ErrNotAddressable, ack.Address)
	default:
		if ack.Error != "" {
			return fmt.Errorf("%w: %s: %s", ErrCommandFailed, ack.Address, ack.Error)
		}
		return fmt.Errorf("%w: %s: status %q", ErrCommandFailed, ack.Address, ack.Status)
	}
}
