package mqtt

import (
	"fmt"
	"strings"
)

// DefaultTopicPrefix is the topic root used when none is configured.
const DefaultTopicPrefix = "graylogic"

// Topics builds the MQTT topics shared by the bridge and the controller adapter.
//
// Every topic uses the flat scheme {prefix}/{category}/{protocol}/{address}.
// Controller addresses may contain spaces ("1A 2B 3C 1"), so the address
// segment is passed through TopicAddress before use.
//
//	topics := mqtt.Topics{Prefix: "graylogic"}
//	topics.Entity("isy", "1A 2B 3C 1")
//	// Returns: "graylogic/entity/isy/1A_2B_3C_1"
type Topics struct {
	Prefix string
}

func (t Topics) prefix() string {
	if t.Prefix == "" {
		return DefaultTopicPrefix
	}
	return t.Prefix
}

// TopicAddress converts a controller address into a single topic segment.
// Spaces become underscores; MQTT wildcard and separator characters are dropped.
func TopicAddress(address string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case ' ':
			return '_'
		case '/', '+', '#':
			return -1
		default:
			return r
		}
	}, strings.TrimSpace(address))
}

// Entity returns the retained descriptor topic for one controller entity.
//
// Example: graylogic/entity/isy/1A_2B_3C_1
func (t Topics) Entity(protocol, address string) string {
	return fmt.Sprintf("%s/entity/%s/%s", t.prefix(), protocol, TopicAddress(address))
}

// State returns the status event topic for one controller entity.
//
// Example: graylogic/state/isy/1A_2B_3C_1
func (t Topics) State(protocol, address string) string {
	return fmt.Sprintf("%s/state/%s/%s", t.prefix(), protocol, TopicAddress(address))
}

// Command returns the topic commands for one controller entity are sent on.
//
// Example: graylogic/command/isy/1A_2B_3C_1
func (t Topics) Command(protocol, address string) string {
	return fmt.Sprintf("%s/command/%s/%s", t.prefix(), protocol, TopicAddress(address))
}

// Ack returns the topic the controller acknowledges commands on.
//
// Example: graylogic/ack/isy/1A_2B_3C_1
func (t Topics) Ack(protocol, address string) string {
	return fmt.Sprintf("%s/ack/%s/%s", t.prefix(), protocol, TopicAddress(address))
}

// Health returns the retained health topic for a bridge instance.
//
// Example: graylogic/health/huebridge-01
func (t Topics) Health(bridgeID string) string {
	return fmt.Sprintf("%s/health/%s", t.prefix(), bridgeID)
}

// SystemStatus returns the online/offline status topic for this process.
//
// Example: graylogic/system/status
func (t Topics) SystemStatus() string {
	return fmt.Sprintf("%s/system/status", t.prefix())
}

// AllEntities matches every entity descriptor of a protocol.
//
// Pattern: graylogic/entity/isy/+
func (t Topics) AllEntities(protocol string) string {
	return fmt.Sprintf("%s/entity/%s/+", t.prefix(), protocol)
}

// AllStates matches every status event of a protocol.
//
// Pattern: graylogic/state/isy/+
func (t Topics) AllStates(protocol string) string {
	return fmt.Sprintf("%s/state/%s/+", t.prefix(), protocol)
}

// AllAcks matches every command acknowledgement of a protocol.
//
// Pattern: graylogic/ack/isy/+
func (t Topics) AllAcks(protocol string) string {
	return fmt.Sprintf("%s/ack/%s/+", t.prefix(), protocol)
}
