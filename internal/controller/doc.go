// Package controller defines the automation controller as seen by the bridge
// and provides an MQTT-backed implementation of it.
//
// The controller owns a tree of addressable entities: plain nodes (dimmers,
// relays, keypad buttons) and groups (scenes). Each entity carries a display
// name, an optional spoken alias, a dimmable flag, a numeric status and its
// scene memberships. The bridge only reads these attributes, subscribes to
// status changes, and issues on/off/on-at-level actions.
//
// # MQTT adapter
//
// MQTTClient talks to a controller adapter over the broker:
//
//	{prefix}/entity/{protocol}/{address}   retained EntityMessage (empty payload removes)
//	{prefix}/state/{protocol}/{address}    StateMessage on every status change
//	{prefix}/command/{protocol}/{address}  CommandMessage published by the bridge
//	{prefix}/ack/{protocol}/{address}      AckMessage correlated by command id
//
// Dial subscribes to all three inbound topics and waits DiscoveryWait for the
// retained descriptors to arrive. Entities are returned in the controller's
// tree order (EntityMessage.Order), ties broken by arrival.
//
// # Addresses
//
// Keypad buttons are addressed as the device address followed by a decimal
// button number ("1A 2B 3C 2" or "A1 02"). IsSecondaryButton reports buttons
// 2 to 9, which share the keypad's dimmable flag but cannot be dimmed.
package controller
