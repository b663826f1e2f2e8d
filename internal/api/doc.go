// Package api implements the diagnostic HTTP API and WebSocket feed of the
// bridge.
//
// This package provides:
//   - The spoken device table, one row per emulated bulb slot
//   - A refresh endpoint that rescans the controller tree
//   - Local on/off/brightness control of a slot, for testing without a hub
//   - A WebSocket hub that pushes state changes on "device.state_changed"
//   - Middleware stack (request ID, logging, recovery, CORS, body limit)
//
// # Architecture
//
// The API reads the bridge's registry directly. Commands go through the same
// device handlers the emulation layer uses, so a PUT exercises exactly the
// path a voice assistant would. State changes are fanned out by the bridge
// to the hub, which relays them to subscribed WebSocket clients.
//
// The API is optional and disabled unless api.enabled is set.
package api
