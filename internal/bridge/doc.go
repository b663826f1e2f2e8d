// Package bridge connects the controller to the spoken device registry.
//
// A Bridge owns the controller connection, walks the controller tree on
// Refresh, builds a device.Handler for every entity with a spoken alias and
// places it in the registry under its stable index. The resulting identity
// snapshot is persisted through a device.IdentityStore.
//
// The Supervisor runs connect and refresh on a worker goroutine and starts a
// new worker when the previous one died, so a hung or failed controller
// never blocks the host. The HealthReporter publishes a retained health
// message to MQTT.
//
// # Failure handling
//
//   - Connect retries a bounded number of times, then returns ErrConnectionFailed.
//   - An empty controller tree aborts Refresh with ErrEmptyTree and leaves the
//     registry and the store as they were.
//   - A failed save returns ErrPersistFailed; the registry stays usable.
//   - Problems with single entities are logged and never abort a refresh.
package bridge
