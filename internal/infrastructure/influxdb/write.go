package influxdb

import (
	"strconv"
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// Measurement names.
const (
	MeasurementDeviceState   = "spoken_device_state"
	MeasurementBridgeRefresh = "bridge_refresh"
)

// DeviceState is one projected on/brightness sample for a registry slot.
type DeviceState struct {
	Index      int
	ID         string
	Name       string
	On         bool
	Brightness uint8

	// Source is "status" for controller events and "command" for optimistic writes.
	Source string
}

// WriteDeviceState records a projected device state. The write is non-blocking.
func (c *Client) WriteDeviceState(s DeviceState) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(
		MeasurementDeviceState,
		map[string]string{
			"device_id": s.ID,
			"index":     strconv.Itoa(s.Index),
			"name":      s.Name,
			"source":    s.Source,
		},
		map[string]any{
			"on":         s.On,
			"brightness": int64(s.Brightness),
		},
		time.Now(),
	)
	c.writer.WritePoint(point)
}

// WriteRefresh records the outcome of one registry refresh.
// devices is the number of placed handlers; err is nil on success.
func (c *Client) WriteRefresh(bridgeID string, devices int, took time.Duration, err error) {
	if !c.IsConnected() {
		return
	}

	fields := map[string]any{
		"devices":     int64(devices),
		"duration_ms": took.Milliseconds(),
		"success":     err == nil,
	}
	if err != nil {
		fields["error"] = err.Error()
	}

	point := write.NewPoint(
		MeasurementBridgeRefresh,
		map[string]string{"bridge_id": bridgeID},
		fields,
		time.Now(),
	)
	c.writer.WritePoint(point)
}
