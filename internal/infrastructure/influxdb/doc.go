// Package influxdb records bridge telemetry in InfluxDB.
//
// It wraps the official influxdb-client-go v2 library. Two measurements
// are written:
//   - spoken_device_state: every projected on/brightness change of a registry slot
//   - bridge_refresh: the outcome and duration of each registry refresh
//
// # Usage
//
//	client, err := influxdb.Connect(cfg.InfluxDB)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	client.WriteDeviceState(influxdb.DeviceState{Index: 3, ID: "1A 2B 3C 1", On: true, Brightness: 255})
//
// Writes are batched according to batch_size and flush_interval; write
// errors are reported through SetOnError.
package influxdb
