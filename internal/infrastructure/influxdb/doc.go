// Package influxdb writes automation telemetry to InfluxDB.
//
// It wraps the official influxdb-client-go v2 library with connection
// management, batched non-blocking writes and health monitoring.
//
// # Measurements
//
//   - automation_cycle: one point per cycle, tagged by device, platform
//     and action
//   - automation_engine: engine state transitions with the cycle count
//   - device_count: online/offline totals after each device sync
//
// # Usage
//
//	client, err := influxdb.Connect(ctx, cfg.InfluxDB)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	client.WriteCycle(influxdb.CycleMetric{DeviceID: "FA:01", Success: true})
//
// # Thread Safety
//
// All methods are safe for concurrent use from multiple goroutines.
package influxdb
