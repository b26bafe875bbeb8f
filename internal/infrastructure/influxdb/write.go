package influxdb

import (
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// Measurement names written by the controller.
const (
	MeasurementCycle       = "automation_cycle"
	MeasurementEngine      = "automation_engine"
	MeasurementDeviceCount = "device_count"
)

// CycleMetric is the time-series view of one automation cycle.
type CycleMetric struct {
	DeviceID string
	Platform string
	Action   string // empty when no action ran

	Success bool
	Matched bool
	Skipped bool

	Viewing  time.Duration
	Duration time.Duration
	At       time.Time
}

// WriteCycle records one automation cycle.
//
// The write is non-blocking; data is batched and sent asynchronously.
//
// Example:
//
//	client.WriteCycle(influxdb.CycleMetric{DeviceID: "FA:01", Platform: "tiktok", Success: true})
func (c *Client) WriteCycle(m CycleMetric) {
	if !c.IsConnected() {
		return
	}
	c.writeAPI.WritePoint(cyclePoint(m))
}

// WriteEngineStatus records an engine state transition with the cycle
// count at that moment.
func (c *Client) WriteEngineStatus(status string, cycleCount int) {
	if !c.IsConnected() {
		return
	}
	c.writeAPI.WritePoint(enginePoint(status, cycleCount, time.Now()))
}

// WriteDeviceCount records how many devices a sync saw online and offline.
func (c *Client) WriteDeviceCount(online, offline int) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(
		MeasurementDeviceCount,
		map[string]string{},
		map[string]interface{}{
			"online":  online,
			"offline": offline,
		},
		time.Now(),
	)
	c.writeAPI.WritePoint(point)
}

func cyclePoint(m CycleMetric) *write.Point {
	tags := map[string]string{
		"device_id": m.DeviceID,
	}
	if m.Platform != "" {
		tags["platform"] = m.Platform
	}
	if m.Action != "" {
		tags["action"] = m.Action
	}

	at := m.At
	if at.IsZero() {
		at = time.Now()
	}

	return write.NewPoint(
		MeasurementCycle,
		tags,
		map[string]interface{}{
			"success":     m.Success,
			"matched":     m.Matched,
			"skipped":     m.Skipped,
			"viewing_ms":  m.Viewing.Milliseconds(),
			"duration_ms": m.Duration.Milliseconds(),
		},
		at,
	)
}

func enginePoint(status string, cycleCount int, at time.Time) *write.Point {
	return write.NewPoint(
		MeasurementEngine,
		map[string]string{"status": status},
		map[string]interface{}{"cycle_count": cycleCount},
		at,
	)
}
