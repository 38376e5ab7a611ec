package influxdb

import (
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// Measurement names written by the switch.
const (
	MeasurementConnect   = "switch_connect"
	MeasurementPublish   = "switch_publish"
	MeasurementHeartbeat = "switch_heartbeat"
	MeasurementState     = "switch_state"
)

// WriteConnectAttempt records one broker connection attempt.
//
// Parameters:
//   - attempt: 1-based attempt number within the current connection cycle
//   - err: Connect error, nil on success
func (c *Client) WriteConnectAttempt(attempt int, err error) {
	fields := map[string]interface{}{
		"attempt": attempt,
		"success": err == nil,
	}
	if err != nil {
		fields["error"] = err.Error()
	}
	c.write(MeasurementConnect, nil, fields)
}

// WritePublish records the outcome of one publish.
func (c *Client) WritePublish(topic string, ok bool) {
	c.write(MeasurementPublish,
		map[string]string{"topic": topic},
		map[string]interface{}{"success": ok},
	)
}

// WriteHeartbeat records process health.
//
// Parameters:
//   - uptime: Time since start-up
//   - heapBytes: Bytes of allocated heap objects
//   - goroutines: Number of live goroutines
func (c *Client) WriteHeartbeat(uptime time.Duration, heapBytes uint64, goroutines int) {
	c.write(MeasurementHeartbeat, nil, map[string]interface{}{
		"uptime_s":   uptime.Seconds(),
		"heap_bytes": heapBytes,
		"goroutines": goroutines,
	})
}

// WriteState records a feature state change.
//
// Example:
//
//	client.WriteState("power", "on")
func (c *Client) WriteState(feature, value string) {
	c.write(MeasurementState,
		map[string]string{"feature": feature},
		map[string]interface{}{"value": value},
	)
}

// WritePoint writes a custom point with full control over tags and fields.
// The device_id tag is added when tags does not set it.
func (c *Client) WritePoint(measurement string, tags map[string]string, fields map[string]interface{}) {
	c.WritePointWithTime(measurement, tags, fields, time.Now())
}

// WritePointWithTime writes a custom point with a specific timestamp.
func (c *Client) WritePointWithTime(measurement string, tags map[string]string, fields map[string]interface{}, timestamp time.Time) {
	if !c.IsConnected() {
		return
	}

	all := make(map[string]string, len(tags)+1)
	all["device_id"] = c.deviceID
	for k, v := range tags {
		all[k] = v
	}

	c.writeAPI.WritePoint(write.NewPoint(measurement, all, fields, timestamp))
}

func (c *Client) write(measurement string, tags map[string]string, fields map[string]interface{}) {
	c.WritePointWithTime(measurement, tags, fields, time.Now())
}
