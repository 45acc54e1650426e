package influxdb

import (
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// CommandMeasurement is the measurement dispatched device commands are
// recorded under.
const CommandMeasurement = "device_commands"

// WriteCommand records one command published to a transmitter.
//
// Tags are device_id, variant and action; the publish latency is stored
// in milliseconds so command history can be charted per device.
func (c *Client) WriteCommand(deviceID, variant, action string, latency time.Duration) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(
		CommandMeasurement,
		map[string]string{
			"device_id": deviceID,
			"variant":   variant,
			"action":    action,
		},
		map[string]interface{}{
			"count":      1,
			"latency_ms": float64(latency) / float64(time.Millisecond),
		},
		time.Now(),
	)

	c.writeAPI.WritePoint(point)
}
