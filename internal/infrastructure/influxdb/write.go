package influxdb

import (
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// Measurements written by the telemetry sink.
const (
	MeasurementStatus     = "robot_status"
	MeasurementConnection = "robot_connection"
)

// WritePoint queues one point. Points with no fields, and points written
// after Close, are dropped. Keep tag values low-cardinality: robot id and
// connection phase, never free text.
func (c *Client) WritePoint(measurement string, tags map[string]string, fields map[string]any, ts time.Time) {
	if !c.IsConnected() || len(fields) == 0 {
		return
	}
	c.writeAPI.WritePoint(write.NewPoint(measurement, tags, fields, ts))
}
