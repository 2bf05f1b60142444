package influxdb

import (
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// WriteSensorMetric records a single numeric sensor reading for a site.
//
// The write is non-blocking; data is batched and sent asynchronously.
func (c *Client) WriteSensorMetric(siteKey, sensor string, value float64) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(
		"sensor_readings",
		map[string]string{
			"site":   siteKey,
			"sensor": sensor,
		},
		map[string]interface{}{
			"value": value,
		},
		time.Now(),
	)

	c.writeAPI.WritePoint(point)
}

// WriteAlarmMetric records an alarm state change for a site.
// Active alarms write 1, cleared alarms 0, so dashboards can graph
// alarm activity alongside sensor values.
func (c *Client) WriteAlarmMetric(siteKey, alarm string, active bool) {
	if !c.IsConnected() {
		return
	}

	value := 0.0
	if active {
		value = 1.0
	}

	point := write.NewPoint(
		"alarm_states",
		map[string]string{
			"site":  siteKey,
			"alarm": alarm,
		},
		map[string]interface{}{
			"value": value,
		},
		time.Now(),
	)

	c.writeAPI.WritePoint(point)
}

// WritePoint writes a custom measurement with full control over tags and
// fields. Use for data that doesn't fit the helper methods.
func (c *Client) WritePoint(measurement string, tags map[string]string, fields map[string]interface{}) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(measurement, tags, fields, time.Now())
	c.writeAPI.WritePoint(point)
}
