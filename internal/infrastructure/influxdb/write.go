package influxdb

import (
	"strconv"
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// Measurement names.
const (
	MeasurementMatch      = "match"
	MeasurementTransition = "transition"
	MeasurementRun        = "run"
)

// WriteMatch records one template match attempt. Tags stay low
// cardinality: the label set is closed and accepted is a boolean.
func (c *Client) WriteMatch(label string, confidence float64, accepted bool) {
	c.writePoint(MeasurementMatch,
		map[string]string{"label": label, "accepted": strconv.FormatBool(accepted)},
		map[string]any{"confidence": confidence},
	)
}

// WriteTransition counts one automaton state change.
func (c *Client) WriteTransition(from, to string) {
	c.writePoint(MeasurementTransition,
		map[string]string{"from": from, "to": to},
		map[string]any{"count": 1},
	)
}

// WriteRun records how a run ended and how long it took.
func (c *Client) WriteRun(outcome string, duration time.Duration, channelSwitches int) {
	c.writePoint(MeasurementRun,
		map[string]string{"outcome": outcome},
		map[string]any{
			"duration_s":       duration.Seconds(),
			"channel_switches": channelSwitches,
		},
	)
}

func (c *Client) writePoint(measurement string, tags map[string]string, fields map[string]any) {
	if !c.IsConnected() {
		return
	}
	c.writeAPI.WritePoint(write.NewPoint(measurement, tags, fields, time.Now()))
}
