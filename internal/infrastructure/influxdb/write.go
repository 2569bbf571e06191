package influxdb

import (
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// Measurement names written by the bridge.
const (
	MeasurementQuery = "nlu_query"
	MeasurementTrain = "nlu_train"
)

// WriteQuery records the outcome of one recognition request.
//
// The intent tag is omitted for unrecognised input. Writes are non-blocking;
// a nil or closed client drops the point.
//
//	client.WriteQuery("kitchen", "ChangeLightState", true, 1.0, 3*time.Millisecond)
func (c *Client) WriteQuery(siteID, intent string, recognized bool, confidence float64, latency time.Duration) {
	tags := map[string]string{"site_id": siteID}
	if intent != "" {
		tags["intent"] = intent
	}
	c.writePoint(MeasurementQuery, tags,
		map[string]any{
			"recognized": recognized,
			"confidence": confidence,
			"latency_ms": float64(latency.Microseconds()) / 1000,
		},
		time.Now(),
	)
}

// WriteTrain records the outcome of one training run.
func (c *Client) WriteTrain(siteID string, success bool, intents, sentences int, duration time.Duration) {
	c.writePoint(MeasurementTrain,
		map[string]string{
			"site_id": siteID,
		},
		map[string]any{
			"success":     success,
			"intents":     intents,
			"sentences":   sentences,
			"duration_ms": float64(duration.Microseconds()) / 1000,
		},
		time.Now(),
	)
}

func (c *Client) writePoint(measurement string, tags map[string]string, fields map[string]any, timestamp time.Time) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(measurement, tags, fields, timestamp)
	c.writeAPI.WritePoint(point)
}
