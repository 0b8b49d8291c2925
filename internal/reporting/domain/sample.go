package domain

import "time"

// MetricSample is one persisted time-series measurement.
// Samples are immutable and ordered by timestamp. A gap in the sequence
// means absence of data, not a zero value.
type MetricSample struct {
	DeviceID  string    `json:"device_id"`
	TagID     string    `json:"tag_id"`
	Timestamp time.Time `json:"timestamp"`
	Value     float64   `json:"value"`
	Unit      string    `json:"unit"`
}
