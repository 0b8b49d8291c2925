package domain

import "time"

// Severity classifies alarm impact.
type Severity string

const (
	SeverityCritical Severity = "CRITICAL"
	SeverityHigh     Severity = "HIGH"
	SeverityMedium   Severity = "MEDIUM"
	SeverityLow      Severity = "LOW"
	SeverityInfo     Severity = "INFO"
)

// Rank orders severities, higher is more severe.
func (s Severity) Rank() int {
	switch s {
	case SeverityCritical:
		return 5
	case SeverityHigh:
		return 4
	case SeverityMedium:
		return 3
	case SeverityLow:
		return 2
	case SeverityInfo:
		return 1
	default:
		return 0
	}
}

// AlarmStatus is the lifecycle state of an alarm.
type AlarmStatus string

const (
	AlarmActive       AlarmStatus = "ACTIVE"
	AlarmAcknowledged AlarmStatus = "ACKNOWLEDGED"
	AlarmResolved     AlarmStatus = "RESOLVED"
)

// AlarmEvent is one persisted alarm occurrence.
// ResolvedAt is set iff Status is RESOLVED and is never before TriggeredAt.
type AlarmEvent struct {
	ID          string      `json:"id"`
	PlantID     string      `json:"plant_id"`
	DeviceID    string      `json:"device_id"`
	Severity    Severity    `json:"severity"`
	Status      AlarmStatus `json:"status"`
	Message     string      `json:"message"`
	TriggeredAt time.Time   `json:"triggered_at"`
	ResolvedAt  *time.Time  `json:"resolved_at,omitempty"`
}

// ResolutionMinutes returns the trigger-to-resolution duration in minutes.
// The second return value is false when the alarm is not resolved.
func (a AlarmEvent) ResolutionMinutes() (float64, bool) {
	if a.Status != AlarmResolved || a.ResolvedAt == nil {
		return 0, false
	}
	return a.ResolvedAt.Sub(a.TriggeredAt).Minutes(), true
}
