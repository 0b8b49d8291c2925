package domain

import "time"

// DeviceStatus classifies a device availability interval.
type DeviceStatus string

const (
	StatusOnline      DeviceStatus = "online"
	StatusOffline     DeviceStatus = "offline"
	StatusError       DeviceStatus = "error"
	StatusMaintenance DeviceStatus = "maintenance"
)

// StatusInterval is a contiguous span during which a device held one status.
type StatusInterval struct {
	DeviceID string       `json:"device_id"`
	Status   DeviceStatus `json:"status"`
	Start    time.Time    `json:"start"`
	End      time.Time    `json:"end"`
}

// Duration returns the interval length, never negative.
func (i StatusInterval) Duration() time.Duration {
	if i.End.Before(i.Start) {
		return 0
	}
	return i.End.Sub(i.Start)
}

// UptimeStats summarizes measured availability in minutes per status.
// UptimePercent is nil when nothing was measured; an unmeasured device is
// a different fact than a measured-and-down one.
type UptimeStats struct {
	TotalMinutes       float64  `json:"total_minutes"`
	OnlineMinutes      float64  `json:"online_minutes"`
	OfflineMinutes     float64  `json:"offline_minutes"`
	ErrorMinutes       float64  `json:"error_minutes"`
	MaintenanceMinutes float64  `json:"maintenance_minutes"`
	UptimePercent      *float64 `json:"uptime_percent"`
}

// CalculateUptime sums status intervals into per-status minute totals and
// derives the uptime percentage. A zero total yields a nil percentage.
func CalculateUptime(intervals []StatusInterval) UptimeStats {
	var stats UptimeStats
	for _, interval := range intervals {
		minutes := interval.Duration().Minutes()
		switch interval.Status {
		case StatusOnline:
			stats.OnlineMinutes += minutes
		case StatusOffline:
			stats.OfflineMinutes += minutes
		case StatusError:
			stats.ErrorMinutes += minutes
		case StatusMaintenance:
			stats.MaintenanceMinutes += minutes
		default:
			continue
		}
		stats.TotalMinutes += minutes
	}
	if stats.TotalMinutes > 0 {
		stats.UptimePercent = optFloat(stats.OnlineMinutes / stats.TotalMinutes * 100)
	}
	return stats
}
