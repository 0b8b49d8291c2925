package domain

import (
	"math"
	"testing"
	"time"
)

func interval(status DeviceStatus, minutes int) StatusInterval {
	start := time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)
	return StatusInterval{
		DeviceID: "dev-1",
		Status:   status,
		Start:    start,
		End:      start.Add(time.Duration(minutes) * time.Minute),
	}
}

func TestCalculateUptimePercent(t *testing.T) {
	stats := CalculateUptime([]StatusInterval{
		interval(StatusOnline, 90),
		interval(StatusOffline, 20),
		interval(StatusError, 5),
		interval(StatusMaintenance, 5),
	})

	if stats.TotalMinutes != 120 {
		t.Fatalf("expected 120 total minutes, got %f", stats.TotalMinutes)
	}
	if stats.UptimePercent == nil {
		t.Fatalf("expected uptime percent, got nil")
	}
	if math.Abs(*stats.UptimePercent-75) > 1e-9 {
		t.Fatalf("expected 75%%, got %f", *stats.UptimePercent)
	}
}

func TestCalculateUptimeNoDataIsNotZeroPercent(t *testing.T) {
	stats := CalculateUptime(nil)
	if stats.TotalMinutes != 0 {
		t.Fatalf("expected 0 total, got %f", stats.TotalMinutes)
	}
	if stats.UptimePercent != nil {
		t.Fatalf("expected nil percent for unmeasured device, got %f", *stats.UptimePercent)
	}
}

func TestCalculateUptimeIgnoresNegativeIntervals(t *testing.T) {
	start := time.Date(2026, 4, 1, 1, 0, 0, 0, time.UTC)
	stats := CalculateUptime([]StatusInterval{
		{DeviceID: "dev-1", Status: StatusOnline, Start: start, End: start.Add(-time.Hour)},
	})
	if stats.TotalMinutes != 0 {
		t.Fatalf("expected negative interval clamped to 0, got %f", stats.TotalMinutes)
	}
}
