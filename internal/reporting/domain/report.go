package domain

import (
	"fmt"
	"time"
)

// ReportType selects the assembly pipeline for a report.
type ReportType string

const (
	ReportPlantPerformance  ReportType = "plant-performance"
	ReportDevicePerformance ReportType = "device-performance"
	ReportAlarms            ReportType = "alarms"
	ReportEnergyProduction  ReportType = "energy"
)

// IsValid checks the report type against the supported set.
func (t ReportType) IsValid() bool {
	switch t {
	case ReportPlantPerformance, ReportDevicePerformance, ReportAlarms, ReportEnergyProduction:
		return true
	default:
		return false
	}
}

// Format tags the requested export encoding.
type Format string

const (
	FormatJSON  Format = "json"
	FormatCSV   Format = "csv"
	FormatPDF   Format = "pdf"
	FormatExcel Format = "excel"
)

// ParseFormat validates a format tag.
func ParseFormat(value string) (Format, error) {
	switch Format(value) {
	case FormatJSON, FormatCSV, FormatPDF, FormatExcel:
		return Format(value), nil
	default:
		return "", fmt.Errorf("%w: unsupported format %q", ErrBadRequest, value)
	}
}

// Period is the inclusive calendar-day window of a report.
type Period struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// ScopeRef names the plant or device a report covers.
type ScopeRef struct {
	PlantID  string `json:"plant_id,omitempty"`
	DeviceID string `json:"device_id,omitempty"`
	Name     string `json:"name,omitempty"`
}

// ID returns the identifier used in export filenames.
func (s ScopeRef) ID() string {
	if s.DeviceID != "" {
		return s.DeviceID
	}
	return s.PlantID
}

// Report is the canonical assembled result. Sections not produced by the
// report type's pipeline stay nil; a sparse-data report is still well
// shaped.
type Report struct {
	Type        ReportType         `json:"type"`
	Scope       ScopeRef           `json:"scope"`
	Period      Period             `json:"period"`
	GeneratedAt time.Time          `json:"generated_at"`
	Production  *AggregationResult `json:"production,omitempty"`
	Uptime      *UptimeStats       `json:"uptime,omitempty"`
	Alarms      *AlarmStats        `json:"alarms,omitempty"`
	AlarmList   []AlarmEvent       `json:"alarm_list,omitempty"`
}
