package export

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"strconv"
	"time"

	domain "fleet-analytics/internal/reporting/domain"
)

type csvRenderer struct{}

// Render flattens the report's most granular section into rows: the alarm
// list for alarm reports, the daily production buckets otherwise. Column
// order is fixed; rows keep source order.
//
// Alarm columns: id, plant_id, device_id, severity, status, message,
// triggered_at, resolved_at.
// Daily columns: date, sum, avg, max, min, count, unit.
func (csvRenderer) Render(report *domain.Report) ([]byte, error) {
	if report == nil {
		return nil, fmt.Errorf("%w: nil report", domain.ErrRender)
	}

	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)

	switch {
	case report.AlarmList != nil:
		if err := writeAlarmRows(writer, report.AlarmList); err != nil {
			return nil, fmt.Errorf("%w: %v", domain.ErrRender, err)
		}
	case report.Production != nil:
		if err := writeDailyRows(writer, report.Production); err != nil {
			return nil, fmt.Errorf("%w: %v", domain.ErrRender, err)
		}
	default:
		return nil, fmt.Errorf("%w: report has no tabular section", domain.ErrRender)
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrRender, err)
	}
	return buf.Bytes(), nil
}

func (csvRenderer) ContentType() string { return "text/csv; charset=utf-8" }

func (csvRenderer) Ext() string { return "csv" }

func writeAlarmRows(writer *csv.Writer, alarms []domain.AlarmEvent) error {
	if err := writer.Write([]string{
		"id", "plant_id", "device_id", "severity", "status", "message", "triggered_at", "resolved_at",
	}); err != nil {
		return err
	}
	for _, alarm := range alarms {
		resolvedAt := ""
		if alarm.ResolvedAt != nil {
			resolvedAt = alarm.ResolvedAt.UTC().Format(time.RFC3339)
		}
		if err := writer.Write([]string{
			alarm.ID,
			alarm.PlantID,
			alarm.DeviceID,
			string(alarm.Severity),
			string(alarm.Status),
			alarm.Message,
			alarm.TriggeredAt.UTC().Format(time.RFC3339),
			resolvedAt,
		}); err != nil {
			return err
		}
	}
	return nil
}

func writeDailyRows(writer *csv.Writer, production *domain.AggregationResult) error {
	if err := writer.Write([]string{"date", "sum", "avg", "max", "min", "count", "unit"}); err != nil {
		return err
	}
	for _, day := range production.DailyData {
		if err := writer.Write([]string{
			day.Date,
			formatFloat(day.Sum),
			formatOptFloat(day.Avg),
			formatOptFloat(day.Max),
			formatOptFloat(day.Min),
			strconv.Itoa(day.Count),
			production.Unit,
		}); err != nil {
			return err
		}
	}
	return nil
}

func formatFloat(value float64) string {
	return strconv.FormatFloat(value, 'f', -1, 64)
}

// formatOptFloat renders the no-data marker as an empty cell, keeping it
// distinct from a measured zero.
func formatOptFloat(value *float64) string {
	if value == nil {
		return ""
	}
	return formatFloat(*value)
}
