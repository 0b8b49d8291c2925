package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	domain "fleet-analytics/internal/reporting/domain"
)

const (
	defaultSamplesTable   = "metric_samples"
	defaultAlarmsTable    = "alarm_events"
	defaultIntervalsTable = "device_status_intervals"
	defaultDevicesTable   = "devices"
)

// Fetcher loads raw report series from Postgres. Plant-wide queries join
// through the devices table; computation stays in the domain layer.
type Fetcher struct {
	db             *sql.DB
	samplesTable   string
	alarmsTable    string
	intervalsTable string
	devicesTable   string
}

// NewFetcher constructs a Fetcher.
func NewFetcher(db *sql.DB, opts ...FetcherOption) (*Fetcher, error) {
	if db == nil {
		return nil, errors.New("reporting postgres: nil db")
	}
	fetcher := &Fetcher{
		db:             db,
		samplesTable:   defaultSamplesTable,
		alarmsTable:    defaultAlarmsTable,
		intervalsTable: defaultIntervalsTable,
		devicesTable:   defaultDevicesTable,
	}
	for _, opt := range opts {
		opt(fetcher)
	}
	return fetcher, nil
}

// FetcherOption configures the fetcher.
type FetcherOption func(*Fetcher)

// WithSamplesTable overrides the metric samples table name.
func WithSamplesTable(table string) FetcherOption {
	return func(f *Fetcher) {
		if table != "" {
			f.samplesTable = table
		}
	}
}

// WithAlarmsTable overrides the alarm events table name.
func WithAlarmsTable(table string) FetcherOption {
	return func(f *Fetcher) {
		if table != "" {
			f.alarmsTable = table
		}
	}
}

// WithIntervalsTable overrides the status intervals table name.
func WithIntervalsTable(table string) FetcherOption {
	return func(f *Fetcher) {
		if table != "" {
			f.intervalsTable = table
		}
	}
}

// PlantSamples loads every sample of every device in the plant within
// [start, end).
func (f *Fetcher) PlantSamples(ctx context.Context, plantID string, start, end time.Time) ([]domain.MetricSample, error) {
	query := fmt.Sprintf(`
SELECT s.device_id, s.tag_id, s.ts, s.value, s.unit
FROM %s s
JOIN %s d ON d.id = s.device_id
WHERE d.plant_id = $1 AND s.ts >= $2 AND s.ts < $3
ORDER BY s.ts`, f.samplesTable, f.devicesTable)
	return f.querySamples(ctx, query, plantID, start.UTC(), end.UTC())
}

// DeviceSamples loads one device's samples within [start, end).
func (f *Fetcher) DeviceSamples(ctx context.Context, deviceID string, start, end time.Time) ([]domain.MetricSample, error) {
	query := fmt.Sprintf(`
SELECT device_id, tag_id, ts, value, unit
FROM %s
WHERE device_id = $1 AND ts >= $2 AND ts < $3
ORDER BY ts`, f.samplesTable)
	return f.querySamples(ctx, query, deviceID, start.UTC(), end.UTC())
}

// PlantAlarms loads alarms triggered within [start, end) for a plant.
func (f *Fetcher) PlantAlarms(ctx context.Context, plantID string, start, end time.Time) ([]domain.AlarmEvent, error) {
	query := fmt.Sprintf(`
SELECT id, plant_id, device_id, severity, status, message, triggered_at, resolved_at
FROM %s
WHERE plant_id = $1 AND triggered_at >= $2 AND triggered_at < $3
ORDER BY triggered_at DESC`, f.alarmsTable)

	rows, err := f.db.QueryContext(ctx, query, plantID, start.UTC(), end.UTC())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var alarms []domain.AlarmEvent
	for rows.Next() {
		var alarm domain.AlarmEvent
		var deviceID sql.NullString
		var resolvedAt sql.NullTime
		if err := rows.Scan(
			&alarm.ID,
			&alarm.PlantID,
			&deviceID,
			&alarm.Severity,
			&alarm.Status,
			&alarm.Message,
			&alarm.TriggeredAt,
			&resolvedAt,
		); err != nil {
			return nil, err
		}
		alarm.DeviceID = deviceID.String
		alarm.TriggeredAt = alarm.TriggeredAt.UTC()
		if resolvedAt.Valid {
			at := resolvedAt.Time.UTC()
			alarm.ResolvedAt = &at
		}
		alarms = append(alarms, alarm)
	}
	return alarms, rows.Err()
}

// PlantStatusIntervals loads status intervals overlapping [start, end) for
// every device in the plant.
func (f *Fetcher) PlantStatusIntervals(ctx context.Context, plantID string, start, end time.Time) ([]domain.StatusInterval, error) {
	query := fmt.Sprintf(`
SELECT i.device_id, i.status, i.started_at, i.ended_at
FROM %s i
JOIN %s d ON d.id = i.device_id
WHERE d.plant_id = $1 AND i.started_at < $3 AND i.ended_at > $2
ORDER BY i.started_at`, f.intervalsTable, f.devicesTable)
	return f.queryIntervals(ctx, query, plantID, start.UTC(), end.UTC())
}

// DeviceStatusIntervals loads one device's status intervals overlapping
// [start, end).
func (f *Fetcher) DeviceStatusIntervals(ctx context.Context, deviceID string, start, end time.Time) ([]domain.StatusInterval, error) {
	query := fmt.Sprintf(`
SELECT device_id, status, started_at, ended_at
FROM %s
WHERE device_id = $1 AND started_at < $3 AND ended_at > $2
ORDER BY started_at`, f.intervalsTable)
	return f.queryIntervals(ctx, query, deviceID, start.UTC(), end.UTC())
}

func (f *Fetcher) querySamples(ctx context.Context, query string, args ...any) ([]domain.MetricSample, error) {
	rows, err := f.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var samples []domain.MetricSample
	for rows.Next() {
		var sample domain.MetricSample
		var unit sql.NullString
		if err := rows.Scan(&sample.DeviceID, &sample.TagID, &sample.Timestamp, &sample.Value, &unit); err != nil {
			return nil, err
		}
		sample.Unit = unit.String
		sample.Timestamp = sample.Timestamp.UTC()
		samples = append(samples, sample)
	}
	return samples, rows.Err()
}

func (f *Fetcher) queryIntervals(ctx context.Context, query string, args ...any) ([]domain.StatusInterval, error) {
	rows, err := f.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var intervals []domain.StatusInterval
	for rows.Next() {
		var interval domain.StatusInterval
		if err := rows.Scan(&interval.DeviceID, &interval.Status, &interval.Start, &interval.End); err != nil {
			return nil, err
		}
		interval.Start = interval.Start.UTC()
		interval.End = interval.End.UTC()
		intervals = append(intervals, interval)
	}
	return intervals, rows.Err()
}
