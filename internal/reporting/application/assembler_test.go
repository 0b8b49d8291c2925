package application

import (
	"context"
	"errors"
	"testing"
	"time"

	"fleet-analytics/internal/access"
	"fleet-analytics/internal/auth"
	masterdata "fleet-analytics/internal/masterdata/domain"
	domain "fleet-analytics/internal/reporting/domain"
)

type stubDirectory struct {
	plants  map[string]*masterdata.Plant
	devices map[string]*masterdata.Device
}

func (d *stubDirectory) GetPlant(ctx context.Context, id string) (*masterdata.Plant, error) {
	return d.plants[id], nil
}

func (d *stubDirectory) GetDevice(ctx context.Context, id string) (*masterdata.Device, error) {
	return d.devices[id], nil
}

type stubGrants struct {
	plants map[string][]string
}

func (g *stubGrants) AccessiblePlants(ctx context.Context, userID string) ([]string, error) {
	return g.plants[userID], nil
}

type stubFetcher struct {
	samples   []domain.MetricSample
	alarms    []domain.AlarmEvent
	intervals []domain.StatusInterval
}

func (f *stubFetcher) PlantSamples(ctx context.Context, plantID string, start, end time.Time) ([]domain.MetricSample, error) {
	return f.samples, nil
}

func (f *stubFetcher) DeviceSamples(ctx context.Context, deviceID string, start, end time.Time) ([]domain.MetricSample, error) {
	return f.samples, nil
}

func (f *stubFetcher) PlantAlarms(ctx context.Context, plantID string, start, end time.Time) ([]domain.AlarmEvent, error) {
	return f.alarms, nil
}

func (f *stubFetcher) PlantStatusIntervals(ctx context.Context, plantID string, start, end time.Time) ([]domain.StatusInterval, error) {
	return f.intervals, nil
}

func (f *stubFetcher) DeviceStatusIntervals(ctx context.Context, deviceID string, start, end time.Time) ([]domain.StatusInterval, error) {
	return f.intervals, nil
}

type fixedClock struct {
	at time.Time
}

func (c fixedClock) Now() time.Time { return c.at }

var (
	testNow   = time.Date(2026, 6, 10, 8, 0, 0, 0, time.UTC)
	testFrom  = time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)
	testTo    = time.Date(2026, 6, 2, 0, 0, 0, 0, time.UTC)
	testPlant = &masterdata.Plant{ID: "p1", Name: "North Field", OwnerID: "owner-1"}
)

func newAssembler(t *testing.T, fetcher *stubFetcher, grants map[string][]string) *Assembler {
	t.Helper()
	directory := &stubDirectory{
		plants: map[string]*masterdata.Plant{"p1": testPlant},
		devices: map[string]*masterdata.Device{
			"d1": {ID: "d1", PlantID: "p1", Name: "Inverter 1"},
		},
	}
	filter, err := access.NewFilter(&stubGrants{plants: grants}, directory)
	if err != nil {
		t.Fatalf("new filter: %v", err)
	}
	assembler, err := NewAssembler(directory, filter, fetcher, fixedClock{at: testNow}, nil)
	if err != nil {
		t.Fatalf("new assembler: %v", err)
	}
	return assembler
}

func plantRequest(reportType domain.ReportType) ReportRequest {
	return ReportRequest{
		Type:        reportType,
		PlantID:     "p1",
		From:        testFrom,
		To:          testTo,
		RequesterID: "u1",
		Role:        auth.RoleViewer,
	}
}

func TestAssemblePlantPerformanceSections(t *testing.T) {
	fetcher := &stubFetcher{
		samples: []domain.MetricSample{
			{DeviceID: "d1", Timestamp: testFrom.Add(6 * time.Hour), Value: 10, Unit: "kWh"},
			{DeviceID: "d1", Timestamp: testFrom.Add(7 * time.Hour), Value: 20, Unit: "kWh"},
		},
		alarms: []domain.AlarmEvent{
			{ID: "a1", PlantID: "p1", Severity: domain.SeverityHigh, Status: domain.AlarmActive, Message: "overtemp", TriggeredAt: testFrom},
		},
		intervals: []domain.StatusInterval{
			{DeviceID: "d1", Status: domain.StatusOnline, Start: testFrom, End: testFrom.Add(time.Hour)},
		},
	}
	assembler := newAssembler(t, fetcher, map[string][]string{"u1": {"p1"}})

	report, err := assembler.Assemble(context.Background(), plantRequest(domain.ReportPlantPerformance))
	if err != nil {
		t.Fatalf("assemble: %v", err)
	}
	if report.Production == nil || report.Uptime == nil || report.Alarms == nil {
		t.Fatalf("expected all plant sections, got %+v", report)
	}
	if report.AlarmList != nil {
		t.Fatalf("plant performance report should not carry the alarm list")
	}
	if report.Production.Sum != 30 {
		t.Fatalf("expected sum 30, got %f", report.Production.Sum)
	}
	if len(report.Production.DailyData) != 2 {
		t.Fatalf("expected 2 daily buckets, got %d", len(report.Production.DailyData))
	}
	if report.Scope.Name != "North Field" {
		t.Fatalf("expected scope name from directory, got %s", report.Scope.Name)
	}
	if !report.GeneratedAt.Equal(testNow) {
		t.Fatalf("expected generated at %s, got %s", testNow, report.GeneratedAt)
	}
}

func TestAssembleDevicePerformanceResolvesPlant(t *testing.T) {
	assembler := newAssembler(t, &stubFetcher{}, map[string][]string{"u1": {"p1"}})

	req := ReportRequest{
		Type:        domain.ReportDevicePerformance,
		DeviceID:    "d1",
		From:        testFrom,
		To:          testTo,
		RequesterID: "u1",
		Role:        auth.RoleViewer,
	}
	report, err := assembler.Assemble(context.Background(), req)
	if err != nil {
		t.Fatalf("assemble: %v", err)
	}
	if report.Scope.PlantID != "p1" || report.Scope.DeviceID != "d1" {
		t.Fatalf("expected device scope with owning plant, got %+v", report.Scope)
	}
	if report.Production == nil || report.Uptime == nil {
		t.Fatalf("expected production and uptime sections")
	}
	if report.Alarms != nil {
		t.Fatalf("device report should not carry alarm stats")
	}
}

func TestAssembleAlarmsCarriesList(t *testing.T) {
	fetcher := &stubFetcher{
		alarms: []domain.AlarmEvent{
			{ID: "a1", PlantID: "p1", Severity: domain.SeverityCritical, Status: domain.AlarmActive, Message: "grid loss", TriggeredAt: testFrom},
			{ID: "a2", PlantID: "p1", Severity: domain.SeverityLow, Status: domain.AlarmActive, Message: "grid loss", TriggeredAt: testFrom},
		},
	}
	assembler := newAssembler(t, fetcher, map[string][]string{"u1": {"p1"}})

	report, err := assembler.Assemble(context.Background(), plantRequest(domain.ReportAlarms))
	if err != nil {
		t.Fatalf("assemble: %v", err)
	}
	if len(report.AlarmList) != 2 {
		t.Fatalf("expected 2 alarms, got %d", len(report.AlarmList))
	}
	if report.Alarms.Total != 2 {
		t.Fatalf("expected total 2, got %d", report.Alarms.Total)
	}
	if len(report.Alarms.TopTypes) != 1 || report.Alarms.TopTypes[0].Severity != domain.SeverityCritical {
		t.Fatalf("expected grouped type with max severity, got %+v", report.Alarms.TopTypes)
	}
}

func TestAssembleEmptyDataStaysWellShaped(t *testing.T) {
	assembler := newAssembler(t, &stubFetcher{}, map[string][]string{"u1": {"p1"}})

	report, err := assembler.Assemble(context.Background(), plantRequest(domain.ReportEnergyProduction))
	if err != nil {
		t.Fatalf("assemble: %v", err)
	}
	if report.Production == nil {
		t.Fatalf("expected production section")
	}
	if report.Production.Avg != nil || report.Production.Max != nil {
		t.Fatalf("expected no-data markers for empty window")
	}
	if len(report.Production.DailyData) != 2 {
		t.Fatalf("expected a bucket per day, got %d", len(report.Production.DailyData))
	}
}

func TestAssembleForbiddenPlant(t *testing.T) {
	assembler := newAssembler(t, &stubFetcher{}, map[string][]string{"u1": {"other"}})

	_, err := assembler.Assemble(context.Background(), plantRequest(domain.ReportPlantPerformance))
	if !errors.Is(err, domain.ErrForbidden) {
		t.Fatalf("expected ErrForbidden, got %v", err)
	}
}

func TestAssembleUnknownPlant(t *testing.T) {
	assembler := newAssembler(t, &stubFetcher{}, map[string][]string{"u1": {"ghost"}})

	req := plantRequest(domain.ReportEnergyProduction)
	req.PlantID = "ghost"
	_, err := assembler.Assemble(context.Background(), req)
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestAssembleAdminBypassesGrants(t *testing.T) {
	assembler := newAssembler(t, &stubFetcher{}, map[string][]string{})

	req := plantRequest(domain.ReportEnergyProduction)
	req.Role = auth.RoleAdmin
	if _, err := assembler.Assemble(context.Background(), req); err != nil {
		t.Fatalf("expected admin access, got %v", err)
	}
}

func TestAssembleRejectsInvalidRequests(t *testing.T) {
	assembler := newAssembler(t, &stubFetcher{}, map[string][]string{"u1": {"p1"}})

	cases := map[string]ReportRequest{
		"unknown type": {
			Type: "weekly", PlantID: "p1", From: testFrom, To: testTo,
			RequesterID: "u1", Role: auth.RoleViewer,
		},
		"inverted period": {
			Type: domain.ReportEnergyProduction, PlantID: "p1", From: testTo, To: testFrom,
			RequesterID: "u1", Role: auth.RoleViewer,
		},
		"device report without device": {
			Type: domain.ReportDevicePerformance, PlantID: "p1", From: testFrom, To: testTo,
			RequesterID: "u1", Role: auth.RoleViewer,
		},
		"alarm report without plant": {
			Type: domain.ReportAlarms, From: testFrom, To: testTo,
			RequesterID: "u1", Role: auth.RoleViewer,
		},
	}
	for name, req := range cases {
		if _, err := assembler.Assemble(context.Background(), req); !errors.Is(err, domain.ErrBadRequest) {
			t.Fatalf("%s: expected ErrBadRequest, got %v", name, err)
		}
	}
}
