package application

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"fleet-analytics/internal/access"
	"fleet-analytics/internal/auth"
	masterdata "fleet-analytics/internal/masterdata/domain"
	domain "fleet-analytics/internal/reporting/domain"
)

// DataFetcher loads the raw series a report is computed from. The fetch
// window is the inclusive calendar-day period widened to whole UTC days.
type DataFetcher interface {
	PlantSamples(ctx context.Context, plantID string, start, end time.Time) ([]domain.MetricSample, error)
	DeviceSamples(ctx context.Context, deviceID string, start, end time.Time) ([]domain.MetricSample, error)
	PlantAlarms(ctx context.Context, plantID string, start, end time.Time) ([]domain.AlarmEvent, error)
	PlantStatusIntervals(ctx context.Context, plantID string, start, end time.Time) ([]domain.StatusInterval, error)
	DeviceStatusIntervals(ctx context.Context, deviceID string, start, end time.Time) ([]domain.StatusInterval, error)
}

// Clock provides time.
type Clock interface {
	Now() time.Time
}

// SystemClock reads the wall clock.
type SystemClock struct{}

// Now returns the current UTC time.
func (SystemClock) Now() time.Time { return time.Now().UTC() }

// ReportRequest carries everything needed to assemble one report. The
// requester identity comes from the authenticated context, never from
// request parameters.
type ReportRequest struct {
	Type        domain.ReportType
	PlantID     string
	DeviceID    string
	From        time.Time
	To          time.Time
	RequesterID string
	Role        auth.Role
	TopTypes    int
}

// Assembler orchestrates report assembly: validate, resolve access scope,
// check existence, fetch raw series, compute sections.
type Assembler struct {
	directory masterdata.Directory
	filter    *access.Filter
	fetcher   DataFetcher
	clock     Clock
	logger    *zap.Logger
}

// NewAssembler builds an Assembler.
func NewAssembler(directory masterdata.Directory, filter *access.Filter, fetcher DataFetcher, clock Clock, logger *zap.Logger) (*Assembler, error) {
	if directory == nil {
		return nil, errors.New("reporting: nil directory")
	}
	if filter == nil {
		return nil, errors.New("reporting: nil access filter")
	}
	if fetcher == nil {
		return nil, errors.New("reporting: nil data fetcher")
	}
	if clock == nil {
		clock = SystemClock{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Assembler{
		directory: directory,
		filter:    filter,
		fetcher:   fetcher,
		clock:     clock,
		logger:    logger,
	}, nil
}

// Assemble builds the report for one request. Sparse data yields a
// well-shaped report with no-data markers, never an error.
func (a *Assembler) Assemble(ctx context.Context, req ReportRequest) (*domain.Report, error) {
	if err := validateRequest(req); err != nil {
		return nil, err
	}

	if _, err := a.filter.ResolveScope(ctx, req.RequesterID, req.Role, req.PlantID, req.DeviceID); err != nil {
		return nil, err
	}

	scope, err := a.resolveScopeRef(ctx, req)
	if err != nil {
		return nil, err
	}

	report := &domain.Report{
		Type:        req.Type,
		Scope:       scope,
		Period:      domain.Period{Start: req.From.UTC(), End: req.To.UTC()},
		GeneratedAt: a.clock.Now().UTC(),
	}

	switch req.Type {
	case domain.ReportPlantPerformance:
		err = a.assemblePlantPerformance(ctx, req, report)
	case domain.ReportDevicePerformance:
		err = a.assembleDevicePerformance(ctx, req, report)
	case domain.ReportAlarms:
		err = a.assembleAlarms(ctx, req, report)
	case domain.ReportEnergyProduction:
		err = a.assembleEnergy(ctx, req, report)
	}
	if err != nil {
		return nil, err
	}

	a.logger.Debug("report assembled",
		zap.String("type", string(report.Type)),
		zap.String("scope", report.Scope.ID()),
		zap.String("requester", req.RequesterID))
	return report, nil
}

func validateRequest(req ReportRequest) error {
	if !req.Type.IsValid() {
		return fmt.Errorf("%w: unknown report type %q", domain.ErrBadRequest, req.Type)
	}
	if req.From.IsZero() || req.To.IsZero() {
		return fmt.Errorf("%w: missing report period", domain.ErrBadRequest)
	}
	if req.To.Before(req.From) {
		return fmt.Errorf("%w: period end before start", domain.ErrBadRequest)
	}

	switch req.Type {
	case domain.ReportDevicePerformance:
		if req.DeviceID == "" {
			return fmt.Errorf("%w: device report requires device_id", domain.ErrBadRequest)
		}
	case domain.ReportPlantPerformance, domain.ReportAlarms:
		if req.PlantID == "" {
			return fmt.Errorf("%w: %s report requires plant_id", domain.ErrBadRequest, req.Type)
		}
	case domain.ReportEnergyProduction:
		if req.PlantID == "" && req.DeviceID == "" {
			return fmt.Errorf("%w: energy report requires plant_id or device_id", domain.ErrBadRequest)
		}
	}
	return nil
}

// resolveScopeRef loads the named entity and fails with ErrNotFound when
// it does not exist. Runs after access resolution, so a caller cannot
// probe for entities it may not see.
func (a *Assembler) resolveScopeRef(ctx context.Context, req ReportRequest) (domain.ScopeRef, error) {
	if req.DeviceID != "" {
		device, err := a.directory.GetDevice(ctx, req.DeviceID)
		if err != nil {
			return domain.ScopeRef{}, fmt.Errorf("reporting: load device: %w", err)
		}
		if device == nil {
			return domain.ScopeRef{}, fmt.Errorf("%w: device %s", domain.ErrNotFound, req.DeviceID)
		}
		return domain.ScopeRef{PlantID: device.PlantID, DeviceID: device.ID, Name: device.Name}, nil
	}

	plant, err := a.directory.GetPlant(ctx, req.PlantID)
	if err != nil {
		return domain.ScopeRef{}, fmt.Errorf("reporting: load plant: %w", err)
	}
	if plant == nil {
		return domain.ScopeRef{}, fmt.Errorf("%w: plant %s", domain.ErrNotFound, req.PlantID)
	}
	return domain.ScopeRef{PlantID: plant.ID, Name: plant.Name}, nil
}

func (a *Assembler) assemblePlantPerformance(ctx context.Context, req ReportRequest, report *domain.Report) error {
	start, end := fetchWindow(req)

	samples, err := a.fetcher.PlantSamples(ctx, report.Scope.PlantID, start, end)
	if err != nil {
		return fmt.Errorf("reporting: fetch samples: %w", err)
	}
	production, err := domain.AggregateDaily(samples, req.From, req.To)
	if err != nil {
		return err
	}
	report.Production = &production

	intervals, err := a.fetcher.PlantStatusIntervals(ctx, report.Scope.PlantID, start, end)
	if err != nil {
		return fmt.Errorf("reporting: fetch status intervals: %w", err)
	}
	uptime := domain.CalculateUptime(intervals)
	report.Uptime = &uptime

	alarms, err := a.fetcher.PlantAlarms(ctx, report.Scope.PlantID, start, end)
	if err != nil {
		return fmt.Errorf("reporting: fetch alarms: %w", err)
	}
	stats := domain.CalculateAlarmStats(alarms, req.TopTypes)
	report.Alarms = &stats
	return nil
}

func (a *Assembler) assembleDevicePerformance(ctx context.Context, req ReportRequest, report *domain.Report) error {
	start, end := fetchWindow(req)

	samples, err := a.fetcher.DeviceSamples(ctx, report.Scope.DeviceID, start, end)
	if err != nil {
		return fmt.Errorf("reporting: fetch samples: %w", err)
	}
	production, err := domain.AggregateDaily(samples, req.From, req.To)
	if err != nil {
		return err
	}
	report.Production = &production

	intervals, err := a.fetcher.DeviceStatusIntervals(ctx, report.Scope.DeviceID, start, end)
	if err != nil {
		return fmt.Errorf("reporting: fetch status intervals: %w", err)
	}
	uptime := domain.CalculateUptime(intervals)
	report.Uptime = &uptime
	return nil
}

func (a *Assembler) assembleAlarms(ctx context.Context, req ReportRequest, report *domain.Report) error {
	start, end := fetchWindow(req)

	alarms, err := a.fetcher.PlantAlarms(ctx, report.Scope.PlantID, start, end)
	if err != nil {
		return fmt.Errorf("reporting: fetch alarms: %w", err)
	}
	stats := domain.CalculateAlarmStats(alarms, req.TopTypes)
	report.Alarms = &stats
	if alarms == nil {
		alarms = []domain.AlarmEvent{}
	}
	report.AlarmList = alarms
	return nil
}

func (a *Assembler) assembleEnergy(ctx context.Context, req ReportRequest, report *domain.Report) error {
	start, end := fetchWindow(req)

	var samples []domain.MetricSample
	var err error
	if report.Scope.DeviceID != "" {
		samples, err = a.fetcher.DeviceSamples(ctx, report.Scope.DeviceID, start, end)
	} else {
		samples, err = a.fetcher.PlantSamples(ctx, report.Scope.PlantID, start, end)
	}
	if err != nil {
		return fmt.Errorf("reporting: fetch samples: %w", err)
	}

	production, err := domain.AggregateDaily(samples, req.From, req.To)
	if err != nil {
		return err
	}
	report.Production = &production
	return nil
}

// fetchWindow widens the inclusive day period to whole UTC days so a
// sample late on the end day is included.
func fetchWindow(req ReportRequest) (time.Time, time.Time) {
	from := req.From.UTC()
	to := req.To.UTC()
	start := time.Date(from.Year(), from.Month(), from.Day(), 0, 0, 0, 0, time.UTC)
	end := time.Date(to.Year(), to.Month(), to.Day(), 0, 0, 0, 0, time.UTC).AddDate(0, 0, 1)
	return start, end
}
