package audit

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"
)

var (
	// ErrInvalidRetention is returned when cleanup gets a non-positive retention.
	ErrInvalidRetention = errors.New("audit: retention days must be positive")
	// ErrUnsupportedFormat is returned for export formats other than json/csv.
	ErrUnsupportedFormat = errors.New("audit: unsupported export format")
	// ErrInvalidRange is returned when a filter's To precedes its From.
	ErrInvalidRange = errors.New("audit: invalid date range")
)

const (
	defaultPageLimit = 50
	maxPageLimit     = 500
)

// Clock provides time for the engine.
type Clock interface {
	Now() time.Time
}

// SystemClock uses time.Now.
type SystemClock struct{}

// Now returns current time.
func (SystemClock) Now() time.Time { return time.Now().UTC() }

// Pagination describes one page of list results.
type Pagination struct {
	Page       int `json:"page"`
	Limit      int `json:"limit"`
	Total      int `json:"total"`
	TotalPages int `json:"total_pages"`
}

// UserCount is one entry of the most-active-users ranking.
type UserCount struct {
	UserID string `json:"user_id"`
	Count  int    `json:"count"`
}

// Stats aggregates the audit trail under a filter.
type Stats struct {
	Total      int            `json:"total"`
	ByAction   map[string]int `json:"by_action"`
	ByResource map[string]int `json:"by_resource"`
	TopUsers   []UserCount    `json:"top_users"`
}

// QueryEngine filters, aggregates, exports and expires audit entries.
type QueryEngine struct {
	store  Store
	clock  Clock
	logger *zap.Logger
}

// NewQueryEngine constructs a QueryEngine.
func NewQueryEngine(store Store, clock Clock, logger *zap.Logger) (*QueryEngine, error) {
	if store == nil {
		return nil, errors.New("audit: nil store")
	}
	if clock == nil {
		clock = SystemClock{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &QueryEngine{store: store, clock: clock, logger: logger}, nil
}

// List returns one page of entries sorted by timestamp, newest first by
// default. Out-of-range page/limit values fall back to sane defaults.
func (e *QueryEngine) List(ctx context.Context, filter Filter, page, limit int, order SortOrder) ([]Entry, Pagination, error) {
	if err := validateRange(filter); err != nil {
		return nil, Pagination{}, err
	}
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = defaultPageLimit
	}
	if limit > maxPageLimit {
		limit = maxPageLimit
	}
	if order != SortAsc {
		order = SortDesc
	}

	entries, total, err := e.store.List(ctx, filter, order, limit, (page-1)*limit)
	if err != nil {
		return nil, Pagination{}, fmt.Errorf("audit: list: %w", err)
	}
	pagination := Pagination{
		Page:       page,
		Limit:      limit,
		Total:      total,
		TotalPages: (total + limit - 1) / limit,
	}
	return entries, pagination, nil
}

// Stats aggregates matching entries by action, resource and user. Top
// users are ordered by count descending, ties broken by user id ascending.
func (e *QueryEngine) Stats(ctx context.Context, filter Filter) (Stats, error) {
	if err := validateRange(filter); err != nil {
		return Stats{}, err
	}
	entries, err := e.store.ListAll(ctx, filter, SortDesc)
	if err != nil {
		return Stats{}, fmt.Errorf("audit: stats: %w", err)
	}

	stats := Stats{
		Total:      len(entries),
		ByAction:   make(map[string]int),
		ByResource: make(map[string]int),
	}
	byUser := make(map[string]int)
	for _, entry := range entries {
		stats.ByAction[entry.Action]++
		stats.ByResource[entry.Resource]++
		byUser[entry.UserID]++
	}

	stats.TopUsers = make([]UserCount, 0, len(byUser))
	for userID, count := range byUser {
		stats.TopUsers = append(stats.TopUsers, UserCount{UserID: userID, Count: count})
	}
	sort.Slice(stats.TopUsers, func(i, j int) bool {
		if stats.TopUsers[i].Count != stats.TopUsers[j].Count {
			return stats.TopUsers[i].Count > stats.TopUsers[j].Count
		}
		return stats.TopUsers[i].UserID < stats.TopUsers[j].UserID
	})
	return stats, nil
}

// EntityHistory returns the newest entries for one resource instance,
// each carrying its before/after snapshot.
func (e *QueryEngine) EntityHistory(ctx context.Context, resource, resourceID string, limit int) ([]Entry, error) {
	if resource == "" || resourceID == "" {
		return nil, errors.New("audit: resource and resource id required")
	}
	if limit < 1 {
		limit = defaultPageLimit
	}
	entries, err := e.store.ByResource(ctx, resource, resourceID, limit)
	if err != nil {
		return nil, fmt.Errorf("audit: entity history: %w", err)
	}
	return entries, nil
}

// Export renders all matching entries unpaginated. Supported formats are
// "json" and "csv"; the content type of the payload is returned alongside.
func (e *QueryEngine) Export(ctx context.Context, format string, filter Filter) ([]byte, string, error) {
	if err := validateRange(filter); err != nil {
		return nil, "", err
	}
	renderer, contentType, err := exportRenderer(format)
	if err != nil {
		return nil, "", err
	}
	entries, err := e.store.ListAll(ctx, filter, SortDesc)
	if err != nil {
		return nil, "", fmt.Errorf("audit: export: %w", err)
	}
	data, err := renderer(entries)
	if err != nil {
		return nil, "", err
	}
	return data, contentType, nil
}

// Cleanup deletes every entry older than the retention window. The cutoff
// is computed once at call start and applied in a single delete, so a
// concurrent writer cannot move it mid-operation. This is the engine's
// only destructive operation; there is no undo.
func (e *QueryEngine) Cleanup(ctx context.Context, retentionDays int) (int64, error) {
	if retentionDays <= 0 {
		return 0, fmt.Errorf("%w: got %d", ErrInvalidRetention, retentionDays)
	}
	cutoff := e.clock.Now().UTC().AddDate(0, 0, -retentionDays)
	deleted, err := e.store.DeleteBefore(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("audit: cleanup: %w", err)
	}
	e.logger.Info("audit cleanup completed",
		zap.Int("retention_days", retentionDays),
		zap.Time("cutoff", cutoff),
		zap.Int64("deleted", deleted),
	)
	return deleted, nil
}

func validateRange(filter Filter) error {
	if !filter.From.IsZero() && !filter.To.IsZero() && filter.To.Before(filter.From) {
		return fmt.Errorf("%w: to %s before from %s", ErrInvalidRange,
			filter.To.Format(time.RFC3339), filter.From.Format(time.RFC3339))
	}
	return nil
}
