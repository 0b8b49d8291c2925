package access

import (
	"context"
	"errors"
	"fmt"

	"fleet-analytics/internal/auth"
	masterdata "fleet-analytics/internal/masterdata/domain"
	"fleet-analytics/internal/observability/metrics"
	report "fleet-analytics/internal/reporting/domain"
)

// GrantSource lists the plants a user may read: owned plants plus
// explicitly granted ones.
type GrantSource interface {
	AccessiblePlants(ctx context.Context, userID string) ([]string, error)
}

// Scope is the per-request access-resolution result. It is passed down
// the report pipeline and discarded with the request; there is no
// process-wide scope state.
type Scope struct {
	// All marks an unrestricted admin scope.
	All      bool
	PlantIDs []string
}

// Allows reports whether the scope covers a plant.
func (s Scope) Allows(plantID string) bool {
	if s.All {
		return true
	}
	for _, id := range s.PlantIDs {
		if id == plantID {
			return true
		}
	}
	return false
}

// Filter resolves the set of plants a requester may see.
type Filter struct {
	source    GrantSource
	directory masterdata.Directory
	cache     *Cache
}

// NewFilter constructs a Filter. The cache is optional.
func NewFilter(source GrantSource, directory masterdata.Directory, opts ...Option) (*Filter, error) {
	if source == nil {
		return nil, errors.New("access: nil grant source")
	}
	if directory == nil {
		return nil, errors.New("access: nil directory")
	}
	filter := &Filter{source: source, directory: directory}
	for _, opt := range opts {
		opt(filter)
	}
	return filter, nil
}

// Option configures the filter.
type Option func(*Filter)

// WithCache enables short-TTL caching of accessible plant sets.
func WithCache(cache *Cache) Option {
	return func(f *Filter) {
		f.cache = cache
	}
}

// ResolveScope decides what the requester may read. Admins bypass
// filtering. A device-scoped request resolves the device's owning plant
// first. A named plant outside the accessible set fails with
// report.ErrForbidden before any data is fetched.
func (f *Filter) ResolveScope(ctx context.Context, requesterID string, role auth.Role, plantID, deviceID string) (Scope, error) {
	if requesterID == "" {
		return Scope{}, fmt.Errorf("%w: missing requester id", report.ErrBadRequest)
	}

	if deviceID != "" {
		device, err := f.directory.GetDevice(ctx, deviceID)
		if err != nil {
			return Scope{}, fmt.Errorf("access: resolve device: %w", err)
		}
		if device == nil {
			return Scope{}, fmt.Errorf("%w: device %s", report.ErrNotFound, deviceID)
		}
		plantID = device.PlantID
	}

	if role == auth.RoleAdmin {
		if plantID != "" {
			return Scope{All: true, PlantIDs: []string{plantID}}, nil
		}
		return Scope{All: true}, nil
	}

	accessible, err := f.accessiblePlants(ctx, requesterID)
	if err != nil {
		return Scope{}, fmt.Errorf("access: load grants: %w", err)
	}

	if plantID != "" {
		scope := Scope{PlantIDs: accessible}
		if !scope.Allows(plantID) {
			return Scope{}, fmt.Errorf("%w: plant %s", report.ErrForbidden, plantID)
		}
		return Scope{PlantIDs: []string{plantID}}, nil
	}
	return Scope{PlantIDs: accessible}, nil
}

func (f *Filter) accessiblePlants(ctx context.Context, userID string) ([]string, error) {
	if f.cache != nil {
		if plants, ok := f.cache.Get(userID); ok {
			metrics.IncAccessCache("hit")
			return plants, nil
		}
		metrics.IncAccessCache("miss")
	}
	plants, err := f.source.AccessiblePlants(ctx, userID)
	if err != nil {
		return nil, err
	}
	if f.cache != nil {
		f.cache.Put(userID, plants)
	}
	return plants, nil
}
