package access

import (
	"context"
	"errors"
	"testing"
	"time"

	"fleet-analytics/internal/auth"
	masterdata "fleet-analytics/internal/masterdata/domain"
	report "fleet-analytics/internal/reporting/domain"
)

type stubGrants struct {
	plants []string
	calls  int
}

func (s *stubGrants) AccessiblePlants(_ context.Context, _ string) ([]string, error) {
	s.calls++
	return s.plants, nil
}

type stubDirectory struct {
	devices map[string]*masterdata.Device
}

func (s stubDirectory) GetPlant(_ context.Context, id string) (*masterdata.Plant, error) {
	return nil, nil
}

func (s stubDirectory) GetDevice(_ context.Context, id string) (*masterdata.Device, error) {
	return s.devices[id], nil
}

func TestResolveScopeViewerWithoutGrantForbidden(t *testing.T) {
	filter, err := NewFilter(&stubGrants{plants: []string{"plant-2"}}, stubDirectory{})
	if err != nil {
		t.Fatalf("new filter: %v", err)
	}

	_, err = filter.ResolveScope(context.Background(), "user-1", auth.RoleViewer, "plant-1", "")
	if !errors.Is(err, report.ErrForbidden) {
		t.Fatalf("expected ErrForbidden, got %v", err)
	}
}

func TestResolveScopeViewerWithGrant(t *testing.T) {
	filter, err := NewFilter(&stubGrants{plants: []string{"plant-1", "plant-2"}}, stubDirectory{})
	if err != nil {
		t.Fatalf("new filter: %v", err)
	}

	scope, err := filter.ResolveScope(context.Background(), "user-1", auth.RoleViewer, "plant-1", "")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if scope.All {
		t.Fatalf("viewer scope must not be unrestricted")
	}
	if len(scope.PlantIDs) != 1 || scope.PlantIDs[0] != "plant-1" {
		t.Fatalf("expected exactly the requested plant in scope, got %v", scope.PlantIDs)
	}
}

func TestResolveScopeAdminBypassesGrants(t *testing.T) {
	grants := &stubGrants{}
	filter, err := NewFilter(grants, stubDirectory{})
	if err != nil {
		t.Fatalf("new filter: %v", err)
	}

	scope, err := filter.ResolveScope(context.Background(), "admin-1", auth.RoleAdmin, "plant-9", "")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if !scope.All {
		t.Fatalf("expected unrestricted admin scope")
	}
	if grants.calls != 0 {
		t.Fatalf("admin resolution must not touch the grant source, got %d calls", grants.calls)
	}
}

func TestResolveScopeDeviceResolvesOwningPlant(t *testing.T) {
	directory := stubDirectory{devices: map[string]*masterdata.Device{
		"dev-1": {ID: "dev-1", PlantID: "plant-1"},
	}}
	filter, err := NewFilter(&stubGrants{plants: []string{"plant-1"}}, directory)
	if err != nil {
		t.Fatalf("new filter: %v", err)
	}

	scope, err := filter.ResolveScope(context.Background(), "user-1", auth.RoleViewer, "", "dev-1")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if !scope.Allows("plant-1") {
		t.Fatalf("expected owning plant in scope, got %v", scope.PlantIDs)
	}
}

func TestResolveScopeUnknownDeviceNotFound(t *testing.T) {
	filter, err := NewFilter(&stubGrants{plants: []string{"plant-1"}}, stubDirectory{})
	if err != nil {
		t.Fatalf("new filter: %v", err)
	}

	_, err = filter.ResolveScope(context.Background(), "user-1", auth.RoleViewer, "", "dev-missing")
	if !errors.Is(err, report.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestCacheExpiryRechecksSource(t *testing.T) {
	grants := &stubGrants{plants: []string{"plant-1"}}
	cache := NewCache(time.Minute)
	current := time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)
	cache.now = func() time.Time { return current }

	filter, err := NewFilter(grants, stubDirectory{}, WithCache(cache))
	if err != nil {
		t.Fatalf("new filter: %v", err)
	}

	if _, err := filter.ResolveScope(context.Background(), "user-1", auth.RoleViewer, "plant-1", ""); err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if _, err := filter.ResolveScope(context.Background(), "user-1", auth.RoleViewer, "plant-1", ""); err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if grants.calls != 1 {
		t.Fatalf("expected cached second lookup, got %d source calls", grants.calls)
	}

	// Revoke the grant; once the TTL lapses the stale entry must not win.
	grants.plants = nil
	current = current.Add(2 * time.Minute)
	_, err = filter.ResolveScope(context.Background(), "user-1", auth.RoleViewer, "plant-1", "")
	if !errors.Is(err, report.ErrForbidden) {
		t.Fatalf("expected ErrForbidden after expiry, got %v", err)
	}
	if grants.calls != 2 {
		t.Fatalf("expected source re-check after expiry, got %d calls", grants.calls)
	}
}
