package masterdata

import (
	"context"
	"errors"
	"time"
)

// Plant represents one monitored energy-production site.
type Plant struct {
	ID        string
	Name      string
	OwnerID   string
	Region    string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Validate checks plant invariants.
func (p Plant) Validate() error {
	if p.ID == "" {
		return errors.New("plant: empty id")
	}
	if p.Name == "" {
		return errors.New("plant: empty name")
	}
	if p.OwnerID == "" {
		return errors.New("plant: empty owner id")
	}
	return nil
}

// Device represents one monitored device belonging to a plant.
type Device struct {
	ID         string
	PlantID    string
	Name       string
	DeviceType string
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// Validate checks device invariants.
func (d Device) Validate() error {
	if d.ID == "" {
		return errors.New("device: empty id")
	}
	if d.PlantID == "" {
		return errors.New("device: empty plant id")
	}
	return nil
}

// Directory resolves plants and devices by id. Implementations return
// (nil, nil) when the entity does not exist.
type Directory interface {
	GetPlant(ctx context.Context, id string) (*Plant, error)
	GetDevice(ctx context.Context, id string) (*Device, error)
}
