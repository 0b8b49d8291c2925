package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	masterdata "fleet-analytics/internal/masterdata/domain"
)

// DBTX abstracts *sql.DB and *sql.Tx.
type DBTX interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

const (
	defaultPlantsTable  = "plants"
	defaultDevicesTable = "devices"
)

// Directory is a Postgres implementation of the masterdata directory.
type Directory struct {
	db           DBTX
	plantsTable  string
	devicesTable string
}

// NewDirectory constructs a directory.
func NewDirectory(db DBTX, opts ...DirectoryOption) *Directory {
	dir := &Directory{db: db, plantsTable: defaultPlantsTable, devicesTable: defaultDevicesTable}
	for _, opt := range opts {
		opt(dir)
	}
	return dir
}

// DirectoryOption configures the directory.
type DirectoryOption func(*Directory)

// WithPlantsTable overrides the default plants table name.
func WithPlantsTable(table string) DirectoryOption {
	return func(dir *Directory) {
		if table != "" {
			dir.plantsTable = table
		}
	}
}

// WithDevicesTable overrides the default devices table name.
func WithDevicesTable(table string) DirectoryOption {
	return func(dir *Directory) {
		if table != "" {
			dir.devicesTable = table
		}
	}
}

// GetPlant loads a plant by id. Returns (nil, nil) when absent.
func (d *Directory) GetPlant(ctx context.Context, id string) (*masterdata.Plant, error) {
	if d == nil || d.db == nil {
		return nil, errors.New("directory: nil db")
	}
	if id == "" {
		return nil, errors.New("directory: empty plant id")
	}

	query := fmt.Sprintf(`
SELECT id, name, owner_id, region, created_at, updated_at
FROM %s
WHERE id = $1
LIMIT 1`, d.plantsTable)

	var plant masterdata.Plant
	if err := d.db.QueryRowContext(ctx, query, id).Scan(
		&plant.ID,
		&plant.Name,
		&plant.OwnerID,
		&plant.Region,
		&plant.CreatedAt,
		&plant.UpdatedAt,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	plant.CreatedAt = plant.CreatedAt.UTC()
	plant.UpdatedAt = plant.UpdatedAt.UTC()
	return &plant, nil
}

// GetDevice loads a device by id. Returns (nil, nil) when absent.
func (d *Directory) GetDevice(ctx context.Context, id string) (*masterdata.Device, error) {
	if d == nil || d.db == nil {
		return nil, errors.New("directory: nil db")
	}
	if id == "" {
		return nil, errors.New("directory: empty device id")
	}

	query := fmt.Sprintf(`
SELECT id, plant_id, name, device_type, created_at, updated_at
FROM %s
WHERE id = $1
LIMIT 1`, d.devicesTable)

	var device masterdata.Device
	if err := d.db.QueryRowContext(ctx, query, id).Scan(
		&device.ID,
		&device.PlantID,
		&device.Name,
		&device.DeviceType,
		&device.CreatedAt,
		&device.UpdatedAt,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	device.CreatedAt = device.CreatedAt.UTC()
	device.UpdatedAt = device.UpdatedAt.UTC()
	return &device, nil
}
