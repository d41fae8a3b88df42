package store

import (
	"context"
	"errors"

	"fuellog/internal/core"
)

var ErrNotFound = errors.New("not found")

// Ports for persistence adapters.
type (
	VehicleStore interface {
		CreateVehicle(ctx context.Context, v core.Vehicle) error
		// GetVehicle returns ErrNotFound for an unknown id.
		GetVehicle(ctx context.Context, id string) (core.Vehicle, error)
		ListVehicles(ctx context.Context) ([]core.Vehicle, error)
		// DeleteVehicle removes the vehicle and all of its records.
		DeleteVehicle(ctx context.Context, id string) error
	}

	RecordStore interface {
		// InsertRecords stores new records atomically. Every record must
		// reference an existing vehicle.
		InsertRecords(ctx context.Context, records ...core.Record) error
		UpdateRecord(ctx context.Context, r core.Record) error
		DeleteRecord(ctx context.Context, id string) error
		GetRecord(ctx context.Context, id string) (core.Record, error)
		// ListRecords returns a vehicle's records in chronological order,
		// derived fields included.
		ListRecords(ctx context.Context, vehicleID string) ([]core.Record, error)
		// SaveDerived persists only the derived fields of records.
		SaveDerived(ctx context.Context, records []core.Record) error
		// InsertWithDerived stores rec and the derived fields of refreshed
		// in one atomic write. Either both land or neither does.
		InsertWithDerived(ctx context.Context, rec core.Record, refreshed []core.Record) error
	}

	Store interface {
		VehicleStore
		RecordStore
		Close() error
	}
)
