package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"fuellog/internal/core"
	"fuellog/internal/store"
)

type Store struct {
	mu       sync.Mutex
	vehicles map[string]core.Vehicle
	records  map[string]core.Record
}

var _ store.Store = (*Store)(nil)

func New() *Store {
	return &Store{
		vehicles: map[string]core.Vehicle{},
		records:  map[string]core.Record{},
	}
}

func (s *Store) CreateVehicle(_ context.Context, v core.Vehicle) error {
	if err := v.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.vehicles[v.ID]; ok {
		return fmt.Errorf("vehicle %s already exists", v.ID)
	}
	s.vehicles[v.ID] = v
	return nil
}

func (s *Store) GetVehicle(_ context.Context, id string) (core.Vehicle, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.vehicles[id]
	if !ok {
		return core.Vehicle{}, fmt.Errorf("vehicle %s: %w", id, store.ErrNotFound)
	}
	return v, nil
}

// ListVehicles returns vehicles ordered by creation time.
func (s *Store) ListVehicles(_ context.Context) ([]core.Vehicle, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]core.Vehicle, 0, len(s.vehicles))
	for _, v := range s.vehicles {
		out = append(out, v)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

func (s *Store) DeleteVehicle(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.vehicles[id]; !ok {
		return fmt.Errorf("vehicle %s: %w", id, store.ErrNotFound)
	}
	delete(s.vehicles, id)
	for rid, r := range s.records {
		if r.VehicleID == id {
			delete(s.records, rid)
		}
	}
	return nil
}

func (s *Store) InsertRecords(_ context.Context, records ...core.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range records {
		if err := r.Validate(); err != nil {
			return err
		}
		if _, ok := s.vehicles[r.VehicleID]; !ok {
			return fmt.Errorf("vehicle %s: %w", r.VehicleID, store.ErrNotFound)
		}
		if _, ok := s.records[r.ID]; ok {
			return fmt.Errorf("record %s already exists", r.ID)
		}
	}
	for _, r := range records {
		s.records[r.ID] = r
	}
	return nil
}

func (s *Store) UpdateRecord(_ context.Context, r core.Record) error {
	if err := r.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.records[r.ID]; !ok {
		return fmt.Errorf("record %s: %w", r.ID, store.ErrNotFound)
	}
	s.records[r.ID] = r
	return nil
}

func (s *Store) DeleteRecord(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.records[id]; !ok {
		return fmt.Errorf("record %s: %w", id, store.ErrNotFound)
	}
	delete(s.records, id)
	return nil
}

func (s *Store) GetRecord(_ context.Context, id string) (core.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.records[id]
	if !ok {
		return core.Record{}, fmt.Errorf("record %s: %w", id, store.ErrNotFound)
	}
	return r, nil
}

func (s *Store) ListRecords(_ context.Context, vehicleID string) ([]core.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.vehicles[vehicleID]; !ok {
		return nil, fmt.Errorf("vehicle %s: %w", vehicleID, store.ErrNotFound)
	}
	out := make([]core.Record, 0)
	for _, r := range s.records {
		if r.VehicleID == vehicleID {
			out = append(out, r)
		}
	}
	// Map iteration is random; order ties by id before the stable sort.
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	core.SortChronological(out)
	return out, nil
}

func (s *Store) SaveDerived(_ context.Context, records []core.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range records {
		cur, ok := s.records[r.ID]
		if !ok {
			return fmt.Errorf("record %s: %w", r.ID, store.ErrNotFound)
		}
		cur.Derived = r.Derived
		s.records[r.ID] = cur
	}
	return nil
}

func (s *Store) InsertWithDerived(_ context.Context, rec core.Record, refreshed []core.Record) error {
	if err := rec.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.vehicles[rec.VehicleID]; !ok {
		return fmt.Errorf("vehicle %s: %w", rec.VehicleID, store.ErrNotFound)
	}
	if _, ok := s.records[rec.ID]; ok {
		return fmt.Errorf("record %s already exists", rec.ID)
	}
	for _, r := range refreshed {
		if _, ok := s.records[r.ID]; !ok {
			return fmt.Errorf("record %s: %w", r.ID, store.ErrNotFound)
		}
	}

	s.records[rec.ID] = rec
	for _, r := range refreshed {
		cur := s.records[r.ID]
		cur.Derived = r.Derived
		s.records[r.ID] = cur
	}
	return nil
}

func (s *Store) Close() error { return nil }
