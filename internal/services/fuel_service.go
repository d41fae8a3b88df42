package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"fuellog/internal/amqp"
	"fuellog/internal/cache"
	"fuellog/internal/core"
	"fuellog/internal/interchange"
	"fuellog/internal/store"
)

// EventPublisher announces record mutations to other processes.
type EventPublisher interface {
	PublishRecordEvent(ctx context.Context, evt *amqp.RecordEvent) error
}

type (
	VehicleInput struct {
		Label string
		Make  string
		Model string
		Year  int
	}

	// RecordInput holds the raw fields of a record. At most one monetary
	// field may be absent; it is solved from the other two.
	RecordInput struct {
		Date      time.Time
		Odometer  float64
		UnitPrice core.Amount
		Quantity  core.Amount
		TotalCost core.Amount
		FillType  core.FillType
		Note      string
	}

	ImportResult struct {
		Imported int
		Skipped  []interchange.RowError
		Schemas  map[interchange.Schema]int
	}
)

// FuelService orchestrates record mutations: storage, recompute of derived
// statistics, summary cache invalidation and event publishing. Mutations of
// one vehicle are serialized.
type FuelService struct {
	store       store.Store
	publisher   EventPublisher
	summaries   *cache.SummaryCache
	concurrency int
	now         func() time.Time

	locks sync.Map // vehicle id -> *sync.Mutex
}

type Option func(*FuelService)

// WithPublisher enables record events. A nil publisher disables them.
func WithPublisher(p EventPublisher) Option {
	return func(s *FuelService) { s.publisher = p }
}

func WithSummaryCache(c *cache.SummaryCache) Option {
	return func(s *FuelService) { s.summaries = c }
}

// WithConcurrency bounds the number of vehicles RecomputeAll processes at once.
func WithConcurrency(n int) Option {
	return func(s *FuelService) {
		if n > 0 {
			s.concurrency = n
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(s *FuelService) { s.now = now }
}

func NewFuelService(st store.Store, opts ...Option) *FuelService {
	s := &FuelService{
		store:       st,
		concurrency: 4,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *FuelService) lock(vehicleID string) func() {
	m, _ := s.locks.LoadOrStore(vehicleID, &sync.Mutex{})
	mu := m.(*sync.Mutex)
	mu.Lock()
	return mu.Unlock
}

func (s *FuelService) CreateVehicle(ctx context.Context, in VehicleInput) (core.Vehicle, error) {
	v := core.Vehicle{
		ID:        core.NewID(),
		Label:     strings.TrimSpace(in.Label),
		Make:      strings.TrimSpace(in.Make),
		Model:     strings.TrimSpace(in.Model),
		Year:      in.Year,
		CreatedAt: s.now().UTC(),
	}
	if err := v.Validate(); err != nil {
		return core.Vehicle{}, err
	}
	if err := s.store.CreateVehicle(ctx, v); err != nil {
		return core.Vehicle{}, fmt.Errorf("save vehicle: %w", err)
	}
	slog.InfoContext(ctx, "Vehicle created", "vehicle_id", v.ID, "label", v.Label)
	return v, nil
}

func (s *FuelService) GetVehicle(ctx context.Context, id string) (core.Vehicle, error) {
	return s.store.GetVehicle(ctx, id)
}

func (s *FuelService) ListVehicles(ctx context.Context) ([]core.Vehicle, error) {
	return s.store.ListVehicles(ctx)
}

// DeleteVehicle removes the vehicle together with its records.
func (s *FuelService) DeleteVehicle(ctx context.Context, id string) error {
	unlock := s.lock(id)
	defer unlock()

	if err := s.store.DeleteVehicle(ctx, id); err != nil {
		return err
	}
	// A caller already waiting on the old mutex only finds ErrNotFound.
	s.locks.Delete(id)
	s.invalidate(id)
	s.publish(ctx, id, "", amqp.OpVehicleDeleted)
	return nil
}

// AddRecord stores a new record and refreshes the derived fields of it and
// every later record of the vehicle.
func (s *FuelService) AddRecord(ctx context.Context, vehicleID string, in RecordInput) (core.Record, error) {
	rec, err := s.buildRecord(vehicleID, in)
	if err != nil {
		return core.Record{}, err
	}
	rec.ID = core.NewID()
	rec.CreatedAt = s.now().UTC()

	unlock := s.lock(vehicleID)
	defer unlock()

	seq, err := s.store.ListRecords(ctx, vehicleID)
	if err != nil {
		return core.Record{}, err
	}
	idx := core.InsertionIndex(seq, rec)
	seq = append(seq, core.Record{})
	copy(seq[idx+1:], seq[idx:])
	seq[idx] = rec
	core.RecomputeFrom(seq, idx)

	if err := s.store.InsertWithDerived(ctx, seq[idx], seq[idx+1:]); err != nil {
		return core.Record{}, fmt.Errorf("save record: %w", err)
	}

	s.invalidate(vehicleID)
	s.publish(ctx, vehicleID, rec.ID, amqp.OpCreated)
	slog.InfoContext(ctx, "Record added",
		"vehicle_id", vehicleID,
		"record_id", rec.ID,
		"position", idx,
		"recomputed", len(seq)-idx)
	return seq[idx], nil
}

// UpdateRecord replaces the raw fields of a record. Derived fields are
// refreshed from the earlier of its old and new positions.
func (s *FuelService) UpdateRecord(ctx context.Context, recordID string, in RecordInput) (core.Record, error) {
	cur, err := s.store.GetRecord(ctx, recordID)
	if err != nil {
		return core.Record{}, err
	}
	rec, err := s.buildRecord(cur.VehicleID, in)
	if err != nil {
		return core.Record{}, err
	}
	rec.ID = cur.ID
	rec.CreatedAt = cur.CreatedAt

	unlock := s.lock(cur.VehicleID)
	defer unlock()

	before, err := s.store.ListRecords(ctx, cur.VehicleID)
	if err != nil {
		return core.Record{}, err
	}
	oldIdx := core.IndexOf(before, rec.ID)
	if oldIdx < 0 {
		return core.Record{}, fmt.Errorf("record %s: %w", rec.ID, store.ErrNotFound)
	}

	if err := s.store.UpdateRecord(ctx, rec); err != nil {
		return core.Record{}, fmt.Errorf("update record: %w", err)
	}
	after, err := s.store.ListRecords(ctx, cur.VehicleID)
	if err != nil {
		return core.Record{}, err
	}
	newIdx := core.IndexOf(after, rec.ID)
	from := min(oldIdx, newIdx)
	core.RecomputeFrom(after, from)
	if err := s.store.SaveDerived(ctx, after[from:]); err != nil {
		return core.Record{}, fmt.Errorf("save derived: %w", err)
	}

	s.invalidate(cur.VehicleID)
	s.publish(ctx, cur.VehicleID, rec.ID, amqp.OpUpdated)
	return after[newIdx], nil
}

// DeleteRecord removes a record; its successor takes over its predecessor
// as baseline.
func (s *FuelService) DeleteRecord(ctx context.Context, recordID string) error {
	cur, err := s.store.GetRecord(ctx, recordID)
	if err != nil {
		return err
	}

	unlock := s.lock(cur.VehicleID)
	defer unlock()

	before, err := s.store.ListRecords(ctx, cur.VehicleID)
	if err != nil {
		return err
	}
	idx := core.IndexOf(before, recordID)
	if idx < 0 {
		return fmt.Errorf("record %s: %w", recordID, store.ErrNotFound)
	}

	if err := s.store.DeleteRecord(ctx, recordID); err != nil {
		return err
	}
	after := append(before[:idx:idx], before[idx+1:]...)
	core.RecomputeFrom(after, idx)
	if err := s.store.SaveDerived(ctx, after[idx:]); err != nil {
		return fmt.Errorf("save derived: %w", err)
	}

	s.invalidate(cur.VehicleID)
	s.publish(ctx, cur.VehicleID, recordID, amqp.OpDeleted)
	return nil
}

func (s *FuelService) GetRecord(ctx context.Context, id string) (core.Record, error) {
	return s.store.GetRecord(ctx, id)
}

// ListRecords returns the vehicle's records within rng in chronological order.
func (s *FuelService) ListRecords(ctx context.Context, vehicleID string, rng core.DateRange) ([]core.Record, error) {
	seq, err := s.store.ListRecords(ctx, vehicleID)
	if err != nil {
		return nil, err
	}
	return core.FilterRange(seq, rng), nil
}

// Summary aggregates the records within rng. Results are cached per vehicle
// and range until the next mutation of that vehicle.
//
// A miss is computed under the vehicle lock, so a mutation either lands
// before the read or invalidates after the Set.
func (s *FuelService) Summary(ctx context.Context, vehicleID string, rng core.DateRange) (core.Summary, error) {
	if s.summaries != nil {
		if sum, ok := s.summaries.Get(vehicleID, rng); ok {
			return sum, nil
		}
	}

	unlock := s.lock(vehicleID)
	defer unlock()

	seq, err := s.ListRecords(ctx, vehicleID, rng)
	if err != nil {
		return core.Summary{}, err
	}
	sum := core.Aggregate(seq)
	if s.summaries != nil {
		s.summaries.Set(vehicleID, rng, sum)
	}
	return sum, nil
}

func (s *FuelService) MonthlySummary(ctx context.Context, vehicleID string, year int, month time.Month) (core.Summary, error) {
	return s.Summary(ctx, vehicleID, core.MonthRange(year, month, time.UTC))
}

// Export renders every record of the vehicle in the interchange format.
func (s *FuelService) Export(ctx context.Context, vehicleID string, opts ...interchange.Option) ([]byte, error) {
	seq, err := s.store.ListRecords(ctx, vehicleID)
	if err != nil {
		return nil, err
	}
	return interchange.Marshal(seq, opts...), nil
}

// Import validates text, decodes it, stores every accepted row in one batch
// and recomputes the vehicle once. A *interchange.ValidationError is
// returned unchanged when the input is rejected as a whole.
func (s *FuelService) Import(ctx context.Context, vehicleID, text string) (ImportResult, error) {
	if err := interchange.Validate(text); err != nil {
		return ImportResult{}, err
	}

	unlock := s.lock(vehicleID)
	defer unlock()

	if _, err := s.store.GetVehicle(ctx, vehicleID); err != nil {
		return ImportResult{}, err
	}

	dec := interchange.Decoder{VehicleID: vehicleID, Now: s.now}
	res := dec.Decode(text)
	out := ImportResult{
		Imported: len(res.Records),
		Skipped:  res.Skipped,
		Schemas:  res.Schemas,
	}
	for _, rowErr := range res.Skipped {
		slog.WarnContext(ctx, "Import row skipped", "vehicle_id", vehicleID, "line", rowErr.Line, "error", rowErr.Err)
	}
	if len(res.Records) == 0 {
		return out, nil
	}

	if err := s.store.InsertRecords(ctx, res.Records...); err != nil {
		return ImportResult{}, fmt.Errorf("save imported records: %w", err)
	}
	if _, err := s.recompute(ctx, vehicleID); err != nil {
		return ImportResult{}, err
	}

	s.invalidate(vehicleID)
	s.publish(ctx, vehicleID, "", amqp.OpImported)
	slog.InfoContext(ctx, "Records imported",
		"vehicle_id", vehicleID,
		"imported", out.Imported,
		"skipped", len(out.Skipped))
	return out, nil
}

// RecomputeVehicle rebuilds every derived field of the vehicle from scratch
// and persists those that changed. It is idempotent.
func (s *FuelService) RecomputeVehicle(ctx context.Context, vehicleID string) (int, error) {
	unlock := s.lock(vehicleID)
	defer unlock()

	n, err := s.recompute(ctx, vehicleID)
	if err != nil {
		return 0, err
	}
	if n > 0 {
		s.invalidate(vehicleID)
	}
	return n, nil
}

func (s *FuelService) recompute(ctx context.Context, vehicleID string) (int, error) {
	seq, err := s.store.ListRecords(ctx, vehicleID)
	if err != nil {
		return 0, err
	}
	stale := make([]core.Derived, len(seq))
	for i := range seq {
		stale[i] = seq[i].Derived
	}
	core.Recompute(seq)

	var changed []core.Record
	for i := range seq {
		if seq[i].Derived != stale[i] {
			changed = append(changed, seq[i])
		}
	}
	if err := s.store.SaveDerived(ctx, changed); err != nil {
		return 0, fmt.Errorf("save derived: %w", err)
	}
	return len(changed), nil
}

// RecomputeAll runs RecomputeVehicle for every vehicle with bounded
// parallelism and returns the total number of corrected records.
func (s *FuelService) RecomputeAll(ctx context.Context) (int, error) {
	vehicles, err := s.store.ListVehicles(ctx)
	if err != nil {
		return 0, err
	}

	var total atomic.Int64
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)
	for _, v := range vehicles {
		g.Go(func() error {
			n, err := s.RecomputeVehicle(gctx, v.ID)
			if errors.Is(err, store.ErrNotFound) {
				// Deleted while the sweep was running.
				return nil
			}
			if err != nil {
				return fmt.Errorf("recompute vehicle %s: %w", v.ID, err)
			}
			total.Add(int64(n))
			return nil
		})
	}
	err = g.Wait()
	return int(total.Load()), err
}

func (s *FuelService) buildRecord(vehicleID string, in RecordInput) (core.Record, error) {
	price, qty, cost, err := core.ResolveAmounts(in.UnitPrice, in.Quantity, in.TotalCost)
	if err != nil {
		return core.Record{}, err
	}
	ft := in.FillType
	if ft == "" {
		ft = core.Full
	}
	rec := core.Record{
		VehicleID: vehicleID,
		Date:      in.Date,
		Odometer:  in.Odometer,
		UnitPrice: price.Value,
		Quantity:  qty.Value,
		TotalCost: cost.Value,
		FillType:  ft,
		Note:      in.Note,
	}
	if err := rec.Validate(); err != nil {
		return core.Record{}, err
	}
	return rec, nil
}

func (s *FuelService) invalidate(vehicleID string) {
	if s.summaries != nil {
		s.summaries.InvalidateVehicle(vehicleID)
	}
}

// publish never fails the caller: the mutation is already stored and the
// periodic sweep repairs anything a lost event would have triggered.
func (s *FuelService) publish(ctx context.Context, vehicleID, recordID string, op amqp.Operation) {
	if s.publisher == nil {
		slog.DebugContext(ctx, "No event publisher, skipping record event", "operation", op)
		return
	}
	if err := s.publisher.PublishRecordEvent(ctx, amqp.NewRecordEvent(vehicleID, recordID, op)); err != nil {
		slog.ErrorContext(ctx, "Failed to publish record event",
			"vehicle_id", vehicleID,
			"record_id", recordID,
			"operation", op,
			"error", err)
	}
}

// Close closes the store and the publisher when it holds resources.
func (s *FuelService) Close() error {
	var errs []error
	if s.store != nil {
		if err := s.store.Close(); err != nil {
			errs = append(errs, fmt.Errorf("store: %w", err))
		}
	}
	if c, ok := s.publisher.(io.Closer); ok {
		if err := c.Close(); err != nil {
			errs = append(errs, fmt.Errorf("publisher: %w", err))
		}
	}
	return errors.Join(errs...)
}
