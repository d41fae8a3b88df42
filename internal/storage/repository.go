package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"fuellog/internal/core"
	"fuellog/internal/store"

	_ "modernc.org/sqlite"
)

// Fixed-width UTC timestamps keep lexical and chronological order equal.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

const recordColumns = `id, vehicle_id, date, odometer, unit_price, quantity, total_cost, fill_type, note, created_at,
	previous_odometer, has_baseline, distance, efficiency, cost_per_distance`

type SQLiteRepository struct {
	db *sql.DB
}

var _ store.Store = (*SQLiteRepository)(nil)

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath+"?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return &SQLiteRepository{db: db}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

func (r *SQLiteRepository) CreateVehicle(ctx context.Context, v core.Vehicle) error {
	if err := v.Validate(); err != nil {
		return err
	}
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO vehicles (id, label, make, model, year, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
		v.ID, v.Label, v.Make, v.Model, v.Year, formatTime(v.CreatedAt))
	if err != nil {
		return fmt.Errorf("create vehicle: %w", err)
	}
	slog.InfoContext(ctx, "Vehicle saved to SQLite", "vehicle_id", v.ID, "label", v.Label)
	return nil
}

func (r *SQLiteRepository) GetVehicle(ctx context.Context, id string) (core.Vehicle, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT id, label, make, model, year, created_at FROM vehicles WHERE id = ?`, id)
	v, err := scanVehicle(row)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Vehicle{}, fmt.Errorf("vehicle %s: %w", id, store.ErrNotFound)
	}
	if err != nil {
		return core.Vehicle{}, fmt.Errorf("get vehicle: %w", err)
	}
	return v, nil
}

func (r *SQLiteRepository) ListVehicles(ctx context.Context) ([]core.Vehicle, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, label, make, model, year, created_at FROM vehicles ORDER BY created_at, id`)
	if err != nil {
		return nil, fmt.Errorf("list vehicles: %w", err)
	}
	defer rows.Close()

	var out []core.Vehicle
	for rows.Next() {
		v, err := scanVehicle(rows)
		if err != nil {
			return nil, fmt.Errorf("scan vehicle: %w", err)
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

// DeleteVehicle relies on ON DELETE CASCADE for the vehicle's records.
func (r *SQLiteRepository) DeleteVehicle(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM vehicles WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete vehicle: %w", err)
	}
	if err := expectAffected(res, "vehicle", id); err != nil {
		return err
	}
	slog.InfoContext(ctx, "Vehicle deleted from SQLite", "vehicle_id", id)
	return nil
}

func (r *SQLiteRepository) InsertRecords(ctx context.Context, records ...core.Record) error {
	for _, rec := range records {
		if err := rec.Validate(); err != nil {
			return err
		}
	}
	err := r.inTx(ctx, func(tx *sql.Tx) error {
		return insertRecords(ctx, tx, records)
	})
	if err != nil {
		return err
	}
	slog.InfoContext(ctx, "Records saved to SQLite", "count", len(records))
	return nil
}

func (r *SQLiteRepository) UpdateRecord(ctx context.Context, rec core.Record) error {
	if err := rec.Validate(); err != nil {
		return err
	}
	res, err := r.db.ExecContext(ctx, `UPDATE records SET
		date = ?, odometer = ?, unit_price = ?, quantity = ?, total_cost = ?, fill_type = ?, note = ?
		WHERE id = ?`,
		formatTime(rec.Date), rec.Odometer, rec.UnitPrice, rec.Quantity, rec.TotalCost,
		string(rec.FillType), rec.Note, rec.ID)
	if err != nil {
		return fmt.Errorf("update record: %w", err)
	}
	return expectAffected(res, "record", rec.ID)
}

func (r *SQLiteRepository) DeleteRecord(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM records WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete record: %w", err)
	}
	return expectAffected(res, "record", id)
}

func (r *SQLiteRepository) GetRecord(ctx context.Context, id string) (core.Record, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+recordColumns+` FROM records WHERE id = ?`, id)
	rec, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Record{}, fmt.Errorf("record %s: %w", id, store.ErrNotFound)
	}
	if err != nil {
		return core.Record{}, fmt.Errorf("get record: %w", err)
	}
	return rec, nil
}

func (r *SQLiteRepository) ListRecords(ctx context.Context, vehicleID string) ([]core.Record, error) {
	if _, err := r.GetVehicle(ctx, vehicleID); err != nil {
		return nil, err
	}
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+recordColumns+` FROM records WHERE vehicle_id = ? ORDER BY date, created_at, id`, vehicleID)
	if err != nil {
		return nil, fmt.Errorf("list records: %w", err)
	}
	defer rows.Close()

	out := make([]core.Record, 0)
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scan record: %w", err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// SaveDerived writes the derived columns of records in one transaction.
func (r *SQLiteRepository) SaveDerived(ctx context.Context, records []core.Record) error {
	if len(records) == 0 {
		return nil
	}
	err := r.inTx(ctx, func(tx *sql.Tx) error {
		return saveDerived(ctx, tx, records)
	})
	if err != nil {
		return err
	}
	slog.DebugContext(ctx, "Derived statistics saved", "count", len(records))
	return nil
}

// InsertWithDerived inserts rec and rewrites the derived columns of refreshed
// in a single transaction.
func (r *SQLiteRepository) InsertWithDerived(ctx context.Context, rec core.Record, refreshed []core.Record) error {
	if err := rec.Validate(); err != nil {
		return err
	}
	return r.inTx(ctx, func(tx *sql.Tx) error {
		if err := insertRecords(ctx, tx, []core.Record{rec}); err != nil {
			return err
		}
		return saveDerived(ctx, tx, refreshed)
	})
}

func (r *SQLiteRepository) inTx(ctx context.Context, fn func(*sql.Tx) error) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

func insertRecords(ctx context.Context, tx *sql.Tx, records []core.Record) error {
	stmt, err := tx.PrepareContext(ctx, `INSERT INTO records (`+recordColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	known := map[string]bool{}
	for _, rec := range records {
		if !known[rec.VehicleID] {
			var one int
			err := tx.QueryRowContext(ctx, `SELECT 1 FROM vehicles WHERE id = ?`, rec.VehicleID).Scan(&one)
			if errors.Is(err, sql.ErrNoRows) {
				return fmt.Errorf("vehicle %s: %w", rec.VehicleID, store.ErrNotFound)
			}
			if err != nil {
				return fmt.Errorf("check vehicle: %w", err)
			}
			known[rec.VehicleID] = true
		}
		if _, err := stmt.ExecContext(ctx, recordArgs(rec)...); err != nil {
			return fmt.Errorf("insert record %s: %w", rec.ID, err)
		}
	}
	return nil
}

func saveDerived(ctx context.Context, tx *sql.Tx, records []core.Record) error {
	if len(records) == 0 {
		return nil
	}
	stmt, err := tx.PrepareContext(ctx, `UPDATE records SET
		previous_odometer = ?, has_baseline = ?, distance = ?, efficiency = ?, cost_per_distance = ?
		WHERE id = ?`)
	if err != nil {
		return fmt.Errorf("prepare derived update: %w", err)
	}
	defer stmt.Close()

	for _, rec := range records {
		d := rec.Derived
		res, err := stmt.ExecContext(ctx, d.PreviousOdometer, d.HasBaseline, d.Distance, d.Efficiency, d.CostPerDistance, rec.ID)
		if err != nil {
			return fmt.Errorf("update derived %s: %w", rec.ID, err)
		}
		if err := expectAffected(res, "record", rec.ID); err != nil {
			return err
		}
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanVehicle(s scanner) (core.Vehicle, error) {
	var (
		v       core.Vehicle
		created string
	)
	if err := s.Scan(&v.ID, &v.Label, &v.Make, &v.Model, &v.Year, &created); err != nil {
		return core.Vehicle{}, err
	}
	t, err := parseTime(created)
	if err != nil {
		return core.Vehicle{}, err
	}
	v.CreatedAt = t
	return v, nil
}

func scanRecord(s scanner) (core.Record, error) {
	var (
		rec           core.Record
		date, created string
		fillType      string
	)
	err := s.Scan(&rec.ID, &rec.VehicleID, &date, &rec.Odometer, &rec.UnitPrice, &rec.Quantity,
		&rec.TotalCost, &fillType, &rec.Note, &created,
		&rec.PreviousOdometer, &rec.HasBaseline, &rec.Distance, &rec.Efficiency, &rec.CostPerDistance)
	if err != nil {
		return core.Record{}, err
	}
	if rec.Date, err = parseTime(date); err != nil {
		return core.Record{}, err
	}
	if rec.CreatedAt, err = parseTime(created); err != nil {
		return core.Record{}, err
	}
	rec.FillType = core.FillType(fillType)
	return rec, nil
}

func recordArgs(rec core.Record) []any {
	d := rec.Derived
	return []any{
		rec.ID, rec.VehicleID, formatTime(rec.Date), rec.Odometer, rec.UnitPrice, rec.Quantity,
		rec.TotalCost, string(rec.FillType), rec.Note, formatTime(rec.CreatedAt),
		d.PreviousOdometer, d.HasBaseline, d.Distance, d.Efficiency, d.CostPerDistance,
	}
}

func expectAffected(res sql.Result, kind, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%s %s: %w", kind, id, store.ErrNotFound)
	}
	return nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse timestamp %q: %w", s, err)
	}
	return t, nil
}
