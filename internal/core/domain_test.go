package core

import (
	"errors"
	"testing"
	"time"
)

func validRecord() Record {
	return Record{
		ID:        "r1",
		VehicleID: "v1",
		Date:      time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC),
		Odometer:  12500,
		UnitPrice: 3.459,
		Quantity:  10.5,
		TotalCost: 36.32,
		FillType:  Full,
	}
}

func TestRecordValidate(t *testing.T) {
	if err := validRecord().Validate(); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}

	cases := []struct {
		name string
		edit func(*Record)
		want error
	}{
		{"missing vehicle", func(r *Record) { r.VehicleID = " " }, ErrMissingVehicle},
		{"zero date", func(r *Record) { r.Date = time.Time{} }, ErrZeroDate},
		{"negative odometer", func(r *Record) { r.Odometer = -1 }, ErrInvalidOdometer},
		{"zero price", func(r *Record) { r.UnitPrice = 0 }, ErrInvalidAmount},
		{"zero quantity", func(r *Record) { r.Quantity = 0 }, ErrInvalidAmount},
		{"zero cost", func(r *Record) { r.TotalCost = 0 }, ErrInvalidAmount},
		{"bad fill type", func(r *Record) { r.FillType = "half" }, ErrInvalidFillType},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			r := validRecord()
			tc.edit(&r)
			if err := r.Validate(); !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
		})
	}
}

func TestVehicleValidate(t *testing.T) {
	if err := (Vehicle{Label: "Civic"}).Validate(); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}
	if err := (Vehicle{Label: "  "}).Validate(); !errors.Is(err, ErrEmptyLabel) {
		t.Fatalf("expected ErrEmptyLabel, got %v", err)
	}
	if err := (Vehicle{Label: "x", Year: -1}).Validate(); err == nil {
		t.Fatalf("expected error for negative year")
	}
}

func TestParseFillType(t *testing.T) {
	for in, want := range map[string]FillType{"full": Full, " Partial ": Partial, "MISSED": Missed} {
		got, err := ParseFillType(in)
		if err != nil || got != want {
			t.Fatalf("%q expected %s, got %s (err=%v)", in, want, got, err)
		}
	}
	if _, err := ParseFillType("true"); !errors.Is(err, ErrInvalidFillType) {
		t.Fatalf("expected ErrInvalidFillType, got %v", err)
	}
}

func TestRecordBeforeTieBreak(t *testing.T) {
	day := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	a := Record{Date: day, CreatedAt: day.Add(time.Second)}
	b := Record{Date: day, CreatedAt: day.Add(2 * time.Second)}
	if !a.Before(b) || b.Before(a) {
		t.Fatalf("expected creation time to break the tie")
	}
	if a.Before(a) {
		t.Fatalf("a record never sorts before itself")
	}
}

func TestNewIDUnique(t *testing.T) {
	seen := map[string]bool{}
	for i := 0; i < 100; i++ {
		id := NewID()
		if seen[id] {
			t.Fatalf("duplicate id %s", id)
		}
		seen[id] = true
	}
}
