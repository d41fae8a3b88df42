package core

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	Full    FillType = "full"
	Partial FillType = "partial"
	Missed  FillType = "missed"
)

type (
	// FillType classifies a fueling event. Only Full fill-ups are valid
	// efficiency samples. Missed marks a record whose predecessor fueling was
	// never logged, so the previous odometer cannot serve as its baseline.
	FillType string

	Vehicle struct {
		ID        string
		Label     string
		Make      string
		Model     string
		Year      int
		CreatedAt time.Time
	}

	// Derived holds the cached statistics of a record. It is a materialized
	// view over the chronological neighbour relationship and is rewritten by
	// Recompute; it is never edited by hand.
	Derived struct {
		PreviousOdometer float64
		HasBaseline      bool
		Distance         float64
		Efficiency       float64
		CostPerDistance  float64
	}

	Record struct {
		ID        string
		VehicleID string
		Date      time.Time
		Odometer  float64
		UnitPrice float64
		Quantity  float64
		TotalCost float64
		FillType  FillType
		Note      string
		CreatedAt time.Time

		Derived
	}
)

var (
	ErrZeroDate        = errors.New("date cannot be zero")
	ErrInvalidOdometer = errors.New("invalid odometer reading")
	ErrInvalidAmount   = errors.New("invalid amount")
	ErrInvalidFillType = errors.New("invalid fill type")
	ErrEmptyLabel      = errors.New("empty vehicle label")
	ErrMissingVehicle  = errors.New("missing vehicle reference")
	ErrFieldTooLong    = errors.New("field too long")
	ErrInvalidYear     = errors.New("invalid model year")
)

// NewID returns a new globally unique identifier for vehicles and records.
func NewID() string {
	return uuid.NewString()
}

// ParseFillType accepts the canonical tokens case-insensitively.
func ParseFillType(s string) (FillType, error) {
	switch FillType(strings.ToLower(strings.TrimSpace(s))) {
	case Full:
		return Full, nil
	case Partial:
		return Partial, nil
	case Missed:
		return Missed, nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidFillType, s)
}

// IsValid returns true if the fill type is one of the known classifications.
func (f FillType) IsValid() bool {
	switch f {
	case Full, Partial, Missed:
		return true
	default:
		return false
	}
}

func (f FillType) String() string {
	return string(f)
}

func (v Vehicle) Validate() error {
	if strings.TrimSpace(v.Label) == "" {
		return ErrEmptyLabel
	}
	if len(v.Label) > 100 {
		return fmt.Errorf("label: %w (max 100 characters)", ErrFieldTooLong)
	}
	if v.Year < 0 {
		return ErrInvalidYear
	}
	return nil
}

// Validate checks the raw fields of a record. The three monetary fields must
// already be resolved: callers run Solve before persisting a new record.
func (r Record) Validate() error {
	if strings.TrimSpace(r.VehicleID) == "" {
		return ErrMissingVehicle
	}
	if r.Date.IsZero() {
		return ErrZeroDate
	}
	if r.Odometer < 0 {
		return ErrInvalidOdometer
	}
	if r.UnitPrice <= 0 || r.Quantity <= 0 || r.TotalCost <= 0 {
		return ErrInvalidAmount
	}
	if !r.FillType.IsValid() {
		return ErrInvalidFillType
	}
	if len(r.Note) > 500 {
		return fmt.Errorf("note: %w (max 500 characters)", ErrFieldTooLong)
	}
	return nil
}

// Before reports whether r sorts strictly before o in chronological order.
func (r Record) Before(o Record) bool {
	if !r.Date.Equal(o.Date) {
		return r.Date.Before(o.Date)
	}
	return r.CreatedAt.Before(o.CreatedAt)
}
