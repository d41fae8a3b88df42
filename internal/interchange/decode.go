package interchange

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"fuellog/internal/core"
)

var ErrMalformedRow = errors.New("malformed row")

// RowError describes a skipped row. Line is 1-based within the input.
type RowError struct {
	Line int
	Err  error
}

func (e RowError) Error() string {
	return fmt.Sprintf("line %d: %v", e.Line, e.Err)
}

func (e RowError) Unwrap() error {
	return e.Err
}

// Result is the outcome of a decode: the accepted records in chronological
// order and one RowError per skipped row.
type Result struct {
	Records []core.Record
	Skipped []RowError
	// Schemas counts accepted rows per detected variant.
	Schemas map[Schema]int
}

// Decoder turns interchange text into records for one vehicle. Zero-value
// fields fall back to UTC, time.Now and core.NewID.
type Decoder struct {
	VehicleID string
	Location  *time.Location
	Now       func() time.Time
	NewID     func() string
}

// Decode parses text with a default Decoder for vehicleID.
func Decode(text, vehicleID string) Result {
	return Decoder{VehicleID: vehicleID}.Decode(text)
}

// Decode never fails as a whole: rows that cannot be parsed are skipped and
// reported in Result.Skipped. Derived fields of the returned records are
// zero; callers run core.Recompute on the merged sequence.
func (d Decoder) Decode(text string) Result {
	loc := d.Location
	if loc == nil {
		loc = time.UTC
	}
	now := time.Now
	if d.Now != nil {
		now = d.Now
	}
	newID := core.NewID
	if d.NewID != nil {
		newID = d.NewID
	}

	res := Result{Schemas: map[Schema]int{}}
	base := now()

	r := newReader(text)
	first := true
	for {
		fields, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			line := 0
			var pe *csv.ParseError
			if errors.As(err, &pe) {
				line = pe.StartLine
			}
			res.Skipped = append(res.Skipped, RowError{Line: line, Err: fmt.Errorf("%w: %v", ErrMalformedRow, err)})
			first = false
			continue
		}
		if blank(fields) {
			continue
		}
		line, _ := r.FieldPos(0)
		if first {
			first = false
			if isHeader(fields) {
				continue
			}
		}

		rec, schema, err := parseRow(fields, loc)
		if err != nil {
			res.Skipped = append(res.Skipped, RowError{Line: line, Err: fmt.Errorf("%w: %v", ErrMalformedRow, err)})
			continue
		}
		rec.ID = newID()
		rec.VehicleID = d.VehicleID
		rec.CreatedAt = base.Add(time.Duration(len(res.Records)))
		res.Records = append(res.Records, rec)
		res.Schemas[schema]++
	}

	core.SortChronological(res.Records)
	return res
}

func newReader(text string) *csv.Reader {
	r := csv.NewReader(strings.NewReader(trimBOM(text)))
	r.FieldsPerRecord = -1
	r.LazyQuotes = true
	return r
}

func blank(fields []string) bool {
	for _, f := range fields {
		if strings.TrimSpace(f) != "" {
			return false
		}
	}
	return true
}

func parseRow(fields []string, loc *time.Location) (core.Record, Schema, error) {
	l, ok := layoutFor(len(fields))
	if !ok {
		return core.Record{}, 0, fmt.Errorf("unexpected field count %d", len(fields))
	}

	date, err := parseDate(fields[l.date], loc)
	if err != nil {
		return core.Record{}, 0, err
	}
	odo, set, err := core.ParseAmount(fields[l.odometer])
	if err != nil || !set {
		return core.Record{}, 0, fmt.Errorf("odometer %q: %w", fields[l.odometer], core.ErrInvalidOdometer)
	}

	price, err := amount(fields[l.unitPrice], "unit price")
	if err != nil {
		return core.Record{}, 0, err
	}
	qty, err := amount(fields[l.quantity], "quantity")
	if err != nil {
		return core.Record{}, 0, err
	}
	cost, err := amount(fields[l.totalCost], "total cost")
	if err != nil {
		return core.Record{}, 0, err
	}

	ft, enum, err := parseFillType(fields[l.fillType])
	if err != nil {
		return core.Record{}, 0, err
	}
	schema := SchemaLegacy
	switch {
	case l.previous >= 0:
		schema = SchemaExtended
	case enum:
		schema = SchemaClassified
	}

	rec := core.Record{
		Date:     date,
		Odometer: odo,
		FillType: ft,
		Note:     fields[l.note],
	}
	if err := resolveAmounts(&rec, price, qty, cost); err != nil {
		return core.Record{}, 0, err
	}
	return rec, schema, nil
}

func amount(s, name string) (core.Amount, error) {
	v, set, err := core.ParseAmount(s)
	if err != nil {
		return core.Amount{}, fmt.Errorf("%s %q: %w", name, s, err)
	}
	if !set || v == 0 {
		return core.Amount{}, nil
	}
	return core.Some(v), nil
}

func resolveAmounts(rec *core.Record, price, qty, cost core.Amount) error {
	price, qty, cost, err := core.ResolveAmounts(price, qty, cost)
	if err != nil {
		return err
	}
	rec.UnitPrice = price.Value
	rec.Quantity = qty.Value
	rec.TotalCost = cost.Value
	if rec.UnitPrice <= 0 || rec.Quantity <= 0 || rec.TotalCost <= 0 {
		return core.ErrInvalidAmount
	}
	return nil
}
