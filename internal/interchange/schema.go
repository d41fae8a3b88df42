// Package interchange reads and writes fueling records as comma-separated
// rows.
//
// Three schema variants exist in the wild:
//
//	legacy:     date,currentMiles,pricePerGallon,gallons,totalCost,isPartialFillUp,notes
//	classified: date,currentMiles,pricePerGallon,gallons,totalCost,fillType,notes
//	extended:   date,currentMiles,previousMiles,pricePerGallon,gallons,totalCost,fillType,notes
//
// Rows are matched to a variant by token count and by the shape of the
// classification token, so files mixing variants still decode.
package interchange

import (
	"fmt"
	"strings"
	"time"

	"fuellog/internal/core"
)

const (
	SchemaLegacy Schema = iota + 1
	SchemaClassified
	SchemaExtended
)

// Schema identifies a row layout.
type Schema int

// column positions within a row of a given width
type layout struct {
	date, odometer, previous       int
	unitPrice, quantity, totalCost int
	fillType, note                 int
}

var (
	headers = map[Schema][]string{
		SchemaLegacy:     {"date", "currentMiles", "pricePerGallon", "gallons", "totalCost", "isPartialFillUp", "notes"},
		SchemaClassified: {"date", "currentMiles", "pricePerGallon", "gallons", "totalCost", "fillType", "notes"},
		SchemaExtended:   {"date", "currentMiles", "previousMiles", "pricePerGallon", "gallons", "totalCost", "fillType", "notes"},
	}

	sevenColumns = layout{date: 0, odometer: 1, unitPrice: 2, quantity: 3, totalCost: 4, fillType: 5, note: 6, previous: -1}
	eightColumns = layout{date: 0, odometer: 1, previous: 2, unitPrice: 3, quantity: 4, totalCost: 5, fillType: 6, note: 7}
)

// Date layouts accepted on decode, in priority order.
var dateLayouts = []string{
	time.RFC3339,
	"2006-01-02",
	"01/02/2006",
}

func (s Schema) String() string {
	switch s {
	case SchemaLegacy:
		return "legacy"
	case SchemaClassified:
		return "classified"
	case SchemaExtended:
		return "extended"
	}
	return fmt.Sprintf("schema(%d)", int(s))
}

// ParseSchema maps a schema name as returned by String to its Schema.
func ParseSchema(name string) (Schema, error) {
	for _, s := range []Schema{SchemaLegacy, SchemaClassified, SchemaExtended} {
		if strings.EqualFold(strings.TrimSpace(name), s.String()) {
			return s, nil
		}
	}
	return 0, fmt.Errorf("unknown schema %q", name)
}

// Header returns the header row of the schema.
func (s Schema) Header() []string {
	return append([]string(nil), headers[s]...)
}

// matchHeader returns the schema whose header equals fields, ignoring case
// and surrounding whitespace.
func matchHeader(fields []string) (Schema, bool) {
	for _, s := range []Schema{SchemaExtended, SchemaClassified, SchemaLegacy} {
		h := headers[s]
		if len(h) != len(fields) {
			continue
		}
		ok := true
		for i := range h {
			if !strings.EqualFold(strings.TrimSpace(fields[i]), h[i]) {
				ok = false
				break
			}
		}
		if ok {
			return s, true
		}
	}
	return 0, false
}

func isHeader(fields []string) bool {
	return len(fields) > 0 && strings.EqualFold(strings.TrimSpace(trimBOM(fields[0])), "date")
}

func layoutFor(width int) (layout, bool) {
	switch width {
	case len(headers[SchemaLegacy]):
		return sevenColumns, true
	case len(headers[SchemaExtended]):
		return eightColumns, true
	}
	return layout{}, false
}

// parseFillType reads a classification token. The enumerated shape is tried
// first so the newest variant wins; the legacy boolean means "is partial".
func parseFillType(token string) (core.FillType, bool, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return core.Full, false, nil
	}
	if ft, err := core.ParseFillType(token); err == nil {
		return ft, true, nil
	}
	switch {
	case strings.EqualFold(token, "true"):
		return core.Partial, false, nil
	case strings.EqualFold(token, "false"):
		return core.Full, false, nil
	}
	return "", false, fmt.Errorf("classification %q: %w", token, core.ErrInvalidFillType)
}

func parseDate(s string, loc *time.Location) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, l := range dateLayouts {
		if t, err := time.ParseInLocation(l, s, loc); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("date %q matches no known format", s)
}

func trimBOM(s string) string {
	return strings.TrimPrefix(s, "\ufeff")
}
