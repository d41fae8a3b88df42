package interchange

import (
	"strings"
	"time"

	"fuellog/internal/core"
)

type encoder struct {
	schema Schema
}

// Option configures Encode.
type Option func(*encoder)

// WithSchema selects the written variant. The default is SchemaLegacy, which
// every reader of the format understands.
func WithSchema(s Schema) Option {
	return func(e *encoder) {
		if _, ok := headers[s]; ok {
			e.schema = s
		}
	}
}

// Encode renders the header row followed by one row per record in
// chronological order. records is not modified.
func Encode(records []core.Record, opts ...Option) []string {
	e := encoder{schema: SchemaLegacy}
	for _, opt := range opts {
		opt(&e)
	}

	sorted := append([]core.Record(nil), records...)
	core.SortChronological(sorted)

	rows := make([]string, 0, len(sorted)+1)
	rows = append(rows, strings.Join(headers[e.schema], ","))
	for _, r := range sorted {
		rows = append(rows, e.row(r))
	}
	return rows
}

// Marshal returns Encode's rows as newline-terminated text.
func Marshal(records []core.Record, opts ...Option) []byte {
	var b strings.Builder
	for _, row := range Encode(records, opts...) {
		b.WriteString(row)
		b.WriteByte('\n')
	}
	return []byte(b.String())
}

func (e encoder) row(r core.Record) string {
	fields := []string{
		r.Date.UTC().Format(time.RFC3339Nano),
		core.FormatAmount(r.Odometer),
	}
	if e.schema == SchemaExtended {
		prev := ""
		if r.HasBaseline {
			prev = core.FormatAmount(r.PreviousOdometer)
		}
		fields = append(fields, prev)
	}
	fields = append(fields,
		core.FormatAmount(r.UnitPrice),
		core.FormatAmount(r.Quantity),
		core.FormatAmount(r.TotalCost),
		e.fillToken(r.FillType),
		quote(r.Note),
	)
	return strings.Join(fields, ",")
}

// fillToken renders the classification. The legacy boolean cannot express a
// missed fueling, so that one is always written as its enum token.
func (e encoder) fillToken(ft core.FillType) string {
	if e.schema != SchemaLegacy || ft == core.Missed {
		return ft.String()
	}
	if ft == core.Partial {
		return "true"
	}
	return "false"
}

func quote(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}
