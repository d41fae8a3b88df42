package interchange

import (
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"fuellog/internal/core"
)

func sampleRecords() []core.Record {
	day := func(m time.Month, d int) time.Time { return time.Date(2024, m, d, 0, 0, 0, 0, time.UTC) }
	created := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	return []core.Record{
		{ID: "1", VehicleID: "v", Date: day(1, 15), Odometer: 12500, UnitPrice: 3.459, Quantity: 10.5, TotalCost: 36.32, FillType: core.Full, Note: "First fill-up", CreatedAt: created},
		{ID: "2", VehicleID: "v", Date: day(1, 29), Odometer: 12810.4, UnitPrice: 3.399, Quantity: 4.2, TotalCost: 14.28, FillType: core.Partial, Note: `Costco, "cheap" pump`, CreatedAt: created},
		{ID: "3", VehicleID: "v", Date: day(2, 3), Odometer: 13150, UnitPrice: 3.519, Quantity: 11.02, TotalCost: 38.78, FillType: core.Missed, Note: "line one\nline two", CreatedAt: created},
		{ID: "4", VehicleID: "v", Date: day(2, 3), Odometer: 13160, UnitPrice: 3.5, Quantity: 1, TotalCost: 3.5, FillType: core.Full, CreatedAt: created.Add(time.Second)},
		{ID: "5", VehicleID: "v", Date: time.Date(2024, 2, 20, 17, 45, 12, 500, time.UTC), Odometer: 13500, UnitPrice: 3.289, Quantity: 10, TotalCost: 32.89, FillType: core.Full, CreatedAt: created},
	}
}

func TestEncodeSingleRow(t *testing.T) {
	rows := Encode(sampleRecords()[:1])
	if len(rows) != 2 {
		t.Fatalf("expected header + 1 row, got %d", len(rows))
	}
	if rows[0] != "date,currentMiles,pricePerGallon,gallons,totalCost,isPartialFillUp,notes" {
		t.Fatalf("unexpected header %q", rows[0])
	}
	if want := `2024-01-15T00:00:00Z,12500,3.459,10.5,36.32,false,"First fill-up"`; rows[1] != want {
		t.Fatalf("expected %q, got %q", want, rows[1])
	}
}

func TestEncodeQuotingAndTokens(t *testing.T) {
	rows := Encode(sampleRecords())
	if !strings.HasSuffix(rows[2], `,true,"Costco, ""cheap"" pump"`) {
		t.Fatalf("partial row not encoded as expected: %q", rows[2])
	}
	if !strings.Contains(rows[3], ",missed,") {
		t.Fatalf("missed fueling must use its enum token: %q", rows[3])
	}
	if !strings.HasSuffix(rows[4], `,false,""`) {
		t.Fatalf("empty note must still be quoted: %q", rows[4])
	}

	classified := Encode(sampleRecords(), WithSchema(SchemaClassified))
	if classified[0] != "date,currentMiles,pricePerGallon,gallons,totalCost,fillType,notes" {
		t.Fatalf("unexpected header %q", classified[0])
	}
	if !strings.Contains(classified[2], ",partial,") {
		t.Fatalf("expected enum token, got %q", classified[2])
	}
}

func TestEncodeSortsChronologically(t *testing.T) {
	recs := sampleRecords()
	reversed := make([]core.Record, 0, len(recs))
	for i := len(recs) - 1; i >= 0; i-- {
		reversed = append(reversed, recs[i])
	}
	a := Encode(recs)
	b := Encode(reversed)
	if strings.Join(a, "\n") != strings.Join(b, "\n") {
		t.Fatalf("encode must not depend on input order")
	}
	if reversed[0].ID != "5" {
		t.Fatalf("encode must not reorder its input")
	}
}

func TestRoundTrip(t *testing.T) {
	for _, schema := range []Schema{SchemaLegacy, SchemaClassified, SchemaExtended} {
		t.Run(schema.String(), func(t *testing.T) {
			want := sampleRecords()
			core.SortChronological(want)
			core.Recompute(want)

			res := Decode(string(Marshal(want, WithSchema(schema))), "v2")
			if len(res.Skipped) != 0 {
				t.Fatalf("unexpected skipped rows: %v", res.Skipped)
			}
			if len(res.Records) != len(want) {
				t.Fatalf("expected %d records, got %d", len(want), len(res.Records))
			}
			for i, got := range res.Records {
				w := want[i]
				if !got.Date.Equal(w.Date) || got.Odometer != w.Odometer || got.UnitPrice != w.UnitPrice ||
					got.Quantity != w.Quantity || got.TotalCost != w.TotalCost || got.FillType != w.FillType || got.Note != w.Note {
					t.Fatalf("row %d: expected %+v, got %+v", i, w, got)
				}
				if got.VehicleID != "v2" || got.ID == "" {
					t.Fatalf("row %d: decoder must assign vehicle and id, got %+v", i, got)
				}
			}
		})
	}
}

func TestDecodeVariants(t *testing.T) {
	text := strings.Join([]string{
		"date,currentMiles,pricePerGallon,gallons,totalCost,isPartialFillUp,notes",
		`2024-01-01,1000,3,10,30,FALSE,"legacy"`,
		`01/05/2024,1200,3,5,15,True,"legacy partial"`,
		`2024-01-09T08:30:00-05:00,1400,3,10,30,partial,"classified"`,
		`2024-01-12,1700,1650,3,10,30,full,"extended"`,
		`2024-01-15,2000,3,10,30,missed,""`,
	}, "\n")

	res := Decode(text, "v")
	if len(res.Skipped) != 0 {
		t.Fatalf("unexpected skipped rows: %v", res.Skipped)
	}
	if len(res.Records) != 5 {
		t.Fatalf("expected 5 records, got %d", len(res.Records))
	}
	wantTypes := []core.FillType{core.Full, core.Partial, core.Partial, core.Full, core.Missed}
	for i, ft := range wantTypes {
		if res.Records[i].FillType != ft {
			t.Fatalf("record %d: expected %s, got %s", i, ft, res.Records[i].FillType)
		}
	}
	if got := res.Records[1].Date; !got.Equal(time.Date(2024, 1, 5, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("MM/dd/yyyy parsed as %v", got)
	}
	if got := res.Records[2].Date; !got.Equal(time.Date(2024, 1, 9, 13, 30, 0, 0, time.UTC)) {
		t.Fatalf("offset instant parsed as %v", got)
	}
	if res.Schemas[SchemaLegacy] != 2 || res.Schemas[SchemaClassified] != 2 || res.Schemas[SchemaExtended] != 1 {
		t.Fatalf("unexpected schema counts %v", res.Schemas)
	}
}

func TestDecodeImpossibleMonthSkipsOnlyThatRow(t *testing.T) {
	text := strings.Join([]string{
		"date,currentMiles,pricePerGallon,gallons,totalCost,isPartialFillUp,notes",
		`2024-01-01,1000,3,10,30,false,"ok"`,
		`2024-13-01,1,1,1,1,1,false,`,
		`2024-01-08,1300,3,10,30,false,"ok too"`,
	}, "\n")

	res := Decode(text, "v")
	if len(res.Records) != 2 {
		t.Fatalf("expected 2 records, got %d", len(res.Records))
	}
	if len(res.Skipped) != 1 || res.Skipped[0].Line != 3 {
		t.Fatalf("expected line 3 skipped, got %v", res.Skipped)
	}
	if !errors.Is(res.Skipped[0], ErrMalformedRow) {
		t.Fatalf("skipped row must wrap ErrMalformedRow, got %v", res.Skipped[0])
	}
}

func TestDecodeSkipsMalformedRows(t *testing.T) {
	text := strings.Join([]string{
		"date,currentMiles,pricePerGallon,gallons,totalCost,isPartialFillUp,notes",
		`2024-01-01,abc,3,10,30,false,""`,      // odometer
		`2024-01-02,1000,3,ten,30,false,""`,    // quantity
		`2024-01-03,1000,3,10,30,maybe,""`,     // classification
		`2024-01-04,1000,3,10,30,false`,        // field count
		`2024-01-05,1000,,,30,false,""`,        // only one amount
		`2024-01-06,1000,-3,10,30,false,""`,    // negative
		``,
		`   `,
		`2024-01-07,1000,3,10,30,false,"kept"`,
	}, "\n")

	res := Decode(text, "v")
	if len(res.Records) != 1 || res.Records[0].Note != "kept" {
		t.Fatalf("expected only the last row, got %+v", res.Records)
	}
	if len(res.Skipped) != 6 {
		t.Fatalf("expected 6 skipped rows, got %d: %v", len(res.Skipped), res.Skipped)
	}
}

func TestDecodeSolvesMissingAmount(t *testing.T) {
	text := strings.Join([]string{
		"date,currentMiles,pricePerGallon,gallons,totalCost,isPartialFillUp,notes",
		`2024-01-01,1000,3.459,10.5,,false,""`,
		`2024-01-02,1300,3.459,,36.32,false,""`,
		`2024-01-03,1600,,10.5,36.32,false,""`,
	}, "\n")
	res := Decode(text, "v")
	if len(res.Records) != 3 {
		t.Fatalf("expected 3 records, got %d (%v)", len(res.Records), res.Skipped)
	}
	if got := res.Records[0].TotalCost; got != 36.32 {
		t.Fatalf("expected solved total 36.32, got %v", got)
	}
	if got := res.Records[1].Quantity; got != 10.5 {
		t.Fatalf("expected solved quantity 10.5, got %v", got)
	}
	if got := res.Records[2].UnitPrice; got != 3.459 {
		t.Fatalf("expected solved unit price 3.459, got %v", got)
	}
}

func TestDecodeWithoutHeaderAndDeterministicIDs(t *testing.T) {
	n := 0
	fixed := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	d := Decoder{
		VehicleID: "v",
		Now:       func() time.Time { return fixed },
		NewID:     func() string { n++; return fmt.Sprintf("id-%d", n) },
	}
	res := d.Decode("2024-02-01,100,3,10,30,false,\"b\"\n2024-02-01,90,3,10,30,false,\"a\"\n")
	if len(res.Records) != 2 {
		t.Fatalf("expected 2 records, got %d", len(res.Records))
	}
	if res.Records[0].ID != "id-1" || res.Records[1].ID != "id-2" {
		t.Fatalf("same-day rows must keep file order, got %s %s", res.Records[0].ID, res.Records[1].ID)
	}
	if !res.Records[0].CreatedAt.Equal(fixed) || !res.Records[1].CreatedAt.After(fixed) {
		t.Fatalf("creation times must follow file order")
	}
}

func TestValidate(t *testing.T) {
	cases := []struct {
		name   string
		text   string
		reason Reason
		want   error
	}{
		{"empty", "", ReasonEmptyInput, ErrEmptyInput},
		{"whitespace", " \n\n\t", ReasonEmptyInput, ErrEmptyInput},
		{"header only", "date,currentMiles,pricePerGallon,gallons,totalCost,isPartialFillUp,notes\n\n", ReasonHeaderOnly, ErrHeaderOnlyInput},
		{"unknown header", "when,odo,price\n2024-01-01,1,2", ReasonUnrecognizedSchema, ErrUnrecognizedSchema},
		{"short first row", "date,currentMiles,pricePerGallon,gallons,totalCost,fillType,notes\n2024-01-01,1,2", ReasonUnrecognizedSchema, ErrUnrecognizedSchema},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := Validate(tc.text)
			var ve *ValidationError
			if !errors.As(err, &ve) {
				t.Fatalf("expected *ValidationError, got %v", err)
			}
			if ve.Reason != tc.reason || !errors.Is(err, tc.want) {
				t.Fatalf("expected %s, got %s (%v)", tc.reason, ve.Reason, err)
			}
		})
	}

	for _, schema := range []Schema{SchemaLegacy, SchemaClassified, SchemaExtended} {
		if err := Validate(string(Marshal(sampleRecords(), WithSchema(schema)))); err != nil {
			t.Fatalf("%s: expected valid, got %v", schema, err)
		}
	}
	if err := Validate("\ufeffDATE,currentmiles,pricepergallon,gallons,totalcost,ispartialfillup,notes\n2024-01-01,1,2,3,6,false,\"\""); err != nil {
		t.Fatalf("header match must ignore case and BOM, got %v", err)
	}
}

func TestParseSchema(t *testing.T) {
	for _, s := range []Schema{SchemaLegacy, SchemaClassified, SchemaExtended} {
		got, err := ParseSchema(strings.ToUpper(s.String()))
		if err != nil || got != s {
			t.Errorf("ParseSchema(%q) = %v, %v", s, got, err)
		}
	}
	if _, err := ParseSchema("csv"); err == nil {
		t.Error("expected error for unknown schema")
	}
}
