package http

import (
	"bytes"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"
)

func TestDecodeJSON(t *testing.T) {
	type payload struct {
		Label string `json:"label"`
	}

	tests := []struct {
		name    string
		body    string
		wantErr bool
	}{
		{"valid", `{"label":"Panda"}`, false},
		{"empty", ``, true},
		{"unknown field", `{"label":"x","colour":"red"}`, true},
		{"trailing data", `{"label":"x"}{"label":"y"}`, true},
		{"not json", `label=x`, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(tt.body))
			var p payload
			err := DecodeJSON(httptest.NewRecorder(), req, &p)
			if (err != nil) != tt.wantErr {
				t.Fatalf("DecodeJSON() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err == nil && p.Label != "Panda" {
				t.Errorf("Label = %q", p.Label)
			}
		})
	}
}

func TestParseMonthParams(t *testing.T) {
	now := time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name    string
		query   string
		want    MonthParams
		wantOK  bool
		wantErr bool
	}{
		{"absent", "", MonthParams{}, false, false},
		{"both", "year=2023&month=11", MonthParams{2023, time.November}, true, false},
		{"month only", "month=2", MonthParams{2024, time.February}, true, false},
		{"month out of range", "month=13", MonthParams{}, true, true},
		{"bad year", "year=abc", MonthParams{}, true, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q, _ := url.ParseQuery(tt.query)
			got, ok, err := ParseMonthParams(q, now)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseMonthParams() error = %v, wantErr %v", err, tt.wantErr)
			}
			if ok != tt.wantOK {
				t.Errorf("ok = %v, want %v", ok, tt.wantOK)
			}
			if !tt.wantErr && got != tt.want {
				t.Errorf("ParseMonthParams() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestParseRangeParams(t *testing.T) {
	q, _ := url.ParseQuery("from=2024-01-01&to=2024-01-31")
	rng, err := ParseRangeParams(q)
	if err != nil {
		t.Fatalf("ParseRangeParams() error = %v", err)
	}
	if !rng.Start.Equal(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("Start = %v", rng.Start)
	}
	if !rng.Contains(time.Date(2024, 1, 31, 23, 59, 0, 0, time.UTC)) {
		t.Error("date-only to must cover the whole day")
	}
	if rng.Contains(time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)) {
		t.Error("range must end before the next day")
	}

	for _, raw := range []string{"from=yesterday", "to=2024-13-01", "from=2024-02-01&to=2024-01-01"} {
		q, _ := url.ParseQuery(raw)
		if _, err := ParseRangeParams(q); err == nil {
			t.Errorf("ParseRangeParams(%q) expected error", raw)
		}
	}
}

func TestReadImportBody(t *testing.T) {
	const text = "date,currentMiles,pricePerGallon,gallons,totalCost,isPartialFillUp,notes\n"

	t.Run("raw body", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(text))
		req.Header.Set("Content-Type", "text/csv")
		got, err := ReadImportBody(httptest.NewRecorder(), req)
		if err != nil || got != text {
			t.Fatalf("ReadImportBody() = %q, %v", got, err)
		}
	})

	t.Run("multipart", func(t *testing.T) {
		var buf bytes.Buffer
		mw := multipart.NewWriter(&buf)
		fw, err := mw.CreateFormFile(importFormField, "log.csv")
		if err != nil {
			t.Fatal(err)
		}
		_, _ = fw.Write([]byte(text))
		_ = mw.Close()

		req := httptest.NewRequest(http.MethodPost, "/", &buf)
		req.Header.Set("Content-Type", mw.FormDataContentType())
		got, err := ReadImportBody(httptest.NewRecorder(), req)
		if err != nil || got != text {
			t.Fatalf("ReadImportBody() = %q, %v", got, err)
		}
	})
}

func TestSanitizeInput(t *testing.T) {
	if got := sanitizeInput("  a\x00b\tc\n "); got != "ab\tc" {
		t.Errorf("sanitizeInput() = %q", got)
	}
}
