package log

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
)

func newJSONLogger(buf *bytes.Buffer) *Logger {
	return New(Config{Level: slog.LevelDebug, Component: ComponentApp, Format: "json", Output: buf})
}

func decodeLine(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()
	var m map[string]any
	if err := json.Unmarshal(buf.Bytes(), &m); err != nil {
		t.Fatalf("decode log line %q: %v", buf.String(), err)
	}
	buf.Reset()
	return m
}

func TestParseLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		" INFO ":  slog.LevelInfo,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"bogus":   slog.LevelInfo,
	}
	for in, want := range tests {
		if got := ParseLevel(in); got != want {
			t.Errorf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestLoggerStampsComponent(t *testing.T) {
	var buf bytes.Buffer
	l := newJSONLogger(&buf).WithComponent(ComponentStorage)
	l.Info("hello", FieldVehicleID, "v1")

	m := decodeLine(t, &buf)
	if m[FieldComponent] != ComponentStorage || m[FieldVehicleID] != "v1" {
		t.Fatalf("unexpected entry: %v", m)
	}
}

func TestStructuredLogger(t *testing.T) {
	var buf bytes.Buffer
	sl := NewStructuredLogger(newJSONLogger(&buf))
	ctx := context.Background()

	sl.LogRecordMutation(ctx, OpCreate, "v1", "r1", "full")
	m := decodeLine(t, &buf)
	if m[FieldRecordID] != "r1" || m[FieldOperation] != OpCreate || m[FieldComponent] != ComponentFuel {
		t.Fatalf("unexpected mutation entry: %v", m)
	}

	sl.LogImport(ctx, "v1", 3, 1)
	m = decodeLine(t, &buf)
	if m[FieldImported] != float64(3) || m[FieldSkipped] != float64(1) {
		t.Fatalf("unexpected import entry: %v", m)
	}

	sl.LogError(ctx, "boom", errors.New("disk full"), ComponentStorage, OpUpdate, nil)
	m = decodeLine(t, &buf)
	if m["level"] != "ERROR" || m[FieldError] != "disk full" || m[FieldErrorType] != "*errors.errorString" {
		t.Fatalf("unexpected error entry: %v", m)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/vehicles?x=1", nil)
	sl.LogHTTPEnd(ctx, req, http.StatusNotFound, 12, "10.0.0.1")
	m = decodeLine(t, &buf)
	if m["level"] != "WARN" || m[FieldStatusCode] != float64(404) || m[FieldSuccess] != false {
		t.Fatalf("unexpected http entry: %v", m)
	}
}

func TestMiddlewareChain(t *testing.T) {
	var buf bytes.Buffer
	base := newJSONLogger(&buf)

	var got *Logger
	h := Middleware(base)(RequestIDMiddleware(func(*http.Request) string { return "req-1" })(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			got = FromContext(r.Context())
		})))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))

	got.Info("inside")
	m := decodeLine(t, &buf)
	if m[FieldRequestID] != "req-1" {
		t.Fatalf("request id missing: %v", m)
	}

	if FromContext(context.Background()).Component() != "unknown" {
		t.Fatal("expected fallback logger outside a request")
	}
}
