package http

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"fuellog/internal/cache"
	"fuellog/internal/log"
	"fuellog/internal/middleware/ratelimit"
	"fuellog/internal/services"
	"fuellog/internal/store/memory"
)

func newTestServer(t *testing.T, opts ...ServerOption) *Server {
	t.Helper()
	summaries := cache.NewSummaryCache(16, time.Minute)
	svc := services.NewFuelService(memory.New(), services.WithSummaryCache(summaries))
	t.Cleanup(func() { _ = svc.Close() })

	opts = append([]ServerOption{
		WithLogger(log.New(log.Config{Output: io.Discard})),
		WithSummaryCache(summaries),
	}, opts...)
	return NewServer(":0", svc, opts...)
}

func do(t *testing.T, srv *Server, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var rdr io.Reader
	if body != "" {
		rdr = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, rdr)
	req.RemoteAddr = "203.0.113.9:4000"
	rr := httptest.NewRecorder()
	srv.Handler.ServeHTTP(rr, req)
	return rr
}

func decode[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(rr.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode %q: %v", rr.Body.String(), err)
	}
	return v
}

func createVehicle(t *testing.T, srv *Server) string {
	t.Helper()
	rr := do(t, srv, http.MethodPost, "/vehicles", `{"label":"Panda","make":"Fiat","year":2019}`)
	if rr.Code != http.StatusCreated {
		t.Fatalf("create vehicle status=%d body=%s", rr.Code, rr.Body.String())
	}
	return decode[vehicleResponse](t, rr).ID
}

func TestHealthReadyMetrics(t *testing.T) {
	srv := newTestServer(t)

	for _, path := range []string{"/healthz", "/readyz", "/metrics"} {
		rr := do(t, srv, http.MethodGet, path, "")
		if rr.Code != http.StatusOK {
			t.Fatalf("%s status=%d", path, rr.Code)
		}
		if rr.Header().Get("X-Request-ID") == "" {
			t.Errorf("%s missing request id header", path)
		}
	}

	rr := do(t, srv, http.MethodGet, "/metrics", "")
	if !strings.Contains(rr.Body.String(), "http_requests_total") {
		t.Errorf("metrics body missing request counter: %s", rr.Body.String())
	}
}

func TestVehicleEndpoints(t *testing.T) {
	srv := newTestServer(t)
	id := createVehicle(t, srv)

	rr := do(t, srv, http.MethodGet, "/vehicles/"+id, "")
	if rr.Code != http.StatusOK || decode[vehicleResponse](t, rr).Label != "Panda" {
		t.Fatalf("get vehicle status=%d body=%s", rr.Code, rr.Body.String())
	}

	rr = do(t, srv, http.MethodGet, "/vehicles", "")
	if list := decode[[]vehicleResponse](t, rr); len(list) != 1 {
		t.Fatalf("list vehicles = %v", list)
	}

	tests := []struct {
		name   string
		method string
		path   string
		body   string
		want   int
	}{
		{"unknown vehicle", http.MethodGet, "/vehicles/nope", "", http.StatusNotFound},
		{"empty label", http.MethodPost, "/vehicles", `{"label":"  "}`, http.StatusUnprocessableEntity},
		{"bad json", http.MethodPost, "/vehicles", `{"label":`, http.StatusBadRequest},
		{"unknown field", http.MethodPost, "/vehicles", `{"label":"x","vin":"1"}`, http.StatusBadRequest},
		{"wrong method", http.MethodPatch, "/vehicles", "", http.StatusMethodNotAllowed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if rr := do(t, srv, tt.method, tt.path, tt.body); rr.Code != tt.want {
				t.Fatalf("status=%d want %d body=%s", rr.Code, tt.want, rr.Body.String())
			}
		})
	}

	if rr := do(t, srv, http.MethodDelete, "/vehicles/"+id, ""); rr.Code != http.StatusNoContent {
		t.Fatalf("delete vehicle status=%d", rr.Code)
	}
	if rr := do(t, srv, http.MethodGet, "/vehicles/"+id, ""); rr.Code != http.StatusNotFound {
		t.Fatalf("deleted vehicle status=%d", rr.Code)
	}
}

func TestRecordLifecycle(t *testing.T) {
	srv := newTestServer(t)
	id := createVehicle(t, srv)

	rr := do(t, srv, http.MethodPost, "/vehicles/"+id+"/records",
		`{"date":"2024-01-05","odometer":12200,"unit_price":3.459,"quantity":10.5}`)
	if rr.Code != http.StatusCreated {
		t.Fatalf("first record status=%d body=%s", rr.Code, rr.Body.String())
	}
	first := decode[recordResponse](t, rr)
	if first.TotalCost != 36.32 {
		t.Errorf("solved total cost = %v, want 36.32", first.TotalCost)
	}
	if first.PreviousOdometer != nil || first.FillType != "full" {
		t.Errorf("first record = %+v", first)
	}

	rr = do(t, srv, http.MethodPost, "/vehicles/"+id+"/records",
		`{"date":"2024-01-20T08:00:00Z","odometer":12500,"unit_price":3.5,"total_cost":35}`)
	if rr.Code != http.StatusCreated {
		t.Fatalf("second record status=%d body=%s", rr.Code, rr.Body.String())
	}
	second := decode[recordResponse](t, rr)
	if second.Quantity != 10 || second.Distance != 300 || second.Efficiency != 30 {
		t.Errorf("second record = %+v", second)
	}
	if second.PreviousOdometer == nil || *second.PreviousOdometer != 12200 {
		t.Errorf("previous odometer = %v", second.PreviousOdometer)
	}

	rr = do(t, srv, http.MethodGet, "/vehicles/"+id+"/records?from=2024-01-10", "")
	if list := decode[[]recordResponse](t, rr); len(list) != 1 || list[0].ID != second.ID {
		t.Fatalf("filtered records = %+v", list)
	}

	rr = do(t, srv, http.MethodPut, "/records/"+second.ID,
		`{"date":"2024-01-20T08:00:00Z","odometer":12600,"unit_price":3.5,"total_cost":35,"fill_type":"partial"}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("update status=%d body=%s", rr.Code, rr.Body.String())
	}
	if upd := decode[recordResponse](t, rr); upd.Distance != 400 || upd.Efficiency != 0 {
		t.Errorf("updated record = %+v", upd)
	}

	rr = do(t, srv, http.MethodPost, "/vehicles/"+id+"/records",
		`{"date":"2024-01-25","odometer":12700,"unit_price":3.5}`)
	if rr.Code != http.StatusUnprocessableEntity {
		t.Fatalf("two missing amounts status=%d", rr.Code)
	}
	rr = do(t, srv, http.MethodPost, "/vehicles/"+id+"/records",
		`{"date":"2024-01-25","odometer":12700,"unit_price":3.5,"quantity":1,"fill_type":"half"}`)
	if rr.Code != http.StatusUnprocessableEntity {
		t.Fatalf("bad fill type status=%d", rr.Code)
	}
	rr = do(t, srv, http.MethodPost, "/vehicles/nope/records",
		`{"date":"2024-01-25","odometer":12700,"unit_price":3.5,"quantity":1}`)
	if rr.Code != http.StatusNotFound {
		t.Fatalf("unknown vehicle status=%d", rr.Code)
	}

	if rr := do(t, srv, http.MethodDelete, "/records/"+first.ID, ""); rr.Code != http.StatusNoContent {
		t.Fatalf("delete status=%d", rr.Code)
	}
	rr = do(t, srv, http.MethodGet, "/records/"+second.ID, "")
	if got := decode[recordResponse](t, rr); got.PreviousOdometer != nil || got.Distance != 0 {
		t.Errorf("survivor must lose its baseline: %+v", got)
	}
	if rr := do(t, srv, http.MethodGet, "/records/"+first.ID, ""); rr.Code != http.StatusNotFound {
		t.Fatalf("deleted record status=%d", rr.Code)
	}
}

func TestSummaryEndpoint(t *testing.T) {
	srv := newTestServer(t)
	id := createVehicle(t, srv)

	rr := do(t, srv, http.MethodGet, "/vehicles/"+id+"/summary", "")
	empty := decode[summaryResponse](t, rr)
	if empty.Count != 0 || empty.BestEfficiency != nil || empty.MostRecent != nil {
		t.Fatalf("empty summary = %+v", empty)
	}

	for _, body := range []string{
		`{"date":"2024-01-05","odometer":12200,"unit_price":3.459,"quantity":10.5}`,
		`{"date":"2024-02-05","odometer":12500,"unit_price":3.5,"quantity":10}`,
	} {
		if rr := do(t, srv, http.MethodPost, "/vehicles/"+id+"/records", body); rr.Code != http.StatusCreated {
			t.Fatalf("add record status=%d body=%s", rr.Code, rr.Body.String())
		}
	}

	rr = do(t, srv, http.MethodGet, "/vehicles/"+id+"/summary", "")
	all := decode[summaryResponse](t, rr)
	if all.Count != 2 || all.TotalDistance != 300 || all.BestEfficiency == nil || *all.BestEfficiency != 30 {
		t.Fatalf("summary = %+v", all)
	}

	rr = do(t, srv, http.MethodGet, "/vehicles/"+id+"/summary?year=2024&month=1", "")
	jan := decode[summaryResponse](t, rr)
	if jan.Count != 1 || jan.TotalCost != 36.32 || jan.TotalDistance != 0 {
		t.Fatalf("january summary = %+v", jan)
	}

	if rr := do(t, srv, http.MethodGet, "/vehicles/"+id+"/summary?month=13", ""); rr.Code != http.StatusBadRequest {
		t.Fatalf("bad month status=%d", rr.Code)
	}
	if rr := do(t, srv, http.MethodGet, "/vehicles/nope/summary", ""); rr.Code != http.StatusNotFound {
		t.Fatalf("unknown vehicle status=%d", rr.Code)
	}
}

func TestImportExport(t *testing.T) {
	srv := newTestServer(t)
	id := createVehicle(t, srv)

	text := "date,currentMiles,pricePerGallon,gallons,totalCost,isPartialFillUp,notes\n" +
		"2024-01-05,12200,3.459,10.5,36.32,false,\"first\"\n" +
		"2024-13-40,12300,3.5,10,35,false,\"\"\n" +
		"2024-01-20,12500,3.5,10,35,false,\"second\"\n"

	rr := do(t, srv, http.MethodPost, "/vehicles/"+id+"/import", text)
	if rr.Code != http.StatusOK {
		t.Fatalf("import status=%d body=%s", rr.Code, rr.Body.String())
	}
	res := decode[importResponse](t, rr)
	if res.Imported != 2 || len(res.Skipped) != 1 || res.Skipped[0].Line != 3 || res.Schemas["legacy"] != 2 {
		t.Fatalf("import result = %+v", res)
	}

	rr = do(t, srv, http.MethodPost, "/vehicles/"+id+"/import",
		"date,currentMiles,pricePerGallon,gallons,totalCost,isPartialFillUp,notes\n")
	if rr.Code != http.StatusUnprocessableEntity {
		t.Fatalf("header-only import status=%d", rr.Code)
	}
	if body := decode[ErrorBody](t, rr); body.Reason != "header_only" {
		t.Errorf("reason = %q", body.Reason)
	}

	rr = do(t, srv, http.MethodGet, "/vehicles/"+id+"/export?schema=extended", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("export status=%d", rr.Code)
	}
	if ct := rr.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/csv") {
		t.Errorf("Content-Type = %q", ct)
	}
	lines := strings.Split(strings.TrimSpace(rr.Body.String()), "\n")
	if len(lines) != 3 || !strings.HasPrefix(lines[0], "date,currentMiles,previousMiles") {
		t.Fatalf("export = %q", rr.Body.String())
	}
	if !strings.Contains(lines[2], ",12500,12200,") {
		t.Errorf("second row lacks baseline: %q", lines[2])
	}

	if rr := do(t, srv, http.MethodGet, "/vehicles/"+id+"/export?schema=xml", ""); rr.Code != http.StatusBadRequest {
		t.Fatalf("bad schema status=%d", rr.Code)
	}

	rr = do(t, srv, http.MethodPost, "/vehicles/"+id+"/recompute", "")
	if got := decode[map[string]int](t, rr); rr.Code != http.StatusOK || got["corrected"] != 0 {
		t.Fatalf("recompute status=%d body=%v", rr.Code, got)
	}
}

func TestSolveEndpoint(t *testing.T) {
	srv := newTestServer(t)

	tests := []struct {
		name      string
		body      string
		wantCode  int
		wantOut   string
		wantField string
		wantValue float64
	}{
		{"total from price and quantity", `{"unit_price":3.459,"quantity":10.5,"edited":["unitPrice","quantity"]}`,
			http.StatusOK, "solved", "totalCost", 36.32},
		{"nothing edited", `{"unit_price":3.459}`, http.StatusOK, "noop", "", 0},
		{"unknown field", `{"edited":["gallons"]}`, http.StatusUnprocessableEntity, "", "", 0},
		{"division by zero", `{"unit_price":0,"total_cost":10,"edited":["unitPrice","totalCost"]}`,
			http.StatusUnprocessableEntity, "", "", 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := do(t, srv, http.MethodPost, "/solve", tt.body)
			if rr.Code != tt.wantCode {
				t.Fatalf("status=%d want %d body=%s", rr.Code, tt.wantCode, rr.Body.String())
			}
			if tt.wantCode != http.StatusOK {
				return
			}
			got := decode[solveResponse](t, rr)
			if got.Outcome != tt.wantOut || got.Field != tt.wantField || got.Value != tt.wantValue {
				t.Errorf("solve = %+v", got)
			}
		})
	}
}

func TestRateLimitedWrites(t *testing.T) {
	limiter := ratelimit.New(0.001, 1)
	srv := newTestServer(t, WithRateLimiter(limiter))
	defer srv.Shutdown(context.Background())

	createVehicle(t, srv)
	if rr := do(t, srv, http.MethodPost, "/vehicles", `{"label":"Second"}`); rr.Code != http.StatusTooManyRequests {
		t.Fatalf("second write status=%d, want 429", rr.Code)
	}
	if rr := do(t, srv, http.MethodGet, "/vehicles", ""); rr.Code != http.StatusOK {
		t.Fatalf("read status=%d", rr.Code)
	}
}
