package http

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"fuellog/internal/core"
	"fuellog/internal/interchange"
	"fuellog/internal/log"
	"fuellog/internal/middleware/trace"
)

// handleHealth performs basic liveness check
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	NewJSONResponse().Body(map[string]any{
		"status":    "ok",
		"timestamp": s.now().UTC().Format(time.RFC3339),
		"uptime":    time.Since(s.started).String(),
	}).Write(w)
}

// handleReady performs readiness check with dependency verification
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), readyCheckTimeout)
	defer cancel()

	status := "ready"
	httpStatus := http.StatusOK
	checks := make(map[string]any)

	if _, err := s.svc.ListVehicles(ctx); err != nil {
		checks["store"] = fmt.Sprintf("failed: %v", err)
		status = "not_ready"
		httpStatus = http.StatusServiceUnavailable
	} else {
		checks["store"] = "ok"
	}

	if s.summaries != nil {
		checks["summary_cache"] = map[string]any{"entries": s.summaries.Size(), "status": "ok"}
	}
	if s.rateLimiter != nil {
		checks["rate_limiter"] = map[string]any{"active_clients": s.rateLimiter.ActiveClients(), "status": "ok"}
	}

	NewJSONResponse().Status(httpStatus).Body(map[string]any{
		"status":    status,
		"timestamp": s.now().UTC().Format(time.RFC3339),
		"checks":    checks,
	}).Write(w)
}

// handleMetrics provides request and security counters in plain text format
func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")

	traceMetrics := s.traceMiddleware.GetMetrics()
	securityMetrics := s.securityDetector.GetMetrics()

	fmt.Fprintf(w, "# HELP http_requests_total Total number of HTTP requests\n")
	fmt.Fprintf(w, "# TYPE http_requests_total counter\n")
	fmt.Fprintf(w, "http_requests_total %d\n\n", traceMetrics.TotalRequests)

	fmt.Fprintf(w, "# HELP http_server_errors_total Responses with a 5xx status\n")
	fmt.Fprintf(w, "# TYPE http_server_errors_total counter\n")
	fmt.Fprintf(w, "http_server_errors_total %d\n\n", traceMetrics.ServerErrors)

	fmt.Fprintf(w, "# HELP suspicious_requests_total Total suspicious requests detected\n")
	fmt.Fprintf(w, "# TYPE suspicious_requests_total counter\n")
	fmt.Fprintf(w, "suspicious_requests_total %d\n\n", securityMetrics.SuspiciousRequests)

	if s.rateLimiter != nil {
		rl := s.rateLimiter.GetMetrics()
		fmt.Fprintf(w, "# HELP rate_limit_hits_total Total rate limit hits\n")
		fmt.Fprintf(w, "# TYPE rate_limit_hits_total counter\n")
		fmt.Fprintf(w, "rate_limit_hits_total %d\n\n", rl.TotalHits)
		fmt.Fprintf(w, "# HELP active_rate_limit_clients Currently tracked rate limit clients\n")
		fmt.Fprintf(w, "# TYPE active_rate_limit_clients gauge\n")
		fmt.Fprintf(w, "active_rate_limit_clients %d\n\n", rl.ActiveClients)
	}

	if s.summaries != nil {
		fmt.Fprintf(w, "# HELP summary_cache_entries Current summary cache entries\n")
		fmt.Fprintf(w, "# TYPE summary_cache_entries gauge\n")
		fmt.Fprintf(w, "summary_cache_entries %d\n\n", s.summaries.Size())
	}

	fmt.Fprintf(w, "# HELP uptime_seconds Application uptime in seconds\n")
	fmt.Fprintf(w, "# TYPE uptime_seconds gauge\n")
	fmt.Fprintf(w, "uptime_seconds %.0f\n", time.Since(s.started).Seconds())
}

func (s *Server) handleListVehicles(w http.ResponseWriter, r *http.Request) {
	vehicles, err := s.svc.ListVehicles(r.Context())
	if err != nil {
		s.fail(w, r, err, log.OpList)
		return
	}
	out := make([]vehicleResponse, 0, len(vehicles))
	for _, v := range vehicles {
		out = append(out, newVehicleResponse(v))
	}
	NewJSONResponse().Body(out).Write(w)
}

func (s *Server) handleCreateVehicle(w http.ResponseWriter, r *http.Request) {
	var req vehicleRequest
	if err := DecodeJSON(w, r, &req); err != nil {
		BadRequestError(err.Error()).Write(w)
		return
	}
	v, err := s.svc.CreateVehicle(r.Context(), req.toInput())
	if err != nil {
		s.fail(w, r, err, log.OpCreate)
		return
	}
	NewJSONResponse().
		Status(http.StatusCreated).
		Header("Location", "/vehicles/"+v.ID).
		Body(newVehicleResponse(v)).
		Write(w)
}

func (s *Server) handleGetVehicle(w http.ResponseWriter, r *http.Request) {
	v, err := s.svc.GetVehicle(r.Context(), r.PathValue("id"))
	if err != nil {
		s.fail(w, r, err, log.OpRead)
		return
	}
	NewJSONResponse().Body(newVehicleResponse(v)).Write(w)
}

func (s *Server) handleDeleteVehicle(w http.ResponseWriter, r *http.Request) {
	if err := s.svc.DeleteVehicle(r.Context(), r.PathValue("id")); err != nil {
		s.fail(w, r, err, log.OpDelete)
		return
	}
	NewJSONResponse().Status(http.StatusNoContent).Write(w)
}

func (s *Server) handleListRecords(w http.ResponseWriter, r *http.Request) {
	rng, err := ParseRangeParams(r.URL.Query())
	if err != nil {
		BadRequestError(err.Error()).Write(w)
		return
	}
	vehicleID := r.PathValue("id")
	if _, err := s.svc.GetVehicle(r.Context(), vehicleID); err != nil {
		s.fail(w, r, err, log.OpList)
		return
	}
	records, err := s.svc.ListRecords(r.Context(), vehicleID, rng)
	if err != nil {
		s.fail(w, r, err, log.OpList)
		return
	}
	NewJSONResponse().Body(newRecordResponses(records)).Write(w)
}

func (s *Server) handleCreateRecord(w http.ResponseWriter, r *http.Request) {
	var req recordRequest
	if err := DecodeJSON(w, r, &req); err != nil {
		BadRequestError(err.Error()).Write(w)
		return
	}
	in, err := req.toInput()
	if err != nil {
		UnprocessableEntityError(err.Error()).Write(w)
		return
	}
	vehicleID := r.PathValue("id")
	if _, err := s.svc.GetVehicle(r.Context(), vehicleID); err != nil {
		s.fail(w, r, err, log.OpCreate)
		return
	}
	rec, err := s.svc.AddRecord(r.Context(), vehicleID, in)
	if err != nil {
		s.fail(w, r, err, log.OpCreate)
		return
	}
	s.reqLogger.LogRecordMutation(r.Context(), log.OpCreate, rec.VehicleID, rec.ID, rec.FillType.String())
	NewJSONResponse().
		Status(http.StatusCreated).
		Header("Location", "/records/"+rec.ID).
		Body(newRecordResponse(rec)).
		Write(w)
}

func (s *Server) handleGetRecord(w http.ResponseWriter, r *http.Request) {
	rec, err := s.svc.GetRecord(r.Context(), r.PathValue("id"))
	if err != nil {
		s.fail(w, r, err, log.OpRead)
		return
	}
	NewJSONResponse().Body(newRecordResponse(rec)).Write(w)
}

func (s *Server) handleUpdateRecord(w http.ResponseWriter, r *http.Request) {
	var req recordRequest
	if err := DecodeJSON(w, r, &req); err != nil {
		BadRequestError(err.Error()).Write(w)
		return
	}
	in, err := req.toInput()
	if err != nil {
		UnprocessableEntityError(err.Error()).Write(w)
		return
	}
	rec, err := s.svc.UpdateRecord(r.Context(), r.PathValue("id"), in)
	if err != nil {
		s.fail(w, r, err, log.OpUpdate)
		return
	}
	s.reqLogger.LogRecordMutation(r.Context(), log.OpUpdate, rec.VehicleID, rec.ID, rec.FillType.String())
	NewJSONResponse().Body(newRecordResponse(rec)).Write(w)
}

func (s *Server) handleDeleteRecord(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := s.svc.DeleteRecord(r.Context(), id); err != nil {
		s.fail(w, r, err, log.OpDelete)
		return
	}
	s.reqLogger.LogRecordMutation(r.Context(), log.OpDelete, "", id, "")
	NewJSONResponse().Status(http.StatusNoContent).Write(w)
}

// handleSummary aggregates either a calendar month (year, month) or an
// arbitrary range (from, to). Without parameters it covers every record.
func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	vehicleID := r.PathValue("id")
	if _, err := s.svc.GetVehicle(r.Context(), vehicleID); err != nil {
		s.fail(w, r, err, log.OpRead)
		return
	}

	query := r.URL.Query()
	month, isMonth, err := ParseMonthParams(query, s.now())
	if err != nil {
		BadRequestError(err.Error()).Write(w)
		return
	}

	var sum core.Summary
	if isMonth {
		sum, err = s.svc.MonthlySummary(r.Context(), vehicleID, month.Year, month.Month)
	} else {
		rng, perr := ParseRangeParams(query)
		if perr != nil {
			BadRequestError(perr.Error()).Write(w)
			return
		}
		sum, err = s.svc.Summary(r.Context(), vehicleID, rng)
	}
	if err != nil {
		s.fail(w, r, err, log.OpRead)
		return
	}
	NewJSONResponse().Body(newSummaryResponse(sum)).Write(w)
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	schema, err := exportSchema(r.URL.Query().Get("schema"))
	if err != nil {
		BadRequestError(err.Error()).Write(w)
		return
	}
	vehicleID := r.PathValue("id")
	if _, err := s.svc.GetVehicle(r.Context(), vehicleID); err != nil {
		s.fail(w, r, err, log.OpExport)
		return
	}
	data, err := s.svc.Export(r.Context(), vehicleID, interchange.WithSchema(schema))
	if err != nil {
		s.fail(w, r, err, log.OpExport)
		return
	}

	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="fuellog-%s.csv"`, vehicleID))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

func (s *Server) handleImport(w http.ResponseWriter, r *http.Request) {
	text, err := ReadImportBody(w, r)
	if err != nil {
		BadRequestError(err.Error()).Write(w)
		return
	}
	vehicleID := r.PathValue("id")
	res, err := s.svc.Import(r.Context(), vehicleID, text)
	if err != nil {
		s.fail(w, r, err, log.OpImport)
		return
	}
	s.reqLogger.LogImport(r.Context(), vehicleID, res.Imported, len(res.Skipped))
	NewJSONResponse().Body(newImportResponse(res)).Write(w)
}

func (s *Server) handleRecompute(w http.ResponseWriter, r *http.Request) {
	n, err := s.svc.RecomputeVehicle(r.Context(), r.PathValue("id"))
	if err != nil {
		s.fail(w, r, err, log.OpRecompute)
		return
	}
	NewJSONResponse().Body(map[string]int{"corrected": n}).Write(w)
}

// handleSolve runs the tri-field solver without touching storage, for
// clients that fill the monetary fields interactively.
func (s *Server) handleSolve(w http.ResponseWriter, r *http.Request) {
	var req solveRequest
	if err := DecodeJSON(w, r, &req); err != nil {
		BadRequestError(err.Error()).Write(w)
		return
	}
	in, err := req.toInput()
	if err != nil {
		UnprocessableEntityError(err.Error()).Write(w)
		return
	}
	sol, err := core.Solve(in)
	if err != nil {
		ErrorFromDomain(err).Write(w)
		return
	}
	NewJSONResponse().Body(newSolveResponse(sol)).Write(w)
}

// fail writes the mapped error response and logs server-side failures.
func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error, op string) {
	resp := ErrorFromDomain(err)
	if resp.statusCode >= http.StatusInternalServerError {
		s.reqLogger.LogError(r.Context(), "Request failed", err, log.ComponentHTTP, op,
			log.NewFields().WithRequestID(trace.GetRequestID(r.Context())))
	}
	resp.Write(w)
}
