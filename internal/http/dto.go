package http

import (
	"fmt"
	"time"

	"fuellog/internal/core"
	"fuellog/internal/interchange"
	"fuellog/internal/services"
)

type (
	vehicleRequest struct {
		Label string `json:"label"`
		Make  string `json:"make"`
		Model string `json:"model"`
		Year  int    `json:"year"`
	}

	vehicleResponse struct {
		ID        string    `json:"id"`
		Label     string    `json:"label"`
		Make      string    `json:"make,omitempty"`
		Model     string    `json:"model,omitempty"`
		Year      int       `json:"year,omitempty"`
		CreatedAt time.Time `json:"created_at"`
	}

	// recordRequest leaves at most one of the monetary fields null; the
	// service solves it from the other two.
	recordRequest struct {
		Date      string   `json:"date"`
		Odometer  *float64 `json:"odometer"`
		UnitPrice *float64 `json:"unit_price"`
		Quantity  *float64 `json:"quantity"`
		TotalCost *float64 `json:"total_cost"`
		FillType  string   `json:"fill_type"`
		Note      string   `json:"note"`
	}

	recordResponse struct {
		ID               string    `json:"id"`
		VehicleID        string    `json:"vehicle_id"`
		Date             time.Time `json:"date"`
		Odometer         float64   `json:"odometer"`
		UnitPrice        float64   `json:"unit_price"`
		Quantity         float64   `json:"quantity"`
		TotalCost        float64   `json:"total_cost"`
		FillType         string    `json:"fill_type"`
		Note             string    `json:"note,omitempty"`
		CreatedAt        time.Time `json:"created_at"`
		PreviousOdometer *float64  `json:"previous_odometer"`
		Distance         float64   `json:"distance"`
		Efficiency       float64   `json:"efficiency"`
		CostPerDistance  float64   `json:"cost_per_distance"`
	}

	summaryResponse struct {
		Count                  int             `json:"count"`
		TotalCost              float64         `json:"total_cost"`
		TotalDistance          float64         `json:"total_distance"`
		TotalQuantity          float64         `json:"total_quantity"`
		AverageEfficiency      float64         `json:"average_efficiency"`
		AverageCostPerDistance float64         `json:"average_cost_per_distance"`
		AverageUnitPrice       float64         `json:"average_unit_price"`
		BestEfficiency         *float64        `json:"best_efficiency"`
		WorstEfficiency        *float64        `json:"worst_efficiency"`
		HighestUnitPrice       *float64        `json:"highest_unit_price"`
		LowestUnitPrice        *float64        `json:"lowest_unit_price"`
		MostRecent             *recordResponse `json:"most_recent"`
	}

	importResponse struct {
		Imported int            `json:"imported"`
		Skipped  []skippedRow   `json:"skipped"`
		Schemas  map[string]int `json:"schemas"`
	}

	skippedRow struct {
		Line  int    `json:"line"`
		Error string `json:"error"`
	}

	solveRequest struct {
		UnitPrice *float64 `json:"unit_price"`
		Quantity  *float64 `json:"quantity"`
		TotalCost *float64 `json:"total_cost"`
		// Edited lists the fields the user touched, oldest first.
		Edited []string `json:"edited"`
	}

	solveResponse struct {
		Outcome   string  `json:"outcome"`
		Field     string  `json:"field,omitempty"`
		Value     float64 `json:"value,omitempty"`
		Ambiguous bool    `json:"ambiguous,omitempty"`
	}
)

func (req vehicleRequest) toInput() services.VehicleInput {
	return services.VehicleInput{
		Label: sanitizeInput(req.Label),
		Make:  sanitizeInput(req.Make),
		Model: sanitizeInput(req.Model),
		Year:  req.Year,
	}
}

func (req recordRequest) toInput() (services.RecordInput, error) {
	if req.Date == "" {
		return services.RecordInput{}, core.ErrZeroDate
	}
	date, err := parseDate(req.Date)
	if err != nil {
		return services.RecordInput{}, err
	}
	if req.Odometer == nil {
		return services.RecordInput{}, fmt.Errorf("odometer: %w", core.ErrInvalidOdometer)
	}

	in := services.RecordInput{
		Date:      date,
		Odometer:  *req.Odometer,
		UnitPrice: optional(req.UnitPrice),
		Quantity:  optional(req.Quantity),
		TotalCost: optional(req.TotalCost),
		Note:      sanitizeInput(req.Note),
	}
	if req.FillType != "" {
		ft, err := core.ParseFillType(req.FillType)
		if err != nil {
			return services.RecordInput{}, err
		}
		in.FillType = ft
	}
	return in, nil
}

func (req solveRequest) toInput() (core.SolveInput, error) {
	fields := make([]core.Field, 0, len(req.Edited))
	for _, name := range req.Edited {
		f, err := core.ParseField(name)
		if err != nil {
			return core.SolveInput{}, err
		}
		fields = append(fields, f)
	}
	return core.SolveInput{
		UnitPrice: optional(req.UnitPrice),
		Quantity:  optional(req.Quantity),
		TotalCost: optional(req.TotalCost),
		Edited:    core.NewEditHistory(fields...),
	}, nil
}

func optional(v *float64) core.Amount {
	if v == nil {
		return core.Amount{}
	}
	return core.Some(*v)
}

func newVehicleResponse(v core.Vehicle) vehicleResponse {
	return vehicleResponse{
		ID:        v.ID,
		Label:     v.Label,
		Make:      v.Make,
		Model:     v.Model,
		Year:      v.Year,
		CreatedAt: v.CreatedAt,
	}
}

func newRecordResponse(r core.Record) recordResponse {
	resp := recordResponse{
		ID:              r.ID,
		VehicleID:       r.VehicleID,
		Date:            r.Date,
		Odometer:        r.Odometer,
		UnitPrice:       r.UnitPrice,
		Quantity:        r.Quantity,
		TotalCost:       r.TotalCost,
		FillType:        r.FillType.String(),
		Note:            r.Note,
		CreatedAt:       r.CreatedAt,
		Distance:        r.Distance,
		Efficiency:      r.Efficiency,
		CostPerDistance: r.CostPerDistance,
	}
	if r.HasBaseline {
		prev := r.PreviousOdometer
		resp.PreviousOdometer = &prev
	}
	return resp
}

func newRecordResponses(records []core.Record) []recordResponse {
	out := make([]recordResponse, 0, len(records))
	for _, r := range records {
		out = append(out, newRecordResponse(r))
	}
	return out
}

func newSummaryResponse(s core.Summary) summaryResponse {
	resp := summaryResponse{
		Count:                  s.Count,
		TotalCost:              s.TotalCost,
		TotalDistance:          s.TotalDistance,
		TotalQuantity:          s.TotalQuantity,
		AverageEfficiency:      s.AverageEfficiency,
		AverageCostPerDistance: s.AverageCostPerDistance,
		AverageUnitPrice:       s.AverageUnitPrice,
		BestEfficiency:         defined(s.BestEfficiency),
		WorstEfficiency:        defined(s.WorstEfficiency),
		HighestUnitPrice:       defined(s.HighestUnitPrice),
		LowestUnitPrice:        defined(s.LowestUnitPrice),
	}
	if r, err := s.MostRecent.Get(); err == nil {
		rr := newRecordResponse(r)
		resp.MostRecent = &rr
	}
	return resp
}

// defined maps an undefined statistic to JSON null.
func defined(m core.Maybe[float64]) *float64 {
	v, err := m.Get()
	if err != nil {
		return nil
	}
	return &v
}

func newImportResponse(res services.ImportResult) importResponse {
	resp := importResponse{
		Imported: res.Imported,
		Skipped:  make([]skippedRow, 0, len(res.Skipped)),
		Schemas:  make(map[string]int, len(res.Schemas)),
	}
	for _, s := range res.Skipped {
		resp.Skipped = append(resp.Skipped, skippedRow{Line: s.Line, Error: s.Err.Error()})
	}
	for schema, n := range res.Schemas {
		resp.Schemas[schema.String()] = n
	}
	return resp
}

func newSolveResponse(sol core.Solution) solveResponse {
	if sol.Outcome != core.Solved {
		return solveResponse{Outcome: "noop"}
	}
	return solveResponse{
		Outcome:   "solved",
		Field:     sol.Field.String(),
		Value:     sol.Value,
		Ambiguous: sol.Ambiguous,
	}
}

// exportSchema reads the optional schema query value.
func exportSchema(name string) (interchange.Schema, error) {
	if name == "" {
		return interchange.SchemaLegacy, nil
	}
	return interchange.ParseSchema(name)
}
