/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types decouple
  the hazard model from the external API contract.

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients
  - *Response: Complex response wrappers

TYPES:
  Event sets:
    EventSetDTO, EventSetDetailDTO, ReturnPeriodTableDTO

  Terrain:
    TerrainDTO

  Computation:
    ComputeRequest, ReturnPeriodMapDTO, CellResultDTO

  Runs:
    CreateRunRequest, RunDTO

  Scenarios:
    ScenarioDTO, LoadScenarioRequest

PRECISION:
  Reported water levels and depths may be rounded to a number of decimal
  places (shopspring/decimal half-away-from-zero). Stored and computed
  values are never rounded.

SEE ALSO:
  - handlers.go: Uses these types
  - ingest/ingest.go: Inline event set and terrain documents
*/
package api

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/Deltares-research/FloodAdapt-sub000/hazard"
	"github.com/Deltares-research/FloodAdapt-sub000/ingest"
	"github.com/Deltares-research/FloodAdapt-sub000/store/sqlite"
)

// =============================================================================
// EVENT SETS
// =============================================================================

// EventSetDTO represents a stored event set in API responses.
type EventSetDTO struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	EventCount int    `json:"event_count"`
	CellCount  int    `json:"cell_count"`
	CreatedAt  string `json:"created_at"`
}

// EventDTO is one event of a set without its hazard field.
type EventDTO struct {
	ID        string  `json:"id"`
	Frequency float64 `json:"frequency"`
}

// EventSetDetailDTO is the full listing of an event set.
type EventSetDetailDTO struct {
	EventSetDTO
	Cells  []string   `json:"cells"`
	Events []EventDTO `json:"events"`
}

// TableRowDTO is one step of a cell's exceedance curve.
type TableRowDTO struct {
	ReturnPeriod float64 `json:"return_period"`
	WaterLevel   float64 `json:"water_level"`
	Exceedance   float64 `json:"exceedance"`
}

// ReturnPeriodTableDTO is the exceedance curve of one cell.
type ReturnPeriodTableDTO struct {
	EventSetID string        `json:"event_set_id"`
	Cell       string        `json:"cell"`
	Rows       []TableRowDTO `json:"rows"`
}

// =============================================================================
// TERRAIN
// =============================================================================

// TerrainDTO represents a stored terrain model.
type TerrainDTO struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Datum     string `json:"datum"`
	CellCount int    `json:"cell_count"`
	CreatedAt string `json:"created_at,omitempty"`
}

// =============================================================================
// COMPUTATION
// =============================================================================

// ComputeRequest asks for a synchronous computation. The event set and the
// terrain are given either by stored ID or inline.
type ComputeRequest struct {
	EventSetID      string                   `json:"event_set_id,omitempty"`
	EventSet        *ingest.EventSetDocument `json:"event_set,omitempty"`
	TerrainID       string                   `json:"terrain_id,omitempty"`
	Terrain         *ingest.TerrainDocument  `json:"terrain,omitempty"`
	ReturnPeriods   []float64                `json:"return_periods,omitempty"` // default from config
	MinDepth        *float64                 `json:"min_depth,omitempty"`
	DatumOffset     *float64                 `json:"datum_offset,omitempty"`
	Precision       *int32                   `json:"precision,omitempty"`
	WaterLevelsOnly bool                     `json:"water_levels_only,omitempty"`
}

// CellResultDTO holds one cell's values, aligned with ReturnPeriods.
type CellResultDTO struct {
	Cell        string    `json:"cell"`
	WaterLevels []float64 `json:"water_levels"`
	Depths      []float64 `json:"depths,omitempty"`
}

// ReturnPeriodMapDTO is a computed map.
type ReturnPeriodMapDTO struct {
	EventSetID    string          `json:"event_set_id,omitempty"`
	TerrainID     string          `json:"terrain_id,omitempty"`
	ReturnPeriods []float64       `json:"return_periods"`
	Cells         []CellResultDTO `json:"cells"`
}

// =============================================================================
// RUNS
// =============================================================================

// CreateRunRequest queues a computation against stored inputs.
type CreateRunRequest struct {
	EventSetID      string    `json:"event_set_id"`
	TerrainID       string    `json:"terrain_id,omitempty"`
	ReturnPeriods   []float64 `json:"return_periods,omitempty"`
	MinDepth        *float64  `json:"min_depth,omitempty"`
	WaterLevelsOnly bool      `json:"water_levels_only,omitempty"`
}

// RunDTO represents a queued computation.
type RunDTO struct {
	ID              string    `json:"id"`
	EventSetID      string    `json:"event_set_id"`
	TerrainID       string    `json:"terrain_id,omitempty"`
	ReturnPeriods   []float64 `json:"return_periods"`
	MinDepth        float64   `json:"min_depth"`
	WaterLevelsOnly bool      `json:"water_levels_only"`
	Status          string    `json:"status"`
	CellCount       int       `json:"cell_count"`
	Error           string    `json:"error,omitempty"`
	StartedAt       *string   `json:"started_at,omitempty"`
	CompletedAt     *string   `json:"completed_at,omitempty"`
	CreatedAt       string    `json:"created_at"`
}

// =============================================================================
// SCENARIOS
// =============================================================================

// ScenarioDTO describes a demo scenario.
type ScenarioDTO struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Category    string `json:"category"`
}

// LoadScenarioRequest selects a demo scenario.
type LoadScenarioRequest struct {
	ScenarioID string `json:"scenario_id"`
}

// ErrorResponse represents an error in API responses.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// =============================================================================
// CONVERSION HELPERS
// =============================================================================

func toEventSetDTO(s hazard.EventSetSummary) EventSetDTO {
	return EventSetDTO{
		ID:         s.ID,
		Name:       s.Name,
		EventCount: s.EventCount,
		CellCount:  s.CellCount,
		CreatedAt:  formatTime(s.CreatedAt),
	}
}

func toEventSetDetailDTO(set *hazard.EventSet) EventSetDetailDTO {
	cells := set.Cells()
	dto := EventSetDetailDTO{
		EventSetDTO: toEventSetDTO(set.Summary()),
		Cells:       make([]string, len(cells)),
		Events:      make([]EventDTO, len(set.Events)),
	}
	for i, c := range cells {
		dto.Cells[i] = string(c)
	}
	for i, ev := range set.Events {
		dto.Events[i] = EventDTO{ID: string(ev.ID), Frequency: ev.Frequency}
	}
	return dto
}

func toTableDTO(setID string, t hazard.ReturnPeriodTable) ReturnPeriodTableDTO {
	dto := ReturnPeriodTableDTO{EventSetID: setID, Cell: string(t.Cell), Rows: make([]TableRowDTO, len(t.Rows))}
	for i, r := range t.Rows {
		dto.Rows[i] = TableRowDTO{ReturnPeriod: r.ReturnPeriod, WaterLevel: r.WaterLevel, Exceedance: r.Exceedance}
	}
	return dto
}

func toTerrainDTO(t sqlite.TerrainSummary) TerrainDTO {
	return TerrainDTO{
		ID:        t.ID,
		Name:      t.Name,
		Datum:     t.Datum,
		CellCount: t.CellCount,
		CreatedAt: formatTime(t.CreatedAt),
	}
}

// toMapDTO converts m, rounding reported values to precision decimal
// places when precision is non-nil.
func toMapDTO(m *hazard.ReturnPeriodMap, precision *int32) ReturnPeriodMapDTO {
	dto := ReturnPeriodMapDTO{
		ReturnPeriods: m.ReturnPeriods,
		Cells:         make([]CellResultDTO, len(m.Cells)),
	}
	for i, c := range m.Cells {
		res := CellResultDTO{Cell: string(c), WaterLevels: roundAll(m.WaterLevels[c], precision)}
		if m.Depths != nil {
			res.Depths = roundAll(m.Depths[c], precision)
		}
		dto.Cells[i] = res
	}
	return dto
}

func roundAll(values []float64, precision *int32) []float64 {
	if precision == nil {
		return values
	}
	out := make([]float64, len(values))
	for i, v := range values {
		out[i] = decimal.NewFromFloat(v).Round(*precision).InexactFloat64()
	}
	return out
}

func toRunDTO(r sqlite.RunRecord) RunDTO {
	dto := RunDTO{
		ID:              r.ID,
		EventSetID:      r.EventSetID,
		TerrainID:       r.TerrainID,
		ReturnPeriods:   r.ReturnPeriods,
		MinDepth:        r.MinDepth,
		WaterLevelsOnly: r.WaterLevelsOnly,
		Status:          string(r.Status),
		CellCount:       r.CellCount,
		Error:           r.Error,
		CreatedAt:       formatTime(r.CreatedAt),
	}
	if r.StartedAt != nil {
		s := formatTime(*r.StartedAt)
		dto.StartedAt = &s
	}
	if r.CompletedAt != nil {
		s := formatTime(*r.CompletedAt)
		dto.CompletedAt = &s
	}
	return dto
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}
