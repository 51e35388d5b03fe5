/*
scenarios.go - Demo scenario loaders for testing and demonstrations

PURPOSE:

	Provides pre-built scenarios that populate the database with event
	sets, terrain models and runs for demos and manual testing.

AVAILABLE SCENARIOS:

	single-cell:       One cell, three events, flat terrain at 1 m
	coastal-grid:      20x20 synthetic coastal grid with 60 storm events
	coastal-grid-run:  coastal-grid plus a queued run for the worker

HOW SCENARIOS WORK:
 1. Reset database (clear all data)
 2. Store the event set
 3. Store the terrain model
 4. Optionally queue a run

USAGE VIA API:

	POST /api/scenarios/load
	{"scenario_id": "coastal-grid"}

ADDING NEW SCENARIOS:
 1. Add to 'scenarios' slice with ID, name, description
 2. Create loader function: loadXxxScenario(ctx)
 3. Add case to loadScenario

NOTE:

	Scenarios reset the database. Only use in development/demo environments.

SEE ALSO:
  - handlers.go: ResetDatabase handler
  - worker.go: Picks up the queued run
*/
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"math/rand/v2"
	"net/http"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Deltares-research/FloodAdapt-sub000/hazard"
	"github.com/Deltares-research/FloodAdapt-sub000/store/sqlite"
)

// =============================================================================
// SCENARIO DEFINITIONS
// =============================================================================

var scenarios = []ScenarioDTO{
	{
		ID:          "single-cell",
		Name:        "Single Cell",
		Description: "Three events on one cell with a tie at 3 m, flat terrain at 1 m",
		Category:    "basic",
	},
	{
		ID:          "coastal-grid",
		Name:        "Coastal Grid",
		Description: "20x20 grid sloping away from the coast, 60 synthetic storm events",
		Category:    "grid",
	},
	{
		ID:          "coastal-grid-run",
		Name:        "Coastal Grid Run",
		Description: "Coastal grid with a queued depth run at the default return periods",
		Category:    "grid",
	},
}

const (
	gridSize       = 20
	gridEvents     = 60
	gridSeed       = 1953
	coastElevation = -0.5 // m, first row
	gridSlope      = 0.2  // m per row inland
)

// ListScenarios returns available demo scenarios.
func (h *Handler) ListScenarios(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, scenarios)
}

// GetCurrentScenario returns the currently loaded scenario, if any.
func (h *Handler) GetCurrentScenario(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	current := h.currentScenario
	h.mu.Unlock()

	if current == "" {
		writeJSON(w, http.StatusOK, nil)
		return
	}

	for _, s := range scenarios {
		if s.ID == current {
			writeJSON(w, http.StatusOK, s)
			return
		}
	}

	writeJSON(w, http.StatusOK, ScenarioDTO{
		ID:          current,
		Name:        current,
		Description: "Currently loaded scenario",
	})
}

// LoadScenario loads a predefined scenario.
func (h *Handler) LoadScenario(w http.ResponseWriter, r *http.Request) {
	var req LoadScenarioRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if !knownScenario(req.ScenarioID) {
		writeError(w, http.StatusBadRequest, "Unknown scenario", nil)
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	ctx := r.Context()
	h.currentScenario = ""
	if err := h.Store.Reset(ctx); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to reset database", err)
		return
	}

	if err := h.loadScenario(ctx, req.ScenarioID); err != nil {
		writeError(w, http.StatusInternalServerError, fmt.Sprintf("Failed to load scenario: %v", err), err)
		return
	}
	h.currentScenario = req.ScenarioID

	h.Logger.Info("scenario loaded", zap.String("scenario", req.ScenarioID))
	writeJSON(w, http.StatusOK, map[string]string{
		"status":   "loaded",
		"scenario": req.ScenarioID,
	})
}

func knownScenario(id string) bool {
	for _, s := range scenarios {
		if s.ID == id {
			return true
		}
	}
	return false
}

func (h *Handler) loadScenario(ctx context.Context, id string) error {
	switch id {
	case "single-cell":
		return h.loadSingleCellScenario(ctx)
	case "coastal-grid":
		return h.loadCoastalGridScenario(ctx)
	case "coastal-grid-run":
		if err := h.loadCoastalGridScenario(ctx); err != nil {
			return err
		}
		return h.queueScenarioRun(ctx, "coastal-grid", "coastal-grid-dem")
	default:
		return fmt.Errorf("unknown scenario %q", id)
	}
}

// =============================================================================
// SCENARIO LOADERS
// =============================================================================

// loadSingleCellScenario stores the smallest useful case: the 3 m tie
// merges into one table row with exceedance 0.06.
func (h *Handler) loadSingleCellScenario(ctx context.Context) error {
	set := hazard.EventSet{
		ID:   "single-cell",
		Name: "Single cell",
		Events: []hazard.EventRecord{
			{ID: "e1", Frequency: 0.01, WaterLevels: map[hazard.CellID]float64{"c1": 5}},
			{ID: "e2", Frequency: 0.02, WaterLevels: map[hazard.CellID]float64{"c1": 3}},
			{ID: "e3", Frequency: 0.03, WaterLevels: map[hazard.CellID]float64{"c1": 3}},
		},
	}
	if err := h.Store.SaveEventSet(ctx, set); err != nil {
		return err
	}

	return h.Store.SaveTerrain(ctx, hazard.ElevationModel{
		ID:         "single-cell-dem",
		Name:       "Flat 1 m",
		Elevations: map[hazard.CellID]float64{"c1": 1},
	})
}

// loadCoastalGridScenario builds a reproducible grid. Surge decays
// inland with distance from the coast; terrain rises inland.
func (h *Handler) loadCoastalGridScenario(ctx context.Context) error {
	rng := rand.New(rand.NewPCG(gridSeed, gridSeed))

	cells := make([]hazard.CellID, 0, gridSize*gridSize)
	rows := make([]int, 0, gridSize*gridSize)
	elev := make(map[hazard.CellID]float64, gridSize*gridSize)
	for row := 0; row < gridSize; row++ {
		for col := 0; col < gridSize; col++ {
			c := hazard.CellID(fmt.Sprintf("r%02dc%02d", row, col))
			cells = append(cells, c)
			rows = append(rows, row)
			elev[c] = coastElevation + gridSlope*float64(row) + 0.05*math.Sin(float64(col))
		}
	}

	events := make([]hazard.EventRecord, gridEvents)
	for i := range events {
		// Peak surge between 0.5 and 4 m, rarer storms surge higher.
		peak := 0.5 + 3.5*math.Pow(rng.Float64(), 2)
		levels := make(map[hazard.CellID]float64, len(cells))
		for k, c := range cells {
			levels[c] = math.Round((peak*math.Exp(-0.15*float64(rows[k]))+0.1*rng.Float64())*1000) / 1000
		}
		events[i] = hazard.EventRecord{
			ID:          hazard.EventID(fmt.Sprintf("storm-%03d", i+1)),
			Frequency:   0.5 / float64(gridEvents) * (0.5 + rng.Float64()),
			WaterLevels: levels,
		}
	}

	set := hazard.EventSet{ID: "coastal-grid", Name: "Coastal grid", Events: events}
	if err := h.Store.SaveEventSet(ctx, set); err != nil {
		return err
	}

	return h.Store.SaveTerrain(ctx, hazard.ElevationModel{
		ID:         "coastal-grid-dem",
		Name:       "Coastal slope",
		VDatum:     "MSL",
		Elevations: elev,
	})
}

func (h *Handler) queueScenarioRun(ctx context.Context, setID, terrainID string) error {
	run := sqlite.RunRecord{
		ID:            uuid.NewString(),
		EventSetID:    setID,
		TerrainID:     terrainID,
		ReturnPeriods: h.ReturnPeriods,
		MinDepth:      h.Calculator.DepthOptions().MinDepth,
		Status:        sqlite.RunPending,
		CreatedAt:     time.Now().UTC(),
	}
	if err := h.Store.SaveRun(ctx, run); err != nil {
		return err
	}
	if h.Runs != nil {
		h.Runs.Wake()
	}
	return nil
}
