/*
handlers_test.go - Unit tests for API handlers

Tests for:
- Event set and terrain storage endpoints
- Synchronous computation (stored and inline inputs)
- Error status mapping
- Run creation validation

The single-cell set used throughout has water levels [5, 3, 3] with
frequencies [0.01, 0.02, 0.03]: return periods 16.667 and 100 after the
tie at 3 m is merged.
*/
package api

import (
	"context"
	"encoding/json"
	"math"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Deltares-research/FloodAdapt-sub000/hazard"
	"github.com/Deltares-research/FloodAdapt-sub000/store/sqlite"
)

// =============================================================================
// TEST HELPERS
// =============================================================================

const singleCellYAML = `
id: single-cell
name: Single cell
events:
  - {id: e1, frequency: 0.01, water_levels: {c1: 5}}
  - {id: e2, frequency: 0.02, water_levels: {c1: 3}}
  - {id: e3, frequency: 0.03, water_levels: {c1: 3}}
`

const flatTerrainYAML = `
id: flat
name: Flat 1 m
elevations: {c1: 1}
`

// levelAt50 is the log-linear level between (16.667, 3) and (100, 5).
var levelAt50 = 3 + 2*math.Log(3)/math.Log(6)

func newTestHandler(t *testing.T) (*Handler, http.Handler) {
	t.Helper()
	store, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	calc := hazard.NewCalculator(hazard.WithWorkers(2), hazard.WithBatchSize(8))
	h := NewHandler(store, calc, []float64{10, 50, 100}, zap.NewNop())
	return h, NewRouter(h, nil)
}

func doRequest(t *testing.T, router http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func seedSingleCell(t *testing.T, router http.Handler) {
	t.Helper()
	rec := doRequest(t, router, http.MethodPost, "/api/event-sets", singleCellYAML)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	rec = doRequest(t, router, http.MethodPost, "/api/terrains", flatTerrainYAML)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
}

// =============================================================================
// EVENT SETS AND TERRAIN
// =============================================================================

func TestHealth(t *testing.T) {
	_, router := newTestHandler(t)

	rec := doRequest(t, router, http.MethodGet, "/api/health", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
}

func TestEventSets_CreateListGet(t *testing.T) {
	_, router := newTestHandler(t)

	// GIVEN: A stored YAML event set
	rec := doRequest(t, router, http.MethodPost, "/api/event-sets", singleCellYAML)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	created := decode[EventSetDTO](t, rec)
	assert.Equal(t, "single-cell", created.ID)
	assert.Equal(t, 3, created.EventCount)
	assert.Equal(t, 1, created.CellCount)

	// WHEN: Listing and fetching it
	list := decode[[]EventSetDTO](t, doRequest(t, router, http.MethodGet, "/api/event-sets", ""))
	rec = doRequest(t, router, http.MethodGet, "/api/event-sets/single-cell", "")

	// THEN: Both reflect the stored set
	require.Len(t, list, 1)
	assert.Equal(t, "Single cell", list[0].Name)
	require.Equal(t, http.StatusOK, rec.Code)
	detail := decode[EventSetDetailDTO](t, rec)
	assert.Equal(t, []string{"c1"}, detail.Cells)
	require.Len(t, detail.Events, 3)
	assert.Equal(t, "e1", detail.Events[0].ID)
	assert.Equal(t, 0.01, detail.Events[0].Frequency)
}

func TestEventSets_ReturnPeriodTable(t *testing.T) {
	_, router := newTestHandler(t)
	seedSingleCell(t, router)

	rec := doRequest(t, router, http.MethodGet, "/api/event-sets/single-cell/tables/c1", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	table := decode[ReturnPeriodTableDTO](t, rec)
	require.Len(t, table.Rows, 2, "the tie at 3 m merges into one row")
	assert.Equal(t, 3.0, table.Rows[0].WaterLevel)
	assert.InDelta(t, 0.06, table.Rows[0].Exceedance, 1e-12)
	assert.InDelta(t, 1/0.06, table.Rows[0].ReturnPeriod, 1e-9)
	assert.Equal(t, 5.0, table.Rows[1].WaterLevel)
	assert.InDelta(t, 100, table.Rows[1].ReturnPeriod, 1e-9)

	rec = doRequest(t, router, http.MethodGet, "/api/event-sets/single-cell/tables/nowhere", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestEventSets_InvalidDocument(t *testing.T) {
	_, router := newTestHandler(t)

	tests := []struct {
		name string
		body string
	}{
		{"not yaml", "events: [unterminated"},
		{"negative frequency", `{"id": "x", "events": [{"id": "e1", "frequency": -1, "water_levels": {"c1": 1}}]}`},
		{"no events", `{"id": "x", "events": []}`},
		{"missing cell", `{"id": "x", "events": [
			{"id": "e1", "frequency": 0.1, "water_levels": {"c1": 1, "c2": 2}},
			{"id": "e2", "frequency": 0.1, "water_levels": {"c1": 1}}]}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := doRequest(t, router, http.MethodPost, "/api/event-sets", tt.body)
			assert.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())
			resp := decode[ErrorResponse](t, rec)
			assert.NotEmpty(t, resp.Details)
		})
	}

	list := decode[[]EventSetDTO](t, doRequest(t, router, http.MethodGet, "/api/event-sets", ""))
	assert.Empty(t, list, "rejected documents are not stored")
}

func TestEventSets_NotFoundAndDelete(t *testing.T) {
	_, router := newTestHandler(t)
	seedSingleCell(t, router)

	rec := doRequest(t, router, http.MethodGet, "/api/event-sets/missing", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = doRequest(t, router, http.MethodDelete, "/api/event-sets/single-cell", "")
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = doRequest(t, router, http.MethodDelete, "/api/event-sets/single-cell", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestTerrains_CreateListGet(t *testing.T) {
	_, router := newTestHandler(t)

	rec := doRequest(t, router, http.MethodPost, "/api/terrains", `
id: joined
datum: NAVD88
index: {a: 0, b: 2, c: 1}
raster: [0.5, -9999, 1.5]
`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	created := decode[TerrainDTO](t, rec)
	assert.Equal(t, 2, created.CellCount, "the nodata cell is left out")

	list := decode[[]TerrainDTO](t, doRequest(t, router, http.MethodGet, "/api/terrains", ""))
	require.Len(t, list, 1)
	assert.Equal(t, "NAVD88", list[0].Datum)

	rec = doRequest(t, router, http.MethodGet, "/api/terrains/joined", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	rec = doRequest(t, router, http.MethodGet, "/api/terrains/missing", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestTerrains_AmbiguousDocument(t *testing.T) {
	_, router := newTestHandler(t)

	rec := doRequest(t, router, http.MethodPost, "/api/terrains", `{"elevations": {"a": 1}, "cells": ["a"], "values": [1]}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

// =============================================================================
// COMPUTE
// =============================================================================

func TestCompute_StoredInputs(t *testing.T) {
	_, router := newTestHandler(t)
	seedSingleCell(t, router)

	// WHEN: Computing with the default return periods [10, 50, 100]
	rec := doRequest(t, router, http.MethodPost, "/api/compute",
		`{"event_set_id": "single-cell", "terrain_id": "flat"}`)

	// THEN: 10 is below the table and dry; 100 hits the top row
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	m := decode[ReturnPeriodMapDTO](t, rec)
	assert.Equal(t, "single-cell", m.EventSetID)
	assert.Equal(t, "flat", m.TerrainID)
	assert.Equal(t, []float64{10, 50, 100}, m.ReturnPeriods)
	require.Len(t, m.Cells, 1)

	c1 := m.Cells[0]
	assert.Equal(t, "c1", c1.Cell)
	require.Len(t, c1.WaterLevels, 3)
	assert.Equal(t, 0.0, c1.WaterLevels[0])
	assert.InDelta(t, levelAt50, c1.WaterLevels[1], 1e-9)
	assert.Equal(t, 5.0, c1.WaterLevels[2])

	require.Len(t, c1.Depths, 3)
	assert.Equal(t, 0.0, c1.Depths[0])
	assert.InDelta(t, levelAt50-1, c1.Depths[1], 1e-9)
	assert.Equal(t, 4.0, c1.Depths[2])
}

func TestCompute_InlineWithOverrides(t *testing.T) {
	_, router := newTestHandler(t)

	body := `{
		"event_set": {"id": "inline", "events": [
			{"id": "e1", "frequency": 0.01, "water_levels": {"c1": 5}},
			{"id": "e2", "frequency": 0.02, "water_levels": {"c1": 3}},
			{"id": "e3", "frequency": 0.03, "water_levels": {"c1": 3}}]},
		"terrain": {"elevations": {"c1": 1}},
		"return_periods": [50, 100],
		"min_depth": 0.5,
		"datum_offset": 0.5,
		"precision": 2
	}`
	rec := doRequest(t, router, http.MethodPost, "/api/compute", body)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	m := decode[ReturnPeriodMapDTO](t, rec)
	require.Len(t, m.Cells, 1)
	assert.Equal(t, []float64{4.23, 5}, m.Cells[0].WaterLevels)
	assert.Equal(t, []float64{2.73, 3.5}, m.Cells[0].Depths, "terrain is raised by the datum offset")

	// Nothing inline is stored
	list := decode[[]EventSetDTO](t, doRequest(t, router, http.MethodGet, "/api/event-sets", ""))
	assert.Empty(t, list)
}

func TestCompute_WaterLevelsOnly(t *testing.T) {
	_, router := newTestHandler(t)
	seedSingleCell(t, router)

	rec := doRequest(t, router, http.MethodPost, "/api/compute",
		`{"event_set_id": "single-cell", "water_levels_only": true, "return_periods": [100]}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	assert.NotContains(t, rec.Body.String(), `"depths"`)
	m := decode[ReturnPeriodMapDTO](t, rec)
	assert.Equal(t, []float64{5}, m.Cells[0].WaterLevels)
}

func TestCompute_Errors(t *testing.T) {
	_, router := newTestHandler(t)
	seedSingleCell(t, router)
	rec := doRequest(t, router, http.MethodPost, "/api/terrains", `{"id": "elsewhere", "elevations": {"c9": 0}}`)
	require.Equal(t, http.StatusCreated, rec.Code)

	tests := []struct {
		name   string
		body   string
		status int
	}{
		{"malformed json", `{"event_set_id":`, http.StatusBadRequest},
		{"no event set", `{"terrain_id": "flat"}`, http.StatusBadRequest},
		{"unknown event set", `{"event_set_id": "missing", "terrain_id": "flat"}`, http.StatusNotFound},
		{"unknown terrain", `{"event_set_id": "single-cell", "terrain_id": "missing"}`, http.StatusNotFound},
		{"no terrain", `{"event_set_id": "single-cell"}`, http.StatusUnprocessableEntity},
		{"terrain misses cells", `{"event_set_id": "single-cell", "terrain_id": "elsewhere"}`, http.StatusUnprocessableEntity},
		{"bad return period", `{"event_set_id": "single-cell", "terrain_id": "flat", "return_periods": [0]}`, http.StatusBadRequest},
		{"negative precision", `{"event_set_id": "single-cell", "terrain_id": "flat", "precision": -1}`, http.StatusBadRequest},
		{"negative min depth", `{"event_set_id": "single-cell", "terrain_id": "flat", "min_depth": -1}`, http.StatusUnprocessableEntity},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := doRequest(t, router, http.MethodPost, "/api/compute", tt.body)
			assert.Equal(t, tt.status, rec.Code, rec.Body.String())
		})
	}
}

// =============================================================================
// RUNS
// =============================================================================

func TestCreateRun_QueuesPending(t *testing.T) {
	h, router := newTestHandler(t)
	seedSingleCell(t, router)
	woken := &countingNotifier{}
	h.Runs = woken

	rec := doRequest(t, router, http.MethodPost, "/api/runs",
		`{"event_set_id": "single-cell", "terrain_id": "flat"}`)
	require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())

	run := decode[RunDTO](t, rec)
	assert.Equal(t, string(sqlite.RunPending), run.Status)
	assert.Equal(t, []float64{10, 50, 100}, run.ReturnPeriods, "defaults apply")
	assert.Equal(t, 1, woken.n)

	pending := decode[[]RunDTO](t, doRequest(t, router, http.MethodGet, "/api/runs?status=pending", ""))
	require.Len(t, pending, 1)
	assert.Equal(t, run.ID, pending[0].ID)

	completed := decode[[]RunDTO](t, doRequest(t, router, http.MethodGet, "/api/runs?status=completed", ""))
	assert.Empty(t, completed)

	rec = doRequest(t, router, http.MethodGet, "/api/runs/"+run.ID+"/results", "")
	assert.Equal(t, http.StatusConflict, rec.Code, "no results before the run completes")
}

func TestCreateRun_Validation(t *testing.T) {
	_, router := newTestHandler(t)
	seedSingleCell(t, router)

	tests := []struct {
		name   string
		body   string
		status int
	}{
		{"no event set", `{"terrain_id": "flat"}`, http.StatusBadRequest},
		{"no terrain", `{"event_set_id": "single-cell"}`, http.StatusBadRequest},
		{"unknown event set", `{"event_set_id": "missing", "terrain_id": "flat"}`, http.StatusNotFound},
		{"unknown terrain", `{"event_set_id": "single-cell", "terrain_id": "missing"}`, http.StatusNotFound},
		{"bad return periods", `{"event_set_id": "single-cell", "terrain_id": "flat", "return_periods": [-5]}`, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := doRequest(t, router, http.MethodPost, "/api/runs", tt.body)
			assert.Equal(t, tt.status, rec.Code, rec.Body.String())
		})
	}

	runs := decode[[]RunDTO](t, doRequest(t, router, http.MethodGet, "/api/runs", ""))
	assert.Empty(t, runs)
}

func TestGetRun_NotFound(t *testing.T) {
	_, router := newTestHandler(t)

	assert.Equal(t, http.StatusNotFound, doRequest(t, router, http.MethodGet, "/api/runs/nope", "").Code)
	assert.Equal(t, http.StatusNotFound, doRequest(t, router, http.MethodGet, "/api/runs/nope/results", "").Code)
	assert.Equal(t, http.StatusBadRequest, doRequest(t, router, http.MethodGet, "/api/runs/nope/results?precision=x", "").Code)
}

func TestResetDatabase(t *testing.T) {
	h, router := newTestHandler(t)
	seedSingleCell(t, router)

	rec := doRequest(t, router, http.MethodPost, "/api/reset", "")
	require.Equal(t, http.StatusOK, rec.Code)

	sets, err := h.Store.ListEventSets(context.Background())
	require.NoError(t, err)
	assert.Empty(t, sets)
}

type countingNotifier struct{ n int }

func (c *countingNotifier) Wake() { c.n++ }
