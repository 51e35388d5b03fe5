package api

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestListScenarios(t *testing.T) {
	_, router := newTestHandler(t)

	list := decode[[]ScenarioDTO](t, doRequest(t, router, http.MethodGet, "/api/scenarios", ""))
	require.Len(t, list, len(scenarios))
	assert.Equal(t, "single-cell", list[0].ID)
}

func TestLoadScenario_SingleCell(t *testing.T) {
	_, router := newTestHandler(t)

	rec := doRequest(t, router, http.MethodGet, "/api/scenarios/current", "")
	assert.Equal(t, "null", string(rec.Body.Bytes()[:4]))

	rec = doRequest(t, router, http.MethodPost, "/api/scenarios/load", `{"scenario_id": "single-cell"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	current := decode[ScenarioDTO](t, doRequest(t, router, http.MethodGet, "/api/scenarios/current", ""))
	assert.Equal(t, "single-cell", current.ID)

	rec = doRequest(t, router, http.MethodPost, "/api/compute",
		`{"event_set_id": "single-cell", "terrain_id": "single-cell-dem", "return_periods": [100]}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	m := decode[ReturnPeriodMapDTO](t, rec)
	assert.Equal(t, []float64{4}, m.Cells[0].Depths)
}

func TestLoadScenario_Unknown(t *testing.T) {
	_, router := newTestHandler(t)

	rec := doRequest(t, router, http.MethodPost, "/api/scenarios/load", `{"scenario_id": "atlantis"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestLoadScenario_ReplacesPrevious(t *testing.T) {
	h, router := newTestHandler(t)

	require.Equal(t, http.StatusOK, doRequest(t, router, http.MethodPost, "/api/scenarios/load", `{"scenario_id": "single-cell"}`).Code)
	require.Equal(t, http.StatusOK, doRequest(t, router, http.MethodPost, "/api/scenarios/load", `{"scenario_id": "coastal-grid"}`).Code)

	sets, err := h.Store.ListEventSets(context.Background())
	require.NoError(t, err)
	require.Len(t, sets, 1)
	assert.Equal(t, "coastal-grid", sets[0].ID)
	assert.Equal(t, gridEvents, sets[0].EventCount)
	assert.Equal(t, gridSize*gridSize, sets[0].CellCount)
}

func TestLoadScenario_CoastalGridRun(t *testing.T) {
	h, router := newTestHandler(t)
	woken := &countingNotifier{}
	h.Runs = woken

	rec := doRequest(t, router, http.MethodPost, "/api/scenarios/load", `{"scenario_id": "coastal-grid-run"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, 1, woken.n)

	worker := newTestWorker(h, nil)
	require.Equal(t, 1, worker.RunNow(context.Background()))

	runs := decode[[]RunDTO](t, doRequest(t, router, http.MethodGet, "/api/runs?status=completed", ""))
	require.Len(t, runs, 1)
	assert.Equal(t, gridSize*gridSize, runs[0].CellCount)

	m, err := h.Store.LoadRunResults(context.Background(), runs[0].ID)
	require.NoError(t, err)
	for _, c := range m.Cells {
		for j, d := range m.Depths[c] {
			assert.GreaterOrEqual(t, d, 0.0, "cell %s rp %v", c, m.ReturnPeriods[j])
		}
	}

	// Depth never increases inland along a column at the 100-year return period.
	d0, _ := m.DepthAt("r00c05", 100)
	d19, _ := m.DepthAt("r19c05", 100)
	assert.GreaterOrEqual(t, d0, d19)
}
