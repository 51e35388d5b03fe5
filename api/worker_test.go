package api

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Deltares-research/FloodAdapt-sub000/hazard"
	"github.com/Deltares-research/FloodAdapt-sub000/publish"
	"github.com/Deltares-research/FloodAdapt-sub000/store/sqlite"
)

type recordingPublisher struct {
	mu   sync.Mutex
	runs []publish.RunInfo
	err  error
}

func (p *recordingPublisher) PublishRun(_ context.Context, run publish.RunInfo, _ *hazard.ReturnPeriodMap) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.runs = append(p.runs, run)
	return nil
}

func (p *recordingPublisher) Close() error { return nil }

func (p *recordingPublisher) published() []publish.RunInfo {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]publish.RunInfo(nil), p.runs...)
}

func newTestWorker(h *Handler, pub publish.Publisher) *RunWorker {
	w := NewRunWorker(h.Store, h.Calculator, pub, zap.NewNop())
	w.PollInterval = 10 * time.Millisecond
	return w
}

func queueRun(t *testing.T, router http.Handler, body string) RunDTO {
	t.Helper()
	rec := doRequest(t, router, http.MethodPost, "/api/runs", body)
	require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())
	return decode[RunDTO](t, rec)
}

func TestRunWorker_CompletesRun(t *testing.T) {
	h, router := newTestHandler(t)
	seedSingleCell(t, router)
	pub := &recordingPublisher{}
	worker := newTestWorker(h, pub)

	// GIVEN: A queued depth run
	run := queueRun(t, router, `{"event_set_id": "single-cell", "terrain_id": "flat"}`)

	// WHEN: The worker makes a pass
	n := worker.RunNow(context.Background())

	// THEN: The run completed, its results are stored and published
	assert.Equal(t, 1, n)
	got := decode[RunDTO](t, doRequest(t, router, http.MethodGet, "/api/runs/"+run.ID, ""))
	assert.Equal(t, string(sqlite.RunCompleted), got.Status)
	assert.Equal(t, 1, got.CellCount)
	assert.NotNil(t, got.StartedAt)
	assert.NotNil(t, got.CompletedAt)
	assert.Empty(t, got.Error)

	rec := doRequest(t, router, http.MethodGet, "/api/runs/"+run.ID+"/results?precision=2", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	m := decode[ReturnPeriodMapDTO](t, rec)
	assert.Equal(t, "single-cell", m.EventSetID)
	require.Len(t, m.Cells, 1)
	assert.Equal(t, []float64{0, 4.23, 5}, m.Cells[0].WaterLevels)
	assert.Equal(t, []float64{0, 3.23, 4}, m.Cells[0].Depths)

	published := pub.published()
	require.Len(t, published, 1)
	assert.Equal(t, run.ID, published[0].RunID)
	assert.Equal(t, "flat", published[0].TerrainID)

	// A second pass finds nothing to do
	assert.Zero(t, worker.RunNow(context.Background()))
}

func TestRunWorker_WaterLevelsOnly(t *testing.T) {
	h, router := newTestHandler(t)
	seedSingleCell(t, router)
	worker := newTestWorker(h, nil)

	run := queueRun(t, router, `{"event_set_id": "single-cell", "water_levels_only": true, "return_periods": [100]}`)
	require.Equal(t, 1, worker.RunNow(context.Background()))

	rec := doRequest(t, router, http.MethodGet, "/api/runs/"+run.ID+"/results", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotContains(t, rec.Body.String(), `"depths"`)
}

func TestRunWorker_ConfigurationErrorFailsRun(t *testing.T) {
	h, router := newTestHandler(t)
	seedSingleCell(t, router)
	rec := doRequest(t, router, http.MethodPost, "/api/terrains", `{"id": "elsewhere", "elevations": {"c9": 0}}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	pub := &recordingPublisher{}
	worker := newTestWorker(h, pub)

	// GIVEN: A run whose terrain does not cover the event set
	run := queueRun(t, router, `{"event_set_id": "single-cell", "terrain_id": "elsewhere"}`)

	// WHEN: The worker processes it
	assert.Zero(t, worker.RunNow(context.Background()))

	// THEN: It is failed with the offending cell and nothing is published
	got := decode[RunDTO](t, doRequest(t, router, http.MethodGet, "/api/runs/"+run.ID, ""))
	assert.Equal(t, string(sqlite.RunFailed), got.Status)
	assert.Contains(t, got.Error, "c1")
	assert.Empty(t, pub.published())

	rec = doRequest(t, router, http.MethodGet, "/api/runs/"+run.ID+"/results", "")
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestRunWorker_PublishFailureKeepsResults(t *testing.T) {
	h, router := newTestHandler(t)
	seedSingleCell(t, router)
	worker := newTestWorker(h, &recordingPublisher{err: errors.New("no servers available")})

	run := queueRun(t, router, `{"event_set_id": "single-cell", "terrain_id": "flat"}`)
	assert.Equal(t, 1, worker.RunNow(context.Background()))

	got := decode[RunDTO](t, doRequest(t, router, http.MethodGet, "/api/runs/"+run.ID, ""))
	assert.Equal(t, string(sqlite.RunCompleted), got.Status)
}

func TestRunWorker_CancelledPassLeavesRunsPending(t *testing.T) {
	h, router := newTestHandler(t)
	seedSingleCell(t, router)
	worker := newTestWorker(h, nil)
	run := queueRun(t, router, `{"event_set_id": "single-cell", "terrain_id": "flat"}`)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.Zero(t, worker.RunNow(ctx))

	got := decode[RunDTO](t, doRequest(t, router, http.MethodGet, "/api/runs/"+run.ID, ""))
	assert.Equal(t, string(sqlite.RunPending), got.Status)
}

func TestRunWorker_CancelledMidRunRequeues(t *testing.T) {
	h, router := newTestHandler(t)
	seedSingleCell(t, router)
	pub := &recordingPublisher{}
	worker := newTestWorker(h, pub)
	run := queueRun(t, router, `{"event_set_id": "single-cell", "terrain_id": "flat"}`)

	// GIVEN: A pass that is cancelled once the run is stored as running
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	var seen sqlite.RunStatus
	worker.onRunning = func(r sqlite.RunRecord) {
		got, err := h.Store.GetRun(context.Background(), r.ID)
		require.NoError(t, err)
		seen = got.Status
		cancel()
	}

	// WHEN: Processing the queue
	completed := worker.RunNow(ctx)

	// THEN: The run went running and is back to pending with no start time
	assert.Zero(t, completed)
	assert.Equal(t, sqlite.RunRunning, seen)
	got, err := h.Store.GetRun(context.Background(), run.ID)
	require.NoError(t, err)
	assert.Equal(t, sqlite.RunPending, got.Status)
	assert.Nil(t, got.StartedAt)
	assert.Empty(t, got.Error)
	assert.Empty(t, pub.published())
}

func TestRunWorker_StartWakeStop(t *testing.T) {
	h, router := newTestHandler(t)
	seedSingleCell(t, router)
	worker := newTestWorker(h, nil)
	worker.PollInterval = time.Hour
	h.Runs = worker

	worker.Start()
	defer worker.Stop()

	// The queued run is picked up by Wake, not by the hourly poll.
	run := queueRun(t, router, `{"event_set_id": "single-cell", "terrain_id": "flat"}`)
	require.Eventually(t, func() bool {
		got, err := h.Store.GetRun(context.Background(), run.ID)
		return err == nil && got.Status == sqlite.RunCompleted
	}, 5*time.Second, 10*time.Millisecond)
}

func TestRunWorker_Disabled(t *testing.T) {
	h, _ := newTestHandler(t)
	worker := newTestWorker(h, nil)
	worker.Enabled = false

	worker.Start()
	worker.Stop()
	worker.Wake() // never blocks
	worker.Wake()
}
