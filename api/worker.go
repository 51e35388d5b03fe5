/*
worker.go - Background processing of queued runs

PURPOSE:
  Picks up pending runs, computes their return-period maps against the
  stored event set and terrain, stores the results and publishes them.

DESIGN:
  - Runs a background goroutine that polls at PollInterval
  - Wake() triggers an immediate pass, e.g. right after a run is queued
  - Passes never overlap; runs are processed oldest first
  - Each run moves pending -> running -> completed | failed

FAILURES:
  - Input or configuration errors mark the run failed with the message
  - Stopping the worker mid-run puts the run back to pending
  - A publish failure is logged; the run stays completed since its
    results are stored and can be fetched

CONFIGURATION:
  - PollInterval: How often to check (default: 5s)
  - Enabled: Whether the worker is active (default: true)

USAGE:
  worker := NewRunWorker(store, calc, publisher, logger)
  worker.Start()
  // ... later
  worker.Stop()

SEE ALSO:
  - handlers.go: CreateRun endpoint
  - publish/publish.go: Result publication
*/
package api

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/Deltares-research/FloodAdapt-sub000/hazard"
	"github.com/Deltares-research/FloodAdapt-sub000/publish"
	"github.com/Deltares-research/FloodAdapt-sub000/store/sqlite"
)

// RunWorker processes queued runs.
type RunWorker struct {
	Store        *sqlite.Store
	Calculator   *hazard.Calculator
	Publisher    publish.Publisher
	Logger       *zap.Logger
	PollInterval time.Duration
	Enabled      bool

	wake   chan struct{}
	cancel context.CancelFunc
	wg     sync.WaitGroup
	mu     sync.Mutex

	// processMu serializes passes between the loop and RunNow.
	processMu sync.Mutex

	// onRunning, when set, is called once a run is stored as running.
	onRunning func(sqlite.RunRecord)
}

// NewRunWorker creates a new worker. A nil publisher discards results.
func NewRunWorker(store *sqlite.Store, calc *hazard.Calculator, pub publish.Publisher, logger *zap.Logger) *RunWorker {
	if pub == nil {
		pub = publish.Nop{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RunWorker{
		Store:        store,
		Calculator:   calc,
		Publisher:    pub,
		Logger:       logger,
		PollInterval: 5 * time.Second,
		Enabled:      true,
		wake:         make(chan struct{}, 1),
	}
}

// Start begins the worker loop.
func (rw *RunWorker) Start() {
	rw.mu.Lock()
	defer rw.mu.Unlock()

	if !rw.Enabled {
		rw.Logger.Info("run worker disabled, not starting")
		return
	}
	if rw.cancel != nil {
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	rw.cancel = cancel
	rw.wg.Add(1)
	go rw.run(ctx)

	rw.Logger.Info("run worker started", zap.Duration("poll_interval", rw.PollInterval))
}

// Stop cancels the current pass and waits for the loop to exit.
func (rw *RunWorker) Stop() {
	rw.mu.Lock()
	defer rw.mu.Unlock()

	if rw.cancel != nil {
		rw.cancel()
		rw.wg.Wait()
		rw.cancel = nil
		rw.Logger.Info("run worker stopped")
	}
}

// Wake asks for a pass as soon as possible. It never blocks.
func (rw *RunWorker) Wake() {
	select {
	case rw.wake <- struct{}{}:
	default:
	}
}

func (rw *RunWorker) run(ctx context.Context) {
	defer rw.wg.Done()

	ticker := time.NewTicker(rw.PollInterval)
	defer ticker.Stop()

	// Run immediately on start
	rw.RunNow(ctx)

	for {
		select {
		case <-ticker.C:
			rw.RunNow(ctx)
		case <-rw.wake:
			rw.RunNow(ctx)
		case <-ctx.Done():
			return
		}
	}
}

// RunNow processes every pending run and returns how many completed.
func (rw *RunWorker) RunNow(ctx context.Context) int {
	rw.processMu.Lock()
	defer rw.processMu.Unlock()

	runs, err := rw.Store.ListPendingRuns(ctx)
	if err != nil {
		if ctx.Err() == nil {
			rw.Logger.Error("failed to list pending runs", zap.Error(err))
		}
		return 0
	}

	completed, failed := 0, 0
	for _, run := range runs {
		if ctx.Err() != nil {
			break
		}
		if err := rw.process(ctx, run); err != nil {
			if ctx.Err() == nil {
				failed++
			}
			continue
		}
		completed++
	}

	if completed > 0 || failed > 0 {
		rw.Logger.Info("run pass finished", zap.Int("completed", completed), zap.Int("failed", failed))
	}
	return completed
}

func (rw *RunWorker) process(ctx context.Context, run sqlite.RunRecord) error {
	log := rw.Logger.With(zap.String("run_id", run.ID), zap.String("event_set", run.EventSetID))

	started := time.Now().UTC()
	run.Status = sqlite.RunRunning
	run.StartedAt = &started
	if err := rw.Store.SaveRun(ctx, run); err != nil {
		log.Error("failed to mark run running", zap.Error(err))
		return err
	}
	if rw.onRunning != nil {
		rw.onRunning(run)
	}

	m, err := rw.compute(ctx, run)
	if err == nil {
		err = rw.Store.SaveRunResults(ctx, run.ID, m)
	}

	// Status updates must land even when ctx was cancelled mid-run.
	bg := context.WithoutCancel(ctx)
	if err != nil {
		if ctx.Err() != nil {
			run.Status = sqlite.RunPending
			run.StartedAt = nil
			if serr := rw.Store.SaveRun(bg, run); serr != nil {
				log.Error("failed to requeue run", zap.Error(serr))
			}
			log.Info("run interrupted, requeued")
			return err
		}
		rw.fail(bg, log, run, err)
		return err
	}

	done := time.Now().UTC()
	run.Status = sqlite.RunCompleted
	run.CellCount = len(m.Cells)
	run.CompletedAt = &done
	if err := rw.Store.SaveRun(bg, run); err != nil {
		log.Error("failed to mark run completed", zap.Error(err))
		return err
	}
	log.Info("run completed",
		zap.Int("cells", len(m.Cells)),
		zap.Int("return_periods", len(m.ReturnPeriods)),
		zap.Duration("duration", done.Sub(started)))

	info := publish.RunInfo{RunID: run.ID, EventSetID: run.EventSetID, TerrainID: run.TerrainID}
	if err := rw.Publisher.PublishRun(ctx, info, m); err != nil {
		log.Warn("failed to publish run results", zap.Error(err))
	}
	return nil
}

func (rw *RunWorker) compute(ctx context.Context, run sqlite.RunRecord) (*hazard.ReturnPeriodMap, error) {
	set, err := rw.Store.LoadEventSet(ctx, run.EventSetID)
	if err != nil {
		return nil, err
	}
	if run.WaterLevelsOnly {
		return rw.Calculator.ComputeWaterLevels(ctx, *set, run.ReturnPeriods)
	}

	terrain, err := rw.Store.LoadTerrain(ctx, run.TerrainID)
	if err != nil {
		return nil, err
	}
	opts := rw.Calculator.DepthOptions()
	opts.MinDepth = run.MinDepth
	return rw.Calculator.ComputeWithOptions(ctx, *set, run.ReturnPeriods, terrain, opts)
}

func (rw *RunWorker) fail(ctx context.Context, log *zap.Logger, run sqlite.RunRecord, cause error) {
	done := time.Now().UTC()
	run.Status = sqlite.RunFailed
	run.Error = cause.Error()
	run.CompletedAt = &done
	if err := rw.Store.SaveRun(ctx, run); err != nil {
		log.Error("failed to mark run failed", zap.Error(err))
	}

	var cfgErr *hazard.ConfigurationError
	if errors.As(cause, &cfgErr) {
		log.Warn("run failed", zap.Error(cause), zap.Int("offending_cells", len(cfgErr.Cells)))
		return
	}
	log.Warn("run failed", zap.Error(cause))
}
