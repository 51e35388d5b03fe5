/*
calculator.go - The return-period calculator

PURPOSE:
  Runs the per-cell pipeline over every cell of an event set and merges
  the per-cell results into a ReturnPeriodMap.

CONCURRENCY:
  Cells are independent. The sorted cell list is cut into batches and the
  batches run on an errgroup limited to Workers goroutines. Every batch
  writes only its own pre-allocated slots, so no locking is needed and the
  merged result does not depend on scheduling.

  A cancelled context stops batches that have not started yet; the
  partial result is discarded and ctx.Err() returned.

VALIDATION:
  Whole-set invariants and the terrain join are checked once, before any
  batch starts. A failure returns an InputError or ConfigurationError and
  no partial map.

USAGE:
  calc := hazard.NewCalculator(
      hazard.WithWorkers(8),
      hazard.WithDepthOptions(hazard.DepthOptions{MinDepth: 0}),
      hazard.WithLogger(logger),
  )
  m, err := calc.Compute(ctx, events, []float64{1, 2, 5, 10, 25, 50, 100}, dem)

SEE ALSO:
  - exceedance.go, interpolate.go, depth.go: the per-cell steps
*/
package hazard

import (
	"context"
	"runtime"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// DefaultBatchSize is the number of cells handled by one task.
const DefaultBatchSize = 512

// Calculator computes return-period maps. It holds configuration only and
// is safe for concurrent use.
type Calculator struct {
	workers   int
	batchSize int
	opts      DepthOptions
	logger    *zap.Logger
}

// Option configures a Calculator.
type Option func(*Calculator)

// WithWorkers sets the maximum number of concurrent batches. Values < 1
// fall back to GOMAXPROCS.
func WithWorkers(n int) Option {
	return func(c *Calculator) {
		if n > 0 {
			c.workers = n
		}
	}
}

// WithBatchSize sets the number of cells per task.
func WithBatchSize(n int) Option {
	return func(c *Calculator) {
		if n > 0 {
			c.batchSize = n
		}
	}
}

// WithDepthOptions sets the depth floor and datum handling.
func WithDepthOptions(o DepthOptions) Option {
	return func(c *Calculator) { c.opts = o }
}

// WithLogger sets the logger. A nil logger is ignored.
func WithLogger(l *zap.Logger) Option {
	return func(c *Calculator) {
		if l != nil {
			c.logger = l
		}
	}
}

// NewCalculator creates a calculator with the given options.
func NewCalculator(options ...Option) *Calculator {
	c := &Calculator{
		workers:   runtime.GOMAXPROCS(0),
		batchSize: DefaultBatchSize,
		logger:    zap.NewNop(),
	}
	for _, o := range options {
		o(c)
	}
	return c
}

// DepthOptions returns the calculator's depth options.
func (c *Calculator) DepthOptions() DepthOptions { return c.opts }

// Compute produces the water level and depth of every cell at every
// requested return period, using terrain for the depth conversion.
func (c *Calculator) Compute(ctx context.Context, events EventSet, returnPeriods []float64, terrain Terrain) (*ReturnPeriodMap, error) {
	return c.compute(ctx, events, returnPeriods, terrain, c.opts, true)
}

// ComputeWithOptions is Compute with per-call depth options.
func (c *Calculator) ComputeWithOptions(ctx context.Context, events EventSet, returnPeriods []float64, terrain Terrain, opts DepthOptions) (*ReturnPeriodMap, error) {
	return c.compute(ctx, events, returnPeriods, terrain, opts, true)
}

// ComputeWaterLevels produces return-period water level maps only.
// The returned map has nil Depths.
func (c *Calculator) ComputeWaterLevels(ctx context.Context, events EventSet, returnPeriods []float64) (*ReturnPeriodMap, error) {
	return c.compute(ctx, events, returnPeriods, nil, c.opts, false)
}

// Tables returns the return-period table of every cell, in cell order.
func (c *Calculator) Tables(ctx context.Context, events EventSet) ([]ReturnPeriodTable, error) {
	if err := events.Validate(); err != nil {
		return nil, err
	}
	cells := events.Cells()
	tables := make([]ReturnPeriodTable, len(cells))
	err := c.forEachBatch(ctx, len(cells), func(lo, hi int) {
		for i := lo; i < hi; i++ {
			levels, freqs, _ := events.Column(cells[i])
			tables[i] = BuildTable(cells[i], levels, freqs)
		}
	})
	if err != nil {
		return nil, err
	}
	return tables, nil
}

func (c *Calculator) compute(ctx context.Context, events EventSet, rps []float64, terrain Terrain, opts DepthOptions, withDepth bool) (*ReturnPeriodMap, error) {
	start := time.Now()

	if err := events.Validate(); err != nil {
		return nil, err
	}
	if err := ValidateReturnPeriods(rps); err != nil {
		return nil, err
	}

	cells := events.Cells()
	var elevations []float64
	if withDepth {
		var err error
		if elevations, err = opts.checkTerrain(terrain, cells); err != nil {
			return nil, err
		}
	}

	levels := make([][]float64, len(cells))
	var depths [][]float64
	if withDepth {
		depths = make([][]float64, len(cells))
	}

	err := c.forEachBatch(ctx, len(cells), func(lo, hi int) {
		for i := lo; i < hi; i++ {
			col, freqs, _ := events.Column(cells[i])
			table := BuildTable(cells[i], col, freqs)

			wl := make([]float64, len(rps))
			var d []float64
			if withDepth {
				d = make([]float64, len(rps))
			}
			for j, t := range rps {
				level, dry := table.WaterLevelAt(t)
				wl[j] = level
				if withDepth {
					d[j] = opts.depth(level, dry, elevations[i])
				}
			}
			levels[i] = wl
			if withDepth {
				depths[i] = d
			}
		}
	})
	if err != nil {
		c.logger.Warn("return period computation aborted",
			zap.String("event_set", events.ID),
			zap.Error(err))
		return nil, err
	}

	out := &ReturnPeriodMap{
		ReturnPeriods: append([]float64(nil), rps...),
		Cells:         cells,
		WaterLevels:   make(map[CellID][]float64, len(cells)),
	}
	if withDepth {
		out.Depths = make(map[CellID][]float64, len(cells))
	}
	for i, cell := range cells {
		out.WaterLevels[cell] = levels[i]
		if withDepth {
			out.Depths[cell] = depths[i]
		}
	}

	c.logger.Debug("return period maps computed",
		zap.String("event_set", events.ID),
		zap.Int("events", len(events.Events)),
		zap.Int("cells", len(cells)),
		zap.Int("return_periods", len(rps)),
		zap.Bool("depth", withDepth),
		zap.Duration("elapsed", time.Since(start)))

	return out, nil
}

// forEachBatch runs fn over [0, n) in batches on at most c.workers goroutines.
func (c *Calculator) forEachBatch(ctx context.Context, n int, fn func(lo, hi int)) error {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.workers)

	for lo := 0; lo < n; lo += c.batchSize {
		hi := min(lo+c.batchSize, n)
		if err := gctx.Err(); err != nil {
			break
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			fn(lo, hi)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	return ctx.Err()
}
