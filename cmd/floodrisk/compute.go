package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/Deltares-research/FloodAdapt-sub000/export"
	"github.com/Deltares-research/FloodAdapt-sub000/hazard"
	memstore "github.com/Deltares-research/FloodAdapt-sub000/hazard/store"
	"github.com/Deltares-research/FloodAdapt-sub000/ingest"
)

type computeFlags struct {
	eventsFile      string
	eventSetID      string
	terrainFile     string
	terrainID       string
	returnPeriods   []float64
	minDepth        float64
	waterLevelsOnly bool
	csvPath         string
	gridDir         string
}

func (a *app) computeCmd() *cobra.Command {
	f := &computeFlags{}

	cmd := &cobra.Command{
		Use:   "compute",
		Short: "Compute return-period maps",
		Long: `Computes water level and depth maps at the requested return periods.

The event set comes from --events (a document) or --event-set (a stored ID),
the terrain from --terrain or --terrain-id. Results go to --csv (use - for
stdout) and/or --grid-dir; with neither, CSV is written to stdout.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !cmd.Flags().Changed("min-depth") {
				f.minDepth = a.cfg.Risk.MinDepth
			}
			return a.compute(cmd.Context(), f, cmd.OutOrStdout())
		},
	}

	fl := cmd.Flags()
	fl.StringVar(&f.eventsFile, "events", "", "event-set document")
	fl.StringVar(&f.eventSetID, "event-set", "", "stored event set ID")
	fl.StringVar(&f.terrainFile, "terrain", "", "terrain document")
	fl.StringVar(&f.terrainID, "terrain-id", "", "stored terrain ID")
	fl.Float64SliceVar(&f.returnPeriods, "rp", nil, "return periods in years (default risk.return_periods)")
	fl.Float64Var(&f.minDepth, "min-depth", 0, "depth floor in metres (default risk.min_depth)")
	fl.BoolVar(&f.waterLevelsOnly, "water-levels-only", false, "skip the depth conversion")
	fl.StringVar(&f.csvPath, "csv", "", "write a CSV table to this file, - for stdout")
	fl.StringVar(&f.gridDir, "grid-dir", "", "write one binary grid per return period to this directory")
	cmd.MarkFlagsMutuallyExclusive("events", "event-set")
	cmd.MarkFlagsMutuallyExclusive("terrain", "terrain-id")
	cmd.MarkFlagsOneRequired("events", "event-set")

	return cmd
}

func (a *app) compute(ctx context.Context, f *computeFlags, stdout io.Writer) error {
	// Documents given as files live in a scratch store for this command
	// only; stored IDs are read from the database.
	scratch := memstore.NewMemory()
	var events hazard.EventStore = scratch
	var terrains hazard.TerrainStore = scratch
	if f.eventSetID != "" || f.terrainID != "" {
		db, err := a.openStore()
		if err != nil {
			return err
		}
		defer db.Close()
		if f.eventSetID != "" {
			events = db
		}
		if f.terrainID != "" {
			terrains = db
		}
	}

	set, err := loadEventSet(ctx, events, scratch, f)
	if err != nil {
		return err
	}

	rps := f.returnPeriods
	if len(rps) == 0 {
		rps = a.cfg.DefaultReturnPeriods()
	}

	calc := a.cfg.NewCalculator(a.logger)
	var m *hazard.ReturnPeriodMap
	if f.waterLevelsOnly {
		m, err = calc.ComputeWaterLevels(ctx, *set, rps)
	} else {
		var terrain *hazard.ElevationModel
		if terrain, err = loadTerrain(ctx, terrains, scratch, f); err != nil {
			return err
		}
		opts := calc.DepthOptions()
		opts.MinDepth = f.minDepth
		m, err = calc.ComputeWithOptions(ctx, *set, rps, terrain, opts)
	}
	if err != nil {
		return err
	}

	a.logger.Info("maps computed",
		zap.String("event_set", set.ID),
		zap.Int("cells", len(m.Cells)),
		zap.Float64s("return_periods", m.ReturnPeriods))

	if f.gridDir != "" {
		paths, err := export.WriteGrids(f.gridDir, m)
		if err != nil {
			return err
		}
		a.logger.Info("grids written", zap.String("dir", f.gridDir), zap.Int("grids", len(paths)))
	}

	switch {
	case f.csvPath == "-" || (f.csvPath == "" && f.gridDir == ""):
		return export.WriteCSV(stdout, m)
	case f.csvPath != "":
		return writeCSVFile(f.csvPath, m)
	}
	return nil
}

func loadEventSet(ctx context.Context, events hazard.EventStore, scratch *memstore.Memory, f *computeFlags) (*hazard.EventSet, error) {
	id := f.eventSetID
	if f.eventsFile != "" {
		set, err := ingest.ReadEventSetFile(f.eventsFile)
		if err != nil {
			return nil, err
		}
		if err := scratch.SaveEventSet(ctx, set); err != nil {
			return nil, err
		}
		id = set.ID
	}
	return events.LoadEventSet(ctx, id)
}

// loadTerrain returns a non-nil model or an error. A nil model would reach
// the calculator as a non-nil Terrain interface.
func loadTerrain(ctx context.Context, terrains hazard.TerrainStore, scratch *memstore.Memory, f *computeFlags) (*hazard.ElevationModel, error) {
	id := f.terrainID
	switch {
	case f.terrainFile != "":
		model, err := ingest.ReadTerrainFile(f.terrainFile)
		if err != nil {
			return nil, err
		}
		if err := scratch.SaveTerrain(ctx, *model); err != nil {
			return nil, err
		}
		id = model.ID
	case id == "":
		return nil, errors.New("--terrain or --terrain-id is required unless --water-levels-only is set")
	}
	return terrains.LoadTerrain(ctx, id)
}

func writeCSVFile(path string, m *hazard.ReturnPeriodMap) error {
	out, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	if err := export.WriteCSV(out, m); err != nil {
		out.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	return out.Close()
}
