/*
depth.go - Water level to depth conversion and the terrain join

PURPOSE:
  Converts interpolated water levels into flood depths by subtracting the
  terrain elevation of each cell, then flooring the result.

TERRAIN SOURCES:
  ElevationModel:  one elevation per cell, keyed by cell identifier
  IndexedTerrain:  cells joined to a flat elevation raster through an index
                   mapping (subgrid / DEM join), with a nodata value

DATUM:
  Water levels are in the hazard model datum. DepthOptions.DatumOffset is
  added to the terrain elevation to bring it into that datum. When both the
  options and the terrain declare a datum name they must match.

SEE ALSO:
  - calculator.go: checks the terrain join before any cell is computed
*/
package hazard

import (
	"fmt"
	"math"
	"strings"
)

// =============================================================================
// TERRAIN
// =============================================================================

// Terrain supplies per-cell terrain elevation in a known vertical datum.
type Terrain interface {
	// Elevation returns the elevation of cell, false if the join has no value.
	Elevation(cell CellID) (float64, bool)
}

// DatumReporter is implemented by terrain sources that know their datum.
type DatumReporter interface {
	Datum() string
}

// ElevationModel is a terrain model keyed directly by cell.
type ElevationModel struct {
	ID         string
	Name       string
	VDatum     string
	Elevations map[CellID]float64
}

// Elevation implements Terrain.
func (m *ElevationModel) Elevation(cell CellID) (float64, bool) {
	z, ok := m.Elevations[cell]
	if !ok || math.IsNaN(z) || math.IsInf(z, 0) {
		return 0, false
	}
	return z, true
}

// Datum implements DatumReporter.
func (m *ElevationModel) Datum() string { return m.VDatum }

// IndexedTerrain joins cells to a flat elevation raster. Raster values equal
// to Nodata, and indices out of range, are treated as missing.
type IndexedTerrain struct {
	VDatum string
	Index  map[CellID]int
	Raster []float64
	Nodata float64
}

// Elevation implements Terrain.
func (t *IndexedTerrain) Elevation(cell CellID) (float64, bool) {
	i, ok := t.Index[cell]
	if !ok || i < 0 || i >= len(t.Raster) {
		return 0, false
	}
	z := t.Raster[i]
	if z == t.Nodata || math.IsNaN(z) || math.IsInf(z, 0) {
		return 0, false
	}
	return z, true
}

// Datum implements DatumReporter.
func (t *IndexedTerrain) Datum() string { return t.VDatum }

// =============================================================================
// DEPTH OPTIONS
// =============================================================================

// DepthOptions configures the water level to depth conversion.
type DepthOptions struct {
	// MinDepth is the floor applied to every depth. Zero means no negative depths.
	MinDepth float64
	// DatumOffset is added to terrain elevations before subtraction.
	DatumOffset float64
	// Datum, when set, must equal the terrain datum (if the terrain reports one).
	Datum string
}

// Validate checks the options on their own.
func (o DepthOptions) Validate() error {
	if math.IsNaN(o.MinDepth) || math.IsInf(o.MinDepth, 0) || o.MinDepth < 0 {
		return &ConfigurationError{Reason: fmt.Sprintf("minimum depth floor must be a finite non-negative number, got %v", o.MinDepth)}
	}
	if math.IsNaN(o.DatumOffset) || math.IsInf(o.DatumOffset, 0) {
		return &ConfigurationError{Reason: fmt.Sprintf("datum offset must be finite, got %v", o.DatumOffset)}
	}
	return nil
}

// checkTerrain verifies the terrain join for every cell up front, so that a
// configuration problem is reported before any result is produced.
func (o DepthOptions) checkTerrain(terrain Terrain, cells []CellID) ([]float64, error) {
	if err := o.Validate(); err != nil {
		return nil, err
	}
	if terrain == nil {
		return nil, &ConfigurationError{Reason: "terrain is required for depth conversion"}
	}
	if dr, ok := terrain.(DatumReporter); ok && o.Datum != "" && dr.Datum() != "" {
		if !strings.EqualFold(dr.Datum(), o.Datum) {
			return nil, &ConfigurationError{
				Reason: fmt.Sprintf("terrain datum %q does not match water level datum %q", dr.Datum(), o.Datum),
			}
		}
	}

	elevations := make([]float64, len(cells))
	var missing []CellID
	for i, c := range cells {
		z, ok := terrain.Elevation(c)
		if !ok {
			missing = append(missing, c)
			continue
		}
		elevations[i] = z + o.DatumOffset
	}
	if len(missing) > 0 {
		return nil, &ConfigurationError{Reason: "no terrain elevation for cells", Cells: missing}
	}
	return elevations, nil
}

// depth converts one interpolated level into a depth. Dry entries (below the
// smallest return period of the cell) report the floor itself.
func (o DepthOptions) depth(level float64, dry bool, elevation float64) float64 {
	if dry {
		return o.MinDepth
	}
	return math.Max(level-elevation, o.MinDepth)
}
