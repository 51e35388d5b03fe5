/*
Package hazard provides the probabilistic return-period calculator.

PURPOSE:
  Converts a set of simulated compound-flood events (each with an annual
  occurrence frequency and a per-cell water level) into return-period
  water level maps, and then into depth maps using a terrain model.
  The downstream impact model consumes the depth maps to derive damages
  and expected annual damage; that part is not implemented here.

KEY CONCEPTS IN THIS FILE (types.go):
  - EventRecord: one simulated event, its frequency and its hazard field
  - EventSet: the events of one probabilistic set, same cell universe
  - ReturnPeriodTable: per-cell exceedance curve (return period, level)
  - ReturnPeriodMap: per-cell water level and depth per requested return period

PIPELINE (per cell, independent of every other cell):
  1. Assemble the (water level, frequency) column across events
  2. Sort descending by level, merge exactly-equal levels
  3. Accumulate exceedance frequency, return period = 1 / exceedance
  4. Log-linear interpolation / flat extrapolation to requested periods
  5. Depth = level - terrain, floored

SEE ALSO:
  - exceedance.go: steps 1-3
  - interpolate.go: step 4
  - depth.go: step 5 and the terrain join
  - calculator.go: validation and the parallel per-cell map
*/
package hazard

import (
	"sort"
	"time"
)

// =============================================================================
// IDENTIFIERS
// =============================================================================

// CellID identifies a computational cell of the hazard model grid or mesh.
type CellID string

// EventID identifies a simulated event within an event set.
type EventID string

// =============================================================================
// EVENTS
// =============================================================================

// EventRecord is one simulated event. Frequency is the annual occurrence
// frequency (events per year). WaterLevels holds the simulated water level
// per cell in the model vertical datum.
type EventRecord struct {
	ID          EventID
	Frequency   float64
	WaterLevels map[CellID]float64
}

// EventSet is a probabilistic event set. Every record must cover the same
// cells. Records are immutable inputs to the calculator.
type EventSet struct {
	ID        string
	Name      string
	Events    []EventRecord
	CreatedAt time.Time
}

// Cells returns the cell universe of the set, sorted by identifier.
// The universe is taken from the first event; Validate checks the others.
func (s EventSet) Cells() []CellID {
	if len(s.Events) == 0 {
		return nil
	}
	cells := make([]CellID, 0, len(s.Events[0].WaterLevels))
	for c := range s.Events[0].WaterLevels {
		cells = append(cells, c)
	}
	sortCells(cells)
	return cells
}

// Column returns the water levels and frequencies of every event for a
// single cell, in event order. ok is false if any event misses the cell.
func (s EventSet) Column(cell CellID) (levels, freqs []float64, ok bool) {
	levels = make([]float64, len(s.Events))
	freqs = make([]float64, len(s.Events))
	for i, ev := range s.Events {
		wl, found := ev.WaterLevels[cell]
		if !found {
			return nil, nil, false
		}
		levels[i] = wl
		freqs[i] = ev.Frequency
	}
	return levels, freqs, true
}

// EventSetSummary is a lightweight listing entry for stored event sets.
type EventSetSummary struct {
	ID         string
	Name       string
	EventCount int
	CellCount  int
	CreatedAt  time.Time
}

// Summary builds the listing entry for s.
func (s EventSet) Summary() EventSetSummary {
	n := 0
	if len(s.Events) > 0 {
		n = len(s.Events[0].WaterLevels)
	}
	return EventSetSummary{
		ID:         s.ID,
		Name:       s.Name,
		EventCount: len(s.Events),
		CellCount:  n,
		CreatedAt:  s.CreatedAt,
	}
}

// =============================================================================
// RETURN PERIOD TABLE - Per-cell exceedance curve
// =============================================================================

// TableRow is one step of a cell's exceedance curve.
type TableRow struct {
	ReturnPeriod float64
	WaterLevel   float64
	Exceedance   float64 // annual exceedance frequency, 1 / ReturnPeriod
}

// ReturnPeriodTable is the lookup table of one cell. Rows are strictly
// increasing in return period and strictly decreasing in water level.
type ReturnPeriodTable struct {
	Cell CellID
	Rows []TableRow
}

// MinReturnPeriod returns the smallest return period in the table.
func (t ReturnPeriodTable) MinReturnPeriod() float64 {
	if len(t.Rows) == 0 {
		return 0
	}
	return t.Rows[0].ReturnPeriod
}

// MaxReturnPeriod returns the largest return period in the table.
func (t ReturnPeriodTable) MaxReturnPeriod() float64 {
	if len(t.Rows) == 0 {
		return 0
	}
	return t.Rows[len(t.Rows)-1].ReturnPeriod
}

// =============================================================================
// RETURN PERIOD MAP - Final output
// =============================================================================

// ReturnPeriodMap holds, for every cell, the water level and depth at each
// requested return period. Slices in WaterLevels and Depths are aligned with
// ReturnPeriods, which keeps the caller's order (duplicates included).
// Depths is nil when only water levels were requested.
type ReturnPeriodMap struct {
	ReturnPeriods []float64
	Cells         []CellID
	WaterLevels   map[CellID][]float64
	Depths        map[CellID][]float64
}

// DepthAt returns the depth of cell at the first requested return period
// equal to rp.
func (m *ReturnPeriodMap) DepthAt(cell CellID, rp float64) (float64, bool) {
	return m.lookup(m.Depths, cell, rp)
}

// WaterLevelAt returns the water level of cell at the first requested
// return period equal to rp.
func (m *ReturnPeriodMap) WaterLevelAt(cell CellID, rp float64) (float64, bool) {
	return m.lookup(m.WaterLevels, cell, rp)
}

func (m *ReturnPeriodMap) lookup(values map[CellID][]float64, cell CellID, rp float64) (float64, bool) {
	if values == nil {
		return 0, false
	}
	row, ok := values[cell]
	if !ok {
		return 0, false
	}
	for i, t := range m.ReturnPeriods {
		if t == rp {
			return row[i], true
		}
	}
	return 0, false
}

func sortCells(cells []CellID) {
	sort.Slice(cells, func(i, j int) bool { return cells[i] < cells[j] })
}
