package hazard

import "sort"

// BuildTable derives a cell's return-period table from its column of
// water levels and occurrence frequencies (same length, event order).
//
// Rows are sorted by descending water level; rows with exactly equal water
// levels are merged into a single step whose frequency is the sum of theirs,
// so the curve never depends on input order. Exceedance frequency is the
// running sum from the highest level down and the return period is its
// reciprocal. The result is reversed to increasing return period.
//
// A step whose frequency is too small to change the running sum would
// repeat the return period of the step above it; it is folded into that
// step, which keeps the higher water level.
//
// Frequencies are assumed positive; EventSet.Validate enforces it.
func BuildTable(cell CellID, levels, freqs []float64) ReturnPeriodTable {
	type step struct {
		level float64
		freq  float64
	}

	steps := make([]step, len(levels))
	for i := range levels {
		steps[i] = step{level: levels[i], freq: freqs[i]}
	}
	sort.SliceStable(steps, func(i, j int) bool { return steps[i].level > steps[j].level })

	// merge ties in place
	merged := steps[:0]
	for _, s := range steps {
		if n := len(merged); n > 0 && merged[n-1].level == s.level {
			merged[n-1].freq += s.freq
			continue
		}
		merged = append(merged, s)
	}

	rows := make([]TableRow, 0, len(merged))
	exceedance := 0.0
	for _, s := range merged {
		next := exceedance + s.freq
		if len(rows) > 0 && next == exceedance {
			continue
		}
		exceedance = next
		rows = append(rows, TableRow{
			ReturnPeriod: 1 / exceedance,
			WaterLevel:   s.level,
			Exceedance:   exceedance,
		})
	}

	// highest level has the largest return period; flip to increasing
	for i, j := 0, len(rows)-1; i < j; i, j = i+1, j-1 {
		rows[i], rows[j] = rows[j], rows[i]
	}

	return ReturnPeriodTable{Cell: cell, Rows: rows}
}

// TableFor builds the return-period table of a single cell of the set.
func (s EventSet) TableFor(cell CellID) (ReturnPeriodTable, error) {
	if len(s.Events) == 0 {
		return ReturnPeriodTable{}, &InputError{Field: "events", Reason: "event set is empty"}
	}
	levels, freqs, ok := s.Column(cell)
	if !ok {
		return ReturnPeriodTable{}, &InputError{Field: "cell", Cell: cell, Reason: "cell is not covered by every event"}
	}
	return BuildTable(cell, levels, freqs), nil
}
