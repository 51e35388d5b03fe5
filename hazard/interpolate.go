package hazard

import (
	"math"
	"sort"
)

// WaterLevelAt returns the water level of the table at return period rp.
//
//   - rp inside [min, max]: log-linear interpolation, linear in ln(rp) and
//     linear in water level, between the bracketing rows T_lo < rp <= T_hi.
//   - rp above the largest return period: the level of that row, unchanged.
//   - rp below the smallest return period: 0 and dry == true. The event set
//     holds no event frequent enough to say the cell floods that often.
func (t ReturnPeriodTable) WaterLevelAt(rp float64) (level float64, dry bool) {
	n := len(t.Rows)
	if n == 0 {
		return 0, true
	}
	if rp < t.Rows[0].ReturnPeriod {
		return 0, true
	}
	if rp >= t.Rows[n-1].ReturnPeriod {
		return t.Rows[n-1].WaterLevel, false
	}

	// first row with ReturnPeriod >= rp; i >= 1 unless rp hits the first row
	i := sort.Search(n, func(i int) bool { return t.Rows[i].ReturnPeriod >= rp })
	hi := t.Rows[i]
	if hi.ReturnPeriod == rp || i == 0 {
		return hi.WaterLevel, false
	}
	lo := t.Rows[i-1]
	return logLinear(lo, hi, rp), false
}

func logLinear(lo, hi TableRow, rp float64) float64 {
	x0, x1 := math.Log(lo.ReturnPeriod), math.Log(hi.ReturnPeriod)
	w := (math.Log(rp) - x0) / (x1 - x0)
	return lo.WaterLevel + w*(hi.WaterLevel-lo.WaterLevel)
}
