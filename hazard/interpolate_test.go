package hazard_test

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/Deltares-research/FloodAdapt-sub000/hazard"
)

func scenarioTable() hazard.ReturnPeriodTable {
	return hazard.BuildTable("c1", []float64{5, 3, 3}, []float64{0.01, 0.02, 0.03})
}

func TestWaterLevelAt_LogLinearInterpolation(t *testing.T) {
	// T=50 lies between (16.667, 3) and (100, 5)
	level, dry := scenarioTable().WaterLevelAt(50)

	want := 3 + 2*math.Log(50/(1/0.06))/math.Log(100/(1/0.06))
	assert.False(t, dry)
	assert.InDelta(t, want, level, 1e-9)
	assert.InDelta(t, 4.2262944, level, 1e-6)
}

func TestWaterLevelAt_AboveMaximumIsFlat(t *testing.T) {
	level, dry := scenarioTable().WaterLevelAt(200)

	assert.False(t, dry)
	assert.Equal(t, 5.0, level, "must equal the highest-return-period level exactly")
}

func TestWaterLevelAt_BelowMinimumIsDry(t *testing.T) {
	level, dry := scenarioTable().WaterLevelAt(10)

	assert.True(t, dry)
	assert.Equal(t, 0.0, level)
}

func TestWaterLevelAt_ExactRows(t *testing.T) {
	table := scenarioTable()

	level, dry := table.WaterLevelAt(table.MinReturnPeriod())
	assert.False(t, dry)
	assert.Equal(t, 3.0, level)

	level, dry = table.WaterLevelAt(table.MaxReturnPeriod())
	assert.False(t, dry)
	assert.Equal(t, 5.0, level)
}

func TestWaterLevelAt_ThreeSteps(t *testing.T) {
	// exceedance 0.01, 0.1, 1 -> return periods 100, 10, 1
	table := hazard.BuildTable("c", []float64{4, 2, 1}, []float64{0.01, 0.09, 0.9})

	tests := []struct {
		name string
		rp   float64
		want float64
	}{
		{"lowest row", 1, 1},
		{"geometric midpoint of first interval", math.Sqrt(10), 1.5},
		{"middle row", 10, 2},
		{"geometric midpoint of second interval", math.Sqrt(1000), 3},
		{"highest row", 100, 4},
		{"beyond highest", 1000, 4},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, dry := table.WaterLevelAt(tt.rp)
			assert.False(t, dry)
			assert.InDelta(t, tt.want, got, 1e-9)
		})
	}
}

func TestWaterLevelAt_EmptyTable(t *testing.T) {
	level, dry := hazard.ReturnPeriodTable{}.WaterLevelAt(10)
	assert.True(t, dry)
	assert.Zero(t, level)
}
