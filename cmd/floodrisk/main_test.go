package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Deltares-research/FloodAdapt-sub000/export"
)

const eventsYAML = `
id: single-cell
cells: [c1, c2]
events:
  - {id: e1, frequency: 0.01, levels: [5, 6]}
  - {id: e2, frequency: 0.02, levels: [3, 4]}
  - {id: e3, frequency: 0.03, levels: [3, 2]}
`

const terrainYAML = `
id: flat
cells: [c1, c2]
values: [1, 1]
`

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	fp := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(fp, []byte(content), 0o644))
	return fp
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetArgs(append(args, "--log-level", "error"))
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	err := cmd.Execute()
	return out.String(), err
}

func TestCompute_FromFiles(t *testing.T) {
	events := writeFile(t, "events.yaml", eventsYAML)
	terrain := writeFile(t, "dem.yaml", terrainYAML)

	out, err := run(t, "compute", "--events", events, "--terrain", terrain, "--rp", "10,100")
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 5)
	assert.Equal(t, "cell,return_period,water_level,depth", lines[0])
	assert.Equal(t, "c1,10,0,0", lines[1], "below the smallest return period the cell is dry")
	assert.Equal(t, "c1,100,5,4", lines[2])
	assert.Equal(t, "c2,100,6,5", lines[4])
}

func TestCompute_GridsAndCSVFile(t *testing.T) {
	events := writeFile(t, "events.yaml", eventsYAML)
	dir := t.TempDir()
	csvPath := filepath.Join(dir, "out.csv")

	out, err := run(t, "compute", "--events", events, "--water-levels-only",
		"--rp", "100", "--grid-dir", filepath.Join(dir, "grids"), "--csv", csvPath)
	require.NoError(t, err)
	assert.Empty(t, out)

	grid, err := export.ReadGrid(filepath.Join(dir, "grids", "wl_rp100.bin"))
	require.NoError(t, err)
	assert.Equal(t, []float32{5, 6}, grid)

	data, err := os.ReadFile(csvPath)
	require.NoError(t, err)
	assert.Contains(t, string(data), "c2,100,6,\n")
}

func TestImportThenComputeStored(t *testing.T) {
	t.Setenv("FLOODRISK_STORAGE_DB_PATH", filepath.Join(t.TempDir(), "floodrisk.db"))

	out, err := run(t, "import", "events", writeFile(t, "events.yaml", eventsYAML))
	require.NoError(t, err)
	assert.Equal(t, "single-cell\n", out)

	out, err = run(t, "import", "terrain", writeFile(t, "dem.yaml", terrainYAML))
	require.NoError(t, err)
	assert.Equal(t, "flat\n", out)

	out, err = run(t, "compute", "--event-set", "single-cell", "--terrain-id", "flat", "--rp", "100", "--min-depth", "0.5")
	require.NoError(t, err)
	assert.Contains(t, out, "c1,100,5,4\n")
}

func TestCompute_Errors(t *testing.T) {
	events := writeFile(t, "events.yaml", eventsYAML)

	_, err := run(t, "compute", "--events", events)
	assert.ErrorContains(t, err, "--terrain")

	_, err = run(t, "compute", "--terrain", "x.yaml")
	assert.Error(t, err, "an event set is required")

	_, err = run(t, "compute", "--events", events, "--water-levels-only", "--rp", "-1")
	assert.ErrorContains(t, err, "return_periods")
}

func TestInvalidLogLevel(t *testing.T) {
	cmd := newRootCmd()
	cmd.SetArgs([]string{"compute", "--log-level", "loud"})
	cmd.SetOut(&bytes.Buffer{})
	assert.Error(t, cmd.Execute())
}
