/*
Package export writes return-period maps in the formats the impact model reads.

FORMATS:
  Grids:  one little-endian float32 file per requested return period,
          values in cell order, plus cells.txt with one cell ID per line
          giving that order. Depth maps are written as depth_rp<T>.bin,
          water-level-only maps as wl_rp<T>.bin.
  CSV:    long table cell,return_period,water_level,depth
*/
package export

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"

	"github.com/Deltares-research/FloodAdapt-sub000/hazard"
)

// CellIndexFile names the cell order file written next to the grids.
const CellIndexFile = "cells.txt"

// GridName returns the file name of the grid for return period rp.
func GridName(rp float64, depth bool) string {
	prefix := "wl"
	if depth {
		prefix = "depth"
	}
	return fmt.Sprintf("%s_rp%s.bin", prefix, strconv.FormatFloat(rp, 'f', -1, 64))
}

// WriteGrids writes one grid per distinct return period of m into dir,
// creating dir if needed, and returns the written grid paths.
func WriteGrids(dir string, m *hazard.ReturnPeriodMap) ([]string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create grid dir: %w", err)
	}
	if err := writeCellIndex(filepath.Join(dir, CellIndexFile), m.Cells); err != nil {
		return nil, err
	}

	values, depth := m.WaterLevels, false
	if m.Depths != nil {
		values, depth = m.Depths, true
	}

	var paths []string
	seen := make(map[float64]bool, len(m.ReturnPeriods))
	grid := make([]float32, len(m.Cells))
	for j, rp := range m.ReturnPeriods {
		if seen[rp] {
			continue
		}
		seen[rp] = true

		for i, c := range m.Cells {
			grid[i] = float32(values[c][j])
		}
		fp := filepath.Join(dir, GridName(rp, depth))
		if err := writeFloat32s(fp, grid); err != nil {
			return paths, err
		}
		paths = append(paths, fp)
	}
	return paths, nil
}

func writeFloat32s(fp string, f []float32) error {
	buf := new(bytes.Buffer)
	if err := binary.Write(buf, binary.LittleEndian, f); err != nil {
		return fmt.Errorf("write grid %s: %w", fp, err)
	}
	if err := os.WriteFile(fp, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("write grid %s: %w", fp, err)
	}
	return nil
}

func writeCellIndex(fp string, cells []hazard.CellID) error {
	f, err := os.Create(fp)
	if err != nil {
		return fmt.Errorf("write cell index: %w", err)
	}
	w := bufio.NewWriter(f)
	for _, c := range cells {
		w.WriteString(string(c))
		w.WriteByte('\n')
	}
	if err := w.Flush(); err != nil {
		f.Close()
		return fmt.Errorf("write cell index: %w", err)
	}
	return f.Close()
}

// ReadGrid reads a grid written by WriteGrids.
func ReadGrid(fp string) ([]float32, error) {
	data, err := os.ReadFile(fp)
	if err != nil {
		return nil, err
	}
	if len(data)%4 != 0 {
		return nil, fmt.Errorf("grid %s: size %d is not a multiple of 4", fp, len(data))
	}
	out := make([]float32, len(data)/4)
	if err := binary.Read(bytes.NewReader(data), binary.LittleEndian, out); err != nil {
		return nil, fmt.Errorf("grid %s: %w", fp, err)
	}
	return out, nil
}

// WriteCSV writes m as a long table. The depth column is empty for
// water-level-only maps.
func WriteCSV(w io.Writer, m *hazard.ReturnPeriodMap) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"cell", "return_period", "water_level", "depth"}); err != nil {
		return err
	}
	for _, c := range m.Cells {
		for j, rp := range m.ReturnPeriods {
			depth := ""
			if m.Depths != nil {
				depth = formatFloat(m.Depths[c][j])
			}
			rec := []string{string(c), formatFloat(rp), formatFloat(m.WaterLevels[c][j]), depth}
			if err := cw.Write(rec); err != nil {
				return err
			}
		}
	}
	cw.Flush()
	return cw.Error()
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}
