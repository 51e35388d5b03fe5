/*
Package ingest converts event-set and terrain documents into hazard types.

PURPOSE:
  The hazard-simulation and DEM-join collaborators hand over their output
  as YAML or JSON documents. This package parses both (JSON is read as
  YAML) and builds validated hazard.EventSet and hazard.ElevationModel
  values. Nothing here computes; callers store or compute afterwards.

EVENT SET DOCUMENT (map form):
  id: coastal-2050
  name: Coastal compound events 2050
  events:
    - id: surge-01
      frequency: 0.01
      water_levels: {c001: 2.4, c002: 1.9}

EVENT SET DOCUMENT (matrix form, event rows x cell columns):
  cells: [c001, c002]
  events:
    - id: surge-01
      frequency: 0.01
      levels: [2.4, 1.9]

TERRAIN DOCUMENT (one of):
  elevations: {c001: 0.3, c002: -0.1}
  cells: [c001, c002]
  values: [0.3, -0.1]
  index: {c001: 0, c002: 5}     # join into a flat raster
  raster: [0.3, ...]
  nodata: -9999

  Every form accepts id, name and datum.

ERRORS:
  Structural problems are hazard.InputError values; the resulting event
  set is also checked with EventSet.Validate.

SEE ALSO:
  - hazard/validate.go: invariants enforced after parsing
*/
package ingest

import (
	"fmt"
	"os"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"github.com/Deltares-research/FloodAdapt-sub000/hazard"
)

// =============================================================================
// DOCUMENT TYPES
// =============================================================================

// EventSetDocument is the serialized form of an event set.
type EventSetDocument struct {
	ID     string          `yaml:"id" json:"id"`
	Name   string          `yaml:"name" json:"name"`
	Cells  []string        `yaml:"cells,omitempty" json:"cells,omitempty"`
	Events []EventDocument `yaml:"events" json:"events"`
}

// EventDocument is one event row. Exactly one of WaterLevels and Levels
// is used: Levels requires the set-level Cells list.
type EventDocument struct {
	ID          string             `yaml:"id" json:"id"`
	Frequency   *float64           `yaml:"frequency" json:"frequency"`
	WaterLevels map[string]float64 `yaml:"water_levels,omitempty" json:"water_levels,omitempty"`
	Levels      []float64          `yaml:"levels,omitempty" json:"levels,omitempty"`
}

// TerrainDocument is the serialized form of a terrain model.
type TerrainDocument struct {
	ID         string             `yaml:"id" json:"id"`
	Name       string             `yaml:"name" json:"name"`
	Datum      string             `yaml:"datum" json:"datum"`
	Elevations map[string]float64 `yaml:"elevations,omitempty" json:"elevations,omitempty"`
	Cells      []string           `yaml:"cells,omitempty" json:"cells,omitempty"`
	Values     []float64          `yaml:"values,omitempty" json:"values,omitempty"`
	Index      map[string]int     `yaml:"index,omitempty" json:"index,omitempty"`
	Raster     []float64          `yaml:"raster,omitempty" json:"raster,omitempty"`
	Nodata     *float64           `yaml:"nodata,omitempty" json:"nodata,omitempty"`
}

// =============================================================================
// EVENT SETS
// =============================================================================

// ParseEventSet parses a YAML or JSON event-set document.
func ParseEventSet(data []byte) (hazard.EventSet, error) {
	var doc EventSetDocument
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return hazard.EventSet{}, &hazard.InputError{Field: "document", Reason: err.Error()}
	}
	return doc.EventSet()
}

// ReadEventSetFile parses the event-set document at path.
func ReadEventSetFile(path string) (hazard.EventSet, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return hazard.EventSet{}, fmt.Errorf("read event set: %w", err)
	}
	set, err := ParseEventSet(data)
	if err != nil {
		return hazard.EventSet{}, fmt.Errorf("%s: %w", path, err)
	}
	return set, nil
}

// EventSet converts the document and validates the result.
func (d EventSetDocument) EventSet() (hazard.EventSet, error) {
	set := hazard.EventSet{ID: d.ID, Name: d.Name}
	if set.ID == "" {
		set.ID = uuid.NewString()
	}

	if len(d.Cells) > 0 {
		seen := make(map[string]bool, len(d.Cells))
		for _, c := range d.Cells {
			if c == "" {
				return hazard.EventSet{}, &hazard.InputError{Field: "cells", Reason: "empty cell identifier"}
			}
			if seen[c] {
				return hazard.EventSet{}, &hazard.InputError{Field: "cells", Cell: hazard.CellID(c), Reason: "duplicate cell identifier"}
			}
			seen[c] = true
		}
	}

	set.Events = make([]hazard.EventRecord, 0, len(d.Events))
	for i, ev := range d.Events {
		rec, err := d.event(i, ev)
		if err != nil {
			return hazard.EventSet{}, err
		}
		set.Events = append(set.Events, rec)
	}

	if err := set.Validate(); err != nil {
		return hazard.EventSet{}, err
	}
	return set, nil
}

func (d EventSetDocument) event(i int, ev EventDocument) (hazard.EventRecord, error) {
	id := hazard.EventID(ev.ID)
	if id == "" {
		id = hazard.EventID(uuid.NewString())
	}
	if ev.Frequency == nil {
		return hazard.EventRecord{}, &hazard.InputError{
			Field: "frequency", EventID: id, Reason: fmt.Sprintf("event at index %d has no frequency", i),
		}
	}
	rec := hazard.EventRecord{ID: id, Frequency: *ev.Frequency}

	switch {
	case ev.WaterLevels != nil && ev.Levels != nil:
		return hazard.EventRecord{}, &hazard.InputError{
			Field: "water_levels", EventID: id, Reason: "both water_levels and levels given",
		}
	case ev.Levels != nil:
		if len(d.Cells) == 0 {
			return hazard.EventRecord{}, &hazard.InputError{
				Field: "cells", EventID: id, Reason: "levels require a cells list",
			}
		}
		if len(ev.Levels) != len(d.Cells) {
			return hazard.EventRecord{}, &hazard.InputError{
				Field:   "water_levels",
				EventID: id,
				Reason:  fmt.Sprintf("%d levels for %d cells", len(ev.Levels), len(d.Cells)),
			}
		}
		rec.WaterLevels = make(map[hazard.CellID]float64, len(d.Cells))
		for j, c := range d.Cells {
			rec.WaterLevels[hazard.CellID(c)] = ev.Levels[j]
		}
	default:
		rec.WaterLevels = make(map[hazard.CellID]float64, len(ev.WaterLevels))
		for c, wl := range ev.WaterLevels {
			rec.WaterLevels[hazard.CellID(c)] = wl
		}
	}
	return rec, nil
}

// DocumentFromEventSet builds the map-form document of set.
func DocumentFromEventSet(set hazard.EventSet) EventSetDocument {
	doc := EventSetDocument{ID: set.ID, Name: set.Name, Events: make([]EventDocument, len(set.Events))}
	for i, ev := range set.Events {
		freq := ev.Frequency
		wl := make(map[string]float64, len(ev.WaterLevels))
		for c, v := range ev.WaterLevels {
			wl[string(c)] = v
		}
		doc.Events[i] = EventDocument{ID: string(ev.ID), Frequency: &freq, WaterLevels: wl}
	}
	return doc
}

// =============================================================================
// TERRAIN
// =============================================================================

const ambiguousTerrain = "terrain document must use exactly one of elevations, cells+values or index+raster"

// ParseTerrain parses a YAML or JSON terrain document.
func ParseTerrain(data []byte) (*hazard.ElevationModel, error) {
	var doc TerrainDocument
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, &hazard.InputError{Field: "document", Reason: err.Error()}
	}
	return doc.ElevationModel()
}

// ReadTerrainFile parses the terrain document at path.
func ReadTerrainFile(path string) (*hazard.ElevationModel, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read terrain: %w", err)
	}
	m, err := ParseTerrain(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return m, nil
}

// ElevationModel converts the document. Indexed joins are resolved
// through hazard.IndexedTerrain; cells that hit nodata or fall outside the
// raster are left out of the model, so a later computation reports them.
func (d TerrainDocument) ElevationModel() (*hazard.ElevationModel, error) {
	m := &hazard.ElevationModel{ID: d.ID, Name: d.Name, VDatum: d.Datum}
	if m.ID == "" {
		m.ID = uuid.NewString()
	}

	forms := 0
	if d.Elevations != nil {
		forms++
	}
	if d.Cells != nil || d.Values != nil {
		forms++
	}
	if d.Index != nil || d.Raster != nil {
		forms++
	}
	if forms != 1 {
		return nil, &hazard.InputError{Field: "terrain", Reason: ambiguousTerrain}
	}

	switch {
	case d.Elevations != nil:
		m.Elevations = make(map[hazard.CellID]float64, len(d.Elevations))
		for c, z := range d.Elevations {
			m.Elevations[hazard.CellID(c)] = z
		}

	case d.Cells != nil || d.Values != nil:
		if len(d.Cells) != len(d.Values) {
			return nil, &hazard.InputError{
				Field:  "terrain",
				Reason: fmt.Sprintf("%d values for %d cells", len(d.Values), len(d.Cells)),
			}
		}
		m.Elevations = make(map[hazard.CellID]float64, len(d.Cells))
		for i, c := range d.Cells {
			m.Elevations[hazard.CellID(c)] = d.Values[i]
		}

	default:
		joined := &hazard.IndexedTerrain{
			VDatum: d.Datum,
			Index:  make(map[hazard.CellID]int, len(d.Index)),
			Raster: d.Raster,
		}
		if d.Nodata != nil {
			joined.Nodata = *d.Nodata
		} else {
			joined.Nodata = -9999
		}
		for c, i := range d.Index {
			joined.Index[hazard.CellID(c)] = i
		}
		m.Elevations = make(map[hazard.CellID]float64, len(d.Index))
		for c := range joined.Index {
			if z, ok := joined.Elevation(c); ok {
				m.Elevations[c] = z
			}
		}
	}
	return m, nil
}
