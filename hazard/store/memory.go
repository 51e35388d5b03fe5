// Package store provides in-memory hazard.EventStore and hazard.TerrainStore
// implementations.
package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/Deltares-research/FloodAdapt-sub000/hazard"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

type Memory struct {
	mu       sync.RWMutex
	sets     map[string]hazard.EventSet
	terrains map[string]hazard.ElevationModel
}

func NewMemory() *Memory {
	return &Memory{
		sets:     make(map[string]hazard.EventSet),
		terrains: make(map[string]hazard.ElevationModel),
	}
}

// SaveEventSet stores a deep copy so later caller mutations don't leak in.
func (m *Memory) SaveEventSet(_ context.Context, set hazard.EventSet) error {
	if err := set.Validate(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if set.CreatedAt.IsZero() {
		set.CreatedAt = time.Now().UTC()
	}
	m.sets[set.ID] = copyEventSet(set)
	return nil
}

func (m *Memory) LoadEventSet(_ context.Context, id string) (*hazard.EventSet, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	set, ok := m.sets[id]
	if !ok {
		return nil, hazard.ErrEventSetNotFound
	}
	out := copyEventSet(set)
	return &out, nil
}

func (m *Memory) ListEventSets(_ context.Context) ([]hazard.EventSetSummary, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]hazard.EventSetSummary, 0, len(m.sets))
	for _, s := range m.sets {
		out = append(out, s.Summary())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *Memory) DeleteEventSet(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.sets[id]; !ok {
		return hazard.ErrEventSetNotFound
	}
	delete(m.sets, id)
	return nil
}

func (m *Memory) SaveTerrain(_ context.Context, t hazard.ElevationModel) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	elev := make(map[hazard.CellID]float64, len(t.Elevations))
	for c, z := range t.Elevations {
		elev[c] = z
	}
	t.Elevations = elev
	m.terrains[t.ID] = t
	return nil
}

func (m *Memory) LoadTerrain(_ context.Context, id string) (*hazard.ElevationModel, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	t, ok := m.terrains[id]
	if !ok {
		return nil, hazard.ErrTerrainNotFound
	}
	return &t, nil
}

func copyEventSet(set hazard.EventSet) hazard.EventSet {
	events := make([]hazard.EventRecord, len(set.Events))
	for i, ev := range set.Events {
		wl := make(map[hazard.CellID]float64, len(ev.WaterLevels))
		for c, v := range ev.WaterLevels {
			wl[c] = v
		}
		events[i] = hazard.EventRecord{ID: ev.ID, Frequency: ev.Frequency, WaterLevels: wl}
	}
	set.Events = events
	return set
}
