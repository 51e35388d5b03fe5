/*
store.go - Persistence interfaces for calculator inputs

PURPOSE:
  Event sets and terrain models are produced by external collaborators
  (the coupled flood model and the DEM join). The service keeps them so
  that runs can reference them by ID. The calculator itself never reads
  a store; callers load inputs first, then compute.

IMPLEMENTATIONS:
  - hazard/store/memory.go: in-memory, for tests and development
  - store/sqlite/sqlite.go: SQLite-backed, used by the server
*/
package hazard

import "context"

// EventStore persists event sets.
type EventStore interface {
	// SaveEventSet stores the set, replacing any set with the same ID.
	SaveEventSet(ctx context.Context, set EventSet) error

	// LoadEventSet returns ErrEventSetNotFound if id is unknown.
	LoadEventSet(ctx context.Context, id string) (*EventSet, error)

	ListEventSets(ctx context.Context) ([]EventSetSummary, error)

	DeleteEventSet(ctx context.Context, id string) error
}

// TerrainStore persists per-cell terrain models.
type TerrainStore interface {
	SaveTerrain(ctx context.Context, t ElevationModel) error

	// LoadTerrain returns ErrTerrainNotFound if id is unknown.
	LoadTerrain(ctx context.Context, id string) (*ElevationModel, error)
}
