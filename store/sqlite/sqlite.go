/*
Package sqlite provides a SQLite-backed implementation of the storage interfaces.

PURPOSE:
  Persists the calculator inputs (event sets, terrain models) and the
  queued runs with their return-period results, so the server can compute
  against stored data by ID.

INTERFACES IMPLEMENTED:
  hazard.EventStore:   Event set persistence
  hazard.TerrainStore: Terrain model persistence

KEY TABLES:
  event_sets:   One row per probabilistic event set
  events:       Event identifier, frequency and position within its set
  water_levels: Event x cell matrix, one row per value
  terrains:     Terrain model header (datum)
  elevations:   Per-cell terrain elevation
  runs:         Queued computations and their status
  run_results:  Cell x return period values of a completed run

NUMERIC STORAGE:
  Every float is stored as a decimal TEXT column (shopspring/decimal).
  The shortest decimal that round-trips is written, and reading it back
  with exact rational conversion yields the identical float64. REAL
  columns are not used so that reloaded event sets produce bit-identical
  results.

CONCURRENCY:
  Uses sync.RWMutex for thread-safety. In-memory databases are pinned to
  a single connection because every connection to ":memory:" opens a new
  empty database.

USAGE:
  store, err := sqlite.New("./data/floodrisk.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

  set, err := store.LoadEventSet(ctx, "coastal-2050")

MIGRATION:
  Schema is auto-migrated on New().

SEE ALSO:
  - hazard/store.go: Interfaces implemented here
  - hazard/store/memory.go: In-memory implementation for testing
*/
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"

	"github.com/Deltares-research/FloodAdapt-sub000/hazard"
)

// ErrNoResults is returned by LoadRunResults for a run that exists but has
// not stored any results yet.
var ErrNoResults = errors.New("run has no results")

// Store implements all storage interfaces using SQLite.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if dbPath == ":memory:" {
		db.SetMaxOpenConns(1)
	}

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// migrate creates the database schema.
func (s *Store) migrate() error {
	schema := `
	-- Event sets
	CREATE TABLE IF NOT EXISTS event_sets (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL DEFAULT '',
		event_count INTEGER NOT NULL,
		cell_count INTEGER NOT NULL,
		created_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS events (
		event_set_id TEXT NOT NULL REFERENCES event_sets(id) ON DELETE CASCADE,
		id TEXT NOT NULL,
		seq INTEGER NOT NULL,
		frequency TEXT NOT NULL,
		PRIMARY KEY (event_set_id, id)
	);

	CREATE INDEX IF NOT EXISTS idx_events_set_seq
		ON events(event_set_id, seq);

	-- Event x cell matrix
	CREATE TABLE IF NOT EXISTS water_levels (
		event_set_id TEXT NOT NULL,
		event_id TEXT NOT NULL,
		cell_id TEXT NOT NULL,
		level TEXT NOT NULL,
		PRIMARY KEY (event_set_id, event_id, cell_id),
		FOREIGN KEY (event_set_id, event_id) REFERENCES events(event_set_id, id) ON DELETE CASCADE
	);

	-- Terrain models
	CREATE TABLE IF NOT EXISTS terrains (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL DEFAULT '',
		datum TEXT NOT NULL DEFAULT '',
		cell_count INTEGER NOT NULL,
		created_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS elevations (
		terrain_id TEXT NOT NULL REFERENCES terrains(id) ON DELETE CASCADE,
		cell_id TEXT NOT NULL,
		elevation TEXT NOT NULL,
		PRIMARY KEY (terrain_id, cell_id)
	);

	-- Queued computations
	CREATE TABLE IF NOT EXISTS runs (
		id TEXT PRIMARY KEY,
		event_set_id TEXT NOT NULL,
		terrain_id TEXT NOT NULL DEFAULT '',
		return_periods_json TEXT NOT NULL,
		min_depth TEXT NOT NULL,
		water_levels_only BOOLEAN DEFAULT FALSE,
		status TEXT NOT NULL DEFAULT 'pending',
		cell_count INTEGER NOT NULL DEFAULT 0,
		error TEXT NOT NULL DEFAULT '',
		started_at TEXT,
		completed_at TEXT,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_runs_status
		ON runs(status, created_at);

	CREATE TABLE IF NOT EXISTS run_results (
		run_id TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
		cell_id TEXT NOT NULL,
		rp_index INTEGER NOT NULL,
		return_period TEXT NOT NULL,
		water_level TEXT NOT NULL,
		depth TEXT,
		PRIMARY KEY (run_id, cell_id, rp_index)
	);
	`

	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// EVENT SET STORE
// =============================================================================

// SaveEventSet stores the set atomically, replacing any set with the same ID.
func (s *Store) SaveEventSet(ctx context.Context, set hazard.EventSet) error {
	if err := set.Validate(); err != nil {
		return err
	}
	if set.CreatedAt.IsZero() {
		set.CreatedAt = time.Now().UTC()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer sqlTx.Rollback()

	if _, err := sqlTx.ExecContext(ctx, "DELETE FROM event_sets WHERE id = ?", set.ID); err != nil {
		return fmt.Errorf("failed to replace event set: %w", err)
	}

	summary := set.Summary()
	_, err = sqlTx.ExecContext(ctx,
		"INSERT INTO event_sets (id, name, event_count, cell_count, created_at) VALUES (?, ?, ?, ?, ?)",
		set.ID, set.Name, summary.EventCount, summary.CellCount, set.CreatedAt.Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("failed to insert event set: %w", err)
	}

	evStmt, err := sqlTx.PrepareContext(ctx,
		"INSERT INTO events (event_set_id, id, seq, frequency) VALUES (?, ?, ?, ?)")
	if err != nil {
		return err
	}
	defer evStmt.Close()

	wlStmt, err := sqlTx.PrepareContext(ctx,
		"INSERT INTO water_levels (event_set_id, event_id, cell_id, level) VALUES (?, ?, ?, ?)")
	if err != nil {
		return err
	}
	defer wlStmt.Close()

	cells := set.Cells()
	for i, ev := range set.Events {
		if _, err := evStmt.ExecContext(ctx, set.ID, ev.ID, i, formatFloat(ev.Frequency)); err != nil {
			return fmt.Errorf("failed to insert event %s: %w", ev.ID, err)
		}
		for _, cell := range cells {
			if _, err := wlStmt.ExecContext(ctx, set.ID, ev.ID, cell, formatFloat(ev.WaterLevels[cell])); err != nil {
				return fmt.Errorf("failed to insert water level %s/%s: %w", ev.ID, cell, err)
			}
		}
	}

	return sqlTx.Commit()
}

// LoadEventSet returns hazard.ErrEventSetNotFound if id is unknown.
func (s *Store) LoadEventSet(ctx context.Context, id string) (*hazard.EventSet, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	set := hazard.EventSet{ID: id}
	var createdAt string
	err := s.db.QueryRowContext(ctx,
		"SELECT name, created_at FROM event_sets WHERE id = ?", id,
	).Scan(&set.Name, &createdAt)
	if err == sql.ErrNoRows {
		return nil, hazard.ErrEventSetNotFound
	}
	if err != nil {
		return nil, err
	}
	set.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)

	rows, err := s.db.QueryContext(ctx,
		"SELECT id, frequency FROM events WHERE event_set_id = ? ORDER BY seq", id)
	if err != nil {
		return nil, err
	}
	index := make(map[hazard.EventID]int)
	for rows.Next() {
		var ev hazard.EventRecord
		var freq string
		if err := rows.Scan(&ev.ID, &freq); err != nil {
			rows.Close()
			return nil, err
		}
		if ev.Frequency, err = parseFloat(freq); err != nil {
			rows.Close()
			return nil, fmt.Errorf("event %s frequency: %w", ev.ID, err)
		}
		ev.WaterLevels = make(map[hazard.CellID]float64)
		index[ev.ID] = len(set.Events)
		set.Events = append(set.Events, ev)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	rows, err = s.db.QueryContext(ctx,
		"SELECT event_id, cell_id, level FROM water_levels WHERE event_set_id = ?", id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var eventID hazard.EventID
		var cell hazard.CellID
		var level string
		if err := rows.Scan(&eventID, &cell, &level); err != nil {
			return nil, err
		}
		v, err := parseFloat(level)
		if err != nil {
			return nil, fmt.Errorf("water level %s/%s: %w", eventID, cell, err)
		}
		set.Events[index[eventID]].WaterLevels[cell] = v
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return &set, nil
}

// ListEventSets returns the summary of every stored set, ordered by ID.
func (s *Store) ListEventSets(ctx context.Context) ([]hazard.EventSetSummary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		"SELECT id, name, event_count, cell_count, created_at FROM event_sets ORDER BY id")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	sets := []hazard.EventSetSummary{}
	for rows.Next() {
		var sum hazard.EventSetSummary
		var createdAt string
		if err := rows.Scan(&sum.ID, &sum.Name, &sum.EventCount, &sum.CellCount, &createdAt); err != nil {
			return nil, err
		}
		sum.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
		sets = append(sets, sum)
	}
	return sets, rows.Err()
}

// DeleteEventSet removes a set with its events and water levels.
func (s *Store) DeleteEventSet(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, "DELETE FROM event_sets WHERE id = ?", id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return hazard.ErrEventSetNotFound
	}
	return nil
}

// =============================================================================
// TERRAIN STORE
// =============================================================================

// TerrainSummary is the listing entry of a stored terrain model.
type TerrainSummary struct {
	ID        string
	Name      string
	Datum     string
	CellCount int
	CreatedAt time.Time
}

// SaveTerrain stores a terrain model, replacing any model with the same ID.
// Non-finite elevations are not stored; the cell is missing on reload.
func (s *Store) SaveTerrain(ctx context.Context, t hazard.ElevationModel) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer sqlTx.Rollback()

	if _, err := sqlTx.ExecContext(ctx, "DELETE FROM terrains WHERE id = ?", t.ID); err != nil {
		return fmt.Errorf("failed to replace terrain: %w", err)
	}

	count := 0
	for _, z := range t.Elevations {
		if isFinite(z) {
			count++
		}
	}
	_, err = sqlTx.ExecContext(ctx,
		"INSERT INTO terrains (id, name, datum, cell_count, created_at) VALUES (?, ?, ?, ?, ?)",
		t.ID, t.Name, t.VDatum, count, time.Now().UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("failed to insert terrain: %w", err)
	}

	stmt, err := sqlTx.PrepareContext(ctx,
		"INSERT INTO elevations (terrain_id, cell_id, elevation) VALUES (?, ?, ?)")
	if err != nil {
		return err
	}
	defer stmt.Close()

	for cell, z := range t.Elevations {
		if !isFinite(z) {
			continue
		}
		if _, err := stmt.ExecContext(ctx, t.ID, cell, formatFloat(z)); err != nil {
			return fmt.Errorf("failed to insert elevation %s: %w", cell, err)
		}
	}

	return sqlTx.Commit()
}

// LoadTerrain returns hazard.ErrTerrainNotFound if id is unknown.
func (s *Store) LoadTerrain(ctx context.Context, id string) (*hazard.ElevationModel, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	t := hazard.ElevationModel{ID: id, Elevations: make(map[hazard.CellID]float64)}
	err := s.db.QueryRowContext(ctx,
		"SELECT name, datum FROM terrains WHERE id = ?", id,
	).Scan(&t.Name, &t.VDatum)
	if err == sql.ErrNoRows {
		return nil, hazard.ErrTerrainNotFound
	}
	if err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx,
		"SELECT cell_id, elevation FROM elevations WHERE terrain_id = ?", id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var cell hazard.CellID
		var z string
		if err := rows.Scan(&cell, &z); err != nil {
			return nil, err
		}
		if t.Elevations[cell], err = parseFloat(z); err != nil {
			return nil, fmt.Errorf("elevation %s: %w", cell, err)
		}
	}
	return &t, rows.Err()
}

// ListTerrains returns all terrain models, ordered by ID.
func (s *Store) ListTerrains(ctx context.Context) ([]TerrainSummary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		"SELECT id, name, datum, cell_count, created_at FROM terrains ORDER BY id")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	terrains := []TerrainSummary{}
	for rows.Next() {
		var t TerrainSummary
		var createdAt string
		if err := rows.Scan(&t.ID, &t.Name, &t.Datum, &t.CellCount, &createdAt); err != nil {
			return nil, err
		}
		t.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
		terrains = append(terrains, t)
	}
	return terrains, rows.Err()
}

// =============================================================================
// RUN STORE
// =============================================================================

// RunStatus is the lifecycle state of a queued computation.
type RunStatus string

const (
	RunPending   RunStatus = "pending"
	RunRunning   RunStatus = "running"
	RunCompleted RunStatus = "completed"
	RunFailed    RunStatus = "failed"
)

// RunRecord is a queued return-period computation.
type RunRecord struct {
	ID              string
	EventSetID      string
	TerrainID       string // empty when WaterLevelsOnly
	ReturnPeriods   []float64
	MinDepth        float64
	WaterLevelsOnly bool
	Status          RunStatus
	CellCount       int
	Error           string
	StartedAt       *time.Time
	CompletedAt     *time.Time
	CreatedAt       time.Time
}

// SaveRun inserts or updates a run record.
func (s *Store) SaveRun(ctx context.Context, r RunRecord) error {
	rps := make([]decimal.Decimal, len(r.ReturnPeriods))
	for i, t := range r.ReturnPeriods {
		if !isFinite(t) {
			return fmt.Errorf("run %s: return period %v is not finite", r.ID, t)
		}
		rps[i] = decimal.NewFromFloat(t)
	}
	rpJSON, err := json.Marshal(rps)
	if err != nil {
		return err
	}
	if !isFinite(r.MinDepth) {
		return fmt.Errorf("run %s: minimum depth %v is not finite", r.ID, r.MinDepth)
	}
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now().UTC()
	}
	if r.Status == "" {
		r.Status = RunPending
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	query := `
		INSERT INTO runs (id, event_set_id, terrain_id, return_periods_json, min_depth,
			water_levels_only, status, cell_count, error, started_at, completed_at, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			status = excluded.status,
			cell_count = excluded.cell_count,
			error = excluded.error,
			started_at = excluded.started_at,
			completed_at = excluded.completed_at
	`

	_, err = s.db.ExecContext(ctx, query,
		r.ID, r.EventSetID, r.TerrainID, string(rpJSON), formatFloat(r.MinDepth),
		r.WaterLevelsOnly, r.Status, r.CellCount, r.Error,
		formatTimePtr(r.StartedAt), formatTimePtr(r.CompletedAt), r.CreatedAt.Format(time.RFC3339),
	)
	return err
}

const runColumns = `id, event_set_id, terrain_id, return_periods_json, min_depth,
	water_levels_only, status, cell_count, error, started_at, completed_at, created_at`

// GetRun returns hazard.ErrRunNotFound if id is unknown.
func (s *Store) GetRun(ctx context.Context, id string) (*RunRecord, error) {
	runs, err := s.queryRuns(ctx, "SELECT "+runColumns+" FROM runs WHERE id = ?", id)
	if err != nil {
		return nil, err
	}
	if len(runs) == 0 {
		return nil, hazard.ErrRunNotFound
	}
	return &runs[0], nil
}

// ListRuns returns runs, newest first. An empty status returns every run.
func (s *Store) ListRuns(ctx context.Context, status RunStatus) ([]RunRecord, error) {
	if status != "" {
		return s.queryRuns(ctx,
			"SELECT "+runColumns+" FROM runs WHERE status = ? ORDER BY created_at DESC, id", status)
	}
	return s.queryRuns(ctx, "SELECT "+runColumns+" FROM runs ORDER BY created_at DESC, id")
}

// ListPendingRuns returns pending runs, oldest first.
func (s *Store) ListPendingRuns(ctx context.Context) ([]RunRecord, error) {
	return s.queryRuns(ctx,
		"SELECT "+runColumns+" FROM runs WHERE status = ? ORDER BY created_at, id", RunPending)
}

func (s *Store) queryRuns(ctx context.Context, query string, args ...any) ([]RunRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	runs := []RunRecord{}
	for rows.Next() {
		var r RunRecord
		var rpJSON, minDepth, createdAt string
		var startedAt, completedAt sql.NullString
		if err := rows.Scan(
			&r.ID, &r.EventSetID, &r.TerrainID, &rpJSON, &minDepth,
			&r.WaterLevelsOnly, &r.Status, &r.CellCount, &r.Error,
			&startedAt, &completedAt, &createdAt,
		); err != nil {
			return nil, err
		}

		var rps []decimal.Decimal
		if err := json.Unmarshal([]byte(rpJSON), &rps); err != nil {
			return nil, fmt.Errorf("run %s return periods: %w", r.ID, err)
		}
		r.ReturnPeriods = make([]float64, len(rps))
		for i, d := range rps {
			r.ReturnPeriods[i], _ = d.Float64()
		}
		if r.MinDepth, err = parseFloat(minDepth); err != nil {
			return nil, fmt.Errorf("run %s min depth: %w", r.ID, err)
		}

		r.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
		r.StartedAt = parseTimePtr(startedAt)
		r.CompletedAt = parseTimePtr(completedAt)

		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// SaveRunResults stores the result map of a run, replacing earlier results.
func (s *Store) SaveRunResults(ctx context.Context, runID string, m *hazard.ReturnPeriodMap) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer sqlTx.Rollback()

	if _, err := sqlTx.ExecContext(ctx, "DELETE FROM run_results WHERE run_id = ?", runID); err != nil {
		return err
	}

	stmt, err := sqlTx.PrepareContext(ctx, `
		INSERT INTO run_results (run_id, cell_id, rp_index, return_period, water_level, depth)
		VALUES (?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	rps := make([]string, len(m.ReturnPeriods))
	for j, t := range m.ReturnPeriods {
		rps[j] = formatFloat(t)
	}
	for _, cell := range m.Cells {
		levels := m.WaterLevels[cell]
		var depths []float64
		if m.Depths != nil {
			depths = m.Depths[cell]
		}
		for j := range m.ReturnPeriods {
			var depth sql.NullString
			if depths != nil {
				depth = sql.NullString{String: formatFloat(depths[j]), Valid: true}
			}
			if _, err := stmt.ExecContext(ctx, runID, cell, j, rps[j], formatFloat(levels[j]), depth); err != nil {
				if isForeignKeyError(err) {
					return hazard.ErrRunNotFound
				}
				return fmt.Errorf("failed to insert result %s/%d: %w", cell, j, err)
			}
		}
	}

	return sqlTx.Commit()
}

// LoadRunResults rebuilds the result map of a run. Cells come back sorted
// and return periods in their original request order.
func (s *Store) LoadRunResults(ctx context.Context, runID string) (*hazard.ReturnPeriodMap, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var exists int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM runs WHERE id = ?", runID).Scan(&exists); err != nil {
		return nil, err
	}
	if exists == 0 {
		return nil, hazard.ErrRunNotFound
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT cell_id, rp_index, return_period, water_level, depth
		FROM run_results WHERE run_id = ?
		ORDER BY cell_id, rp_index
	`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	m := &hazard.ReturnPeriodMap{WaterLevels: make(map[hazard.CellID][]float64)}
	depths := make(map[hazard.CellID][]float64)
	hasDepth := false

	for rows.Next() {
		var cell hazard.CellID
		var idx int
		var rp, level string
		var depth sql.NullString
		if err := rows.Scan(&cell, &idx, &rp, &level, &depth); err != nil {
			return nil, err
		}

		if n := len(m.Cells); n == 0 || m.Cells[n-1] != cell {
			m.Cells = append(m.Cells, cell)
		}
		if len(m.Cells) == 1 {
			t, err := parseFloat(rp)
			if err != nil {
				return nil, err
			}
			m.ReturnPeriods = append(m.ReturnPeriods, t)
		}

		v, err := parseFloat(level)
		if err != nil {
			return nil, err
		}
		m.WaterLevels[cell] = append(m.WaterLevels[cell], v)

		if depth.Valid {
			hasDepth = true
			d, err := parseFloat(depth.String)
			if err != nil {
				return nil, err
			}
			depths[cell] = append(depths[cell], d)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(m.Cells) == 0 {
		return nil, ErrNoResults
	}
	if hasDepth {
		m.Depths = depths
	}
	return m, nil
}

// =============================================================================
// UTILITIES
// =============================================================================

// Reset clears all data (for testing/demo).
func (s *Store) Reset(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tables := []string{"run_results", "runs", "elevations", "terrains", "water_levels", "events", "event_sets"}
	for _, table := range tables {
		if _, err := s.db.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return err
		}
	}
	return nil
}

// Helper functions

func formatFloat(v float64) string {
	return decimal.NewFromFloat(v).String()
}

func parseFloat(s string) (float64, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, err
	}
	f, _ := d.Float64()
	return f, nil
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

func formatTimePtr(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := t.UTC().Format(time.RFC3339)
	return &s
}

func parseTimePtr(s sql.NullString) *time.Time {
	if !s.Valid {
		return nil
	}
	t, err := time.Parse(time.RFC3339, s.String)
	if err != nil {
		return nil
	}
	return &t
}

func isForeignKeyError(err error) bool {
	return err != nil && strings.Contains(err.Error(), "FOREIGN KEY constraint failed")
}
