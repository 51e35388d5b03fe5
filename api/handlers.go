/*
handlers.go - HTTP API handlers for the flood risk service

PURPOSE:
  Exposes the return-period calculator via REST API. Handles HTTP
  request/response, JSON serialization, and delegates to the hazard
  package and the store.

ENDPOINTS:
  Event sets:
    GET    /api/event-sets                     List stored event sets
    POST   /api/event-sets                     Store an event set (YAML or JSON)
    GET    /api/event-sets/{id}                Event set details
    DELETE /api/event-sets/{id}                Delete an event set
    GET    /api/event-sets/{id}/tables/{cell}  Return-period table of one cell

  Terrain:
    GET    /api/terrains                       List terrain models
    POST   /api/terrains                       Store a terrain model (YAML or JSON)
    GET    /api/terrains/{id}                  Terrain model details

  Computation:
    POST   /api/compute                        Synchronous return-period maps

  Runs:
    GET    /api/runs                           List runs (?status=pending)
    POST   /api/runs                           Queue a run against stored inputs
    GET    /api/runs/{id}                      Run status
    GET    /api/runs/{id}/results              Run results (?precision=2)

  Scenarios:
    GET    /api/scenarios                      List demo scenarios
    POST   /api/scenarios/load                 Load a demo scenario

ARCHITECTURE:
  Handler struct holds all dependencies:
  - Store: Database access
  - Calculator: Configured return-period calculator
  - ReturnPeriods: Default return periods when a request names none
  - Runs: Notified when a run is queued

ERROR HANDLING:
  Errors are returned as JSON with appropriate HTTP status:
  - 400: Malformed body, hazard.InputError
  - 404: Event set, terrain or run not found
  - 409: Run results requested before the run completed
  - 422: hazard.ConfigurationError (terrain join, datum, depth floor)
  - 500: Internal errors

SECURITY NOTE:
  Currently NO authentication or authorization. All endpoints are public.

SEE ALSO:
  - dto.go: Request/response data structures
  - scenarios.go: Demo scenario loaders
  - server.go: Router setup and middleware
  - worker.go: Background run processing
*/
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"sync"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Deltares-research/FloodAdapt-sub000/hazard"
	"github.com/Deltares-research/FloodAdapt-sub000/ingest"
	"github.com/Deltares-research/FloodAdapt-sub000/store/sqlite"
)

// maxBodyBytes bounds uploaded event-set and terrain documents.
const maxBodyBytes = 256 << 20

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// RunNotifier is told when a run has been queued.
type RunNotifier interface {
	Wake()
}

// Handler holds dependencies for HTTP handlers.
type Handler struct {
	Store         *sqlite.Store
	Calculator    *hazard.Calculator
	ReturnPeriods []float64
	Runs          RunNotifier
	Logger        *zap.Logger

	mu              sync.Mutex
	currentScenario string
}

// NewHandler creates a new handler.
func NewHandler(store *sqlite.Store, calc *hazard.Calculator, returnPeriods []float64, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{
		Store:         store,
		Calculator:    calc,
		ReturnPeriods: returnPeriods,
		Logger:        logger,
	}
}

// Health reports liveness.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// =============================================================================
// EVENT SET ENDPOINTS
// =============================================================================

// ListEventSets returns all stored event sets.
func (h *Handler) ListEventSets(w http.ResponseWriter, r *http.Request) {
	sets, err := h.Store.ListEventSets(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list event sets", err)
		return
	}

	dtos := make([]EventSetDTO, len(sets))
	for i, s := range sets {
		dtos[i] = toEventSetDTO(s)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// CreateEventSet stores an event-set document. A set with the same ID is replaced.
func (h *Handler) CreateEventSet(w http.ResponseWriter, r *http.Request) {
	body, err := readBody(w, r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	set, err := ingest.ParseEventSet(body)
	if err != nil {
		writeDomainError(w, "Invalid event set", err)
		return
	}
	if err := h.Store.SaveEventSet(r.Context(), set); err != nil {
		writeDomainError(w, "Failed to store event set", err)
		return
	}

	h.Logger.Info("event set stored",
		zap.String("event_set", set.ID),
		zap.Int("events", len(set.Events)),
		zap.Int("cells", len(set.Cells())))

	writeJSON(w, http.StatusCreated, toEventSetDTO(set.Summary()))
}

// GetEventSet returns a single event set.
func (h *Handler) GetEventSet(w http.ResponseWriter, r *http.Request) {
	set, err := h.Store.LoadEventSet(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(w, "Event set not found", err)
		return
	}
	writeJSON(w, http.StatusOK, toEventSetDetailDTO(set))
}

// DeleteEventSet removes an event set.
func (h *Handler) DeleteEventSet(w http.ResponseWriter, r *http.Request) {
	if err := h.Store.DeleteEventSet(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeDomainError(w, "Failed to delete event set", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// GetReturnPeriodTable returns the exceedance curve of one cell.
func (h *Handler) GetReturnPeriodTable(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	set, err := h.Store.LoadEventSet(r.Context(), id)
	if err != nil {
		writeDomainError(w, "Event set not found", err)
		return
	}

	table, err := set.TableFor(hazard.CellID(chi.URLParam(r, "cell")))
	if err != nil {
		writeError(w, http.StatusNotFound, "Cell not found", err)
		return
	}
	writeJSON(w, http.StatusOK, toTableDTO(id, table))
}

// =============================================================================
// TERRAIN ENDPOINTS
// =============================================================================

// ListTerrains returns all stored terrain models.
func (h *Handler) ListTerrains(w http.ResponseWriter, r *http.Request) {
	terrains, err := h.Store.ListTerrains(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list terrains", err)
		return
	}

	dtos := make([]TerrainDTO, len(terrains))
	for i, t := range terrains {
		dtos[i] = toTerrainDTO(t)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// CreateTerrain stores a terrain document.
func (h *Handler) CreateTerrain(w http.ResponseWriter, r *http.Request) {
	body, err := readBody(w, r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	model, err := ingest.ParseTerrain(body)
	if err != nil {
		writeDomainError(w, "Invalid terrain", err)
		return
	}
	if err := h.Store.SaveTerrain(r.Context(), *model); err != nil {
		writeDomainError(w, "Failed to store terrain", err)
		return
	}

	writeJSON(w, http.StatusCreated, TerrainDTO{
		ID:        model.ID,
		Name:      model.Name,
		Datum:     model.VDatum,
		CellCount: len(model.Elevations),
	})
}

// GetTerrain returns a single terrain model.
func (h *Handler) GetTerrain(w http.ResponseWriter, r *http.Request) {
	model, err := h.Store.LoadTerrain(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(w, "Terrain not found", err)
		return
	}
	writeJSON(w, http.StatusOK, TerrainDTO{
		ID:        model.ID,
		Name:      model.Name,
		Datum:     model.VDatum,
		CellCount: len(model.Elevations),
	})
}

// =============================================================================
// COMPUTE ENDPOINT
// =============================================================================

// Compute runs the calculator synchronously.
func (h *Handler) Compute(w http.ResponseWriter, r *http.Request) {
	var req ComputeRequest
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.Precision != nil && *req.Precision < 0 {
		writeError(w, http.StatusBadRequest, "precision must be a non-negative integer", nil)
		return
	}
	ctx := r.Context()

	set, err := h.resolveEventSet(ctx, req)
	if err != nil {
		writeDomainError(w, "Invalid event set", err)
		return
	}

	rps := req.ReturnPeriods
	if len(rps) == 0 {
		rps = h.ReturnPeriods
	}

	var m *hazard.ReturnPeriodMap
	if req.WaterLevelsOnly {
		m, err = h.Calculator.ComputeWaterLevels(ctx, *set, rps)
	} else {
		var terrain hazard.Terrain
		if terrain, err = h.resolveTerrain(ctx, req); err != nil {
			writeDomainError(w, "Invalid terrain", err)
			return
		}
		opts := h.Calculator.DepthOptions()
		if req.MinDepth != nil {
			opts.MinDepth = *req.MinDepth
		}
		if req.DatumOffset != nil {
			opts.DatumOffset = *req.DatumOffset
		}
		m, err = h.Calculator.ComputeWithOptions(ctx, *set, rps, terrain, opts)
	}
	if err != nil {
		writeDomainError(w, "Computation failed", err)
		return
	}

	dto := toMapDTO(m, req.Precision)
	dto.EventSetID = set.ID
	dto.TerrainID = req.TerrainID
	writeJSON(w, http.StatusOK, dto)
}

func (h *Handler) resolveEventSet(ctx context.Context, req ComputeRequest) (*hazard.EventSet, error) {
	switch {
	case req.EventSet != nil:
		set, err := req.EventSet.EventSet()
		if err != nil {
			return nil, err
		}
		return &set, nil
	case req.EventSetID != "":
		return h.Store.LoadEventSet(ctx, req.EventSetID)
	default:
		return nil, &hazard.InputError{Field: "event_set", Reason: "event_set or event_set_id is required"}
	}
}

// resolveTerrain returns a nil Terrain when the request names none; the
// calculator reports that as a configuration error.
func (h *Handler) resolveTerrain(ctx context.Context, req ComputeRequest) (hazard.Terrain, error) {
	switch {
	case req.Terrain != nil:
		return req.Terrain.ElevationModel()
	case req.TerrainID != "":
		return h.Store.LoadTerrain(ctx, req.TerrainID)
	default:
		return nil, nil
	}
}

// =============================================================================
// RUN ENDPOINTS
// =============================================================================

// ListRuns returns runs, optionally filtered by status.
func (h *Handler) ListRuns(w http.ResponseWriter, r *http.Request) {
	runs, err := h.Store.ListRuns(r.Context(), sqlite.RunStatus(r.URL.Query().Get("status")))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list runs", err)
		return
	}

	dtos := make([]RunDTO, len(runs))
	for i, run := range runs {
		dtos[i] = toRunDTO(run)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// CreateRun queues a computation. Inputs are checked up front so that a
// queued run only fails on problems the calculator itself detects.
func (h *Handler) CreateRun(w http.ResponseWriter, r *http.Request) {
	var req CreateRunRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	ctx := r.Context()

	if req.EventSetID == "" {
		writeError(w, http.StatusBadRequest, "event_set_id is required", nil)
		return
	}
	if !req.WaterLevelsOnly && req.TerrainID == "" {
		writeError(w, http.StatusBadRequest, "terrain_id is required unless water_levels_only is set", nil)
		return
	}

	rps := req.ReturnPeriods
	if len(rps) == 0 {
		rps = h.ReturnPeriods
	}
	if err := hazard.ValidateReturnPeriods(rps); err != nil {
		writeDomainError(w, "Invalid return periods", err)
		return
	}

	opts := h.Calculator.DepthOptions()
	if req.MinDepth != nil {
		opts.MinDepth = *req.MinDepth
	}
	if err := opts.Validate(); err != nil {
		writeDomainError(w, "Invalid depth options", err)
		return
	}

	if _, err := h.Store.LoadEventSet(ctx, req.EventSetID); err != nil {
		writeDomainError(w, "Event set not found", err)
		return
	}
	if !req.WaterLevelsOnly {
		if _, err := h.Store.LoadTerrain(ctx, req.TerrainID); err != nil {
			writeDomainError(w, "Terrain not found", err)
			return
		}
	}

	run := sqlite.RunRecord{
		ID:              uuid.NewString(),
		EventSetID:      req.EventSetID,
		TerrainID:       req.TerrainID,
		ReturnPeriods:   rps,
		MinDepth:        opts.MinDepth,
		WaterLevelsOnly: req.WaterLevelsOnly,
		Status:          sqlite.RunPending,
	}
	if req.WaterLevelsOnly {
		run.TerrainID = ""
	}
	if err := h.Store.SaveRun(ctx, run); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to queue run", err)
		return
	}

	if h.Runs != nil {
		h.Runs.Wake()
	}

	saved, err := h.Store.GetRun(ctx, run.ID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to load run", err)
		return
	}
	writeJSON(w, http.StatusAccepted, toRunDTO(*saved))
}

// GetRun returns a single run.
func (h *Handler) GetRun(w http.ResponseWriter, r *http.Request) {
	run, err := h.Store.GetRun(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(w, "Run not found", err)
		return
	}
	writeJSON(w, http.StatusOK, toRunDTO(*run))
}

// GetRunResults returns the map of a completed run.
func (h *Handler) GetRunResults(w http.ResponseWriter, r *http.Request) {
	var precision *int32
	if p := r.URL.Query().Get("precision"); p != "" {
		n, err := strconv.ParseInt(p, 10, 32)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "precision must be a non-negative integer", err)
			return
		}
		v := int32(n)
		precision = &v
	}

	ctx := r.Context()
	run, err := h.Store.GetRun(ctx, chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(w, "Run not found", err)
		return
	}

	m, err := h.Store.LoadRunResults(ctx, run.ID)
	if err != nil {
		writeDomainError(w, fmt.Sprintf("Run is %s", run.Status), err)
		return
	}

	dto := toMapDTO(m, precision)
	dto.EventSetID = run.EventSetID
	dto.TerrainID = run.TerrainID
	writeJSON(w, http.StatusOK, dto)
}

// ResetDatabase clears all data (dev only).
func (h *Handler) ResetDatabase(w http.ResponseWriter, r *http.Request) {
	if err := h.Store.Reset(r.Context()); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to reset database", err)
		return
	}
	h.mu.Lock()
	h.currentScenario = ""
	h.mu.Unlock()

	writeJSON(w, http.StatusOK, map[string]string{"status": "reset"})
}

// =============================================================================
// HELPERS
// =============================================================================

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}

// writeDomainError picks the status from the error kind.
func writeDomainError(w http.ResponseWriter, message string, err error) {
	status := http.StatusInternalServerError
	switch {
	case hazard.IsInputError(err):
		status = http.StatusBadRequest
	case hazard.IsConfigurationError(err):
		status = http.StatusUnprocessableEntity
	case hazard.IsNotFound(err):
		status = http.StatusNotFound
	case errors.Is(err, sqlite.ErrNoResults):
		status = http.StatusConflict
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		status = http.StatusServiceUnavailable
	}
	writeError(w, status, message, err)
}

func readBody(w http.ResponseWriter, r *http.Request) ([]byte, error) {
	return io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
}
