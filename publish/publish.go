/*
Package publish hands completed return-period maps to the impact model.

PURPOSE:
  The damage / expected-annual-damage model runs elsewhere. When a run
  completes, its depth maps are published as one JSON message on a NATS
  subject that the impact model subscribes to.

MESSAGE:
  {
    "id": "<uuid>",
    "type": "run.completed",
    "timestamp": "...",
    "run_id": "...",
    "event_set_id": "...",
    "terrain_id": "...",
    "return_periods": [1, 2, 5],
    "cells": ["c001", "c002"],
    "water_levels": [[...per cell...], ...],   // one row per return period
    "depths": [[...per cell...], ...]          // omitted for water-level runs
  }

  Rows are per return period and columns follow "cells", the raster-like
  layout the impact model reads.
*/
package publish

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"github.com/Deltares-research/FloodAdapt-sub000/hazard"
)

// EventTypeRunCompleted is the message type of a completed run.
const EventTypeRunCompleted = "run.completed"

// Publisher sends completed runs downstream.
type Publisher interface {
	PublishRun(ctx context.Context, run RunInfo, m *hazard.ReturnPeriodMap) error
	Close() error
}

// RunInfo identifies the run a map belongs to.
type RunInfo struct {
	RunID      string
	EventSetID string
	TerrainID  string
}

// RunCompleted is the wire message.
type RunCompleted struct {
	ID            uuid.UUID   `json:"id"`
	Type          string      `json:"type"`
	Timestamp     time.Time   `json:"timestamp"`
	RunID         string      `json:"run_id"`
	EventSetID    string      `json:"event_set_id"`
	TerrainID     string      `json:"terrain_id,omitempty"`
	ReturnPeriods []float64   `json:"return_periods"`
	Cells         []string    `json:"cells"`
	WaterLevels   [][]float64 `json:"water_levels"`
	Depths        [][]float64 `json:"depths,omitempty"`
}

// NewRunCompleted builds the message for a run and its map.
func NewRunCompleted(run RunInfo, m *hazard.ReturnPeriodMap) RunCompleted {
	msg := RunCompleted{
		ID:            uuid.New(),
		Type:          EventTypeRunCompleted,
		Timestamp:     time.Now().UTC(),
		RunID:         run.RunID,
		EventSetID:    run.EventSetID,
		TerrainID:     run.TerrainID,
		ReturnPeriods: m.ReturnPeriods,
		Cells:         make([]string, len(m.Cells)),
		WaterLevels:   transpose(m.Cells, m.WaterLevels, len(m.ReturnPeriods)),
	}
	for i, c := range m.Cells {
		msg.Cells[i] = string(c)
	}
	if m.Depths != nil {
		msg.Depths = transpose(m.Cells, m.Depths, len(m.ReturnPeriods))
	}
	return msg
}

func transpose(cells []hazard.CellID, values map[hazard.CellID][]float64, nrp int) [][]float64 {
	out := make([][]float64, nrp)
	for j := range out {
		out[j] = make([]float64, len(cells))
		for i, c := range cells {
			out[j][i] = values[c][j]
		}
	}
	return out
}

// =============================================================================
// NATS
// =============================================================================

// Config holds NATS configuration
type Config struct {
	URL            string
	Subject        string
	Name           string
	ConnectTimeout time.Duration
	ReconnectWait  time.Duration
	MaxReconnects  int
}

// conn is the subset of *nats.Conn used here.
type conn interface {
	Publish(subj string, data []byte) error
	FlushWithContext(ctx context.Context) error
	Close()
}

// DefaultFlushTimeout bounds the flush when neither the caller's context
// nor the configuration sets a deadline.
const DefaultFlushTimeout = 5 * time.Second

// NATSPublisher publishes run results on a NATS subject.
type NATSPublisher struct {
	conn         conn
	subject      string
	flushTimeout time.Duration
	logger       *zap.Logger
}

// NewNATSPublisher connects to the NATS server in cfg.
func NewNATSPublisher(cfg Config, logger *zap.Logger) (*NATSPublisher, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	opts := []nats.Option{
		nats.Name(cfg.Name),
		nats.ReconnectWait(cfg.ReconnectWait),
		nats.MaxReconnects(cfg.MaxReconnects),
		nats.Timeout(cfg.ConnectTimeout),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			logger.Warn("nats disconnected", zap.Error(err))
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logger.Info("nats reconnected", zap.String("url", nc.ConnectedUrl()))
		}),
	}

	nc, err := nats.Connect(cfg.URL, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}
	return newNATSPublisher(nc, cfg.Subject, cfg.ConnectTimeout, logger), nil
}

func newNATSPublisher(c conn, subject string, flushTimeout time.Duration, logger *zap.Logger) *NATSPublisher {
	if flushTimeout <= 0 {
		flushTimeout = DefaultFlushTimeout
	}
	return &NATSPublisher{conn: c, subject: subject, flushTimeout: flushTimeout, logger: logger}
}

// PublishRun publishes the run and flushes, so a nil error means the
// server has the message.
func (p *NATSPublisher) PublishRun(ctx context.Context, run RunInfo, m *hazard.ReturnPeriodMap) error {
	payload, err := json.Marshal(NewRunCompleted(run, m))
	if err != nil {
		return fmt.Errorf("failed to marshal run %s: %w", run.RunID, err)
	}
	if err := p.conn.Publish(p.subject, payload); err != nil {
		return fmt.Errorf("failed to publish run %s: %w", run.RunID, err)
	}
	// nats refuses to flush on a context without a deadline
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.flushTimeout)
		defer cancel()
	}
	if err := p.conn.FlushWithContext(ctx); err != nil {
		return fmt.Errorf("failed to flush run %s: %w", run.RunID, err)
	}

	p.logger.Info("run published",
		zap.String("run_id", run.RunID),
		zap.String("subject", p.subject),
		zap.Int("bytes", len(payload)))
	return nil
}

// Close closes the connection.
func (p *NATSPublisher) Close() error {
	p.conn.Close()
	return nil
}

// =============================================================================
// NOP
// =============================================================================

// Nop discards every run. Used when publishing is disabled.
type Nop struct{}

func (Nop) PublishRun(context.Context, RunInfo, *hazard.ReturnPeriodMap) error { return nil }

func (Nop) Close() error { return nil }
