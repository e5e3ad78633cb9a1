// Package sync runs the movement-detection batch job: fetch the remote
// salesperson registry, diff it against the stored directory, persist
// the detected agency movements, then replace the stored directory with
// the fresh snapshot.
package sync

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"ceapulse/internal/config"
	apperrors "ceapulse/internal/errors"
	"ceapulse/internal/infrastructure"
	"ceapulse/internal/movements"
	"ceapulse/internal/store"
	"ceapulse/pkg/contracts/domain"
)

// Step names one stage of a sync run.
type Step string

const (
	StepFetchRemote Step = "fetch_remote"
	StepLoadStored  Step = "load_stored_directory"
	StepDetect      Step = "detect_movements"
	StepPersist     Step = "persist_movements"
	StepUpsert      Step = "upsert_directory"
)

// Status is the terminal state of a sync run.
type Status string

const (
	StatusDone   Status = "done"
	StatusFailed Status = "failed"
)

// Registry fetches the full remote salesperson registry.
type Registry interface {
	FetchAll(ctx context.Context) ([]domain.RegistryRecord, error)
}

// Store is the subset of store operations the sync job needs.
type Store interface {
	LoadDirectory(ctx context.Context) ([]domain.SalespersonInfo, error)
	InsertMovements(ctx context.Context, movements []domain.Movement, batchSize int) error
	UpsertDirectory(ctx context.Context, rows []store.DirectoryRow, batchSize int) (int, error)
}

// RunStats summarizes one sync run for logs and API responses. Sample
// holds at most the configured number of detected movements; the full
// set lives in the store.
type RunStats struct {
	RunID             string            `json:"run_id"`
	Status            Status            `json:"status"`
	StartedAt         time.Time         `json:"started_at"`
	Duration          time.Duration     `json:"duration"`
	RecordsFetched    int               `json:"records_fetched"`
	StoredDirectory   int               `json:"stored_directory_size"`
	MovementsDetected int               `json:"movements_detected"`
	RowsUpserted      int               `json:"rows_upserted"`
	Sample            []domain.Movement `json:"sample,omitempty"`
	FailedStep        Step              `json:"failed_step,omitempty"`
	Error             string            `json:"error,omitempty"`
}

// Orchestrator drives the sync state machine. At most one run may be in
// flight per process; Run fails fast with a sync-in-progress error when
// another run holds the slot.
type Orchestrator struct {
	registry Registry
	store    Store
	cfg      config.SyncConfig
	logger   *slog.Logger
	metrics  *infrastructure.SyncMetrics
	tracer   trace.Tracer
	running  atomic.Bool
}

// NewOrchestrator wires a sync orchestrator. metrics may be nil when
// the caller runs without telemetry.
func NewOrchestrator(registry Registry, st Store, cfg config.SyncConfig, logger *slog.Logger, metrics *infrastructure.SyncMetrics) *Orchestrator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Orchestrator{
		registry: registry,
		store:    st,
		cfg:      cfg,
		logger:   logger.With(slog.String("component", "sync")),
		metrics:  metrics,
		tracer:   otel.Tracer("ceapulse/sync"),
	}
}

// Running reports whether a sync run is currently in flight.
func (o *Orchestrator) Running() bool {
	return o.running.Load()
}

// Run executes one full sync. The persist step runs before the
// directory upsert, so a crash between the two can re-detect the same
// movements on the next run; consumers must tolerate duplicates
// (at-least-once). A persist failure aborts the run with the directory
// untouched, so nothing is lost.
func (o *Orchestrator) Run(ctx context.Context) (*RunStats, error) {
	if !o.running.CompareAndSwap(false, true) {
		return nil, apperrors.ErrSyncInProgress
	}
	defer o.running.Store(false)

	stats := &RunStats{
		RunID:     uuid.NewString(),
		StartedAt: time.Now(),
	}

	ctx, span := o.tracer.Start(ctx, "sync.run",
		trace.WithAttributes(attribute.String("run_id", stats.RunID)))
	defer span.End()

	logger := o.logger.With(slog.String("run_id", stats.RunID))
	logger.InfoContext(ctx, "sync run started")

	err := o.execute(ctx, logger, stats)
	stats.Duration = time.Since(stats.StartedAt)

	if err != nil {
		stats.Status = StatusFailed
		stats.Error = err.Error()
		o.recordRun(ctx, stats)
		span.RecordError(err)
		logger.ErrorContext(ctx, "sync run failed",
			slog.String("step", string(stats.FailedStep)),
			slog.Duration("duration", stats.Duration),
			slog.String("error", err.Error()))
		return stats, err
	}

	stats.Status = StatusDone
	o.recordRun(ctx, stats)
	logger.InfoContext(ctx, "sync run complete",
		slog.Int("records_fetched", stats.RecordsFetched),
		slog.Int("movements_detected", stats.MovementsDetected),
		slog.Int("rows_upserted", stats.RowsUpserted),
		slog.Duration("duration", stats.Duration))
	return stats, nil
}

func (o *Orchestrator) recordRun(ctx context.Context, stats *RunStats) {
	if o.metrics == nil {
		return
	}
	status := metric.WithAttributes(attribute.String("status", string(stats.Status)))
	o.metrics.SyncRuns.Add(ctx, 1, status)
	o.metrics.SyncDuration.Record(ctx, stats.Duration.Seconds(), status)
}

func (o *Orchestrator) execute(ctx context.Context, logger *slog.Logger, stats *RunStats) error {
	var remote []domain.RegistryRecord
	err := o.step(ctx, StepFetchRemote, stats, func(ctx context.Context) error {
		var err error
		remote, err = o.registry.FetchAll(ctx)
		if err == nil {
			stats.RecordsFetched = len(remote)
			if o.metrics != nil {
				o.metrics.RecordsFetched.Add(ctx, int64(len(remote)))
			}
		}
		return err
	})
	if err != nil {
		return err
	}

	var stored map[string]domain.SalespersonInfo
	err = o.step(ctx, StepLoadStored, stats, func(ctx context.Context) error {
		infos, err := o.store.LoadDirectory(ctx)
		if err != nil {
			return err
		}
		stored = movements.BuildLookup(infos)
		stats.StoredDirectory = len(stored)
		return nil
	})
	if err != nil {
		return err
	}

	var detected []domain.Movement
	err = o.step(ctx, StepDetect, stats, func(ctx context.Context) error {
		detected = movements.Detect(remote, stored)
		stats.MovementsDetected = len(detected)
		stats.Sample = sample(detected, o.cfg.MovementSampleSize)
		if o.metrics != nil {
			o.metrics.MovementsDetected.Add(ctx, int64(len(detected)))
		}
		logger.InfoContext(ctx, "movements detected",
			slog.Int("count", len(detected)),
			slog.Int("stored_directory", len(stored)))
		return nil
	})
	if err != nil {
		return err
	}

	if len(detected) > 0 {
		err = o.step(ctx, StepPersist, stats, func(ctx context.Context) error {
			return o.store.InsertMovements(ctx, detected, o.cfg.UpsertBatchSize)
		})
		if err != nil {
			return err
		}
	}

	return o.step(ctx, StepUpsert, stats, func(ctx context.Context) error {
		rows := make([]store.DirectoryRow, 0, len(remote))
		for _, rec := range remote {
			if rec.RegistrationNo == "" {
				continue
			}
			rows = append(rows, store.DirectoryRowFromRegistry(rec))
		}
		written, err := o.store.UpsertDirectory(ctx, rows, o.cfg.UpsertBatchSize)
		stats.RowsUpserted = written
		if o.metrics != nil && written > 0 {
			o.metrics.RowsUpserted.Add(ctx, int64(written))
		}
		return err
	})
}

// step runs fn inside its own span and records the failing step name.
func (o *Orchestrator) step(ctx context.Context, name Step, stats *RunStats, fn func(context.Context) error) error {
	ctx, span := o.tracer.Start(ctx, "sync."+string(name))
	defer span.End()

	if err := fn(ctx); err != nil {
		stats.FailedStep = name
		span.RecordError(err)
		return err
	}
	return nil
}

func sample(detected []domain.Movement, size int) []domain.Movement {
	if size <= 0 || len(detected) == 0 {
		return nil
	}
	if len(detected) < size {
		size = len(detected)
	}
	out := make([]domain.Movement, size)
	copy(out, detected[:size])
	return out
}
