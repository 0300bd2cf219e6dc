// Package jobs schedules ingestion runs and chains enrichment after each
// successful ingestion. Only one run executes at a time.
package jobs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"tradesync/internal/enrichment"
	"tradesync/internal/jobs/lock"
	"tradesync/internal/platform/config"
	"tradesync/internal/platform/metrics"
	"tradesync/internal/trade/ingest"
	audit "tradesync/pkg/platform/audit"
)

// ErrRunInProgress is returned when another run holds the run lock.
var ErrRunInProgress = errors.New("run already in progress")

const runLockKey = "trade-run"

// Ingestor is the ingestion side of a run.
type Ingestor interface {
	Import(ctx context.Context) (ingest.RunResult, error)
	UpdateRecent(ctx context.Context) (ingest.RunResult, error)
}

// Enricher is the enrichment side of a run.
type Enricher interface {
	Run(ctx context.Context) (enrichment.Result, error)
}

// Report is the outcome of one run.
type Report struct {
	RunID      string
	Mode       string
	Ingest     ingest.RunResult
	Enrichment enrichment.Result
	StartedAt  time.Time
	Duration   time.Duration
}

type Runner struct {
	ingestor Ingestor
	enricher Enricher
	locker   lock.Locker
	schedule config.Schedule
	logger   *slog.Logger
	metrics  *metrics.Metrics
	audit    audit.Emitter
}

type Option func(*Runner)

func WithLogger(logger *slog.Logger) Option {
	return func(r *Runner) {
		r.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(r *Runner) {
		r.metrics = m
	}
}

func WithAuditEmitter(e audit.Emitter) Option {
	return func(r *Runner) {
		r.audit = e
	}
}

// WithLocker replaces the process-local run lock, e.g. with a Redis one
// shared across replicas.
func WithLocker(l lock.Locker) Option {
	return func(r *Runner) {
		r.locker = l
	}
}

func New(ingestor Ingestor, enricher Enricher, schedule config.Schedule, opts ...Option) (*Runner, error) {
	if ingestor == nil {
		return nil, errors.New("ingestor is required")
	}
	if enricher == nil {
		return nil, errors.New("enricher is required")
	}
	if schedule.Mode == "" {
		schedule.Mode = config.ModeUpdate
	}
	if schedule.LockTTL <= 0 {
		schedule.LockTTL = 2 * time.Hour
	}
	r := &Runner{
		ingestor: ingestor,
		enricher: enricher,
		locker:   lock.NewMemory(),
		schedule: schedule,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// RunOnce executes one run in mode: ingestion, then enrichment. It returns
// ErrRunInProgress without doing anything when the run lock is taken.
// Enrichment is skipped when ingestion was cancelled.
func (r *Runner) RunOnce(ctx context.Context, mode string) (Report, error) {
	token, ok, err := r.locker.TryLock(ctx, runLockKey, r.schedule.LockTTL)
	if err != nil {
		return Report{}, fmt.Errorf("acquire run lock: %w", err)
	}
	if !ok {
		r.logger.Info("skipping run, another run holds the lock", "mode", mode)
		return Report{}, ErrRunInProgress
	}
	defer func() {
		// detached so a cancelled run still frees the lock
		releaseCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		if err := r.locker.Unlock(releaseCtx, runLockKey, token); err != nil {
			r.logger.Warn("releasing run lock failed", "error", err)
		}
	}()

	runID := ingest.RunIDFrom(ctx)
	if runID == "" {
		runID = uuid.NewString()
		ctx = ingest.WithRunID(ctx, runID)
	}
	report := Report{RunID: runID, Mode: mode, StartedAt: time.Now()}
	logger := r.logger.With("run_id", runID, "mode", mode)

	logger.Info("run started")
	r.emit(ctx, audit.Event{Type: audit.EventRunStarted, RunID: runID, Mode: mode})

	report.Ingest, err = r.ingest(ctx, mode)
	if err == nil {
		report.Enrichment, err = r.enricher.Run(ctx)
		if err != nil {
			err = fmt.Errorf("enrich organizations: %w", err)
		}
	} else {
		err = fmt.Errorf("ingest %s: %w", mode, err)
	}
	report.Duration = time.Since(report.StartedAt)

	outcome := "success"
	if err != nil {
		outcome = "failure"
	} else if len(report.Ingest.IncompleteDates()) > 0 || report.Ingest.FailedBatches > 0 {
		outcome = "partial"
	}
	r.metrics.ObserveRun(mode, outcome, report.Duration)

	totals := report.Ingest.Totals
	logger.Info("run completed",
		"outcome", outcome,
		"duration", report.Duration,
		"received", totals.Received,
		"inserted", totals.Inserted,
		"updated", totals.Updated,
		"skipped", totals.Skipped,
		"rejected", totals.Rejected,
		"failed_batches", report.Ingest.FailedBatches,
		"incomplete_dates", report.Ingest.IncompleteDates(),
		"organizations_created", report.Enrichment.Created,
		"organizations_updated", report.Enrichment.Updated,
	)
	event := audit.Event{
		Type:  audit.EventRunCompleted,
		RunID: runID,
		Mode:  mode,
		Counts: map[string]int{
			"received":              totals.Received,
			"inserted":              totals.Inserted,
			"updated":               totals.Updated,
			"skipped":               totals.Skipped,
			"rejected":              totals.Rejected,
			"failed_batches":        report.Ingest.FailedBatches,
			"incomplete_dates":      len(report.Ingest.IncompleteDates()),
			"organizations_created": report.Enrichment.Created,
			"organizations_updated": report.Enrichment.Updated,
		},
		Reason: outcome,
	}
	if err != nil {
		event.Reason = err.Error()
	}
	r.emit(ctx, event)

	return report, err
}

func (r *Runner) ingest(ctx context.Context, mode string) (ingest.RunResult, error) {
	if mode == config.ModeImport {
		return r.ingestor.Import(ctx)
	}
	return r.ingestor.UpdateRecent(ctx)
}

// Start runs an update at startup when configured, then the configured mode
// every Interval until ctx is cancelled. A run still holding the lock when
// the next tick fires makes that tick a no-op.
func (r *Runner) Start(ctx context.Context) error {
	if r.schedule.RunOnStart {
		r.runLogged(ctx, config.ModeUpdate)
	}
	if r.schedule.Interval <= 0 {
		<-ctx.Done()
		return nil
	}

	ticker := time.NewTicker(r.schedule.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			r.runLogged(ctx, r.schedule.Mode)
		case <-ctx.Done():
			return nil
		}
	}
}

func (r *Runner) runLogged(ctx context.Context, mode string) {
	if _, err := r.RunOnce(ctx, mode); err != nil {
		if errors.Is(err, ErrRunInProgress) || ctx.Err() != nil {
			return
		}
		r.logger.Error("run failed", "mode", mode, "error", err)
	}
}

func (r *Runner) emit(ctx context.Context, event audit.Event) {
	if r.audit == nil {
		return
	}
	if err := r.audit.Emit(ctx, event); err != nil {
		r.logger.Debug("audit emit failed", "type", event.Type, "error", err)
	}
}
