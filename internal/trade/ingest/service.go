// Package ingest drives the paginated fetch of trade declarations for one
// date or a range of dates and feeds the records to the upsert engine in
// fixed-size batches.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"tradesync/internal/platform/metrics"
	"tradesync/internal/trade/fetcher"
	"tradesync/internal/trade/models"
	audit "tradesync/pkg/platform/audit"
)

// PageFetcher returns one page of one date. An unavailable page comes back
// as an error wrapping fetcher.ErrPageUnavailable.
type PageFetcher interface {
	Fetch(ctx context.Context, req fetcher.PageRequest) (*models.PageResponse, error)
}

// BatchUpserter persists one batch transactionally.
type BatchUpserter interface {
	Upsert(ctx context.Context, batch []models.InboundRecord) (models.BatchResult, error)
}

// Config sizes the pipeline.
type Config struct {
	FetchConcurrency int
	PersistWorkers   int
	BatchSize        int
	LookbackDays     int
}

// Service runs ingestion.
type Service struct {
	pages   PageFetcher
	sink    BatchUpserter
	cfg     Config
	logger  *slog.Logger
	metrics *metrics.Metrics
	audit   audit.Emitter
	tracer  trace.Tracer
	now     func() time.Time
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

func WithAuditEmitter(e audit.Emitter) Option {
	return func(s *Service) {
		s.audit = e
	}
}

// WithClock overrides the source of "today".
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		s.now = now
	}
}

func New(pages PageFetcher, sink BatchUpserter, cfg Config, opts ...Option) (*Service, error) {
	if pages == nil {
		return nil, errors.New("page fetcher is required")
	}
	if sink == nil {
		return nil, errors.New("batch upserter is required")
	}
	if cfg.FetchConcurrency <= 0 {
		cfg.FetchConcurrency = 5
	}
	if cfg.PersistWorkers <= 0 {
		cfg.PersistWorkers = 4
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 500
	}
	if cfg.LookbackDays < 0 {
		cfg.LookbackDays = 0
	}
	s := &Service{
		pages:  pages,
		sink:   sink,
		cfg:    cfg,
		logger: slog.Default(),
		tracer: otel.Tracer("tradesync/ingest"),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Today returns the current calendar date at UTC midnight.
func (s *Service) Today() time.Time {
	return truncateDate(s.now())
}

// Import ingests today's declarations.
func (s *Service) Import(ctx context.Context) (RunResult, error) {
	today := s.Today()
	return s.Update(ctx, today, today)
}

// UpdateRecent ingests [today-LookbackDays, today].
func (s *Service) UpdateRecent(ctx context.Context) (RunResult, error) {
	today := s.Today()
	return s.Update(ctx, today.AddDate(0, 0, -s.cfg.LookbackDays), today)
}

// Update ingests every calendar date of the inclusive range, one date at a
// time. Each date is an independent page sequence.
func (s *Service) Update(ctx context.Context, from, to time.Time) (RunResult, error) {
	from, to = truncateDate(from), truncateDate(to)
	if from.After(to) {
		return RunResult{}, fmt.Errorf("invalid date range %s..%s", from.Format(models.DateLayout), to.Format(models.DateLayout))
	}
	ctx, runID := ensureRunID(ctx)
	result := RunResult{RunID: runID}

	ctx, span := s.tracer.Start(ctx, "ingest.update", trace.WithAttributes(
		attribute.String("run_id", runID),
		attribute.String("from", from.Format(models.DateLayout)),
		attribute.String("to", to.Format(models.DateLayout)),
	))
	defer span.End()

	for date := from; !date.After(to); date = date.AddDate(0, 0, 1) {
		dr, err := s.IngestDate(ctx, date)
		result.add(dr)
		if err != nil {
			span.SetStatus(codes.Error, err.Error())
			return result, err
		}
	}
	return result, nil
}

// IngestDate paginates one date to its end. Page 1 is fetched first to learn
// the total; the remaining pages are issued lazily with at most
// FetchConcurrency requests in flight. Batch failures are logged and
// counted; only cancellation of ctx is returned as an error.
func (s *Service) IngestDate(ctx context.Context, date time.Time) (DateResult, error) {
	date = truncateDate(date)
	dateStr := date.Format(models.DateLayout)
	ctx, runID := ensureRunID(ctx)
	logger := s.logger.With("run_id", runID, "date", dateStr)

	ctx, span := s.tracer.Start(ctx, "ingest.date", trace.WithAttributes(attribute.String("date", dateStr)))
	defer span.End()

	result := DateResult{Date: date}

	first, err := s.pages.Fetch(ctx, fetcher.PageRequest{Date: date, Page: 1})
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return result, ctxErr
		}
		s.markIncomplete(ctx, &result, runID, 1, err)
		return result, nil
	}
	if first.IsEmpty() {
		logger.Info("no trade data for date")
		return result, nil
	}

	bound := &pageBound{last: max(first.TotalPages, 1)}
	var boundMu sync.Mutex

	pages := make(chan []models.InboundRecord, s.cfg.FetchConcurrency)
	batches := make(chan []models.InboundRecord, s.cfg.PersistWorkers)

	var resultMu sync.Mutex
	var persist sync.WaitGroup
	for range s.cfg.PersistWorkers {
		persist.Add(1)
		go func() {
			defer persist.Done()
			for batch := range batches {
				s.persistBatch(ctx, logger, runID, dateStr, batch, &result, &resultMu)
			}
		}()
	}

	rebatched := make(chan struct{})
	go func() {
		defer close(rebatched)
		defer close(batches)
		s.rebatch(pages, batches)
	}()

	accept := func(records []models.InboundRecord) bool {
		select {
		case pages <- records:
			resultMu.Lock()
			result.PagesAccepted++
			result.Records += len(records)
			resultMu.Unlock()
			return true
		case <-ctx.Done():
			return false
		}
	}
	accept(first.Records)

	var fetches errgroup.Group
	fetches.SetLimit(s.cfg.FetchConcurrency)
	for page := 2; ctx.Err() == nil; page++ {
		boundMu.Lock()
		stop := bound.halted || page > bound.last
		boundMu.Unlock()
		if stop {
			break
		}

		fetches.Go(func() error {
			boundMu.Lock()
			skip := bound.halted || page > bound.last
			boundMu.Unlock()
			if skip {
				return nil
			}

			resp, err := s.pages.Fetch(ctx, fetcher.PageRequest{Date: date, Page: page})
			boundMu.Lock()
			switch {
			case err != nil:
				if ctx.Err() == nil {
					bound.halted = true
					boundMu.Unlock()
					resultMu.Lock()
					s.markIncomplete(ctx, &result, runID, page, err)
					resultMu.Unlock()
					return nil
				}
				boundMu.Unlock()
				return nil
			case resp.IsEmpty():
				bound.shrink(page - 1)
				boundMu.Unlock()
				return nil
			}
			if resp.TotalPages > 0 {
				bound.shrink(resp.TotalPages)
			}
			late := page > bound.last
			boundMu.Unlock()

			if late {
				resultMu.Lock()
				result.PagesDropped++
				resultMu.Unlock()
				logger.Debug("discarding page beyond reported total", "page", page)
				return nil
			}
			accept(resp.Records)
			return nil
		})
	}

	_ = fetches.Wait()
	close(pages)
	<-rebatched
	persist.Wait()

	logger.Info("date ingested",
		"pages", result.PagesAccepted,
		"records", result.Records,
		"batches", result.Batches,
		"failed_batches", result.FailedBatches,
		"inserted", result.Totals.Inserted,
		"updated", result.Totals.Updated,
		"skipped", result.Totals.Skipped,
		"rejected", result.Totals.Rejected,
		"incomplete", result.Incomplete,
	)
	span.SetAttributes(
		attribute.Int("pages", result.PagesAccepted),
		attribute.Int("records", result.Records),
		attribute.Bool("incomplete", result.Incomplete),
	)
	if err := ctx.Err(); err != nil {
		return result, err
	}
	return result, nil
}

// rebatch flattens accepted pages into BatchSize chunks in acceptance order.
func (s *Service) rebatch(pages <-chan []models.InboundRecord, batches chan<- []models.InboundRecord) {
	buf := make([]models.InboundRecord, 0, s.cfg.BatchSize)
	for records := range pages {
		for len(records) > 0 {
			n := min(s.cfg.BatchSize-len(buf), len(records))
			buf = append(buf, records[:n]...)
			records = records[n:]
			if len(buf) == s.cfg.BatchSize {
				batches <- buf
				buf = make([]models.InboundRecord, 0, s.cfg.BatchSize)
			}
		}
	}
	if len(buf) > 0 {
		batches <- buf
	}
}

func (s *Service) persistBatch(ctx context.Context, logger *slog.Logger, runID, date string, batch []models.InboundRecord, result *DateResult, mu *sync.Mutex) {
	r, err := s.sink.Upsert(ctx, batch)

	mu.Lock()
	result.Batches++
	batchNo := result.Batches
	if err != nil {
		result.FailedBatches++
		result.Totals.Received += r.Received
		result.Totals.Rejected += r.Rejected
	} else {
		result.Totals.Add(r)
	}
	mu.Unlock()

	if err != nil {
		logger.Error("batch failed", "batch", batchNo, "size", len(batch), "error", err)
		s.emit(ctx, audit.Event{
			Type:   audit.EventBatchFailed,
			RunID:  runID,
			Date:   date,
			Counts: map[string]int{"size": len(batch)},
			Reason: err.Error(),
		})
		return
	}
	logger.Debug("batch persisted",
		"batch", batchNo,
		"received", r.Received,
		"inserted", r.Inserted,
		"updated", r.Updated,
		"skipped", r.Skipped,
		"rejected", r.Rejected,
	)
	s.emit(ctx, audit.Event{
		Type:  audit.EventBatchPersisted,
		RunID: runID,
		Date:  date,
		Counts: map[string]int{
			"received": r.Received,
			"inserted": r.Inserted,
			"updated":  r.Updated,
			"skipped":  r.Skipped,
			"rejected": r.Rejected,
		},
	})
}

// markIncomplete must be called with the result lock held when other
// goroutines may touch result.
func (s *Service) markIncomplete(ctx context.Context, result *DateResult, runID string, page int, cause error) {
	result.Incomplete = true
	date := result.Date.Format(models.DateLayout)
	s.metrics.IncDateIncomplete()
	s.logger.Error("stopping pagination, date left incomplete",
		"run_id", runID,
		"date", date,
		"page", page,
		"error", cause,
	)
	s.emit(ctx, audit.Event{
		Type:   audit.EventDateIncomplete,
		RunID:  runID,
		Date:   date,
		Counts: map[string]int{"page": page},
		Reason: cause.Error(),
	})
}

func (s *Service) emit(ctx context.Context, event audit.Event) {
	if s.audit == nil {
		return
	}
	if err := s.audit.Emit(ctx, event); err != nil {
		s.logger.Debug("audit emit failed", "type", event.Type, "error", err)
	}
}

func truncateDate(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
