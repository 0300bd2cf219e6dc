// Package upsert turns batches of inbound declaration lines into persisted
// trade records under the identity-key policy: one row per
// {identifier, commodity code, declaration date, operation kind}, with the
// content hash used to detect value changes under that key.
package upsert

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"tradesync/internal/platform/metrics"
	"tradesync/internal/trade/models"
)

// Store is the persistence surface the engine needs. All calls made from the
// function passed to RunInTx must join the same transaction.
type Store interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context) error) error
	FindExistingHashes(ctx context.Context, hashes []string) (map[string]struct{}, error)
	FindRecordsByIdentityKey(ctx context.Context, key models.IdentityKey) ([]*models.TradeRecord, error)
	UpsertTradeRecords(ctx context.Context, records []*models.TradeRecord) error
}

// Engine validates, dedupes and persists batches.
type Engine struct {
	store   Store
	logger  *slog.Logger
	metrics *metrics.Metrics
}

type Option func(*Engine)

func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(e *Engine) {
		e.metrics = m
	}
}

func New(store Store, opts ...Option) (*Engine, error) {
	if store == nil {
		return nil, errors.New("trade store is required")
	}
	e := &Engine{store: store, logger: slog.Default()}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// Upsert persists one batch inside a single transaction. Rejected and
// in-batch duplicate lines never reach the store. On error nothing from the
// batch is committed and the returned result only carries Received and
// Rejected.
func (e *Engine) Upsert(ctx context.Context, batch []models.InboundRecord) (models.BatchResult, error) {
	start := time.Now()
	result := models.BatchResult{Received: len(batch)}

	candidates, duplicates := e.prepare(batch, &result)
	if len(candidates) == 0 {
		result.Skipped = duplicates
		e.metrics.RecordBatch(result.Received, 0, 0, result.Skipped, result.Rejected, time.Since(start))
		return result, nil
	}

	var inserted, updated, skipped int
	err := e.store.RunInTx(ctx, func(ctx context.Context) error {
		inserted, updated, skipped = 0, 0, 0

		hashes := make([]string, len(candidates))
		for i, c := range candidates {
			hashes[i] = c.Hash
		}
		existing, err := e.store.FindExistingHashes(ctx, hashes)
		if err != nil {
			return err
		}

		writes := make([]*models.TradeRecord, 0, len(candidates))
		for _, candidate := range candidates {
			if _, ok := existing[candidate.Hash]; ok {
				skipped++
				continue
			}
			rows, err := e.store.FindRecordsByIdentityKey(ctx, candidate.Key())
			if err != nil {
				return err
			}
			switch {
			case len(rows) == 0:
				writes = append(writes, candidate)
				inserted++
			case rows[0].Hash == candidate.Hash:
				skipped++
			default:
				row := rows[0]
				row.ApplyContent(candidate)
				writes = append(writes, row)
				updated++
			}
		}
		return e.store.UpsertTradeRecords(ctx, writes)
	})
	if err != nil {
		e.metrics.IncBatchFailure()
		return result, fmt.Errorf("persist batch of %d records: %w", len(candidates), err)
	}

	result.Inserted = inserted
	result.Updated = updated
	result.Skipped = skipped + duplicates
	e.metrics.RecordBatch(result.Received, result.Inserted, result.Updated, result.Skipped, result.Rejected, time.Since(start))
	return result, nil
}

// prepare maps valid lines to trade records, keeping the first occurrence of
// each identity key. It returns the candidates and the number of in-batch
// duplicates dropped.
func (e *Engine) prepare(batch []models.InboundRecord, result *models.BatchResult) ([]*models.TradeRecord, int) {
	seen := make(map[models.IdentityKey]struct{}, len(batch))
	candidates := make([]*models.TradeRecord, 0, len(batch))
	duplicates := 0
	for _, in := range batch {
		record, err := in.ToTradeRecord()
		if err != nil {
			result.Rejected++
			e.logger.Warn("rejected trade record",
				"identifier", in.Identifier,
				"declaration_date", in.DeclarationDate,
				"error", err,
			)
			continue
		}
		key := record.Key()
		if _, ok := seen[key]; ok {
			duplicates++
			continue
		}
		seen[key] = struct{}{}
		candidates = append(candidates, record)
	}
	return candidates, duplicates
}
