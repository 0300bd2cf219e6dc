// Package enrichment fills in registry metadata for identifiers that appear
// in trade records but have no organization row yet. With refresh enabled it
// also revisits stored organizations that still have empty fields.
package enrichment

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/time/rate"

	"tradesync/internal/platform/metrics"
	"tradesync/internal/registry"
	"tradesync/internal/trade/models"
	audit "tradesync/pkg/platform/audit"
	"tradesync/pkg/platform/sentinel"
	platformstrings "tradesync/pkg/platform/strings"
)

// Store is the organization side of the trade store.
type Store interface {
	FindIdentifiersMissingOrganization(ctx context.Context) ([]string, error)
	FindIncompleteOrganizations(ctx context.Context) ([]string, error)
	FindOrganization(ctx context.Context, identifier string) (*models.Organization, error)
	UpsertOrganization(ctx context.Context, org *models.Organization) error
}

// Registry resolves identifiers. Malformed identifiers come back nil, nil.
type Registry interface {
	LookupLegal(ctx context.Context, tin string) (*registry.LegalInfo, error)
	LookupIndividual(ctx context.Context, pinfl string) (*registry.IndividualInfo, error)
}

// Result counts what one enrichment run did with its candidates.
type Result struct {
	Candidates  int
	Created     int
	Updated     int
	Unchanged   int
	NotFound    int
	Failed      int
	RateLimited int
	Skipped     int
}

const defaultSpacing = 300 * time.Millisecond

type Service struct {
	store    Store
	registry Registry
	limiter  *rate.Limiter
	logger   *slog.Logger
	metrics  *metrics.Metrics
	audit    audit.Emitter
	tracer   trace.Tracer
	now      func() time.Time

	refreshIncomplete bool
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

// WithSpacing sets the minimum gap between two registry lookups.
// Zero disables spacing.
func WithSpacing(d time.Duration) Option {
	return func(s *Service) {
		if d <= 0 {
			s.limiter = rate.NewLimiter(rate.Inf, 1)
			return
		}
		s.limiter = rate.NewLimiter(rate.Every(d), 1)
	}
}

// WithRefreshIncomplete adds stored organizations with empty fields to the
// candidates so a later lookup can fill them in.
func WithRefreshIncomplete(enabled bool) Option {
	return func(s *Service) {
		s.refreshIncomplete = enabled
	}
}

func New(store Store, reg Registry, opts ...Option) (*Service, error) {
	if store == nil {
		return nil, errors.New("organization store is required")
	}
	if reg == nil {
		return nil, errors.New("registry client is required")
	}
	s := &Service{
		store:    store,
		registry: reg,
		limiter:  rate.NewLimiter(rate.Every(defaultSpacing), 1),
		logger:   slog.Default(),
		tracer:   otel.Tracer("tradesync/enrichment"),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Run enriches every identifier missing an organization, one at a time.
// A failed lookup skips that identifier; only store listing failures and
// cancellation end the run early.
func (s *Service) Run(ctx context.Context) (Result, error) {
	ctx, span := s.tracer.Start(ctx, "enrichment.run")
	defer span.End()

	var result Result
	ids, err := s.candidates(ctx)
	if err != nil {
		return result, err
	}
	result.Candidates = len(ids)
	span.SetAttributes(attribute.Int("candidates", len(ids)))
	if len(ids) == 0 {
		return result, nil
	}
	s.logger.Info("enriching organizations", "candidates", len(ids))

	for _, id := range ids {
		if err := s.enrichOne(ctx, id, &result); err != nil {
			return result, err
		}
		if err := ctx.Err(); err != nil {
			return result, err
		}
	}

	s.logger.Info("enrichment finished",
		"candidates", result.Candidates,
		"created", result.Created,
		"updated", result.Updated,
		"unchanged", result.Unchanged,
		"not_found", result.NotFound,
		"failed", result.Failed,
		"rate_limited", result.RateLimited,
		"skipped", result.Skipped,
	)
	return result, nil
}

func (s *Service) candidates(ctx context.Context) ([]string, error) {
	ids, err := s.store.FindIdentifiersMissingOrganization(ctx)
	if err != nil {
		return nil, fmt.Errorf("find identifiers missing organization: %w", err)
	}
	if s.refreshIncomplete {
		incomplete, err := s.store.FindIncompleteOrganizations(ctx)
		if err != nil {
			return nil, fmt.Errorf("find incomplete organizations: %w", err)
		}
		ids = append(ids, incomplete...)
	}
	return platformstrings.DedupeAndTrim(ids), nil
}

// enrichOne returns an error only when ctx ends while waiting for a
// registry slot.
func (s *Service) enrichOne(ctx context.Context, id string, result *Result) error {
	kind, err := models.PartyKindOf(id)
	if err != nil {
		result.Skipped++
		s.metrics.IncEnrichment("unknown", "skipped")
		s.logger.Warn("skipping identifier with unexpected shape", "identifier", id, "error", err)
		return nil
	}

	if err := s.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("waiting for registry slot: %w", err)
	}
	incoming, err := s.lookup(ctx, kind, id)
	switch {
	case err != nil:
		s.recordLookupFailure(ctx, kind, id, err, result)
		return nil
	case incoming == nil || incoming.Empty():
		result.NotFound++
		s.metrics.IncEnrichment(string(kind), "not_found")
		s.logger.Info("registry has no entry", "identifier", id, "kind", kind)
		return nil
	}

	outcome, err := s.merge(ctx, incoming)
	if err != nil {
		result.Failed++
		s.metrics.IncEnrichment(string(kind), "failed")
		s.logger.Error("saving organization failed", "identifier", id, "error", err)
		return nil
	}
	switch outcome {
	case "created":
		result.Created++
	case "updated":
		result.Updated++
	default:
		result.Unchanged++
	}
	s.metrics.IncEnrichment(string(kind), outcome)
	s.emit(ctx, audit.Event{
		Type:       audit.EventOrganizationEnriched,
		Identifier: id,
		Reason:     outcome,
	})
	return nil
}

func (s *Service) lookup(ctx context.Context, kind models.PartyKind, id string) (*models.Organization, error) {
	if kind == models.PartyLegal {
		info, err := s.registry.LookupLegal(ctx, id)
		if err != nil || info == nil {
			return nil, err
		}
		return info.ToOrganization(id), nil
	}
	info, err := s.registry.LookupIndividual(ctx, id)
	if err != nil || info == nil {
		return nil, err
	}
	return info.ToOrganization(id), nil
}

func (s *Service) recordLookupFailure(ctx context.Context, kind models.PartyKind, id string, err error, result *Result) {
	switch registry.CategoryOf(err) {
	case registry.ErrorNotFound:
		result.NotFound++
		s.metrics.IncEnrichment(string(kind), "not_found")
		s.logger.Info("registry has no entry", "identifier", id, "kind", kind)
	case registry.ErrorRateLimited:
		result.RateLimited++
		s.metrics.IncEnrichment(string(kind), "rate_limited")
		s.logger.Warn("registry rate limited lookup", "identifier", id, "kind", kind)
		s.emit(ctx, audit.Event{
			Type:       audit.EventRegistryRateLimited,
			Identifier: id,
			Reason:     err.Error(),
		})
	default:
		result.Failed++
		s.metrics.IncEnrichment(string(kind), "failed")
		s.logger.Error("registry lookup failed",
			"identifier", id,
			"kind", kind,
			"category", registry.CategoryOf(err),
			"error", err,
		)
	}
}

// merge applies incoming onto the stored organization and reports
// "created", "updated" or "unchanged".
func (s *Service) merge(ctx context.Context, incoming *models.Organization) (string, error) {
	existing, err := s.store.FindOrganization(ctx, incoming.Identifier)
	switch {
	case errors.Is(err, sentinel.ErrNotFound):
		incoming.UpdatedAt = s.now().UTC()
		if err := s.store.UpsertOrganization(ctx, incoming); err != nil {
			return "", fmt.Errorf("insert organization: %w", err)
		}
		return "created", nil
	case err != nil:
		return "", fmt.Errorf("find organization: %w", err)
	}

	if !existing.Merge(incoming) {
		return "unchanged", nil
	}
	existing.UpdatedAt = s.now().UTC()
	if err := s.store.UpsertOrganization(ctx, existing); err != nil {
		return "", fmt.Errorf("update organization: %w", err)
	}
	return "updated", nil
}

func (s *Service) emit(ctx context.Context, event audit.Event) {
	if s.audit == nil {
		return
	}
	if err := s.audit.Emit(ctx, event); err != nil {
		s.logger.Debug("audit emit failed", "type", event.Type, "error", err)
	}
}
