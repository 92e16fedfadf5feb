// Package eventstore implements the idempotent, rate-limited event intake
// contract of spec §4.1: ingest/ingest_batch over a primary relational
// store, with an optional columnar mirror consulted by aggregation when present.
package eventstore

import (
	"context"
	"time"

	"github.com/flexprice/flexprice/internal/domain/event"
	ierr "github.com/flexprice/flexprice/internal/errors"
	"github.com/flexprice/flexprice/internal/logger"
	"github.com/flexprice/flexprice/internal/ratelimit"
	"github.com/flexprice/flexprice/internal/types"
)

// Repository is the primary relational event store.
type Repository interface {
	// Insert durably writes events not already present for (tenant, transaction_id),
	// returning the transaction_ids that already existed (duplicates).
	Insert(ctx context.Context, tenantID string, events []*event.Event) (duplicates []string, err error)

	// Find returns events for (tenant, code, customer) within [from, to), matching
	// propertyFilters exactly on each named key.
	Find(ctx context.Context, tenantID, code, externalCustomerID string, from, to time.Time, propertyFilters map[string][]string) ([]*event.Event, error)
}

// ColumnarMirror is the optional columnar store described in spec §4.1. When
// present, aggregation queries prefer it; it dedups on merge by the same key
// the primary store uses for idempotency.
type ColumnarMirror interface {
	Insert(ctx context.Context, tenantID string, events []*event.Event) error
	Find(ctx context.Context, tenantID, code, externalCustomerID string, from, to time.Time, propertyFilters map[string][]string) ([]*event.Event, error)
}

const MaxBatchSize = 100

// IngestResult reports how many events of a batch were newly stored versus
// already present under the same (organization, transaction_id).
type IngestResult struct {
	Ingested   int `json:"ingested"`
	Duplicates int `json:"duplicates"`
}

type Service struct {
	repo    Repository
	mirror  ColumnarMirror // nil when no columnar mirror is configured
	limiter *ratelimit.Limiter
	logger  *logger.Logger
}

func NewService(repo Repository, mirror ColumnarMirror, limiter *ratelimit.Limiter, logger *logger.Logger) *Service {
	return &Service{repo: repo, mirror: mirror, limiter: limiter, logger: logger}
}

// IngestBatch stores up to MaxBatchSize events, skipping duplicates on
// (organization, transaction_id) without treating them as an error, and
// enforcing the tenant's sliding-window ingestion quota.
func (s *Service) IngestBatch(ctx context.Context, events []*event.Event) (*IngestResult, error) {
	tenantID := types.TenantID(ctx)

	if len(events) == 0 {
		return &IngestResult{}, nil
	}
	if len(events) > MaxBatchSize {
		return nil, ierr.NewError("batch exceeds maximum size").
			WithReportableDetails(map[string]any{"max_batch_size": MaxBatchSize, "size": len(events)}).
			Mark(ierr.ErrValidation)
	}

	for _, e := range events {
		if e.TransactionID == "" || e.Code == "" {
			return nil, ierr.NewError("transaction_id and code are required").
				Mark(ierr.ErrValidation)
		}
	}

	now := time.Now().UTC()
	if !s.limiter.Allow(tenantID, len(events), now) {
		return nil, ierr.NewError("tenant ingestion rate limit exceeded").
			Mark(ierr.ErrRateLimited)
	}

	duplicates, err := s.repo.Insert(ctx, tenantID, events)
	if err != nil {
		return nil, ierr.WithError(err).WithMessage("failed to persist events").Mark(ierr.ErrTransient)
	}

	duplicateSet := make(map[string]bool, len(duplicates))
	for _, id := range duplicates {
		duplicateSet[id] = true
	}

	newEvents := make([]*event.Event, 0, len(events))
	for _, e := range events {
		if !duplicateSet[e.TransactionID] {
			newEvents = append(newEvents, e)
		}
	}

	s.limiter.Record(tenantID, len(events), now)

	if s.mirror != nil && len(newEvents) > 0 {
		if err := s.mirror.Insert(ctx, tenantID, newEvents); err != nil {
			s.logger.WithContext(ctx).Errorw("columnar mirror insert failed", "error", err)
		}
	}

	s.logger.WithContext(ctx).Debugw("ingested events",
		"ingested", len(newEvents), "duplicates", len(duplicates))

	return &IngestResult{Ingested: len(newEvents), Duplicates: len(duplicates)}, nil
}

// Ingest stores a single event; it is IngestBatch of one.
func (s *Service) Ingest(ctx context.Context, e *event.Event) (*IngestResult, error) {
	return s.IngestBatch(ctx, []*event.Event{e})
}

// Find returns matching events for aggregation, preferring the columnar
// mirror when configured.
func (s *Service) Find(ctx context.Context, code, externalCustomerID string, from, to time.Time, propertyFilters map[string][]string) ([]*event.Event, error) {
	tenantID := types.TenantID(ctx)
	if s.mirror != nil {
		return s.mirror.Find(ctx, tenantID, code, externalCustomerID, from, to, propertyFilters)
	}
	return s.repo.Find(ctx, tenantID, code, externalCustomerID, from, to, propertyFilters)
}
