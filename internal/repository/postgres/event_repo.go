package postgres

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	domainevent "github.com/flexprice/flexprice/internal/domain/event"
	ierr "github.com/flexprice/flexprice/internal/errors"
	"github.com/flexprice/flexprice/internal/postgres"
	"github.com/flexprice/flexprice/internal/types"
)

// EventRepository implements eventstore.Repository over a relational
// events table with a unique (tenant_id, transaction_id) constraint
// backing the idempotency guarantee (spec §4.1).
type EventRepository struct {
	db postgres.IClient
}

// NewEventRepository builds an EventRepository.
func NewEventRepository(db postgres.IClient) *EventRepository {
	return &EventRepository{db: db}
}

type eventRow struct {
	ID                 string    `db:"id"`
	TenantID           string    `db:"tenant_id"`
	TransactionID      string    `db:"transaction_id"`
	ExternalCustomerID string    `db:"external_customer_id"`
	Code               string    `db:"code"`
	Timestamp          time.Time `db:"timestamp"`
	Properties         []byte    `db:"properties"`
	CreatedAt          time.Time `db:"created_at"`
}

// Insert writes every event not already present for (tenant, transaction_id),
// reporting which transaction_ids were already present as duplicates.
func (r *EventRepository) Insert(ctx context.Context, tenantID string, events []*domainevent.Event) ([]string, error) {
	var duplicates []string
	for _, e := range events {
		props, err := json.Marshal(e.Properties)
		if err != nil {
			return nil, ierr.WithError(err).WithMessage("failed to marshal event properties").Mark(ierr.ErrValidation)
		}
		const q = `
			INSERT INTO events (id, tenant_id, transaction_id, external_customer_id, code, timestamp, properties, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
			ON CONFLICT (tenant_id, transaction_id) DO NOTHING`
		result, err := r.db.Querier(ctx).ExecContext(ctx, q,
			types.GenerateUUID(), tenantID, e.TransactionID, e.ExternalCustomerID, e.Code, e.Timestamp, props, time.Now())
		if err != nil {
			return nil, ierr.WithError(err).WithMessage("failed to insert event").Mark(ierr.ErrDatabase)
		}
		affected, err := result.RowsAffected()
		if err != nil {
			return nil, ierr.WithError(err).WithMessage("failed to read event insert result").Mark(ierr.ErrDatabase)
		}
		if affected == 0 {
			duplicates = append(duplicates, e.TransactionID)
		}
	}
	return duplicates, nil
}

// RatingEventSource adapts EventRepository to rating.EventSource, which has
// no tenantID parameter of its own: the tenant is read from ctx (every
// billingrun call scopes ctx with types.WithTenantID before rating).
type RatingEventSource struct {
	events *EventRepository
}

// NewRatingEventSource builds a RatingEventSource.
func NewRatingEventSource(events *EventRepository) *RatingEventSource {
	return &RatingEventSource{events: events}
}

func (r *RatingEventSource) Find(ctx context.Context, code, externalCustomerID string, from, to time.Time, propertyFilters map[string][]string) ([]*domainevent.Event, error) {
	return r.events.Find(ctx, types.TenantID(ctx), code, externalCustomerID, from, to, propertyFilters)
}

// Find returns events for (tenant, code, customer) within [from, to),
// keeping, for each propertyFilters key with at least one value, the events
// whose properties->>key text equals that key's first value; further values
// for a key are ignored.
func (r *EventRepository) Find(ctx context.Context, tenantID, code, externalCustomerID string, from, to time.Time, propertyFilters map[string][]string) ([]*domainevent.Event, error) {
	q := `
		SELECT id, tenant_id, transaction_id, external_customer_id, code, timestamp, properties, created_at
		FROM events
		WHERE tenant_id = $1 AND code = $2 AND external_customer_id = $3
			AND timestamp >= $4 AND timestamp < $5`
	args := []interface{}{tenantID, code, externalCustomerID, from, to}
	for key, values := range propertyFilters {
		if len(values) == 0 {
			continue
		}
		args = append(args, key, values[0])
		q += " AND properties->>$" + strconv.Itoa(len(args)-1) + " = $" + strconv.Itoa(len(args))
	}

	var rows []eventRow
	if err := r.db.Querier(ctx).SelectContext(ctx, &rows, q, args...); err != nil {
		return nil, ierr.WithError(err).WithMessage("failed to load events").Mark(ierr.ErrDatabase)
	}

	events := make([]*domainevent.Event, 0, len(rows))
	for _, row := range rows {
		var props map[string]interface{}
		if err := json.Unmarshal(row.Properties, &props); err != nil {
			return nil, ierr.WithError(err).WithMessage("failed to unmarshal event properties").Mark(ierr.ErrDatabase)
		}
		events = append(events, &domainevent.Event{
			ID:                 row.ID,
			TenantID:           row.TenantID,
			TransactionID:      row.TransactionID,
			ExternalCustomerID: row.ExternalCustomerID,
			Code:               row.Code,
			Timestamp:          row.Timestamp,
			Properties:         props,
			CreatedAt:          row.CreatedAt,
		})
	}
	return events, nil
}
