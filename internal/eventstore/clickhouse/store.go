// Package clickhouse is the optional columnar mirror of the relational
// event store (spec §4.1). When configured, aggregation reads prefer it
// over Postgres; the relational store stays authoritative for the
// (tenant_id, transaction_id) idempotency guarantee.
package clickhouse

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	clickhouse_go "github.com/ClickHouse/clickhouse-go/v2"
	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"

	"github.com/flexprice/flexprice/internal/config"
	"github.com/flexprice/flexprice/internal/domain/event"
	ierr "github.com/flexprice/flexprice/internal/errors"
	"github.com/flexprice/flexprice/internal/types"
)

// Store is the ClickHouse-backed eventstore.ColumnarMirror.
type Store struct {
	conn driver.Conn
}

// New opens a ClickHouse connection from config. Callers should only
// construct this when cfg.ClickHouse.Enabled is true.
func New(cfg *config.Configuration) (*Store, error) {
	conn, err := clickhouse_go.Open(cfg.ClickHouse.GetClientOptions())
	if err != nil {
		return nil, fmt.Errorf("init clickhouse client: %w", err)
	}
	return &Store{conn: conn}, nil
}

func (s *Store) Close() error {
	return s.conn.Close()
}

type eventRow struct {
	ID                 string
	TenantID           string
	TransactionID      string
	ExternalCustomerID string
	Code               string
	Timestamp          time.Time
	Properties         string
}

// Insert batch-appends newly ingested events to the mirror. Duplicate
// suppression already happened against the relational store; this mirror
// only ever receives events known to be new.
func (s *Store) Insert(ctx context.Context, tenantID string, events []*event.Event) error {
	if len(events) == 0 {
		return nil
	}

	batch, err := s.conn.PrepareBatch(ctx, `
		INSERT INTO events (id, tenant_id, transaction_id, external_customer_id, code, timestamp, properties)
	`)
	if err != nil {
		return ierr.WithError(err).WithMessage("failed to prepare clickhouse batch").Mark(ierr.ErrTransient)
	}

	for _, e := range events {
		props, err := json.Marshal(e.Properties)
		if err != nil {
			return ierr.WithError(err).WithMessage("failed to marshal event properties").Mark(ierr.ErrValidation)
		}
		if err := batch.Append(
			types.GenerateUUID(),
			tenantID,
			e.TransactionID,
			e.ExternalCustomerID,
			e.Code,
			e.Timestamp,
			string(props),
		); err != nil {
			return ierr.WithError(err).WithMessage("failed to append event to clickhouse batch").Mark(ierr.ErrTransient)
		}
	}

	if err := batch.Send(); err != nil {
		return ierr.WithError(err).WithMessage("failed to send clickhouse batch").Mark(ierr.ErrTransient)
	}
	return nil
}

// Find matches the relational store's semantics: exact equality per
// propertyFilters key, using ClickHouse's JSONExtractString rather than
// Postgres's ->> operator.
func (s *Store) Find(ctx context.Context, tenantID, code, externalCustomerID string, from, to time.Time, propertyFilters map[string][]string) ([]*event.Event, error) {
	q := `
		SELECT id, tenant_id, transaction_id, external_customer_id, code, timestamp, properties
		FROM events
		WHERE tenant_id = ? AND code = ? AND external_customer_id = ?
			AND timestamp >= ? AND timestamp < ?`
	args := []interface{}{tenantID, code, externalCustomerID, from, to}
	for key, values := range propertyFilters {
		if len(values) == 0 {
			continue
		}
		q += " AND JSONExtractString(properties, '" + key + "') = ?"
		args = append(args, values[0])
	}

	rows, err := s.conn.Query(ctx, q, args...)
	if err != nil {
		return nil, ierr.WithError(err).WithMessage("failed to query clickhouse events").Mark(ierr.ErrTransient)
	}
	defer rows.Close()

	var result []*event.Event
	for rows.Next() {
		var row eventRow
		if err := rows.Scan(&row.ID, &row.TenantID, &row.TransactionID, &row.ExternalCustomerID, &row.Code, &row.Timestamp, &row.Properties); err != nil {
			return nil, ierr.WithError(err).WithMessage("failed to scan clickhouse event row").Mark(ierr.ErrTransient)
		}
		var props map[string]interface{}
		if err := json.Unmarshal([]byte(row.Properties), &props); err != nil {
			return nil, ierr.WithError(err).WithMessage("failed to unmarshal event properties").Mark(ierr.ErrTransient)
		}
		result = append(result, &event.Event{
			ID:                 row.ID,
			TenantID:           row.TenantID,
			TransactionID:      row.TransactionID,
			ExternalCustomerID: row.ExternalCustomerID,
			Code:               row.Code,
			Timestamp:          row.Timestamp,
			Properties:         props,
		})
	}
	return result, rows.Err()
}
