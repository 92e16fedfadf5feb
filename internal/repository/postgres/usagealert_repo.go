package postgres

import (
	"context"
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"

	"github.com/flexprice/flexprice/internal/aggregation"
	domainbm "github.com/flexprice/flexprice/internal/domain/billablemetric"
	domainevent "github.com/flexprice/flexprice/internal/domain/event"
	domainsub "github.com/flexprice/flexprice/internal/domain/subscription"
	domainusagealert "github.com/flexprice/flexprice/internal/domain/usagealert"
	ierr "github.com/flexprice/flexprice/internal/errors"
	"github.com/flexprice/flexprice/internal/postgres"
	"github.com/flexprice/flexprice/internal/types"
)

// UsageAlertRepository implements usagealerts.Repository: persisting a
// UsageAlert's trigger state and each individual firing.
type UsageAlertRepository struct {
	db postgres.IClient
}

// NewUsageAlertRepository builds a UsageAlertRepository.
func NewUsageAlertRepository(db postgres.IClient) *UsageAlertRepository {
	return &UsageAlertRepository{db: db}
}

func (r *UsageAlertRepository) Update(ctx context.Context, alert *domainusagealert.UsageAlert) error {
	const q = `
		UPDATE usage_alerts
		SET times_triggered = :times_triggered, triggered_at = :triggered_at, updated_at = now()
		WHERE id = :id`
	if _, err := r.db.Querier(ctx).NamedExec(q, alert); err != nil {
		return ierr.WithError(err).WithMessage("failed to update usage alert").Mark(ierr.ErrDatabase)
	}
	return nil
}

func (r *UsageAlertRepository) RecordTrigger(ctx context.Context, trigger *domainusagealert.Trigger) error {
	trigger.ID = types.GenerateUUID()
	const q = `
		INSERT INTO usage_alert_triggers (id, usage_alert_id, usage, triggered_at)
		VALUES (:id, :usage_alert_id, :usage, :triggered_at)`
	if _, err := r.db.Querier(ctx).NamedExec(q, trigger); err != nil {
		return ierr.WithError(err).WithMessage("failed to record usage alert trigger").Mark(ierr.ErrDatabase)
	}
	return nil
}

// ActiveForSubscription lists a subscription's usage alerts.
func (r *UsageAlertRepository) ActiveForSubscription(ctx context.Context, subscriptionID string) ([]*domainusagealert.UsageAlert, error) {
	const q = `SELECT * FROM usage_alerts WHERE subscription_id = $1`
	var alerts []*domainusagealert.UsageAlert
	if err := r.db.Querier(ctx).SelectContext(ctx, &alerts, q, subscriptionID); err != nil {
		return nil, ierr.WithError(err).WithMessage("failed to load usage alerts").Mark(ierr.ErrDatabase)
	}
	return alerts, nil
}

// UsageSource implements usagealerts.UsageSource by aggregating stored
// events the same way the rating service does, scoped to one metric code.
type UsageSource struct {
	db      postgres.IClient
	metrics *BillableMetricByCodeRepository
}

// NewUsageSource builds a UsageSource.
func NewUsageSource(db postgres.IClient, metrics *BillableMetricByCodeRepository) *UsageSource {
	return &UsageSource{db: db, metrics: metrics}
}

func (r *UsageSource) CurrentUsage(ctx context.Context, subscriptionID, metricCode string, periodStart, periodEnd time.Time) (decimal.Decimal, error) {
	const subQ = `SELECT * FROM subscriptions WHERE id = $1`
	var sub domainsub.Subscription
	if err := r.db.Querier(ctx).GetContext(ctx, &sub, subQ, subscriptionID); err != nil {
		return decimal.Zero, ierr.WithError(err).WithMessage("failed to load subscription").Mark(ierr.ErrNotFound)
	}

	metric, err := r.metrics.GetByCode(ctx, sub.TenantID, metricCode)
	if err != nil {
		return decimal.Zero, err
	}

	const eventQ = `
		SELECT id, tenant_id, transaction_id, external_customer_id, code, timestamp, properties, created_at
		FROM events
		WHERE tenant_id = $1 AND code = $2 AND external_customer_id = $3 AND timestamp >= $4 AND timestamp < $5`
	var rows []eventRow
	if err := r.db.Querier(ctx).SelectContext(ctx, &rows, eventQ, sub.TenantID, metricCode, sub.ExternalID, periodStart, periodEnd); err != nil {
		return decimal.Zero, ierr.WithError(err).WithMessage("failed to load events for usage alert evaluation").Mark(ierr.ErrDatabase)
	}

	events := make([]*domainevent.Event, 0, len(rows))
	for _, row := range rows {
		var props map[string]interface{}
		if err := json.Unmarshal(row.Properties, &props); err != nil {
			return decimal.Zero, ierr.WithError(err).WithMessage("failed to unmarshal event properties").Mark(ierr.ErrDatabase)
		}
		events = append(events, &domainevent.Event{ID: row.ID, TenantID: row.TenantID, Code: row.Code, Timestamp: row.Timestamp, Properties: props})
	}

	result, err := aggregation.Aggregate(events, aggregation.Metric{
		AggregationType:   metric.AggregationType,
		FieldName:         metric.FieldName,
		Rounding:          metric.RoundingFunction,
		RoundingPrecision: metric.RoundingPrecision,
	}, aggregation.Filter{})
	if err != nil {
		return decimal.Zero, err
	}
	return result.Value, nil
}

// BillableMetricByCodeRepository looks up a BillableMetric by its
// tenant-unique code, the key usagealerts and rating both index by.
type BillableMetricByCodeRepository struct {
	db postgres.IClient
}

// NewBillableMetricByCodeRepository builds a BillableMetricByCodeRepository.
func NewBillableMetricByCodeRepository(db postgres.IClient) *BillableMetricByCodeRepository {
	return &BillableMetricByCodeRepository{db: db}
}

func (r *BillableMetricByCodeRepository) GetByCode(ctx context.Context, tenantID, code string) (*domainbm.BillableMetric, error) {
	const q = `SELECT * FROM billable_metrics WHERE tenant_id = $1 AND code = $2`
	var m domainbm.BillableMetric
	if err := r.db.Querier(ctx).GetContext(ctx, &m, q, tenantID, code); err != nil {
		return nil, ierr.WithError(err).WithMessage("failed to load billable metric").Mark(ierr.ErrNotFound)
	}
	return &m, nil
}
