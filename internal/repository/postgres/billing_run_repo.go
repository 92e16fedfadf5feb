package postgres

import (
	"context"
	"time"

	domainbm "github.com/flexprice/flexprice/internal/domain/billablemetric"
	domaincharge "github.com/flexprice/flexprice/internal/domain/charge"
	domainplan "github.com/flexprice/flexprice/internal/domain/plan"
	domainsub "github.com/flexprice/flexprice/internal/domain/subscription"
	ierr "github.com/flexprice/flexprice/internal/errors"
	"github.com/flexprice/flexprice/internal/postgres"
	"github.com/flexprice/flexprice/internal/types"
)

// SubscriptionRepository implements billingrun.SubscriptionRepository.
type SubscriptionRepository struct {
	db postgres.IClient
}

// NewSubscriptionRepository builds a SubscriptionRepository.
func NewSubscriptionRepository(db postgres.IClient) *SubscriptionRepository {
	return &SubscriptionRepository{db: db}
}

func (r *SubscriptionRepository) DueForRenewal(ctx context.Context, tenantID string, now time.Time) ([]*domainsub.Subscription, error) {
	const q = `
		SELECT * FROM subscriptions
		WHERE tenant_id = $1 AND status = $2 AND current_period_end <= $3`
	var subs []*domainsub.Subscription
	if err := r.db.Querier(ctx).SelectContext(ctx, &subs, q, tenantID, types.SubscriptionStatusActive, now); err != nil {
		return nil, ierr.WithError(err).WithMessage("failed to load subscriptions due for renewal").Mark(ierr.ErrDatabase)
	}
	return subs, nil
}

func (r *SubscriptionRepository) TrialExpiring(ctx context.Context, tenantID string, now time.Time) ([]*domainsub.Subscription, error) {
	const q = `
		SELECT * FROM subscriptions
		WHERE tenant_id = $1 AND status = $2 AND trial_period_days > 0
			AND subscription_at + (trial_period_days || ' days')::interval <= $3`
	var subs []*domainsub.Subscription
	if err := r.db.Querier(ctx).SelectContext(ctx, &subs, q, tenantID, types.SubscriptionStatusPending, now); err != nil {
		return nil, ierr.WithError(err).WithMessage("failed to load trial-expiring subscriptions").Mark(ierr.ErrDatabase)
	}
	return subs, nil
}

func (r *SubscriptionRepository) AdvancePeriod(ctx context.Context, subscriptionID string, newStart, newEnd time.Time) error {
	const q = `
		UPDATE subscriptions
		SET current_period_start = $1, current_period_end = $2, updated_at = $3
		WHERE id = $4`
	_, err := r.db.Querier(ctx).ExecContext(ctx, q, newStart, newEnd, time.Now(), subscriptionID)
	if err != nil {
		return ierr.WithError(err).WithMessage("failed to advance subscription period").Mark(ierr.ErrDatabase)
	}
	return nil
}

func (r *SubscriptionRepository) ActivateAfterTrial(ctx context.Context, subscriptionID string, startedAt time.Time) error {
	const q = `
		UPDATE subscriptions
		SET status = $1, started_at = $2, updated_at = $2
		WHERE id = $3`
	_, err := r.db.Querier(ctx).ExecContext(ctx, q, types.SubscriptionStatusActive, startedAt, subscriptionID)
	if err != nil {
		return ierr.WithError(err).WithMessage("failed to activate subscription after trial").Mark(ierr.ErrDatabase)
	}
	return nil
}

// PlanRepository implements billingrun.PlanRepository.
type PlanRepository struct {
	db postgres.IClient
}

// NewPlanRepository builds a PlanRepository.
func NewPlanRepository(db postgres.IClient) *PlanRepository {
	return &PlanRepository{db: db}
}

func (r *PlanRepository) Get(ctx context.Context, planID string) (*domainplan.Plan, error) {
	const q = `SELECT * FROM plans WHERE id = $1`
	var p domainplan.Plan
	if err := r.db.Querier(ctx).GetContext(ctx, &p, q, planID); err != nil {
		return nil, ierr.WithError(err).WithMessage("failed to load plan").Mark(ierr.ErrNotFound)
	}
	return &p, nil
}

// ChargeRepository implements billingrun.ChargeRepository.
type ChargeRepository struct {
	db postgres.IClient
}

// NewChargeRepository builds a ChargeRepository.
func NewChargeRepository(db postgres.IClient) *ChargeRepository {
	return &ChargeRepository{db: db}
}

func (r *ChargeRepository) ListByPlan(ctx context.Context, planID string) ([]*domaincharge.Charge, error) {
	const q = `SELECT * FROM charges WHERE plan_id = $1`
	var charges []*domaincharge.Charge
	if err := r.db.Querier(ctx).SelectContext(ctx, &charges, q, planID); err != nil {
		return nil, ierr.WithError(err).WithMessage("failed to load plan charges").Mark(ierr.ErrDatabase)
	}
	return charges, nil
}

// FiltersFor loads a Charge's filters, each with its matching FilterValues.
// The query sets no ORDER BY, so filters come back in whatever order
// Postgres returns them; insertion order is not guaranteed.
func (r *ChargeRepository) FiltersFor(ctx context.Context, chargeID string) ([]domaincharge.Filter, error) {
	const q = `SELECT id, charge_id FROM charge_filters WHERE charge_id = $1`
	var filters []domaincharge.Filter
	if err := r.db.Querier(ctx).SelectContext(ctx, &filters, q, chargeID); err != nil {
		return nil, ierr.WithError(err).WithMessage("failed to load charge filters").Mark(ierr.ErrDatabase)
	}
	for i := range filters {
		const valuesQ = `SELECT metric_filter_key, value FROM charge_filter_values WHERE charge_filter_id = $1`
		if err := r.db.Querier(ctx).SelectContext(ctx, &filters[i].Values, valuesQ, filters[i].ID); err != nil {
			return nil, ierr.WithError(err).WithMessage("failed to load charge filter values").Mark(ierr.ErrDatabase)
		}
	}
	return filters, nil
}

// BillableMetricRepository implements billingrun.BillableMetricRepository.
type BillableMetricRepository struct {
	db postgres.IClient
}

// NewBillableMetricRepository builds a BillableMetricRepository.
func NewBillableMetricRepository(db postgres.IClient) *BillableMetricRepository {
	return &BillableMetricRepository{db: db}
}

func (r *BillableMetricRepository) Get(ctx context.Context, metricID string) (*domainbm.BillableMetric, error) {
	const q = `SELECT * FROM billable_metrics WHERE id = $1`
	var m domainbm.BillableMetric
	if err := r.db.Querier(ctx).GetContext(ctx, &m, q, metricID); err != nil {
		return nil, ierr.WithError(err).WithMessage("failed to load billable metric").Mark(ierr.ErrNotFound)
	}
	return &m, nil
}
