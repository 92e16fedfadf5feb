// Package billingrun drives the two subscription-lifecycle tasks the
// scheduler's periodic_invoicing and trial_expiry cron jobs invoke (spec
// §4.10): for each subscription whose period just ended, rate its charges
// and hand the fees to the Invoice Assembler; for each subscription whose
// trial just ended, flip it to active billing (generating an immediate
// invoice when pay_in_advance is set).
package billingrun

import (
	"context"
	"time"

	"github.com/flexprice/flexprice/internal/domain/billablemetric"
	"github.com/flexprice/flexprice/internal/domain/charge"
	"github.com/flexprice/flexprice/internal/domain/fee"
	"github.com/flexprice/flexprice/internal/domain/invoice"
	"github.com/flexprice/flexprice/internal/domain/plan"
	"github.com/flexprice/flexprice/internal/domain/subscription"
	ierr "github.com/flexprice/flexprice/internal/errors"
	"github.com/flexprice/flexprice/internal/invoicing"
	"github.com/flexprice/flexprice/internal/logger"
	"github.com/flexprice/flexprice/internal/rating"
	"github.com/flexprice/flexprice/internal/types"
)

// SubscriptionRepository is the persistence boundary for subscriptions
// entering or leaving a billing period.
type SubscriptionRepository interface {
	DueForRenewal(ctx context.Context, tenantID string, now time.Time) ([]*subscription.Subscription, error)
	TrialExpiring(ctx context.Context, tenantID string, now time.Time) ([]*subscription.Subscription, error)
	AdvancePeriod(ctx context.Context, subscriptionID string, newStart, newEnd time.Time) error
	ActivateAfterTrial(ctx context.Context, subscriptionID string, startedAt time.Time) error
}

// PlanRepository loads a subscription's plan.
type PlanRepository interface {
	Get(ctx context.Context, planID string) (*plan.Plan, error)
}

// ChargeRepository loads a plan's charges and their filters.
type ChargeRepository interface {
	ListByPlan(ctx context.Context, planID string) ([]*charge.Charge, error)
	FiltersFor(ctx context.Context, chargeID string) ([]charge.Filter, error)
}

// BillableMetricRepository loads the metric a charge rates against.
type BillableMetricRepository interface {
	Get(ctx context.Context, metricID string) (*billablemetric.BillableMetric, error)
}

// InvoiceRepository persists the finalize transition invoicing.Finalize
// applies in memory.
type InvoiceRepository interface {
	Finalize(ctx context.Context, inv *invoice.Invoice) error
}

// Publisher emits the webhook an invoice finalization triggers.
type Publisher interface {
	PublishInvoiceFinalized(ctx context.Context, inv *invoice.Invoice) error
}

// Orchestrator ties rating and invoicing together for one subscription's period.
type Orchestrator struct {
	subs      SubscriptionRepository
	plans     PlanRepository
	charges   ChargeRepository
	metrics   BillableMetricRepository
	rating    *rating.Service
	assembler *invoicing.Assembler
	wallets   invoicing.WalletSettler
	invoices  InvoiceRepository
	publisher Publisher
	logger    *logger.Logger
}

// New builds an Orchestrator.
func New(subs SubscriptionRepository, plans PlanRepository, charges ChargeRepository, metrics BillableMetricRepository, rating *rating.Service, assembler *invoicing.Assembler, wallets invoicing.WalletSettler, invoices InvoiceRepository, publisher Publisher, logger *logger.Logger) *Orchestrator {
	return &Orchestrator{subs: subs, plans: plans, charges: charges, metrics: metrics, rating: rating, assembler: assembler, wallets: wallets, invoices: invoices, publisher: publisher, logger: logger}
}

// RunPeriodicInvoicing rates and invoices every subscription of tenantID
// whose current period has just ended, then advances it to the next period.
func (o *Orchestrator) RunPeriodicInvoicing(ctx context.Context, tenantID string, now time.Time) error {
	ctx = types.WithTenantID(ctx, tenantID)
	subs, err := o.subs.DueForRenewal(ctx, tenantID, now)
	if err != nil {
		return err
	}
	for _, sub := range subs {
		if sub.IsPaused() {
			continue
		}
		p, err := o.plans.Get(ctx, sub.PlanID)
		if err != nil {
			o.logger.Errorw("failed to load plan for subscription", "subscription_id", sub.ID, "error", err)
			continue
		}
		if err := o.invoiceSubscriptionPeriod(ctx, sub, p, now); err != nil {
			o.logger.Errorw("periodic invoicing failed for subscription", "subscription_id", sub.ID, "error", err)
			continue
		}
		nextStart := sub.CurrentPeriodEnd
		nextEnd := nextPeriodEnd(nextStart, p.Interval)
		if err := o.subs.AdvancePeriod(ctx, sub.ID, nextStart, nextEnd); err != nil {
			o.logger.Errorw("failed to advance subscription period", "subscription_id", sub.ID, "error", err)
		}
	}
	return nil
}

// RunTrialExpiry activates every subscription of tenantID whose trial has
// just ended, generating an immediate invoice when the plan bills in advance.
func (o *Orchestrator) RunTrialExpiry(ctx context.Context, tenantID string, now time.Time) error {
	ctx = types.WithTenantID(ctx, tenantID)
	subs, err := o.subs.TrialExpiring(ctx, tenantID, now)
	if err != nil {
		return err
	}
	for _, sub := range subs {
		if err := o.subs.ActivateAfterTrial(ctx, sub.ID, now); err != nil {
			o.logger.Errorw("failed to activate subscription after trial", "subscription_id", sub.ID, "error", err)
			continue
		}
		if !sub.PayInAdvance {
			continue
		}
		sub.Status = types.SubscriptionStatusActive
		p, err := o.plans.Get(ctx, sub.PlanID)
		if err != nil {
			o.logger.Errorw("failed to load plan for subscription", "subscription_id", sub.ID, "error", err)
			continue
		}
		if err := o.invoiceSubscriptionPeriod(ctx, sub, p, now); err != nil {
			o.logger.Errorw("failed to generate initial invoice after trial", "subscription_id", sub.ID, "error", err)
		}
	}
	return nil
}

func (o *Orchestrator) invoiceSubscriptionPeriod(ctx context.Context, sub *subscription.Subscription, p *plan.Plan, now time.Time) error {
	charges, err := o.charges.ListByPlan(ctx, p.ID)
	if err != nil {
		return err
	}

	var fees []*fee.Fee
	fees = append(fees, rating.RateSubscriptionFee(sub.ID, sub.CustomerID, p.AmountCents))

	for _, c := range charges {
		metric, err := o.metrics.Get(ctx, c.MetricID)
		if err != nil {
			return err
		}
		filters, err := o.charges.FiltersFor(ctx, c.ID)
		if err != nil {
			return err
		}
		in := rating.ChargeInput{Charge: c, Metric: metric, Filters: filters}
		f, err := o.rating.RateCharge(ctx, in, sub.ID, sub.CustomerID, sub.ExternalID, sub.CurrentPeriodStart, sub.CurrentPeriodEnd)
		if err != nil {
			return ierr.WithError(err).WithMessage("failed to rate charge").Mark(ierr.ErrTransient)
		}
		fees = append(fees, f)
	}

	subscriptionID := sub.ID
	inv, assembledFees, err := o.assembler.Assemble(ctx, sub.TenantID, sub.CustomerID, &subscriptionID,
		types.InvoiceTypeSubscription, p.Currency, sub.CurrentPeriodStart, sub.CurrentPeriodEnd, fees, now)
	if err != nil {
		return err
	}

	if err := invoicing.Finalize(ctx, inv, assembledFees, o.wallets, now); err != nil {
		return ierr.WithError(err).WithMessage("failed to finalize invoice").Mark(ierr.ErrTransient)
	}
	if err := o.invoices.Finalize(ctx, inv); err != nil {
		return err
	}

	if o.publisher != nil {
		if err := o.publisher.PublishInvoiceFinalized(ctx, inv); err != nil {
			o.logger.Errorw("failed to publish invoice.finalized webhook", "invoice_id", inv.ID, "error", err)
		}
	}
	return nil
}

func nextPeriodEnd(start time.Time, interval types.BillingInterval) time.Time {
	switch interval {
	case types.BillingIntervalWeekly:
		return start.AddDate(0, 0, 7)
	case types.BillingIntervalQuarterly:
		return start.AddDate(0, 3, 0)
	case types.BillingIntervalYearly:
		return start.AddDate(1, 0, 0)
	default:
		return start.AddDate(0, 1, 0)
	}
}
