// Package dunningrun drives the scheduler's dunning_tick task (spec
// §4.10): scan every customer with overdue invoices for a tenant, run the
// dunning Controller's per-customer Tick against its campaign, then attempt
// collection against every pending PaymentRequest due for its next try.
package dunningrun

import (
	"context"
	"time"

	"github.com/flexprice/flexprice/internal/domain/dunningcampaign"
	"github.com/flexprice/flexprice/internal/domain/paymentrequest"
	"github.com/flexprice/flexprice/internal/dunning"
	"github.com/flexprice/flexprice/internal/idempotency"
	"github.com/flexprice/flexprice/internal/logger"
	"github.com/flexprice/flexprice/internal/payment"
)

// CustomerLister finds customers with at least one finalized, overdue invoice.
type CustomerLister interface {
	WithOverdueInvoices(ctx context.Context, tenantID string, now time.Time) ([]string, error)
}

// CampaignRepository resolves the dunning campaign a customer falls under.
// A tenant typically has one default campaign; per-customer overrides are
// a future resource-surface concern (spec lists "dunning campaigns" as a
// CRUD resource but does not detail customer-level assignment rules).
type CampaignRepository interface {
	DefaultCampaign(ctx context.Context, tenantID string) (*dunningcampaign.DunningCampaign, error)
}

// PaymentRequestLister finds the tenant's still-pending PaymentRequests, so
// the tick can drive a retry attempt for ones due per the campaign's
// days_between_attempts (spec §4.7).
type PaymentRequestLister interface {
	PendingForTenant(ctx context.Context, tenantID string) ([]*paymentrequest.PaymentRequest, error)
}

// Runner ties Controller.Tick (grouping overdue invoices into
// PaymentRequests) and Processor.Attempt (collecting against pending ones)
// into a single per-tenant dunning pass.
type Runner struct {
	customers  CustomerLister
	campaigns  CampaignRepository
	pending    PaymentRequestLister
	controller *dunning.Controller
	processor  *payment.Processor
	keys       *idempotency.Generator
	logger     *logger.Logger
}

// New builds a Runner.
func New(customers CustomerLister, campaigns CampaignRepository, pending PaymentRequestLister, controller *dunning.Controller, processor *payment.Processor, keys *idempotency.Generator, logger *logger.Logger) *Runner {
	return &Runner{customers: customers, campaigns: campaigns, pending: pending, controller: controller, processor: processor, keys: keys, logger: logger}
}

// Tick scans tenantID's overdue customers, creates a PaymentRequest per
// (customer, currency) crossing the campaign threshold, then attempts
// collection for every pending PaymentRequest that is due for its next try.
func (r *Runner) Tick(ctx context.Context, tenantID string, now time.Time) error {
	campaign, err := r.campaigns.DefaultCampaign(ctx, tenantID)
	if err != nil {
		return err
	}

	customerIDs, err := r.customers.WithOverdueInvoices(ctx, tenantID, now)
	if err != nil {
		return err
	}
	for _, customerID := range customerIDs {
		if _, err := r.controller.Tick(ctx, tenantID, customerID, campaign, now); err != nil {
			r.logger.Errorw("dunning tick failed for customer", "customer_id", customerID, "error", err)
		}
	}

	retryInterval := time.Duration(campaign.DaysBetweenAttempts) * 24 * time.Hour
	pending, err := r.pending.PendingForTenant(ctx, tenantID)
	if err != nil {
		return err
	}
	for _, pr := range pending {
		if !pr.ReadyForRetry(now, retryInterval) {
			continue
		}
		key := r.keys.GenerateKey(idempotency.ScopePayment, map[string]interface{}{
			"payment_request_id": pr.ID,
			"attempt_count":      pr.AttemptCount,
		})
		if err := r.processor.Attempt(ctx, pr, campaign, key, now); err != nil {
			r.logger.Errorw("payment collection attempt failed", "payment_request_id", pr.ID, "error", err)
		}
	}
	return nil
}
