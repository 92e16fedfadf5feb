// Package dunning implements the per-(customer, currency) state machine
// that turns overdue invoices into payment requests and retries.
package dunning

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/flexprice/flexprice/internal/domain/dunningcampaign"
	"github.com/flexprice/flexprice/internal/domain/invoice"
	"github.com/flexprice/flexprice/internal/domain/paymentrequest"
	"github.com/flexprice/flexprice/internal/domain/settlement"
	ierr "github.com/flexprice/flexprice/internal/errors"
	"github.com/flexprice/flexprice/internal/logger"
	"github.com/flexprice/flexprice/internal/types"
)

// InvoiceRepository exposes the finalized, overdue invoices eligible for
// dunning and the settlements recorded against them.
type InvoiceRepository interface {
	OverdueByCurrency(ctx context.Context, customerID string, now time.Time) (map[string][]*invoice.Invoice, error)
	Settlements(ctx context.Context, invoiceID string) ([]settlement.InvoiceSettlement, error)
}

// PaymentRequestRepository is the persistence boundary for PaymentRequests.
type PaymentRequestRepository interface {
	ActiveForInvoices(ctx context.Context, invoiceIDs []string) (*paymentrequest.PaymentRequest, bool, error)
	Create(ctx context.Context, pr *paymentrequest.PaymentRequest) error
	Update(ctx context.Context, pr *paymentrequest.PaymentRequest) error
}

// Notifier raises an in-app notification, e.g. when a PR exhausts its retries.
type Notifier interface {
	Notify(ctx context.Context, tenantID, customerID, message string) error
}

// Controller runs the dunning state machine for one campaign.
type Controller struct {
	invoices InvoiceRepository
	prs      PaymentRequestRepository
	notify   Notifier
	logger   *logger.Logger
}

// NewController builds a dunning Controller.
func NewController(invoices InvoiceRepository, prs PaymentRequestRepository, notify Notifier, logger *logger.Logger) *Controller {
	return &Controller{invoices: invoices, prs: prs, notify: notify, logger: logger}
}

// Tick evaluates one customer against a campaign: it groups overdue
// invoices by currency, checks the currency's threshold, and creates at
// most one PaymentRequest per currency group (spec §4.7).
func (c *Controller) Tick(ctx context.Context, tenantID, customerID string, campaign *dunningcampaign.DunningCampaign, now time.Time) ([]*paymentrequest.PaymentRequest, error) {
	byCurrency, err := c.invoices.OverdueByCurrency(ctx, customerID, now)
	if err != nil {
		return nil, ierr.WithError(err).WithMessage("failed to load overdue invoices").Mark(ierr.ErrDatabase)
	}

	var created []*paymentrequest.PaymentRequest
	for currency, invoices := range byCurrency {
		threshold, ok := campaign.ThresholdFor(currency)
		if !ok || len(invoices) == 0 {
			continue
		}

		outstanding := decimal.Zero
		ids := make([]string, 0, len(invoices))
		for _, inv := range invoices {
			settlements, err := c.invoices.Settlements(ctx, inv.ID)
			if err != nil {
				return nil, ierr.WithError(err).WithMessage("failed to load invoice settlements").Mark(ierr.ErrDatabase)
			}
			outstanding = outstanding.Add(inv.TotalCents.Sub(settlement.Sum(settlements)))
			ids = append(ids, inv.ID)
		}
		if outstanding.LessThan(threshold.AmountCents) {
			continue
		}

		existing, found, err := c.prs.ActiveForInvoices(ctx, ids)
		if err != nil {
			return nil, ierr.WithError(err).WithMessage("failed to check existing payment requests").Mark(ierr.ErrDatabase)
		}
		if found && existing.Status != types.PaymentRequestStatusFailed {
			continue
		}

		pr := &paymentrequest.PaymentRequest{
			TenantID:    tenantID,
			CustomerID:  customerID,
			InvoiceIDs:  ids,
			AmountCents: outstanding,
			Currency:    currency,
			Status:      types.PaymentRequestStatusPending,
		}
		if err := c.prs.Create(ctx, pr); err != nil {
			return nil, ierr.WithError(err).WithMessage("failed to create payment request").Mark(ierr.ErrDatabase)
		}
		created = append(created, pr)
	}
	return created, nil
}

// RecordFailure increments a PaymentRequest's attempt count after a failed
// collection attempt, scheduling a retry or giving up per campaign config.
func (c *Controller) RecordFailure(ctx context.Context, pr *paymentrequest.PaymentRequest, campaign *dunningcampaign.DunningCampaign, now time.Time) error {
	pr.AttemptCount++
	pr.LastAttemptAt = &now
	if pr.AttemptCount >= campaign.MaxAttempts {
		pr.Status = types.PaymentRequestStatusFailed
		if err := c.prs.Update(ctx, pr); err != nil {
			return ierr.WithError(err).WithMessage("failed to update payment request").Mark(ierr.ErrDatabase)
		}
		if c.notify != nil {
			if err := c.notify.Notify(ctx, pr.TenantID, pr.CustomerID, "payment collection exhausted retries"); err != nil {
				c.logger.Errorw("failed to raise dunning notification", "payment_request_id", pr.ID, "error", err)
			}
		}
		return nil
	}
	return c.prs.Update(ctx, pr)
}

// RecordSuccess marks a PaymentRequest succeeded and settles its invoices
// up to each invoice's total, in invoice order.
func (c *Controller) RecordSuccess(ctx context.Context, pr *paymentrequest.PaymentRequest, invoices []*invoice.Invoice, paymentID string, now time.Time) ([]settlement.InvoiceSettlement, error) {
	pr.Status = types.PaymentRequestStatusSucceeded
	if err := c.prs.Update(ctx, pr); err != nil {
		return nil, ierr.WithError(err).WithMessage("failed to update payment request").Mark(ierr.ErrDatabase)
	}

	remaining := pr.AmountCents
	settlements := make([]settlement.InvoiceSettlement, 0, len(invoices))
	for _, inv := range invoices {
		if remaining.LessThanOrEqual(decimal.Zero) {
			break
		}
		amount := inv.TotalCents
		if amount.GreaterThan(remaining) {
			amount = remaining
		}
		settlements = append(settlements, settlement.InvoiceSettlement{
			TenantID:    inv.TenantID,
			InvoiceID:   inv.ID,
			PaymentID:   paymentID,
			AmountCents: amount,
			SettledAt:   now,
		})
		remaining = remaining.Sub(amount)
	}
	return settlements, nil
}
