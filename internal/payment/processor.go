package payment

import (
	"context"
	"time"

	"github.com/flexprice/flexprice/internal/domain/dunningcampaign"
	"github.com/flexprice/flexprice/internal/domain/invoice"
	"github.com/flexprice/flexprice/internal/domain/paymentrequest"
	"github.com/flexprice/flexprice/internal/domain/settlement"
	"github.com/flexprice/flexprice/internal/dunning"
	ierr "github.com/flexprice/flexprice/internal/errors"
	"github.com/flexprice/flexprice/internal/logger"
)

// CustomerResolver looks up the provider customer reference and configured
// provider name for a tenant's customer, so the processor never has to know
// how that mapping is persisted.
type CustomerResolver interface {
	ProviderRef(ctx context.Context, customerID string) (providerName, providerCustomerRef string, err error)
}

// SettlementRepository persists the InvoiceSettlement rows a successful
// collection produces and marks invoices paid.
type SettlementRepository interface {
	RecordSettlements(ctx context.Context, settlements []settlement.InvoiceSettlement) error
	MarkInvoicesPaid(ctx context.Context, invoiceIDs []string, paidAt time.Time) error
	Load(ctx context.Context, invoiceIDs []string) ([]*invoice.Invoice, error)
}

// Processor drives one PaymentRequest's collection attempt end to end:
// resolve the provider, charge it, and record the outcome through the
// dunning Controller's RecordSuccess/RecordFailure transitions.
type Processor struct {
	registry    *Registry
	resolver    CustomerResolver
	settlements SettlementRepository
	controller  *dunning.Controller
	logger      *logger.Logger
}

// NewProcessor builds a Processor.
func NewProcessor(registry *Registry, resolver CustomerResolver, settlements SettlementRepository, controller *dunning.Controller, logger *logger.Logger) *Processor {
	return &Processor{registry: registry, resolver: resolver, settlements: settlements, controller: controller, logger: logger}
}

// Attempt charges the provider for one PaymentRequest and applies the
// resulting state transition. It never returns a provider error to the
// caller: failures are absorbed into the dunning retry schedule (spec §7
// "webhook/provider errors never abort the triggering transaction" applies
// symmetrically here to the dunning tick that invoked it).
func (p *Processor) Attempt(ctx context.Context, pr *paymentrequest.PaymentRequest, campaign *dunningcampaign.DunningCampaign, idempotencyKey string, now time.Time) error {
	providerName, providerRef, err := p.resolver.ProviderRef(ctx, pr.CustomerID)
	if err != nil {
		return ierr.WithError(err).WithMessage("failed to resolve payment provider").Mark(ierr.ErrDatabase)
	}
	provider, err := p.registry.Resolve(providerName)
	if err != nil {
		return err
	}

	result, chargeErr := provider.Charge(ctx, ChargeRequest{
		TenantID:            pr.TenantID,
		CustomerID:          pr.CustomerID,
		ProviderCustomerRef: providerRef,
		AmountCents:         pr.AmountCents,
		Currency:            pr.Currency,
		IdempotencyKey:      idempotencyKey,
	})
	if chargeErr != nil {
		p.logger.Errorw("payment collection attempt failed", "payment_request_id", pr.ID, "error", chargeErr)
		return p.controller.RecordFailure(ctx, pr, campaign, now)
	}

	invoices, err := p.settlements.Load(ctx, pr.InvoiceIDs)
	if err != nil {
		return ierr.WithError(err).WithMessage("failed to load invoices for settlement").Mark(ierr.ErrDatabase)
	}
	rows, err := p.controller.RecordSuccess(ctx, pr, invoices, result.ProviderRef, now)
	if err != nil {
		return err
	}
	if err := p.settlements.RecordSettlements(ctx, rows); err != nil {
		return ierr.WithError(err).WithMessage("failed to record settlements").Mark(ierr.ErrDatabase)
	}
	return p.settlements.MarkInvoicesPaid(ctx, pr.InvoiceIDs, now)
}
