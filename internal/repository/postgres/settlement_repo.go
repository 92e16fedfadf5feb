package postgres

import (
	"context"
	"time"

	"github.com/lib/pq"

	domaininvoice "github.com/flexprice/flexprice/internal/domain/invoice"
	"github.com/flexprice/flexprice/internal/domain/settlement"
	ierr "github.com/flexprice/flexprice/internal/errors"
	"github.com/flexprice/flexprice/internal/postgres"
	"github.com/flexprice/flexprice/internal/types"
)

// SettlementRepository implements payment.SettlementRepository.
type SettlementRepository struct {
	db postgres.IClient
}

// NewSettlementRepository builds a SettlementRepository.
func NewSettlementRepository(db postgres.IClient) *SettlementRepository {
	return &SettlementRepository{db: db}
}

func (r *SettlementRepository) RecordSettlements(ctx context.Context, settlements []settlement.InvoiceSettlement) error {
	for i := range settlements {
		settlements[i].ID = types.GenerateUUID()
		const q = `
			INSERT INTO invoice_settlements (id, tenant_id, invoice_id, payment_id, amount_cents, settled_at)
			VALUES (:id, :tenant_id, :invoice_id, :payment_id, :amount_cents, :settled_at)`
		if _, err := r.db.Querier(ctx).NamedExec(q, settlements[i]); err != nil {
			return ierr.WithError(err).WithMessage("failed to record invoice settlement").Mark(ierr.ErrDatabase)
		}
	}
	return nil
}

func (r *SettlementRepository) MarkInvoicesPaid(ctx context.Context, invoiceIDs []string, paidAt time.Time) error {
	const q = `
		UPDATE invoices SET status = $1, paid_at = $2, updated_at = $2
		WHERE id = ANY($3)`
	_, err := r.db.Querier(ctx).ExecContext(ctx, q, types.InvoiceStatusPaid, paidAt, pq.Array(invoiceIDs))
	if err != nil {
		return ierr.WithError(err).WithMessage("failed to mark invoices paid").Mark(ierr.ErrDatabase)
	}
	return nil
}

func (r *SettlementRepository) Load(ctx context.Context, invoiceIDs []string) ([]*domaininvoice.Invoice, error) {
	const q = `SELECT * FROM invoices WHERE id = ANY($1) ORDER BY due_date ASC`
	var invoices []*domaininvoice.Invoice
	if err := r.db.Querier(ctx).SelectContext(ctx, &invoices, q, pq.Array(invoiceIDs)); err != nil {
		return nil, ierr.WithError(err).WithMessage("failed to load invoices").Mark(ierr.ErrDatabase)
	}
	return invoices, nil
}

// CustomerResolver implements payment.CustomerResolver, resolving the
// configured provider name and provider-side customer reference stored on
// the Customer row.
type CustomerResolver struct {
	db postgres.IClient
}

// NewCustomerResolver builds a CustomerResolver.
func NewCustomerResolver(db postgres.IClient) *CustomerResolver {
	return &CustomerResolver{db: db}
}

func (r *CustomerResolver) ProviderRef(ctx context.Context, customerID string) (string, string, error) {
	const q = `SELECT payment_provider, provider_customer_ref FROM customers WHERE id = $1`
	var row struct {
		PaymentProvider     string `db:"payment_provider"`
		ProviderCustomerRef string `db:"provider_customer_ref"`
	}
	if err := r.db.Querier(ctx).GetContext(ctx, &row, q, customerID); err != nil {
		return "", "", ierr.WithError(err).WithMessage("failed to resolve payment provider for customer").Mark(ierr.ErrDatabase)
	}
	return row.PaymentProvider, row.ProviderCustomerRef, nil
}
