package postgres

import (
	"context"
	"time"

	domainfee "github.com/flexprice/flexprice/internal/domain/fee"
	domaininvoice "github.com/flexprice/flexprice/internal/domain/invoice"
	ierr "github.com/flexprice/flexprice/internal/errors"
	"github.com/flexprice/flexprice/internal/postgres"
	"github.com/flexprice/flexprice/internal/types"
)

// InvoiceRepository implements invoicing.InvoiceRepository and
// billingrun.InvoiceRepository.
type InvoiceRepository struct {
	db postgres.IClient
}

// NewInvoiceRepository builds an InvoiceRepository.
func NewInvoiceRepository(db postgres.IClient) *InvoiceRepository {
	return &InvoiceRepository{db: db}
}

// Create persists a draft invoice and its line items in one transaction.
// inv.ID is already set by the assembler before this call, since the wallet
// transactions it drew from were recorded against that id first; Create
// only stamps timestamps, not identity.
func (r *InvoiceRepository) Create(ctx context.Context, inv *domaininvoice.Invoice, fees []*domainfee.Fee) error {
	now := time.Now()
	inv.CreatedAt, inv.UpdatedAt = now, now

	return r.db.WithTx(ctx, func(ctx context.Context) error {
		const q = `
			INSERT INTO invoices (id, tenant_id, invoice_number, customer_id, subscription_id, status,
				invoice_type, currency, period_start, period_end, subtotal_cents, coupons_amount_cents,
				prepaid_credit_amount_cents, progressive_billing_credit_amount_cents, tax_amount_cents,
				total_cents, due_date, issued_at, paid_at, voided_at, created_at, updated_at)
			VALUES (:id, :tenant_id, :invoice_number, :customer_id, :subscription_id, :status,
				:invoice_type, :currency, :period_start, :period_end, :subtotal_cents, :coupons_amount_cents,
				:prepaid_credit_amount_cents, :progressive_billing_credit_amount_cents, :tax_amount_cents,
				:total_cents, :due_date, :issued_at, :paid_at, :voided_at, :created_at, :updated_at)`
		if _, err := r.db.Querier(ctx).NamedExec(q, inv); err != nil {
			return ierr.WithError(err).WithMessage("failed to insert invoice").Mark(ierr.ErrDatabase)
		}

		for _, f := range fees {
			f.ID = types.GenerateUUID()
			f.TenantID = inv.TenantID
			f.InvoiceID = inv.ID
			f.CreatedAt, f.UpdatedAt = now, now
			const feeQ = `
				INSERT INTO fees (id, tenant_id, invoice_id, charge_id, subscription_id, customer_id,
					commitment_id, fee_type, units, events_count, unit_amount_cents, amount_cents,
					taxes_amount_cents, total_amount_cents, payment_status, created_at, updated_at)
				VALUES (:id, :tenant_id, :invoice_id, :charge_id, :subscription_id, :customer_id,
					:commitment_id, :fee_type, :units, :events_count, :unit_amount_cents, :amount_cents,
					:taxes_amount_cents, :total_amount_cents, :payment_status, :created_at, :updated_at)`
			if _, err := r.db.Querier(ctx).NamedExec(feeQ, f); err != nil {
				return ierr.WithError(err).WithMessage("failed to insert fee").Mark(ierr.ErrDatabase)
			}
		}
		return nil
	})
}

// Finalize persists the invoice's in-memory status (set by invoicing.Finalize)
// and issued_at (set by the assembler).
func (r *InvoiceRepository) Finalize(ctx context.Context, inv *domaininvoice.Invoice) error {
	now := time.Now()
	const q = `UPDATE invoices SET status = $1, issued_at = $2, updated_at = $3 WHERE id = $4`
	_, err := r.db.Querier(ctx).ExecContext(ctx, q, inv.Status, inv.IssuedAt, now, inv.ID)
	if err != nil {
		return ierr.WithError(err).WithMessage("failed to finalize invoice").Mark(ierr.ErrDatabase)
	}
	return nil
}
