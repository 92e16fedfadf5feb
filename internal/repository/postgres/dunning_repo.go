package postgres

import (
	"context"
	"database/sql"
	"time"

	"github.com/lib/pq"

	domaininvoice "github.com/flexprice/flexprice/internal/domain/invoice"
	domainpr "github.com/flexprice/flexprice/internal/domain/paymentrequest"
	"github.com/flexprice/flexprice/internal/domain/settlement"
	ierr "github.com/flexprice/flexprice/internal/errors"
	"github.com/flexprice/flexprice/internal/postgres"
	"github.com/flexprice/flexprice/internal/types"
)

// DunningInvoiceRepository implements dunning.InvoiceRepository.
type DunningInvoiceRepository struct {
	db postgres.IClient
}

// NewDunningInvoiceRepository builds a DunningInvoiceRepository.
func NewDunningInvoiceRepository(db postgres.IClient) *DunningInvoiceRepository {
	return &DunningInvoiceRepository{db: db}
}

func (r *DunningInvoiceRepository) OverdueByCurrency(ctx context.Context, customerID string, now time.Time) (map[string][]*domaininvoice.Invoice, error) {
	const q = `
		SELECT * FROM invoices
		WHERE customer_id = $1 AND status = $2 AND due_date < $3
		ORDER BY due_date ASC`
	var invoices []*domaininvoice.Invoice
	if err := r.db.Querier(ctx).SelectContext(ctx, &invoices, q, customerID, types.InvoiceStatusFinalized, now); err != nil {
		return nil, ierr.WithError(err).WithMessage("failed to load overdue invoices").Mark(ierr.ErrDatabase)
	}
	byCurrency := make(map[string][]*domaininvoice.Invoice)
	for _, inv := range invoices {
		byCurrency[inv.Currency] = append(byCurrency[inv.Currency], inv)
	}
	return byCurrency, nil
}

func (r *DunningInvoiceRepository) Settlements(ctx context.Context, invoiceID string) ([]settlement.InvoiceSettlement, error) {
	const q = `SELECT * FROM invoice_settlements WHERE invoice_id = $1`
	var rows []settlement.InvoiceSettlement
	if err := r.db.Querier(ctx).SelectContext(ctx, &rows, q, invoiceID); err != nil {
		return nil, ierr.WithError(err).WithMessage("failed to load invoice settlements").Mark(ierr.ErrDatabase)
	}
	return rows, nil
}

// PaymentRequestRepository implements dunning.PaymentRequestRepository.
type PaymentRequestRepository struct {
	db postgres.IClient
}

// NewPaymentRequestRepository builds a PaymentRequestRepository.
func NewPaymentRequestRepository(db postgres.IClient) *PaymentRequestRepository {
	return &PaymentRequestRepository{db: db}
}

// ActiveForInvoices returns the most recent PaymentRequest covering any of
// the given invoice ids, if one exists, via the payment_request_invoices
// join table (PaymentRequest.InvoiceIDs is not itself a column).
func (r *PaymentRequestRepository) ActiveForInvoices(ctx context.Context, invoiceIDs []string) (*domainpr.PaymentRequest, bool, error) {
	if len(invoiceIDs) == 0 {
		return nil, false, nil
	}
	const q = `
		SELECT pr.* FROM payment_requests pr
		JOIN payment_request_invoices pri ON pri.payment_request_id = pr.id
		WHERE pri.invoice_id = ANY($1)
		ORDER BY pr.created_at DESC
		LIMIT 1`
	var pr domainpr.PaymentRequest
	err := r.db.Querier(ctx).GetContext(ctx, &pr, q, pq.Array(invoiceIDs))
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, ierr.WithError(err).WithMessage("failed to load payment request").Mark(ierr.ErrDatabase)
	}
	ids, err := r.invoiceIDsFor(ctx, pr.ID)
	if err != nil {
		return nil, false, err
	}
	pr.InvoiceIDs = ids
	return &pr, true, nil
}

func (r *PaymentRequestRepository) Create(ctx context.Context, pr *domainpr.PaymentRequest) error {
	pr.ID = types.GenerateUUID()
	now := time.Now()
	pr.CreatedAt, pr.UpdatedAt = now, now
	return r.db.WithTx(ctx, func(ctx context.Context) error {
		const q = `
			INSERT INTO payment_requests (id, tenant_id, customer_id, amount_cents, currency, status,
				provider_ref, attempt_count, last_attempt_at, created_at, updated_at)
			VALUES (:id, :tenant_id, :customer_id, :amount_cents, :currency, :status,
				:provider_ref, :attempt_count, :last_attempt_at, :created_at, :updated_at)`
		if _, err := r.db.Querier(ctx).NamedExec(q, pr); err != nil {
			return ierr.WithError(err).WithMessage("failed to insert payment request").Mark(ierr.ErrDatabase)
		}
		for _, invoiceID := range pr.InvoiceIDs {
			const linkQ = `INSERT INTO payment_request_invoices (payment_request_id, invoice_id) VALUES ($1, $2)`
			if _, err := r.db.Querier(ctx).ExecContext(ctx, linkQ, pr.ID, invoiceID); err != nil {
				return ierr.WithError(err).WithMessage("failed to link payment request invoice").Mark(ierr.ErrDatabase)
			}
		}
		return nil
	})
}

func (r *PaymentRequestRepository) Update(ctx context.Context, pr *domainpr.PaymentRequest) error {
	pr.UpdatedAt = time.Now()
	const q = `
		UPDATE payment_requests
		SET status = :status, attempt_count = :attempt_count, last_attempt_at = :last_attempt_at,
			provider_ref = :provider_ref, updated_at = :updated_at
		WHERE id = :id`
	if _, err := r.db.Querier(ctx).NamedExec(q, pr); err != nil {
		return ierr.WithError(err).WithMessage("failed to update payment request").Mark(ierr.ErrDatabase)
	}
	return nil
}

// PendingForTenant lists every pending (not yet succeeded or exhausted)
// PaymentRequest for tenantID, for the dunning tick's retry pass.
func (r *PaymentRequestRepository) PendingForTenant(ctx context.Context, tenantID string) ([]*domainpr.PaymentRequest, error) {
	const q = `SELECT * FROM payment_requests WHERE tenant_id = $1 AND status = $2`
	var prs []*domainpr.PaymentRequest
	if err := r.db.Querier(ctx).SelectContext(ctx, &prs, q, tenantID, types.PaymentRequestStatusPending); err != nil {
		return nil, ierr.WithError(err).WithMessage("failed to load pending payment requests").Mark(ierr.ErrDatabase)
	}
	for _, pr := range prs {
		ids, err := r.invoiceIDsFor(ctx, pr.ID)
		if err != nil {
			return nil, err
		}
		pr.InvoiceIDs = ids
	}
	return prs, nil
}

func (r *PaymentRequestRepository) invoiceIDsFor(ctx context.Context, paymentRequestID string) ([]string, error) {
	const q = `SELECT invoice_id FROM payment_request_invoices WHERE payment_request_id = $1`
	var ids []string
	if err := r.db.Querier(ctx).SelectContext(ctx, &ids, q, paymentRequestID); err != nil {
		return nil, ierr.WithError(err).WithMessage("failed to load payment request invoices").Mark(ierr.ErrDatabase)
	}
	return ids, nil
}
