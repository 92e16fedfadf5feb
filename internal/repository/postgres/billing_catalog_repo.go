package postgres

import (
	"database/sql"

	"context"

	"github.com/shopspring/decimal"

	"github.com/flexprice/flexprice/internal/domain/coupon"
	"github.com/flexprice/flexprice/internal/domain/creditnote"
	"github.com/flexprice/flexprice/internal/domain/fee"
	ierr "github.com/flexprice/flexprice/internal/errors"
	"github.com/flexprice/flexprice/internal/postgres"
	"github.com/flexprice/flexprice/internal/types"

	"time"
)

// CouponRepository implements invoicing.CouponRepository.
type CouponRepository struct {
	db postgres.IClient
}

// NewCouponRepository builds a CouponRepository.
func NewCouponRepository(db postgres.IClient) *CouponRepository {
	return &CouponRepository{db: db}
}

func (r *CouponRepository) ListApplied(ctx context.Context, customerID string) ([]*coupon.AppliedCoupon, error) {
	const q = `
		SELECT * FROM applied_coupons
		WHERE customer_id = $1 AND status = $2`
	var applied []*coupon.AppliedCoupon
	if err := r.db.Querier(ctx).SelectContext(ctx, &applied, q, customerID, types.AppliedCouponStatusActive); err != nil {
		return nil, ierr.WithError(err).WithMessage("failed to load applied coupons").Mark(ierr.ErrDatabase)
	}
	return applied, nil
}

func (r *CouponRepository) GetCoupon(ctx context.Context, couponID string) (*coupon.Coupon, error) {
	const q = `SELECT * FROM coupons WHERE id = $1`
	var c coupon.Coupon
	if err := r.db.Querier(ctx).GetContext(ctx, &c, q, couponID); err != nil {
		return nil, ierr.WithError(err).WithMessage("failed to load coupon").Mark(ierr.ErrNotFound)
	}
	return &c, nil
}

func (r *CouponRepository) UpdateApplied(ctx context.Context, applied *coupon.AppliedCoupon) error {
	applied.UpdatedAt = time.Now()
	const q = `
		UPDATE applied_coupons
		SET status = :status, periods_remaining = :periods_remaining, updated_at = :updated_at
		WHERE id = :id`
	if _, err := r.db.Querier(ctx).NamedExec(q, applied); err != nil {
		return ierr.WithError(err).WithMessage("failed to update applied coupon").Mark(ierr.ErrDatabase)
	}
	return nil
}

// TaxResolver implements invoicing.TaxResolver by summing every tax
// assigned to a customer (jurisdictions may legitimately stack).
type TaxResolver struct {
	db postgres.IClient
}

// NewTaxResolver builds a TaxResolver.
func NewTaxResolver(db postgres.IClient) *TaxResolver {
	return &TaxResolver{db: db}
}

func (r *TaxResolver) ApplicableRate(ctx context.Context, tenantID, customerID string, f *fee.Fee) (decimal.Decimal, error) {
	const q = `
		SELECT COALESCE(SUM(t.rate), 0) FROM customer_taxes ct
		JOIN taxes t ON t.id = ct.tax_id
		WHERE ct.tenant_id = $1 AND ct.customer_id = $2`
	var rate decimal.Decimal
	if err := r.db.Querier(ctx).GetContext(ctx, &rate, q, tenantID, customerID); err != nil {
		return decimal.Zero, ierr.WithError(err).WithMessage("failed to resolve applicable tax rate").Mark(ierr.ErrDatabase)
	}
	return rate, nil
}

// CreditNoteRepository implements invoicing.CreditNoteRepository.
type CreditNoteRepository struct {
	db postgres.IClient
}

// NewCreditNoteRepository builds a CreditNoteRepository.
func NewCreditNoteRepository(db postgres.IClient) *CreditNoteRepository {
	return &CreditNoteRepository{db: db}
}

func (r *CreditNoteRepository) ProgressiveOffsets(ctx context.Context, subscriptionID string, periodStart, periodEnd time.Time) ([]*creditnote.CreditNote, error) {
	const q = `
		SELECT cn.* FROM credit_notes cn
		JOIN invoices i ON i.id = cn.invoice_id
		WHERE i.subscription_id = $1 AND cn.credit_note_type = $2
			AND i.period_start >= $3 AND i.period_end <= $4`
	var notes []*creditnote.CreditNote
	err := r.db.Querier(ctx).SelectContext(ctx, &notes, q, subscriptionID, types.CreditNoteTypeOffset, periodStart, periodEnd)
	if err != nil {
		return nil, ierr.WithError(err).WithMessage("failed to load progressive billing offsets").Mark(ierr.ErrDatabase)
	}
	return notes, nil
}

// Numberer implements invoicing.Numberer against a per tenant+prefix+year
// sequence row, incremented atomically with UPDATE ... RETURNING.
type Numberer struct {
	db postgres.IClient
}

// NewNumberer builds a Numberer.
func NewNumberer(db postgres.IClient) *Numberer {
	return &Numberer{db: db}
}

func (r *Numberer) Next(ctx context.Context, tenantID, prefix string, year int) (int, error) {
	const upsert = `
		INSERT INTO invoice_number_sequences (tenant_id, prefix, year, seq)
		VALUES ($1, $2, $3, 1)
		ON CONFLICT (tenant_id, prefix, year)
		DO UPDATE SET seq = invoice_number_sequences.seq + 1
		RETURNING seq`
	var seq int
	err := r.db.Querier(ctx).QueryRowContext(ctx, upsert, tenantID, prefix, year).Scan(&seq)
	if err != nil && err != sql.ErrNoRows {
		return 0, ierr.WithError(err).WithMessage("failed to allocate invoice number").Mark(ierr.ErrDatabase)
	}
	return seq, nil
}
