// Package invoice assembles rated Fees, coupons, wallet credits, and taxes
// into a single billing document.
package invoice

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/flexprice/flexprice/internal/types"
)

// Invoice is a billing document for one customer over one period.
type Invoice struct {
	ID                                    string             `db:"id" json:"id"`
	TenantID                              string             `db:"tenant_id" json:"tenant_id"`
	InvoiceNumber                         string             `db:"invoice_number" json:"invoice_number"`
	CustomerID                            string             `db:"customer_id" json:"customer_id"`
	SubscriptionID                        *string            `db:"subscription_id" json:"subscription_id,omitempty"`
	Status                                types.InvoiceStatus `db:"status" json:"status"`
	InvoiceType                           types.InvoiceType  `db:"invoice_type" json:"invoice_type"`
	Currency                              string             `db:"currency" json:"currency"`
	PeriodStart                           time.Time          `db:"period_start" json:"period_start"`
	PeriodEnd                             time.Time          `db:"period_end" json:"period_end"`
	SubtotalCents                         decimal.Decimal    `db:"subtotal_cents" json:"subtotal_cents"`
	CouponsAmountCents                    decimal.Decimal    `db:"coupons_amount_cents" json:"coupons_amount_cents"`
	PrepaidCreditAmountCents              decimal.Decimal    `db:"prepaid_credit_amount_cents" json:"prepaid_credit_amount_cents"`
	ProgressiveBillingCreditAmountCents   decimal.Decimal    `db:"progressive_billing_credit_amount_cents" json:"progressive_billing_credit_amount_cents"`
	TaxAmountCents                        decimal.Decimal    `db:"tax_amount_cents" json:"tax_amount_cents"`
	TotalCents                            decimal.Decimal    `db:"total_cents" json:"total_cents"`
	DueDate                                time.Time          `db:"due_date" json:"due_date"`
	IssuedAt                              *time.Time         `db:"issued_at" json:"issued_at,omitempty"`
	PaidAt                                 *time.Time         `db:"paid_at" json:"paid_at,omitempty"`
	VoidedAt                               *time.Time         `db:"voided_at" json:"voided_at,omitempty"`
	types.BaseModel
}

// New creates a draft Invoice for the given period, with all derived
// amounts zeroed pending the assembly pipeline.
func New(tenantID, customerID string, subscriptionID *string, invoiceType types.InvoiceType, currency string, periodStart, periodEnd, dueDate time.Time) *Invoice {
	return &Invoice{
		TenantID:       tenantID,
		CustomerID:     customerID,
		SubscriptionID: subscriptionID,
		Status:         types.InvoiceStatusDraft,
		InvoiceType:    invoiceType,
		Currency:       currency,
		PeriodStart:    periodStart,
		PeriodEnd:      periodEnd,
		DueDate:        dueDate,
		SubtotalCents:  decimal.Zero,
		CouponsAmountCents: decimal.Zero,
		PrepaidCreditAmountCents: decimal.Zero,
		ProgressiveBillingCreditAmountCents: decimal.Zero,
		TaxAmountCents: decimal.Zero,
		TotalCents:     decimal.Zero,
	}
}

// IsPayable reports whether the invoice may still accept a payment.
func (i *Invoice) IsPayable() bool {
	return i.Status == types.InvoiceStatusFinalized
}
