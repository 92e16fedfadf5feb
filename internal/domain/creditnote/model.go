// Package creditnote records refunds and progressive-billing offsets issued
// against a finalized invoice.
package creditnote

import (
	"github.com/shopspring/decimal"

	"github.com/flexprice/flexprice/internal/types"
)

// CreditNote reverses part of an invoice's total, either as a cash refund,
// a wallet credit, or (for CreditNoteTypeOffset) a progressive-billing
// mid-period adjustment.
type CreditNote struct {
	ID                string                  `db:"id" json:"id"`
	TenantID          string                  `db:"tenant_id" json:"tenant_id"`
	InvoiceID         string                  `db:"invoice_id" json:"invoice_id"`
	Status            types.CreditNoteStatus  `db:"status" json:"status"`
	CreditNoteType    types.CreditNoteType    `db:"credit_note_type" json:"credit_note_type"`
	CreditAmountCents decimal.Decimal         `db:"credit_amount_cents" json:"credit_amount_cents"`
	RefundAmountCents decimal.Decimal         `db:"refund_amount_cents" json:"refund_amount_cents"`
	CreditStatus      types.CreditOrRefundStatus `db:"credit_status" json:"credit_status"`
	RefundStatus      types.CreditOrRefundStatus `db:"refund_status" json:"refund_status"`
	types.BaseModel
}

// TotalCents is the sum of both components a CreditNote may settle.
func (c *CreditNote) TotalCents() decimal.Decimal {
	return c.CreditAmountCents.Add(c.RefundAmountCents)
}
