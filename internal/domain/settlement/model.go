// Package settlement records how a payment was applied against one or more
// invoices, driving the finalized -> paid transition.
package settlement

import (
	"time"

	"github.com/shopspring/decimal"
)

// InvoiceSettlement applies part (or all) of a payment to one invoice.
// An invoice transitions to paid once its settlements sum to its total.
type InvoiceSettlement struct {
	ID          string          `db:"id" json:"id"`
	TenantID    string          `db:"tenant_id" json:"tenant_id"`
	InvoiceID   string          `db:"invoice_id" json:"invoice_id"`
	PaymentID   string          `db:"payment_id" json:"payment_id"`
	AmountCents decimal.Decimal `db:"amount_cents" json:"amount_cents"`
	SettledAt   time.Time       `db:"settled_at" json:"settled_at"`
}

// Sum totals a set of settlements against one invoice.
func Sum(settlements []InvoiceSettlement) decimal.Decimal {
	total := decimal.Zero
	for _, s := range settlements {
		total = total.Add(s.AmountCents)
	}
	return total
}
