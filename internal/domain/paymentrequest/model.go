// Package paymentrequest models collection attempts against a payment
// provider for a customer's finalized, overdue invoices.
package paymentrequest

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/flexprice/flexprice/internal/types"
)

// PaymentRequest is a single attempt to collect payment for one or more
// overdue invoices belonging to a customer.
type PaymentRequest struct {
	ID            string                      `db:"id" json:"id"`
	TenantID      string                      `db:"tenant_id" json:"tenant_id"`
	CustomerID    string                      `db:"customer_id" json:"customer_id"`
	InvoiceIDs    []string                    `db:"-" json:"invoice_ids"`
	AmountCents   decimal.Decimal             `db:"amount_cents" json:"amount_cents"`
	Currency      string                      `db:"currency" json:"currency"`
	Status        types.PaymentRequestStatus  `db:"status" json:"status"`
	ProviderRef   string                      `db:"provider_ref" json:"provider_ref,omitempty"`
	AttemptCount  int                         `db:"attempt_count" json:"attempt_count"`
	LastAttemptAt *time.Time                  `db:"last_attempt_at" json:"last_attempt_at,omitempty"`
	types.BaseModel
}

// ReadyForRetry reports whether a still-pending PaymentRequest (not yet
// succeeded or exhausted) is due for its next collection attempt, per the
// dunning campaign's configured interval between attempts.
func (p *PaymentRequest) ReadyForRetry(now time.Time, retryInterval time.Duration) bool {
	if p.Status != types.PaymentRequestStatusPending {
		return false
	}
	if p.LastAttemptAt == nil {
		return true
	}
	return now.Sub(*p.LastAttemptAt) >= retryInterval
}
