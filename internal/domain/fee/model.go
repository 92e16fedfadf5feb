// Package fee is the first-class invoice line item materialized by rating.
package fee

import (
	"github.com/shopspring/decimal"

	"github.com/flexprice/flexprice/internal/types"
)

// Fee is one line item on an Invoice.
type Fee struct {
	ID                string                  `db:"id" json:"id"`
	TenantID          string                  `db:"tenant_id" json:"tenant_id"`
	InvoiceID         string                  `db:"invoice_id" json:"invoice_id"`
	ChargeID          *string                 `db:"charge_id" json:"charge_id,omitempty"`
	SubscriptionID    *string                 `db:"subscription_id" json:"subscription_id,omitempty"`
	CustomerID        string                  `db:"customer_id" json:"customer_id"`
	CommitmentID      *string                 `db:"commitment_id" json:"commitment_id,omitempty"`
	FeeType           types.FeeType           `db:"fee_type" json:"fee_type"`
	Units             decimal.Decimal         `db:"units" json:"units"`
	EventsCount       int                     `db:"events_count" json:"events_count"`
	UnitAmountCents   decimal.Decimal         `db:"unit_amount_cents" json:"unit_amount_cents"`
	AmountCents       decimal.Decimal         `db:"amount_cents" json:"amount_cents"`
	TaxesAmountCents  decimal.Decimal         `db:"taxes_amount_cents" json:"taxes_amount_cents"`
	TotalAmountCents  decimal.Decimal         `db:"total_amount_cents" json:"total_amount_cents"`
	PaymentStatus     types.FeePaymentStatus  `db:"payment_status" json:"payment_status"`
	types.BaseModel
}

// NewChargeFee builds a Fee for a rated charge, deriving unit_amount_cents
// from amount/units when units is positive (zero units means a fixed-amount
// fee such as a minimum commitment true-up, which has no meaningful per-unit price).
func NewChargeFee(chargeID, subscriptionID, customerID string, units decimal.Decimal, eventsCount int, amount decimal.Decimal) *Fee {
	unitAmount := decimal.Zero
	if units.GreaterThan(decimal.Zero) {
		unitAmount = amount.Div(units)
	}
	return &Fee{
		ChargeID:         &chargeID,
		SubscriptionID:   &subscriptionID,
		CustomerID:       customerID,
		FeeType:          types.FeeTypeCharge,
		Units:            units,
		EventsCount:      eventsCount,
		UnitAmountCents:  unitAmount,
		AmountCents:      amount,
		TotalAmountCents: amount,
		PaymentStatus:    types.FeePaymentStatusPending,
	}
}
