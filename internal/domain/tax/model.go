// Package tax applies jurisdictional tax rates to invoices and fees.
package tax

import (
	"github.com/shopspring/decimal"

	"github.com/flexprice/flexprice/internal/types"
)

// Tax is a named tax rate a tenant can attach to customers, invoices, or fees.
type Tax struct {
	ID     string          `db:"id" json:"id"`
	TenantID string        `db:"tenant_id" json:"tenant_id"`
	Code   string          `db:"code" json:"code"`
	Name   string          `db:"name" json:"name"`
	Rate   decimal.Decimal `db:"rate" json:"rate"` // percentage, e.g. 8.5 for 8.5%
	types.BaseModel
}

// AppliedTax records a Tax charged against a specific taxable entity.
type AppliedTax struct {
	ID           string             `db:"id" json:"id"`
	TenantID     string             `db:"tenant_id" json:"tenant_id"`
	TaxID        string             `db:"tax_id" json:"tax_id"`
	TaxableType  types.TaxableType  `db:"taxable_type" json:"taxable_type"`
	TaxableID    string             `db:"taxable_id" json:"taxable_id"`
	BaseAmountCents decimal.Decimal `db:"base_amount_cents" json:"base_amount_cents"`
	AmountCents  decimal.Decimal    `db:"amount_cents" json:"amount_cents"`
	types.BaseModel
}

// Apply computes the tax amount on a base (already net of coupons/credits).
func (t *Tax) Apply(base decimal.Decimal) decimal.Decimal {
	if base.IsNegative() {
		return decimal.Zero
	}
	return base.Mul(t.Rate).Div(decimal.NewFromInt(100))
}
