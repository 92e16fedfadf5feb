// Package coupon discounts invoice subtotals, either by a fixed amount or a
// percentage, for one, several, or all future billing periods.
package coupon

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/flexprice/flexprice/internal/types"
)

// Coupon is a tenant-defined discount that may be applied to customers.
type Coupon struct {
	ID              string              `db:"id" json:"id"`
	TenantID        string              `db:"tenant_id" json:"tenant_id"`
	Code            string              `db:"code" json:"code"`
	Name            string              `db:"name" json:"name"`
	CouponType      types.CouponType    `db:"coupon_type" json:"coupon_type"`
	AmountCents     decimal.Decimal     `db:"amount_cents" json:"amount_cents"`
	PercentageRate  decimal.Decimal     `db:"percentage_rate" json:"percentage_rate"`
	Frequency       types.CouponFrequency `db:"frequency" json:"frequency"`
	FrequencyDuration int               `db:"frequency_duration" json:"frequency_duration,omitempty"` // periods a recurring coupon applies for; the live count is AppliedCoupon.PeriodsRemaining
	ExpirationDate  *time.Time          `db:"expiration_date" json:"expiration_date,omitempty"`
	types.BaseModel
}

// AppliedCoupon attaches a Coupon to a customer and tracks its remaining use.
type AppliedCoupon struct {
	ID                string                    `db:"id" json:"id"`
	TenantID          string                    `db:"tenant_id" json:"tenant_id"`
	CouponID          string                    `db:"coupon_id" json:"coupon_id"`
	CustomerID        string                    `db:"customer_id" json:"customer_id"`
	Status            types.AppliedCouponStatus `db:"status" json:"status"`
	PeriodsRemaining  int                       `db:"periods_remaining" json:"periods_remaining,omitempty"`
	types.BaseModel
}

// Discount computes the amount this coupon removes from subtotal, clamped
// so a percentage or fixed discount never exceeds the subtotal itself.
func (c *Coupon) Discount(subtotal decimal.Decimal) decimal.Decimal {
	var discount decimal.Decimal
	switch c.CouponType {
	case types.CouponTypePercentage:
		discount = subtotal.Mul(c.PercentageRate).Div(decimal.NewFromInt(100)).Round(4)
	default:
		discount = c.AmountCents
	}
	if discount.GreaterThan(subtotal) {
		return subtotal
	}
	return discount
}

// Exhausted reports whether a recurring AppliedCoupon has no periods left.
func (a *AppliedCoupon) Exhausted(frequency types.CouponFrequency) bool {
	return frequency == types.CouponFrequencyRecurring && a.PeriodsRemaining <= 0
}
