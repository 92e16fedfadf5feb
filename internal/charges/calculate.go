// Package charges implements the six pure charge-model calculators from the
// rating contract: (units or total_amount, model parameters) -> amount.
// None of them touch a store, a clock, or a logger — every case here is a
// property test.
package charges

import (
	"github.com/shopspring/decimal"

	"github.com/flexprice/flexprice/internal/types"
)

// StandardParams prices every unit at the same rate.
type StandardParams struct {
	UnitPrice decimal.Decimal `json:"unit_price"`
}

// PackageParams bundles units into fixed-size packages priced as a whole.
type PackageParams struct {
	FreeUnits   decimal.Decimal `json:"free_units"`
	PackageSize decimal.Decimal `json:"package_size"`
	Amount      decimal.Decimal `json:"amount"`
}

// TieredParams is shared by the graduated and volume models.
type TieredParams struct {
	Tiers []Tier `json:"tiers"`
}

// PercentageParams takes a cut of the aggregated transaction total, plus an
// optional flat per-event fee after a free allotment of events.
type PercentageParams struct {
	Rate                  decimal.Decimal  `json:"rate"` // e.g. 2.9 means 2.9%
	FixedAmount           decimal.Decimal  `json:"fixed_amount"`
	FreeUnitsPerEvents     decimal.Decimal  `json:"free_units_per_events"`
	PerTransactionMin     *decimal.Decimal `json:"per_transaction_min"`
	PerTransactionMax     *decimal.Decimal `json:"per_transaction_max"`
}

// PercentageTier is a graduated_percentage tier: it takes Rate percent of the
// portion of total_amount between the previous tier's UpTo and this one's.
type PercentageTier struct {
	UpTo       *decimal.Decimal `json:"up_to"`
	Rate       decimal.Decimal  `json:"rate"`
	FlatAmount decimal.Decimal  `json:"flat_amount"`
}

// GraduatedPercentageParams is the percentage analogue of TieredParams.
type GraduatedPercentageParams struct {
	Tiers []PercentageTier `json:"tiers"`
}

var hundred = decimal.NewFromInt(100)

// Standard computes units * unit_price. Negative units are treated as zero.
func Standard(units decimal.Decimal, p StandardParams) decimal.Decimal {
	return nonNegative(units).Mul(p.UnitPrice)
}

// Package computes ceil(max(0, units - free_units) / package_size) * amount.
// Zero or negative package size yields zero (avoids a division by zero).
func Package(units decimal.Decimal, p PackageParams) decimal.Decimal {
	billable := nonNegative(units).Sub(p.FreeUnits)
	billable = nonNegative(billable)
	if p.PackageSize.LessThanOrEqual(decimal.Zero) {
		return decimal.Zero
	}
	packages := billable.Div(p.PackageSize).Ceil()
	return packages.Mul(p.Amount)
}

// Graduated prices each tier's slice of units at that tier's per-unit rate
// plus a flat amount, consuming units tier by tier in ascending order until
// none remain.
func Graduated(units decimal.Decimal, p TieredParams) decimal.Decimal {
	remaining := nonNegative(units)
	if remaining.IsZero() || len(p.Tiers) == 0 {
		return decimal.Zero
	}

	total := decimal.Zero
	prevUpTo := decimal.Zero
	for _, tier := range p.Tiers {
		if remaining.LessThanOrEqual(decimal.Zero) {
			break
		}

		width := remaining
		if tier.UpTo != nil {
			width = tier.UpTo.Sub(prevUpTo)
			if width.GreaterThan(remaining) {
				width = remaining
			}
			prevUpTo = *tier.UpTo
		}
		if width.LessThanOrEqual(decimal.Zero) {
			continue
		}

		total = total.Add(width.Mul(tier.UnitPrice)).Add(tier.FlatAmount)
		remaining = remaining.Sub(width)
	}
	return total
}

// Volume prices ALL units at the rate of the first tier whose UpTo covers
// units (or the open-ended final tier), plus that tier's flat amount.
func Volume(units decimal.Decimal, p TieredParams) decimal.Decimal {
	u := nonNegative(units)
	for _, tier := range p.Tiers {
		if tier.UpTo == nil || u.LessThanOrEqual(*tier.UpTo) {
			return u.Mul(tier.UnitPrice).Add(tier.FlatAmount)
		}
	}
	return decimal.Zero
}

// Percentage takes Rate percent of totalAmount, plus FixedAmount per event
// beyond the free allotment, with optional per-transaction min/max clamps
// applied to the percentage portion.
func Percentage(totalAmount decimal.Decimal, eventCount int, p PercentageParams) decimal.Decimal {
	percentageFee := totalAmount.Mul(p.Rate).Div(hundred)

	if p.PerTransactionMin != nil && percentageFee.LessThan(*p.PerTransactionMin) {
		percentageFee = *p.PerTransactionMin
	}
	if p.PerTransactionMax != nil && percentageFee.GreaterThan(*p.PerTransactionMax) {
		percentageFee = *p.PerTransactionMax
	}

	billableEvents := decimal.NewFromInt(int64(eventCount)).Sub(p.FreeUnitsPerEvents)
	billableEvents = nonNegative(billableEvents)
	fixedFee := billableEvents.Mul(p.FixedAmount)

	return percentageFee.Add(fixedFee)
}

// GraduatedPercentage prices each tier's slice of totalAmount at that tier's
// rate plus a flat amount, mirroring Graduated but operating on amount
// rather than unit count.
func GraduatedPercentage(totalAmount decimal.Decimal, p GraduatedPercentageParams) decimal.Decimal {
	remaining := nonNegative(totalAmount)
	if remaining.IsZero() || len(p.Tiers) == 0 {
		return decimal.Zero
	}

	total := decimal.Zero
	prevUpTo := decimal.Zero
	for _, tier := range p.Tiers {
		if remaining.LessThanOrEqual(decimal.Zero) {
			break
		}

		width := remaining
		if tier.UpTo != nil {
			width = tier.UpTo.Sub(prevUpTo)
			if width.GreaterThan(remaining) {
				width = remaining
			}
			prevUpTo = *tier.UpTo
		}
		if width.LessThanOrEqual(decimal.Zero) {
			continue
		}

		total = total.Add(width.Mul(tier.Rate).Div(hundred)).Add(tier.FlatAmount)
		remaining = remaining.Sub(width)
	}
	return total
}

func nonNegative(d decimal.Decimal) decimal.Decimal {
	return types.ZeroIfNegative(d)
}
