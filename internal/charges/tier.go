package charges

import (
	"encoding/json"

	"github.com/shopspring/decimal"
)

// Tier is the canonical tiered-pricing boundary: it prices the units (or
// amount) falling between the previous tier's UpTo and this one's UpTo.
// A nil UpTo marks the final, open-ended tier.
//
// The source data accepts two input shapes — "graduated_ranges" with
// from_value/to_value, and "tiers" with up_to — per spec's open question on
// canonical form. Both carry the same information once only the upper
// boundary of each tier matters (the lower boundary is always the previous
// tier's upper boundary), so UnmarshalJSON normalizes either shape to this
// one on the way in.
type Tier struct {
	UpTo       *decimal.Decimal `json:"up_to"`
	UnitPrice  decimal.Decimal  `json:"unit_price"`
	FlatAmount decimal.Decimal  `json:"flat_amount"`
}

type tierRangeForm struct {
	FromValue  *decimal.Decimal `json:"from_value"`
	ToValue    *decimal.Decimal `json:"to_value"`
	PerUnit    *decimal.Decimal `json:"per_unit"`
	FlatAmount decimal.Decimal  `json:"flat_amount"`
}

type tierUpToForm struct {
	UpTo       *decimal.Decimal `json:"up_to"`
	UnitPrice  decimal.Decimal  `json:"unit_price"`
	FlatAmount decimal.Decimal  `json:"flat_amount"`
}

// UnmarshalJSON accepts either the up_to form or the from_value/to_value
// form; only the upper boundary survives into the canonical Tier.
func (t *Tier) UnmarshalJSON(data []byte) error {
	var up tierUpToForm
	if err := json.Unmarshal(data, &up); err == nil && (up.UpTo != nil || !up.UnitPrice.IsZero()) {
		var rng tierRangeForm
		if err := json.Unmarshal(data, &rng); err == nil && rng.ToValue != nil && up.UpTo == nil {
			t.UpTo = rng.ToValue
			t.UnitPrice = valueOr(rng.PerUnit, decimal.Zero)
			t.FlatAmount = rng.FlatAmount
			return nil
		}
		t.UpTo = up.UpTo
		t.UnitPrice = up.UnitPrice
		t.FlatAmount = up.FlatAmount
		return nil
	}

	var rng tierRangeForm
	if err := json.Unmarshal(data, &rng); err != nil {
		return err
	}
	t.UpTo = rng.ToValue
	t.UnitPrice = valueOr(rng.PerUnit, decimal.Zero)
	t.FlatAmount = rng.FlatAmount
	return nil
}

func valueOr(d *decimal.Decimal, fallback decimal.Decimal) decimal.Decimal {
	if d == nil {
		return fallback
	}
	return *d
}

// ValidateTiers checks that tiers are given in ascending, contiguous, non-overlapping
// order with at most one open-ended (nil UpTo) tier, which must be last.
func ValidateTiers(tiers []Tier) error {
	var prev decimal.Decimal
	for i, t := range tiers {
		if t.UpTo == nil {
			if i != len(tiers)-1 {
				return errOpenEndedTierNotLast
			}
			continue
		}
		if t.UpTo.LessThanOrEqual(prev) {
			return errTiersNotAscending
		}
		prev = *t.UpTo
	}
	return nil
}
