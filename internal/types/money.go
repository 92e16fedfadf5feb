package types

import "github.com/shopspring/decimal"

// MoneyPrecision is the number of fractional digits carried by every monetary
// and percentage value in the system (amounts, rates, credits).
const MoneyPrecision = 4

// RoundMoney rounds d to MoneyPrecision decimal places using half-away-from-zero
// rounding (not banker's rounding), matching the rule applied at invoice/fee boundaries.
func RoundMoney(d decimal.Decimal) decimal.Decimal {
	return d.Round(MoneyPrecision)
}

// ApplyRounding applies a metric's configured rounding function at the given precision.
func ApplyRounding(fn RoundingFunction, precision int32, d decimal.Decimal) decimal.Decimal {
	switch fn {
	case RoundingCeil:
		return d.RoundCeil(precision)
	case RoundingFloor:
		return d.RoundFloor(precision)
	case RoundingRound, "":
		return d.Round(precision)
	default:
		return d.Round(precision)
	}
}

// ZeroIfNegative clamps a decimal to zero, per the "negative units treated as zero" rule.
func ZeroIfNegative(d decimal.Decimal) decimal.Decimal {
	if d.IsNegative() {
		return decimal.Zero
	}
	return d
}
