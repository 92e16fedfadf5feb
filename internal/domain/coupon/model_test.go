package coupon

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/flexprice/flexprice/internal/types"
)

func TestCoupon_Discount_FixedAmount(t *testing.T) {
	c := &Coupon{CouponType: types.CouponTypeFixedAmount, AmountCents: decimal.NewFromInt(500)}
	require.True(t, c.Discount(decimal.NewFromInt(1000)).Equal(decimal.NewFromInt(500)))
}

func TestCoupon_Discount_FixedAmountClampedToSubtotal(t *testing.T) {
	c := &Coupon{CouponType: types.CouponTypeFixedAmount, AmountCents: decimal.NewFromInt(5000)}
	require.True(t, c.Discount(decimal.NewFromInt(1000)).Equal(decimal.NewFromInt(1000)))
}

func TestCoupon_Discount_Percentage(t *testing.T) {
	c := &Coupon{CouponType: types.CouponTypePercentage, PercentageRate: decimal.NewFromInt(10)}
	require.True(t, c.Discount(decimal.NewFromInt(1000)).Equal(decimal.NewFromInt(100)))
}

func TestAppliedCoupon_Exhausted_RecurringWithNoPeriodsLeft(t *testing.T) {
	ac := &AppliedCoupon{PeriodsRemaining: 0}
	require.True(t, ac.Exhausted(types.CouponFrequencyRecurring))
}

func TestAppliedCoupon_Exhausted_RecurringWithPeriodsLeft(t *testing.T) {
	ac := &AppliedCoupon{PeriodsRemaining: 2}
	require.False(t, ac.Exhausted(types.CouponFrequencyRecurring))
}

func TestAppliedCoupon_Exhausted_NonRecurringNeverExhausted(t *testing.T) {
	ac := &AppliedCoupon{PeriodsRemaining: 0}
	require.False(t, ac.Exhausted(types.CouponFrequencyOnce))
}
