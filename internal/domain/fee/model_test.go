package fee

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/flexprice/flexprice/internal/types"
)

func TestNewChargeFee_DerivesUnitAmountFromUnitsAndAmount(t *testing.T) {
	f := NewChargeFee("charge_1", "sub_1", "cust_1", decimal.NewFromInt(10), 10, decimal.NewFromInt(50))

	require.True(t, decimal.NewFromInt(5).Equal(f.UnitAmountCents))
	require.True(t, decimal.NewFromInt(50).Equal(f.AmountCents))
	require.True(t, decimal.NewFromInt(50).Equal(f.TotalAmountCents))
	require.Equal(t, types.FeeTypeCharge, f.FeeType)
	require.Equal(t, types.FeePaymentStatusPending, f.PaymentStatus)
}

func TestNewChargeFee_ZeroUnitsYieldsZeroUnitAmount(t *testing.T) {
	f := NewChargeFee("charge_1", "sub_1", "cust_1", decimal.Zero, 0, decimal.NewFromInt(25))

	require.True(t, decimal.Zero.Equal(f.UnitAmountCents))
	require.True(t, decimal.NewFromInt(25).Equal(f.AmountCents))
}
