package settlement

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func TestSum_AddsAllSettlementAmounts(t *testing.T) {
	settlements := []InvoiceSettlement{
		{AmountCents: decimal.NewFromInt(100)},
		{AmountCents: decimal.NewFromInt(250)},
	}
	require.True(t, Sum(settlements).Equal(decimal.NewFromInt(350)))
}

func TestSum_EmptyYieldsZero(t *testing.T) {
	require.True(t, Sum(nil).IsZero())
}
