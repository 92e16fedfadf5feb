package creditnote

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func TestCreditNote_TotalCents_SumsCreditAndRefund(t *testing.T) {
	c := &CreditNote{CreditAmountCents: decimal.NewFromInt(300), RefundAmountCents: decimal.NewFromInt(200)}
	require.True(t, c.TotalCents().Equal(decimal.NewFromInt(500)))
}
