package dunningcampaign

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func TestThresholdFor_ReturnsMatchingCurrency(t *testing.T) {
	c := &DunningCampaign{Thresholds: []Threshold{
		{Currency: "USD", AmountCents: decimal.NewFromInt(1000)},
		{Currency: "EUR", AmountCents: decimal.NewFromInt(900)},
	}}

	th, ok := c.ThresholdFor("EUR")
	require.True(t, ok)
	require.True(t, decimal.NewFromInt(900).Equal(th.AmountCents))
}

func TestThresholdFor_MissingCurrencyReturnsFalse(t *testing.T) {
	c := &DunningCampaign{Thresholds: []Threshold{{Currency: "USD", AmountCents: decimal.NewFromInt(1000)}}}

	_, ok := c.ThresholdFor("GBP")
	require.False(t, ok)
}
