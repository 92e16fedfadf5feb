package tax

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func TestTax_Apply_ComputesPercentageOfBase(t *testing.T) {
	tx := &Tax{Rate: decimal.NewFromFloat(8.5)}
	require.True(t, tx.Apply(decimal.NewFromInt(1000)).Equal(decimal.NewFromFloat(85)))
}

func TestTax_Apply_NegativeBaseYieldsZero(t *testing.T) {
	tx := &Tax{Rate: decimal.NewFromInt(10)}
	require.True(t, tx.Apply(decimal.NewFromInt(-100)).IsZero())
}
