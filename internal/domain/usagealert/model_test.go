package usagealert

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/flexprice/flexprice/internal/types"
)

func TestUsageAlert_Evaluate_BelowThreshold(t *testing.T) {
	a := &UsageAlert{Threshold: decimal.NewFromInt(100)}
	target, fireCount := a.Evaluate(decimal.NewFromInt(50))
	require.Zero(t, fireCount)
	require.Zero(t, target)
}

func TestUsageAlert_Evaluate_OneShotFiresOnceThenStops(t *testing.T) {
	a := &UsageAlert{Threshold: decimal.NewFromInt(100), Recurrence: types.UsageAlertOneShot, TimesTriggered: 1}
	target, fireCount := a.Evaluate(decimal.NewFromInt(500))
	require.Zero(t, fireCount)
	require.Equal(t, 1, target)
}

func TestUsageAlert_Evaluate_RecurringComputesDeltaIncrements(t *testing.T) {
	a := &UsageAlert{Threshold: decimal.NewFromInt(100), Recurrence: types.UsageAlertRecurring, TimesTriggered: 1}
	target, fireCount := a.Evaluate(decimal.NewFromInt(350))
	require.Equal(t, 3, target)
	require.Equal(t, 2, fireCount)
}

func TestUsageAlert_Evaluate_ZeroThresholdNeverFires(t *testing.T) {
	a := &UsageAlert{Threshold: decimal.Zero}
	_, fireCount := a.Evaluate(decimal.NewFromInt(1000))
	require.Zero(t, fireCount)
}
