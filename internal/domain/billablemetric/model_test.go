package billablemetric

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/flexprice/flexprice/internal/types"
)

func TestValidate_SumRequiresFieldName(t *testing.T) {
	m := &BillableMetric{AggregationType: types.AggregationSum}
	require.Error(t, m.Validate())
}

func TestValidate_CountNeedsNoFieldName(t *testing.T) {
	m := &BillableMetric{AggregationType: types.AggregationCount}
	require.NoError(t, m.Validate())
}

func TestValidate_CustomRequiresExpression(t *testing.T) {
	m := &BillableMetric{AggregationType: types.AggregationCustom}
	require.Error(t, m.Validate())
}

func TestValidate_RecurringOnlyValidForCountMaxLatest(t *testing.T) {
	m := &BillableMetric{AggregationType: types.AggregationSum, FieldName: "amount", Recurring: true}
	require.Error(t, m.Validate())
}

func TestValidate_RecurringValidForCount(t *testing.T) {
	m := &BillableMetric{AggregationType: types.AggregationCount, Recurring: true}
	require.NoError(t, m.Validate())
}
