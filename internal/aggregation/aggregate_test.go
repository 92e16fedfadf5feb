package aggregation

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/flexprice/flexprice/internal/domain/event"
	"github.com/flexprice/flexprice/internal/types"
)

func mkEvent(props map[string]interface{}) *event.Event {
	return event.New("", "org_1", "txn_"+time.Now().Format(time.RFC3339Nano), "cust_1", "api_calls", time.Now(), props)
}

func TestAggregateCount(t *testing.T) {
	events := []*event.Event{mkEvent(nil), mkEvent(nil), mkEvent(nil)}
	result, err := Aggregate(events, Metric{AggregationType: types.AggregationCount}, Filter{})
	require.NoError(t, err)
	require.Equal(t, "3", result.Value.String())
	require.Equal(t, 3, result.EventCount)
}

func TestAggregateSum(t *testing.T) {
	events := []*event.Event{
		mkEvent(map[string]interface{}{"duration": 10.0}),
		mkEvent(map[string]interface{}{"duration": 5.0}),
	}
	result, err := Aggregate(events, Metric{AggregationType: types.AggregationSum, FieldName: "duration"}, Filter{})
	require.NoError(t, err)
	require.True(t, result.Value.Equal(decimal.NewFromInt(15)), "got %s", result.Value)
}

func TestAggregateSumRequiresField(t *testing.T) {
	_, err := Aggregate(nil, Metric{AggregationType: types.AggregationSum}, Filter{})
	require.Error(t, err)
}

func TestFilterMatchesFirstOfCandidates(t *testing.T) {
	e := mkEvent(map[string]interface{}{"region": "us"})
	candidates := []Filter{
		{Values: map[string]string{"region": "eu"}},
		{Values: map[string]string{"region": "us"}},
	}
	matched, ok := SelectFilter(e, candidates)
	require.True(t, ok)
	require.Equal(t, "us", matched.Values["region"])
}
