package rating

import (
	"encoding/json"
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/flexprice/flexprice/internal/charges"
	"github.com/flexprice/flexprice/internal/domain/billablemetric"
	"github.com/flexprice/flexprice/internal/domain/charge"
	"github.com/flexprice/flexprice/internal/domain/event"
	"github.com/flexprice/flexprice/internal/domain/fee"
	"github.com/flexprice/flexprice/internal/logger"
	"github.com/flexprice/flexprice/internal/types"
)

type fakeEventSource struct {
	events []*event.Event
}

func (f fakeEventSource) Find(ctx context.Context, code, externalCustomerID string, from, to time.Time, propertyFilters map[string][]string) ([]*event.Event, error) {
	return f.events, nil
}

func testLogger(t *testing.T) *logger.Logger {
	t.Helper()
	l, err := logger.NewLogger()
	require.NoError(t, err)
	return l
}

func mkEvent(props map[string]interface{}) *event.Event {
	return event.New("", "tenant_1", "txn_1", "cust_1", "api_calls", time.Now(), props)
}

func TestService_RateCharge_StandardModel(t *testing.T) {
	events := []*event.Event{mkEvent(map[string]interface{}{"count": 10.0}), mkEvent(map[string]interface{}{"count": 5.0})}
	svc := NewService(fakeEventSource{events: events}, testLogger(t))

	params, err := json.Marshal(charges.StandardParams{UnitPrice: decimal.NewFromInt(2)})
	require.NoError(t, err)

	in := ChargeInput{
		Charge: &charge.Charge{ID: "charge_1", ChargeModel: types.ChargeModelStandard, ModelParameters: params},
		Metric: &billablemetric.BillableMetric{Code: "api_calls", AggregationType: types.AggregationSum, FieldName: "count"},
	}

	f, err := svc.RateCharge(context.Background(), in, "sub_1", "cust_1", "ext_1", time.Now().Add(-time.Hour), time.Now())
	require.NoError(t, err)
	require.True(t, f.Units.Equal(decimal.NewFromInt(15)))
	require.True(t, f.AmountCents.Equal(decimal.NewFromInt(30)))
	require.Equal(t, types.FeeTypeCharge, f.FeeType)
}

func TestService_RateCharge_InvalidMetricErrors(t *testing.T) {
	svc := NewService(fakeEventSource{}, testLogger(t))
	in := ChargeInput{
		Charge: &charge.Charge{ID: "charge_1", ChargeModel: types.ChargeModelStandard},
		Metric: &billablemetric.BillableMetric{Code: "api_calls", AggregationType: types.AggregationSum, FieldName: ""},
	}

	_, err := svc.RateCharge(context.Background(), in, "sub_1", "cust_1", "ext_1", time.Now(), time.Now())
	require.Error(t, err)
}

func TestService_RateCharge_AppliesFilterFirstMatch(t *testing.T) {
	events := []*event.Event{
		mkEvent(map[string]interface{}{"count": 10.0, "region": "us"}),
		mkEvent(map[string]interface{}{"count": 20.0, "region": "eu"}),
	}
	svc := NewService(fakeEventSource{events: events}, testLogger(t))

	params, err := json.Marshal(charges.StandardParams{UnitPrice: decimal.NewFromInt(1)})
	require.NoError(t, err)

	in := ChargeInput{
		Charge: &charge.Charge{ID: "charge_1", ChargeModel: types.ChargeModelStandard, ModelParameters: params},
		Metric: &billablemetric.BillableMetric{Code: "api_calls", AggregationType: types.AggregationSum, FieldName: "count"},
		Filters: []charge.Filter{
			{ID: "f_1", Values: []charge.FilterValue{{MetricFilterKey: "region", Value: "us"}}},
		},
	}

	f, err := svc.RateCharge(context.Background(), in, "sub_1", "cust_1", "ext_1", time.Now().Add(-time.Hour), time.Now())
	require.NoError(t, err)
	require.True(t, f.Units.Equal(decimal.NewFromInt(10)))
}

func TestRateSubscriptionFee(t *testing.T) {
	f := RateSubscriptionFee("sub_1", "cust_1", decimal.NewFromInt(500))
	require.Equal(t, types.FeeTypeSubscription, f.FeeType)
	require.True(t, f.AmountCents.Equal(decimal.NewFromInt(500)))
}

func TestRateCommitment_TopsUpShortfall(t *testing.T) {
	f := RateCommitment("sub_1", "cust_1", "commit_1", nil, decimal.NewFromInt(1000))
	require.NotNil(t, f)
	require.True(t, f.AmountCents.Equal(decimal.NewFromInt(1000)))
	require.Equal(t, types.FeeTypeCommitment, f.FeeType)
}

func TestRateCommitment_NoCorrectionWhenMet(t *testing.T) {
	other := []*fee.Fee{{AmountCents: decimal.NewFromInt(1200)}}
	f := RateCommitment("sub_1", "cust_1", "commit_1", other, decimal.NewFromInt(1000))
	require.Nil(t, f)
}
