// Package billablemetric defines how usage events reduce to a billable number.
package billablemetric

import (
	"github.com/flexprice/flexprice/internal/types"
)

// BillableMetric is a tenant-scoped definition of a usage reduction.
type BillableMetric struct {
	ID              string                `db:"id" json:"id"`
	TenantID        string                `db:"tenant_id" json:"tenant_id"`
	Code            string                `db:"code" json:"code"` // tenant-unique
	Name            string                `db:"name" json:"name"`
	AggregationType types.AggregationType `db:"aggregation_type" json:"aggregation_type"`
	FieldName       string                `db:"field_name" json:"field_name"` // required for sum/max/unique_count/weighted_sum/latest
	Recurring       bool                  `db:"recurring" json:"recurring"`   // only valid with count/max/latest
	RoundingFunction types.RoundingFunction `db:"rounding_function" json:"rounding_function"`
	RoundingPrecision int32               `db:"rounding_precision" json:"rounding_precision"`
	Expression      string                `db:"expression" json:"expression"` // required for custom
	types.BaseModel
}

// Filter is a named, tenant-scoped predicate on a metric's event properties,
// referenced by ChargeFilterValue rows to build a Charge's ChargeFilter.
type Filter struct {
	ID       string   `db:"id" json:"id"`
	MetricID string   `db:"metric_id" json:"metric_id"`
	Key      string   `db:"key" json:"key"` // unique on (metric, key)
	Values   []string `db:"values" json:"values"`
}

// Validate checks the structural invariants spec §3 places on a metric
// definition before it can be attached to any charge.
func (m *BillableMetric) Validate() error {
	if m.AggregationType.FieldRequired() && m.FieldName == "" {
		return errFieldNameRequired
	}
	if m.AggregationType == types.AggregationCustom && m.Expression == "" {
		return errExpressionRequired
	}
	if m.Recurring {
		switch m.AggregationType {
		case types.AggregationCount, types.AggregationMax, types.AggregationLatest:
		default:
			return errRecurringNotSupported
		}
	}
	return nil
}
