// Package aggregation reduces matched events to a single billable number per
// (metric, customer, window, filter), per spec §4.2.
package aggregation

import (
	"fmt"
	"sort"

	"github.com/shopspring/decimal"

	"github.com/flexprice/flexprice/internal/domain/event"
	ierr "github.com/flexprice/flexprice/internal/errors"
	"github.com/flexprice/flexprice/internal/types"
)

// Metric is the subset of BillableMetric fields the aggregation algorithms need.
type Metric struct {
	AggregationType   types.AggregationType
	FieldName         string
	Rounding          types.RoundingFunction
	RoundingPrecision int32
}

// Result carries both the aggregated value and the matched event count: the
// rating service needs events_count independently for the percentage models'
// per-event fixed fee.
type Result struct {
	Value      decimal.Decimal
	EventCount int
}

// Aggregate reduces events matching filter to a single decimal per Metric's
// aggregation_type, rounding the final result when Metric.Rounding is set.
// events need not be pre-filtered; Aggregate applies filter itself so
// callers can pass a metric's full matched set once and aggregate per charge filter.
func Aggregate(events []*event.Event, metric Metric, filter Filter) (Result, error) {
	if metric.AggregationType.FieldRequired() && metric.FieldName == "" {
		return Result{}, ierr.NewError("aggregation type requires a field_name").
			WithReportableDetails(map[string]any{"aggregation_type": string(metric.AggregationType)}).
			Mark(ierr.ErrValidation)
	}

	matched := make([]*event.Event, 0, len(events))
	for _, e := range events {
		if filter.Matches(e) {
			matched = append(matched, e)
		}
	}

	var value decimal.Decimal
	switch metric.AggregationType {
	case types.AggregationCount:
		value = decimal.NewFromInt(int64(len(matched)))

	case types.AggregationSum:
		value = sumField(matched, metric.FieldName)

	case types.AggregationMax:
		value = maxField(matched, metric.FieldName)

	case types.AggregationUniqueCount:
		value = decimal.NewFromInt(int64(uniqueFieldCount(matched, metric.FieldName)))

	case types.AggregationWeightedSum:
		// Reserved per spec §9: treated as sum of field_name weighted by an
		// optional "weight" property, defaulting to 1 when absent.
		value = weightedSumField(matched, metric.FieldName)

	case types.AggregationLatest:
		value = latestField(matched, metric.FieldName)

	case types.AggregationCustom:
		// Reserved per spec §9: custom/expression aggregation is not
		// exercised here; the hook returns zero rather than guessing at
		// expression-evaluation semantics the source does not pin down.
		value = decimal.Zero

	default:
		return Result{}, ierr.NewError("unknown aggregation type").
			WithReportableDetails(map[string]any{"aggregation_type": string(metric.AggregationType)}).
			Mark(ierr.ErrValidation)
	}

	if metric.Rounding != "" {
		value = types.ApplyRounding(metric.Rounding, metric.RoundingPrecision, value)
	}

	return Result{Value: value, EventCount: len(matched)}, nil
}

func numericProperty(e *event.Event, field string) (decimal.Decimal, bool) {
	v, ok := e.Properties[field]
	if !ok {
		return decimal.Zero, false
	}
	switch t := v.(type) {
	case float64:
		return decimal.NewFromFloat(t), true
	case int:
		return decimal.NewFromInt(int64(t)), true
	case int64:
		return decimal.NewFromInt(t), true
	case string:
		d, err := decimal.NewFromString(t)
		if err != nil {
			return decimal.Zero, false
		}
		return d, true
	default:
		return decimal.Zero, false
	}
}

func sumField(events []*event.Event, field string) decimal.Decimal {
	total := decimal.Zero
	for _, e := range events {
		if v, ok := numericProperty(e, field); ok {
			total = total.Add(v)
		}
	}
	return total
}

func maxField(events []*event.Event, field string) decimal.Decimal {
	max := decimal.Zero
	seen := false
	for _, e := range events {
		v, ok := numericProperty(e, field)
		if !ok {
			continue
		}
		if !seen || v.GreaterThan(max) {
			max = v
			seen = true
		}
	}
	return max
}

func uniqueFieldCount(events []*event.Event, field string) int {
	seen := make(map[string]struct{})
	for _, e := range events {
		if v, ok := e.Properties[field]; ok {
			seen[toKey(v)] = struct{}{}
		}
	}
	return len(seen)
}

func weightedSumField(events []*event.Event, field string) decimal.Decimal {
	total := decimal.Zero
	for _, e := range events {
		v, ok := numericProperty(e, field)
		if !ok {
			continue
		}
		weight, ok := numericProperty(e, "weight")
		if !ok {
			weight = decimal.NewFromInt(1)
		}
		total = total.Add(v.Mul(weight))
	}
	return total
}

func latestField(events []*event.Event, field string) decimal.Decimal {
	sorted := make([]*event.Event, len(events))
	copy(sorted, events)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Timestamp.Before(sorted[j].Timestamp) })

	for i := len(sorted) - 1; i >= 0; i-- {
		if v, ok := numericProperty(sorted[i], field); ok {
			return v
		}
	}
	return decimal.Zero
}

func toKey(v interface{}) string {
	return fmt.Sprintf("%v", v)
}
