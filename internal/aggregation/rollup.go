package aggregation

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/flexprice/flexprice/internal/domain/dailyusage"
	"github.com/flexprice/flexprice/internal/domain/event"
)

// EventSource is the read side of the event store, as consumed by rollups
// and the rating service's aggregation calls.
type EventSource interface {
	Find(ctx context.Context, code, externalCustomerID string, from, to time.Time, propertyFilters map[string][]string) ([]*event.Event, error)
}

// DailyUsageRepository persists the (subscription, metric, date) rollup.
type DailyUsageRepository interface {
	Upsert(ctx context.Context, row *dailyusage.DailyUsage) error
	Get(ctx context.Context, subscriptionID, metricCode string, date time.Time) (*dailyusage.DailyUsage, error)
	Sum(ctx context.Context, subscriptionID, metricCode string, from, to time.Time) (decimal.Decimal, int, error)
}

// DailyRollup computes and persists one day's usage for (subscription,
// metric), matching spec §4.2's daily_rollup operation. It always
// aggregates the metric unfiltered; per-charge-filter aggregation is done
// live by the rating service from raw events, since filters are a property
// of the Charge, not the metric.
func DailyRollup(ctx context.Context, events EventSource, repo DailyUsageRepository, subscriptionID, externalCustomerID, metricCode string, metric Metric, date time.Time) (*dailyusage.DailyUsage, error) {
	day := date.UTC().Truncate(24 * time.Hour)
	from := day
	to := day.Add(24 * time.Hour)

	matched, err := events.Find(ctx, metricCode, externalCustomerID, from, to, nil)
	if err != nil {
		return nil, err
	}

	result, err := Aggregate(matched, metric, Filter{})
	if err != nil {
		return nil, err
	}

	row := &dailyusage.DailyUsage{
		SubscriptionID: subscriptionID,
		MetricCode:     metricCode,
		Date:           day,
		UsageValue:     result.Value,
		EventsCount:    result.EventCount,
	}
	if err := repo.Upsert(ctx, row); err != nil {
		return nil, err
	}
	return row, nil
}
