// Package dailyusage holds the pre-aggregated per-day usage rollup used to
// speed up recurring-metric aggregation without re-scanning raw events.
package dailyusage

import (
	"time"

	"github.com/shopspring/decimal"
)

// DailyUsage is the pre-aggregated (subscription, metric, date) -> usage row.
type DailyUsage struct {
	ID             string          `db:"id" json:"id"`
	TenantID       string          `db:"tenant_id" json:"tenant_id"`
	SubscriptionID string          `db:"subscription_id" json:"subscription_id"`
	MetricCode     string          `db:"metric_code" json:"metric_code"`
	Date           time.Time       `db:"date" json:"date"` // truncated to day, UTC
	UsageValue     decimal.Decimal `db:"usage_value" json:"usage_value"`
	EventsCount    int             `db:"events_count" json:"events_count"`
}
