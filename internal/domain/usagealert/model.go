// Package usagealert evaluates subscription usage against configured
// thresholds and records firings.
package usagealert

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/flexprice/flexprice/internal/types"
)

// UsageAlert watches one metric on a subscription and fires when usage
// crosses a threshold, once or on every multiple of it.
type UsageAlert struct {
	ID             string                       `db:"id" json:"id"`
	TenantID       string                       `db:"tenant_id" json:"tenant_id"`
	SubscriptionID string                       `db:"subscription_id" json:"subscription_id"`
	MetricCode     string                       `db:"metric_code" json:"metric_code"`
	Threshold      decimal.Decimal              `db:"threshold" json:"threshold"`
	Recurrence     types.UsageAlertRecurrence   `db:"recurrence" json:"recurrence"`
	TimesTriggered int                          `db:"times_triggered" json:"times_triggered"`
	TriggeredAt    *time.Time                   `db:"triggered_at" json:"triggered_at,omitempty"`
	types.BaseModel
}

// Trigger is one recorded firing of a UsageAlert.
type Trigger struct {
	ID           string    `db:"id" json:"id"`
	UsageAlertID string    `db:"usage_alert_id" json:"usage_alert_id"`
	Usage        decimal.Decimal `db:"usage" json:"usage"`
	TriggeredAt  time.Time `db:"triggered_at" json:"triggered_at"`
}

// Evaluate computes how many times this alert should have fired given the
// current usage, and reports the delta versus times_triggered (spec §4.8).
// A non-recurring alert targets at most 1; a recurring alert targets
// floor(current/threshold).
func (a *UsageAlert) Evaluate(current decimal.Decimal) (target int, fireCount int) {
	if a.Threshold.IsZero() || current.LessThan(a.Threshold) {
		return a.TimesTriggered, 0
	}
	if a.Recurrence == types.UsageAlertOneShot {
		target = 1
	} else {
		target = int(current.Div(a.Threshold).IntPart())
	}
	if target <= a.TimesTriggered {
		return a.TimesTriggered, 0
	}
	return target, target - a.TimesTriggered
}
