// Package usagealerts evaluates subscription usage against configured
// thresholds and fires usage_alert.triggered webhooks.
package usagealerts

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/flexprice/flexprice/internal/domain/usagealert"
	ierr "github.com/flexprice/flexprice/internal/errors"
	"github.com/flexprice/flexprice/internal/logger"
)

// UsageSource computes current-period usage for a subscription's metric.
type UsageSource interface {
	CurrentUsage(ctx context.Context, subscriptionID, metricCode string, periodStart, periodEnd time.Time) (decimal.Decimal, error)
}

// Repository persists UsageAlert state and fired triggers.
type Repository interface {
	Update(ctx context.Context, alert *usagealert.UsageAlert) error
	RecordTrigger(ctx context.Context, trigger *usagealert.Trigger) error
}

// Publisher emits the usage_alert.triggered webhook.
type Publisher interface {
	PublishUsageAlertTriggered(ctx context.Context, alert *usagealert.UsageAlert, usage decimal.Decimal) error
}

// Evaluator runs the per-alert evaluation described in spec §4.8.
type Evaluator struct {
	usage   UsageSource
	repo    Repository
	publish Publisher
	logger  *logger.Logger
}

// NewEvaluator builds an Evaluator.
func NewEvaluator(usage UsageSource, repo Repository, publish Publisher, logger *logger.Logger) *Evaluator {
	return &Evaluator{usage: usage, repo: repo, publish: publish, logger: logger}
}

// Evaluate computes current usage for one alert and fires the webhook once
// per increment the alert crosses, updating times_triggered accordingly.
func (e *Evaluator) Evaluate(ctx context.Context, alert *usagealert.UsageAlert, periodStart, periodEnd time.Time, now time.Time) error {
	current, err := e.usage.CurrentUsage(ctx, alert.SubscriptionID, alert.MetricCode, periodStart, periodEnd)
	if err != nil {
		return ierr.WithError(err).WithMessage("failed to compute current usage").Mark(ierr.ErrDatabase)
	}

	target, fireCount := alert.Evaluate(current)
	if fireCount == 0 {
		return nil
	}

	for i := 0; i < fireCount; i++ {
		if err := e.repo.RecordTrigger(ctx, &usagealert.Trigger{
			UsageAlertID: alert.ID,
			Usage:        current,
			TriggeredAt:  now,
		}); err != nil {
			return ierr.WithError(err).WithMessage("failed to record usage alert trigger").Mark(ierr.ErrDatabase)
		}
		if err := e.publish.PublishUsageAlertTriggered(ctx, alert, current); err != nil {
			e.logger.Errorw("failed to publish usage_alert.triggered", "usage_alert_id", alert.ID, "error", err)
		}
	}

	alert.TimesTriggered = target
	alert.TriggeredAt = &now
	return e.repo.Update(ctx, alert)
}
