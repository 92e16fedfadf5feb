package usagealerts

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/flexprice/flexprice/internal/domain/usagealert"
	"github.com/flexprice/flexprice/internal/logger"
	"github.com/flexprice/flexprice/internal/types"
)

type fakeUsageSource struct{ usage decimal.Decimal }

func (f fakeUsageSource) CurrentUsage(ctx context.Context, subscriptionID, metricCode string, periodStart, periodEnd time.Time) (decimal.Decimal, error) {
	return f.usage, nil
}

type fakeRepo struct {
	triggers []*usagealert.Trigger
	updated  []*usagealert.UsageAlert
}

func (r *fakeRepo) Update(ctx context.Context, alert *usagealert.UsageAlert) error {
	r.updated = append(r.updated, alert)
	return nil
}

func (r *fakeRepo) RecordTrigger(ctx context.Context, trigger *usagealert.Trigger) error {
	r.triggers = append(r.triggers, trigger)
	return nil
}

type fakePublisher struct{ published int }

func (p *fakePublisher) PublishUsageAlertTriggered(ctx context.Context, alert *usagealert.UsageAlert, usage decimal.Decimal) error {
	p.published++
	return nil
}

func testLogger(t *testing.T) *logger.Logger {
	t.Helper()
	l, err := logger.NewLogger()
	require.NoError(t, err)
	return l
}

func TestEvaluator_Evaluate_OneShotFiresOnce(t *testing.T) {
	repo := &fakeRepo{}
	pub := &fakePublisher{}
	e := NewEvaluator(fakeUsageSource{usage: decimal.NewFromInt(150)}, repo, pub, testLogger(t))

	alert := &usagealert.UsageAlert{ID: "alert_1", Threshold: decimal.NewFromInt(100), Recurrence: types.UsageAlertOneShot}

	err := e.Evaluate(context.Background(), alert, time.Now().Add(-time.Hour), time.Now(), time.Now())
	require.NoError(t, err)
	require.Len(t, repo.triggers, 1)
	require.Equal(t, 1, pub.published)
	require.Equal(t, 1, alert.TimesTriggered)
	require.Len(t, repo.updated, 1)
}

func TestEvaluator_Evaluate_OneShotDoesNotRefire(t *testing.T) {
	repo := &fakeRepo{}
	pub := &fakePublisher{}
	e := NewEvaluator(fakeUsageSource{usage: decimal.NewFromInt(500)}, repo, pub, testLogger(t))

	alert := &usagealert.UsageAlert{ID: "alert_1", Threshold: decimal.NewFromInt(100), Recurrence: types.UsageAlertOneShot, TimesTriggered: 1}

	err := e.Evaluate(context.Background(), alert, time.Now().Add(-time.Hour), time.Now(), time.Now())
	require.NoError(t, err)
	require.Empty(t, repo.triggers)
	require.Zero(t, pub.published)
}

func TestEvaluator_Evaluate_RecurringFiresMultipleIncrements(t *testing.T) {
	repo := &fakeRepo{}
	pub := &fakePublisher{}
	e := NewEvaluator(fakeUsageSource{usage: decimal.NewFromInt(350)}, repo, pub, testLogger(t))

	alert := &usagealert.UsageAlert{ID: "alert_1", Threshold: decimal.NewFromInt(100), Recurrence: types.UsageAlertRecurring}

	err := e.Evaluate(context.Background(), alert, time.Now().Add(-time.Hour), time.Now(), time.Now())
	require.NoError(t, err)
	require.Len(t, repo.triggers, 3)
	require.Equal(t, 3, pub.published)
	require.Equal(t, 3, alert.TimesTriggered)
}

func TestEvaluator_Evaluate_BelowThresholdDoesNothing(t *testing.T) {
	repo := &fakeRepo{}
	pub := &fakePublisher{}
	e := NewEvaluator(fakeUsageSource{usage: decimal.NewFromInt(50)}, repo, pub, testLogger(t))

	alert := &usagealert.UsageAlert{ID: "alert_1", Threshold: decimal.NewFromInt(100), Recurrence: types.UsageAlertRecurring}

	err := e.Evaluate(context.Background(), alert, time.Now().Add(-time.Hour), time.Now(), time.Now())
	require.NoError(t, err)
	require.Empty(t, repo.triggers)
	require.Empty(t, repo.updated)
}
