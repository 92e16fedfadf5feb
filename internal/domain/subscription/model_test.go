package subscription

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/flexprice/flexprice/internal/types"
)

func TestSubscription_InTrial_BeforeTrialEnd(t *testing.T) {
	sub := &Subscription{SubscriptionAt: time.Now(), TrialPeriodDays: 14}
	require.True(t, sub.InTrial(time.Now().Add(24*time.Hour)))
}

func TestSubscription_InTrial_AfterTrialEnd(t *testing.T) {
	sub := &Subscription{SubscriptionAt: time.Now().AddDate(0, 0, -20), TrialPeriodDays: 14}
	require.False(t, sub.InTrial(time.Now()))
}

func TestSubscription_InTrial_ZeroTrialPeriodAlwaysFalse(t *testing.T) {
	sub := &Subscription{SubscriptionAt: time.Now()}
	require.False(t, sub.InTrial(time.Now()))
}

func TestSubscription_PeriodJustEnded_ActiveAndPastEnd(t *testing.T) {
	sub := &Subscription{Status: types.SubscriptionStatusActive, CurrentPeriodEnd: time.Now().Add(-time.Minute)}
	require.True(t, sub.PeriodJustEnded(time.Now()))
}

func TestSubscription_PeriodJustEnded_NotYetEnded(t *testing.T) {
	sub := &Subscription{Status: types.SubscriptionStatusActive, CurrentPeriodEnd: time.Now().Add(time.Hour)}
	require.False(t, sub.PeriodJustEnded(time.Now()))
}

func TestSubscription_IsPaused_PausedAndNotResumed(t *testing.T) {
	pausedAt := time.Now().Add(-time.Hour)
	sub := &Subscription{PausedAt: &pausedAt}
	require.True(t, sub.IsPaused())
}

func TestSubscription_IsPaused_ResumedAfterPause(t *testing.T) {
	pausedAt := time.Now().Add(-time.Hour)
	resumedAt := time.Now()
	sub := &Subscription{PausedAt: &pausedAt, ResumedAt: &resumedAt}
	require.False(t, sub.IsPaused())
}

func TestSubscription_IsPaused_NeverPaused(t *testing.T) {
	sub := &Subscription{}
	require.False(t, sub.IsPaused())
}
