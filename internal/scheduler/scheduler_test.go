package scheduler

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/flexprice/flexprice/internal/logger"
)

type fakeTenantLister struct{ tenants []string }

func (f fakeTenantLister) ListActiveTenants(ctx context.Context) ([]string, error) {
	return f.tenants, nil
}

type fakeLeaseRepo struct {
	mu     sync.Mutex
	leased map[string]bool
}

func newFakeLeaseRepo() *fakeLeaseRepo {
	return &fakeLeaseRepo{leased: make(map[string]bool)}
}

func (r *fakeLeaseRepo) Acquire(ctx context.Context, tenantID string, task TaskName, period time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := tenantID + "/" + string(task) + "/" + period.String()
	if r.leased[key] {
		return false, nil
	}
	r.leased[key] = true
	return true, nil
}

func testLogger(t *testing.T) *logger.Logger {
	t.Helper()
	l, err := logger.NewLogger()
	require.NoError(t, err)
	return l
}

func TestScheduler_RunTick_FansOutPerTenant(t *testing.T) {
	tenants := fakeTenantLister{tenants: []string{"tenant_1", "tenant_2"}}
	leases := newFakeLeaseRepo()
	s := New(tenants, leases, 4, testLogger(t))

	var mu sync.Mutex
	var ran []string
	s.runTick(context.Background(), TaskDunningTick, func(ctx context.Context, tenantID string) error {
		mu.Lock()
		ran = append(ran, tenantID)
		mu.Unlock()
		return nil
	})

	require.ElementsMatch(t, []string{"tenant_1", "tenant_2"}, ran)
}

func TestScheduler_RunTick_SkipsWhenLeaseNotAcquired(t *testing.T) {
	tenants := fakeTenantLister{tenants: []string{"tenant_1"}}
	leases := newFakeLeaseRepo()
	s := New(tenants, leases, 4, testLogger(t))

	var calls int
	task := func(ctx context.Context, tenantID string) error {
		calls++
		return nil
	}

	// Pin "now" to the same minute for both ticks so the lease key collides.
	now := time.Now().Truncate(time.Minute)
	period := now

	acquired, err := leases.Acquire(context.Background(), "tenant_1", TaskDunningTick, period)
	require.NoError(t, err)
	require.True(t, acquired)

	s.runTick(context.Background(), TaskDunningTick, task)
	require.Zero(t, calls)
}

func TestScheduler_Register_InvalidCronSpecErrors(t *testing.T) {
	s := New(fakeTenantLister{}, newFakeLeaseRepo(), 1, testLogger(t))
	err := s.Register("not a cron spec", TaskPeriodicInvoicing, func(ctx context.Context, tenantID string) error { return nil })
	require.Error(t, err)
}

func TestScheduler_RegisterGlobal_FiresOnce(t *testing.T) {
	leases := newFakeLeaseRepo()
	s := New(fakeTenantLister{}, leases, 1, testLogger(t))

	var calls int
	err := s.RegisterGlobal("* * * * *", TaskWebhookRetry, func(ctx context.Context) error {
		calls++
		return nil
	})
	require.NoError(t, err)

	entries := s.cron.Entries()
	require.Len(t, entries, 1)
	entries[0].Job.Run()
	entries[0].Job.Run()

	require.Equal(t, 1, calls)
}
