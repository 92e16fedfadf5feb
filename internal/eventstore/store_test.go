package eventstore

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/flexprice/flexprice/internal/domain/event"
	"github.com/flexprice/flexprice/internal/logger"
	"github.com/flexprice/flexprice/internal/ratelimit"
	"github.com/flexprice/flexprice/internal/types"
)

type fakeRepo struct {
	duplicates []string
	inserted   []*event.Event
}

func (r *fakeRepo) Insert(ctx context.Context, tenantID string, events []*event.Event) ([]string, error) {
	r.inserted = append(r.inserted, events...)
	return r.duplicates, nil
}

func (r *fakeRepo) Find(ctx context.Context, tenantID, code, externalCustomerID string, from, to time.Time, propertyFilters map[string][]string) ([]*event.Event, error) {
	return nil, nil
}

type fakeMirror struct{ inserted []*event.Event }

func (m *fakeMirror) Insert(ctx context.Context, tenantID string, events []*event.Event) error {
	m.inserted = append(m.inserted, events...)
	return nil
}

func (m *fakeMirror) Find(ctx context.Context, tenantID, code, externalCustomerID string, from, to time.Time, propertyFilters map[string][]string) ([]*event.Event, error) {
	return m.inserted, nil
}

func testLogger(t *testing.T) *logger.Logger {
	t.Helper()
	l, err := logger.NewLogger()
	require.NoError(t, err)
	return l
}

func withTenant(tenantID string) context.Context {
	return types.WithTenantID(context.Background(), tenantID)
}

func TestService_IngestBatch_StoresNewEvents(t *testing.T) {
	repo := &fakeRepo{}
	limiter := ratelimit.New(100, time.Minute)
	svc := NewService(repo, nil, limiter, testLogger(t))

	events := []*event.Event{
		event.New("", "tenant_1", "txn_1", "cust_1", "api_calls", time.Now(), nil),
		event.New("", "tenant_1", "txn_2", "cust_1", "api_calls", time.Now(), nil),
	}

	result, err := svc.IngestBatch(withTenant("tenant_1"), events)
	require.NoError(t, err)
	require.Equal(t, 2, result.Ingested)
	require.Zero(t, result.Duplicates)
	require.Len(t, repo.inserted, 2)
}

func TestService_IngestBatch_SkipsDuplicatesWithoutError(t *testing.T) {
	repo := &fakeRepo{duplicates: []string{"txn_1"}}
	limiter := ratelimit.New(100, time.Minute)
	svc := NewService(repo, nil, limiter, testLogger(t))

	events := []*event.Event{
		event.New("", "tenant_1", "txn_1", "cust_1", "api_calls", time.Now(), nil),
		event.New("", "tenant_1", "txn_2", "cust_1", "api_calls", time.Now(), nil),
	}

	result, err := svc.IngestBatch(withTenant("tenant_1"), events)
	require.NoError(t, err)
	require.Equal(t, 1, result.Ingested)
	require.Equal(t, 1, result.Duplicates)
}

func TestService_IngestBatch_RejectsOversizedBatch(t *testing.T) {
	repo := &fakeRepo{}
	limiter := ratelimit.New(1000, time.Minute)
	svc := NewService(repo, nil, limiter, testLogger(t))

	events := make([]*event.Event, MaxBatchSize+1)
	for i := range events {
		events[i] = event.New("", "tenant_1", "txn", "cust_1", "api_calls", time.Now(), nil)
	}

	_, err := svc.IngestBatch(withTenant("tenant_1"), events)
	require.Error(t, err)
}

func TestService_IngestBatch_RejectsMissingTransactionID(t *testing.T) {
	repo := &fakeRepo{}
	limiter := ratelimit.New(100, time.Minute)
	svc := NewService(repo, nil, limiter, testLogger(t))

	events := []*event.Event{event.New("", "tenant_1", "", "cust_1", "api_calls", time.Now(), nil)}

	_, err := svc.IngestBatch(withTenant("tenant_1"), events)
	require.Error(t, err)
}

func TestService_IngestBatch_EnforcesRateLimit(t *testing.T) {
	repo := &fakeRepo{}
	limiter := ratelimit.New(1, time.Minute)
	svc := NewService(repo, nil, limiter, testLogger(t))

	events := []*event.Event{
		event.New("", "tenant_1", "txn_1", "cust_1", "api_calls", time.Now(), nil),
		event.New("", "tenant_1", "txn_2", "cust_1", "api_calls", time.Now(), nil),
	}

	_, err := svc.IngestBatch(withTenant("tenant_1"), events)
	require.Error(t, err)
}

func TestService_IngestBatch_MirrorsNewEventsWhenConfigured(t *testing.T) {
	repo := &fakeRepo{}
	mirror := &fakeMirror{}
	limiter := ratelimit.New(100, time.Minute)
	svc := NewService(repo, mirror, limiter, testLogger(t))

	events := []*event.Event{event.New("", "tenant_1", "txn_1", "cust_1", "api_calls", time.Now(), nil)}

	_, err := svc.IngestBatch(withTenant("tenant_1"), events)
	require.NoError(t, err)
	require.Len(t, mirror.inserted, 1)
}

func TestService_Find_PrefersMirrorWhenPresent(t *testing.T) {
	repo := &fakeRepo{}
	mirror := &fakeMirror{inserted: []*event.Event{event.New("", "tenant_1", "txn_1", "cust_1", "api_calls", time.Now(), nil)}}
	limiter := ratelimit.New(100, time.Minute)
	svc := NewService(repo, mirror, limiter, testLogger(t))

	events, err := svc.Find(withTenant("tenant_1"), "api_calls", "cust_1", time.Now().Add(-time.Hour), time.Now(), nil)
	require.NoError(t, err)
	require.Len(t, events, 1)
}
