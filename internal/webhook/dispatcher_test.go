package webhook

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	domainwebhook "github.com/flexprice/flexprice/internal/domain/webhook"
	"github.com/flexprice/flexprice/internal/logger"
	"github.com/flexprice/flexprice/internal/types"
)

type fakeRepo struct {
	mu        sync.Mutex
	endpoints map[string]*domainwebhook.Endpoint
	created   []*domainwebhook.Webhook
	due       []*domainwebhook.Webhook
	statuses  map[string]types.WebhookDeliveryStatus
	attempts  []*domainwebhook.DeliveryAttempt
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{endpoints: make(map[string]*domainwebhook.Endpoint), statuses: make(map[string]types.WebhookDeliveryStatus)}
}

func (r *fakeRepo) ActiveEndpoints(ctx context.Context, tenantID string) ([]*domainwebhook.Endpoint, error) {
	var out []*domainwebhook.Endpoint
	for _, ep := range r.endpoints {
		if ep.TenantID == tenantID {
			out = append(out, ep)
		}
	}
	return out, nil
}

func (r *fakeRepo) Create(ctx context.Context, w *domainwebhook.Webhook) error {
	w.ID = "wh_1"
	r.mu.Lock()
	defer r.mu.Unlock()
	r.created = append(r.created, w)
	return nil
}

func (r *fakeRepo) DueForDelivery(ctx context.Context, now time.Time, limit int) ([]*domainwebhook.Webhook, error) {
	return r.due, nil
}

func (r *fakeRepo) UpdateStatus(ctx context.Context, webhookID string, status types.WebhookDeliveryStatus, retries int, nextAttempt time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.statuses[webhookID] = status
	return nil
}

func (r *fakeRepo) RecordAttempt(ctx context.Context, attempt *domainwebhook.DeliveryAttempt) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.attempts = append(r.attempts, attempt)
	return nil
}

func (r *fakeRepo) Endpoint(ctx context.Context, endpointID string) (*domainwebhook.Endpoint, error) {
	return r.endpoints[endpointID], nil
}

func testLogger(t *testing.T) *logger.Logger {
	t.Helper()
	l, err := logger.NewLogger()
	require.NoError(t, err)
	return l
}

func TestDispatcher_Emit_CreatesOneWebhookPerActiveEndpoint(t *testing.T) {
	repo := newFakeRepo()
	repo.endpoints["ep_active"] = &domainwebhook.Endpoint{ID: "ep_active", TenantID: "tenant_1", URL: "http://example.com", Status: types.EndpointStatusActive}
	repo.endpoints["ep_disabled"] = &domainwebhook.Endpoint{ID: "ep_disabled", TenantID: "tenant_1", URL: "http://example.com", Status: types.EndpointStatus("disabled")}

	d := NewDispatcher(repo, nil, time.Second, 30*time.Second, 3, 2, testLogger(t))

	err := d.Emit(context.Background(), "tenant_1", types.WebhookEventInvoiceFinalized, "invoice", "inv_1", json.RawMessage(`{}`), time.Now())
	require.NoError(t, err)
	require.Len(t, repo.created, 1)
	require.Equal(t, "ep_active", repo.created[0].EndpointID)
}

func TestDispatcher_RedeliverDue_MarksSuccessOn2xx(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	repo := newFakeRepo()
	repo.endpoints["ep_1"] = &domainwebhook.Endpoint{ID: "ep_1", TenantID: "tenant_1", URL: srv.URL, Secret: "shh", Status: types.EndpointStatusActive}
	repo.due = []*domainwebhook.Webhook{{ID: "wh_1", TenantID: "tenant_1", EndpointID: "ep_1", Payload: json.RawMessage(`{}`)}}

	d := NewDispatcher(repo, nil, 5*time.Second, time.Second, 3, 2, testLogger(t))
	require.NoError(t, d.RedeliverDue(context.Background(), time.Now(), 10))

	require.Equal(t, types.WebhookStatusSuccess, repo.statuses["wh_1"])
	require.Len(t, repo.attempts, 1)
	require.Equal(t, http.StatusOK, repo.attempts[0].StatusCode)
}

func TestDispatcher_RedeliverDue_RetriesOnFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	repo := newFakeRepo()
	repo.endpoints["ep_1"] = &domainwebhook.Endpoint{ID: "ep_1", TenantID: "tenant_1", URL: srv.URL, Secret: "shh", Status: types.EndpointStatusActive}
	repo.due = []*domainwebhook.Webhook{{ID: "wh_1", TenantID: "tenant_1", EndpointID: "ep_1", Payload: json.RawMessage(`{}`), Retries: 0}}

	d := NewDispatcher(repo, nil, 5*time.Second, time.Second, 3, 2, testLogger(t))
	require.NoError(t, d.RedeliverDue(context.Background(), time.Now(), 10))

	require.Equal(t, types.WebhookStatusPending, repo.statuses["wh_1"])
}

type fakeNotifier struct{ notified int }

func (n *fakeNotifier) Notify(ctx context.Context, tenantID, message string) error {
	n.notified++
	return nil
}

func TestDispatcher_RedeliverDue_ExhaustsRetriesAndNotifies(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	repo := newFakeRepo()
	repo.endpoints["ep_1"] = &domainwebhook.Endpoint{ID: "ep_1", TenantID: "tenant_1", URL: srv.URL, Secret: "shh", Status: types.EndpointStatusActive}
	repo.due = []*domainwebhook.Webhook{{ID: "wh_1", TenantID: "tenant_1", EndpointID: "ep_1", Payload: json.RawMessage(`{}`), Retries: 2}}

	notifier := &fakeNotifier{}
	d := NewDispatcher(repo, notifier, 5*time.Second, time.Second, 3, 2, testLogger(t))
	require.NoError(t, d.RedeliverDue(context.Background(), time.Now(), 10))

	require.Equal(t, types.WebhookStatusFailed, repo.statuses["wh_1"])
	require.Equal(t, 1, notifier.notified)
}
