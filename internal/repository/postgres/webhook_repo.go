package postgres

import (
	"context"
	"time"

	domainwebhook "github.com/flexprice/flexprice/internal/domain/webhook"
	ierr "github.com/flexprice/flexprice/internal/errors"
	"github.com/flexprice/flexprice/internal/postgres"
	"github.com/flexprice/flexprice/internal/types"
)

// WebhookRepository implements internal/webhook.Repository.
type WebhookRepository struct {
	db postgres.IClient
}

// NewWebhookRepository builds a WebhookRepository.
func NewWebhookRepository(db postgres.IClient) *WebhookRepository {
	return &WebhookRepository{db: db}
}

func (r *WebhookRepository) ActiveEndpoints(ctx context.Context, tenantID string) ([]*domainwebhook.Endpoint, error) {
	const q = `SELECT * FROM webhook_endpoints WHERE tenant_id = $1 AND status = $2`
	var endpoints []*domainwebhook.Endpoint
	if err := r.db.Querier(ctx).SelectContext(ctx, &endpoints, q, tenantID, types.EndpointStatusActive); err != nil {
		return nil, ierr.WithError(err).WithMessage("failed to load webhook endpoints").Mark(ierr.ErrDatabase)
	}
	return endpoints, nil
}

func (r *WebhookRepository) Endpoint(ctx context.Context, endpointID string) (*domainwebhook.Endpoint, error) {
	const q = `SELECT * FROM webhook_endpoints WHERE id = $1`
	var ep domainwebhook.Endpoint
	if err := r.db.Querier(ctx).GetContext(ctx, &ep, q, endpointID); err != nil {
		return nil, ierr.WithError(err).WithMessage("failed to load webhook endpoint").Mark(ierr.ErrNotFound)
	}
	return &ep, nil
}

func (r *WebhookRepository) Create(ctx context.Context, w *domainwebhook.Webhook) error {
	w.ID = types.GenerateUUID()
	now := time.Now()
	w.CreatedAt, w.UpdatedAt = now, now
	const q = `
		INSERT INTO webhooks (id, tenant_id, event_type, payload, endpoint_id, status, retries,
			next_attempt_at, created_at, updated_at)
		VALUES (:id, :tenant_id, :event_type, :payload, :endpoint_id, :status, :retries,
			:next_attempt_at, :created_at, :updated_at)`
	if _, err := r.db.Querier(ctx).NamedExec(q, w); err != nil {
		return ierr.WithError(err).WithMessage("failed to enqueue webhook").Mark(ierr.ErrDatabase)
	}
	return nil
}

func (r *WebhookRepository) DueForDelivery(ctx context.Context, now time.Time, limit int) ([]*domainwebhook.Webhook, error) {
	const q = `
		SELECT * FROM webhooks
		WHERE status = $1 AND next_attempt_at <= $2
		ORDER BY next_attempt_at ASC
		LIMIT $3`
	var webhooks []*domainwebhook.Webhook
	if err := r.db.Querier(ctx).SelectContext(ctx, &webhooks, q, types.WebhookStatusPending, now, limit); err != nil {
		return nil, ierr.WithError(err).WithMessage("failed to load due webhooks").Mark(ierr.ErrDatabase)
	}
	return webhooks, nil
}

func (r *WebhookRepository) UpdateStatus(ctx context.Context, webhookID string, status types.WebhookDeliveryStatus, retries int, nextAttempt time.Time) error {
	const q = `
		UPDATE webhooks
		SET status = $1, retries = $2, next_attempt_at = $3, updated_at = $3
		WHERE id = $4`
	_, err := r.db.Querier(ctx).ExecContext(ctx, q, status, retries, nextAttempt, webhookID)
	if err != nil {
		return ierr.WithError(err).WithMessage("failed to update webhook status").Mark(ierr.ErrDatabase)
	}
	return nil
}

func (r *WebhookRepository) RecordAttempt(ctx context.Context, attempt *domainwebhook.DeliveryAttempt) error {
	attempt.ID = types.GenerateUUID()
	const q = `
		INSERT INTO webhook_delivery_attempts (id, webhook_id, status_code, error, attempted_at)
		VALUES (:id, :webhook_id, :status_code, :error, :attempted_at)`
	if _, err := r.db.Querier(ctx).NamedExec(q, attempt); err != nil {
		return ierr.WithError(err).WithMessage("failed to record webhook delivery attempt").Mark(ierr.ErrDatabase)
	}
	return nil
}
