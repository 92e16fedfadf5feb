// Package webhook implements the outbox dispatcher of spec §4.9: every
// outbound domain event becomes one pending row per active endpoint, signed
// and POSTed with bounded concurrency, retried with capped exponential
// backoff, and recorded as a DeliveryAttempt either way.
package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/sourcegraph/conc/pool"

	domainwebhook "github.com/flexprice/flexprice/internal/domain/webhook"
	ierr "github.com/flexprice/flexprice/internal/errors"
	"github.com/flexprice/flexprice/internal/logger"
	"github.com/flexprice/flexprice/internal/types"
)

// Payload is the JSON body delivered to every endpoint (spec §6).
type Payload struct {
	EventID    string          `json:"event_id"`
	WebhookType string         `json:"webhook_type"`
	ObjectType string          `json:"object_type"`
	ObjectID   string          `json:"object_id"`
	CreatedAt  time.Time       `json:"created_at"`
	Data       json.RawMessage `json:"data"`
}

// Repository is the outbox persistence boundary.
type Repository interface {
	ActiveEndpoints(ctx context.Context, tenantID string) ([]*domainwebhook.Endpoint, error)
	Create(ctx context.Context, w *domainwebhook.Webhook) error
	DueForDelivery(ctx context.Context, now time.Time, limit int) ([]*domainwebhook.Webhook, error)
	UpdateStatus(ctx context.Context, webhookID string, status types.WebhookDeliveryStatus, retries int, nextAttempt time.Time) error
	RecordAttempt(ctx context.Context, attempt *domainwebhook.DeliveryAttempt) error
	Endpoint(ctx context.Context, endpointID string) (*domainwebhook.Endpoint, error)
}

// Notifier raises an in-app notification when a webhook exhausts its retries.
type Notifier interface {
	Notify(ctx context.Context, tenantID, message string) error
}

// Dispatcher drives webhook creation and delivery.
type Dispatcher struct {
	repo        Repository
	client      *http.Client
	notify      Notifier
	maxRetries  int
	baseBackoff time.Duration
	concurrency int
	logger      *logger.Logger
}

// NewDispatcher builds a Dispatcher. deliveryTimeout bounds each outbound
// POST (spec §5 "explicit timeout, default 15s"); baseBackoff/maxRetries
// configure the retry schedule (spec §4.9).
func NewDispatcher(repo Repository, notify Notifier, deliveryTimeout, baseBackoff time.Duration, maxRetries, concurrency int, logger *logger.Logger) *Dispatcher {
	return &Dispatcher{
		repo:        repo,
		client:      &http.Client{Timeout: deliveryTimeout},
		notify:      notify,
		maxRetries:  maxRetries,
		baseBackoff: baseBackoff,
		concurrency: concurrency,
		logger:      logger,
	}
}

// Emit creates one pending outbox row per active endpoint belonging to the
// tenant. Disabled endpoints are skipped (spec §4.9).
func (d *Dispatcher) Emit(ctx context.Context, tenantID string, eventType types.WebhookEventType, objectType, objectID string, data json.RawMessage, now time.Time) error {
	endpoints, err := d.repo.ActiveEndpoints(ctx, tenantID)
	if err != nil {
		return ierr.WithError(err).WithMessage("failed to list webhook endpoints").Mark(ierr.ErrDatabase)
	}
	for _, ep := range endpoints {
		if !ep.Active() {
			continue
		}
		payload, err := json.Marshal(Payload{
			EventID:     types.GenerateUUID(),
			WebhookType: string(eventType),
			ObjectType:  objectType,
			ObjectID:    objectID,
			CreatedAt:   now,
			Data:        data,
		})
		if err != nil {
			return ierr.WithError(err).WithMessage("failed to marshal webhook payload").Mark(ierr.ErrValidation)
		}
		w := domainwebhook.New(tenantID, ep.ID, eventType, payload, now)
		if err := d.repo.Create(ctx, w); err != nil {
			return ierr.WithError(err).WithMessage("failed to enqueue webhook").Mark(ierr.ErrDatabase)
		}
	}
	return nil
}

// RedeliverDue loads every webhook whose next_attempt_at has passed and
// attempts redelivery to each, up to `limit` webhooks, with bounded
// concurrency. Ordering across endpoints is not guaranteed (spec §4.9).
func (d *Dispatcher) RedeliverDue(ctx context.Context, now time.Time, limit int) error {
	due, err := d.repo.DueForDelivery(ctx, now, limit)
	if err != nil {
		return ierr.WithError(err).WithMessage("failed to load due webhooks").Mark(ierr.ErrDatabase)
	}

	p := pool.New().WithMaxGoroutines(d.concurrency)
	for _, w := range due {
		w := w
		p.Go(func() {
			if err := d.deliver(ctx, w, now); err != nil {
				d.logger.Errorw("webhook delivery failed", "webhook_id", w.ID, "error", err)
			}
		})
	}
	p.Wait()
	return nil
}

func (d *Dispatcher) deliver(ctx context.Context, w *domainwebhook.Webhook, now time.Time) error {
	endpoint, err := d.repo.Endpoint(ctx, w.EndpointID)
	if err != nil {
		return ierr.WithError(err).WithMessage("failed to load webhook endpoint").Mark(ierr.ErrDatabase)
	}
	if !endpoint.Active() {
		return d.repo.UpdateStatus(ctx, w.ID, types.WebhookStatusFailed, w.Retries, now)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint.URL, bytes.NewReader(w.Payload))
	if err != nil {
		return ierr.WithError(err).WithMessage("failed to build webhook request").Mark(ierr.ErrValidation)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Signature", "sha256="+Sign(endpoint.Secret, w.Payload))

	attempt := &domainwebhook.DeliveryAttempt{WebhookID: w.ID, AttemptedAt: now}
	resp, sendErr := d.client.Do(req)
	if sendErr == nil {
		defer resp.Body.Close()
		attempt.StatusCode = resp.StatusCode
	} else {
		attempt.Error = sendErr.Error()
	}
	if err := d.repo.RecordAttempt(ctx, attempt); err != nil {
		d.logger.Errorw("failed to record webhook delivery attempt", "webhook_id", w.ID, "error", err)
	}

	success := sendErr == nil && resp.StatusCode >= 200 && resp.StatusCode < 300
	if success {
		return d.repo.UpdateStatus(ctx, w.ID, types.WebhookStatusSuccess, w.Retries, now)
	}

	w.Retries++
	if w.Retries >= d.maxRetries {
		if d.notify != nil {
			if err := d.notify.Notify(ctx, w.TenantID, "webhook delivery exhausted retries"); err != nil {
				d.logger.Errorw("failed to raise webhook notification", "webhook_id", w.ID, "error", err)
			}
		}
		return d.repo.UpdateStatus(ctx, w.ID, types.WebhookStatusFailed, w.Retries, now)
	}
	next := now.Add(domainwebhook.NextBackoff(d.baseBackoff, w.Retries))
	return d.repo.UpdateStatus(ctx, w.ID, types.WebhookStatusPending, w.Retries, next)
}
