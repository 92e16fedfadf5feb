// Package webhook holds the outbox rows the dispatcher service drains;
// signing and delivery live in internal/webhook.
package webhook

import (
	"encoding/json"
	"time"

	"github.com/flexprice/flexprice/internal/types"
)

// Endpoint is a tenant-registered delivery target.
type Endpoint struct {
	ID     string             `db:"id" json:"id"`
	TenantID string           `db:"tenant_id" json:"tenant_id"`
	URL    string             `db:"url" json:"url"`
	Secret string             `db:"secret" json:"-"`
	Status types.EndpointStatus `db:"status" json:"status"`
}

// Active reports whether the endpoint currently accepts deliveries.
func (e *Endpoint) Active() bool { return e.Status == types.EndpointStatusActive }

// Webhook is one outbox entry: an event payload pending (or in the process
// of) delivery to one of the tenant's endpoints (EndpointID).
type Webhook struct {
	ID         string                      `db:"id" json:"id"`
	TenantID   string                      `db:"tenant_id" json:"tenant_id"`
	EventType  types.WebhookEventType      `db:"event_type" json:"event_type"`
	Payload    json.RawMessage             `db:"payload" json:"payload"`
	EndpointID string                      `db:"endpoint_id" json:"endpoint_id"`
	Status     types.WebhookDeliveryStatus `db:"status" json:"status"`
	Retries    int                         `db:"retries" json:"retries"`
	NextAttemptAt time.Time                `db:"next_attempt_at" json:"next_attempt_at"`
	types.BaseModel
}

// DeliveryAttempt records the outcome of one POST to the endpoint.
type DeliveryAttempt struct {
	ID         string    `db:"id" json:"id"`
	WebhookID  string    `db:"webhook_id" json:"webhook_id"`
	StatusCode int       `db:"status_code" json:"status_code,omitempty"`
	Error      string    `db:"error" json:"error,omitempty"`
	AttemptedAt time.Time `db:"attempted_at" json:"attempted_at"`
}

// New creates a pending outbox row targeted at one endpoint.
func New(tenantID, endpointID string, eventType types.WebhookEventType, payload json.RawMessage, now time.Time) *Webhook {
	return &Webhook{
		TenantID:      tenantID,
		EventType:     eventType,
		Payload:       payload,
		EndpointID:    endpointID,
		Status:        types.WebhookStatusPending,
		NextAttemptAt: now,
	}
}

// NextBackoff returns the delay before the next retry given the current
// retry count, per base·2^retries capped at 30 minutes.
func NextBackoff(base time.Duration, retries int) time.Duration {
	const maxBackoff = 30 * time.Minute
	d := base
	for i := 0; i < retries; i++ {
		d *= 2
		if d >= maxBackoff {
			return maxBackoff
		}
	}
	return d
}
