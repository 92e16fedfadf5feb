package notify

import (
	"context"
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"

	domaininvoice "github.com/flexprice/flexprice/internal/domain/invoice"
	domainusagealert "github.com/flexprice/flexprice/internal/domain/usagealert"
	domainwallet "github.com/flexprice/flexprice/internal/domain/wallet"
	ierr "github.com/flexprice/flexprice/internal/errors"
	"github.com/flexprice/flexprice/internal/types"
	"github.com/flexprice/flexprice/internal/webhook"
)

// Emitter is the subset of webhook.Dispatcher the publisher adapters need.
type Emitter interface {
	Emit(ctx context.Context, tenantID string, eventType types.WebhookEventType, objectType, objectID string, data json.RawMessage, now time.Time) error
}

// WalletPublisher satisfies wallet.Publisher by emitting wallet.created and
// wallet.depleted through the webhook outbox.
type WalletPublisher struct {
	dispatcher Emitter
}

// NewWalletPublisher builds a WalletPublisher.
func NewWalletPublisher(dispatcher *webhook.Dispatcher) *WalletPublisher {
	return &WalletPublisher{dispatcher: dispatcher}
}

func (p *WalletPublisher) PublishWalletCreated(ctx context.Context, w *domainwallet.Wallet) error {
	return p.emit(ctx, w.TenantID, types.WebhookEventWalletCreated, "wallet", w.ID, w)
}

func (p *WalletPublisher) PublishWalletDepleted(ctx context.Context, w *domainwallet.Wallet) error {
	return p.emit(ctx, w.TenantID, types.WebhookEventWalletDepleted, "wallet", w.ID, w)
}

func (p *WalletPublisher) emit(ctx context.Context, tenantID string, eventType types.WebhookEventType, objectType, objectID string, v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return ierr.WithError(err).WithMessage("failed to marshal webhook payload data").Mark(ierr.ErrValidation)
	}
	return p.dispatcher.Emit(ctx, tenantID, eventType, objectType, objectID, data, time.Now())
}

// UsageAlertPublisher satisfies usagealerts.Publisher by emitting
// usage_alert.triggered through the webhook outbox.
type UsageAlertPublisher struct {
	dispatcher Emitter
}

// NewUsageAlertPublisher builds a UsageAlertPublisher.
func NewUsageAlertPublisher(dispatcher *webhook.Dispatcher) *UsageAlertPublisher {
	return &UsageAlertPublisher{dispatcher: dispatcher}
}

func (p *UsageAlertPublisher) PublishUsageAlertTriggered(ctx context.Context, alert *domainusagealert.UsageAlert, usage decimal.Decimal) error {
	payload := struct {
		UsageAlertID   string          `json:"usage_alert_id"`
		SubscriptionID string          `json:"subscription_id"`
		Usage          decimal.Decimal `json:"usage"`
	}{UsageAlertID: alert.ID, SubscriptionID: alert.SubscriptionID, Usage: usage}
	data, err := json.Marshal(payload)
	if err != nil {
		return ierr.WithError(err).WithMessage("failed to marshal webhook payload data").Mark(ierr.ErrValidation)
	}
	return p.dispatcher.Emit(ctx, alert.TenantID, types.WebhookEventUsageAlertTriggered, "usage_alert", alert.ID, data, time.Now())
}

// InvoicePublisher satisfies billingrun.Publisher by emitting
// invoice.finalized through the webhook outbox.
type InvoicePublisher struct {
	dispatcher Emitter
}

// NewInvoicePublisher builds an InvoicePublisher.
func NewInvoicePublisher(dispatcher *webhook.Dispatcher) *InvoicePublisher {
	return &InvoicePublisher{dispatcher: dispatcher}
}

func (p *InvoicePublisher) PublishInvoiceFinalized(ctx context.Context, inv *domaininvoice.Invoice) error {
	return p.emit(ctx, inv.TenantID, types.WebhookEventInvoiceFinalized, "invoice", inv.ID, inv)
}

func (p *InvoicePublisher) emit(ctx context.Context, tenantID string, eventType types.WebhookEventType, objectType, objectID string, v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return ierr.WithError(err).WithMessage("failed to marshal webhook payload data").Mark(ierr.ErrValidation)
	}
	return p.dispatcher.Emit(ctx, tenantID, eventType, objectType, objectID, data, time.Now())
}
