// Package notify provides the thinnest possible adapters satisfying the
// dunning and webhook packages' Notifier interfaces. In-app notification
// storage is an explicit external collaborator (spec's Out of scope list);
// these adapters log the event so it is not silently dropped.
package notify

import (
	"context"

	"github.com/flexprice/flexprice/internal/logger"
)

// DunningNotifier satisfies dunning.Notifier.
type DunningNotifier struct {
	logger *logger.Logger
}

// NewDunningNotifier builds a DunningNotifier.
func NewDunningNotifier(logger *logger.Logger) *DunningNotifier {
	return &DunningNotifier{logger: logger}
}

func (n *DunningNotifier) Notify(ctx context.Context, tenantID, customerID, message string) error {
	n.logger.Infow("dunning notification", "tenant_id", tenantID, "customer_id", customerID, "message", message)
	return nil
}

// WebhookNotifier satisfies webhook.Notifier.
type WebhookNotifier struct {
	logger *logger.Logger
}

// NewWebhookNotifier builds a WebhookNotifier.
func NewWebhookNotifier(logger *logger.Logger) *WebhookNotifier {
	return &WebhookNotifier{logger: logger}
}

func (n *WebhookNotifier) Notify(ctx context.Context, tenantID, message string) error {
	n.logger.Infow("webhook notification", "tenant_id", tenantID, "message", message)
	return nil
}
