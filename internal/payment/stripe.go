package payment

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/stripe/stripe-go/v82"

	ierr "github.com/flexprice/flexprice/internal/errors"
	"github.com/flexprice/flexprice/internal/logger"
)

// StripeAdapter charges a saved, off-session payment method through Stripe's
// PaymentIntents API. It is the concrete Provider the dunning controller's
// collection loop invokes for tenants configured to collect via Stripe.
type StripeAdapter struct {
	client *stripe.Client
	logger *logger.Logger
}

// NewStripeAdapter builds a StripeAdapter for the given tenant secret key.
func NewStripeAdapter(secretKey string, logger *logger.Logger) *StripeAdapter {
	return &StripeAdapter{client: stripe.NewClient(secretKey, nil), logger: logger}
}

func (a *StripeAdapter) Name() string { return "stripe" }

// Charge creates and confirms an off-session PaymentIntent, retrying
// transient network/5xx failures with exponential backoff (declines and
// authentication-required responses are not retried -- they are
// provider-definitive outcomes, not transient blips).
func (a *StripeAdapter) Charge(ctx context.Context, req ChargeRequest) (*ChargeResult, error) {
	amountInCents := req.AmountCents.IntPart()
	params := &stripe.PaymentIntentCreateParams{
		Amount:     stripe.Int64(amountInCents),
		Currency:   stripe.String(req.Currency),
		Customer:   stripe.String(req.ProviderCustomerRef),
		OffSession: stripe.Bool(true),
		Confirm:    stripe.Bool(true),
		Metadata: map[string]string{
			"tenant_id":       req.TenantID,
			"customer_id":     req.CustomerID,
			"idempotency_key": req.IdempotencyKey,
		},
	}

	var intent *stripe.PaymentIntent
	operation := func() error {
		var err error
		intent, err = a.client.V1PaymentIntents.Create(ctx, params)
		if err != nil {
			if stripeErr, ok := err.(*stripe.Error); ok {
				switch stripeErr.Code {
				case stripe.ErrorCodeCardDeclined, stripe.ErrorCodeAuthenticationRequired:
					return backoff.Permanent(ierr.WithError(err).
						WithMessage("payment declined by provider").
						Mark(ierr.ErrProvider))
				}
			}
			return err // transient: retried
		}
		return nil
	}

	policy := backoff.WithMaxRetries(backoff.NewExponentialBackOff(), 3)
	if err := backoff.Retry(operation, backoff.WithContext(policy, ctx)); err != nil {
		if ierr.IsProvider(err) {
			return nil, err
		}
		a.logger.Errorw("stripe charge failed", "customer_id", req.CustomerID, "error", err)
		return nil, ierr.WithError(err).WithMessage("failed to charge stripe payment method").Mark(ierr.ErrProvider)
	}

	if intent.Status != stripe.PaymentIntentStatusSucceeded {
		return nil, ierr.NewError("payment intent did not succeed").
			WithReportableDetails(map[string]any{"status": string(intent.Status)}).
			Mark(ierr.ErrProvider)
	}

	return &ChargeResult{ProviderRef: intent.ID, ChargedAt: time.Now()}, nil
}
