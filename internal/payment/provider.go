// Package payment defines the narrow boundary through which the billing
// engine invokes external payment-provider SDKs (spec §1 names Stripe,
// GoCardless, and Adyen as external collaborators reached only through this
// interface) and the processor that drives a PaymentRequest's collection
// attempt through it.
package payment

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	ierr "github.com/flexprice/flexprice/internal/errors"
)

// ChargeRequest is everything a provider needs to attempt one collection.
type ChargeRequest struct {
	TenantID            string
	CustomerID          string
	ProviderCustomerRef string // provider-side customer id, resolved by the caller
	AmountCents         decimal.Decimal
	Currency            string
	IdempotencyKey      string
}

// ChargeResult is the outcome of a successful charge attempt.
type ChargeResult struct {
	ProviderRef string
	ChargedAt   time.Time
}

// Provider is the narrow adapter interface every payment-provider
// integration implements. Processor.Attempt records every Charge error as a
// dunning failure, whether or not it is ierr.ErrProvider-marked; the marking
// does not change how the failure is handled.
type Provider interface {
	Name() string
	Charge(ctx context.Context, req ChargeRequest) (*ChargeResult, error)
}

// Registry resolves the configured Provider for a tenant. A real deployment
// might pick a provider per customer's saved payment method; the core
// billing engine only needs the resolved Provider to attempt a charge.
type Registry struct {
	providers map[string]Provider
	fallback  string
}

// NewRegistry builds a Registry. fallback names the provider used when a
// tenant has not configured one explicitly.
func NewRegistry(fallback string, providers ...Provider) *Registry {
	m := make(map[string]Provider, len(providers))
	for _, p := range providers {
		m[p.Name()] = p
	}
	return &Registry{providers: m, fallback: fallback}
}

// Resolve returns the named provider, or the fallback when name is empty.
func (r *Registry) Resolve(name string) (Provider, error) {
	if name == "" {
		name = r.fallback
	}
	p, ok := r.providers[name]
	if !ok {
		return nil, ierr.NewError("no payment provider configured").Mark(ierr.ErrInvalidState)
	}
	return p, nil
}
