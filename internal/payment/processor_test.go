package payment

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/flexprice/flexprice/internal/domain/dunningcampaign"
	"github.com/flexprice/flexprice/internal/domain/invoice"
	"github.com/flexprice/flexprice/internal/domain/paymentrequest"
	"github.com/flexprice/flexprice/internal/domain/settlement"
	"github.com/flexprice/flexprice/internal/dunning"
	ierr "github.com/flexprice/flexprice/internal/errors"
	"github.com/flexprice/flexprice/internal/logger"
	"github.com/flexprice/flexprice/internal/types"
)

type fakeInvoiceRepo struct{}

func (fakeInvoiceRepo) OverdueByCurrency(ctx context.Context, customerID string, now time.Time) (map[string][]*invoice.Invoice, error) {
	return nil, nil
}

func (fakeInvoiceRepo) Settlements(ctx context.Context, invoiceID string) ([]settlement.InvoiceSettlement, error) {
	return nil, nil
}

type fakePRRepo struct{ updated []*paymentrequest.PaymentRequest }

func (r *fakePRRepo) ActiveForInvoices(ctx context.Context, invoiceIDs []string) (*paymentrequest.PaymentRequest, bool, error) {
	return nil, false, nil
}

func (r *fakePRRepo) Create(ctx context.Context, pr *paymentrequest.PaymentRequest) error { return nil }

func (r *fakePRRepo) Update(ctx context.Context, pr *paymentrequest.PaymentRequest) error {
	r.updated = append(r.updated, pr)
	return nil
}

type fakeResolver struct {
	providerName, providerRef string
	err                       error
}

func (f fakeResolver) ProviderRef(ctx context.Context, customerID string) (string, string, error) {
	return f.providerName, f.providerRef, f.err
}

type fakeSettlementRepo struct {
	recorded []settlement.InvoiceSettlement
	paid     []string
	loaded   []*invoice.Invoice
}

func (r *fakeSettlementRepo) RecordSettlements(ctx context.Context, settlements []settlement.InvoiceSettlement) error {
	r.recorded = settlements
	return nil
}

func (r *fakeSettlementRepo) MarkInvoicesPaid(ctx context.Context, invoiceIDs []string, paidAt time.Time) error {
	r.paid = invoiceIDs
	return nil
}

func (r *fakeSettlementRepo) Load(ctx context.Context, invoiceIDs []string) ([]*invoice.Invoice, error) {
	return r.loaded, nil
}

type stubProvider struct {
	name   string
	result *ChargeResult
	err    error
}

func (p stubProvider) Name() string { return p.name }

func (p stubProvider) Charge(ctx context.Context, req ChargeRequest) (*ChargeResult, error) {
	return p.result, p.err
}

func testLogger(t *testing.T) *logger.Logger {
	t.Helper()
	l, err := logger.NewLogger()
	require.NoError(t, err)
	return l
}

func TestRegistry_Resolve_FallsBackWhenNameEmpty(t *testing.T) {
	stripe := stubProvider{name: "stripe"}
	registry := NewRegistry("stripe", stripe)

	p, err := registry.Resolve("")
	require.NoError(t, err)
	require.Equal(t, "stripe", p.Name())
}

func TestRegistry_Resolve_UnknownProviderErrors(t *testing.T) {
	registry := NewRegistry("stripe", stubProvider{name: "stripe"})

	_, err := registry.Resolve("adyen")
	require.Error(t, err)
}

func TestProcessor_Attempt_SuccessSettlesInvoices(t *testing.T) {
	registry := NewRegistry("stripe", stubProvider{
		name:   "stripe",
		result: &ChargeResult{ProviderRef: "ch_123", ChargedAt: time.Now()},
	})
	settlements := &fakeSettlementRepo{loaded: []*invoice.Invoice{
		{ID: "inv_1", TenantID: "tenant_1", TotalCents: decimal.NewFromInt(1000)},
	}}
	controller := dunning.NewController(fakeInvoiceRepo{}, &fakePRRepo{}, nil, testLogger(t))
	processor := NewProcessor(registry, fakeResolver{providerName: "stripe", providerRef: "cus_123"}, settlements, controller, testLogger(t))

	pr := &paymentrequest.PaymentRequest{
		ID:          "pr_1",
		CustomerID:  "cust_1",
		InvoiceIDs:  []string{"inv_1"},
		AmountCents: decimal.NewFromInt(1000),
		Currency:    "USD",
	}
	campaign := &dunningcampaign.DunningCampaign{MaxAttempts: 3}

	err := processor.Attempt(context.Background(), pr, campaign, "idem_1", time.Now())
	require.NoError(t, err)
	require.Equal(t, types.PaymentRequestStatusSucceeded, pr.Status)
	require.Len(t, settlements.recorded, 1)
	require.Equal(t, []string{"inv_1"}, settlements.paid)
}

func TestProcessor_Attempt_FailureRecordsDunningFailure(t *testing.T) {
	registry := NewRegistry("stripe", stubProvider{
		name: "stripe",
		err:  ierr.NewError("card declined").Mark(ierr.ErrProvider),
	})
	prRepo := &fakePRRepo{}
	controller := dunning.NewController(fakeInvoiceRepo{}, prRepo, nil, testLogger(t))
	processor := NewProcessor(registry, fakeResolver{providerName: "stripe"}, &fakeSettlementRepo{}, controller, testLogger(t))

	pr := &paymentrequest.PaymentRequest{ID: "pr_1", CustomerID: "cust_1", Status: types.PaymentRequestStatusPending}
	campaign := &dunningcampaign.DunningCampaign{MaxAttempts: 3}

	err := processor.Attempt(context.Background(), pr, campaign, "idem_1", time.Now())
	require.NoError(t, err)
	require.Equal(t, 1, pr.AttemptCount)
	require.Len(t, prRepo.updated, 1)
}

func TestProcessor_Attempt_ResolverErrorSurfaces(t *testing.T) {
	registry := NewRegistry("stripe", stubProvider{name: "stripe"})
	controller := dunning.NewController(fakeInvoiceRepo{}, &fakePRRepo{}, nil, testLogger(t))
	processor := NewProcessor(registry, fakeResolver{err: ierr.NewError("customer not found").Mark(ierr.ErrNotFound)}, &fakeSettlementRepo{}, controller, testLogger(t))

	pr := &paymentrequest.PaymentRequest{ID: "pr_1", CustomerID: "cust_1"}
	campaign := &dunningcampaign.DunningCampaign{MaxAttempts: 3}

	err := processor.Attempt(context.Background(), pr, campaign, "idem_1", time.Now())
	require.Error(t, err)
}
