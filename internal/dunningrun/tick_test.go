package dunningrun

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
	"github.com/flexprice/flexprice/internal/idempotency"
	"github.com/flexprice/flexprice/internal/logger"
	"github.com/flexprice/flexprice/internal/payment"
	"github.com/flexprice/flexprice/internal/types"
)

type fakeCustomerLister struct{ overdue []string }

func (f fakeCustomerLister) WithOverdueInvoices(ctx context.Context, tenantID string, now time.Time) ([]string, error) {
	return f.overdue, nil
}

type fakeCampaignRepo struct{ campaign *dunningcampaign.DunningCampaign }

func (f fakeCampaignRepo) DefaultCampaign(ctx context.Context, tenantID string) (*dunningcampaign.DunningCampaign, error) {
	return f.campaign, nil
}

type fakePendingLister struct{ pending []*paymentrequest.PaymentRequest }

func (f fakePendingLister) PendingForTenant(ctx context.Context, tenantID string) ([]*paymentrequest.PaymentRequest, error) {
	return f.pending, nil
}

type fakeInvoiceRepo struct {
	byCurrency map[string][]*invoice.Invoice
}

func (r fakeInvoiceRepo) OverdueByCurrency(ctx context.Context, customerID string, now time.Time) (map[string][]*invoice.Invoice, error) {
	return r.byCurrency, nil
}

func (r fakeInvoiceRepo) Settlements(ctx context.Context, invoiceID string) ([]settlement.InvoiceSettlement, error) {
	return nil, nil
}

type fakePRRepo struct {
	created []*paymentrequest.PaymentRequest
	updated []*paymentrequest.PaymentRequest
}

func (r *fakePRRepo) ActiveForInvoices(ctx context.Context, invoiceIDs []string) (*paymentrequest.PaymentRequest, bool, error) {
	return nil, false, nil
}

func (r *fakePRRepo) Create(ctx context.Context, pr *paymentrequest.PaymentRequest) error {
	pr.ID = "pr_1"
	r.created = append(r.created, pr)
	return nil
}

func (r *fakePRRepo) Update(ctx context.Context, pr *paymentrequest.PaymentRequest) error {
	r.updated = append(r.updated, pr)
	return nil
}

type fakeResolver struct{}

func (fakeResolver) ProviderRef(ctx context.Context, customerID string) (string, string, error) {
	return "stripe", "cus_1", nil
}

type fakeSettlementRepo struct{ loaded []*invoice.Invoice }

func (r *fakeSettlementRepo) RecordSettlements(ctx context.Context, settlements []settlement.InvoiceSettlement) error {
	return nil
}

func (r *fakeSettlementRepo) MarkInvoicesPaid(ctx context.Context, invoiceIDs []string, paidAt time.Time) error {
	return nil
}

func (r *fakeSettlementRepo) Load(ctx context.Context, invoiceIDs []string) ([]*invoice.Invoice, error) {
	return r.loaded, nil
}

type stubProvider struct {
	result *payment.ChargeResult
	err    error
}

func (p stubProvider) Name() string { return "stripe" }

func (p stubProvider) Charge(ctx context.Context, req payment.ChargeRequest) (*payment.ChargeResult, error) {
	return p.result, p.err
}

func testLogger(t *testing.T) *logger.Logger {
	t.Helper()
	l, err := logger.NewLogger()
	require.NoError(t, err)
	return l
}

func TestRunner_Tick_CreatesPaymentRequestAndCollectsPendingOnes(t *testing.T) {
	now := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

	campaign := &dunningcampaign.DunningCampaign{
		MaxAttempts: 3, DaysBetweenAttempts: 1,
		Thresholds: []dunningcampaign.Threshold{{Currency: "USD", AmountCents: decimal.NewFromInt(1000)}},
	}

	invoices := fakeInvoiceRepo{byCurrency: map[string][]*invoice.Invoice{
		"USD": {{ID: "inv_1", TenantID: "tenant_1", TotalCents: decimal.NewFromInt(5000)}},
	}}
	prRepo := &fakePRRepo{}
	controller := dunning.NewController(invoices, prRepo, nil, testLogger(t))

	settlements := &fakeSettlementRepo{loaded: []*invoice.Invoice{{ID: "inv_2", TenantID: "tenant_1", TotalCents: decimal.NewFromInt(2000)}}}
	registry := payment.NewRegistry("stripe", stubProvider{result: &payment.ChargeResult{ProviderRef: "ch_1", ChargedAt: now}})
	processor := payment.NewProcessor(registry, fakeResolver{}, settlements, controller, testLogger(t))

	existingPR := &paymentrequest.PaymentRequest{
		ID: "pr_existing", CustomerID: "cust_2", InvoiceIDs: []string{"inv_2"},
		AmountCents: decimal.NewFromInt(2000), Currency: "USD", Status: types.PaymentRequestStatusPending,
	}

	runner := New(
		fakeCustomerLister{overdue: []string{"cust_1"}},
		fakeCampaignRepo{campaign: campaign},
		fakePendingLister{pending: []*paymentrequest.PaymentRequest{existingPR}},
		controller, processor, idempotency.NewGenerator(), testLogger(t),
	)

	err := runner.Tick(context.Background(), "tenant_1", now)
	require.NoError(t, err)

	require.Len(t, prRepo.created, 1)
	require.Equal(t, "cust_1", prRepo.created[0].CustomerID)

	require.Equal(t, types.PaymentRequestStatusSucceeded, existingPR.Status)
	require.Len(t, settlements.loaded, 1)
}

func TestRunner_Tick_SkipsPaymentRequestNotYetDue(t *testing.T) {
	now := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	campaign := &dunningcampaign.DunningCampaign{MaxAttempts: 3, DaysBetweenAttempts: 7}

	controller := dunning.NewController(fakeInvoiceRepo{}, &fakePRRepo{}, nil, testLogger(t))
	registry := payment.NewRegistry("stripe", stubProvider{result: &payment.ChargeResult{}})
	processor := payment.NewProcessor(registry, fakeResolver{}, &fakeSettlementRepo{}, controller, testLogger(t))

	lastAttempt := now.Add(-time.Hour)
	pending := &paymentrequest.PaymentRequest{
		ID: "pr_1", Status: types.PaymentRequestStatusPending, LastAttemptAt: &lastAttempt,
	}

	runner := New(
		fakeCustomerLister{},
		fakeCampaignRepo{campaign: campaign},
		fakePendingLister{pending: []*paymentrequest.PaymentRequest{pending}},
		controller, processor, idempotency.NewGenerator(), testLogger(t),
	)

	err := runner.Tick(context.Background(), "tenant_1", now)
	require.NoError(t, err)
	require.Equal(t, 0, pending.AttemptCount)
}
