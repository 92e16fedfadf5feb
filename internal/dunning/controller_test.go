package dunning

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
	"github.com/flexprice/flexprice/internal/logger"
	"github.com/flexprice/flexprice/internal/types"
)

type fakeInvoiceRepo struct {
	byCurrency  map[string][]*invoice.Invoice
	settlements map[string][]settlement.InvoiceSettlement
}

func (r *fakeInvoiceRepo) OverdueByCurrency(ctx context.Context, customerID string, now time.Time) (map[string][]*invoice.Invoice, error) {
	return r.byCurrency, nil
}

func (r *fakeInvoiceRepo) Settlements(ctx context.Context, invoiceID string) ([]settlement.InvoiceSettlement, error) {
	return r.settlements[invoiceID], nil
}

type fakePRRepo struct {
	created []*paymentrequest.PaymentRequest
	active  map[string]*paymentrequest.PaymentRequest
	updated []*paymentrequest.PaymentRequest
}

func newFakePRRepo() *fakePRRepo {
	return &fakePRRepo{active: make(map[string]*paymentrequest.PaymentRequest)}
}

func (r *fakePRRepo) ActiveForInvoices(ctx context.Context, invoiceIDs []string) (*paymentrequest.PaymentRequest, bool, error) {
	for _, id := range invoiceIDs {
		if pr, ok := r.active[id]; ok {
			return pr, true, nil
		}
	}
	return nil, false, nil
}

func (r *fakePRRepo) Create(ctx context.Context, pr *paymentrequest.PaymentRequest) error {
	pr.ID = "pr_1"
	r.created = append(r.created, pr)
	for _, id := range pr.InvoiceIDs {
		r.active[id] = pr
	}
	return nil
}

func (r *fakePRRepo) Update(ctx context.Context, pr *paymentrequest.PaymentRequest) error {
	r.updated = append(r.updated, pr)
	return nil
}

type fakeNotifier struct{ notified int }

func (n *fakeNotifier) Notify(ctx context.Context, tenantID, customerID, message string) error {
	n.notified++
	return nil
}

func testLogger(t *testing.T) *logger.Logger {
	t.Helper()
	l, err := logger.NewLogger()
	require.NoError(t, err)
	return l
}

func TestController_Tick_CreatesPaymentRequestAboveThreshold(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	invoices := &fakeInvoiceRepo{
		byCurrency: map[string][]*invoice.Invoice{
			"USD": {{ID: "inv_1", TotalCents: decimal.NewFromInt(5000)}},
		},
		settlements: map[string][]settlement.InvoiceSettlement{},
	}
	prs := newFakePRRepo()
	controller := NewController(invoices, prs, nil, testLogger(t))

	campaign := &dunningcampaign.DunningCampaign{
		MaxAttempts: 3,
		Thresholds:  []dunningcampaign.Threshold{{Currency: "USD", AmountCents: decimal.NewFromInt(1000)}},
	}

	created, err := controller.Tick(context.Background(), "tenant_1", "cust_1", campaign, now)
	require.NoError(t, err)
	require.Len(t, created, 1)
	require.True(t, created[0].AmountCents.Equal(decimal.NewFromInt(5000)))
}

func TestController_Tick_SkipsBelowThreshold(t *testing.T) {
	invoices := &fakeInvoiceRepo{
		byCurrency: map[string][]*invoice.Invoice{
			"USD": {{ID: "inv_1", TotalCents: decimal.NewFromInt(500)}},
		},
		settlements: map[string][]settlement.InvoiceSettlement{},
	}
	prs := newFakePRRepo()
	controller := NewController(invoices, prs, nil, testLogger(t))

	campaign := &dunningcampaign.DunningCampaign{
		Thresholds: []dunningcampaign.Threshold{{Currency: "USD", AmountCents: decimal.NewFromInt(1000)}},
	}

	created, err := controller.Tick(context.Background(), "tenant_1", "cust_1", campaign, time.Now())
	require.NoError(t, err)
	require.Empty(t, created)
}

func TestController_Tick_SkipsCurrencyWithoutThreshold(t *testing.T) {
	invoices := &fakeInvoiceRepo{
		byCurrency: map[string][]*invoice.Invoice{
			"EUR": {{ID: "inv_1", TotalCents: decimal.NewFromInt(5000)}},
		},
		settlements: map[string][]settlement.InvoiceSettlement{},
	}
	prs := newFakePRRepo()
	controller := NewController(invoices, prs, nil, testLogger(t))

	campaign := &dunningcampaign.DunningCampaign{
		Thresholds: []dunningcampaign.Threshold{{Currency: "USD", AmountCents: decimal.NewFromInt(1000)}},
	}

	created, err := controller.Tick(context.Background(), "tenant_1", "cust_1", campaign, time.Now())
	require.NoError(t, err)
	require.Empty(t, created)
}

func TestController_RecordFailure_ExhaustsRetriesAndNotifies(t *testing.T) {
	prs := newFakePRRepo()
	notifier := &fakeNotifier{}
	controller := NewController(&fakeInvoiceRepo{}, prs, notifier, testLogger(t))

	pr := &paymentrequest.PaymentRequest{AttemptCount: 2}
	campaign := &dunningcampaign.DunningCampaign{MaxAttempts: 3}

	err := controller.RecordFailure(context.Background(), pr, campaign, time.Now())
	require.NoError(t, err)
	require.Equal(t, types.PaymentRequestStatusFailed, pr.Status)
	require.Equal(t, 1, notifier.notified)
}

func TestController_RecordFailure_RetriesWhenUnderMax(t *testing.T) {
	prs := newFakePRRepo()
	notifier := &fakeNotifier{}
	controller := NewController(&fakeInvoiceRepo{}, prs, notifier, testLogger(t))

	pr := &paymentrequest.PaymentRequest{AttemptCount: 0, Status: types.PaymentRequestStatusPending}
	campaign := &dunningcampaign.DunningCampaign{MaxAttempts: 3}

	err := controller.RecordFailure(context.Background(), pr, campaign, time.Now())
	require.NoError(t, err)
	require.Equal(t, types.PaymentRequestStatusPending, pr.Status)
	require.Equal(t, 1, pr.AttemptCount)
	require.Zero(t, notifier.notified)
}

func TestController_RecordSuccess_SettlesInvoicesInOrderUpToTotal(t *testing.T) {
	prs := newFakePRRepo()
	controller := NewController(&fakeInvoiceRepo{}, prs, nil, testLogger(t))

	pr := &paymentrequest.PaymentRequest{AmountCents: decimal.NewFromInt(1500)}
	invoices := []*invoice.Invoice{
		{ID: "inv_1", TenantID: "tenant_1", TotalCents: decimal.NewFromInt(1000)},
		{ID: "inv_2", TenantID: "tenant_1", TotalCents: decimal.NewFromInt(1000)},
	}

	settlements, err := controller.RecordSuccess(context.Background(), pr, invoices, "pay_1", time.Now())
	require.NoError(t, err)
	require.Equal(t, types.PaymentRequestStatusSucceeded, pr.Status)
	require.Len(t, settlements, 2)
	require.True(t, settlements[0].AmountCents.Equal(decimal.NewFromInt(1000)))
	require.True(t, settlements[1].AmountCents.Equal(decimal.NewFromInt(500)))
}
