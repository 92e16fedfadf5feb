package billingrun

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/flexprice/flexprice/internal/charges"
	"github.com/flexprice/flexprice/internal/domain/billablemetric"
	"github.com/flexprice/flexprice/internal/domain/charge"
	"github.com/flexprice/flexprice/internal/domain/coupon"
	"github.com/flexprice/flexprice/internal/domain/event"
	"github.com/flexprice/flexprice/internal/domain/fee"
	"github.com/flexprice/flexprice/internal/domain/invoice"
	"github.com/flexprice/flexprice/internal/domain/plan"
	"github.com/flexprice/flexprice/internal/domain/subscription"
	"github.com/flexprice/flexprice/internal/domain/wallet"
	"github.com/flexprice/flexprice/internal/invoicing"
	"github.com/flexprice/flexprice/internal/logger"
	"github.com/flexprice/flexprice/internal/rating"
	"github.com/flexprice/flexprice/internal/types"
)

type fakeSubRepo struct {
	dueForRenewal  []*subscription.Subscription
	trialExpiring  []*subscription.Subscription
	advanced       map[string][2]time.Time
	activated      []string
}

func newFakeSubRepo() *fakeSubRepo {
	return &fakeSubRepo{advanced: make(map[string][2]time.Time)}
}

func (r *fakeSubRepo) DueForRenewal(ctx context.Context, tenantID string, now time.Time) ([]*subscription.Subscription, error) {
	return r.dueForRenewal, nil
}

func (r *fakeSubRepo) TrialExpiring(ctx context.Context, tenantID string, now time.Time) ([]*subscription.Subscription, error) {
	return r.trialExpiring, nil
}

func (r *fakeSubRepo) AdvancePeriod(ctx context.Context, subscriptionID string, newStart, newEnd time.Time) error {
	r.advanced[subscriptionID] = [2]time.Time{newStart, newEnd}
	return nil
}

func (r *fakeSubRepo) ActivateAfterTrial(ctx context.Context, subscriptionID string, startedAt time.Time) error {
	r.activated = append(r.activated, subscriptionID)
	return nil
}

type fakePlanRepo struct{ plans map[string]*plan.Plan }

func (r *fakePlanRepo) Get(ctx context.Context, planID string) (*plan.Plan, error) {
	return r.plans[planID], nil
}

type fakeChargeRepo struct {
	byPlan  map[string][]*charge.Charge
	filters map[string][]charge.Filter
}

func (r *fakeChargeRepo) ListByPlan(ctx context.Context, planID string) ([]*charge.Charge, error) {
	return r.byPlan[planID], nil
}

func (r *fakeChargeRepo) FiltersFor(ctx context.Context, chargeID string) ([]charge.Filter, error) {
	return r.filters[chargeID], nil
}

type fakeMetricRepo struct{ metrics map[string]*billablemetric.BillableMetric }

func (r *fakeMetricRepo) Get(ctx context.Context, metricID string) (*billablemetric.BillableMetric, error) {
	return r.metrics[metricID], nil
}

type fakeEventSource struct{ events []*event.Event }

func (f fakeEventSource) Find(ctx context.Context, code, externalCustomerID string, from, to time.Time, propertyFilters map[string][]string) ([]*event.Event, error) {
	return f.events, nil
}

type noopCouponRepo struct{}

func (noopCouponRepo) ListApplied(ctx context.Context, customerID string) ([]*coupon.AppliedCoupon, error) {
	return nil, nil
}
func (noopCouponRepo) GetCoupon(ctx context.Context, couponID string) (*coupon.Coupon, error) {
	return nil, nil
}
func (noopCouponRepo) UpdateApplied(ctx context.Context, applied *coupon.AppliedCoupon) error {
	return nil
}

type noopWalletRepo struct{}

func (noopWalletRepo) ActiveWallets(ctx context.Context, customerID, currency string, now time.Time) ([]*wallet.Wallet, error) {
	return nil, nil
}
func (noopWalletRepo) RecordTransaction(ctx context.Context, tx *wallet.Transaction) error { return nil }
func (noopWalletRepo) UpdateBalance(ctx context.Context, walletID string, newBalance decimal.Decimal) error {
	return nil
}

type zeroTaxResolver struct{}

func (zeroTaxResolver) ApplicableRate(ctx context.Context, tenantID, customerID string, f *fee.Fee) (decimal.Decimal, error) {
	return decimal.Zero, nil
}

type fakeNumberer struct{ seq int }

func (n *fakeNumberer) Next(ctx context.Context, tenantID, prefix string, year int) (int, error) {
	n.seq++
	return n.seq, nil
}

type noopInvoiceRepo struct{}

func (noopInvoiceRepo) Create(ctx context.Context, inv *invoice.Invoice, fees []*fee.Fee) error {
	return nil
}

type fakeWalletSettler struct {
	settled  []string
	reversed []string
}

func (s *fakeWalletSettler) SettleInvoiceDraws(ctx context.Context, invoiceID string, now time.Time) error {
	s.settled = append(s.settled, invoiceID)
	return nil
}

func (s *fakeWalletSettler) ReverseInvoiceDraws(ctx context.Context, invoiceID string) error {
	s.reversed = append(s.reversed, invoiceID)
	return nil
}

type fakeInvoiceRepo struct{ finalized []string }

func (r *fakeInvoiceRepo) Finalize(ctx context.Context, inv *invoice.Invoice) error {
	r.finalized = append(r.finalized, inv.ID)
	return nil
}

type fakePublisher struct{ published []string }

func (p *fakePublisher) PublishInvoiceFinalized(ctx context.Context, inv *invoice.Invoice) error {
	p.published = append(p.published, inv.ID)
	return nil
}

func testLogger(t *testing.T) *logger.Logger {
	t.Helper()
	l, err := logger.NewLogger()
	require.NoError(t, err)
	return l
}

func buildOrchestrator(t *testing.T, subs *fakeSubRepo, plans *fakePlanRepo, chargesRepo *fakeChargeRepo, metrics *fakeMetricRepo, events []*event.Event) *Orchestrator {
	o, _, _, _ := buildOrchestratorWithFakes(t, subs, plans, chargesRepo, metrics, events)
	return o
}

func buildOrchestratorWithFakes(t *testing.T, subs *fakeSubRepo, plans *fakePlanRepo, chargesRepo *fakeChargeRepo, metrics *fakeMetricRepo, events []*event.Event) (*Orchestrator, *fakeWalletSettler, *fakeInvoiceRepo, *fakePublisher) {
	t.Helper()
	l := testLogger(t)
	ratingSvc := rating.NewService(fakeEventSource{events: events}, l)
	assembler := invoicing.NewAssembler(noopCouponRepo{}, noopWalletRepo{}, zeroTaxResolver{}, nil, &fakeNumberer{}, noopInvoiceRepo{}, "INV", 0, 30, l)
	wallets := &fakeWalletSettler{}
	invoices := &fakeInvoiceRepo{}
	publisher := &fakePublisher{}
	o := New(subs, plans, chargesRepo, metrics, ratingSvc, assembler, wallets, invoices, publisher, l)
	return o, wallets, invoices, publisher
}

func TestOrchestrator_RunPeriodicInvoicing_InvoicesAndAdvancesPeriod(t *testing.T) {
	now := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)
	periodStart := now.AddDate(0, -1, 0)

	sub := &subscription.Subscription{
		ID: "sub_1", TenantID: "tenant_1", CustomerID: "cust_1", ExternalID: "ext_1",
		PlanID: "plan_1", Status: types.SubscriptionStatusActive,
		CurrentPeriodStart: periodStart, CurrentPeriodEnd: now,
	}
	subs := newFakeSubRepo()
	subs.dueForRenewal = []*subscription.Subscription{sub}

	params, err := json.Marshal(charges.StandardParams{UnitPrice: decimal.NewFromInt(1)})
	require.NoError(t, err)

	plans := &fakePlanRepo{plans: map[string]*plan.Plan{
		"plan_1": {ID: "plan_1", Interval: types.BillingIntervalMonthly, AmountCents: decimal.NewFromInt(500), Currency: "USD"},
	}}
	chargesRepo := &fakeChargeRepo{byPlan: map[string][]*charge.Charge{
		"plan_1": {{ID: "charge_1", MetricID: "metric_1", ChargeModel: types.ChargeModelStandard, ModelParameters: params}},
	}}
	metrics := &fakeMetricRepo{metrics: map[string]*billablemetric.BillableMetric{
		"metric_1": {ID: "metric_1", Code: "api_calls", AggregationType: types.AggregationSum, FieldName: "count"},
	}}
	events := []*event.Event{event.New("", "tenant_1", "txn_1", "ext_1", "api_calls", periodStart.Add(time.Hour), map[string]interface{}{"count": 10.0})}

	o, wallets, invoices, publisher := buildOrchestratorWithFakes(t, subs, plans, chargesRepo, metrics, events)

	err = o.RunPeriodicInvoicing(context.Background(), "tenant_1", now)
	require.NoError(t, err)
	require.Contains(t, subs.advanced, "sub_1")
	require.Equal(t, now, subs.advanced["sub_1"][0])
	require.Len(t, wallets.settled, 1)
	require.Len(t, invoices.finalized, 1)
	require.Len(t, publisher.published, 1)
	require.Equal(t, invoices.finalized[0], publisher.published[0])
}

func TestOrchestrator_RunPeriodicInvoicing_SkipsPausedSubscription(t *testing.T) {
	pausedAt := time.Now().Add(-time.Hour)
	sub := &subscription.Subscription{ID: "sub_1", Status: types.SubscriptionStatusActive, PausedAt: &pausedAt}
	subs := newFakeSubRepo()
	subs.dueForRenewal = []*subscription.Subscription{sub}

	o := buildOrchestrator(t, subs, &fakePlanRepo{plans: map[string]*plan.Plan{}}, &fakeChargeRepo{}, &fakeMetricRepo{}, nil)

	require.NoError(t, o.RunPeriodicInvoicing(context.Background(), "tenant_1", time.Now()))
	require.NotContains(t, subs.advanced, "sub_1")
}

func TestOrchestrator_RunTrialExpiry_ActivatesAndInvoicesWhenPayInAdvance(t *testing.T) {
	now := time.Now()
	sub := &subscription.Subscription{
		ID: "sub_1", TenantID: "tenant_1", CustomerID: "cust_1", ExternalID: "ext_1",
		PlanID: "plan_1", PayInAdvance: true,
		CurrentPeriodStart: now, CurrentPeriodEnd: now.AddDate(0, 1, 0),
	}
	subs := newFakeSubRepo()
	subs.trialExpiring = []*subscription.Subscription{sub}

	plans := &fakePlanRepo{plans: map[string]*plan.Plan{
		"plan_1": {ID: "plan_1", Interval: types.BillingIntervalMonthly, AmountCents: decimal.NewFromInt(500), Currency: "USD"},
	}}

	o, _, invoices, publisher := buildOrchestratorWithFakes(t, subs, plans, &fakeChargeRepo{}, &fakeMetricRepo{}, nil)

	err := o.RunTrialExpiry(context.Background(), "tenant_1", now)
	require.NoError(t, err)
	require.Contains(t, subs.activated, "sub_1")
	require.Len(t, invoices.finalized, 1)
	require.Len(t, publisher.published, 1)
}

func TestOrchestrator_RunTrialExpiry_SkipsInvoiceWhenNotPayInAdvance(t *testing.T) {
	sub := &subscription.Subscription{ID: "sub_1", PlanID: "plan_1", PayInAdvance: false}
	subs := newFakeSubRepo()
	subs.trialExpiring = []*subscription.Subscription{sub}

	o, _, invoices, _ := buildOrchestratorWithFakes(t, subs, &fakePlanRepo{plans: map[string]*plan.Plan{}}, &fakeChargeRepo{}, &fakeMetricRepo{}, nil)

	require.NoError(t, o.RunTrialExpiry(context.Background(), "tenant_1", time.Now()))
	require.Contains(t, subs.activated, "sub_1")
	require.Empty(t, invoices.finalized)
}
