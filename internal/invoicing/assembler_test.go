package invoicing

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/flexprice/flexprice/internal/domain/coupon"
	"github.com/flexprice/flexprice/internal/domain/creditnote"
	"github.com/flexprice/flexprice/internal/domain/fee"
	"github.com/flexprice/flexprice/internal/domain/invoice"
	"github.com/flexprice/flexprice/internal/domain/wallet"
	"github.com/flexprice/flexprice/internal/logger"
	"github.com/flexprice/flexprice/internal/types"
)

type fakeCouponRepo struct {
	applied []*coupon.AppliedCoupon
	coupons map[string]*coupon.Coupon
	updated []*coupon.AppliedCoupon
}

func (r *fakeCouponRepo) ListApplied(ctx context.Context, customerID string) ([]*coupon.AppliedCoupon, error) {
	return r.applied, nil
}

func (r *fakeCouponRepo) GetCoupon(ctx context.Context, couponID string) (*coupon.Coupon, error) {
	return r.coupons[couponID], nil
}

func (r *fakeCouponRepo) UpdateApplied(ctx context.Context, applied *coupon.AppliedCoupon) error {
	r.updated = append(r.updated, applied)
	return nil
}

type fakeWalletRepo struct {
	wallets  []*wallet.Wallet
	recorded []*wallet.Transaction
	balances map[string]decimal.Decimal
}

func (r *fakeWalletRepo) ActiveWallets(ctx context.Context, customerID, currency string, now time.Time) ([]*wallet.Wallet, error) {
	return r.wallets, nil
}

func (r *fakeWalletRepo) RecordTransaction(ctx context.Context, tx *wallet.Transaction) error {
	r.recorded = append(r.recorded, tx)
	return nil
}

func (r *fakeWalletRepo) UpdateBalance(ctx context.Context, walletID string, newBalance decimal.Decimal) error {
	if r.balances == nil {
		r.balances = make(map[string]decimal.Decimal)
	}
	r.balances[walletID] = newBalance
	return nil
}

type fakeInvoiceRepo struct {
	created *invoice.Invoice
	fees    []*fee.Fee
}

func (r *fakeInvoiceRepo) Create(ctx context.Context, inv *invoice.Invoice, fees []*fee.Fee) error {
	r.created = inv
	r.fees = fees
	return nil
}

type zeroTaxResolver struct{}

func (zeroTaxResolver) ApplicableRate(ctx context.Context, tenantID, customerID string, f *fee.Fee) (decimal.Decimal, error) {
	return decimal.Zero, nil
}

type fixedTaxResolver struct{ rate decimal.Decimal }

func (r fixedTaxResolver) ApplicableRate(ctx context.Context, tenantID, customerID string, f *fee.Fee) (decimal.Decimal, error) {
	return r.rate, nil
}

type fakeCreditNoteRepo struct{ notes []*creditnote.CreditNote }

func (r *fakeCreditNoteRepo) ProgressiveOffsets(ctx context.Context, subscriptionID string, periodStart, periodEnd time.Time) ([]*creditnote.CreditNote, error) {
	return r.notes, nil
}

type fakeNumberer struct{ seq int }

func (n *fakeNumberer) Next(ctx context.Context, tenantID, prefix string, year int) (int, error) {
	n.seq++
	return n.seq, nil
}

func testLogger(t *testing.T) *logger.Logger {
	t.Helper()
	l, err := logger.NewLogger()
	require.NoError(t, err)
	return l
}

func chargeFee(amount int64) *fee.Fee {
	return &fee.Fee{FeeType: types.FeeTypeCharge, AmountCents: decimal.NewFromInt(amount), TotalAmountCents: decimal.NewFromInt(amount)}
}

func TestAssembler_Assemble_PlainFeesNoCouponsNoWallet(t *testing.T) {
	invoices := &fakeInvoiceRepo{}
	a := NewAssembler(&fakeCouponRepo{}, &fakeWalletRepo{}, zeroTaxResolver{}, nil, &fakeNumberer{}, invoices, "INV", 0, 30, testLogger(t))
	fees := []*fee.Fee{chargeFee(1000)}

	inv, ordered, err := a.Assemble(context.Background(), "tenant_1", "cust_1", nil, types.InvoiceTypeSubscription, "USD", time.Now(), time.Now(), fees, time.Now())
	require.NoError(t, err)
	require.Len(t, ordered, 1)
	require.True(t, inv.SubtotalCents.Equal(decimal.NewFromInt(1000)))
	require.True(t, inv.TotalCents.Equal(decimal.NewFromInt(1000)))
	require.Equal(t, "INV-"+inv.IssuedAt.Format("2006")+"-000001", inv.InvoiceNumber)
	require.NotEmpty(t, inv.ID)
	require.Equal(t, inv.ID, invoices.created.ID)
	require.Len(t, invoices.fees, 1)
}

func TestAssembler_Assemble_AppliesFixedCoupon(t *testing.T) {
	coupons := &fakeCouponRepo{
		applied: []*coupon.AppliedCoupon{{ID: "ac_1", CouponID: "c_1", Status: types.AppliedCouponStatusActive}},
		coupons: map[string]*coupon.Coupon{"c_1": {ID: "c_1", CouponType: types.CouponTypeFixedAmount, AmountCents: decimal.NewFromInt(200), Frequency: types.CouponFrequencyOnce}},
	}
	a := NewAssembler(coupons, &fakeWalletRepo{}, zeroTaxResolver{}, nil, &fakeNumberer{}, &fakeInvoiceRepo{}, "INV", 0, 30, testLogger(t))

	inv, _, err := a.Assemble(context.Background(), "tenant_1", "cust_1", nil, types.InvoiceTypeSubscription, "USD", time.Now(), time.Now(), []*fee.Fee{chargeFee(1000)}, time.Now())
	require.NoError(t, err)
	require.True(t, inv.CouponsAmountCents.Equal(decimal.NewFromInt(200)))
	require.True(t, inv.TotalCents.Equal(decimal.NewFromInt(800)))
	require.Len(t, coupons.updated, 1)
	require.Equal(t, types.AppliedCouponStatusTerminated, coupons.updated[0].Status)
}

func TestAssembler_Assemble_DrawsWalletBeforeTax(t *testing.T) {
	w := &wallet.Wallet{ID: "w_1", TenantID: "tenant_1", Status: types.WalletStatusActive, RateAmount: decimal.NewFromInt(1), BalanceCredits: decimal.NewFromInt(300)}
	wallets := &fakeWalletRepo{wallets: []*wallet.Wallet{w}}
	a := NewAssembler(&fakeCouponRepo{}, wallets, zeroTaxResolver{}, nil, &fakeNumberer{}, &fakeInvoiceRepo{}, "INV", 0, 30, testLogger(t))

	inv, _, err := a.Assemble(context.Background(), "tenant_1", "cust_1", nil, types.InvoiceTypeSubscription, "USD", time.Now(), time.Now(), []*fee.Fee{chargeFee(1000)}, time.Now())
	require.NoError(t, err)
	require.True(t, inv.PrepaidCreditAmountCents.Equal(decimal.NewFromInt(300)))
	require.True(t, inv.TotalCents.Equal(decimal.NewFromInt(700)))
	require.Len(t, wallets.recorded, 1)
	require.Equal(t, types.WalletTransactionOutbound, wallets.recorded[0].TransactionType)
}

func TestAssembler_Assemble_AppliesTaxPerFee(t *testing.T) {
	a := NewAssembler(&fakeCouponRepo{}, &fakeWalletRepo{}, fixedTaxResolver{rate: decimal.NewFromInt(10)}, nil, &fakeNumberer{}, &fakeInvoiceRepo{}, "INV", 0, 30, testLogger(t))

	inv, ordered, err := a.Assemble(context.Background(), "tenant_1", "cust_1", nil, types.InvoiceTypeSubscription, "USD", time.Now(), time.Now(), []*fee.Fee{chargeFee(1000)}, time.Now())
	require.NoError(t, err)
	require.True(t, inv.TaxAmountCents.Equal(decimal.NewFromInt(100)))
	require.True(t, inv.TotalCents.Equal(decimal.NewFromInt(1100)))
	require.True(t, ordered[0].TotalAmountCents.Equal(decimal.NewFromInt(1100)))
}

func TestAssembler_Assemble_TaxesAmountAfterCouponDiscount(t *testing.T) {
	coupons := &fakeCouponRepo{
		applied: []*coupon.AppliedCoupon{{ID: "ac_1", CouponID: "c_1", Status: types.AppliedCouponStatusActive}},
		coupons: map[string]*coupon.Coupon{"c_1": {ID: "c_1", CouponType: types.CouponTypeFixedAmount, AmountCents: decimal.NewFromInt(200), Frequency: types.CouponFrequencyOnce}},
	}
	a := NewAssembler(coupons, &fakeWalletRepo{}, fixedTaxResolver{rate: decimal.NewFromInt(10)}, nil, &fakeNumberer{}, &fakeInvoiceRepo{}, "INV", 0, 30, testLogger(t))

	inv, ordered, err := a.Assemble(context.Background(), "tenant_1", "cust_1", nil, types.InvoiceTypeSubscription, "USD", time.Now(), time.Now(), []*fee.Fee{chargeFee(1000)}, time.Now())
	require.NoError(t, err)
	// amount_after_discount = 1000 - 200 = 800; tax = 800 * 10% = 80, not 1000 * 10% = 100.
	require.True(t, inv.TaxAmountCents.Equal(decimal.NewFromInt(80)), "tax: %s", inv.TaxAmountCents)
	require.True(t, inv.TotalCents.Equal(decimal.NewFromInt(880)), "total: %s", inv.TotalCents)
	require.True(t, ordered[0].TaxesAmountCents.Equal(decimal.NewFromInt(80)))
}

func TestAssembler_Assemble_ClampsNegativeTotalWithoutWalletDraw(t *testing.T) {
	w := &wallet.Wallet{ID: "w_1", TenantID: "tenant_1", Status: types.WalletStatusActive, RateAmount: decimal.NewFromInt(1), BalanceCredits: decimal.NewFromInt(5000)}
	wallets := &fakeWalletRepo{wallets: []*wallet.Wallet{w}}
	coupons := &fakeCouponRepo{
		applied: []*coupon.AppliedCoupon{{ID: "ac_1", CouponID: "c_1", Status: types.AppliedCouponStatusActive}},
		coupons: map[string]*coupon.Coupon{"c_1": {ID: "c_1", CouponType: types.CouponTypeFixedAmount, AmountCents: decimal.NewFromInt(9000), Frequency: types.CouponFrequencyOnce}},
	}
	a := NewAssembler(coupons, wallets, zeroTaxResolver{}, nil, &fakeNumberer{}, &fakeInvoiceRepo{}, "INV", 0, 30, testLogger(t))

	inv, _, err := a.Assemble(context.Background(), "tenant_1", "cust_1", nil, types.InvoiceTypeSubscription, "USD", time.Now(), time.Now(), []*fee.Fee{chargeFee(1000)}, time.Now())
	require.NoError(t, err)
	require.True(t, inv.TotalCents.IsZero())
	// The coupon already fully absorbs the subtotal, so no wallet draw happens.
	require.Empty(t, wallets.recorded)
}

func TestAssembler_Assemble_VoidSurplusRestoresWalletBalance(t *testing.T) {
	w := &wallet.Wallet{ID: "w_1", TenantID: "tenant_1", Status: types.WalletStatusActive, RateAmount: decimal.NewFromInt(1), BalanceCredits: decimal.NewFromInt(1000)}
	wallets := &fakeWalletRepo{wallets: []*wallet.Wallet{w}}
	creditNotes := &fakeCreditNoteRepo{notes: []*creditnote.CreditNote{{CreditAmountCents: decimal.NewFromInt(400)}}}
	sub := "sub_1"
	a := NewAssembler(&fakeCouponRepo{}, wallets, zeroTaxResolver{}, creditNotes, &fakeNumberer{}, &fakeInvoiceRepo{}, "INV", 0, 30, testLogger(t))

	inv, _, err := a.Assemble(context.Background(), "tenant_1", "cust_1", &sub, types.InvoiceTypeSubscription, "USD", time.Now(), time.Now(), []*fee.Fee{chargeFee(1000)}, time.Now())
	require.NoError(t, err)
	require.True(t, inv.TotalCents.IsZero())
	require.Len(t, wallets.recorded, 2)
	require.Equal(t, types.WalletTransactionInbound, wallets.recorded[1].TransactionType)
	require.True(t, wallets.recorded[1].CreditAmount.Equal(decimal.NewFromInt(400)))
	require.True(t, wallets.balances[w.ID].Equal(decimal.NewFromInt(400)))
}

func TestAssembler_Assemble_OrdersFeesByType(t *testing.T) {
	a := NewAssembler(&fakeCouponRepo{}, &fakeWalletRepo{}, zeroTaxResolver{}, nil, &fakeNumberer{}, &fakeInvoiceRepo{}, "INV", 0, 30, testLogger(t))
	fees := []*fee.Fee{
		{FeeType: types.FeeTypeCommitment, AmountCents: decimal.NewFromInt(100)},
		{FeeType: types.FeeTypeSubscription, AmountCents: decimal.NewFromInt(200)},
		{FeeType: types.FeeTypeCharge, AmountCents: decimal.NewFromInt(300)},
	}

	_, ordered, err := a.Assemble(context.Background(), "tenant_1", "cust_1", nil, types.InvoiceTypeSubscription, "USD", time.Now(), time.Now(), fees, time.Now())
	require.NoError(t, err)
	require.Equal(t, types.FeeTypeSubscription, ordered[0].FeeType)
	require.Equal(t, types.FeeTypeCharge, ordered[1].FeeType)
	require.Equal(t, types.FeeTypeCommitment, ordered[2].FeeType)
}
