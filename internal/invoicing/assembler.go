// Package invoicing assembles rated fees, coupons, wallet credits, and
// taxes into a finalizable Invoice, per the algorithm in the billing engine
// overview: fees -> subtotal -> coupons -> wallet draw -> progressive
// credit -> tax -> total clamp -> numbering.
package invoicing

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/flexprice/flexprice/internal/domain/coupon"
	"github.com/flexprice/flexprice/internal/domain/creditnote"
	"github.com/flexprice/flexprice/internal/domain/fee"
	"github.com/flexprice/flexprice/internal/domain/invoice"
	"github.com/flexprice/flexprice/internal/domain/wallet"
	ierr "github.com/flexprice/flexprice/internal/errors"
	"github.com/flexprice/flexprice/internal/logger"
	"github.com/flexprice/flexprice/internal/types"
)

// CouponRepository is the persistence boundary for a customer's active,
// creation-ordered applied coupons.
type CouponRepository interface {
	ListApplied(ctx context.Context, customerID string) ([]*coupon.AppliedCoupon, error)
	GetCoupon(ctx context.Context, couponID string) (*coupon.Coupon, error)
	UpdateApplied(ctx context.Context, applied *coupon.AppliedCoupon) error
}

// WalletRepository is the persistence boundary for prepaid-credit draws.
type WalletRepository interface {
	ActiveWallets(ctx context.Context, customerID, currency string, now time.Time) ([]*wallet.Wallet, error)
	RecordTransaction(ctx context.Context, tx *wallet.Transaction) error
	UpdateBalance(ctx context.Context, walletID string, newBalance decimal.Decimal) error
}

// TaxResolver computes the tax rate applicable to one fee.
type TaxResolver interface {
	ApplicableRate(ctx context.Context, tenantID, customerID string, f *fee.Fee) (decimal.Decimal, error)
}

// CreditNoteRepository supplies progressive-billing offsets already applied
// mid-period, to be netted against this invoice.
type CreditNoteRepository interface {
	ProgressiveOffsets(ctx context.Context, subscriptionID string, periodStart, periodEnd time.Time) ([]*creditnote.CreditNote, error)
}

// Numberer issues the next invoice sequence number for a tenant+year.
type Numberer interface {
	Next(ctx context.Context, tenantID, prefix string, year int) (int, error)
}

// InvoiceRepository persists the assembled draft invoice and its line
// items. Create must use inv.ID as given rather than minting its own: the
// id is assigned before drawWallets runs so wallet transactions can carry
// it, and must match what was already written onto those transactions.
type InvoiceRepository interface {
	Create(ctx context.Context, inv *invoice.Invoice, fees []*fee.Fee) error
}

// Assembler runs the invoice-generation pipeline.
type Assembler struct {
	coupons     CouponRepository
	wallets     WalletRepository
	taxes       TaxResolver
	creditNotes CreditNoteRepository
	numberer    Numberer
	invoices    InvoiceRepository
	invoicePrefix string
	gracePeriodDays int
	netPaymentTermDays int
	logger      *logger.Logger
}

// NewAssembler builds an Assembler. gracePeriodDays/netPaymentTermDays apply
// to every invoice it assembles; no per-customer grace period or net payment
// term is read.
func NewAssembler(coupons CouponRepository, wallets WalletRepository, taxes TaxResolver, creditNotes CreditNoteRepository, numberer Numberer, invoices InvoiceRepository, invoicePrefix string, gracePeriodDays, netPaymentTermDays int, logger *logger.Logger) *Assembler {
	return &Assembler{
		coupons:            coupons,
		wallets:            wallets,
		taxes:              taxes,
		creditNotes:        creditNotes,
		numberer:           numberer,
		invoices:           invoices,
		invoicePrefix:      invoicePrefix,
		gracePeriodDays:    gracePeriodDays,
		netPaymentTermDays: netPaymentTermDays,
		logger:             logger,
	}
}

// Assemble runs steps 2-8 of the invoice pipeline over fees already
// produced by the rating service (step 1), returning the populated draft
// Invoice and the fees ordered as they will be persisted as line items.
func (a *Assembler) Assemble(ctx context.Context, tenantID, customerID string, subscriptionID *string, invoiceType types.InvoiceType, currency string, periodStart, periodEnd time.Time, fees []*fee.Fee, now time.Time) (*invoice.Invoice, []*fee.Fee, error) {
	orderFees(fees)

	// Minted here, not by the repository: wallet draws below must carry the
	// invoice id on the transaction they record, before the invoice row exists.
	invID := types.GenerateUUID()

	subtotal := decimal.Zero
	for _, f := range fees {
		subtotal = subtotal.Add(f.AmountCents)
	}

	couponsAmount, err := a.applyCoupons(ctx, customerID, subtotal)
	if err != nil {
		return nil, nil, err
	}
	remaining := subtotal.Sub(couponsAmount)
	if remaining.IsNegative() {
		remaining = decimal.Zero
	}

	prepaidCredit, walletTxns, drawnWallets, err := a.drawWallets(ctx, customerID, currency, remaining, invID, now)
	if err != nil {
		return nil, nil, err
	}
	remaining = remaining.Sub(prepaidCredit)
	if remaining.IsNegative() {
		remaining = decimal.Zero
	}

	progressiveCredit, err := a.progressiveCredits(ctx, subscriptionID, periodStart, periodEnd)
	if err != nil {
		return nil, nil, err
	}
	remaining = remaining.Sub(progressiveCredit)

	taxAmount, err := a.applyTaxes(ctx, tenantID, customerID, fees, subtotal, couponsAmount)
	if err != nil {
		return nil, nil, err
	}

	total := subtotal.Sub(couponsAmount).Sub(prepaidCredit).Sub(progressiveCredit).Add(taxAmount)
	surplusVoided := decimal.Zero
	if total.IsNegative() {
		surplusVoided = total.Abs()
		total = decimal.Zero
	}
	if surplusVoided.GreaterThan(decimal.Zero) {
		a.voidSurplusDraws(ctx, walletTxns, drawnWallets, surplusVoided)
	}

	number, err := a.nextInvoiceNumber(ctx, tenantID, now)
	if err != nil {
		return nil, nil, err
	}

	issuedAt := now.AddDate(0, 0, a.gracePeriodDays)
	dueDate := issuedAt.AddDate(0, 0, a.netPaymentTermDays)

	inv := invoice.New(tenantID, customerID, subscriptionID, invoiceType, currency, periodStart, periodEnd, dueDate)
	inv.ID = invID
	inv.InvoiceNumber = number
	inv.SubtotalCents = subtotal
	inv.CouponsAmountCents = couponsAmount
	inv.PrepaidCreditAmountCents = prepaidCredit
	inv.ProgressiveBillingCreditAmountCents = progressiveCredit
	inv.TaxAmountCents = taxAmount
	inv.TotalCents = total
	inv.IssuedAt = &issuedAt

	if err := a.invoices.Create(ctx, inv, fees); err != nil {
		return nil, nil, err
	}

	return inv, fees, nil
}

// orderFees sorts line items by (fee_type, then creation), per the ordering
// guarantees section.
func orderFees(fees []*fee.Fee) {
	typeRank := map[types.FeeType]int{
		types.FeeTypeSubscription: 0,
		types.FeeTypeCharge:       1,
		types.FeeTypeAddOn:        2,
		types.FeeTypeCommitment:   3,
		types.FeeTypeCredit:       4,
	}
	for i := 1; i < len(fees); i++ {
		for j := i; j > 0; j-- {
			a, b := fees[j-1], fees[j]
			if typeRank[a.FeeType] <= typeRank[b.FeeType] {
				break
			}
			fees[j-1], fees[j] = fees[j], fees[j-1]
		}
	}
}

func (a *Assembler) applyCoupons(ctx context.Context, customerID string, subtotal decimal.Decimal) (decimal.Decimal, error) {
	applied, err := a.coupons.ListApplied(ctx, customerID)
	if err != nil {
		return decimal.Zero, ierr.WithError(err).WithMessage("failed to list applied coupons").Mark(ierr.ErrDatabase)
	}

	total := decimal.Zero
	remaining := subtotal
	for _, ac := range applied {
		if ac.Status != types.AppliedCouponStatusActive {
			continue
		}
		c, err := a.coupons.GetCoupon(ctx, ac.CouponID)
		if err != nil {
			return decimal.Zero, ierr.WithError(err).WithMessage("failed to load coupon").Mark(ierr.ErrDatabase)
		}
		discount := c.Discount(remaining)
		total = total.Add(discount)
		remaining = remaining.Sub(discount)

		if c.Frequency == types.CouponFrequencyRecurring {
			ac.PeriodsRemaining--
			if ac.PeriodsRemaining <= 0 {
				ac.Status = types.AppliedCouponStatusTerminated
			}
		} else if c.Frequency == types.CouponFrequencyOnce {
			ac.Status = types.AppliedCouponStatusTerminated
		}
		if err := a.coupons.UpdateApplied(ctx, ac); err != nil {
			return decimal.Zero, ierr.WithError(err).WithMessage("failed to update applied coupon").Mark(ierr.ErrDatabase)
		}
	}
	return total, nil
}

func (a *Assembler) drawWallets(ctx context.Context, customerID, currency string, remaining decimal.Decimal, invoiceID string, now time.Time) (decimal.Decimal, []*wallet.Transaction, map[string]*wallet.Wallet, error) {
	if remaining.LessThanOrEqual(decimal.Zero) {
		return decimal.Zero, nil, nil, nil
	}
	wallets, err := a.wallets.ActiveWallets(ctx, customerID, currency, now)
	if err != nil {
		return decimal.Zero, nil, nil, ierr.WithError(err).WithMessage("failed to list wallets").Mark(ierr.ErrDatabase)
	}
	wallet.SortForDraw(wallets)

	byID := make(map[string]*wallet.Wallet, len(wallets))
	for _, w := range wallets {
		byID[w.ID] = w
	}

	drawnAmount := decimal.Zero
	var txns []*wallet.Transaction
	for _, w := range wallets {
		if remaining.LessThanOrEqual(decimal.Zero) {
			break
		}
		if !w.IsActive() {
			continue
		}
		available := w.CreditsToAmount(w.BalanceCredits)
		draw := remaining
		if draw.GreaterThan(available) {
			draw = available
		}
		if draw.LessThanOrEqual(decimal.Zero) {
			continue
		}
		creditsDrawn := w.AmountToCredits(draw)

		tx := &wallet.Transaction{
			WalletID:         w.ID,
			TenantID:         w.TenantID,
			TransactionType:  types.WalletTransactionOutbound,
			Status:           types.WalletTxStatusInvoiced,
			SettlementStatus: types.WalletTxSettlementPending,
			Source:           types.WalletTxSourceManual,
			CreditAmount:     creditsDrawn,
			Amount:           draw,
			InvoiceID:        &invoiceID,
		}
		if err := a.wallets.RecordTransaction(ctx, tx); err != nil {
			return decimal.Zero, nil, nil, ierr.WithError(err).WithMessage("failed to record wallet transaction").Mark(ierr.ErrDatabase)
		}
		newBalance := w.BalanceCredits.Sub(creditsDrawn)
		if err := a.wallets.UpdateBalance(ctx, w.ID, newBalance); err != nil {
			return decimal.Zero, nil, nil, ierr.WithError(err).WithMessage("failed to update wallet balance").Mark(ierr.ErrDatabase)
		}
		w.BalanceCredits = newBalance

		drawnAmount = drawnAmount.Add(draw)
		remaining = remaining.Sub(draw)
		txns = append(txns, tx)
	}
	return drawnAmount, txns, byID, nil
}

// voidSurplusDraws reverses wallet draws, most-recent first, by compensating
// inbound transactions and restoring the drawn-from wallet's balance, until
// the surplus from the total-cents clamp is absorbed (spec §4.5 step 7).
func (a *Assembler) voidSurplusDraws(ctx context.Context, txns []*wallet.Transaction, wallets map[string]*wallet.Wallet, surplus decimal.Decimal) {
	for i := len(txns) - 1; i >= 0 && surplus.GreaterThan(decimal.Zero); i-- {
		tx := txns[i]
		voidAmount := tx.Amount
		if voidAmount.GreaterThan(surplus) {
			voidAmount = surplus
		}
		creditsVoid := tx.CreditAmount
		if voidAmount.LessThan(tx.Amount) {
			creditsVoid = tx.CreditAmount.Mul(voidAmount).Div(tx.Amount)
		}
		compensating := &wallet.Transaction{
			WalletID:         tx.WalletID,
			TenantID:         tx.TenantID,
			TransactionType:  types.WalletTransactionInbound,
			Status:           types.WalletTxStatusVoided,
			SettlementStatus: types.WalletTxSettlementSettled,
			Source:           tx.Source,
			CreditAmount:     creditsVoid,
			Amount:           voidAmount,
			InvoiceID:        tx.InvoiceID,
		}
		if err := a.wallets.RecordTransaction(ctx, compensating); err != nil {
			a.logger.Errorw("failed to void surplus wallet draw", "wallet_id", tx.WalletID, "error", err)
			continue
		}
		if w, ok := wallets[tx.WalletID]; ok {
			w.BalanceCredits = w.BalanceCredits.Add(creditsVoid)
			if err := a.wallets.UpdateBalance(ctx, w.ID, w.BalanceCredits); err != nil {
				a.logger.Errorw("failed to restore wallet balance after void", "wallet_id", tx.WalletID, "error", err)
			}
		}
		surplus = surplus.Sub(voidAmount)
	}
}

func (a *Assembler) progressiveCredits(ctx context.Context, subscriptionID *string, periodStart, periodEnd time.Time) (decimal.Decimal, error) {
	if subscriptionID == nil || a.creditNotes == nil {
		return decimal.Zero, nil
	}
	notes, err := a.creditNotes.ProgressiveOffsets(ctx, *subscriptionID, periodStart, periodEnd)
	if err != nil {
		return decimal.Zero, ierr.WithError(err).WithMessage("failed to load progressive credit notes").Mark(ierr.ErrDatabase)
	}
	total := decimal.Zero
	for _, n := range notes {
		total = total.Add(n.CreditAmountCents)
	}
	return total, nil
}

// applyTaxes rates each fee against fee.amount_after_discount (spec §4.5
// step 6), not its raw amount: coupons discount the subtotal globally, so
// the coupon total is allocated across fees in proportion to each fee's
// share of the pre-discount subtotal before the rate is applied.
func (a *Assembler) applyTaxes(ctx context.Context, tenantID, customerID string, fees []*fee.Fee, subtotal, couponsAmount decimal.Decimal) (decimal.Decimal, error) {
	total := decimal.Zero
	for _, f := range fees {
		rate, err := a.taxes.ApplicableRate(ctx, tenantID, customerID, f)
		if err != nil {
			return decimal.Zero, err
		}
		if rate.IsZero() {
			continue
		}
		amountAfterDiscount := f.AmountCents
		if couponsAmount.GreaterThan(decimal.Zero) && subtotal.GreaterThan(decimal.Zero) {
			feeDiscount := f.AmountCents.Mul(couponsAmount).Div(subtotal).Round(4)
			amountAfterDiscount = f.AmountCents.Sub(feeDiscount)
		}
		taxed := amountAfterDiscount.Mul(rate).Div(decimal.NewFromInt(100)).Round(4)
		f.TaxesAmountCents = taxed
		f.TotalAmountCents = f.AmountCents.Add(taxed)
		total = total.Add(taxed)
	}
	return total, nil
}

func (a *Assembler) nextInvoiceNumber(ctx context.Context, tenantID string, now time.Time) (string, error) {
	year := now.Year()
	seq, err := a.numberer.Next(ctx, tenantID, a.invoicePrefix, year)
	if err != nil {
		return "", ierr.WithError(err).WithMessage("failed to allocate invoice number").Mark(ierr.ErrDatabase)
	}
	return formatInvoiceNumber(a.invoicePrefix, year, seq), nil
}

func formatInvoiceNumber(prefix string, year, seq int) string {
	return fmt.Sprintf("%s-%d-%06d", prefix, year, seq)
}
