package invoicing

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/flexprice/flexprice/internal/domain/fee"
	"github.com/flexprice/flexprice/internal/domain/invoice"
	"github.com/flexprice/flexprice/internal/domain/settlement"
	ierr "github.com/flexprice/flexprice/internal/errors"
	"github.com/flexprice/flexprice/internal/types"
)

var (
	errNotDraft       = ierr.NewError("invoice is not in draft status").Mark(ierr.ErrInvalidState)
	errNotFinalized   = ierr.NewError("invoice is not in finalized status").Mark(ierr.ErrInvalidState)
	errNotVoidable    = ierr.NewError("invoice has non-failed settlements and cannot be voided").Mark(ierr.ErrInvalidState)
	errInsufficientSettlement = ierr.NewError("settlements do not cover the invoice total").Mark(ierr.ErrInvalidState)
)

// WalletSettler resolves the pending outbound wallet draws an invoice
// created during assembly. internal/wallet.Service implements this directly.
type WalletSettler interface {
	SettleInvoiceDraws(ctx context.Context, invoiceID string, now time.Time) error
	ReverseInvoiceDraws(ctx context.Context, invoiceID string) error
}

// Finalize transitions a draft Invoice to finalized: it settles the
// invoice's pending wallet draws, sets each fee's PaymentStatus to pending
// and sets the invoice's Status. It returns only an error: it takes no
// snapshot of line items, does not lock fees against later changes, and
// emits no event (callers publish invoice.finalized themselves).
func Finalize(ctx context.Context, inv *invoice.Invoice, fees []*fee.Fee, wallets WalletSettler, now time.Time) error {
	if inv.Status != types.InvoiceStatusDraft {
		return errNotDraft
	}

	if err := wallets.SettleInvoiceDraws(ctx, inv.ID, now); err != nil {
		return ierr.WithError(err).WithMessage("failed to settle wallet transactions").Mark(ierr.ErrDatabase)
	}

	for _, f := range fees {
		f.PaymentStatus = types.FeePaymentStatusPending
	}

	// IssuedAt is already set by the assembler to now+gracePeriod (spec §4.5
	// step 8); re-stamping it here to the finalize-time now would break the
	// due = issued + net_payment_term relationship the assembler computed
	// due_date against.
	inv.Status = types.InvoiceStatusFinalized
	return nil
}

// Void transitions draft or finalized to voided. It is rejected if any
// settlement for the invoice is not failed (i.e. a successful or pending
// payment already exists).
func Void(ctx context.Context, inv *invoice.Invoice, settlements []settlement.InvoiceSettlement, hasNonFailed bool, wallets WalletSettler, now time.Time) error {
	if inv.Status != types.InvoiceStatusDraft && inv.Status != types.InvoiceStatusFinalized {
		return errNotDraft
	}
	if hasNonFailed {
		return errNotVoidable
	}

	if err := wallets.ReverseInvoiceDraws(ctx, inv.ID); err != nil {
		return ierr.WithError(err).WithMessage("failed to reverse wallet transactions").Mark(ierr.ErrDatabase)
	}

	inv.Status = types.InvoiceStatusVoided
	inv.VoidedAt = &now
	return nil
}

// Pay transitions finalized to paid once settlements cover the total.
func Pay(inv *invoice.Invoice, settlements []settlement.InvoiceSettlement, now time.Time) error {
	if inv.Status != types.InvoiceStatusFinalized {
		return errNotFinalized
	}
	if settlement.Sum(settlements).LessThan(inv.TotalCents) {
		return errInsufficientSettlement
	}
	inv.Status = types.InvoiceStatusPaid
	inv.PaidAt = &now
	return nil
}

// OutstandingCents is what remains unsettled on a finalized invoice.
func OutstandingCents(inv *invoice.Invoice, settlements []settlement.InvoiceSettlement) decimal.Decimal {
	remaining := inv.TotalCents.Sub(settlement.Sum(settlements))
	if remaining.IsNegative() {
		return decimal.Zero
	}
	return remaining
}
