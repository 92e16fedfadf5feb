// Package wallet implements the operations of spec §4.6 on top of the
// domain/wallet ledger model: creation, top-ups, invoice-driven debits, and
// termination. Top-ups, and creation with initial credits, append a
// Transaction before updating the cached balance inside one database
// transaction; termination only updates the wallet's status.
package wallet

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/flexprice/flexprice/internal/domain/wallet"
	ierr "github.com/flexprice/flexprice/internal/errors"
	"github.com/flexprice/flexprice/internal/logger"
	"github.com/flexprice/flexprice/internal/postgres"
	"github.com/flexprice/flexprice/internal/types"
)

// Repository is the persistence boundary for wallets and their ledger.
// GetForUpdate must lock the row for the duration of the caller's
// transaction, per spec §5's "locked-for-update" concurrency requirement.
type Repository interface {
	Create(ctx context.Context, w *wallet.Wallet) error
	GetForUpdate(ctx context.Context, walletID string) (*wallet.Wallet, error)
	UpdateBalance(ctx context.Context, walletID string, newBalance decimal.Decimal) error
	UpdateStatus(ctx context.Context, walletID string, status types.WalletStatus) error
	RecordTransaction(ctx context.Context, tx *wallet.Transaction) error
	FindOutboundByInvoice(ctx context.Context, invoiceID string) ([]*wallet.Transaction, error)
	SettleOutbound(ctx context.Context, transactionID string, now time.Time) error
}

// Publisher emits webhooks the wallet ledger triggers.
type Publisher interface {
	PublishWalletCreated(ctx context.Context, w *wallet.Wallet) error
	PublishWalletDepleted(ctx context.Context, w *wallet.Wallet) error
}

// Service implements the wallet ledger operations of spec §4.6. It does not
// itself decide prepaid-credit draw-down for invoicing -- that selection and
// ordering lives in internal/invoicing, which uses the same Repository
// through its own narrower interface.
type Service struct {
	db     postgres.IClient
	repo   Repository
	pub    Publisher
	logger *logger.Logger
}

// NewService builds a wallet ledger Service.
func NewService(db postgres.IClient, repo Repository, pub Publisher, logger *logger.Logger) *Service {
	return &Service{db: db, repo: repo, pub: pub, logger: logger}
}

// CreateWallet opens a new wallet and, when initialCredits is positive,
// grants them as the first inbound Transaction (transaction_status=granted).
func (s *Service) CreateWallet(ctx context.Context, tenantID, customerID, name, currency string, rateAmount, initialCredits decimal.Decimal, priority int, expiresAt *time.Time) (*wallet.Wallet, error) {
	w := wallet.New(tenantID, customerID, name, currency, rateAmount)
	w.Priority = priority
	w.ExpirationDate = expiresAt

	err := s.db.WithTx(ctx, func(ctx context.Context) error {
		if err := s.repo.Create(ctx, w); err != nil {
			return ierr.WithError(err).WithMessage("failed to create wallet").Mark(ierr.ErrDatabase)
		}
		if initialCredits.GreaterThan(decimal.Zero) {
			tx := &wallet.Transaction{
				WalletID:         w.ID,
				TenantID:         tenantID,
				TransactionType:  types.WalletTransactionInbound,
				Status:           types.WalletTxStatusGranted,
				SettlementStatus: types.WalletTxSettlementSettled,
				Source:           types.WalletTxSourceManual,
				CreditAmount:     initialCredits,
				Amount:           w.CreditsToAmount(initialCredits),
			}
			if err := s.repo.RecordTransaction(ctx, tx); err != nil {
				return ierr.WithError(err).WithMessage("failed to record initial grant").Mark(ierr.ErrDatabase)
			}
			w.BalanceCredits = w.BalanceCredits.Add(initialCredits)
			if err := s.repo.UpdateBalance(ctx, w.ID, w.BalanceCredits); err != nil {
				return ierr.WithError(err).WithMessage("failed to update wallet balance").Mark(ierr.ErrDatabase)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if s.pub != nil {
		if err := s.pub.PublishWalletCreated(ctx, w); err != nil {
			s.logger.Errorw("failed to publish wallet.created", "wallet_id", w.ID, "error", err)
		}
	}
	return w, nil
}

// TopUp grants credits purchased or manually added outside the invoicing
// flow; always inbound and settled immediately.
func (s *Service) TopUp(ctx context.Context, walletID string, credits decimal.Decimal, source types.WalletTransactionSource) (*wallet.Transaction, error) {
	if credits.LessThanOrEqual(decimal.Zero) {
		return nil, ierr.NewError("top-up amount must be positive").Mark(ierr.ErrValidation)
	}

	var tx *wallet.Transaction
	err := s.db.WithTx(ctx, func(ctx context.Context) error {
		w, err := s.repo.GetForUpdate(ctx, walletID)
		if err != nil {
			return ierr.WithError(err).WithMessage("failed to load wallet").Mark(ierr.ErrDatabase)
		}
		if !w.IsActive() {
			return ierr.NewError("wallet is not active").Mark(ierr.ErrInvalidState)
		}

		tx = &wallet.Transaction{
			WalletID:         w.ID,
			TenantID:         w.TenantID,
			TransactionType:  types.WalletTransactionInbound,
			Status:           types.WalletTxStatusPurchased,
			SettlementStatus: types.WalletTxSettlementSettled,
			Source:           source,
			CreditAmount:     credits,
			Amount:           w.CreditsToAmount(credits),
		}
		if err := s.repo.RecordTransaction(ctx, tx); err != nil {
			return ierr.WithError(err).WithMessage("failed to record top-up").Mark(ierr.ErrDatabase)
		}
		newBalance := w.BalanceCredits.Add(credits)
		return s.repo.UpdateBalance(ctx, w.ID, newBalance)
	})
	if err != nil {
		return nil, err
	}
	return tx, nil
}

// Debit draws creditAmount credits from an active, non-expired wallet,
// tying the outbound transaction to an invoice. The transaction starts
// pending; SettleInvoiceDraws or ReverseInvoiceDraws resolves it when the
// invoice finalizes or voids (spec §4.6).
func (s *Service) Debit(ctx context.Context, walletID string, creditAmount decimal.Decimal, invoiceID string, now time.Time) (*wallet.Transaction, error) {
	var tx *wallet.Transaction
	err := s.db.WithTx(ctx, func(ctx context.Context) error {
		w, err := s.repo.GetForUpdate(ctx, walletID)
		if err != nil {
			return ierr.WithError(err).WithMessage("failed to load wallet").Mark(ierr.ErrDatabase)
		}
		if !w.IsActive() {
			return ierr.NewError("wallet is not active").Mark(ierr.ErrInvalidState)
		}
		if w.ExpirationDate != nil && !w.ExpirationDate.After(now) {
			return ierr.NewError("wallet has expired").Mark(ierr.ErrInvalidState)
		}
		if creditAmount.GreaterThan(w.BalanceCredits) {
			return ierr.NewError("insufficient wallet balance").Mark(ierr.ErrInvalidState)
		}

		invID := invoiceID
		tx = &wallet.Transaction{
			WalletID:         w.ID,
			TenantID:         w.TenantID,
			TransactionType:  types.WalletTransactionOutbound,
			Status:           types.WalletTxStatusInvoiced,
			SettlementStatus: types.WalletTxSettlementPending,
			Source:           types.WalletTxSourceManual,
			CreditAmount:     creditAmount,
			Amount:           w.CreditsToAmount(creditAmount),
			InvoiceID:        &invID,
		}
		if err := s.repo.RecordTransaction(ctx, tx); err != nil {
			return ierr.WithError(err).WithMessage("failed to record debit").Mark(ierr.ErrDatabase)
		}
		newBalance := w.BalanceCredits.Sub(creditAmount)
		if err := s.repo.UpdateBalance(ctx, w.ID, newBalance); err != nil {
			return err
		}
		if s.pub != nil && newBalance.IsZero() {
			w.BalanceCredits = newBalance
			if err := s.pub.PublishWalletDepleted(ctx, w); err != nil {
				s.logger.Errorw("failed to publish wallet.depleted", "wallet_id", w.ID, "error", err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return tx, nil
}

// SettleInvoiceDraws marks every pending outbound transaction tied to
// invoiceID as settled, called from invoice finalization (spec §4.5 step
// "finalize transition").
func (s *Service) SettleInvoiceDraws(ctx context.Context, invoiceID string, now time.Time) error {
	txns, err := s.repo.FindOutboundByInvoice(ctx, invoiceID)
	if err != nil {
		return ierr.WithError(err).WithMessage("failed to load invoice wallet draws").Mark(ierr.ErrDatabase)
	}
	for _, tx := range txns {
		if tx.SettlementStatus != types.WalletTxSettlementPending {
			continue
		}
		if err := s.repo.SettleOutbound(ctx, tx.ID, now); err != nil {
			return ierr.WithError(err).WithMessage("failed to settle wallet draw").Mark(ierr.ErrDatabase)
		}
	}
	return nil
}

// ReverseInvoiceDraws compensates every not-yet-settled outbound transaction
// tied to invoiceID with an equal inbound voided transaction, restoring the
// wallet's balance; settled draws are skipped. Called when a draft invoice carrying pending draws is
// voided (spec §4.6).
func (s *Service) ReverseInvoiceDraws(ctx context.Context, invoiceID string) error {
	txns, err := s.repo.FindOutboundByInvoice(ctx, invoiceID)
	if err != nil {
		return ierr.WithError(err).WithMessage("failed to load invoice wallet draws").Mark(ierr.ErrDatabase)
	}
	return s.db.WithTx(ctx, func(ctx context.Context) error {
		for _, tx := range txns {
			if tx.SettlementStatus == types.WalletTxSettlementSettled {
				continue
			}
			w, err := s.repo.GetForUpdate(ctx, tx.WalletID)
			if err != nil {
				return ierr.WithError(err).WithMessage("failed to load wallet").Mark(ierr.ErrDatabase)
			}
			compensating := &wallet.Transaction{
				WalletID:         w.ID,
				TenantID:         w.TenantID,
				TransactionType:  types.WalletTransactionInbound,
				Status:           types.WalletTxStatusVoided,
				SettlementStatus: types.WalletTxSettlementSettled,
				Source:           tx.Source,
				CreditAmount:     tx.CreditAmount,
				Amount:           tx.Amount,
				InvoiceID:        tx.InvoiceID,
			}
			if err := s.repo.RecordTransaction(ctx, compensating); err != nil {
				return ierr.WithError(err).WithMessage("failed to record reversal").Mark(ierr.ErrDatabase)
			}
			newBalance := w.BalanceCredits.Add(tx.CreditAmount)
			if err := s.repo.UpdateBalance(ctx, w.ID, newBalance); err != nil {
				return err
			}
		}
		return nil
	})
}

// Terminate soft-deletes a wallet; its balance is preserved for audit, and
// it is excluded from future selection for draws.
func (s *Service) Terminate(ctx context.Context, walletID string) error {
	return s.repo.UpdateStatus(ctx, walletID, types.WalletStatusTerminated)
}
