// Package postgres implements the repository interfaces the service layer
// depends on (wallet, webhook, dunning, payment, scheduler) against the
// sqlx-based postgres.IClient, grounded on the teacher's sqlx query style.
package postgres

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	domainwallet "github.com/flexprice/flexprice/internal/domain/wallet"
	ierr "github.com/flexprice/flexprice/internal/errors"
	"github.com/flexprice/flexprice/internal/postgres"
	"github.com/flexprice/flexprice/internal/types"
)

// WalletRepository implements internal/wallet.Repository and the narrower
// invoicing.WalletRepository the assembler draws from (the assembler's
// invoicing.CreditNoteRepository is implemented by CreditNoteRepository).
type WalletRepository struct {
	db postgres.IClient
}

// NewWalletRepository builds a WalletRepository.
func NewWalletRepository(db postgres.IClient) *WalletRepository {
	return &WalletRepository{db: db}
}

func (r *WalletRepository) Create(ctx context.Context, w *domainwallet.Wallet) error {
	w.ID = types.GenerateUUID()
	now := time.Now()
	w.CreatedAt, w.UpdatedAt = now, now
	const q = `
		INSERT INTO wallets (id, tenant_id, customer_id, name, currency, rate_amount, priority,
			balance_credits, low_balance_credits, status, expiration_date, created_at, updated_at)
		VALUES (:id, :tenant_id, :customer_id, :name, :currency, :rate_amount, :priority,
			:balance_credits, :low_balance_credits, :status, :expiration_date, :created_at, :updated_at)`
	if _, err := r.db.Querier(ctx).NamedExec(q, w); err != nil {
		return ierr.WithError(err).WithMessage("failed to insert wallet").Mark(ierr.ErrDatabase)
	}
	return nil
}

// GetForUpdate loads a wallet with SELECT ... FOR UPDATE, relying on the
// caller running inside db.WithTx so the row lock holds for the transaction.
func (r *WalletRepository) GetForUpdate(ctx context.Context, walletID string) (*domainwallet.Wallet, error) {
	const q = `SELECT * FROM wallets WHERE id = $1 FOR UPDATE`
	var w domainwallet.Wallet
	if err := r.db.Querier(ctx).GetContext(ctx, &w, q, walletID); err != nil {
		return nil, ierr.WithError(err).WithMessage("failed to load wallet for update").Mark(ierr.ErrNotFound)
	}
	return &w, nil
}

func (r *WalletRepository) UpdateBalance(ctx context.Context, walletID string, newBalance decimal.Decimal) error {
	const q = `UPDATE wallets SET balance_credits = $1, updated_at = $2 WHERE id = $3`
	_, err := r.db.Querier(ctx).ExecContext(ctx, q, newBalance, time.Now(), walletID)
	if err != nil {
		return ierr.WithError(err).WithMessage("failed to update wallet balance").Mark(ierr.ErrDatabase)
	}
	return nil
}

func (r *WalletRepository) UpdateStatus(ctx context.Context, walletID string, status types.WalletStatus) error {
	const q = `UPDATE wallets SET status = $1, updated_at = $2 WHERE id = $3`
	_, err := r.db.Querier(ctx).ExecContext(ctx, q, status, time.Now(), walletID)
	if err != nil {
		return ierr.WithError(err).WithMessage("failed to update wallet status").Mark(ierr.ErrDatabase)
	}
	return nil
}

func (r *WalletRepository) RecordTransaction(ctx context.Context, tx *domainwallet.Transaction) error {
	tx.ID = types.GenerateUUID()
	now := time.Now()
	tx.CreatedAt, tx.UpdatedAt = now, now
	const q = `
		INSERT INTO wallet_transactions (id, tenant_id, wallet_id, transaction_type, status,
			settlement_status, source, credit_amount, amount, invoice_id, settled_at, voided_at,
			created_at, updated_at)
		VALUES (:id, :tenant_id, :wallet_id, :transaction_type, :status,
			:settlement_status, :source, :credit_amount, :amount, :invoice_id, :settled_at, :voided_at,
			:created_at, :updated_at)`
	if _, err := r.db.Querier(ctx).NamedExec(q, tx); err != nil {
		return ierr.WithError(err).WithMessage("failed to insert wallet transaction").Mark(ierr.ErrDatabase)
	}
	return nil
}

func (r *WalletRepository) FindOutboundByInvoice(ctx context.Context, invoiceID string) ([]*domainwallet.Transaction, error) {
	const q = `
		SELECT * FROM wallet_transactions
		WHERE invoice_id = $1 AND transaction_type = $2
		ORDER BY created_at ASC`
	var txns []*domainwallet.Transaction
	if err := r.db.Querier(ctx).SelectContext(ctx, &txns, q, invoiceID, types.WalletTransactionOutbound); err != nil {
		return nil, ierr.WithError(err).WithMessage("failed to load invoice wallet draws").Mark(ierr.ErrDatabase)
	}
	return txns, nil
}

func (r *WalletRepository) SettleOutbound(ctx context.Context, transactionID string, now time.Time) error {
	const q = `
		UPDATE wallet_transactions
		SET settlement_status = $1, settled_at = $2, updated_at = $2
		WHERE id = $3`
	_, err := r.db.Querier(ctx).ExecContext(ctx, q, types.WalletTxSettlementSettled, now, transactionID)
	if err != nil {
		return ierr.WithError(err).WithMessage("failed to settle wallet transaction").Mark(ierr.ErrDatabase)
	}
	return nil
}

// ActiveWallets implements invoicing.WalletRepository: every active,
// unexpired wallet for a customer in one currency, sorted for draw order
// (priority ascending, then created_at ascending).
func (r *WalletRepository) ActiveWallets(ctx context.Context, customerID, currency string, now time.Time) ([]*domainwallet.Wallet, error) {
	const q = `
		SELECT * FROM wallets
		WHERE customer_id = $1 AND currency = $2 AND status = $3
			AND (expiration_date IS NULL OR expiration_date > $4)`
	var wallets []*domainwallet.Wallet
	if err := r.db.Querier(ctx).SelectContext(ctx, &wallets, q, customerID, currency, types.WalletStatusActive, now); err != nil {
		return nil, ierr.WithError(err).WithMessage("failed to load customer wallets").Mark(ierr.ErrDatabase)
	}
	domainwallet.SortForDraw(wallets)
	return wallets, nil
}
