// Package wallet implements the prepaid-credit ledger: balances denominated
// in credits, drawn down by a configurable rate_amount per currency unit.
package wallet

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/flexprice/flexprice/internal/types"
)

// Wallet is a customer's prepaid credit balance.
type Wallet struct {
	ID                string             `db:"id" json:"id"`
	TenantID          string             `db:"tenant_id" json:"tenant_id"`
	CustomerID        string             `db:"customer_id" json:"customer_id"`
	Name              string             `db:"name" json:"name"`
	Currency          string             `db:"currency" json:"currency"`
	RateAmount        decimal.Decimal    `db:"rate_amount" json:"rate_amount"` // currency units consumed per credit; defaults to 1
	Priority          int                `db:"priority" json:"priority"` // draw order ascending, then created_at ascending
	BalanceCredits    decimal.Decimal    `db:"balance_credits" json:"balance_credits"`
	CreditsGrantedLow decimal.Decimal    `db:"low_balance_credits" json:"low_balance_credits,omitempty"`
	Status            types.WalletStatus `db:"status" json:"status"`
	ExpirationDate    *time.Time         `db:"expiration_date" json:"expiration_date,omitempty"`
	types.BaseModel
}

// New creates an active Wallet with a zero balance. RateAmount defaults to
// 1 (one currency unit per credit) when the caller passes a zero value, per
// the supplemented default documented alongside the rating pipeline.
func New(tenantID, customerID, name, currency string, rateAmount decimal.Decimal) *Wallet {
	if rateAmount.IsZero() {
		rateAmount = decimal.NewFromInt(1)
	}
	return &Wallet{
		TenantID:       tenantID,
		CustomerID:     customerID,
		Name:           name,
		Currency:       currency,
		RateAmount:     rateAmount,
		BalanceCredits: decimal.Zero,
		Status:         types.WalletStatusActive,
	}
}

// CreditsToAmount converts a credit quantity to currency cents using the
// wallet's rate_amount.
func (w *Wallet) CreditsToAmount(credits decimal.Decimal) decimal.Decimal {
	return credits.Mul(w.RateAmount)
}

// AmountToCredits converts a currency amount to the credits it would consume.
func (w *Wallet) AmountToCredits(amount decimal.Decimal) decimal.Decimal {
	if w.RateAmount.IsZero() {
		return decimal.Zero
	}
	return amount.Div(w.RateAmount)
}

// IsActive reports whether the wallet can still be drawn from or topped up.
func (w *Wallet) IsActive() bool {
	return w.Status == types.WalletStatusActive
}

// Transaction is one ledger entry against a Wallet's balance.
type Transaction struct {
	ID               string                                  `db:"id" json:"id"`
	TenantID         string                                  `db:"tenant_id" json:"tenant_id"`
	WalletID         string                                  `db:"wallet_id" json:"wallet_id"`
	TransactionType  types.WalletTransactionType              `db:"transaction_type" json:"transaction_type"`
	Status           types.WalletTransactionStatus            `db:"status" json:"status"`
	SettlementStatus types.WalletTransactionSettlementStatus  `db:"settlement_status" json:"settlement_status"`
	Source           types.WalletTransactionSource             `db:"source" json:"source"`
	CreditAmount     decimal.Decimal                          `db:"credit_amount" json:"credit_amount"`
	Amount           decimal.Decimal                          `db:"amount" json:"amount"`
	InvoiceID        *string                                  `db:"invoice_id" json:"invoice_id,omitempty"`
	SettledAt        *time.Time                                `db:"settled_at" json:"settled_at,omitempty"`
	VoidedAt         *time.Time                                `db:"voided_at" json:"voided_at,omitempty"`
	types.BaseModel
}
