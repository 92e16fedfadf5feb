package wallet

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	domainwallet "github.com/flexprice/flexprice/internal/domain/wallet"
	"github.com/flexprice/flexprice/internal/logger"
	"github.com/flexprice/flexprice/internal/postgres"
	"github.com/flexprice/flexprice/internal/types"
)

// fakeClient runs WithTx inline; Querier/Close are unused by wallet.Service.
type fakeClient struct{}

func (fakeClient) WithTx(ctx context.Context, fn func(context.Context) error) error { return fn(ctx) }
func (fakeClient) Querier(ctx context.Context) postgres.Querier                     { return nil }
func (fakeClient) Close() error                                                     { return nil }

type fakeRepo struct {
	wallets      map[string]*domainwallet.Wallet
	transactions []*domainwallet.Transaction
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{wallets: make(map[string]*domainwallet.Wallet)}
}

func (r *fakeRepo) Create(ctx context.Context, w *domainwallet.Wallet) error {
	w.ID = "wallet_1"
	r.wallets[w.ID] = w
	return nil
}

func (r *fakeRepo) GetForUpdate(ctx context.Context, walletID string) (*domainwallet.Wallet, error) {
	w, ok := r.wallets[walletID]
	if !ok {
		return nil, sql.ErrNoRows
	}
	cp := *w
	return &cp, nil
}

func (r *fakeRepo) UpdateBalance(ctx context.Context, walletID string, newBalance decimal.Decimal) error {
	r.wallets[walletID].BalanceCredits = newBalance
	return nil
}

func (r *fakeRepo) UpdateStatus(ctx context.Context, walletID string, status types.WalletStatus) error {
	r.wallets[walletID].Status = status
	return nil
}

func (r *fakeRepo) RecordTransaction(ctx context.Context, tx *domainwallet.Transaction) error {
	tx.ID = "txn_" + string(rune('a'+len(r.transactions)))
	r.transactions = append(r.transactions, tx)
	return nil
}

func (r *fakeRepo) FindOutboundByInvoice(ctx context.Context, invoiceID string) ([]*domainwallet.Transaction, error) {
	var out []*domainwallet.Transaction
	for _, tx := range r.transactions {
		if tx.InvoiceID != nil && *tx.InvoiceID == invoiceID {
			out = append(out, tx)
		}
	}
	return out, nil
}

func (r *fakeRepo) SettleOutbound(ctx context.Context, transactionID string, now time.Time) error {
	for _, tx := range r.transactions {
		if tx.ID == transactionID {
			tx.SettlementStatus = types.WalletTxSettlementSettled
			tx.SettledAt = &now
		}
	}
	return nil
}

type fakePublisher struct {
	created  int
	depleted int
}

func (p *fakePublisher) PublishWalletCreated(ctx context.Context, w *domainwallet.Wallet) error {
	p.created++
	return nil
}

func (p *fakePublisher) PublishWalletDepleted(ctx context.Context, w *domainwallet.Wallet) error {
	p.depleted++
	return nil
}

func newTestService(t *testing.T) (*Service, *fakeRepo, *fakePublisher) {
	t.Helper()
	l, err := logger.NewLogger()
	require.NoError(t, err)
	repo := newFakeRepo()
	pub := &fakePublisher{}
	return NewService(fakeClient{}, repo, pub, l), repo, pub
}

func TestService_CreateWallet_GrantsInitialCredits(t *testing.T) {
	svc, repo, pub := newTestService(t)
	ctx := context.Background()

	w, err := svc.CreateWallet(ctx, "tenant_1", "cust_1", "main", "USD", decimal.NewFromInt(1), decimal.NewFromInt(100), 0, nil)
	require.NoError(t, err)
	require.True(t, w.BalanceCredits.Equal(decimal.NewFromInt(100)))
	require.Len(t, repo.transactions, 1)
	require.Equal(t, types.WalletTxStatusGranted, repo.transactions[0].Status)
	require.Equal(t, 1, pub.created)
}

func TestService_CreateWallet_NoGrantWhenZero(t *testing.T) {
	svc, repo, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.CreateWallet(ctx, "tenant_1", "cust_1", "main", "USD", decimal.NewFromInt(1), decimal.Zero, 0, nil)
	require.NoError(t, err)
	require.Empty(t, repo.transactions)
}

func TestService_Debit_InsufficientBalance(t *testing.T) {
	svc, repo, _ := newTestService(t)
	ctx := context.Background()

	w, err := svc.CreateWallet(ctx, "tenant_1", "cust_1", "main", "USD", decimal.NewFromInt(1), decimal.NewFromInt(10), 0, nil)
	require.NoError(t, err)

	_, err = svc.Debit(ctx, w.ID, decimal.NewFromInt(20), "inv_1", time.Now())
	require.Error(t, err)
	require.True(t, repo.wallets[w.ID].BalanceCredits.Equal(decimal.NewFromInt(10)))
}

func TestService_Debit_PublishesDepletedOnZeroBalance(t *testing.T) {
	svc, _, pub := newTestService(t)
	ctx := context.Background()

	w, err := svc.CreateWallet(ctx, "tenant_1", "cust_1", "main", "USD", decimal.NewFromInt(1), decimal.NewFromInt(10), 0, nil)
	require.NoError(t, err)

	tx, err := svc.Debit(ctx, w.ID, decimal.NewFromInt(10), "inv_1", time.Now())
	require.NoError(t, err)
	require.Equal(t, types.WalletTxSettlementPending, tx.SettlementStatus)
	require.Equal(t, 1, pub.depleted)
}

func TestService_SettleInvoiceDraws(t *testing.T) {
	svc, repo, _ := newTestService(t)
	ctx := context.Background()

	w, err := svc.CreateWallet(ctx, "tenant_1", "cust_1", "main", "USD", decimal.NewFromInt(1), decimal.NewFromInt(10), 0, nil)
	require.NoError(t, err)

	_, err = svc.Debit(ctx, w.ID, decimal.NewFromInt(5), "inv_1", time.Now())
	require.NoError(t, err)

	require.NoError(t, svc.SettleInvoiceDraws(ctx, "inv_1", time.Now()))
	require.Equal(t, types.WalletTxSettlementSettled, repo.transactions[len(repo.transactions)-1].SettlementStatus)
}

func TestService_ReverseInvoiceDraws_RestoresBalance(t *testing.T) {
	svc, repo, _ := newTestService(t)
	ctx := context.Background()

	w, err := svc.CreateWallet(ctx, "tenant_1", "cust_1", "main", "USD", decimal.NewFromInt(1), decimal.NewFromInt(10), 0, nil)
	require.NoError(t, err)

	_, err = svc.Debit(ctx, w.ID, decimal.NewFromInt(5), "inv_1", time.Now())
	require.NoError(t, err)
	require.True(t, repo.wallets[w.ID].BalanceCredits.Equal(decimal.NewFromInt(5)))

	require.NoError(t, svc.ReverseInvoiceDraws(ctx, "inv_1"))
	require.True(t, repo.wallets[w.ID].BalanceCredits.Equal(decimal.NewFromInt(10)))
}

func TestService_Terminate(t *testing.T) {
	svc, repo, _ := newTestService(t)
	ctx := context.Background()

	w, err := svc.CreateWallet(ctx, "tenant_1", "cust_1", "main", "USD", decimal.NewFromInt(1), decimal.Zero, 0, nil)
	require.NoError(t, err)

	require.NoError(t, svc.Terminate(ctx, w.ID))
	require.Equal(t, types.WalletStatusTerminated, repo.wallets[w.ID].Status)
}
