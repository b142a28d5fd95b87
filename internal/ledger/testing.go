package ledger

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/kingsinvest/kings_invest/internal/wallet"
)

// SeedWallet is a test helper that stores a wallet with the given fields,
// creating it when absent. It fails the test if the store rejects the write.
func SeedWallet(t testing.TB, store Store, key wallet.Key, balance, invested, earnings decimal.Decimal) *wallet.Wallet {
	t.Helper()
	var out *wallet.Wallet
	err := store.Atomic(context.Background(), func(ctx context.Context, tx Tx) error {
		w, err := tx.LockWallet(ctx, key, true)
		if err != nil {
			return err
		}
		w.Balance, w.Invested, w.Earnings = balance, invested, earnings
		if err := tx.SaveWallet(ctx, w); err != nil {
			return err
		}
		out = w
		return nil
	})
	if err != nil {
		t.Fatalf("seed wallet %s: %v", key, err)
	}
	return out
}
