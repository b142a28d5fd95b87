package ledger

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/kingsinvest/kings_invest/internal/transaction"
	"github.com/kingsinvest/kings_invest/internal/wallet"
)

// Store is the durable home of wallets and transactions.
//
// Every balance-affecting operation runs inside Atomic: the wallet and
// transaction writes made through the Tx either all commit or none do, and
// wallets locked through the Tx stay locked until the unit finishes, which
// serialises concurrent mutations of the same wallet.
type Store interface {
	Atomic(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error

	// Wallet returns a committed wallet or ErrNotFound.
	Wallet(ctx context.Context, key wallet.Key) (*wallet.Wallet, error)
	ListTransactions(ctx context.Context, filter transaction.Filter) ([]transaction.Transaction, error)
	CountTransactions(ctx context.Context, filter transaction.Filter) (int, error)
	// SumAmount adds up the amounts of every transaction matching filter.
	SumAmount(ctx context.Context, filter transaction.Filter) (decimal.Decimal, error)
}

// Tx is the view of the store inside one unit of work.
type Tx interface {
	// LockWallet locks and returns the wallet for key. When create is set a
	// missing wallet is created with zeroed fields, otherwise ErrNotFound.
	LockWallet(ctx context.Context, key wallet.Key, create bool) (*wallet.Wallet, error)
	LockWalletByID(ctx context.Context, id string) (*wallet.Wallet, error)
	SaveWallet(ctx context.Context, w *wallet.Wallet) error

	LockTransaction(ctx context.Context, id string) (*transaction.Transaction, error)
	InsertTransaction(ctx context.Context, t transaction.Transaction) error
	SetTransactionStatus(ctx context.Context, id string, status transaction.Status, at time.Time) error
}
