package ledger

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/kingsinvest/kings_invest/internal/money"
	"github.com/kingsinvest/kings_invest/internal/transaction"
	"github.com/kingsinvest/kings_invest/internal/wallet"
)

const (
	checkViolation  = "23514"
	numericOverflow = "22003"
)

func isPgCode(err error, code string) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == code
}

// PostgresStore persists wallets and transactions in PostgreSQL. Wallet and
// transaction rows touched by a unit of work are held with SELECT ... FOR UPDATE
// until it commits.
type PostgresStore struct {
	db *pgxpool.Pool
}

// NewPostgresStore constructs a Postgres-backed store.
func NewPostgresStore(db *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{db: db}
}

// Atomic runs fn inside one database transaction.
func (s *PostgresStore) Atomic(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error {
	tx, err := s.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx) // nolint:errcheck

	if err := fn(ctx, &pgUnit{tx: tx}); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

const walletColumns = `id, owner_id, currency, kind, balance::text, invested::text, earnings::text, created_at, updated_at`

func scanWallet(row pgx.Row) (*wallet.Wallet, error) {
	var (
		w                           wallet.Wallet
		kind                        string
		balance, invested, earnings string
	)
	if err := row.Scan(&w.ID, &w.OwnerID, &w.Currency, &kind, &balance, &invested, &earnings, &w.CreatedAt, &w.UpdatedAt); err != nil {
		return nil, err
	}
	w.Kind = wallet.Kind(kind)
	var err error
	if w.Balance, err = money.FromDB(balance); err != nil {
		return nil, err
	}
	if w.Invested, err = money.FromDB(invested); err != nil {
		return nil, err
	}
	if w.Earnings, err = money.FromDB(earnings); err != nil {
		return nil, err
	}
	return &w, nil
}

// Wallet reads a committed wallet without locking it.
func (s *PostgresStore) Wallet(ctx context.Context, key wallet.Key) (*wallet.Wallet, error) {
	row := s.db.QueryRow(ctx, `SELECT `+walletColumns+` FROM wallets
        WHERE owner_id = $1 AND currency = $2 AND kind = $3`, key.OwnerID, key.Currency, string(key.Kind))
	w, err := scanWallet(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: wallet %s", ErrNotFound, key)
		}
		return nil, err
	}
	return w, nil
}

const transactionColumns = `id, user_id, COALESCE(wallet_id::text, ''), kind, amount::text, status, details, created_at, updated_at`

func scanTransaction(row pgx.Row) (*transaction.Transaction, error) {
	var (
		t            transaction.Transaction
		kind, status string
		amount       string
		rawDetails   []byte
	)
	if err := row.Scan(&t.ID, &t.UserID, &t.WalletID, &kind, &amount, &status, &rawDetails, &t.CreatedAt, &t.UpdatedAt); err != nil {
		return nil, err
	}
	t.Kind = transaction.Kind(kind)
	t.Status = transaction.Status(status)
	var err error
	if t.Amount, err = money.FromDB(amount); err != nil {
		return nil, err
	}
	if t.Details, err = transaction.DecodeDetails(rawDetails); err != nil {
		return nil, fmt.Errorf("transaction %s: %w", t.ID, err)
	}
	return &t, nil
}

// where renders the filter predicates as a WHERE clause and its arguments.
func where(filter transaction.Filter) (string, []any) {
	var (
		conds []string
		args  []any
	)
	add := func(column string, value any) {
		args = append(args, value)
		conds = append(conds, fmt.Sprintf("%s = $%d", column, len(args)))
	}
	if filter.UserID != "" {
		add("user_id", filter.UserID)
	}
	if filter.Kind != "" {
		add("kind", string(filter.Kind))
	}
	if filter.Status != "" {
		add("status", string(filter.Status))
	}
	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

// ListTransactions returns transactions matching filter.
func (s *PostgresStore) ListTransactions(ctx context.Context, filter transaction.Filter) ([]transaction.Transaction, error) {
	clause, args := where(filter)
	query := `SELECT ` + transactionColumns + ` FROM transactions` + clause
	if filter.PendingFirst {
		query += ` ORDER BY (status = 'pending') DESC, created_at ASC, id ASC`
	} else {
		query += ` ORDER BY created_at DESC, id DESC`
	}
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}

	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]transaction.Transaction, 0)
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *t)
	}
	return out, rows.Err()
}

// CountTransactions counts transactions matching filter, ignoring its limit.
func (s *PostgresStore) CountTransactions(ctx context.Context, filter transaction.Filter) (int, error) {
	clause, args := where(filter)
	var n int
	if err := s.db.QueryRow(ctx, `SELECT COUNT(*) FROM transactions`+clause, args...).Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}

// SumAmount totals the amount of transactions matching filter.
func (s *PostgresStore) SumAmount(ctx context.Context, filter transaction.Filter) (decimal.Decimal, error) {
	clause, args := where(filter)
	var raw string
	if err := s.db.QueryRow(ctx, `SELECT COALESCE(SUM(amount), 0)::text FROM transactions`+clause, args...).Scan(&raw); err != nil {
		return decimal.Zero, err
	}
	return money.FromDB(raw)
}

type pgUnit struct {
	tx pgx.Tx
}

func (u *pgUnit) LockWallet(ctx context.Context, key wallet.Key, create bool) (*wallet.Wallet, error) {
	if create {
		if _, err := u.tx.Exec(ctx, `INSERT INTO wallets (id, owner_id, currency, kind)
            VALUES ($1, $2, $3, $4)
            ON CONFLICT (owner_id, currency, kind) DO NOTHING`,
			uuid.New(), key.OwnerID, key.Currency, string(key.Kind)); err != nil {
			return nil, fmt.Errorf("create wallet %s: %w", key, err)
		}
	}
	row := u.tx.QueryRow(ctx, `SELECT `+walletColumns+` FROM wallets
        WHERE owner_id = $1 AND currency = $2 AND kind = $3 FOR UPDATE`, key.OwnerID, key.Currency, string(key.Kind))
	w, err := scanWallet(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: wallet %s", ErrNotFound, key)
		}
		return nil, err
	}
	return w, nil
}

func (u *pgUnit) LockWalletByID(ctx context.Context, id string) (*wallet.Wallet, error) {
	row := u.tx.QueryRow(ctx, `SELECT `+walletColumns+` FROM wallets WHERE id = $1 FOR UPDATE`, id)
	w, err := scanWallet(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: wallet %s", ErrNotFound, id)
		}
		return nil, err
	}
	return w, nil
}

func (u *pgUnit) SaveWallet(ctx context.Context, w *wallet.Wallet) error {
	var updatedAt time.Time
	err := u.tx.QueryRow(ctx, `UPDATE wallets
        SET balance = $2::numeric, invested = $3::numeric, earnings = $4::numeric, updated_at = NOW()
        WHERE id = $1
        RETURNING updated_at`,
		w.ID, w.Balance.String(), w.Invested.String(), w.Earnings.String()).Scan(&updatedAt)
	if err != nil {
		if isPgCode(err, checkViolation) {
			return fmt.Errorf("%w: wallet %s would go negative", ErrInsufficientFunds, w.ID)
		}
		if isPgCode(err, numericOverflow) {
			return fmt.Errorf("%w: wallet %s: %w", ErrValidation, w.ID, money.ErrTooLarge)
		}
		if errors.Is(err, pgx.ErrNoRows) {
			return fmt.Errorf("%w: wallet %s", ErrNotFound, w.ID)
		}
		return err
	}
	w.UpdatedAt = updatedAt
	return nil
}

func (u *pgUnit) LockTransaction(ctx context.Context, id string) (*transaction.Transaction, error) {
	row := u.tx.QueryRow(ctx, `SELECT `+transactionColumns+` FROM transactions WHERE id = $1 FOR UPDATE`, id)
	t, err := scanTransaction(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: transaction %s", ErrNotFound, id)
		}
		return nil, err
	}
	return t, nil
}

func (u *pgUnit) InsertTransaction(ctx context.Context, t transaction.Transaction) error {
	details, err := transaction.EncodeDetails(t.Details)
	if err != nil {
		return err
	}
	var walletID any
	if t.WalletID != "" {
		walletID = t.WalletID
	}
	_, err = u.tx.Exec(ctx, `INSERT INTO transactions
        (id, user_id, wallet_id, kind, amount, status, details, created_at, updated_at)
        VALUES ($1, $2, $3::uuid, $4, $5::numeric, $6, $7::jsonb, $8, $9)`,
		t.ID, t.UserID, walletID, string(t.Kind), t.Amount.String(), string(t.Status), string(details), t.CreatedAt, t.UpdatedAt)
	if isPgCode(err, numericOverflow) {
		return fmt.Errorf("%w: transaction %s: %w", ErrValidation, t.ID, money.ErrTooLarge)
	}
	return err
}

func (u *pgUnit) SetTransactionStatus(ctx context.Context, id string, status transaction.Status, at time.Time) error {
	tag, err := u.tx.Exec(ctx, `UPDATE transactions SET status = $2, updated_at = $3 WHERE id = $1`, id, string(status), at)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: transaction %s", ErrNotFound, id)
	}
	return nil
}
