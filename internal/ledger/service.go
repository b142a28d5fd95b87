package ledger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"github.com/kingsinvest/kings_invest/internal/config"
	"github.com/kingsinvest/kings_invest/internal/metrics"
	"github.com/kingsinvest/kings_invest/internal/money"
	"github.com/kingsinvest/kings_invest/internal/notification"
	"github.com/kingsinvest/kings_invest/internal/plan"
	"github.com/kingsinvest/kings_invest/internal/transaction"
	"github.com/kingsinvest/kings_invest/internal/wallet"
)

const (
	// DefaultActivityLimit is used when an activity request names no limit.
	DefaultActivityLimit = 10
	// MaxActivityLimit caps activity page sizes.
	MaxActivityLimit = 100
)

// PlanCatalog resolves investable plans.
type PlanCatalog interface {
	Lookup(ctx context.Context, id string) (plan.Plan, error)
}

// Options tune the ledger service. Zero values fall back to defaults.
type Options struct {
	CanonicalCurrency string
	// InvestSettlement selects the wallet an investment is paid from:
	// config.InvestSettlementRequested or config.InvestSettlementCanonical.
	InvestSettlement string
	NotifyTimeout    time.Duration
	Metrics          *metrics.Ledger
	Clock            func() time.Time
}

// Service is the ledger state machine: it validates fund movement requests,
// records transactions and applies their wallet effects.
type Service struct {
	store         Store
	plans         PlanCatalog
	notifier      notification.Notifier
	logger        *slog.Logger
	metrics       *metrics.Ledger
	canonical     string
	settlement    string
	notifyTimeout time.Duration
	now           func() time.Time
}

// NewService constructs a ledger service.
func NewService(store Store, plans PlanCatalog, notifier notification.Notifier, logger *slog.Logger, opts Options) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Service{
		store:         store,
		plans:         plans,
		notifier:      notifier,
		logger:        logger,
		metrics:       opts.Metrics,
		canonical:     opts.CanonicalCurrency,
		settlement:    opts.InvestSettlement,
		notifyTimeout: opts.NotifyTimeout,
		now:           opts.Clock,
	}
	if s.canonical == "" {
		s.canonical = "USD"
	}
	if s.settlement == "" {
		s.settlement = config.InvestSettlementRequested
	}
	if s.notifyTimeout <= 0 {
		s.notifyTimeout = 3 * time.Second
	}
	if s.now == nil {
		s.now = time.Now
	}
	return s
}

// FundsRequest is a user initiated deposit or withdrawal.
type FundsRequest struct {
	UserID   string
	Amount   decimal.Decimal
	Currency string
	Kind     string
}

// InvestRequest buys into an investment plan.
type InvestRequest struct {
	UserID   string
	Amount   decimal.Decimal
	PlanID   string
	Currency string
	Kind     string
}

// AdjustmentRequest is an admin credit or debit on a user's wallet.
type AdjustmentRequest struct {
	AdminID  string
	UserID   string
	Amount   decimal.Decimal
	Currency string
	Kind     string
	StatType string
}

// Result is the outcome of a state change. Wallet is nil when the operation
// did not touch a wallet.
type Result struct {
	Transaction transaction.Transaction
	Wallet      *wallet.Wallet
}

// Activity is one page of a user's transaction history.
type Activity struct {
	Transactions []transaction.Transaction
	Total        int
}

func (s *Service) clock() time.Time {
	return s.now().UTC()
}

func (s *Service) canonicalKey(userID string) (wallet.Key, error) {
	key, err := wallet.NewKey(userID, s.canonical, wallet.KindFiat)
	if err != nil {
		return wallet.Key{}, fmt.Errorf("%w: %w", ErrValidation, err)
	}
	return key, nil
}

func validKey(userID, currency, kind string) (wallet.Key, error) {
	wk, err := wallet.ParseKind(kind)
	if err != nil {
		return wallet.Key{}, fmt.Errorf("%w: %w", ErrValidation, err)
	}
	key, err := wallet.NewKey(userID, currency, wk)
	if err != nil {
		return wallet.Key{}, fmt.Errorf("%w: %w", ErrValidation, err)
	}
	return key, nil
}

func validAmount(amount decimal.Decimal) error {
	if err := money.Positive(amount); err != nil {
		return fmt.Errorf("%w: %w", ErrValidation, err)
	}
	return nil
}

// SubmitDeposit records a pending deposit. No wallet changes until approval.
func (s *Service) SubmitDeposit(ctx context.Context, req FundsRequest) (_ transaction.Transaction, err error) {
	defer s.observe("submit_deposit", s.now(), &err)

	if err := validAmount(req.Amount); err != nil {
		return transaction.Transaction{}, err
	}
	key, err := validKey(req.UserID, req.Currency, req.Kind)
	if err != nil {
		return transaction.Transaction{}, err
	}

	details := transaction.DepositRequest{
		Currency:   key.Currency,
		WalletKind: key.Kind,
		Coin:       transaction.CoinTag(key.Kind, key.Currency),
	}
	t := transaction.New(key.OwnerID, "", transaction.KindDeposit, req.Amount, transaction.StatusPending, details, s.clock())
	if err := s.store.Atomic(ctx, func(ctx context.Context, tx Tx) error {
		return tx.InsertTransaction(ctx, t)
	}); err != nil {
		return transaction.Transaction{}, err
	}

	s.notify(ctx, notification.KindDepositSubmitted, t,
		fmt.Sprintf("Your %s of %s was submitted and is awaiting approval", transaction.Describe(t.Kind, details), t.Amount))
	return t, nil
}

// ApproveDeposit credits the user's canonical fiat wallet with the deposit
// amount regardless of the currency the deposit was made in.
func (s *Service) ApproveDeposit(ctx context.Context, id string) (_ Result, err error) {
	defer s.observe("approve_deposit", s.now(), &err)

	res, err := s.resolve(ctx, id, transaction.KindDeposit, true, func(ctx context.Context, tx Tx, t *transaction.Transaction) (*wallet.Wallet, error) {
		key, err := s.canonicalKey(t.UserID)
		if err != nil {
			return nil, err
		}
		w, err := tx.LockWallet(ctx, key, true)
		if err != nil {
			return nil, err
		}
		w.Deposit(t.Amount)
		return w, tx.SaveWallet(ctx, w)
	})
	if err != nil {
		return Result{}, err
	}
	s.notify(ctx, notification.KindDepositApproved, res.Transaction,
		fmt.Sprintf("Your deposit of %s was approved", res.Transaction.Amount))
	return res, nil
}

// DeclineDeposit rejects a pending deposit. No wallet is touched.
func (s *Service) DeclineDeposit(ctx context.Context, id string) (_ Result, err error) {
	defer s.observe("decline_deposit", s.now(), &err)

	res, err := s.resolve(ctx, id, transaction.KindDeposit, false, nil)
	if err != nil {
		return Result{}, err
	}
	s.notify(ctx, notification.KindDepositDeclined, res.Transaction,
		fmt.Sprintf("Your deposit of %s was declined", res.Transaction.Amount))
	return res, nil
}

// SubmitWithdrawal escrows the amount out of the canonical fiat wallet and
// records a pending withdrawal.
func (s *Service) SubmitWithdrawal(ctx context.Context, req FundsRequest) (_ Result, err error) {
	defer s.observe("submit_withdrawal", s.now(), &err)

	if err := validAmount(req.Amount); err != nil {
		return Result{}, err
	}
	requested, err := validKey(req.UserID, req.Currency, req.Kind)
	if err != nil {
		return Result{}, err
	}
	key, err := s.canonicalKey(requested.OwnerID)
	if err != nil {
		return Result{}, err
	}

	details := transaction.WithdrawalRequest{Currency: requested.Currency, WalletKind: requested.Kind}
	var res Result
	err = s.store.Atomic(ctx, func(ctx context.Context, tx Tx) error {
		w, err := lockFunded(ctx, tx, key)
		if err != nil {
			return err
		}
		if err := w.Spend(req.Amount); err != nil {
			return err
		}
		if err := tx.SaveWallet(ctx, w); err != nil {
			return err
		}
		t := transaction.New(key.OwnerID, w.ID, transaction.KindWithdrawal, req.Amount, transaction.StatusPending, details, s.clock())
		if err := tx.InsertTransaction(ctx, t); err != nil {
			return err
		}
		res = Result{Transaction: t, Wallet: w}
		return nil
	})
	if err != nil {
		return Result{}, err
	}

	s.notify(ctx, notification.KindWithdrawalSubmitted, res.Transaction,
		fmt.Sprintf("Your %s of %s was submitted and is awaiting approval", transaction.Describe(res.Transaction.Kind, details), req.Amount))
	return res, nil
}

// ApproveWithdrawal completes a pending withdrawal. The funds already left the
// wallet at submission.
func (s *Service) ApproveWithdrawal(ctx context.Context, id string) (_ Result, err error) {
	defer s.observe("approve_withdrawal", s.now(), &err)

	res, err := s.resolve(ctx, id, transaction.KindWithdrawal, true, nil)
	if err != nil {
		return Result{}, err
	}
	s.notify(ctx, notification.KindWithdrawalApproved, res.Transaction,
		fmt.Sprintf("Your withdrawal of %s was approved", res.Transaction.Amount))
	return res, nil
}

// DeclineWithdrawal refunds the escrowed amount to the wallet the withdrawal
// was taken from.
func (s *Service) DeclineWithdrawal(ctx context.Context, id string) (_ Result, err error) {
	defer s.observe("decline_withdrawal", s.now(), &err)

	res, err := s.resolve(ctx, id, transaction.KindWithdrawal, false, func(ctx context.Context, tx Tx, t *transaction.Transaction) (*wallet.Wallet, error) {
		var (
			w   *wallet.Wallet
			err error
		)
		if t.WalletID != "" {
			w, err = tx.LockWalletByID(ctx, t.WalletID)
		} else {
			var key wallet.Key
			if key, err = s.canonicalKey(t.UserID); err == nil {
				w, err = tx.LockWallet(ctx, key, true)
			}
		}
		if err != nil {
			return nil, err
		}
		w.Refund(t.Amount)
		return w, tx.SaveWallet(ctx, w)
	})
	if err != nil {
		return Result{}, err
	}
	s.notify(ctx, notification.KindWithdrawalDeclined, res.Transaction,
		fmt.Sprintf("Your withdrawal of %s was declined and the funds returned to your balance", res.Transaction.Amount))
	return res, nil
}

// Invest pays amount into an active plan and records a completed trade.
func (s *Service) Invest(ctx context.Context, req InvestRequest) (_ Result, err error) {
	defer s.observe("invest", s.now(), &err)

	if err := validAmount(req.Amount); err != nil {
		return Result{}, err
	}
	requested, err := validKey(req.UserID, req.Currency, req.Kind)
	if err != nil {
		return Result{}, err
	}
	p, err := s.plans.Lookup(ctx, req.PlanID)
	if err != nil {
		if errors.Is(err, plan.ErrNotFound) {
			return Result{}, fmt.Errorf("%w: %w", ErrNotFound, err)
		}
		return Result{}, err
	}

	key := requested
	if s.settlement == config.InvestSettlementCanonical {
		if key, err = s.canonicalKey(requested.OwnerID); err != nil {
			return Result{}, err
		}
	}

	details := transaction.Investment{PlanID: p.ID, Currency: requested.Currency, WalletKind: requested.Kind}
	var res Result
	err = s.store.Atomic(ctx, func(ctx context.Context, tx Tx) error {
		w, err := lockFunded(ctx, tx, key)
		if err != nil {
			return err
		}
		if err := w.Spend(req.Amount); err != nil {
			return err
		}
		if err := tx.SaveWallet(ctx, w); err != nil {
			return err
		}
		t := transaction.New(key.OwnerID, w.ID, transaction.KindTrade, req.Amount, transaction.StatusCompleted, details, s.clock())
		if err := tx.InsertTransaction(ctx, t); err != nil {
			return err
		}
		res = Result{Transaction: t, Wallet: w}
		return nil
	})
	if err != nil {
		return Result{}, err
	}

	s.notify(ctx, notification.KindInvestmentCompleted, res.Transaction,
		fmt.Sprintf("You invested %s %s in the %s plan", req.Amount, requested.Currency, p.Name))
	return res, nil
}

// creditKinds maps the credited stat to the kind of the recorded transaction.
var creditKinds = map[wallet.StatType]transaction.Kind{
	wallet.StatBalance:  transaction.KindDeposit,
	wallet.StatInvested: transaction.KindTrade,
	wallet.StatEarnings: transaction.KindReturn,
}

// AdminCredit credits a user's wallet, creating it when absent.
func (s *Service) AdminCredit(ctx context.Context, req AdjustmentRequest) (_ Result, err error) {
	defer s.observe("admin_credit", s.now(), &err)
	return s.adjust(ctx, req, transaction.DirectionCredit)
}

// AdminDebit debits a user's existing wallet.
func (s *Service) AdminDebit(ctx context.Context, req AdjustmentRequest) (_ Result, err error) {
	defer s.observe("admin_debit", s.now(), &err)
	return s.adjust(ctx, req, transaction.DirectionDebit)
}

func (s *Service) adjust(ctx context.Context, req AdjustmentRequest, dir transaction.Direction) (Result, error) {
	if err := validAmount(req.Amount); err != nil {
		return Result{}, err
	}
	key, err := validKey(req.UserID, req.Currency, req.Kind)
	if err != nil {
		return Result{}, err
	}
	stat, err := wallet.ParseStatType(req.StatType)
	if err != nil {
		return Result{}, fmt.Errorf("%w: %w", ErrValidation, err)
	}

	kind := transaction.KindLoss
	if dir == transaction.DirectionCredit {
		kind = creditKinds[stat]
	}
	details := transaction.AdminAdjustment{
		Currency:   key.Currency,
		WalletKind: key.Kind,
		Direction:  dir,
		StatType:   stat,
		AdminID:    req.AdminID,
	}

	var res Result
	err = s.store.Atomic(ctx, func(ctx context.Context, tx Tx) error {
		w, err := tx.LockWallet(ctx, key, dir == transaction.DirectionCredit)
		if err != nil {
			return err
		}
		if dir == transaction.DirectionCredit {
			err = w.Credit(stat, req.Amount)
		} else {
			err = w.Debit(stat, req.Amount)
		}
		if err != nil {
			return err
		}
		if err := tx.SaveWallet(ctx, w); err != nil {
			return err
		}
		t := transaction.New(key.OwnerID, w.ID, kind, req.Amount, transaction.StatusCompleted, details, s.clock())
		if err := tx.InsertTransaction(ctx, t); err != nil {
			return err
		}
		res = Result{Transaction: t, Wallet: w}
		return nil
	})
	if err != nil {
		return Result{}, err
	}

	s.logger.InfoContext(ctx, "admin wallet adjustment",
		slog.String("admin_id", req.AdminID),
		slog.String("user_id", key.OwnerID),
		slog.String("wallet", key.String()),
		slog.String("direction", string(dir)),
		slog.String("stat_type", string(stat)),
		slog.String("amount", req.Amount.String()),
		slog.String("transaction_id", res.Transaction.ID),
	)

	notifyKind, verb := notification.KindAdminCredit, "credited to"
	if dir == transaction.DirectionDebit {
		notifyKind, verb = notification.KindAdminDebit, "debited from"
	}
	s.notify(ctx, notifyKind, res.Transaction,
		fmt.Sprintf("%s %s was %s your %s", req.Amount, key.Currency, verb, stat))
	return res, nil
}

// Snapshot returns the canonical wallet fields plus the total of completed
// withdrawals. A user without a wallet gets zeroes.
func (s *Service) Snapshot(ctx context.Context, userID string) (wallet.Snapshot, error) {
	key, err := s.canonicalKey(userID)
	if err != nil {
		return wallet.Snapshot{}, err
	}
	w, err := s.store.Wallet(ctx, key)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return wallet.Snapshot{}, err
	}
	total, err := s.store.SumAmount(ctx, transaction.Filter{
		UserID: key.OwnerID,
		Kind:   transaction.KindWithdrawal,
		Status: transaction.StatusCompleted,
	})
	if err != nil {
		return wallet.Snapshot{}, err
	}
	return wallet.SnapshotOf(w, total, s.clock()), nil
}

// Balance returns the spendable balance of the canonical wallet.
func (s *Service) Balance(ctx context.Context, userID string) (decimal.Decimal, error) {
	key, err := s.canonicalKey(userID)
	if err != nil {
		return decimal.Zero, err
	}
	w, err := s.store.Wallet(ctx, key)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return decimal.Zero, nil
		}
		return decimal.Zero, err
	}
	return w.Balance, nil
}

// Activity returns the newest transactions of a user with the total count.
func (s *Service) Activity(ctx context.Context, userID string, limit int) (Activity, error) {
	if userID == "" {
		return Activity{}, fmt.Errorf("%w: user id is required", ErrValidation)
	}
	switch {
	case limit <= 0:
		limit = DefaultActivityLimit
	case limit > MaxActivityLimit:
		limit = MaxActivityLimit
	}
	txs, err := s.store.ListTransactions(ctx, transaction.Filter{UserID: userID, Limit: limit})
	if err != nil {
		return Activity{}, err
	}
	total, err := s.store.CountTransactions(ctx, transaction.Filter{UserID: userID})
	if err != nil {
		return Activity{}, err
	}
	return Activity{Transactions: txs, Total: total}, nil
}

// Deposits lists deposits for review, pending ones first and oldest first
// within each group.
func (s *Service) Deposits(ctx context.Context, status string) ([]transaction.Transaction, error) {
	st, err := transaction.ParseStatus(status)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrValidation, err)
	}
	return s.store.ListTransactions(ctx, transaction.Filter{Kind: transaction.KindDeposit, Status: st, PendingFirst: true})
}

// Withdrawals lists withdrawals newest first.
func (s *Service) Withdrawals(ctx context.Context, status string) ([]transaction.Transaction, error) {
	st, err := transaction.ParseStatus(status)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrValidation, err)
	}
	return s.store.ListTransactions(ctx, transaction.Filter{Kind: transaction.KindWithdrawal, Status: st})
}

// UserWithdrawals lists one user's withdrawals newest first.
func (s *Service) UserWithdrawals(ctx context.Context, userID string) ([]transaction.Transaction, error) {
	if userID == "" {
		return nil, fmt.Errorf("%w: user id is required", ErrValidation)
	}
	return s.store.ListTransactions(ctx, transaction.Filter{UserID: userID, Kind: transaction.KindWithdrawal})
}

// resolve moves a pending transaction of the given kind to its approved or
// declined status, running apply in the same unit of work.
func (s *Service) resolve(
	ctx context.Context,
	id string,
	kind transaction.Kind,
	approve bool,
	apply func(ctx context.Context, tx Tx, t *transaction.Transaction) (*wallet.Wallet, error),
) (Result, error) {
	if id == "" {
		return Result{}, fmt.Errorf("%w: transaction id is required", ErrValidation)
	}
	approved, declined, _ := transaction.Resolutions(kind)
	target := declined
	if approve {
		target = approved
	}

	var res Result
	err := s.store.Atomic(ctx, func(ctx context.Context, tx Tx) error {
		t, err := tx.LockTransaction(ctx, id)
		if err != nil {
			return err
		}
		if t.Kind != kind {
			return fmt.Errorf("%w: %s %s", ErrNotFound, kind, id)
		}
		if !transaction.CanTransition(t.Kind, t.Status, target) {
			return fmt.Errorf("%w: %s %s is %s", ErrAlreadyResolved, kind, id, t.Status)
		}

		var w *wallet.Wallet
		if apply != nil {
			if w, err = apply(ctx, tx, t); err != nil {
				return err
			}
		}
		now := s.clock()
		if err := tx.SetTransactionStatus(ctx, t.ID, target, now); err != nil {
			return err
		}
		t.Status, t.UpdatedAt = target, now
		res = Result{Transaction: *t, Wallet: w}
		return nil
	})
	return res, err
}

// lockFunded locks a wallet that must already exist to be debited. A missing
// wallet has nothing to spend.
func lockFunded(ctx context.Context, tx Tx, key wallet.Key) (*wallet.Wallet, error) {
	w, err := tx.LockWallet(ctx, key, false)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, fmt.Errorf("%w: no %s wallet", ErrInsufficientFunds, key)
		}
		return nil, err
	}
	return w, nil
}

// notify delivers a notification after commit. Failures are logged only.
func (s *Service) notify(ctx context.Context, kind string, t transaction.Transaction, body string) {
	if s.notifier == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.notifyTimeout)
	defer cancel()

	err := s.notifier.Send(ctx, notification.Message{
		Kind:        kind,
		Destination: t.UserID,
		Body:        body,
		Attributes: map[string]string{
			"transaction_id": t.ID,
			"status":         string(t.Status),
			"amount":         t.Amount.String(),
		},
	})
	if err != nil {
		s.metrics.NotificationFailed(kind)
		s.logger.WarnContext(ctx, "notification failed",
			slog.String("kind", kind),
			slog.String("transaction_id", t.ID),
			slog.Any("error", err),
		)
	}
}

func (s *Service) observe(operation string, start time.Time, errp *error) {
	s.metrics.Observe(operation, outcome(*errp), s.now().Sub(start))
}

func outcome(err error) string {
	switch {
	case err == nil:
		return metrics.OutcomeOK
	case errors.Is(err, ErrValidation):
		return metrics.OutcomeValidation
	case errors.Is(err, ErrAlreadyResolved):
		return metrics.OutcomeAlreadyResolved
	case errors.Is(err, ErrNotFound):
		return metrics.OutcomeNotFound
	case errors.Is(err, ErrInsufficientFunds):
		return metrics.OutcomeInsufficientFunds
	default:
		return metrics.OutcomeError
	}
}
