package ledger

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/shopspring/decimal"

	"github.com/kingsinvest/kings_invest/internal/config"
	"github.com/kingsinvest/kings_invest/internal/logging"
	"github.com/kingsinvest/kings_invest/internal/metrics"
	"github.com/kingsinvest/kings_invest/internal/money"
	"github.com/kingsinvest/kings_invest/internal/notification"
	"github.com/kingsinvest/kings_invest/internal/plan"
	"github.com/kingsinvest/kings_invest/internal/transaction"
	"github.com/kingsinvest/kings_invest/internal/wallet"
)

type recordingNotifier struct {
	mu   sync.Mutex
	msgs []notification.Message
	err  error
}

func (n *recordingNotifier) Send(_ context.Context, m notification.Message) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.msgs = append(n.msgs, m)
	return n.err
}

func (n *recordingNotifier) kinds() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]string, len(n.msgs))
	for i, m := range n.msgs {
		out[i] = m.Kind
	}
	return out
}

type fixture struct {
	svc      *Service
	store    Store
	notifier *recordingNotifier
	metrics  *metrics.Ledger
}

func newFixture(t *testing.T, settlement string) fixture {
	t.Helper()
	plans := plan.NewService(plan.NewMemoryRepository(), logging.Discard())
	if _, err := plans.Seed(context.Background(), []plan.Plan{
		{ID: "gold", Name: "Gold", Rate: decimal.RequireFromString("12"), DurationDays: 90, IsActive: true},
		{ID: "retired", Name: "Retired", Rate: decimal.RequireFromString("3"), DurationDays: 30},
	}); err != nil {
		t.Fatalf("seed plans: %v", err)
	}
	store := NewInMemory()
	notifier := &recordingNotifier{}
	m := metrics.New()
	svc := NewService(store, plans, notifier, logging.Discard(), Options{
		InvestSettlement: settlement,
		Metrics:          m,
	})
	return fixture{svc: svc, store: store, notifier: notifier, metrics: m}
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func usdKey(t *testing.T, user string) wallet.Key {
	t.Helper()
	key, err := wallet.NewKey(user, "USD", wallet.KindFiat)
	if err != nil {
		t.Fatalf("key: %v", err)
	}
	return key
}

func (f fixture) wallet(t *testing.T, key wallet.Key) *wallet.Wallet {
	t.Helper()
	w, err := f.store.Wallet(context.Background(), key)
	if err != nil {
		t.Fatalf("load wallet %s: %v", key, err)
	}
	return w
}

func assertFields(t *testing.T, w *wallet.Wallet, balance, invested, earnings string) {
	t.Helper()
	if !w.Balance.Equal(dec(balance)) || !w.Invested.Equal(dec(invested)) || !w.Earnings.Equal(dec(earnings)) {
		t.Fatalf("expected {%s %s %s}, got {%s %s %s}", balance, invested, earnings, w.Balance, w.Invested, w.Earnings)
	}
}

func TestDepositApprovalCreditsCanonicalWallet(t *testing.T) {
	f := newFixture(t, "")
	ctx := context.Background()

	tx, err := f.svc.SubmitDeposit(ctx, FundsRequest{UserID: "u1", Amount: dec("100"), Currency: "usd", Kind: "fiat"})
	if err != nil {
		t.Fatalf("submit deposit: %v", err)
	}
	if tx.Status != transaction.StatusPending {
		t.Fatalf("expected pending, got %s", tx.Status)
	}
	if _, err := f.store.Wallet(ctx, usdKey(t, "u1")); !errors.Is(err, ErrNotFound) {
		t.Fatalf("submitting a deposit must not create a wallet, got %v", err)
	}

	res, err := f.svc.ApproveDeposit(ctx, tx.ID)
	if err != nil {
		t.Fatalf("approve deposit: %v", err)
	}
	if res.Transaction.Status != transaction.StatusApproved {
		t.Fatalf("expected approved, got %s", res.Transaction.Status)
	}
	assertFields(t, res.Wallet, "100", "100", "0")
	assertFields(t, f.wallet(t, usdKey(t, "u1")), "100", "100", "0")

	kinds := f.notifier.kinds()
	if len(kinds) != 2 || kinds[0] != notification.KindDepositSubmitted || kinds[1] != notification.KindDepositApproved {
		t.Fatalf("unexpected notifications %v", kinds)
	}
}

func TestCryptoDepositSettlesInCanonicalWallet(t *testing.T) {
	f := newFixture(t, "")
	ctx := context.Background()

	tx, err := f.svc.SubmitDeposit(ctx, FundsRequest{UserID: "u1", Amount: dec("0.5"), Currency: "BTC", Kind: "crypto"})
	if err != nil {
		t.Fatalf("submit deposit: %v", err)
	}
	details, ok := tx.Details.(transaction.DepositRequest)
	if !ok || details.Coin != "BTC" || details.WalletKind != wallet.KindCrypto {
		t.Fatalf("unexpected details %+v", tx.Details)
	}
	if _, err := f.svc.ApproveDeposit(ctx, tx.ID); err != nil {
		t.Fatalf("approve: %v", err)
	}
	assertFields(t, f.wallet(t, usdKey(t, "u1")), "0.5", "0.5", "0")

	btc, _ := wallet.NewKey("u1", "BTC", wallet.KindCrypto)
	if _, err := f.store.Wallet(ctx, btc); !errors.Is(err, ErrNotFound) {
		t.Fatalf("crypto wallet should not be created, got %v", err)
	}
}

func TestApproveDepositTwiceCreditsOnce(t *testing.T) {
	f := newFixture(t, "")
	ctx := context.Background()

	tx, _ := f.svc.SubmitDeposit(ctx, FundsRequest{UserID: "u1", Amount: dec("100"), Currency: "USD"})
	if _, err := f.svc.ApproveDeposit(ctx, tx.ID); err != nil {
		t.Fatalf("first approve: %v", err)
	}
	if _, err := f.svc.ApproveDeposit(ctx, tx.ID); !errors.Is(err, ErrAlreadyResolved) {
		t.Fatalf("expected already resolved, got %v", err)
	}
	if _, err := f.svc.DeclineDeposit(ctx, tx.ID); !errors.Is(err, ErrAlreadyResolved) {
		t.Fatalf("expected already resolved on decline, got %v", err)
	}
	assertFields(t, f.wallet(t, usdKey(t, "u1")), "100", "100", "0")

	n, err := testutil.GatherAndCount(f.metrics.Registry(), "ledger_operations_total")
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	// submit ok, approve ok, approve already_resolved, decline already_resolved
	if n != 4 {
		t.Fatalf("expected 4 operation series, got %d", n)
	}
}

func TestDeclineDepositLeavesWalletsUntouched(t *testing.T) {
	f := newFixture(t, "")
	ctx := context.Background()

	tx, _ := f.svc.SubmitDeposit(ctx, FundsRequest{UserID: "u1", Amount: dec("100"), Currency: "USD"})
	res, err := f.svc.DeclineDeposit(ctx, tx.ID)
	if err != nil {
		t.Fatalf("decline: %v", err)
	}
	if res.Transaction.Status != transaction.StatusDeclined || res.Wallet != nil {
		t.Fatalf("unexpected result %+v", res)
	}
	if _, err := f.store.Wallet(ctx, usdKey(t, "u1")); !errors.Is(err, ErrNotFound) {
		t.Fatalf("declined deposit must not create a wallet, got %v", err)
	}
}

func TestResolveGuards(t *testing.T) {
	f := newFixture(t, "")
	ctx := context.Background()
	SeedWallet(t, f.store, usdKey(t, "u1"), dec("100"), dec("100"), dec("0"))

	dep, _ := f.svc.SubmitDeposit(ctx, FundsRequest{UserID: "u1", Amount: dec("10"), Currency: "USD"})
	wd, err := f.svc.SubmitWithdrawal(ctx, FundsRequest{UserID: "u1", Amount: dec("10"), Currency: "USD"})
	if err != nil {
		t.Fatalf("withdraw: %v", err)
	}

	if _, err := f.svc.ApproveDeposit(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected not found for unknown id, got %v", err)
	}
	if _, err := f.svc.ApproveWithdrawal(ctx, dep.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected not found for deposit id on withdrawal path, got %v", err)
	}
	if _, err := f.svc.DeclineDeposit(ctx, wd.Transaction.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected not found for withdrawal id on deposit path, got %v", err)
	}
	if _, err := f.svc.ApproveDeposit(ctx, ""); !errors.Is(err, ErrValidation) {
		t.Fatalf("expected validation error for empty id, got %v", err)
	}
}

func TestWithdrawalApproveKeepsEscrowedBalance(t *testing.T) {
	f := newFixture(t, "")
	ctx := context.Background()
	SeedWallet(t, f.store, usdKey(t, "u1"), dec("100"), dec("100"), dec("0"))

	res, err := f.svc.SubmitWithdrawal(ctx, FundsRequest{UserID: "u1", Amount: dec("40"), Currency: "USD", Kind: "fiat"})
	if err != nil {
		t.Fatalf("submit withdrawal: %v", err)
	}
	if res.Transaction.Status != transaction.StatusPending || res.Transaction.WalletID != res.Wallet.ID {
		t.Fatalf("unexpected pending withdrawal %+v", res.Transaction)
	}
	assertFields(t, f.wallet(t, usdKey(t, "u1")), "60", "100", "0")

	done, err := f.svc.ApproveWithdrawal(ctx, res.Transaction.ID)
	if err != nil {
		t.Fatalf("approve withdrawal: %v", err)
	}
	if done.Transaction.Status != transaction.StatusCompleted {
		t.Fatalf("expected completed, got %s", done.Transaction.Status)
	}
	assertFields(t, f.wallet(t, usdKey(t, "u1")), "60", "100", "0")

	snap, err := f.svc.Snapshot(ctx, "u1")
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	if !snap.Balance.Equal(dec("60")) || !snap.TotalWithdrawals.Equal(dec("40")) {
		t.Fatalf("unexpected snapshot %+v", snap)
	}
}

func TestWithdrawalDeclineRefunds(t *testing.T) {
	f := newFixture(t, "")
	ctx := context.Background()
	SeedWallet(t, f.store, usdKey(t, "u1"), dec("100"), dec("100"), dec("0"))

	res, err := f.svc.SubmitWithdrawal(ctx, FundsRequest{UserID: "u1", Amount: dec("40"), Currency: "USD"})
	if err != nil {
		t.Fatalf("submit withdrawal: %v", err)
	}
	declined, err := f.svc.DeclineWithdrawal(ctx, res.Transaction.ID)
	if err != nil {
		t.Fatalf("decline withdrawal: %v", err)
	}
	if declined.Transaction.Status != transaction.StatusDeclined {
		t.Fatalf("expected declined, got %s", declined.Transaction.Status)
	}
	assertFields(t, declined.Wallet, "100", "100", "0")

	if _, err := f.svc.DeclineWithdrawal(ctx, res.Transaction.ID); !errors.Is(err, ErrAlreadyResolved) {
		t.Fatalf("second decline should be rejected, got %v", err)
	}
	assertFields(t, f.wallet(t, usdKey(t, "u1")), "100", "100", "0")

	snap, _ := f.svc.Snapshot(ctx, "u1")
	if !snap.TotalWithdrawals.IsZero() {
		t.Fatalf("declined withdrawals must not count, got %s", snap.TotalWithdrawals)
	}
}

func TestWithdrawalDeclineRoundTripIsExact(t *testing.T) {
	f := newFixture(t, "")
	ctx := context.Background()
	SeedWallet(t, f.store, usdKey(t, "u1"), dec("0.3"), dec("0"), dec("0"))

	for _, amount := range []string{"0.1", "0.2", "0.000000000000000001"} {
		res, err := f.svc.SubmitWithdrawal(ctx, FundsRequest{UserID: "u1", Amount: dec(amount), Currency: "USD"})
		if err != nil {
			t.Fatalf("withdraw %s: %v", amount, err)
		}
		if _, err := f.svc.DeclineWithdrawal(ctx, res.Transaction.ID); err != nil {
			t.Fatalf("decline %s: %v", amount, err)
		}
		assertFields(t, f.wallet(t, usdKey(t, "u1")), "0.3", "0", "0")
	}
}

func TestWithdrawalInsufficientFunds(t *testing.T) {
	f := newFixture(t, "")
	ctx := context.Background()
	SeedWallet(t, f.store, usdKey(t, "u1"), dec("60"), dec("100"), dec("0"))

	if _, err := f.svc.SubmitWithdrawal(ctx, FundsRequest{UserID: "u1", Amount: dec("150"), Currency: "USD"}); !errors.Is(err, ErrInsufficientFunds) {
		t.Fatalf("expected insufficient funds, got %v", err)
	}
	assertFields(t, f.wallet(t, usdKey(t, "u1")), "60", "100", "0")

	n, err := f.store.CountTransactions(ctx, transaction.Filter{UserID: "u1"})
	if err != nil || n != 0 {
		t.Fatalf("no transaction should be recorded, got %d (%v)", n, err)
	}

	if _, err := f.svc.SubmitWithdrawal(ctx, FundsRequest{UserID: "nobody", Amount: dec("1"), Currency: "USD"}); !errors.Is(err, ErrInsufficientFunds) {
		t.Fatalf("user without wallet should have insufficient funds, got %v", err)
	}
}

func TestConcurrentWithdrawalsNeverOverdraw(t *testing.T) {
	f := newFixture(t, "")
	ctx := context.Background()
	SeedWallet(t, f.store, usdKey(t, "u1"), dec("60"), dec("60"), dec("0"))

	const workers = 8
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		succeeded int
		failed    int
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.svc.SubmitWithdrawal(ctx, FundsRequest{UserID: "u1", Amount: dec("60"), Currency: "USD"})
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				succeeded++
			case errors.Is(err, ErrInsufficientFunds):
				failed++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	if succeeded != 1 || failed != workers-1 {
		t.Fatalf("expected exactly one success, got %d successes and %d failures", succeeded, failed)
	}
	assertFields(t, f.wallet(t, usdKey(t, "u1")), "0", "60", "0")
}

func TestValidationRejectsBadInput(t *testing.T) {
	f := newFixture(t, "")
	ctx := context.Background()

	cases := map[string]FundsRequest{
		"zero amount":     {UserID: "u1", Amount: dec("0"), Currency: "USD"},
		"negative amount": {UserID: "u1", Amount: dec("-5"), Currency: "USD"},
		"missing user":    {Amount: dec("5"), Currency: "USD"},
		"missing cur":     {UserID: "u1", Amount: dec("5")},
		"bad kind":        {UserID: "u1", Amount: dec("5"), Currency: "USD", Kind: "paper"},
		"too precise":     {UserID: "u1", Amount: dec("0.0000000000000000001"), Currency: "USD"},
		"too large":       {UserID: "u1", Amount: dec("1e25"), Currency: "USD"},
	}
	for name, req := range cases {
		if _, err := f.svc.SubmitDeposit(ctx, req); !errors.Is(err, ErrValidation) {
			t.Fatalf("%s: expected validation error, got %v", name, err)
		}
	}
}

func TestAdminCreditRejectsBalanceOverflow(t *testing.T) {
	f := newFixture(t, "")
	ctx := context.Background()
	req := AdjustmentRequest{AdminID: "admin-1", UserID: "u1", Amount: dec("60000000000000000000"), Currency: "USD", StatType: "balance"}

	if _, err := f.svc.AdminCredit(ctx, req); err != nil {
		t.Fatalf("first credit: %v", err)
	}
	_, err := f.svc.AdminCredit(ctx, req)
	if !errors.Is(err, ErrValidation) || !errors.Is(err, money.ErrTooLarge) {
		t.Fatalf("expected too large validation error, got %v", err)
	}
	assertFields(t, f.wallet(t, usdKey(t, "u1")), "60000000000000000000", "60000000000000000000", "0")

	activity, err := f.svc.Activity(ctx, "u1", 0)
	if err != nil {
		t.Fatalf("activity: %v", err)
	}
	if activity.Total != 1 {
		t.Fatalf("expected the failed credit to leave no transaction, got %d", activity.Total)
	}
}

func TestInvestRequestedSettlement(t *testing.T) {
	f := newFixture(t, config.InvestSettlementRequested)
	ctx := context.Background()
	eth, _ := wallet.NewKey("u1", "ETH", wallet.KindCrypto)
	SeedWallet(t, f.store, eth, dec("5"), dec("5"), dec("0"))
	SeedWallet(t, f.store, usdKey(t, "u1"), dec("1000"), dec("1000"), dec("0"))

	res, err := f.svc.Invest(ctx, InvestRequest{UserID: "u1", Amount: dec("2"), PlanID: "gold", Currency: "ETH", Kind: "crypto"})
	if err != nil {
		t.Fatalf("invest: %v", err)
	}
	if res.Transaction.Kind != transaction.KindTrade || res.Transaction.Status != transaction.StatusCompleted {
		t.Fatalf("unexpected transaction %+v", res.Transaction)
	}
	if inv, ok := res.Transaction.Details.(transaction.Investment); !ok || inv.PlanID != "gold" {
		t.Fatalf("unexpected details %+v", res.Transaction.Details)
	}
	assertFields(t, f.wallet(t, eth), "3", "5", "0")
	assertFields(t, f.wallet(t, usdKey(t, "u1")), "1000", "1000", "0")

	if _, err := f.svc.Invest(ctx, InvestRequest{UserID: "u1", Amount: dec("4"), PlanID: "gold", Currency: "ETH", Kind: "crypto"}); !errors.Is(err, ErrInsufficientFunds) {
		t.Fatalf("expected insufficient funds, got %v", err)
	}
}

func TestInvestCanonicalSettlement(t *testing.T) {
	f := newFixture(t, config.InvestSettlementCanonical)
	ctx := context.Background()
	SeedWallet(t, f.store, usdKey(t, "u1"), dec("100"), dec("100"), dec("0"))

	if _, err := f.svc.Invest(ctx, InvestRequest{UserID: "u1", Amount: dec("25"), PlanID: "gold", Currency: "ETH", Kind: "crypto"}); err != nil {
		t.Fatalf("invest: %v", err)
	}
	assertFields(t, f.wallet(t, usdKey(t, "u1")), "75", "100", "0")
}

func TestInvestUnknownOrInactivePlan(t *testing.T) {
	f := newFixture(t, "")
	ctx := context.Background()
	SeedWallet(t, f.store, usdKey(t, "u1"), dec("100"), dec("100"), dec("0"))

	for _, id := range []string{"missing", "retired"} {
		if _, err := f.svc.Invest(ctx, InvestRequest{UserID: "u1", Amount: dec("1"), PlanID: id, Currency: "USD"}); !errors.Is(err, ErrNotFound) {
			t.Fatalf("plan %s: expected not found, got %v", id, err)
		}
	}
	assertFields(t, f.wallet(t, usdKey(t, "u1")), "100", "100", "0")
}

func TestAdminCreditCoupling(t *testing.T) {
	cases := []struct {
		stat     string
		kind     transaction.Kind
		balance  string
		invested string
		earnings string
	}{
		{"balance", transaction.KindDeposit, "110", "150", "0"},
		{"", transaction.KindDeposit, "110", "150", "0"},
		{"invested", transaction.KindTrade, "110", "150", "0"},
		{"earnings", transaction.KindReturn, "110", "100", "50"},
	}
	for _, tc := range cases {
		f := newFixture(t, "")
		ctx := context.Background()
		SeedWallet(t, f.store, usdKey(t, "u1"), dec("60"), dec("100"), dec("0"))

		res, err := f.svc.AdminCredit(ctx, AdjustmentRequest{AdminID: "admin", UserID: "u1", Amount: dec("50"), Currency: "USD", Kind: "fiat", StatType: tc.stat})
		if err != nil {
			t.Fatalf("credit %q: %v", tc.stat, err)
		}
		if res.Transaction.Kind != tc.kind || res.Transaction.Status != transaction.StatusCompleted {
			t.Fatalf("credit %q: unexpected transaction %+v", tc.stat, res.Transaction)
		}
		adj, ok := res.Transaction.Details.(transaction.AdminAdjustment)
		if !ok || adj.Direction != transaction.DirectionCredit || adj.AdminID != "admin" {
			t.Fatalf("credit %q: unexpected details %+v", tc.stat, res.Transaction.Details)
		}
		assertFields(t, f.wallet(t, usdKey(t, "u1")), tc.balance, tc.invested, tc.earnings)
	}
}

func TestAdminCreditCreatesWallet(t *testing.T) {
	f := newFixture(t, "")
	ctx := context.Background()
	xrp, _ := wallet.NewKey("u2", "XRP", wallet.KindCrypto)

	if _, err := f.svc.AdminCredit(ctx, AdjustmentRequest{UserID: "u2", Amount: dec("7"), Currency: "xrp", Kind: "crypto"}); err != nil {
		t.Fatalf("credit: %v", err)
	}
	assertFields(t, f.wallet(t, xrp), "7", "7", "0")
}

func TestAdminDebit(t *testing.T) {
	f := newFixture(t, "")
	ctx := context.Background()
	SeedWallet(t, f.store, usdKey(t, "u1"), dec("110"), dec("100"), dec("50"))

	res, err := f.svc.AdminDebit(ctx, AdjustmentRequest{UserID: "u1", Amount: dec("30"), Currency: "USD", StatType: "earnings"})
	if err != nil {
		t.Fatalf("debit earnings: %v", err)
	}
	if res.Transaction.Kind != transaction.KindLoss {
		t.Fatalf("expected loss transaction, got %s", res.Transaction.Kind)
	}
	assertFields(t, f.wallet(t, usdKey(t, "u1")), "80", "100", "20")

	if _, err := f.svc.AdminDebit(ctx, AdjustmentRequest{UserID: "u1", Amount: dec("90"), Currency: "USD", StatType: "balance"}); !errors.Is(err, ErrInsufficientFunds) {
		t.Fatalf("expected insufficient funds, got %v", err)
	}
	if _, err := f.svc.AdminDebit(ctx, AdjustmentRequest{UserID: "u1", Amount: dec("21"), Currency: "USD", StatType: "earnings"}); !errors.Is(err, ErrInsufficientFunds) {
		t.Fatalf("expected insufficient earnings, got %v", err)
	}
	if _, err := f.svc.AdminDebit(ctx, AdjustmentRequest{UserID: "u1", Amount: dec("90"), Currency: "USD", StatType: "invested"}); !errors.Is(err, ErrInsufficientFunds) {
		t.Fatalf("invested debit beyond balance should fail, got %v", err)
	}
	assertFields(t, f.wallet(t, usdKey(t, "u1")), "80", "100", "20")

	if _, err := f.svc.AdminDebit(ctx, AdjustmentRequest{UserID: "ghost", Amount: dec("1"), Currency: "USD"}); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected wallet not found, got %v", err)
	}
}

func TestAdminInvalidStatType(t *testing.T) {
	f := newFixture(t, "")
	_, err := f.svc.AdminCredit(context.Background(), AdjustmentRequest{UserID: "u1", Amount: dec("1"), Currency: "USD", StatType: "bonus"})
	if !errors.Is(err, ErrValidation) || !errors.Is(err, ErrInvalidStatType) {
		t.Fatalf("expected invalid stat type validation error, got %v", err)
	}
}

func TestNotificationFailureDoesNotRollBack(t *testing.T) {
	f := newFixture(t, "")
	f.notifier.err = errors.New("smtp down")
	ctx := context.Background()

	tx, err := f.svc.SubmitDeposit(ctx, FundsRequest{UserID: "u1", Amount: dec("10"), Currency: "USD"})
	if err != nil {
		t.Fatalf("submit should succeed despite notifier failure: %v", err)
	}
	if _, err := f.svc.ApproveDeposit(ctx, tx.ID); err != nil {
		t.Fatalf("approve should succeed despite notifier failure: %v", err)
	}
	assertFields(t, f.wallet(t, usdKey(t, "u1")), "10", "10", "0")
}

func TestSnapshotWithoutWallet(t *testing.T) {
	f := newFixture(t, "")
	snap, err := f.svc.Snapshot(context.Background(), "new-user")
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	if !snap.Balance.IsZero() || !snap.Invested.IsZero() || !snap.Earnings.IsZero() || !snap.TotalWithdrawals.IsZero() {
		t.Fatalf("expected zero snapshot, got %+v", snap)
	}
	bal, err := f.svc.Balance(context.Background(), "new-user")
	if err != nil || !bal.IsZero() {
		t.Fatalf("expected zero balance, got %s (%v)", bal, err)
	}
}

func TestListings(t *testing.T) {
	f := newFixture(t, "")
	ctx := context.Background()
	SeedWallet(t, f.store, usdKey(t, "u1"), dec("100"), dec("100"), dec("0"))

	first, _ := f.svc.SubmitDeposit(ctx, FundsRequest{UserID: "u1", Amount: dec("1"), Currency: "USD"})
	second, _ := f.svc.SubmitDeposit(ctx, FundsRequest{UserID: "u2", Amount: dec("2"), Currency: "USD"})
	third, _ := f.svc.SubmitDeposit(ctx, FundsRequest{UserID: "u1", Amount: dec("3"), Currency: "USD"})
	if _, err := f.svc.ApproveDeposit(ctx, first.ID); err != nil {
		t.Fatalf("approve: %v", err)
	}
	wd1, _ := f.svc.SubmitWithdrawal(ctx, FundsRequest{UserID: "u1", Amount: dec("5"), Currency: "USD"})
	wd2, _ := f.svc.SubmitWithdrawal(ctx, FundsRequest{UserID: "u1", Amount: dec("6"), Currency: "USD"})
	if _, err := f.svc.ApproveWithdrawal(ctx, wd1.Transaction.ID); err != nil {
		t.Fatalf("approve withdrawal: %v", err)
	}

	deposits, err := f.svc.Deposits(ctx, "")
	if err != nil {
		t.Fatalf("deposits: %v", err)
	}
	gotIDs := []string{deposits[0].ID, deposits[1].ID, deposits[2].ID}
	wantIDs := []string{second.ID, third.ID, first.ID}
	for i := range wantIDs {
		if gotIDs[i] != wantIDs[i] {
			t.Fatalf("deposits should be pending first then oldest first: got %v want %v", gotIDs, wantIDs)
		}
	}

	pending, _ := f.svc.Deposits(ctx, "pending")
	if len(pending) != 2 {
		t.Fatalf("expected 2 pending deposits, got %d", len(pending))
	}
	if _, err := f.svc.Deposits(ctx, "lost"); !errors.Is(err, ErrValidation) {
		t.Fatalf("expected validation error for bad status, got %v", err)
	}

	completed, _ := f.svc.Withdrawals(ctx, "completed")
	if len(completed) != 1 || completed[0].ID != wd1.Transaction.ID {
		t.Fatalf("unexpected completed withdrawals %+v", completed)
	}
	mine, _ := f.svc.UserWithdrawals(ctx, "u1")
	if len(mine) != 2 || mine[0].ID != wd2.Transaction.ID {
		t.Fatalf("expected newest withdrawal first, got %+v", mine)
	}

	activity, err := f.svc.Activity(ctx, "u1", 2)
	if err != nil {
		t.Fatalf("activity: %v", err)
	}
	if activity.Total != 4 || len(activity.Transactions) != 2 || activity.Transactions[0].ID != wd2.Transaction.ID {
		t.Fatalf("unexpected activity %+v", activity)
	}
	def, _ := f.svc.Activity(ctx, "u1", 0)
	if len(def.Transactions) != 4 {
		t.Fatalf("default limit should include all 4, got %d", len(def.Transactions))
	}
}

type fatalRecorder struct {
	testing.TB
	failed bool
}

func (r *fatalRecorder) Helper() {}

func (r *fatalRecorder) Fatalf(string, ...any) { r.failed = true }

func TestSeedWalletFailsOnRejectedWrite(t *testing.T) {
	store := NewInMemory()
	rec := &fatalRecorder{TB: t}
	if w := SeedWallet(rec, store, usdKey(t, "u1"), dec("-1"), dec("0"), dec("0")); w != nil || !rec.failed {
		t.Fatalf("expected seeding a negative balance to fail the test, got %v failed=%v", w, rec.failed)
	}
	if _, err := store.Wallet(context.Background(), usdKey(t, "u1")); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected no wallet after failed seed, got %v", err)
	}
}
