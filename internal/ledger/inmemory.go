package ledger

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/kingsinvest/kings_invest/internal/money"
	"github.com/kingsinvest/kings_invest/internal/transaction"
	"github.com/kingsinvest/kings_invest/internal/wallet"
)

type memoryRecord struct {
	tx  transaction.Transaction
	seq uint64
}

type inMemoryStore struct {
	mu           sync.RWMutex
	wallets      map[string]wallet.Wallet
	walletByKey  map[wallet.Key]string
	transactions map[string]memoryRecord
	seq          uint64
}

// NewInMemory creates a concurrency-safe in-memory store useful for unit tests
// and local development. A unit of work holds the store lock for its whole
// duration and its writes are applied only when fn succeeds.
func NewInMemory() Store {
	return &inMemoryStore{
		wallets:      make(map[string]wallet.Wallet),
		walletByKey:  make(map[wallet.Key]string),
		transactions: make(map[string]memoryRecord),
	}
}

func (s *inMemoryStore) Atomic(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	unit := &memoryTx{
		store:    s,
		wallets:  make(map[string]*wallet.Wallet),
		inserted: make(map[string]transaction.Transaction),
		statuses: make(map[string]statusChange),
	}
	if err := fn(ctx, unit); err != nil {
		return err
	}
	unit.commit()
	return nil
}

func (s *inMemoryStore) Wallet(_ context.Context, key wallet.Key) (*wallet.Wallet, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.walletByKey[key]
	if !ok {
		return nil, fmt.Errorf("%w: wallet %s", ErrNotFound, key)
	}
	w := s.wallets[id]
	return &w, nil
}

func (s *inMemoryStore) matching(filter transaction.Filter) []memoryRecord {
	out := make([]memoryRecord, 0)
	for _, rec := range s.transactions {
		if filter.Matches(rec.tx) {
			out = append(out, rec)
		}
	}
	return out
}

func (s *inMemoryStore) ListTransactions(_ context.Context, filter transaction.Filter) ([]transaction.Transaction, error) {
	s.mu.RLock()
	recs := s.matching(filter)
	s.mu.RUnlock()

	sort.Slice(recs, func(i, j int) bool {
		a, b := recs[i], recs[j]
		if filter.PendingFirst {
			ap, bp := a.tx.Status == transaction.StatusPending, b.tx.Status == transaction.StatusPending
			if ap != bp {
				return ap
			}
			return a.seq < b.seq
		}
		return a.seq > b.seq
	})
	if filter.Limit > 0 && len(recs) > filter.Limit {
		recs = recs[:filter.Limit]
	}

	out := make([]transaction.Transaction, len(recs))
	for i, rec := range recs {
		out[i] = rec.tx
	}
	return out, nil
}

func (s *inMemoryStore) CountTransactions(_ context.Context, filter transaction.Filter) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.matching(filter)), nil
}

func (s *inMemoryStore) SumAmount(_ context.Context, filter transaction.Filter) (decimal.Decimal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	total := decimal.Zero
	for _, rec := range s.matching(filter) {
		total = total.Add(rec.tx.Amount)
	}
	return total, nil
}

type statusChange struct {
	status transaction.Status
	at     time.Time
}

// memoryTx stages writes against a locked inMemoryStore.
type memoryTx struct {
	store    *inMemoryStore
	wallets  map[string]*wallet.Wallet
	order    []string
	inserted map[string]transaction.Transaction
	inOrder  []string
	statuses map[string]statusChange
}

func (u *memoryTx) LockWallet(_ context.Context, key wallet.Key, create bool) (*wallet.Wallet, error) {
	for _, w := range u.wallets {
		if w.Key() == key {
			return w, nil
		}
	}
	if id, ok := u.store.walletByKey[key]; ok {
		return u.stage(u.store.wallets[id]), nil
	}
	if !create {
		return nil, fmt.Errorf("%w: wallet %s", ErrNotFound, key)
	}
	now := time.Now().UTC()
	return u.stage(wallet.Wallet{
		ID:        uuid.NewString(),
		OwnerID:   key.OwnerID,
		Currency:  key.Currency,
		Kind:      key.Kind,
		Balance:   decimal.Zero,
		Invested:  decimal.Zero,
		Earnings:  decimal.Zero,
		CreatedAt: now,
		UpdatedAt: now,
	}), nil
}

func (u *memoryTx) LockWalletByID(_ context.Context, id string) (*wallet.Wallet, error) {
	if w, ok := u.wallets[id]; ok {
		return w, nil
	}
	w, ok := u.store.wallets[id]
	if !ok {
		return nil, fmt.Errorf("%w: wallet %s", ErrNotFound, id)
	}
	return u.stage(w), nil
}

func (u *memoryTx) stage(w wallet.Wallet) *wallet.Wallet {
	staged := w
	u.wallets[w.ID] = &staged
	u.order = append(u.order, w.ID)
	return &staged
}

func (u *memoryTx) SaveWallet(_ context.Context, w *wallet.Wallet) error {
	if w.Balance.IsNegative() || w.Invested.IsNegative() || w.Earnings.IsNegative() {
		return fmt.Errorf("%w: wallet %s would go negative", ErrInsufficientFunds, w.ID)
	}
	for _, field := range []decimal.Decimal{w.Balance, w.Invested, w.Earnings} {
		if err := money.InRange(field); err != nil {
			return fmt.Errorf("%w: wallet %s: %w", ErrValidation, w.ID, err)
		}
	}
	if _, ok := u.wallets[w.ID]; !ok {
		return fmt.Errorf("%w: wallet %s is not locked", ErrNotFound, w.ID)
	}
	saved := *w
	saved.UpdatedAt = time.Now().UTC()
	u.wallets[w.ID] = &saved
	*w = saved
	return nil
}

func (u *memoryTx) LockTransaction(_ context.Context, id string) (*transaction.Transaction, error) {
	t, ok := u.inserted[id]
	if !ok {
		rec, found := u.store.transactions[id]
		if !found {
			return nil, fmt.Errorf("%w: transaction %s", ErrNotFound, id)
		}
		t = rec.tx
	}
	if change, ok := u.statuses[id]; ok {
		t.Status = change.status
		t.UpdatedAt = change.at
	}
	return &t, nil
}

func (u *memoryTx) InsertTransaction(_ context.Context, t transaction.Transaction) error {
	if _, ok := u.store.transactions[t.ID]; ok {
		return fmt.Errorf("transaction %s already exists", t.ID)
	}
	if _, ok := u.inserted[t.ID]; ok {
		return fmt.Errorf("transaction %s already exists", t.ID)
	}
	u.inserted[t.ID] = t
	u.inOrder = append(u.inOrder, t.ID)
	return nil
}

func (u *memoryTx) SetTransactionStatus(_ context.Context, id string, status transaction.Status, at time.Time) error {
	_, staged := u.inserted[id]
	if _, ok := u.store.transactions[id]; !ok && !staged {
		return fmt.Errorf("%w: transaction %s", ErrNotFound, id)
	}
	u.statuses[id] = statusChange{status: status, at: at}
	return nil
}

// commit applies the staged writes. The caller holds store.mu.
func (u *memoryTx) commit() {
	s := u.store
	for _, id := range u.order {
		w := u.wallets[id]
		s.wallets[id] = *w
		s.walletByKey[w.Key()] = id
	}
	for _, id := range u.inOrder {
		s.seq++
		s.transactions[id] = memoryRecord{tx: u.inserted[id], seq: s.seq}
	}
	for id, change := range u.statuses {
		rec := s.transactions[id]
		rec.tx.Status = change.status
		rec.tx.UpdatedAt = change.at
		s.transactions[id] = rec
	}
}
