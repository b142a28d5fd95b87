package wallet

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Kind distinguishes fiat wallets from crypto wallets.
type Kind string

const (
	KindFiat   Kind = "fiat"
	KindCrypto Kind = "crypto"
)

var (
	// ErrInsufficientFunds occurs when a debit would take a wallet field below zero.
	ErrInsufficientFunds = errors.New("insufficient funds")
	// ErrInvalidKind is returned for wallet kinds other than fiat and crypto.
	ErrInvalidKind = errors.New("invalid wallet kind")
	// ErrInvalidCurrency is returned for an empty or malformed currency code.
	ErrInvalidCurrency = errors.New("invalid currency")
)

// ParseKind normalises a wallet kind. An empty value means fiat.
func ParseKind(raw string) (Kind, error) {
	switch Kind(strings.ToLower(strings.TrimSpace(raw))) {
	case "", KindFiat:
		return KindFiat, nil
	case KindCrypto:
		return KindCrypto, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidKind, raw)
	}
}

// Key identifies a wallet: one per owner, currency and kind.
type Key struct {
	OwnerID  string
	Currency string
	Kind     Kind
}

// NewKey validates and normalises the parts of a wallet key.
func NewKey(ownerID, currency string, kind Kind) (Key, error) {
	ownerID = strings.TrimSpace(ownerID)
	if ownerID == "" {
		return Key{}, errors.New("owner id is required")
	}
	currency = strings.ToUpper(strings.TrimSpace(currency))
	if currency == "" || len(currency) > 10 {
		return Key{}, fmt.Errorf("%w: %q", ErrInvalidCurrency, currency)
	}
	if kind != KindFiat && kind != KindCrypto {
		return Key{}, fmt.Errorf("%w: %q", ErrInvalidKind, kind)
	}
	return Key{OwnerID: ownerID, Currency: currency, Kind: kind}, nil
}

func (k Key) String() string {
	return fmt.Sprintf("%s:%s:%s", k.OwnerID, k.Currency, k.Kind)
}

// Wallet is the per owner, currency and kind balance record.
type Wallet struct {
	ID        string
	OwnerID   string
	Currency  string
	Kind      Kind
	Balance   decimal.Decimal
	Invested  decimal.Decimal
	Earnings  decimal.Decimal
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Key returns the identity tuple of the wallet.
func (w Wallet) Key() Key {
	return Key{OwnerID: w.OwnerID, Currency: w.Currency, Kind: w.Kind}
}

// Snapshot is the read model returned to wallet owners.
type Snapshot struct {
	Balance          decimal.Decimal
	Invested         decimal.Decimal
	Earnings         decimal.Decimal
	TotalWithdrawals decimal.Decimal
	AsOf             time.Time
}

// SnapshotOf builds a snapshot from a wallet. A nil wallet yields zeroes.
func SnapshotOf(w *Wallet, totalWithdrawals decimal.Decimal, asOf time.Time) Snapshot {
	s := Snapshot{
		Balance:          decimal.Zero,
		Invested:         decimal.Zero,
		Earnings:         decimal.Zero,
		TotalWithdrawals: totalWithdrawals,
		AsOf:             asOf,
	}
	if w != nil {
		s.Balance = w.Balance
		s.Invested = w.Invested
		s.Earnings = w.Earnings
	}
	return s
}
