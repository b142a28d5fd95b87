package wallet

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// StatType selects which wallet field an admin adjustment targets.
type StatType string

const (
	StatBalance  StatType = "balance"
	StatInvested StatType = "invested"
	StatEarnings StatType = "earnings"
)

// ErrInvalidStatType is returned for stat types other than balance, invested and earnings.
var ErrInvalidStatType = errors.New("invalid stat type")

// ParseStatType normalises a stat type. An empty value means balance.
func ParseStatType(raw string) (StatType, error) {
	switch StatType(strings.ToLower(strings.TrimSpace(raw))) {
	case "", StatBalance:
		return StatBalance, nil
	case StatInvested:
		return StatInvested, nil
	case StatEarnings:
		return StatEarnings, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidStatType, raw)
	}
}

// Deposit credits settled new money: balance and invested both grow.
func (w *Wallet) Deposit(amount decimal.Decimal) {
	w.Balance = w.Balance.Add(amount)
	w.Invested = w.Invested.Add(amount)
}

// Spend removes amount from the spendable balance only.
func (w *Wallet) Spend(amount decimal.Decimal) error {
	if w.Balance.LessThan(amount) {
		return fmt.Errorf("%w: balance %s < %s", ErrInsufficientFunds, w.Balance, amount)
	}
	w.Balance = w.Balance.Sub(amount)
	return nil
}

// Refund returns a previously spent amount to the balance.
func (w *Wallet) Refund(amount decimal.Decimal) {
	w.Balance = w.Balance.Add(amount)
}

// Credit applies an admin credit. Balance always grows by amount; balance and
// invested credits also grow invested, earnings credits also grow earnings.
func (w *Wallet) Credit(stat StatType, amount decimal.Decimal) error {
	switch stat {
	case StatBalance, StatInvested:
		w.Deposit(amount)
	case StatEarnings:
		w.Earnings = w.Earnings.Add(amount)
		w.Balance = w.Balance.Add(amount)
	default:
		return fmt.Errorf("%w: %q", ErrInvalidStatType, stat)
	}
	return nil
}

// Debit applies an admin debit. The targeted field must cover amount.
// Invested and earnings debits also reduce balance, which must cover amount as
// well so the balance never turns negative.
func (w *Wallet) Debit(stat StatType, amount decimal.Decimal) error {
	switch stat {
	case StatBalance:
		return w.Spend(amount)
	case StatInvested:
		if w.Invested.LessThan(amount) {
			return fmt.Errorf("%w: invested %s < %s", ErrInsufficientFunds, w.Invested, amount)
		}
		if err := w.Spend(amount); err != nil {
			return err
		}
		w.Invested = w.Invested.Sub(amount)
	case StatEarnings:
		if w.Earnings.LessThan(amount) {
			return fmt.Errorf("%w: earnings %s < %s", ErrInsufficientFunds, w.Earnings, amount)
		}
		if err := w.Spend(amount); err != nil {
			return err
		}
		w.Earnings = w.Earnings.Sub(amount)
	default:
		return fmt.Errorf("%w: %q", ErrInvalidStatType, stat)
	}
	return nil
}
