// Package money holds the decimal helpers shared by the wallet, transaction and
// ledger packages. All amounts are shopspring decimals; floats never touch a
// balance.
package money

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// MaxScale is the number of fractional digits persisted for any amount. It
// matches the NUMERIC(38,18) columns in the schema.
const MaxScale = 18

// MaxIntegerDigits is the number of digits allowed left of the decimal point.
// NUMERIC(38,18) leaves 20.
const MaxIntegerDigits = 20

var limit = decimal.New(1, MaxIntegerDigits)

var (
	// ErrNonPositive is returned when an amount is zero or negative.
	ErrNonPositive = errors.New("amount must be positive")
	// ErrTooPrecise is returned when an amount carries more than MaxScale fractional digits.
	ErrTooPrecise = errors.New("amount has too many decimal places")
	// ErrTooLarge is returned when an amount or a resulting balance does not fit
	// in MaxIntegerDigits.
	ErrTooLarge = errors.New("amount is too large")
)

// Positive validates that amount can be moved through the ledger.
func Positive(amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return ErrNonPositive
	}
	if -amount.Exponent() > MaxScale && !amount.Equal(amount.Truncate(MaxScale)) {
		return ErrTooPrecise
	}
	return InRange(amount)
}

// InRange reports ErrTooLarge when d cannot be stored in a ledger column.
func InRange(d decimal.Decimal) error {
	if d.Abs().GreaterThanOrEqual(limit) {
		return ErrTooLarge
	}
	return nil
}

// Parse reads a decimal from user input, tolerating surrounding whitespace.
func Parse(raw string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(raw))
	if err != nil {
		return decimal.Zero, fmt.Errorf("parse amount %q: %w", raw, err)
	}
	return d, nil
}

// FromDB parses a NUMERIC column read as text. Empty strings map to zero.
func FromDB(raw string) (decimal.Decimal, error) {
	if raw == "" {
		return decimal.Zero, nil
	}
	return decimal.NewFromString(raw)
}
