package ledger

import (
	"errors"

	"github.com/kingsinvest/kings_invest/internal/wallet"
)

var (
	// ErrValidation is returned when a request is rejected before any mutation.
	ErrValidation = errors.New("validation failed")

	// ErrNotFound covers missing transactions, plans and wallets. Approve and
	// decline also return it when the id refers to a transaction of another kind.
	ErrNotFound = errors.New("not found")

	// ErrAlreadyResolved is returned by approve/decline on a transaction that
	// has already left the pending state.
	ErrAlreadyResolved = errors.New("transaction already resolved")

	// ErrInsufficientFunds occurs when a debit would take a wallet field below zero.
	ErrInsufficientFunds = wallet.ErrInsufficientFunds

	// ErrInvalidStatType is returned by admin adjustments with an unknown stat type.
	// It is always reported together with ErrValidation.
	ErrInvalidStatType = wallet.ErrInvalidStatType
)
