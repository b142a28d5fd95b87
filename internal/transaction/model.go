package transaction

import (
	"crypto/rand"
	"errors"
	"fmt"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/shopspring/decimal"
)

// Kind is the direction of a fund movement.
type Kind string

const (
	KindDeposit    Kind = "deposit"
	KindWithdrawal Kind = "withdrawal"
	KindTrade      Kind = "trade"
	KindReturn     Kind = "return"
	KindLoss       Kind = "loss"
)

// Status is the lifecycle position of a transaction.
type Status string

const (
	StatusPending   Status = "pending"
	StatusApproved  Status = "approved"
	StatusDeclined  Status = "declined"
	StatusCompleted Status = "completed"
)

// ErrInvalidStatus is returned when parsing an unknown status filter.
var ErrInvalidStatus = errors.New("invalid transaction status")

// ParseStatus validates a status name. An empty value yields "" (no filter).
func ParseStatus(raw string) (Status, error) {
	switch s := Status(raw); s {
	case "", StatusPending, StatusApproved, StatusDeclined, StatusCompleted:
		return s, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidStatus, raw)
	}
}

// Terminal reports whether no further transition is allowed.
func (s Status) Terminal() bool {
	return s != StatusPending
}

// Resolutions lists the statuses a pending transaction of kind k may move to.
// Kinds that are born completed have none.
func Resolutions(k Kind) (approve, decline Status, ok bool) {
	switch k {
	case KindDeposit:
		return StatusApproved, StatusDeclined, true
	case KindWithdrawal:
		return StatusCompleted, StatusDeclined, true
	default:
		return "", "", false
	}
}

// CanTransition reports whether a transaction of kind k may move from one status to another.
func CanTransition(k Kind, from, to Status) bool {
	if from != StatusPending {
		return false
	}
	approve, decline, ok := Resolutions(k)
	return ok && (to == approve || to == decline)
}

// Transaction is one fund movement request and its outcome. Only Status and
// UpdatedAt change after creation.
type Transaction struct {
	ID        string
	UserID    string
	WalletID  string
	Kind      Kind
	Amount    decimal.Decimal
	Status    Status
	Details   Details
	CreatedAt time.Time
	UpdatedAt time.Time
}

// NewID returns a transaction identifier ordered by at.
func NewID(at time.Time) string {
	return ulid.MustNew(ulid.Timestamp(at), rand.Reader).String()
}

// New builds a transaction with a fresh id, stamping both timestamps with now.
func New(userID, walletID string, kind Kind, amount decimal.Decimal, status Status, details Details, now time.Time) Transaction {
	return Transaction{
		ID:        NewID(now),
		UserID:    userID,
		WalletID:  walletID,
		Kind:      kind,
		Amount:    amount,
		Status:    status,
		Details:   details,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Filter narrows transaction listings. Zero values mean "any".
type Filter struct {
	UserID string
	Kind   Kind
	Status Status
	// PendingFirst orders pending rows before the rest, each group oldest first.
	// Without it rows are newest first.
	PendingFirst bool
	Limit        int
}

// Matches reports whether t passes the filter's predicates.
func (f Filter) Matches(t Transaction) bool {
	if f.UserID != "" && t.UserID != f.UserID {
		return false
	}
	if f.Kind != "" && t.Kind != f.Kind {
		return false
	}
	if f.Status != "" && t.Status != f.Status {
		return false
	}
	return true
}
