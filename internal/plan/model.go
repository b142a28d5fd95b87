package plan

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

// ErrNotFound is returned when a plan id is unknown or the plan is inactive.
var ErrNotFound = errors.New("plan not found")

// Plan is an investment product users can buy into.
type Plan struct {
	ID           string
	Name         string
	Description  string
	Terms        string
	Rate         decimal.Decimal
	DurationDays int
	IsActive     bool
	CreatedAt    time.Time
}
