package notification

import (
	"context"
	"errors"
	"log/slog"
)

// Notification kinds emitted by the ledger after a state change commits.
const (
	KindDepositSubmitted    = "deposit.submitted"
	KindDepositApproved     = "deposit.approved"
	KindDepositDeclined     = "deposit.declined"
	KindWithdrawalSubmitted = "withdrawal.submitted"
	KindWithdrawalApproved  = "withdrawal.approved"
	KindWithdrawalDeclined  = "withdrawal.declined"
	KindInvestmentCompleted = "investment.completed"
	KindAdminCredit         = "admin.credit"
	KindAdminDebit          = "admin.debit"
)

// Message describes a notification payload. Destination is the user id.
type Message struct {
	Kind        string
	Destination string
	Body        string
	Attributes  map[string]string
}

// Notifier delivers notifications to downstream systems.
type Notifier interface {
	Send(ctx context.Context, message Message) error
}

// LoggerNotifier writes notifications to the structured logger.
type LoggerNotifier struct {
	logger *slog.Logger
}

// NewLoggerNotifier constructs a logging notifier.
func NewLoggerNotifier(logger *slog.Logger) *LoggerNotifier {
	return &LoggerNotifier{logger: logger}
}

// Send writes the message to the structured logger.
func (n *LoggerNotifier) Send(ctx context.Context, message Message) error {
	if n == nil || n.logger == nil {
		return nil
	}
	attrs := []any{
		slog.String("kind", message.Kind),
		slog.String("destination", message.Destination),
		slog.String("body", message.Body),
	}
	for k, v := range message.Attributes {
		attrs = append(attrs, slog.String(k, v))
	}
	n.logger.InfoContext(ctx, "notification", attrs...)
	return nil
}

// Fanout sends each message to every notifier and joins their errors.
type Fanout []Notifier

// Send delivers to all sinks even when an earlier one fails.
func (f Fanout) Send(ctx context.Context, message Message) error {
	var errs []error
	for _, n := range f {
		if n == nil {
			continue
		}
		if err := n.Send(ctx, message); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
