package notification

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
)

// MessageWriter is the subset of *kafka.Writer used by KafkaNotifier.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaNotifier publishes ledger notifications as JSON events keyed by user id,
// so every event for one user lands on the same partition in order.
type KafkaNotifier struct {
	writer MessageWriter
	now    func() time.Time
}

// NewKafkaNotifier wraps a kafka writer.
func NewKafkaNotifier(writer MessageWriter) *KafkaNotifier {
	return &KafkaNotifier{writer: writer, now: time.Now}
}

// Event is the wire format published to Kafka.
type Event struct {
	EventType  string            `json:"event_type"`
	UserID     string            `json:"user_id"`
	Message    string            `json:"message"`
	Attributes map[string]string `json:"attributes,omitempty"`
	Timestamp  time.Time         `json:"timestamp"`
}

// Send publishes the message.
func (n *KafkaNotifier) Send(ctx context.Context, message Message) error {
	if n == nil || n.writer == nil {
		return nil
	}
	ts := n.now().UTC()
	payload, err := json.Marshal(Event{
		EventType:  message.Kind,
		UserID:     message.Destination,
		Message:    message.Body,
		Attributes: message.Attributes,
		Timestamp:  ts,
	})
	if err != nil {
		return fmt.Errorf("encode notification: %w", err)
	}
	if err := n.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(message.Destination),
		Value: payload,
		Time:  ts,
	}); err != nil {
		return fmt.Errorf("publish %s notification: %w", message.Kind, err)
	}
	return nil
}

// Close flushes and closes the underlying writer.
func (n *KafkaNotifier) Close() error {
	if n == nil || n.writer == nil {
		return nil
	}
	return n.writer.Close()
}
