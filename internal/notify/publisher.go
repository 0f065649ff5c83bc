// Package notify publishes agent-facing activity events to a RabbitMQ
// topic exchange so dashboard instances (and any other consumer) can react
// to new inbound traffic without polling the store.
//
// Publishing is strictly best-effort: the relay's message path never blocks
// on, and never fails because of, the broker. Deployments without RabbitMQ
// run with the fallback publisher, which drops events silently.
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog"
)

// Event describes one unit of relay activity pushed to consumers.
type Event struct {
	ID             string    `json:"id"`
	Type           string    `json:"type"`
	ConversationID string    `json:"conversation_id"`
	ChatUserID     string    `json:"chat_user_id"`
	Preview        string    `json:"preview,omitempty"`
	OccurredAt     time.Time `json:"occurred_at"`
}

// Event types published by the relay.
const (
	EventMessageReceived = "relay.message.received"
	EventConversationNew = "relay.conversation.opened"
)

// Publisher pushes events somewhere agents are listening.
type Publisher interface {
	Publish(ctx context.Context, e Event) error
	Close() error
}

// AMQPPublisher publishes JSON events to a durable topic exchange, routing
// key = Event.Type.
type AMQPPublisher struct {
	conn     *amqp.Connection
	ch       *amqp.Channel
	exchange string
	log      zerolog.Logger
}

// New dials the broker and declares the exchange. The returned publisher
// owns the connection; Close releases it.
func New(url, exchange string, logger zerolog.Logger) (*AMQPPublisher, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("notify: dial broker: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("notify: open channel: %w", err)
	}
	if err := ch.ExchangeDeclare(exchange, "topic", true, false, false, false, nil); err != nil {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("notify: declare exchange %q: %w", exchange, err)
	}
	return &AMQPPublisher{conn: conn, ch: ch, exchange: exchange, log: logger}, nil
}

// Publish sends one event. Marshal or broker errors are returned but the
// caller is expected to log and continue.
func (p *AMQPPublisher) Publish(ctx context.Context, e Event) error {
	body, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("notify: marshal event: %w", err)
	}
	err = p.ch.PublishWithContext(ctx, p.exchange, e.Type, false, false, amqp.Publishing{
		ContentType: "application/json",
		MessageId:   e.ID,
		Timestamp:   e.OccurredAt,
		Body:        body,
	})
	if err != nil {
		return fmt.Errorf("notify: publish %s: %w", e.Type, err)
	}
	p.log.Debug().Str("event_type", e.Type).Str("conversation_id", e.ConversationID).Msg("event published")
	return nil
}

// Close tears down the channel and connection.
func (p *AMQPPublisher) Close() error {
	if p.ch != nil {
		p.ch.Close()
	}
	if p.conn != nil {
		return p.conn.Close()
	}
	return nil
}

// FallbackPublisher drops every event. Used when no broker URL is
// configured so the rest of the relay does not need nil checks.
type FallbackPublisher struct{}

// NewFallback returns the no-op publisher.
func NewFallback() *FallbackPublisher { return &FallbackPublisher{} }

// Publish discards the event.
func (*FallbackPublisher) Publish(context.Context, Event) error { return nil }

// Close is a no-op.
func (*FallbackPublisher) Close() error { return nil }
