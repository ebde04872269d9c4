// Package relay forwards lead domain events to a RabbitMQ topic exchange
// for consumers outside this process.
package relay

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"leadflow_backend/internal/events"

	amqp "github.com/rabbitmq/amqp091-go"
)

// Publisher emits one event. Implementations must be safe for concurrent use.
type Publisher interface {
	PublishEvent(ctx context.Context, event events.Event) error
	Close() error
}

// envelope is the body written to the exchange.
type envelope struct {
	Name       string       `json:"name"`
	OccurredAt time.Time    `json:"occurredAt"`
	Data       events.Event `json:"data"`
}

// AMQPPublisher publishes persistent JSON messages keyed by event name.
type AMQPPublisher struct {
	mu       sync.Mutex
	conn     *amqp.Connection
	ch       *amqp.Channel
	exchange string
}

// Dial connects and declares a durable topic exchange.
func Dial(url, exchange string) (*AMQPPublisher, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("connect rabbitmq: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}

	if err := ch.ExchangeDeclare(exchange, amqp.ExchangeTopic, true, false, false, false, nil); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, fmt.Errorf("declare exchange %s: %w", exchange, err)
	}

	return &AMQPPublisher{conn: conn, ch: ch, exchange: exchange}, nil
}

// PublishEvent writes event with its name as routing key.
func (p *AMQPPublisher) PublishEvent(ctx context.Context, event events.Event) error {
	body, err := Encode(event)
	if err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	err = p.ch.PublishWithContext(ctx,
		p.exchange,
		event.EventName(),
		false,
		false,
		amqp.Publishing{
			ContentType:  "application/json",
			Body:         body,
			DeliveryMode: amqp.Persistent,
			Timestamp:    event.OccurredAt(),
		},
	)
	if err != nil {
		return fmt.Errorf("publish %s: %w", event.EventName(), err)
	}
	return nil
}

// Close releases the channel and connection.
func (p *AMQPPublisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.ch.Close(); err != nil {
		_ = p.conn.Close()
		return err
	}
	return p.conn.Close()
}

// Encode builds the message body for event.
func Encode(event events.Event) ([]byte, error) {
	body, err := json.Marshal(envelope{Name: event.EventName(), OccurredAt: event.OccurredAt(), Data: event})
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", event.EventName(), err)
	}
	return body, nil
}

// NoopPublisher drops every event. Used when no broker is configured.
type NoopPublisher struct{}

func (NoopPublisher) PublishEvent(context.Context, events.Event) error { return nil }
func (NoopPublisher) Close() error                                      { return nil }
