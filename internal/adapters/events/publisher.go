// Package events publishes terminal job events to an AMQP topic exchange.
package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/converti/converti-api/internal/core"
	"github.com/converti/converti-api/internal/domain/model"
	amqp "github.com/rabbitmq/amqp091-go"
)

// Channel is the subset of *amqp.Channel used by Publisher.
type Channel interface {
	ExchangeDeclare(name, kind string, durable, autoDelete, internal, noWait bool, args amqp.Table) error
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

// Publisher sends job events with the event type as routing key.
type Publisher struct {
	mu       sync.Mutex
	ch       Channel
	exchange string
}

// NewPublisher declares a durable topic exchange and returns a publisher bound to it.
func NewPublisher(ch Channel, exchange string) (*Publisher, error) {
	if ch == nil {
		return nil, errors.New("amqp channel is required")
	}
	exchange = strings.TrimSpace(exchange)
	if exchange == "" {
		return nil, errors.New("exchange is required")
	}

	if err := ch.ExchangeDeclare(
		exchange,
		amqp.ExchangeTopic,
		true,  // durable
		false, // autoDelete
		false, // internal
		false, // noWait
		nil,
	); err != nil {
		return nil, fmt.Errorf("declare exchange %s: %w", exchange, err)
	}

	return &Publisher{ch: ch, exchange: exchange}, nil
}

// Publish sends event as persistent JSON.
func (p *Publisher) Publish(ctx context.Context, event model.JobEvent) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encode job event: %w", err)
	}

	msg := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    event.OccurredAt,
		Type:         string(event.Type),
		MessageId:    event.Job.JobID + ":" + string(event.Type),
		Body:         body,
	}

	// amqp channels must not be used for concurrent publishes.
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.ch.PublishWithContext(ctx, p.exchange, string(event.Type), false, false, msg); err != nil {
		return fmt.Errorf("publish %s: %w", event.Type, err)
	}
	return nil
}

// Close closes the underlying channel.
func (p *Publisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.ch.Close()
}

var _ core.EventPublisher = (*Publisher)(nil)
