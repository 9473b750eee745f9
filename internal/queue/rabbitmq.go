package queue

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

// RabbitQueue publishes to and consumes from a durable RabbitMQ queue via
// the default exchange. The message type travels in the AMQP type property.
type RabbitQueue struct {
	url  string
	name string

	mu   sync.Mutex
	conn *amqp.Connection
	ch   *amqp.Channel
}

// NewRabbitQueue does not dial; the connection is opened on first use.
func NewRabbitQueue(url, name string) *RabbitQueue {
	if name == "" {
		name = "pathak.events"
	}
	return &RabbitQueue{url: url, name: name}
}

func (q *RabbitQueue) channel() (*amqp.Channel, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.ch != nil && !q.ch.IsClosed() {
		return q.ch, nil
	}
	if q.conn == nil || q.conn.IsClosed() {
		conn, err := amqp.Dial(q.url)
		if err != nil {
			return nil, fmt.Errorf("rabbitmq dial: %w", err)
		}
		q.conn = conn
	}
	ch, err := q.conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("rabbitmq channel: %w", err)
	}
	if _, err := ch.QueueDeclare(q.name, true, false, false, false, nil); err != nil {
		_ = ch.Close()
		return nil, fmt.Errorf("rabbitmq queue declare: %w", err)
	}
	q.ch = ch
	return ch, nil
}

// Publish sends a persistent message.
func (q *RabbitQueue) Publish(ctx context.Context, msg Message) error {
	ch, err := q.channel()
	if err != nil {
		return err
	}
	return ch.PublishWithContext(ctx, "", q.name, false, false, amqp.Publishing{
		ContentType:  "application/json",
		Type:         msg.Type,
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now().UTC(),
		Body:         msg.Body,
	})
}

// Consume runs a reconnecting consumer until ctx ends. Deliveries are acked
// once handed to the reader.
func (q *RabbitQueue) Consume(ctx context.Context) (<-chan Message, error) {
	out := make(chan Message)
	go func() {
		defer close(out)
		backoff := time.Second
		for ctx.Err() == nil {
			err := q.consumeOnce(ctx, out)
			if ctx.Err() != nil {
				return
			}
			log.Printf("rabbitmq consumer: %v; retrying in %s", err, backoff)
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return
			}
			if backoff < 30*time.Second {
				backoff *= 2
			}
		}
	}()
	return out, nil
}

func (q *RabbitQueue) consumeOnce(ctx context.Context, out chan<- Message) error {
	conn, err := amqp.Dial(q.url)
	if err != nil {
		return fmt.Errorf("dial: %w", err)
	}
	defer func() { _ = conn.Close() }()

	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("channel open: %w", err)
	}
	defer func() { _ = ch.Close() }()

	if err := ch.Qos(50, 0, false); err != nil {
		return fmt.Errorf("qos: %w", err)
	}
	if _, err := ch.QueueDeclare(q.name, true, false, false, false, nil); err != nil {
		return fmt.Errorf("queue declare: %w", err)
	}
	deliveries, err := ch.Consume(q.name, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("queue consume: %w", err)
	}

	for {
		select {
		case d, ok := <-deliveries:
			if !ok {
				return errors.New("deliveries channel closed")
			}
			select {
			case out <- Message{Type: d.Type, Body: d.Body}:
				_ = d.Ack(false)
			case <-ctx.Done():
				_ = d.Nack(false, true)
				return ctx.Err()
			}
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// Close releases the publishing connection.
func (q *RabbitQueue) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.conn == nil {
		return nil
	}
	err := q.conn.Close()
	q.conn, q.ch = nil, nil
	return err
}
