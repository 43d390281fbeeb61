// Package delivery holds the two external hand-off clients: the AMQP email
// queue and the CRM write layer. Both are side-effecting collaborators behind
// small interfaces so the engine can be tested without a broker.
package delivery

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rabbitmq/amqp091-go"

	"leadpilot/internal/logging"
	"leadpilot/internal/routing"
)

// ErrDeliveryFailed wraps queue and CRM transport errors. Retryable at the
// engine level with backoff.
var ErrDeliveryFailed = errors.New("delivery hand-off failed")

// EmailQueue accepts queue-ready emails for asynchronous sending.
type EmailQueue interface {
	Enqueue(ctx context.Context, runID string, emails []routing.EmailMessage) error
	Close() error
}

// AMQPQueue publishes emails to a durable topic exchange in confirm mode.
type AMQPQueue struct {
	conn       *amqp091.Connection
	exchange   string
	routingKey string
}

// queuePayload is the wire shape of one enqueued email.
type queuePayload struct {
	RunID     string    `json:"run_id"`
	Recipient string    `json:"recipient"`
	Subject   string    `json:"subject"`
	Body      string    `json:"body"`
	Step      string    `json:"step"`
	QueuedAt  time.Time `json:"queued_at"`
}

// NewAMQPQueue dials the broker and declares the exchange.
func NewAMQPQueue(url, exchange, routingKey string) (*AMQPQueue, error) {
	conn, err := amqp091.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("%w: dial: %v", ErrDeliveryFailed, err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("%w: channel: %v", ErrDeliveryFailed, err)
	}
	defer ch.Close()

	if err := ch.ExchangeDeclare(exchange, "topic", true, false, false, false, nil); err != nil {
		conn.Close()
		return nil, fmt.Errorf("%w: exchange declare: %v", ErrDeliveryFailed, err)
	}

	return &AMQPQueue{conn: conn, exchange: exchange, routingKey: routingKey}, nil
}

// Enqueue publishes each email as a persistent message and waits for broker
// confirms before returning.
func (q *AMQPQueue) Enqueue(ctx context.Context, runID string, emails []routing.EmailMessage) error {
	ch, err := q.conn.Channel()
	if err != nil {
		return fmt.Errorf("%w: channel: %v", ErrDeliveryFailed, err)
	}
	defer ch.Close()

	if err := ch.Confirm(false); err != nil {
		return fmt.Errorf("%w: confirm mode: %v", ErrDeliveryFailed, err)
	}
	confirms := ch.NotifyPublish(make(chan amqp091.Confirmation, len(emails)))

	for _, email := range emails {
		body, err := json.Marshal(queuePayload{
			RunID:     runID,
			Recipient: email.Recipient,
			Subject:   email.Subject,
			Body:      email.Body,
			Step:      email.Step,
			QueuedAt:  time.Now().UTC(),
		})
		if err != nil {
			return fmt.Errorf("%w: marshal: %v", ErrDeliveryFailed, err)
		}

		err = ch.PublishWithContext(ctx, q.exchange, q.routingKey, false, false,
			amqp091.Publishing{
				ContentType:   "application/json",
				DeliveryMode:  amqp091.Persistent,
				MessageId:     uuid.NewString(),
				CorrelationId: runID,
				Timestamp:     time.Now(),
				Body:          body,
			})
		if err != nil {
			return fmt.Errorf("%w: publish step %s: %v", ErrDeliveryFailed, email.Step, err)
		}
	}

	for range emails {
		select {
		case confirm := <-confirms:
			if !confirm.Ack {
				return fmt.Errorf("%w: broker nacked publish", ErrDeliveryFailed)
			}
		case <-ctx.Done():
			return fmt.Errorf("%w: waiting for confirm: %v", ErrDeliveryFailed, ctx.Err())
		}
	}

	logging.Delivery("Enqueued run=%s emails=%d exchange=%s key=%s",
		runID, len(emails), q.exchange, q.routingKey)
	return nil
}

// Close shuts down the broker connection.
func (q *AMQPQueue) Close() error {
	return q.conn.Close()
}
