// Package notify publishes order events to RabbitMQ for downstream
// consumers (email, vendor dashboards, analytics). Publishing is best
// effort: a broker outage never fails the order flow.
package notify

import (
	"context"
	"encoding/json"
	"time"

	"github.com/go-faster/errors"
	"github.com/streadway/amqp"
	"go.uber.org/zap"

	"github.com/xenking/vendora/internal/domain/order"
)

// Notifier delivers order events to interested consumers.
type Notifier interface {
	PublishOrderEvent(ctx context.Context, e order.Event) error
}

// Nop is a Notifier that drops every event. Used when no broker is
// configured.
type Nop struct{}

func (Nop) PublishOrderEvent(context.Context, order.Event) error { return nil }

const orderEventsQueue = "order.events"

// AMQPNotifier publishes order events to a durable RabbitMQ queue.
type AMQPNotifier struct {
	conn    *amqp.Connection
	channel *amqp.Channel
	lg      *zap.Logger
}

var _ Notifier = (*AMQPNotifier)(nil)

// NewAMQPNotifier dials the broker and declares the order-events queue.
func NewAMQPNotifier(url string, lg *zap.Logger) (*AMQPNotifier, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, errors.Wrap(err, "dial amqp")
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, errors.Wrap(err, "open channel")
	}

	_, err = ch.QueueDeclare(
		orderEventsQueue,
		true,  // durable
		false, // delete when unused
		false, // exclusive
		false, // no-wait
		nil,
	)
	if err != nil {
		ch.Close()
		conn.Close()
		return nil, errors.Wrapf(err, "declare queue %s", orderEventsQueue)
	}

	return &AMQPNotifier{conn: conn, channel: ch, lg: lg}, nil
}

// Close shuts down the channel and connection.
func (n *AMQPNotifier) Close() error {
	if err := n.channel.Close(); err != nil {
		return errors.Wrap(err, "close channel")
	}
	if err := n.conn.Close(); err != nil {
		return errors.Wrap(err, "close connection")
	}
	return nil
}

// eventMessage is the wire shape of an order event.
type eventMessage struct {
	Kind       string    `json:"kind"`
	OrderID    string    `json:"order_id"`
	Number     string    `json:"number"`
	CustomerID string    `json:"customer_id"`
	At         time.Time `json:"at"`
}

// PublishOrderEvent sends the event as a persistent JSON message.
func (n *AMQPNotifier) PublishOrderEvent(_ context.Context, e order.Event) error {
	body, err := json.Marshal(eventMessage{
		Kind:       string(e.Kind),
		OrderID:    e.OrderID,
		Number:     e.Number,
		CustomerID: e.CustomerID,
		At:         e.At,
	})
	if err != nil {
		return errors.Wrap(err, "marshal event")
	}

	err = n.channel.Publish(
		"", // default exchange
		orderEventsQueue,
		false, // mandatory
		false, // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			Timestamp:    e.At,
			Body:         body,
		},
	)
	if err != nil {
		return errors.Wrapf(err, "publish %s", e.Kind)
	}

	n.lg.Debug("Published order event",
		zap.String("kind", string(e.Kind)),
		zap.String("order_id", e.OrderID),
	)
	return nil
}
