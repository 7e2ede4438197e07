package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

// Channel is the part of *amqp.Channel used for publishing.
type Channel interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

// AMQPSink publishes alerts as JSON to a topic exchange. The routing key is
// "<RoutingKey>.<kind>" so consumers can bind to a subset.
type AMQPSink struct {
	open       func() (Channel, error)
	exchange   string
	routingKey string
}

func NewAMQPSink(conn *amqp.Connection, exchange, routingKey string) *AMQPSink {
	return &AMQPSink{
		open:       func() (Channel, error) { return conn.Channel() },
		exchange:   exchange,
		routingKey: routingKey,
	}
}

func (s *AMQPSink) Notify(ctx context.Context, a Alert) error {
	if a.At.IsZero() {
		a.At = time.Now()
	}
	body, err := json.Marshal(a)
	if err != nil {
		return err
	}

	ch, err := s.open()
	if err != nil {
		return fmt.Errorf("amqp channel: %w", err)
	}
	defer ch.Close()

	return ch.PublishWithContext(ctx, s.exchange, s.routingKey+"."+string(a.Kind), false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    a.At,
		Body:         body,
	})
}
