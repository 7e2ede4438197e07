package mq

import (
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/KINGliam254/Butcher-Sauce-UAT-Ready/internal/config"
)

// Dial connects to RabbitMQ and declares the durable topic exchange alerts are
// published to. It returns (nil, nil) when no URL is configured.
func Dial(cfg config.AMQPConfig) (*amqp.Connection, error) {
	if cfg.URL == "" {
		return nil, nil
	}
	conn, err := amqp.Dial(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("amqp dial: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("amqp channel: %w", err)
	}
	defer ch.Close()

	if err := ch.ExchangeDeclare(cfg.Exchange, "topic", true, false, false, false, nil); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("declare exchange %s: %w", cfg.Exchange, err)
	}
	return conn, nil
}
