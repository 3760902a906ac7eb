// Package amqp implements a telemetry.Publisher that forwards every event
// onto an AMQP exchange for external subscribers (analytics, JUnit export)
// without the core knowing about them. Adapted from the queue package's
// RabbitMQ connection and channel wiring.
package amqp

import (
	"encoding/json"
	"fmt"

	"github.com/streadway/amqp"

	"forge.evalgo.org/bldrerr"
	"forge.evalgo.org/telemetry"
)

// Config configures the AMQP sink.
type Config struct {
	URL      string
	Exchange string
	// ExchangeKind is typically "fanout" or "topic"; telemetry events have
	// no natural partition key, so "fanout" is the expected default.
	ExchangeKind string
}

// Sink publishes telemetry events to a durable AMQP exchange.
type Sink struct {
	conn     *amqp.Connection
	channel  *amqp.Channel
	exchange string
}

// NewSink connects to the AMQP broker, opens a channel, and declares the
// configured exchange.
func NewSink(cfg Config) (*Sink, error) {
	conn, err := amqp.Dial(cfg.URL)
	if err != nil {
		return nil, bldrerr.Wrap(bldrerr.KindNetwork, err, "connecting to AMQP broker")
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, bldrerr.Wrap(bldrerr.KindNetwork, err, "opening AMQP channel")
	}

	kind := cfg.ExchangeKind
	if kind == "" {
		kind = "fanout"
	}

	if err := ch.ExchangeDeclare(
		cfg.Exchange,
		kind,
		true,  // durable
		false, // auto-deleted
		false, // internal
		false, // no-wait
		nil,   // arguments
	); err != nil {
		ch.Close()
		conn.Close()
		return nil, bldrerr.Wrap(bldrerr.KindNetwork, err, "declaring AMQP exchange")
	}

	return &Sink{conn: conn, channel: ch, exchange: cfg.Exchange}, nil
}

// Publish implements telemetry.Publisher. A marshal or publish failure is
// dropped silently, never propagated into the build itself — telemetry
// delivery is best-effort.
func (s *Sink) Publish(event telemetry.Event) {
	body, err := json.Marshal(event)
	if err != nil {
		return
	}

	_ = s.channel.Publish(
		s.exchange,
		string(event.Type), // routing key
		false,              // mandatory
		false,              // immediate
		amqp.Publishing{
			ContentType: "application/json",
			Timestamp:   event.Time,
			Body:        body,
		},
	)
}

// Close closes the channel and connection.
func (s *Sink) Close() error {
	var firstErr error
	if s.channel != nil {
		if err := s.channel.Close(); err != nil {
			firstErr = fmt.Errorf("closing AMQP channel: %w", err)
		}
	}
	if s.conn != nil {
		if err := s.conn.Close(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("closing AMQP connection: %w", err)
		}
	}
	return firstErr
}
