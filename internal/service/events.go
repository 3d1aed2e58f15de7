package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/iliyamo/healthcare-coordination/internal/queue"
)

const dialTimeout = 2 * time.Second

// EventPublisher delivers domain events.  Publishing is best effort: the
// auth service logs a failure and carries on.
type EventPublisher interface {
	PublishUserRegistered(ctx context.Context, ev queue.UserRegisteredEvent) error
}

// AMQPPublisher publishes to RabbitMQ, dialing once per event.  Registration
// volume is low enough that a pooled connection is not worth the reconnect
// bookkeeping.
type AMQPPublisher struct {
	URL    string
	Logger *slog.Logger
}

func NewAMQPPublisher(url string, logger *slog.Logger) *AMQPPublisher {
	if logger == nil {
		logger = slog.Default()
	}
	return &AMQPPublisher{URL: url, Logger: logger}
}

// PublishUserRegistered sends ev as a persistent JSON message to the
// durable user.registered queue through the default exchange.
func (p *AMQPPublisher) PublishUserRegistered(ctx context.Context, ev queue.UserRegisteredEvent) error {
	body, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	conn, err := amqp.DialConfig(p.URL, amqp.Config{
		Heartbeat: 10 * time.Second,
		Locale:    "en_US",
		Dial:      amqp.DefaultDial(dialTimeout),
	})
	if err != nil {
		p.Logger.Warn("rabbitmq dial failed", "error", err)
		return err
	}
	defer func() { _ = conn.Close() }()

	ch, err := conn.Channel()
	if err != nil {
		p.Logger.Warn("rabbitmq channel open failed", "error", err)
		return err
	}
	defer func() { _ = ch.Close() }()

	if _, err := ch.QueueDeclare(queue.UserRegisteredQueue, true, false, false, false, nil); err != nil {
		p.Logger.Warn("rabbitmq queue declare failed", "queue", queue.UserRegisteredQueue, "error", err)
		return err
	}

	pub := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now().UTC(),
		Body:         body,
	}
	if err := ch.PublishWithContext(ctx, "", queue.UserRegisteredQueue, false, false, pub); err != nil {
		p.Logger.Warn("rabbitmq publish failed", "queue", queue.UserRegisteredQueue, "error", err)
		return err
	}
	return nil
}
