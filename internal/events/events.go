package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/pymthouse/gateway/internal/config"
)

const (
	PaymentQueueName = "payment_events"
	ExchangeName     = "pymthouse"
)

// PaymentEvent is emitted after a usage charge has been committed. The
// worker process consumes these to refresh the usage report without
// polling the database.
type PaymentEvent struct {
	TransactionID string    `json:"transaction_id"`
	EndUserID     string    `json:"end_user_id"`
	ManifestID    string    `json:"manifest_id"`
	Pixels        int64     `json:"pixels"`
	FeeWei        string    `json:"fee_wei"`
	PlatformCut   string    `json:"platform_cut_wei,omitempty"`
	Orchestrator  string    `json:"orchestrator,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
}

// Bus provides publish/consume operations for payment events
type Bus struct {
	conn    *amqp.Connection
	channel *amqp.Channel
}

// New connects to RabbitMQ and declares the payment exchange and queue
func New(cfg config.QueueConfig) (*Bus, error) {
	url := fmt.Sprintf("amqp://%s:%s@%s:%d%s",
		cfg.User, cfg.Password, cfg.Host, cfg.Port, cfg.Vhost)

	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}

	channel, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to open channel: %w", err)
	}

	err = channel.ExchangeDeclare(
		ExchangeName,
		"direct",
		true,  // durable
		false, // auto-deleted
		false, // internal
		false, // no-wait
		nil,   // arguments
	)
	if err != nil {
		channel.Close()
		conn.Close()
		return nil, fmt.Errorf("failed to declare exchange: %w", err)
	}

	_, err = channel.QueueDeclare(
		PaymentQueueName,
		true,  // durable
		false, // delete when unused
		false, // exclusive
		false, // no-wait
		nil,   // arguments
	)
	if err != nil {
		channel.Close()
		conn.Close()
		return nil, fmt.Errorf("failed to declare queue: %w", err)
	}

	err = channel.QueueBind(
		PaymentQueueName,
		PaymentQueueName,
		ExchangeName,
		false,
		nil,
	)
	if err != nil {
		channel.Close()
		conn.Close()
		return nil, fmt.Errorf("failed to bind queue: %w", err)
	}

	return &Bus{
		conn:    conn,
		channel: channel,
	}, nil
}

// Close closes the bus connection
func (b *Bus) Close() error {
	if b.channel != nil {
		b.channel.Close()
	}
	if b.conn != nil {
		return b.conn.Close()
	}
	return nil
}

// PublishPayment publishes a payment event
func (b *Bus) PublishPayment(ctx context.Context, event *PaymentEvent) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal payment event: %w", err)
	}

	err = b.channel.PublishWithContext(ctx,
		ExchangeName,
		PaymentQueueName,
		false, // mandatory
		false, // immediate
		amqp.Publishing{
			DeliveryMode: amqp.Persistent,
			ContentType:  "application/json",
			Body:         body,
			Timestamp:    time.Now(),
		},
	)
	if err != nil {
		return fmt.Errorf("failed to publish payment event: %w", err)
	}

	return nil
}

// ConsumePayments starts consuming payment events from the queue.
// Handler errors requeue the message; malformed payloads are dropped.
func (b *Bus) ConsumePayments(ctx context.Context, handler func(*PaymentEvent) error) error {
	err := b.channel.Qos(
		1,     // prefetch count
		0,     // prefetch size
		false, // global
	)
	if err != nil {
		return fmt.Errorf("failed to set QoS: %w", err)
	}

	msgs, err := b.channel.Consume(
		PaymentQueueName,
		"",    // consumer
		false, // auto-ack
		false, // exclusive
		false, // no-local
		false, // no-wait
		nil,   // args
	)
	if err != nil {
		return fmt.Errorf("failed to register consumer: %w", err)
	}

	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-msgs:
				if !ok {
					return
				}

				var event PaymentEvent
				if err := json.Unmarshal(msg.Body, &event); err != nil {
					msg.Nack(false, false)
					continue
				}

				if err := handler(&event); err != nil {
					msg.Nack(false, true)
				} else {
					msg.Ack(false)
				}
			}
		}
	}()

	return nil
}

// QueueDepth returns the number of pending payment events
func (b *Bus) QueueDepth() (int, error) {
	info, err := b.channel.QueueInspect(PaymentQueueName)
	if err != nil {
		return 0, fmt.Errorf("failed to inspect queue: %w", err)
	}

	return info.Messages, nil
}
