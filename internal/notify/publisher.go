package notify

import (
	"context"
	"fmt"
	"time"

	json "github.com/goccy/go-json"
	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

// Message is one outbound notification as it goes on the wire.
type Message struct {
	ID          uuid.UUID      `json:"id"`
	Type        string         `json:"type"`
	RecipientID uuid.UUID      `json:"recipient_id"`
	Payload     map[string]any `json:"payload"`
	CreatedAt   time.Time      `json:"created_at"`
}

type Publisher interface {
	Publish(ctx context.Context, msg Message) error
}

// AMQPPublisher writes messages to a durable RabbitMQ queue through the
// default exchange.
type AMQPPublisher struct {
	ch    *amqp.Channel
	queue string
}

func NewAMQPPublisher(conn *amqp.Connection, queue string) (*AMQPPublisher, error) {
	ch, err := conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("open channel: %w", err)
	}

	_, err = ch.QueueDeclare(
		queue, // name
		true,  // durable
		false, // autoDelete
		false, // exclusive
		false, // noWait
		nil,   // args
	)
	if err != nil {
		ch.Close()
		return nil, fmt.Errorf("declare queue %s: %w", queue, err)
	}

	return &AMQPPublisher{ch: ch, queue: queue}, nil
}

func (p *AMQPPublisher) Publish(ctx context.Context, msg Message) error {
	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal notification: %w", err)
	}

	err = p.ch.PublishWithContext(ctx, "", p.queue, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    msg.ID.String(),
		Type:         msg.Type,
		Timestamp:    msg.CreatedAt,
		Body:         body,
		Headers: amqp.Table{
			"message_type":     "JSON",
			"requeue_strategy": "DROP",
		},
	})
	if err != nil {
		return fmt.Errorf("failed to publish message: %w", err)
	}
	return nil
}

func (p *AMQPPublisher) Close() error {
	return p.ch.Close()
}

// LogPublisher only logs. Used when no broker is configured.
type LogPublisher struct {
	log *zap.Logger
}

func NewLogPublisher(log *zap.Logger) *LogPublisher {
	return &LogPublisher{log: log}
}

func (p *LogPublisher) Publish(_ context.Context, msg Message) error {
	p.log.Info("notification",
		zap.String("notification_id", msg.ID.String()),
		zap.String("type", msg.Type),
		zap.String("recipient_id", msg.RecipientID.String()),
		zap.Any("payload", msg.Payload),
	)
	return nil
}
