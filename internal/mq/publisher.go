package mq

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
)

// MessageType — тип сообщения.
type MessageType string

const (
	MessageTypeRunRequested  MessageType = "run.requested"
	MessageTypeTaskCompleted MessageType = "task.completed"
	MessageTypeRunFinished   MessageType = "run.finished"
)

// Publisher публикует сообщения в RabbitMQ.
type Publisher struct {
	conn   *Connection
	logger *slog.Logger
}

// NewPublisher создаёт новый Publisher.
func NewPublisher(conn *Connection, logger *slog.Logger) *Publisher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Publisher{
		conn:   conn,
		logger: logger,
	}
}

// Message — конверт сообщения.
type Message struct {
	// ID — уникальный идентификатор сообщения.
	ID string `json:"id"`

	// Type — тип сообщения.
	Type MessageType `json:"type"`

	// Payload — данные сообщения.
	Payload any `json:"payload"`

	// Timestamp — время создания сообщения.
	Timestamp time.Time `json:"timestamp"`
}

// newMessage заворачивает payload в конверт с новым ID.
func newMessage(msgType MessageType, payload any) *Message {
	return &Message{
		ID:        uuid.New().String(),
		Type:      msgType,
		Payload:   payload,
		Timestamp: time.Now().UTC(),
	}
}

// RunRequestedPayload — запрос на запуск конвейера (очередь runs.pending).
type RunRequestedPayload struct {
	Pipeline       string `json:"pipeline"`
	ParamsFile     string `json:"params_file"`
	IdempotencyKey string `json:"idempotency_key,omitempty"`
}

// TaskCompletedPayload — узел графа перешёл в терминальный статус.
type TaskCompletedPayload struct {
	RunID   uuid.UUID `json:"run_id"`
	TaskID  uuid.UUID `json:"task_id"`
	NodeID  string    `json:"node_id"`
	Kind    string    `json:"kind"`
	Label   string    `json:"label,omitempty"`
	Status  string    `json:"status"`
	Error   string    `json:"error,omitempty"`
	Attempt int       `json:"attempt"`
}

// RunFinishedPayload — run завершён.
type RunFinishedPayload struct {
	RunID       uuid.UUID `json:"run_id"`
	Pipeline    string    `json:"pipeline"`
	Status      string    `json:"status"`
	Error       string    `json:"error,omitempty"`
	FailedNodes []string  `json:"failed_nodes,omitempty"`
}

// Publish публикует сообщение в указанный exchange с routing key.
func (p *Publisher) Publish(ctx context.Context, exchange Exchange, routingKey RoutingKey, msg *Message) error {
	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}

	return p.conn.WithChannel(ctx, func(ch *amqp.Channel) error {
		err := ch.PublishWithContext(
			ctx,
			string(exchange),   // exchange
			string(routingKey), // routing key
			false,              // mandatory
			false,              // immediate
			amqp.Publishing{
				ContentType:  "application/json",
				DeliveryMode: amqp.Persistent,
				MessageId:    msg.ID,
				Type:         string(msg.Type),
				Timestamp:    msg.Timestamp,
				Body:         body,
			},
		)
		if err != nil {
			return fmt.Errorf("publish to %s/%s: %w", exchange, routingKey, err)
		}

		p.logger.Debug("published message",
			"exchange", exchange,
			"routing_key", routingKey,
			"message_id", msg.ID,
			"type", msg.Type,
		)
		return nil
	})
}

// PublishRunRequested ставит запуск конвейера в очередь демона.
func (p *Publisher) PublishRunRequested(ctx context.Context, payload RunRequestedPayload) error {
	return p.Publish(ctx, ExchangeRuns, RoutingKeyPending, newMessage(MessageTypeRunRequested, payload))
}

// PublishTaskCompleted публикует событие о завершённом узле.
func (p *Publisher) PublishTaskCompleted(ctx context.Context, payload TaskCompletedPayload) error {
	return p.Publish(ctx, ExchangeEvents, RoutingKeyTaskCompleted, newMessage(MessageTypeTaskCompleted, payload))
}

// PublishRunFinished публикует событие о завершённом run.
func (p *Publisher) PublishRunFinished(ctx context.Context, payload RunFinishedPayload) error {
	return p.Publish(ctx, ExchangeEvents, RoutingKeyRunFinished, newMessage(MessageTypeRunFinished, payload))
}
