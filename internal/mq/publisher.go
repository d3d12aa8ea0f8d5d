package mq

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/savichev/reputa/internal/domain"
)

// MessageType — тип сообщения в очереди.
type MessageType string

// Типы сообщений.
const (
	MessageTypeSnapshotQueued MessageType = "snapshot.queued"
	MessageTypeSnapshotCancel MessageType = "snapshot.cancel"
	MessageTypeComputeInvoke  MessageType = "compute.invoke"
	MessageTypeComputeResult  MessageType = "compute.result"
)

// Publisher публикует сообщения в RabbitMQ.
type Publisher struct {
	conn   *Connection
	logger *slog.Logger
}

// NewPublisher создаёт новый Publisher.
func NewPublisher(conn *Connection, logger *slog.Logger) *Publisher {
	return &Publisher{
		conn:   conn,
		logger: logger,
	}
}

// Message — сообщение для публикации.
type Message struct {
	// ID — уникальный идентификатор сообщения.
	ID string `json:"id"`

	// Type — тип сообщения.
	Type MessageType `json:"type"`

	// Payload — полезная нагрузка.
	Payload any `json:"payload"`

	// Timestamp — время создания.
	Timestamp time.Time `json:"timestamp"`
}

// SnapshotQueuedPayload — payload для сообщения о новом снапшоте.
type SnapshotQueuedPayload struct {
	SnapshotID uuid.UUID `json:"snapshot_id"`
}

// SnapshotCancelPayload — payload для запроса отмены снапшота.
type SnapshotCancelPayload struct {
	SnapshotID uuid.UUID `json:"snapshot_id"`
}

// ComputeInvokePayload — payload для вызова вычисления в очереди runtime.
type ComputeInvokePayload struct {
	SnapshotID   uuid.UUID `json:"snapshot_id"`
	InvocationID uuid.UUID `json:"invocation_id"`
	Attempt      int       `json:"attempt"`
}

// ComputeResultPayload — payload для результата вычисления.
// Статус: succeeded или failed.
type ComputeResultPayload struct {
	SnapshotID   uuid.UUID       `json:"snapshot_id"`
	InvocationID uuid.UUID       `json:"invocation_id"`
	Status       string          `json:"status"`
	Outputs      map[string]any  `json:"outputs,omitempty"`
	Failure      *domain.Failure `json:"failure,omitempty"`
	Attempt      int             `json:"attempt"`
}

// Result statuses.
const (
	ResultStatusSucceeded = "succeeded"
	ResultStatusFailed    = "failed"
)

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
			false,
			false,
			amqp.Publishing{
				ContentType:  "application/json",
				DeliveryMode: amqp.Persistent, // сообщение переживёт рестарт RabbitMQ
				MessageId:    msg.ID,
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

// PublishSnapshotQueued публикует событие о снапшоте, ожидающем обработки.
// Потребитель: Orchestrator.
func (p *Publisher) PublishSnapshotQueued(ctx context.Context, snapshotID uuid.UUID) error {
	msg := &Message{
		ID:        uuid.New().String(),
		Type:      MessageTypeSnapshotQueued,
		Payload:   SnapshotQueuedPayload{SnapshotID: snapshotID},
		Timestamp: time.Now(),
	}

	return p.Publish(ctx, ExchangeSnapshots, RoutingKeyQueued, msg)
}

// PublishSnapshotCancel публикует запрос отмены снапшота.
// Потребитель: Orchestrator.
func (p *Publisher) PublishSnapshotCancel(ctx context.Context, snapshotID uuid.UUID) error {
	msg := &Message{
		ID:        uuid.New().String(),
		Type:      MessageTypeSnapshotCancel,
		Payload:   SnapshotCancelPayload{SnapshotID: snapshotID},
		Timestamp: time.Now(),
	}

	return p.Publish(ctx, ExchangeSnapshots, RoutingKeyCancel, msg)
}

// PublishComputeInvoke публикует вызов вычисления в очередь runtime.
// Очередь выбирается маршрутизацией runtime → очередь; привязка очереди
// использует её имя как routing key. Потребитель: Worker нужного runtime.
func (p *Publisher) PublishComputeInvoke(ctx context.Context, queue string, payload ComputeInvokePayload) error {
	msg := &Message{
		ID:        uuid.New().String(),
		Type:      MessageTypeComputeInvoke,
		Payload:   payload,
		Timestamp: time.Now(),
	}

	return p.Publish(ctx, ExchangeCompute, RoutingKey(queue), msg)
}

// PublishComputeResult публикует результат вычисления.
// Потребитель: Orchestrator.
func (p *Publisher) PublishComputeResult(ctx context.Context, payload ComputeResultPayload) error {
	msg := &Message{
		ID:        uuid.New().String(),
		Type:      MessageTypeComputeResult,
		Payload:   payload,
		Timestamp: time.Now(),
	}

	return p.Publish(ctx, ExchangeCompute, RoutingKeyResults, msg)
}
