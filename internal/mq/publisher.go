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

// MessageType — тип сообщения в очереди.
type MessageType string

const (
	MessageTypePipelineRequest  MessageType = "pipeline.request"
	MessageTypePipelineFinished MessageType = "pipeline.finished"
)

// Message — конверт сообщения.
type Message struct {
	ID        string      `json:"id"`
	Type      MessageType `json:"type"`
	Payload   any         `json:"payload"`
	Timestamp time.Time   `json:"timestamp"`
}

// PipelineRequestPayload — запрос на запуск: tasks заменяют текущий
// pipeline. Формат task совпадает с телом POST /api/maa/pipeline/tasks.
type PipelineRequestPayload struct {
	Tasks []json.RawMessage `json:"tasks"`
}

// PipelineFinishedPayload — итог запуска pipeline.
type PipelineFinishedPayload struct {
	RunID      uuid.UUID `json:"run_id"`
	Batch      int       `json:"batch"`
	Status     string    `json:"status"`
	Total      int       `json:"total"`
	Completed  int       `json:"completed"`
	Failed     int       `json:"failed"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
}

// channelPublisher — часть amqp.Channel, нужная для публикации.
type channelPublisher interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
}

// Publisher публикует сообщения в RabbitMQ.
type Publisher struct {
	conn   *Connection
	logger *slog.Logger
	now    func() time.Time
}

// NewPublisher создаёт Publisher.
func NewPublisher(conn *Connection, logger *slog.Logger) *Publisher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Publisher{
		conn:   conn,
		logger: logger,
		now:    time.Now,
	}
}

// Publish публикует сообщение в exchange с routing key.
func (p *Publisher) Publish(ctx context.Context, exchange Exchange, routingKey RoutingKey, msg *Message) error {
	return p.conn.WithChannel(ctx, func(ch *amqp.Channel) error {
		return p.publishOn(ctx, ch, exchange, routingKey, msg)
	})
}

func (p *Publisher) publishOn(ctx context.Context, ch channelPublisher, exchange Exchange, routingKey RoutingKey, msg *Message) error {
	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}

	err = ch.PublishWithContext(
		ctx,
		string(exchange),
		string(routingKey),
		false,
		false,
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
}

// newMessage оборачивает payload в конверт.
func (p *Publisher) newMessage(msgType MessageType, payload any) *Message {
	return &Message{
		ID:        uuid.New().String(),
		Type:      msgType,
		Payload:   payload,
		Timestamp: p.now(),
	}
}

// PublishPipelineFinished публикует итог запуска.
func (p *Publisher) PublishPipelineFinished(ctx context.Context, payload PipelineFinishedPayload) error {
	msg := p.newMessage(MessageTypePipelineFinished, payload)
	return p.Publish(ctx, ExchangePipeline, RoutingKeyFinished, msg)
}

// PublishPipelineRequest публикует запрос на запуск tasks.
func (p *Publisher) PublishPipelineRequest(ctx context.Context, payload PipelineRequestPayload) error {
	msg := p.newMessage(MessageTypePipelineRequest, payload)
	return p.Publish(ctx, ExchangePipeline, RoutingKeyRequest, msg)
}

// PublishJSON публикует произвольный JSON payload.
func (p *Publisher) PublishJSON(ctx context.Context, exchange Exchange, routingKey RoutingKey, msgType MessageType, payload any) error {
	return p.Publish(ctx, exchange, routingKey, p.newMessage(msgType, payload))
}
