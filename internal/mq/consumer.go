package mq

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	amqp "github.com/rabbitmq/amqp091-go"
)

// Handler обрабатывает одно сообщение.
//
// Ошибка, обёрнутая в ErrRejected, отправляет сообщение в DLQ,
// прочие ошибки возвращают его в очередь.
type Handler func(ctx context.Context, msg *Delivery) error

// Delivery — доставленное сообщение.
type Delivery struct {
	Message Message
	Raw     amqp.Delivery
}

// settlement — решение по доставке.
type settlement int

const (
	settleAck settlement = iota
	settleRequeue
	settleReject
)

// Consumer читает очередь и раздаёт сообщения обработчикам по типу.
//
// Сообщения неизвестного типа и неразборчивые конверты уходят в DLQ.
type Consumer struct {
	conn     *Connection
	logger   *slog.Logger
	queue    string
	handlers map[MessageType]Handler
	prefetch int

	cancelFunc context.CancelFunc
}

// ConsumerConfig — конфигурация consumer.
type ConsumerConfig struct {
	Queue string

	// Handlers — обработчики по типу сообщения (MessageTypePipelineRequest, ...).
	Handlers map[MessageType]Handler

	// Prefetch (default: 1). Pipeline всё равно выполняется по одному.
	Prefetch int
}

// NewConsumer создаёт Consumer.
func NewConsumer(conn *Connection, logger *slog.Logger, cfg ConsumerConfig) *Consumer {
	if cfg.Prefetch <= 0 {
		cfg.Prefetch = 1
	}
	if logger == nil {
		logger = slog.Default()
	}
	handlers := make(map[MessageType]Handler, len(cfg.Handlers))
	for typ, h := range cfg.Handlers {
		handlers[typ] = h
	}

	return &Consumer{
		conn:     conn,
		logger:   logger.With("queue", cfg.Queue),
		queue:    cfg.Queue,
		handlers: handlers,
		prefetch: cfg.Prefetch,
	}
}

// Start блокирует до отмены ctx, переподключаясь вместе с Connection.
func (c *Consumer) Start(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	c.cancelFunc = cancel

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		deliveries, err := c.subscribe()
		if err != nil {
			c.logger.Error("failed to subscribe", "error", err)
		} else {
			c.logger.Info("consumer started")
			c.drain(ctx, deliveries)
			if ctx.Err() != nil {
				return ctx.Err()
			}
			c.logger.Warn("deliveries channel closed, waiting for reconnect")
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-c.conn.ReconnectNotify():
			c.logger.Info("reconnected, resubscribing")
		}
	}
}

// Stop прекращает потребление.
func (c *Consumer) Stop() {
	if c.cancelFunc != nil {
		c.cancelFunc()
	}
}

func (c *Consumer) subscribe() (<-chan amqp.Delivery, error) {
	ch := c.conn.Channel()
	if ch == nil {
		return nil, ErrNoChannel
	}
	if err := ch.Qos(c.prefetch, 0, false); err != nil {
		return nil, fmt.Errorf("set qos: %w", err)
	}

	// auto-ack выключен: решение принимает settle.
	deliveries, err := ch.Consume(c.queue, "", false, false, false, false, nil)
	if err != nil {
		return nil, fmt.Errorf("consume %s: %w", c.queue, err)
	}
	return deliveries, nil
}

// drain обрабатывает доставки, пока канал открыт или не отменён ctx.
func (c *Consumer) drain(ctx context.Context, deliveries <-chan amqp.Delivery) {
	for {
		select {
		case <-ctx.Done():
			return
		case raw, ok := <-deliveries:
			if !ok {
				return
			}
			c.settle(raw, c.dispatch(ctx, raw))
		}
	}
}

// dispatch разбирает конверт и вызывает обработчик его типа.
func (c *Consumer) dispatch(ctx context.Context, raw amqp.Delivery) settlement {
	var msg Message
	if err := json.Unmarshal(raw.Body, &msg); err != nil {
		c.logger.Error("malformed message", "error", err, "body", string(raw.Body))
		return settleReject
	}

	log := c.logger.With("message_id", msg.ID, "type", msg.Type)

	h, ok := c.handlers[msg.Type]
	if !ok {
		log.Warn("no handler for message type")
		return settleReject
	}

	log.Debug("received message")

	err := h(ctx, &Delivery{Message: msg, Raw: raw})
	switch {
	case err == nil:
		return settleAck
	case errors.Is(err, ErrRejected):
		log.Warn("message rejected", "error", err)
		return settleReject
	default:
		log.Error("handler failed, requeueing", "error", err)
		return settleRequeue
	}
}

func (c *Consumer) settle(raw amqp.Delivery, s settlement) {
	var err error
	switch s {
	case settleAck:
		err = raw.Ack(false)
	case settleRequeue:
		err = raw.Nack(false, true)
	default:
		err = raw.Nack(false, false)
	}
	if err != nil {
		c.logger.Error("failed to settle delivery", "delivery_tag", raw.DeliveryTag, "error", err)
	}
}

// ParsePayload приводит Payload сообщения к типу T.
//
// После разбора конверта Payload — map[string]any, поэтому значение
// проходит через JSON повторно.
func ParsePayload[T any](msg *Message) (T, error) {
	var out T

	data, err := json.Marshal(msg.Payload)
	if err != nil {
		return out, fmt.Errorf("marshal payload: %w", err)
	}
	if err := json.Unmarshal(data, &out); err != nil {
		return out, fmt.Errorf("decode %s payload: %w", msg.Type, err)
	}
	return out, nil
}
