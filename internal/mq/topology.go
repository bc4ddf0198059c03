package mq

import (
	"context"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"
)

// Exchange — имя обменника.
type Exchange string

// Queue — имя очереди.
type Queue string

// RoutingKey — ключ маршрутизации.
type RoutingKey string

const (
	ExchangePipeline Exchange = "maa.pipeline"
	ExchangeDLQ      Exchange = "maa.dlq"
)

const (
	QueuePipelineRequests Queue = "pipeline.requests"
	QueuePipelineEvents   Queue = "pipeline.events"
	QueueDLQRequests      Queue = "dlq.requests"
)

const (
	RoutingKeyRequest     RoutingKey = "request"
	RoutingKeyFinished    RoutingKey = "finished"
	RoutingKeyDLQRequests RoutingKey = "requests"
)

// SetupTopology объявляет обменники, очереди и привязки. Идемпотентна.
func SetupTopology(ctx context.Context, conn *Connection) error {
	return conn.WithChannel(ctx, func(ch *amqp.Channel) error {
		if err := declareExchanges(ch); err != nil {
			return err
		}
		if err := declareQueues(ch); err != nil {
			return err
		}
		return bindQueues(ch)
	})
}

func declareExchanges(ch *amqp.Channel) error {
	for _, name := range []Exchange{ExchangePipeline, ExchangeDLQ} {
		err := ch.ExchangeDeclare(
			string(name), // name
			"direct",     // type
			true,         // durable
			false,        // auto-deleted
			false,        // internal
			false,        // no-wait
			nil,          // arguments
		)
		if err != nil {
			return fmt.Errorf("declare exchange %s: %w", name, err)
		}
	}
	return nil
}

// queueSpecs — очереди и их аргументы.
func queueSpecs() []struct {
	name Queue
	args amqp.Table
} {
	return []struct {
		name Queue
		args amqp.Table
	}{
		// Отклонённые запросы (занятость, невалидные tasks) уходят в DLQ.
		{QueuePipelineRequests, amqp.Table{
			"x-dead-letter-exchange":    string(ExchangeDLQ),
			"x-dead-letter-routing-key": string(RoutingKeyDLQRequests),
		}},
		{QueuePipelineEvents, nil},
		{QueueDLQRequests, nil},
	}
}

func declareQueues(ch *amqp.Channel) error {
	for _, q := range queueSpecs() {
		_, err := ch.QueueDeclare(
			string(q.name), // name
			true,           // durable
			false,          // delete when unused
			false,          // exclusive
			false,          // no-wait
			q.args,         // arguments
		)
		if err != nil {
			return fmt.Errorf("declare queue %s: %w", q.name, err)
		}
	}
	return nil
}

type binding struct {
	queue      Queue
	routingKey RoutingKey
	exchange   Exchange
}

var bindings = []binding{
	{QueuePipelineRequests, RoutingKeyRequest, ExchangePipeline},
	{QueuePipelineEvents, RoutingKeyFinished, ExchangePipeline},
	{QueueDLQRequests, RoutingKeyDLQRequests, ExchangeDLQ},
}

func bindQueues(ch *amqp.Channel) error {
	for _, b := range bindings {
		err := ch.QueueBind(
			string(b.queue),      // queue name
			string(b.routingKey), // routing key
			string(b.exchange),   // exchange
			false,                // no-wait
			nil,                  // arguments
		)
		if err != nil {
			return fmt.Errorf("bind queue %s to %s: %w", b.queue, b.exchange, err)
		}
	}
	return nil
}

// TopologyInfo возвращает описание топологии для логирования.
func TopologyInfo() string {
	return `
  MAA RabbitMQ Topology:

    maa.pipeline (direct)
    ├── pipeline.requests [routing: request]
    │       Consumer: maa-api
    │       DLQ: dlq.requests
    └── pipeline.events [routing: finished]
            Consumer: external subscribers

    maa.dlq (direct)
    └── dlq.requests [routing: requests]
            Manual processing
  `
}
