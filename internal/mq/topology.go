package mq

import (
	"context"
	"fmt"
	"strings"

	amqp "github.com/rabbitmq/amqp091-go"
)

// Exchange — тип для имени обменника.
type Exchange string

// Queue — тип для имени очереди.
type Queue string

// RoutingKey — тип для ключа маршрутизации.
type RoutingKey string

// Exchanges — имена обменников.
const (
	ExchangeRuns   Exchange = "varflow.runs"
	ExchangeEvents Exchange = "varflow.events"
	ExchangeDLQ    Exchange = "varflow.dlq"
)

// Queues — имена очередей.
const (
	QueueRunsPending    Queue = "runs.pending"
	QueueTasksCompleted Queue = "tasks.completed"
	QueueRunsFinished   Queue = "runs.finished"
	QueueDLQRuns        Queue = "dlq.runs"
)

// Routing keys.
const (
	RoutingKeyPending       RoutingKey = "pending"
	RoutingKeyTaskCompleted RoutingKey = "task.completed"
	RoutingKeyRunFinished   RoutingKey = "run.finished"
	RoutingKeyDLQRuns       RoutingKey = "runs"
)

type exchangeDecl struct {
	name Exchange
	kind string
}

type queueDecl struct {
	name Queue
	args amqp.Table
}

type bindingDecl struct {
	queue      Queue
	routingKey RoutingKey
	exchange   Exchange
}

// topology — полный набор объявлений varflow.
type topology struct {
	exchanges []exchangeDecl
	queues    []queueDecl
	bindings  []bindingDecl
}

func defaultTopology() topology {
	// Отклонённые запросы на запуск уходят в dlq.runs
	dlqArgs := amqp.Table{
		"x-dead-letter-exchange":    string(ExchangeDLQ),
		"x-dead-letter-routing-key": string(RoutingKeyDLQRuns),
	}

	return topology{
		exchanges: []exchangeDecl{
			{ExchangeRuns, amqp.ExchangeDirect},
			{ExchangeEvents, amqp.ExchangeDirect},
			{ExchangeDLQ, amqp.ExchangeDirect},
		},
		queues: []queueDecl{
			{QueueRunsPending, dlqArgs},
			{QueueTasksCompleted, nil},
			{QueueRunsFinished, nil},
			{QueueDLQRuns, nil},
		},
		bindings: []bindingDecl{
			{QueueRunsPending, RoutingKeyPending, ExchangeRuns},
			{QueueTasksCompleted, RoutingKeyTaskCompleted, ExchangeEvents},
			{QueueRunsFinished, RoutingKeyRunFinished, ExchangeEvents},
			{QueueDLQRuns, RoutingKeyDLQRuns, ExchangeDLQ},
		},
	}
}

// SetupTopology объявляет обменники, очереди и привязки. Идемпотентна.
func SetupTopology(ctx context.Context, conn *Connection) error {
	topo := defaultTopology()

	return conn.WithChannel(ctx, func(ch *amqp.Channel) error {
		for _, ex := range topo.exchanges {
			err := ch.ExchangeDeclare(
				string(ex.name), // name
				ex.kind,         // type
				true,            // durable
				false,           // auto-deleted
				false,           // internal
				false,           // no-wait
				nil,             // arguments
			)
			if err != nil {
				return fmt.Errorf("declare exchange %s: %w", ex.name, err)
			}
		}

		for _, q := range topo.queues {
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

		for _, b := range topo.bindings {
			err := ch.QueueBind(string(b.queue), string(b.routingKey), string(b.exchange), false, nil)
			if err != nil {
				return fmt.Errorf("bind queue %s to %s: %w", b.queue, b.exchange, err)
			}
		}

		return nil
	})
}

// TopologyInfo возвращает описание топологии для логирования.
func TopologyInfo() string {
	topo := defaultTopology()

	var sb strings.Builder
	sb.WriteString("varflow RabbitMQ topology:\n")
	for _, ex := range topo.exchanges {
		fmt.Fprintf(&sb, "  %s (%s)\n", ex.name, ex.kind)
		for _, b := range topo.bindings {
			if b.exchange != ex.name {
				continue
			}
			fmt.Fprintf(&sb, "    %s [routing: %s]", b.queue, b.routingKey)
			for _, q := range topo.queues {
				if q.name == b.queue && q.args != nil {
					fmt.Fprintf(&sb, " dlq: %s", QueueDLQRuns)
				}
			}
			sb.WriteString("\n")
		}
	}
	return sb.String()
}
