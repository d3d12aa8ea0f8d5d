package mq

import (
	"context"
	"fmt"

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
	ExchangeSnapshots Exchange = "reputa.snapshots"
	ExchangeCompute   Exchange = "reputa.compute"
	ExchangeDLQ       Exchange = "reputa.dlq"
)

// Queues — имена очередей.
const (
	QueueSnapshotsQueued Queue = "snapshots.queued"
	QueueSnapshotsCancel Queue = "snapshots.cancel"
	QueueComputeResults  Queue = "compute.results"
	QueueDLQCompute      Queue = "dlq.compute"
)

// Routing keys.
const (
	RoutingKeyQueued  RoutingKey = "queued"
	RoutingKeyCancel  RoutingKey = "cancel"
	RoutingKeyResults RoutingKey = "results"
	RoutingKeyDLQ     RoutingKey = "compute"
)

// SetupTopology объявляет обменники, очереди и привязки.
//
// Очереди вычислений (compute.<runtime>) передаются снаружи: их набор
// определяется маршрутизацией runtime → очередь, а не самим брокером.
func SetupTopology(ctx context.Context, conn *Connection, computeQueues ...string) error {
	return conn.WithChannel(ctx, func(ch *amqp.Channel) error {
		if err := declareExchanges(ch); err != nil {
			return err
		}

		if err := declareQueues(ch, computeQueues); err != nil {
			return err
		}

		if err := bindQueues(ch, computeQueues); err != nil {
			return err
		}

		return nil
	})
}

// declareExchanges создаёт обменники.
func declareExchanges(ch *amqp.Channel) error {
	exchanges := []struct {
		name Exchange
		kind string
	}{
		{ExchangeSnapshots, "direct"},
		{ExchangeCompute, "direct"},
		{ExchangeDLQ, "direct"},
	}

	for _, ex := range exchanges {
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

	return nil
}

// declareQueues создаёт очереди.
func declareQueues(ch *amqp.Channel, computeQueues []string) error {
	// Аргументы для очередей с DLQ
	dlqArgs := amqp.Table{
		"x-dead-letter-exchange":    string(ExchangeDLQ),
		"x-dead-letter-routing-key": string(RoutingKeyDLQ),
	}

	queues := []struct {
		name Queue
		args amqp.Table
	}{
		// snapshots.queued — без DLQ (снапшот обрабатывается один раз)
		{QueueSnapshotsQueued, nil},

		// snapshots.cancel — события отмены
		{QueueSnapshotsCancel, nil},

		// compute.results — durable результаты вычислений
		{QueueComputeResults, nil},

		// dlq.compute — сама DLQ очередь
		{QueueDLQCompute, nil},
	}
	for _, q := range computeQueues {
		// compute.<runtime> — с DLQ: вызов может уйти в DLQ после retry
		queues = append(queues, struct {
			name Queue
			args amqp.Table
		}{Queue(q), dlqArgs})
	}

	for _, q := range queues {
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

// bindQueues привязывает очереди к обменникам.
func bindQueues(ch *amqp.Channel, computeQueues []string) error {
	bindings := []struct {
		queue      Queue
		routingKey RoutingKey
		exchange   Exchange
	}{
		{QueueSnapshotsQueued, RoutingKeyQueued, ExchangeSnapshots},
		{QueueSnapshotsCancel, RoutingKeyCancel, ExchangeSnapshots},
		{QueueComputeResults, RoutingKeyResults, ExchangeCompute},
		{QueueDLQCompute, RoutingKeyDLQ, ExchangeDLQ},
	}
	for _, q := range computeQueues {
		// Очередь вычислений слушает собственное имя как routing key,
		// чтобы publisher мог адресовать её результатом маршрутизации.
		bindings = append(bindings, struct {
			queue      Queue
			routingKey RoutingKey
			exchange   Exchange
		}{Queue(q), RoutingKey(q), ExchangeCompute})
	}

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
  Reputa RabbitMQ Topology:

    reputa.snapshots (direct)
    ├── snapshots.queued [routing: queued]
    │       Consumer: Orchestrator
    └── snapshots.cancel [routing: cancel]
            Consumer: Orchestrator

    reputa.compute (direct)
    ├── compute.<runtime> [routing: <имя очереди>]
    │       Consumer: Worker
    │       DLQ: dlq.compute
    └── compute.results [routing: results]
            Consumer: Orchestrator

    reputa.dlq (direct)
    └── dlq.compute [routing: compute]
            Manual processing
  `
}
