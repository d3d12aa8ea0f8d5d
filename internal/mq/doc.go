// Package mq предоставляет инфраструктуру для работы с RabbitMQ.
//
// Структура:
//   - connection.go — управление соединением с RabbitMQ (reconnect, graceful shutdown)
//   - topology.go   — объявление exchanges, queues, bindings
//   - publisher.go  — публикация сообщений в очереди
//   - consumer.go   — потребление сообщений из очередей
//
// Типы сообщений:
//   - snapshot.queued  — новый снапшот ожидает обработки
//   - snapshot.cancel  — запрошена отмена снапшота
//   - compute.invoke   — вызов вычисления в очереди runtime
//   - compute.result   — durable результат вычисления
//
// Exchanges:
//   - reputa.snapshots — события снапшотов
//   - reputa.compute   — вызовы и результаты вычислений
//   - reputa.dlq       — dead letter queue
package mq
