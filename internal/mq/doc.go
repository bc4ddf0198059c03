// Package mq предоставляет инфраструктуру для работы с RabbitMQ.
//
// Структура:
//   - connection.go — соединение с reconnect
//   - topology.go   — exchanges, queues, bindings
//   - publisher.go  — публикация сообщений
//   - consumer.go   — потребление сообщений
//
// Типы сообщений:
//   - pipeline.request  — внешний запрос на запуск набора tasks
//   - pipeline.finished — итог запуска pipeline
//
// Exchanges:
//   - maa.pipeline — запросы и события pipeline
//   - maa.dlq      — отклонённые запросы
package mq
