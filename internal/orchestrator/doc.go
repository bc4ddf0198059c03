// Package orchestrator управляет последовательным выполнением pipeline.
//
// Состав:
//   - Orchestrator — фасад: busy guard, изменение pipeline, Start/Stop
//   - Dispatcher — сообщения движка → статусы tasks и журнал
//   - Executor — обход tasks одного batch'а с повторами и ограниченными
//     ожиданиями
//   - handlers.go — адаптеры к RabbitMQ, Postgres и MQTT
//
// Executor и Dispatcher работают в разных горутинах и делят один
// мьютекс и sync.Cond, принадлежащие Orchestrator.
package orchestrator
