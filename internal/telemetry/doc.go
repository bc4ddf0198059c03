// Package telemetry настраивает логирование и метрики maa-api.
//
// SetupLogger строит slog.Logger по уровню и формату из конфигурации
// (text для консоли, json для сборщиков логов).
//
// Метрики регистрируются в prometheus.DefaultRegisterer при импорте
// пакета и отдаются на /metrics: попытки tasks, запуски pipeline,
// сообщения движка, recovery и HTTP-запросы.
package telemetry
