// Package api содержит HTTP API сервер.
//
// Структура:
//   - handler.go          — Handler с зависимостями (pipeline, реестр, история, экран)
//   - routes.go           — регистрация маршрутов
//   - middleware.go       — logging, recovery, metrics, авторизация по токену
//   - response.go         — унифицированные JSON-ответы и обработка ошибок
//   - dto.go              — request/response
//   - pipeline_handler.go — обработчики для /api/maa/pipeline
//   - history_handler.go  — история запусков
//   - device_handler.go   — снимок экрана
package api
