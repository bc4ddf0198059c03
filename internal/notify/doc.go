// Package notify отправляет сводки по pipeline на почту.
//
// Письмо — HTML из встроенного шаблона: статус, дата и журнал
// pipeline, снимки экрана встраиваются как data URI.
package notify
