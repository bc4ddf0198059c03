package notify

import "errors"

// Ошибки отправки.
var (
	// ErrNotConfigured — не заданы server, email или password.
	ErrNotConfigured = errors.New("smtp is not configured")

	// ErrSendFailed — SMTP-сервер не принял письмо.
	ErrSendFailed = errors.New("send email failed")
)
