package scheduler

import "errors"

// Ошибки заданий.
var (
	// ErrProbeFailed — не удалось проверить процесс клиента.
	ErrProbeFailed = errors.New("client probe failed")

	// ErrRecoveryFailed — перезапуск клиента не удался.
	ErrRecoveryFailed = errors.New("client recovery failed")

	// ErrStopTimeout — pipeline не остановился за отведённое время.
	ErrStopTimeout = errors.New("pipeline did not stop in time")

	// ErrInvalidDailyFile — файл ежедневных tasks не разбирается.
	ErrInvalidDailyFile = errors.New("invalid daily task file")
)
