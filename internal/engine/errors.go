package engine

import "errors"

// Ошибки взаимодействия с движком.
var (
	// ErrSubmitRejected — движок отказался принять task chain.
	ErrSubmitRejected = errors.New("engine rejected task")

	// ErrStartRejected — движок отказался начать выполнение.
	ErrStartRejected = errors.New("engine refused to start")

	// ErrRequestTimeout — ответ движка не получен вовремя.
	ErrRequestTimeout = errors.New("engine request timeout")

	// ErrBridgeClosed — мост закрыт.
	ErrBridgeClosed = errors.New("engine bridge closed")
)
