package orchestrator

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// Ошибки оркестратора.
var (
	// ErrBusy — операция запрещена, пока движок или executor работают.
	ErrBusy = errors.New("pipeline is busy")

	// ErrAlreadyRunning — executor уже обходит pipeline.
	ErrAlreadyRunning = errors.New("pipeline already running")

	// ErrSubmitFailed — движок не принял task chain.
	ErrSubmitFailed = errors.New("task submission failed")

	// ErrStartFailed — движок не начал выполнение.
	ErrStartFailed = errors.New("engine start failed")

	// ErrChainMismatch — тип task chain в сообщении не совпал с task.
	ErrChainMismatch = errors.New("task chain mismatch")

	// ErrMalformedDetails — details сообщения движка не разбираются.
	ErrMalformedDetails = errors.New("malformed callback details")
)

// ChainMismatchError — сообщение движка о task chain другого типа.
type ChainMismatchError struct {
	TaskID    uuid.UUID // task, найденный по taskid
	TaskType  string    // ожидаемый тип
	TaskChain string    // тип из сообщения
}

// Error реализует интерфейс error.
func (e *ChainMismatchError) Error() string {
	return fmt.Sprintf("task chain mismatch: task %s has type %q, callback reports %q",
		e.TaskID, e.TaskType, e.TaskChain)
}

// Unwrap возвращает ErrChainMismatch.
func (e *ChainMismatchError) Unwrap() error {
	return ErrChainMismatch
}
