package domain

// TaskStatus — статус выполнения task в pipeline.
//
// Жизненный цикл:
//
//	PENDING → RUNNING → COMPLETED
//	                  ↘ FAILED (retry → обратно в RUNNING)
//	(или) → CANCELLED (из PENDING или RUNNING при stop)
type TaskStatus string

const (
	// TaskStatusPending — task ждёт своей очереди.
	TaskStatusPending TaskStatus = "pending"

	// TaskStatusRunning — движок выполняет task chain.
	TaskStatusRunning TaskStatus = "running"

	// TaskStatusCompleted — движок сообщил об успешном завершении.
	TaskStatusCompleted TaskStatus = "completed"

	// TaskStatusFailed — движок сообщил об ошибке или исчерпаны попытки.
	TaskStatusFailed TaskStatus = "failed"

	// TaskStatusCancelled — pipeline остановлен до завершения task.
	TaskStatusCancelled TaskStatus = "cancelled"
)

// IsTerminal возвращает true, если из статуса больше нет переходов.
//
// FAILED не терминальный: executor может перезапустить task.
func (s TaskStatus) IsTerminal() bool {
	switch s {
	case TaskStatusCompleted, TaskStatusCancelled:
		return true
	default:
		return false
	}
}

// IsFinished возвращает true для статусов, после которых task не выполняется.
func (s TaskStatus) IsFinished() bool {
	switch s {
	case TaskStatusCompleted, TaskStatusFailed, TaskStatusCancelled:
		return true
	default:
		return false
	}
}

// CanTransition проверяет допустимость перехода s → next.
func (s TaskStatus) CanTransition(next TaskStatus) bool {
	switch s {
	case TaskStatusPending, TaskStatusRunning:
		switch next {
		case TaskStatusRunning, TaskStatusCompleted, TaskStatusFailed, TaskStatusCancelled:
			return true
		}
	case TaskStatusFailed:
		return next == TaskStatusRunning || next == TaskStatusFailed
	}
	return false
}

// PipelineStatus — статус pipeline целиком.
//
// Жизненный цикл:
//
//	IDLE → RUNNING → COMPLETED
//	               ↘ FAILED
//	               ↘ CANCELLED (stop)
type PipelineStatus string

const (
	// PipelineStatusIdle — pipeline ещё не запускался.
	PipelineStatusIdle PipelineStatus = "idle"

	// PipelineStatusRunning — executor обходит tasks.
	PipelineStatusRunning PipelineStatus = "running"

	// PipelineStatusCompleted — все tasks batch'а завершились успешно.
	PipelineStatusCompleted PipelineStatus = "completed"

	// PipelineStatusFailed — хотя бы один task не завершился успешно.
	PipelineStatusFailed PipelineStatus = "failed"

	// PipelineStatusCancelled — pipeline остановлен пользователем или watchdog'ом.
	PipelineStatusCancelled PipelineStatus = "cancelled"
)

// IsTerminal возвращает true, если pipeline завершён.
func (s PipelineStatus) IsTerminal() bool {
	switch s {
	case PipelineStatusCompleted, PipelineStatusFailed, PipelineStatusCancelled:
		return true
	default:
		return false
	}
}

// String возвращает строковое представление PipelineStatus.
func (s PipelineStatus) String() string {
	return string(s)
}
