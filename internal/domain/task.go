package domain

import (
	"fmt"
	"maps"
	"time"

	"github.com/google/uuid"
)

// Значения по умолчанию для политики повторов.
const (
	DefaultMaxRetries = 3
	DefaultRetryDelay = 30 // секунды
)

// CreateTimeLayout — формат createTime в JSON-представлении.
const CreateTimeLayout = "2006-01-02 15:04:05"

// Task — одна задача автоматизации внутри pipeline.
//
// Task создаётся слоем запросов (API, daily-файл, очередь) и
// принадлежит Pipeline после добавления. Движок выполняет task
// как task chain с именем TypeName.
type Task struct {
	// ID — уникальный идентификатор task. Сохраняется при recovery.
	ID uuid.UUID

	// TaskName — отображаемое имя ("Fight", "Recruit", ...).
	TaskName string

	// TypeName — тип task chain движка. Должен совпадать с taskchain в callback.
	TypeName string

	// Params — параметры task chain. nil-значения удалены.
	Params map[string]any

	// MaxRetries — максимальное число попыток.
	MaxRetries int

	// RetryDelay — пауза между попытками в секундах.
	RetryDelay int

	// Status — текущий статус.
	Status TaskStatus

	// Batch — номер запуска pipeline, в котором task выполняется.
	// 0 — task ещё не запускался.
	Batch int

	// CreateTime — время создания.
	CreateTime time.Time
}

// TaskOption настраивает Task при создании.
type TaskOption func(*Task)

// WithRetries задаёт политику повторов.
func WithRetries(maxRetries, retryDelay int) TaskOption {
	return func(t *Task) {
		t.MaxRetries = maxRetries
		t.RetryDelay = retryDelay
	}
}

// WithID задаёт ID явно (используется при восстановлении).
func WithID(id uuid.UUID) TaskOption {
	return func(t *Task) {
		t.ID = id
	}
}

// NewTask создаёт task в статусе PENDING.
//
// Возвращает *ValidationError, если имя или тип пустые либо
// политика повторов отрицательная.
func NewTask(name, typeName string, params map[string]any, opts ...TaskOption) (*Task, error) {
	if name == "" {
		return nil, NewValidationError("taskName", "task name is required")
	}
	if typeName == "" {
		return nil, NewValidationError("typeName", "task type is required")
	}

	t := &Task{
		ID:         uuid.New(),
		TaskName:   name,
		TypeName:   typeName,
		Params:     stripNil(params),
		MaxRetries: DefaultMaxRetries,
		RetryDelay: DefaultRetryDelay,
		Status:     TaskStatusPending,
		CreateTime: time.Now(),
	}
	for _, opt := range opts {
		opt(t)
	}

	if t.MaxRetries < 0 {
		return nil, NewValidationError("maxRetries", "must not be negative")
	}
	if t.RetryDelay < 0 {
		return nil, NewValidationError("retryDelay", "must not be negative")
	}
	return t, nil
}

// RetryDelayDuration возвращает паузу между попытками.
func (t *Task) RetryDelayDuration() time.Duration {
	return time.Duration(t.RetryDelay) * time.Second
}

// Transition переводит task в новый статус.
func (t *Task) Transition(next TaskStatus) error {
	if !t.Status.CanTransition(next) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, t.Status, next)
	}
	t.Status = next
	return nil
}

// MarkRunning переводит task в статус RUNNING.
func (t *Task) MarkRunning() error {
	return t.Transition(TaskStatusRunning)
}

// MarkCompleted переводит task в статус COMPLETED.
func (t *Task) MarkCompleted() error {
	return t.Transition(TaskStatusCompleted)
}

// MarkFailed переводит task в статус FAILED.
func (t *Task) MarkFailed() error {
	return t.Transition(TaskStatusFailed)
}

// Clone возвращает глубокую копию task.
func (t *Task) Clone() *Task {
	c := *t
	c.Params = cloneMap(t.Params)
	return &c
}

// ResetForRecovery возвращает копию task в статусе PENDING с тем же ID.
func (t *Task) ResetForRecovery() *Task {
	c := t.Clone()
	c.Status = TaskStatusPending
	c.Batch = 0
	return c
}

func stripNil(params map[string]any) map[string]any {
	out := make(map[string]any, len(params))
	for k, v := range params {
		if v == nil {
			continue
		}
		out[k] = v
	}
	return out
}

func cloneMap(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v any) any {
	switch val := v.(type) {
	case map[string]any:
		return cloneMap(val)
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = cloneValue(item)
		}
		return out
	case []string:
		return append([]string(nil), val...)
	case map[string]string:
		return maps.Clone(val)
	default:
		return v
	}
}
