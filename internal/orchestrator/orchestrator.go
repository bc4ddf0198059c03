package orchestrator

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/shaiso/maa-api/internal/domain"
	"github.com/shaiso/maa-api/internal/engine"
)

// Orchestrator — единственная точка управления pipeline.
//
// Orchestrator владеет:
//   - Pipeline (tasks, статус, журнал)
//   - Dispatcher (сообщения движка → статусы tasks)
//   - Executor (последовательный обход с повторами)
//   - общим мьютексом и sync.Cond для Executor и Dispatcher
//
// Изменяющие операции (Append, Clear, Start, Requeue, Run) запрещены,
// пока движок или executor работают: возвращается ErrBusy.
// Stop разрешён всегда.
type Orchestrator struct {
	mu       sync.Mutex
	cond     *sync.Cond
	pipeline *domain.Pipeline

	engine     engine.Engine
	dispatcher *Dispatcher
	executor   *Executor

	logger *slog.Logger
}

// Config — конфигурация Orchestrator.
type Config struct {
	// Engine — движок автоматизации (обязателен).
	Engine engine.Engine

	// Screenshotter — снимок экрана после каждой попытки (опционально).
	Screenshotter Screenshotter

	// Notifier — сводка по завершении pipeline (опционально).
	Notifier Notifier

	// Reporters — получатели итогов запуска (история, события, статус).
	Reporters []Reporter

	// PollInterval — граница ожидания движка (default: 5s).
	PollInterval time.Duration

	Logger *slog.Logger
}

// New создаёт Orchestrator и подписывает Dispatcher на сообщения движка.
func New(cfg Config) *Orchestrator {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	o := &Orchestrator{
		pipeline: domain.NewPipeline(),
		engine:   cfg.Engine,
		logger:   logger,
	}
	o.cond = sync.NewCond(&o.mu)
	o.dispatcher = NewDispatcher(&o.mu, o.cond, o.pipeline, logger)
	o.executor = newExecutor(&o.mu, o.cond, o.pipeline, o.dispatcher, ExecutorConfig{
		Engine:        cfg.Engine,
		Screenshotter: cfg.Screenshotter,
		Notifier:      cfg.Notifier,
		Reporters:     cfg.Reporters,
		PollInterval:  cfg.PollInterval,
		Logger:        logger,
	})

	cfg.Engine.SetCallback(o.dispatcher.Callback())
	return o
}

// Dispatcher возвращает обработчик сообщений движка.
func (o *Orchestrator) Dispatcher() *Dispatcher {
	return o.dispatcher
}

// busyLocked проверяет занятость. Вызывается под mu.
func (o *Orchestrator) busyLocked() bool {
	return o.engine.Running() || o.executor.running
}

// Append добавляет task в конец pipeline.
func (o *Orchestrator) Append(task *domain.Task) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.busyLocked() {
		return ErrBusy
	}
	o.pipeline.Add(task)
	o.logger.Debug("task appended", "task_id", task.ID, "task_type", task.TypeName)
	return nil
}

// AppendAll добавляет несколько tasks атомарно.
func (o *Orchestrator) AppendAll(tasks []*domain.Task) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.busyLocked() {
		return ErrBusy
	}
	for _, t := range tasks {
		o.pipeline.Add(t)
	}
	return nil
}

// Clear удаляет все tasks и журнал.
func (o *Orchestrator) Clear() error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.busyLocked() {
		return ErrBusy
	}
	o.pipeline.Clear()
	o.logger.Info("pipeline cleared")
	return nil
}

// Requeue добавляет tasks, вытесняя записи с теми же ID.
// Используется при recovery.
func (o *Orchestrator) Requeue(tasks []*domain.Task) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.busyLocked() {
		return ErrBusy
	}
	o.pipeline.Requeue(tasks)
	return nil
}

// Start запускает обход pending tasks.
func (o *Orchestrator) Start(ctx context.Context) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.busyLocked() {
		return ErrBusy
	}
	return o.executor.startLocked(ctx)
}

// Run заменяет содержимое pipeline на tasks и запускает обход.
// Очистка, добавление и запуск идут под одной блокировкой.
func (o *Orchestrator) Run(ctx context.Context, tasks []*domain.Task) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.busyLocked() {
		return ErrBusy
	}
	o.pipeline.Clear()
	for _, t := range tasks {
		o.pipeline.Add(t)
	}
	o.logger.Info("pipeline replaced", "tasks", len(tasks))
	return o.executor.startLocked(ctx)
}

// Stop останавливает pipeline и движок.
func (o *Orchestrator) Stop(ctx context.Context) error {
	return o.executor.Stop(ctx)
}

// IsRunning возвращает true, пока executor обходит tasks.
func (o *Orchestrator) IsRunning() bool {
	return o.executor.IsRunning()
}

// Wait ждёт завершения текущего обхода.
func (o *Orchestrator) Wait(ctx context.Context) error {
	return o.executor.Wait(ctx)
}

// View возвращает снимок pipeline.
func (o *Orchestrator) View() domain.PipelineView {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.pipeline.View()
}

// Status возвращает статус pipeline.
func (o *Orchestrator) Status() domain.PipelineStatus {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.pipeline.Status()
}

// UnfinishedBatch возвращает копии незавершённых tasks текущего
// batch'а в статусе PENDING с прежними ID.
func (o *Orchestrator) UnfinishedBatch() []*domain.Task {
	o.mu.Lock()
	defer o.mu.Unlock()

	var out []*domain.Task
	for _, t := range o.pipeline.Batch(o.pipeline.CurrentBatch()) {
		if t.Status == domain.TaskStatusCompleted {
			continue
		}
		out = append(out, t.ResetForRecovery())
	}
	return out
}

// AppendLog добавляет запись в журнал pipeline.
func (o *Orchestrator) AppendLog(level domain.LogLevel, msg string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.pipeline.AppendText(level, msg)
}
