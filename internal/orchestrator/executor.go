package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/shaiso/maa-api/internal/domain"
	"github.com/shaiso/maa-api/internal/engine"
	"github.com/shaiso/maa-api/internal/telemetry"
)

const defaultPollInterval = 5 * time.Second

// Executor обходит tasks текущего batch'а по одному.
//
// Для каждого task: Submit → Register → Start → ожидание движка →
// снимок экрана → проверка статуса, выставленного Dispatcher'ом.
// Неудачи повторяются до MaxRetries попыток с паузой RetryDelay.
//
// Ожидания — это wait на общем sync.Cond с ограничением по времени,
// поэтому Stop и сообщения движка будят executor сразу.
type Executor struct {
	mu         *sync.Mutex
	cond       *sync.Cond
	pipeline   *domain.Pipeline
	dispatcher *Dispatcher
	engine     engine.Engine

	screenshotter Screenshotter
	notifier      Notifier
	reporters     []Reporter

	pollInterval time.Duration
	logger       *slog.Logger

	// Под mu.
	running bool
	stopped bool
	done    chan struct{}
}

// ExecutorConfig — зависимости Executor.
type ExecutorConfig struct {
	Engine        engine.Engine
	Screenshotter Screenshotter // опционально
	Notifier      Notifier      // опционально
	Reporters     []Reporter

	// PollInterval — граница ожидания движка (default: 5s).
	PollInterval time.Duration

	Logger *slog.Logger
}

func newExecutor(mu *sync.Mutex, cond *sync.Cond, pipeline *domain.Pipeline, dispatcher *Dispatcher, cfg ExecutorConfig) *Executor {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = defaultPollInterval
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	done := make(chan struct{})
	close(done)

	return &Executor{
		mu:            mu,
		cond:          cond,
		pipeline:      pipeline,
		dispatcher:    dispatcher,
		engine:        cfg.Engine,
		screenshotter: cfg.Screenshotter,
		notifier:      cfg.Notifier,
		reporters:     cfg.Reporters,
		pollInterval:  cfg.PollInterval,
		logger:        cfg.Logger,
		done:          done,
	}
}

// Start открывает новый batch и запускает обход в отдельной горутине.
//
// Горутина не наследует отмену ctx: pipeline живёт дольше запроса,
// который его запустил. Остановка — только через Stop.
func (e *Executor) Start(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.startLocked(ctx)
}

// startLocked — Start под уже захваченным mu.
func (e *Executor) startLocked(ctx context.Context) error {
	if e.running {
		return ErrAlreadyRunning
	}
	e.running = true
	e.stopped = false
	e.done = make(chan struct{})

	batch := e.pipeline.BeginBatch()
	tasks := e.pipeline.Batch(batch)
	e.pipeline.AppendText(domain.LogLevelInfo, fmt.Sprintf("pipeline started with %d tasks", len(tasks)))
	telemetry.PipelineRunning.Set(1)

	e.logger.Info("pipeline started", "batch", batch, "tasks", len(tasks))

	go e.run(context.WithoutCancel(ctx), batch, tasks, e.done)
	return nil
}

// Stop останавливает обход: pipeline и незавершённые tasks
// становятся CANCELLED, ожидания прерываются, движок получает stop.
//
// Движок останавливается вне мьютекса: его ответ может прийти
// через ту же горутину доставки, что и сообщения для Dispatcher.
func (e *Executor) Stop(ctx context.Context) error {
	e.mu.Lock()
	e.stopped = true
	e.pipeline.Stop()
	e.pipeline.AppendText(domain.LogLevelWarning, "stop requested")
	e.cond.Broadcast()
	e.mu.Unlock()

	e.logger.Info("pipeline stop requested")

	if err := e.engine.Stop(ctx); err != nil {
		e.logger.Warn("engine stop failed", "error", err)
		return fmt.Errorf("stop engine: %w", err)
	}
	return nil
}

// IsRunning возвращает true, пока горутина обхода не завершилась.
func (e *Executor) IsRunning() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.running
}

// Wait блокируется до завершения горутины обхода.
func (e *Executor) Wait(ctx context.Context) error {
	e.mu.Lock()
	done := e.done
	e.mu.Unlock()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (e *Executor) run(ctx context.Context, batch int, tasks []*domain.Task, done chan struct{}) {
	startedAt := time.Now()
	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("pipeline executor panic", "panic", r)
			e.withLock(func() {
				e.pipeline.SetStatus(domain.PipelineStatusFailed)
				e.pipeline.AppendText(domain.LogLevelError, fmt.Sprintf("pipeline crashed: %v", r))
			})
		}

		e.withLock(func() {
			e.running = false
			e.cond.Broadcast()
		})
		telemetry.PipelineRunning.Set(0)
		close(done)
	}()

	for _, task := range tasks {
		if e.isStopped() {
			e.logger.Info("pipeline stopped manually")
			break
		}
		e.runTask(ctx, task)
	}

	status := e.finish(tasks)
	telemetry.PipelineRuns.WithLabelValues(string(status)).Inc()

	e.notify(ctx, status)
	e.report(ctx, batch, startedAt)
}

// runTask выполняет один task с повторами.
func (e *Executor) runTask(ctx context.Context, task *domain.Task) {
	log := telemetry.WithTask(e.logger, task.ID.String(), task.TypeName)

	attempts := 0
	for attempts < task.MaxRetries && !e.isStopped() {
		id, err := e.engine.Submit(ctx, task.TypeName, task.Params)
		if err == nil && id == 0 {
			err = engine.ErrSubmitRejected
		}
		if err != nil {
			attempts++
			err = fmt.Errorf("%w: %w", ErrSubmitFailed, err)
			e.retry(task, attempts, "submit_failed", "submit task [%s] failed (attempt %d/%d)", err)
			continue
		}

		// Stop мог прийти, пока Submit был в полёте: его engine.Stop
		// уже отработал, и запускать движок нельзя.
		if e.abortIfStopped(ctx, log) {
			return
		}

		e.dispatcher.Register(id, task.ID)

		log.Info("starting task", "engine_task_id", id, "attempt", attempts+1)
		if err := e.engine.Start(ctx); err != nil {
			attempts++
			err = fmt.Errorf("%w: %w", ErrStartFailed, err)
			e.retry(task, attempts, "start_failed", "start task [%s] failed (attempt %d/%d)", err)
			continue
		}
		if e.abortIfStopped(ctx, log) {
			return
		}

		e.awaitEngine()
		e.captureScreen(ctx)

		switch e.statusOf(task) {
		case domain.TaskStatusCompleted:
			telemetry.TaskAttempts.WithLabelValues(task.TypeName, "completed").Inc()
			log.Info("task completed")
			return
		case domain.TaskStatusFailed:
			attempts++
			e.retry(task, attempts, "failed", "task [%s] failed (attempt %d/%d)", nil)
		default:
			// Движок завершился без итогового сообщения: считаем успехом.
			telemetry.TaskAttempts.WithLabelValues(task.TypeName, "finished").Inc()
			return
		}
	}

	if e.isStopped() {
		return
	}

	log.Error("max retries exhausted, skipping task", "attempts", attempts)
	e.withLock(func() {
		if task.Status.CanTransition(domain.TaskStatusFailed) {
			task.Status = domain.TaskStatusFailed
		}
		e.pipeline.AppendText(domain.LogLevelError, fmt.Sprintf("task [%s] reached max retries, skipped", task.TaskName))
	})
}

// retry логирует неудачную попытку и, если попытки остались,
// ждёт RetryDelay (ожидание прерывается Stop).
func (e *Executor) retry(task *domain.Task, attempts int, result, format string, cause error) {
	telemetry.TaskAttempts.WithLabelValues(task.TypeName, result).Inc()

	line := fmt.Sprintf(format, task.TaskName, attempts, task.MaxRetries)
	attrs := []any{"task_id", task.ID, "task_type", task.TypeName, "attempt", attempts, "result", result}
	if cause != nil {
		attrs = append(attrs, "error", cause)
	}
	e.logger.Warn("task attempt failed", attrs...)

	e.mu.Lock()
	defer e.mu.Unlock()

	e.pipeline.AppendText(domain.LogLevelWarning, line)
	if attempts < task.MaxRetries {
		e.sleepLocked(task.RetryDelayDuration())
	}
}

// awaitEngine ждёт, пока движок не закончит или не придёт stop.
func (e *Executor) awaitEngine() {
	e.mu.Lock()
	defer e.mu.Unlock()

	for !e.stopped && e.engine.Running() {
		e.waitLocked(e.pollInterval)
	}
}

// sleepLocked ждёт d или stop. Вызывается под mu.
func (e *Executor) sleepLocked(d time.Duration) {
	deadline := time.Now().Add(d)
	for !e.stopped {
		left := time.Until(deadline)
		if left <= 0 {
			return
		}
		e.waitLocked(left)
	}
}

// waitLocked — cond.Wait, ограниченный по времени. Вызывается под mu.
// Возможны ранние пробуждения: вызывающий проверяет условие в цикле.
func (e *Executor) waitLocked(d time.Duration) {
	timer := time.AfterFunc(d, func() {
		e.mu.Lock()
		e.cond.Broadcast()
		e.mu.Unlock()
	})
	e.cond.Wait()
	timer.Stop()
}

func (e *Executor) captureScreen(ctx context.Context) {
	if e.screenshotter == nil {
		return
	}
	img, err := e.screenshotter.CaptureBase64(ctx)
	if err != nil {
		e.logger.Warn("screenshot failed", "error", err)
		return
	}
	e.withLock(func() {
		e.pipeline.AppendImage(img)
	})
}

// finish выставляет итоговый статус pipeline.
func (e *Executor) finish(tasks []*domain.Task) domain.PipelineStatus {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.stopped {
		e.pipeline.SetStatus(domain.PipelineStatusCancelled)
		e.pipeline.AppendText(domain.LogLevelWarning, "pipeline stopped manually")
		e.logger.Info("pipeline cancelled")
		return domain.PipelineStatusCancelled
	}

	for _, t := range tasks {
		if t.Status != domain.TaskStatusCompleted {
			e.pipeline.SetStatus(domain.PipelineStatusFailed)
			e.pipeline.AppendText(domain.LogLevelError, "pipeline finished with errors")
			e.logger.Error("pipeline failed")
			return domain.PipelineStatusFailed
		}
	}

	e.pipeline.SetStatus(domain.PipelineStatusCompleted)
	e.pipeline.AppendText(domain.LogLevelInfo, "all tasks completed")
	e.logger.Info("pipeline completed")
	return domain.PipelineStatusCompleted
}

func (e *Executor) notify(ctx context.Context, status domain.PipelineStatus) {
	if e.notifier == nil {
		return
	}

	var view domain.PipelineView
	e.withLock(func() { view = e.pipeline.View() })

	if err := e.notifier.NotifyPipeline(ctx, view); err != nil {
		e.logger.Warn("summary notification failed", "status", status, "error", err)
		e.withLock(func() {
			e.pipeline.AppendText(domain.LogLevelWarning, "summary notification failed")
		})
		return
	}
	e.withLock(func() {
		e.pipeline.AppendText(domain.LogLevelInfo, "summary notification sent")
	})
}

func (e *Executor) report(ctx context.Context, batch int, startedAt time.Time) {
	if len(e.reporters) == 0 {
		return
	}

	r := &Report{ID: uuid.New(), Batch: batch, StartedAt: startedAt, FinishedAt: time.Now()}
	e.withLock(func() {
		view := e.pipeline.View()
		r.Status = view.Status
		r.Logs = view.TextLogs()
		for _, t := range view.Tasks {
			if t.Batch == batch {
				r.Tasks = append(r.Tasks, t)
			}
		}
	})

	var errs []error
	for _, rep := range e.reporters {
		if err := rep.Report(ctx, r); err != nil {
			errs = append(errs, err)
		}
	}
	if err := errors.Join(errs...); err != nil {
		e.logger.Warn("pipeline report failed", "error", err)
	}
}

// abortIfStopped останавливает движок повторно, если stop пришёл
// во время вызова движка. Возвращает true, если обход прерван.
func (e *Executor) abortIfStopped(ctx context.Context, log *slog.Logger) bool {
	if !e.isStopped() {
		return false
	}
	log.Info("stop arrived during engine call, stopping engine again")
	if err := e.engine.Stop(ctx); err != nil {
		log.Warn("engine stop failed", "error", err)
	}
	return true
}

func (e *Executor) isStopped() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.stopped
}

func (e *Executor) statusOf(task *domain.Task) domain.TaskStatus {
	e.mu.Lock()
	defer e.mu.Unlock()
	return task.Status
}

func (e *Executor) withLock(fn func()) {
	e.mu.Lock()
	defer e.mu.Unlock()
	fn()
}
