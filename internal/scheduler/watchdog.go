package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/shaiso/maa-api/internal/domain"
	"github.com/shaiso/maa-api/internal/steps"
	"github.com/shaiso/maa-api/internal/telemetry"
)

// Pipeline — операции Orchestrator, нужные заданиям.
type Pipeline interface {
	IsRunning() bool
	UnfinishedBatch() []*domain.Task
	Stop(ctx context.Context) error
	Requeue(tasks []*domain.Task) error
	Clear() error
	AppendAll(tasks []*domain.Task) error
	Start(ctx context.Context) error
	View() domain.PipelineView
	AppendLog(level domain.LogLevel, msg string)
}

// Probe проверяет, жив ли процесс игрового клиента.
type Probe interface {
	IsClientProcessPresent(ctx context.Context) (bool, error)
}

// Значения по умолчанию для Watchdog.
const (
	DefaultClientType       = "Bilibili"
	defaultStopPollInterval = 100 * time.Millisecond
	defaultRecoveryTimeout  = 30 * time.Minute
)

// WatchdogConfig — конфигурация Watchdog.
type WatchdogConfig struct {
	Pipeline Pipeline
	Probe    Probe

	// ClientType — клиент для CloseDown/StartUp (default: Bilibili).
	ClientType string

	// StopPollInterval — период опроса IsRunning (default: 100ms).
	StopPollInterval time.Duration

	// RecoveryTimeout — предел ожидания каждой фазы (default: 30m).
	RecoveryTimeout time.Duration

	Logger *slog.Logger
}

// Watchdog перезапускает клиент, если он вылетел во время работы
// pipeline, и продолжает незавершённые tasks.
//
// Порядок восстановления:
//  1. снимок незавершённых tasks текущего batch'а
//  2. Stop и ожидание, пока executor не освободится
//  3. CloseDown + StartUp отдельным запуском
//  4. снимок возвращается в pipeline с прежними ID и запускается
//
// Если восстановление не удалось, снимок сохраняется и следующий
// Tick повторяет попытку, даже если pipeline уже не работает.
type Watchdog struct {
	pipeline Pipeline
	probe    Probe
	client   string
	poll     time.Duration
	timeout  time.Duration
	logger   *slog.Logger

	mu      sync.Mutex
	pending []*domain.Task
	retry   bool
}

// NewWatchdog создаёт Watchdog.
func NewWatchdog(cfg WatchdogConfig) *Watchdog {
	if cfg.ClientType == "" {
		cfg.ClientType = DefaultClientType
	}
	if cfg.StopPollInterval <= 0 {
		cfg.StopPollInterval = defaultStopPollInterval
	}
	if cfg.RecoveryTimeout <= 0 {
		cfg.RecoveryTimeout = defaultRecoveryTimeout
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Watchdog{
		pipeline: cfg.Pipeline,
		probe:    cfg.Probe,
		client:   cfg.ClientType,
		poll:     cfg.StopPollInterval,
		timeout:  cfg.RecoveryTimeout,
		logger:   cfg.Logger.With("job", "watchdog"),
	}
}

// Pending сообщает, ждёт ли снимок повторного восстановления.
func (w *Watchdog) Pending() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.retry
}

// Tick выполняет одну проверку.
func (w *Watchdog) Tick(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if !w.retry {
		crashed, err := w.detectCrash(ctx)
		if err != nil || !crashed {
			return err
		}
		w.pending = w.pipeline.UnfinishedBatch()
		w.retry = true

		w.logger.Warn("client crash detected while pipeline running", "unfinished", len(w.pending))
		w.pipeline.AppendLog(domain.LogLevelWarning, "client crash detected, restarting")
	} else {
		w.logger.Info("retrying client recovery", "unfinished", len(w.pending))
	}

	if err := w.recover(ctx, w.pending); err != nil {
		telemetry.Recoveries.WithLabelValues("failed").Inc()
		w.logger.Error("client recovery failed", "error", err)
		w.pipeline.AppendLog(domain.LogLevelError, "client restart failed, will retry")
		return err
	}

	telemetry.Recoveries.WithLabelValues("recovered").Inc()
	w.logger.Info("client recovered, unfinished tasks resumed", "tasks", len(w.pending))
	w.pending = nil
	w.retry = false
	return nil
}

func (w *Watchdog) detectCrash(ctx context.Context) (bool, error) {
	if !w.pipeline.IsRunning() {
		return false, nil
	}
	present, err := w.probe.IsClientProcessPresent(ctx)
	if err != nil {
		w.logger.Warn("client probe failed, skipping tick", "error", err)
		return false, fmt.Errorf("%w: %w", ErrProbeFailed, err)
	}
	return !present, nil
}

func (w *Watchdog) recover(ctx context.Context, snapshot []*domain.Task) error {
	if err := w.pipeline.Stop(ctx); err != nil {
		// Executor остановлен в любом случае; движок проверит busy-guard.
		w.logger.Warn("stop during recovery failed", "error", err)
	}
	if err := w.waitIdle(ctx); err != nil {
		return err
	}
	w.logger.Info("pipeline interrupted")

	closeDown, err := steps.NewCloseDownTask(w.client)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrRecoveryFailed, err)
	}
	startUp, err := steps.NewStartUpTask(w.client)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrRecoveryFailed, err)
	}
	if err := w.run(ctx, []*domain.Task{closeDown, startUp}); err != nil {
		return err
	}
	if !w.completed(startUp) {
		return fmt.Errorf("%w: client did not start", ErrRecoveryFailed)
	}
	w.logger.Info("client restarted")

	if len(snapshot) == 0 {
		return nil
	}
	// Новые копии: снимок должен пережить повторную неудачу.
	resume := make([]*domain.Task, 0, len(snapshot))
	for _, t := range snapshot {
		resume = append(resume, t.ResetForRecovery())
	}
	if err := w.pipeline.Requeue(resume); err != nil {
		return fmt.Errorf("%w: requeue unfinished tasks: %w", ErrRecoveryFailed, err)
	}
	if err := w.pipeline.Start(ctx); err != nil {
		return fmt.Errorf("%w: resume pipeline: %w", ErrRecoveryFailed, err)
	}
	return nil
}

// run выполняет tasks отдельным запуском и ждёт его окончания.
func (w *Watchdog) run(ctx context.Context, tasks []*domain.Task) error {
	if err := w.pipeline.Requeue(tasks); err != nil {
		return fmt.Errorf("%w: queue restart: %w", ErrRecoveryFailed, err)
	}
	if err := w.pipeline.Start(ctx); err != nil {
		return fmt.Errorf("%w: start restart: %w", ErrRecoveryFailed, err)
	}
	return w.waitIdle(ctx)
}

func (w *Watchdog) completed(task *domain.Task) bool {
	for _, t := range w.pipeline.View().Tasks {
		if t.ID == task.ID {
			return t.Status == domain.TaskStatusCompleted
		}
	}
	return false
}

// waitIdle опрашивает IsRunning, пока executor не освободится.
func (w *Watchdog) waitIdle(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, w.timeout)
	defer cancel()

	ticker := time.NewTicker(w.poll)
	defer ticker.Stop()

	for w.pipeline.IsRunning() {
		select {
		case <-ctx.Done():
			return fmt.Errorf("%w: %w", ErrStopTimeout, ctx.Err())
		case <-ticker.C:
		}
	}
	return nil
}
