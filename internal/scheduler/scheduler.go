package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
)

// Расписания по умолчанию.
const (
	DefaultWatchdogSpec = "@every 300s"
	DefaultDailySpec    = "0 7,19 * * *"
	DefaultSummarySpec  = "0 23 * * *"
)

// Job — периодическое задание.
type Job interface {
	Tick(ctx context.Context) error
}

// Config — конфигурация Scheduler. Задания с nil не регистрируются.
type Config struct {
	Watchdog     *Watchdog
	WatchdogSpec string // default: @every 300s

	Daily     *Daily
	DailySpec string // default: 0 7,19 * * *

	Summary     *Summary
	SummarySpec string // default: 0 23 * * *

	// Location — часовой пояс расписаний (default: time.Local).
	Location *time.Location

	Logger *slog.Logger
}

// Entry — зарегистрированное задание.
type Entry struct {
	Name string    `json:"name"`
	Spec string    `json:"spec"`
	Next time.Time `json:"next"`
}

// Scheduler выполняет задания по cron-расписаниям.
type Scheduler struct {
	cron   *cron.Cron
	logger *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc

	names map[cron.EntryID]string
	specs map[cron.EntryID]string
}

// New создаёт Scheduler и регистрирует задания.
func New(cfg Config) (*Scheduler, error) {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Location == nil {
		cfg.Location = time.Local
	}

	cl := cronLogger{logger: cfg.Logger}
	s := &Scheduler{
		cron: cron.New(
			cron.WithParser(cronParser),
			cron.WithLocation(cfg.Location),
			cron.WithLogger(cl),
			cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
		),
		logger: cfg.Logger,
		names:  make(map[cron.EntryID]string),
		specs:  make(map[cron.EntryID]string),
	}
	s.ctx, s.cancel = context.WithCancel(context.Background())

	type scheduled struct {
		name string
		spec string
		job  Job
	}
	var jobs []scheduled
	if cfg.Watchdog != nil {
		jobs = append(jobs, scheduled{"watchdog", orDefault(cfg.WatchdogSpec, DefaultWatchdogSpec), cfg.Watchdog})
	}
	if cfg.Daily != nil {
		jobs = append(jobs, scheduled{"daily", orDefault(cfg.DailySpec, DefaultDailySpec), cfg.Daily})
	}
	if cfg.Summary != nil {
		jobs = append(jobs, scheduled{"summary", orDefault(cfg.SummarySpec, DefaultSummarySpec), cfg.Summary})
	}

	for _, j := range jobs {
		if err := s.Add(j.name, j.spec, j.job); err != nil {
			return nil, err
		}
	}
	return s, nil
}

func orDefault(spec, def string) string {
	if spec == "" {
		return def
	}
	return spec
}

// Add регистрирует задание под именем name.
func (s *Scheduler) Add(name, spec string, job Job) error {
	if err := ValidateCronExpr(spec); err != nil {
		return fmt.Errorf("job %s: %w", name, err)
	}
	id, err := s.cron.AddFunc(spec, func() {
		s.runJob(name, job)
	})
	if err != nil {
		return fmt.Errorf("add job %s: %w", name, err)
	}
	s.names[id] = name
	s.specs[id] = spec
	s.logger.Info("job scheduled", "job", name, "spec", spec)
	return nil
}

func (s *Scheduler) runJob(name string, job Job) {
	started := time.Now()
	if err := job.Tick(s.ctx); err != nil {
		s.logger.Error("job failed", "job", name, "error", err, "duration", time.Since(started))
		return
	}
	s.logger.Debug("job finished", "job", name, "duration", time.Since(started))
}

// Start запускает расписания в фоне.
func (s *Scheduler) Start() {
	s.cron.Start()
	s.logger.Info("scheduler started", "jobs", len(s.names))
}

// Stop останавливает расписания и ждёт выполняющиеся задания,
// но не дольше ctx. Контекст заданий отменяется.
func (s *Scheduler) Stop(ctx context.Context) error {
	done := s.cron.Stop()
	s.cancel()

	select {
	case <-done.Done():
		s.logger.Info("scheduler stopped")
		return nil
	case <-ctx.Done():
		return fmt.Errorf("wait for running jobs: %w", ctx.Err())
	}
}

// Entries возвращает зарегистрированные задания.
func (s *Scheduler) Entries() []Entry {
	var out []Entry
	for _, e := range s.cron.Entries() {
		out = append(out, Entry{Name: s.names[e.ID], Spec: s.specs[e.ID], Next: e.Next})
	}
	return out
}
