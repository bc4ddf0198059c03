package scheduler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strconv"
	"time"

	"github.com/shaiso/maa-api/internal/domain"
	"github.com/shaiso/maa-api/internal/steps"
)

// dailyFile — формат файла ежедневных tasks:
//
//	{
//	  "enable": true,
//	  "weekday_task": {"0": "weekday", "5": "weekend", "6": "weekend"},
//	  "task_dict": {
//	    "weekday": [{"name": "StartUp", "client_type": "Bilibili"}, ...],
//	    "weekend": [...]
//	  }
//	}
//
// Ключи weekday_task — дни недели, "0" — понедельник.
type dailyFile struct {
	Enable      *bool                        `json:"enable"`
	WeekdayTask map[string]string            `json:"weekday_task"`
	TaskDict    map[string][]json.RawMessage `json:"task_dict"`
}

// DailyConfig — конфигурация Daily.
type DailyConfig struct {
	Pipeline Pipeline
	Registry *steps.Registry

	// Path — путь к JSON-файлу с tasks.
	Path string

	// Now — источник времени (для тестов). Default: time.Now.
	Now func() time.Time

	Logger *slog.Logger
}

// Daily заменяет pipeline набором tasks на текущий день недели
// и запускает его. Пропускает запуск, если файла нет, он выключен
// или pipeline уже работает.
type Daily struct {
	pipeline Pipeline
	registry *steps.Registry
	path     string
	now      func() time.Time
	logger   *slog.Logger
}

// NewDaily создаёт Daily.
func NewDaily(cfg DailyConfig) *Daily {
	if cfg.Registry == nil {
		cfg.Registry = steps.DefaultRegistry()
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Daily{
		pipeline: cfg.Pipeline,
		registry: cfg.Registry,
		path:     cfg.Path,
		now:      cfg.Now,
		logger:   cfg.Logger.With("job", "daily"),
	}
}

// Tick запускает tasks текущего дня.
func (d *Daily) Tick(ctx context.Context) error {
	tasks, enabled, err := d.Load()
	if err != nil {
		return err
	}
	if !enabled {
		d.logger.Debug("daily tasks disabled")
		return nil
	}
	if d.pipeline.IsRunning() {
		d.logger.Info("pipeline running, daily tasks skipped")
		return nil
	}

	if err := d.pipeline.Clear(); err != nil {
		return fmt.Errorf("clear pipeline: %w", err)
	}
	if err := d.pipeline.AppendAll(tasks); err != nil {
		return fmt.Errorf("append daily tasks: %w", err)
	}
	if err := d.pipeline.Start(ctx); err != nil {
		return fmt.Errorf("start daily tasks: %w", err)
	}

	d.logger.Info("daily tasks started", "tasks", len(tasks))
	return nil
}

// Load читает файл и возвращает tasks на сегодня.
// Отсутствующий файл означает выключенное задание.
func (d *Daily) Load() ([]*domain.Task, bool, error) {
	data, err := os.ReadFile(d.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("read daily task file: %w", err)
	}

	var f dailyFile
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, false, fmt.Errorf("%w: %v", ErrInvalidDailyFile, err)
	}
	if f.Enable != nil && !*f.Enable {
		return nil, false, nil
	}

	key := f.WeekdayTask[strconv.Itoa(mondayFirst(d.now().Weekday()))]
	tasks, err := d.registry.DecodeList(f.TaskDict[key])
	if err != nil {
		return nil, false, fmt.Errorf("%w: %s: %w", ErrInvalidDailyFile, key, err)
	}
	return tasks, true, nil
}

// mondayFirst переводит time.Weekday в нумерацию с понедельника.
func mondayFirst(wd time.Weekday) int {
	return (int(wd) + 6) % 7
}
