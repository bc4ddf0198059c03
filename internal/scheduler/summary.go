package scheduler

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/shaiso/maa-api/internal/orchestrator"
)

// Summary отправляет текущее состояние pipeline через Notifier.
type Summary struct {
	pipeline Pipeline
	notifier orchestrator.Notifier
	logger   *slog.Logger
}

// NewSummary создаёт Summary.
func NewSummary(pipeline Pipeline, notifier orchestrator.Notifier, logger *slog.Logger) *Summary {
	if logger == nil {
		logger = slog.Default()
	}
	return &Summary{
		pipeline: pipeline,
		notifier: notifier,
		logger:   logger.With("job", "summary"),
	}
}

// Tick отправляет сводку. Пустой pipeline не отправляется.
func (s *Summary) Tick(ctx context.Context) error {
	view := s.pipeline.View()
	if len(view.Tasks) == 0 {
		s.logger.Debug("pipeline empty, summary skipped")
		return nil
	}
	if err := s.notifier.NotifyPipeline(ctx, view); err != nil {
		return fmt.Errorf("send daily summary: %w", err)
	}
	s.logger.Info("daily summary sent", "status", view.Status, "tasks", len(view.Tasks))
	return nil
}
