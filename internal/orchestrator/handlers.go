package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/shaiso/maa-api/internal/domain"
	"github.com/shaiso/maa-api/internal/mq"
	"github.com/shaiso/maa-api/internal/repo"
	"github.com/shaiso/maa-api/internal/steps"
)

// RequestHandler возвращает обработчик очереди pipeline.requests.
//
// Запрос заменяет pipeline и запускает его. Невалидные tasks и
// занятость отклоняются без повторной доставки.
func RequestHandler(o *Orchestrator, registry *steps.Registry, logger *slog.Logger) mq.Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return func(ctx context.Context, delivery *mq.Delivery) error {
		payload, err := mq.ParsePayload[mq.PipelineRequestPayload](&delivery.Message)
		if err != nil {
			return fmt.Errorf("%w: %v", mq.ErrRejected, err)
		}
		if len(payload.Tasks) == 0 {
			return fmt.Errorf("%w: empty task list", mq.ErrRejected)
		}

		tasks, err := registry.DecodeList(payload.Tasks)
		if err != nil {
			return fmt.Errorf("%w: %v", mq.ErrRejected, err)
		}

		logger.Debug("received pipeline.request", "message_id", delivery.Message.ID, "tasks", len(tasks))

		if err := o.Run(ctx, tasks); err != nil {
			if errors.Is(err, ErrBusy) || errors.Is(err, ErrAlreadyRunning) {
				return fmt.Errorf("%w: %v", mq.ErrRejected, err)
			}
			return err
		}
		return nil
	}
}

// HistorySaver — хранилище истории запусков.
type HistorySaver interface {
	Save(ctx context.Context, run *repo.PipelineRun) error
}

// HistoryReporter сохраняет каждый запуск в историю.
func HistoryReporter(h HistorySaver) Reporter {
	return ReporterFunc(func(ctx context.Context, r *Report) error {
		if err := h.Save(ctx, toPipelineRun(r)); err != nil {
			return fmt.Errorf("save history: %w", err)
		}
		return nil
	})
}

// EventPublisher публикует событие о завершении запуска.
type EventPublisher interface {
	PublishPipelineFinished(ctx context.Context, payload mq.PipelineFinishedPayload) error
}

// EventReporter публикует pipeline.finished в RabbitMQ.
func EventReporter(p EventPublisher) Reporter {
	return ReporterFunc(func(ctx context.Context, r *Report) error {
		if err := p.PublishPipelineFinished(ctx, toFinishedPayload(r)); err != nil {
			return fmt.Errorf("publish pipeline event: %w", err)
		}
		return nil
	})
}

// StatusSink принимает JSON-статус (retained MQTT-топик).
type StatusSink interface {
	PublishJSON(v any) error
}

// StatusReporter публикует статус и счётчики последнего запуска.
func StatusReporter(s StatusSink) Reporter {
	return ReporterFunc(func(_ context.Context, r *Report) error {
		if err := s.PublishJSON(toFinishedPayload(r)); err != nil {
			return fmt.Errorf("publish status: %w", err)
		}
		return nil
	})
}

func toPipelineRun(r *Report) *repo.PipelineRun {
	return &repo.PipelineRun{
		ID:         r.ID,
		Batch:      r.Batch,
		Status:     r.Status,
		Tasks:      r.Tasks,
		Logs:       r.Logs,
		StartedAt:  r.StartedAt,
		FinishedAt: r.FinishedAt,
	}
}

func toFinishedPayload(r *Report) mq.PipelineFinishedPayload {
	p := mq.PipelineFinishedPayload{
		RunID:      r.ID,
		Batch:      r.Batch,
		Status:     string(r.Status),
		Total:      len(r.Tasks),
		StartedAt:  r.StartedAt,
		FinishedAt: r.FinishedAt,
	}
	for _, t := range r.Tasks {
		switch t.Status {
		case domain.TaskStatusCompleted:
			p.Completed++
		case domain.TaskStatusFailed:
			p.Failed++
		}
	}
	return p
}
