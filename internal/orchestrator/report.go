package orchestrator

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/shaiso/maa-api/internal/domain"
)

// Report — итог одного запуска pipeline.
type Report struct {
	ID         uuid.UUID             `json:"id"`
	Batch      int                   `json:"batch"`
	Status     domain.PipelineStatus `json:"status"`
	Tasks      []domain.TaskView     `json:"tasks"`
	Logs       []domain.LogEntry     `json:"logs"`
	StartedAt  time.Time             `json:"started_at"`
	FinishedAt time.Time             `json:"finished_at"`
}

// Duration возвращает продолжительность запуска.
func (r *Report) Duration() time.Duration {
	return r.FinishedAt.Sub(r.StartedAt)
}

// Reporter получает итог каждого запуска (история, события, статус).
// Ошибки логируются и не влияют на pipeline.
type Reporter interface {
	Report(ctx context.Context, r *Report) error
}

// ReporterFunc — адаптер функции к Reporter.
type ReporterFunc func(ctx context.Context, r *Report) error

// Report реализует Reporter.
func (f ReporterFunc) Report(ctx context.Context, r *Report) error {
	return f(ctx, r)
}

// Screenshotter снимает экран устройства.
type Screenshotter interface {
	CaptureBase64(ctx context.Context) (string, error)
}

// Notifier отправляет сводку по завершённому pipeline.
type Notifier interface {
	NotifyPipeline(ctx context.Context, view domain.PipelineView) error
}
