package api

import (
	"context"
	"log/slog"

	"github.com/google/uuid"

	"github.com/shaiso/maa-api/internal/domain"
	"github.com/shaiso/maa-api/internal/repo"
	"github.com/shaiso/maa-api/internal/steps"
)

// Pipeline — операции фасада, доступные через API.
type Pipeline interface {
	View() domain.PipelineView
	IsRunning() bool
	AppendAll(tasks []*domain.Task) error
	Clear() error
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
	Run(ctx context.Context, tasks []*domain.Task) error
}

// History — чтение истории запусков.
type History interface {
	List(ctx context.Context, filter repo.HistoryFilter) ([]repo.PipelineRun, error)
	GetByID(ctx context.Context, id uuid.UUID) (*repo.PipelineRun, error)
}

// Screen — снимок экрана устройства в JPEG.
type Screen interface {
	Screenshot(ctx context.Context) ([]byte, error)
}

// Handler — главный обработчик API с зависимостями.
type Handler struct {
	pipeline    Pipeline
	registry    *steps.Registry
	history     History
	screen      Screen
	accessToken string
	logger      *slog.Logger
}

// Config — конфигурация для создания Handler.
type Config struct {
	Pipeline Pipeline
	Registry *steps.Registry

	// History — опционально, без неё /history отвечает 404.
	History History

	// Screen — опционально.
	Screen Screen

	// AccessToken — если задан, каждый запрос должен его предъявить.
	AccessToken string

	Logger *slog.Logger
}

// NewHandler создаёт Handler.
func NewHandler(cfg Config) *Handler {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Registry == nil {
		cfg.Registry = steps.DefaultRegistry()
	}
	return &Handler{
		pipeline:    cfg.Pipeline,
		registry:    cfg.Registry,
		history:     cfg.History,
		screen:      cfg.Screen,
		accessToken: cfg.AccessToken,
		logger:      cfg.Logger,
	}
}
