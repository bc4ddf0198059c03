package repo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/shaiso/maa-api/internal/domain"
)

// Пределы выборки истории.
const (
	DefaultHistoryLimit = 20
	MaxHistoryLimit     = 200
)

// PipelineRun — сохранённый итог запуска pipeline.
type PipelineRun struct {
	ID         uuid.UUID             `json:"id"`
	Batch      int                   `json:"batch"`
	Status     domain.PipelineStatus `json:"status"`
	Tasks      []domain.TaskView     `json:"tasks"`
	Logs       []domain.LogEntry     `json:"logs"`
	StartedAt  time.Time             `json:"started_at"`
	FinishedAt time.Time             `json:"finished_at"`
}

// HistoryFilter — параметры выборки.
type HistoryFilter struct {
	Status domain.PipelineStatus // пустой — любой
	Limit  int
}

// HistoryRepo — история запусков в таблице pipeline_runs.
type HistoryRepo struct {
	pool *pgxpool.Pool
}

// NewHistoryRepo создаёт HistoryRepo.
func NewHistoryRepo(pool *pgxpool.Pool) *HistoryRepo {
	return &HistoryRepo{pool: pool}
}

// Save сохраняет запуск.
func (r *HistoryRepo) Save(ctx context.Context, run *PipelineRun) error {
	tasksJSON, err := json.Marshal(run.Tasks)
	if err != nil {
		return fmt.Errorf("marshal tasks: %w", err)
	}
	logsJSON, err := json.Marshal(run.Logs)
	if err != nil {
		return fmt.Errorf("marshal logs: %w", err)
	}

	query := `
		INSERT INTO pipeline_runs (id, batch, status, tasks, logs, started_at, finished_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err = r.pool.Exec(ctx, query,
		run.ID,
		run.Batch,
		run.Status,
		tasksJSON,
		logsJSON,
		run.StartedAt,
		run.FinishedAt,
	)
	if err != nil {
		return fmt.Errorf("insert pipeline run: %w", err)
	}
	return nil
}

// GetByID возвращает запуск по ID.
func (r *HistoryRepo) GetByID(ctx context.Context, id uuid.UUID) (*PipelineRun, error) {
	query := `
		SELECT id, batch, status, tasks, logs, started_at, finished_at
		FROM pipeline_runs
		WHERE id = $1
	`
	run, err := scanRun(r.pool.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	return run, err
}

// List возвращает последние запуски, новые первыми.
func (r *HistoryRepo) List(ctx context.Context, filter HistoryFilter) ([]PipelineRun, error) {
	query := `
		SELECT id, batch, status, tasks, logs, started_at, finished_at
		FROM pipeline_runs
		WHERE ($1::text IS NULL OR status = $1)
		ORDER BY finished_at DESC
		LIMIT $2
	`
	rows, err := r.pool.Query(ctx, query, nullString(string(filter.Status)), normalizeLimit(filter.Limit))
	if err != nil {
		return nil, fmt.Errorf("list pipeline runs: %w", err)
	}
	defer rows.Close()

	var runs []PipelineRun
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, *run)
	}
	return runs, rows.Err()
}

// --- Helpers ---

func scanRun(row pgx.Row) (*PipelineRun, error) {
	var run PipelineRun
	var tasksJSON, logsJSON []byte

	err := row.Scan(
		&run.ID,
		&run.Batch,
		&run.Status,
		&tasksJSON,
		&logsJSON,
		&run.StartedAt,
		&run.FinishedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("scan pipeline run: %w", err)
	}

	if tasksJSON != nil {
		if err := json.Unmarshal(tasksJSON, &run.Tasks); err != nil {
			return nil, fmt.Errorf("unmarshal tasks: %w", err)
		}
	}
	if logsJSON != nil {
		if err := json.Unmarshal(logsJSON, &run.Logs); err != nil {
			return nil, fmt.Errorf("unmarshal logs: %w", err)
		}
	}
	return &run, nil
}

// normalizeLimit приводит limit к [1, MaxHistoryLimit].
func normalizeLimit(limit int) int {
	switch {
	case limit <= 0:
		return DefaultHistoryLimit
	case limit > MaxHistoryLimit:
		return MaxHistoryLimit
	default:
		return limit
	}
}

// nullString возвращает nil для пустой строки (для NULL в БД).
func nullString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
