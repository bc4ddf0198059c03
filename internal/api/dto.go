package api

import (
	"bytes"
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/shaiso/maa-api/internal/domain"
	"github.com/shaiso/maa-api/internal/repo"
)

// TasksRequest — запрос на добавление или запуск tasks.
//
// Каждый элемент — плоский запрос вида
// {"name": "Fight", "stage": "1-7", "max_retries": 2}.
//
// Тело может быть и голым массивом таких запросов.
type TasksRequest struct {
	Tasks []json.RawMessage `json:"tasks"`
}

// UnmarshalJSON принимает {"tasks": [...]} и [...].
func (r *TasksRequest) UnmarshalJSON(data []byte) error {
	if trimmed := bytes.TrimSpace(data); len(trimmed) > 0 && trimmed[0] == '[' {
		return json.Unmarshal(trimmed, &r.Tasks)
	}
	type plain TasksRequest
	return json.Unmarshal(data, (*plain)(r))
}

// RunningResponse — ответ GET /pipeline/running.
type RunningResponse struct {
	Running bool `json:"running"`
}

// TaskTypeResponse — зарегистрированный вид task.
type TaskTypeResponse struct {
	Type string `json:"type"`
	Name string `json:"name"`
}

// HistoryResponse — краткая запись истории.
type HistoryResponse struct {
	ID         uuid.UUID             `json:"id"`
	Batch      int                   `json:"batch"`
	Status     domain.PipelineStatus `json:"status"`
	Tasks      int                   `json:"tasks"`
	Completed  int                   `json:"completed"`
	StartedAt  time.Time             `json:"started_at"`
	FinishedAt time.Time             `json:"finished_at"`
	Duration   string                `json:"duration"`
}

// HistoryFromRepo конвертирует repo.PipelineRun в HistoryResponse.
func HistoryFromRepo(run repo.PipelineRun) HistoryResponse {
	completed := 0
	for _, t := range run.Tasks {
		if t.Status == domain.TaskStatusCompleted {
			completed++
		}
	}
	return HistoryResponse{
		ID:         run.ID,
		Batch:      run.Batch,
		Status:     run.Status,
		Tasks:      len(run.Tasks),
		Completed:  completed,
		StartedAt:  run.StartedAt,
		FinishedAt: run.FinishedAt,
		Duration:   run.FinishedAt.Sub(run.StartedAt).Round(time.Second).String(),
	}
}
