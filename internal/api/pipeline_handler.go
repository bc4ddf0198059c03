package api

import (
	"encoding/json"
	"net/http"

	"github.com/shaiso/maa-api/internal/domain"
)

// GetPipeline возвращает снимок pipeline.
// GET /api/maa/pipeline
func (h *Handler) GetPipeline(w http.ResponseWriter, r *http.Request) {
	Success(w, h.pipeline.View())
}

// PipelineRunning сообщает, идёт ли обход.
// GET /api/maa/pipeline/running
func (h *Handler) PipelineRunning(w http.ResponseWriter, r *http.Request) {
	Success(w, RunningResponse{Running: h.pipeline.IsRunning()})
}

// AppendTasks добавляет tasks в конец pipeline.
// POST /api/maa/pipeline/tasks
func (h *Handler) AppendTasks(w http.ResponseWriter, r *http.Request) {
	tasks, ok := h.decodeTasks(w, r)
	if !ok {
		return
	}

	if HandlePipelineError(w, h.logger, h.pipeline.AppendAll(tasks)) {
		return
	}

	views := make([]domain.TaskView, 0, len(tasks))
	for _, t := range tasks {
		views = append(views, t.View())
	}
	Created(w, views)
}

// ClearTasks очищает pipeline.
// DELETE /api/maa/pipeline/tasks
func (h *Handler) ClearTasks(w http.ResponseWriter, r *http.Request) {
	if HandlePipelineError(w, h.logger, h.pipeline.Clear()) {
		return
	}
	NoContent(w)
}

// StartPipeline запускает обход pending tasks.
// POST /api/maa/pipeline/start
func (h *Handler) StartPipeline(w http.ResponseWriter, r *http.Request) {
	if HandlePipelineError(w, h.logger, h.pipeline.Start(r.Context())) {
		return
	}
	JSON(w, http.StatusAccepted, DataResponse{Data: h.pipeline.View()})
}

// StopPipeline останавливает pipeline и движок.
// POST /api/maa/pipeline/stop
func (h *Handler) StopPipeline(w http.ResponseWriter, r *http.Request) {
	if HandlePipelineError(w, h.logger, h.pipeline.Stop(r.Context())) {
		return
	}
	Success(w, h.pipeline.View())
}

// RunPipeline заменяет pipeline на переданные tasks и запускает его.
// POST /api/maa/pipeline
func (h *Handler) RunPipeline(w http.ResponseWriter, r *http.Request) {
	tasks, ok := h.decodeTasks(w, r)
	if !ok {
		return
	}

	if HandlePipelineError(w, h.logger, h.pipeline.Run(r.Context(), tasks)) {
		return
	}
	JSON(w, http.StatusAccepted, DataResponse{Data: h.pipeline.View()})
}

// ListTaskTypes возвращает зарегистрированные виды task.
// GET /api/maa/task-types
func (h *Handler) ListTaskTypes(w http.ResponseWriter, r *http.Request) {
	types := h.registry.Types()
	result := make([]TaskTypeResponse, 0, len(types))
	for _, typ := range types {
		k, err := h.registry.Get(typ)
		if err != nil {
			continue
		}
		result = append(result, TaskTypeResponse{Type: typ, Name: k.DisplayName()})
	}
	List(w, result, len(result))
}

// decodeTasks читает TasksRequest и разбирает tasks через реестр.
// Ошибка уже записана в ответ, если ok == false.
func (h *Handler) decodeTasks(w http.ResponseWriter, r *http.Request) ([]*domain.Task, bool) {
	var req TasksRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		BadRequest(w, "invalid request body")
		return nil, false
	}
	if len(req.Tasks) == 0 {
		BadRequest(w, "tasks is required")
		return nil, false
	}

	tasks, err := h.registry.DecodeList(req.Tasks)
	if HandlePipelineError(w, h.logger, err) {
		return nil, false
	}
	return tasks, true
}
