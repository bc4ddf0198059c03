package api

import (
	"net/http"
	"strconv"

	"github.com/google/uuid"

	"github.com/shaiso/maa-api/internal/domain"
	"github.com/shaiso/maa-api/internal/repo"
)

// ListHistory возвращает последние запуски.
// GET /api/maa/history?status=...&limit=...
func (h *Handler) ListHistory(w http.ResponseWriter, r *http.Request) {
	if h.history == nil {
		NotFound(w, "history is not configured")
		return
	}

	filter := repo.HistoryFilter{
		Status: domain.PipelineStatus(r.URL.Query().Get("status")),
		Limit:  parseInt(r.URL.Query().Get("limit"), repo.DefaultHistoryLimit),
	}

	runs, err := h.history.List(r.Context(), filter)
	if HandleRepoError(w, h.logger, err, "") {
		return
	}

	result := make([]HistoryResponse, len(runs))
	for i, run := range runs {
		result[i] = HistoryFromRepo(run)
	}
	List(w, result, len(result))
}

// GetHistory возвращает запуск целиком, с tasks и журналом.
// GET /api/maa/history/{id}
func (h *Handler) GetHistory(w http.ResponseWriter, r *http.Request) {
	if h.history == nil {
		NotFound(w, "history is not configured")
		return
	}

	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		BadRequest(w, "invalid run id")
		return
	}

	run, err := h.history.GetByID(r.Context(), id)
	if HandleRepoError(w, h.logger, err, "run not found") {
		return
	}
	Success(w, run)
}

func parseInt(s string, defaultVal int) int {
	n, err := strconv.Atoi(s)
	if err != nil {
		return defaultVal
	}
	return n
}
