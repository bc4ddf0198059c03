package api

import (
	"net/http"
)

// RegisterRoutes регистрирует все маршруты API.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	chain := Chain(
		Recovery(h.logger),
		Logging(h.logger),
		Metrics(),
		TokenAuth(h.accessToken),
	)

	// Pipeline
	mux.Handle("GET /api/maa/pipeline", chain(http.HandlerFunc(h.GetPipeline)))
	mux.Handle("POST /api/maa/pipeline", chain(http.HandlerFunc(h.RunPipeline)))
	mux.Handle("GET /api/maa/pipeline/running", chain(http.HandlerFunc(h.PipelineRunning)))
	mux.Handle("POST /api/maa/pipeline/tasks", chain(http.HandlerFunc(h.AppendTasks)))
	mux.Handle("DELETE /api/maa/pipeline/tasks", chain(http.HandlerFunc(h.ClearTasks)))
	mux.Handle("POST /api/maa/pipeline/start", chain(http.HandlerFunc(h.StartPipeline)))
	mux.Handle("POST /api/maa/pipeline/stop", chain(http.HandlerFunc(h.StopPipeline)))
	mux.Handle("GET /api/maa/task-types", chain(http.HandlerFunc(h.ListTaskTypes)))

	// History
	mux.Handle("GET /api/maa/history", chain(http.HandlerFunc(h.ListHistory)))
	mux.Handle("GET /api/maa/history/{id}", chain(http.HandlerFunc(h.GetHistory)))

	// Device
	mux.Handle("GET /api/adb/screenshot", chain(http.HandlerFunc(h.Screenshot)))
}
