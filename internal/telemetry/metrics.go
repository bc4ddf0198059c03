package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Метрики pipeline.
var (
	// TaskAttempts — попытки выполнения task по типу и результату
	// (completed, failed, submit_failed, start_failed).
	TaskAttempts = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "maa_task_attempts_total",
		Help: "Task attempts by task type and result",
	}, []string{"type", "result"})

	// PipelineRuns — завершённые запуски pipeline по итоговому статусу.
	PipelineRuns = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "maa_pipeline_runs_total",
		Help: "Finished pipeline runs by final status",
	}, []string{"status"})

	// PipelineRunning — 1, пока executor обходит tasks.
	PipelineRunning = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "maa_pipeline_running",
		Help: "Whether the pipeline executor is running",
	})

	// Callbacks — обработанные сообщения движка.
	Callbacks = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "maa_callbacks_total",
		Help: "Engine callback messages by type",
	}, []string{"message"})

	// Recoveries — срабатывания watchdog по результату (recovered, failed).
	Recoveries = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "maa_recoveries_total",
		Help: "Client crash recoveries by result",
	}, []string{"result"})

	// HTTPRequests — запросы к REST API.
	HTTPRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "maa_http_requests_total",
		Help: "HTTP requests by method and status",
	}, []string{"method", "status"})

	// HTTPDuration — длительность обработки запросов.
	HTTPDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "maa_http_request_duration_seconds",
		Help:    "HTTP request duration",
		Buckets: prometheus.DefBuckets,
	}, []string{"method"})
)
