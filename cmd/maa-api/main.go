// MAA API — сервер последовательного выполнения tasks MAA.
//
// Процесс:
//   - подключается к MQTT-брокеру и через него к sidecar движка
//   - держит pipeline (orchestrator) и REST API над ним
//   - по cron запускает watchdog, ежедневные tasks и сводку
//   - пишет историю в Postgres и события в RabbitMQ, если они настроены
//
// Конфигурация: YAML-файл из MAA_CONFIG плюс переменные окружения.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/shaiso/maa-api/internal/api"
	"github.com/shaiso/maa-api/internal/config"
	"github.com/shaiso/maa-api/internal/device"
	"github.com/shaiso/maa-api/internal/engine"
	"github.com/shaiso/maa-api/internal/mq"
	"github.com/shaiso/maa-api/internal/mqtt"
	"github.com/shaiso/maa-api/internal/notify"
	"github.com/shaiso/maa-api/internal/orchestrator"
	"github.com/shaiso/maa-api/internal/repo"
	"github.com/shaiso/maa-api/internal/scheduler"
	"github.com/shaiso/maa-api/internal/steps"
	"github.com/shaiso/maa-api/internal/telemetry"
)

var startTime = time.Now()

func main() {
	cfg, err := config.Load(os.Getenv("MAA_CONFIG"))
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		os.Exit(1)
	}

	logger := telemetry.SetupLogger(cfg.Logging.Level, cfg.Logging.Format)
	logger.Info("starting maa-api")

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("maa-api failed", "error", err)
		os.Exit(1)
	}
	logger.Info("maa-api stopped")
}

func run(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	// MQTT: мост к движку и retained-статус
	mqttClient, err := mqtt.Connect(mqtt.Config{
		Broker:   cfg.MQTT.Broker,
		ClientID: cfg.MQTT.ClientID,
		Username: cfg.MQTT.Username,
		Password: cfg.MQTT.Password,
		Logger:   logger,
	})
	if err != nil {
		return fmt.Errorf("connect mqtt: %w", err)
	}
	defer mqttClient.Close()

	bridge, err := engine.NewMQTTBridge(mqttClient, engine.BridgeConfig{
		Prefix:         cfg.Engine.Prefix,
		RequestTimeout: cfg.RequestTimeout(),
		QoS:            byte(cfg.MQTT.QoS),
		Logger:         logger,
	})
	if err != nil {
		return fmt.Errorf("engine bridge: %w", err)
	}
	defer bridge.Close()

	// ADB
	adb := device.New(device.Config{
		Path:        cfg.ADB.Path,
		Address:     cfg.ADB.Address,
		PackageName: cfg.ADB.PackageName,
		Quality:     cfg.ADB.ScreenshotQuality,
		Logger:      logger,
	})
	if err := adb.Connect(ctx); err != nil {
		logger.Warn("adb connect failed, screenshots and watchdog may not work", "error", err)
	}

	// Почта
	var notifier orchestrator.Notifier
	mailer := notify.NewMailer(notify.Config{
		Server:   cfg.SMTP.Server,
		Port:     cfg.SMTP.Port,
		Email:    cfg.SMTP.Email,
		Password: cfg.SMTP.Password,
		To:       cfg.SMTP.To,
		Logger:   logger,
	})
	if cfg.SMTP.Notify && mailer.Configured() {
		notifier = mailer
	}

	reporters := []orchestrator.Reporter{
		orchestrator.StatusReporter(mqtt.NewStatusPublisher(mqttClient, cfg.MQTT.StatusTopic, byte(cfg.MQTT.QoS))),
	}

	// Postgres: история запусков
	var history *repo.HistoryRepo
	if cfg.Database.URL != "" {
		pool, err := repo.NewPool(ctx, cfg.Database.URL)
		if err != nil {
			return fmt.Errorf("connect database: %w", err)
		}
		defer pool.Close()
		logger.Info("database connected")

		history = repo.NewHistoryRepo(pool)
		reporters = append(reporters, orchestrator.HistoryReporter(history))
	}

	// RabbitMQ: события и внешние запросы
	var mqConn *mq.Connection
	if cfg.RabbitMQ.URL != "" {
		mqConn, err = mq.NewConnection(cfg.RabbitMQ.URL, logger)
		if err != nil {
			logger.Warn("RabbitMQ not available, events disabled", "error", err)
		} else {
			defer mqConn.Close()
			if err := mq.SetupTopology(ctx, mqConn); err != nil {
				logger.Warn("failed to setup topology", "error", err)
			}
			logger.Debug("rabbitmq topology", "info", mq.TopologyInfo())
			reporters = append(reporters, orchestrator.EventReporter(mq.NewPublisher(mqConn, logger)))
		}
	}

	registry := steps.DefaultRegistry()

	orch := orchestrator.New(orchestrator.Config{
		Engine:        bridge,
		Screenshotter: adb,
		Notifier:      notifier,
		Reporters:     reporters,
		PollInterval:  cfg.PollInterval(),
		Logger:        logger,
	})

	if mqConn != nil {
		consumer := mq.NewConsumer(mqConn, logger, mq.ConsumerConfig{
			Queue: string(mq.QueuePipelineRequests),
			Handlers: map[mq.MessageType]mq.Handler{
				mq.MessageTypePipelineRequest: orchestrator.RequestHandler(orch, registry, logger),
			},
		})
		go func() {
			if err := consumer.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("request consumer stopped", "error", err)
			}
		}()
		defer consumer.Stop()
	}

	// Cron
	schedCfg := scheduler.Config{Logger: logger}
	if cfg.Watchdog.Enabled {
		schedCfg.Watchdog = scheduler.NewWatchdog(scheduler.WatchdogConfig{
			Pipeline:   orch,
			Probe:      adb,
			ClientType: cfg.ADB.ClientType,
			Logger:     logger,
		})
		schedCfg.WatchdogSpec = cfg.Watchdog.Spec
	}
	if cfg.Daily.Enabled {
		schedCfg.Daily = scheduler.NewDaily(scheduler.DailyConfig{
			Pipeline: orch,
			Registry: registry,
			Path:     cfg.Daily.TaskFile,
			Logger:   logger,
		})
		schedCfg.DailySpec = cfg.Daily.Spec
	}
	if cfg.Daily.SummaryEnabled && notifier != nil {
		schedCfg.Summary = scheduler.NewSummary(orch, notifier, logger)
		schedCfg.SummarySpec = cfg.Daily.SummarySpec
	}

	sched, err := scheduler.New(schedCfg)
	if err != nil {
		return fmt.Errorf("scheduler: %w", err)
	}
	sched.Start()
	for _, e := range sched.Entries() {
		logger.Info("scheduled job", "job", e.Name, "spec", e.Spec, "next", e.Next)
	}

	// HTTP
	handler := api.NewHandler(api.Config{
		Pipeline:    orch,
		Registry:    registry,
		History:     historyOrNil(history),
		Screen:      adb,
		AccessToken: cfg.App.AccessToken,
		Logger:      logger,
	})

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		if !mqttClient.IsConnected() {
			http.Error(w, "mqtt disconnected", http.StatusServiceUnavailable)
			return
		}
		if mqConn != nil && !mqConn.IsConnected() {
			http.Error(w, "rabbitmq disconnected", http.StatusServiceUnavailable)
			return
		}
		fmt.Fprintf(w, "ok %s", time.Since(startTime).Round(time.Second))
	})
	mux.Handle("/metrics", promhttp.Handler())
	handler.RegisterRoutes(mux)

	addr := fmt.Sprintf(":%d", cfg.API.Port)
	server := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		logger.Info("listening", "addr", addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	select {
	case <-ctx.Done():
	case err := <-serverErr:
		return fmt.Errorf("http server: %w", err)
	}
	logger.Info("shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout())
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", "error", err)
	}
	if err := sched.Stop(shutdownCtx); err != nil {
		logger.Warn("scheduler stop", "error", err)
	}
	if orch.IsRunning() {
		if err := orch.Stop(shutdownCtx); err != nil {
			logger.Warn("pipeline stop", "error", err)
		}
	}
	return nil
}

// historyOrNil не даёт nil *HistoryRepo превратиться в непустой интерфейс.
func historyOrNil(h *repo.HistoryRepo) api.History {
	if h == nil {
		return nil
	}
	return h
}
