package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config — корневая конфигурация.
type Config struct {
	App      AppConfig      `yaml:"app"`
	API      APIConfig      `yaml:"api"`
	Engine   EngineConfig   `yaml:"engine"`
	MQTT     MQTTConfig     `yaml:"mqtt"`
	ADB      ADBConfig      `yaml:"adb"`
	SMTP     SMTPConfig     `yaml:"smtp"`
	Watchdog WatchdogConfig `yaml:"watchdog"`
	Daily    DailyConfig    `yaml:"daily"`
	Database DatabaseConfig `yaml:"database"`
	RabbitMQ RabbitMQConfig `yaml:"rabbitmq"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// AppConfig — общие настройки.
type AppConfig struct {
	// AccessToken — токен REST API. Пустой отключает проверку.
	AccessToken string `yaml:"access_token"`
}

// APIConfig — HTTP-сервер.
type APIConfig struct {
	Port            int `yaml:"port"`
	ShutdownTimeout int `yaml:"shutdown_timeout"` // секунды
}

// EngineConfig — движок и executor.
type EngineConfig struct {
	// Prefix — префикс MQTT-топиков sidecar'а движка.
	Prefix         string `yaml:"prefix"`
	RequestTimeout int    `yaml:"request_timeout"` // секунды
	PollInterval   int    `yaml:"poll_interval"`   // секунды
}

// MQTTConfig — брокер.
type MQTTConfig struct {
	Broker      string `yaml:"broker"`
	ClientID    string `yaml:"client_id"`
	Username    string `yaml:"username"`
	Password    string `yaml:"password"`
	QoS         int    `yaml:"qos"`
	StatusTopic string `yaml:"status_topic"`
}

// ADBConfig — устройство.
type ADBConfig struct {
	Path              string `yaml:"path"`
	Address           string `yaml:"address"`
	PackageName       string `yaml:"package_name"`
	ClientType        string `yaml:"client_type"`
	ScreenshotQuality int    `yaml:"screenshot_quality"`
}

// SMTPConfig — почта. Письма отправляются, если Notify и заданы
// server, email и password.
type SMTPConfig struct {
	Notify   bool   `yaml:"notify"`
	Server   string `yaml:"server"`
	Port     int    `yaml:"port"`
	Email    string `yaml:"email"`
	Password string `yaml:"password"`
	To       string `yaml:"to"`
}

// WatchdogConfig — перезапуск клиента после вылета.
type WatchdogConfig struct {
	Enabled bool   `yaml:"enabled"`
	Spec    string `yaml:"spec"`
}

// DailyConfig — ежедневные задания.
type DailyConfig struct {
	Enabled        bool   `yaml:"enabled"`
	Spec           string `yaml:"spec"`
	TaskFile       string `yaml:"task_file"`
	SummaryEnabled bool   `yaml:"summary_enabled"`
	SummarySpec    string `yaml:"summary_spec"`
}

// DatabaseConfig — история запусков. Пустой URL отключает историю.
type DatabaseConfig struct {
	URL string `yaml:"url"`
}

// RabbitMQConfig — события и внешние запросы. Пустой URL отключает.
type RabbitMQConfig struct {
	URL string `yaml:"url"`
}

// LoggingConfig — slog.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Load читает конфигурацию.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}

	if err := applyEnvOverrides(cfg); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}
	return cfg, nil
}

// Default возвращает конфигурацию по умолчанию.
func Default() *Config {
	return &Config{
		API: APIConfig{
			Port:            8080,
			ShutdownTimeout: 10,
		},
		Engine: EngineConfig{
			Prefix:         "maa/engine",
			RequestTimeout: 10,
			PollInterval:   5,
		},
		MQTT: MQTTConfig{
			Broker:      "tcp://localhost:1883",
			ClientID:    "maa-api",
			QoS:         1,
			StatusTopic: "maa/pipeline/status",
		},
		ADB: ADBConfig{
			Path:              "adb",
			Address:           "127.0.0.1:5555",
			PackageName:       "com.hypergryph.arknights.bilibili",
			ClientType:        "Bilibili",
			ScreenshotQuality: 80,
		},
		SMTP: SMTPConfig{
			Port: 587,
		},
		Watchdog: WatchdogConfig{
			Enabled: true,
			Spec:    "@every 300s",
		},
		Daily: DailyConfig{
			Enabled:     true,
			Spec:        "0 7,19 * * *",
			TaskFile:    "./data/daily_task.json",
			SummarySpec: "0 23 * * *",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

func applyEnvOverrides(cfg *Config) error {
	if v := os.Getenv("DB_URL"); v != "" {
		cfg.Database.URL = v
	}
	if v := os.Getenv("RABBITMQ_URL"); v != "" {
		cfg.RabbitMQ.URL = v
	}
	if v := os.Getenv("API_PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid API_PORT %q: %w", v, err)
		}
		cfg.API.Port = port
	}
	if v := os.Getenv("MAA_ACCESS_TOKEN"); v != "" {
		cfg.App.AccessToken = v
	}
	if v := os.Getenv("MAA_ADB_ADDRESS"); v != "" {
		cfg.ADB.Address = v
	}
	if v := os.Getenv("MAA_MQTT_BROKER"); v != "" {
		cfg.MQTT.Broker = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("LOG_FORMAT"); v != "" {
		cfg.Logging.Format = v
	}
	return nil
}

// Validate проверяет конфигурацию.
func (c *Config) Validate() error {
	var errs []string

	if c.API.Port < 1 || c.API.Port > 65535 {
		errs = append(errs, "api.port must be between 1 and 65535")
	}
	if c.Engine.Prefix == "" {
		errs = append(errs, "engine.prefix is required")
	}
	if c.Engine.RequestTimeout <= 0 {
		errs = append(errs, "engine.request_timeout must be positive")
	}
	if c.Engine.PollInterval <= 0 {
		errs = append(errs, "engine.poll_interval must be positive")
	}
	if c.MQTT.Broker == "" {
		errs = append(errs, "mqtt.broker is required")
	}
	if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
		errs = append(errs, "mqtt.qos must be 0, 1, or 2")
	}
	if c.ADB.Address == "" {
		errs = append(errs, "adb.address is required")
	}
	if c.ADB.ScreenshotQuality < 1 || c.ADB.ScreenshotQuality > 100 {
		errs = append(errs, "adb.screenshot_quality must be between 1 and 100")
	}
	if c.SMTP.Notify && (c.SMTP.Server == "" || c.SMTP.Email == "" || c.SMTP.Password == "") {
		errs = append(errs, "smtp.server, smtp.email and smtp.password are required when smtp.notify is set")
	}
	if c.Daily.Enabled && c.Daily.TaskFile == "" {
		errs = append(errs, "daily.task_file is required when daily is enabled")
	}
	switch strings.ToLower(c.Logging.Format) {
	case "json", "text":
	default:
		errs = append(errs, "logging.format must be json or text")
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}
	return nil
}

// RequestTimeout возвращает таймаут запроса к движку.
func (c *Config) RequestTimeout() time.Duration {
	return time.Duration(c.Engine.RequestTimeout) * time.Second
}

// PollInterval возвращает границу ожидания движка.
func (c *Config) PollInterval() time.Duration {
	return time.Duration(c.Engine.PollInterval) * time.Second
}

// ShutdownTimeout возвращает время на graceful shutdown.
func (c *Config) ShutdownTimeout() time.Duration {
	return time.Duration(c.API.ShutdownTimeout) * time.Second
}
