package device

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"image/jpeg"
	"image/png"
	"log/slog"
	"os/exec"
	"strings"
	"time"
)

// Значения по умолчанию.
const (
	DefaultPath        = "adb"
	DefaultAddress     = "127.0.0.1:5555"
	DefaultPackageName = "com.hypergryph.arknights.bilibili"
	DefaultQuality     = 80
	defaultTimeout     = 30 * time.Second
)

// Runner выполняет внешнюю команду и возвращает её stdout.
type Runner interface {
	Run(ctx context.Context, name string, args ...string) ([]byte, error)
}

// ExecRunner запускает команды через os/exec.
type ExecRunner struct{}

// Run реализует Runner. В ошибку попадает stderr команды.
func (ExecRunner) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stderr = &stderr

	out, err := cmd.Output()
	if err != nil {
		return out, fmt.Errorf("%w: %s %s: %v: %s",
			ErrCommandFailed, name, strings.Join(args, " "), err, strings.TrimSpace(stderr.String()))
	}
	return out, nil
}

// Config — конфигурация ADB.
type Config struct {
	// Path — путь к бинарнику adb (default: "adb").
	Path string

	// Address — адрес устройства (default: 127.0.0.1:5555).
	Address string

	// PackageName — пакет игрового клиента.
	PackageName string

	// Quality — качество JPEG снимков, 1..100 (default: 80).
	Quality int

	// Timeout — предел одной команды (default: 30s).
	Timeout time.Duration

	Runner Runner
	Logger *slog.Logger
}

// ADB — клиент adb для одного устройства.
type ADB struct {
	path    string
	address string
	pkg     string
	quality int
	timeout time.Duration
	runner  Runner
	logger  *slog.Logger
}

// New создаёт ADB с заполненными значениями по умолчанию.
func New(cfg Config) *ADB {
	if cfg.Path == "" {
		cfg.Path = DefaultPath
	}
	if cfg.Address == "" {
		cfg.Address = DefaultAddress
	}
	if cfg.PackageName == "" {
		cfg.PackageName = DefaultPackageName
	}
	if cfg.Quality <= 0 || cfg.Quality > 100 {
		cfg.Quality = DefaultQuality
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.Runner == nil {
		cfg.Runner = ExecRunner{}
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &ADB{
		path:    cfg.Path,
		address: cfg.Address,
		pkg:     cfg.PackageName,
		quality: cfg.Quality,
		timeout: cfg.Timeout,
		runner:  cfg.Runner,
		logger:  cfg.Logger,
	}
}

// Address возвращает адрес устройства.
func (a *ADB) Address() string {
	return a.address
}

// Connect выполняет adb connect. Повторное подключение не ошибка.
func (a *ADB) Connect(ctx context.Context) error {
	out, err := a.run(ctx, "connect", a.address)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrConnectFailed, err)
	}
	msg := strings.TrimSpace(string(out))
	if !strings.Contains(msg, "connected to") {
		return fmt.Errorf("%w: %s: %s", ErrConnectFailed, a.address, msg)
	}
	a.logger.Debug("adb connected", "address", a.address)
	return nil
}

// Screenshot снимает экран и возвращает JPEG.
func (a *ADB) Screenshot(ctx context.Context) ([]byte, error) {
	if err := a.Connect(ctx); err != nil {
		return nil, err
	}
	raw, err := a.run(ctx, "-s", a.address, "exec-out", "screencap", "-p")
	if err != nil {
		return nil, fmt.Errorf("screencap: %w", err)
	}

	img, err := png.Decode(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidScreenshot, err)
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: a.quality}); err != nil {
		return nil, fmt.Errorf("encode jpeg: %w", err)
	}
	return buf.Bytes(), nil
}

// CaptureBase64 снимает экран и возвращает JPEG в base64.
func (a *ADB) CaptureBase64(ctx context.Context) (string, error) {
	data, err := a.Screenshot(ctx)
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(data), nil
}

// IsClientProcessPresent проверяет, есть ли процесс клиента в ps -ef.
func (a *ADB) IsClientProcessPresent(ctx context.Context) (bool, error) {
	if err := a.Connect(ctx); err != nil {
		return false, err
	}
	out, err := a.run(ctx, "-s", a.address, "shell", "ps", "-ef")
	if err != nil {
		return false, fmt.Errorf("list processes: %w", err)
	}
	for _, line := range strings.Split(string(out), "\n") {
		if strings.Contains(line, a.pkg) {
			return true, nil
		}
	}
	return false, nil
}

func (a *ADB) run(ctx context.Context, args ...string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()
	return a.runner.Run(ctx, a.path, args...)
}
