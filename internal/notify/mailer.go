package notify

import (
	"context"
	"encoding/base64"
	"fmt"
	"log/slog"
	"mime"
	"net"
	"net/smtp"
	"strconv"
	"strings"
	"time"

	"github.com/shaiso/maa-api/internal/domain"
)

// Темы писем.
const (
	SubjectCompleted = "MAA tasks completed"
	SubjectFailed    = "MAA tasks failed"
)

const defaultPort = 587

// SendFunc — отправка готового письма. Сигнатура smtp.SendMail.
type SendFunc func(addr string, a smtp.Auth, from string, to []string, msg []byte) error

// Config — настройки SMTP.
type Config struct {
	Server   string
	Port     int // default: 587
	Email    string
	Password string

	// To — получатель. Пустой — письмо уходит на Email.
	To string

	// Send — отправка (default: smtp.SendMail, STARTTLS + PLAIN).
	Send SendFunc

	// Now — источник времени (для тестов).
	Now func() time.Time

	Logger *slog.Logger
}

// Mailer отправляет HTML-письма.
type Mailer struct {
	cfg    Config
	logger *slog.Logger
}

// NewMailer создаёт Mailer. Конфигурация проверяется при отправке.
func NewMailer(cfg Config) *Mailer {
	if cfg.Port <= 0 {
		cfg.Port = defaultPort
	}
	if cfg.To == "" {
		cfg.To = cfg.Email
	}
	if cfg.Send == nil {
		cfg.Send = smtp.SendMail
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Mailer{cfg: cfg, logger: cfg.Logger}
}

// Configured сообщает, заданы ли server, email и password.
func (m *Mailer) Configured() bool {
	return m.cfg.Server != "" && m.cfg.Email != "" && m.cfg.Password != ""
}

// SendEmail отправляет HTML-письмо.
//
// ctx проверяется только перед отправкой: net/smtp не поддерживает отмену.
func (m *Mailer) SendEmail(ctx context.Context, subject, html string) error {
	if !m.Configured() {
		return ErrNotConfigured
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	addr := net.JoinHostPort(m.cfg.Server, strconv.Itoa(m.cfg.Port))
	auth := smtp.PlainAuth("", m.cfg.Email, m.cfg.Password, m.cfg.Server)
	msg := m.buildMessage(subject, html)

	if err := m.cfg.Send(addr, auth, m.cfg.Email, []string{m.cfg.To}, msg); err != nil {
		return fmt.Errorf("%w: %w", ErrSendFailed, err)
	}
	m.logger.Info("email sent", "subject", subject, "to", m.cfg.To)
	return nil
}

// NotifyPipeline отправляет сводку по pipeline.
func (m *Mailer) NotifyPipeline(ctx context.Context, view domain.PipelineView) error {
	html, err := RenderPipeline(view, m.cfg.Now())
	if err != nil {
		return err
	}
	return m.SendEmail(ctx, SubjectFor(view.Status), html)
}

// SubjectFor возвращает тему письма для статуса pipeline.
func SubjectFor(status domain.PipelineStatus) string {
	if status == domain.PipelineStatusCompleted {
		return SubjectCompleted
	}
	return SubjectFailed
}

func (m *Mailer) buildMessage(subject, html string) []byte {
	var b strings.Builder
	b.WriteString("From: " + m.cfg.Email + "\r\n")
	b.WriteString("To: " + m.cfg.To + "\r\n")
	b.WriteString("Subject: " + mime.QEncoding.Encode("utf-8", subject) + "\r\n")
	b.WriteString("Date: " + m.cfg.Now().Format(time.RFC1123Z) + "\r\n")
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/html; charset=utf-8\r\n")
	b.WriteString("Content-Transfer-Encoding: base64\r\n")
	b.WriteString("\r\n")

	body := base64.StdEncoding.EncodeToString([]byte(html))
	for len(body) > 76 {
		b.WriteString(body[:76] + "\r\n")
		body = body[76:]
	}
	b.WriteString(body + "\r\n")
	return []byte(b.String())
}
