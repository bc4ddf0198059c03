package notify

import (
	"context"
	"encoding/base64"
	"errors"
	"net/smtp"
	"strings"
	"testing"
	"time"

	"github.com/shaiso/maa-api/internal/domain"
)

type sentMail struct {
	addr string
	from string
	to   []string
	msg  string
}

func newTestMailer(cfg Config, sent *[]sentMail, sendErr error) *Mailer {
	cfg.Send = func(addr string, _ smtp.Auth, from string, to []string, msg []byte) error {
		*sent = append(*sent, sentMail{addr: addr, from: from, to: to, msg: string(msg)})
		return sendErr
	}
	cfg.Now = func() time.Time { return time.Date(2024, 5, 6, 23, 0, 0, 0, time.UTC) }
	return NewMailer(cfg)
}

func decodeBody(t *testing.T, msg string) string {
	t.Helper()
	parts := strings.SplitN(msg, "\r\n\r\n", 2)
	if len(parts) != 2 {
		t.Fatal("message has no body")
	}
	data, err := base64.StdEncoding.DecodeString(strings.ReplaceAll(parts[1], "\r\n", ""))
	if err != nil {
		t.Fatalf("body is not base64: %v", err)
	}
	return string(data)
}

func testView(status domain.PipelineStatus) domain.PipelineView {
	return domain.PipelineView{
		Status: status,
		Tasks:  []domain.TaskView{{TaskName: "Fight", Status: domain.TaskStatusCompleted}},
		Logs: []domain.LogEntry{
			{Type: domain.LogTypeText, Level: domain.LogLevelInfo, Content: "07:00:01 start task [Fight]"},
			{Type: domain.LogTypeImage, Level: domain.LogLevelInfo, Content: "aW1n"},
			{Type: domain.LogTypeText, Level: domain.LogLevelError, Content: "07:10:00 <b>oops</b>"},
		},
	}
}

// --- Mailer Tests ---

func TestSendEmail_NotConfigured(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
	}{
		{"no server", Config{Email: "a@b.c", Password: "x"}},
		{"no email", Config{Server: "smtp.b.c", Password: "x"}},
		{"no password", Config{Server: "smtp.b.c", Email: "a@b.c"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var sent []sentMail
			m := newTestMailer(tt.cfg, &sent, nil)
			if err := m.SendEmail(context.Background(), "s", "b"); !errors.Is(err, ErrNotConfigured) {
				t.Errorf("expected ErrNotConfigured, got %v", err)
			}
			if len(sent) != 0 {
				t.Error("nothing should be sent")
			}
		})
	}
}

func TestSendEmail_DefaultsToSelf(t *testing.T) {
	var sent []sentMail
	m := newTestMailer(Config{Server: "smtp.example.com", Email: "me@example.com", Password: "secret"}, &sent, nil)

	if err := m.SendEmail(context.Background(), "hello", "<p>hi</p>"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(sent) != 1 {
		t.Fatalf("expected one mail, got %d", len(sent))
	}
	got := sent[0]
	if got.addr != "smtp.example.com:587" {
		t.Errorf("unexpected addr: %s", got.addr)
	}
	if got.from != "me@example.com" || len(got.to) != 1 || got.to[0] != "me@example.com" {
		t.Errorf("expected mail to self, got %s -> %v", got.from, got.to)
	}
	if !strings.Contains(got.msg, "Content-Type: text/html; charset=utf-8") {
		t.Error("expected html content type")
	}
	if decodeBody(t, got.msg) != "<p>hi</p>" {
		t.Error("unexpected body")
	}
}

func TestSendEmail_Recipient(t *testing.T) {
	var sent []sentMail
	m := newTestMailer(Config{
		Server: "smtp.example.com", Port: 25, Email: "me@example.com", Password: "secret", To: "ops@example.com",
	}, &sent, nil)

	if err := m.SendEmail(context.Background(), "s", "b"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if sent[0].to[0] != "ops@example.com" || sent[0].addr != "smtp.example.com:25" {
		t.Errorf("unexpected delivery: %s %v", sent[0].addr, sent[0].to)
	}
}

func TestSendEmail_Failure(t *testing.T) {
	var sent []sentMail
	m := newTestMailer(Config{Server: "s", Email: "e", Password: "p"}, &sent, errors.New("535 auth failed"))

	if err := m.SendEmail(context.Background(), "s", "b"); !errors.Is(err, ErrSendFailed) {
		t.Errorf("expected ErrSendFailed, got %v", err)
	}
}

func TestNotifyPipeline_Subject(t *testing.T) {
	tests := []struct {
		status domain.PipelineStatus
		want   string
	}{
		{domain.PipelineStatusCompleted, SubjectCompleted},
		{domain.PipelineStatusFailed, SubjectFailed},
		{domain.PipelineStatusCancelled, SubjectFailed},
	}

	for _, tt := range tests {
		var sent []sentMail
		m := newTestMailer(Config{Server: "s", Email: "e", Password: "p"}, &sent, nil)
		if err := m.NotifyPipeline(context.Background(), testView(tt.status)); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !strings.Contains(sent[0].msg, "Subject: "+tt.want+"\r\n") {
			t.Errorf("%s: expected subject %q", tt.status, tt.want)
		}
	}
}

// --- Template Tests ---

func TestRenderPipeline(t *testing.T) {
	html, err := RenderPipeline(testView(domain.PipelineStatusFailed), time.Date(2024, 5, 6, 23, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	for _, want := range []string{
		"2024-05-06 23:00:00",
		`status-failed`,
		"07:00:01 start task [Fight]",
		`src="data:image/jpeg;base64,aW1n"`,
		"&lt;b&gt;oops&lt;/b&gt;",
		`class="log log-error"`,
	} {
		if !strings.Contains(html, want) {
			t.Errorf("rendered html missing %q", want)
		}
	}
}
