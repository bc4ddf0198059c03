package domain

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// LogType — тип записи журнала pipeline.
type LogType string

const (
	LogTypeText  LogType = "text"
	LogTypeImage LogType = "image"
)

// LogLevel — уровень записи журнала pipeline.
type LogLevel string

const (
	LogLevelInfo    LogLevel = "info"
	LogLevelWarning LogLevel = "warning"
	LogLevelError   LogLevel = "error"
)

// LogTimeLayout — префикс времени текстовых записей.
const LogTimeLayout = "15:04:05"

// LogEntry — запись пользовательского журнала pipeline.
//
// Для текстовых записей Content имеет вид "HH:MM:SS сообщение",
// для изображений — JPEG в base64.
type LogEntry struct {
	Time    time.Time `json:"time"`
	Type    LogType   `json:"type"`
	Level   LogLevel  `json:"level"`
	Content string    `json:"content"`
}

// Pipeline — упорядоченный список tasks, статус и журнал.
//
// Pipeline не синхронизирован: все обращения идут под общим
// мьютексом Orchestrator'а.
type Pipeline struct {
	tasks  []*Task
	status PipelineStatus
	logs   []LogEntry
	batch  int

	now func() time.Time
}

// NewPipeline создаёт пустой pipeline в статусе IDLE.
func NewPipeline() *Pipeline {
	return &Pipeline{
		status: PipelineStatusIdle,
		now:    time.Now,
	}
}

// SetClock подменяет источник времени (для тестов).
func (p *Pipeline) SetClock(now func() time.Time) {
	p.now = now
}

// Status возвращает статус pipeline.
func (p *Pipeline) Status() PipelineStatus {
	return p.status
}

// SetStatus устанавливает статус pipeline.
func (p *Pipeline) SetStatus(s PipelineStatus) {
	p.status = s
}

// Tasks возвращает tasks в порядке добавления.
// Срез общий с pipeline, изменять его нельзя.
func (p *Pipeline) Tasks() []*Task {
	return p.tasks
}

// Len возвращает количество tasks.
func (p *Pipeline) Len() int {
	return len(p.tasks)
}

// Logs возвращает журнал pipeline.
func (p *Pipeline) Logs() []LogEntry {
	return p.logs
}

// Add добавляет task в конец pipeline.
func (p *Pipeline) Add(t *Task) {
	p.tasks = append(p.tasks, t)
}

// Get находит task по ID.
func (p *Pipeline) Get(id uuid.UUID) (*Task, bool) {
	for _, t := range p.tasks {
		if t.ID == id {
			return t, true
		}
	}
	return nil, false
}

// Update заменяет task с тем же ID.
func (p *Pipeline) Update(t *Task) error {
	for i, existing := range p.tasks {
		if existing.ID == t.ID {
			p.tasks[i] = t
			return nil
		}
	}
	return fmt.Errorf("%w: %s", ErrTaskNotFound, t.ID)
}

// UpdateStatus переводит task с указанным ID в новый статус.
func (p *Pipeline) UpdateStatus(id uuid.UUID, status TaskStatus) error {
	t, ok := p.Get(id)
	if !ok {
		return fmt.Errorf("%w: %s", ErrTaskNotFound, id)
	}
	return t.Transition(status)
}

// Stop помечает pipeline отменённым, а незавершённые tasks — CANCELLED.
func (p *Pipeline) Stop() {
	p.status = PipelineStatusCancelled
	for _, t := range p.tasks {
		if t.Status == TaskStatusPending || t.Status == TaskStatusRunning {
			t.Status = TaskStatusCancelled
		}
	}
}

// Clear удаляет все tasks и журнал, статус возвращается в IDLE.
func (p *Pipeline) Clear() {
	p.tasks = nil
	p.logs = nil
	p.status = PipelineStatusIdle
}

// Requeue добавляет tasks в конец pipeline. Task с тем же ID,
// уже находящийся в pipeline, удаляется: ID остаются уникальными.
// Журнал сохраняется.
func (p *Pipeline) Requeue(tasks []*Task) {
	ids := make(map[uuid.UUID]struct{}, len(tasks))
	for _, t := range tasks {
		ids[t.ID] = struct{}{}
	}
	kept := make([]*Task, 0, len(p.tasks)+len(tasks))
	for _, t := range p.tasks {
		if _, dup := ids[t.ID]; !dup {
			kept = append(kept, t)
		}
	}
	p.tasks = append(kept, tasks...)
}

// BeginBatch открывает новый запуск: все PENDING tasks получают
// следующий номер batch. Возвращает номер batch.
func (p *Pipeline) BeginBatch() int {
	p.batch++
	for _, t := range p.tasks {
		if t.Status == TaskStatusPending {
			t.Batch = p.batch
		}
	}
	p.status = PipelineStatusRunning
	return p.batch
}

// CurrentBatch возвращает номер последнего запуска.
func (p *Pipeline) CurrentBatch() int {
	return p.batch
}

// Batch возвращает tasks указанного запуска.
func (p *Pipeline) Batch(n int) []*Task {
	var out []*Task
	for _, t := range p.tasks {
		if t.Batch == n {
			out = append(out, t)
		}
	}
	return out
}

// AppendText добавляет текстовую запись с префиксом времени.
func (p *Pipeline) AppendText(level LogLevel, msg string) {
	now := p.now()
	p.logs = append(p.logs, LogEntry{
		Time:    now,
		Type:    LogTypeText,
		Level:   level,
		Content: now.Format(LogTimeLayout) + " " + msg,
	})
}

// AppendImage добавляет снимок экрана в base64.
func (p *Pipeline) AppendImage(b64 string) {
	p.logs = append(p.logs, LogEntry{
		Time:    p.now(),
		Type:    LogTypeImage,
		Level:   LogLevelInfo,
		Content: b64,
	})
}

// TaskView — JSON-представление task.
type TaskView struct {
	ID         uuid.UUID      `json:"id"`
	TaskName   string         `json:"taskName"`
	TypeTag    string         `json:"typeTag"`
	Params     map[string]any `json:"params"`
	Status     TaskStatus     `json:"status"`
	CreateTime string         `json:"createTime"`
	MaxRetries int            `json:"maxRetries"`
	RetryDelay int            `json:"retryDelay"`
	Batch      int            `json:"batch,omitempty"`
}

// PipelineView — JSON-представление pipeline.
type PipelineView struct {
	Tasks  []TaskView     `json:"tasks"`
	Status PipelineStatus `json:"status"`
	Logs   []LogEntry     `json:"logs"`
}

// View возвращает снимок task.
func (t *Task) View() TaskView {
	return TaskView{
		ID:         t.ID,
		TaskName:   t.TaskName,
		TypeTag:    t.TypeName,
		Params:     cloneMap(t.Params),
		Status:     t.Status,
		CreateTime: t.CreateTime.Format(CreateTimeLayout),
		MaxRetries: t.MaxRetries,
		RetryDelay: t.RetryDelay,
		Batch:      t.Batch,
	}
}

// View возвращает снимок pipeline, независимый от дальнейших изменений.
func (p *Pipeline) View() PipelineView {
	v := PipelineView{
		Tasks:  make([]TaskView, 0, len(p.tasks)),
		Status: p.status,
		Logs:   append([]LogEntry{}, p.logs...),
	}
	for _, t := range p.tasks {
		v.Tasks = append(v.Tasks, t.View())
	}
	return v
}

// TextLogs возвращает только текстовые записи журнала.
func (v PipelineView) TextLogs() []LogEntry {
	var out []LogEntry
	for _, l := range v.Logs {
		if l.Type == LogTypeText {
			out = append(out, l)
		}
	}
	return out
}
