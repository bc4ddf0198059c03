package orchestrator

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/shaiso/maa-api/internal/domain"
	"github.com/shaiso/maa-api/internal/engine"
	"github.com/shaiso/maa-api/internal/telemetry"
)

// callbackDetails — общие поля details сообщений движка.
type callbackDetails struct {
	TaskID    engine.TaskID  `json:"taskid"`
	TaskChain string         `json:"taskchain"`
	What      string         `json:"what"`
	UUID      string         `json:"uuid"`
	Details   map[string]any `json:"details"`
}

// Dispatcher разбирает сообщения движка и обновляет pipeline.
//
// Вызывается из горутины доставки движка. Все изменения идут под
// общим мьютексом, после смены статуса task будит executor.
type Dispatcher struct {
	mu       *sync.Mutex
	cond     *sync.Cond
	pipeline *domain.Pipeline
	logger   *slog.Logger

	// registrations: id экземпляра движка → id task. Под mu.
	registrations map[engine.TaskID]uuid.UUID
}

// NewDispatcher создаёт Dispatcher поверх общего состояния.
func NewDispatcher(mu *sync.Mutex, cond *sync.Cond, pipeline *domain.Pipeline, logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{
		mu:            mu,
		cond:          cond,
		pipeline:      pipeline,
		logger:        logger,
		registrations: make(map[engine.TaskID]uuid.UUID),
	}
}

// Register связывает id экземпляра движка с task.
func (d *Dispatcher) Register(instance engine.TaskID, taskID uuid.UUID) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.registrations[instance] = taskID
}

// Callback возвращает engine.Callback, логирующий ошибки Handle.
func (d *Dispatcher) Callback() engine.Callback {
	return func(msg engine.Message, details []byte) {
		if err := d.Handle(msg, details); err != nil {
			d.logger.Error("callback handling failed", "message", msg.String(), "error", err)
		}
	}
}

// Handle обрабатывает одно сообщение движка.
//
// Возвращает *ChainMismatchError, если тип task chain не совпал
// с task (task при этом помечается FAILED), и ErrMalformedDetails
// для неразборчивых details.
func (d *Dispatcher) Handle(msg engine.Message, details []byte) error {
	telemetry.Callbacks.WithLabelValues(msg.String()).Inc()

	var det callbackDetails
	if len(details) > 0 {
		if err := json.Unmarshal(details, &det); err != nil {
			return fmt.Errorf("%w: %s: %v", ErrMalformedDetails, msg, err)
		}
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	switch msg {
	case engine.MsgConnectionInfo:
		d.handleConnectionInfo(det)
	case engine.MsgTaskChainStart, engine.MsgTaskChainDone, engine.MsgTaskChainError:
		return d.handleTaskChain(msg, det)
	case engine.MsgSubTaskStart:
		d.handleSubTaskStart(det)
	case engine.MsgSubTaskExtra:
		d.handleSubTaskExtra(det)
	case engine.MsgAllTasksDone:
		d.pipeline.AppendText(domain.LogLevelInfo, "engine queue finished")
		d.cond.Broadcast()
	case engine.MsgInitFailed, engine.MsgInternalError:
		d.pipeline.AppendText(domain.LogLevelError, "engine error: "+msg.String())
		d.logger.Error("engine reported error", "message", msg.String(), "details", string(details))
		d.cond.Broadcast()
	}
	return nil
}

func (d *Dispatcher) handleConnectionInfo(det callbackDetails) {
	var line string
	switch det.What {
	case "ConnectFailed", "ConnectFaild":
		line = "device connection failed " + formatDetails(det.Details)
	case "Connected":
		line = "device connected"
	case "UuidGot":
		line = "device uuid: " + det.UUID
	case "UnsupportedResolution":
		line = "unsupported device resolution " + formatDetails(det.Details)
	case "ResolutionError":
		line = "failed to get device resolution " + formatDetails(det.Details)
	case "ResolutionGot":
		line = fmt.Sprintf("device resolution %s*%s", str(det.Details, "height"), str(det.Details, "width"))
	case "Reconnecting":
		line = "device disconnected, reconnecting " + formatDetails(det.Details)
	case "Reconnected":
		line = "device reconnected " + formatDetails(det.Details)
	case "Disconnect":
		line = "device disconnected, reconnect failed " + formatDetails(det.Details)
	case "ScreencapFailed":
		line = "screen capture failed " + formatDetails(det.Details)
	case "FastestWayToScreencap":
		line = fmt.Sprintf("fastest screen capture takes %sms", str(det.Details, "cost"))
	case "TouchModeNotAvailable":
		line = "touch mode not available " + formatDetails(det.Details)
	default:
		return
	}
	d.pipeline.AppendText(domain.LogLevelInfo, strings.TrimSpace(line))
}

func (d *Dispatcher) handleTaskChain(msg engine.Message, det callbackDetails) error {
	taskID, ok := d.registrations[det.TaskID]
	var task *domain.Task
	if ok {
		task, ok = d.pipeline.Get(taskID)
	}
	if !ok {
		d.logger.Warn("callback for unknown task", "engine_task_id", det.TaskID, "message", msg.String())
		return nil
	}

	if task.TypeName != det.TaskChain {
		err := &ChainMismatchError{TaskID: task.ID, TaskType: task.TypeName, TaskChain: det.TaskChain}
		if task.Status.CanTransition(domain.TaskStatusFailed) {
			task.Status = domain.TaskStatusFailed
		}
		d.pipeline.AppendText(domain.LogLevelError, fmt.Sprintf("task [%s] got callback for chain %s", task.TaskName, det.TaskChain))
		d.cond.Broadcast()
		return err
	}

	var (
		next domain.TaskStatus
		line string
		lvl  = domain.LogLevelInfo
	)
	switch msg {
	case engine.MsgTaskChainStart:
		next, line = domain.TaskStatusRunning, "start task ["+task.TaskName+"]"
	case engine.MsgTaskChainDone:
		next, line = domain.TaskStatusCompleted, "complete task ["+task.TaskName+"]"
	default:
		next, line, lvl = domain.TaskStatusFailed, "task failed ["+task.TaskName+"]", domain.LogLevelWarning
	}

	if err := task.Transition(next); err != nil {
		// Опоздавшее сообщение после stop: task уже CANCELLED.
		d.logger.Debug("ignored task transition", "task_id", task.ID, "error", err)
		return nil
	}
	d.pipeline.AppendText(lvl, line)
	d.cond.Broadcast()
	return nil
}

func (d *Dispatcher) handleSubTaskStart(det callbackDetails) {
	var line string
	switch str(det.Details, "task") {
	case "StartButton2":
		line = fmt.Sprintf("battle started, %s times", str(det.Details, "exec_times"))
	case "MedicineConfirm":
		line = "used sanity potion"
	case "ExpiringMedicineConfirm":
		line = "used sanity potion expiring within 48 hours"
	case "StoneConfirm":
		line = "used originite prime"
	case "RecruitRefreshConfirm":
		line = "refreshed recruit tags"
	case "RecruitConfirm":
		line = "recruit confirmed"
	case "RecruitNowConfirm":
		line = "used expedited plan"
	case "ReportToPenguinStats":
		line = "reported to Penguin Stats"
	case "ReportToYituliu":
		line = "reported to Yituliu"
	case "InfrastDormDoubleConfirmButton":
		line = "dormitory needs a second confirmation"
	case "StartExplore":
		line = fmt.Sprintf("exploration started, %s times", str(det.Details, "exec_times"))
	case "StageTraderInvestConfirm":
		line = "invested originium ingots"
	case "StageTraderInvestSystemFull":
		line = "investment reached the game limit"
	case "ExitThenAbandon":
		line = "exploration abandoned"
	case "MissionCompletedFlag":
		line = "battle completed"
	case "MissionFailedFlag", "MissionFailedFlag2":
		line = "battle failed"
	case "StageTraderEnter":
		line = "node: trader"
	case "StageSafeHouseEnter":
		line = "node: safe house"
	case "StageCombatDpsEnter":
		line = "stage: combat operation"
	case "StageEmergencyDps":
		line = "stage: emergency operation"
	case "StageDreadfulFoe":
		line = "stage: dreadful foe"
	default:
		return
	}
	d.pipeline.AppendText(domain.LogLevelInfo, line)
}

func (d *Dispatcher) handleSubTaskExtra(det callbackDetails) {
	var line string
	switch det.What {
	case "RecruitTagsDetected":
		line = "recruit tags: " + str(det.Details, "tags")
	case "RecruitSpecialTag", "ReCruitSpecialTag":
		line = "special tag: " + str(det.Details, "tag")
	case "RecruitResult":
		line = str(det.Details, "level") + "★ tags"
	case "RecruitTagsRefreshed":
		line = "recruit tags refreshed"
	case "EnterFacility":
		line = fmt.Sprintf("facility: %s %s", str(det.Details, "facility"), str(det.Details, "index"))
	case "StageInfo":
		line = "stage: " + str(det.Details, "name")
	case "StageInfoError":
		line = "stage recognition error"
	case "RoguelikeEvent":
		line = "event: " + str(det.Details, "name")
	case "SanityBeforeStage":
		line = fmt.Sprintf("sanity: %s/%s", str(det.Details, "current_sanity"), str(det.Details, "max_sanity"))
	case "StageDrops":
		line = formatDrops(det.Details)
	default:
		return
	}
	d.pipeline.AppendText(domain.LogLevelInfo, line)
}

func formatDrops(details map[string]any) string {
	var stage string
	if s, ok := details["stage"].(map[string]any); ok {
		stage = str(s, "stageCode")
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%s★ cleared %s, drops:", str(details, "stars"), stage)
	stats, _ := details["stats"].([]any)
	for _, item := range stats {
		m, ok := item.(map[string]any)
		if !ok {
			continue
		}
		fmt.Fprintf(&b, "\n%s: %s(+%s)", str(m, "itemName"), str(m, "quantity"), str(m, "addQuantity"))
	}
	return b.String()
}

// str возвращает значение ключа строкой, целые числа без дробной части.
func str(m map[string]any, key string) string {
	v, ok := m[key]
	if !ok || v == nil {
		return ""
	}
	switch val := v.(type) {
	case string:
		return val
	case float64:
		if val == float64(int64(val)) {
			return fmt.Sprintf("%d", int64(val))
		}
		return fmt.Sprintf("%g", val)
	case []any:
		parts := make([]string, 0, len(val))
		for _, p := range val {
			parts = append(parts, fmt.Sprint(p))
		}
		return strings.Join(parts, ", ")
	default:
		return fmt.Sprint(val)
	}
}

func formatDetails(m map[string]any) string {
	if len(m) == 0 {
		return ""
	}
	data, err := json.Marshal(m)
	if err != nil {
		return ""
	}
	return string(data)
}
