package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// Transport — MQTT-транспорт моста. Реализуется *mqtt.Client.
type Transport interface {
	Publish(topic string, payload []byte, qos byte, retained bool) error
	Subscribe(topic string, qos byte, handler func(topic string, payload []byte) error) error
}

// Операции запроса к sidecar движка.
const (
	OpAppendTask = "append_task"
	OpStart      = "start"
	OpStop       = "stop"
)

// BridgeRequest — запрос к sidecar движка.
type BridgeRequest struct {
	ID     string         `json:"id"`
	Op     string         `json:"op"`
	Type   string         `json:"type,omitempty"`
	Params map[string]any `json:"params,omitempty"`
}

// BridgeResponse — ответ sidecar на запрос.
type BridgeResponse struct {
	ID     string `json:"id"`
	OK     bool   `json:"ok"`
	TaskID TaskID `json:"task_id,omitempty"`
	Error  string `json:"error,omitempty"`

	// Seq — номер состояния после start/stop. Состояния с меньшим
	// номером устарели и игнорируются.
	Seq uint64 `json:"seq,omitempty"`
}

// BridgeCallback — асинхронное сообщение движка.
type BridgeCallback struct {
	Msg     Message         `json:"msg"`
	Details json.RawMessage `json:"details"`
}

// BridgeState — retained-состояние движка.
//
// Seq растёт при каждой смене состояния; 0 — sidecar без нумерации.
type BridgeState struct {
	Running bool   `json:"running"`
	Seq     uint64 `json:"seq,omitempty"`
}

// BridgeConfig — конфигурация MQTTBridge.
type BridgeConfig struct {
	// Prefix — корень топиков, например "maa/engine".
	Prefix string

	// RequestTimeout — ожидание ответа на запрос.
	RequestTimeout time.Duration

	// QoS для запросов и подписок.
	QoS byte

	Logger *slog.Logger
}

// MQTTBridge — Engine поверх MQTT: движок работает в отдельном
// процессе (sidecar) и общается через топики:
//
//	<prefix>/request/<id>   запросы (append_task, start, stop)
//	<prefix>/response/<id>  ответы
//	<prefix>/callback       сообщения движка
//	<prefix>/state          {"running": bool, "seq": n}, retained
type MQTTBridge struct {
	transport Transport
	config    BridgeConfig
	logger    *slog.Logger

	running atomic.Bool

	// stateMu защищает minSeq и согласованную с ним запись running.
	stateMu sync.Mutex
	minSeq  uint64

	mu       sync.Mutex
	pending  map[string]chan BridgeResponse
	callback Callback
	closed   bool
}

// NewMQTTBridge создаёт мост и подписывается на ответы, сообщения
// и состояние движка.
func NewMQTTBridge(transport Transport, cfg BridgeConfig) (*MQTTBridge, error) {
	if cfg.Prefix == "" {
		cfg.Prefix = "maa/engine"
	}
	cfg.Prefix = strings.TrimSuffix(cfg.Prefix, "/")
	if cfg.RequestTimeout == 0 {
		cfg.RequestTimeout = 10 * time.Second
	}
	if cfg.QoS == 0 {
		cfg.QoS = 1
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	b := &MQTTBridge{
		transport: transport,
		config:    cfg,
		logger:    cfg.Logger,
		pending:   make(map[string]chan BridgeResponse),
	}

	subs := []struct {
		topic   string
		handler func(string, []byte) error
	}{
		{cfg.Prefix + "/response/+", b.handleResponse},
		{cfg.Prefix + "/callback", b.handleCallback},
		{cfg.Prefix + "/state", b.handleState},
	}
	for _, s := range subs {
		if err := transport.Subscribe(s.topic, cfg.QoS, s.handler); err != nil {
			return nil, fmt.Errorf("subscribe %s: %w", s.topic, err)
		}
	}

	return b, nil
}

// Submit ставит task chain в очередь движка.
func (b *MQTTBridge) Submit(ctx context.Context, taskType string, params map[string]any) (TaskID, error) {
	resp, err := b.call(ctx, BridgeRequest{Op: OpAppendTask, Type: taskType, Params: params})
	if err != nil {
		return 0, err
	}
	if !resp.OK || resp.TaskID == 0 {
		return 0, fmt.Errorf("%w: %s", ErrSubmitRejected, resp.Error)
	}
	return resp.TaskID, nil
}

// Start запускает выполнение очереди движка.
func (b *MQTTBridge) Start(ctx context.Context) error {
	resp, err := b.call(ctx, BridgeRequest{Op: OpStart})
	if err != nil {
		return err
	}
	if !resp.OK {
		return fmt.Errorf("%w: %s", ErrStartRejected, resp.Error)
	}
	// Retained-состояние может прийти позже ответа.
	b.setState(true, resp.Seq)
	return nil
}

// Stop останавливает движок.
func (b *MQTTBridge) Stop(ctx context.Context) error {
	resp, err := b.call(ctx, BridgeRequest{Op: OpStop})
	if err != nil {
		return err
	}
	if !resp.OK {
		return fmt.Errorf("engine stop: %s", resp.Error)
	}
	b.setState(false, resp.Seq)
	return nil
}

// setState фиксирует состояние из ответа на start/stop.
func (b *MQTTBridge) setState(running bool, seq uint64) {
	b.stateMu.Lock()
	defer b.stateMu.Unlock()
	b.minSeq = max(b.minSeq, seq)
	b.running.Store(running)
}

// Running возвращает последнее известное состояние движка.
func (b *MQTTBridge) Running() bool {
	return b.running.Load()
}

// SetCallback задаёт получателя сообщений движка.
func (b *MQTTBridge) SetCallback(cb Callback) {
	b.mu.Lock()
	b.callback = cb
	b.mu.Unlock()
}

// Close отменяет ожидающие запросы.
func (b *MQTTBridge) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	for id, ch := range b.pending {
		close(ch)
		delete(b.pending, id)
	}
}

func (b *MQTTBridge) call(ctx context.Context, req BridgeRequest) (BridgeResponse, error) {
	req.ID = uuid.NewString()
	ch := make(chan BridgeResponse, 1)

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return BridgeResponse{}, ErrBridgeClosed
	}
	b.pending[req.ID] = ch
	b.mu.Unlock()

	defer func() {
		b.mu.Lock()
		delete(b.pending, req.ID)
		b.mu.Unlock()
	}()

	payload, err := json.Marshal(req)
	if err != nil {
		return BridgeResponse{}, fmt.Errorf("marshal request: %w", err)
	}
	if err := b.transport.Publish(b.config.Prefix+"/request/"+req.ID, payload, b.config.QoS, false); err != nil {
		return BridgeResponse{}, fmt.Errorf("publish %s: %w", req.Op, err)
	}

	timer := time.NewTimer(b.config.RequestTimeout)
	defer timer.Stop()

	select {
	case resp, ok := <-ch:
		if !ok {
			return BridgeResponse{}, ErrBridgeClosed
		}
		return resp, nil
	case <-timer.C:
		return BridgeResponse{}, fmt.Errorf("%w: %s", ErrRequestTimeout, req.Op)
	case <-ctx.Done():
		return BridgeResponse{}, ctx.Err()
	}
}

func (b *MQTTBridge) handleResponse(topic string, payload []byte) error {
	var resp BridgeResponse
	if err := json.Unmarshal(payload, &resp); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	if resp.ID == "" {
		resp.ID = topic[strings.LastIndex(topic, "/")+1:]
	}

	b.mu.Lock()
	ch, ok := b.pending[resp.ID]
	if ok {
		delete(b.pending, resp.ID)
	}
	b.mu.Unlock()

	if !ok {
		b.logger.Debug("response for unknown request", "request_id", resp.ID)
		return nil
	}
	ch <- resp
	return nil
}

func (b *MQTTBridge) handleCallback(_ string, payload []byte) error {
	var cb BridgeCallback
	if err := json.Unmarshal(payload, &cb); err != nil {
		return fmt.Errorf("decode callback: %w", err)
	}

	b.mu.Lock()
	handler := b.callback
	b.mu.Unlock()

	if handler != nil {
		handler(cb.Msg, cb.Details)
	}
	return nil
}

func (b *MQTTBridge) handleState(_ string, payload []byte) error {
	var st BridgeState
	if err := json.Unmarshal(payload, &st); err != nil {
		return fmt.Errorf("decode state: %w", err)
	}

	b.stateMu.Lock()
	defer b.stateMu.Unlock()
	if st.Seq < b.minSeq {
		b.logger.Debug("stale engine state ignored", "seq", st.Seq, "min_seq", b.minSeq, "running", st.Running)
		return nil
	}
	b.minSeq = st.Seq
	b.running.Store(st.Running)
	return nil
}
