package engine

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"
)

// fakeTransport — in-memory брокер: запросы отдаются sidecar-функции,
// которая отвечает через обработчик response.
type fakeTransport struct {
	mu       sync.Mutex
	handlers map[string]func(string, []byte) error
	reply    func(req BridgeRequest) *BridgeResponse
}

func newFakeTransport(reply func(req BridgeRequest) *BridgeResponse) *fakeTransport {
	return &fakeTransport{
		handlers: make(map[string]func(string, []byte) error),
		reply:    reply,
	}
}

func (f *fakeTransport) Subscribe(topic string, _ byte, handler func(string, []byte) error) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.handlers[topic] = handler
	return nil
}

func (f *fakeTransport) Publish(topic string, payload []byte, _ byte, _ bool) error {
	if !strings.Contains(topic, "/request/") {
		return nil
	}
	var req BridgeRequest
	if err := json.Unmarshal(payload, &req); err != nil {
		return err
	}
	resp := f.reply(req)
	if resp == nil {
		return nil
	}
	resp.ID = req.ID
	data, _ := json.Marshal(resp)
	go f.deliver("maa/engine/response/+", "maa/engine/response/"+req.ID, data)
	return nil
}

func (f *fakeTransport) deliver(pattern, topic string, payload []byte) {
	f.mu.Lock()
	h := f.handlers[pattern]
	f.mu.Unlock()
	if h != nil {
		h(topic, payload)
	}
}

func newTestBridge(t *testing.T, reply func(BridgeRequest) *BridgeResponse) (*MQTTBridge, *fakeTransport) {
	t.Helper()
	tr := newFakeTransport(reply)
	b, err := NewMQTTBridge(tr, BridgeConfig{RequestTimeout: 200 * time.Millisecond})
	if err != nil {
		t.Fatalf("NewMQTTBridge: %v", err)
	}
	return b, tr
}

// --- MQTTBridge Tests ---

func TestBridge_SubmitAndStart(t *testing.T) {
	var gotType string
	b, _ := newTestBridge(t, func(req BridgeRequest) *BridgeResponse {
		switch req.Op {
		case OpAppendTask:
			gotType = req.Type
			return &BridgeResponse{OK: true, TaskID: 7}
		default:
			return &BridgeResponse{OK: true}
		}
	})

	id, err := b.Submit(context.Background(), "Fight", map[string]any{"stage": "1-7"})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if id != 7 {
		t.Errorf("expected task id 7, got %d", id)
	}
	if gotType != "Fight" {
		t.Errorf("expected Fight, got %s", gotType)
	}

	if b.Running() {
		t.Error("should not be running before start")
	}
	if err := b.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if !b.Running() {
		t.Error("should be running after start")
	}
	if err := b.Stop(context.Background()); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if b.Running() {
		t.Error("should not be running after stop")
	}
}

func TestBridge_SubmitRejected(t *testing.T) {
	b, _ := newTestBridge(t, func(req BridgeRequest) *BridgeResponse {
		return &BridgeResponse{OK: true, TaskID: 0}
	})

	_, err := b.Submit(context.Background(), "Fight", nil)
	if !errors.Is(err, ErrSubmitRejected) {
		t.Errorf("expected ErrSubmitRejected, got %v", err)
	}
}

func TestBridge_StartRejected(t *testing.T) {
	b, _ := newTestBridge(t, func(req BridgeRequest) *BridgeResponse {
		return &BridgeResponse{OK: false, Error: "not connected"}
	})

	err := b.Start(context.Background())
	if !errors.Is(err, ErrStartRejected) {
		t.Errorf("expected ErrStartRejected, got %v", err)
	}
}

func TestBridge_Timeout(t *testing.T) {
	b, _ := newTestBridge(t, func(req BridgeRequest) *BridgeResponse {
		return nil
	})

	_, err := b.Submit(context.Background(), "Fight", nil)
	if !errors.Is(err, ErrRequestTimeout) {
		t.Errorf("expected ErrRequestTimeout, got %v", err)
	}
}

func TestBridge_ContextCancelled(t *testing.T) {
	b, _ := newTestBridge(t, func(req BridgeRequest) *BridgeResponse {
		return nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := b.Submit(ctx, "Fight", nil)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

func TestBridge_CallbackAndState(t *testing.T) {
	b, tr := newTestBridge(t, func(req BridgeRequest) *BridgeResponse { return nil })

	var (
		gotMsg     Message
		gotDetails string
	)
	b.SetCallback(func(msg Message, details []byte) {
		gotMsg = msg
		gotDetails = string(details)
	})

	tr.deliver("maa/engine/callback", "maa/engine/callback",
		[]byte(`{"msg": 10001, "details": {"taskid": 3, "taskchain": "Fight"}}`))
	if gotMsg != MsgTaskChainStart {
		t.Errorf("expected TaskChainStart, got %s", gotMsg)
	}
	if !strings.Contains(gotDetails, `"taskchain"`) {
		t.Errorf("details not passed through: %s", gotDetails)
	}

	tr.deliver("maa/engine/state", "maa/engine/state", []byte(`{"running": true}`))
	if !b.Running() {
		t.Error("state message should set running")
	}
	tr.deliver("maa/engine/state", "maa/engine/state", []byte(`{"running": false}`))
	if b.Running() {
		t.Error("state message should clear running")
	}
}

func TestBridge_StaleStateIgnoredAfterStart(t *testing.T) {
	b, tr := newTestBridge(t, func(req BridgeRequest) *BridgeResponse {
		return &BridgeResponse{OK: true, Seq: 5}
	})

	tr.deliver("maa/engine/state", "maa/engine/state", []byte(`{"running": false, "seq": 4}`))
	if err := b.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}

	// Retained-состояние до start пришло после ответа.
	tr.deliver("maa/engine/state", "maa/engine/state", []byte(`{"running": false, "seq": 4}`))
	if !b.Running() {
		t.Fatal("older state must not reset running after start")
	}

	tr.deliver("maa/engine/state", "maa/engine/state", []byte(`{"running": true, "seq": 5}`))
	tr.deliver("maa/engine/state", "maa/engine/state", []byte(`{"running": false, "seq": 6}`))
	if b.Running() {
		t.Error("newer state should clear running")
	}
}

func TestBridge_Closed(t *testing.T) {
	b, _ := newTestBridge(t, func(req BridgeRequest) *BridgeResponse { return nil })
	b.Close()

	if err := b.Start(context.Background()); !errors.Is(err, ErrBridgeClosed) {
		t.Errorf("expected ErrBridgeClosed, got %v", err)
	}
}

func TestMessage_String(t *testing.T) {
	if MsgTaskChainDone.String() != "TaskChainCompleted" {
		t.Errorf("unexpected name: %s", MsgTaskChainDone)
	}
	if Message(42).String() != "Message(42)" {
		t.Errorf("unexpected name: %s", Message(42))
	}
}
