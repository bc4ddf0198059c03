package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shaiso/maa-api/internal/domain"
	"github.com/shaiso/maa-api/internal/engine"
)

type outcome int

const (
	outcomeDone   outcome = iota // TaskChainStart + TaskChainCompleted
	outcomeError                 // TaskChainStart + TaskChainError
	outcomeSilent                // без сообщений о task chain
	outcomeHang                  // работает до Stop
)

type queued struct {
	id  engine.TaskID
	typ string
}

// fakeEngine — движок в памяти: Start проигрывает очередь
// в отдельной горутине, результат задаётся функцией outcome.
type fakeEngine struct {
	mu       sync.Mutex
	cb       engine.Callback
	running  atomic.Bool
	nextID   engine.TaskID
	queue    []queued
	submits  []string
	starts   int
	stops    int
	attempts map[string]int
	stopCh   chan struct{}

	rejectSubmit bool
	startErr     error
	panicSubmit  bool

	// submitGate, если задан, держит Submit до закрытия канала;
	// submitEntered получает сигнал при входе в Submit.
	submitGate    chan struct{}
	submitEntered chan struct{}
	outcome      func(taskType string, attempt int) outcome
}

func newFakeEngine(fn func(string, int) outcome) *fakeEngine {
	if fn == nil {
		fn = func(string, int) outcome { return outcomeDone }
	}
	return &fakeEngine{
		attempts: make(map[string]int),
		stopCh:   make(chan struct{}),
		outcome:  fn,
	}
}

func (f *fakeEngine) Submit(_ context.Context, taskType string, _ map[string]any) (engine.TaskID, error) {
	if f.submitGate != nil {
		f.submitEntered <- struct{}{}
		<-f.submitGate
	}
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.panicSubmit {
		panic("engine exploded")
	}
	f.submits = append(f.submits, taskType)
	if f.rejectSubmit {
		return 0, nil
	}
	f.nextID++
	f.queue = append(f.queue, queued{id: f.nextID, typ: taskType})
	return f.nextID, nil
}

func (f *fakeEngine) Start(context.Context) error {
	f.mu.Lock()
	if f.startErr != nil {
		f.mu.Unlock()
		return f.startErr
	}
	f.starts++
	q := f.queue
	f.queue = nil
	f.running.Store(true)
	f.mu.Unlock()

	go f.play(q)
	return nil
}

func (f *fakeEngine) play(q []queued) {
	for _, item := range q {
		f.mu.Lock()
		f.attempts[item.typ]++
		out := f.outcome(item.typ, f.attempts[item.typ])
		stopCh := f.stopCh
		f.mu.Unlock()

		details := fmt.Sprintf(`{"taskid":%d,"taskchain":%q}`, item.id, item.typ)
		if out != outcomeSilent {
			f.emit(engine.MsgTaskChainStart, details)
		}
		switch out {
		case outcomeDone:
			f.emit(engine.MsgTaskChainDone, details)
		case outcomeError:
			f.emit(engine.MsgTaskChainError, details)
		case outcomeHang:
			<-stopCh
			return
		}
	}
	f.running.Store(false)
	f.emit(engine.MsgAllTasksDone, `{}`)
}

func (f *fakeEngine) emit(msg engine.Message, details string) {
	f.mu.Lock()
	cb := f.cb
	f.mu.Unlock()
	if cb != nil {
		cb(msg, []byte(details))
	}
}

func (f *fakeEngine) Stop(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stops++
	f.queue = nil
	f.running.Store(false)
	close(f.stopCh)
	f.stopCh = make(chan struct{})
	return nil
}

func (f *fakeEngine) Running() bool { return f.running.Load() }

func (f *fakeEngine) SetCallback(cb engine.Callback) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cb = cb
}

func (f *fakeEngine) submitted() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.submits...)
}

type fakeNotifier struct {
	mu    sync.Mutex
	views []domain.PipelineView
	err   error
}

func (n *fakeNotifier) NotifyPipeline(_ context.Context, view domain.PipelineView) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.views = append(n.views, view)
	return n.err
}

type fakeScreenshotter struct{}

func (fakeScreenshotter) CaptureBase64(context.Context) (string, error) {
	return "aW1n", nil
}

func newTestOrchestrator(t *testing.T, eng *fakeEngine, opts ...func(*Config)) *Orchestrator {
	t.Helper()
	cfg := Config{Engine: eng, PollInterval: 10 * time.Millisecond}
	for _, opt := range opts {
		opt(&cfg)
	}
	return New(cfg)
}

func appendTask(t *testing.T, o *Orchestrator, typ string, retries int) *domain.Task {
	t.Helper()
	task, err := domain.NewTask(typ, typ, nil, domain.WithRetries(retries, 0))
	if err != nil {
		t.Fatalf("NewTask: %v", err)
	}
	if err := o.Append(task); err != nil {
		t.Fatalf("Append: %v", err)
	}
	return task
}

func runAndWait(t *testing.T, o *Orchestrator) {
	t.Helper()
	if err := o.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	wait(t, o)
}

func wait(t *testing.T, o *Orchestrator) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := o.Wait(ctx); err != nil {
		t.Fatalf("pipeline did not finish: %v", err)
	}
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func hasLog(o *Orchestrator, substr string) bool {
	for _, l := range o.View().Logs {
		if strings.Contains(l.Content, substr) {
			return true
		}
	}
	return false
}

func taskStatus(o *Orchestrator, task *domain.Task) domain.TaskStatus {
	for _, v := range o.View().Tasks {
		if v.ID == task.ID {
			return v.Status
		}
	}
	return ""
}

// --- Executor Tests ---

func TestOrchestrator_RunsTasksInOrder(t *testing.T) {
	eng := newFakeEngine(nil)
	o := newTestOrchestrator(t, eng)

	tasks := []*domain.Task{
		appendTask(t, o, "StartUp", 3),
		appendTask(t, o, "Fight", 3),
		appendTask(t, o, "Award", 3),
	}
	runAndWait(t, o)

	got := eng.submitted()
	want := []string{"StartUp", "Fight", "Award"}
	if strings.Join(got, ",") != strings.Join(want, ",") {
		t.Errorf("expected submissions %v, got %v", want, got)
	}
	for _, task := range tasks {
		if s := taskStatus(o, task); s != domain.TaskStatusCompleted {
			t.Errorf("task %s: expected completed, got %s", task.TypeName, s)
		}
	}
	if o.Status() != domain.PipelineStatusCompleted {
		t.Errorf("expected completed pipeline, got %s", o.Status())
	}
	if !hasLog(o, "all tasks completed") {
		t.Error("expected completion log")
	}
	if o.IsRunning() {
		t.Error("executor should not be running after Wait")
	}
}

func TestOrchestrator_RetryBound(t *testing.T) {
	eng := newFakeEngine(func(string, int) outcome { return outcomeError })
	o := newTestOrchestrator(t, eng)

	task := appendTask(t, o, "Fight", 3)
	next := appendTask(t, o, "Award", 3)
	eng.outcome = func(typ string, _ int) outcome {
		if typ == "Award" {
			return outcomeDone
		}
		return outcomeError
	}
	runAndWait(t, o)

	fights := 0
	for _, s := range eng.submitted() {
		if s == "Fight" {
			fights++
		}
	}
	if fights != 3 {
		t.Errorf("expected 3 attempts, got %d", fights)
	}
	if s := taskStatus(o, task); s != domain.TaskStatusFailed {
		t.Errorf("expected failed task, got %s", s)
	}
	if s := taskStatus(o, next); s != domain.TaskStatusCompleted {
		t.Errorf("pipeline should continue after exhausted task, got %s", s)
	}
	if o.Status() != domain.PipelineStatusFailed {
		t.Errorf("expected failed pipeline, got %s", o.Status())
	}
	if !hasLog(o, "task [Fight] reached max retries, skipped") {
		t.Error("expected exhaustion log")
	}
	if !hasLog(o, "task [Fight] failed (attempt 3/3)") {
		t.Error("expected attempt counter in log")
	}
}

func TestOrchestrator_RetryThenSuccess(t *testing.T) {
	eng := newFakeEngine(func(_ string, attempt int) outcome {
		if attempt == 1 {
			return outcomeError
		}
		return outcomeDone
	})
	o := newTestOrchestrator(t, eng)

	task := appendTask(t, o, "Recruit", 3)
	runAndWait(t, o)

	if n := len(eng.submitted()); n != 2 {
		t.Errorf("expected 2 submissions, got %d", n)
	}
	if s := taskStatus(o, task); s != domain.TaskStatusCompleted {
		t.Errorf("expected completed, got %s", s)
	}
	if o.Status() != domain.PipelineStatusCompleted {
		t.Errorf("expected completed pipeline, got %s", o.Status())
	}
}

func TestOrchestrator_SubmitRejected(t *testing.T) {
	eng := newFakeEngine(nil)
	eng.rejectSubmit = true
	o := newTestOrchestrator(t, eng)

	task := appendTask(t, o, "Mall", 2)
	runAndWait(t, o)

	if n := len(eng.submitted()); n != 2 {
		t.Errorf("expected 2 submissions, got %d", n)
	}
	if eng.starts != 0 {
		t.Errorf("engine should not start after rejection, got %d starts", eng.starts)
	}
	if s := taskStatus(o, task); s != domain.TaskStatusFailed {
		t.Errorf("expected failed, got %s", s)
	}
	if !hasLog(o, "submit task [Mall] failed (attempt 1/2)") {
		t.Error("expected submit failure log")
	}
}

func TestOrchestrator_StartFailed(t *testing.T) {
	eng := newFakeEngine(nil)
	eng.startErr = errors.New("device offline")
	o := newTestOrchestrator(t, eng)

	task := appendTask(t, o, "Infrast", 2)
	runAndWait(t, o)

	if n := len(eng.submitted()); n != 2 {
		t.Errorf("expected 2 submissions, got %d", n)
	}
	if s := taskStatus(o, task); s != domain.TaskStatusFailed {
		t.Errorf("expected failed, got %s", s)
	}
	if o.Status() != domain.PipelineStatusFailed {
		t.Errorf("expected failed pipeline, got %s", o.Status())
	}
}

func TestOrchestrator_TaskWithoutResultNotRetried(t *testing.T) {
	eng := newFakeEngine(func(string, int) outcome { return outcomeSilent })
	o := newTestOrchestrator(t, eng)

	task := appendTask(t, o, "Award", 3)
	runAndWait(t, o)

	if n := len(eng.submitted()); n != 1 {
		t.Errorf("expected a single submission, got %d", n)
	}
	if s := taskStatus(o, task); s != domain.TaskStatusPending {
		t.Errorf("task status should be untouched, got %s", s)
	}
	if o.Status() != domain.PipelineStatusFailed {
		t.Errorf("pipeline with unfinished task should fail, got %s", o.Status())
	}
}

func TestOrchestrator_StopDuringSubmitLeavesEngineStopped(t *testing.T) {
	eng := newFakeEngine(func(string, int) outcome { return outcomeHang })
	eng.submitGate = make(chan struct{})
	eng.submitEntered = make(chan struct{}, 1)
	o := newTestOrchestrator(t, eng)

	task := appendTask(t, o, "Fight", 3)
	if err := o.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}

	select {
	case <-eng.submitEntered:
	case <-time.After(2 * time.Second):
		t.Fatal("submit was not called")
	}
	if err := o.Stop(context.Background()); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	close(eng.submitGate)
	wait(t, o)

	if eng.Running() {
		t.Error("engine must not run after stop")
	}
	eng.mu.Lock()
	starts := eng.starts
	eng.mu.Unlock()
	if starts != 0 {
		t.Errorf("engine should not be started after stop, got %d starts", starts)
	}
	if s := taskStatus(o, task); s != domain.TaskStatusCancelled {
		t.Errorf("expected cancelled task, got %s", s)
	}
	if o.Status() != domain.PipelineStatusCancelled {
		t.Errorf("expected cancelled pipeline, got %s", o.Status())
	}
	next, _ := domain.NewTask("Award", "Award", nil)
	if err := o.Append(next); err != nil {
		t.Errorf("append after stop: %v", err)
	}
}

func TestOrchestrator_StopInterruptsEngineWait(t *testing.T) {
	eng := newFakeEngine(func(string, int) outcome { return outcomeHang })
	o := newTestOrchestrator(t, eng, func(c *Config) { c.PollInterval = time.Minute })

	first := appendTask(t, o, "Fight", 3)
	second := appendTask(t, o, "Award", 3)
	if err := o.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	waitFor(t, "engine to start", func() bool { return taskStatus(o, first) == domain.TaskStatusRunning })

	if err := o.Stop(context.Background()); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	wait(t, o)

	if o.Status() != domain.PipelineStatusCancelled {
		t.Errorf("expected cancelled pipeline, got %s", o.Status())
	}
	if s := taskStatus(o, first); s != domain.TaskStatusCancelled {
		t.Errorf("expected cancelled first task, got %s", s)
	}
	if s := taskStatus(o, second); s != domain.TaskStatusCancelled {
		t.Errorf("expected cancelled second task, got %s", s)
	}
	if n := len(eng.submitted()); n != 1 {
		t.Errorf("no task should be submitted after stop, got %d submissions", n)
	}
	if eng.stops != 1 {
		t.Errorf("expected engine stop, got %d", eng.stops)
	}
}

func TestOrchestrator_StopInterruptsRetryDelay(t *testing.T) {
	eng := newFakeEngine(func(string, int) outcome { return outcomeError })
	o := newTestOrchestrator(t, eng)

	task, _ := domain.NewTask("Fight", "Fight", nil, domain.WithRetries(3, 3600))
	if err := o.Append(task); err != nil {
		t.Fatalf("Append: %v", err)
	}
	if err := o.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	waitFor(t, "first failure", func() bool { return hasLog(o, "task [Fight] failed (attempt 1/3)") })

	// Движок простаивает, но executor ещё ждёт паузу.
	if err := o.Append(task.Clone()); !errors.Is(err, ErrBusy) {
		t.Errorf("expected ErrBusy during retry delay, got %v", err)
	}

	if err := o.Stop(context.Background()); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	wait(t, o)

	if n := len(eng.submitted()); n != 1 {
		t.Errorf("expected 1 submission, got %d", n)
	}
	if o.Status() != domain.PipelineStatusCancelled {
		t.Errorf("expected cancelled, got %s", o.Status())
	}
	if hasLog(o, "reached max retries") {
		t.Error("stopped task should not be reported as exhausted")
	}
}

func TestOrchestrator_StopWhenIdle(t *testing.T) {
	eng := newFakeEngine(nil)
	o := newTestOrchestrator(t, eng)
	task := appendTask(t, o, "Mall", 1)

	if err := o.Stop(context.Background()); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if o.Status() != domain.PipelineStatusCancelled {
		t.Errorf("expected cancelled, got %s", o.Status())
	}
	if s := taskStatus(o, task); s != domain.TaskStatusCancelled {
		t.Errorf("expected cancelled task, got %s", s)
	}
}

// --- Busy Guard Tests ---

func TestOrchestrator_BusyWhileEngineRunning(t *testing.T) {
	eng := newFakeEngine(nil)
	o := newTestOrchestrator(t, eng)
	task := appendTask(t, o, "Fight", 1)

	eng.running.Store(true)

	if err := o.Append(task.Clone()); !errors.Is(err, ErrBusy) {
		t.Errorf("Append: expected ErrBusy, got %v", err)
	}
	if err := o.AppendAll([]*domain.Task{task.Clone()}); !errors.Is(err, ErrBusy) {
		t.Errorf("AppendAll: expected ErrBusy, got %v", err)
	}
	if err := o.Clear(); !errors.Is(err, ErrBusy) {
		t.Errorf("Clear: expected ErrBusy, got %v", err)
	}
	if err := o.Requeue([]*domain.Task{task.ResetForRecovery()}); !errors.Is(err, ErrBusy) {
		t.Errorf("Requeue: expected ErrBusy, got %v", err)
	}
	if err := o.Start(context.Background()); !errors.Is(err, ErrBusy) {
		t.Errorf("Start: expected ErrBusy, got %v", err)
	}
	if err := o.Stop(context.Background()); err != nil {
		t.Errorf("Stop should be allowed, got %v", err)
	}
	if len(o.View().Tasks) != 1 {
		t.Error("rejected operations must not change the pipeline")
	}
}

func TestOrchestrator_SecondRunOnlyNewTasks(t *testing.T) {
	eng := newFakeEngine(nil)
	o := newTestOrchestrator(t, eng)

	appendTask(t, o, "StartUp", 1)
	runAndWait(t, o)

	fresh := appendTask(t, o, "Fight", 1)
	runAndWait(t, o)

	got := eng.submitted()
	if len(got) != 2 || got[1] != "Fight" {
		t.Errorf("second run should submit only the new task, got %v", got)
	}
	if s := taskStatus(o, fresh); s != domain.TaskStatusCompleted {
		t.Errorf("expected completed, got %s", s)
	}
}

func TestOrchestrator_UnfinishedBatchAndRequeue(t *testing.T) {
	eng := newFakeEngine(func(typ string, _ int) outcome {
		if typ == "Fight" {
			return outcomeHang
		}
		return outcomeDone
	})
	o := newTestOrchestrator(t, eng)

	done := appendTask(t, o, "StartUp", 1)
	fight := appendTask(t, o, "Fight", 1)
	award := appendTask(t, o, "Award", 1)

	if err := o.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	waitFor(t, "fight to start", func() bool { return taskStatus(o, fight) == domain.TaskStatusRunning })
	if err := o.Stop(context.Background()); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	wait(t, o)

	snapshot := o.UnfinishedBatch()
	if len(snapshot) != 2 || snapshot[0].ID != fight.ID || snapshot[1].ID != award.ID {
		t.Fatalf("expected fight and award in snapshot, got %d tasks", len(snapshot))
	}
	for _, task := range snapshot {
		if task.Status != domain.TaskStatusPending {
			t.Errorf("snapshot task should be pending, got %s", task.Status)
		}
	}

	eng.outcome = func(string, int) outcome { return outcomeDone }
	if err := o.Requeue(snapshot); err != nil {
		t.Fatalf("Requeue: %v", err)
	}
	runAndWait(t, o)

	view := o.View()
	if len(view.Tasks) != 3 {
		t.Fatalf("task ids must stay unique, got %d tasks", len(view.Tasks))
	}
	if view.Tasks[0].ID != done.ID || view.Tasks[0].Status != domain.TaskStatusCompleted {
		t.Error("completed task should be untouched")
	}
	if o.Status() != domain.PipelineStatusCompleted {
		t.Errorf("expected completed after resume, got %s", o.Status())
	}
}

// --- Reporting Tests ---

func TestOrchestrator_NotifiesAndReports(t *testing.T) {
	eng := newFakeEngine(nil)
	notifier := &fakeNotifier{}
	var reports []*Report
	o := newTestOrchestrator(t, eng, func(c *Config) {
		c.Notifier = notifier
		c.Screenshotter = fakeScreenshotter{}
		c.Reporters = []Reporter{ReporterFunc(func(_ context.Context, r *Report) error {
			reports = append(reports, r)
			return nil
		})}
	})

	appendTask(t, o, "Award", 1)
	runAndWait(t, o)

	if len(notifier.views) != 1 || notifier.views[0].Status != domain.PipelineStatusCompleted {
		t.Fatalf("expected one completed notification, got %d", len(notifier.views))
	}
	if !hasLog(o, "summary notification sent") {
		t.Error("expected notification log")
	}
	if len(reports) != 1 {
		t.Fatalf("expected one report, got %d", len(reports))
	}
	r := reports[0]
	if r.Status != domain.PipelineStatusCompleted || len(r.Tasks) != 1 || r.Batch != 1 {
		t.Errorf("unexpected report: status=%s tasks=%d batch=%d", r.Status, len(r.Tasks), r.Batch)
	}
	for _, l := range r.Logs {
		if l.Type != domain.LogTypeText {
			t.Error("report should carry text logs only")
		}
	}

	images := 0
	for _, l := range o.View().Logs {
		if l.Type == domain.LogTypeImage {
			images++
		}
	}
	if images != 1 {
		t.Errorf("expected one screenshot, got %d", images)
	}
}

func TestOrchestrator_NotificationFailureLogged(t *testing.T) {
	eng := newFakeEngine(func(string, int) outcome { return outcomeError })
	notifier := &fakeNotifier{err: errors.New("smtp down")}
	o := newTestOrchestrator(t, eng, func(c *Config) { c.Notifier = notifier })

	appendTask(t, o, "Fight", 1)
	runAndWait(t, o)

	if len(notifier.views) != 1 || notifier.views[0].Status != domain.PipelineStatusFailed {
		t.Fatal("expected one failed notification")
	}
	if !hasLog(o, "summary notification failed") {
		t.Error("expected notification failure log")
	}
}

func TestOrchestrator_PanicMarksPipelineFailed(t *testing.T) {
	eng := newFakeEngine(nil)
	o := newTestOrchestrator(t, eng)
	appendTask(t, o, "Fight", 1)
	eng.panicSubmit = true

	runAndWait(t, o)

	if o.Status() != domain.PipelineStatusFailed {
		t.Errorf("expected failed, got %s", o.Status())
	}
	if !hasLog(o, "pipeline crashed") {
		t.Error("expected crash log")
	}
	if o.IsRunning() {
		t.Error("executor should be released after panic")
	}
}
