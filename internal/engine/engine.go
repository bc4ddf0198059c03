package engine

import (
	"context"
	"strconv"
)

// TaskID — идентификатор экземпляра task chain, выданный движком.
// 0 означает отказ в постановке.
type TaskID int64

// Message — код асинхронного сообщения движка.
type Message int

// Коды сообщений движка.
const (
	MsgInternalError  Message = 0
	MsgInitFailed     Message = 1
	MsgConnectionInfo Message = 2
	MsgAllTasksDone   Message = 3
	MsgAsyncCallInfo  Message = 4
	MsgDestroyed      Message = 5
	MsgTaskChainError Message = 10000
	MsgTaskChainStart Message = 10001
	MsgTaskChainDone  Message = 10002
	MsgTaskChainExtra Message = 10003
	MsgTaskChainStop  Message = 10004
	MsgSubTaskError   Message = 20000
	MsgSubTaskStart   Message = 20001
	MsgSubTaskDone    Message = 20002
	MsgSubTaskExtra   Message = 20003
	MsgSubTaskStopped Message = 20004
)

var messageNames = map[Message]string{
	MsgInternalError:  "InternalError",
	MsgInitFailed:     "InitFailed",
	MsgConnectionInfo: "ConnectionInfo",
	MsgAllTasksDone:   "AllTasksCompleted",
	MsgAsyncCallInfo:  "AsyncCallInfo",
	MsgDestroyed:      "Destroyed",
	MsgTaskChainError: "TaskChainError",
	MsgTaskChainStart: "TaskChainStart",
	MsgTaskChainDone:  "TaskChainCompleted",
	MsgTaskChainExtra: "TaskChainExtraInfo",
	MsgTaskChainStop:  "TaskChainStopped",
	MsgSubTaskError:   "SubTaskError",
	MsgSubTaskStart:   "SubTaskStart",
	MsgSubTaskDone:    "SubTaskCompleted",
	MsgSubTaskExtra:   "SubTaskExtraInfo",
	MsgSubTaskStopped: "SubTaskStopped",
}

// String возвращает имя сообщения или его код.
func (m Message) String() string {
	if name, ok := messageNames[m]; ok {
		return name
	}
	return "Message(" + strconv.Itoa(int(m)) + ")"
}

// Callback получает сообщения движка. Вызывается из горутины
// доставки движка, вызовы последовательны.
type Callback func(msg Message, details []byte)

// Engine — внешний движок автоматизации.
//
// Движок выполняет task chains асинхронно и сообщает о ходе
// выполнения через Callback.
type Engine interface {
	// Submit ставит task chain в очередь движка.
	// Ошибка или TaskID == 0 означают отказ.
	Submit(ctx context.Context, taskType string, params map[string]any) (TaskID, error)

	// Start запускает выполнение очереди.
	Start(ctx context.Context) error

	// Stop останавливает выполнение и очищает очередь движка.
	Stop(ctx context.Context) error

	// Running сообщает, выполняет ли движок что-либо. Не блокируется.
	Running() bool

	// SetCallback задаёт получателя сообщений.
	SetCallback(cb Callback)
}
