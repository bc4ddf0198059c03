package steps

import (
	"encoding/json"
	"fmt"

	"github.com/shaiso/maa-api/internal/domain"
)

// request — общие поля плоского запроса на task.
//
// Остальные поля запроса трактуются как параметры вида.
type request struct {
	Name       string `json:"name"`
	MaxRetries *int   `json:"max_retries,omitempty"`
	RetryDelay *int   `json:"retry_delay,omitempty"`
}

// Decode превращает плоский JSON-запрос в Task:
//
//	{"name": "Fight", "stage": "1-7", "times": 3, "max_retries": 2}
//
// Возвращает ErrMissingName, ErrUnknownKind, ErrInvalidParams или
// *domain.ValidationError.
func (r *Registry) Decode(raw json.RawMessage) (*domain.Task, error) {
	var req request
	if err := json.Unmarshal(raw, &req); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidParams, err)
	}
	if req.Name == "" {
		return nil, ErrMissingName
	}

	k, err := r.Get(req.Name)
	if err != nil {
		return nil, err
	}
	params, err := k.Build(raw)
	if err != nil {
		return nil, err
	}

	maxRetries, retryDelay := domain.DefaultMaxRetries, domain.DefaultRetryDelay
	if req.MaxRetries != nil {
		maxRetries = *req.MaxRetries
	}
	if req.RetryDelay != nil {
		retryDelay = *req.RetryDelay
	}
	return domain.NewTask(k.DisplayName(), k.Type(), params, domain.WithRetries(maxRetries, retryDelay))
}

// DecodeList разбирает массив запросов. Ошибка в любом элементе
// отменяет весь список.
func (r *Registry) DecodeList(raws []json.RawMessage) ([]*domain.Task, error) {
	tasks := make([]*domain.Task, 0, len(raws))
	for i, raw := range raws {
		t, err := r.Decode(raw)
		if err != nil {
			return nil, fmt.Errorf("task %d: %w", i, err)
		}
		tasks = append(tasks, t)
	}
	return tasks, nil
}

// NewCloseDownTask создаёт task закрытия клиента.
func NewCloseDownTask(clientType string) (*domain.Task, error) {
	return build("CloseDown", "Close Down", &CloseDownParams{ClientType: clientType})
}

// NewStartUpTask создаёт task запуска клиента с входом в игру.
func NewStartUpTask(clientType string) (*domain.Task, error) {
	start := true
	return build("StartUp", "Start Up", &StartUpParams{
		ClientType:       &clientType,
		StartGameEnabled: &start,
	})
}

func build(typ, display string, p Params) (*domain.Task, error) {
	if err := p.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrInvalidParams, typ, err)
	}
	params, err := toMap(p)
	if err != nil {
		return nil, err
	}
	return domain.NewTask(display, typ, params)
}
