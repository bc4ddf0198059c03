package cli

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

// --- Response types (дублируются из api/dto.go, CLI не импортирует internal/api) ---

// TaskResponse — task из API.
type TaskResponse struct {
	ID         string         `json:"id"`
	TaskName   string         `json:"taskName"`
	TypeTag    string         `json:"typeTag"`
	Params     map[string]any `json:"params"`
	Status     string         `json:"status"`
	CreateTime string         `json:"createTime"`
	MaxRetries int            `json:"maxRetries"`
	RetryDelay int            `json:"retryDelay"`
	Batch      int            `json:"batch,omitempty"`
}

// LogResponse — запись журнала pipeline.
type LogResponse struct {
	Type    string `json:"type"`
	Level   string `json:"level"`
	Content string `json:"content"`
}

// PipelineResponse — снимок pipeline.
type PipelineResponse struct {
	Tasks  []TaskResponse `json:"tasks"`
	Status string         `json:"status"`
	Logs   []LogResponse  `json:"logs"`
}

// HistoryResponse — запись истории.
type HistoryResponse struct {
	ID         string `json:"id"`
	Batch      int    `json:"batch"`
	Status     string `json:"status"`
	Tasks      int    `json:"tasks"`
	Completed  int    `json:"completed"`
	StartedAt  string `json:"started_at"`
	FinishedAt string `json:"finished_at"`
	Duration   string `json:"duration"`
}

// RunDetailResponse — запуск целиком.
type RunDetailResponse struct {
	ID         string         `json:"id"`
	Batch      int            `json:"batch"`
	Status     string         `json:"status"`
	Tasks      []TaskResponse `json:"tasks"`
	Logs       []LogResponse  `json:"logs"`
	StartedAt  string         `json:"started_at"`
	FinishedAt string         `json:"finished_at"`
}

// TaskTypeResponse — вид task.
type TaskTypeResponse struct {
	Type string `json:"type"`
	Name string `json:"name"`
}

// ListHistoryOpts — параметры фильтрации истории.
type ListHistoryOpts struct {
	Status string
	Limit  int
}

// --- API response wrappers ---

type dataResponse struct {
	Data json.RawMessage `json:"data"`
}

type listResponse struct {
	Data  json.RawMessage `json:"data"`
	Total int             `json:"total"`
}

type errorResponse struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// --- Client ---

// Client — HTTP-клиент для MAA API.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

// NewClient создаёт клиент для API. Пустой token не отправляется.
func NewClient(baseURL, token string) *Client {
	return &Client{
		baseURL: baseURL,
		token:   token,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// --- Pipeline ---

// GetPipeline возвращает снимок pipeline.
func (c *Client) GetPipeline() (*PipelineResponse, error) {
	var p PipelineResponse
	err := c.get("/api/maa/pipeline", &p)
	return &p, err
}

// IsRunning сообщает, идёт ли обход.
func (c *Client) IsRunning() (bool, error) {
	var r struct {
		Running bool `json:"running"`
	}
	err := c.get("/api/maa/pipeline/running", &r)
	return r.Running, err
}

// AppendTasks добавляет tasks в конец pipeline.
func (c *Client) AppendTasks(tasks []json.RawMessage) ([]TaskResponse, error) {
	var created []TaskResponse
	err := c.post("/api/maa/pipeline/tasks", map[string]any{"tasks": tasks}, &created)
	return created, err
}

// RunTasks заменяет pipeline на tasks и запускает его.
func (c *Client) RunTasks(tasks []json.RawMessage) (*PipelineResponse, error) {
	var p PipelineResponse
	err := c.post("/api/maa/pipeline", map[string]any{"tasks": tasks}, &p)
	return &p, err
}

// Start запускает pending tasks.
func (c *Client) Start() (*PipelineResponse, error) {
	var p PipelineResponse
	err := c.post("/api/maa/pipeline/start", nil, &p)
	return &p, err
}

// Stop останавливает pipeline.
func (c *Client) Stop() (*PipelineResponse, error) {
	var p PipelineResponse
	err := c.post("/api/maa/pipeline/stop", nil, &p)
	return &p, err
}

// Clear очищает pipeline.
func (c *Client) Clear() error {
	return c.delete("/api/maa/pipeline/tasks")
}

// TaskTypes возвращает зарегистрированные виды task.
func (c *Client) TaskTypes() ([]TaskTypeResponse, error) {
	var types []TaskTypeResponse
	err := c.list("/api/maa/task-types", nil, &types)
	return types, err
}

// --- History ---

// ListHistory возвращает последние запуски.
func (c *Client) ListHistory(opts ListHistoryOpts) ([]HistoryResponse, error) {
	params := url.Values{}
	if opts.Status != "" {
		params.Set("status", opts.Status)
	}
	if opts.Limit > 0 {
		params.Set("limit", strconv.Itoa(opts.Limit))
	}

	var runs []HistoryResponse
	err := c.list("/api/maa/history", params, &runs)
	return runs, err
}

// GetRun возвращает запуск по ID.
func (c *Client) GetRun(id string) (*RunDetailResponse, error) {
	var run RunDetailResponse
	err := c.get("/api/maa/history/"+id, &run)
	return &run, err
}

// --- HTTP helpers ---

func (c *Client) get(path string, result any) error {
	return c.doData(http.MethodGet, path, nil, result)
}

func (c *Client) post(path string, body any, result any) error {
	return c.doData(http.MethodPost, path, body, result)
}

func (c *Client) delete(path string) error {
	resp, err := c.do(http.MethodDelete, path, nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	return c.checkError(resp)
}

func (c *Client) list(path string, params url.Values, result any) error {
	if len(params) > 0 {
		path = path + "?" + params.Encode()
	}

	resp, err := c.do(http.MethodGet, path, nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if err := c.checkError(resp); err != nil {
		return err
	}

	var lr listResponse
	if err := json.NewDecoder(resp.Body).Decode(&lr); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}

	return json.Unmarshal(lr.Data, result)
}

func (c *Client) doData(method, path string, body any, result any) error {
	resp, err := c.do(method, path, body)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if err := c.checkError(resp); err != nil {
		return err
	}

	if resp.StatusCode == http.StatusNoContent {
		return nil
	}

	var dr dataResponse
	if err := json.NewDecoder(resp.Body).Decode(&dr); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}

	if result != nil {
		return json.Unmarshal(dr.Data, result)
	}
	return nil
}

func (c *Client) do(method, path string, body any) (*http.Response, error) {
	var bodyReader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request: %w", err)
		}
		bodyReader = bytes.NewReader(data)
	}

	req, err := http.NewRequest(method, c.baseURL+path, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("X-Access-Token", c.token)
	}

	return c.httpClient.Do(req)
}

func (c *Client) checkError(resp *http.Response) error {
	if resp.StatusCode < 400 {
		return nil
	}

	var er errorResponse
	if err := json.NewDecoder(resp.Body).Decode(&er); err != nil {
		return fmt.Errorf("API error: HTTP %d", resp.StatusCode)
	}

	return fmt.Errorf("%s: %s", er.Error.Code, er.Error.Message)
}
