package cli

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

// --- Response types (дублируются из api/dto.go, CLI не импортирует internal/api) ---

// AlgorithmResponse — определение алгоритма из API.
type AlgorithmResponse struct {
	Key          string           `json:"key"`
	Version      string           `json:"version"`
	Runtime      string           `json:"runtime"`
	Inputs       []map[string]any `json:"inputs,omitempty"`
	Outputs      []map[string]any `json:"outputs,omitempty"`
	Dependencies []string         `json:"dependencies,omitempty"`
	Idempotent   bool             `json:"idempotent"`
	Description  string           `json:"description,omitempty"`
	PublishedAt  string           `json:"published_at"`
}

// SnapshotResponse — snapshot из API.
type SnapshotResponse struct {
	ID              string          `json:"id"`
	Status          string          `json:"status"`
	Preset          FrozenPreset    `json:"algorithm_preset_frozen"`
	QueueOverrides  *QueueOverrides `json:"queue_overrides,omitempty"`
	ExecutionRef    *ExecutionRef   `json:"execution_ref,omitempty"`
	Outputs         map[string]any  `json:"outputs,omitempty"`
	Failure         *Failure        `json:"failure,omitempty"`
	CancelRequested bool            `json:"cancel_requested,omitempty"`
	CreatedAt       string          `json:"created_at"`
	UpdatedAt       string          `json:"updated_at"`
}

// QueueOverrides — переопределения очередей исполнения.
type QueueOverrides struct {
	Typescript string `json:"typescript,omitempty"`
	Python     string `json:"python,omitempty"`
}

// FrozenPreset — замороженный пресет snapshot.
type FrozenPreset struct {
	Key     string       `json:"key"`
	Version string       `json:"version"`
	Inputs  []InputParam `json:"inputs,omitempty"`
}

// InputParam — один входной параметр пресета.
type InputParam struct {
	Key   string `json:"key"`
	Value any    `json:"value"`
}

// ExecutionRef — ссылка на compute-вызов.
type ExecutionRef struct {
	InvocationID string `json:"invocation_id"`
	Queue        string `json:"queue"`
	Attempt      int    `json:"attempt"`
}

// Failure — терминальная ошибка snapshot.
type Failure struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

// --- Request types ---

// CreateSnapshotRequest — создание snapshot.
type CreateSnapshotRequest struct {
	AlgorithmKey   string          `json:"algorithm_key"`
	Version        string          `json:"version,omitempty"`
	Inputs         []InputParam    `json:"inputs,omitempty"`
	QueueOverrides *QueueOverrides `json:"queue_overrides,omitempty"`
}

// ListSnapshotsOpts — параметры фильтрации снапшотов.
type ListSnapshotsOpts struct {
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

// Client — HTTP-клиент для Reputa API.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient создаёт клиент для API.
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// --- Algorithms ---

// ListAlgorithms возвращает все опубликованные определения.
func (c *Client) ListAlgorithms() ([]AlgorithmResponse, error) {
	var defs []AlgorithmResponse
	err := c.list("/api/v1/algorithms", nil, &defs)
	return defs, err
}

// ListAlgorithmVersions возвращает все версии ключа.
func (c *Client) ListAlgorithmVersions(key string) ([]AlgorithmResponse, error) {
	var defs []AlgorithmResponse
	err := c.list("/api/v1/algorithms/"+key, nil, &defs)
	return defs, err
}

// GetAlgorithm возвращает определение по ключу и версии ("latest" допустим).
func (c *Client) GetAlgorithm(key, version string) (*AlgorithmResponse, error) {
	var def AlgorithmResponse
	err := c.get("/api/v1/algorithms/"+key+"/"+version, &def)
	return &def, err
}

// PublishAlgorithm публикует определение из сырого JSON.
func (c *Client) PublishAlgorithm(def json.RawMessage) (*AlgorithmResponse, error) {
	var published AlgorithmResponse
	err := c.post("/api/v1/algorithms", def, &published)
	return &published, err
}

// --- Snapshots ---

// ListSnapshots возвращает список снапшотов с фильтрацией.
func (c *Client) ListSnapshots(opts ListSnapshotsOpts) ([]SnapshotResponse, error) {
	params := url.Values{}
	if opts.Status != "" {
		params.Set("status", opts.Status)
	}
	if opts.Limit > 0 {
		params.Set("limit", fmt.Sprintf("%d", opts.Limit))
	}

	var snaps []SnapshotResponse
	err := c.list("/api/v1/snapshots", params, &snaps)
	return snaps, err
}

// CreateSnapshot создаёт snapshot для алгоритма.
func (c *Client) CreateSnapshot(req CreateSnapshotRequest) (*SnapshotResponse, error) {
	var snap SnapshotResponse
	err := c.post("/api/v1/snapshots", req, &snap)
	return &snap, err
}

// GetSnapshot возвращает snapshot по ID.
func (c *Client) GetSnapshot(id string) (*SnapshotResponse, error) {
	var snap SnapshotResponse
	err := c.get("/api/v1/snapshots/"+id, &snap)
	return &snap, err
}

// CancelSnapshot запрашивает отмену snapshot.
func (c *Client) CancelSnapshot(id string) (*SnapshotResponse, error) {
	var snap SnapshotResponse
	err := c.post("/api/v1/snapshots/"+id+"/cancel", nil, &snap)
	return &snap, err
}

// --- HTTP helpers ---

func (c *Client) get(path string, result any) error {
	return c.doData(http.MethodGet, path, nil, result)
}

func (c *Client) post(path string, body any, result any) error {
	return c.doData(http.MethodPost, path, body, result)
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

	// 204 No Content
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
