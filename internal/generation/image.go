package generation

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/lumora-ai/companion-backend/pkg/config"
	apperrors "github.com/lumora-ai/companion-backend/pkg/errors"
)

// TaskState is the provider-reported lifecycle of an async image task.
type TaskState string

const (
	TaskStateWaiting    TaskState = "waiting"
	TaskStateQueueing   TaskState = "queueing"
	TaskStateGenerating TaskState = "generating"
	TaskStateSuccess    TaskState = "success"
	TaskStateFail       TaskState = "fail"
)

// InFlight reports whether the task is still being worked on.
func (s TaskState) InFlight() bool {
	switch s {
	case TaskStateWaiting, TaskStateQueueing, TaskStateGenerating:
		return true
	}
	return false
}

// TaskStatus is one poll observation of an async image task.
type TaskStatus struct {
	State    TaskState
	URLs     []string
	FailCode string
	FailMsg  string
}

// ImageClient is the submit/poll surface of one async image provider.
type ImageClient interface {
	Name() string
	SubmitTask(ctx context.Context, prompt string) (string, error)
	TaskStatus(ctx context.Context, taskID string) (TaskStatus, error)
}

type imageClient struct {
	name       string
	apiKey     string
	baseURL    string
	model      string
	httpClient *http.Client
}

// NewImageClient builds the HTTP client for one async image provider.
func NewImageClient(cfg config.ImageProviderConfig) (ImageClient, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("image provider base url required")
	}
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("image provider api key required")
	}
	return &imageClient{
		name:       cfg.Model,
		apiKey:     cfg.APIKey,
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		model:      cfg.Model,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}, nil
}

func (c *imageClient) Name() string { return c.name }

func (c *imageClient) SubmitTask(ctx context.Context, prompt string) (string, error) {
	payload := map[string]any{
		"model": c.model,
		"input": map[string]any{
			"prompt": prompt,
		},
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/v1/jobs/createTask", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("new request: %w", err)
	}
	c.setHeaders(req)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", apperrors.Wrap(apperrors.CodeProvider, err, "submitting image task")
	}
	defer resp.Body.Close()

	rawBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read response body: %w", err)
	}
	if err := classifyStatus(resp.StatusCode, rawBody); err != nil {
		return "", err
	}

	var createResp struct {
		Code int    `json:"code"`
		Msg  string `json:"msg"`
		Data struct {
			TaskID string `json:"taskId"`
		} `json:"data"`
	}
	if err := json.Unmarshal(rawBody, &createResp); err != nil {
		return "", fmt.Errorf("decode create task response: %w", err)
	}
	if createResp.Code != 200 {
		return "", apperrors.New(apperrors.CodeProvider, fmt.Sprintf("create task refused: code=%d msg=%s", createResp.Code, createResp.Msg))
	}
	if createResp.Data.TaskID == "" {
		return "", apperrors.New(apperrors.CodeProvider, "empty task id in create response")
	}
	return createResp.Data.TaskID, nil
}

func (c *imageClient) TaskStatus(ctx context.Context, taskID string) (TaskStatus, error) {
	params := url.Values{}
	params.Set("taskId", taskID)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/v1/jobs/recordInfo?"+params.Encode(), nil)
	if err != nil {
		return TaskStatus{}, fmt.Errorf("new request: %w", err)
	}
	c.setHeaders(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return TaskStatus{}, apperrors.Wrap(apperrors.CodeProvider, err, "polling image task")
	}
	defer resp.Body.Close()

	rawBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return TaskStatus{}, fmt.Errorf("read response body: %w", err)
	}
	if err := classifyStatus(resp.StatusCode, rawBody); err != nil {
		return TaskStatus{}, err
	}

	var statusResp struct {
		Code int    `json:"code"`
		Msg  string `json:"msg"`
		Data struct {
			TaskID     string `json:"taskId"`
			State      string `json:"state"`
			ResultJSON string `json:"resultJson"`
			FailCode   string `json:"failCode"`
			FailMsg    string `json:"failMsg"`
		} `json:"data"`
	}
	if err := json.Unmarshal(rawBody, &statusResp); err != nil {
		return TaskStatus{}, fmt.Errorf("decode status response: %w", err)
	}
	if statusResp.Code != 200 {
		return TaskStatus{}, apperrors.New(apperrors.CodeProvider, fmt.Sprintf("task status refused: code=%d msg=%s", statusResp.Code, statusResp.Msg))
	}

	status := TaskStatus{
		State:    TaskState(statusResp.Data.State),
		FailCode: statusResp.Data.FailCode,
		FailMsg:  statusResp.Data.FailMsg,
	}
	if status.State == TaskStateSuccess && statusResp.Data.ResultJSON != "" {
		var result struct {
			ResultURLs []string `json:"resultUrls"`
		}
		if err := json.Unmarshal([]byte(statusResp.Data.ResultJSON), &result); err != nil {
			return TaskStatus{}, fmt.Errorf("decode result json: %w", err)
		}
		status.URLs = result.ResultURLs
	}
	return status, nil
}

func (c *imageClient) setHeaders(req *http.Request) {
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Accept", "application/json")
}

// classifyStatus maps provider HTTP failures onto typed errors so callers
// can distinguish quota exhaustion from revoked credentials.
func classifyStatus(statusCode int, body []byte) error {
	if statusCode < 300 {
		return nil
	}
	msg := fmt.Sprintf("image provider status=%d body=%s", statusCode, truncate(body, 200))
	switch statusCode {
	case http.StatusUnauthorized, http.StatusForbidden:
		return apperrors.New(apperrors.CodeForbidden, msg)
	case http.StatusPaymentRequired, http.StatusTooManyRequests:
		return apperrors.New(apperrors.CodeQuotaExceeded, msg)
	}
	return apperrors.New(apperrors.CodeProvider, msg)
}

func truncate(body []byte, max int) string {
	if len(body) <= max {
		return string(body)
	}
	return string(body[:max]) + "..."
}
