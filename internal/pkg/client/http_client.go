/**
 * 后端 HTTP 客户端
 * @date: 2026.10.18
 * @description: 前端与本地后端之间的探活、提交、状态查询，每个请求只尝试一次
 */
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"lss/internal/model/task"
	"lss/internal/pkg/version"
)

// SubmitResponse /submit 响应
type SubmitResponse struct {
	Accepted   bool             `json:"accepted"`
	Queue      string           `json:"queue"`
	ID         string           `json:"id"`
	Error      string           `json:"error,omitempty"`
	Violations []task.Violation `json:"violations,omitempty"`
}

// BackendClient 后端客户端接口
type BackendClient interface {
	// Ping 探活
	Ping(ctx context.Context) error

	// Submit 提交归一化后的队列
	Submit(ctx context.Context, desc task.QueueDescriptor) (*SubmitResponse, error)

	// Status 查询后端状态 (原样返回 JSON)
	Status(ctx context.Context) (json.RawMessage, error)

	// BaseURL 后端地址
	BaseURL() string
}

// httpClient HTTP客户端实现
type httpClient struct {
	client    *http.Client
	baseURL   string
	userAgent string
}

// NewHTTPClient 创建HTTP客户端实例
func NewHTTPClient(baseURL string, timeout time.Duration) BackendClient {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &httpClient{
		client:    &http.Client{Timeout: timeout},
		baseURL:   strings.TrimRight(baseURL, "/"),
		userAgent: version.GetUserAgent(),
	}
}

func (c *httpClient) BaseURL() string {
	return c.baseURL
}

// Ping 探活
func (c *httpClient) Ping(ctx context.Context) error {
	resp, err := c.doRequest(ctx, http.MethodGet, "/ping", nil)
	if err != nil {
		return fmt.Errorf("ping backend: %w", err)
	}
	defer resp.Body.Close()

	var result struct {
		Message string `json:"message"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return fmt.Errorf("decode ping response: %w", err)
	}
	if resp.StatusCode != http.StatusOK || result.Message != "pong" {
		return fmt.Errorf("unexpected ping response: status %d, message %q", resp.StatusCode, result.Message)
	}
	return nil
}

// Submit 提交队列，被拒绝时返回响应与错误
func (c *httpClient) Submit(ctx context.Context, desc task.QueueDescriptor) (*SubmitResponse, error) {
	resp, err := c.doRequest(ctx, http.MethodPost, "/submit", desc)
	if err != nil {
		return nil, fmt.Errorf("submit request: %w", err)
	}
	defer resp.Body.Close()

	var result SubmitResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decode submit response (status %d): %w", resp.StatusCode, err)
	}
	if resp.StatusCode != http.StatusAccepted || !result.Accepted {
		return &result, fmt.Errorf("backend rejected submission (status %d): %s", resp.StatusCode, result.Error)
	}
	return &result, nil
}

// Status 查询后端状态
func (c *httpClient) Status(ctx context.Context) (json.RawMessage, error) {
	resp, err := c.doRequest(ctx, http.MethodGet, "/status", nil)
	if err != nil {
		return nil, fmt.Errorf("status request: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read status response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("status request failed with status %d: %s", resp.StatusCode, string(data))
	}
	return data, nil
}

// doRequest 执行HTTP请求
func (c *httpClient) doRequest(ctx context.Context, method, path string, data interface{}) (*http.Response, error) {
	var body io.Reader
	if data != nil {
		jsonData, err := json.Marshal(data)
		if err != nil {
			return nil, fmt.Errorf("marshal request data: %w", err)
		}
		body = bytes.NewReader(jsonData)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", c.userAgent)

	return c.client.Do(req)
}
