// Package backend talks to the dashboard backend over HTTP: health probe, alert ingestion and
// log forwarding.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"FlowGuard/internal/model"

	"go.uber.org/zap"
)

// APIKeyHeader carries the shared secret on every request.
const APIKeyHeader = "X-IDS-Key"

const (
	healthTimeout = 3 * time.Second
	logTimeout    = 1 * time.Second
)

// Client implements model.AlertSink and model.LogSink against the backend REST API.
type Client struct {
	baseURL     string
	apiKey      string
	sendTimeout time.Duration
	http        *http.Client
	logger      *zap.Logger
}

// NewClient creates a client for baseURL. sendTimeout bounds alert POSTs.
func NewClient(baseURL, apiKey string, sendTimeout time.Duration, logger *zap.Logger) *Client {
	if sendTimeout <= 0 {
		sendTimeout = 2 * time.Second
	}
	return &Client{
		baseURL:     strings.TrimRight(baseURL, "/"),
		apiKey:      apiKey,
		sendTimeout: sendTimeout,
		http:        &http.Client{},
		logger:      logger,
	}
}

// Name implements model.AlertSink.
func (c *Client) Name() string {
	return "backend"
}

// Health probes GET /health.
func (c *Client) Health(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, healthTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", nil)
	if err != nil {
		return fmt.Errorf("failed to build health request: %w", err)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("backend unreachable at %s: %w", c.baseURL, err)
	}
	defer drain(resp)
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("backend health returned status %d", resp.StatusCode)
	}
	return nil
}

// Send implements model.AlertSink by posting the alert to /api/flows.
func (c *Client) Send(ctx context.Context, alert *model.Alert) error {
	ctx, cancel := context.WithTimeout(ctx, c.sendTimeout)
	defer cancel()

	status, err := c.postJSON(ctx, "/api/flows", alert)
	if err != nil {
		return err
	}
	if status != http.StatusOK && status != http.StatusCreated {
		return fmt.Errorf("backend returned status %d for flow %s", status, alert.FlowID)
	}
	return nil
}

type logEntry struct {
	Message string `json:"message"`
	Level   string `json:"level"`
}

// SendLog implements model.LogSink by posting to /api/logs. The response status is ignored.
func (c *Client) SendLog(ctx context.Context, message string) error {
	ctx, cancel := context.WithTimeout(ctx, logTimeout)
	defer cancel()

	_, err := c.postJSON(ctx, "/api/logs", logEntry{Message: message, Level: "info"})
	return err
}

func (c *Client) postJSON(ctx context.Context, path string, payload any) (int, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return 0, fmt.Errorf("failed to encode payload for %s: %w", path, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return 0, fmt.Errorf("failed to build request for %s: %w", path, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(APIKeyHeader, c.apiKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return 0, fmt.Errorf("POST %s failed: %w", path, err)
	}
	defer drain(resp)
	return resp.StatusCode, nil
}

func drain(resp *http.Response) {
	io.Copy(io.Discard, resp.Body)
	resp.Body.Close()
}
