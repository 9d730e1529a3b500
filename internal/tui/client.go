package tui

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// DefaultClientTimeout is the default timeout for API requests.
const DefaultClientTimeout = 10 * time.Second

// Client wraps the read-only gateway calls the dashboard needs.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a new API client with timeout
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: DefaultClientTimeout,
		},
	}
}

// Health fetches the liveness payload.
func (c *Client) Health(ctx context.Context) (*HealthReport, error) {
	var out HealthReport
	if err := c.get(ctx, "/health", &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Status fetches the tool version and task totals.
func (c *Client) Status(ctx context.Context) (*StatusReport, error) {
	var out StatusReport
	if err := c.get(ctx, "/claude-code/status", &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// GetTask fetches a single task
func (c *Client) GetTask(ctx context.Context, id string) (*TaskDetail, error) {
	var out TaskDetail
	if err := c.get(ctx, "/claude-code/task/"+url.PathEscape(id), &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) get(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if resp.StatusCode >= 400 {
		return &APIError{StatusCode: resp.StatusCode, Message: errorMessage(resp.StatusCode, body)}
	}
	return json.Unmarshal(body, out)
}

// errorMessage picks the most useful text out of an error body.
func errorMessage(status int, body []byte) string {
	var payload struct {
		Error   string `json:"error"`
		Message string `json:"message"`
	}
	if json.Unmarshal(body, &payload) == nil {
		switch {
		case payload.Error != "" && payload.Message != "":
			return fmt.Sprintf("%s: %s", payload.Error, payload.Message)
		case payload.Error != "":
			return payload.Error
		}
	}
	return fmt.Sprintf("API error (%d): %s", status, strings.TrimSpace(string(body)))
}
