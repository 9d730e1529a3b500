package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// DefaultClientTimeout must outlast the gateway's runner timeout, since execute
// blocks until the child exits.
const DefaultClientTimeout = 6 * time.Minute

// apiClient is the shared HTTP client with timeout.
var apiClient = &http.Client{
	Timeout: DefaultClientTimeout,
}

// apiError is a non-2xx gateway response. body holds the decoded JSON payload
// when there was one.
type apiError struct {
	status int
	body   map[string]any
	raw    string
}

func (e *apiError) Error() string {
	if msg, ok := e.body["error"].(string); ok && msg != "" {
		if detail, ok := e.body["message"].(string); ok && detail != "" {
			return fmt.Sprintf("%s: %s", msg, detail)
		}
		return msg
	}
	return fmt.Sprintf("API error (%d): %s", e.status, e.raw)
}

// apiGet performs a GET request to the API with timeout.
func apiGet(path string) ([]byte, error) {
	resp, err := apiClient.Get(apiAddr + path)
	if err != nil {
		return nil, fmt.Errorf("API request failed: %w", err)
	}
	return readResponse(resp)
}

// apiPost performs a POST request to the API with timeout.
func apiPost(path string, data interface{}) ([]byte, error) {
	jsonData, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}

	resp, err := apiClient.Post(apiAddr+path, "application/json", bytes.NewReader(jsonData))
	if err != nil {
		return nil, fmt.Errorf("API request failed: %w", err)
	}
	return readResponse(resp)
}

func readResponse(resp *http.Response) ([]byte, error) {
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode >= 400 {
		apiErr := &apiError{status: resp.StatusCode, raw: string(body)}
		_ = json.Unmarshal(body, &apiErr.body)
		return nil, apiErr
	}

	return body, nil
}
