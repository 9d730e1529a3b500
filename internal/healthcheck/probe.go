// Package healthcheck implements the standalone liveness probe used by
// container health checks.
package healthcheck

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/exec"
	"runtime"
	"strings"
	"time"
)

// UserAgent identifies probe requests in the gateway's request log.
const UserAgent = "HealthCheck/1.0"

// Errors returned by Check. Transport failures are returned as-is.
var (
	ErrBinaryMissing = errors.New("claude-code binary not found on PATH")
	ErrUnhealthy     = errors.New("health check failed")
)

// Report is the subset of the /health payload the probe inspects.
type Report struct {
	Status      string `json:"status"`
	UptimeMS    int64  `json:"uptime_ms"`
	ActiveTasks int    `json:"active_tasks"`
	Version     string `json:"version"`
}

// Probe checks a running gateway.
type Probe struct {
	URL     string
	Timeout time.Duration
	// Binary is resolved on PATH before probing when CheckBinary is set.
	Binary      string
	CheckBinary bool

	client   *http.Client
	lookPath func(string) (string, error)
}

// New creates a probe for url. Binary checks default to on inside containers.
func New(url, binary string, timeout time.Duration) *Probe {
	return &Probe{
		URL:         url,
		Timeout:     timeout,
		Binary:      binary,
		CheckBinary: InContainer(os.Getenv, runtime.GOOS),
		client:      &http.Client{},
		lookPath:    exec.LookPath,
	}
}

// InContainer reports whether the process looks containerized.
func InContainer(getenv func(string) string, goos string) bool {
	return getenv("DOCKER_CONTAINER") != "" ||
		getenv("KUBERNETES_SERVICE_HOST") != "" ||
		goos == "linux"
}

// Check runs the probe. It returns the decoded report when the gateway
// answered 200 with status "healthy".
func (p *Probe) Check(ctx context.Context) (*Report, error) {
	if p.CheckBinary {
		if _, err := p.lookPath(p.Binary); err != nil {
			return nil, fmt.Errorf("%w: %s", ErrBinaryMissing, p.Binary)
		}
	}

	if p.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.Timeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.URL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", UserAgent)

	resp, err := p.client.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, fmt.Errorf("request timed out after %dms", p.Timeout.Milliseconds())
		}
		return nil, fmt.Errorf("request error: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: HTTP %d: %s", ErrUnhealthy, resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var report Report
	if err := json.Unmarshal(body, &report); err != nil {
		return nil, fmt.Errorf("%w: invalid JSON response: %v", ErrUnhealthy, err)
	}
	if report.Status != "healthy" {
		return nil, fmt.Errorf("%w: unexpected status %q", ErrUnhealthy, report.Status)
	}
	return &report, nil
}
