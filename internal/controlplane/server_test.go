package controlplane

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fentz26/ccgateway/internal/config"
	"github.com/fentz26/ccgateway/internal/connectors"
	"github.com/fentz26/ccgateway/internal/connectors/localexec"
)

func TestHealthEndpoint_OK(t *testing.T) {
	// The runner is broken; health must not care.
	env := newTestEnv(t, &fakeConnector{respond: failWith(&localexec.StartError{Err: errors.New("not found")})})

	for i := 0; i < 3; i++ {
		rec := env.do(t, http.MethodGet, "/health", nil)
		require.Equal(t, http.StatusOK, rec.Code)

		var health HealthResponse
		require.NoError(t, jsonUnmarshal(rec, &health))
		assert.Equal(t, "healthy", health.Status)
		assert.Equal(t, "claude-code-mcp-server", health.Service)
		assert.NotEmpty(t, health.Version)
		assert.NotEmpty(t, health.Timestamp)
		assert.GreaterOrEqual(t, health.UptimeMS, int64(0))
		assert.Equal(t, 0, health.ActiveTasks)
	}

	assert.Equal(t, 0, env.connector.callCount())
	assert.Equal(t, 0, env.registry.Size())
}

func TestRootDescriptor(t *testing.T) {
	env := newTestEnv(t, nil)

	rec := env.do(t, http.MethodGet, "/", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	body := decode(t, rec)
	assert.Equal(t, "Claude Code MCP Server", body["service"])
	assert.Equal(t, "running", body["status"])
	endpoints, ok := body["endpoints"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "POST", endpoints["/claude-code/execute"])
	assert.Equal(t, "GET", endpoints["/claude-code/task/:taskId"])
}

func TestExecute_Completed(t *testing.T) {
	env := newTestEnv(t, &fakeConnector{respond: stdout("done")})

	rec := env.do(t, http.MethodPost, "/claude-code/execute", map[string]string{
		"task_description": "add logging",
		"project_path":     "demo",
		"context":          "  keep \"quotes\" and spaces  ",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	body := decode(t, rec)
	assert.Equal(t, "completed", body["status"])
	assert.Equal(t, "done", body["results"])
	assert.Equal(t, "add logging", body["task_description"])
	assert.Equal(t, "demo", body["project_path"])
	taskID, _ := body["task_id"].(string)
	_, err := uuid.Parse(taskID)
	require.NoError(t, err)

	rec = env.do(t, http.MethodGet, "/claude-code/task/"+taskID, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var task TaskResponse
	require.NoError(t, jsonUnmarshal(rec, &task))
	assert.Equal(t, taskID, task.TaskID)
	assert.Equal(t, taskID, task.ID)
	assert.Equal(t, "completed", string(task.Status))
	assert.Equal(t, "  keep \"quotes\" and spaces  ", task.Context, "context round-trips unchanged")
	assert.Equal(t, "medium", string(task.Priority))
	require.NotNil(t, task.Results)
	assert.Equal(t, "done", *task.Results)
	assert.Nil(t, task.Error)
	assert.NotNil(t, task.CompletedAt)
	assert.Nil(t, task.FailedAt)
	assert.NotEmpty(t, task.Timestamp)
}

func TestExecute_RunnerArguments(t *testing.T) {
	env := newTestEnv(t, &fakeConnector{respond: stdout("ok")})

	rec := env.do(t, http.MethodPost, "/claude-code/execute", map[string]string{
		"task_description": "refactor",
		"project_path":     "svc/api",
		"priority":         "critical",
		"context":          "legacy code",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	call := env.connector.lastCall()
	assert.Equal(t, "execute", call.command)
	assert.Equal(t, []string{
		"--task", "refactor",
		"--path", "/projects/svc/api",
		"--priority", "critical",
		"--context", "legacy code",
	}, call.args)

	env.do(t, http.MethodPost, "/claude-code/execute", map[string]string{
		"task_description": "refactor",
		"project_path":     "svc",
	})
	assert.NotContains(t, env.connector.lastCall().args, "--context", "empty context is not passed")

	rec = env.do(t, http.MethodPost, "/claude-code/execute", map[string]string{
		"task_description": "refactor",
		"project_path":     "/demo",
	})
	require.Equal(t, http.StatusOK, rec.Code, "a leading slash is joined under the root")
	assert.Equal(t, "/projects/demo", env.connector.lastCall().args[3])
}

func TestExecute_Failed(t *testing.T) {
	env := newTestEnv(t, &fakeConnector{respond: failWith(&localexec.ExitError{Code: 1, Output: "build failed"})})

	rec := env.do(t, http.MethodPost, "/claude-code/execute", map[string]string{
		"task_description": "add logging",
		"project_path":     "demo",
	})
	require.Equal(t, http.StatusInternalServerError, rec.Code)

	body := decode(t, rec)
	assert.Equal(t, "error", body["status"])
	assert.True(t, strings.HasSuffix(body["error"].(string), "build failed"), body["error"])
	taskID, _ := body["task_id"].(string)
	require.NotEmpty(t, taskID)

	rec = env.do(t, http.MethodGet, "/claude-code/task/"+taskID, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var task TaskResponse
	require.NoError(t, jsonUnmarshal(rec, &task))
	assert.Equal(t, "failed", string(task.Status))
	require.NotNil(t, task.Error)
	assert.Equal(t, "Claude Code exited with code 1: build failed", *task.Error)
	assert.Nil(t, task.Results)
	assert.NotNil(t, task.FailedAt)
	assert.Nil(t, task.CompletedAt)
}

func TestExecute_Timeout(t *testing.T) {
	env := newTestEnv(t, &fakeConnector{respond: failWith(&localexec.TimeoutError{Timeout: 300 * time.Second})})

	rec := env.do(t, http.MethodPost, "/claude-code/execute", map[string]string{
		"task_description": "slow",
		"project_path":     "demo",
	})
	require.Equal(t, http.StatusInternalServerError, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, "Claude Code timed out after 300000ms", body["error"])

	task, err := env.service.GetTask(body["task_id"].(string))
	require.NoError(t, err)
	assert.Equal(t, "failed", string(task.Status))
	assert.Contains(t, *task.Error, "timed out")
}

func TestExecute_Validation(t *testing.T) {
	tests := []struct {
		name  string
		body  any
		field string
	}{
		{"missing description", map[string]string{"project_path": "demo"}, "task_description"},
		{"missing project path", map[string]string{"task_description": "x"}, "project_path"},
		{"empty strings", map[string]string{"task_description": "", "project_path": ""}, "task_description"},
		{"invalid priority", map[string]string{"task_description": "x", "project_path": "demo", "priority": "urgent"}, "priority"},
		{"path escapes root", map[string]string{"task_description": "x", "project_path": "../../etc"}, "project_path"},
		{"absolute path escapes root", map[string]string{"task_description": "x", "project_path": "/../etc"}, "project_path"},
		{"empty body", nil, "task_description"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t, &fakeConnector{respond: stdout("done")})

			rec := env.do(t, http.MethodPost, "/claude-code/execute", tt.body)
			require.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())

			body := decode(t, rec)
			assert.Equal(t, "Validation error", body["error"])
			assert.Equal(t, tt.field, body["field"])
			assert.NotEmpty(t, body["message"])
			assert.Equal(t, 0, env.connector.callCount(), "runner must not be invoked")
			assert.Equal(t, 0, env.registry.Size(), "no task is recorded")
		})
	}
}

func TestAnalyze_Success(t *testing.T) {
	env := newTestEnv(t, &fakeConnector{respond: stdout("  tree\n")})

	rec := env.do(t, http.MethodPost, "/claude-code/analyze", map[string]string{"project_path": "demo"})
	require.Equal(t, http.StatusOK, rec.Code)

	body := decode(t, rec)
	assert.Equal(t, "success", body["status"])
	assert.Equal(t, "structure", body["analysis_type"], "defaults to structure")
	assert.Equal(t, "demo", body["project_path"])
	assert.Equal(t, "  tree\n", body["results"], "output is returned verbatim")

	call := env.connector.lastCall()
	assert.Equal(t, "analyze", call.command)
	assert.Equal(t, []string{"--type", "structure", "--path", "/projects/demo"}, call.args)
	assert.Equal(t, 0, env.registry.Size(), "analyze does not create tasks")
}

func TestAnalyze_AllTypes(t *testing.T) {
	for _, analysisType := range []string{"structure", "health", "dependencies", "issues"} {
		env := newTestEnv(t, &fakeConnector{respond: stdout("ok")})
		rec := env.do(t, http.MethodPost, "/claude-code/analyze", map[string]string{
			"project_path":  "demo",
			"analysis_type": analysisType,
		})
		require.Equal(t, http.StatusOK, rec.Code, analysisType)
		assert.Equal(t, analysisType, env.connector.lastCall().args[1])
	}
}

// analysis_type is matched case-sensitively against the fixed set.
func TestAnalyze_Validation(t *testing.T) {
	tests := []struct {
		name  string
		body  any
		field string
	}{
		{"missing project path", map[string]string{"analysis_type": "health"}, "project_path"},
		{"empty body", nil, "project_path"},
		{"invalid analysis type", map[string]string{"project_path": "demo", "analysis_type": "security"}, "analysis_type"},
		{"case sensitive analysis type", map[string]string{"project_path": "demo", "analysis_type": "Health"}, "analysis_type"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t, &fakeConnector{respond: stdout("ok")})

			rec := env.do(t, http.MethodPost, "/claude-code/analyze", tt.body)
			require.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Equal(t, tt.field, decode(t, rec)["field"])
			assert.Equal(t, 0, env.connector.callCount())
		})
	}
}

func TestAnalyze_RunnerFailure(t *testing.T) {
	env := newTestEnv(t, &fakeConnector{respond: failWith(&localexec.StartError{Err: errors.New("executable file not found")})})

	rec := env.do(t, http.MethodPost, "/claude-code/analyze", map[string]string{"project_path": "demo"})
	require.Equal(t, http.StatusInternalServerError, rec.Code)

	body := decode(t, rec)
	assert.Equal(t, "error", body["status"])
	assert.Contains(t, body["error"], "failed to start Claude Code")
	assert.NotContains(t, body, "task_id")
}

func TestStatus(t *testing.T) {
	conn := &fakeConnector{}
	conn.respond = func(command string, args []string) (*connectors.ExecResult, error) {
		if command == "--version" {
			return &connectors.ExecResult{Stdout: "claude-code 1.4.2\n"}, nil
		}
		if args[1] == "boom" {
			return nil, &localexec.ExitError{Code: 2, Output: "nope"}
		}
		return &connectors.ExecResult{Stdout: "ok"}, nil
	}
	env := newTestEnv(t, conn)

	env.do(t, http.MethodPost, "/claude-code/execute", map[string]string{"task_description": "fine", "project_path": "demo"})
	env.do(t, http.MethodPost, "/claude-code/execute", map[string]string{"task_description": "boom", "project_path": "demo"})

	var first, second map[string]any
	for i, target := range []*map[string]any{&first, &second} {
		rec := env.do(t, http.MethodGet, "/claude-code/status", nil)
		require.Equal(t, http.StatusOK, rec.Code, "call %d", i)
		*target = decode(t, rec)
	}

	assert.Equal(t, "operational", first["status"])
	assert.Equal(t, "claude-code 1.4.2", first["claude_code_version"])
	assert.Equal(t, "healthy", first["container_health"])
	assert.Equal(t, map[string]any{"total": 2.0, "running": 0.0, "completed": 1.0, "failed": 1.0}, first["tasks"])
	assert.Equal(t, first["tasks"], second["tasks"], "status never mutates the registry")
	assert.Equal(t, 2, env.registry.Size())
}

func TestStatus_RunnerFailure(t *testing.T) {
	env := newTestEnv(t, &fakeConnector{respond: failWith(&localexec.ExitError{Code: 127, Output: "command not found"})})

	rec := env.do(t, http.MethodGet, "/claude-code/status", nil)
	require.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "Claude Code exited with code 127: command not found", decode(t, rec)["error"])
}

func TestGetTask_NotFound(t *testing.T) {
	env := newTestEnv(t, nil)

	rec := env.do(t, http.MethodGet, "/claude-code/task/does-not-exist", nil)
	require.Equal(t, http.StatusNotFound, rec.Code)

	body := decode(t, rec)
	assert.Equal(t, "Task not found", body["error"])
	assert.Equal(t, "does-not-exist", body["task_id"])
}

func TestUnmatchedRoute(t *testing.T) {
	env := newTestEnv(t, nil)

	for _, tc := range []struct{ method, path string }{
		{http.MethodGet, "/nope"},
		{http.MethodGet, "/claude-code/execute"},
		{http.MethodDelete, "/claude-code/task/abc"},
	} {
		rec := env.do(t, tc.method, tc.path, nil)
		require.Equal(t, http.StatusNotFound, rec.Code, tc.path)

		body := decode(t, rec)
		assert.Equal(t, "Endpoint not found", body["error"])
		assert.Contains(t, body["message"], tc.path)
		assert.Contains(t, body["available_endpoints"], "POST /claude-code/execute")
	}
}

func TestMalformedJSON(t *testing.T) {
	env := newTestEnv(t, nil)

	for _, raw := range []string{`{"project_path":`, `[1,2]`, `{"project_path": 42}`} {
		rec := env.do(t, http.MethodPost, "/claude-code/analyze", raw)
		require.Equal(t, http.StatusBadRequest, rec.Code, raw)
		assert.Equal(t, "Invalid request", decode(t, rec)["error"])
	}
	assert.Equal(t, 0, env.connector.callCount())
}

func TestPayloadTooLarge(t *testing.T) {
	env := newTestEnv(t, nil, func(c *config.Config) { c.MaxRequestSize = 64 })

	big := `{"project_path":"` + strings.Repeat("a", 200) + `"}`
	rec := env.do(t, http.MethodPost, "/claude-code/analyze", big)
	require.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
	assert.Equal(t, "Request entity too large", decode(t, rec)["error"])

	// Unknown length bodies are cut off while reading.
	req := httptest.NewRequest(http.MethodPost, "/claude-code/analyze", strings.NewReader(big))
	req.ContentLength = -1
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	env.server.Handler().ServeHTTP(w, req)
	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)

	assert.Equal(t, 0, env.connector.callCount())
}

func TestRateLimit(t *testing.T) {
	env := newTestEnv(t, nil, func(c *config.Config) {
		c.RateLimitMax = 3
		c.RateLimitWindow = 15 * time.Minute
	})

	for i := 0; i < 3; i++ {
		rec := env.do(t, http.MethodGet, "/claude-code/task/x", nil)
		require.Equal(t, http.StatusNotFound, rec.Code)
		assert.Equal(t, "3", rec.Header().Get("RateLimit-Limit"))
	}

	rec := env.do(t, http.MethodGet, "/claude-code/task/x", nil)
	require.Equal(t, http.StatusTooManyRequests, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, "Too many requests from this IP, please try again later.", body["error"])
	assert.Equal(t, "15 minutes", body["retryAfter"])
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))

	// Health probes are never limited.
	assert.Equal(t, http.StatusOK, env.do(t, http.MethodGet, "/health", nil).Code)
}

func TestCORS(t *testing.T) {
	env := newTestEnv(t, nil)

	req := httptest.NewRequest(http.MethodOptions, "/claude-code/execute", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rec := httptest.NewRecorder()
	env.server.Handler().ServeHTTP(rec, req)

	assert.Less(t, rec.Code, 300)
	assert.Equal(t, "http://localhost:3000", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "true", rec.Header().Get("Access-Control-Allow-Credentials"))

	req = httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("Origin", "https://evil.example")
	rec = httptest.NewRecorder()
	env.server.Handler().ServeHTTP(rec, req)
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestSecurityHeaders(t *testing.T) {
	env := newTestEnv(t, nil)

	rec := env.do(t, http.MethodGet, "/health", nil)
	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
	assert.Equal(t, "SAMEORIGIN", rec.Header().Get("X-Frame-Options"))
	assert.Contains(t, rec.Header().Get("Content-Security-Policy"), "default-src 'self'")
}

func TestPanicRecovery(t *testing.T) {
	panicking := &fakeConnector{respond: func(string, []string) (*connectors.ExecResult, error) {
		panic("runner exploded")
	}}

	env := newTestEnv(t, panicking)
	rec := env.do(t, http.MethodGet, "/claude-code/status", nil)
	require.Equal(t, http.StatusInternalServerError, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, "Internal server error", body["error"])
	assert.Equal(t, "Something went wrong", body["message"])

	dev := newTestEnv(t, panicking, func(c *config.Config) { c.Env = config.EnvDevelopment })
	rec = dev.do(t, http.MethodGet, "/claude-code/status", nil)
	require.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "runner exploded", decode(t, rec)["message"])

	// The server keeps serving after a panic.
	assert.Equal(t, http.StatusOK, env.do(t, http.MethodGet, "/health", nil).Code)
}

func TestMetricsEndpoint(t *testing.T) {
	env := newTestEnv(t, &fakeConnector{respond: stdout("done")})
	env.do(t, http.MethodPost, "/claude-code/execute", map[string]string{"task_description": "x", "project_path": "demo"})

	rec := env.do(t, http.MethodGet, "/metrics", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	text := rec.Body.String()
	assert.Contains(t, text, `ccgateway_runner_invocations_total{command="execute",outcome="success"} 1`)
	assert.Contains(t, text, `ccgateway_tasks{status="completed"} 1`)
	assert.Contains(t, text, `ccgateway_http_requests_total{method="POST",route="/claude-code/execute",status="200"} 1`)
}

func TestMetricsDisabled(t *testing.T) {
	cfg := testConfig()
	service := NewService(newTestEnv(t, nil).registry, &fakeConnector{}, nil, cfg.ProjectsRoot, nil)
	server := NewServer(service, cfg, nil, nil)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
