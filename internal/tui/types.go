package tui

// HealthReport is the /health payload.
type HealthReport struct {
	Status      string `json:"status"`
	Timestamp   string `json:"timestamp"`
	UptimeMS    int64  `json:"uptime_ms"`
	ActiveTasks int    `json:"active_tasks"`
	Version     string `json:"version"`
	Service     string `json:"service"`
}

// TaskCounts mirrors the per-status totals reported by /claude-code/status.
type TaskCounts struct {
	Total     int `json:"total"`
	Running   int `json:"running"`
	Completed int `json:"completed"`
	Failed    int `json:"failed"`
}

// StatusReport is the /claude-code/status payload.
type StatusReport struct {
	Status            string     `json:"status"`
	ClaudeCodeVersion string     `json:"claude_code_version"`
	ServerUptimeMS    int64      `json:"server_uptime_ms"`
	Tasks             TaskCounts `json:"tasks"`
	ContainerHealth   string     `json:"container_health"`
	Timestamp         string     `json:"timestamp"`
}

// TaskDetail is a task as returned by /claude-code/task/:taskId.
type TaskDetail struct {
	TaskID          string  `json:"task_id"`
	TaskDescription string  `json:"task_description"`
	ProjectPath     string  `json:"project_path"`
	Context         string  `json:"context"`
	Priority        string  `json:"priority"`
	Status          string  `json:"status"`
	StartedAt       string  `json:"started_at"`
	CompletedAt     string  `json:"completed_at,omitempty"`
	FailedAt        string  `json:"failed_at,omitempty"`
	Results         *string `json:"results,omitempty"`
	Error           *string `json:"error,omitempty"`
}

// APIError is a non-2xx answer from the gateway.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return e.Message
}
