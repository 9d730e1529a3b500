package controlplane

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/fentz26/ccgateway/internal/config"
	"github.com/fentz26/ccgateway/internal/logging"
	"github.com/fentz26/ccgateway/internal/models"
	"github.com/fentz26/ccgateway/internal/version"
)

// timestampLayout renders UTC instants with millisecond precision.
const timestampLayout = "2006-01-02T15:04:05.000Z07:00"

// Server provides the HTTP API for the gateway.
type Server struct {
	service *Service
	cfg     *config.Config
	metrics *Metrics
	engine  *gin.Engine
	server  *http.Server
	logger  *slog.Logger
}

// NewServer creates a new HTTP server. metrics may be nil to disable /metrics.
func NewServer(service *Service, cfg *config.Config, metrics *Metrics, logger *slog.Logger) *Server {
	if cfg.IsDevelopment() {
		gin.SetMode(gin.DebugMode)
	} else if gin.Mode() != gin.TestMode {
		gin.SetMode(gin.ReleaseMode)
	}
	useJSONFieldNames()

	s := &Server{
		service: service,
		cfg:     cfg,
		metrics: metrics,
		logger:  logging.Component(logger, "http"),
	}
	s.engine = s.routes()
	s.server = &http.Server{
		Addr:              cfg.Addr(),
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      cfg.Runner.Timeout + 30*time.Second,
	}
	return s
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Start starts the HTTP server and blocks until it stops.
func (s *Server) Start() error {
	s.logger.Info("starting gateway", "addr", s.server.Addr, "version", version.Version)
	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

type endpoint struct {
	method string
	path   string
}

func (e endpoint) String() string { return e.method + " " + e.path }

func (s *Server) endpoints() []endpoint {
	eps := []endpoint{
		{http.MethodGet, "/"},
		{http.MethodGet, "/health"},
		{http.MethodPost, "/claude-code/analyze"},
		{http.MethodPost, "/claude-code/execute"},
		{http.MethodGet, "/claude-code/status"},
		{http.MethodGet, "/claude-code/task/:taskId"},
	}
	if s.metrics != nil {
		eps = append(eps, endpoint{http.MethodGet, "/metrics"})
	}
	return eps
}

func (s *Server) routes() *gin.Engine {
	engine := gin.New()
	engine.Use(
		recovery(s.logger, s.cfg.IsDevelopment()),
		requestLogger(s.logger, s.metrics),
		securityHeaders(),
		corsMiddleware(s.cfg.CORSOrigins),
	)

	limitCfg := RateLimitConfig{
		Window: s.cfg.RateLimitWindow,
		Max:    s.cfg.RateLimitMax,
		Exempt: []string{"/health", "/metrics"},
	}
	engine.Use(
		rateLimitMiddleware(newRateLimiter(limitCfg), limitCfg),
		bodyLimit(s.cfg.MaxRequestSize),
	)

	engine.GET("/", s.handleRoot)
	engine.GET("/health", s.handleHealth)
	if s.metrics != nil {
		engine.GET("/metrics", gin.WrapH(s.metrics.Handler()))
	}

	api := engine.Group("/claude-code")
	api.POST("/analyze", s.handleAnalyze)
	api.POST("/execute", s.handleExecute)
	api.GET("/status", s.handleStatus)
	api.GET("/task/:taskId", s.handleGetTask)

	engine.NoRoute(s.handleNotFound)
	return engine
}

func timestamp() string {
	return time.Now().UTC().Format(timestampLayout)
}

// --- Service Handlers ---

func (s *Server) handleRoot(c *gin.Context) {
	endpoints := make(map[string]string)
	for _, ep := range s.endpoints() {
		endpoints[ep.path] = ep.method
	}
	c.JSON(http.StatusOK, gin.H{
		"service":   version.DisplayName,
		"version":   version.Version,
		"status":    "running",
		"uptime_ms": s.service.Uptime().Milliseconds(),
		"endpoints": endpoints,
		"timestamp": timestamp(),
	})
}

// HealthResponse is the liveness payload. It never depends on the external binary.
type HealthResponse struct {
	Status      string `json:"status"`
	Timestamp   string `json:"timestamp"`
	UptimeMS    int64  `json:"uptime_ms"`
	ActiveTasks int    `json:"active_tasks"`
	Version     string `json:"version"`
	Service     string `json:"service"`
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, HealthResponse{
		Status:      "healthy",
		Timestamp:   timestamp(),
		UptimeMS:    s.service.Uptime().Milliseconds(),
		ActiveTasks: s.service.TaskCount(),
		Version:     version.Version,
		Service:     version.ServiceName,
	})
}

func (s *Server) handleNotFound(c *gin.Context) {
	available := make([]string, 0, len(s.endpoints()))
	for _, ep := range s.endpoints() {
		available = append(available, ep.String())
	}
	c.JSON(http.StatusNotFound, gin.H{
		"error":               "Endpoint not found",
		"message":             fmt.Sprintf("The requested endpoint %s %s does not exist", c.Request.Method, c.Request.URL.Path),
		"available_endpoints": available,
	})
}

// --- Claude Code Handlers ---

func (s *Server) handleAnalyze(c *gin.Context) {
	var req analyzeRequest
	if err := bindJSON(c, &req); err != nil {
		s.writeRequestError(c, err)
		return
	}
	if req.AnalysisType == "" {
		req.AnalysisType = string(models.AnalysisStructure)
	}

	results, err := s.service.Analyze(c.Request.Context(), AnalyzeRequest{
		ProjectPath:  req.ProjectPath,
		AnalysisType: models.AnalysisType(req.AnalysisType),
	})
	if err != nil {
		var vErr *ValidationError
		if errors.As(err, &vErr) {
			s.writeRequestError(c, err)
			return
		}
		s.writeRunnerError(c, err, "")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status":        "success",
		"analysis_type": req.AnalysisType,
		"project_path":  req.ProjectPath,
		"results":       results,
		"timestamp":     timestamp(),
	})
}

func (s *Server) handleExecute(c *gin.Context) {
	var req executeRequest
	if err := bindJSON(c, &req); err != nil {
		s.writeRequestError(c, err)
		return
	}

	task, err := s.service.Execute(c.Request.Context(), ExecuteRequest{
		TaskDescription: req.TaskDescription,
		ProjectPath:     req.ProjectPath,
		Context:         req.Context,
		Priority:        models.Priority(req.Priority),
	})
	if err != nil {
		var vErr *ValidationError
		if errors.As(err, &vErr) {
			s.writeRequestError(c, err)
			return
		}
		s.writeRunnerError(c, err, task.ID)
		return
	}

	results := ""
	if task.Results != nil {
		results = *task.Results
	}
	c.JSON(http.StatusOK, gin.H{
		"status":           string(task.Status),
		"task_id":          task.ID,
		"task_description": task.TaskDescription,
		"project_path":     task.ProjectPath,
		"results":          results,
		"timestamp":        timestamp(),
	})
}

func (s *Server) handleStatus(c *gin.Context) {
	claudeVersion, err := s.service.Version(c.Request.Context())
	if err != nil {
		s.writeRunnerError(c, err, "")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status":              "operational",
		"claude_code_version": claudeVersion,
		"server_uptime_ms":    s.service.Uptime().Milliseconds(),
		"tasks":               s.service.Counts(),
		"container_health":    "healthy",
		"timestamp":           timestamp(),
	})
}

// TaskResponse is the task lookup payload: the record flattened next to its id.
type TaskResponse struct {
	TaskID string `json:"task_id"`
	models.TaskRecord
	Timestamp string `json:"timestamp"`
}

func (s *Server) handleGetTask(c *gin.Context) {
	taskID := c.Param("taskId")
	task, err := s.service.GetTask(taskID)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{
			"error":   "Task not found",
			"message": fmt.Sprintf("No task with id %s", taskID),
			"task_id": taskID,
		})
		return
	}

	c.JSON(http.StatusOK, TaskResponse{
		TaskID:     task.ID,
		TaskRecord: task,
		Timestamp:  timestamp(),
	})
}

// --- Error Responses ---

// writeRequestError reports client errors: validation, malformed JSON, oversize bodies.
func (s *Server) writeRequestError(c *gin.Context, err error) {
	var vErr *ValidationError
	switch {
	case errors.Is(err, ErrPayloadTooLarge):
		abortTooLarge(c)
	case errors.As(err, &vErr):
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Validation error",
			"message": vErr.Error(),
			"field":   vErr.Field,
		})
	case errors.Is(err, ErrMalformedRequest):
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request",
			"message": "Request body must be a valid JSON object",
		})
	default:
		s.writeInternalError(c, err)
	}
}

// writeRunnerError reports a failed invocation of the external binary.
func (s *Server) writeRunnerError(c *gin.Context, err error, taskID string) {
	body := gin.H{
		"status":    "error",
		"error":     err.Error(),
		"timestamp": timestamp(),
	}
	if taskID != "" {
		body["task_id"] = taskID
	}
	c.JSON(http.StatusInternalServerError, body)
}

func (s *Server) writeInternalError(c *gin.Context, err error) {
	s.logger.Error("unhandled error", "path", c.Request.URL.Path, "error", err)
	c.JSON(http.StatusInternalServerError, internalErrorBody(err.Error(), s.cfg.IsDevelopment()))
}
