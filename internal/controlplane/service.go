// Package controlplane provides the HTTP API and service layer of the gateway.
package controlplane

import (
	"context"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/fentz26/ccgateway/internal/audit"
	"github.com/fentz26/ccgateway/internal/connectors"
	"github.com/fentz26/ccgateway/internal/connectors/localexec"
	"github.com/fentz26/ccgateway/internal/logging"
	"github.com/fentz26/ccgateway/internal/models"
	"github.com/fentz26/ccgateway/internal/registry"
)

// Service provides the control plane business logic.
type Service struct {
	registry     *registry.Registry
	connector    connectors.Connector
	recorder     *audit.Recorder
	metrics      *Metrics
	projectsRoot string
	startedAt    time.Time
	now          func() time.Time
	logger       *slog.Logger
}

// NewService creates a new control plane service. recorder may be nil.
func NewService(reg *registry.Registry, conn connectors.Connector, recorder *audit.Recorder, projectsRoot string, logger *slog.Logger) *Service {
	return &Service{
		registry:     reg,
		connector:    conn,
		recorder:     recorder,
		projectsRoot: filepath.Clean(projectsRoot),
		startedAt:    time.Now(),
		now:          time.Now,
		logger:       logging.Component(logger, "service"),
	}
}

// SetMetrics wires Prometheus collectors into runner invocations.
func (s *Service) SetMetrics(m *Metrics) {
	s.metrics = m
}

// Uptime returns how long the service has been running.
func (s *Service) Uptime() time.Duration {
	return s.now().Sub(s.startedAt)
}

// Counts returns per-status task totals.
func (s *Service) Counts() registry.Counts {
	return s.registry.Counts()
}

// TaskCount returns the number of tasks accepted since startup.
func (s *Service) TaskCount() int {
	return s.registry.Size()
}

// --- Analyze ---

// AnalyzeRequest is a validated analyze call.
type AnalyzeRequest struct {
	ProjectPath  string
	AnalysisType models.AnalysisType
}

// Analyze asks the external tool to analyze a project and returns its output verbatim.
func (s *Service) Analyze(ctx context.Context, req AnalyzeRequest) (string, error) {
	if req.AnalysisType == "" {
		req.AnalysisType = models.AnalysisStructure
	}
	if !req.AnalysisType.Valid() {
		return "", newValidationError("analysis_type", "must be one of: "+joinAnalysisTypes())
	}
	fullPath, err := s.resolveProjectPath(req.ProjectPath)
	if err != nil {
		return "", err
	}

	args := []string{"--type", string(req.AnalysisType), "--path", fullPath}
	output, err := s.run(ctx, "", "analyze", args)

	s.recorder.Record("project.analyze", map[string]string{
		"project_path":  req.ProjectPath,
		"analysis_type": string(req.AnalysisType),
	}, localexec.Classify(err), "", errorDetail(err))

	return output, err
}

// --- Execute ---

// ExecuteRequest is a validated execute call.
type ExecuteRequest struct {
	TaskDescription string
	ProjectPath     string
	Context         string
	Priority        models.Priority
}

// Execute creates a running task, invokes the external tool and moves the task
// to completed or failed. The returned record reflects the terminal state; on
// failure the runner error is returned alongside it.
func (s *Service) Execute(ctx context.Context, req ExecuteRequest) (models.TaskRecord, error) {
	if req.Priority == "" {
		req.Priority = models.PriorityMedium
	}
	if !req.Priority.Valid() {
		return models.TaskRecord{}, newValidationError("priority", "must be one of: low, medium, high, critical")
	}
	fullPath, err := s.resolveProjectPath(req.ProjectPath)
	if err != nil {
		return models.TaskRecord{}, err
	}

	task := s.registry.Create(models.TaskRecord{
		TaskDescription: req.TaskDescription,
		ProjectPath:     req.ProjectPath,
		Context:         req.Context,
		Priority:        req.Priority,
		StartedAt:       s.now().UTC(),
	})
	s.logger.Info("task started", "task_id", task.ID, "priority", task.Priority)

	args := []string{"--task", req.TaskDescription, "--path", fullPath, "--priority", string(req.Priority)}
	if req.Context != "" {
		args = append(args, "--context", req.Context)
	}

	output, runErr := s.run(ctx, task.ID, "execute", args)

	if runErr != nil {
		task = task.Fail(runErr.Error(), s.now().UTC())
		s.logger.Warn("task failed", "task_id", task.ID, "error", runErr)
	} else {
		task = task.Complete(output, s.now().UTC())
		s.logger.Info("task completed", "task_id", task.ID)
	}
	if err := s.registry.Update(task.ID, task); err != nil {
		return task, err
	}

	s.recorder.Record("task.execute", map[string]string{
		"task_description": req.TaskDescription,
		"project_path":     req.ProjectPath,
		"context":          req.Context,
		"priority":         string(req.Priority),
	}, string(task.Status), task.ID, errorDetail(runErr))

	return task, runErr
}

// GetTask retrieves a task by id.
func (s *Service) GetTask(id string) (models.TaskRecord, error) {
	task, ok := s.registry.Get(id)
	if !ok {
		return models.TaskRecord{}, ErrTaskNotFound
	}
	return task, nil
}

// --- Status ---

// Version queries the external tool for its version string.
func (s *Service) Version(ctx context.Context) (string, error) {
	output, err := s.run(ctx, "", "--version", nil)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(output), nil
}

// run invokes the connector detached from ctx cancellation so that a client
// disconnect never interrupts the child; only the runner timeout does.
func (s *Service) run(ctx context.Context, taskID, command string, args []string) (string, error) {
	ctx = context.WithoutCancel(ctx)

	started := s.now()
	result, err := s.connector.Execute(ctx, command, args)
	ended := s.now()

	outcome := localexec.Classify(err)
	s.metrics.observeRun(command, outcome, ended.Sub(started))
	s.recorder.RecordRun(ctx, &models.Run{
		TaskID:    taskID,
		Command:   command,
		Args:      args,
		ExitCode:  localexec.ExitCode(err),
		Outcome:   outcome,
		Error:     errorDetail(err),
		StartedAt: started,
		EndedAt:   ended,
	})

	if err != nil {
		return "", err
	}
	return result.Stdout, nil
}

// resolveProjectPath joins projectPath onto the projects root, refusing paths
// that leave it. A leading slash is taken relative to the root.
func (s *Service) resolveProjectPath(projectPath string) (string, error) {
	if strings.TrimSpace(projectPath) == "" {
		return "", newValidationError("project_path", "is required")
	}
	joined := filepath.Join(s.projectsRoot, projectPath)
	rel, err := filepath.Rel(s.projectsRoot, joined)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", newValidationError("project_path", "must stay inside the projects root")
	}
	return joined, nil
}

func joinAnalysisTypes() string {
	names := make([]string, len(models.AnalysisTypes))
	for i, a := range models.AnalysisTypes {
		names[i] = string(a)
	}
	return strings.Join(names, ", ")
}

func errorDetail(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
