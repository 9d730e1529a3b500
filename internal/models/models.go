// Package models defines the core domain types for the gateway.
package models

import "time"

// TaskStatus represents the current state of a task.
type TaskStatus string

const (
	TaskStatusRunning   TaskStatus = "running"
	TaskStatusCompleted TaskStatus = "completed"
	TaskStatusFailed    TaskStatus = "failed"
)

// IsTerminal reports whether no further transition may happen from s.
func (s TaskStatus) IsTerminal() bool {
	return s == TaskStatusCompleted || s == TaskStatusFailed
}

// Priority is the caller-supplied urgency of an execute request.
type Priority string

const (
	PriorityLow      Priority = "low"
	PriorityMedium   Priority = "medium"
	PriorityHigh     Priority = "high"
	PriorityCritical Priority = "critical"
)

// Priorities lists every accepted priority.
var Priorities = []Priority{PriorityLow, PriorityMedium, PriorityHigh, PriorityCritical}

// Valid reports whether p is one of the accepted priorities.
func (p Priority) Valid() bool {
	for _, known := range Priorities {
		if p == known {
			return true
		}
	}
	return false
}

// AnalysisType selects what the external tool reports about a project.
type AnalysisType string

const (
	AnalysisStructure    AnalysisType = "structure"
	AnalysisHealth       AnalysisType = "health"
	AnalysisDependencies AnalysisType = "dependencies"
	AnalysisIssues       AnalysisType = "issues"
)

// AnalysisTypes lists every accepted analysis type.
var AnalysisTypes = []AnalysisType{AnalysisStructure, AnalysisHealth, AnalysisDependencies, AnalysisIssues}

// Valid reports whether a is one of the accepted analysis types.
func (a AnalysisType) Valid() bool {
	for _, known := range AnalysisTypes {
		if a == known {
			return true
		}
	}
	return false
}

// TaskRecord tracks one execute invocation from acceptance to its terminal state.
type TaskRecord struct {
	ID              string     `json:"id"`
	TaskDescription string     `json:"task_description"`
	ProjectPath     string     `json:"project_path"`
	Context         string     `json:"context"`
	Priority        Priority   `json:"priority"`
	Status          TaskStatus `json:"status"`
	StartedAt       time.Time  `json:"started_at"`
	CompletedAt     *time.Time `json:"completed_at,omitempty"`
	FailedAt        *time.Time `json:"failed_at,omitempty"`
	Results         *string    `json:"results,omitempty"`
	Error           *string    `json:"error,omitempty"`
}

// Complete returns a copy of r moved to the completed state with results attached.
func (r TaskRecord) Complete(results string, at time.Time) TaskRecord {
	r.Status = TaskStatusCompleted
	r.CompletedAt = &at
	r.Results = &results
	r.FailedAt = nil
	r.Error = nil
	return r
}

// Fail returns a copy of r moved to the failed state with the error message attached.
func (r TaskRecord) Fail(message string, at time.Time) TaskRecord {
	r.Status = TaskStatusFailed
	r.FailedAt = &at
	r.Error = &message
	r.CompletedAt = nil
	r.Results = nil
	return r
}

// Run represents one invocation of the external binary, as written to the journal.
type Run struct {
	ID        string    `json:"id"`
	TaskID    string    `json:"task_id,omitempty"`
	Command   string    `json:"command"`
	Args      []string  `json:"args"`
	ExitCode  int       `json:"exit_code"`
	Outcome   string    `json:"outcome"`
	Error     string    `json:"error,omitempty"`
	StartedAt time.Time `json:"started_at"`
	EndedAt   time.Time `json:"ended_at"`
}

// PDREntry represents a Process Decision Record for audit.
type PDREntry struct {
	ID         string    `json:"id"`
	Action     string    `json:"action"`
	InputsHash string    `json:"inputs_hash"`
	Outcome    string    `json:"outcome"`
	TaskID     string    `json:"task_id,omitempty"`
	Details    string    `json:"details,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
}
