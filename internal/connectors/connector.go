// Package connectors defines the contract for invoking the external tool.
package connectors

import (
	"context"
	"time"
)

// ExecResult holds the result of a command execution.
type ExecResult struct {
	Command  string        `json:"command"`
	Args     []string      `json:"args"`
	ExitCode int           `json:"exit_code"`
	Stdout   string        `json:"stdout"`
	Stderr   string        `json:"stderr"`
	Duration time.Duration `json:"duration"`
}

// Connector defines the interface for executing commands.
type Connector interface {
	// Name returns the connector identifier.
	Name() string

	// Execute runs command with args and returns the captured output. A
	// non-nil error means the invocation failed; the result may still be
	// populated (for example when the child exited non-zero).
	Execute(ctx context.Context, command string, args []string) (*ExecResult, error)

	// IsAllowed checks if a command is allowed to execute.
	IsAllowed(command string, args []string) bool
}
