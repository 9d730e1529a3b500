// Package localexec spawns the external Claude Code binary as a child process.
package localexec

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/fentz26/ccgateway/internal/config"
	"github.com/fentz26/ccgateway/internal/connectors"
	"github.com/fentz26/ccgateway/internal/logging"
)

// allowedCommands is the strict allowlist of first arguments passed to the binary.
var allowedCommands = map[string]bool{
	"analyze":   true,
	"execute":   true,
	"--version": true,
}

// killGrace is how long a terminated child gets before it is killed.
const killGrace = 5 * time.Second

// LocalExec implements the Connector interface for the Claude Code binary.
type LocalExec struct {
	binary     string
	workDir    string
	home       string
	pathPrefix string
	timeout    time.Duration
	logger     *slog.Logger
}

// New creates a new LocalExec connector.
func New(cfg config.RunnerConfig, logger *slog.Logger) *LocalExec {
	return &LocalExec{
		binary:     cfg.Binary,
		workDir:    cfg.WorkDir,
		home:       cfg.Home,
		pathPrefix: cfg.PathPrefix,
		timeout:    cfg.Timeout,
		logger:     logging.Component(logger, "localexec"),
	}
}

// Name returns the connector identifier.
func (l *LocalExec) Name() string {
	return "localexec"
}

// IsAllowed checks if a command is in the allowlist.
func (l *LocalExec) IsAllowed(command string, args []string) bool {
	return allowedCommands[command]
}

// Execute runs the binary with command and args, waiting for it to exit or
// for the configured timeout to elapse.
func (l *LocalExec) Execute(ctx context.Context, command string, args []string) (*connectors.ExecResult, error) {
	if !l.IsAllowed(command, args) {
		return nil, fmt.Errorf("%w: %s %s", ErrNotAllowed, command, strings.Join(args, " "))
	}

	runCtx, cancel := ctx, context.CancelFunc(func() {})
	if l.timeout > 0 {
		runCtx, cancel = context.WithTimeout(ctx, l.timeout)
	}
	defer cancel()

	argv := append([]string{command}, args...)
	execCmd := exec.CommandContext(runCtx, l.resolveBinary(), argv...)
	if l.workDir != "" {
		execCmd.Dir = l.workDir
	}
	execCmd.Env = l.environ()
	execCmd.Cancel = func() error { return terminate(execCmd.Process) }
	execCmd.WaitDelay = killGrace

	var stdout, stderr bytes.Buffer
	execCmd.Stdout = &stdout
	execCmd.Stderr = &stderr

	started := time.Now()
	if err := execCmd.Start(); err != nil {
		if ctxErr := runCtx.Err(); ctxErr != nil {
			return nil, fmt.Errorf("exec %s: %w", command, ctxErr)
		}
		l.logger.Warn("failed to start child", "binary", l.binary, "command", command, "error", err)
		return nil, &StartError{Binary: l.binary, Err: err}
	}
	l.logger.Debug("child started", "command", command, "pid", execCmd.Process.Pid)

	waitErr := execCmd.Wait()
	if errors.Is(waitErr, exec.ErrWaitDelay) && runCtx.Err() == nil {
		// The child exited cleanly but a descendant kept the pipes open.
		waitErr = nil
	}

	result := &connectors.ExecResult{
		Command:  command,
		Args:     args,
		ExitCode: execCmd.ProcessState.ExitCode(),
		Stdout:   stdout.String(),
		Stderr:   stderr.String(),
		Duration: time.Since(started),
	}

	if waitErr == nil {
		return result, nil
	}

	if errors.Is(runCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
		l.logger.Warn("child timed out", "command", command, "timeout", l.timeout)
		return result, &TimeoutError{Timeout: l.timeout}
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return result, fmt.Errorf("exec %s: %w", command, ctxErr)
	}

	var exitErr *exec.ExitError
	if !errors.As(waitErr, &exitErr) {
		return result, fmt.Errorf("exec %s: %w", command, waitErr)
	}

	output := strings.TrimSpace(result.Stderr)
	if output == "" {
		output = strings.TrimSpace(result.Stdout)
	}
	l.logger.Warn("child exited with error", "command", command, "exit_code", result.ExitCode)
	return result, &ExitError{Code: result.ExitCode, Output: output}
}

// resolveBinary prefers a bare binary name found under the vendored path
// prefix, since exec resolves names against the parent's PATH.
func (l *LocalExec) resolveBinary() string {
	if l.pathPrefix == "" || strings.ContainsRune(l.binary, os.PathSeparator) {
		return l.binary
	}
	for _, dir := range filepath.SplitList(l.pathPrefix) {
		candidate := filepath.Join(dir, l.binary)
		if info, err := os.Stat(candidate); err == nil && !info.IsDir() {
			return candidate
		}
	}
	return l.binary
}

// environ returns the parent environment with HOME and PATH overridden.
func (l *LocalExec) environ() []string {
	parent := os.Environ()
	env := make([]string, 0, len(parent)+2)
	path := ""
	for _, kv := range parent {
		switch {
		case strings.HasPrefix(kv, "PATH="):
			path = strings.TrimPrefix(kv, "PATH=")
		case strings.HasPrefix(kv, "HOME=") && l.home != "":
			// replaced below
		default:
			env = append(env, kv)
		}
	}
	if l.home != "" {
		env = append(env, "HOME="+l.home)
	}
	if l.pathPrefix != "" {
		if path == "" {
			path = l.pathPrefix
		} else {
			path = l.pathPrefix + string(os.PathListSeparator) + path
		}
	}
	if path != "" {
		env = append(env, "PATH="+path)
	}
	return env
}
