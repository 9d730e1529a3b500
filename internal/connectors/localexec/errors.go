package localexec

import (
	"errors"
	"fmt"
	"time"
)

// Sentinel errors for runner failures.
var (
	ErrNotAllowed  = errors.New("command not allowed")
	ErrStartFailed = errors.New("failed to start Claude Code")
)

// StartError reports that the child process could not be spawned at all.
type StartError struct {
	Binary string
	Err    error
}

func (e *StartError) Error() string {
	return fmt.Sprintf("%s: %v", ErrStartFailed.Error(), e.Err)
}

func (e *StartError) Unwrap() error { return e.Err }

// Is lets errors.Is(err, ErrStartFailed) match.
func (e *StartError) Is(target error) bool { return target == ErrStartFailed }

// ExitError reports a non-zero exit of the child.
type ExitError struct {
	Code int
	// Output is stderr when non-empty, stdout otherwise.
	Output string
}

func (e *ExitError) Error() string {
	if e.Output == "" {
		return fmt.Sprintf("Claude Code exited with code %d", e.Code)
	}
	return fmt.Sprintf("Claude Code exited with code %d: %s", e.Code, e.Output)
}

// TimeoutError reports that the child was terminated after exceeding the timeout.
type TimeoutError struct {
	Timeout time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("Claude Code timed out after %dms", e.Timeout.Milliseconds())
}

// Outcome labels used in metrics and the run journal.
const (
	OutcomeSuccess     = "success"
	OutcomeExitError   = "exit_error"
	OutcomeStartFailed = "start_failed"
	OutcomeTimeout     = "timeout"
	OutcomeRejected    = "rejected"
	OutcomeError       = "error"
)

// Classify maps an Execute error to its outcome label.
func Classify(err error) string {
	var exitErr *ExitError
	var timeoutErr *TimeoutError
	switch {
	case err == nil:
		return OutcomeSuccess
	case errors.As(err, &timeoutErr):
		return OutcomeTimeout
	case errors.As(err, &exitErr):
		return OutcomeExitError
	case errors.Is(err, ErrStartFailed):
		return OutcomeStartFailed
	case errors.Is(err, ErrNotAllowed):
		return OutcomeRejected
	default:
		return OutcomeError
	}
}

// ExitCode extracts the child exit code from err, or -1 when none applies.
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	return -1
}
