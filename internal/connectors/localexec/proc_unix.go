//go:build !windows

package localexec

import (
	"os"
	"syscall"
)

// terminate asks the child to stop; WaitDelay escalates to SIGKILL.
func terminate(p *os.Process) error {
	return p.Signal(syscall.SIGTERM)
}
