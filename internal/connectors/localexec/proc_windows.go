//go:build windows

package localexec

import "os"

// Windows has no SIGTERM; the child is killed outright.
func terminate(p *os.Process) error {
	return p.Kill()
}
