//go:build windows

package main

import "os/exec"

// configureDetached is a no-op; child processes already outlive the parent.
func configureDetached(cmd *exec.Cmd) {}
