//go:build !windows

package mcp

import "syscall"

// newProcAttr places the child in its own process group so that a signal
// sent to the parent's controlling terminal (e.g. Ctrl-C) is not also
// delivered to the child.
func newProcAttr() *syscall.SysProcAttr {
	return &syscall.SysProcAttr{Setpgid: true}
}

// terminateProcessGroup sends sig to the child's entire process group.
func terminateProcessGroup(pid int, sig syscall.Signal) error {
	return syscall.Kill(-pid, sig)
}
