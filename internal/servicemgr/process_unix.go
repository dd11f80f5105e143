//go:build !windows

package servicemgr

import (
	"errors"
	"os/exec"
	"syscall"
)

// configureProcAttr runs cmd in its own process group and makes
// cancellation kill the whole group, so helpers a toggle script spawned
// cannot outlive a timeout.
func configureProcAttr(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	cmd.Cancel = func() error {
		return killProcessGroup(cmd.Process.Pid)
	}
}

// killProcessGroup sends SIGKILL to the group led by pid, falling back to
// the process itself.
func killProcessGroup(pid int) error {
	err := syscall.Kill(-pid, syscall.SIGKILL)
	if err == nil {
		return nil
	}
	if err2 := syscall.Kill(pid, syscall.SIGKILL); err2 != nil {
		return errors.Join(err, err2)
	}
	return nil
}
