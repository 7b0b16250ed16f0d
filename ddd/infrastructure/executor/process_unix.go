//go:build !windows

package executor

import (
	"os/exec"
	"syscall"
)

// setProcessGroup puts ffmpeg in its own group so signals reach its children.
func setProcessGroup(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
}

func processAlive(pid int) bool {
	return syscall.Kill(pid, 0) == nil
}

func signalGroup(pid int, sig syscall.Signal) error {
	if pgid, err := syscall.Getpgid(pid); err == nil && pgid == pid {
		_ = syscall.Kill(-pgid, sig)
	}
	return syscall.Kill(pid, sig)
}

func terminate(pid int) error { return signalGroup(pid, syscall.SIGTERM) }
func forceKill(pid int) error { return signalGroup(pid, syscall.SIGKILL) }
