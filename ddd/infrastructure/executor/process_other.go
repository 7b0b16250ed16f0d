//go:build windows

package executor

import (
	"os"
	"os/exec"
)

func setProcessGroup(*exec.Cmd) {}

// processAlive cannot probe a pid without a handle here; assume it is alive
// and let Kill report the outcome.
func processAlive(pid int) bool {
	_, err := os.FindProcess(pid)
	return err == nil
}

func terminate(pid int) error { return forceKill(pid) }

func forceKill(pid int) error {
	p, err := os.FindProcess(pid)
	if err != nil {
		return err
	}
	return p.Kill()
}
