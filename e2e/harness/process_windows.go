//go:build windows

package harness

import (
	"os"
	"os/exec"
)

func setProcessGroup(cmd *exec.Cmd) {}

// terminate kills the shell; Windows has no SIGTERM to send
func terminate(p *os.Process) error {
	return p.Kill()
}

func killGroup(p *os.Process) error {
	return p.Kill()
}

func exitSignal(ps *os.ProcessState) string {
	return ""
}
