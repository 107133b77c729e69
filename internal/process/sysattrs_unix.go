//go:build !windows

package process

import (
	"os/exec"
	"syscall"
)

// configureSysProcAttr places the daemon in its own process group so that a
// stop reaches any helpers it forks.
func configureSysProcAttr(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
}
