//go:build !windows

package process

import (
	"errors"

	"golang.org/x/sys/unix"
)

// signalGroup sends sig to the whole process group led by pid, falling back
// to the single process when the group is already gone.
func signalGroup(pid int, sig unix.Signal) error {
	if pid <= 0 {
		return nil
	}
	err := unix.Kill(-pid, sig)
	if errors.Is(err, unix.ESRCH) {
		err = unix.Kill(pid, sig)
	}
	if errors.Is(err, unix.ESRCH) {
		return nil
	}
	return err
}

func terminate(p *Process) error { return signalGroup(p.PID(), unix.SIGTERM) }

func kill(p *Process) error { return signalGroup(p.PID(), unix.SIGKILL) }
