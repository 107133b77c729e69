//go:build windows

package process

// Windows has no SIGTERM for console-less children; both paths terminate.

func terminate(p *Process) error { return kill(p) }

func kill(p *Process) error {
	if p.cmd == nil || p.cmd.Process == nil {
		return nil
	}
	return p.cmd.Process.Kill()
}
