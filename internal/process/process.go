package process

import (
	"fmt"
	"io"
	"log/slog"
	"os/exec"
	"sync"
	"time"
)

// ChunkFunc receives one read from a daemon output stream. The slice is only
// valid for the duration of the call.
type ChunkFunc func(chunk []byte)

// Process is one spawned daemon instance. It is never restarted: a new start
// produces a new Process.
type Process struct {
	spec      Spec
	cmd       *exec.Cmd
	pid       int
	startedAt time.Time
	stdout    io.ReadCloser
	stderr    io.ReadCloser
	outLog    io.WriteCloser
	errLog    io.WriteCloser

	mu        sync.Mutex
	monitored bool
	exitCode  int
	exitErr   error
	done      chan struct{} // closed once the process has been reaped
}

// Start spawns the daemon described by spec. env replaces the inherited
// environment when non-empty. The returned error is the spawn failure, for
// example a missing executable.
func Start(spec Spec, env []string) (*Process, error) {
	cmd := spec.BuildCommand()
	if len(env) > 0 {
		cmd.Env = env
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("stdout pipe: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, fmt.Errorf("stderr pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return nil, err
	}
	p := &Process{
		spec:      spec,
		cmd:       cmd,
		pid:       cmd.Process.Pid,
		startedAt: time.Now(),
		stdout:    stdout,
		stderr:    stderr,
		exitCode:  -1,
		done:      make(chan struct{}),
	}
	outW, errW, err := spec.Log.ProcessWriters(spec.Name)
	if err != nil {
		slog.Warn("Daemon output capture disabled", "name", spec.Name, "error", err)
	}
	p.outLog, p.errLog = outW, errW
	return p, nil
}

func (p *Process) PID() int             { return p.pid }
func (p *Process) StartedAt() time.Time { return p.startedAt }
func (p *Process) Spec() Spec           { return p.spec }

// Done is closed after the process has exited and been reaped by Monitor.
func (p *Process) Done() <-chan struct{} { return p.done }

// ExitCode returns the exit code once Done is closed; -1 before that or when
// the process was ended by a signal.
func (p *Process) ExitCode() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.exitCode
}

// Monitor streams stdout and stderr chunks to the callbacks (and to the
// configured capture files) until both reach EOF, then reaps the process.
// It blocks until the process is gone and must be called exactly once.
func (p *Process) Monitor(onStdout, onStderr ChunkFunc) (int, error) {
	p.mu.Lock()
	if p.monitored {
		p.mu.Unlock()
		return -1, fmt.Errorf("process %d already monitored", p.pid)
	}
	p.monitored = true
	p.mu.Unlock()

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		pump(p.stdout, p.outLog, onStdout)
	}()
	go func() {
		defer wg.Done()
		pump(p.stderr, p.errLog, onStderr)
	}()
	// Wait closes the pipes, so every read has to finish first.
	wg.Wait()
	err := p.cmd.Wait()

	code := -1
	if p.cmd.ProcessState != nil {
		code = p.cmd.ProcessState.ExitCode()
	}
	for _, c := range []io.Closer{p.outLog, p.errLog} {
		if c != nil {
			_ = c.Close()
		}
	}
	p.mu.Lock()
	p.exitCode = code
	p.exitErr = err
	p.mu.Unlock()
	close(p.done)
	return code, err
}

func pump(r io.Reader, capture io.Writer, fn ChunkFunc) {
	buf := make([]byte, 32*1024)
	for {
		n, err := r.Read(buf)
		if n > 0 {
			chunk := buf[:n]
			if capture != nil {
				_, _ = capture.Write(chunk)
			}
			if fn != nil {
				fn(chunk)
			}
		}
		if err != nil {
			return
		}
	}
}

// Terminate asks the daemon to exit (SIGTERM to its process group). It is a
// no-op once Monitor has reaped the daemon, since its pid may be reused.
func (p *Process) Terminate() error {
	if p.exited() {
		return nil
	}
	return terminate(p)
}

// Kill forcefully ends the daemon's process group. Like Terminate it does
// nothing after the daemon has been reaped.
func (p *Process) Kill() error {
	if p.exited() {
		return nil
	}
	return kill(p)
}

func (p *Process) exited() bool {
	select {
	case <-p.done:
		return true
	default:
		return false
	}
}

// Stop terminates the daemon and waits up to wait for Monitor to reap it,
// escalating to Kill afterwards. It requires Monitor to be running.
func (p *Process) Stop(wait time.Duration) error {
	select {
	case <-p.done:
		return nil
	default:
	}
	if err := p.Terminate(); err != nil {
		slog.Debug("Terminate failed", "name", p.spec.Name, "pid", p.pid, "error", err)
	}
	select {
	case <-p.done:
		return nil
	case <-time.After(wait):
	}
	slog.Warn("Daemon ignored SIGTERM, killing", "name", p.spec.Name, "pid", p.pid, "wait", wait)
	if err := p.Kill(); err != nil {
		return fmt.Errorf("kill %d: %w", p.pid, err)
	}
	select {
	case <-p.done:
		return nil
	case <-time.After(500 * time.Millisecond):
		return fmt.Errorf("process %d still running after kill", p.pid)
	}
}
