package manager

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/vigil-labs/launcher/internal/bridge"
	"github.com/vigil-labs/launcher/internal/env"
	"github.com/vigil-labs/launcher/internal/history"
	"github.com/vigil-labs/launcher/internal/metrics"
	"github.com/vigil-labs/launcher/internal/process"
	"github.com/vigil-labs/launcher/internal/role"
)

// Options configures a Supervisor.
type Options struct {
	Specs        map[role.Role]process.Spec
	Env          *env.Env // launcher-wide variables over the OS env
	Host         bridge.Host
	Journal      *history.Journal
	QueueSize    int           // pending commands per role
	ShutdownWait time.Duration // SIGTERM grace period on Shutdown
}

// Supervisor routes bridge commands to the daemon handles.
//
// Each role has its own worker goroutine fed by a FIFO queue, so commands for
// one role run one at a time in arrival order while the node and the wallet
// never wait on each other.
type Supervisor struct {
	opts Options

	mu      sync.Mutex
	handles map[role.Role]*Handle

	qmu    sync.RWMutex // guards queues against close while sending
	queues map[role.Role]chan bridge.Command
	closed bool
	wg     sync.WaitGroup
}

// New creates a supervisor and starts its per-role workers.
func New(opts Options) *Supervisor {
	if opts.QueueSize < 1 {
		opts.QueueSize = 64
	}
	if opts.ShutdownWait <= 0 {
		opts.ShutdownWait = 5 * time.Second
	}
	if opts.Env == nil {
		opts.Env = env.New()
	}
	s := &Supervisor{
		opts:    opts,
		handles: make(map[role.Role]*Handle),
		queues:  make(map[role.Role]chan bridge.Command),
	}
	for _, r := range role.All {
		q := make(chan bridge.Command, opts.QueueSize)
		s.queues[r] = q
		s.wg.Add(1)
		go s.worker(q)
	}
	return s
}

// Dispatch queues cmd on its role's worker. It implements bridge.Dispatcher
// and never blocks: a command for a role whose queue is full is dropped so
// the bridge keeps serving the other role.
func (s *Supervisor) Dispatch(cmd bridge.Command) {
	metrics.IncCommand(string(cmd))
	if cmd == bridge.InstallUpdate {
		s.Handle(cmd)
		return
	}
	r, ok := cmd.Role()
	if !ok {
		slog.Warn("Ignoring unknown command", "command", cmd)
		return
	}

	s.qmu.RLock()
	defer s.qmu.RUnlock()
	if s.closed {
		slog.Warn("Supervisor shutting down, dropping command", "command", cmd)
		return
	}
	select {
	case s.queues[r] <- cmd:
	default:
		slog.Warn("Command queue full, dropping command", "role", r, "command", cmd, "size", cap(s.queues[r]))
	}
}

// Handle executes cmd synchronously on the caller's goroutine.
func (s *Supervisor) Handle(cmd bridge.Command) {
	slog.Debug("Handling command", "command", cmd)
	switch cmd {
	case bridge.StartNode:
		s.handle(role.Node, true).Start()
	case bridge.OpenWallet:
		s.handle(role.Wallet, true).Start()
	case bridge.StopNode:
		if h := s.handle(role.Node, false); h != nil {
			h.Stop()
			return
		}
		s.emit(role.Node, VocabularyFor(role.Node).NotRunning)
	case bridge.InstallUpdate:
		s.emitStatus(bridge.StatusEvent{Channel: bridge.InstallStatus, Message: bridge.InstallNotImplemented})
	default:
		slog.Warn("Ignoring unknown command", "command", cmd)
	}
}

func (s *Supervisor) worker(q <-chan bridge.Command) {
	defer s.wg.Done()
	for cmd := range q {
		s.Handle(cmd)
	}
}

// handle returns the handle of r, creating it on first use when create is set.
func (s *Supervisor) handle(r role.Role, create bool) *Handle {
	s.mu.Lock()
	defer s.mu.Unlock()
	if h, ok := s.handles[r]; ok {
		return h
	}
	if !create {
		return nil
	}
	spec := s.opts.Specs[r]
	h := NewHandle(r, HandleOptions{
		Spec:    spec,
		Env:     s.opts.Env.Merge(spec.Env),
		Emit:    func(msg string) { s.emit(r, msg) },
		Journal: s.opts.Journal,
	})
	s.handles[r] = h
	slog.Debug("Created daemon handle", "role", r, "executable", spec.Executable)
	return h
}

func (s *Supervisor) emit(r role.Role, msg string) {
	s.emitStatus(bridge.NewStatus(r, msg))
}

func (s *Supervisor) emitStatus(ev bridge.StatusEvent) {
	metrics.IncStatusEvent(string(ev.Channel))
	if s.opts.Host != nil {
		s.opts.Host.Emit(ev)
	}
}

// Snapshots returns the state of every role, including roles never started.
func (s *Supervisor) Snapshots() []Snapshot {
	out := make([]Snapshot, 0, len(role.All))
	for _, r := range role.All {
		if h := s.handle(r, false); h != nil {
			out = append(out, h.Snapshot())
			continue
		}
		out = append(out, Snapshot{Role: r, State: StateStopped.String()})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Role < out[j].Role })
	return out
}

// PIDs returns the live pid of each running role.
func (s *Supervisor) PIDs() map[string]int32 {
	out := make(map[string]int32)
	for _, r := range role.All {
		if h := s.handle(r, false); h != nil {
			if pid := h.PID(); pid > 0 {
				out[r.String()] = int32(pid)
			}
		}
	}
	return out
}

// Shutdown drains the command queues and stops both daemons.
func (s *Supervisor) Shutdown(ctx context.Context) error {
	s.qmu.Lock()
	if s.closed {
		s.qmu.Unlock()
		return nil
	}
	s.closed = true
	for _, q := range s.queues {
		close(q)
	}
	s.qmu.Unlock()

	drained := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(drained)
	}()
	select {
	case <-drained:
	case <-ctx.Done():
		return ctx.Err()
	}

	s.mu.Lock()
	handles := make([]*Handle, 0, len(s.handles))
	for _, h := range s.handles {
		handles = append(handles, h)
	}
	s.mu.Unlock()

	errCh := make(chan error, len(handles))
	for _, h := range handles {
		go func(h *Handle) { errCh <- h.Shutdown(s.opts.ShutdownWait) }(h)
	}
	var errs []error
	for range handles {
		select {
		case err := <-errCh:
			if err != nil {
				errs = append(errs, err)
			}
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return errors.Join(errs...)
}
