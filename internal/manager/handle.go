package manager

import (
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/vigil-labs/launcher/internal/detector"
	"github.com/vigil-labs/launcher/internal/history"
	"github.com/vigil-labs/launcher/internal/metrics"
	"github.com/vigil-labs/launcher/internal/process"
	"github.com/vigil-labs/launcher/internal/role"
)

// EmitFunc receives every status message of a handle, in order. It is called
// with the handle lock held and must neither block nor call back into the
// handle.
type EmitFunc func(message string)

// HandleOptions configures a Handle.
type HandleOptions struct {
	Spec     process.Spec
	Env      []string // full environment of the child; inherited when empty
	Detector detector.Detector
	Emit     EmitFunc
	Journal  *history.Journal
}

// Handle owns the process slot of one daemon role.
//
// A Handle never returns errors to its caller: every outcome, including spawn
// failures, is reported through Emit. Stop is fire-and-forget: the process
// reference is cleared before the child has exited, and the late exit of a
// stopped instance is swallowed so it cannot contradict the Stopping status.
type Handle struct {
	role    role.Role
	spec    process.Spec
	env     []string
	detect  detector.Detector
	emit    EmitFunc
	journal *history.Journal
	vocab   Vocabulary

	mu           sync.Mutex
	state        State
	proc         *process.Process
	retired      map[*process.Process]struct{} // stopped, exit not yet seen
	lastExitCode *int
	runID        string
	startedAt    time.Time
	readyTimer   *time.Timer
}

// Snapshot is a copy of a handle's observable state.
type Snapshot struct {
	Role         role.Role `json:"role"`
	State        string    `json:"state"`
	PID          int       `json:"pid,omitempty"`
	RunID        string    `json:"run_id,omitempty"`
	LastExitCode *int      `json:"last_exit_code,omitempty"`
	StartedAt    time.Time `json:"started_at,omitempty"`
}

// NewHandle creates a stopped handle for r.
func NewHandle(r role.Role, opts HandleOptions) *Handle {
	if opts.Spec.Name == "" {
		opts.Spec.Name = r.String()
	}
	if opts.Detector == nil {
		opts.Detector = detector.ForRole(r, opts.Spec.Marker)
	}
	if opts.Emit == nil {
		opts.Emit = func(string) {}
	}
	return &Handle{
		role:    r,
		spec:    opts.Spec,
		env:     opts.Env,
		detect:  opts.Detector,
		emit:    opts.Emit,
		journal: opts.Journal,
		vocab:   VocabularyFor(r),
		state:   StateStopped,
		retired: make(map[*process.Process]struct{}),
	}
}

func (h *Handle) Role() role.Role { return h.role }

// State returns the current state.
func (h *Handle) State() State {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.state
}

// Snapshot returns the current observable state.
func (h *Handle) Snapshot() Snapshot {
	h.mu.Lock()
	defer h.mu.Unlock()
	s := Snapshot{Role: h.role, State: h.state.String(), RunID: h.runID, StartedAt: h.startedAt}
	if h.proc != nil {
		s.PID = h.proc.PID()
	}
	if h.lastExitCode != nil {
		c := *h.lastExitCode
		s.LastExitCode = &c
	}
	return s
}

// PID returns the pid of the live process, or 0.
func (h *Handle) PID() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.proc == nil {
		return 0
	}
	return h.proc.PID()
}

// Start launches the daemon unless one is already starting or running.
func (h *Handle) Start() {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.proc != nil || h.state == StateStarting || h.state == StateRunning {
		slog.Info("Daemon already running", "role", h.role, "state", h.state)
		h.emit(h.vocab.AlreadyRunning)
		return
	}

	h.runID = uuid.NewString()
	h.setStateLocked(StateStarting)
	h.emit(h.vocab.Starting)

	p, err := process.Start(h.spec, h.env)
	if err != nil {
		slog.Error("Failed to spawn daemon", "role", h.role, "executable", h.spec.Executable, "run_id", h.runID, "error", err)
		metrics.IncSpawnFailure(h.role.String())
		h.failLocked(err.Error(), nil)
		return
	}

	h.proc = p
	h.startedAt = p.StartedAt()
	h.lastExitCode = nil
	slog.Info("Daemon started", "role", h.role, "pid", p.PID(), "dir", h.spec.Dir(), "run_id", h.runID,
		"detector", h.detect.Describe())
	h.recordLocked(history.EventStart, p, "")

	if d := h.spec.StartTimeout; d > 0 {
		h.readyTimer = time.AfterFunc(d, func() { h.onStartTimeout(p, d) })
	}
	go h.monitor(p)
}

// Stop asks the running daemon to terminate and forgets it immediately.
func (h *Handle) Stop() {
	h.mu.Lock()
	defer h.mu.Unlock()

	p := h.proc
	if p == nil {
		slog.Info("Daemon not running", "role", h.role, "state", h.state)
		h.emit(h.vocab.NotRunning)
		return
	}

	h.setStateLocked(StateStopping)
	h.emit(h.vocab.Stopping)
	h.retireLocked(p)
	h.recordLocked(history.EventStop, p, "")

	slog.Info("Stopping daemon", "role", h.role, "pid", p.PID(), "run_id", h.runID)
	if err := p.Terminate(); err != nil {
		slog.Warn("Failed to signal daemon", "role", h.role, "pid", p.PID(), "error", err)
	}
	if wait := h.spec.StopWait; wait > 0 {
		go escalate(h.role, p, wait)
	}
}

// Shutdown stops the daemon and waits up to wait before killing it. It is
// used when the supervisor itself exits and, unlike Stop, blocks until the
// child is gone.
func (h *Handle) Shutdown(wait time.Duration) error {
	h.mu.Lock()
	var procs []*process.Process
	if p := h.proc; p != nil {
		h.setStateLocked(StateStopping)
		h.emit(h.vocab.Stopping)
		h.retireLocked(p)
		h.recordLocked(history.EventStop, p, "")
	}
	for p := range h.retired {
		procs = append(procs, p)
	}
	h.mu.Unlock()

	var errs []string
	for _, p := range procs {
		if err := p.Stop(wait); err != nil {
			errs = append(errs, err.Error())
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("%s shutdown: %s", h.role, strings.Join(errs, "; "))
	}
	return nil
}

func (h *Handle) monitor(p *process.Process) {
	code, err := p.Monitor(
		func(chunk []byte) { h.onStdout(p, chunk) },
		func(chunk []byte) { h.onStderr(p, chunk) },
	)
	h.onExit(p, code, err)
}

func (h *Handle) onStdout(p *process.Process, chunk []byte) {
	text := string(chunk)
	slog.Debug("Daemon stdout", "role", h.role, "pid", p.PID(), "data", strings.TrimRight(text, "\r\n"))

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.proc != p || h.state != StateStarting {
		return
	}
	if !h.detect.Ready(text) {
		return
	}
	if h.readyTimer != nil {
		h.readyTimer.Stop()
		h.readyTimer = nil
	}
	h.setStateLocked(StateRunning)
	h.emit(h.vocab.Running)
	metrics.ObserveReadiness(h.role.String(), time.Since(p.StartedAt()).Seconds())
	slog.Info("Daemon ready", "role", h.role, "pid", p.PID(), "after", time.Since(p.StartedAt()).Round(time.Millisecond))
	h.recordLocked(history.EventReady, p, "")
}

func (h *Handle) onStderr(p *process.Process, chunk []byte) {
	slog.Info("Daemon stderr", "role", h.role, "pid", p.PID(), "data", strings.TrimRight(string(chunk), "\r\n"))
}

func (h *Handle) onExit(p *process.Process, code int, waitErr error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.retired[p]; ok {
		delete(h.retired, p)
		slog.Info("Stopped daemon exited", "role", h.role, "pid", p.PID(), "code", code)
		metrics.IncExit(h.role.String(), "stopped")
		if h.proc == nil && h.state == StateStopping {
			h.setStateLocked(StateStopped)
		}
		return
	}
	if h.proc != p {
		return
	}

	h.proc = nil
	if h.readyTimer != nil {
		h.readyTimer.Stop()
		h.readyTimer = nil
	}
	c := code
	h.lastExitCode = &c

	outcome := "clean"
	next := StateStopped
	if code != 0 {
		outcome = "failed"
		next = StateError
	}
	slog.Info("Daemon exited", "role", h.role, "pid", p.PID(), "code", code, "run_id", h.runID, "error", waitErr)
	metrics.IncExit(h.role.String(), outcome)
	h.setStateLocked(next)
	msg := h.vocab.Exited(code)
	h.emit(msg)
	h.recordLocked(history.EventExit, p, msg)
}

func (h *Handle) onStartTimeout(p *process.Process, d time.Duration) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.proc != p || h.state != StateStarting {
		return
	}
	h.readyTimer = nil
	slog.Warn("Daemon readiness not detected", "role", h.role, "pid", p.PID(), "timeout", d, "detector", h.detect.Describe())
	h.retireLocked(p)
	h.failLocked(fmt.Sprintf("readiness not detected within %s", d), p)
	if err := p.Terminate(); err != nil {
		slog.Warn("Failed to signal daemon", "role", h.role, "pid", p.PID(), "error", err)
	}
	if wait := h.spec.StopWait; wait > 0 {
		go escalate(h.role, p, wait)
	}
}

// failLocked moves to Error and emits exactly one error status.
func (h *Handle) failLocked(reason string, p *process.Process) {
	h.setStateLocked(StateError)
	msg := h.vocab.Error(reason)
	h.emit(msg)
	h.recordLocked(history.EventError, p, msg)
}

func (h *Handle) retireLocked(p *process.Process) {
	h.proc = nil
	h.retired[p] = struct{}{}
	if h.readyTimer != nil {
		h.readyTimer.Stop()
		h.readyTimer = nil
	}
}

func (h *Handle) setStateLocked(next State) {
	prev := h.state
	h.state = next
	if prev != next {
		metrics.RecordStateTransition(h.role.String(), prev.String(), next.String())
	}
}

func (h *Handle) recordLocked(t history.EventType, p *process.Process, msg string) {
	if h.journal == nil {
		return
	}
	rec := history.Record{
		Role:    h.role.String(),
		RunID:   h.runID,
		State:   h.state.String(),
		Message: msg,
	}
	if p != nil {
		rec.PID = p.PID()
	}
	if t == history.EventExit && h.lastExitCode != nil {
		c := *h.lastExitCode
		rec.ExitCode = &c
	}
	h.journal.Record(history.Event{Type: t, OccurredAt: time.Now().UTC(), Record: rec})
}

// escalate kills p if it is still alive after wait.
func escalate(r role.Role, p *process.Process, wait time.Duration) {
	t := time.NewTimer(wait)
	defer t.Stop()
	select {
	case <-p.Done():
	case <-t.C:
		slog.Warn("Daemon ignored SIGTERM, killing", "role", r, "pid", p.PID(), "wait", wait)
		if err := p.Kill(); err != nil {
			slog.Warn("Failed to kill daemon", "role", r, "pid", p.PID(), "error", err)
		}
	}
}
