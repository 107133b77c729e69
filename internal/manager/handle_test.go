//go:build !windows

package manager

import (
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vigil-labs/launcher/internal/history"
	"github.com/vigil-labs/launcher/internal/process"
	"github.com/vigil-labs/launcher/internal/role"
)

const readyLine = `echo "RPC server listening on 127.0.0.1:9109"`

func writeScript(t *testing.T, body string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "vgld")
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\n"+body+"\n"), 0o755))
	return path
}

type recorder struct {
	mu   sync.Mutex
	msgs []string
}

func (r *recorder) emit(msg string) {
	r.mu.Lock()
	r.msgs = append(r.msgs, msg)
	r.mu.Unlock()
}

func (r *recorder) all() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.msgs...)
}

func (r *recorder) count(msg string) int {
	n := 0
	for _, m := range r.all() {
		if m == msg {
			n++
		}
	}
	return n
}

func (r *recorder) countPrefix(prefix string) int {
	n := 0
	for _, m := range r.all() {
		if strings.HasPrefix(m, prefix) {
			n++
		}
	}
	return n
}

func (r *recorder) waitFor(t *testing.T, msg string) {
	t.Helper()
	require.Eventually(t, func() bool { return r.count(msg) > 0 }, 5*time.Second, 10*time.Millisecond,
		"waiting for %q, got %q", msg, r.all())
}

func newTestHandle(t *testing.T, r role.Role, spec process.Spec) (*Handle, *recorder) {
	t.Helper()
	rec := &recorder{}
	h := NewHandle(r, HandleOptions{Spec: spec, Emit: rec.emit})
	t.Cleanup(func() { _ = h.Shutdown(time.Second) })
	return h, rec
}

func waitState(t *testing.T, h *Handle, want State) {
	t.Helper()
	require.Eventually(t, func() bool { return h.State() == want }, 5*time.Second, 10*time.Millisecond,
		"waiting for state %s, have %s", want, h.State())
}

func TestHandleStartReachesRunning(t *testing.T) {
	exe := writeScript(t, readyLine+"\nexec sleep 30")
	h, rec := newTestHandle(t, role.Node, process.Spec{Executable: exe})
	v := VocabularyFor(role.Node)

	h.Start()
	rec.waitFor(t, v.Running)
	assert.Equal(t, StateRunning, h.State())
	assert.Equal(t, []string{v.Starting, v.Running}, rec.all())

	snap := h.Snapshot()
	assert.Equal(t, role.Node, snap.Role)
	assert.Equal(t, "running", snap.State)
	assert.NotZero(t, snap.PID)
	assert.NotEmpty(t, snap.RunID)
	assert.Nil(t, snap.LastExitCode)
}

func TestHandleStartIsIdempotent(t *testing.T) {
	exe := writeScript(t, readyLine+"\nexec sleep 30")
	h, rec := newTestHandle(t, role.Node, process.Spec{Executable: exe})
	v := VocabularyFor(role.Node)

	h.Start()
	rec.waitFor(t, v.Running)
	pid := h.PID()

	h.Start()
	assert.Equal(t, 1, rec.count(v.AlreadyRunning))
	assert.Equal(t, 1, rec.count(v.Starting), "no second spawn")
	assert.Equal(t, pid, h.PID())
	assert.Equal(t, StateRunning, h.State())
}

func TestHandleStartWhileStartingIsIdempotent(t *testing.T) {
	exe := writeScript(t, "exec sleep 30")
	h, rec := newTestHandle(t, role.Wallet, process.Spec{Executable: exe})
	v := VocabularyFor(role.Wallet)

	h.Start()
	require.Equal(t, StateStarting, h.State())
	h.Start()
	assert.Equal(t, []string{v.Starting, v.AlreadyRunning}, rec.all())
}

func TestHandleStopWithoutProcess(t *testing.T) {
	h, rec := newTestHandle(t, role.Node, process.Spec{Executable: "/nonexistent"})
	v := VocabularyFor(role.Node)

	before := h.Snapshot()
	h.Stop()
	assert.Equal(t, []string{v.NotRunning}, rec.all())
	assert.Equal(t, before, h.Snapshot())
}

func TestHandleSpawnFailure(t *testing.T) {
	h, rec := newTestHandle(t, role.Node, process.Spec{Executable: filepath.Join(t.TempDir(), "missing")})
	v := VocabularyFor(role.Node)

	h.Start()
	msgs := rec.all()
	require.Len(t, msgs, 2)
	assert.Equal(t, v.Starting, msgs[0])
	assert.True(t, strings.HasPrefix(msgs[1], "Node Status: Error - "), msgs[1])
	assert.Equal(t, StateError, h.State())
	assert.Zero(t, h.PID())

	// no retry, nothing else arrives
	time.Sleep(100 * time.Millisecond)
	assert.Len(t, rec.all(), 2)
	assert.Zero(t, rec.count(v.Running))
}

func TestHandleNonzeroExit(t *testing.T) {
	exe := writeScript(t, "exit 3")
	h, rec := newTestHandle(t, role.Wallet, process.Spec{Executable: exe})

	h.Start()
	rec.waitFor(t, "Wallet Status: Exited with code 3")
	waitState(t, h, StateError)
	snap := h.Snapshot()
	require.NotNil(t, snap.LastExitCode)
	assert.Equal(t, 3, *snap.LastExitCode)
	assert.Zero(t, snap.PID)
}

func TestHandleCleanExit(t *testing.T) {
	exe := writeScript(t, readyLine)
	h, rec := newTestHandle(t, role.Node, process.Spec{Executable: exe})

	h.Start()
	rec.waitFor(t, "Node Status: Exited with code 0")
	waitState(t, h, StateStopped)

	// a new start after exit spawns again under a new run id
	first := h.Snapshot().RunID
	h.Start()
	require.Eventually(t, func() bool { return rec.count("Node Status: Exited with code 0") == 2 },
		5*time.Second, 10*time.Millisecond)
	assert.Equal(t, 2, rec.count(VocabularyFor(role.Node).Starting))
	assert.NotEqual(t, first, h.Snapshot().RunID)
}

func TestHandleReadinessEmittedOnce(t *testing.T) {
	exe := writeScript(t, readyLine+"\nsleep 0.1\n"+readyLine+"\nexec sleep 30")
	h, rec := newTestHandle(t, role.Node, process.Spec{Executable: exe})
	v := VocabularyFor(role.Node)

	h.Start()
	rec.waitFor(t, v.Running)
	time.Sleep(300 * time.Millisecond)
	assert.Equal(t, 1, rec.count(v.Running))
}

func TestHandleStderrDoesNotSignalReadiness(t *testing.T) {
	exe := writeScript(t, `echo "Wallet is unlocked" 1>&2`+"\nexec sleep 30")
	h, rec := newTestHandle(t, role.Wallet, process.Spec{Executable: exe})

	h.Start()
	time.Sleep(300 * time.Millisecond)
	assert.Equal(t, StateStarting, h.State())
	assert.Zero(t, rec.count(VocabularyFor(role.Wallet).Running))
}

func TestHandleCustomMarker(t *testing.T) {
	exe := writeScript(t, `echo "custom ready"`+"\nexec sleep 30")
	h, rec := newTestHandle(t, role.Node, process.Spec{Executable: exe, Marker: "custom ready"})

	h.Start()
	rec.waitFor(t, VocabularyFor(role.Node).Running)
}

func TestHandleStopSuppressesLateExit(t *testing.T) {
	exe := writeScript(t, readyLine+"\nexec sleep 30")
	h, rec := newTestHandle(t, role.Node, process.Spec{Executable: exe})
	v := VocabularyFor(role.Node)

	h.Start()
	rec.waitFor(t, v.Running)

	h.Stop()
	assert.Contains(t, []State{StateStopping, StateStopped}, h.State())
	assert.Zero(t, h.PID(), "reference cleared before exit")

	waitState(t, h, StateStopped)
	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, []string{v.Starting, v.Running, v.Stopping}, rec.all())
	assert.Zero(t, rec.countPrefix("Node Status: Exited"))

	h.Stop()
	assert.Equal(t, 1, rec.count(v.NotRunning))
}

func TestHandleStartDuringStoppingSpawnsFresh(t *testing.T) {
	exe := writeScript(t, "trap 'sleep 0.3; exit 0' TERM\n"+readyLine+"\nwhile true; do sleep 0.05; done")
	h, rec := newTestHandle(t, role.Node, process.Spec{Executable: exe})
	v := VocabularyFor(role.Node)

	h.Start()
	rec.waitFor(t, v.Running)
	h.Stop()
	h.Start()
	assert.Equal(t, 2, rec.count(v.Starting))

	// the old instance exiting must not touch the new one
	require.Eventually(t, func() bool { return rec.count(v.Running) == 2 }, 5*time.Second, 10*time.Millisecond)
	time.Sleep(500 * time.Millisecond)
	assert.Equal(t, StateRunning, h.State())
	assert.NotZero(t, h.PID())
	assert.Zero(t, rec.countPrefix("Node Status: Exited"))
}

func TestHandleStartTimeout(t *testing.T) {
	exe := writeScript(t, "exec sleep 30")
	h, rec := newTestHandle(t, role.Wallet, process.Spec{Executable: exe, StartTimeout: 200 * time.Millisecond})
	v := VocabularyFor(role.Wallet)

	h.Start()
	rec.waitFor(t, v.Error("readiness not detected within 200ms"))
	assert.Equal(t, StateError, h.State())
	assert.Zero(t, h.PID())

	time.Sleep(300 * time.Millisecond)
	assert.Equal(t, 1, rec.countPrefix("Wallet Status: Error - "))
	assert.Zero(t, rec.count(v.Running))
	assert.Zero(t, rec.countPrefix("Wallet Status: Exited"))
	assert.Equal(t, StateError, h.State(), "terminated instance leaves the error visible")
}

func TestHandleShutdownKillsStubbornDaemon(t *testing.T) {
	exe := writeScript(t, "trap '' TERM\n"+readyLine+"\nwhile true; do sleep 0.05; done")
	h, rec := newTestHandle(t, role.Node, process.Spec{Executable: exe})

	h.Start()
	rec.waitFor(t, VocabularyFor(role.Node).Running)
	start := time.Now()
	require.NoError(t, h.Shutdown(300*time.Millisecond))
	assert.Less(t, time.Since(start), 3*time.Second)
	waitState(t, h, StateStopped)
}

func TestHandleStopEscalatesAfterStopWait(t *testing.T) {
	exe := writeScript(t, "trap '' TERM\n"+readyLine+"\nwhile true; do sleep 0.05; done")
	h, rec := newTestHandle(t, role.Node, process.Spec{Executable: exe, StopWait: 200 * time.Millisecond})

	h.Start()
	rec.waitFor(t, VocabularyFor(role.Node).Running)
	h.Stop()
	waitState(t, h, StateStopped)
}

func TestHandleRecordsHistory(t *testing.T) {
	sink := &memSink{}
	j := history.NewJournal(16, sink)
	exe := writeScript(t, readyLine+"\nexit 2")
	rec := &recorder{}
	h := NewHandle(role.Node, HandleOptions{Spec: process.Spec{Executable: exe}, Emit: rec.emit, Journal: j})

	h.Start()
	rec.waitFor(t, "Node Status: Exited with code 2")
	require.NoError(t, j.Close())

	types := sink.types()
	assert.Equal(t, []history.EventType{history.EventStart, history.EventReady, history.EventExit}, types)
	last := sink.last()
	require.NotNil(t, last.Record.ExitCode)
	assert.Equal(t, 2, *last.Record.ExitCode)
	assert.Equal(t, "node", last.Record.Role)
	assert.NotEmpty(t, last.Record.RunID)
}

func TestHandleNonzeroExitAfterRunning(t *testing.T) {
	exe := writeScript(t, readyLine+"\nsleep 0.2\nexit 7")
	h, rec := newTestHandle(t, role.Node, process.Spec{Executable: exe})
	v := VocabularyFor(role.Node)

	h.Start()
	rec.waitFor(t, "Node Status: Exited with code 7")
	waitState(t, h, StateError)
	assert.Equal(t, []string{v.Starting, v.Running, "Node Status: Exited with code 7"}, rec.all())
}
