// Package history exports daemon lifecycle events to external systems.
//
// Sinks are write-only: nothing is ever read back, and the supervisor does not
// restore state from them.
package history

import (
	"context"
	"time"
)

// EventType defines the kind of lifecycle event.
type EventType string

const (
	EventStart EventType = "start" // process spawned
	EventReady EventType = "ready" // readiness marker seen
	EventStop  EventType = "stop"  // stop requested by the user
	EventExit  EventType = "exit"  // process exited on its own
	EventError EventType = "error" // spawn failure or readiness timeout
)

// Record is the daemon snapshot attached to an event.
type Record struct {
	Role     string `json:"role"`
	RunID    string `json:"run_id"`
	PID      int    `json:"pid"`
	State    string `json:"state"`
	Message  string `json:"message"`
	ExitCode *int   `json:"exit_code,omitempty"`
}

// Event represents a lifecycle event to be exported to external systems.
type Event struct {
	Type       EventType `json:"type"`
	OccurredAt time.Time `json:"occurred_at"`
	Record     Record    `json:"record"`
}

// Sink is a destination for history events.
// Implementations must be safe for concurrent use.
type Sink interface {
	Send(ctx context.Context, e Event) error
}
