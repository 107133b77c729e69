package history

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"time"
)

// Journal delivers events to sinks from a background goroutine so that the
// daemon state machine never waits on a database.
type Journal struct {
	sinks   []Sink
	ch      chan Event
	timeout time.Duration

	mu     sync.RWMutex
	closed bool
	wg     sync.WaitGroup
}

// NewJournal creates a journal with room for buffer pending events.
func NewJournal(buffer int, sinks ...Sink) *Journal {
	if buffer < 1 {
		buffer = 256
	}
	j := &Journal{
		sinks:   append([]Sink(nil), sinks...),
		ch:      make(chan Event, buffer),
		timeout: 5 * time.Second,
	}
	j.wg.Add(1)
	go j.run()
	return j
}

// Record queues e. It never blocks; when the queue is full the event is
// dropped and logged.
func (j *Journal) Record(e Event) {
	if len(j.sinks) == 0 {
		return
	}
	j.mu.RLock()
	defer j.mu.RUnlock()
	if j.closed {
		return
	}
	select {
	case j.ch <- e:
	default:
		slog.Warn("History queue full, dropping event", "type", e.Type, "role", e.Record.Role)
	}
}

func (j *Journal) run() {
	defer j.wg.Done()
	for e := range j.ch {
		for _, s := range j.sinks {
			ctx, cancel := context.WithTimeout(context.Background(), j.timeout)
			if err := s.Send(ctx, e); err != nil {
				slog.Warn("History sink failed", "type", e.Type, "role", e.Record.Role, "error", err)
			}
			cancel()
		}
	}
}

// Close flushes pending events and closes sinks implementing io.Closer.
func (j *Journal) Close() error {
	j.mu.Lock()
	if j.closed {
		j.mu.Unlock()
		return nil
	}
	j.closed = true
	close(j.ch)
	j.mu.Unlock()
	j.wg.Wait()

	var first error
	for _, s := range j.sinks {
		if c, ok := s.(io.Closer); ok {
			if err := c.Close(); err != nil && first == nil {
				first = err
			}
		}
	}
	return first
}
