// Package bridge is the message-only channel between the privileged
// supervisor and the presentation layer.
//
// The presentation side only ever holds a Port: it can send one of four
// commands and subscribe to status strings. It never sees process handles,
// filesystem paths or anything able to spawn a process, and it cannot wait on
// the result of a command; results arrive later as status events.
package bridge

import (
	"context"
	"log/slog"
	"sync"
)

// DefaultSubscriberBuffer is the per-subscriber backlog before the oldest
// status is dropped.
const DefaultSubscriberBuffer = 64

// Dispatcher is implemented by the privileged side that acts on commands.
type Dispatcher interface {
	Dispatch(cmd Command)
}

// Host is the privileged face of the bridge.
type Host interface {
	// Emit publishes a status event to subscribers.
	Emit(ev StatusEvent)
	// Serve hands inbound commands to d in arrival order until ctx is done or
	// the bridge is closed.
	Serve(ctx context.Context, d Dispatcher) error
}

// Port is the unprivileged face of the bridge.
type Port interface {
	// Send queues a command. It returns once the command is queued, not when
	// it has been acted on.
	Send(cmd Command) error
	// Subscribe streams status events for the given channels (all channels
	// when none are given) until cancel is called or the bridge closes.
	Subscribe(channels ...Channel) (<-chan StatusEvent, func(), error)
	// Last returns the most recent message of every channel that has one.
	Last() map[Channel]string
	// Watch is Subscribe plus the Last snapshot of the same channels, taken
	// atomically: every status emitted after the snapshot arrives on the
	// stream and none from before it does.
	Watch(channels ...Channel) (map[Channel]string, <-chan StatusEvent, func(), error)
}

// Bridge implements both faces; hand out Host() and Port() rather than the
// *Bridge itself.
type Bridge struct {
	inbound chan Command
	events  *Broadcaster[StatusEvent]
	done    chan struct{}
	once    sync.Once

	mu   sync.RWMutex
	last map[Channel]string
}

// New creates a bridge whose inbound queue holds up to queue pending commands.
func New(queue int) *Bridge {
	if queue < 1 {
		queue = 16
	}
	return &Bridge{
		inbound: make(chan Command, queue),
		events:  NewBroadcaster[StatusEvent](),
		done:    make(chan struct{}),
		last:    make(map[Channel]string),
	}
}

// Host returns the privileged face.
func (b *Bridge) Host() Host { return host{b} }

// Port returns the unprivileged face.
func (b *Bridge) Port() Port { return port{b} }

// Close stops the bridge and closes all subscriptions.
func (b *Bridge) Close() {
	b.once.Do(func() {
		close(b.done)
		b.events.Stop()
	})
}

type host struct{ b *Bridge }

func (h host) Emit(ev StatusEvent) {
	b := h.b
	select {
	case <-b.done:
		return
	default:
	}
	// last and the publish move together so Watch never sees one without
	// the other; Publish does not block.
	b.mu.Lock()
	b.last[ev.Channel] = ev.Message
	b.events.Publish(ev)
	b.mu.Unlock()
	slog.Debug("Status emitted", "channel", ev.Channel, "message", ev.Message)
}

func (h host) Serve(ctx context.Context, d Dispatcher) error {
	b := h.b
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-b.done:
			return nil
		case cmd := <-b.inbound:
			d.Dispatch(cmd)
		}
	}
}

type port struct{ b *Bridge }

func (p port) Send(cmd Command) error {
	if !cmd.Valid() {
		return ErrUnknownCommand
	}
	select {
	case <-p.b.done:
		return ErrClosed
	default:
	}
	select {
	case p.b.inbound <- cmd:
		return nil
	case <-p.b.done:
		return ErrClosed
	}
}

func (p port) Subscribe(channels ...Channel) (<-chan StatusEvent, func(), error) {
	return p.b.events.Subscribe(DefaultSubscriberBuffer, acceptChannels(channels))
}

func (p port) Watch(channels ...Channel) (map[Channel]string, <-chan StatusEvent, func(), error) {
	accept := acceptChannels(channels)
	p.b.mu.RLock()
	defer p.b.mu.RUnlock()
	events, cancel, err := p.b.events.Subscribe(DefaultSubscriberBuffer, accept)
	if err != nil {
		return nil, nil, nil, err
	}
	last := make(map[Channel]string, len(p.b.last))
	for k, v := range p.b.last {
		if accept == nil || accept(StatusEvent{Channel: k}) {
			last[k] = v
		}
	}
	return last, events, cancel, nil
}

func acceptChannels(channels []Channel) func(StatusEvent) bool {
	var accept func(StatusEvent) bool
	if len(channels) > 0 {
		want := make(map[Channel]struct{}, len(channels))
		for _, c := range channels {
			want[c] = struct{}{}
		}
		accept = func(ev StatusEvent) bool {
			_, ok := want[ev.Channel]
			return ok
		}
	}
	return accept
}

func (p port) Last() map[Channel]string {
	p.b.mu.RLock()
	defer p.b.mu.RUnlock()
	out := make(map[Channel]string, len(p.b.last))
	for k, v := range p.b.last {
		out[k] = v
	}
	return out
}
