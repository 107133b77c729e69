package bridge

import (
	"log/slog"
	"sync"
)

// Broadcaster fans values out to subscribers. Publish never blocks: a
// subscriber whose buffer is full loses its oldest pending value.
type Broadcaster[T any] struct {
	mu          sync.Mutex
	subscribers map[*subscriber[T]]struct{}
	stopped     bool
}

type subscriber[T any] struct {
	ch     chan T
	accept func(T) bool
}

func NewBroadcaster[T any]() *Broadcaster[T] {
	return &Broadcaster[T]{subscribers: make(map[*subscriber[T]]struct{})}
}

// Subscribe registers a subscriber with the given buffer size. accept may be
// nil to receive everything. The returned cancel func is idempotent.
func (b *Broadcaster[T]) Subscribe(buffer int, accept func(T) bool) (<-chan T, func(), error) {
	if buffer < 1 {
		buffer = 1
	}
	s := &subscriber[T]{ch: make(chan T, buffer), accept: accept}
	b.mu.Lock()
	if b.stopped {
		b.mu.Unlock()
		return nil, nil, ErrClosed
	}
	b.subscribers[s] = struct{}{}
	b.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			if _, ok := b.subscribers[s]; ok {
				delete(b.subscribers, s)
				close(s.ch)
			}
		})
	}
	return s.ch, cancel, nil
}

// Publish delivers v to every accepting subscriber. Each subscriber sees
// values in publish order.
func (b *Broadcaster[T]) Publish(v T) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.stopped {
		return
	}
	for s := range b.subscribers {
		if s.accept != nil && !s.accept(v) {
			continue
		}
		select {
		case s.ch <- v:
		default:
			// full: drop the oldest value and retry once
			select {
			case <-s.ch:
				slog.Debug("Subscriber too slow, dropped oldest status")
			default:
			}
			select {
			case s.ch <- v:
			default:
			}
		}
	}
}

// Len returns the number of active subscribers.
func (b *Broadcaster[T]) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subscribers)
}

// Stop closes every subscriber channel; later Publish calls are ignored.
func (b *Broadcaster[T]) Stop() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.stopped {
		return
	}
	b.stopped = true
	for s := range b.subscribers {
		close(s.ch)
		delete(b.subscribers, s)
	}
}
