// Package events fans out view updates to streaming subscribers.
package events

import (
	"sync"
	"sync/atomic"
)

const defaultBuffer = 64

// Broadcaster fans out events to all subscribers via buffered channels.
// A subscriber that cannot keep up misses events rather than blocking publishers.
type Broadcaster[T any] struct {
	mu      sync.RWMutex
	subs    map[chan T]struct{}
	buffer  int
	dropped atomic.Uint64
}

// NewBroadcaster creates a broadcaster with the given per-subscriber buffer.
func NewBroadcaster[T any](buffer int) *Broadcaster[T] {
	if buffer < 1 {
		buffer = defaultBuffer
	}
	return &Broadcaster[T]{
		subs:   make(map[chan T]struct{}),
		buffer: buffer,
	}
}

// Publish sends the event to all subscribers, dropping it for slow readers.
func (b *Broadcaster[T]) Publish(event T) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for ch := range b.subs {
		select {
		case ch <- event:
		default:
			b.dropped.Add(1)
		}
	}
}

// Subscribe returns a channel that receives events until Unsubscribe is called.
func (b *Broadcaster[T]) Subscribe() chan T {
	ch := make(chan T, b.buffer)
	b.mu.Lock()
	b.subs[ch] = struct{}{}
	b.mu.Unlock()
	return ch
}

// Unsubscribe removes the channel and closes it.
func (b *Broadcaster[T]) Unsubscribe(ch chan T) {
	b.mu.Lock()
	if _, ok := b.subs[ch]; ok {
		delete(b.subs, ch)
		close(ch)
	}
	b.mu.Unlock()
}

// Subscribers returns the number of active subscribers.
func (b *Broadcaster[T]) Subscribers() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}

// Dropped returns how many deliveries were skipped because a subscriber was full.
func (b *Broadcaster[T]) Dropped() uint64 {
	return b.dropped.Load()
}
